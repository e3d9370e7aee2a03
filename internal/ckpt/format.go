package ckpt

import (
	"fmt"

	"github.com/samcharles93/petal/internal/tensor"
)

// Magic identifies a checkpoint file.
const Magic uint32 = 0x67676d6c

// Precision selects the element encoding used for the large weight
// tensors. Normalization and bias tensors are always stored in f32.
type Precision int32

const (
	PrecisionF32  Precision = 0
	PrecisionF16  Precision = 1
	PrecisionQ4_0 Precision = 2
	PrecisionQ4_1 Precision = 3
)

func (p Precision) Valid() bool {
	return p >= PrecisionF32 && p <= PrecisionQ4_1
}

// DType returns the tensor encoding for weights stored in this precision.
func (p Precision) DType() tensor.DType {
	switch p {
	case PrecisionF32:
		return tensor.DTypeF32
	case PrecisionF16:
		return tensor.DTypeF16
	case PrecisionQ4_0:
		return tensor.DTypeQ4_0
	case PrecisionQ4_1:
		return tensor.DTypeQ4_1
	default:
		panic("ckpt: invalid precision")
	}
}

func (p Precision) String() string {
	if !p.Valid() {
		return fmt.Sprintf("precision(%d)", int32(p))
	}
	return p.DType().String()
}

// Hparams are the model hyperparameters. All fields except NCtx come from
// the checkpoint header; the context length is supplied by the caller and
// the file's value, if any, is not authoritative.
type Hparams struct {
	NVocab    int
	NCtx      int
	NEmbd     int
	NMult     int
	NHead     int
	NLayer    int
	Precision Precision
}

// NFF is the feed-forward width, rounded up to a multiple of NMult.
func (h Hparams) NFF() int {
	return ((4*h.NEmbd + h.NMult - 1) / h.NMult) * h.NMult
}

// Layer groups the weight tensors of one transformer layer.
type Layer struct {
	AttnNorm     *tensor.Mat
	AttnNormBias *tensor.Mat

	QKV     *tensor.Mat // fused query/key/value projection, [3*embd x embd]
	QKVBias *tensor.Mat
	Wo      *tensor.Mat
	WoBias  *tensor.Mat

	FFNNorm     *tensor.Mat
	FFNNormBias *tensor.Mat

	W1     *tensor.Mat // expansion, [ff x embd]
	W1Bias *tensor.Mat
	W2     *tensor.Mat // contraction, [embd x ff]
	W2Bias *tensor.Mat
}

// Model is a fully loaded checkpoint: hyperparameters, vocabulary and all
// weight tensors. It is read-only after Load returns.
type Model struct {
	Hparams Hparams
	Vocab   *Vocab

	TokEmbeddings *tensor.Mat
	Norm          *tensor.Mat
	NormBias      *tensor.Mat

	OutputNorm     *tensor.Mat
	OutputNormBias *tensor.Mat
	Output         *tensor.Mat

	Layers []Layer
}

// slot describes one expected tensor: its canonical name, shape derived
// from the hyperparameters, encoding, and the model field that receives it.
// The name-keyed view of the slots exists only for the duration of the load.
type slot struct {
	name       string
	rows, cols int
	dtype      tensor.DType
	dst        **tensor.Mat
}

// schema lists every tensor the checkpoint must provide, with shapes
// computed strictly from the hyperparameters.
func (m *Model) schema() []slot {
	h := m.Hparams
	wtype := h.Precision.DType()
	nFF := h.NFF()

	slots := []slot{
		{"tok_embeddings.weight", h.NVocab, h.NEmbd, wtype, &m.TokEmbeddings},
		{"norm.weight", 1, h.NEmbd, tensor.DTypeF32, &m.Norm},
		{"norm.bias", 1, h.NEmbd, tensor.DTypeF32, &m.NormBias},
		{"output_norm.weight", 1, h.NEmbd, tensor.DTypeF32, &m.OutputNorm},
		{"output_norm.bias", 1, h.NEmbd, tensor.DTypeF32, &m.OutputNormBias},
		{"output.weight", h.NVocab, h.NEmbd, wtype, &m.Output},
	}

	for i := range m.Layers {
		l := &m.Layers[i]
		prefix := fmt.Sprintf("layers.%d.", i)
		slots = append(slots,
			slot{prefix + "attention_norm.weight", 1, h.NEmbd, tensor.DTypeF32, &l.AttnNorm},
			slot{prefix + "attention_norm.bias", 1, h.NEmbd, tensor.DTypeF32, &l.AttnNormBias},
			slot{prefix + "attention.query_key_value.weight", 3 * h.NEmbd, h.NEmbd, wtype, &l.QKV},
			slot{prefix + "attention.query_key_value.bias", 1, 3 * h.NEmbd, tensor.DTypeF32, &l.QKVBias},
			slot{prefix + "attention.wo.weight", h.NEmbd, h.NEmbd, wtype, &l.Wo},
			slot{prefix + "attention.wo.bias", 1, h.NEmbd, tensor.DTypeF32, &l.WoBias},
			slot{prefix + "ffn_norm.weight", 1, h.NEmbd, tensor.DTypeF32, &l.FFNNorm},
			slot{prefix + "ffn_norm.bias", 1, h.NEmbd, tensor.DTypeF32, &l.FFNNormBias},
			slot{prefix + "feed_forward.w1.weight", nFF, h.NEmbd, wtype, &l.W1},
			slot{prefix + "feed_forward.w1.bias", 1, nFF, tensor.DTypeF32, &l.W1Bias},
			slot{prefix + "feed_forward.w2.weight", h.NEmbd, nFF, wtype, &l.W2},
			slot{prefix + "feed_forward.w2.bias", 1, h.NEmbd, tensor.DTypeF32, &l.W2Bias},
		)
	}
	return slots
}
