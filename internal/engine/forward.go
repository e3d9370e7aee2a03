package engine

import (
	"fmt"
	"math"

	"github.com/samcharles93/petal/internal/ckpt"
	"github.com/samcharles93/petal/internal/tensor"
)

// forwardPass evaluates the layer stack for one decode step, reading and
// extending the key/value cache and allocating every intermediate from
// the workspace. It owns graph topology and memory layout only; the
// arithmetic lives in the tensor package.
type forwardPass struct {
	model   *ckpt.Model
	cache   *kvCache
	ws      *workspace
	slopes  []float32
	threads int
}

func newForwardPass(m *ckpt.Model, cache *kvCache, ws *workspace, threads int) *forwardPass {
	if threads < 1 {
		threads = 1
	}
	return &forwardPass{
		model:   m,
		cache:   cache,
		ws:      ws,
		slopes:  alibiSlopes(m.Hparams.NHead),
		threads: threads,
	}
}

// run evaluates tokens at positions [nPast, nPast+N) and returns the
// logits for the final input position only. The returned slice lives in
// the workspace and is valid until the next pass.
//
// The positional bias always uses absolute key and query positions, so
// results are identical whether a span of tokens is evaluated in one
// batch or one token at a time.
func (f *forwardPass) run(tokens []int, nPast int) ([]float32, error) {
	hp := f.model.Hparams
	n := len(tokens)
	if n == 0 {
		return nil, ErrEmptyPrompt
	}
	if nPast+n > hp.NCtx {
		return nil, fmt.Errorf("%w: %d+%d tokens in a %d context", ErrContextOverflow, nPast, n, hp.NCtx)
	}

	nEmbd, nHead, nCtx := hp.NEmbd, hp.NHead, hp.NCtx
	headDim := nEmbd / nHead
	nFF := hp.NFF()
	span := nPast + n

	f.ws.prepare(n)
	f.ws.reset()

	var err error
	allocs := func(sizes ...int) ([][]float32, error) {
		out := make([][]float32, len(sizes))
		for i, sz := range sizes {
			if out[i], err = f.ws.alloc(sz); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	bufs, err := allocs(
		n*nEmbd,       // x: residual stream
		n*nEmbd,       // cur
		n*3*nEmbd,     // fused qkv
		n*nEmbd,       // kTmp
		n*nEmbd,       // vTmp
		n*nHead*nCtx,  // attention scores, sized for the full window
		n*nEmbd,       // merged attention output
		n*nFF,         // feed-forward expansion
		hp.NVocab,     // logits
	)
	if err != nil {
		return nil, err
	}
	x, cur, qkv, kTmp, vTmp, scores, attn, ff, logits :=
		bufs[0], bufs[1], bufs[2], bufs[3], bufs[4], bufs[5], bufs[6], bufs[7], bufs[8]

	// Token embedding followed by the embedding-layer norm.
	for i, tok := range tokens {
		if tok < 0 || tok >= hp.NVocab {
			return nil, fmt.Errorf("engine: token id %d outside vocabulary of %d", tok, hp.NVocab)
		}
		xi := x[i*nEmbd : (i+1)*nEmbd]
		f.model.TokEmbeddings.RowTo(xi, tok)
		tensor.LayerNorm(xi, xi, f.model.Norm.Data, f.model.NormBias.Data)
	}

	scale := float32(1 / math.Sqrt(float64(headDim)))

	for l := range f.model.Layers {
		layer := &f.model.Layers[l]

		// Attention block.
		for i := 0; i < n; i++ {
			tensor.LayerNorm(cur[i*nEmbd:(i+1)*nEmbd], x[i*nEmbd:(i+1)*nEmbd],
				layer.AttnNorm.Data, layer.AttnNormBias.Data)
			qi := qkv[i*3*nEmbd : (i+1)*3*nEmbd]
			tensor.MatVec(qi, layer.QKV, cur[i*nEmbd:(i+1)*nEmbd], f.threads)
			tensor.Add(qi, layer.QKVBias.Data)
			copy(kTmp[i*nEmbd:(i+1)*nEmbd], qi[nEmbd:2*nEmbd])
			copy(vTmp[i*nEmbd:(i+1)*nEmbd], qi[2*nEmbd:3*nEmbd])
		}
		if err := f.cache.Write(l, nPast, kTmp, vTmp); err != nil {
			return nil, err
		}
		kWin, vWin := f.cache.Window(l, span)

		for i := 0; i < n; i++ {
			qPos := nPast + i
			q := qkv[i*3*nEmbd : i*3*nEmbd+nEmbd]
			for h := 0; h < nHead; h++ {
				qh := q[h*headDim : (h+1)*headDim]
				sc := scores[(i*nHead+h)*nCtx : (i*nHead+h)*nCtx+span]
				for j := 0; j <= qPos; j++ {
					dot := tensor.Dot(qh, kWin[j*nEmbd+h*headDim:j*nEmbd+(h+1)*headDim])
					sc[j] = dot*scale - f.slopes[h]*float32(qPos-j)
				}
				maskedSoftmax(sc, qPos)

				out := attn[i*nEmbd+h*headDim : i*nEmbd+(h+1)*headDim]
				for j := 0; j <= qPos; j++ {
					p := sc[j]
					if p == 0 {
						continue
					}
					vj := vWin[j*nEmbd+h*headDim : j*nEmbd+(h+1)*headDim]
					for d := range out {
						out[d] += p * vj[d]
					}
				}
			}
		}

		// Output projection and residual.
		for i := 0; i < n; i++ {
			ci := cur[i*nEmbd : (i+1)*nEmbd]
			tensor.MatVec(ci, layer.Wo, attn[i*nEmbd:(i+1)*nEmbd], f.threads)
			tensor.Add(ci, layer.WoBias.Data)
			tensor.Add(x[i*nEmbd:(i+1)*nEmbd], ci)
		}

		// Feed-forward block.
		for i := 0; i < n; i++ {
			ci := cur[i*nEmbd : (i+1)*nEmbd]
			tensor.LayerNorm(ci, x[i*nEmbd:(i+1)*nEmbd], layer.FFNNorm.Data, layer.FFNNormBias.Data)
			fi := ff[i*nFF : (i+1)*nFF]
			tensor.MatVec(fi, layer.W1, ci, f.threads)
			tensor.Add(fi, layer.W1Bias.Data)
			tensor.Gelu(fi)
			tensor.MatVec(ci, layer.W2, fi, f.threads)
			tensor.Add(ci, layer.W2Bias.Data)
			tensor.Add(x[i*nEmbd:(i+1)*nEmbd], ci)
		}

		// The merged attention output is accumulated in place next layer.
		clear(attn)
	}

	// Final norm and projection, last position only.
	last := cur[:nEmbd]
	tensor.LayerNorm(last, x[(n-1)*nEmbd:n*nEmbd],
		f.model.OutputNorm.Data, f.model.OutputNormBias.Data)
	tensor.MatVec(logits, f.model.Output, last, f.threads)

	f.ws.measure(n)
	return logits, nil
}

// maskedSoftmax normalizes sc to probabilities over positions [0, qPos]
// and forces every causally masked position beyond qPos to exactly zero.
func maskedSoftmax(sc []float32, qPos int) {
	tensor.Softmax(sc[:qPos+1])
	clear(sc[qPos+1:])
}
