package tensor

import (
	"math"
	"testing"
)

func TestLayerNormZeroMeanUnitVar(t *testing.T) {
	src := []float32{1, 2, 3, 4}
	weight := []float32{1, 1, 1, 1}
	bias := []float32{0, 0, 0, 0}
	dst := make([]float32, 4)
	LayerNorm(dst, src, weight, bias)

	var mean float64
	for _, v := range dst {
		mean += float64(v)
	}
	mean /= 4
	if math.Abs(mean) > 1e-5 {
		t.Fatalf("expected zero mean, got %v", mean)
	}

	var variance float64
	for _, v := range dst {
		variance += float64(v) * float64(v)
	}
	variance /= 4
	if math.Abs(variance-1) > 1e-3 {
		t.Fatalf("expected unit variance, got %v", variance)
	}
}

func TestLayerNormScaleShift(t *testing.T) {
	src := []float32{-1, 1}
	weight := []float32{2, 2}
	bias := []float32{3, 3}
	dst := make([]float32, 2)
	LayerNorm(dst, src, weight, bias)
	// normalized values are roughly -1 and +1, so outputs near 1 and 5
	if dst[0] >= dst[1] {
		t.Fatalf("order not preserved: %v", dst)
	}
	if math.Abs(float64(dst[0]+dst[1])-6) > 1e-2 {
		t.Fatalf("shift not applied: %v", dst)
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	x := []float32{0.5, -1, 3, 2}
	Softmax(x)
	var sum float64
	for _, v := range x {
		if v < 0 {
			t.Fatalf("negative probability %v", v)
		}
		sum += float64(v)
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("probabilities sum to %v", sum)
	}
}

func TestSoftmaxMaskedEntryIsZero(t *testing.T) {
	x := []float32{1, 2, float32(math.Inf(-1))}
	Softmax(x)
	if x[2] != 0 {
		t.Fatalf("masked entry should be exactly zero, got %v", x[2])
	}
}

func TestGeluKnownValues(t *testing.T) {
	x := []float32{0, 1, -1}
	Gelu(x)
	if x[0] != 0 {
		t.Fatalf("gelu(0) = %v", x[0])
	}
	if math.Abs(float64(x[1])-0.8412) > 1e-3 {
		t.Fatalf("gelu(1) = %v", x[1])
	}
	if math.Abs(float64(x[2])+0.1588) > 1e-3 {
		t.Fatalf("gelu(-1) = %v", x[2])
	}
}
