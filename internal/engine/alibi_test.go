package engine

import (
	"math"
	"testing"
)

// TestAlibiSlopesPowerOfTwo checks the geometric sequence and that lower
// head index means a steeper slope.
func TestAlibiSlopesPowerOfTwo(t *testing.T) {
	slopes := alibiSlopes(4)

	want := []float64{1.0 / 4, 1.0 / 16, 1.0 / 64, 1.0 / 256}
	for i, w := range want {
		if math.Abs(float64(slopes[i])-w) > 1e-7 {
			t.Errorf("slope[%d] = %v, want %v", i, slopes[i], w)
		}
	}
	for i := 1; i < len(slopes); i++ {
		if slopes[i] >= slopes[i-1] {
			t.Errorf("slope[%d]=%v not below slope[%d]=%v", i, slopes[i], i-1, slopes[i-1])
		}
	}
}

// TestAlibiSlopesInterleaved checks the odd-exponent extension for a
// non-power-of-two head count.
func TestAlibiSlopesInterleaved(t *testing.T) {
	slopes := alibiSlopes(6)

	want := []float64{
		math.Pow(2, -2), math.Pow(2, -4), math.Pow(2, -6), math.Pow(2, -8),
		math.Pow(2, -1), math.Pow(2, -3),
	}
	for i, w := range want {
		if math.Abs(float64(slopes[i])-w) > 1e-7 {
			t.Errorf("slope[%d] = %v, want %v", i, slopes[i], w)
		}
	}
}

// TestAlibiBiasMonotonic checks the bias grows strictly more negative
// with query-key distance for a fixed head.
func TestAlibiBiasMonotonic(t *testing.T) {
	slopes := alibiSlopes(8)
	for h, slope := range slopes {
		if slope <= 0 {
			t.Fatalf("head %d: slope %v not positive", h, slope)
		}
		prev := float32(0)
		for dist := 1; dist < 16; dist++ {
			bias := -slope * float32(dist)
			if bias >= prev {
				t.Fatalf("head %d: bias at distance %d is %v, not below %v", h, dist, bias, prev)
			}
			prev = bias
		}
	}
}
