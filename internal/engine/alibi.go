package engine

import "math"

// alibiSlopes returns the per-head attention bias slopes. For a head
// count that is a power of two the slopes form the geometric sequence
// 2^(-8/n), 2^(-16/n), ...; otherwise the sequence for the largest power
// of two below nHead is extended with the odd terms of the next
// sequence, interleaving slope magnitudes. Head 0 always carries the
// steepest slope of its sequence.
func alibiSlopes(nHead int) []float32 {
	pow := 1
	for pow*2 <= nHead {
		pow *= 2
	}

	slopes := make([]float32, nHead)
	base := math.Pow(2, -8.0/float64(pow))
	for i := 0; i < pow; i++ {
		slopes[i] = float32(math.Pow(base, float64(i+1)))
	}
	if pow < nHead {
		extra := math.Pow(2, -4.0/float64(pow))
		for i := pow; i < nHead; i++ {
			slopes[i] = float32(math.Pow(extra, float64(2*(i-pow)+1)))
		}
	}
	return slopes
}
