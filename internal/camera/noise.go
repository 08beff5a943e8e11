package camera

import "math"

// octaves of the drift noise: frequency multiplier and amplitude.
var octaves = [...]struct{ freq, amp float64 }{
	{1.0, 1.0},
	{2.3, 0.5},
	{5.1, 0.25},
}

// axis seeds decorrelate the three noise channels.
var axisSeeds = [3]float64{0, 17.31, 41.07}

// smoothNoise is a cheap deterministic pseudo-noise in [-1, 1].
func smoothNoise(x float64) float64 {
	return (math.Sin(x)*0.6 + math.Sin(x*1.73+1.1)*0.3 + math.Sin(x*3.17+2.3)*0.1)
}

// layeredNoise sums the octaves and normalizes back into [-1, 1].
func layeredNoise(phase, seed float64) float64 {
	var sum, norm float64
	for _, o := range octaves {
		sum += smoothNoise(phase*o.freq+seed) * o.amp
		norm += o.amp
	}
	return sum / norm
}
