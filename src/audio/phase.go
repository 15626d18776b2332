package audio

import "math"

const twoPi = 2.0 * math.Pi

// advancePhase moves phase forward by one sample of freq and wraps it into [0, 2π).
func advancePhase(freq float64, phase *float64) {
	*phase += twoPi * freq / sampleRate
	if *phase >= twoPi {
		*phase -= twoPi
		if *phase >= twoPi {
			// only reachable when freq >= sampleRate
			*phase = math.Mod(*phase, twoPi)
		}
	}
}
