package audio

import (
	"math"
	"math/rand"
)

// waveFunc evaluates one voice at its current phase and then advances the phase.
type waveFunc func(freq float64, phase *float64, rnd *rand.Rand) float64

var waveFuncs = [...]waveFunc{
	waveSine:     sineWave,
	waveSaw:      sawWave,
	waveSquare:   squareWave,
	waveTriangle: triangleWave,
	waveNoise:    noiseWave,
}

func sineWave(freq float64, phase *float64, _ *rand.Rand) float64 {
	value := math.Sin(*phase)
	advancePhase(freq, phase)
	return value
}

func sawWave(freq float64, phase *float64, _ *rand.Rand) float64 {
	value := 2*(*phase/twoPi) - 1
	advancePhase(freq, phase)
	return value
}

func squareWave(freq float64, phase *float64, _ *rand.Rand) float64 {
	value := -1.0
	if *phase < math.Pi {
		value = 1
	}
	advancePhase(freq, phase)
	return value
}

func triangleWave(freq float64, phase *float64, _ *rand.Rand) float64 {
	var value float64
	if *phase < math.Pi {
		value = -1 + (2/math.Pi)*(*phase)
	} else {
		value = 3 - (2/math.Pi)*(*phase)
	}
	advancePhase(freq, phase)
	return value
}

// noiseWave ignores phase but still advances it so every voice keeps ticking.
func noiseWave(freq float64, phase *float64, rnd *rand.Rand) float64 {
	value := float64(rnd.Intn(3) - 1)
	advancePhase(freq, phase)
	return value
}
