package audio

import (
	"fmt"
	"math"
)

// ----- Biquad Low-Pass ----- //

type biquad struct {
	cutoff float64
	q      float64
	// a0 is normalized to 1
	b0, b1, b2 float64
	a1, a2     float64
	x1, x2     float64
	y1, y2     float64
}

func newLowPass(cutoff float64, q float64) (*biquad, error) {
	f := &biquad{}
	if err := f.setLowPass(cutoff, q); err != nil {
		return nil, err
	}
	return f, nil
}

func checkLowPass(cutoff float64, q float64) error {
	if math.IsNaN(cutoff) || cutoff <= 0 || cutoff >= sampleRate/2 {
		return &ConfigError{Field: "cutoff_hz", Value: fmt.Sprint(cutoff), Reason: fmt.Sprintf("must be in (0, %v)", sampleRate/2)}
	}
	if math.IsNaN(q) || math.IsInf(q, 0) || q <= 0 {
		return &ConfigError{Field: "resonance_q", Value: fmt.Sprint(q), Reason: "must be positive"}
	}
	return nil
}

// setLowPass derives the coefficients. History is kept, so changing
// cutoff or Q while running does not click.
func (f *biquad) setLowPass(cutoff float64, q float64) error {
	if err := checkLowPass(cutoff, q); err != nil {
		return err
	}
	// from RBJ's cookbook
	w0 := twoPi * cutoff / sampleRate
	cosw0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha
	f.cutoff = cutoff
	f.q = q
	f.b0 = (1 - cosw0) / 2 / a0
	f.b1 = (1 - cosw0) / a0
	f.b2 = f.b0
	f.a1 = -2 * cosw0 / a0
	f.a2 = (1 - alpha) / a0
	return nil
}

func (f *biquad) process(in float64) float64 {
	out := f.b0*in + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2 = f.x1
	f.x1 = in
	f.y2 = f.y1
	f.y1 = out
	return out
}

func (f *biquad) reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}

// dcGain is the analytic response at 0 Hz.
func (f *biquad) dcGain() float64 {
	return (f.b0 + f.b1 + f.b2) / (1 + f.a1 + f.a2)
}

// impulseResponse runs a copy of f with cleared history.
func (f *biquad) impulseResponse(n int) []float64 {
	c := *f
	c.reset()
	out := make([]float64, n)
	for i := range out {
		in := 0.0
		if i == 0 {
			in = 1
		}
		out[i] = c.process(in)
	}
	return out
}
