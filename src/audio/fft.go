package audio

import (
	"math/cmplx"

	"github.com/ktye/fft"
)

// ----- Spectrum ----- //

type spectrum struct {
	fft fft.FFT
	buf []complex128
	abs []float64
}

func newSpectrum(size int) *spectrum {
	f, err := fft.New(size)
	if err != nil {
		panic(err)
	}
	return &spectrum{
		fft: f,
		buf: make([]complex128, size),
		abs: make([]float64, size/2),
	}
}

// calcAbs returns the magnitudes of the lower half of the spectrum of x.
// The returned slice is reused by the next call.
func (s *spectrum) calcAbs(x []float64) []float64 {
	for i := range s.buf {
		s.buf[i] = complex(x[i], 0)
	}
	s.buf = s.fft.Transform(s.buf)
	for i := range s.abs {
		s.abs[i] = cmplx.Abs(s.buf[i])
	}
	return s.abs
}
