//go:build headless

package device

import (
	"context"
)

// PortAudio is unavailable in headless builds.
type PortAudio struct{ unavailable }

// OpenPortAudio always fails in headless builds.
func OpenPortAudio(deviceName string, sampleRate float64, framesPerBuffer int, channels int) (*PortAudio, error) {
	return nil, &Error{Backend: "portaudio", Op: "open", Text: ErrUnavailable.Error(), Err: ErrUnavailable}
}

// OutputDevices always fails in headless builds.
func OutputDevices() ([]string, error) {
	return nil, &Error{Backend: "portaudio", Op: "open", Text: ErrUnavailable.Error(), Err: ErrUnavailable}
}

// Oto is unavailable in headless builds.
type Oto struct{ unavailable }

// OpenOto always fails in headless builds.
func OpenOto(sampleRate int, framesPerBuffer int, channels int) (*Oto, error) {
	return nil, &Error{Backend: "oto", Op: "open", Text: ErrUnavailable.Error(), Err: ErrUnavailable}
}

type unavailable struct{}

func (unavailable) Start() error          { return ErrUnavailable }
func (unavailable) Write([]float32) error { return ErrUnavailable }
func (unavailable) Stop() error           { return nil }
func (unavailable) Close() error          { return nil }

// ListenToMidiIn returns a closed channel in headless builds.
func ListenToMidiIn(ctx context.Context, portName string) <-chan []byte {
	ch := make(chan []byte)
	close(ch)
	return ch
}
