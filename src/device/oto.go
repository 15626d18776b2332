//go:build !headless

package device

import (
	"log"

	"github.com/hajimehoshi/oto"
)

const bitDepthInBytes = 2

// Oto plays 16-bit frames through an oto player. The player's Write blocks
// while its buffer is full.
type Oto struct {
	otoContext *oto.Context
	player     *oto.Player
	bytes      []byte
	channels   int
}

// OpenOto creates the process-wide oto context. Only one may exist at a time.
func OpenOto(sampleRate int, framesPerBuffer int, channels int) (*Oto, error) {
	bufferSizeInBytes := framesPerBuffer * channels * bitDepthInBytes // should be >= 4096
	otoContext, err := oto.NewContext(sampleRate, channels, bitDepthInBytes, bufferSizeInBytes)
	if err != nil {
		return nil, &Error{Backend: "oto", Op: "open", Text: err.Error(), Err: err}
	}
	return &Oto{
		otoContext: otoContext,
		bytes:      make([]byte, bufferSizeInBytes),
		channels:   channels,
	}, nil
}

// Start ...
func (o *Oto) Start() error {
	if o.player == nil {
		o.player = o.otoContext.NewPlayer()
	}
	return nil
}

// Write ...
func (o *Oto) Write(buf []float32) error {
	if o.player == nil {
		return &Error{Backend: "oto", Op: "write", Text: "stream not started"}
	}
	n := len(buf) * bitDepthInBytes
	if cap(o.bytes) < n {
		o.bytes = make([]byte, n)
	}
	bytes := o.bytes[:n]
	for i, value := range buf {
		b := toInt16(value)
		bytes[2*i] = byte(b)
		bytes[2*i+1] = byte(b >> 8)
	}
	if _, err := o.player.Write(bytes); err != nil {
		return &Error{Backend: "oto", Op: "write", Text: err.Error(), Err: err}
	}
	return nil
}

// Stop ...
func (o *Oto) Stop() error {
	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	if err != nil {
		return &Error{Backend: "oto", Op: "stop", Text: err.Error(), Err: err}
	}
	return nil
}

// Close ...
func (o *Oto) Close() error {
	log.Println("Closing oto...")
	if err := o.Stop(); err != nil {
		log.Printf("error: %v", err)
	}
	if err := o.otoContext.Close(); err != nil {
		return &Error{Backend: "oto", Op: "close", Text: err.Error(), Err: err}
	}
	return nil
}
