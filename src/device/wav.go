package device

import (
	"io"
	"log"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// WAV writes frames to a 16-bit PCM file. It never blocks, so a render loop
// writing to it runs as fast as it can; once maxFrames frames are written
// Write returns io.EOF.
type WAV struct {
	f         *os.File
	enc       *wav.Encoder
	buf       *audio.IntBuffer
	channels  int
	remaining int // frames; < 0 means unlimited
}

// CreateWAV creates path. maxFrames <= 0 means no limit.
func CreateWAV(path string, sampleRate int, channels int, maxFrames int) (*WAV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &Error{Backend: "wav", Op: "open", Text: err.Error(), Err: err}
	}
	remaining := maxFrames
	if remaining <= 0 {
		remaining = -1
	}
	return &WAV{
		f:   f,
		enc: wav.NewEncoder(f, sampleRate, wavBitDepth, channels, 1),
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: wavBitDepth,
		},
		channels:  channels,
		remaining: remaining,
	}, nil
}

// Start ...
func (w *WAV) Start() error { return nil }

// Write encodes buf, truncated to the remaining frame budget.
func (w *WAV) Write(buf []float32) error {
	if w.remaining == 0 {
		return io.EOF
	}
	frames := len(buf) / w.channels
	if w.remaining > 0 && frames > w.remaining {
		frames = w.remaining
	}
	n := frames * w.channels
	if cap(w.buf.Data) < n {
		w.buf.Data = make([]int, n)
	}
	w.buf.Data = w.buf.Data[:n]
	for i := 0; i < n; i++ {
		w.buf.Data[i] = int(toInt16(buf[i]))
	}
	if err := w.enc.Write(w.buf); err != nil {
		return &Error{Backend: "wav", Op: "write", Text: err.Error(), Err: err}
	}
	if w.remaining > 0 {
		w.remaining -= frames
	}
	return nil
}

// Stop ...
func (w *WAV) Stop() error { return nil }

// Close finalizes the header and closes the file.
func (w *WAV) Close() error {
	log.Printf("Closing %s...\n", w.f.Name())
	err := w.enc.Close()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &Error{Backend: "wav", Op: "close", Text: err.Error(), Err: err}
	}
	return nil
}
