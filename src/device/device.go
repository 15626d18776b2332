// Package device binds the synth to host audio and MIDI infrastructure.
package device

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned by backends compiled out of this binary.
var ErrUnavailable = errors.New("backend not available in this build")

// Error is a failure reported by an audio backend. Device errors end the
// render session; nothing retries them.
type Error struct {
	Backend  string
	Op       string // open, start, write, stop, close
	Code     int
	Text     string
	HostAPI  string
	HostCode int
	HostText string
	Err      error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s failed", e.Backend, e.Op)
	if e.Code != 0 {
		s += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Text != "" {
		s += ": " + e.Text
	}
	if e.HostAPI != "" || e.HostText != "" {
		s += fmt.Sprintf(" [host %s #%d: %s]", e.HostAPI, e.HostCode, e.HostText)
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

func toInt16(value float32) int16 {
	if value > 1 {
		value = 1
	} else if value < -1 {
		value = -1
	}
	return int16(value * 32767)
}
