//go:build !headless

package device

import (
	"context"
	"log"
	"strings"

	"gitlab.com/gomidi/rtmididrv"
)

// ListenToMidiIn forwards raw messages from a MIDI input until ctx is done.
// portName picks the first input whose name contains it; empty means the first input.
// The channel is closed when listening stops or no input could be opened.
func ListenToMidiIn(ctx context.Context, portName string) <-chan []byte {
	ch := make(chan []byte, 1024)
	go func() {
		defer close(ch)
		drv, err := rtmididrv.New()
		if err != nil {
			log.Printf("failed to initialize MIDI driver: %v\n", err)
			return
		}
		defer func() {
			if err := drv.Close(); err != nil {
				log.Printf("failed to close MIDI driver: %v\n", err)
			}
		}()
		ins, err := drv.Ins()
		if err != nil {
			log.Printf("failed to get MIDI IN: %v\n", err)
			return
		}
		log.Printf("MIDI IN: %v\n", ins)

		index := -1
		for i, in := range ins {
			if strings.Contains(in.String(), portName) {
				index = i
				break
			}
		}
		if index < 0 {
			log.Printf("WARN: MIDI IN %q not found\n", portName)
			return
		}
		in := ins[index]
		if err := in.Open(); err != nil {
			log.Printf("failed to open MIDI IN: %v\n", err)
			return
		}
		log.Println("opened " + in.String())
		defer func() {
			if err := in.Close(); err != nil {
				log.Printf("failed to close MIDI IN: %v\n", err)
			}
		}()
		if err := in.SetListener(func(data []byte, deltaMicroseconds int64) {
			msg := append([]byte(nil), data...)
			select {
			case ch <- msg:
			default:
				log.Println("[WARN] MIDI queue full, message dropped")
			}
		}); err != nil {
			log.Println("failed to set listener: " + err.Error())
			return
		}
		defer func() {
			log.Println("stop listening MIDI IN...")
			if err := in.StopListening(); err != nil {
				log.Printf("failed to stop listening: %v\n", err)
			}
		}()
		<-ctx.Done()
	}()
	return ch
}
