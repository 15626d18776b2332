//go:build !headless

package device

import (
	"errors"
	"fmt"
	"log"

	"github.com/gordonklaus/portaudio"
)

const paUnanticipatedHostError = -9999

// PortAudio is a blocking-write PortAudio output stream.
type PortAudio struct {
	stream *portaudio.Stream
	buf    []float32 // bound to the stream at open
}

// OpenPortAudio initializes PortAudio and opens an interleaved float32 output
// stream on the device called deviceName, or the default output device when
// deviceName is empty.
func OpenPortAudio(deviceName string, sampleRate float64, framesPerBuffer int, channels int) (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, paError("open", err)
	}
	pa, err := openPortAudio(deviceName, sampleRate, framesPerBuffer, channels)
	if err != nil {
		if err := portaudio.Terminate(); err != nil {
			log.Printf("error while terminating portaudio: %v", err)
		}
		return nil, err
	}
	return pa, nil
}

func openPortAudio(deviceName string, sampleRate float64, framesPerBuffer int, channels int) (*PortAudio, error) {
	dev, err := findOutputDevice(deviceName)
	if err != nil {
		return nil, err
	}
	p := portaudio.LowLatencyParameters(nil, dev)
	p.Input.Channels = 0
	p.Output.Channels = channels
	p.SampleRate = sampleRate
	p.FramesPerBuffer = framesPerBuffer
	p.Flags = portaudio.ClipOff // samples are clamped before they get here
	buf := make([]float32, framesPerBuffer*channels)
	stream, err := portaudio.OpenStream(p, buf)
	if err != nil {
		return nil, paError("open", err)
	}
	log.Printf("opened output %q (latency %v)\n", dev.Name, p.Output.Latency)
	return &PortAudio{stream: stream, buf: buf}, nil
}

func findOutputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		dev, err := portaudio.DefaultOutputDevice()
		if err != nil {
			return nil, paError("open", err)
		}
		return dev, nil
	}
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, paError("open", err)
	}
	for _, dev := range devs {
		if dev.Name == name && dev.MaxOutputChannels > 0 {
			return dev, nil
		}
	}
	return nil, &Error{Backend: "portaudio", Op: "open", Text: fmt.Sprintf("no output device named %q", name)}
}

// OutputDevices lists the names of devices that can play.
func OutputDevices() ([]string, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, paError("open", err)
	}
	defer func() {
		if err := portaudio.Terminate(); err != nil {
			log.Printf("error while terminating portaudio: %v", err)
		}
	}()
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, paError("open", err)
	}
	var names []string
	for _, dev := range devs {
		if dev.MaxOutputChannels > 0 {
			names = append(names, dev.Name)
		}
	}
	return names, nil
}

// Start ...
func (p *PortAudio) Start() error {
	if err := p.stream.Start(); err != nil {
		return paError("start", err)
	}
	return nil
}

// Write copies buf into the stream buffer and blocks until PortAudio accepts it.
func (p *PortAudio) Write(buf []float32) error {
	if len(buf) != len(p.buf) {
		return &Error{Backend: "portaudio", Op: "write", Text: fmt.Sprintf("buffer has %d samples, stream expects %d", len(buf), len(p.buf))}
	}
	copy(p.buf, buf)
	err := p.stream.Write()
	if errors.Is(err, portaudio.OutputUnderflowed) {
		log.Println("[WARN] output underflowed")
		return nil
	}
	if err != nil {
		return paError("write", err)
	}
	return nil
}

// Stop ...
func (p *PortAudio) Stop() error {
	if err := p.stream.Stop(); err != nil {
		return paError("stop", err)
	}
	return nil
}

// Close closes the stream and terminates PortAudio.
func (p *PortAudio) Close() error {
	log.Println("Closing PortAudio...")
	err := p.stream.Close()
	if terr := portaudio.Terminate(); err == nil && terr != nil {
		err = terr
	}
	if err != nil {
		return paError("close", err)
	}
	return nil
}

func paError(op string, err error) error {
	e := &Error{Backend: "portaudio", Op: op, Text: err.Error(), Err: err}
	var code portaudio.Error
	var host portaudio.UnanticipatedHostError
	switch {
	case errors.As(err, &host):
		e.Code = paUnanticipatedHostError
		e.Text = "unanticipated host error"
		e.HostAPI = fmt.Sprint(host.HostApiType)
		e.HostCode = host.Code
		e.HostText = host.Text
	case errors.As(err, &code):
		e.Code = int(code)
	}
	return e
}
