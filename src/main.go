package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jinjor/oscfilter/src/audio"
	"github.com/jinjor/oscfilter/src/device"
	"golang.org/x/sync/errgroup"
)

var (
	configPath  = flag.String("config", "", "YAML config file (defaults to an A major chord)")
	backend     = flag.String("backend", "portaudio", "output backend: portaudio, oto or wav")
	deviceName  = flag.String("device", "", "PortAudio output device name (default device if empty)")
	listDevices = flag.Bool("list-devices", false, "print PortAudio output devices and exit")
	wavPath     = flag.String("out", "out.wav", "output file for the wav backend")
	seconds     = flag.Float64("seconds", 10, "length of the wav backend output")
	sockPath    = flag.String("sock", "", "unix socket for control commands and reports")
	presetDir   = flag.String("presets", "presets", "directory of YAML presets")
	midiIn      = flag.Bool("midi", false, "play notes from MIDI IN")
	midiPort    = flag.String("midi-port", "", "MIDI IN port name (first port if empty)")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Lshortfile)

	if err := run(); err != nil {
		log.Printf("error: %v\n", err)
		var devErr *device.Error
		if errors.As(err, &devErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	log.Println("main() ended.")
}

func run() error {
	if *listDevices {
		names, err := device.OutputDevices()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	config := audio.DefaultConfig()
	if *configPath != "" {
		var err error
		config, err = audio.LoadConfig(*configPath)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	synth, err := audio.NewSynth(config, *presetDir)
	if err != nil {
		return err
	}
	defer synth.Close()

	stream, err := openStream(*backend)
	if err != nil {
		return err
	}
	defer func() {
		if err := stream.Close(); err != nil {
			log.Printf("error while closing stream: %v", err)
		}
	}()

	g, ctx := errgroup.WithContext(ctx)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	go func() {
		select {
		case sig := <-signalCh:
			log.Printf("Caught signal %s: shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	g.Go(func() error {
		// the render loop ending (wav budget reached) ends everything else
		defer cancel()
		return synth.Start(ctx, stream)
	})
	if *sockPath != "" {
		g.Go(func() error {
			return withIPCConnection(ctx, *sockPath, func(conn net.Conn) error {
				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					return receiveCommands(ctx, conn, synth.CommandCh)
				})
				g.Go(func() error {
					return sendReports(ctx, conn, synth)
				})
				return g.Wait()
			})
		})
	}
	if *midiIn {
		g.Go(func() error {
			for data := range device.ListenToMidiIn(ctx, *midiPort) {
				synth.AddMidiEvent(data)
			}
			return nil
		})
	}
	return g.Wait()
}

func openStream(name string) (audio.Stream, error) {
	switch name {
	case "portaudio":
		s, err := device.OpenPortAudio(*deviceName, audio.SampleRate, audio.FramesPerBuffer, audio.ChannelNum)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "oto":
		s, err := device.OpenOto(audio.SampleRate, audio.FramesPerBuffer, audio.ChannelNum)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "wav":
		frames, err := audio.DurationFrames(*seconds)
		if err != nil {
			return nil, err
		}
		s, err := device.CreateWAV(*wavPath, audio.SampleRate, audio.ChannelNum, frames)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown backend %q", name)
}

func withIPCConnection(ctx context.Context, sockFileName string, f func(net.Conn) error) error {
	os.Remove(sockFileName)
	listener, err := new(net.ListenConfig).Listen(ctx, "unix", sockFileName)
	if err != nil {
		return err
	}
	defer func() {
		log.Println("Closing IPC...")
		err := listener.Close()
		if err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("error while closing listener: %v", err)
		}
		os.Remove(sockFileName)
	}()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	log.Printf("start listening on %s...\n", sockFileName)
	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer func() {
		err := conn.Close()
		if err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("error while closing connection: %v", err)
		}
	}()
	go func() {
		// unblocks ReadLine
		<-ctx.Done()
		conn.SetReadDeadline(time.Now())
	}()
	return f(conn)
}

func receiveCommands(ctx context.Context, conn net.Conn, commandCh chan<- []string) error {
	reader := bufio.NewReader(conn)
	var line []byte
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("Connection interrupted")
			break loop
		default:
		}
		next, isPrefix, err := reader.ReadLine()
		if err == io.EOF || ctx.Err() != nil {
			break loop
		}
		if err != nil {
			return err
		}
		line = append(line, next...)
		if isPrefix {
			continue
		}
		command, err := parseCommand(string(line))
		line = line[:0]
		if err != nil {
			log.Printf("malformed command: %v\n", err)
			continue
		}
		if len(command) == 0 {
			continue
		}
		log.Printf("received: %v\n", command)
		commandCh <- command
	}
	log.Println("receiveCommands() ended.")
	return nil
}

func parseCommand(line string) ([]string, error) {
	lineStr := strings.Fields(line)
	for i, item := range lineStr {
		escaped, err := url.QueryUnescape(item)
		if err != nil {
			return nil, err
		}
		lineStr[i] = escaped
	}
	return lineStr, nil
}

func formatValues(name string, values []float64) string {
	var b strings.Builder
	b.WriteString(name)
	for _, value := range values {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(value, 'f', 6, 64))
	}
	b.WriteByte('\n')
	return b.String()
}

func sendReports(ctx context.Context, conn net.Conn, synth *audio.Synth) error {
	t := time.NewTicker(time.Second / 60)
	defer t.Stop()
	write := func(s string) error {
		_, err := conn.Write([]byte(s))
		return err
	}
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("sendReports() interrupted")
			break loop
		case <-t.C:
			if synth.Changes.Has("data") {
				synth.Changes.Delete("data")
				if err := write("state " + string(synth.ToJSON()) + "\n"); err != nil {
					return err
				}
			}
			if synth.Changes.Has("filter-shape") {
				synth.Changes.Delete("filter-shape")
				if err := write(formatValues("filter_shape", synth.GetFilterShape())); err != nil {
					return err
				}
			}
			if err := write(formatValues("fft", synth.GetFFT())); err != nil {
				return err
			}
		}
	}
	log.Println("sendReports() ended.")
	return nil
}
