package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"

	"github.com/jinjor/oscfilter/src/audio"
	"github.com/jinjor/oscfilter/src/device"
	"golang.org/x/sync/errgroup"
)

var (
	seconds    = flag.Float64("seconds", 3, "length of each file")
	configPath = flag.String("config", "", "YAML config file; its waveform is overridden per file")
)

func main() {
	flag.Parse()
	dir := flag.Arg(0)
	if dir == "" {
		log.Fatal("dir is not passed")
	}
	log.SetFlags(log.Lshortfile)

	config := audio.DefaultConfig()
	if *configPath != "" {
		var err error
		config, err = audio.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("error: %v\n", err)
		}
	}

	frames, err := audio.DurationFrames(*seconds)
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}

	g, ctx := errgroup.WithContext(context.Background())
	for _, kind := range audio.WaveKinds() {
		kind := kind
		g.Go(func() error {
			c := *config
			c.Waveform = kind
			path := filepath.Join(dir, kind+".wav")
			if err := render(ctx, &c, path, frames); err != nil {
				return err
			}
			log.Printf("saved %s\n", path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("error: %v\n", err)
	}
	log.Println("Successfully rendered all waveforms.")
}

func render(ctx context.Context, config *audio.Config, path string, frames int) (err error) {
	synth, err := audio.NewSynth(config, "")
	if err != nil {
		return err
	}
	defer synth.Close()
	w, err := device.CreateWAV(path, audio.SampleRate, audio.ChannelNum, frames)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	return synth.Start(ctx, w)
}
