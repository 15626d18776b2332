package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"testing"
	"time"
)

// fakeStream records every buffer it is given.
type fakeStream struct {
	started, stopped bool
	writes           [][]float32
	onWrite          func(n int) error
}

func (s *fakeStream) Start() error {
	s.started = true
	return nil
}

func (s *fakeStream) Write(buf []float32) error {
	s.writes = append(s.writes, append([]float32(nil), buf...))
	if s.onWrite != nil {
		return s.onWrite(len(s.writes))
	}
	return nil
}

func (s *fakeStream) Stop() error {
	s.stopped = true
	return nil
}

func (s *fakeStream) Close() error { return nil }

func newTestSynth(t *testing.T, config *Config) *Synth {
	t.Helper()
	synth, err := NewSynth(config, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { synth.Close() })
	return synth
}

func sineConfig(freqs ...float64) *Config {
	config := DefaultConfig()
	config.ActiveFrequencies = freqs
	config.Waveform = "sine"
	return config
}

func currentConfig(t *testing.T, synth *Synth) *Config {
	t.Helper()
	var config Config
	if err := json.Unmarshal(synth.ToJSON(), &config); err != nil {
		t.Fatal(err)
	}
	return &config
}

func TestNewSynthRejectsInvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.Waveform = "organ"
	_, err := NewSynth(config, "")
	expectConfigError(t, err, "waveform")
}

func TestRenderFillsBothChannels(t *testing.T) {
	synth := newTestSynth(t, DefaultConfig())
	buf := make([]float32, framesPerBuffer*channelNum)
	for i := range buf {
		buf[i] = float32(math.NaN())
	}
	nonZero := 0
	for n := 0; n < 4; n++ {
		synth.Render(buf)
		for i := 0; i < framesPerBuffer; i++ {
			l, r := buf[2*i], buf[2*i+1]
			if l != l || l != r {
				t.Fatalf("frame %d: left %v right %v", i, l, r)
			}
			if l < -1 || l > 1 {
				t.Fatalf("frame %d: %v out of [-1, 1]", i, l)
			}
			if l != 0 {
				nonZero++
			}
		}
	}
	if nonZero == 0 {
		t.Error("expected sound")
	}
}

func TestRenderMatchesSignalPath(t *testing.T) {
	config := sineConfig(440)
	config.Gain = 0.5
	synth := newTestSynth(t, config)
	gen := mustGenerator(t, waveSine, 0, 440)
	filter := mustLowPass(t, config.CutoffHz, config.ResonanceQ)
	buf := make([]float32, 8*channelNum)
	synth.Render(buf)
	for i := 0; i < 8; i++ {
		want := float32(clamp(filter.process(gen.step()) * 0.5))
		expectEqual(t, buf[2*i], want)
	}
	expectEqual(t, buf[0], float32(0))
}

func TestRenderClamps(t *testing.T) {
	config := DefaultConfig()
	config.ActiveFrequencies = []float64{55}
	config.Waveform = "square"
	config.CutoffHz = 20000
	config.ResonanceQ = 20
	config.Gain = 100
	synth := newTestSynth(t, config)
	buf := make([]float32, framesPerBuffer*channelNum)
	synth.Render(buf)
	for _, v := range buf {
		if v < -1 || v > 1 {
			t.Fatalf("%v out of [-1, 1]", v)
		}
	}
	// frame 200 sits in the positive half of the first square cycle
	expectEqual(t, buf[2*200], float32(1))
}

func TestRenderSilence(t *testing.T) {
	synth := newTestSynth(t, sineConfig())
	buf := make([]float32, framesPerBuffer*channelNum)
	synth.Render(buf)
	for _, v := range buf {
		expectEqual(t, v, float32(0))
	}
}

func TestStartEndsOnEOF(t *testing.T) {
	synth := newTestSynth(t, DefaultConfig())
	stream := &fakeStream{onWrite: func(n int) error {
		if n == 3 {
			return io.EOF
		}
		return nil
	}}
	expectNoError(t, synth.Start(context.Background(), stream))
	expectEqual(t, stream.started, true)
	expectEqual(t, stream.stopped, true)
	expectEqual(t, len(stream.writes), 3)
	expectEqual(t, len(stream.writes[0]), framesPerBuffer*channelNum)
}

func TestStartReturnsWriteError(t *testing.T) {
	synth := newTestSynth(t, DefaultConfig())
	failure := errors.New("device unplugged")
	stream := &fakeStream{onWrite: func(n int) error { return failure }}
	err := synth.Start(context.Background(), stream)
	if !errors.Is(err, failure) {
		t.Errorf("expected %v, but got: %v", failure, err)
	}
	expectEqual(t, len(stream.writes), 1)
	expectEqual(t, stream.stopped, true)
}

func TestStartStopsBetweenBuffers(t *testing.T) {
	synth := newTestSynth(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := &fakeStream{onWrite: func(n int) error {
		if n == 2 {
			cancel()
		}
		return nil
	}}
	expectNoError(t, synth.Start(ctx, stream))
	expectEqual(t, len(stream.writes), 2)
	expectEqual(t, stream.stopped, true)
}

func TestUpdateFrequencies(t *testing.T) {
	synth := newTestSynth(t, sineConfig())
	expectNoError(t, synth.Update([]string{"on", "440"}))
	expectNoError(t, synth.Update([]string{"on", "220"}))
	expectNoError(t, synth.Update([]string{"on", "440"}))
	config := currentConfig(t, synth)
	expectEqual(t, fmt.Sprint(config.ActiveFrequencies), "[220 440]")

	expectNoError(t, synth.Update([]string{"off", "220"}))
	expectNoError(t, synth.Update([]string{"note_on", "57"}))
	config = currentConfig(t, synth)
	expectEqual(t, fmt.Sprint(config.ActiveFrequencies), "[220 440]")

	expectNoError(t, synth.Update([]string{"clear"}))
	expectEqual(t, len(currentConfig(t, synth).ActiveFrequencies), 0)
}

func TestUpdateRejectsInvalidCommands(t *testing.T) {
	synth := newTestSynth(t, sineConfig(440))
	before := string(synth.ToJSON())
	for _, command := range [][]string{
		{},
		{"on"},
		{"on", "abc"},
		{"on", "-3"},
		{"note_on", "200"},
		{"set", "wave", "organ"},
		{"set", "filter", "cutoff", "30000"},
		{"set", "filter", "q", "0"},
		{"set", "filter", "gain", "1"},
		{"set", "gain", "-1"},
		{"set", "volume", "1"},
		{"preset", "missing"},
		{"preset", "../etc"},
		{"dance"},
	} {
		if err := synth.Update(command); err == nil {
			t.Errorf("expected %v to be rejected", command)
		}
	}
	expectEqual(t, string(synth.ToJSON()), before)
}

func TestUpdateSettings(t *testing.T) {
	synth := newTestSynth(t, sineConfig(440))
	expectNoError(t, synth.Update([]string{"set", "wave", "square"}))
	expectNoError(t, synth.Update([]string{"set", "filter", "cutoff", "2000"}))
	expectNoError(t, synth.Update([]string{"set", "filter", "q", "0.707"}))
	expectNoError(t, synth.Update([]string{"set", "gain", "0.25"}))
	config := currentConfig(t, synth)
	expectEqual(t, config.Waveform, "square")
	expectEqual(t, config.CutoffHz, 2000.0)
	expectEqual(t, config.ResonanceQ, 0.707)
	expectEqual(t, config.Gain, 0.25)
	expectEqual(t, synth.state.gen.kind, waveSquare)
	expectEqual(t, synth.state.filter.cutoff, 2000.0)
	expectEqual(t, synth.Changes.Has("filter-shape"), true)
}

func TestUpdatePreset(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pad.yaml", "active_frequencies: [220, 330]\nwaveform: triangle\ncutoff_hz: 800\nresonance_q: 0.707\n")
	synth, err := NewSynth(sineConfig(440), dir)
	if err != nil {
		t.Fatal(err)
	}
	defer synth.Close()
	names, err := synth.Presets()
	expectNoError(t, err)
	expectEqual(t, fmt.Sprint(names), "[pad]")

	synth.Changes.Delete("data")
	expectNoError(t, synth.Update([]string{"preset", "pad"}))
	config := currentConfig(t, synth)
	expectEqual(t, fmt.Sprint(config.ActiveFrequencies), "[220 330]")
	expectEqual(t, config.Waveform, "triangle")
	expectEqual(t, synth.state.filter.cutoff, 800.0)
	expectEqual(t, synth.Changes.Has("data"), true)
}

func TestUpdatePresetReseedsNoise(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "n.yaml", "active_frequencies: [220, 440]\nwaveform: noise\nnoise_seed: 99\n")
	config := sineConfig(220, 440)
	config.Waveform = "noise"
	synth, err := NewSynth(config, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer synth.Close()
	synth.Render(make([]float32, framesPerBuffer*channelNum))

	expectNoError(t, synth.Update([]string{"preset", "n"}))
	expectEqual(t, currentConfig(t, synth).NoiseSeed, int64(99))
	fresh, err := newGenerator(waveNoise, newFrequencySet(220, 440), 0, 99)
	expectNoError(t, err)
	for i := 0; i < 1000; i++ {
		got := synth.state.gen.step()
		want := fresh.step()
		if got != want {
			t.Fatalf("sample %d: got %v, want %v", i, got, want)
		}
	}
}

func TestAddMidiEvent(t *testing.T) {
	synth := newTestSynth(t, sineConfig())
	synth.AddMidiEvent([]byte{0x90, 69, 100})
	synth.AddMidiEvent([]byte{0x91, 57, 64})
	expectEqual(t, fmt.Sprint(currentConfig(t, synth).ActiveFrequencies), "[220 440]")
	synth.AddMidiEvent([]byte{0x80, 69, 0})
	synth.AddMidiEvent([]byte{0x90, 57, 0})
	expectEqual(t, len(currentConfig(t, synth).ActiveFrequencies), 0)
	synth.AddMidiEvent([]byte{0xb0, 64, 127})
	synth.AddMidiEvent([]byte{0x90})
	expectEqual(t, len(currentConfig(t, synth).ActiveFrequencies), 0)
}

func TestCommandChannel(t *testing.T) {
	synth, err := NewSynth(sineConfig(), "")
	if err != nil {
		t.Fatal(err)
	}
	synth.CommandCh <- []string{"on", "440"}
	deadline := time.Now().Add(2 * time.Second)
	for len(currentConfig(t, synth).ActiveFrequencies) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("command was not applied")
		}
		time.Sleep(time.Millisecond)
	}
	expectNoError(t, synth.Close())
	expectNoError(t, synth.Close())
}

func TestGetFFT(t *testing.T) {
	config := sineConfig(441)
	config.CutoffHz = 5000
	config.ResonanceQ = 0.707
	synth := newTestSynth(t, config)
	buf := make([]float32, framesPerBuffer*channelNum)
	for i := 0; i < 3; i++ {
		synth.Render(buf)
	}
	result := synth.GetFFT()
	expectEqual(t, len(result), fftSize/2)
	peak := 0
	for i, v := range result {
		if v > result[peak] {
			peak = i
		}
	}
	// 441 Hz falls between bins 20 and 21
	if peak != 20 && peak != 21 {
		t.Errorf("expected the peak near 441 Hz, but got bin %d", peak)
	}
}

func TestGetFilterShape(t *testing.T) {
	synth := newTestSynth(t, DefaultConfig())
	shape := synth.GetFilterShape()
	expectEqual(t, len(shape), fftSize/2)
	expectNearlyEqual(t, shape[0], 1)
	if shape[len(shape)-1] > 0.01 {
		t.Errorf("expected near-Nyquist attenuation, but got %v", shape[len(shape)-1])
	}
	// resonance peak near 1 kHz (bin ~46)
	if shape[46] < 1.5 {
		t.Errorf("expected a resonant peak, but got %v", shape[46])
	}
}

func TestBenchmark(t *testing.T) {
	polyphony := 10
	times := 200

	config := DefaultConfig()
	config.ActiveFrequencies = nil
	for n := 0; n < polyphony; n++ {
		config.ActiveFrequencies = append(config.ActiveFrequencies, noteToFreq(48+n))
	}
	synth := newTestSynth(t, config)
	out := make([]float32, framesPerBuffer*channelNum)
	start := time.Now()
	for n := 0; n < times; n++ {
		synth.Render(out)
	}
	averageProcessTime := float64(time.Since(start).Microseconds()) / float64(times) / 1000
	fmt.Printf("average process time: %.3fms\n", averageProcessTime)
}
