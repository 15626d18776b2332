package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"sync"
)

const (
	sampleRate      = 44100
	channelNum      = 2
	framesPerBuffer = 1024
	fftSize         = 2048 // multiple of framesPerBuffer
	baseFreq        = 440.0
)

// SampleRate is the rate every stream is opened with.
const SampleRate = sampleRate

// FramesPerBuffer is the number of frames rendered per stream write.
const FramesPerBuffer = framesPerBuffer

// ChannelNum is the number of interleaved output channels.
const ChannelNum = channelNum

// ----- Utility ----- //

func noteToFreq(note int) float64 {
	return baseFreq * math.Pow(2, float64(note-69)/12)
}
func toRawMessage(v interface{}) json.RawMessage {
	bytes, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return json.RawMessage(bytes)
}
func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// ----- Stream ----- //

// Stream is an output device taking interleaved stereo float32 frames.
// Write blocks until the device has room for buf.
type Stream interface {
	Start() error
	Write(buf []float32) error
	Stop() error
	Close() error
}

// ----- Changes ----- //

// Changes records which reports are stale.
type Changes struct {
	sync.Mutex
	dict map[string]struct{}
}

// Add ...
func (c *Changes) Add(key string) {
	c.Lock()
	c.dict[key] = struct{}{}
	c.Unlock()
}

// Has ...
func (c *Changes) Has(key string) bool {
	c.Lock()
	_, ok := c.dict[key]
	c.Unlock()
	return ok
}

// Delete ...
func (c *Changes) Delete(key string) {
	c.Lock()
	delete(c.dict, key)
	c.Unlock()
}

// ----- State ----- //

type state struct {
	sync.Mutex
	config  *Config
	freqs   frequencySet
	gen     *generator
	filter  *biquad
	presets *presetManager
	pos     int64
	out     []float64 // length: fftSize
}

func newState(config *Config, presetDir string) (*state, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.clone()
	kind, _ := waveKindFromString(config.Waveform)
	freqs := newFrequencySet(config.ActiveFrequencies...)
	config.ActiveFrequencies = freqs.clone()
	gen, err := newGenerator(kind, freqs, config.PhaseRetention, config.NoiseSeed)
	if err != nil {
		return nil, err
	}
	filter, err := newLowPass(config.CutoffHz, config.ResonanceQ)
	if err != nil {
		return nil, err
	}
	return &state{
		config:  config,
		freqs:   freqs,
		gen:     gen,
		filter:  filter,
		presets: newPresetManager(presetDir),
		out:     make([]float64, fftSize),
	}, nil
}

func (s *state) setFrequencies(freqs frequencySet) {
	s.freqs = freqs
	s.config.ActiveFrequencies = freqs.clone()
	s.gen.setFrequencies(freqs)
}

// apply swaps in a validated config. Phases and filter history carry over;
// the noise source restarts from the config's seed.
func (s *state) apply(config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	kind, _ := waveKindFromString(config.Waveform)
	if err := s.filter.setLowPass(config.CutoffHz, config.ResonanceQ); err != nil {
		return err
	}
	s.gen.setWave(kind)
	s.gen.reseed(config.NoiseSeed)
	retention := s.config.PhaseRetention
	s.config = config.clone()
	s.config.PhaseRetention = retention
	s.setFrequencies(newFrequencySet(config.ActiveFrequencies...))
	return nil
}

// ----- Synth ----- //

// Synth renders the mixed, filtered voices into stereo buffers.
type Synth struct {
	CommandCh chan []string
	Changes   *Changes
	state     *state
	spectrum  *spectrum
	fftResult []float64 // length: fftSize
	closeOnce sync.Once
}

// NewSynth validates config and starts the command processor.
// presetDir may be empty when presets are not used.
func NewSynth(config *Config, presetDir string) (*Synth, error) {
	state, err := newState(config, presetDir)
	if err != nil {
		return nil, err
	}
	commandCh := make(chan []string, 256)
	synth := &Synth{
		CommandCh: commandCh,
		Changes: &Changes{
			dict: map[string]struct{}{"data": {}, "filter-shape": {}},
		},
		state:     state,
		spectrum:  newSpectrum(fftSize),
		fftResult: make([]float64, fftSize),
	}
	go processCommands(synth, commandCh)
	return synth, nil
}

// Render fills buf, which holds interleaved stereo frames, completely.
func (s *Synth) Render(buf []float32) {
	s.state.Lock()
	defer s.state.Unlock()
	st := s.state
	gain := st.config.Gain
	frames := len(buf) / channelNum
	for i := 0; i < frames; i++ {
		value := st.gen.step()
		value = st.filter.process(value)
		value = clamp(value * gain)
		st.out[(st.pos+int64(i))%fftSize] = value
		for ch := 0; ch < channelNum; ch++ {
			buf[i*channelNum+ch] = float32(value)
		}
	}
	st.pos += int64(frames)
}

// Start renders and writes buffers until ctx is done, the stream reports
// io.EOF, or a write fails. Cancellation is only checked between buffers.
func (s *Synth) Start(ctx context.Context, stream Stream) error {
	if err := stream.Start(); err != nil {
		return err
	}
	defer func() {
		if err := stream.Stop(); err != nil {
			log.Printf("error while stopping stream: %v", err)
		}
	}()
	buf := make([]float32, framesPerBuffer*channelNum)
	for {
		select {
		case <-ctx.Done():
			log.Println("Start() interrupted.")
			return nil
		default:
		}
		s.Render(buf)
		// block until the device takes the buffer
		if err := stream.Write(buf); err != nil {
			if errors.Is(err, io.EOF) {
				log.Println("Start() ended.")
				return nil
			}
			return err
		}
	}
}

// Close stops the command processor.
func (s *Synth) Close() error {
	log.Println("Closing Synth...")
	s.closeOnce.Do(func() {
		close(s.CommandCh)
	})
	return nil
}

func processCommands(synth *Synth, commandCh <-chan []string) {
	for command := range commandCh {
		if err := synth.Update(command); err != nil {
			log.Printf("command %v rejected: %v", command, err)
		}
	}
	log.Println("processCommands() ended.")
}

func parseFloat(field string, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &ConfigError{Field: field, Value: value, Reason: "not a number"}
	}
	return f, nil
}

func parseFrequency(value string) (float64, error) {
	f, err := parseFloat("frequency", value)
	if err != nil {
		return 0, err
	}
	return f, checkFrequency(f)
}

func parseNote(value string) (float64, error) {
	note, err := strconv.ParseInt(value, 10, 32)
	if err != nil || note < 0 || note > 127 {
		return 0, &ConfigError{Field: "note", Value: value, Reason: "must be an integer in [0, 127]"}
	}
	f := noteToFreq(int(note))
	return f, checkFrequency(f)
}

func expectArgs(command []string, n int) error {
	if len(command) != n {
		return fmt.Errorf("command %q takes %d argument(s), got %v", command[0], n-1, command[1:])
	}
	return nil
}

// Update applies one control command. A rejected command leaves the state untouched.
func (s *Synth) Update(command []string) error {
	if len(command) == 0 {
		return errors.New("empty command")
	}
	s.state.Lock()
	defer s.state.Unlock()

	switch command[0] {
	case "on", "off", "note_on", "note_off":
		if err := expectArgs(command, 2); err != nil {
			return err
		}
		parse := parseFrequency
		if command[0] == "note_on" || command[0] == "note_off" {
			parse = parseNote
		}
		freq, err := parse(command[1])
		if err != nil {
			return err
		}
		if command[0] == "on" || command[0] == "note_on" {
			s.setFrequency(freq, true)
		} else {
			s.setFrequency(freq, false)
		}
	case "clear":
		s.state.setFrequencies(newFrequencySet())
		s.Changes.Add("data")
	case "set":
		return s.set(command[1:])
	case "preset":
		if err := expectArgs(command, 2); err != nil {
			return err
		}
		config, err := s.state.presets.load(command[1])
		if err != nil {
			return err
		}
		if err := s.state.apply(config); err != nil {
			return err
		}
		s.Changes.Add("data")
		s.Changes.Add("filter-shape")
	default:
		return fmt.Errorf("unknown command %q", command[0])
	}
	return nil
}

func (s *Synth) setFrequency(freq float64, on bool) {
	if on == s.state.freqs.contains(freq) {
		return
	}
	freqs := s.state.freqs.clone()
	if on {
		freqs = freqs.add(freq)
	} else {
		freqs = freqs.remove(freq)
	}
	s.state.setFrequencies(freqs)
	s.Changes.Add("data")
}

func (s *Synth) set(command []string) error {
	if len(command) == 0 {
		return errors.New("set: missing key")
	}
	switch command[0] {
	case "wave":
		if err := expectArgs(command, 2); err != nil {
			return err
		}
		kind, err := waveKindFromString(command[1])
		if err != nil {
			return &ConfigError{Field: "waveform", Value: fmt.Sprintf("%q", command[1]), Reason: fmt.Sprintf("must be one of %v", WaveKinds())}
		}
		s.state.gen.setWave(kind)
		s.state.config.Waveform = kind.String()
	case "gain":
		if err := expectArgs(command, 2); err != nil {
			return err
		}
		gain, err := parseFloat("gain", command[1])
		if err != nil {
			return err
		}
		if err := checkGain(gain); err != nil {
			return err
		}
		s.state.config.Gain = gain
	case "filter":
		if err := expectArgs(command, 3); err != nil {
			return err
		}
		cutoff, q := s.state.filter.cutoff, s.state.filter.q
		var err error
		switch command[1] {
		case "cutoff":
			cutoff, err = parseFloat("cutoff_hz", command[2])
		case "q":
			q, err = parseFloat("resonance_q", command[2])
		default:
			return fmt.Errorf("set filter: unknown key %q", command[1])
		}
		if err != nil {
			return err
		}
		if err := s.state.filter.setLowPass(cutoff, q); err != nil {
			return err
		}
		s.state.config.CutoffHz = cutoff
		s.state.config.ResonanceQ = q
		s.Changes.Add("filter-shape")
	default:
		return fmt.Errorf("set: unknown key %q", command[0])
	}
	s.Changes.Add("data")
	return nil
}

// AddMidiEvent turns raw note-on/off messages into frequency on/off.
func (s *Synth) AddMidiEvent(data []byte) {
	if len(data) < 3 {
		return
	}
	var command string
	if data[0]>>4 == 8 || data[0]>>4 == 9 && data[2] == 0 {
		command = "note_off"
	} else if data[0]>>4 == 9 && data[2] > 0 {
		command = "note_on"
	} else {
		return
	}
	log.Printf("got %s: %v\n", command, data)
	if err := s.Update([]string{command, strconv.Itoa(int(data[1]))}); err != nil {
		log.Printf("midi event %v rejected: %v", data, err)
	}
}

// ToJSON returns the current config.
func (s *Synth) ToJSON() []byte {
	s.state.Lock()
	defer s.state.Unlock()
	return s.state.config.toJSON()
}

// Presets lists the names accepted by the preset command.
func (s *Synth) Presets() ([]string, error) {
	return s.state.presets.getList()
}

// GetFilterShape returns the magnitude response of the current filter
// over fftSize/2 bins from 0 Hz to Nyquist.
func (s *Synth) GetFilterShape() []float64 {
	s.state.Lock()
	h := s.state.filter.impulseResponse(fftSize)
	s.state.Unlock()
	return append([]float64(nil), newSpectrum(fftSize).calcAbs(h)...)
}

// GetFFT returns the magnitude spectrum of the last fftSize output samples.
// The result is reused by the next call.
func (s *Synth) GetFFT() []float64 {
	s.state.Lock()
	// out:       | 4 | 1 | 2 | 3 |
	// offset:        ^
	// fftResult: | 1 | 2 | 3 | 4 |
	offset := s.state.pos % fftSize
	copy(s.fftResult, s.state.out[offset:])
	copy(s.fftResult[fftSize-offset:], s.state.out[:offset])
	s.state.Unlock()
	Han(s.fftResult)
	result := s.spectrum.calcAbs(s.fftResult)
	for i, value := range result {
		result[i] = value * 2 / fftSize
	}
	return result
}
