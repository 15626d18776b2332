package audio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigError reports a rejected configuration value.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %s: %s", e.Field, e.Value, e.Reason)
}

// Config is everything a controller may change about the sound.
type Config struct {
	ActiveFrequencies []float64 `yaml:"active_frequencies" json:"activeFrequencies"`
	Waveform          string    `yaml:"waveform" json:"waveform"`
	CutoffHz          float64   `yaml:"cutoff_hz" json:"cutoffHz"`
	ResonanceQ        float64   `yaml:"resonance_q" json:"resonanceQ"`
	Gain              float64   `yaml:"gain" json:"gain"`
	PhaseRetention    int       `yaml:"phase_retention" json:"phaseRetention"`
	NoiseSeed         int64     `yaml:"noise_seed" json:"noiseSeed"`
}

// DefaultConfig plays an A major chord through a saw and a 1 kHz low-pass.
func DefaultConfig() *Config {
	return &Config{
		ActiveFrequencies: []float64{110, 220, 277.18, 329.63, 440},
		Waveform:          "saw",
		CutoffHz:          1000,
		ResonanceQ:        2,
		Gain:              0.5,
		PhaseRetention:    128,
		NoiseSeed:         2,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig and validates it.
// Unknown keys are rejected.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return config, nil
}

// DurationFrames converts a render length to a frame count. Lengths that
// round to no frames are rejected.
func DurationFrames(seconds float64) (int, error) {
	frames := seconds * sampleRate
	if math.IsNaN(frames) || frames < 1 || frames > math.MaxInt32 {
		return 0, &ConfigError{Field: "seconds", Value: fmt.Sprint(seconds), Reason: "must be a positive length"}
	}
	return int(frames), nil
}

// Validate rejects anything the render path would otherwise have to guard against.
func (c *Config) Validate() error {
	for _, f := range c.ActiveFrequencies {
		if err := checkFrequency(f); err != nil {
			return err
		}
	}
	if _, err := waveKindFromString(c.Waveform); err != nil {
		return &ConfigError{Field: "waveform", Value: fmt.Sprintf("%q", c.Waveform), Reason: fmt.Sprintf("must be one of %v", WaveKinds())}
	}
	if err := checkLowPass(c.CutoffHz, c.ResonanceQ); err != nil {
		return err
	}
	if err := checkGain(c.Gain); err != nil {
		return err
	}
	if c.PhaseRetention < 0 {
		return &ConfigError{Field: "phase_retention", Value: fmt.Sprint(c.PhaseRetention), Reason: "must not be negative"}
	}
	return nil
}

func checkFrequency(f float64) error {
	if math.IsNaN(f) || f <= 0 || f >= sampleRate/2 {
		return &ConfigError{Field: "frequency", Value: fmt.Sprint(f), Reason: fmt.Sprintf("must be in (0, %v)", sampleRate/2)}
	}
	return nil
}

func checkGain(g float64) error {
	if math.IsNaN(g) || math.IsInf(g, 0) || g < 0 {
		return &ConfigError{Field: "gain", Value: fmt.Sprint(g), Reason: "must be a non-negative number"}
	}
	return nil
}

func (c *Config) clone() *Config {
	d := *c
	d.ActiveFrequencies = append([]float64(nil), c.ActiveFrequencies...)
	return &d
}

func (c *Config) toJSON() json.RawMessage {
	return toRawMessage(c)
}
