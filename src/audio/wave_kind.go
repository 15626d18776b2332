package audio

import "fmt"

// ----- Wave Kind ----- //

type waveKind int

const (
	waveSine waveKind = iota
	waveSaw
	waveSquare
	waveTriangle
	waveNoise
)

var waveKindNames = [...]string{
	waveSine:     "sine",
	waveSaw:      "saw",
	waveSquare:   "square",
	waveTriangle: "triangle",
	waveNoise:    "noise",
}

// WaveKinds lists every waveform name accepted by the config.
func WaveKinds() []string {
	names := make([]string, len(waveKindNames))
	copy(names, waveKindNames[:])
	return names
}

func waveKindFromString(s string) (waveKind, error) {
	for i, name := range waveKindNames {
		if name == s {
			return waveKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown waveform %q", s)
}

func (k waveKind) String() string {
	if k < 0 || int(k) >= len(waveKindNames) {
		return fmt.Sprintf("waveKind(%d)", int(k))
	}
	return waveKindNames[k]
}
