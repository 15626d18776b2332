package audio

import (
	"math/rand"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ----- Voice ----- //

type voice struct {
	freq  float64
	phase float64
}

// ----- Phase Table ----- //

// phaseTable owns the phase of every active frequency. Phases of frequencies
// that leave the active set are parked in a bounded LRU so a returning
// frequency resumes where it stopped.
type phaseTable struct {
	voices  []voice
	retired *lru.Cache[float64, float64] // nil: prune on deactivation
}

func newPhaseTable(retention int) (*phaseTable, error) {
	t := &phaseTable{}
	if retention > 0 {
		cache, err := lru.New[float64, float64](retention)
		if err != nil {
			return nil, err
		}
		t.retired = cache
	}
	return t, nil
}

// sync rebuilds the voice list for freqs. It allocates, so it runs only on
// configuration changes, never from the render path.
func (t *phaseTable) sync(freqs frequencySet) {
	next := make([]voice, len(freqs))
	for i, f := range freqs {
		next[i] = voice{freq: f, phase: t.take(f)}
	}
	for _, v := range t.voices {
		if !freqs.contains(v.freq) && t.retired != nil {
			t.retired.Add(v.freq, v.phase)
		}
	}
	t.voices = next
}

func (t *phaseTable) take(freq float64) float64 {
	for _, v := range t.voices {
		if v.freq == freq {
			return v.phase
		}
	}
	if t.retired == nil {
		return 0
	}
	phase, ok := t.retired.Get(freq)
	if !ok {
		return 0
	}
	t.retired.Remove(freq)
	return phase
}

func (t *phaseTable) phaseOf(freq float64) (float64, bool) {
	for _, v := range t.voices {
		if v.freq == freq {
			return v.phase, true
		}
	}
	if t.retired != nil {
		return t.retired.Peek(freq)
	}
	return 0, false
}

func (t *phaseTable) retiredLen() int {
	if t.retired == nil {
		return 0
	}
	return t.retired.Len()
}

// ----- Generator ----- //

type generator struct {
	kind   waveKind
	wave   waveFunc
	freqs  frequencySet
	phases *phaseTable
	rand   *rand.Rand
}

func newGenerator(kind waveKind, freqs frequencySet, retention int, seed int64) (*generator, error) {
	phases, err := newPhaseTable(retention)
	if err != nil {
		return nil, err
	}
	g := &generator{
		phases: phases,
		rand:   rand.New(rand.NewSource(seed)),
	}
	g.setWave(kind)
	g.setFrequencies(freqs)
	return g, nil
}

// setWave resolves the waveform once, so the render path never dispatches on names.
func (g *generator) setWave(kind waveKind) {
	g.kind = kind
	g.wave = waveFuncs[kind]
}

func (g *generator) reseed(seed int64) {
	g.rand.Seed(seed)
}

func (g *generator) setFrequencies(freqs frequencySet) {
	g.freqs = freqs.clone()
	g.phases.sync(g.freqs)
}

// step mixes one sample: the average of every active voice, or 0 when silent.
func (g *generator) step() float64 {
	voices := g.phases.voices
	sum := 0.0
	for i := range voices {
		v := &voices[i]
		sum += g.wave(v.freq, &v.phase, g.rand)
	}
	count := len(voices)
	if count == 0 {
		count = 1
	}
	return sum / float64(count)
}
