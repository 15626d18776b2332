package audio

import "sort"

// frequencySet is a sorted list of unique frequencies in Hz.
// Sorting only gives a stable iteration order; mixing does not depend on it.
type frequencySet []float64

func newFrequencySet(freqs ...float64) frequencySet {
	s := make(frequencySet, 0, len(freqs))
	for _, f := range freqs {
		s = s.add(f)
	}
	return s
}

func (s frequencySet) index(freq float64) (int, bool) {
	i := sort.SearchFloat64s(s, freq)
	return i, i < len(s) && s[i] == freq
}

func (s frequencySet) contains(freq float64) bool {
	_, ok := s.index(freq)
	return ok
}

func (s frequencySet) add(freq float64) frequencySet {
	i, ok := s.index(freq)
	if ok {
		return s
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = freq
	return s
}

func (s frequencySet) remove(freq float64) frequencySet {
	i, ok := s.index(freq)
	if !ok {
		return s
	}
	return append(s[:i], s[i+1:]...)
}

func (s frequencySet) clone() frequencySet {
	c := make(frequencySet, len(s))
	copy(c, s)
	return c
}
