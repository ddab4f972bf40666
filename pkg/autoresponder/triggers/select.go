package triggers

import (
	"math/rand/v2"
	"sync"
)

// RandSource is the randomness a Selector draws from. *rand.Rand from
// math/rand/v2 satisfies it.
type RandSource interface {
	IntN(n int) int
}

// Selector picks one response uniformly at random. It is safe for concurrent
// use.
type Selector struct {
	mu  sync.Mutex
	src RandSource
}

// NewSelector returns a Selector drawing from src. A nil src uses the
// process-wide math/rand/v2 generator.
func NewSelector(src RandSource) *Selector {
	return &Selector{src: src}
}

// Pick returns one element of responses, or "" when it is empty.
func (s *Selector) Pick(responses []string) string {
	switch len(responses) {
	case 0:
		return ""
	case 1:
		return responses[0]
	}

	if s == nil || s.src == nil {
		return responses[rand.IntN(len(responses))]
	}

	s.mu.Lock()
	i := s.src.IntN(len(responses))
	s.mu.Unlock()
	return responses[i]
}
