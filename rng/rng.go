// Package rng isolates every draw of randomness behind a seedable interface
// so rooms can run deterministic rounds under test.
package rng

import (
	"math/rand"
	"sync"
	"time"
)

// Source supplies the two draws a round needs: the resolved outcome value
// and the per-tick advance of a race participant.
type Source interface {
	// DrawOutcome returns a uniform value in [0, max].
	DrawOutcome(max int) int
	// DrawAdvance returns a uniform value in [min, max].
	DrawAdvance(min, max int) int
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New returns a Source seeded from seed.
func New(seed int64) Source {
	return &lockedSource{r: rand.New(rand.NewSource(seed))}
}

// NewTimeSeeded returns a Source for production use.
// TODO: back this with the external randomness service once it is live.
func NewTimeSeeded() Source {
	return New(time.Now().UnixNano())
}

func (s *lockedSource) DrawOutcome(max int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Intn(max + 1)
}

func (s *lockedSource) DrawAdvance(min, max int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if max <= min {
		return min
	}
	return min + s.r.Intn(max-min+1)
}
