// Package state is the generic phase machine shared by every game variant.
// A room drives its machine from a single goroutine; the machine itself only
// guards the current-phase pointer so outside readers can inspect it.
package state

import (
	"sync"
	"time"
)

// Phase is one named state of a round. Enter/Exit run on transitions, Tick
// runs on every room tick while the phase is current.
type Phase interface {
	Name() string
	Enter()
	Exit()
	Tick(elapsed time.Duration)
}

// Machine holds the current phase of one room's round.
type Machine struct {
	mu      sync.RWMutex
	current Phase
}

func NewMachine(initial Phase) *Machine {
	m := &Machine{current: initial}
	initial.Enter()
	return m
}

// ChangeTo exits the current phase and enters the next one.
func (m *Machine) ChangeTo(next Phase) {
	m.mu.Lock()
	prev := m.current
	m.current = next
	m.mu.Unlock()

	if prev != nil {
		prev.Exit()
	}
	next.Enter()
}

func (m *Machine) Current() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// CurrentName returns the name of the current phase, "" if none.
func (m *Machine) CurrentName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.Name()
}

// Tick forwards the room tick to the current phase.
func (m *Machine) Tick(elapsed time.Duration) {
	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()
	if current != nil {
		current.Tick(elapsed)
	}
}

// Countdown accumulates room ticks into whole-second countdown steps.
// OnSecond fires once per elapsed second with the seconds still remaining;
// OnExpire fires once when the countdown reaches zero.
type Countdown struct {
	remaining time.Duration
	acc       time.Duration
	expired   bool

	OnSecond func(secondsLeft int)
	OnExpire func()
}

// Reset arms the countdown for the given number of seconds.
func (c *Countdown) Reset(seconds int) {
	c.remaining = time.Duration(seconds) * time.Second
	c.acc = 0
	c.expired = false
}

// SecondsLeft reports the remaining whole seconds, rounded up.
func (c *Countdown) SecondsLeft() int {
	if c.remaining <= 0 {
		return 0
	}
	return int((c.remaining + time.Second - 1) / time.Second)
}

// Tick advances the countdown. Stray ticks after expiry are ignored so a
// phase that has already fired its transition cannot fire it again.
func (c *Countdown) Tick(elapsed time.Duration) {
	if c.expired {
		return
	}

	c.remaining -= elapsed
	c.acc += elapsed
	for c.acc >= time.Second && c.SecondsLeft() > 0 {
		c.acc -= time.Second
		if c.OnSecond != nil {
			c.OnSecond(c.SecondsLeft())
		}
	}

	if c.remaining <= 0 {
		c.expired = true
		if c.OnExpire != nil {
			c.OnExpire()
		}
	}
}
