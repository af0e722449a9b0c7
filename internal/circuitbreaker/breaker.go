// Package circuitbreaker trips sending through a mailbox after consecutive
// provider failures, protecting the sender's reputation during outages.
// A tripped mailbox is simply not a candidate during sender resolution.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("mailbox circuit is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

type mailboxState struct {
	state               state
	consecutiveFailures int
	openedAt            time.Time
}

type CircuitBreaker struct {
	mu        sync.Mutex
	states    map[string]*mailboxState // keyed by mailbox address
	threshold int
	cooldown  time.Duration
	clock     func() time.Time
}

func New(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		states:    make(map[string]*mailboxState),
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// Allow reports whether the mailbox may be used for a send.
// After the cooldown one probe send is let through (half-open).
func (cb *CircuitBreaker) Allow(mailbox string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[mailbox]
	if !ok {
		return nil
	}

	switch s.state {
	case stateClosed:
		return nil
	case stateOpen:
		if cb.clock().Sub(s.openedAt) >= cb.cooldown {
			s.state = stateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) RecordSuccess(mailbox string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[mailbox]
	if !ok {
		return
	}
	s.state = stateClosed
	s.consecutiveFailures = 0
}

func (cb *CircuitBreaker) RecordFailure(mailbox string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[mailbox]
	if !ok {
		s = &mailboxState{}
		cb.states[mailbox] = s
	}

	s.consecutiveFailures++
	if s.consecutiveFailures >= cb.threshold {
		s.state = stateOpen
		s.openedAt = cb.clock()
	}
}
