package transport

import (
	"fmt"
	"sync"
	"time"
)

// breakerState is the jump host breaker's position.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Jump host breaker defaults.
const (
	DefaultBreakerFailures = 3
	DefaultBreakerCooldown = 15 * time.Second
)

// breaker stops /connect from re-dialling a jump host that keeps
// failing. After maxFailures consecutive failures it rejects attempts
// until cooldown has passed, then lets one probe through.
type breaker struct {
	mu          sync.Mutex
	state       breakerState
	failures    int
	maxFailures int
	cooldown    time.Duration
	lastFailure time.Time
	now         func() time.Time
}

func newBreaker(maxFailures int, cooldown time.Duration) *breaker {
	if maxFailures <= 0 {
		maxFailures = DefaultBreakerFailures
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	return &breaker{maxFailures: maxFailures, cooldown: cooldown, now: time.Now}
}

// allow reports whether an attempt may proceed.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		wait := b.cooldown - b.now().Sub(b.lastFailure)
		if wait > 0 {
			return fmt.Errorf("jump host unreachable after %d attempts, next try in %v",
				b.failures, wait.Truncate(time.Second))
		}
		b.state = breakerHalfOpen
	case breakerHalfOpen:
		return fmt.Errorf("jump host probe already in progress")
	}
	return nil
}

// record feeds back the outcome of an allowed attempt.
func (b *breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.state = breakerClosed
		return
	}
	b.failures++
	b.lastFailure = b.now()
	if b.state == breakerHalfOpen || b.failures >= b.maxFailures {
		b.state = breakerOpen
	}
}

func (b *breaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
