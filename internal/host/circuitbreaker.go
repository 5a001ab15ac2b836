package host

import (
	"fmt"
	"sync"
	"time"
)

// circuitState is the circuit breaker's three-way state.
type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

const (
	failureThreshold        = 5
	circuitTimeout          = 60 * time.Second
	halfOpenSuccessThreshold = 2
)

// circuitBreaker trips after a run of consecutive direct-API failures,
// short-circuiting further calls until a cooldown elapses, then admits a
// handful of probe requests before fully closing again.
type circuitBreaker struct {
	mu sync.Mutex

	state          circuitState
	failureCount   int
	successCount   int
	lastFailureAt  time.Time
}

func newCircuitBreaker() *circuitBreaker {
	return &circuitBreaker{state: circuitClosed}
}

// allow reports whether a direct-API call may proceed, transitioning Open to
// HalfOpen once the cooldown has elapsed.
func (c *circuitBreaker) allow() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case circuitClosed, circuitHalfOpen:
		return nil
	case circuitOpen:
		if time.Since(c.lastFailureAt) >= circuitTimeout {
			c.state = circuitHalfOpen
			c.successCount = 0
			return nil
		}
		remaining := circuitTimeout - time.Since(c.lastFailureAt)
		return fmt.Errorf("%w: retry in %s", ErrCircuitOpen, remaining.Round(time.Second))
	}
	return nil
}

func (c *circuitBreaker) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case circuitClosed:
		c.failureCount = 0
	case circuitHalfOpen:
		c.successCount++
		if c.successCount >= halfOpenSuccessThreshold {
			c.state = circuitClosed
			c.failureCount = 0
			c.successCount = 0
		}
	}
}

func (c *circuitBreaker) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case circuitClosed:
		c.failureCount++
		if c.failureCount >= failureThreshold {
			c.state = circuitOpen
			c.lastFailureAt = time.Now()
		}
	case circuitHalfOpen:
		c.state = circuitOpen
		c.lastFailureAt = time.Now()
		c.successCount = 0
	case circuitOpen:
		c.lastFailureAt = time.Now()
	}
}
