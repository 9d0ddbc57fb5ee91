package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without invoking the guarded function while the
// breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

type Config struct {
	Name        string
	MaxFailures int
	Cooldown    time.Duration
	MaxProbes   int
}

// Breaker is a three-state circuit breaker guarding calls to a single
// remote endpoint. After MaxFailures consecutive failures it opens
// for Cooldown, then lets up to MaxProbes requests through half-open;
// one success closes it, one failure reopens it.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	maxProbes   int

	mu       sync.Mutex
	state    State
	failures int
	probes   int
	openedAt time.Time

	logger *logrus.Logger
}

func New(config Config, logger *logrus.Logger) *Breaker {
	if config.Name == "" {
		config.Name = "unnamed"
	}
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.MaxProbes <= 0 {
		config.MaxProbes = 1
	}

	return &Breaker{
		name:        config.Name,
		maxFailures: config.MaxFailures,
		cooldown:    config.Cooldown,
		maxProbes:   config.MaxProbes,
		state:       StateClosed,
		logger:      logger,
	}
}

// Execute runs fn under the breaker, returning ErrOpen when the call
// is rejected.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if time.Since(b.openedAt) <= b.cooldown {
			return ErrOpen
		}
		b.setState(StateHalfOpen)
		b.probes = 0
	}

	if b.state == StateHalfOpen {
		if b.probes >= b.maxProbes {
			return ErrOpen
		}
		b.probes++
	}
	return nil
}

func (b *Breaker) onSuccess() {
	b.failures = 0
	if b.state == StateHalfOpen {
		b.setState(StateClosed)
	}
}

func (b *Breaker) onFailure() {
	b.failures++
	b.openedAt = time.Now()

	if b.state == StateHalfOpen || (b.state == StateClosed && b.failures >= b.maxFailures) {
		b.setState(StateOpen)
	}
}

func (b *Breaker) setState(next State) {
	if b.state == next {
		return
	}
	prev := b.state
	b.state = next

	b.logger.WithFields(logrus.Fields{
		"circuit_breaker": b.name,
		"from_state":      prev.String(),
		"to_state":        next.String(),
	}).Info("Circuit breaker state changed")
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed and clears the failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(StateClosed)
	b.failures = 0
	b.probes = 0
	b.openedAt = time.Time{}
}
