// Package breaker implements a three-state circuit breaker shared by all
// concurrent analysis requests. Requests ask permission via Allow and report
// their outcome through the returned callback; a canceled attempt counts as
// neither success nor failure and releases the half-open trial slot.
package breaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// State is the current mode of the breaker.
type State int32

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Outcome is what an allowed request reports back.
type Outcome int

const (
	// Success closes a half-open breaker and resets the failure counter.
	Success Outcome = iota
	// Failure increments the counter in the closed state and re-opens a
	// half-open breaker.
	Failure
	// Canceled releases the half-open trial slot without touching the
	// failure counter; the attempt never completed, so it proves nothing
	// about upstream health.
	Canceled
)

// ErrOpen is returned by Allow when the breaker rejects the request. Callers
// are expected to fall back to local scoring.
var ErrOpen = errors.New("circuit breaker is open")

var breakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

// Config holds breaker tuning parameters.
type Config struct {
	// Name identifies this breaker in logs and metrics.
	Name string

	// FailureThreshold is the number of consecutive failures in the closed
	// state that trips the breaker.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before admitting a single
	// half-open trial.
	Cooldown time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// Breaker is safe for concurrent use. All transitions happen under a single
// mutex so two requests can never race the closed-to-open transition or both
// consume the half-open trial slot.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	logger    *slog.Logger
	clock     func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	generation    uint64
	openedAt      time.Time
	trialInFlight bool
}

// New creates a breaker in the closed state.
func New(cfg Config, logger *slog.Logger) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	breakerState.WithLabelValues(cfg.Name).Set(stateToFloat(StateClosed))
	return &Breaker{
		name:      cfg.Name,
		threshold: cfg.FailureThreshold,
		cooldown:  cfg.Cooldown,
		logger:    logger,
		clock:     time.Now,
	}
}

// Allow asks whether a remote attempt may proceed. On success it returns a
// done callback that must be invoked exactly once with the attempt's outcome.
// ErrOpen means the remote path is unavailable and the caller should use the
// local fallback.
func (b *Breaker) Allow() (func(Outcome), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock()

	switch b.state {
	case StateOpen:
		if now.Sub(b.openedAt) < b.cooldown {
			return nil, ErrOpen
		}
		b.transition(StateHalfOpen, now)
		b.trialInFlight = true
	case StateHalfOpen:
		if b.trialInFlight {
			// The single trial slot for this cool-down window is taken.
			return nil, ErrOpen
		}
		b.trialInFlight = true
	}

	gen := b.generation
	return func(o Outcome) { b.record(gen, o) }, nil
}

// record applies an outcome reported by a request admitted in generation gen.
// Outcomes from before the most recent state transition are stale and ignored.
func (b *Breaker) record(gen uint64, o Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation {
		return
	}

	now := b.clock()

	switch o {
	case Canceled:
		if b.state == StateHalfOpen {
			b.trialInFlight = false
		}

	case Success:
		switch b.state {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			b.transition(StateClosed, now)
		}

	case Failure:
		switch b.state {
		case StateClosed:
			b.failures++
			if b.failures >= b.threshold {
				b.transition(StateOpen, now)
			}
		case StateHalfOpen:
			// The trial failed; restart the cool-down.
			b.transition(StateOpen, now)
		}
	}
}

// transition must be called with the mutex held.
func (b *Breaker) transition(to State, now time.Time) {
	from := b.state
	b.state = to
	b.generation++
	b.trialInFlight = false
	b.failures = 0
	if to == StateOpen {
		b.openedAt = now
	}

	breakerState.WithLabelValues(b.name).Set(stateToFloat(to))
	if b.logger != nil {
		b.logger.Warn("circuit breaker state change",
			slog.String("breaker", b.name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the failure counter in the closed state.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// SetClock replaces the breaker's time source. Test helper.
func (b *Breaker) SetClock(clock func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = clock
}

func stateToFloat(s State) float64 {
	switch s {
	case StateClosed:
		return 0
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return -1
	}
}
