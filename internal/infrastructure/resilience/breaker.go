package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State represents the circuit breaker state
type State int

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

// Settings configures a Breaker. Zero values take defaults.
type Settings struct {
	// Probes is the number of calls admitted while half-open, and the number
	// of consecutive successes needed to close.
	Probes uint32
	// Window clears the closed-state counts periodically. Zero keeps counts
	// until the next state change.
	Window time.Duration
	// Cooldown is how long the breaker stays open.
	Cooldown time.Duration
	// Trip decides, after a failure in closed state, whether to open.
	Trip func(Counts) bool
	// IsFailure classifies the error returned by a call. Defaults to any
	// non-nil error except context cancellation.
	IsFailure func(error) bool
	// OnStateChange is called with the breaker lock released.
	OnStateChange func(name string, from, to State)
	// Now overrides the clock.
	Now func() time.Time
}

// Counts holds the statistics of the current generation
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// ConsecutiveFailures returns a Trip func that opens after n failures in a row.
func ConsecutiveFailures(n uint32) func(Counts) bool {
	return func(c Counts) bool { return c.ConsecutiveFailures >= n }
}

// Breaker implements the circuit breaker pattern
type Breaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
}

type transition struct{ from, to State }

// New creates a circuit breaker.
func New(name string, settings Settings) *Breaker {
	if settings.Probes == 0 {
		settings.Probes = 1
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.Trip == nil {
		settings.Trip = ConsecutiveFailures(5)
	}
	if settings.IsFailure == nil {
		settings.IsFailure = defaultIsFailure
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}

	b := &Breaker{name: name, settings: settings, state: StateClosed}
	if settings.Window > 0 {
		b.expiry = settings.Now().Add(settings.Window)
	}
	return b
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, applying any due transition.
func (b *Breaker) State() State {
	b.mu.Lock()
	state, _, tr := b.current(b.settings.Now())
	b.mu.Unlock()

	b.notify(tr)
	return state
}

// Counts returns a copy of the current counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Do runs fn if the breaker admits it. A refused call returns ErrCircuitOpen
// or ErrTooManyRequests without invoking fn. A panic in fn counts as a
// failure and is re-raised.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	generation, err := b.before()
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			b.after(generation, true)
			panic(p)
		}
	}()

	err = fn(ctx)
	b.after(generation, b.settings.IsFailure(err))
	return err
}

func (b *Breaker) before() (uint64, error) {
	b.mu.Lock()
	state, generation, tr := b.current(b.settings.Now())

	var err error
	switch {
	case state == StateOpen:
		err = ErrCircuitOpen
	case state == StateHalfOpen && b.counts.Requests >= b.settings.Probes:
		err = ErrTooManyRequests
	default:
		b.counts.Requests++
	}
	b.mu.Unlock()

	b.notify(tr)
	return generation, err
}

func (b *Breaker) after(before uint64, failed bool) {
	b.mu.Lock()
	now := b.settings.Now()
	state, generation, tr := b.current(now)
	if generation != before {
		b.mu.Unlock()
		b.notify(tr)
		return
	}

	var tr2 *transition
	if failed {
		b.counts.TotalFailures++
		b.counts.ConsecutiveFailures++
		b.counts.ConsecutiveSuccesses = 0
		if state == StateHalfOpen || b.settings.Trip(b.counts) {
			tr2 = b.setState(StateOpen, now)
		}
	} else {
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.Probes {
			tr2 = b.setState(StateClosed, now)
		}
	}
	b.mu.Unlock()

	b.notify(tr)
	b.notify(tr2)
}

// current must be called with mu held.
func (b *Breaker) current(now time.Time) (State, uint64, *transition) {
	var tr *transition
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && !now.Before(b.expiry) {
			b.generation++
			b.counts = Counts{}
			b.expiry = now.Add(b.settings.Window)
		}
	case StateOpen:
		if !now.Before(b.expiry) {
			tr = b.setState(StateHalfOpen, now)
		}
	}
	return b.state, b.generation, tr
}

// setState must be called with mu held.
func (b *Breaker) setState(state State, now time.Time) *transition {
	if b.state == state {
		return nil
	}

	prev := b.state
	b.state = state
	b.generation++
	b.counts = Counts{}

	switch state {
	case StateClosed:
		b.expiry = time.Time{}
		if b.settings.Window > 0 {
			b.expiry = now.Add(b.settings.Window)
		}
	case StateOpen:
		b.expiry = now.Add(b.settings.Cooldown)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}
	return &transition{from: prev, to: state}
}

func (b *Breaker) notify(tr *transition) {
	if tr != nil && b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, tr.from, tr.to)
	}
}
