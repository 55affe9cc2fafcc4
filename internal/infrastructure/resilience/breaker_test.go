package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errBoom = errors.New("boom")

func succeed(context.Context) error { return nil }
func fail(context.Context) error    { return errBoom }

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		requests      []bool // true = success
		expectedState State
	}{
		{name: "stays closed on successes", requests: []bool{true, true, true}, expectedState: StateClosed},
		{name: "opens after consecutive failures", requests: []bool{false, false, false}, expectedState: StateOpen},
		{name: "success resets the streak", requests: []bool{false, false, true, false, false}, expectedState: StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker := New("test", Settings{Trip: ConsecutiveFailures(3)})

			for _, success := range tt.requests {
				fn := fail
				if success {
					fn = succeed
				}
				_ = breaker.Do(context.Background(), fn)
			}

			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	breaker := New("test", Settings{})

	require.NoError(t, breaker.Do(context.Background(), succeed))
	counts := breaker.Counts()
	assert.Equal(t, uint32(1), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.ConsecutiveSuccesses)

	assert.ErrorIs(t, breaker.Do(context.Background(), fail), errBoom)
	counts = breaker.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveSuccesses)
}

func TestBreakerOpenRefusesWithoutCalling(t *testing.T) {
	breaker := New("test", Settings{Trip: ConsecutiveFailures(2)})
	_ = breaker.Do(context.Background(), fail)
	_ = breaker.Do(context.Background(), fail)
	require.Equal(t, StateOpen, breaker.State())

	called := false
	err := breaker.Do(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpen(t *testing.T) {
	clock := newFakeClock()
	breaker := New("test", Settings{
		Probes:   2,
		Cooldown: time.Second,
		Trip:     ConsecutiveFailures(1),
		Now:      clock.Now,
	})

	_ = breaker.Do(context.Background(), fail)
	require.Equal(t, StateOpen, breaker.State())

	clock.Advance(time.Second)
	assert.Equal(t, StateHalfOpen, breaker.State())

	require.NoError(t, breaker.Do(context.Background(), succeed))
	assert.Equal(t, StateHalfOpen, breaker.State())
	require.NoError(t, breaker.Do(context.Background(), succeed))
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	breaker := New("test", Settings{Cooldown: time.Second, Trip: ConsecutiveFailures(1), Now: clock.Now})

	_ = breaker.Do(context.Background(), fail)
	clock.Advance(time.Second)

	_ = breaker.Do(context.Background(), fail)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	clock := newFakeClock()
	breaker := New("test", Settings{Cooldown: time.Second, Trip: ConsecutiveFailures(1), Now: clock.Now})

	_ = breaker.Do(context.Background(), fail)
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = breaker.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, breaker.Do(context.Background(), succeed), ErrTooManyRequests)
	close(release)
	assert.Eventually(t, func() bool { return breaker.State() == StateClosed }, time.Second, time.Millisecond)
}

func TestBreakerWindowClearsCounts(t *testing.T) {
	clock := newFakeClock()
	breaker := New("test", Settings{Window: time.Minute, Trip: ConsecutiveFailures(2), Now: clock.Now})

	_ = breaker.Do(context.Background(), fail)
	clock.Advance(time.Minute)
	_ = breaker.Do(context.Background(), fail)

	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, uint32(1), breaker.Counts().ConsecutiveFailures)
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	breaker := New("test", Settings{Trip: ConsecutiveFailures(1)})

	err := breaker.Do(context.Background(), func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, breaker.State())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, breaker.Do(ctx, succeed), context.Canceled)
	assert.Equal(t, uint32(1), breaker.Counts().Requests)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	breaker := New("test", Settings{Trip: ConsecutiveFailures(1)})

	assert.Panics(t, func() {
		_ = breaker.Do(context.Background(), func(context.Context) error { panic("boom") })
	})
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerCallbacks(t *testing.T) {
	clock := newFakeClock()
	var transitions []string

	breaker := New("test", Settings{
		Cooldown: time.Second,
		Trip:     ConsecutiveFailures(2),
		Now:      clock.Now,
		OnStateChange: func(name string, from, to State) {
			assert.Equal(t, "test", name)
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = breaker.Do(context.Background(), fail)
	_ = breaker.Do(context.Background(), fail)
	clock.Advance(time.Second)
	require.NoError(t, breaker.Do(context.Background(), succeed))

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}
