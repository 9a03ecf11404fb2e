package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func testConfig() Config {
	return Config{
		MaxRequests:      1,
		Timeout:          20 * time.Millisecond,
		FailureThreshold: 2,
		SuccessThreshold: 1,
	}
}

func fail(cb *CircuitBreaker) error {
	return cb.Execute(context.Background(), func() error {
		return errors.New("boom")
	})
}

func succeed(cb *CircuitBreaker) error {
	return cb.Execute(context.Background(), func() error {
		return nil
	})
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", testConfig())

	fail(cb)
	assert.Equal(t, StateClosed, cb.State())

	fail(cb)
	assert.Equal(t, StateOpen, cb.State())

	err := succeed(cb)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	cb := NewCircuitBreaker("test", testConfig())

	fail(cb)
	succeed(cb)
	fail(cb)

	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("test", testConfig())

	fail(cb)
	fail(cb)
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	err := succeed(cb)
	assert.Equal(t, nil, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", testConfig())

	fail(cb)
	fail(cb)
	time.Sleep(25 * time.Millisecond)

	fail(cb)
	assert.Equal(t, StateOpen, cb.State())
}

func TestHalfOpenLimitsProbes(t *testing.T) {
	cfg := testConfig()
	cfg.SuccessThreshold = 2
	cb := NewCircuitBreaker("test", cfg)

	fail(cb)
	fail(cb)
	time.Sleep(25 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		cb.Execute(context.Background(), func() error {
			<-done
			return nil
		})
	}()

	// The single half-open probe slot is taken by the in-flight call.
	time.Sleep(5 * time.Millisecond)
	err := succeed(cb)
	close(done)

	if !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("expected ErrTooManyRequests, got %v", err)
	}
}

func TestStateChangeCallback(t *testing.T) {
	var transitions []string
	cfg := testConfig()
	cfg.OnStateChange = func(name string, from, to State) {
		transitions = append(transitions, from.String()+">"+to.String())
	}
	cb := NewCircuitBreaker("test", cfg)

	fail(cb)
	fail(cb)

	assert.Equal(t, []string{"closed>open"}, transitions)
}
