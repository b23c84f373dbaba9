package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/alexchen1337/SpeakWell/internal/scheduler"
)

const testInterval = 5 * time.Millisecond

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// Test: once done is reported, no further ticks fire.
func TestPoller_StopsOnDone(t *testing.T) {
	p := scheduler.New(testInterval, zap.NewNop())

	var ticks atomic.Int32
	p.Start("transcript", "a1", func(ctx context.Context) (bool, error) {
		return ticks.Add(1) >= 3, nil
	})

	waitFor(t, time.Second, func() bool { return ticks.Load() == 3 })

	// Let several more intervals elapse; the count must not move.
	time.Sleep(10 * testInterval)
	if got := ticks.Load(); got != 3 {
		t.Errorf("expected exactly 3 ticks after done, got %d", got)
	}
	if p.ActiveCount() != 0 {
		t.Errorf("expected 0 active loops after done, got %d", p.ActiveCount())
	}
}

// Test: starting a second poll for the same key supersedes the first, never
// producing two live timers.
func TestPoller_StartSupersedes(t *testing.T) {
	p := scheduler.New(testInterval, zap.NewNop())

	var first, second atomic.Int32
	h1 := p.Start("transcript", "a1", func(ctx context.Context) (bool, error) {
		first.Add(1)
		return false, nil
	})
	h2 := p.Start("transcript", "a1", func(ctx context.Context) (bool, error) {
		second.Add(1)
		return false, nil
	})

	waitFor(t, time.Second, func() bool { return !h1.Active() })

	if p.ActiveCount() != 1 {
		t.Fatalf("expected 1 active loop, got %d", p.ActiveCount())
	}

	// The first loop is dead: its count must freeze while the second keeps ticking.
	frozen := first.Load()
	waitFor(t, time.Second, func() bool { return second.Load() >= frozen+3 })
	if first.Load() != frozen {
		t.Errorf("superseded loop ticked again: %d -> %d", frozen, first.Load())
	}

	h2.Cancel()
}

// Test: Cancel is idempotent and safe after natural completion.
func TestPoller_CancelIdempotent(t *testing.T) {
	p := scheduler.New(testInterval, zap.NewNop())

	h := p.Start("gradings", "t1", func(ctx context.Context) (bool, error) {
		return true, nil
	})

	waitFor(t, time.Second, func() bool { return !h.Active() })

	// Must not panic or block.
	h.Cancel()
	h.Cancel()
}

// Test: a transient error does not stop the schedule; the next tick still fires.
func TestPoller_TransientErrorKeepsTicking(t *testing.T) {
	p := scheduler.New(testInterval, zap.NewNop())

	var ticks atomic.Int32
	h := p.Start("transcript", "a1", func(ctx context.Context) (bool, error) {
		n := ticks.Add(1)
		if n == 2 {
			return false, errors.New("connection reset")
		}
		return false, nil
	})
	defer h.Cancel()

	waitFor(t, time.Second, func() bool { return ticks.Load() >= 5 })
}

// Test: StopAll cancels every outstanding handle.
func TestPoller_StopAll(t *testing.T) {
	p := scheduler.New(testInterval, zap.NewNop())

	var ticks atomic.Int32
	h1 := p.Start("transcript", "a1", func(ctx context.Context) (bool, error) {
		ticks.Add(1)
		return false, nil
	})
	h2 := p.Start("gradings", "t1", func(ctx context.Context) (bool, error) {
		ticks.Add(1)
		return false, nil
	})

	p.StopAll()

	if h1.Active() || h2.Active() {
		t.Error("expected both handles cancelled after StopAll")
	}
	if p.ActiveCount() != 0 {
		t.Errorf("expected 0 active loops, got %d", p.ActiveCount())
	}

	// No tick may fire once cancelled.
	settled := ticks.Load()
	time.Sleep(10 * testInterval)
	if ticks.Load() != settled {
		t.Errorf("ticks fired after StopAll: %d -> %d", settled, ticks.Load())
	}
}

// Test: cancellation while a check is in flight discards its outcome; the
// loop exits without another tick.
func TestPoller_CancelDuringInFlightCheck(t *testing.T) {
	p := scheduler.New(testInterval, zap.NewNop())

	inFlight := make(chan struct{})
	release := make(chan struct{})
	var ticks atomic.Int32

	h := p.Start("transcript", "a1", func(ctx context.Context) (bool, error) {
		ticks.Add(1)
		close(inFlight)
		<-release
		return false, nil
	})

	<-inFlight
	h.Cancel()
	close(release)

	waitFor(t, time.Second, func() bool { return p.ActiveCount() == 0 })
	time.Sleep(10 * testInterval)
	if got := ticks.Load(); got != 1 {
		t.Errorf("expected exactly 1 tick, got %d", got)
	}
}
