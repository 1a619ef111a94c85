package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerFiresAndRestarts(t *testing.T) {
	var fires atomic.Int32
	timer := NewTurnTimer(30*time.Millisecond, func(ctx context.Context) error {
		fires.Add(1)
		return nil
	}, nil)
	defer timer.Stop()

	timer.Start()
	ok := eventually(t, time.Second, func() bool { return fires.Load() >= 2 })
	assert.True(t, ok, "the countdown reschedules itself after natural expiry")
}

func TestTimerStartIsIdempotent(t *testing.T) {
	var fires atomic.Int32
	timer := NewTurnTimer(60*time.Millisecond, func(ctx context.Context) error {
		fires.Add(1)
		return nil
	}, nil)
	defer timer.Stop()

	timer.Start()
	timer.Start()
	timer.Start()
	time.Sleep(90 * time.Millisecond)
	assert.LessOrEqual(t, fires.Load(), int32(1), "repeated Start never stacks countdowns")
}

func TestTimerPauseResume(t *testing.T) {
	fired := make(chan time.Time, 1)
	timer := NewTurnTimer(200*time.Millisecond, func(ctx context.Context) error {
		select {
		case fired <- time.Now():
		default:
		}
		return nil
	}, nil)
	defer timer.Stop()

	timer.Start()
	time.Sleep(100 * time.Millisecond)
	timer.Pause()

	remaining := timer.Remaining()
	assert.Greater(t, remaining, 20*time.Millisecond)
	assert.Less(t, remaining, 180*time.Millisecond)

	// Paused means paused: well past the original deadline, still nothing.
	time.Sleep(300 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("timer fired while paused")
	default:
	}

	resumedAt := time.Now()
	timer.Resume()
	select {
	case at := <-fired:
		elapsed := at.Sub(resumedAt)
		assert.Greater(t, elapsed, 20*time.Millisecond, "resume continues the frozen remainder, not a fresh countdown")
		assert.Less(t, elapsed, 190*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("timer never fired after resume")
	}
}

func TestTimerStopResets(t *testing.T) {
	fired := make(chan struct{}, 1)
	timer := NewTurnTimer(50*time.Millisecond, func(ctx context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}, nil)

	timer.Start()
	time.Sleep(20 * time.Millisecond)
	timer.Stop()
	timer.Stop() // idempotent

	assert.Equal(t, 50*time.Millisecond, timer.Remaining(), "stop restores the full duration")
	time.Sleep(100 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestTimerRegistry(t *testing.T) {
	reg := NewTimerRegistry(nil)
	g1, g2 := uuid.New(), uuid.New()

	t1 := reg.Ensure(g1, time.Minute, nil)
	require.Same(t, t1, reg.Ensure(g1, time.Hour, nil), "Ensure returns the existing timer")

	t2 := reg.Ensure(g2, time.Minute, nil)
	t1.Start()
	t2.Start()

	got, ok := reg.Get(g1)
	require.True(t, ok)
	assert.Same(t, t1, got)

	reg.Remove(g1)
	_, ok = reg.Get(g1)
	assert.False(t, ok)

	reg.StopAll()
	assert.Equal(t, time.Minute, t2.Remaining())
}

func TestEngineTurnTimerAdvancesTurn(t *testing.T) {
	eng, st, _ := newTestEngine(t, Config{TurnDuration: 40 * time.Millisecond})
	gameID := uuid.New()
	p1, p2 := pid(1), pid(2)
	seedGame(t, st, gameID, p1, p2)

	eng.startTurnTimer(gameID)

	ok := eventually(t, time.Second, func() bool {
		return getTurnState(t, st, gameID).CurrentPlayerID == p2
	})
	assert.True(t, ok, "expiry forces the turn over")
}

func TestTimerResumeWithZeroRemainderFires(t *testing.T) {
	fired := make(chan struct{}, 1)
	timer := NewTurnTimer(60*time.Millisecond, func(ctx context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}, nil)
	defer timer.Stop()

	timer.Start()
	timer.Pause()
	// A pause landing exactly on expiry leaves nothing on the clock.
	timer.mu.Lock()
	timer.remaining = 0
	timer.mu.Unlock()

	timer.Resume()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired after resuming with nothing left")
	}
}
