package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TimeoutFunc runs when a turn countdown expires naturally.
type TimeoutFunc func(ctx context.Context) error

// TurnTimer is one game's turn countdown. Start begins (or resumes) the
// countdown; Pause freezes the remaining time without firing the callback;
// Resume continues with exactly the frozen remainder; Stop resets the
// remainder to the full duration. On natural expiry the callback fires
// asynchronously and the countdown restarts for the next turn regardless of
// the callback's outcome.
type TurnTimer struct {
	mu        sync.Mutex
	duration  time.Duration
	remaining time.Duration
	running   bool
	gen       uint64
	cancel    context.CancelFunc
	startedAt time.Time
	onTimeout TimeoutFunc
	log       logrus.FieldLogger
}

// NewTurnTimer builds a stopped timer holding the full duration.
func NewTurnTimer(d time.Duration, fn TimeoutFunc, log logrus.FieldLogger) *TurnTimer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TurnTimer{duration: d, remaining: d, onTimeout: fn, log: log}
}

// Start begins the countdown. A no-op while already running.
func (t *TurnTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running || t.duration <= 0 {
		return
	}
	t.running = true
	t.startWaitLocked()
}

// Pause freezes the remaining time. The callback does not fire. A no-op when
// not running.
func (t *TurnTimer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.remaining -= time.Since(t.startedAt)
	if t.remaining < 0 {
		t.remaining = 0
	}
	t.cancelLocked()
	t.running = false
}

// Resume continues a paused countdown with the exact remaining time. A timer
// paused with nothing left expires immediately.
func (t *TurnTimer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running || t.duration <= 0 {
		return
	}
	t.running = true
	t.startWaitLocked()
}

// Stop halts the countdown and resets the remainder to the full duration.
// Idempotent.
func (t *TurnTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.running = false
	t.remaining = t.duration
}

// Remaining reports the time left on the countdown.
func (t *TurnTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return t.remaining
	}
	rem := t.remaining - time.Since(t.startedAt)
	if rem < 0 {
		rem = 0
	}
	return rem
}

func (t *TurnTimer) cancelLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.gen++
}

// startWaitLocked spawns the waiter goroutine for the current remainder.
// Assumes lock is held by caller and t.running is set.
func (t *TurnTimer) startWaitLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.gen++
	t.startedAt = time.Now()
	go t.wait(ctx, t.gen, t.remaining)
}

func (t *TurnTimer) wait(ctx context.Context, gen uint64, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	t.mu.Lock()
	if !t.running || t.gen != gen {
		t.mu.Unlock()
		return
	}
	fn := t.onTimeout
	t.remaining = t.duration
	t.startWaitLocked()
	t.mu.Unlock()

	if fn == nil {
		return
	}
	if err := fn(context.Background()); err != nil {
		t.log.WithError(err).Warn("turn timeout callback failed")
	}
}

// TimerRegistry owns one TurnTimer per game. Injected into the Engine so
// timers have an explicit lifecycle and the process can stop them all at
// shutdown.
type TimerRegistry struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*TurnTimer
	log    logrus.FieldLogger
}

// NewTimerRegistry returns an empty registry.
func NewTimerRegistry(log logrus.FieldLogger) *TimerRegistry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TimerRegistry{timers: make(map[uuid.UUID]*TurnTimer), log: log}
}

// Ensure returns the game's timer, creating it with the given duration and
// callback on first use.
func (r *TimerRegistry) Ensure(gameID uuid.UUID, d time.Duration, fn TimeoutFunc) *TurnTimer {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[gameID]
	if !ok {
		t = NewTurnTimer(d, fn, r.log.WithField("game", gameID))
		r.timers[gameID] = t
	}
	return t
}

// Get looks up the game's timer.
func (r *TimerRegistry) Get(gameID uuid.UUID) (*TurnTimer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[gameID]
	return t, ok
}

// Remove stops and forgets the game's timer.
func (r *TimerRegistry) Remove(gameID uuid.UUID) {
	r.mu.Lock()
	t, ok := r.timers[gameID]
	if ok {
		delete(r.timers, gameID)
	}
	r.mu.Unlock()
	if ok {
		t.Stop()
	}
}

// StopAll stops every registered timer. Used at process shutdown.
func (r *TimerRegistry) StopAll() {
	r.mu.Lock()
	all := make([]*TurnTimer, 0, len(r.timers))
	for _, t := range r.timers {
		all = append(all, t)
	}
	r.mu.Unlock()
	for _, t := range all {
		t.Stop()
	}
}
