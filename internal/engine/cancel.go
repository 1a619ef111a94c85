package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Justyxx-14/backend-sub000/internal/models"
	"github.com/Justyxx-14/backend-sub000/internal/store"
)

// cancelSignals wakes cancellation waiters without polling. Each game holds
// one channel that is closed and replaced whenever its cancel flag toggles.
type cancelSignals struct {
	mu    sync.Mutex
	chans map[uuid.UUID]chan struct{}
}

func newCancelSignals() *cancelSignals {
	return &cancelSignals{chans: make(map[uuid.UUID]chan struct{})}
}

// watch returns the channel that closes on the game's next toggle.
func (s *cancelSignals) watch(gameID uuid.UUID) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chans[gameID]
	if !ok {
		ch = make(chan struct{})
		s.chans[gameID] = ch
	}
	return ch
}

// notify closes the game's current channel and installs a fresh one.
func (s *cancelSignals) notify(gameID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.chans[gameID]; ok {
		close(ch)
	}
	s.chans[gameID] = make(chan struct{})
}

func (s *cancelSignals) drop(gameID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.chans[gameID]; ok {
		close(ch)
		delete(s.chans, gameID)
	}
}

// BeginCancellationWindow puts the game into CANCELLED_CARD_PENDING for the
// given card and aligns the observed flag with the current one, so only
// toggles made during this window count.
func (e *Engine) BeginCancellationWindow(ctx context.Context, gameID, playerID, cardID uuid.UUID) error {
	p := &pending{}
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		ts, err := e.turnState(tx, gameID)
		if err != nil {
			return err
		}
		if ts.Ended {
			return ErrGameEnded
		}
		if _, err := gameCard(tx, gameID, cardID); err != nil {
			return err
		}
		ts.LastObservedCancelFlag = ts.CancelFlag
		_, err = e.transition(tx, ts, models.PhaseCancelledCardPending, playerID, cardID, p)
		return err
	})
	if err != nil {
		return err
	}
	e.flush(gameID, p)
	e.record(gameID, playerID, "cancellation_window_opened", map[string]any{"card": cardID})
	return nil
}

// ToggleCancelFlag flips the game's cancel flag during an open cancellation
// window and wakes the waiting goroutine.
func (e *Engine) ToggleCancelFlag(ctx context.Context, gameID, playerID uuid.UUID) error {
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		ts, err := e.turnState(tx, gameID)
		if err != nil {
			return err
		}
		if ts.Ended {
			return ErrGameEnded
		}
		if ts.Phase != models.PhaseCancelledCardPending {
			return fmt.Errorf("%w: no cancellation window open", ErrWrongPhase)
		}
		ts.CancelFlag = !ts.CancelFlag
		return tx.UpdateTurnState(ts)
	})
	if err != nil {
		return err
	}
	e.cancels.notify(gameID)
	e.record(gameID, playerID, "cancel_toggled", nil)
	return nil
}

// AwaitCancellation blocks until the cancellation window settles: the
// deadline refreshes on every observed toggle, and the wait ends when no new
// toggle arrives within the window. Returns whether the pending card ended up
// cancelled. If the phase leaves CANCELLED_CARD_PENDING while waiting, the
// wait aborts with ErrNotFound. Never deadlocks: the context, the deadline,
// or the phase change always terminates it.
func (e *Engine) AwaitCancellation(ctx context.Context, gameID uuid.UUID) (bool, error) {
	deadline := time.NewTimer(e.cfg.CancelWindow)
	defer deadline.Stop()

	var cancelled bool
	for {
		// Subscribe before reading so a toggle between the read and the
		// select is never missed.
		ch := e.cancels.watch(gameID)

		var phase models.Phase
		var flag, observed bool
		err := e.store.View(ctx, gameID, func(tx store.Tx) error {
			ts, err := e.turnState(tx, gameID)
			if err != nil {
				return err
			}
			phase = ts.Phase
			flag = ts.CancelFlag
			observed = ts.LastObservedCancelFlag
			return nil
		})
		if err != nil {
			return false, err
		}
		if phase != models.PhaseCancelledCardPending {
			return false, ErrNotFound
		}

		if flag != observed {
			err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
				ts, err := e.turnState(tx, gameID)
				if err != nil {
					return err
				}
				ts.LastObservedCancelFlag = ts.CancelFlag
				return tx.UpdateTurnState(ts)
			})
			if err != nil {
				return false, err
			}
			cancelled = flag
			if !deadline.Stop() {
				select {
				case <-deadline.C:
				default:
				}
			}
			deadline.Reset(e.cfg.CancelWindow)
			continue
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return cancelled, nil
		case <-ch:
		}
	}
}
