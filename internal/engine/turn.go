package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Justyxx-14/backend-sub000/internal/models"
	"github.com/Justyxx-14/backend-sub000/internal/store"
)

// applyTransition mutates ts into the next phase, enforcing the phase
// machine's bookkeeping rules:
//
//   - entering VOTING resets the vote map and records the initiator (in
//     TargetPlayerID) and the event card under vote;
//   - entering CHOOSING_SECRET or CHOOSING_SECRET_BY_VOTE requires a target;
//   - entering PENDING_DEVIOUS appends the target to the pending list instead
//     of replacing it; any other phase clears the list;
//   - leaving VOTING clears the vote map and the event card;
//   - otherwise the target and event card are fully replaced.
func applyTransition(ts *models.TurnState, next models.Phase, target, eventCard uuid.UUID) error {
	switch next {
	case models.PhaseChoosingSecret, models.PhaseChoosingSecretByVote:
		if target == uuid.Nil {
			return fmt.Errorf("%w: %s requires a target player", ErrInvalidStateTransition, next)
		}
	}

	if ts.Phase == models.PhaseVoting && next != models.PhaseVoting {
		ts.VoteMap = nil
		ts.CurrentEventCardID = uuid.Nil
	}

	switch next {
	case models.PhaseVoting:
		ts.VoteMap = make(map[uuid.UUID]uuid.UUID)
		ts.TargetPlayerID = target
		ts.CurrentEventCardID = eventCard
	case models.PhasePendingDevious:
		if target != uuid.Nil && !containsID(ts.PendingDevious, target) {
			ts.PendingDevious = append(ts.PendingDevious, target)
		}
		ts.TargetPlayerID = target
		ts.CurrentEventCardID = eventCard
	default:
		ts.TargetPlayerID = target
		ts.CurrentEventCardID = eventCard
	}

	if next != models.PhasePendingDevious {
		ts.PendingDevious = nil
	}
	ts.Phase = next
	return nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// transition applies and persists a phase change within a transaction.
func (e *Engine) transition(tx store.Tx, ts *models.TurnState, next models.Phase, target, eventCard uuid.UUID, p *pending) (*models.TurnState, error) {
	if err := applyTransition(ts, next, target, eventCard); err != nil {
		return nil, err
	}
	if err := tx.UpdateTurnState(ts); err != nil {
		return nil, err
	}
	return ts, nil
}

// Transition moves the game to the given phase directly. Gameplay operations
// drive most transitions themselves; this is the explicit entry point for
// phases the transport layer initiates, such as CHOOSING_SECRET.
func (e *Engine) Transition(ctx context.Context, gameID uuid.UUID, next models.Phase, target, eventCard uuid.UUID) error {
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		ts, err := e.turnState(tx, gameID)
		if err != nil {
			return err
		}
		if ts.Ended {
			return ErrGameEnded
		}
		_, err = e.transition(tx, ts, next, target, eventCard, nil)
		return err
	})
	return err
}

// EndTurn rotates play to the next player in stable id order and resets the
// turn timer. Only the current player may end their own turn.
func (e *Engine) EndTurn(ctx context.Context, gameID, playerID uuid.UUID) error {
	var next uuid.UUID
	p := &pending{}
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		ts, err := e.turnState(tx, gameID)
		if err != nil {
			return err
		}
		if ts.Ended {
			return ErrGameEnded
		}
		if ts.CurrentPlayerID != playerID {
			return fmt.Errorf("%w: not %s's turn", ErrWrongPhase, playerID)
		}
		next, err = e.rotate(tx, ts, p)
		return err
	})
	if err != nil {
		return err
	}
	e.flush(gameID, p)
	e.record(gameID, playerID, "end_turn", map[string]any{"next": next})
	e.resetTurnTimer(gameID)
	return nil
}

// rotate advances CurrentPlayerID to the next player in stable id order and
// returns to IDLE. Assumes the caller holds the game transaction.
func (e *Engine) rotate(tx store.Tx, ts *models.TurnState, p *pending) (uuid.UUID, error) {
	players, err := tx.PlayersByGame(ts.GameID)
	if err != nil {
		return uuid.Nil, err
	}
	if len(players) == 0 {
		return uuid.Nil, ErrGameNotFound
	}
	idx := 0
	for i, pl := range players {
		if pl.ID == ts.CurrentPlayerID {
			idx = i
			break
		}
	}
	next := players[(idx+1)%len(players)].ID
	ts.CurrentPlayerID = next
	if _, err := e.transition(tx, ts, models.PhaseIdle, uuid.Nil, uuid.Nil, p); err != nil {
		return uuid.Nil, err
	}
	p.add(Event{Type: EventTurnChanged, GameID: ts.GameID, Payload: TurnChanged{GameID: ts.GameID, PlayerID: next}})
	return next, nil
}

// advanceTurn is the timer expiry path: the turn ends regardless of phase.
func (e *Engine) advanceTurn(ctx context.Context, gameID uuid.UUID) error {
	var next uuid.UUID
	p := &pending{}
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		ts, err := e.turnState(tx, gameID)
		if err != nil {
			return err
		}
		if ts.Ended {
			return nil
		}
		next, err = e.rotate(tx, ts, p)
		return err
	})
	if err != nil {
		return err
	}
	e.flush(gameID, p)
	e.record(gameID, uuid.Nil, "turn_expired", map[string]any{"next": next})
	return nil
}

func (e *Engine) startTurnTimer(gameID uuid.UUID) {
	if e.cfg.TurnDuration <= 0 {
		return
	}
	e.timers.Ensure(gameID, e.cfg.TurnDuration, func(ctx context.Context) error {
		return e.advanceTurn(ctx, gameID)
	}).Start()
}

func (e *Engine) resetTurnTimer(gameID uuid.UUID) {
	if t, ok := e.timers.Get(gameID); ok {
		t.Stop()
		t.Start()
	}
}

// endGame marks the game over, names the winning team for the given reason,
// and emits the terminal notification. Assumes the caller holds the game
// transaction; the caller must also call finishGame after commit.
func (e *Engine) endGame(tx store.Tx, ts *models.TurnState, reason EndReason, p *pending) error {
	if ts.Ended {
		return nil
	}
	ts.Ended = true
	if err := tx.UpdateTurnState(ts); err != nil {
		return err
	}

	players, err := tx.PlayersByGame(ts.GameID)
	if err != nil {
		return err
	}
	secrets, err := tx.SecretsByGame(ts.GameID)
	if err != nil {
		return err
	}

	roles := make(map[uuid.UUID]models.SecretRole)
	foundMurderer := false
	for _, s := range secrets {
		switch s.Role {
		case models.RoleMurderer:
			foundMurderer = true
			roles[s.HolderID] = models.RoleMurderer
		case models.RoleAccomplice:
			if roles[s.HolderID] != models.RoleMurderer {
				roles[s.HolderID] = models.RoleAccomplice
			}
		}
	}
	if !foundMurderer {
		return ErrMurdererSecretMissing
	}

	team := TeamMurderer
	if reason == ReasonMurdererRevealed {
		team = TeamDetectives
	}

	ended := GameEnded{Reason: reason, WinningTeam: team}
	for _, pl := range players {
		role, onMurdererTeam := roles[pl.ID]
		if !onMurdererTeam {
			role = models.RoleCommon
		}
		ended.PlayerRoles = append(ended.PlayerRoles, PlayerRole{ID: pl.ID, Name: pl.Name, Role: role})
		if (team == TeamMurderer) == onMurdererTeam {
			ended.Winners = append(ended.Winners, PlayerRef{ID: pl.ID, Name: pl.Name})
		}
	}
	p.add(Event{Type: EventGameEnded, GameID: ts.GameID, Payload: ended})

	e.log.WithFields(map[string]any{
		"game":   ts.GameID,
		"reason": reason,
		"team":   team,
	}).Info("game ended")
	return nil
}

// finishGame releases per-game runtime resources once the end of game has
// committed.
func (e *Engine) finishGame(gameID uuid.UUID) {
	e.timers.Remove(gameID)
	e.cancels.drop(gameID)
}
