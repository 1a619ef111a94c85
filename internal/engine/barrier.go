package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/Justyxx-14/backend-sub000/internal/models"
	"github.com/Justyxx-14/backend-sub000/internal/store"
)

// StartPassing opens the simultaneous card-passing round. Every player must
// submit exactly one hand card before any card moves to its neighbor; the
// game waits in END_TURN until the barrier completes.
func (e *Engine) StartPassing(ctx context.Context, gameID, initiatorID uuid.UUID, direction models.PassingDirection) error {
	if direction != models.PassLeft && direction != models.PassRight {
		return fmt.Errorf("%w: direction %q", ErrCardsNotFoundOrInvalid, direction)
	}
	p := &pending{}
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		ts, err := e.turnState(tx, gameID)
		if err != nil {
			return err
		}
		if ts.Ended {
			return ErrGameEnded
		}
		ts.PassingDirection = direction
		_, err = e.transition(tx, ts, models.PhaseEndTurn, uuid.Nil, uuid.Nil, p)
		return err
	})
	if err != nil {
		return err
	}
	e.flush(gameID, p)
	e.record(gameID, initiatorID, "passing_started", map[string]any{"direction": direction})
	return nil
}

// SubmitPass stages one hand card for the passing round. Resubmission is
// rejected; the submission that completes the barrier also resolves it.
func (e *Engine) SubmitPass(ctx context.Context, gameID, playerID, cardID uuid.UUID) error {
	p := &pending{}
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		ts, err := e.turnState(tx, gameID)
		if err != nil {
			return err
		}
		if ts.Ended {
			return ErrGameEnded
		}
		if ts.Phase != models.PhaseEndTurn {
			return fmt.Errorf("%w: passing is not open", ErrWrongPhase)
		}

		staged, err := tx.CardsInZone(gameID, models.ZonePassing)
		if err != nil {
			return err
		}
		for _, c := range staged {
			if c.HolderID == playerID {
				return ErrAlreadySubmitted
			}
		}

		card, err := gameCard(tx, gameID, cardID)
		if err != nil {
			return err
		}
		if card.Zone != models.ZoneHand || card.HolderID != playerID {
			return fmt.Errorf("%w: %s is not in the player's hand", ErrCardsNotFoundOrInvalid, cardID)
		}
		if err := moveCard(tx, card, models.ZonePassing, playerID, &playerID, p); err != nil {
			return err
		}

		players, err := tx.PlayersByGame(gameID)
		if err != nil {
			return err
		}
		if len(staged)+1 == len(players) && len(players) > 0 {
			return e.resolvePassing(tx, ts, players, p)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.flush(gameID, p)
	e.record(gameID, playerID, "pass_submitted", map[string]any{"card": cardID})
	return nil
}

// resolvePassing hands every staged card to its neighbor in the ring of
// players sorted by id. Devious cards fire on receipt; if any forced pass
// triggered, the phase lands in PENDING_DEVIOUS, otherwise DISCARDING.
func (e *Engine) resolvePassing(tx store.Tx, ts *models.TurnState, players []*models.Player, p *pending) error {
	staged, err := tx.CardsInZone(ts.GameID, models.ZonePassing)
	if err != nil {
		return err
	}

	index := make(map[uuid.UUID]int, len(players))
	for i, pl := range players {
		index[pl.ID] = i
	}

	step := 1
	if ts.PassingDirection == models.PassLeft {
		step = -1
	}
	n := len(players)

	// Stable card order keeps resolution deterministic.
	sort.Slice(staged, func(i, j int) bool {
		return staged[i].ID.String() < staged[j].ID.String()
	})

	type receipt struct {
		giver, recipient uuid.UUID
		card             *models.Card
	}
	var receipts []receipt
	for _, card := range staged {
		i, ok := index[card.HolderID]
		if !ok {
			return fmt.Errorf("%w: passing card %s held by non-player", ErrCardsNotFoundOrInvalid, card.ID)
		}
		recipient := players[(i+step+n)%n].ID
		giver := card.HolderID
		if err := moveCard(tx, card, models.ZoneHand, recipient, &giver, p); err != nil {
			return err
		}
		receipts = append(receipts, receipt{giver: giver, recipient: recipient, card: card})
	}

	if _, err := e.transition(tx, ts, models.PhaseDiscarding, uuid.Nil, uuid.Nil, p); err != nil {
		return err
	}
	for _, r := range receipts {
		if err := e.deviousReceipt(tx, ts, r.giver, r.recipient, r.card, p); err != nil {
			return err
		}
	}
	return nil
}

// AcknowledgeDevious records that a player has answered their pending devious
// obligation. The last acknowledgement returns the game to DISCARDING.
func (e *Engine) AcknowledgeDevious(ctx context.Context, gameID, playerID uuid.UUID) error {
	p := &pending{}
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		ts, err := e.turnState(tx, gameID)
		if err != nil {
			return err
		}
		if ts.Ended {
			return ErrGameEnded
		}
		if ts.Phase != models.PhasePendingDevious {
			return fmt.Errorf("%w: no devious response pending", ErrWrongPhase)
		}
		found := false
		remaining := ts.PendingDevious[:0]
		for _, id := range ts.PendingDevious {
			if id == playerID {
				found = true
				continue
			}
			remaining = append(remaining, id)
		}
		if !found {
			return fmt.Errorf("%w: player %s owes no response", ErrCardsNotFoundOrInvalid, playerID)
		}
		ts.PendingDevious = remaining
		if len(remaining) == 0 {
			_, err = e.transition(tx, ts, models.PhaseDiscarding, uuid.Nil, uuid.Nil, p)
			return err
		}
		return tx.UpdateTurnState(ts)
	})
	if err != nil {
		return err
	}
	e.flush(gameID, p)
	e.record(gameID, playerID, "devious_acknowledged", nil)
	return nil
}

// StartVote opens an accusation vote. The initiator's identity is kept for
// tie-breaking; players in social disgrace cannot initiate.
func (e *Engine) StartVote(ctx context.Context, gameID, initiatorID, eventCardID uuid.UUID) error {
	p := &pending{}
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		ts, err := e.turnState(tx, gameID)
		if err != nil {
			return err
		}
		if ts.Ended {
			return ErrGameEnded
		}
		if _, err := gamePlayer(tx, gameID, initiatorID); err != nil {
			return err
		}
		secrets, err := tx.SecretsHeldBy(gameID, initiatorID)
		if err != nil {
			return err
		}
		if inDisgrace(secrets) {
			return ErrSocialDisgrace
		}
		if _, err := e.transition(tx, ts, models.PhaseVoting, initiatorID, eventCardID, p); err != nil {
			return err
		}
		p.add(Event{Type: EventVoteStarted, GameID: gameID, Payload: VoteStarted{GameID: gameID, InitiatorID: initiatorID}})
		return nil
	})
	if err != nil {
		return err
	}
	e.flush(gameID, p)
	e.record(gameID, initiatorID, "vote_started", nil)
	return nil
}

// SubmitVote records one player's vote. Self-votes and resubmissions are
// rejected; the vote that completes the barrier resolves it.
func (e *Engine) SubmitVote(ctx context.Context, gameID, voterID, targetID uuid.UUID) error {
	if voterID == targetID {
		return ErrSelfVote
	}
	p := &pending{}
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		ts, err := e.turnState(tx, gameID)
		if err != nil {
			return err
		}
		if ts.Ended {
			return ErrGameEnded
		}
		if ts.Phase != models.PhaseVoting {
			return fmt.Errorf("%w: no vote in progress", ErrWrongPhase)
		}
		if _, ok := ts.VoteMap[voterID]; ok {
			return ErrAlreadySubmitted
		}
		if _, err := gamePlayer(tx, gameID, voterID); err != nil {
			return err
		}
		if _, err := gamePlayer(tx, gameID, targetID); err != nil {
			return err
		}

		ts.VoteMap[voterID] = targetID
		if err := tx.UpdateTurnState(ts); err != nil {
			return err
		}

		players, err := tx.PlayersByGame(gameID)
		if err != nil {
			return err
		}
		if len(ts.VoteMap) == len(players) && len(players) > 0 {
			return e.resolveVote(tx, ts, p)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.flush(gameID, p)
	e.record(gameID, voterID, "vote_submitted", nil)
	return nil
}

// resolveVote tallies the complete vote map. A single strict-maximum player
// is chosen outright; a tie falls to whoever the initiator voted for. The
// chosen player must then reveal a secret of their choice.
func (e *Engine) resolveVote(tx store.Tx, ts *models.TurnState, p *pending) error {
	tally := make(map[uuid.UUID]int)
	for _, target := range ts.VoteMap {
		tally[target]++
	}
	max := 0
	for _, n := range tally {
		if n > max {
			max = n
		}
	}
	var leaders []uuid.UUID
	for target, n := range tally {
		if n == max {
			leaders = append(leaders, target)
		}
	}

	chosen := leaders[0]
	if len(leaders) > 1 {
		chosen = ts.VoteMap[ts.TargetPlayerID]
	}

	if _, err := e.transition(tx, ts, models.PhaseChoosingSecretByVote, chosen, uuid.Nil, p); err != nil {
		return err
	}
	p.add(Event{Type: EventVoteResolved, GameID: ts.GameID, Payload: VoteResolved{GameID: ts.GameID, ChosenID: chosen}})
	return nil
}

// RevealChosenSecret is how the player singled out by a vote (or an effect
// that forces a choice) reveals one of their own hidden secrets.
func (e *Engine) RevealChosenSecret(ctx context.Context, gameID, playerID, secretID uuid.UUID) error {
	var endedNow bool
	p := &pending{}
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		ts, err := e.turnState(tx, gameID)
		if err != nil {
			return err
		}
		if ts.Ended {
			return ErrGameEnded
		}
		if ts.Phase != models.PhaseChoosingSecret && ts.Phase != models.PhaseChoosingSecretByVote {
			return fmt.Errorf("%w: no secret choice pending", ErrWrongPhase)
		}
		if ts.TargetPlayerID != playerID {
			return fmt.Errorf("%w: player %s is not the one choosing", ErrCardsNotFoundOrInvalid, playerID)
		}

		secret, err := tx.Secret(secretID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: secret %s", ErrNotFound, secretID)
		}
		if err != nil {
			return err
		}
		if secret.GameID != gameID || secret.HolderID != playerID {
			return fmt.Errorf("%w: secret %s", ErrNotFound, secretID)
		}
		if secret.Revealed {
			return ErrAlreadyRevealed
		}

		endedNow, err = e.revealSecret(tx, ts, secret, p)
		if err != nil {
			return err
		}
		if endedNow {
			return nil
		}
		_, err = e.transition(tx, ts, models.PhaseIdle, uuid.Nil, uuid.Nil, p)
		return err
	})
	if err != nil {
		return err
	}
	e.flush(gameID, p)
	e.record(gameID, playerID, "secret_revealed_by_choice", map[string]any{"secret": secretID})
	if endedNow {
		e.finishGame(gameID)
	}
	return nil
}
