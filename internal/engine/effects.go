package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Justyxx-14/backend-sub000/internal/models"
	"github.com/Justyxx-14/backend-sub000/internal/store"
)

// EffectParams carries the effect-specific choices a player makes when
// playing an event card. Unused fields stay zero.
type EffectParams struct {
	// TargetCardID is the discard card to retrieve (ashes retrieval).
	TargetCardID uuid.UUID

	// TargetPlayerID is the player acted on (strip defenses, secret
	// transfer, card trade).
	TargetPlayerID uuid.UUID

	// TargetSecretID is the revealed secret to hide and hand over.
	TargetSecretID uuid.UUID

	// TargetSetID is the set to take over.
	TargetSetID uuid.UUID

	// GiveCardID and TakeCardID are the two sides of a card trade.
	GiveCardID uuid.UUID
	TakeCardID uuid.UUID
}

// PlayEventCard resolves an event card from the player's hand. The trigger
// card leaves the hand as part of resolution: most effects discard it, the
// deck purge and discard recycle remove it from the game entirely.
func (e *Engine) PlayEventCard(ctx context.Context, gameID, playerID, cardID uuid.UUID, params EffectParams) error {
	p := &pending{}
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		ts, err := e.turnState(tx, gameID)
		if err != nil {
			return err
		}
		if ts.Ended {
			return ErrGameEnded
		}

		card, err := gameCard(tx, gameID, cardID)
		if err != nil {
			return err
		}
		if card.Zone != models.ZoneHand || card.HolderID != playerID {
			return fmt.Errorf("%w: card %s is not in the player's hand", ErrCardsNotFoundOrInvalid, cardID)
		}

		switch card.Effect {
		case models.EffectAshesRetrieval:
			return e.resolveAshesRetrieval(tx, card, playerID, params.TargetCardID, p)
		case models.EffectDeckPurge:
			return e.resolveDeckPurge(tx, card, playerID, p)
		case models.EffectDiscardRecycle:
			return e.resolveDiscardRecycle(tx, card, playerID, p)
		case models.EffectStripDefenses:
			return e.resolveStripDefenses(tx, card, playerID, params.TargetPlayerID, p)
		case models.EffectSecretTransfer:
			return e.resolveSecretTransfer(tx, card, playerID, params.TargetPlayerID, params.TargetSecretID, p)
		case models.EffectSetTransfer:
			return e.resolveSetTransfer(tx, card, playerID, params.TargetSetID, p)
		case models.EffectCardTrade:
			return e.resolveCardTrade(tx, ts, card, playerID, params, p)
		case models.EffectNone, models.EffectBlackmail, models.EffectForcedPass:
			// Defensive and devious cards have no active play; they matter
			// while held or when they change hands.
			return fmt.Errorf("%w: %s cannot be played", ErrCardsNotFoundOrInvalid, card.Code)
		default:
			return fmt.Errorf("%w: unknown effect %d", ErrCardsNotFoundOrInvalid, card.Effect)
		}
	})
	if err != nil {
		return err
	}
	e.flush(gameID, p)
	e.record(gameID, playerID, "play_event_card", map[string]any{"card": cardID})
	return nil
}

// topOfDiscard returns the reach most recent discards, most recent first.
func topOfDiscard(tx store.Tx, gameID uuid.UUID, reach int) ([]*models.Card, error) {
	discard, err := tx.CardsInZone(gameID, models.ZoneDiscard)
	if err != nil {
		return nil, err
	}
	sortBySeqDesc(discard)
	if len(discard) > reach {
		discard = discard[:reach]
	}
	return discard, nil
}

// resolveAshesRetrieval moves one of the five most recent discards into the
// actor's hand; the trigger card is discarded.
func (e *Engine) resolveAshesRetrieval(tx store.Tx, trigger *models.Card, actorID, targetCardID uuid.UUID, p *pending) error {
	reachable, err := topOfDiscard(tx, trigger.GameID, AshesReach)
	if err != nil {
		return err
	}
	var target *models.Card
	for _, c := range reachable {
		if c.ID == targetCardID {
			target = c
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: card %s is not among the top %d discards", ErrCardsNotFoundOrInvalid, targetCardID, AshesReach)
	}
	if err := moveCard(tx, target, models.ZoneHand, actorID, &actorID, p); err != nil {
		return err
	}
	return moveCard(tx, trigger, models.ZoneDiscard, uuid.Nil, &actorID, p)
}

// resolveDeckPurge discards the top six deck cards and removes the trigger
// card from the game. Fewer than six remaining all go.
func (e *Engine) resolveDeckPurge(tx store.Tx, trigger *models.Card, actorID uuid.UUID, p *pending) error {
	deck, err := tx.CardsInZone(trigger.GameID, models.ZoneDeck)
	if err != nil {
		return err
	}
	sortBySeqDesc(deck)
	if len(deck) > DeckPurgeCount {
		deck = deck[:DeckPurgeCount]
	}
	for _, c := range deck {
		if err := moveCard(tx, c, models.ZoneDiscard, uuid.Nil, &actorID, p); err != nil {
			return err
		}
	}
	return moveCard(tx, trigger, models.ZoneRemoved, uuid.Nil, &actorID, p)
}

// resolveDiscardRecycle returns the five most recent discards to the deck top
// and removes the trigger card from the game. The most recent discard ends up
// on top of the deck.
func (e *Engine) resolveDiscardRecycle(tx store.Tx, trigger *models.Card, actorID uuid.UUID, p *pending) error {
	recent, err := topOfDiscard(tx, trigger.GameID, DiscardRecycleCount)
	if err != nil {
		return err
	}
	// Walk oldest-first so the most recent discard gets the highest deck
	// sequence index.
	for i := len(recent) - 1; i >= 0; i-- {
		if err := moveCard(tx, recent[i], models.ZoneDeck, uuid.Nil, &actorID, p); err != nil {
			return err
		}
	}
	return moveCard(tx, trigger, models.ZoneRemoved, uuid.Nil, &actorID, p)
}

// resolveStripDefenses discards every defensive card in the target's hand
// along with the trigger card.
func (e *Engine) resolveStripDefenses(tx store.Tx, trigger *models.Card, actorID, targetID uuid.UUID, p *pending) error {
	if targetID == uuid.Nil {
		return fmt.Errorf("%w: strip defenses requires a target player", ErrCardsNotFoundOrInvalid)
	}
	if _, err := gamePlayer(tx, trigger.GameID, targetID); err != nil {
		return err
	}
	hand, err := tx.HandCards(trigger.GameID, targetID)
	if err != nil {
		return err
	}
	for _, c := range hand {
		if c.Code != models.CodeAlibi {
			continue
		}
		if err := moveCard(tx, c, models.ZoneDiscard, uuid.Nil, &actorID, p); err != nil {
			return err
		}
	}
	return moveCard(tx, trigger, models.ZoneDiscard, uuid.Nil, &actorID, p)
}

// resolveSecretTransfer hides a revealed secret and hands it to the target
// player; the trigger card is discarded.
func (e *Engine) resolveSecretTransfer(tx store.Tx, trigger *models.Card, actorID, targetID, secretID uuid.UUID, p *pending) error {
	if targetID == uuid.Nil {
		return fmt.Errorf("%w: secret transfer requires a target player", ErrCardsNotFoundOrInvalid)
	}
	if _, err := gamePlayer(tx, trigger.GameID, targetID); err != nil {
		return err
	}
	secret, err := tx.Secret(secretID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: secret %s", ErrNotFound, secretID)
	}
	if err != nil {
		return err
	}
	if secret.GameID != trigger.GameID {
		return fmt.Errorf("%w: secret %s", ErrNotFound, secretID)
	}
	if !secret.Revealed {
		return fmt.Errorf("%w: only a revealed secret can be transferred", ErrAlreadyHidden)
	}

	secret.Revealed = false
	secret.HolderID = targetID
	if err := tx.UpdateSecret(secret); err != nil {
		return err
	}
	p.add(Event{Type: EventSecretUpdated, GameID: trigger.GameID, Payload: SecretUpdated{
		GameID: trigger.GameID, SecretID: secret.ID, HolderID: targetID, Revealed: false,
	}})
	return moveCard(tx, trigger, models.ZoneDiscard, uuid.Nil, &actorID, p)
}

// resolveSetTransfer reassigns another player's set to the actor; the trigger
// card is discarded.
func (e *Engine) resolveSetTransfer(tx store.Tx, trigger *models.Card, actorID, setID uuid.UUID, p *pending) error {
	set, err := tx.Set(setID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: set %s", ErrNotFound, setID)
	}
	if err != nil {
		return err
	}
	if set.GameID != trigger.GameID {
		return fmt.Errorf("%w: set %s", ErrNotFound, setID)
	}
	if set.OwnerID == actorID {
		return fmt.Errorf("%w: cannot poach your own set", ErrCardsNotFoundOrInvalid)
	}

	set.OwnerID = actorID
	if err := tx.UpdateSet(set); err != nil {
		return err
	}
	for _, cardID := range set.CardIDs {
		card, err := gameCard(tx, trigger.GameID, cardID)
		if err != nil {
			return err
		}
		if err := moveCard(tx, card, models.ZoneSet, actorID, &actorID, p); err != nil {
			return err
		}
	}
	p.add(Event{Type: EventSetUpdated, GameID: trigger.GameID, Payload: SetUpdated{
		GameID: trigger.GameID, SetID: set.ID, OwnerID: actorID, Type: set.Type,
	}})
	return moveCard(tx, trigger, models.ZoneDiscard, uuid.Nil, &actorID, p)
}

// resolveCardTrade exchanges one card each between the actor's and target's
// hands, firing devious triggers on both received cards; the trigger card is
// discarded.
func (e *Engine) resolveCardTrade(tx store.Tx, ts *models.TurnState, trigger *models.Card, actorID uuid.UUID, params EffectParams, p *pending) error {
	targetID := params.TargetPlayerID
	if targetID == uuid.Nil || targetID == actorID {
		return fmt.Errorf("%w: card trade requires another player", ErrCardsNotFoundOrInvalid)
	}
	if _, err := gamePlayer(tx, trigger.GameID, targetID); err != nil {
		return err
	}

	give, err := gameCard(tx, trigger.GameID, params.GiveCardID)
	if err != nil {
		return err
	}
	if give.Zone != models.ZoneHand || give.HolderID != actorID {
		return fmt.Errorf("%w: %s is not in the actor's hand", ErrCardsNotFoundOrInvalid, give.ID)
	}
	take, err := gameCard(tx, trigger.GameID, params.TakeCardID)
	if err != nil {
		return err
	}
	if take.Zone != models.ZoneHand || take.HolderID != targetID {
		return fmt.Errorf("%w: %s is not in the target's hand", ErrCardsNotFoundOrInvalid, take.ID)
	}

	if err := moveCard(tx, give, models.ZoneHand, targetID, &actorID, p); err != nil {
		return err
	}
	if err := moveCard(tx, take, models.ZoneHand, actorID, &actorID, p); err != nil {
		return err
	}
	if err := e.deviousReceipt(tx, ts, actorID, targetID, give, p); err != nil {
		return err
	}
	if err := e.deviousReceipt(tx, ts, targetID, actorID, take, p); err != nil {
		return err
	}
	return moveCard(tx, trigger, models.ZoneDiscard, uuid.Nil, &actorID, p)
}

// deviousReceipt fires when a devious card lands in a new hand, whether by
// trade or by the passing barrier. Blackmail privately shows the giver the
// recipient's unrevealed secrets; a forced pass queues the recipient into
// PENDING_DEVIOUS.
func (e *Engine) deviousReceipt(tx store.Tx, ts *models.TurnState, giverID, recipientID uuid.UUID, card *models.Card, p *pending) error {
	switch card.Effect {
	case models.EffectBlackmail:
		secrets, err := tx.SecretsHeldBy(card.GameID, recipientID)
		if err != nil {
			return err
		}
		payload := BlackmailTriggered{
			ActorPlayerID:   giverID,
			TargetPlayerID:  recipientID,
			TriggerCardName: card.Name,
		}
		for _, s := range secrets {
			if !s.Revealed {
				payload.AvailableSecrets = append(payload.AvailableSecrets, SecretRef{ID: s.ID, Name: s.Name})
			}
		}
		p.addToPlayer(giverID, Event{Type: EventBlackmailTriggered, GameID: card.GameID, Payload: payload})
	case models.EffectForcedPass:
		if _, err := e.transition(tx, ts, models.PhasePendingDevious, recipientID, card.ID, p); err != nil {
			return err
		}
	}
	return nil
}
