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

// sortBySeqDesc orders sequenced cards top-of-stack first.
func sortBySeqDesc(cards []*models.Card) {
	sort.Slice(cards, func(i, j int) bool {
		return cards[i].SequenceIndex > cards[j].SequenceIndex
	})
}

func nextSequence(tx store.Tx, gameID uuid.UUID, zone models.Zone) (int, error) {
	cards, err := tx.CardsInZone(gameID, zone)
	if err != nil {
		return 0, err
	}
	max := models.NoSequence
	for _, c := range cards {
		if c.SequenceIndex > max {
			max = c.SequenceIndex
		}
	}
	return max + 1, nil
}

// moveCard performs one validated zone transition inside a transaction. Zones
// requiring a holder must receive one; pile zones must not. Sequenced zones
// get the next index on top; every other zone clears the index.
func moveCard(tx store.Tx, card *models.Card, zone models.Zone, holderID uuid.UUID, actorID *uuid.UUID, p *pending) error {
	if zone.RequiresHolder() {
		if holderID == uuid.Nil {
			return fmt.Errorf("%w: zone %s requires a holder", ErrCardsNotFoundOrInvalid, zone)
		}
	} else if holderID != uuid.Nil {
		return fmt.Errorf("%w: zone %s does not take a holder", ErrCardsNotFoundOrInvalid, zone)
	}

	from := ZoneRef{Zone: card.Zone}
	if card.HolderID != uuid.Nil {
		h := card.HolderID
		from.PlayerID = &h
	}

	if zone.Sequenced() {
		seq, err := nextSequence(tx, card.GameID, zone)
		if err != nil {
			return err
		}
		card.SequenceIndex = seq
	} else {
		card.SequenceIndex = models.NoSequence
	}
	card.Zone = zone
	card.HolderID = holderID
	if err := tx.UpdateCard(card); err != nil {
		return err
	}

	to := ZoneRef{Zone: zone}
	if holderID != uuid.Nil {
		h := holderID
		to.PlayerID = &h
	}
	p.add(Event{Type: EventCardMoved, GameID: card.GameID, Payload: CardMoved{
		GameID: card.GameID, CardID: card.ID, From: from, To: to, ActorID: actorID,
	}})
	return nil
}

// gameCard fetches a card and checks it belongs to the game.
func gameCard(tx store.Tx, gameID, cardID uuid.UUID) (*models.Card, error) {
	card, err := tx.Card(cardID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, err
	}
	if card.GameID != gameID {
		return nil, ErrCardNotFound
	}
	return card, nil
}

// gamePlayer fetches a player and checks they belong to the game. The players
// table is global, so the id alone does not prove membership.
func gamePlayer(tx store.Tx, gameID, playerID uuid.UUID) (*models.Player, error) {
	pl, err := tx.Player(playerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	if err != nil {
		return nil, err
	}
	if pl.GameID != gameID {
		return nil, fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	return pl, nil
}

// MoveCard relocates a single card to the given zone. It is the low-level
// administrative move; gameplay operations layer their own validation on top.
func (e *Engine) MoveCard(ctx context.Context, gameID, cardID uuid.UUID, zone models.Zone, holderID uuid.UUID) error {
	p := &pending{}
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		card, err := gameCard(tx, gameID, cardID)
		if err != nil {
			return err
		}
		return moveCard(tx, card, zone, holderID, nil, p)
	})
	if err != nil {
		return err
	}
	e.flush(gameID, p)
	return nil
}

// DrawFromDeck pops the top n deck cards into the player's hand. The whole
// draw is rejected before any card moves if it would exceed the hand limit.
// The phase becomes END_TURN when the hand fills, DRAWING_CARDS otherwise.
// Returns whether the deck is empty after the draw.
func (e *Engine) DrawFromDeck(ctx context.Context, gameID, playerID uuid.UUID, n int) (bool, error) {
	if n <= 0 {
		return false, fmt.Errorf("%w: draw count must be positive", ErrCardsNotFoundOrInvalid)
	}
	var deckEmpty bool
	p := &pending{}
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		ts, err := e.turnState(tx, gameID)
		if err != nil {
			return err
		}
		if ts.Ended {
			return ErrGameEnded
		}

		hand, err := tx.HandCards(gameID, playerID)
		if err != nil {
			return err
		}
		if len(hand)+n > MaxHandSize {
			return fmt.Errorf("%w: hand %d + draw %d > %d", ErrHandLimitExceeded, len(hand), n, MaxHandSize)
		}

		deck, err := tx.CardsInZone(gameID, models.ZoneDeck)
		if err != nil {
			return err
		}
		if len(deck) < n {
			return fmt.Errorf("%w: deck holds %d cards", ErrNoCardsAvailable, len(deck))
		}
		sortBySeqDesc(deck)
		for _, card := range deck[:n] {
			if err := moveCard(tx, card, models.ZoneHand, playerID, &playerID, p); err != nil {
				return err
			}
		}

		next := models.PhaseDrawingCards
		if len(hand)+n == MaxHandSize {
			next = models.PhaseEndTurn
		}
		if _, err := e.transition(tx, ts, next, uuid.Nil, uuid.Nil, p); err != nil {
			return err
		}

		deckEmpty = len(deck) == n
		if deckEmpty {
			return e.endGame(tx, ts, ReasonDeckExhausted, p)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	e.flush(gameID, p)
	e.record(gameID, playerID, "draw_from_deck", map[string]any{"count": n, "deckEmpty": deckEmpty})
	if deckEmpty {
		e.finishGame(gameID)
	}
	return deckEmpty, nil
}

// DiscardFromHand moves the given hand cards to the discard pile. Every card
// must be in the acting player's hand or nothing moves. Cards whose effect
// fires on discard resolve that effect instead of landing in DISCARD.
func (e *Engine) DiscardFromHand(ctx context.Context, gameID, playerID uuid.UUID, cardIDs []uuid.UUID) error {
	if len(cardIDs) == 0 {
		return fmt.Errorf("%w: no cards given", ErrCardsNotFoundOrInvalid)
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

		cards := make([]*models.Card, 0, len(cardIDs))
		seen := make(map[uuid.UUID]struct{}, len(cardIDs))
		for _, id := range cardIDs {
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: %s given twice", ErrCardsNotFoundOrInvalid, id)
			}
			seen[id] = struct{}{}
			card, err := gameCard(tx, gameID, id)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrCardsNotFoundOrInvalid, id)
			}
			if card.Zone != models.ZoneHand || card.HolderID != playerID {
				return fmt.Errorf("%w: %s is not in the player's hand", ErrCardsNotFoundOrInvalid, id)
			}
			cards = append(cards, card)
		}

		for _, card := range cards {
			if card.Effect == models.EffectDeckPurge {
				if err := e.resolveDeckPurge(tx, card, playerID, p); err != nil {
					return err
				}
				continue
			}
			if err := moveCard(tx, card, models.ZoneDiscard, uuid.Nil, &playerID, p); err != nil {
				return err
			}
		}

		_, err = e.transition(tx, ts, models.PhaseDiscarding, uuid.Nil, uuid.Nil, p)
		return err
	})
	if err != nil {
		return err
	}
	e.flush(gameID, p)
	e.record(gameID, playerID, "discard_from_hand", map[string]any{"count": len(cardIDs)})
	return nil
}

// refillDraft tops the draft window up to DraftSize from the deck top.
// Returns whether the deck is empty afterwards. A nil draft slice means
// "fetch it here".
func (e *Engine) refillDraft(tx store.Tx, gameID uuid.UUID, draft []*models.Card, p *pending) (bool, error) {
	if draft == nil {
		var err error
		draft, err = tx.CardsInZone(gameID, models.ZoneDraft)
		if err != nil {
			return false, err
		}
	}
	deck, err := tx.CardsInZone(gameID, models.ZoneDeck)
	if err != nil {
		return false, err
	}
	sortBySeqDesc(deck)
	for len(draft) < DraftSize && len(deck) > 0 {
		card := deck[0]
		deck = deck[1:]
		if err := moveCard(tx, card, models.ZoneDraft, uuid.Nil, nil, p); err != nil {
			return false, err
		}
		draft = append(draft, card)
	}
	return len(deck) == 0, nil
}

// InitializeDraft opens the face-up draft window. A no-op when the window
// already holds cards.
func (e *Engine) InitializeDraft(ctx context.Context, gameID uuid.UUID) error {
	p := &pending{}
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		if _, err := e.turnState(tx, gameID); err != nil {
			return err
		}
		draft, err := tx.CardsInZone(gameID, models.ZoneDraft)
		if err != nil {
			return err
		}
		if len(draft) > 0 {
			return nil
		}
		_, err = e.refillDraft(tx, gameID, draft, p)
		return err
	})
	if err != nil {
		return err
	}
	e.flush(gameID, p)
	return nil
}

// PickFromDraft takes one face-up card into the player's hand and refills the
// window from the deck. Returns whether the deck is empty after the refill.
func (e *Engine) PickFromDraft(ctx context.Context, gameID, playerID, cardID uuid.UUID) (bool, error) {
	var deckEmpty bool
	p := &pending{}
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		ts, err := e.turnState(tx, gameID)
		if err != nil {
			return err
		}
		if ts.Ended {
			return ErrGameEnded
		}

		hand, err := tx.HandCards(gameID, playerID)
		if err != nil {
			return err
		}
		if len(hand) >= MaxHandSize {
			return fmt.Errorf("%w: hand already holds %d", ErrHandLimitExceeded, len(hand))
		}

		card, err := gameCard(tx, gameID, cardID)
		if err != nil {
			return err
		}
		if card.Zone != models.ZoneDraft {
			return fmt.Errorf("%w: card %s is not in the draft window", ErrNoCardsAvailable, cardID)
		}
		if err := moveCard(tx, card, models.ZoneHand, playerID, &playerID, p); err != nil {
			return err
		}

		deckEmpty, err = e.refillDraft(tx, gameID, nil, p)
		if err != nil {
			return err
		}
		if deckEmpty {
			return e.endGame(tx, ts, ReasonDeckExhausted, p)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	e.flush(gameID, p)
	e.record(gameID, playerID, "pick_from_draft", map[string]any{"card": cardID, "deckEmpty": deckEmpty})
	if deckEmpty {
		e.finishGame(gameID)
	}
	return deckEmpty, nil
}
