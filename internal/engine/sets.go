package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Justyxx-14/backend-sub000/internal/models"
	"github.com/Justyxx-14/backend-sub000/internal/store"
)

// pairSetTypes maps a doubled base code to its set type.
var pairSetTypes = map[string]models.SetType{
	models.CodeEye:    models.SetPrivateEyes,
	models.CodeDog:    models.SetBloodhounds,
	models.CodeCamera: models.SetDarkroom,
}

// wildPairSetTypes maps a wildcard-plus-base pair to its set type.
var wildPairSetTypes = map[string]models.SetType{
	models.CodeEye:    models.SetWildEyes,
	models.CodeDog:    models.SetWildHounds,
	models.CodeCamera: models.SetWildDarkroom,
}

// setExtensionCode names the only card code that may join an existing set of
// the given type. Types absent from the map never grow.
var setExtensionCode = map[models.SetType]string{
	models.SetPrivateEyes:  models.CodeEye,
	models.SetBloodhounds:  models.CodeDog,
	models.SetDarkroom:     models.CodeCamera,
	models.SetTaskForce:    models.CodeSquad,
	models.SetWildEyes:     models.CodeEye,
	models.SetWildHounds:   models.CodeDog,
	models.SetWildDarkroom: models.CodeCamera,
}

// validateSet classifies two or three detective cards as a legal set:
//
//   - two identical base codes (Private Eye, Bloodhound, Photographer);
//   - the Badge and Handcuffs sibling pair in either order;
//   - one wildcard with one of the base codes above;
//   - three Beat Cops, or a wildcard with two Beat Cops.
//
// Anything else, including two wildcards, is rejected.
func validateSet(cards []*models.Card) (models.SetType, error) {
	for _, c := range cards {
		if c.Kind != models.KindDetective {
			return "", fmt.Errorf("%w: %s is not a detective card", ErrInvalidSet, c.Code)
		}
	}

	wilds := 0
	var bases []string
	for _, c := range cards {
		if c.Code == models.CodeWild {
			wilds++
		} else {
			bases = append(bases, c.Code)
		}
	}

	switch len(cards) {
	case 2:
		switch wilds {
		case 0:
			a, b := bases[0], bases[1]
			if a == b {
				if t, ok := pairSetTypes[a]; ok {
					return t, nil
				}
				return "", fmt.Errorf("%w: %s does not pair with itself", ErrInvalidSet, a)
			}
			if (a == models.CodeBadge && b == models.CodeCuffs) || (a == models.CodeCuffs && b == models.CodeBadge) {
				return models.SetArrest, nil
			}
			return "", fmt.Errorf("%w: %s and %s do not combine", ErrInvalidSet, a, b)
		case 1:
			if t, ok := wildPairSetTypes[bases[0]]; ok {
				return t, nil
			}
			return "", fmt.Errorf("%w: wildcard does not pair with %s", ErrInvalidSet, bases[0])
		default:
			return "", fmt.Errorf("%w: two wildcards form nothing", ErrInvalidSet)
		}
	case 3:
		for _, b := range bases {
			if b != models.CodeSquad {
				return "", fmt.Errorf("%w: three-card sets take Beat Cops only", ErrInvalidSet)
			}
		}
		if wilds <= 1 {
			return models.SetTaskForce, nil
		}
		return "", fmt.Errorf("%w: at most one wildcard per set", ErrInvalidSet)
	default:
		return "", fmt.Errorf("%w: sets hold two or three cards, got %d", ErrInvalidSet, len(cards))
	}
}

// CreateSet forms a new set from cards in the player's hand. The cards move
// to the SET zone and stay owned by the player until the set resolves.
func (e *Engine) CreateSet(ctx context.Context, gameID, playerID uuid.UUID, cardIDs []uuid.UUID) (uuid.UUID, error) {
	var setID uuid.UUID
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

		setType, err := validateSet(cards)
		if err != nil {
			return err
		}

		set := &models.Set{
			ID:      uuid.New(),
			GameID:  gameID,
			OwnerID: playerID,
			Type:    setType,
			CardIDs: append([]uuid.UUID(nil), cardIDs...),
		}
		if err := tx.CreateSet(set); err != nil {
			return err
		}
		for _, card := range cards {
			if err := moveCard(tx, card, models.ZoneSet, playerID, &playerID, p); err != nil {
				return err
			}
		}
		setID = set.ID
		p.add(Event{Type: EventSetCreated, GameID: gameID, Payload: SetCreated{
			GameID: gameID, SetID: set.ID, OwnerID: playerID, Type: setType,
		}})
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	e.flush(gameID, p)
	e.record(gameID, playerID, "set_created", map[string]any{"set": setID})
	return setID, nil
}

// AddCardToSet grows an unresolved set by one hand card whose code matches
// the set's established type. Wildcards never extend a set, and a set never
// exceeds three cards.
func (e *Engine) AddCardToSet(ctx context.Context, gameID, playerID, setID, cardID uuid.UUID) error {
	p := &pending{}
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		ts, err := e.turnState(tx, gameID)
		if err != nil {
			return err
		}
		if ts.Ended {
			return ErrGameEnded
		}

		set, err := tx.Set(setID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: set %s", ErrNotFound, setID)
		}
		if err != nil {
			return err
		}
		if set.GameID != gameID || set.OwnerID != playerID {
			return fmt.Errorf("%w: set %s", ErrNotFound, setID)
		}
		if set.Resolved {
			return fmt.Errorf("%w: set already resolved", ErrInvalidSet)
		}
		if len(set.CardIDs) >= 3 {
			return fmt.Errorf("%w: set is full", ErrInvalidSet)
		}

		card, err := gameCard(tx, gameID, cardID)
		if err != nil {
			return err
		}
		if card.Zone != models.ZoneHand || card.HolderID != playerID {
			return fmt.Errorf("%w: %s is not in the player's hand", ErrCardsNotFoundOrInvalid, cardID)
		}
		want, ok := setExtensionCode[set.Type]
		if !ok || card.Code != want {
			return fmt.Errorf("%w: %s does not extend a %s set", ErrInvalidSet, card.Code, set.Type)
		}

		set.CardIDs = append(set.CardIDs, cardID)
		if err := tx.UpdateSet(set); err != nil {
			return err
		}
		if err := moveCard(tx, card, models.ZoneSet, playerID, &playerID, p); err != nil {
			return err
		}
		p.add(Event{Type: EventSetUpdated, GameID: gameID, Payload: SetUpdated{
			GameID: gameID, SetID: set.ID, OwnerID: playerID, Type: set.Type,
		}})
		return nil
	})
	if err != nil {
		return err
	}
	e.flush(gameID, p)
	e.record(gameID, playerID, "set_extended", map[string]any{"set": setID, "card": cardID})
	return nil
}

// PlaySet resolves a set against one of the target player's secrets. Darkroom
// sets hide a revealed secret; every other type reveals a hidden one and may
// end the game. A player in social disgrace cannot play sets.
func (e *Engine) PlaySet(ctx context.Context, gameID, playerID, setID, targetID, secretID uuid.UUID) error {
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

		own, err := tx.SecretsHeldBy(gameID, playerID)
		if err != nil {
			return err
		}
		if inDisgrace(own) {
			return ErrSocialDisgrace
		}

		set, err := tx.Set(setID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: set %s", ErrNotFound, setID)
		}
		if err != nil {
			return err
		}
		if set.GameID != gameID || set.OwnerID != playerID {
			return fmt.Errorf("%w: set %s", ErrNotFound, setID)
		}
		if set.Resolved {
			return fmt.Errorf("%w: set already resolved", ErrInvalidSet)
		}

		secret, err := tx.Secret(secretID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: secret %s", ErrNotFound, secretID)
		}
		if err != nil {
			return err
		}
		if secret.GameID != gameID || secret.HolderID != targetID {
			return fmt.Errorf("%w: secret %s", ErrNotFound, secretID)
		}

		set.Resolved = true
		if err := tx.UpdateSet(set); err != nil {
			return err
		}
		p.add(Event{Type: EventSetUpdated, GameID: gameID, Payload: SetUpdated{
			GameID: gameID, SetID: set.ID, OwnerID: playerID, Type: set.Type,
		}})

		if set.Type.Hides() {
			if !secret.Revealed {
				return ErrAlreadyHidden
			}
			secret.Revealed = false
			if err := tx.UpdateSecret(secret); err != nil {
				return err
			}
			p.add(Event{Type: EventSecretUpdated, GameID: gameID, Payload: SecretUpdated{
				GameID: gameID, SecretID: secret.ID, HolderID: secret.HolderID, Revealed: false,
			}})
			return nil
		}

		if secret.Revealed {
			return ErrAlreadyRevealed
		}
		endedNow, err = e.revealSecret(tx, ts, secret, p)
		return err
	})
	if err != nil {
		return err
	}
	e.flush(gameID, p)
	e.record(gameID, playerID, "set_played", map[string]any{"set": setID, "secret": secretID})
	if endedNow {
		e.finishGame(gameID)
	}
	return nil
}

// revealSecret flips a hidden secret face up and evaluates the win
// conditions: revealing the murderer ends the game for the detectives;
// revealing the last common secret while the murderer stays hidden ends it
// for the murderer's team. Hiding never triggers an end check.
func (e *Engine) revealSecret(tx store.Tx, ts *models.TurnState, secret *models.Secret, p *pending) (bool, error) {
	secret.Revealed = true
	if err := tx.UpdateSecret(secret); err != nil {
		return false, err
	}
	p.add(Event{Type: EventSecretUpdated, GameID: ts.GameID, Payload: SecretUpdated{
		GameID: ts.GameID, SecretID: secret.ID, HolderID: secret.HolderID, Revealed: true,
	}})

	if secret.Role == models.RoleMurderer {
		if err := e.endGame(tx, ts, ReasonMurdererRevealed, p); err != nil {
			return false, err
		}
		return true, nil
	}

	secrets, err := tx.SecretsByGame(ts.GameID)
	if err != nil {
		return false, err
	}
	murdererHidden := false
	foundMurderer := false
	allCommonsRevealed := true
	for _, s := range secrets {
		switch s.Role {
		case models.RoleMurderer:
			foundMurderer = true
			murdererHidden = !s.Revealed
		case models.RoleCommon:
			if !s.Revealed {
				allCommonsRevealed = false
			}
		}
	}
	if !foundMurderer {
		return false, ErrMurdererSecretMissing
	}
	if allCommonsRevealed && murdererHidden {
		if err := e.endGame(tx, ts, ReasonSecretsRevealed, p); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
