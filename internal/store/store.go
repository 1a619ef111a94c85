// Package store defines the narrow persistence interface the rules engine
// depends on: create/get/list/update of game entities with filter-by-game
// and filter-by-owner queries, executed inside atomic read-modify-write
// transactions that roll back on failure.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Justyxx-14/backend-sub000/internal/models"
)

// ErrNotFound is returned by Tx getters when no row matches.
var ErrNotFound = errors.New("store: not found")

// StorageError marks a transient store-level failure (begin/commit or I/O).
// The enclosing operation has been rolled back; the caller may retry it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Tx exposes entity access inside one transaction. Getters return copies;
// mutations are visible to later reads in the same transaction and become
// durable only if the transaction commits.
type Tx interface {
	CreateCard(c *models.Card) error
	Card(id uuid.UUID) (*models.Card, error)
	CardsByGame(gameID uuid.UUID) ([]*models.Card, error)
	CardsInZone(gameID uuid.UUID, zone models.Zone) ([]*models.Card, error)
	HandCards(gameID, playerID uuid.UUID) ([]*models.Card, error)
	UpdateCard(c *models.Card) error

	CreateSecret(s *models.Secret) error
	Secret(id uuid.UUID) (*models.Secret, error)
	SecretsByGame(gameID uuid.UUID) ([]*models.Secret, error)
	SecretsHeldBy(gameID, playerID uuid.UUID) ([]*models.Secret, error)
	UpdateSecret(s *models.Secret) error

	CreateSet(s *models.Set) error
	Set(id uuid.UUID) (*models.Set, error)
	SetsByGame(gameID uuid.UUID) ([]*models.Set, error)
	UpdateSet(s *models.Set) error

	CreatePlayer(p *models.Player) error
	Player(id uuid.UUID) (*models.Player, error)
	// PlayersByGame returns the game's players sorted by id. The stable
	// order fixes the passing ring and turn rotation.
	PlayersByGame(gameID uuid.UUID) ([]*models.Player, error)

	CreateTurnState(ts *models.TurnState) error
	TurnState(gameID uuid.UUID) (*models.TurnState, error)
	UpdateTurnState(ts *models.TurnState) error
}

// Store executes transactions scoped to a single game. Update calls within
// one game serialize; there is no cross-game coordination.
type Store interface {
	// Update runs fn in a read-write transaction. If fn returns an error
	// the transaction rolls back and that error is returned unchanged;
	// commit failures surface as *StorageError.
	Update(ctx context.Context, gameID uuid.UUID, fn func(tx Tx) error) error

	// View runs fn with read access to committed state.
	View(ctx context.Context, gameID uuid.UUID, fn func(tx Tx) error) error
}
