package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Justyxx-14/backend-sub000/internal/models"
)

// Memory is an in-memory Store. Each game lives in its own bucket guarded by
// its own mutex, so operations on one game serialize while distinct games
// proceed independently. Rollback is snapshot-based: Update copies the
// bucket up front and restores it if fn fails.
type Memory struct {
	mu    sync.RWMutex
	games map[uuid.UUID]*gameBucket
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{games: make(map[uuid.UUID]*gameBucket)}
}

type gameBucket struct {
	mu      sync.Mutex
	cards   map[uuid.UUID]*models.Card
	secrets map[uuid.UUID]*models.Secret
	sets    map[uuid.UUID]*models.Set
	players map[uuid.UUID]*models.Player
	turn    *models.TurnState
}

func newGameBucket() *gameBucket {
	return &gameBucket{
		cards:   make(map[uuid.UUID]*models.Card),
		secrets: make(map[uuid.UUID]*models.Secret),
		sets:    make(map[uuid.UUID]*models.Set),
		players: make(map[uuid.UUID]*models.Player),
	}
}

func (b *gameBucket) snapshot() *gameBucket {
	snap := newGameBucket()
	for id, c := range b.cards {
		cp := *c
		snap.cards[id] = &cp
	}
	for id, s := range b.secrets {
		cp := *s
		snap.secrets[id] = &cp
	}
	for id, s := range b.sets {
		snap.sets[id] = s.Clone()
	}
	for id, p := range b.players {
		cp := *p
		snap.players[id] = &cp
	}
	if b.turn != nil {
		snap.turn = b.turn.Clone()
	}
	return snap
}

func (b *gameBucket) restore(snap *gameBucket) {
	b.cards = snap.cards
	b.secrets = snap.secrets
	b.sets = snap.sets
	b.players = snap.players
	b.turn = snap.turn
}

func (m *Memory) bucket(gameID uuid.UUID) *gameBucket {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.games[gameID]
	if !ok {
		b = newGameBucket()
		m.games[gameID] = b
	}
	return b
}

// Update implements Store.
func (m *Memory) Update(ctx context.Context, gameID uuid.UUID, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return &StorageError{Op: "begin", Err: err}
	}
	b := m.bucket(gameID)
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := b.snapshot()
	if err := fn(&memTx{b: b}); err != nil {
		b.restore(snap)
		return err
	}
	return nil
}

// View implements Store.
func (m *Memory) View(ctx context.Context, gameID uuid.UUID, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return &StorageError{Op: "begin", Err: err}
	}
	b := m.bucket(gameID)
	b.mu.Lock()
	defer b.mu.Unlock()
	return fn(&memTx{b: b})
}

// memTx reads and writes the bucket directly; the bucket lock is held for
// the transaction's whole lifetime. All getters return copies so callers
// never alias stored state.
type memTx struct {
	b *gameBucket
}

func (t *memTx) CreateCard(c *models.Card) error {
	cp := *c
	t.b.cards[c.ID] = &cp
	return nil
}

func (t *memTx) Card(id uuid.UUID) (*models.Card, error) {
	c, ok := t.b.cards[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (t *memTx) CardsByGame(gameID uuid.UUID) ([]*models.Card, error) {
	var out []*models.Card
	for _, c := range t.b.cards {
		if c.GameID == gameID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *memTx) CardsInZone(gameID uuid.UUID, zone models.Zone) ([]*models.Card, error) {
	var out []*models.Card
	for _, c := range t.b.cards {
		if c.GameID == gameID && c.Zone == zone {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *memTx) HandCards(gameID, playerID uuid.UUID) ([]*models.Card, error) {
	var out []*models.Card
	for _, c := range t.b.cards {
		if c.GameID == gameID && c.Zone == models.ZoneHand && c.HolderID == playerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *memTx) UpdateCard(c *models.Card) error {
	if _, ok := t.b.cards[c.ID]; !ok {
		return ErrNotFound
	}
	cp := *c
	t.b.cards[c.ID] = &cp
	return nil
}

func (t *memTx) CreateSecret(s *models.Secret) error {
	cp := *s
	t.b.secrets[s.ID] = &cp
	return nil
}

func (t *memTx) Secret(id uuid.UUID) (*models.Secret, error) {
	s, ok := t.b.secrets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (t *memTx) SecretsByGame(gameID uuid.UUID) ([]*models.Secret, error) {
	var out []*models.Secret
	for _, s := range t.b.secrets {
		if s.GameID == gameID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *memTx) SecretsHeldBy(gameID, playerID uuid.UUID) ([]*models.Secret, error) {
	var out []*models.Secret
	for _, s := range t.b.secrets {
		if s.GameID == gameID && s.HolderID == playerID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *memTx) UpdateSecret(s *models.Secret) error {
	if _, ok := t.b.secrets[s.ID]; !ok {
		return ErrNotFound
	}
	cp := *s
	t.b.secrets[s.ID] = &cp
	return nil
}

func (t *memTx) CreateSet(s *models.Set) error {
	t.b.sets[s.ID] = s.Clone()
	return nil
}

func (t *memTx) Set(id uuid.UUID) (*models.Set, error) {
	s, ok := t.b.sets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (t *memTx) SetsByGame(gameID uuid.UUID) ([]*models.Set, error) {
	var out []*models.Set
	for _, s := range t.b.sets {
		if s.GameID == gameID {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (t *memTx) UpdateSet(s *models.Set) error {
	if _, ok := t.b.sets[s.ID]; !ok {
		return ErrNotFound
	}
	t.b.sets[s.ID] = s.Clone()
	return nil
}

func (t *memTx) CreatePlayer(p *models.Player) error {
	cp := *p
	t.b.players[p.ID] = &cp
	return nil
}

func (t *memTx) Player(id uuid.UUID) (*models.Player, error) {
	p, ok := t.b.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) PlayersByGame(gameID uuid.UUID) ([]*models.Player, error) {
	var out []*models.Player
	for _, p := range t.b.players {
		if p.GameID == gameID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (t *memTx) CreateTurnState(ts *models.TurnState) error {
	t.b.turn = ts.Clone()
	return nil
}

func (t *memTx) TurnState(gameID uuid.UUID) (*models.TurnState, error) {
	if t.b.turn == nil || t.b.turn.GameID != gameID {
		return nil, ErrNotFound
	}
	return t.b.turn.Clone(), nil
}

func (t *memTx) UpdateTurnState(ts *models.TurnState) error {
	if t.b.turn == nil || t.b.turn.GameID != ts.GameID {
		return ErrNotFound
	}
	t.b.turn = ts.Clone()
	return nil
}
