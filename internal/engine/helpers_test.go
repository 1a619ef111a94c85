package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Justyxx-14/backend-sub000/internal/models"
	"github.com/Justyxx-14/backend-sub000/internal/store"
)

// mockNotifier captures events instead of delivering them.
type mockNotifier struct {
	mu         sync.Mutex
	broadcasts []Event
	direct     map[uuid.UUID][]Event
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{direct: make(map[uuid.UUID][]Event)}
}

func (m *mockNotifier) Broadcast(gameID uuid.UUID, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts = append(m.broadcasts, ev)
}

func (m *mockNotifier) SendToPlayer(gameID, playerID uuid.UUID, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.direct[playerID] = append(m.direct[playerID], ev)
}

func (m *mockNotifier) ofType(t EventType) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.broadcasts {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (m *mockNotifier) sentTo(playerID uuid.UUID) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.direct[playerID]...)
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *store.Memory, *mockNotifier) {
	t.Helper()
	st := store.NewMemory()
	n := newMockNotifier()
	eng := New(st, n, nil, nil, cfg)
	t.Cleanup(eng.Timers().StopAll)
	return eng, st, n
}

// pid builds a deterministic player id whose string order follows n.
func pid(n byte) uuid.UUID {
	var u uuid.UUID
	u[0] = n
	u[15] = n
	return u
}

// cid builds a deterministic card id distinct from player ids.
func cid(n byte) uuid.UUID {
	var u uuid.UUID
	u[0] = 0xC0
	u[15] = n
	return u
}

// sid builds a deterministic secret id.
func sid(n byte) uuid.UUID {
	var u uuid.UUID
	u[0] = 0x5E
	u[15] = n
	return u
}

// seedGame creates players and an IDLE turn state without dealing any cards.
func seedGame(t *testing.T, st *store.Memory, gameID uuid.UUID, playerIDs ...uuid.UUID) {
	t.Helper()
	err := st.Update(context.Background(), gameID, func(tx store.Tx) error {
		for _, id := range playerIDs {
			if err := tx.CreatePlayer(&models.Player{ID: id, GameID: gameID, Name: "p" + id.String()[:4]}); err != nil {
				return err
			}
		}
		return tx.CreateTurnState(&models.TurnState{
			GameID:          gameID,
			Phase:           models.PhaseIdle,
			CurrentPlayerID: playerIDs[0],
		})
	})
	require.NoError(t, err)
}

// seedCard creates one card directly in the given zone.
func seedCard(t *testing.T, st *store.Memory, card models.Card) {
	t.Helper()
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	if card.Kind == "" {
		card.Kind = models.KindDetective
	}
	if !card.Zone.Sequenced() {
		card.SequenceIndex = models.NoSequence
	}
	err := st.Update(context.Background(), card.GameID, func(tx store.Tx) error {
		return tx.CreateCard(&card)
	})
	require.NoError(t, err)
}

// seedDeck creates count plain detective cards in DECK with sequence indexes
// 0..count-1 and returns their ids bottom-up.
func seedDeck(t *testing.T, st *store.Memory, gameID uuid.UUID, count int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, count)
	err := st.Update(context.Background(), gameID, func(tx store.Tx) error {
		for i := 0; i < count; i++ {
			c := &models.Card{
				ID: uuid.New(), GameID: gameID, Kind: models.KindDetective,
				Code: models.CodeEye, Name: "Private Eye",
				Zone: models.ZoneDeck, SequenceIndex: i,
			}
			if err := tx.CreateCard(c); err != nil {
				return err
			}
			ids[i] = c.ID
		}
		return nil
	})
	require.NoError(t, err)
	return ids
}

// seedSecret creates one secret.
func seedSecret(t *testing.T, st *store.Memory, s models.Secret) {
	t.Helper()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Role == "" {
		s.Role = models.RoleCommon
	}
	err := st.Update(context.Background(), s.GameID, func(tx store.Tx) error {
		return tx.CreateSecret(&s)
	})
	require.NoError(t, err)
}

func getCard(t *testing.T, st *store.Memory, gameID, cardID uuid.UUID) *models.Card {
	t.Helper()
	var card *models.Card
	err := st.View(context.Background(), gameID, func(tx store.Tx) error {
		var err error
		card, err = tx.Card(cardID)
		return err
	})
	require.NoError(t, err)
	return card
}

func getTurnState(t *testing.T, st *store.Memory, gameID uuid.UUID) *models.TurnState {
	t.Helper()
	var ts *models.TurnState
	err := st.View(context.Background(), gameID, func(tx store.Tx) error {
		var err error
		ts, err = tx.TurnState(gameID)
		return err
	})
	require.NoError(t, err)
	return ts
}

func getSecret(t *testing.T, st *store.Memory, gameID, secretID uuid.UUID) *models.Secret {
	t.Helper()
	var s *models.Secret
	err := st.View(context.Background(), gameID, func(tx store.Tx) error {
		var err error
		s, err = tx.Secret(secretID)
		return err
	})
	require.NoError(t, err)
	return s
}

func getSet(t *testing.T, st *store.Memory, gameID, setID uuid.UUID) *models.Set {
	t.Helper()
	var s *models.Set
	err := st.View(context.Background(), gameID, func(tx store.Tx) error {
		var err error
		s, err = tx.Set(setID)
		return err
	})
	require.NoError(t, err)
	return s
}

func cardsInZone(t *testing.T, st *store.Memory, gameID uuid.UUID, zone models.Zone) []*models.Card {
	t.Helper()
	var out []*models.Card
	err := st.View(context.Background(), gameID, func(tx store.Tx) error {
		var err error
		out, err = tx.CardsInZone(gameID, zone)
		return err
	})
	require.NoError(t, err)
	return out
}

func handOf(t *testing.T, st *store.Memory, gameID, playerID uuid.UUID) []*models.Card {
	t.Helper()
	var out []*models.Card
	err := st.View(context.Background(), gameID, func(tx store.Tx) error {
		var err error
		out, err = tx.HandCards(gameID, playerID)
		return err
	})
	require.NoError(t, err)
	return out
}

// setPhase forces the turn state into a phase for a test scenario.
func setPhase(t *testing.T, st *store.Memory, gameID uuid.UUID, mutate func(ts *models.TurnState)) {
	t.Helper()
	err := st.Update(context.Background(), gameID, func(tx store.Tx) error {
		ts, err := tx.TurnState(gameID)
		if err != nil {
			return err
		}
		mutate(ts)
		return tx.UpdateTurnState(ts)
	})
	require.NoError(t, err)
}

// stubTx overrides individual store calls for error-path tests; every other
// method panics through the nil embedded interface.
type stubTx struct {
	store.Tx
	player *models.Player
	tsErr  error
}

func (s stubTx) Player(id uuid.UUID) (*models.Player, error) {
	if s.player == nil {
		return nil, store.ErrNotFound
	}
	return s.player, nil
}

func (s stubTx) TurnState(gameID uuid.UUID) (*models.TurnState, error) {
	return nil, s.tsErr
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
