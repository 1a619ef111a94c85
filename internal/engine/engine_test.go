package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Justyxx-14/backend-sub000/internal/models"
	"github.com/Justyxx-14/backend-sub000/internal/store"
)

func newPlayers(n int) []models.Player {
	out := make([]models.Player, n)
	for i := range out {
		out[i] = models.Player{ID: pid(byte(i + 1)), Name: "player"}
	}
	return out
}

func catalogTotal() int {
	total := 0
	for _, spec := range models.Catalog() {
		total += spec.Copies
	}
	return total
}

func TestCreateGameSetup(t *testing.T) {
	eng, st, n := newTestEngine(t, Config{})
	gameID := uuid.New()
	players := newPlayers(4)

	require.NoError(t, eng.CreateGame(context.Background(), gameID, players))

	ts := getTurnState(t, st, gameID)
	assert.Equal(t, models.PhaseIdle, ts.Phase)
	assert.Equal(t, players[0].ID, ts.CurrentPlayerID, "first player in stable order opens")

	for _, pl := range players {
		assert.Len(t, handOf(t, st, gameID, pl.ID), OpeningHandSize)
	}
	assert.Len(t, cardsInZone(t, st, gameID, models.ZoneDraft), DraftSize)

	// Hands, draft and deck partition the whole catalog.
	var all []*models.Card
	err := st.View(context.Background(), gameID, func(tx store.Tx) error {
		var verr error
		all, verr = tx.CardsByGame(gameID)
		return verr
	})
	require.NoError(t, err)
	assert.Len(t, all, catalogTotal())
	expectedDeck := catalogTotal() - len(players)*OpeningHandSize - DraftSize
	assert.Len(t, cardsInZone(t, st, gameID, models.ZoneDeck), expectedDeck)

	batches := n.ofType(EventCardBatchCreated)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Payload.(CardBatchCreated).CardIDs, catalogTotal())
}

func TestCreateGameSecrets(t *testing.T) {
	eng, st, _ := newTestEngine(t, Config{})

	count := func(gameID uuid.UUID, role models.SecretRole) int {
		n := 0
		_ = st.View(context.Background(), gameID, func(tx store.Tx) error {
			secrets, err := tx.SecretsByGame(gameID)
			if err != nil {
				return err
			}
			for _, s := range secrets {
				if s.Role == role {
					n++
				}
			}
			return nil
		})
		return n
	}

	small := uuid.New()
	require.NoError(t, eng.CreateGame(context.Background(), small, newPlayers(4)))
	assert.Equal(t, 1, count(small, models.RoleMurderer))
	assert.Equal(t, 0, count(small, models.RoleAccomplice), "no accomplice under five players")
	assert.Equal(t, 11, count(small, models.RoleCommon))

	large := uuid.New()
	require.NoError(t, eng.CreateGame(context.Background(), large, newPlayers(5)))
	assert.Equal(t, 1, count(large, models.RoleMurderer))
	assert.Equal(t, 1, count(large, models.RoleAccomplice))

	// Every player holds exactly three.
	err := st.View(context.Background(), large, func(tx store.Tx) error {
		for _, pl := range newPlayers(5) {
			held, err := tx.SecretsHeldBy(large, pl.ID)
			if err != nil {
				return err
			}
			assert.Len(t, held, 3)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestCreateGameOpeningDeviousPass(t *testing.T) {
	eng, st, _ := newTestEngine(t, Config{})
	gameID := uuid.New()
	players := newPlayers(6)
	require.NoError(t, eng.CreateGame(context.Background(), gameID, players))

	// Six devious cards, six players: every opening hand holds exactly one
	// from the first pass (fills can add more only if the deck top held
	// none, which six players exhaust).
	for _, pl := range players {
		devious := 0
		for _, c := range handOf(t, st, gameID, pl.ID) {
			if c.Kind == models.KindDevious {
				devious++
			}
		}
		assert.Equal(t, 1, devious, "player %s", pl.ID)
	}
}

func TestCreateGamePlayerCountBounds(t *testing.T) {
	eng, _, _ := newTestEngine(t, Config{})

	err := eng.CreateGame(context.Background(), uuid.New(), newPlayers(1))
	assert.ErrorIs(t, err, ErrCardsNotFoundOrInvalid)

	err = eng.CreateGame(context.Background(), uuid.New(), newPlayers(7))
	assert.ErrorIs(t, err, ErrCardsNotFoundOrInvalid)
}

func TestSocialDisgrace(t *testing.T) {
	eng, st, _ := newTestEngine(t, Config{})
	gameID := uuid.New()
	p1, p2, p3 := pid(1), pid(2), pid(3)
	seedGame(t, st, gameID, p1, p2, p3)
	seedSecret(t, st, models.Secret{GameID: gameID, HolderID: p1, Revealed: true})
	seedSecret(t, st, models.Secret{GameID: gameID, HolderID: p1})
	seedSecret(t, st, models.Secret{GameID: gameID, HolderID: p2, Revealed: true})

	got, err := eng.SocialDisgrace(context.Background(), gameID, p1)
	require.NoError(t, err)
	assert.False(t, got, "a hidden secret keeps standing")

	got, err = eng.SocialDisgrace(context.Background(), gameID, p2)
	require.NoError(t, err)
	assert.True(t, got, "all secrets exposed")

	got, err = eng.SocialDisgrace(context.Background(), gameID, p3)
	require.NoError(t, err)
	assert.True(t, got, "no secrets at all")
}

func TestTurnStateSurfacesStorageErrors(t *testing.T) {
	eng, _, _ := newTestEngine(t, Config{})
	boom := &store.StorageError{Op: "begin", Err: errors.New("connection reset")}

	_, err := eng.turnState(stubTx{tsErr: boom}, uuid.New())
	var se *store.StorageError
	require.ErrorAs(t, err, &se, "transient failures stay retryable")
	assert.NotErrorIs(t, err, ErrGameNotFound)
	assert.NotErrorIs(t, err, ErrTurnStateMissing)
}

func TestDealOpeningKeepsBuriedDeviousInDeck(t *testing.T) {
	eng, st, _ := newTestEngine(t, Config{})
	gameID := uuid.New()
	p1, p2 := pid(1), pid(2)
	seedGame(t, st, gameID, p1, p2)

	// Deck top to bottom: two devious cards for the first pass, two fills,
	// a third devious buried mid-deck, one more detective.
	codes := []string{
		models.CodeBlackmail, models.CodeForcedPass,
		models.CodeEye, models.CodeDog,
		models.CodeBlackmail, models.CodeCamera,
	}
	ids := make([]uuid.UUID, len(codes))
	for i, code := range codes {
		ids[i] = cid(byte(i + 1))
		seedCard(t, st, models.Card{
			ID: ids[i], GameID: gameID, Code: code,
			Zone: models.ZoneDeck, SequenceIndex: len(codes) - 1 - i,
		})
	}

	err := st.Update(context.Background(), gameID, func(tx store.Tx) error {
		return eng.dealOpeningHands(tx, gameID, []uuid.UUID{p1, p2}, 2, &pending{})
	})
	require.NoError(t, err)

	handIDs := func(playerID uuid.UUID) []uuid.UUID {
		var out []uuid.UUID
		for _, c := range handOf(t, st, gameID, playerID) {
			out = append(out, c.ID)
		}
		return out
	}
	assert.ElementsMatch(t, []uuid.UUID{ids[0], ids[2]}, handIDs(p1))
	assert.ElementsMatch(t, []uuid.UUID{ids[1], ids[3]}, handIDs(p2))

	// The third devious card stays where the shuffle put it.
	buried := getCard(t, st, gameID, ids[4])
	assert.Equal(t, models.ZoneDeck, buried.Zone)
	assert.Equal(t, 1, buried.SequenceIndex)
}
