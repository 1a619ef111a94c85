package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Justyxx-14/backend-sub000/internal/models"
	"github.com/Justyxx-14/backend-sub000/internal/store"
)

func seedHands(t *testing.T, st *store.Memory, gameID uuid.UUID, players []uuid.UUID) map[uuid.UUID]uuid.UUID {
	t.Helper()
	held := make(map[uuid.UUID]uuid.UUID, len(players))
	for i, p := range players {
		id := cid(byte(100 + i))
		seedCard(t, st, models.Card{ID: id, GameID: gameID, Code: models.CodeEye, Zone: models.ZoneHand, HolderID: p})
		held[p] = id
	}
	return held
}

func TestPassingRingRight(t *testing.T) {
	eng, st, _ := newTestEngine(t, Config{})
	gameID := uuid.New()
	players := []uuid.UUID{pid(1), pid(2), pid(3), pid(4)}
	seedGame(t, st, gameID, players...)
	held := seedHands(t, st, gameID, players)

	require.NoError(t, eng.StartPassing(context.Background(), gameID, players[0], models.PassRight))
	assert.Equal(t, models.PhaseEndTurn, getTurnState(t, st, gameID).Phase)

	for _, p := range players {
		require.NoError(t, eng.SubmitPass(context.Background(), gameID, p, held[p]))
	}

	// RIGHT passes to the next player in sorted order: B's card lands with C.
	assert.Equal(t, players[2], getCard(t, st, gameID, held[players[1]]).HolderID)
	assert.Equal(t, players[0], getCard(t, st, gameID, held[players[3]]).HolderID, "the ring wraps")
	assert.Equal(t, models.PhaseDiscarding, getTurnState(t, st, gameID).Phase)
	assert.Empty(t, cardsInZone(t, st, gameID, models.ZonePassing))
}

func TestPassingRingLeft(t *testing.T) {
	eng, st, _ := newTestEngine(t, Config{})
	gameID := uuid.New()
	players := []uuid.UUID{pid(1), pid(2), pid(3), pid(4)}
	seedGame(t, st, gameID, players...)
	held := seedHands(t, st, gameID, players)

	require.NoError(t, eng.StartPassing(context.Background(), gameID, players[0], models.PassLeft))
	for _, p := range players {
		require.NoError(t, eng.SubmitPass(context.Background(), gameID, p, held[p]))
	}

	// LEFT passes to the previous player: B's card lands with A.
	assert.Equal(t, players[0], getCard(t, st, gameID, held[players[1]]).HolderID)
	assert.Equal(t, players[3], getCard(t, st, gameID, held[players[0]]).HolderID, "the ring wraps")
}

func TestPassingBarrierWaitsForEveryone(t *testing.T) {
	eng, st, _ := newTestEngine(t, Config{})
	gameID := uuid.New()
	players := []uuid.UUID{pid(1), pid(2), pid(3)}
	seedGame(t, st, gameID, players...)
	held := seedHands(t, st, gameID, players)

	require.NoError(t, eng.StartPassing(context.Background(), gameID, players[0], models.PassRight))
	require.NoError(t, eng.SubmitPass(context.Background(), gameID, players[0], held[players[0]]))
	require.NoError(t, eng.SubmitPass(context.Background(), gameID, players[1], held[players[1]]))

	// Two of three submitted: nothing resolves yet.
	assert.Len(t, cardsInZone(t, st, gameID, models.ZonePassing), 2)
	assert.Equal(t, models.PhaseEndTurn, getTurnState(t, st, gameID).Phase)

	// Resubmission is rejected.
	extra := cid(200)
	seedCard(t, st, models.Card{ID: extra, GameID: gameID, Code: models.CodeDog, Zone: models.ZoneHand, HolderID: players[0]})
	err := eng.SubmitPass(context.Background(), gameID, players[0], extra)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)

	require.NoError(t, eng.SubmitPass(context.Background(), gameID, players[2], held[players[2]]))
	assert.Empty(t, cardsInZone(t, st, gameID, models.ZonePassing))
}

func TestSubmitPassWrongPhase(t *testing.T) {
	eng, st, _ := newTestEngine(t, Config{})
	gameID := uuid.New()
	p1 := pid(1)
	seedGame(t, st, gameID, p1, pid(2))
	held := seedHands(t, st, gameID, []uuid.UUID{p1})

	err := eng.SubmitPass(context.Background(), gameID, p1, held[p1])
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestPassingDeliversDeviousObligation(t *testing.T) {
	eng, st, _ := newTestEngine(t, Config{})
	gameID := uuid.New()
	p1, p2 := pid(1), pid(2)
	seedGame(t, st, gameID, p1, p2)

	forced := cid(1)
	seedCard(t, st, models.Card{
		ID: forced, GameID: gameID, Kind: models.KindDevious, Code: models.CodeForcedPass,
		Name: "Pass the Buck", Effect: models.EffectForcedPass, Zone: models.ZoneHand, HolderID: p1,
	})
	plain := cid(2)
	seedCard(t, st, models.Card{ID: plain, GameID: gameID, Code: models.CodeEye, Zone: models.ZoneHand, HolderID: p2})

	require.NoError(t, eng.StartPassing(context.Background(), gameID, p1, models.PassRight))
	require.NoError(t, eng.SubmitPass(context.Background(), gameID, p1, forced))
	require.NoError(t, eng.SubmitPass(context.Background(), gameID, p2, plain))

	ts := getTurnState(t, st, gameID)
	assert.Equal(t, models.PhasePendingDevious, ts.Phase)
	assert.Equal(t, []uuid.UUID{p2}, ts.PendingDevious)
	assert.Equal(t, p2, getCard(t, st, gameID, forced).HolderID)

	// Acknowledging the obligation releases the game.
	err := eng.AcknowledgeDevious(context.Background(), gameID, p1)
	assert.ErrorIs(t, err, ErrCardsNotFoundOrInvalid, "only the queued player can answer")
	require.NoError(t, eng.AcknowledgeDevious(context.Background(), gameID, p2))
	assert.Equal(t, models.PhaseDiscarding, getTurnState(t, st, gameID).Phase)
}

func TestVoteBarrier(t *testing.T) {
	eng, st, n := newTestEngine(t, Config{})
	gameID := uuid.New()
	p1, p2, p3 := pid(1), pid(2), pid(3)
	seedGame(t, st, gameID, p1, p2, p3)
	for _, p := range []uuid.UUID{p1, p2, p3} {
		seedSecret(t, st, models.Secret{GameID: gameID, HolderID: p})
	}

	require.NoError(t, eng.StartVote(context.Background(), gameID, p1, uuid.Nil))
	assert.Equal(t, models.PhaseVoting, getTurnState(t, st, gameID).Phase)

	assert.ErrorIs(t, eng.SubmitVote(context.Background(), gameID, p1, p1), ErrSelfVote)

	require.NoError(t, eng.SubmitVote(context.Background(), gameID, p1, p3))
	assert.ErrorIs(t, eng.SubmitVote(context.Background(), gameID, p1, p2), ErrAlreadySubmitted)

	require.NoError(t, eng.SubmitVote(context.Background(), gameID, p2, p3))
	assert.Equal(t, models.PhaseVoting, getTurnState(t, st, gameID).Phase, "barrier holds until everyone votes")

	require.NoError(t, eng.SubmitVote(context.Background(), gameID, p3, p1))

	ts := getTurnState(t, st, gameID)
	assert.Equal(t, models.PhaseChoosingSecretByVote, ts.Phase)
	assert.Equal(t, p3, ts.TargetPlayerID, "p3 took the strict maximum")
	assert.Nil(t, ts.VoteMap, "vote map is cleared on resolution")

	resolved := n.ofType(EventVoteResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, p3, resolved[0].Payload.(VoteResolved).ChosenID)
}

func TestVoteTieBrokenByInitiator(t *testing.T) {
	eng, st, _ := newTestEngine(t, Config{})
	gameID := uuid.New()
	p1, p2, p3, p4 := pid(1), pid(2), pid(3), pid(4)
	seedGame(t, st, gameID, p1, p2, p3, p4)
	for _, p := range []uuid.UUID{p1, p2, p3, p4} {
		seedSecret(t, st, models.Secret{GameID: gameID, HolderID: p})
	}

	require.NoError(t, eng.StartVote(context.Background(), gameID, p2, uuid.Nil))

	// Two votes for p3, two for p4; initiator p2 voted p4.
	require.NoError(t, eng.SubmitVote(context.Background(), gameID, p1, p3))
	require.NoError(t, eng.SubmitVote(context.Background(), gameID, p2, p4))
	require.NoError(t, eng.SubmitVote(context.Background(), gameID, p3, p4))
	require.NoError(t, eng.SubmitVote(context.Background(), gameID, p4, p3))

	ts := getTurnState(t, st, gameID)
	assert.Equal(t, p4, ts.TargetPlayerID, "initiator's own vote breaks the tie")
}

func TestStartVoteBlockedByDisgrace(t *testing.T) {
	eng, st, _ := newTestEngine(t, Config{})
	gameID := uuid.New()
	p1, p2 := pid(1), pid(2)
	seedGame(t, st, gameID, p1, p2)
	seedSecret(t, st, models.Secret{GameID: gameID, HolderID: p1, Revealed: true})
	seedSecret(t, st, models.Secret{GameID: gameID, HolderID: p2})

	err := eng.StartVote(context.Background(), gameID, p1, uuid.Nil)
	assert.ErrorIs(t, err, ErrSocialDisgrace)
}

func TestRevealChosenSecret(t *testing.T) {
	eng, st, _ := newTestEngine(t, Config{})
	gameID := uuid.New()
	p1, p2 := pid(1), pid(2)
	seedGame(t, st, gameID, p1, p2)
	chosenSecret := sid(1)
	seedSecret(t, st, models.Secret{ID: chosenSecret, GameID: gameID, HolderID: p2})
	seedSecret(t, st, models.Secret{GameID: gameID, HolderID: p1, Role: models.RoleMurderer})
	seedSecret(t, st, models.Secret{GameID: gameID, HolderID: p1})
	setPhase(t, st, gameID, func(ts *models.TurnState) {
		ts.Phase = models.PhaseChoosingSecretByVote
		ts.TargetPlayerID = p2
	})

	err := eng.RevealChosenSecret(context.Background(), gameID, p1, chosenSecret)
	assert.ErrorIs(t, err, ErrCardsNotFoundOrInvalid, "only the chosen player reveals")

	require.NoError(t, eng.RevealChosenSecret(context.Background(), gameID, p2, chosenSecret))
	assert.True(t, getSecret(t, st, gameID, chosenSecret).Revealed)
	assert.Equal(t, models.PhaseIdle, getTurnState(t, st, gameID).Phase)

	err = eng.RevealChosenSecret(context.Background(), gameID, p2, chosenSecret)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestRevealChosenMurdererEndsGame(t *testing.T) {
	eng, st, n := newTestEngine(t, Config{})
	gameID := uuid.New()
	p1, p2 := pid(1), pid(2)
	seedGame(t, st, gameID, p1, p2)
	murderer := sid(1)
	seedSecret(t, st, models.Secret{ID: murderer, GameID: gameID, HolderID: p2, Role: models.RoleMurderer})
	setPhase(t, st, gameID, func(ts *models.TurnState) {
		ts.Phase = models.PhaseChoosingSecretByVote
		ts.TargetPlayerID = p2
	})

	require.NoError(t, eng.RevealChosenSecret(context.Background(), gameID, p2, murderer))
	assert.True(t, getTurnState(t, st, gameID).Ended)

	ends := n.ofType(EventGameEnded)
	require.Len(t, ends, 1)
	payload := ends[0].Payload.(GameEnded)
	assert.Equal(t, ReasonMurdererRevealed, payload.Reason)
	assert.Equal(t, TeamDetectives, payload.WinningTeam)
	require.Len(t, payload.Winners, 1)
	assert.Equal(t, p1, payload.Winners[0].ID)
}

func TestSubmitVoteRejectsForeignTarget(t *testing.T) {
	eng, st, _ := newTestEngine(t, Config{})
	gameID, otherGame := uuid.New(), uuid.New()
	p1, p2 := pid(1), pid(2)
	outsider := pid(9)
	seedGame(t, st, gameID, p1, p2)
	seedGame(t, st, otherGame, outsider, pid(8))
	seedSecret(t, st, models.Secret{GameID: gameID, HolderID: p1})
	require.NoError(t, eng.StartVote(context.Background(), gameID, p1, uuid.Nil))

	err := eng.SubmitVote(context.Background(), gameID, p2, outsider)
	assert.ErrorIs(t, err, ErrNotFound, "a player from another game is not a valid target")
}
