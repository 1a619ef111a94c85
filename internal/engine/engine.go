// Package engine implements the rules of the deduction card game: card zone
// ownership, the turn phase state machine, event card effects, the
// card-passing and voting barriers, set formation and secret resolution, and
// the per-game turn timer.
//
// Every operation is a single transactional unit against the store: it reads
// current state, computes the next state, and commits atomically. Outbound
// notifications are buffered during the transaction and delivered only after
// a successful commit.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Justyxx-14/backend-sub000/internal/models"
	"github.com/Justyxx-14/backend-sub000/internal/store"
)

const (
	// MaxHandSize is the hard hand limit; draws and draft picks that would
	// exceed it fail without moving cards.
	MaxHandSize = 6

	// DraftSize is the size of the face-up draft window while the deck can
	// sustain it.
	DraftSize = 3

	// OpeningHandSize is the per-player hand size after the opening deal.
	OpeningHandSize = 6

	// AshesReach is how deep into the discard pile From the Ashes reaches.
	AshesReach = 5

	// DeckPurgeCount and DiscardRecycleCount size the purge/recycle effects.
	DeckPurgeCount      = 6
	DiscardRecycleCount = 5

	MinPlayers = 2
	MaxPlayers = 6

	// AccompliceMinPlayers is the player count at which an accomplice
	// secret joins the murderer's team.
	AccompliceMinPlayers = 5
)

// Recorder receives an ordered record of every committed operation. Nil-safe
// at the engine level; delivery is fire-and-forget.
type Recorder interface {
	Record(gameID, actorID uuid.UUID, action string, payload map[string]any)
}

// Config carries the engine's tunable durations.
type Config struct {
	// TurnDuration is the per-turn countdown; 0 disables turn timers.
	TurnDuration time.Duration

	// CancelWindow is the deadline window for the cancellation wait; each
	// observed cancellation refreshes it.
	CancelWindow time.Duration
}

// Engine exposes the game operations invoked by the transport layer. All
// state lives in the store; the Engine itself holds only collaborators and
// the timer registry for its games.
type Engine struct {
	store    store.Store
	notifier Notifier
	recorder Recorder
	timers   *TimerRegistry
	cancels  *cancelSignals
	log      logrus.FieldLogger
	cfg      Config
}

// New builds an Engine. notifier and recorder may be nil.
func New(st store.Store, notifier Notifier, recorder Recorder, log logrus.FieldLogger, cfg Config) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.CancelWindow <= 0 {
		cfg.CancelWindow = 5 * time.Second
	}
	return &Engine{
		store:    st,
		notifier: notifier,
		recorder: recorder,
		timers:   NewTimerRegistry(log),
		cancels:  newCancelSignals(),
		log:      log,
		cfg:      cfg,
	}
}

// Timers exposes the registry so the process can stop every countdown at
// shutdown.
func (e *Engine) Timers() *TimerRegistry { return e.timers }

func (e *Engine) record(gameID, actorID uuid.UUID, action string, payload map[string]any) {
	if e.recorder == nil {
		return
	}
	e.recorder.Record(gameID, actorID, action, payload)
}

// turnState loads the game's turn state, distinguishing a game that never
// existed from one whose turn state record is missing (a fatal consistency
// error).
func (e *Engine) turnState(tx store.Tx, gameID uuid.UUID) (*models.TurnState, error) {
	ts, err := tx.TurnState(gameID)
	if err == nil {
		return ts, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		// Transient storage failures stay retryable; only a missing record
		// falls through to the players lookup.
		return nil, err
	}
	players, perr := tx.PlayersByGame(gameID)
	if perr != nil {
		return nil, perr
	}
	if len(players) == 0 {
		return nil, ErrGameNotFound
	}
	return nil, ErrTurnStateMissing
}

// CreateGame mints the full deck and all secrets, shuffles, deals opening
// hands, opens the draft window, and starts the game's turn timer. Players
// act in stable id order; the first player in that order opens the game.
func (e *Engine) CreateGame(ctx context.Context, gameID uuid.UUID, players []models.Player) error {
	if len(players) < MinPlayers || len(players) > MaxPlayers {
		return fmt.Errorf("%w: got %d players, want %d-%d", ErrCardsNotFoundOrInvalid, len(players), MinPlayers, MaxPlayers)
	}

	p := &pending{}
	err := e.store.Update(ctx, gameID, func(tx store.Tx) error {
		for i := range players {
			players[i].GameID = gameID
			if err := tx.CreatePlayer(&players[i]); err != nil {
				return err
			}
		}
		ordered, err := tx.PlayersByGame(gameID)
		if err != nil {
			return err
		}

		ts := &models.TurnState{
			GameID:          gameID,
			Phase:           models.PhaseIdle,
			CurrentPlayerID: ordered[0].ID,
		}
		if err := tx.CreateTurnState(ts); err != nil {
			return err
		}

		cardIDs, err := createDeck(tx, gameID)
		if err != nil {
			return err
		}
		if err := shuffleDeck(tx, gameID); err != nil {
			return err
		}

		playerIDs := make([]uuid.UUID, len(ordered))
		for i, pl := range ordered {
			playerIDs[i] = pl.ID
		}
		if err := e.dealOpeningHands(tx, gameID, playerIDs, OpeningHandSize, p); err != nil {
			return err
		}
		if _, err := e.refillDraft(tx, gameID, nil, p); err != nil {
			return err
		}
		if err := createSecrets(tx, gameID, playerIDs); err != nil {
			return err
		}

		p.add(Event{Type: EventCardBatchCreated, GameID: gameID, Payload: CardBatchCreated{GameID: gameID, CardIDs: cardIDs}})
		p.add(Event{Type: EventTurnChanged, GameID: gameID, Payload: TurnChanged{GameID: gameID, PlayerID: ordered[0].ID}})
		return nil
	})
	if err != nil {
		return err
	}

	e.flush(gameID, p)
	e.record(gameID, uuid.Nil, "game_created", map[string]any{"players": len(players)})
	e.startTurnTimer(gameID)
	e.log.WithField("game", gameID).Info("game created")
	return nil
}

// createDeck mints one card per catalog copy, all in DECK in catalog order.
func createDeck(tx store.Tx, gameID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	seq := 0
	for _, spec := range models.Catalog() {
		for i := 0; i < spec.Copies; i++ {
			card := &models.Card{
				ID:            uuid.New(),
				GameID:        gameID,
				Kind:          spec.Kind,
				Code:          spec.Code,
				Name:          spec.Name,
				Description:   spec.Description,
				Effect:        spec.Effect,
				Zone:          models.ZoneDeck,
				SequenceIndex: seq,
			}
			if err := tx.CreateCard(card); err != nil {
				return nil, err
			}
			ids = append(ids, card.ID)
			seq++
		}
	}
	return ids, nil
}

// shuffleDeck randomly permutes sequence indexes among the game's DECK
// cards. Called exactly once, before dealing.
func shuffleDeck(tx store.Tx, gameID uuid.UUID) error {
	deck, err := tx.CardsInZone(gameID, models.ZoneDeck)
	if err != nil {
		return err
	}
	perm := rand.Perm(len(deck))
	for i, c := range deck {
		c.SequenceIndex = perm[i]
		if err := tx.UpdateCard(c); err != nil {
			return err
		}
	}
	return nil
}

// dealOpeningHands runs the two-pass opening deal: first one must-start-in-
// hand card per player while any remain, then each hand fills to perPlayer
// from the deck top, preserving deck order. Must-start cards beyond one per
// player keep their shuffled deck positions.
func (e *Engine) dealOpeningHands(tx store.Tx, gameID uuid.UUID, playerIDs []uuid.UUID, perPlayer int, p *pending) error {
	deck, err := tx.CardsInZone(gameID, models.ZoneDeck)
	if err != nil {
		return err
	}
	sortBySeqDesc(deck)

	var opening []*models.Card
	taken := make(map[uuid.UUID]struct{}, len(playerIDs))
	for _, c := range deck {
		if len(opening) == len(playerIDs) {
			break
		}
		if startsInHand(c.Code) {
			opening = append(opening, c)
			taken[c.ID] = struct{}{}
		}
	}

	hands := make(map[uuid.UUID]int, len(playerIDs))
	for i, card := range opening {
		pid := playerIDs[i]
		if err := moveCard(tx, card, models.ZoneHand, pid, nil, p); err != nil {
			return err
		}
		hands[pid]++
	}

	rest := make([]*models.Card, 0, len(deck)-len(opening))
	for _, c := range deck {
		if _, dealt := taken[c.ID]; !dealt {
			rest = append(rest, c)
		}
	}

	for _, pid := range playerIDs {
		for hands[pid] < perPlayer {
			if len(rest) == 0 {
				return fmt.Errorf("%w: deck exhausted during opening deal", ErrNoCardsAvailable)
			}
			card := rest[0]
			rest = rest[1:]
			if err := moveCard(tx, card, models.ZoneHand, pid, nil, p); err != nil {
				return err
			}
			hands[pid]++
		}
	}
	return nil
}

func startsInHand(code string) bool {
	for _, spec := range models.Catalog() {
		if spec.Code == code {
			return spec.StartsInHand
		}
	}
	return false
}

// secretNames seeds common secrets; cycled with a counter if a game needs
// more than the list holds.
var secretNames = []string{
	"Gambling Debts", "A Secret Affair", "The Forged Will", "A Hidden Past",
	"The Stolen Inheritance", "A False Name", "The Burned Letters",
	"An Unpaid Blackmailer", "The Midnight Visitor", "A Buried Scandal",
	"The Missing Ledger", "An Old Grudge", "The Poisoned Garden",
	"A Borrowed Fortune", "The Locked Room", "A Witness Silenced",
}

// createSecrets creates one murderer secret, an accomplice for five or six
// players, and enough commons that every player holds exactly three.
func createSecrets(tx store.Tx, gameID uuid.UUID, playerIDs []uuid.UUID) error {
	n := len(playerIDs)
	murdererIdx := rand.IntN(n)
	accompliceIdx := -1
	if n >= AccompliceMinPlayers {
		accompliceIdx = rand.IntN(n - 1)
		if accompliceIdx >= murdererIdx {
			accompliceIdx++
		}
	}

	commons := 0
	nextCommon := func() string {
		name := secretNames[commons%len(secretNames)]
		if commons >= len(secretNames) {
			name = fmt.Sprintf("%s II", name)
		}
		commons++
		return name
	}

	for i, pid := range playerIDs {
		held := 0
		if i == murdererIdx {
			s := &models.Secret{
				ID: uuid.New(), GameID: gameID, HolderID: pid,
				Name: "The Murderer", Role: models.RoleMurderer,
				Description: "You did it. Keep this hidden at any cost.",
			}
			if err := tx.CreateSecret(s); err != nil {
				return err
			}
			held++
		}
		if i == accompliceIdx {
			s := &models.Secret{
				ID: uuid.New(), GameID: gameID, HolderID: pid,
				Name: "The Accomplice", Role: models.RoleAccomplice,
				Description: "You helped cover it up.",
			}
			if err := tx.CreateSecret(s); err != nil {
				return err
			}
			held++
		}
		for ; held < 3; held++ {
			s := &models.Secret{
				ID: uuid.New(), GameID: gameID, HolderID: pid,
				Name: nextCommon(), Role: models.RoleCommon,
			}
			if err := tx.CreateSecret(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// SocialDisgrace reports whether the player holds zero secrets or only
// revealed ones. Disgraced players may not initiate votes or play sets.
func (e *Engine) SocialDisgrace(ctx context.Context, gameID, playerID uuid.UUID) (bool, error) {
	var disgraced bool
	err := e.store.View(ctx, gameID, func(tx store.Tx) error {
		secrets, err := tx.SecretsHeldBy(gameID, playerID)
		if err != nil {
			return err
		}
		disgraced = inDisgrace(secrets)
		return nil
	})
	return disgraced, err
}

func inDisgrace(secrets []*models.Secret) bool {
	for _, s := range secrets {
		if !s.Revealed {
			return false
		}
	}
	return true
}
