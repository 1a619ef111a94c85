// Package models defines the persisted entities of a game: cards, secrets,
// detective sets, players, and the per-game turn state. Entities are created
// once at game start and only mutate zone/owner/reveal state afterwards.
package models

import "github.com/google/uuid"

// CardKind classifies a card's broad behavior.
type CardKind string

const (
	KindDetective CardKind = "DETECTIVE"
	KindEvent     CardKind = "EVENT"
	KindDevious   CardKind = "DEVIOUS"
)

// Zone is the single location a card currently occupies.
type Zone string

const (
	ZoneDeck    Zone = "DECK"
	ZoneDraft   Zone = "DRAFT"
	ZoneDiscard Zone = "DISCARD"
	ZoneHand    Zone = "HAND"
	ZoneSet     Zone = "SET"
	ZonePassing Zone = "PASSING"
	ZoneRemoved Zone = "REMOVED"
)

// RequiresHolder reports whether a card in this zone must name a holder.
func (z Zone) RequiresHolder() bool {
	return z == ZoneHand || z == ZonePassing || z == ZoneSet
}

// Sequenced reports whether this zone is a LIFO stack ordered by
// Card.SequenceIndex (higher index = more recently placed).
func (z Zone) Sequenced() bool {
	return z == ZoneDeck || z == ZoneDiscard
}

// EffectKind is the closed set of one-shot card effects. Behavior is
// dispatched by exhaustive switch on this enum; the string Code on a card is
// a stable wire identifier only and never drives dispatch.
type EffectKind uint8

const (
	EffectNone EffectKind = iota
	// EffectAshesRetrieval fetches a card from the top five of DISCARD.
	EffectAshesRetrieval
	// EffectDeckPurge moves the top six DECK cards to DISCARD and removes
	// the trigger card from play.
	EffectDeckPurge
	// EffectDiscardRecycle returns the top five DISCARD cards to DECK and
	// removes the trigger card from play.
	EffectDiscardRecycle
	// EffectStripDefenses discards all of the target's defensive hand cards
	// along with the trigger card.
	EffectStripDefenses
	// EffectSecretTransfer hides a revealed secret and hands it to the
	// target player.
	EffectSecretTransfer
	// EffectSetTransfer reassigns ownership of another player's set.
	EffectSetTransfer
	// EffectCardTrade exchanges one card each between two hands.
	EffectCardTrade
	// EffectBlackmail fires when the card changes hands: the new holder
	// learns the sender may expose their unrevealed secrets.
	EffectBlackmail
	// EffectForcedPass obligates the recipient to respond before play
	// continues.
	EffectForcedPass
)

// NoSequence marks a card that is not in a sequenced zone.
const NoSequence = -1

// Card is a single physical card. A card belongs to exactly one zone at all
// times; zone transitions are the only mutation path.
type Card struct {
	ID          uuid.UUID
	GameID      uuid.UUID
	Kind        CardKind
	Code        string
	Name        string
	Description string
	Effect      EffectKind

	// Zone and HolderID must agree: HolderID is non-nil iff the zone
	// requires a holder.
	Zone     Zone
	HolderID uuid.UUID

	// SequenceIndex orders DECK/DISCARD stacks; NoSequence elsewhere.
	SequenceIndex int
}

// SecretRole distinguishes the hidden murderer team from common secrets.
type SecretRole string

const (
	RoleCommon     SecretRole = "COMMON"
	RoleMurderer   SecretRole = "MURDERER"
	RoleAccomplice SecretRole = "ACCOMPLICE"
)

// Secret is one of the three secrets each player holds for the game's
// duration. Ownership may move between players; the per-game total is fixed
// at creation.
type Secret struct {
	ID          uuid.UUID
	GameID      uuid.UUID
	Name        string
	Description string
	Role        SecretRole
	HolderID    uuid.UUID
	Revealed    bool
}

// SetType identifies the combination a set of detective cards forms.
type SetType string

const (
	SetPrivateEyes  SetType = "PRIVATE_EYES"
	SetBloodhounds  SetType = "BLOODHOUNDS"
	SetDarkroom     SetType = "DARKROOM"
	SetArrest       SetType = "ARREST"
	SetTaskForce    SetType = "TASK_FORCE"
	SetWildEyes     SetType = "WILD_EYES"
	SetWildHounds   SetType = "WILD_HOUNDS"
	SetWildDarkroom SetType = "WILD_DARKROOM"
)

// Hides reports whether playing this set hides a revealed secret instead of
// revealing a hidden one.
func (t SetType) Hides() bool {
	return t == SetDarkroom || t == SetWildDarkroom
}

// Set groups two or three detective cards played together. CardIDs is the
// explicit ordered membership list; Resolved is set once the set has been
// played against a secret.
type Set struct {
	ID       uuid.UUID
	GameID   uuid.UUID
	OwnerID  uuid.UUID
	Type     SetType
	CardIDs  []uuid.UUID
	Resolved bool
}

// Player is a participant in one game.
type Player struct {
	ID     uuid.UUID
	GameID uuid.UUID
	Name   string
}

// Phase is the turn state machine's current phase.
type Phase string

const (
	PhaseIdle                 Phase = "IDLE"
	PhaseDrawingCards         Phase = "DRAWING_CARDS"
	PhaseDiscarding           Phase = "DISCARDING"
	PhaseEndTurn              Phase = "END_TURN"
	PhaseVoting               Phase = "VOTING"
	PhaseChoosingSecret       Phase = "CHOOSING_SECRET"
	PhaseChoosingSecretByVote Phase = "CHOOSING_SECRET_BY_VOTE"
	PhasePendingDevious       Phase = "PENDING_DEVIOUS"
	PhaseCancelledCardPending Phase = "CANCELLED_CARD_PENDING"
)

// PassingDirection fixes the neighbor a passed card travels to.
type PassingDirection string

const (
	PassLeft  PassingDirection = "LEFT"
	PassRight PassingDirection = "RIGHT"
)

// TurnState is the single mutable orchestration record of a game. Created
// once per game and mutated for the game's lifetime.
type TurnState struct {
	GameID          uuid.UUID
	Phase           Phase
	CurrentPlayerID uuid.UUID

	// TargetPlayerID names the player a phase acts on. During VOTING it
	// holds the vote initiator, whose own vote breaks ties.
	TargetPlayerID     uuid.UUID
	CurrentEventCardID uuid.UUID
	PassingDirection   PassingDirection

	// VoteMap is voter -> voted-for, present only during VOTING.
	VoteMap map[uuid.UUID]uuid.UUID

	// PendingDevious is the ordered set of players awaiting a forced
	// response to a devious card.
	PendingDevious []uuid.UUID

	// CancelFlag toggles each time a player cancels the pending card;
	// LastObservedCancelFlag is the value the waiting goroutine last saw.
	CancelFlag             bool
	LastObservedCancelFlag bool

	// Ended is set once a win condition or deck exhaustion ends the game.
	Ended bool
}

// Clone returns a deep copy of the turn state.
func (ts *TurnState) Clone() *TurnState {
	cp := *ts
	if ts.VoteMap != nil {
		cp.VoteMap = make(map[uuid.UUID]uuid.UUID, len(ts.VoteMap))
		for k, v := range ts.VoteMap {
			cp.VoteMap[k] = v
		}
	}
	if ts.PendingDevious != nil {
		cp.PendingDevious = append([]uuid.UUID(nil), ts.PendingDevious...)
	}
	return &cp
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	cp := *s
	cp.CardIDs = append([]uuid.UUID(nil), s.CardIDs...)
	return &cp
}
