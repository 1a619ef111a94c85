package engine

import (
	"github.com/google/uuid"

	"github.com/Justyxx-14/backend-sub000/internal/models"
)

// EventType labels an outbound notification.
type EventType string

const (
	EventCardBatchCreated   EventType = "card_batch_created"
	EventCardMoved          EventType = "card_moved"
	EventTurnChanged        EventType = "turn_changed"
	EventVoteStarted        EventType = "vote_started"
	EventVoteResolved       EventType = "vote_resolved"
	EventSecretUpdated      EventType = "secret_updated"
	EventSetCreated         EventType = "set_created"
	EventSetUpdated         EventType = "set_updated"
	EventBlackmailTriggered EventType = "blackmail_triggered"
	EventGameEnded          EventType = "game_ended"
)

// Event is one outbound notification. The engine produces payload structs
// only; wire framing belongs to the transport layer.
type Event struct {
	Type    EventType `json:"type"`
	GameID  uuid.UUID `json:"gameId"`
	Payload any       `json:"payload,omitempty"`

	// ToPlayer, when non-nil, restricts delivery to a single player.
	ToPlayer uuid.UUID `json:"-"`
}

// Notifier is the event sink the transport layer provides.
type Notifier interface {
	Broadcast(gameID uuid.UUID, ev Event)
	SendToPlayer(gameID, playerID uuid.UUID, ev Event)
}

// ZoneRef locates one end of a card movement.
type ZoneRef struct {
	Zone     models.Zone `json:"zone"`
	PlayerID *uuid.UUID  `json:"playerId,omitempty"`
}

// CardBatchCreated announces the cards minted at game start.
type CardBatchCreated struct {
	GameID  uuid.UUID   `json:"gameId"`
	CardIDs []uuid.UUID `json:"cardIds"`
}

// CardMoved announces a single zone transition.
type CardMoved struct {
	GameID  uuid.UUID  `json:"gameId"`
	CardID  uuid.UUID  `json:"cardId"`
	From    ZoneRef    `json:"from"`
	To      ZoneRef    `json:"to"`
	ActorID *uuid.UUID `json:"actorId,omitempty"`
}

// TurnChanged announces whose turn begins.
type TurnChanged struct {
	GameID   uuid.UUID `json:"gameId"`
	PlayerID uuid.UUID `json:"playerId"`
}

// SecretRef is the minimal public handle on a secret.
type SecretRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// BlackmailTriggered is relayed to the blackmailed player.
type BlackmailTriggered struct {
	ActorPlayerID    uuid.UUID   `json:"actorPlayerId"`
	TargetPlayerID   uuid.UUID   `json:"targetPlayerId"`
	TriggerCardName  string      `json:"triggerCardName"`
	AvailableSecrets []SecretRef `json:"availableSecrets"`
}

// EndReason names why a game ended.
type EndReason string

const (
	ReasonMurdererRevealed EndReason = "MURDERER_REVEALED"
	ReasonSecretsRevealed  EndReason = "SECRETS_REVEALED"
	ReasonDeckExhausted    EndReason = "DECK_EXHAUSTED"
)

// Team names the winning side.
type Team string

const (
	TeamDetectives Team = "DETECTIVES"
	TeamMurderer   Team = "MURDERER"
)

// PlayerRef identifies a player in end-game payloads.
type PlayerRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// PlayerRole pairs a player with the secret role they held.
type PlayerRole struct {
	ID   uuid.UUID         `json:"id"`
	Name string            `json:"name"`
	Role models.SecretRole `json:"role"`
}

// GameEnded is the terminal notification.
type GameEnded struct {
	Reason      EndReason    `json:"reason"`
	WinningTeam Team         `json:"winningTeam"`
	Winners     []PlayerRef  `json:"winners"`
	PlayerRoles []PlayerRole `json:"playerRoles"`
}

// VoteStarted announces a vote opening.
type VoteStarted struct {
	GameID      uuid.UUID `json:"gameId"`
	InitiatorID uuid.UUID `json:"initiatorId"`
}

// VoteResolved announces the chosen player once every vote is in.
type VoteResolved struct {
	GameID   uuid.UUID `json:"gameId"`
	ChosenID uuid.UUID `json:"chosenId"`
}

// SecretUpdated announces a reveal, hide, or holder change.
type SecretUpdated struct {
	GameID   uuid.UUID `json:"gameId"`
	SecretID uuid.UUID `json:"secretId"`
	HolderID uuid.UUID `json:"holderId"`
	Revealed bool      `json:"revealed"`
}

// SetCreated announces a newly formed detective set.
type SetCreated struct {
	GameID  uuid.UUID      `json:"gameId"`
	SetID   uuid.UUID      `json:"setId"`
	OwnerID uuid.UUID      `json:"ownerId"`
	Type    models.SetType `json:"setType"`
}

// SetUpdated announces membership or ownership changes to a set.
type SetUpdated struct {
	GameID  uuid.UUID      `json:"gameId"`
	SetID   uuid.UUID      `json:"setId"`
	OwnerID uuid.UUID      `json:"ownerId"`
	Type    models.SetType `json:"setType"`
}

// pending accumulates events during a transaction; they are delivered only
// after the transaction commits so rolled-back work is never broadcast.
type pending struct {
	events []Event
}

func (p *pending) add(ev Event) {
	p.events = append(p.events, ev)
}

func (p *pending) addToPlayer(playerID uuid.UUID, ev Event) {
	ev.ToPlayer = playerID
	p.events = append(p.events, ev)
}

// flush delivers accumulated events through the notifier.
func (e *Engine) flush(gameID uuid.UUID, p *pending) {
	if e.notifier == nil {
		return
	}
	for _, ev := range p.events {
		if ev.ToPlayer != uuid.Nil {
			e.notifier.SendToPlayer(gameID, ev.ToPlayer, ev)
		} else {
			e.notifier.Broadcast(gameID, ev)
		}
	}
}
