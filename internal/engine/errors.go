package engine

import "errors"

// Caller errors: invalid references, ownership mismatches, or actions taken
// in the wrong phase. Never retried; surfaced verbatim to the transport
// layer as rejected operations.
var (
	ErrCardNotFound           = errors.New("card not found")
	ErrCardsNotFoundOrInvalid = errors.New("cards not found or invalid")
	ErrHandLimitExceeded      = errors.New("hand limit exceeded")
	ErrNoCardsAvailable       = errors.New("no cards available")
	ErrInvalidSet             = errors.New("invalid set")
	ErrAlreadyRevealed        = errors.New("secret already revealed")
	ErrAlreadyHidden          = errors.New("secret already hidden")
	ErrWrongPhase             = errors.New("wrong phase for action")
	ErrAlreadySubmitted       = errors.New("player already submitted")
	ErrSelfVote               = errors.New("players cannot vote for themselves")
	ErrSocialDisgrace         = errors.New("player is in social disgrace")
	ErrNotFound               = errors.New("not found")
)

// State-consistency errors: the game exists but its records are broken.
// Treated as fatal to the operation; never guessed around.
var (
	ErrGameNotFound           = errors.New("game not found")
	ErrTurnStateMissing       = errors.New("turn state missing for game")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrMurdererSecretMissing  = errors.New("murderer secret missing for game")
	ErrGameEnded              = errors.New("game has ended")
)
