// Package server exposes the game engine over a small JSON HTTP API plus the
// websocket event feed.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Justyxx-14/backend-sub000/internal/cache"
	"github.com/Justyxx-14/backend-sub000/internal/engine"
	"github.com/Justyxx-14/backend-sub000/internal/models"
	"github.com/Justyxx-14/backend-sub000/internal/store"
	"github.com/Justyxx-14/backend-sub000/internal/ws"
)

// Server routes HTTP requests to engine operations.
type Server struct {
	eng       *engine.Engine
	hub       *ws.Hub
	historian *cache.Historian
	log       logrus.FieldLogger
}

// New builds the HTTP surface. historian may be nil.
func New(eng *engine.Engine, hub *ws.Hub, historian *cache.Historian, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{eng: eng, hub: hub, historian: historian, log: log}
}

// Routes registers every endpoint on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /ws", s.hub.HandleWS)

	mux.HandleFunc("POST /v1/games", s.handleCreateGame)
	mux.HandleFunc("POST /v1/games/{game}/draw", s.handleDraw)
	mux.HandleFunc("POST /v1/games/{game}/discard", s.handleDiscard)
	mux.HandleFunc("POST /v1/games/{game}/draft/init", s.handleInitDraft)
	mux.HandleFunc("POST /v1/games/{game}/draft/pick", s.handlePickDraft)
	mux.HandleFunc("POST /v1/games/{game}/events/play", s.handlePlayEvent)
	mux.HandleFunc("POST /v1/games/{game}/passing/start", s.handleStartPassing)
	mux.HandleFunc("POST /v1/games/{game}/passing/submit", s.handleSubmitPass)
	mux.HandleFunc("POST /v1/games/{game}/votes/start", s.handleStartVote)
	mux.HandleFunc("POST /v1/games/{game}/votes/submit", s.handleSubmitVote)
	mux.HandleFunc("POST /v1/games/{game}/secrets/reveal", s.handleRevealSecret)
	mux.HandleFunc("POST /v1/games/{game}/sets", s.handleCreateSet)
	mux.HandleFunc("POST /v1/games/{game}/sets/play", s.handlePlaySet)
	mux.HandleFunc("POST /v1/games/{game}/sets/extend", s.handleExtendSet)
	mux.HandleFunc("POST /v1/games/{game}/devious/ack", s.handleAckDevious)
	mux.HandleFunc("POST /v1/games/{game}/cancel/toggle", s.handleToggleCancel)
	mux.HandleFunc("POST /v1/games/{game}/end-turn", s.handleEndTurn)
	mux.HandleFunc("GET /v1/games/{game}/history", s.handleHistory)
	return mux
}

func gameID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("game"))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			s.log.WithError(err).Debug("response encode failed")
		}
	}
}

// fail maps engine errors onto HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var storageErr *store.StorageError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrGameNotFound),
		errors.Is(err, engine.ErrCardNotFound),
		errors.Is(err, engine.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrWrongPhase),
		errors.Is(err, engine.ErrAlreadySubmitted),
		errors.Is(err, engine.ErrAlreadyRevealed),
		errors.Is(err, engine.ErrAlreadyHidden),
		errors.Is(err, engine.ErrGameEnded):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrCardsNotFoundOrInvalid),
		errors.Is(err, engine.ErrHandLimitExceeded),
		errors.Is(err, engine.ErrNoCardsAvailable),
		errors.Is(err, engine.ErrInvalidSet),
		errors.Is(err, engine.ErrSelfVote),
		errors.Is(err, engine.ErrSocialDisgrace):
		status = http.StatusBadRequest
	case errors.As(err, &storageErr):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("operation failed")
	}
	s.respond(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Players []struct {
			Name string `json:"name"`
		} `json:"players"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	gid := uuid.New()
	players := make([]models.Player, len(req.Players))
	for i, pl := range req.Players {
		players[i] = models.Player{ID: uuid.New(), Name: pl.Name}
	}
	if err := s.eng.CreateGame(r.Context(), gid, players); err != nil {
		s.fail(w, err)
		return
	}
	resp := map[string]any{"gameId": gid, "players": players}
	s.respond(w, http.StatusCreated, resp)
}

func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	var req struct {
		PlayerID uuid.UUID `json:"playerId"`
		Count    int       `json:"count"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	deckEmpty, err := s.eng.DrawFromDeck(r.Context(), gid, req.PlayerID, req.Count)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]bool{"deckEmpty": deckEmpty})
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	var req struct {
		PlayerID uuid.UUID   `json:"playerId"`
		CardIDs  []uuid.UUID `json:"cardIds"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.eng.DiscardFromHand(r.Context(), gid, req.PlayerID, req.CardIDs); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, nil)
}

func (s *Server) handleInitDraft(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	if err := s.eng.InitializeDraft(r.Context(), gid); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, nil)
}

func (s *Server) handlePickDraft(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	var req struct {
		PlayerID uuid.UUID `json:"playerId"`
		CardID   uuid.UUID `json:"cardId"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	deckEmpty, err := s.eng.PickFromDraft(r.Context(), gid, req.PlayerID, req.CardID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]bool{"deckEmpty": deckEmpty})
}

func (s *Server) handlePlayEvent(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	var req struct {
		PlayerID uuid.UUID `json:"playerId"`
		CardID   uuid.UUID `json:"cardId"`
		Params   struct {
			TargetCardID   uuid.UUID `json:"targetCardId"`
			TargetPlayerID uuid.UUID `json:"targetPlayerId"`
			TargetSecretID uuid.UUID `json:"targetSecretId"`
			TargetSetID    uuid.UUID `json:"targetSetId"`
			GiveCardID     uuid.UUID `json:"giveCardId"`
			TakeCardID     uuid.UUID `json:"takeCardId"`
		} `json:"params"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	params := engine.EffectParams{
		TargetCardID:   req.Params.TargetCardID,
		TargetPlayerID: req.Params.TargetPlayerID,
		TargetSecretID: req.Params.TargetSecretID,
		TargetSetID:    req.Params.TargetSetID,
		GiveCardID:     req.Params.GiveCardID,
		TakeCardID:     req.Params.TakeCardID,
	}
	if err := s.eng.PlayEventCard(r.Context(), gid, req.PlayerID, req.CardID, params); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, nil)
}

func (s *Server) handleStartPassing(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	var req struct {
		PlayerID  uuid.UUID               `json:"playerId"`
		Direction models.PassingDirection `json:"direction"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.eng.StartPassing(r.Context(), gid, req.PlayerID, req.Direction); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, nil)
}

func (s *Server) handleSubmitPass(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	var req struct {
		PlayerID uuid.UUID `json:"playerId"`
		CardID   uuid.UUID `json:"cardId"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.eng.SubmitPass(r.Context(), gid, req.PlayerID, req.CardID); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, nil)
}

func (s *Server) handleStartVote(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	var req struct {
		PlayerID    uuid.UUID `json:"playerId"`
		EventCardID uuid.UUID `json:"eventCardId"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.eng.StartVote(r.Context(), gid, req.PlayerID, req.EventCardID); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, nil)
}

func (s *Server) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	var req struct {
		PlayerID uuid.UUID `json:"playerId"`
		TargetID uuid.UUID `json:"targetId"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.eng.SubmitVote(r.Context(), gid, req.PlayerID, req.TargetID); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, nil)
}

func (s *Server) handleRevealSecret(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	var req struct {
		PlayerID uuid.UUID `json:"playerId"`
		SecretID uuid.UUID `json:"secretId"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.eng.RevealChosenSecret(r.Context(), gid, req.PlayerID, req.SecretID); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, nil)
}

func (s *Server) handleCreateSet(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	var req struct {
		PlayerID uuid.UUID   `json:"playerId"`
		CardIDs  []uuid.UUID `json:"cardIds"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	setID, err := s.eng.CreateSet(r.Context(), gid, req.PlayerID, req.CardIDs)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusCreated, map[string]uuid.UUID{"setId": setID})
}

func (s *Server) handlePlaySet(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	var req struct {
		PlayerID uuid.UUID `json:"playerId"`
		SetID    uuid.UUID `json:"setId"`
		TargetID uuid.UUID `json:"targetId"`
		SecretID uuid.UUID `json:"secretId"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.eng.PlaySet(r.Context(), gid, req.PlayerID, req.SetID, req.TargetID, req.SecretID); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, nil)
}

func (s *Server) handleExtendSet(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	var req struct {
		PlayerID uuid.UUID `json:"playerId"`
		SetID    uuid.UUID `json:"setId"`
		CardID   uuid.UUID `json:"cardId"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.eng.AddCardToSet(r.Context(), gid, req.PlayerID, req.SetID, req.CardID); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, nil)
}

func (s *Server) handleAckDevious(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	var req struct {
		PlayerID uuid.UUID `json:"playerId"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.eng.AcknowledgeDevious(r.Context(), gid, req.PlayerID); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, nil)
}

func (s *Server) handleToggleCancel(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	var req struct {
		PlayerID uuid.UUID `json:"playerId"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.eng.ToggleCancelFlag(r.Context(), gid, req.PlayerID); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, nil)
}

func (s *Server) handleEndTurn(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	var req struct {
		PlayerID uuid.UUID `json:"playerId"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.eng.EndTurn(r.Context(), gid, req.PlayerID); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, nil)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	if s.historian == nil {
		http.Error(w, "history not enabled", http.StatusNotImplemented)
		return
	}
	msgs, err := s.historian.History(r.Context(), gid, 200)
	if err != nil {
		http.Error(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}
	type entry struct {
		ID     string         `json:"id"`
		Values map[string]any `json:"values"`
	}
	out := make([]entry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, entry{ID: m.ID, Values: m.Values})
	}
	s.respond(w, http.StatusOK, out)
}
