// Package ws fans engine events out to connected players over websockets.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Justyxx-14/backend-sub000/internal/engine"
)

const writeTimeout = 5 * time.Second

// Hub tracks one connection per player per game and implements
// engine.Notifier. Writes happen outside the registry lock so one slow
// client never blocks the rest.
type Hub struct {
	mu    sync.RWMutex
	games map[uuid.UUID]map[uuid.UUID]*websocket.Conn
	log   logrus.FieldLogger
}

// NewHub returns an empty hub.
func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{games: make(map[uuid.UUID]map[uuid.UUID]*websocket.Conn), log: log}
}

// Register attaches a player's connection, replacing any previous one.
func (h *Hub) Register(gameID, playerID uuid.UUID, c *websocket.Conn) {
	h.mu.Lock()
	conns, ok := h.games[gameID]
	if !ok {
		conns = make(map[uuid.UUID]*websocket.Conn)
		h.games[gameID] = conns
	}
	old := conns[playerID]
	conns[playerID] = c
	h.mu.Unlock()

	if old != nil {
		old.Close(websocket.StatusPolicyViolation, "replaced by new connection")
	}
}

// Unregister detaches a player's connection if it is still the current one.
func (h *Hub) Unregister(gameID, playerID uuid.UUID, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.games[gameID]
	if !ok {
		return
	}
	if conns[playerID] == c {
		delete(conns, playerID)
	}
	if len(conns) == 0 {
		delete(h.games, gameID)
	}
}

// Broadcast implements engine.Notifier.
func (h *Hub) Broadcast(gameID uuid.UUID, ev engine.Event) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.games[gameID]))
	for _, c := range h.games[gameID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		h.write(c, ev)
	}
}

// SendToPlayer implements engine.Notifier.
func (h *Hub) SendToPlayer(gameID, playerID uuid.UUID, ev engine.Event) {
	h.mu.RLock()
	c := h.games[gameID][playerID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	h.write(c, ev)
}

func (h *Hub) write(c *websocket.Conn, ev engine.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, c, ev); err != nil {
		h.log.WithError(err).WithField("event", ev.Type).Debug("websocket write failed")
	}
}

// HandleWS upgrades the request and keeps the connection registered until the
// client goes away. Expects game and player ids as query parameters.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(r.URL.Query().Get("game"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	playerID, err := uuid.Parse(r.URL.Query().Get("player"))
	if err != nil {
		http.Error(w, "invalid player id", http.StatusBadRequest)
		return
	}

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket accept failed")
		return
	}
	h.Register(gameID, playerID, c)
	defer h.Unregister(gameID, playerID, c)
	defer c.CloseNow()

	// The connection is an event feed; drain and discard anything the
	// client sends until it closes.
	ctx := r.Context()
	for {
		if _, _, err := c.Read(ctx); err != nil {
			return
		}
	}
}
