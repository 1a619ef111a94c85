// Package cache records the per-game action history to a Redis stream.
// Recording is fire-and-forget: a failed append is logged and dropped, never
// surfaced into gameplay.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const recordTimeout = 2 * time.Second

// Historian appends game actions to a per-game Redis stream
// ("game:<id>:actions").
type Historian struct {
	rdb *redis.Client
	log logrus.FieldLogger
}

// NewHistorian wraps an established Redis client.
func NewHistorian(rdb *redis.Client, log logrus.FieldLogger) *Historian {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Historian{rdb: rdb, log: log}
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// Record implements engine.Recorder. The append runs in its own goroutine
// with a short timeout so slow Redis never stalls a game operation.
func (h *Historian) Record(gameID, actorID uuid.UUID, action string, payload map[string]any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		values := map[string]any{
			"actor":  actorID.String(),
			"action": action,
			"ts":     time.Now().UnixMilli(),
		}
		if payload != nil {
			raw, err := json.Marshal(payload)
			if err != nil {
				h.log.WithError(err).WithField("action", action).Warn("action payload not serializable")
			} else {
				values["payload"] = string(raw)
			}
		}

		err := h.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: "game:" + gameID.String() + ":actions",
			Values: values,
		}).Err()
		if err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{
				"game":   gameID,
				"action": action,
			}).Warn("failed to record game action")
		}
	}()
}

// History returns up to count recorded actions for a game, oldest first.
func (h *Historian) History(ctx context.Context, gameID uuid.UUID, count int64) ([]redis.XMessage, error) {
	return h.rdb.XRangeN(ctx, "game:"+gameID.String()+":actions", "-", "+", count).Result()
}
