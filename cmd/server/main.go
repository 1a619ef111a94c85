package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/Justyxx-14/backend-sub000/internal/cache"
	"github.com/Justyxx-14/backend-sub000/internal/config"
	"github.com/Justyxx-14/backend-sub000/internal/database"
	"github.com/Justyxx-14/backend-sub000/internal/engine"
	"github.com/Justyxx-14/backend-sub000/internal/server"
	"github.com/Justyxx-14/backend-sub000/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer pool.Close()

	var historian *cache.Historian
	var recorder engine.Recorder
	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		// The historian is best-effort; the game runs without it.
		log.WithError(err).Warn("redis unavailable, action history disabled")
	} else {
		defer rdb.Close()
		historian = cache.NewHistorian(rdb, log)
		recorder = historian
	}

	hub := ws.NewHub(log)
	eng := engine.New(database.New(pool), hub, recorder, log, engine.Config{
		TurnDuration: cfg.TurnDuration,
		CancelWindow: cfg.CancelWindow,
	})

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(eng, hub, historian, log).Routes(),
	}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("forced shutdown")
	}
	eng.Timers().StopAll()
}
