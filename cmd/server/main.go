package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "huddle/internal/adapters/http"
	"huddle/internal/app"
	"huddle/internal/config"
	"huddle/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	st, err := buildStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}

	chat := app.NewChatBuffer(cfg.ChatHistory)
	rooms := app.NewRoomService(st, chat, cfg.RoomTTL)
	control := app.NewControlService(st)
	registry := app.NewRegistry()
	limiter := app.NewSlidingWindowLimiter(cfg.RateLimitMessages, cfg.RateLimitWindow)
	hub := app.NewHub(registry, st, limiter)

	go hub.RunReaper(ctx, cfg.PingPeriod)

	r := router.SetupRouter(ctx, cfg, rooms, control, chat, hub)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("huddle server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	hub.Shutdown()
	if err := st.Close(); err != nil {
		log.Error().Err(err).Msg("store close")
	}
	log.Info().Msg("Server exited gracefully")
}

func buildStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		return store.NewSQLiteStore(cfg.StorePath)
	case "memory", "":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
