package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle-server/internal/config"
	"github.com/vovakirdan/huddle-server/internal/core"
	"github.com/vovakirdan/huddle-server/internal/moderation"
	"github.com/vovakirdan/huddle-server/internal/store"
	transporthttp "github.com/vovakirdan/huddle-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	manager         *core.Manager
	broker          *core.Broker
	store           core.MessageStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := store.Open(store.Driver(cfg.StoreDriver), cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("driver", cfg.StoreDriver).Str("db_path", cfg.DatabasePath).Msg("message store initialized")

	moderator, err := moderation.New(cfg.CensoredWords, moderation.DefaultMask)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init moderation: %w", err)
	}
	var censor core.Censor
	if moderator != nil {
		censor = moderator
		logger.Info().Int("words", len(cfg.CensoredWords)).Msg("moderation enabled")
	}

	manager := core.NewManager(core.ManagerOptions{Room: cfg.Room, SendBuffer: cfg.SendBuffer}, logger)
	broker := core.NewBroker(st, manager, censor, logger)
	manager.UseBroker(broker)

	server := transporthttp.NewServer(manager, broker, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		manager:         manager,
		broker:          broker,
		store:           st,
		log:             logger,
	}, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Int("connections", a.manager.Count()).Msg("shutting down http server")
		// Hijacked websocket connections are not tracked by Shutdown.
		a.manager.CloseAll()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the message store.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
