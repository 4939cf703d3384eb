package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/store"
	"github.com/raysh454/a11yscan/internal/webclient"
)

// Application is the runtime state container. It owns the long-lived
// components shared by every run and tears them down in order.
type Application struct {
	Config    *Config
	Logger    logging.Logger
	Store     store.Store
	WebClient webclient.WebClient
	Orch      *Orchestrator
}

// NewApplication builds the store, web client and orchestrator described
// by cfg.
func NewApplication(cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		return nil, errors.New("application: logger is nil")
	}

	var (
		st  store.Store
		err error
	)
	if cfg.DBPath == "" {
		st = store.NewMemoryStore()
	} else {
		st, err = store.NewSQLiteStore(cfg.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("new store: %w", err)
		}
	}

	wc, err := webclient.NewWebClient(cfg.WebClient, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("new webclient: %w", err)
	}

	orch, err := NewOrchestrator(cfg, st, wc, logger)
	if err != nil {
		_ = wc.Close()
		_ = st.Close()
		return nil, fmt.Errorf("new orchestrator: %w", err)
	}

	return &Application{
		Config:    cfg,
		Logger:    logger,
		Store:     st,
		WebClient: wc,
		Orch:      orch,
	}, nil
}

// Shutdown stops the orchestrator first, bounded by 15 seconds, then
// releases the web client and the store.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var firstErr error
	if err := a.Orch.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("orchestrator shutdown returned error", logging.Err(err))
		firstErr = err
	}
	if err := a.WebClient.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close webclient: %w", err)
	}
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close store: %w", err)
	}
	return firstErr
}
