package providers

import (
	"context"
	"path/filepath"
	"time"

	"github.com/samber/do/v2"

	"github.com/shelflineapp/shelfline-server/internal/config"
	"github.com/shelflineapp/shelfline-server/internal/events"
	"github.com/shelflineapp/shelfline-server/internal/logger"
	"github.com/shelflineapp/shelfline-server/internal/store"
)

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second
)

// NotifierHandle wraps the event notifier with its context for lifecycle management.
type NotifierHandle struct {
	*events.Notifier
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *NotifierHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Notifier.Shutdown(ctx)
}

// ProvideNotifier provides the catalog event notifier.
func ProvideNotifier(i do.Injector) (*NotifierHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	notifier := events.NewNotifier(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go notifier.Start(ctx)

	log.Info("Event notifier started")

	return &NotifierHandle{
		Notifier: notifier,
		cancel:   cancel,
	}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the document store.
// An unopenable store is not fatal: the server logs the failure and continues
// on in-memory storage so the API stays available.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Data.BasePath, "db")
	db, err := store.New(dbPath, log.Logger)
	if err != nil {
		log.Error("Failed to open document store, continuing with in-memory storage",
			"path", dbPath,
			"error", err,
		)
		db, err = store.NewInMemory(log.Logger)
		if err != nil {
			return nil, err
		}
		return &StoreHandle{Store: db}, nil
	}

	log.Info("Document store initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}
