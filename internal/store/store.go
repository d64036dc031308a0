// Package store provides document persistence for the catalog on top of Badger.
package store

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/shelflineapp/shelfline-server/internal/domain"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// Generic entities
	Books   *Entity[domain.Book]
	Authors *Entity[domain.Author]
	Users   *Entity[domain.User]
}

// New creates a new Store instance backed by the given database path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	store, err := open(opts, logger)
	if err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return store, nil
}

// NewInMemory creates a Store with no disk backing.
// Used as a degraded fallback when the on-disk store cannot be opened,
// and by tests that don't care about persistence.
func NewInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	store, err := open(opts, logger)
	if err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Warn("Badger database running in memory, data will not survive restarts")
	}

	return store, nil
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{
		db:     db,
		logger: logger,
	}

	// Initialize generic entities
	store.initBooks()
	store.initAuthors()
	store.initUsers()

	return store, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// initBooks initializes the Books entity on the store.
// Books carry no unique secondary keys; duplicate titles are allowed.
func (s *Store) initBooks() {
	s.Books = NewEntity[domain.Book](s, "book:")
}

// initAuthors initializes the Authors entity on the store.
// The name index backs the find-or-create performed when adding books.
func (s *Store) initAuthors() {
	s.Authors = NewEntity[domain.Author](s, "author:").
		WithIndex("name", func(a *domain.Author) []string {
			return []string{a.Name}
		})
}

// initUsers initializes the Users entity on the store.
// Usernames are unique and matched exactly.
func (s *Store) initUsers() {
	s.Users = NewEntity[domain.User](s, "user:").
		WithIndex("username", func(u *domain.User) []string {
			return []string{u.Username}
		})
}
