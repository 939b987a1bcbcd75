// Package store persists the canonical directory documents in BadgerDB.
//
// Every entity is stored as a JSON document keyed by its name; lexicographic
// key order doubles as name-ascending listing order. The channel collection
// additionally mirrors its writes into a search indexer so that queries stay
// consistent with the canonical documents.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/channelfinder/channelfinder-server/internal/domain"
)

// ChannelIndexer keeps the search index in sync with the channel collection.
// Writes are mirrored synchronously so a successful mutation is immediately
// visible to queries.
type ChannelIndexer interface {
	Index(ctx context.Context, ch *domain.Channel) error
	IndexBatch(ctx context.Context, chans []*domain.Channel) error
	Delete(ctx context.Context, name string) error
}

// NoopChannelIndexer is a no-op implementation for testing.
type NoopChannelIndexer struct{}

// Index is a no-op.
func (NoopChannelIndexer) Index(context.Context, *domain.Channel) error { return nil }

// IndexBatch is a no-op.
func (NoopChannelIndexer) IndexBatch(context.Context, []*domain.Channel) error { return nil }

// Delete is a no-op.
func (NoopChannelIndexer) Delete(context.Context, string) error { return nil }

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	Channels   *ChannelCollection
	Tags       *Collection[domain.Tag]
	Properties *Collection[domain.Property]
}

// Open opens the store at the given database path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{
		db:     db,
		logger: logger,
	}

	store.Channels = &ChannelCollection{
		Collection: NewCollection[domain.Channel](store, "channel:", "channel"),
		indexer:    NoopChannelIndexer{},
	}
	store.Tags = NewCollection[domain.Tag](store, "tag:", "tag")
	store.Properties = NewCollection[domain.Property](store, "property:", "property")

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return store, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// SetChannelIndexer sets the search indexer mirroring channel writes.
// This is set after store creation to avoid circular dependencies
// (store needs to exist before the search service can be created).
func (s *Store) SetChannelIndexer(indexer ChannelIndexer) {
	s.Channels.indexer = indexer
}
