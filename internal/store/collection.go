package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"iter"

	"github.com/dgraph-io/badger/v4"

	domainerrors "github.com/channelfinder/channelfinder-server/internal/errors"
)

// Collection provides CRUD operations for one entity kind. Documents are
// stored as JSON under prefix+name keys; Put is an upsert.
type Collection[T any] struct {
	store  *Store
	prefix string
	kind   string
}

// NewCollection creates a Collection for type T. kind is the entity kind used
// in error messages ("channel", "tag", "property").
func NewCollection[T any](s *Store, prefix, kind string) *Collection[T] {
	return &Collection[T]{
		store:  s,
		prefix: prefix,
		kind:   kind,
	}
}

// Get retrieves a document by name.
// Returns a not-found domain error if the document does not exist.
func (c *Collection[T]) Get(ctx context.Context, name string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := c.prefix + name
	var doc T

	err := c.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domainerrors.NotFoundf("%s %q does not exist", c.kind, name)
		}
		if err != nil {
			return fmt.Errorf("failed to get key: %w", err)
		}

		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &doc); err != nil {
				return fmt.Errorf("failed to unmarshal %s: %w", c.kind, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

// MultiGet retrieves the documents with the given names, preserving order.
// Names with no backing document are silently skipped; the search index may
// briefly reference documents deleted in a concurrent mutation.
func (c *Collection[T]) MultiGet(ctx context.Context, names []string) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := make([]*T, 0, len(names))
	err := c.store.db.View(func(txn *badger.Txn) error {
		for _, name := range names {
			item, err := txn.Get([]byte(c.prefix + name))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to get key: %w", err)
			}

			var doc T
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal %s: %w", c.kind, err)
			}
			docs = append(docs, &doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return docs, nil
}

// Exists checks whether a document with the given name exists.
func (c *Collection[T]) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := c.store.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(c.prefix + name))
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check key: %w", err)
	}
	return true, nil
}

// Put stores a document under the given name, replacing any previous version.
func (c *Collection[T]) Put(ctx context.Context, name string, doc *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", c.kind, err)
	}

	err = c.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(c.prefix+name), data)
	})
	if err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// BulkPut stores documents under their names in a single write batch.
// Order follows the names slice; the two slices must have equal length.
func (c *Collection[T]) BulkPut(ctx context.Context, names []string, docs []*T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(names) != len(docs) {
		return fmt.Errorf("bulk put: %d names for %d documents", len(names), len(docs))
	}

	batch := c.store.db.NewWriteBatch()
	defer batch.Cancel()

	for i, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", c.kind, err)
		}
		if err := batch.Set([]byte(c.prefix+names[i]), data); err != nil {
			return fmt.Errorf("batch set %s: %w", c.kind, err)
		}
	}

	if err := batch.Flush(); err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}
	return nil
}

// Delete deletes a document by name.
// This operation is idempotent - it does not return an error if the document does not exist.
func (c *Collection[T]) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.store.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(c.prefix + name))
	})
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// List returns an iterator over all documents in name-ascending order.
func (c *Collection[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		c.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(c.prefix)
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek([]byte(c.prefix)); it.ValidForPrefix([]byte(c.prefix)); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}

				var doc T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &doc)
				})
				if err != nil {
					yield(nil, err)
					return err
				}

				if !yield(&doc, nil) {
					return nil // Consumer stopped early
				}
			}

			return nil
		})
	}
}

// All collects every document in name-ascending order.
func (c *Collection[T]) All(ctx context.Context) ([]*T, error) {
	var docs []*T
	for doc, err := range c.List(ctx) {
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Count returns the number of documents in the collection.
func (c *Collection[T]) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count := 0
	err := c.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(c.prefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(c.prefix)); it.ValidForPrefix([]byte(c.prefix)); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
