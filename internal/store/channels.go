package store

import (
	"context"
	"fmt"

	"github.com/channelfinder/channelfinder-server/internal/domain"
)

// ChannelCollection is the channel document collection with synchronous
// search index mirroring. The canonical document is written first; the index
// write follows, so a failed index write leaves the document authoritative
// and the next successful write repairs the index entry.
type ChannelCollection struct {
	*Collection[domain.Channel]
	indexer ChannelIndexer
}

// Put stores a channel and indexes it.
func (c *ChannelCollection) Put(ctx context.Context, ch *domain.Channel) error {
	if err := c.Collection.Put(ctx, ch.Name, ch); err != nil {
		return err
	}
	if err := c.indexer.Index(ctx, ch); err != nil {
		return fmt.Errorf("index channel %q: %w", ch.Name, err)
	}
	return nil
}

// BulkPut stores channels in one write batch and indexes them in one
// index batch.
func (c *ChannelCollection) BulkPut(ctx context.Context, chans []*domain.Channel) error {
	names := make([]string, len(chans))
	for i, ch := range chans {
		names[i] = ch.Name
	}
	if err := c.Collection.BulkPut(ctx, names, chans); err != nil {
		return err
	}
	if err := c.indexer.IndexBatch(ctx, chans); err != nil {
		return fmt.Errorf("index channel batch: %w", err)
	}
	return nil
}

// Delete removes a channel document and its index entry.
func (c *ChannelCollection) Delete(ctx context.Context, name string) error {
	if err := c.Collection.Delete(ctx, name); err != nil {
		return err
	}
	if err := c.indexer.Delete(ctx, name); err != nil {
		return fmt.Errorf("unindex channel %q: %w", name, err)
	}
	return nil
}
