package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/channelfinder/channelfinder-server/internal/domain"
)

// ChannelIndex wraps a Bleve index over the channel collection.
//
// Thread safety: all public methods are safe for concurrent use. The mutex
// protects against index corruption during rebuild operations.
type ChannelIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex // Protects index operations during rebuild
}

// Options configures the channel index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Logger for operations (uses stderr if nil)
}

// mappingVersion is incremented whenever the index mapping changes.
// This triggers an automatic rebuild on startup when the version doesn't match.
const mappingVersion = "1"

// NewChannelIndex creates or opens a channel index.
// If an existing index is found, it opens it. Otherwise, creates a new one.
// If the existing index is corrupted or has an outdated mapping, it's removed and recreated.
func NewChannelIndex(opts Options) (*ChannelIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	indexPath := filepath.Join(opts.DataPath, "channels.bleve")
	versionPath := filepath.Join(opts.DataPath, "channels.version")

	var index bleve.Index
	var err error
	needsRebuild := false

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		if readErr != nil {
			logger.Info("channel index has no version file, will rebuild with current mapping",
				"new_version", mappingVersion,
			)
			needsRebuild = true
		} else if string(existingVersion) != mappingVersion {
			logger.Info("channel index mapping version changed, will rebuild",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open existing index, will recreate",
				"path", indexPath,
				"error", err,
			)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	if index == nil {
		indexMapping := buildIndexMapping()
		index, err = bleve.New(indexPath, indexMapping)
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0644); writeErr != nil {
			logger.Warn("failed to write index version file", "error", writeErr)
		}
		logger.Info("created new channel index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing channel index", "path", indexPath)
	}

	return &ChannelIndex{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// Close closes the index and releases resources.
func (s *ChannelIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// Index indexes a single channel under its name.
func (s *ChannelIndex) Index(_ context.Context, ch *domain.Channel) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(ch.Name, Document(ch))
}

// IndexBatch indexes multiple channels in one batch.
// For large sets, channels are processed in chunks to bound memory use.
func (s *ChannelIndex) IndexBatch(_ context.Context, chans []*domain.Channel) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500

	for i := 0; i < len(chans); i += batchSize {
		end := min(i+batchSize, len(chans))
		chunk := chans[i:end]

		batch := s.index.NewBatch()
		for _, ch := range chunk {
			if err := batch.Index(ch.Name, Document(ch)); err != nil {
				return fmt.Errorf("batch index %s: %w", ch.Name, err)
			}
		}

		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// Delete removes a channel from the index.
func (s *ChannelIndex) Delete(_ context.Context, name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(name)
}

// DocCount returns the total number of indexed channels.
func (s *ChannelIndex) DocCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Page is one page of matching channel names in ascending name order.
type Page struct {
	Names []string
	Total int64
}

// Search executes a compiled query and returns one page of channel names.
// searchAfter, when non-empty, resumes strictly after that name and must not
// be combined with a non-zero offset.
func (s *ChannelIndex) Search(ctx context.Context, q query.Query, size, from int, searchAfter string) (*Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(q, size, from, false)
	req.SortBy([]string{"_id"})
	if searchAfter != "" {
		req.SearchAfter = []string{searchAfter}
	}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	page := &Page{
		Names: make([]string, 0, len(res.Hits)),
		Total: int64(res.Total),
	}
	for _, hit := range res.Hits {
		page.Names = append(page.Names, hit.ID)
	}
	return page, nil
}

// Count returns the number of channels matching a compiled query.
func (s *ChannelIndex) Count(ctx context.Context, q query.Query) (int64, error) {
	page, err := s.Search(ctx, q, 0, 0, "")
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}
