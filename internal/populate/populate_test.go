package populate

import (
	"context"
	"log/slog"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelfinder/channelfinder-server/internal/search"
	"github.com/channelfinder/channelfinder-server/internal/store"
)

func TestPopulator_Create(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	s, err := store.Open(filepath.Join(dir, "store"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	index, err := search.NewChannelIndex(search.Options{
		DataPath: filepath.Join(dir, "index"),
		Logger:   logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	s.SetChannelIndexer(index)

	p := &Populator{Store: s, Logger: logger, Rand: rand.New(rand.NewSource(1))}
	require.NoError(t, p.Create(ctx, 2, 100))

	count, err := index.DocCount()
	require.NoError(t, err)
	assert.EqualValues(t, 200, count)

	// Canonical records exist.
	tags, err := s.Tags.All(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 2) // group_10, group_100

	props, err := s.Properties.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, props)

	// Every 10th channel of each cell carries group_10.
	members, err := index.Count(ctx, search.TagTermQuery("group_10"))
	require.NoError(t, err)
	assert.EqualValues(t, 20, members)

	// Every 100th carries group_100 as well.
	members, err = index.Count(ctx, search.TagTermQuery("group_100"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, members)
}
