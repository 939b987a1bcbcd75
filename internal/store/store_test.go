package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelfinder/channelfinder-server/internal/domain"
	domainerrors "github.com/channelfinder/channelfinder-server/internal/errors"
	"github.com/channelfinder/channelfinder-server/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestCollection_PutGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	tag := &domain.Tag{Name: "golden", Owner: "testo"}
	require.NoError(t, s.Tags.Put(ctx, tag.Name, tag))

	got, err := s.Tags.Get(ctx, "golden")
	require.NoError(t, err)
	assert.Equal(t, "golden", got.Name)
	assert.Equal(t, "testo", got.Owner)
}

func TestCollection_GetMissing(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Tags.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestCollection_PutIsUpsert(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Properties.Put(ctx, "alias", &domain.Property{Name: "alias", Owner: "testo"}))
	require.NoError(t, s.Properties.Put(ctx, "alias", &domain.Property{Name: "alias", Owner: "admin"}))

	got, err := s.Properties.Get(ctx, "alias")
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Owner)

	count, err := s.Properties.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCollection_DeleteIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Tags.Put(ctx, "golden", &domain.Tag{Name: "golden", Owner: "testo"}))
	require.NoError(t, s.Tags.Delete(ctx, "golden"))
	require.NoError(t, s.Tags.Delete(ctx, "golden"))

	exists, err := s.Tags.Exists(ctx, "golden")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCollection_ListIsNameAscending(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, s.Tags.Put(ctx, name, &domain.Tag{Name: name, Owner: "testo"}))
	}

	all, err := s.Tags.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "mid", all[1].Name)
	assert.Equal(t, "zeta", all[2].Name)
}

func TestCollection_MultiGetSkipsMissing(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Tags.Put(ctx, "a", &domain.Tag{Name: "a", Owner: "testo"}))
	require.NoError(t, s.Tags.Put(ctx, "c", &domain.Tag{Name: "c", Owner: "testo"}))

	docs, err := s.Tags.MultiGet(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].Name)
	assert.Equal(t, "c", docs[1].Name)
}

func TestCollection_BulkPut(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	names := []string{"one", "two", "three"}
	docs := make([]*domain.Tag, len(names))
	for i, name := range names {
		docs[i] = &domain.Tag{Name: name, Owner: "testo"}
	}
	require.NoError(t, s.Tags.BulkPut(ctx, names, docs))

	count, err := s.Tags.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestCollection_BulkPutLengthMismatch(t *testing.T) {
	s := setupTestStore(t)

	err := s.Tags.BulkPut(context.Background(), []string{"one"}, nil)
	assert.Error(t, err)
}

func TestCollection_CancelledContext(t *testing.T) {
	s := setupTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Tags.Get(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)

	err = s.Tags.Put(ctx, "x", &domain.Tag{Name: "x", Owner: "testo"})
	assert.ErrorIs(t, err, context.Canceled)
}

// recordingIndexer captures index mutations for assertions.
type recordingIndexer struct {
	indexed []string
	deleted []string
}

func (r *recordingIndexer) Index(_ context.Context, ch *domain.Channel) error {
	r.indexed = append(r.indexed, ch.Name)
	return nil
}

func (r *recordingIndexer) IndexBatch(_ context.Context, chans []*domain.Channel) error {
	for _, ch := range chans {
		r.indexed = append(r.indexed, ch.Name)
	}
	return nil
}

func (r *recordingIndexer) Delete(_ context.Context, name string) error {
	r.deleted = append(r.deleted, name)
	return nil
}

func TestChannelCollection_MirrorsIndexer(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	rec := &recordingIndexer{}
	s.SetChannelIndexer(rec)

	ch := &domain.Channel{Name: "SR:C01:BPM", Owner: "testo"}
	require.NoError(t, s.Channels.Put(ctx, ch))

	batch := []*domain.Channel{
		{Name: "SR:C02:BPM", Owner: "testo"},
		{Name: "SR:C03:BPM", Owner: "testo"},
	}
	require.NoError(t, s.Channels.BulkPut(ctx, batch))

	require.NoError(t, s.Channels.Delete(ctx, "SR:C01:BPM"))

	assert.Equal(t, []string{"SR:C01:BPM", "SR:C02:BPM", "SR:C03:BPM"}, rec.indexed)
	assert.Equal(t, []string{"SR:C01:BPM"}, rec.deleted)

	// Canonical document mutations happened alongside the index calls.
	got, err := s.Channels.Get(ctx, "SR:C02:BPM")
	require.NoError(t, err)
	assert.Equal(t, "testo", got.Owner)

	_, err = s.Channels.Get(ctx, "SR:C01:BPM")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
