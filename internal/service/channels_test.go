package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelfinder/channelfinder-server/internal/auth"
	"github.com/channelfinder/channelfinder-server/internal/domain"
	domainerrors "github.com/channelfinder/channelfinder-server/internal/errors"
)

func TestChannelCreate_RoundTripNormalizesOwners(t *testing.T) {
	sv := setup(t)
	ctx := context.Background()
	sv.seedCanonicals(t, ctx)

	// Client-supplied instance owners are lies; canonical owners win.
	payload := chanPayload("SR:C01:BPM", "chanop")
	withTag(payload, "golden", "not-the-owner")
	withProp(payload, "temp", "not-the-owner", "high")

	require.NoError(t, sv.channels.Create(ctx, chanOp, "SR:C01:BPM", payload))

	got, err := sv.channels.Get(ctx, "SR:C01:BPM")
	require.NoError(t, err)
	assert.Equal(t, "SR:C01:BPM", got.Name)
	assert.Equal(t, "chanop", got.Owner)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "tagadm", got.Tags[0].Owner)
	require.Len(t, got.Properties, 1)
	assert.Equal(t, "propadm", got.Properties[0].Owner)
	assert.Equal(t, "high", got.Properties[0].Value)
}

func TestChannelCreate_IsFullReplace(t *testing.T) {
	sv := setup(t)
	ctx := context.Background()
	sv.seedCanonicals(t, ctx)

	first := withProp(chanPayload("SR:C01:BPM", "chanop"), "temp", "", "high")
	require.NoError(t, sv.channels.Create(ctx, chanOp, "SR:C01:BPM", first))

	second := withProp(chanPayload("SR:C01:BPM", "chanop"), "cell", "", "1")
	require.NoError(t, sv.channels.Create(ctx, chanOp, "SR:C01:BPM", second))

	got, err := sv.channels.Get(ctx, "SR:C01:BPM")
	require.NoError(t, err)
	require.Len(t, got.Properties, 1)
	assert.Equal(t, "cell", got.Properties[0].Name)

	// The replaced document is also replaced in the index.
	chans, err := sv.channels.Search(ctx, map[string][]string{"temp": {"high"}})
	require.NoError(t, err)
	assert.Empty(t, chans)
}

func TestChannelCreate_Validation(t *testing.T) {
	sv := setup(t)
	ctx := context.Background()
	sv.seedCanonicals(t, ctx)

	tests := []struct {
		name    string
		target  string
		payload *domain.Channel
	}{
		{
			name:    "payload name mismatch",
			target:  "SR:C01:BPM",
			payload: chanPayload("SR:C02:BPM", "chanop"),
		},
		{
			name:    "missing owner",
			target:  "SR:C01:BPM",
			payload: chanPayload("SR:C01:BPM", ""),
		},
		{
			name:    "unknown tag",
			target:  "SR:C01:BPM",
			payload: withTag(chanPayload("SR:C01:BPM", "chanop"), "no-such-tag", ""),
		},
		{
			name:    "unknown property",
			target:  "SR:C01:BPM",
			payload: withProp(chanPayload("SR:C01:BPM", "chanop"), "no-such-prop", "", "x"),
		},
		{
			name:    "empty property value",
			target:  "SR:C01:BPM",
			payload: withProp(chanPayload("SR:C01:BPM", "chanop"), "temp", "", ""),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sv.channels.Create(ctx, chanOp, tt.target, tt.payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)
		})
	}

	// Nothing was written by any of the rejected creates.
	_, err := sv.channels.Get(ctx, "SR:C01:BPM")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestChannelCreate_Authorization(t *testing.T) {
	sv := setup(t)
	ctx := context.Background()
	sv.seedCanonicals(t, ctx)

	// Tag role is below channel role in the lattice.
	err := sv.channels.Create(ctx, tagOp, "SR:C01:BPM", chanPayload("SR:C01:BPM", "tagop"))
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	// A channel-role caller cannot claim an owner they are not.
	err = sv.channels.Create(ctx, chanOp, "SR:C01:BPM", chanPayload("SR:C01:BPM", "somebody-else"))
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	// Nor replace a channel owned by someone else.
	require.NoError(t, sv.channels.Create(ctx, admin, "SR:C02:BPM", chanPayload("SR:C02:BPM", "locked-owner")))
	err = sv.channels.Create(ctx, chanOp, "SR:C02:BPM", chanPayload("SR:C02:BPM", "chanop"))
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	// Admin replaces anything.
	require.NoError(t, sv.channels.Create(ctx, admin, "SR:C02:BPM", chanPayload("SR:C02:BPM", "root")))
}

func TestChannelUpdate_IsMerge(t *testing.T) {
	sv := setup(t)
	ctx := context.Background()
	sv.seedCanonicals(t, ctx)

	base := withProp(withTag(chanPayload("SR:C01:BPM", "chanop"), "golden", ""), "temp", "", "high")
	require.NoError(t, sv.channels.Create(ctx, chanOp, "SR:C01:BPM", base))

	// New property and an overwrite of temp; golden must survive untouched.
	patch := withProp(withProp(chanPayload("SR:C01:BPM", "chanop"), "cell", "", "7"), "temp", "", "low")
	require.NoError(t, sv.channels.Update(ctx, chanOp, "SR:C01:BPM", patch))

	got, err := sv.channels.Get(ctx, "SR:C01:BPM")
	require.NoError(t, err)
	assert.True(t, got.HasTag("golden"))

	temp, ok := got.Property("temp")
	require.True(t, ok)
	assert.Equal(t, "low", temp.Value)

	cell, ok := got.Property("cell")
	require.True(t, ok)
	assert.Equal(t, "7", cell.Value)
}

func TestChannelUpdate_Rename(t *testing.T) {
	sv := setup(t)
	ctx := context.Background()
	sv.seedCanonicals(t, ctx)

	require.NoError(t, sv.channels.Create(ctx, chanOp, "SR:C01:BPM",
		withProp(chanPayload("SR:C01:BPM", "chanop"), "temp", "", "high")))

	require.NoError(t, sv.channels.Update(ctx, chanOp, "SR:C01:BPM", chanPayload("SR:C99:BPM", "chanop")))

	_, err := sv.channels.Get(ctx, "SR:C01:BPM")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	got, err := sv.channels.Get(ctx, "SR:C99:BPM")
	require.NoError(t, err)
	// Merged content moved to the new id.
	temp, ok := got.Property("temp")
	require.True(t, ok)
	assert.Equal(t, "high", temp.Value)

	// The old id is gone from the index as well.
	chans, err := sv.channels.Search(ctx, map[string][]string{"~name": {"SR:C01:BPM"}})
	require.NoError(t, err)
	assert.Empty(t, chans)
}

func TestChannelUpdate_DegradesToCreate(t *testing.T) {
	sv := setup(t)
	ctx := context.Background()
	sv.seedCanonicals(t, ctx)

	require.NoError(t, sv.channels.Update(ctx, chanOp, "SR:C01:BPM", chanPayload("SR:C01:BPM", "chanop")))

	got, err := sv.channels.Get(ctx, "SR:C01:BPM")
	require.NoError(t, err)
	assert.Equal(t, "chanop", got.Owner)
}

func TestChannelCreateAll(t *testing.T) {
	sv := setup(t)
	ctx := context.Background()
	sv.seedCanonicals(t, ctx)

	require.NoError(t, sv.channels.Create(ctx, admin, "SR:C01:BPM", chanPayload("SR:C01:BPM", "original-owner")))

	batch := []*domain.Channel{
		withProp(chanPayload("SR:C01:BPM", "root"), "temp", "", "high"),
		chanPayload("SR:C02:BPM", "root"),
	}
	require.NoError(t, sv.channels.CreateAll(ctx, admin, batch))

	// Pre-existing channels keep their stored owner through bulk create.
	got, err := sv.channels.Get(ctx, "SR:C01:BPM")
	require.NoError(t, err)
	assert.Equal(t, "original-owner", got.Owner)

	got, err = sv.channels.Get(ctx, "SR:C02:BPM")
	require.NoError(t, err)
	assert.Equal(t, "root", got.Owner)
}

func TestChannelCreateAll_BatchAbortsBeforeAnyWrite(t *testing.T) {
	sv := setup(t)
	ctx := context.Background()
	sv.seedCanonicals(t, ctx)

	batch := []*domain.Channel{
		chanPayload("SR:C01:BPM", "root"),
		withTag(chanPayload("SR:C02:BPM", "root"), "no-such-tag", ""),
	}
	err := sv.channels.CreateAll(ctx, admin, batch)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	// The valid first item was not applied either.
	_, err = sv.channels.Get(ctx, "SR:C01:BPM")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestChannelUpdateAll_MergesEachItem(t *testing.T) {
	sv := setup(t)
	ctx := context.Background()
	sv.seedCanonicals(t, ctx)

	require.NoError(t, sv.channels.Create(ctx, admin, "SR:C01:BPM",
		withTag(chanPayload("SR:C01:BPM", "root"), "golden", "")))

	batch := []*domain.Channel{
		withProp(chanPayload("SR:C01:BPM", "root"), "temp", "", "high"),
		chanPayload("SR:C02:BPM", "root"),
	}
	require.NoError(t, sv.channels.UpdateAll(ctx, admin, batch))

	got, err := sv.channels.Get(ctx, "SR:C01:BPM")
	require.NoError(t, err)
	assert.True(t, got.HasTag("golden"))
	_, ok := got.Property("temp")
	assert.True(t, ok)

	_, err = sv.channels.Get(ctx, "SR:C02:BPM")
	require.NoError(t, err)
}

func TestChannelDelete(t *testing.T) {
	sv := setup(t)
	ctx := context.Background()
	sv.seedCanonicals(t, ctx)

	require.NoError(t, sv.channels.Create(ctx, chanOp, "SR:C01:BPM", chanPayload("SR:C01:BPM", "chanop")))

	// Owner check holds on delete.
	otherOp := chanOpNamed("other")
	err := sv.channels.Delete(ctx, otherOp, "SR:C01:BPM")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	require.NoError(t, sv.channels.Delete(ctx, chanOp, "SR:C01:BPM"))
	_, err = sv.channels.Get(ctx, "SR:C01:BPM")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	err = sv.channels.Delete(ctx, chanOp, "SR:C01:BPM")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestChannelSearchAndCombined(t *testing.T) {
	sv := setup(t)
	ctx := context.Background()
	sv.seedCanonicals(t, ctx)

	for _, name := range []string{"SR:C01:BPM", "SR:C02:BPM", "BR:C01:BPM"} {
		require.NoError(t, sv.channels.Create(ctx, admin, name, chanPayload(name, "root")))
	}

	result, err := sv.channels.Combined(ctx, map[string][]string{"~name": {"SR:*"}, "~size": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Count)
	assert.Equal(t, []string{"SR:C01:BPM"}, channelNames(result.Channels))

	total, err := sv.channels.Count(ctx, map[string][]string{"~name": {"SR:*"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestChannelSearch_WindowGuards(t *testing.T) {
	sv := setup(t)
	ctx := context.Background()

	_, err := sv.channels.Search(ctx, map[string][]string{"~size": {"9000"}, "~from": {"2000"}})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = sv.channels.Search(ctx, map[string][]string{"~from": {"5"}, "~search_after": {"X"}})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestChannelScroll(t *testing.T) {
	sv := setup(t)
	ctx := context.Background()
	sv.seedCanonicals(t, ctx)

	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, sv.channels.Create(ctx, admin, name, chanPayload(name, "root")))
	}

	page1, err := sv.channels.Scroll(ctx, map[string][]string{"~size": {"2"}}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, channelNames(page1.Channels))
	assert.Equal(t, "B", page1.ID)

	page2, err := sv.channels.Scroll(ctx, map[string][]string{"~size": {"2"}}, page1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, channelNames(page2.Channels))
	assert.Equal(t, "", page2.ID)
}

// chanOpNamed returns a channel-role caller with a different identity.
func chanOpNamed(name string) *auth.User {
	return &auth.User{Name: name, Groups: []string{"cf-channels"}}
}
