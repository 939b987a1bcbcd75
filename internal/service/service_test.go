package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/channelfinder/channelfinder-server/internal/auth"
	"github.com/channelfinder/channelfinder-server/internal/domain"
	"github.com/channelfinder/channelfinder-server/internal/search"
	"github.com/channelfinder/channelfinder-server/internal/store"
	"github.com/channelfinder/channelfinder-server/internal/validation"
)

// Callers used across the engine tests.
var (
	admin  = &auth.User{Name: "root", Groups: []string{"cf-admins"}}
	chanOp = &auth.User{Name: "chanop", Groups: []string{"cf-channels"}}
	propOp = &auth.User{Name: "propop", Groups: []string{"cf-properties"}}
	tagOp  = &auth.User{Name: "tagop", Groups: []string{"cf-tags"}}
)

// setupCore wires a full engine against real temp-dir-backed stores.
func setupCore(t *testing.T) *Core {
	t.Helper()
	dir := t.TempDir()

	s, err := store.Open(filepath.Join(dir, "store"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	index, err := search.NewChannelIndex(search.Options{
		DataPath: filepath.Join(dir, "index"),
		Logger:   slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	s.SetChannelIndexer(index)

	return &Core{
		Store: s,
		Index: index,
		Policy: auth.NewPolicy(auth.Config{
			AdminGroups:    []string{"cf-admins"},
			ChannelGroups:  []string{"cf-channels"},
			PropertyGroups: []string{"cf-properties"},
			TagGroups:      []string{"cf-tags"},
		}),
		Validator:       validation.New(),
		Logger:          slog.New(slog.DiscardHandler),
		DefaultSize:     10000,
		MaxResultWindow: 10000,
	}
}

type services struct {
	core       *Core
	channels   *ChannelService
	tags       *TagService
	properties *PropertyService
}

func setup(t *testing.T) *services {
	core := setupCore(t)
	return &services{
		core:       core,
		channels:   NewChannelService(core),
		tags:       NewTagService(core),
		properties: NewPropertyService(core),
	}
}

// seedCanonicals creates the canonical tag and property records the channel
// fixtures reference.
func (sv *services) seedCanonicals(t *testing.T, ctx context.Context) {
	t.Helper()
	for _, tag := range []string{"golden", "sr"} {
		require.NoError(t, sv.tags.Create(ctx, admin, tag, &domain.Tag{Name: tag, Owner: "tagadm"}))
	}
	for _, prop := range []string{"temp", "cell"} {
		require.NoError(t, sv.properties.Create(ctx, admin, prop, &domain.Property{Name: prop, Owner: "propadm"}))
	}
}

func chanPayload(name, owner string) *domain.Channel {
	return &domain.Channel{Name: name, Owner: owner}
}

func withProp(ch *domain.Channel, name, owner, value string) *domain.Channel {
	ch.Properties = append(ch.Properties, domain.PropertyInstance{Name: name, Owner: owner, Value: value})
	return ch
}

func withTag(ch *domain.Channel, name, owner string) *domain.Channel {
	ch.Tags = append(ch.Tags, domain.TagRef{Name: name, Owner: owner})
	return ch
}

// channelNames projects channels to their names.
func channelNames(chans []*domain.Channel) []string {
	names := make([]string, len(chans))
	for i, ch := range chans {
		names[i] = ch.Name
	}
	return names
}
