// Package service implements the consistency engine: create/update/delete
// and bulk semantics for channels, tags and properties, including
// cross-collection propagation (owner reset, cascade-remove, merge-on-update)
// and the read paths built on the compiled queries.
package service

import (
	"context"
	"log/slog"
	"slices"

	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/channelfinder/channelfinder-server/internal/auth"
	"github.com/channelfinder/channelfinder-server/internal/domain"
	domainerrors "github.com/channelfinder/channelfinder-server/internal/errors"
	"github.com/channelfinder/channelfinder-server/internal/search"
	"github.com/channelfinder/channelfinder-server/internal/store"
	"github.com/channelfinder/channelfinder-server/internal/validation"
)

// Core bundles the collaborators shared by the per-entity services.
type Core struct {
	Store     *store.Store
	Index     *search.ChannelIndex
	Policy    *auth.Policy
	Validator *validation.Validator
	Logger    *slog.Logger

	// DefaultSize is the page size applied when a query carries no ~size.
	DefaultSize int
	// MaxResultWindow caps size+from for offset-based searches.
	MaxResultWindow int
}

// cascadePageSize bounds each page of a membership walk during cascades.
const cascadePageSize = 1000

// requireRole rejects the mutation unless the caller holds the role.
func (c *Core) requireRole(user *auth.User, role auth.Role) error {
	if c.Policy.IsAuthorizedRole(user, role) {
		return nil
	}
	name := "anonymous"
	if user != nil {
		name = user.Name
	}
	return domainerrors.Unauthorizedf("user %q is not authorized to perform this operation", name)
}

// requireOwner rejects the mutation unless the caller owns the entity.
func (c *Core) requireOwner(user *auth.User, kind, name, owner string) error {
	if c.Policy.IsAuthorizedOwner(user, owner) {
		return nil
	}
	caller := "anonymous"
	if user != nil {
		caller = user.Name
	}
	return domainerrors.Unauthorizedf("user %q does not own %s %q", caller, kind, name)
}

// compile parses and compiles a search parameter map, guarding the offset
// window and the cursor/offset conflict.
func (c *Core) compile(values map[string][]string) (*search.Params, blevequery.Query, error) {
	params, err := search.Parse(values, c.DefaultSize)
	if err != nil {
		return nil, nil, err
	}
	if params.SearchAfter != "" && params.From > 0 {
		return nil, nil, domainerrors.Validation("~search_after cannot be combined with ~from")
	}
	if params.SearchAfter == "" && params.Size+params.From > c.MaxResultWindow {
		return nil, nil, domainerrors.Validationf(
			"result window %d exceeds the maximum %d; use the scroll resource",
			params.Size+params.From, c.MaxResultWindow)
	}
	return params, search.Compile(params), nil
}

// parseScroll parses parameters for the scroll path, where the cursor
// replaces offsets: ~from and ~search_after are ignored and the result
// window guard does not apply.
func (c *Core) parseScroll(values map[string][]string) (*search.Params, error) {
	params, err := search.Parse(values, c.DefaultSize)
	if err != nil {
		return nil, err
	}
	params.From = 0
	params.SearchAfter = ""
	return params, nil
}

// compileScroll compiles parsed scroll parameters.
func (c *Core) compileScroll(params *search.Params) blevequery.Query {
	return search.Compile(params)
}

// allMatching walks the whole result set of a query in cursor pages and
// returns every matching channel document.
func (c *Core) allMatching(ctx context.Context, q blevequery.Query) ([]*domain.Channel, error) {
	var chans []*domain.Channel
	cursor := ""
	for {
		page, next, err := c.Index.Scroll(ctx, q, cascadePageSize, cursor)
		if err != nil {
			return nil, domainerrors.Backend("channel membership search failed", err)
		}
		fetched, err := c.Store.Channels.MultiGet(ctx, page.Names)
		if err != nil {
			return nil, domainerrors.Backend("channel fetch failed", err)
		}
		chans = append(chans, fetched...)
		if next == "" {
			return chans, nil
		}
		cursor = next
	}
}

// fetchPayloadChannels resolves the channels listed in a tag or property
// payload to their stored documents, keyed by name. A listed channel that
// does not exist fails validation.
func (c *Core) fetchPayloadChannels(ctx context.Context, listed []*domain.Channel) (map[string]*domain.Channel, error) {
	byName := make(map[string]*domain.Channel, len(listed))
	for _, entry := range listed {
		if _, seen := byName[entry.Name]; seen {
			continue
		}
		ch, err := c.Store.Channels.Get(ctx, entry.Name)
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.Validationf("channel %q does not exist", entry.Name)
		}
		if err != nil {
			return nil, domainerrors.Backend("channel lookup failed", err)
		}
		byName[entry.Name] = ch
	}
	return byName, nil
}

// channelSet accumulates channel mutations across one logical operation so
// every affected channel is written exactly once.
type channelSet struct {
	byName map[string]*domain.Channel
}

func newChannelSet() *channelSet {
	return &channelSet{byName: make(map[string]*domain.Channel)}
}

// get returns the tracked copy of a channel, adopting a clone on first
// sight. Later callers mutate the same copy.
func (cs *channelSet) get(ch *domain.Channel) *domain.Channel {
	if tracked, ok := cs.byName[ch.Name]; ok {
		return tracked
	}
	clone := ch.Clone()
	cs.byName[ch.Name] = clone
	return clone
}

// flush writes every tracked channel in one batch, in name order.
func (cs *channelSet) flush(ctx context.Context, core *Core) error {
	if len(cs.byName) == 0 {
		return nil
	}
	names := make([]string, 0, len(cs.byName))
	for name := range cs.byName {
		names = append(names, name)
	}
	slices.Sort(names)

	chans := make([]*domain.Channel, len(names))
	for i, name := range names {
		ch := cs.byName[name]
		ch.DropEmptyProperties()
		chans[i] = ch
	}
	if err := core.Store.Channels.BulkPut(ctx, chans); err != nil {
		return domainerrors.Backend("channel batch write failed", err)
	}
	return nil
}

// canonical holds the canonical tag and property records referenced by one
// or more channel payloads, keyed by exact name.
type canonical struct {
	tags  map[string]*domain.Tag
	props map[string]*domain.Property
}

// resolveReferences validates that every tag and property referenced by the
// given channels exists as a canonical record and that every property
// instance carries a value. The resolved records are returned for owner
// normalization.
func (c *Core) resolveReferences(ctx context.Context, chans []*domain.Channel) (*canonical, error) {
	canon := &canonical{
		tags:  make(map[string]*domain.Tag),
		props: make(map[string]*domain.Property),
	}

	for _, ch := range chans {
		if err := c.Validator.Validate(ch); err != nil {
			return nil, err
		}
		for _, ref := range ch.Tags {
			if _, seen := canon.tags[ref.Name]; seen {
				continue
			}
			tag, err := c.Store.Tags.Get(ctx, ref.Name)
			if domainerrors.Is(err, domainerrors.ErrNotFound) {
				return nil, domainerrors.Validationf("tag %q on channel %q does not exist", ref.Name, ch.Name)
			}
			if err != nil {
				return nil, domainerrors.Backend("tag lookup failed", err)
			}
			canon.tags[ref.Name] = tag
		}
		for _, inst := range ch.Properties {
			if inst.Value == "" {
				return nil, domainerrors.Validationf("property %q on channel %q has an empty value", inst.Name, ch.Name)
			}
			if _, seen := canon.props[inst.Name]; seen {
				continue
			}
			prop, err := c.Store.Properties.Get(ctx, inst.Name)
			if domainerrors.Is(err, domainerrors.ErrNotFound) {
				return nil, domainerrors.Validationf("property %q on channel %q does not exist", inst.Name, ch.Name)
			}
			if err != nil {
				return nil, domainerrors.Backend("property lookup failed", err)
			}
			canon.props[inst.Name] = prop
		}
	}

	return canon, nil
}

// normalize resets every attached instance's owner from its canonical
// record and drops empty-valued property instances. Owners are never taken
// from the client.
func (canon *canonical) normalize(ch *domain.Channel) {
	for i, ref := range ch.Tags {
		if tag, ok := canon.tags[ref.Name]; ok {
			ch.Tags[i].Owner = tag.Owner
		}
	}
	for i, inst := range ch.Properties {
		if prop, ok := canon.props[inst.Name]; ok {
			ch.Properties[i].Owner = prop.Owner
		}
	}
	ch.DropEmptyProperties()
}
