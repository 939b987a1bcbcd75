package service

import (
	"context"

	"github.com/channelfinder/channelfinder-server/internal/auth"
	"github.com/channelfinder/channelfinder-server/internal/domain"
	domainerrors "github.com/channelfinder/channelfinder-server/internal/errors"
)

// ChannelService owns the channel read paths and mutation semantics.
type ChannelService struct {
	core *Core
}

// NewChannelService creates the channel service.
func NewChannelService(core *Core) *ChannelService {
	return &ChannelService{core: core}
}

// Search compiles a parameter map and returns the matching channels in
// name-ascending order.
func (s *ChannelService) Search(ctx context.Context, values map[string][]string) ([]*domain.Channel, error) {
	result, err := s.Combined(ctx, values)
	if err != nil {
		return nil, err
	}
	return result.Channels, nil
}

// Combined runs a search and returns the page alongside the total match
// count.
func (s *ChannelService) Combined(ctx context.Context, values map[string][]string) (*domain.SearchResult, error) {
	params, q, err := s.core.compile(values)
	if err != nil {
		return nil, err
	}

	page, err := s.core.Index.Search(ctx, q, params.Size, params.From, params.SearchAfter)
	if err != nil {
		return nil, domainerrors.Backend("channel search failed", err)
	}

	chans, err := s.core.Store.Channels.MultiGet(ctx, page.Names)
	if err != nil {
		return nil, domainerrors.Backend("channel fetch failed", err)
	}
	if chans == nil {
		chans = []*domain.Channel{}
	}
	return &domain.SearchResult{Channels: chans, Count: page.Total}, nil
}

// Count returns the number of channels matching a parameter map.
func (s *ChannelService) Count(ctx context.Context, values map[string][]string) (int64, error) {
	_, q, err := s.core.compile(values)
	if err != nil {
		return 0, err
	}
	total, err := s.core.Index.Count(ctx, q)
	if err != nil {
		return 0, domainerrors.Backend("channel count failed", err)
	}
	return total, nil
}

// Scroll fetches one cursor page of a parameter map. The ~from offset is
// not used on this path; the cursor replaces it.
func (s *ChannelService) Scroll(ctx context.Context, values map[string][]string, cursor string) (*domain.Scroll, error) {
	params, err := s.core.parseScroll(values)
	if err != nil {
		return nil, err
	}
	q := s.core.compileScroll(params)

	page, next, err := s.core.Index.Scroll(ctx, q, params.Size, cursor)
	if err != nil {
		return nil, domainerrors.Backend("channel scroll failed", err)
	}

	chans, err := s.core.Store.Channels.MultiGet(ctx, page.Names)
	if err != nil {
		return nil, domainerrors.Backend("channel fetch failed", err)
	}
	if chans == nil {
		chans = []*domain.Channel{}
	}
	return &domain.Scroll{ID: next, Channels: chans}, nil
}

// Get returns one channel by exact name.
func (s *ChannelService) Get(ctx context.Context, name string) (*domain.Channel, error) {
	return s.core.Store.Channels.Get(ctx, name)
}

// Create stores a channel under the path name as a destructive full
// replace: an existing channel's properties and tags not present in the
// payload are dropped, not merged.
func (s *ChannelService) Create(ctx context.Context, user *auth.User, name string, payload *domain.Channel) error {
	if err := s.core.requireRole(user, auth.RoleChannel); err != nil {
		return err
	}
	if payload.Name != name {
		return domainerrors.Validationf("channel name %q in the payload does not match %q", payload.Name, name)
	}

	canon, err := s.core.resolveReferences(ctx, []*domain.Channel{payload})
	if err != nil {
		return err
	}
	if err := s.core.requireOwner(user, "channel", payload.Name, payload.Owner); err != nil {
		return err
	}

	existing, err := s.core.Store.Channels.Get(ctx, name)
	if err != nil && !domainerrors.Is(err, domainerrors.ErrNotFound) {
		return domainerrors.Backend("channel lookup failed", err)
	}
	if existing != nil {
		if err := s.core.requireOwner(user, "channel", existing.Name, existing.Owner); err != nil {
			return err
		}
		// Full replace: drop the old document before writing the new one.
		if err := s.core.Store.Channels.Delete(ctx, name); err != nil {
			return domainerrors.Backend("channel delete failed", err)
		}
	}

	doc := payload.Clone()
	canon.normalize(doc)
	if err := s.core.Store.Channels.Put(ctx, doc); err != nil {
		return domainerrors.Backend("channel write failed", err)
	}
	return nil
}

// CreateAll stores a batch of channels with single-create semantics per
// item. The whole batch validates before any write; documents are written
// in one batch. Pre-existing channels keep their stored owner.
func (s *ChannelService) CreateAll(ctx context.Context, user *auth.User, payloads []*domain.Channel) error {
	if err := s.core.requireRole(user, auth.RoleChannel); err != nil {
		return err
	}

	canon, err := s.core.resolveReferences(ctx, payloads)
	if err != nil {
		return err
	}

	names := make([]string, len(payloads))
	for i, ch := range payloads {
		names[i] = ch.Name
	}
	existing, err := s.core.Store.Channels.MultiGet(ctx, names)
	if err != nil {
		return domainerrors.Backend("channel lookup failed", err)
	}
	existingByName := make(map[string]*domain.Channel, len(existing))
	for _, ch := range existing {
		existingByName[ch.Name] = ch
	}

	for _, payload := range payloads {
		if err := s.core.requireOwner(user, "channel", payload.Name, payload.Owner); err != nil {
			return err
		}
		if old, ok := existingByName[payload.Name]; ok {
			if err := s.core.requireOwner(user, "channel", old.Name, old.Owner); err != nil {
				return err
			}
		}
	}

	docs := make([]*domain.Channel, len(payloads))
	for i, payload := range payloads {
		doc := payload.Clone()
		if old, ok := existingByName[doc.Name]; ok {
			doc.Owner = old.Owner
		}
		canon.normalize(doc)
		docs[i] = doc
	}

	if err := s.core.Store.Channels.BulkPut(ctx, docs); err != nil {
		return domainerrors.Backend("channel batch write failed", err)
	}
	return nil
}

// Update merges a payload into the channel stored under the path name.
// Same-named incoming properties and tags overwrite, everything else is
// preserved; a differing payload name renames the channel. A missing target
// degrades to create.
func (s *ChannelService) Update(ctx context.Context, user *auth.User, name string, payload *domain.Channel) error {
	if err := s.core.requireRole(user, auth.RoleChannel); err != nil {
		return err
	}

	existing, err := s.core.Store.Channels.Get(ctx, name)
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		return s.Create(ctx, user, payload.Name, payload)
	}
	if err != nil {
		return domainerrors.Backend("channel lookup failed", err)
	}

	canon, err := s.core.resolveReferences(ctx, []*domain.Channel{payload})
	if err != nil {
		return err
	}
	if err := s.core.requireOwner(user, "channel", existing.Name, existing.Owner); err != nil {
		return err
	}

	merged := mergeChannel(existing, payload)
	canon.normalize(merged)

	if payload.Name != name {
		// Rename: the old document id disappears, the merged content is
		// written under the new id. Not atomic across the two documents.
		if err := s.core.Store.Channels.Delete(ctx, name); err != nil {
			return domainerrors.Backend("channel delete failed", err)
		}
	}
	if err := s.core.Store.Channels.Put(ctx, merged); err != nil {
		return domainerrors.Backend("channel write failed", err)
	}
	return nil
}

// UpdateAll merges a batch of payloads with single-update semantics per
// item and one batch write. The whole batch validates before any write.
func (s *ChannelService) UpdateAll(ctx context.Context, user *auth.User, payloads []*domain.Channel) error {
	if err := s.core.requireRole(user, auth.RoleChannel); err != nil {
		return err
	}

	canon, err := s.core.resolveReferences(ctx, payloads)
	if err != nil {
		return err
	}

	names := make([]string, len(payloads))
	for i, ch := range payloads {
		names[i] = ch.Name
	}
	existing, err := s.core.Store.Channels.MultiGet(ctx, names)
	if err != nil {
		return domainerrors.Backend("channel lookup failed", err)
	}
	existingByName := make(map[string]*domain.Channel, len(existing))
	for _, ch := range existing {
		existingByName[ch.Name] = ch
	}

	for _, payload := range payloads {
		if err := s.core.requireOwner(user, "channel", payload.Name, payload.Owner); err != nil {
			return err
		}
		if old, ok := existingByName[payload.Name]; ok {
			if err := s.core.requireOwner(user, "channel", old.Name, old.Owner); err != nil {
				return err
			}
		}
	}

	docs := make([]*domain.Channel, len(payloads))
	for i, payload := range payloads {
		var doc *domain.Channel
		if old, ok := existingByName[payload.Name]; ok {
			doc = mergeChannel(old, payload)
		} else {
			doc = payload.Clone()
		}
		canon.normalize(doc)
		docs[i] = doc
	}

	if err := s.core.Store.Channels.BulkPut(ctx, docs); err != nil {
		return domainerrors.Backend("channel batch write failed", err)
	}
	return nil
}

// Delete removes a channel. Channels cascade nothing: tags and properties
// carry no back-references.
func (s *ChannelService) Delete(ctx context.Context, user *auth.User, name string) error {
	if err := s.core.requireRole(user, auth.RoleChannel); err != nil {
		return err
	}

	existing, err := s.core.Store.Channels.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := s.core.requireOwner(user, "channel", existing.Name, existing.Owner); err != nil {
		return err
	}

	if err := s.core.Store.Channels.Delete(ctx, name); err != nil {
		return domainerrors.Backend("channel delete failed", err)
	}
	return nil
}

// mergeChannel merges a payload into an existing channel: the payload's
// name and owner win, same-named properties and tags overwrite, everything
// else on the existing channel is preserved.
func mergeChannel(existing, payload *domain.Channel) *domain.Channel {
	merged := existing.Clone()
	merged.Name = payload.Name
	if payload.Owner != "" {
		merged.Owner = payload.Owner
	}
	merged.AddProperties(payload.Properties)
	merged.AddTags(payload.Tags)
	return merged
}
