package service

import (
	"context"

	"github.com/channelfinder/channelfinder-server/internal/auth"
	"github.com/channelfinder/channelfinder-server/internal/domain"
	domainerrors "github.com/channelfinder/channelfinder-server/internal/errors"
	"github.com/channelfinder/channelfinder-server/internal/search"
)

// TagService owns the tag read paths and mutation semantics, including the
// cascades that keep channel documents consistent with the canonical tag
// records.
type TagService struct {
	core *Core
}

// NewTagService creates the tag service.
func NewTagService(core *Core) *TagService {
	return &TagService{core: core}
}

// List returns all tags in name-ascending order.
func (s *TagService) List(ctx context.Context) ([]*domain.Tag, error) {
	tags, err := s.core.Store.Tags.All(ctx)
	if err != nil {
		return nil, domainerrors.Backend("tag listing failed", err)
	}
	if tags == nil {
		tags = []*domain.Tag{}
	}
	return tags, nil
}

// Get returns one tag. With withChannels the member channels are eager
// loaded; membership is discovered by query, tags store no back-references.
func (s *TagService) Get(ctx context.Context, name string, withChannels bool) (*domain.Tag, error) {
	tag, err := s.core.Store.Tags.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if withChannels {
		members, err := s.core.allMatching(ctx, search.TagTermQuery(name))
		if err != nil {
			return nil, err
		}
		tag.Channels = members
	}
	return tag, nil
}

// Create stores a canonical tag. Replacing an existing tag is destructive:
// the old tag's membership is cascaded away first, so afterwards exactly the
// channels listed in the payload carry the tag.
func (s *TagService) Create(ctx context.Context, user *auth.User, name string, payload *domain.Tag) error {
	if err := s.core.requireRole(user, auth.RoleTag); err != nil {
		return err
	}
	if err := s.validatePayload(name, payload); err != nil {
		return err
	}
	if err := s.core.requireOwner(user, "tag", payload.Name, payload.Owner); err != nil {
		return err
	}

	listed, err := s.core.fetchPayloadChannels(ctx, payload.Channels)
	if err != nil {
		return err
	}

	existing, err := s.core.Store.Tags.Get(ctx, name)
	if err != nil && !domainerrors.Is(err, domainerrors.ErrNotFound) {
		return domainerrors.Backend("tag lookup failed", err)
	}
	if existing != nil {
		if err := s.core.requireOwner(user, "tag", existing.Name, existing.Owner); err != nil {
			return err
		}
		if err := s.cascadeRemove(ctx, name); err != nil {
			return err
		}
	}

	canonical := &domain.Tag{Name: payload.Name, Owner: payload.Owner}
	if err := s.core.Store.Tags.Put(ctx, canonical.Name, canonical); err != nil {
		return domainerrors.Backend("tag write failed", err)
	}

	return s.attach(ctx, canonical.Ref(), listed)
}

// CreateAll stores a batch of tags with single-create semantics per tag.
// The whole batch validates before any write; channels touched by several
// tags in the batch are written once.
func (s *TagService) CreateAll(ctx context.Context, user *auth.User, payloads []*domain.Tag) error {
	if err := s.core.requireRole(user, auth.RoleTag); err != nil {
		return err
	}

	for _, payload := range payloads {
		if err := s.validatePayload(payload.Name, payload); err != nil {
			return err
		}
		if err := s.core.requireOwner(user, "tag", payload.Name, payload.Owner); err != nil {
			return err
		}
	}

	names := make([]string, len(payloads))
	for i, payload := range payloads {
		names[i] = payload.Name
	}
	existing, err := s.core.Store.Tags.MultiGet(ctx, names)
	if err != nil {
		return domainerrors.Backend("tag lookup failed", err)
	}
	for _, old := range existing {
		if err := s.core.requireOwner(user, "tag", old.Name, old.Owner); err != nil {
			return err
		}
	}

	listedByTag := make(map[string]map[string]*domain.Channel, len(payloads))
	for _, payload := range payloads {
		listed, err := s.core.fetchPayloadChannels(ctx, payload.Channels)
		if err != nil {
			return err
		}
		listedByTag[payload.Name] = listed
	}

	// Reconcile every affected channel into one merge map so two tags
	// touching the same channel in this batch do not clobber each other.
	touched := newChannelSet()
	canonicals := make([]*domain.Tag, len(payloads))
	for i, payload := range payloads {
		members, err := s.core.allMatching(ctx, search.TagTermQuery(payload.Name))
		if err != nil {
			return err
		}
		for _, member := range members {
			touched.get(member).RemoveTag(payload.Name)
		}
		canonicals[i] = &domain.Tag{Name: payload.Name, Owner: payload.Owner}
	}
	for i, payload := range payloads {
		ref := canonicals[i].Ref()
		for _, listed := range listedByTag[payload.Name] {
			touched.get(listed).AddTag(ref)
		}
	}

	if err := s.core.Store.Tags.BulkPut(ctx, names, canonicals); err != nil {
		return domainerrors.Backend("tag batch write failed", err)
	}
	return touched.flush(ctx, s.core)
}

// Update merges a payload into the tag stored under the path name. A
// differing payload name renames the tag: every member channel's ref moves
// to the new identity. Members named in the payload are added to the
// current membership, never removed. A missing target degrades to create.
func (s *TagService) Update(ctx context.Context, user *auth.User, name string, payload *domain.Tag) error {
	if err := s.core.requireRole(user, auth.RoleTag); err != nil {
		return err
	}
	if err := s.core.Validator.Validate(payload); err != nil {
		return err
	}

	existing, err := s.core.Store.Tags.Get(ctx, name)
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		return s.Create(ctx, user, payload.Name, payload)
	}
	if err != nil {
		return domainerrors.Backend("tag lookup failed", err)
	}
	if err := s.core.requireOwner(user, "tag", existing.Name, existing.Owner); err != nil {
		return err
	}

	listed, err := s.core.fetchPayloadChannels(ctx, payload.Channels)
	if err != nil {
		return err
	}

	// Capture membership before any rename removes the old refs.
	members, err := s.core.allMatching(ctx, search.TagTermQuery(name))
	if err != nil {
		return err
	}

	rename := payload.Name != name
	if rename {
		if err := s.core.Store.Tags.Delete(ctx, name); err != nil {
			return domainerrors.Backend("tag delete failed", err)
		}
	}

	canonical := &domain.Tag{Name: payload.Name, Owner: payload.Owner}
	if err := s.core.Store.Tags.Put(ctx, canonical.Name, canonical); err != nil {
		return domainerrors.Backend("tag write failed", err)
	}

	touched := newChannelSet()
	ref := canonical.Ref()
	for _, member := range members {
		ch := touched.get(member)
		if rename {
			ch.RemoveTag(name)
		}
		ch.AddTag(ref)
	}
	for _, ch := range listed {
		touched.get(ch).AddTag(ref)
	}
	return touched.flush(ctx, s.core)
}

// UpdateAll merges a batch of tag payloads with single-update semantics per
// tag and one write per affected channel across the whole batch.
func (s *TagService) UpdateAll(ctx context.Context, user *auth.User, payloads []*domain.Tag) error {
	if err := s.core.requireRole(user, auth.RoleTag); err != nil {
		return err
	}

	for _, payload := range payloads {
		if err := s.core.Validator.Validate(payload); err != nil {
			return err
		}
	}

	names := make([]string, len(payloads))
	for i, payload := range payloads {
		names[i] = payload.Name
	}
	existing, err := s.core.Store.Tags.MultiGet(ctx, names)
	if err != nil {
		return domainerrors.Backend("tag lookup failed", err)
	}
	for _, old := range existing {
		if err := s.core.requireOwner(user, "tag", old.Name, old.Owner); err != nil {
			return err
		}
	}
	existingNames := make(map[string]bool, len(existing))
	for _, old := range existing {
		existingNames[old.Name] = true
	}
	for _, payload := range payloads {
		if !existingNames[payload.Name] {
			if err := s.core.requireOwner(user, "tag", payload.Name, payload.Owner); err != nil {
				return err
			}
		}
	}

	listedByTag := make(map[string]map[string]*domain.Channel, len(payloads))
	for _, payload := range payloads {
		listed, err := s.core.fetchPayloadChannels(ctx, payload.Channels)
		if err != nil {
			return err
		}
		listedByTag[payload.Name] = listed
	}

	touched := newChannelSet()
	canonicals := make([]*domain.Tag, len(payloads))
	for i, payload := range payloads {
		canonicals[i] = &domain.Tag{Name: payload.Name, Owner: payload.Owner}
		ref := canonicals[i].Ref()

		members, err := s.core.allMatching(ctx, search.TagTermQuery(payload.Name))
		if err != nil {
			return err
		}
		for _, member := range members {
			touched.get(member).AddTag(ref)
		}
		for _, listed := range listedByTag[payload.Name] {
			touched.get(listed).AddTag(ref)
		}
	}

	if err := s.core.Store.Tags.BulkPut(ctx, names, canonicals); err != nil {
		return domainerrors.Backend("tag batch write failed", err)
	}
	return touched.flush(ctx, s.core)
}

// Delete removes the canonical tag and cascades the removal into every
// referencing channel. The cascade is best-effort per channel: one failed
// channel write is reported but does not roll back the others.
func (s *TagService) Delete(ctx context.Context, user *auth.User, name string) error {
	if err := s.core.requireRole(user, auth.RoleTag); err != nil {
		return err
	}

	existing, err := s.core.Store.Tags.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := s.core.requireOwner(user, "tag", existing.Name, existing.Owner); err != nil {
		return err
	}

	if err := s.core.Store.Tags.Delete(ctx, name); err != nil {
		return domainerrors.Backend("tag delete failed", err)
	}
	return s.cascadeRemove(ctx, name)
}

// AddSingle attaches the tag to one channel.
func (s *TagService) AddSingle(ctx context.Context, user *auth.User, name, channelName string) error {
	if err := s.core.requireRole(user, auth.RoleTag); err != nil {
		return err
	}

	canonical, err := s.core.Store.Tags.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := s.core.requireOwner(user, "tag", canonical.Name, canonical.Owner); err != nil {
		return err
	}

	ch, err := s.core.Store.Channels.Get(ctx, channelName)
	if err != nil {
		return err
	}
	ch.AddTag(canonical.Ref())
	if err := s.core.Store.Channels.Put(ctx, ch); err != nil {
		return domainerrors.Backend("channel write failed", err)
	}
	return nil
}

// RemoveSingle detaches the tag from one channel. Removal is by name only.
func (s *TagService) RemoveSingle(ctx context.Context, user *auth.User, name, channelName string) error {
	if err := s.core.requireRole(user, auth.RoleTag); err != nil {
		return err
	}

	canonical, err := s.core.Store.Tags.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := s.core.requireOwner(user, "tag", canonical.Name, canonical.Owner); err != nil {
		return err
	}

	ch, err := s.core.Store.Channels.Get(ctx, channelName)
	if err != nil {
		return err
	}
	ch.RemoveTag(name)
	if err := s.core.Store.Channels.Put(ctx, ch); err != nil {
		return domainerrors.Backend("channel write failed", err)
	}
	return nil
}

// cascadeRemove strips the tag's ref from every referencing channel,
// best-effort per channel.
func (s *TagService) cascadeRemove(ctx context.Context, name string) error {
	members, err := s.core.allMatching(ctx, search.TagTermQuery(name))
	if err != nil {
		return err
	}

	var errs []error
	for _, member := range members {
		member.RemoveTag(name)
		if err := s.core.Store.Channels.Put(ctx, member); err != nil {
			s.core.Logger.Error("tag cascade failed for channel",
				"tag", name, "channel", member.Name, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return domainerrors.Backend("tag cascade partially failed", domainerrors.Join(errs...))
	}
	return nil
}

// attach adds the ref to every listed channel.
func (s *TagService) attach(ctx context.Context, ref domain.TagRef, listed map[string]*domain.Channel) error {
	for _, ch := range listed {
		ch.AddTag(ref)
		if err := s.core.Store.Channels.Put(ctx, ch); err != nil {
			return domainerrors.Backend("channel write failed", err)
		}
	}
	return nil
}

// validatePayload checks a create payload against the path name.
func (s *TagService) validatePayload(name string, payload *domain.Tag) error {
	if err := s.core.Validator.Validate(payload); err != nil {
		return err
	}
	if payload.Name != name {
		return domainerrors.Validationf("tag name %q in the payload does not match %q", payload.Name, name)
	}
	return nil
}
