package service

import (
	"context"

	"github.com/channelfinder/channelfinder-server/internal/auth"
	"github.com/channelfinder/channelfinder-server/internal/domain"
	domainerrors "github.com/channelfinder/channelfinder-server/internal/errors"
	"github.com/channelfinder/channelfinder-server/internal/search"
)

// PropertyService owns the property read paths and mutation semantics.
// Properties behave like tags with one extra dimension: every attachment
// carries a channel-specific value, which cascades and renames must
// preserve.
type PropertyService struct {
	core *Core
}

// NewPropertyService creates the property service.
func NewPropertyService(core *Core) *PropertyService {
	return &PropertyService{core: core}
}

// List returns all properties in name-ascending order.
func (s *PropertyService) List(ctx context.Context) ([]*domain.Property, error) {
	props, err := s.core.Store.Properties.All(ctx)
	if err != nil {
		return nil, domainerrors.Backend("property listing failed", err)
	}
	if props == nil {
		props = []*domain.Property{}
	}
	return props, nil
}

// Get returns one property. With withChannels the member channels are eager
// loaded as a convenience view: each channel is reduced to only the matching
// property instance, with tags stripped.
func (s *PropertyService) Get(ctx context.Context, name string, withChannels bool) (*domain.Property, error) {
	prop, err := s.core.Store.Properties.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if withChannels {
		members, err := s.core.allMatching(ctx, search.PropertyExistsQuery(name))
		if err != nil {
			return nil, err
		}
		view := make([]*domain.Channel, 0, len(members))
		for _, member := range members {
			inst, ok := member.Property(name)
			if !ok {
				continue
			}
			view = append(view, &domain.Channel{
				Name:       member.Name,
				Owner:      member.Owner,
				Properties: []domain.PropertyInstance{inst},
				Tags:       []domain.TagRef{},
			})
		}
		prop.Channels = view
	}
	return prop, nil
}

// Create stores a canonical property. Replacing an existing property is
// destructive: the old membership cascades away first, so afterwards exactly
// the channels listed in the payload carry the property, each with the value
// its payload entry states.
func (s *PropertyService) Create(ctx context.Context, user *auth.User, name string, payload *domain.Property) error {
	if err := s.core.requireRole(user, auth.RoleProperty); err != nil {
		return err
	}
	if err := s.validatePayload(name, payload); err != nil {
		return err
	}
	if err := s.core.requireOwner(user, "property", payload.Name, payload.Owner); err != nil {
		return err
	}

	values, listed, err := s.resolveAttachments(ctx, payload)
	if err != nil {
		return err
	}

	existing, err := s.core.Store.Properties.Get(ctx, name)
	if err != nil && !domainerrors.Is(err, domainerrors.ErrNotFound) {
		return domainerrors.Backend("property lookup failed", err)
	}
	if existing != nil {
		if err := s.core.requireOwner(user, "property", existing.Name, existing.Owner); err != nil {
			return err
		}
		if err := s.cascadeRemove(ctx, name); err != nil {
			return err
		}
	}

	canonical := &domain.Property{Name: payload.Name, Owner: payload.Owner}
	if err := s.core.Store.Properties.Put(ctx, canonical.Name, canonical); err != nil {
		return domainerrors.Backend("property write failed", err)
	}

	touched := newChannelSet()
	for chName, ch := range listed {
		touched.get(ch).AddProperty(canonical.Instance(values[chName]))
	}
	return touched.flush(ctx, s.core)
}

// CreateAll stores a batch of properties with single-create semantics per
// property. The whole batch validates before any write; channels touched by
// several properties in the batch are written once.
func (s *PropertyService) CreateAll(ctx context.Context, user *auth.User, payloads []*domain.Property) error {
	if err := s.core.requireRole(user, auth.RoleProperty); err != nil {
		return err
	}

	for _, payload := range payloads {
		if err := s.validatePayload(payload.Name, payload); err != nil {
			return err
		}
		if err := s.core.requireOwner(user, "property", payload.Name, payload.Owner); err != nil {
			return err
		}
	}

	names := make([]string, len(payloads))
	for i, payload := range payloads {
		names[i] = payload.Name
	}
	existing, err := s.core.Store.Properties.MultiGet(ctx, names)
	if err != nil {
		return domainerrors.Backend("property lookup failed", err)
	}
	for _, old := range existing {
		if err := s.core.requireOwner(user, "property", old.Name, old.Owner); err != nil {
			return err
		}
	}

	type attachment struct {
		values map[string]string
		listed map[string]*domain.Channel
	}
	attachments := make(map[string]attachment, len(payloads))
	for _, payload := range payloads {
		values, listed, err := s.resolveAttachments(ctx, payload)
		if err != nil {
			return err
		}
		attachments[payload.Name] = attachment{values: values, listed: listed}
	}

	touched := newChannelSet()
	canonicals := make([]*domain.Property, len(payloads))
	for i, payload := range payloads {
		members, err := s.core.allMatching(ctx, search.PropertyExistsQuery(payload.Name))
		if err != nil {
			return err
		}
		for _, member := range members {
			touched.get(member).RemoveProperty(payload.Name)
		}
		canonicals[i] = &domain.Property{Name: payload.Name, Owner: payload.Owner}
	}
	for i, payload := range payloads {
		att := attachments[payload.Name]
		for chName, ch := range att.listed {
			touched.get(ch).AddProperty(canonicals[i].Instance(att.values[chName]))
		}
	}

	if err := s.core.Store.Properties.BulkPut(ctx, names, canonicals); err != nil {
		return domainerrors.Backend("property batch write failed", err)
	}
	return touched.flush(ctx, s.core)
}

// Update merges a payload into the property stored under the path name. A
// differing payload name renames the property: every member channel's
// instance moves to the new identity keeping its channel-specific value.
// Members named in the payload are attached with the payload's values;
// current members are never removed. A missing target degrades to create.
func (s *PropertyService) Update(ctx context.Context, user *auth.User, name string, payload *domain.Property) error {
	if err := s.core.requireRole(user, auth.RoleProperty); err != nil {
		return err
	}
	if err := s.core.Validator.Validate(payload); err != nil {
		return err
	}

	existing, err := s.core.Store.Properties.Get(ctx, name)
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		return s.Create(ctx, user, payload.Name, payload)
	}
	if err != nil {
		return domainerrors.Backend("property lookup failed", err)
	}
	if err := s.core.requireOwner(user, "property", existing.Name, existing.Owner); err != nil {
		return err
	}

	values, listed, err := s.resolveAttachments(ctx, payload)
	if err != nil {
		return err
	}

	// Capture membership and per-channel values before any rename removes
	// the old instances.
	members, err := s.core.allMatching(ctx, search.PropertyExistsQuery(name))
	if err != nil {
		return err
	}

	rename := payload.Name != name
	if rename {
		if err := s.core.Store.Properties.Delete(ctx, name); err != nil {
			return domainerrors.Backend("property delete failed", err)
		}
	}

	canonical := &domain.Property{Name: payload.Name, Owner: payload.Owner}
	if err := s.core.Store.Properties.Put(ctx, canonical.Name, canonical); err != nil {
		return domainerrors.Backend("property write failed", err)
	}

	touched := newChannelSet()
	for _, member := range members {
		inst, ok := member.Property(name)
		if !ok {
			continue
		}
		ch := touched.get(member)
		if rename {
			ch.RemoveProperty(name)
		}
		ch.AddProperty(canonical.Instance(inst.Value))
	}
	for chName, ch := range listed {
		touched.get(ch).AddProperty(canonical.Instance(values[chName]))
	}
	return touched.flush(ctx, s.core)
}

// UpdateAll merges a batch of property payloads with single-update
// semantics per property and one write per affected channel across the
// whole batch.
func (s *PropertyService) UpdateAll(ctx context.Context, user *auth.User, payloads []*domain.Property) error {
	if err := s.core.requireRole(user, auth.RoleProperty); err != nil {
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
	existing, err := s.core.Store.Properties.MultiGet(ctx, names)
	if err != nil {
		return domainerrors.Backend("property lookup failed", err)
	}
	for _, old := range existing {
		if err := s.core.requireOwner(user, "property", old.Name, old.Owner); err != nil {
			return err
		}
	}
	existingNames := make(map[string]bool, len(existing))
	for _, old := range existing {
		existingNames[old.Name] = true
	}
	for _, payload := range payloads {
		if !existingNames[payload.Name] {
			if err := s.core.requireOwner(user, "property", payload.Name, payload.Owner); err != nil {
				return err
			}
		}
	}

	type attachment struct {
		values map[string]string
		listed map[string]*domain.Channel
	}
	attachments := make(map[string]attachment, len(payloads))
	for _, payload := range payloads {
		values, listed, err := s.resolveAttachments(ctx, payload)
		if err != nil {
			return err
		}
		attachments[payload.Name] = attachment{values: values, listed: listed}
	}

	touched := newChannelSet()
	canonicals := make([]*domain.Property, len(payloads))
	for i, payload := range payloads {
		canonicals[i] = &domain.Property{Name: payload.Name, Owner: payload.Owner}

		members, err := s.core.allMatching(ctx, search.PropertyExistsQuery(payload.Name))
		if err != nil {
			return err
		}
		for _, member := range members {
			inst, ok := member.Property(payload.Name)
			if !ok {
				continue
			}
			touched.get(member).AddProperty(canonicals[i].Instance(inst.Value))
		}
		att := attachments[payload.Name]
		for chName, ch := range att.listed {
			touched.get(ch).AddProperty(canonicals[i].Instance(att.values[chName]))
		}
	}

	if err := s.core.Store.Properties.BulkPut(ctx, names, canonicals); err != nil {
		return domainerrors.Backend("property batch write failed", err)
	}
	return touched.flush(ctx, s.core)
}

// Delete removes the canonical property and cascades the removal into every
// referencing channel, best-effort per channel.
func (s *PropertyService) Delete(ctx context.Context, user *auth.User, name string) error {
	if err := s.core.requireRole(user, auth.RoleProperty); err != nil {
		return err
	}

	existing, err := s.core.Store.Properties.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := s.core.requireOwner(user, "property", existing.Name, existing.Owner); err != nil {
		return err
	}

	if err := s.core.Store.Properties.Delete(ctx, name); err != nil {
		return domainerrors.Backend("property delete failed", err)
	}
	return s.cascadeRemove(ctx, name)
}

// AddSingle attaches the property to one channel with the given value.
func (s *PropertyService) AddSingle(ctx context.Context, user *auth.User, name, channelName, value string) error {
	if err := s.core.requireRole(user, auth.RoleProperty); err != nil {
		return err
	}
	if value == "" {
		return domainerrors.Validationf("property %q requires a non-empty value", name)
	}

	canonical, err := s.core.Store.Properties.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := s.core.requireOwner(user, "property", canonical.Name, canonical.Owner); err != nil {
		return err
	}

	ch, err := s.core.Store.Channels.Get(ctx, channelName)
	if err != nil {
		return err
	}
	ch.AddProperty(canonical.Instance(value))
	if err := s.core.Store.Channels.Put(ctx, ch); err != nil {
		return domainerrors.Backend("channel write failed", err)
	}
	return nil
}

// RemoveSingle detaches the property from one channel. Removal is by name
// only; the value is irrelevant.
func (s *PropertyService) RemoveSingle(ctx context.Context, user *auth.User, name, channelName string) error {
	if err := s.core.requireRole(user, auth.RoleProperty); err != nil {
		return err
	}

	canonical, err := s.core.Store.Properties.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := s.core.requireOwner(user, "property", canonical.Name, canonical.Owner); err != nil {
		return err
	}

	ch, err := s.core.Store.Channels.Get(ctx, channelName)
	if err != nil {
		return err
	}
	ch.RemoveProperty(name)
	if err := s.core.Store.Channels.Put(ctx, ch); err != nil {
		return domainerrors.Backend("channel write failed", err)
	}
	return nil
}

// cascadeRemove strips the property's instance from every referencing
// channel, best-effort per channel.
func (s *PropertyService) cascadeRemove(ctx context.Context, name string) error {
	members, err := s.core.allMatching(ctx, search.PropertyExistsQuery(name))
	if err != nil {
		return err
	}

	var errs []error
	for _, member := range members {
		member.RemoveProperty(name)
		if err := s.core.Store.Channels.Put(ctx, member); err != nil {
			s.core.Logger.Error("property cascade failed for channel",
				"property", name, "channel", member.Name, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return domainerrors.Backend("property cascade partially failed", domainerrors.Join(errs...))
	}
	return nil
}

// resolveAttachments validates the channels listed in a property payload
// and extracts the per-channel attachment values: every listed channel must
// exist and its payload entry must state a non-empty value for this
// property.
func (s *PropertyService) resolveAttachments(ctx context.Context, payload *domain.Property) (map[string]string, map[string]*domain.Channel, error) {
	values := make(map[string]string, len(payload.Channels))
	for _, entry := range payload.Channels {
		inst, ok := entry.Property(payload.Name)
		if !ok || inst.Value == "" {
			return nil, nil, domainerrors.Validationf(
				"channel %q in the payload of property %q carries no value for it", entry.Name, payload.Name)
		}
		values[entry.Name] = inst.Value
	}

	listed, err := s.core.fetchPayloadChannels(ctx, payload.Channels)
	if err != nil {
		return nil, nil, err
	}
	return values, listed, nil
}

// validatePayload checks a create payload against the path name.
func (s *PropertyService) validatePayload(name string, payload *domain.Property) error {
	if err := s.core.Validator.Validate(payload); err != nil {
		return err
	}
	if payload.Name != name {
		return domainerrors.Validationf("property name %q in the payload does not match %q", payload.Name, name)
	}
	return nil
}
