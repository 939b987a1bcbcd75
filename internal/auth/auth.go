// Package auth implements the role and ownership checks gating directory
// mutations.
//
// Group membership is configured as plain group names and normalized to a
// ROLE_<UPPERCASE> form, which is also how owner groups are compared.
package auth

import (
	"context"
	"strings"
)

// Role is the permission level a mutation requires.
type Role string

// Roles ordered by the permission lattice: admin covers everything, channel
// covers everything below admin, property covers property and tag, tag
// covers only tag. Channel role does not follow from property or tag.
const (
	RoleAdmin    Role = "CF_ADMIN"
	RoleChannel  Role = "CF_CHANNEL"
	RoleProperty Role = "CF_PROPERTY"
	RoleTag      Role = "CF_TAG"
)

// User is an authenticated caller identity.
type User struct {
	Name   string
	Groups []string
}

// Config lists the group names granted each role.
type Config struct {
	AdminGroups    []string
	ChannelGroups  []string
	PropertyGroups []string
	TagGroups      []string
}

// Policy decides role and ownership authorization. Both checks are pure
// functions of the caller identity and the configured group lists.
type Policy struct {
	admin    map[string]bool
	channel  map[string]bool
	property map[string]bool
	tag      map[string]bool
}

// NewPolicy builds a policy from the configured group lists.
func NewPolicy(cfg Config) *Policy {
	return &Policy{
		admin:    normalizeGroups(cfg.AdminGroups),
		channel:  normalizeGroups(cfg.ChannelGroups),
		property: normalizeGroups(cfg.PropertyGroups),
		tag:      normalizeGroups(cfg.TagGroups),
	}
}

// IsAuthorizedRole reports whether the caller may perform a mutation
// requiring the given role.
func (p *Policy) IsAuthorizedRole(user *User, required Role) bool {
	if user == nil {
		return false
	}
	for _, group := range user.Groups {
		g := NormalizeGroup(group)
		switch {
		case p.admin[g]:
			return true
		case p.channel[g] && required != RoleAdmin:
			return true
		case p.property[g] && (required == RoleProperty || required == RoleTag):
			return true
		case p.tag[g] && required == RoleTag:
			return true
		}
	}
	return false
}

// IsAuthorizedOwner reports whether the caller owns an entity with the given
// owner: admins always, callers whose name equals the owner, and callers in
// a group whose normalized name equals the owner's.
func (p *Policy) IsAuthorizedOwner(user *User, owner string) bool {
	if user == nil {
		return false
	}
	if user.Name == owner {
		return true
	}
	ownerGroup := NormalizeGroup(owner)
	for _, group := range user.Groups {
		g := NormalizeGroup(group)
		if p.admin[g] || g == ownerGroup {
			return true
		}
	}
	return false
}

// NormalizeGroup maps a group or owner name to its ROLE_<UPPERCASE> form.
// Already-normalized names pass through unchanged.
func NormalizeGroup(name string) string {
	upper := strings.ToUpper(name)
	if strings.HasPrefix(upper, "ROLE_") {
		return upper
	}
	return "ROLE_" + upper
}

func normalizeGroups(groups []string) map[string]bool {
	set := make(map[string]bool, len(groups))
	for _, g := range groups {
		set[NormalizeGroup(g)] = true
	}
	return set
}

type contextKey struct{}

// WithUser returns a context carrying the authenticated caller.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the authenticated caller, or nil for anonymous
// requests.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(contextKey{}).(*User)
	return user
}
