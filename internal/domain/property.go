package domain

// Property is a canonical named key, independently owned and attachable to
// many channels with channel-specific values. Like Tag, membership lives
// only on the channel documents.
//
// Value is meaningful only on attach payloads (the value to set on one
// channel); the canonical record itself carries no value. Channels is
// payload/view only, as on Tag.
type Property struct {
	Name     string     `json:"name" validate:"required"`
	Owner    string     `json:"owner" validate:"required"`
	Value    string     `json:"value,omitempty"`
	Channels []*Channel `json:"channels,omitempty"`
}

// Instance returns the denormalized copy embedded in channel documents,
// carrying the given channel-specific value.
func (p *Property) Instance(value string) PropertyInstance {
	return PropertyInstance{Name: p.Name, Owner: p.Owner, Value: value}
}
