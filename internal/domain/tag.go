package domain

// Tag is a canonical named label, independently owned and attachable to many
// channels. Channel membership is never stored on the tag document; it is
// discovered by querying channels whose tag refs contain the tag name.
//
// Channels is payload/view only: on create/update requests it lists channels
// the tag should be attached to, and on reads with channel expansion it
// carries the current membership.
type Tag struct {
	Name     string     `json:"name" validate:"required"`
	Owner    string     `json:"owner" validate:"required"`
	Channels []*Channel `json:"channels,omitempty"`
}

// Ref returns the denormalized copy embedded in channel documents.
func (t *Tag) Ref() TagRef {
	return TagRef{Name: t.Name, Owner: t.Owner}
}
