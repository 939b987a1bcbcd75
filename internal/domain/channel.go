// Package domain defines the directory entities: channels, tags and
// properties, plus the denormalized per-channel projections embedded in
// channel documents.
//
// Tag and Property canonical records are independently owned; a channel
// references them only by name through lightweight copies (TagRef,
// PropertyInstance) so that every entity stays independently serializable.
package domain

import "strings"

// Channel is the primary named entity of the directory. Its name doubles as
// its document id. Attached property instances and tag refs are denormalized
// copies of canonical records; their owners are always reset from the
// canonical record on write, never taken from the client.
type Channel struct {
	Name       string             `json:"name" validate:"required"`
	Owner      string             `json:"owner" validate:"required"`
	Properties []PropertyInstance `json:"properties"`
	Tags       []TagRef           `json:"tags"`
}

// PropertyInstance is the denormalized copy of a Property attached to a
// channel, carrying the channel-specific value.
type PropertyInstance struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
	Value string `json:"value"`
}

// TagRef is the denormalized copy of a Tag attached to a channel.
type TagRef struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

// HasTag reports whether the channel carries a tag with the given name.
func (c *Channel) HasTag(name string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

// Property returns the attached instance with the given name, if any.
func (c *Channel) Property(name string) (PropertyInstance, bool) {
	for _, p := range c.Properties {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return PropertyInstance{}, false
}

// AddTag attaches a tag ref, replacing any existing ref with the same name.
func (c *Channel) AddTag(ref TagRef) {
	for i, t := range c.Tags {
		if strings.EqualFold(t.Name, ref.Name) {
			c.Tags[i] = ref
			return
		}
	}
	c.Tags = append(c.Tags, ref)
}

// AddTags merges the given refs into the channel, same-named refs win.
func (c *Channel) AddTags(refs []TagRef) {
	for _, r := range refs {
		c.AddTag(r)
	}
}

// RemoveTag detaches the tag with the given name. Removal is by name only.
func (c *Channel) RemoveTag(name string) {
	kept := c.Tags[:0]
	for _, t := range c.Tags {
		if !strings.EqualFold(t.Name, name) {
			kept = append(kept, t)
		}
	}
	c.Tags = kept
}

// AddProperty attaches a property instance, replacing any existing instance
// with the same name.
func (c *Channel) AddProperty(inst PropertyInstance) {
	for i, p := range c.Properties {
		if strings.EqualFold(p.Name, inst.Name) {
			c.Properties[i] = inst
			return
		}
	}
	c.Properties = append(c.Properties, inst)
}

// AddProperties merges the given instances into the channel, same-named
// instances win.
func (c *Channel) AddProperties(insts []PropertyInstance) {
	for _, p := range insts {
		c.AddProperty(p)
	}
}

// RemoveProperty detaches the property with the given name; the value is
// irrelevant for removal.
func (c *Channel) RemoveProperty(name string) {
	kept := c.Properties[:0]
	for _, p := range c.Properties {
		if !strings.EqualFold(p.Name, name) {
			kept = append(kept, p)
		}
	}
	c.Properties = kept
}

// DropEmptyProperties removes attached instances with an empty value. A
// dangling zero-value instance must never be persisted.
func (c *Channel) DropEmptyProperties() {
	kept := c.Properties[:0]
	for _, p := range c.Properties {
		if p.Value != "" {
			kept = append(kept, p)
		}
	}
	c.Properties = kept
}

// Clone returns a deep copy of the channel.
func (c *Channel) Clone() *Channel {
	dup := &Channel{
		Name:       c.Name,
		Owner:      c.Owner,
		Properties: make([]PropertyInstance, len(c.Properties)),
		Tags:       make([]TagRef, len(c.Tags)),
	}
	copy(dup.Properties, c.Properties)
	copy(dup.Tags, c.Tags)
	return dup
}

// Scroll is one page of a cursor-based channel search. ID is the sort key of
// the last channel in the page, or empty when there are no further pages.
type Scroll struct {
	ID       string     `json:"id"`
	Channels []*Channel `json:"channels"`
}

// SearchResult pairs a page of channels with the total match count.
type SearchResult struct {
	Channels []*Channel `json:"channels"`
	Count    int64      `json:"count"`
}
