package search

import (
	"strings"

	"github.com/channelfinder/channelfinder-server/internal/domain"
)

// Index field names. Property values live under prop.<name>, one dynamic
// field per property name, matched exactly by name.
const (
	fieldName = "name"
	fieldTags = "tags"
)

// propertyField returns the index field holding the values of one property.
func propertyField(name string) string {
	return "prop." + name
}

// Document converts a channel into its index document. Terms are lowercased
// so wildcard matching is case-insensitive; the document id keeps the exact
// name and is the only thing read back from the index.
func Document(ch *domain.Channel) map[string]any {
	tags := make([]string, len(ch.Tags))
	for i, t := range ch.Tags {
		tags[i] = strings.ToLower(t.Name)
	}

	props := make(map[string]any, len(ch.Properties))
	for _, p := range ch.Properties {
		props[p.Name] = strings.ToLower(p.Value)
	}

	return map[string]any{
		fieldName: strings.ToLower(ch.Name),
		fieldTags: tags,
		"prop":    props,
	}
}
