package search

import (
	"strconv"
	"strings"

	domainerrors "github.com/channelfinder/channelfinder-server/internal/errors"
)

// Clause is one parsed search parameter. The grammar is closed: reserved
// keys parse to their own variant and every remaining key is a property
// filter, so a switch over the variants is exhaustive.
type Clause interface {
	isClause()
}

// NameClause filters on the channel name.
type NameClause struct {
	Patterns []string
	Negated  bool
}

// TagClause filters on tag membership.
type TagClause struct {
	Patterns []string
	Negated  bool
}

// PropertyClause filters on the value of one named property. The property
// name is matched exactly; only the value patterns are wildcards. The
// negated form still requires the property to be present on the channel
// and excludes on value alone, per pattern: with several patterns a value
// failing any one of them is a match.
type PropertyClause struct {
	Name     string
	Patterns []string
	Negated  bool
}

func (NameClause) isClause()     {}
func (TagClause) isClause()      {}
func (PropertyClause) isClause() {}

// Params is a parsed search parameter map.
type Params struct {
	Clauses []Clause

	Size int
	From int

	// Cursor for the flat search path, accepted for wire compatibility
	// with clients that page without the scroll resource.
	SearchAfter string

	// Accepted and ignored: match totals are always exact here.
	TrackTotalHits bool
}

// reserved parameter keys; every other key is a property filter.
const (
	keyName           = "~name"
	keyTag            = "~tag"
	keySize           = "~size"
	keyFrom           = "~from"
	keySearchAfter    = "~search_after"
	keyTrackTotalHits = "~track_total_hits"
)

// Parse turns a multi-valued parameter map into Params. defaultSize is the
// page size applied when ~size is absent. Each repeated occurrence of a key
// becomes its own AND-combined clause; within one value, separator-split
// patterns are OR-combined.
func Parse(values map[string][]string, defaultSize int) (*Params, error) {
	p := &Params{Size: defaultSize}

	for key, vals := range values {
		key = strings.TrimSpace(key)
		// The bang is stripped off every key; ~size/~from simply ignore it.
		negated := false
		if base, ok := strings.CutSuffix(key, "!"); ok {
			key = base
			negated = true
		}

		switch key {
		case keyName:
			for _, v := range vals {
				p.Clauses = append(p.Clauses, NameClause{Patterns: splitPatterns(v), Negated: negated})
			}
		case keyTag:
			for _, v := range vals {
				p.Clauses = append(p.Clauses, TagClause{Patterns: splitPatterns(v), Negated: negated})
			}
		case keySize:
			n, err := maxCount(keySize, vals)
			if err != nil {
				return nil, err
			}
			p.Size = n
		case keyFrom:
			n, err := maxCount(keyFrom, vals)
			if err != nil {
				return nil, err
			}
			p.From = n
		case keySearchAfter:
			if len(vals) > 0 {
				p.SearchAfter = vals[0]
			}
		case keyTrackTotalHits:
			if len(vals) > 0 {
				p.TrackTotalHits = strings.EqualFold(vals[0], "true")
			}
		default:
			for _, v := range vals {
				p.Clauses = append(p.Clauses, PropertyClause{Name: key, Patterns: splitPatterns(v), Negated: negated})
			}
		}
	}

	return p, nil
}

// splitPatterns splits one parameter value on the separator set into
// patterns. Empty patterns are kept: an empty wildcard matches nothing,
// which is what an empty filter value means.
func splitPatterns(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == '|' || r == ',' || r == ';'
	})
	if len(parts) == 0 {
		return []string{""}
	}
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

// maxCount parses every supplied value and returns the maximum. A single
// malformed value rejects the whole request.
func maxCount(key string, vals []string) (int, error) {
	max := 0
	for _, v := range vals {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, domainerrors.Validationf("invalid %s value %q", key, v)
		}
		if n > max {
			max = n
		}
	}
	return max, nil
}
