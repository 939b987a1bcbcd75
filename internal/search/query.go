package search

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Compile turns parsed params into a boolean query over the channel index.
// Clauses are AND-combined; the patterns inside one clause are OR-combined.
// Wildcard matching is case-insensitive: documents index lowercased terms
// and patterns are lowercased here.
func Compile(p *Params) query.Query {
	if len(p.Clauses) == 0 {
		return bleve.NewMatchAllQuery()
	}

	boolQuery := bleve.NewBooleanQuery()
	hasMust := false

	for _, clause := range p.Clauses {
		switch c := clause.(type) {
		case NameClause:
			match := anyWildcard(fieldName, c.Patterns)
			if c.Negated {
				boolQuery.AddMustNot(match)
			} else {
				boolQuery.AddMust(match)
				hasMust = true
			}
		case TagClause:
			match := anyWildcard(fieldTags, c.Patterns)
			if c.Negated {
				// No tag may match any pattern.
				boolQuery.AddMustNot(match)
			} else {
				boolQuery.AddMust(match)
				hasMust = true
			}
		case PropertyClause:
			field := propertyField(c.Name)
			if c.Negated {
				boolQuery.AddMust(anyNegatedValue(field, c.Patterns))
			} else {
				boolQuery.AddMust(anyWildcard(field, c.Patterns))
			}
			hasMust = true
		}
	}

	// A pure must-not query still needs a base match set.
	if !hasMust {
		boolQuery.AddMust(bleve.NewMatchAllQuery())
	}

	return boolQuery
}

// anyWildcard builds the OR of case-insensitive wildcard matches on a field.
func anyWildcard(field string, patterns []string) query.Query {
	queries := make([]query.Query, len(patterns))
	for i, pattern := range patterns {
		queries[i] = wildcardQuery(field, pattern)
	}
	return anyOf(queries)
}

// anyNegatedValue builds the negated property filter: per pattern, the
// property must be present and its value must fail that pattern. The
// per-pattern sub-queries stay OR-combined like positive patterns, so a
// value failing any one pattern is a match.
func anyNegatedValue(field string, patterns []string) query.Query {
	queries := make([]query.Query, len(patterns))
	for i, pattern := range patterns {
		sub := bleve.NewBooleanQuery()
		sub.AddMust(existsQuery(field))
		sub.AddMustNot(wildcardQuery(field, pattern))
		queries[i] = sub
	}
	return anyOf(queries)
}

func anyOf(queries []query.Query) query.Query {
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

func wildcardQuery(field, pattern string) query.Query {
	wq := bleve.NewWildcardQuery(strings.ToLower(pattern))
	wq.SetField(field)
	return wq
}

// TagTermQuery matches every channel carrying exactly the named tag.
// Membership walks use it instead of a wildcard so tag names containing
// wildcard metacharacters stay literal.
func TagTermQuery(name string) query.Query {
	tq := bleve.NewTermQuery(strings.ToLower(name))
	tq.SetField(fieldTags)
	return tq
}

// PropertyExistsQuery matches every channel carrying the named property,
// whatever its value.
func PropertyExistsQuery(name string) query.Query {
	return existsQuery(propertyField(name))
}

// existsQuery matches channels carrying any value in the given field.
// Empty values are never indexed, so a match-any wildcard is an existence
// test.
func existsQuery(field string) query.Query {
	wq := bleve.NewWildcardQuery("*")
	wq.SetField(field)
	return wq
}
