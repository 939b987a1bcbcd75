package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for channel documents.
//
// Everything is a keyword term: queries are wildcard matches against whole
// names, tags and property values, never tokenized text search. The prop.*
// fields are dynamic because property names are open-ended; the keyword
// default analyzer covers them.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = keyword.Name
	nameFieldMapping.Store = false
	docMapping.AddFieldMappingsAt(fieldName, nameFieldMapping)

	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = keyword.Name
	tagsFieldMapping.Store = false
	docMapping.AddFieldMappingsAt(fieldTags, tagsFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
