// Package stage defines the impresso data processing stages and which
// statistics each stage reports for its records.
package stage

import (
	"fmt"
	"strings"

	"github.com/impresso/impresso-essentials-go/internal/domain"
)

// DataStage identifies a processing stage of the impresso pipeline
type DataStage string

// Known data stages
const (
	Canonical         DataStage = "canonical"
	Rebuilt           DataStage = "rebuilt"
	EvenizedRebuilt   DataStage = "evenized-rebuilt"
	Passim            DataStage = "passim"
	Entities          DataStage = "entities"
	NewsAgencies      DataStage = "news-agencies"
	LangIdent         DataStage = "langident"
	TextReuse         DataStage = "text-reuse"
	Topics            DataStage = "topics"
	EmbImages         DataStage = "emb-images"
	EmbDocs           DataStage = "emb-docs"
	LingProc          DataStage = "lingproc"
	SolrIngestionText DataStage = "solr-ingestion-text"
	OCRQA             DataStage = "ocrqa"
)

var all = []DataStage{
	Canonical,
	Rebuilt,
	EvenizedRebuilt,
	Passim,
	Entities,
	NewsAgencies,
	LangIdent,
	TextReuse,
	Topics,
	EmbImages,
	EmbDocs,
	LingProc,
	SolrIngestionText,
	OCRQA,
}

// All returns every known stage in pipeline order
func All() []DataStage {
	out := make([]DataStage, len(all))
	copy(out, all)
	return out
}

// Parse resolves a stage name, ignoring case and treating '_' like '-'
func Parse(s string) (DataStage, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for _, st := range all {
		if string(st) == norm {
			return st, nil
		}
	}
	return "", domain.NewConfigurationError("data_stage", fmt.Sprintf("unknown data stage %q", s))
}

// String returns the stage name
func (s DataStage) String() string {
	return string(s)
}

// IsValid reports whether s is a known stage
func (s DataStage) IsValid() bool {
	for _, st := range all {
		if st == s {
			return true
		}
	}
	return false
}
