package stage

import (
	"strings"
)

// Statistic names
const (
	FieldContentItems = "content_items"
	FieldIssues       = "issues"
	FieldTokens       = "tokens"
	FieldNEMentions   = "ne_mentions"
	FieldNEEntities   = "ne_entities"
	FieldTRPassages   = "tr_passages"
	FieldTRClusters   = "tr_clusters"
	FieldTopics       = "topics"
	FieldEmbeddings   = "embeddings"
	FieldSentences    = "sentences"
	FieldOCRQAScored  = "ocrqa_scored"

	// LangFieldPrefix prefixes the per-language counts of langident
	LangFieldPrefix = "lang_"
)

// Record is one decoded JSON line of an archive
type Record = map[string]any

// Observation is what a single record contributes to its year's statistics.
// Counts are summed; Distinct values are collected into sets and counted
// once per year.
type Observation struct {
	Counts   map[string]int
	Distinct map[string][]string
}

func newObservation() Observation {
	return Observation{
		Counts:   make(map[string]int),
		Distinct: make(map[string][]string),
	}
}

// Fields lists the statistics the stage always reports. Langident adds one
// lang_<code> field per observed language.
func (s DataStage) Fields() []string {
	base := []string{FieldContentItems, FieldIssues}
	switch s {
	case Rebuilt, EvenizedRebuilt, Passim:
		return append(base, FieldTokens)
	case Entities, NewsAgencies:
		return append(base, FieldNEMentions, FieldNEEntities)
	case TextReuse:
		return append(base, FieldTRPassages, FieldTRClusters)
	case Topics:
		return append(base, FieldTopics)
	case EmbImages, EmbDocs:
		return append(base, FieldEmbeddings)
	case LingProc:
		return append(base, FieldSentences)
	case OCRQA:
		return append(base, FieldOCRQAScored)
	default:
		return base
	}
}

// Observe extracts the contribution of rec to the statistics of stage s
func (s DataStage) Observe(rec Record) Observation {
	obs := newObservation()
	obs.Counts[FieldContentItems] = 1

	id := RecordID(rec)
	if issue, ok := IssueID(id); ok {
		obs.Distinct[FieldIssues] = []string{issue}
	}

	switch s {
	case Rebuilt, EvenizedRebuilt, Passim:
		if ft, ok := rec["ft"].(string); ok {
			obs.Counts[FieldTokens] = len(strings.Fields(ft))
		}
	case Entities, NewsAgencies:
		nes, _ := rec["nes"].([]any)
		obs.Counts[FieldNEMentions] = len(nes)
		var ids []string
		for _, ne := range nes {
			m, ok := ne.(map[string]any)
			if !ok {
				continue
			}
			if wkd, ok := m["wkd_id"].(string); ok && wkd != "" && wkd != "NIL" {
				ids = append(ids, wkd)
			}
		}
		obs.Distinct[FieldNEEntities] = ids
	case LangIdent:
		if lg, ok := rec["lg"].(string); ok && lg != "" {
			obs.Counts[LangFieldPrefix+lg] = 1
		}
	case TextReuse:
		obs.Counts[FieldTRPassages] = 1
		if cluster := stringValue(rec["cluster_id"]); cluster != "" {
			obs.Distinct[FieldTRClusters] = []string{cluster}
		}
	case Topics:
		topics, _ := rec["topics"].([]any)
		obs.Counts[FieldTopics] = len(topics)
	case EmbImages, EmbDocs:
		if hasValue(rec["embedding"]) {
			obs.Counts[FieldEmbeddings] = 1
		}
	case LingProc:
		sents, _ := rec["sents"].([]any)
		obs.Counts[FieldSentences] = len(sents)
	case OCRQA:
		if _, ok := rec["ocrqa"].(float64); ok {
			obs.Counts[FieldOCRQAScored] = 1
		}
	}
	return obs
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return formatFloat(t)
	default:
		return ""
	}
}

func hasValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
