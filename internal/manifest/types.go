package manifest

import (
	"time"

	"github.com/impresso/impresso-essentials-go/internal/stats"
)

// DateLayout is the layout of every date written in a manifest
const DateLayout = "2006-01-02 15:04:05"

// UpdateType tells how the data of an entry was last produced
type UpdateType string

const (
	UpdateCreation      UpdateType = "creation"
	UpdatePatch         UpdateType = "patch"
	UpdateFullRecompute UpdateType = "full-recompute"
	UpdateNone          UpdateType = "none"
)

// UpdateLevel tells which scope of a title was touched by the last update
type UpdateLevel string

const (
	LevelTitle UpdateLevel = "title"
	LevelYear  UpdateLevel = "year"
	LevelNone  UpdateLevel = "none"
)

// Granularity of a statistics entry
const (
	GranularityTitle = "title"
	GranularityYear  = "year"
)

// Manifest is the versioned summary of a data stage
type Manifest struct {
	Version           string       `json:"mft_version"`
	PreviousVersion   string       `json:"previous_mft_version,omitempty"`
	DataStage         string       `json:"data_stage"`
	GenerationDate    string       `json:"generation_date"`
	ComputationID     string       `json:"computation_id"`
	InputBucket       string       `json:"input_bucket,omitempty"`
	OutputBucket      string       `json:"output_bucket"`
	CodeGitCommit     string       `json:"code_git_commit"`
	ModelID           string       `json:"model_id,omitempty"`
	RunID             string       `json:"run_id,omitempty"`
	IsPatch           bool         `json:"is_patch"`
	PatchedFields     []string     `json:"patched_fields,omitempty"`
	OnlyCounting      bool         `json:"only_counting"`
	MediaList         []TitleEntry `json:"media_list"`
	OverallStatistics stats.Counts `json:"overall_statistics"`
	Notes             string       `json:"notes"`
}

// TitleEntry describes one media title of the partition
type TitleEntry struct {
	Title                string       `json:"media_title"`
	LastModificationDate string       `json:"last_modification_date"`
	UpdateType           UpdateType   `json:"update_type"`
	UpdateLevel          UpdateLevel  `json:"update_level"`
	UpdatedYears         []string     `json:"updated_years"`
	UpdatedFields        []string     `json:"updated_fields"`
	CodeGitCommit        string       `json:"code_git_commit"`
	Removed              bool         `json:"removed,omitempty"`
	Statistics           []YearEntry  `json:"media_statistics"`
	Totals               stats.Counts `json:"title_statistics"`
}

// YearEntry describes one year of a media title
type YearEntry struct {
	Granularity          string       `json:"granularity"`
	Element              string       `json:"element"`
	Year                 string       `json:"year"`
	LastModificationDate string       `json:"last_modification_date"`
	UpdateType           UpdateType   `json:"update_type"`
	UpdatedFields        []string     `json:"updated_fields"`
	CodeGitCommit        string       `json:"code_git_commit"`
	Stats                stats.Counts `json:"media_stats"`
}

// ParsedVersion returns the semantic version of the manifest
func (m *Manifest) ParsedVersion() (Version, error) {
	return ParseVersion(m.Version)
}

// FileName returns the name the manifest is published under
func (m *Manifest) FileName() (string, error) {
	v, err := m.ParsedVersion()
	if err != nil {
		return "", err
	}
	return FileName(m.DataStage, v), nil
}

// Title returns the entry of title, or nil
func (m *Manifest) Title(title string) *TitleEntry {
	if m == nil {
		return nil
	}
	for i := range m.MediaList {
		if m.MediaList[i].Title == title {
			return &m.MediaList[i]
		}
	}
	return nil
}

// Titles returns the titles listed in the manifest, in order
func (m *Manifest) Titles() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.MediaList))
	for _, e := range m.MediaList {
		out = append(out, e.Title)
	}
	return out
}

// YearCounts returns the statistics of the entry per year
func (e *TitleEntry) YearCounts() map[string]stats.Counts {
	out := make(map[string]stats.Counts, len(e.Statistics))
	for _, y := range e.Statistics {
		out[y.Year] = y.Stats
	}
	return out
}

// Year returns the entry of year, or nil
func (e *TitleEntry) Year(year string) *YearEntry {
	for i := range e.Statistics {
		if e.Statistics[i].Year == year {
			return &e.Statistics[i]
		}
	}
	return nil
}

// ModifiedAt parses the last modification date of the entry
func (e *TitleEntry) ModifiedAt() (time.Time, error) {
	return time.Parse(DateLayout, e.LastModificationDate)
}

// clone returns a deep copy of the entry
func (e TitleEntry) clone() TitleEntry {
	out := e
	out.UpdatedYears = cloneStrings(e.UpdatedYears)
	out.UpdatedFields = cloneStrings(e.UpdatedFields)
	out.Totals = e.Totals.Clone()
	out.Statistics = make([]YearEntry, len(e.Statistics))
	for i, y := range e.Statistics {
		y.UpdatedFields = cloneStrings(y.UpdatedFields)
		y.Stats = y.Stats.Clone()
		out.Statistics[i] = y
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}
