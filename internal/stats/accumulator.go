package stats

import (
	"sort"
	"sync"

	"github.com/impresso/impresso-essentials-go/internal/stage"
)

// YearPartial is the serializable, mergeable state of one title-year
type YearPartial struct {
	Counts   Counts              `json:"counts"`
	Distinct map[string][]string `json:"distinct,omitempty"`
}

// Partial is the serializable result of scanning one or more archives.
// Mismatched counts the skipped records whose id names another title.
type Partial struct {
	Stage      string                             `json:"stage"`
	Titles     map[string]map[string]*YearPartial `json:"titles"`
	Records    int                                `json:"records"`
	Skipped    int                                `json:"skipped"`
	Mismatched int                                `json:"mismatched,omitempty"`
}

type yearAcc struct {
	counts   Counts
	distinct map[string]map[string]struct{}
}

func newYearAcc() *yearAcc {
	return &yearAcc{
		counts:   make(Counts),
		distinct: make(map[string]map[string]struct{}),
	}
}

func (y *yearAcc) addDistinct(field string, values []string) {
	set, ok := y.distinct[field]
	if !ok {
		set = make(map[string]struct{})
		y.distinct[field] = set
	}
	for _, v := range values {
		set[v] = struct{}{}
	}
}

// Accumulator folds records into per-title and per-year statistics.
// It is safe for concurrent use.
type Accumulator struct {
	stage   stage.DataStage
	mu      sync.Mutex
	titles  map[string]map[string]*yearAcc
	records int
	skipped int
}

// NewAccumulator creates an accumulator for the given stage
func NewAccumulator(st stage.DataStage) *Accumulator {
	return &Accumulator{
		stage:  st,
		titles: make(map[string]map[string]*yearAcc),
	}
}

func (a *Accumulator) year(title, year string) *yearAcc {
	years, ok := a.titles[title]
	if !ok {
		years = make(map[string]*yearAcc)
		a.titles[title] = years
	}
	acc, ok := years[year]
	if !ok {
		acc = newYearAcc()
		years[year] = acc
	}
	return acc
}

// Add folds one record into the statistics of title and year. Records
// without a title or year are counted as skipped.
func (a *Accumulator) Add(title, year string, rec stage.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if title == "" || year == "" {
		a.skipped++
		return
	}
	a.records++
	obs := a.stage.Observe(rec)
	acc := a.year(title, year)
	acc.counts.Add(obs.Counts)
	for field, values := range obs.Distinct {
		acc.addDistinct(field, values)
	}
}

// Merge folds a partial result into the accumulator
func (a *Accumulator) Merge(p *Partial) {
	if p == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.records += p.Records
	a.skipped += p.Skipped
	for title, years := range p.Titles {
		for year, yp := range years {
			acc := a.year(title, year)
			acc.counts.Add(yp.Counts)
			for field, values := range yp.Distinct {
				acc.addDistinct(field, values)
			}
		}
	}
}

// Partial exports the current state in mergeable form
func (a *Accumulator) Partial() *Partial {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := &Partial{
		Stage:   a.stage.String(),
		Titles:  make(map[string]map[string]*YearPartial, len(a.titles)),
		Records: a.records,
		Skipped: a.skipped,
	}
	for title, years := range a.titles {
		out := make(map[string]*YearPartial, len(years))
		for year, acc := range years {
			yp := &YearPartial{Counts: acc.counts.Clone()}
			if len(acc.distinct) > 0 {
				yp.Distinct = make(map[string][]string, len(acc.distinct))
				for field, set := range acc.distinct {
					values := make([]string, 0, len(set))
					for v := range set {
						values = append(values, v)
					}
					sort.Strings(values)
					yp.Distinct[field] = values
				}
			}
			out[year] = yp
		}
		p.Titles[title] = out
	}
	return p
}

// Records returns the number of records folded so far
func (a *Accumulator) Records() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.records
}

// Skipped returns the number of records that could not be attributed
func (a *Accumulator) Skipped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.skipped
}

// Result finalizes the statistics. Every stage field is present in every
// year, distinct sets are replaced by their size.
func (a *Accumulator) Result() map[string]*TitleStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	fields := a.stage.Fields()
	out := make(map[string]*TitleStats, len(a.titles))
	for title, years := range a.titles {
		ts := NewTitleStats(title)
		for year, acc := range years {
			c := make(Counts, len(fields)+len(acc.counts))
			for _, f := range fields {
				c[f] = 0
			}
			c.Add(acc.counts)
			for field, set := range acc.distinct {
				c[field] = len(set)
			}
			ts.Years[year] = c
		}
		out[title] = ts
	}
	return out
}
