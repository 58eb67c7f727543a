// Package stats aggregates per-title and per-year statistics over the
// records of a data stage.
package stats

import (
	"sort"
)

// Counts maps a statistic name to its value
type Counts map[string]int

// Clone returns a copy of c
func (c Counts) Clone() Counts {
	if c == nil {
		return nil
	}
	out := make(Counts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Fields returns the sorted statistic names of c
func (c Counts) Fields() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether c and o hold the same fields with the same values
func (c Counts) Equal(o Counts) bool {
	if len(c) != len(o) {
		return false
	}
	for k, v := range c {
		ov, ok := o[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Add sums o into c
func (c Counts) Add(o Counts) {
	for k, v := range o {
		c[k] += v
	}
}

// TitleStats holds the statistics of one media title per year
type TitleStats struct {
	Title string
	Years map[string]Counts
}

// NewTitleStats creates empty statistics for title
func NewTitleStats(title string) *TitleStats {
	return &TitleStats{Title: title, Years: make(map[string]Counts)}
}

// YearList returns the sorted years of the title
func (t *TitleStats) YearList() []string {
	out := make([]string, 0, len(t.Years))
	for y := range t.Years {
		out = append(out, y)
	}
	sort.Strings(out)
	return out
}

// Fields returns the sorted union of the statistic names over all years
func (t *TitleStats) Fields() []string {
	set := make(map[string]struct{})
	for _, c := range t.Years {
		for k := range c {
			set[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Total sums the counts of every year
func (t *TitleStats) Total() Counts {
	out := make(Counts)
	for _, c := range t.Years {
		out.Add(c)
	}
	return out
}

// Equal reports whether both titles have exactly the same years, fields
// and counts.
func (t *TitleStats) Equal(o *TitleStats) bool {
	if t == nil || o == nil {
		return t == o
	}
	return YearsEqual(t.Years, o.Years)
}

// YearsEqual compares two per-year count maps exactly
func YearsEqual(a, b map[string]Counts) bool {
	if len(a) != len(b) {
		return false
	}
	for y, c := range a {
		oc, ok := b[y]
		if !ok || !c.Equal(oc) {
			return false
		}
	}
	return true
}

// ChangedYears returns the sorted years whose counts differ between prev and
// cur, including years present in only one of them.
func ChangedYears(prev, cur map[string]Counts) []string {
	var out []string
	for y, c := range cur {
		if pc, ok := prev[y]; !ok || !pc.Equal(c) {
			out = append(out, y)
		}
	}
	for y := range prev {
		if _, ok := cur[y]; !ok {
			out = append(out, y)
		}
	}
	sort.Strings(out)
	return out
}
