package stage

import (
	"path"
	"strconv"
	"strings"
)

// RecordID returns the content item id of a record: ci_id, else id
func RecordID(rec Record) string {
	for _, k := range []string{"ci_id", "id"} {
		if v, ok := rec[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// TitleFromID returns the media title of an impresso id (its first dash part)
func TitleFromID(id string) string {
	title, _, found := strings.Cut(id, "-")
	if !found {
		return ""
	}
	return title
}

// YearFromID returns the year of an impresso id such as
// "DLE-1910-01-03-a-i0001", i.e. its second dash part.
func YearFromID(id string) (string, bool) {
	parts := strings.Split(id, "-")
	if len(parts) < 2 {
		return "", false
	}
	return validYear(parts[1])
}

// IssueID returns the issue part of a content item id: its first five dash
// parts (title, year, month, day, edition).
func IssueID(id string) (string, bool) {
	parts := strings.Split(id, "-")
	if len(parts) < 5 {
		return "", false
	}
	return strings.Join(parts[:5], "-"), true
}

// YearFromKey extracts the year from an archive file name such as
// "DLE-1910.jsonl.bz2" or "DLE-1910-01.jsonl.bz2".
func YearFromKey(key string) (string, bool) {
	name := path.Base(key)
	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	parts := strings.Split(name, "-")
	for i := len(parts) - 1; i >= 1; i-- {
		if y, ok := validYear(parts[i]); ok {
			return y, true
		}
	}
	return "", false
}

func validYear(s string) (string, bool) {
	if len(s) != 4 {
		return "", false
	}
	if _, err := strconv.Atoi(s); err != nil {
		return "", false
	}
	return s, true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
