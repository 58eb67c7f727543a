package stats

import (
	"context"

	"github.com/impresso/impresso-essentials-go/internal/archive"
	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/stage"
)

// ComputeArchive scans one stored archive. When title is empty, each record
// is attributed to the title prefixing its id. Otherwise every record belongs
// to title, and records whose id names another title are skipped and counted
// in Partial.Mismatched. The year comes from the record id, falling back to
// the archive file name.
func ComputeArchive(ctx context.Context, store domain.ObjectStore, obj domain.ObjectInfo, st stage.DataStage, title string) (*Partial, error) {
	acc := NewAccumulator(st)
	keyYear, _ := stage.YearFromKey(obj.Key)
	mismatched := 0

	_, err := archive.ReadObject(ctx, store, obj, func(_ int, rec archive.Record) error {
		id := stage.RecordID(rec)
		recTitle := stage.TitleFromID(id)
		switch {
		case title == "":
		case recTitle != "" && recTitle != title:
			mismatched++
			recTitle = ""
		default:
			recTitle = title
		}
		year, ok := stage.YearFromID(id)
		if !ok {
			year = keyYear
		}
		acc.Add(recTitle, year, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	p := acc.Partial()
	p.Mismatched = mismatched
	return p, nil
}
