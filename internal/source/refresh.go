package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	appLog "tkbcal/internal/log"
	"tkbcal/internal/model"
	"tkbcal/internal/sheet"
	"tkbcal/internal/timetable"
)

var ErrNoSources = errors.New("source: no sources configured")

// Importer stores a freshly decoded timetable. *timetable.Service
// satisfies it.
type Importer interface {
	Import(ctx context.Context, fileName string, rows []model.RawRow) (timetable.Current, error)
}

// Refresher pulls every source, decodes it and imports the combined rows
// as the current timetable.
type Refresher struct {
	fetcher  *Fetcher
	sources  []Source
	importer Importer
	sheet    sheet.Options
}

func NewRefresher(f *Fetcher, sources []Source, importer Importer, opts sheet.Options) *Refresher {
	return &Refresher{fetcher: f, sources: sources, importer: importer, sheet: opts}
}

// Run performs one refresh. Sources that fail to fetch or decode are
// skipped; Run fails only when nothing could be imported.
func (r *Refresher) Run(ctx context.Context) error {
	if len(r.sources) == 0 {
		return ErrNoSources
	}

	results, errs := r.fetcher.FetchAll(ctx, r.sources)
	var rows []model.RawRow
	var names []string
	for _, res := range results {
		decoded, err := sheet.Decode(bytes.NewReader(res.Body), res.Source.FileName(), r.sheet)
		if err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", res.Source.ID, err))
			appLog.Error("source decode failed", err, "id", res.Source.ID)
			continue
		}
		rows = append(rows, decoded...)
		names = append(names, res.Source.FileName())
	}
	if len(rows) == 0 {
		return errors.Join(append(errs, errors.New("no rows fetched from any source"))...)
	}

	if _, err := r.importer.Import(ctx, strings.Join(names, ","), rows); err != nil {
		return err
	}
	appLog.Info("sources refreshed", "sources", len(names), "rows", len(rows), "failed", len(errs))
	return nil
}
