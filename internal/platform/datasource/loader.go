package datasource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pankbase/functional/internal/domain/cohort"
)

// Loader reads the dataset named by a manifest. The manifest is re-read on
// every Load so edits to it take effect on the next reload.
type Loader struct {
	manifestPath string
	dataDir      string
	logger       zerolog.Logger
}

// NewLoader returns a loader for the manifest at manifestPath. With an empty
// path the standard layout under dataDir is used.
func NewLoader(manifestPath, dataDir string, logger zerolog.Logger) *Loader {
	return &Loader{
		manifestPath: manifestPath,
		dataDir:      dataDir,
		logger:       logger.With().Str("component", "loader").Logger(),
	}
}

// Manifest returns the current manifest.
func (l *Loader) Manifest() (*Manifest, error) {
	if l.manifestPath == "" {
		return DefaultManifest(l.dataDir), nil
	}
	return LoadManifest(l.manifestPath, l.dataDir)
}

// ManifestPath returns the manifest file, or "" for the default layout.
func (l *Loader) ManifestPath() string { return l.manifestPath }

// WatchTargets lists the files whose change should trigger a reload: every
// data file plus the manifest itself.
func (l *Loader) WatchTargets() ([]string, error) {
	m, err := l.Manifest()
	if err != nil {
		return nil, err
	}
	files := m.Files()
	if l.manifestPath != "" {
		files = append(files, l.manifestPath)
	}
	return files, nil
}

// Load reads every table concurrently. Donor and trait tables are required;
// a missing biosample or time-series file is logged and skipped.
func (l *Loader) Load(ctx context.Context) (*cohort.Tables, error) {
	m, err := l.Manifest()
	if err != nil {
		return nil, err
	}
	start := time.Now()

	out := &cohort.Tables{}
	series := make([]*cohort.SeriesTable, len(m.TimeSeries))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := ReadTable(gctx, m.Donors)
		if err != nil {
			return fmt.Errorf("donors: %w", err)
		}
		out.Donors = t
		return nil
	})
	g.Go(func() error {
		t, err := ReadTable(gctx, m.Traits)
		if err != nil {
			return fmt.Errorf("traits: %w", err)
		}
		out.Traits = t
		return nil
	})
	if m.Biosamples.Path != "" {
		g.Go(func() error {
			t, err := l.readOptional(gctx, m.Biosamples)
			if err != nil {
				return fmt.Errorf("biosamples: %w", err)
			}
			out.Biosamples = t
			return nil
		})
	}
	for i, s := range m.TimeSeries {
		g.Go(func() error {
			t, err := l.readOptional(gctx, s.File())
			if err != nil {
				return fmt.Errorf("timeseries %s: %w", s.Key, err)
			}
			if t.Header == nil {
				return nil
			}
			series[i] = &cohort.SeriesTable{Key: s.Key, Label: s.Label, Unit: s.Unit, Table: t}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, s := range series {
		if s != nil {
			out.Series = append(out.Series, *s)
		}
	}
	l.logger.Debug().
		Int("donor_rows", len(out.Donors.Rows)).
		Int("biosample_rows", len(out.Biosamples.Rows)).
		Int("trait_rows", len(out.Traits.Rows)).
		Int("series", len(out.Series)).
		Dur("elapsed", time.Since(start)).
		Msg("dataset files read")
	return out, nil
}

func (l *Loader) readOptional(ctx context.Context, spec FileSpec) (cohort.Table, error) {
	t, err := ReadTable(ctx, spec)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn().Str("path", spec.Path).Msg("optional data file not found, skipping")
		return cohort.Table{}, nil
	}
	return t, err
}
