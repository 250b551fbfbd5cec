package cohort

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pankbase/functional/internal/platform/metrics"
)

// ErrNotLoaded is returned by readers before the first successful Load.
var ErrNotLoaded = errors.New("dataset not loaded")

// Loader reads the raw source tables for one snapshot.
type Loader interface {
	Load(ctx context.Context) (*Tables, error)
}

// Store publishes the current snapshot. Readers capture a snapshot once per
// request with View and keep using it even if a reload swaps in a newer one.
type Store struct {
	loader  Loader
	logger  zerolog.Logger
	current atomic.Pointer[Snapshot]

	mu      sync.Mutex // serializes Load and Reload
	version uint64
}

func NewStore(loader Loader, logger zerolog.Logger) *Store {
	return &Store{loader: loader, logger: logger.With().Str("component", "dataset").Logger()}
}

// Load reads and publishes the first snapshot.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	return s.Reload(ctx)
}

// Reload builds a new snapshot from the loader and swaps it in. When the
// build fails the previously published snapshot stays in place.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	snap, err := s.build(ctx)
	elapsed := time.Since(start)
	metrics.ObserveReload(err, elapsed)
	if err != nil {
		s.logger.Error().Err(err).Dur("elapsed", elapsed).Msg("dataset build failed, keeping previous snapshot")
		return nil, err
	}

	s.version++
	snap.Version = s.version
	s.current.Store(snap)

	st := snap.Stats()
	metrics.SetSnapshot(st.Version, st.Donors, st.Biosamples, st.TraitRecords, st.Series)
	s.logger.Info().
		Uint64("version", st.Version).
		Int("donors", st.Donors).
		Int("donors_with_traits", st.DonorsWithTraits).
		Int("biosamples", st.Biosamples).
		Int("traits", st.Traits).
		Int("timeseries", st.Series).
		Int("orphan_biosamples", st.Orphans.Biosamples).
		Int("orphan_traits", st.Orphans.Traits).
		Dur("elapsed", elapsed).
		Msg("dataset snapshot published")
	return snap, nil
}

func (s *Store) build(ctx context.Context) (*Snapshot, error) {
	tables, err := s.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Build(tables)
}

// View returns the published snapshot.
func (s *Store) View() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	return snap, nil
}

// Describe returns the filter metadata of the published snapshot.
func (s *Store) Describe() (Metadata, error) {
	snap, err := s.View()
	if err != nil {
		return Metadata{}, err
	}
	return snap.Describe(), nil
}
