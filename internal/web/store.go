package web

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"shopcal/internal/clock"
	"shopcal/internal/config"
	"shopcal/internal/ics"
	appLog "shopcal/internal/log"
	"shopcal/internal/model"
)

// Store keeps the expanded job list that every view reads from. Refresh
// replaces it wholesale; readers never see a partial update. Parsed jobs are
// kept per feed so a feed that fails keeps serving its last good copy.
type Store struct {
	fetcher  *ics.Fetcher
	sources  []ics.Source
	loc      *time.Location
	clock    clock.Source
	backfill int
	horizon  int

	refreshMu sync.Mutex
	lastJobs  map[string][]ics.ParsedJob // by source ID, guarded by refreshMu

	mu        sync.RWMutex
	events    []model.Event
	truncated []string
	updatedAt time.Time
}

// NewStore builds a Store for cfg's feeds. Times are read in loc.
func NewStore(cfg *config.Config, loc *time.Location, src clock.Source) *Store {
	return &Store{
		fetcher:  ics.NewFetcher(cfg.CacheDir),
		sources:  buildSources(cfg.Feeds, loc),
		loc:      loc,
		clock:    src,
		backfill: cfg.BackfillDays,
		horizon:  cfg.HorizonDays,
		lastJobs: make(map[string][]ics.ParsedJob),
	}
}

// buildSources skips feeds with nothing to read. IDs are made unique since
// the store keys each feed's jobs by ID.
func buildSources(feeds []config.FeedConfig, loc *time.Location) []ics.Source {
	sources := make([]ics.Source, 0, len(feeds))
	seen := make(map[string]int, len(feeds))
	for _, f := range feeds {
		if f.URL == "" && f.Path == "" {
			continue
		}
		id := f.ID
		if id == "" {
			switch {
			case f.Name != "":
				id = f.Name
			case f.URL != "":
				id = f.URL
			default:
				id = f.Path
			}
		}
		if n := seen[id]; n > 0 {
			seen[id] = n + 1
			id = fmt.Sprintf("%s#%d", id, n+1)
		} else {
			seen[id] = 1
		}
		sources = append(sources, ics.Source{ID: id, URL: f.URL, Path: f.Path, Location: loc})
	}
	return sources
}

// Refresh fetches, parses and expands every feed over
// [now - backfill, now + horizon]. A feed that fails to fetch or parse keeps
// the jobs from its last successful refresh; the returned error joins the
// failures. Concurrent calls are serialized.
func (s *Store) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	now := s.clock.Now().In(s.loc)
	rangeStart := now.AddDate(0, 0, -s.backfill)
	rangeEnd := now.AddDate(0, 0, s.horizon)

	results, fetchErrs := s.fetcher.FetchAll(ctx, s.sources)
	errs := append([]error(nil), fetchErrs...)

	fresh := make(map[string]bool, len(results))
	for _, res := range results {
		parsed, err := ics.ParseFeed(res.Source, res.Body)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", res.Source.ID, err))
			continue
		}
		s.lastJobs[res.Source.ID] = parsed
		fresh[res.Source.ID] = true
	}

	jobs := make([]ics.ParsedJob, 0)
	for _, src := range s.sources {
		parsed, ok := s.lastJobs[src.ID]
		if !ok {
			continue
		}
		if !fresh[src.ID] {
			appLog.Warn("feed failed; keeping last good jobs", "id", src.ID, "jobs", len(parsed))
		}
		jobs = append(jobs, parsed...)
	}

	expanded, err := ics.Expand(jobs, ics.ExpandConfig{
		DisplayLocation: s.loc,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.events = expanded.Events
	s.truncated = expanded.TruncatedEvents
	s.updatedAt = now
	s.mu.Unlock()

	appLog.Info("store refreshed",
		"feeds", len(s.sources),
		"events", len(expanded.Events),
		"truncated", len(expanded.TruncatedEvents),
		"errors", len(errs),
	)
	return errors.Join(errs...)
}

// Snapshot returns a copy of the current events.
func (s *Store) Snapshot() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

// Status reports when the store was last refreshed and which jobs hit the
// recurrence cap.
func (s *Store) Status() (updatedAt time.Time, truncated []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt, slices.Clone(s.truncated)
}
