package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/markdave123-py/libassist/internal/core"
	"github.com/markdave123-py/libassist/internal/logger"
	"github.com/markdave123-py/libassist/internal/models"
)

type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateParsing   State = "parsing"
	StateUpserting State = "upserting"
	StateFailed    State = "failed"
)

type SyncResult struct {
	Synced int      `json:"synced"`
	Errors []string `json:"errors"`
}

// Status is a snapshot for the admin endpoint. LastFailed is set when the
// last finished run could not fetch the page.
type Status struct {
	State      State       `json:"state"`
	Running    int         `json:"running"`
	LastRunAt  *time.Time  `json:"lastRunAt,omitempty"`
	LastFailed bool        `json:"lastFailed"`
	LastResult *SyncResult `json:"lastResult,omitempty"`
}

// Syncer copies classified links from the catalog page into the resource
// table. Runs may overlap; each entry is checked by URL right before insert.
type Syncer struct {
	store   core.ResourceStore
	fetcher Fetcher
	url     string
	log     logger.Logger
	now     func() time.Time

	mu     sync.Mutex
	status Status
}

func NewSyncer(store core.ResourceStore, fetcher Fetcher, catalogURL string, log logger.Logger) *Syncer {
	return &Syncer{
		store:   store,
		fetcher: fetcher,
		url:     catalogURL,
		log:     log.With("component", "catalog_sync"),
		now:     time.Now,
		status:  Status{State: StateIdle},
	}
}

// RunSync performs one Fetching → Parsing → Upserting pass. A fetch failure
// yields a single error and zero synced resources.
func (s *Syncer) RunSync(ctx context.Context) SyncResult {
	s.begin()

	s.setState(StateFetching)
	page, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		s.setState(StateFailed)
		s.log.Error("catalog fetch failed", "url", s.url, "error", err)
		res := SyncResult{Errors: []string{err.Error()}}
		s.finish(res, true)
		return res
	}

	s.setState(StateParsing)
	entries := ParseResources(page)

	s.setState(StateUpserting)
	res := SyncResult{Errors: []string{}}
	for _, e := range entries {
		inserted, err := s.upsert(ctx, e)
		switch {
		case err != nil:
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to sync %q: %v", e.Name, err))
		case inserted:
			res.Synced++
		}
	}

	s.log.Info("catalog sync finished", "found", len(entries), "synced", res.Synced, "errors", len(res.Errors))
	s.finish(res, false)
	return res
}

func (s *Syncer) upsert(ctx context.Context, e Entry) (bool, error) {
	_, err := s.store.GetResourceByURL(ctx, e.URL)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return false, err
	}
	r := &models.LibraryResource{
		NameEn: e.Name,
		NameUk: e.Name,
		NameRu: e.Name,
		Type:   e.Type,
		URL:    e.URL,
	}
	if err := s.store.CreateResource(ctx, r); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	if st.LastResult != nil {
		r := *st.LastResult
		r.Errors = append([]string(nil), r.Errors...)
		st.LastResult = &r
	}
	return st
}

func (s *Syncer) begin() {
	s.mu.Lock()
	s.status.Running++
	s.mu.Unlock()
}

func (s *Syncer) setState(st State) {
	s.mu.Lock()
	s.status.State = st
	s.mu.Unlock()
}

func (s *Syncer) finish(res SyncResult, failed bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running--
	s.status.LastRunAt = &now
	s.status.LastFailed = failed
	s.status.LastResult = &res
	if s.status.Running == 0 {
		s.status.State = StateIdle
	}
}
