package recommend

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"cinesage/models"
	"cinesage/services/gemini"
	"cinesage/services/jellyfin"
	"cinesage/services/jellyseerr"
	"cinesage/services/library"
	"cinesage/services/sessions"
)

var (
	ErrFetchInFlight  = errors.New("a recommendation fetch is already running for this session")
	ErrCooldownActive = errors.New("recommendation fetch requested too soon, wait for the cooldown")
)

// Library is the slice of the document store the orchestrator needs.
type Library interface {
	ExclusionSets(username string, remote []models.WatchedItem) (library.ExclusionSets, error)
	SetSyncMetadata(username string, totalWatched int, syncedAt time.Time) error
	NoteAvailable(username string, entry models.MediaEntry, notedAt time.Time) (bool, error)
}

// HistorySource provides the remote watch history.
type HistorySource interface {
	Configured() bool
	WatchedItems(ctx context.Context, session jellyfin.Session) ([]models.WatchedItem, error)
}

// Advisor produces recommendations from an exclusion list.
type Advisor interface {
	Configured() bool
	Recommend(ctx context.Context, req gemini.Request) ([]models.Recommendation, error)
}

// Catalog is the Jellyseerr surface used for enrichment, availability and
// request submission.
type Catalog interface {
	Configured() bool
	Search(ctx context.Context, query string) ([]jellyseerr.SearchResult, error)
	MediaDetails(ctx context.Context, mediaType string, id int64) (jellyseerr.MediaStatus, error)
	RequestMedia(ctx context.Context, mediaType string, id int64) error
}

// Options tune the recommendation flow.
type Options struct {
	Count           int
	Cooldown        time.Duration
	Workers         int
	Language        string
	MaxReasonLength int
}

type fetchState struct {
	fetching      bool
	lastCompleted time.Time
}

// Service orchestrates one recommendation fetch: exclusion sets from local
// and remote history, the AI call, parallel enrichment against the catalog,
// then availability reconciliation.
type Service struct {
	store   Library
	history HistorySource
	advisor Advisor
	catalog Catalog
	matcher jellyseerr.Matcher
	opts    Options

	mu     sync.Mutex
	states map[string]*fetchState

	now func() time.Time
}

func NewService(store Library, history HistorySource, advisor Advisor, catalog Catalog, opts Options) *Service {
	if opts.Count <= 0 {
		opts.Count = 5
	}
	if opts.Workers <= 0 {
		opts.Workers = 5
	}

	return &Service{
		store:   store,
		history: history,
		advisor: advisor,
		catalog: catalog,
		matcher: jellyseerr.HeuristicMatcher{},
		opts:    opts,
		states:  make(map[string]*fetchState),
		now:     time.Now,
	}
}

// SetMatcher swaps the search-result matching heuristic.
func (s *Service) SetMatcher(m jellyseerr.Matcher) {
	if m != nil {
		s.matcher = m
	}
}

// beginFetch gates the per-session state machine: one fetch in flight at a
// time, and a cooldown window since the last completed fetch. Both checks
// reject before any network traffic happens.
func (s *Service) beginFetch(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[token]
	if !ok {
		state = &fetchState{}
		s.states[token] = state
	}

	if state.fetching {
		return ErrFetchInFlight
	}
	if !state.lastCompleted.IsZero() && s.now().Sub(state.lastCompleted) < s.opts.Cooldown {
		return ErrCooldownActive
	}

	state.fetching = true
	return nil
}

func (s *Service) endFetch(token string, succeeded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[token]
	if !ok {
		return
	}
	state.fetching = false
	if succeeded {
		state.lastCompleted = s.now()
	}
}

// Fetch runs the whole recommendation flow for one session.
func (s *Service) Fetch(ctx context.Context, session sessions.Session, mediaType, genre string) ([]models.Recommendation, error) {
	if err := s.beginFetch(session.Token); err != nil {
		return nil, err
	}

	succeeded := false
	defer func() { s.endFetch(session.Token, succeeded) }()

	remote := s.syncRemoteHistory(ctx, session)

	sets, err := s.store.ExclusionSets(session.Username, remote)
	if err != nil {
		return nil, err
	}

	recs, err := s.advisor.Recommend(ctx, gemini.Request{
		MediaType:       mediaType,
		Genre:           genre,
		Count:           s.opts.Count,
		Language:        s.opts.Language,
		MaxReasonLength: s.opts.MaxReasonLength,
		Exclude:         sets.Union(),
	})
	if err != nil {
		return nil, err
	}

	s.enrich(ctx, recs)
	s.reconcileAvailability(ctx, session.Username, recs, sets.Watched)

	succeeded = true
	return recs, nil
}

// syncRemoteHistory fetches the Jellyfin watch history and persists the sync
// metadata. A remote failure degrades to an empty history and never aborts
// the recommendation flow.
func (s *Service) syncRemoteHistory(ctx context.Context, session sessions.Session) []models.WatchedItem {
	if !s.history.Configured() {
		return nil
	}

	remote, err := s.history.WatchedItems(ctx, session.Jellyfin)
	if err != nil {
		slog.Warn("jellyfin history fetch failed, continuing with local data only",
			"username", session.Username,
			"error", err,
		)
		return nil
	}

	if err := s.store.SetSyncMetadata(session.Username, len(remote), s.now()); err != nil {
		slog.Warn("failed to persist jellyfin sync metadata",
			"username", session.Username,
			"error", err,
		)
	}

	return remote
}

// enrich resolves each recommendation against the catalog search, one
// bounded worker per title. Results land on the originating Recommendation,
// so input order survives arbitrary completion order, and a failed lookup
// only leaves that item's id and type unset.
func (s *Service) enrich(ctx context.Context, recs []models.Recommendation) {
	if len(recs) == 0 || !s.catalog.Configured() {
		return
	}

	workers := pool.New().WithMaxGoroutines(s.opts.Workers)
	for i := range recs {
		rec := &recs[i]
		catalog, matcher := s.catalog, s.matcher
		workers.Go(func() {
			enrichOne(ctx, catalog, matcher, rec)
		})
	}
	workers.Wait()
}

// enrichOne is deliberately a free function taking everything it touches as
// parameters: workers run outside the request handler and must not reach
// into any shared session state.
func enrichOne(ctx context.Context, catalog Catalog, matcher jellyseerr.Matcher, rec *models.Recommendation) {
	lookupCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	results, err := catalog.Search(lookupCtx, rec.Title)
	if err != nil {
		slog.Warn("catalog lookup failed, leaving recommendation unresolved",
			"title", rec.Title,
			"error", err,
		)
		return
	}

	match := matcher.Match(results, rec.Title, rec.Year, rec.MediaType)
	if match == nil {
		return
	}

	id := match.ID
	rec.ExternalID = &id
	rec.MediaType = match.MediaType
}

// reconcileAvailability notes enriched titles that are already downloadable
// but unwatched. This runs best effort after every fetch; failures are
// logged and swallowed so they never disturb the displayed list.
func (s *Service) reconcileAvailability(ctx context.Context, username string, recs []models.Recommendation, watched map[string]struct{}) {
	if !s.catalog.Configured() {
		return
	}

	for i := range recs {
		rec := &recs[i]
		if rec.ExternalID == nil {
			continue
		}
		if _, ok := watched[rec.Title]; ok {
			continue
		}

		status, err := s.catalog.MediaDetails(ctx, rec.MediaType, *rec.ExternalID)
		if err != nil {
			slog.Warn("availability check failed", "title", rec.Title, "error", err)
			continue
		}
		if !status.Watchable() {
			continue
		}

		entry := models.MediaEntry{
			Title:      rec.Title,
			MediaType:  rec.MediaType,
			ExternalID: rec.ExternalID,
		}
		if _, err := s.store.NoteAvailable(username, entry, s.now()); err != nil {
			slog.Warn("failed to note available title", "title", rec.Title, "error", err)
		}
	}
}

// Request submits an enriched recommendation to the catalog's download queue.
func (s *Service) Request(ctx context.Context, rec models.Recommendation) error {
	if rec.ExternalID == nil {
		return errors.New("recommendation has no catalog id")
	}
	return s.catalog.RequestMedia(ctx, rec.MediaType, *rec.ExternalID)
}
