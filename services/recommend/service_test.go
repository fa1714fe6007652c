package recommend

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"cinesage/models"
	"cinesage/services/gemini"
	"cinesage/services/jellyfin"
	"cinesage/services/jellyseerr"
	"cinesage/services/library"
	"cinesage/services/sessions"
)

type fakeHistory struct {
	items []models.WatchedItem
	err   error
}

func (f *fakeHistory) Configured() bool { return true }
func (f *fakeHistory) WatchedItems(ctx context.Context, _ jellyfin.Session) ([]models.WatchedItem, error) {
	return f.items, f.err
}

type fakeAdvisor struct {
	recs    []models.Recommendation
	err     error
	block   chan struct{}
	lastReq gemini.Request
	mu      sync.Mutex
}

func (f *fakeAdvisor) Configured() bool { return true }
func (f *fakeAdvisor) Recommend(ctx context.Context, req gemini.Request) ([]models.Recommendation, error) {
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Recommendation, len(f.recs))
	copy(out, f.recs)
	return out, f.err
}

// fakeCatalog resolves titles to deterministic ids, optionally after a
// random delay, and can fail individual titles.
type fakeCatalog struct {
	mu        sync.Mutex
	ids       map[string]int64
	failures  map[string]bool
	statuses  map[int64]jellyseerr.MediaStatus
	maxDelay  time.Duration
	requested []int64
}

func (f *fakeCatalog) Configured() bool { return true }

func (f *fakeCatalog) Search(ctx context.Context, query string) ([]jellyseerr.SearchResult, error) {
	if f.maxDelay > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(f.maxDelay))))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures[query] {
		return nil, errors.New("search exploded")
	}
	id, ok := f.ids[query]
	if !ok {
		return nil, nil
	}
	return []jellyseerr.SearchResult{{ID: id, MediaType: "movie", Title: query}}, nil
}

func (f *fakeCatalog) MediaDetails(ctx context.Context, mediaType string, id int64) (jellyseerr.MediaStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status, ok := f.statuses[id]; ok {
		return status, nil
	}
	return jellyseerr.StatusUnknown, nil
}

func (f *fakeCatalog) RequestMedia(ctx context.Context, mediaType string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, id)
	return nil
}

func newTestLibrary(t *testing.T) *library.Store {
	t.Helper()
	store, err := library.NewStore(afero.NewMemMapFs(), "data")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func testSession(token string) sessions.Session {
	return sessions.Session{Token: token, Username: "erkki", Jellyfin: jellyfin.Session{UserID: "u1"}}
}

func TestEnrichmentPreservesInputOrder(t *testing.T) {
	for _, n := range []int{0, 1, 5, 20} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			catalog := &fakeCatalog{
				ids:      map[string]int64{},
				maxDelay: 20 * time.Millisecond,
			}

			recs := make([]models.Recommendation, 0, n)
			for i := 0; i < n; i++ {
				title := fmt.Sprintf("Title %02d", i)
				catalog.ids[title] = int64(1000 + i)
				recs = append(recs, models.Recommendation{Title: title, Year: 2000 + i})
			}

			svc := NewService(newTestLibrary(t), &fakeHistory{}, &fakeAdvisor{}, catalog, Options{Workers: 5})
			svc.enrich(context.Background(), recs)

			for i, rec := range recs {
				wantTitle := fmt.Sprintf("Title %02d", i)
				if rec.Title != wantTitle {
					t.Fatalf("order broken at %d: got %q, want %q", i, rec.Title, wantTitle)
				}
				if rec.ExternalID == nil || *rec.ExternalID != int64(1000+i) {
					t.Fatalf("item %d resolved to wrong id: %+v", i, rec)
				}
			}
		})
	}
}

func TestEnrichmentIsolatesSingleFailure(t *testing.T) {
	catalog := &fakeCatalog{
		ids: map[string]int64{
			"Alpha": 1, "Bravo": 2, "Charlie": 3, "Delta": 4, "Echo": 5,
		},
		failures: map[string]bool{"Charlie": true},
	}

	recs := []models.Recommendation{
		{Title: "Alpha"}, {Title: "Bravo"}, {Title: "Charlie"}, {Title: "Delta"}, {Title: "Echo"},
	}

	svc := NewService(newTestLibrary(t), &fakeHistory{}, &fakeAdvisor{}, catalog, Options{Workers: 5})
	svc.enrich(context.Background(), recs)

	for i, rec := range recs {
		if rec.Title == "Charlie" {
			if rec.ExternalID != nil || rec.MediaType != "" {
				t.Fatalf("failed item must stay unresolved, got %+v", rec)
			}
			continue
		}
		if rec.ExternalID == nil {
			t.Fatalf("item %d (%s) should have been enriched", i, rec.Title)
		}
	}
}

func TestFetchRejectsWhileInFlight(t *testing.T) {
	advisor := &fakeAdvisor{block: make(chan struct{})}
	svc := NewService(newTestLibrary(t), &fakeHistory{}, advisor, &fakeCatalog{ids: map[string]int64{}}, Options{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Fetch(context.Background(), testSession("tok"), models.MediaTypeMovie, "")
	}()

	// Wait until the first fetch is parked inside the advisor.
	deadline := time.After(2 * time.Second)
	for {
		advisor.mu.Lock()
		started := advisor.lastReq.Count != 0
		advisor.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first fetch never reached the advisor")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := svc.Fetch(context.Background(), testSession("tok"), models.MediaTypeMovie, ""); !errors.Is(err, ErrFetchInFlight) {
		t.Fatalf("expected ErrFetchInFlight, got %v", err)
	}

	close(advisor.block)
	<-done
}

func TestFetchEnforcesCooldown(t *testing.T) {
	advisor := &fakeAdvisor{recs: []models.Recommendation{{Title: "Alpha", Year: 2020}}}
	catalog := &fakeCatalog{ids: map[string]int64{"Alpha": 1}}
	svc := NewService(newTestLibrary(t), &fakeHistory{}, advisor, catalog, Options{Cooldown: 30 * time.Second})

	current := time.Unix(1_750_000_000, 0)
	svc.now = func() time.Time { return current }

	if _, err := svc.Fetch(context.Background(), testSession("tok"), models.MediaTypeMovie, ""); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	current = current.Add(10 * time.Second)
	if _, err := svc.Fetch(context.Background(), testSession("tok"), models.MediaTypeMovie, ""); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected ErrCooldownActive, got %v", err)
	}

	// A different session is not throttled by this one's cooldown.
	if _, err := svc.Fetch(context.Background(), testSession("other"), models.MediaTypeMovie, ""); err != nil {
		t.Fatalf("other session fetch: %v", err)
	}

	current = current.Add(25 * time.Second)
	if _, err := svc.Fetch(context.Background(), testSession("tok"), models.MediaTypeMovie, ""); err != nil {
		t.Fatalf("fetch after cooldown: %v", err)
	}
}

func TestFetchDegradesWhenRemoteHistoryFails(t *testing.T) {
	store := newTestLibrary(t)
	if _, err := store.MarkWatched("erkki", models.MediaEntry{Title: "Arrival", MediaType: models.MediaTypeMovie}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	advisor := &fakeAdvisor{recs: []models.Recommendation{{Title: "Alpha", Year: 2020}}}
	svc := NewService(store, &fakeHistory{err: errors.New("jellyfin down")}, advisor, &fakeCatalog{ids: map[string]int64{"Alpha": 1}}, Options{})

	recs, err := svc.Fetch(context.Background(), testSession("tok"), models.MediaTypeMovie, "")
	if err != nil {
		t.Fatalf("fetch must survive a remote history failure: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}

	advisor.mu.Lock()
	defer advisor.mu.Unlock()
	found := false
	for _, title := range advisor.lastReq.Exclude {
		if title == "Arrival" {
			found = true
		}
	}
	if !found {
		t.Fatal("local watched title missing from exclusions when remote fetch failed")
	}
}

// Full flow: remote history plus a manual watch feed the exclusion sets, one
// enrichment fails, two of the resolved titles are available and land in
// available_but_unwatched.
func TestFetchFullScenario(t *testing.T) {
	store := newTestLibrary(t)
	if _, err := store.MarkWatched("erkki", models.MediaEntry{Title: "Arrival", MediaType: models.MediaTypeMovie}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	history := &fakeHistory{items: []models.WatchedItem{{Title: "The Matrix", MediaType: models.MediaTypeMovie}}}
	advisor := &fakeAdvisor{recs: []models.Recommendation{
		{Title: "Alpha", Year: 2020},
		{Title: "Bravo", Year: 2021},
		{Title: "Charlie", Year: 2019},
		{Title: "Delta", Year: 2022},
		{Title: "Echo", Year: 2018},
	}}
	catalog := &fakeCatalog{
		ids:      map[string]int64{"Alpha": 1, "Bravo": 2, "Delta": 4, "Echo": 5},
		failures: map[string]bool{"Charlie": true},
		statuses: map[int64]jellyseerr.MediaStatus{
			1: jellyseerr.StatusAvailable,
			2: jellyseerr.StatusPending,
			4: jellyseerr.StatusAvailable,
		},
	}

	svc := NewService(store, history, advisor, catalog, Options{Count: 5})

	recs, err := svc.Fetch(context.Background(), testSession("tok"), models.MediaTypeMovie, "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("expected all 5 recommendations displayed, got %d", len(recs))
	}

	unresolved := 0
	for _, rec := range recs {
		if rec.ExternalID == nil {
			unresolved++
		}
	}
	if unresolved != 1 {
		t.Fatalf("expected exactly 1 unresolved item, got %d", unresolved)
	}

	advisor.mu.Lock()
	excluded := advisor.lastReq.Exclude
	advisor.mu.Unlock()
	wantExcluded := map[string]bool{"The Matrix": false, "Arrival": false}
	for _, title := range excluded {
		if _, ok := wantExcluded[title]; ok {
			wantExcluded[title] = true
		}
	}
	for title, seen := range wantExcluded {
		if !seen {
			t.Fatalf("expected %q in the exclusion list, got %v", title, excluded)
		}
	}

	record, ok := store.User("erkki")
	if !ok {
		t.Fatal("expected user record after fetch")
	}
	if len(record.AvailableButUnwatched) != 2 {
		t.Fatalf("expected 2 available-but-unwatched entries, got %d", len(record.AvailableButUnwatched))
	}
	for _, entry := range record.AvailableButUnwatched {
		if entry.Title != "Alpha" && entry.Title != "Delta" {
			t.Fatalf("unexpected available title %q", entry.Title)
		}
		if entry.NotedAt.IsZero() {
			t.Fatal("available entry missing noted_at timestamp")
		}
	}
	if record.JellyfinSyncedAt == nil || record.JellyfinTotalWatched != 1 {
		t.Fatalf("sync metadata not written: %+v", record)
	}

	// Running the same fetch again must not duplicate the noted titles.
	svc.states["tok"].lastCompleted = time.Time{}
	if _, err := svc.Fetch(context.Background(), testSession("tok"), models.MediaTypeMovie, ""); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	record, _ = store.User("erkki")
	if len(record.AvailableButUnwatched) != 2 {
		t.Fatalf("reconciler must be idempotent, got %d entries", len(record.AvailableButUnwatched))
	}
}

func TestRequestNeedsResolvedID(t *testing.T) {
	catalog := &fakeCatalog{ids: map[string]int64{}}
	svc := NewService(newTestLibrary(t), &fakeHistory{}, &fakeAdvisor{}, catalog, Options{})

	if err := svc.Request(context.Background(), models.Recommendation{Title: "Alpha"}); err == nil {
		t.Fatal("expected error for unresolved recommendation")
	}

	id := int64(42)
	if err := svc.Request(context.Background(), models.Recommendation{Title: "Alpha", MediaType: "movie", ExternalID: &id}); err != nil {
		t.Fatalf("request: %v", err)
	}
	if len(catalog.requested) != 1 || catalog.requested[0] != 42 {
		t.Fatalf("expected request for id 42, got %v", catalog.requested)
	}
}
