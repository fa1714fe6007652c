package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"

	"cinesage/handlers"
	"cinesage/models"
	"cinesage/services/library"
	"cinesage/services/sessions"
)

func newLibraryStore(t *testing.T) *library.Store {
	t.Helper()
	store, err := library.NewStore(afero.NewMemMapFs(), "data")
	if err != nil {
		t.Fatalf("failed to create library store: %v", err)
	}
	return store
}

func authedRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	session := sessions.Session{Token: "tok", Username: "erkki"}
	return req.WithContext(handlers.WithSession(req.Context(), session))
}

func TestLibraryWatchlistAddAndGet(t *testing.T) {
	store := newLibraryStore(t)
	h := handlers.NewLibraryHandler(store)

	payload, _ := json.Marshal(models.MediaEntry{Title: "Dune", MediaType: "movie"})
	req := authedRequest(http.MethodPost, "/api/library/watchlist", payload)
	rec := httptest.NewRecorder()
	h.AddToWatchlist(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	reqGet := authedRequest(http.MethodGet, "/api/library", nil)
	recGet := httptest.NewRecorder()
	h.Get(recGet, reqGet)

	if recGet.Code != http.StatusOK {
		t.Fatalf("expected get status 200, got %d", recGet.Code)
	}

	var resp struct {
		Record         models.UserRecord `json:"record"`
		StorageWarning bool              `json:"storageWarning"`
	}
	if err := json.Unmarshal(recGet.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode library response: %v", err)
	}

	if len(resp.Record.Watchlist.Movies) != 1 || resp.Record.Watchlist.Movies[0].Title != "Dune" {
		t.Fatalf("unexpected watchlist: %+v", resp.Record.Watchlist)
	}
	if resp.StorageWarning {
		t.Fatal("fresh store must not report a storage warning")
	}
}

func TestLibraryPromoteMovesToWatched(t *testing.T) {
	store := newLibraryStore(t)
	if _, err := store.AddToWatchlist("erkki", models.MediaEntry{Title: "Severance", MediaType: "tv"}); err != nil {
		t.Fatalf("failed to seed watchlist: %v", err)
	}
	h := handlers.NewLibraryHandler(store)

	req := authedRequest(http.MethodPost, "/api/library/watchlist/Severance/promote", nil)
	req = mux.SetURLVars(req, map[string]string{"title": "Severance"})
	rec := httptest.NewRecorder()
	h.PromoteWatchlist(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	record, _ := store.User("erkki")
	if len(record.Watchlist.Series) != 0 {
		t.Fatalf("expected empty series watchlist, got %+v", record.Watchlist.Series)
	}
	if len(record.Series) != 1 || record.Series[0].Title != "Severance" {
		t.Fatalf("expected Severance in watched series, got %+v", record.Series)
	}
}

func TestLibraryImportRejectsForeignDocument(t *testing.T) {
	store := newLibraryStore(t)
	h := handlers.NewLibraryHandler(store)

	doc := library.ImportDocument{Username: "someone-else", Record: models.NewUserRecord()}
	payload, _ := json.Marshal(doc)
	req := authedRequest(http.MethodPost, "/api/library/import", payload)
	rec := httptest.NewRecorder()
	h.Import(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLibraryRequiresSession(t *testing.T) {
	h := handlers.NewLibraryHandler(newLibraryStore(t))

	req := httptest.NewRequest(http.MethodGet, "/api/library", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}
