package jellyfin_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cinesage/models"
	"cinesage/services/jellyfin"
)

func TestLoginParsesSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users/AuthenticateByName" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Emby-Authorization") == "" {
			t.Error("expected X-Emby-Authorization header")
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["Username"] != "erkki" || body["Pw"] != "hunter2" {
			t.Errorf("unexpected credentials %v", body)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"User":        map[string]string{"Id": "abc123", "Name": "erkki"},
			"AccessToken": "token-xyz",
		})
	}))
	defer server.Close()

	client := jellyfin.NewClient(server.URL)
	session, err := client.Login(context.Background(), "erkki", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.UserID != "abc123" || session.AccessToken != "token-xyz" || session.Username != "erkki" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestLoginRejectionIsNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := jellyfin.NewClient(server.URL)
	_, err := client.Login(context.Background(), "erkki", "wrong")
	if !errors.Is(err, jellyfin.ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("auth failure must not be retried, got %d attempts", attempts)
	}
}

func TestWatchedItemsMapsTypes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Emby-Token") != "token-xyz" {
			t.Errorf("expected session token header, got %q", r.Header.Get("X-Emby-Token"))
		}
		q := r.URL.Query()
		if q.Get("Filters") != "IsPlayed" || q.Get("IncludeItemTypes") != "Movie,Series" {
			t.Errorf("unexpected query %v", q)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"Items": []map[string]string{
				{"Name": "The Matrix", "Type": "Movie"},
				{"Name": "Severance", "Type": "Series"},
				{"Name": "", "Type": "Movie"},
			},
		})
	}))
	defer server.Close()

	client := jellyfin.NewClient(server.URL)
	items, err := client.WatchedItems(context.Background(), jellyfin.Session{
		UserID:      "abc123",
		AccessToken: "token-xyz",
	})
	if err != nil {
		t.Fatalf("watched items: %v", err)
	}

	want := []models.WatchedItem{
		{Title: "The Matrix", MediaType: models.MediaTypeMovie},
		{Title: "Severance", MediaType: models.MediaTypeTV},
	}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("item %d = %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestUnconfiguredClientFailsFast(t *testing.T) {
	client := jellyfin.NewClient("")
	if _, err := client.Login(context.Background(), "a", "b"); !errors.Is(err, jellyfin.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
