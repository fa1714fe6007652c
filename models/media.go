package models

import (
	"encoding/json"
	"time"
)

const (
	MediaTypeMovie = "movie"
	MediaTypeTV    = "tv"
)

// MediaEntry identifies a movie or series tracked in a user's library.
// Older library files stored entries as bare title strings; UnmarshalJSON
// accepts both shapes so existing files keep loading.
type MediaEntry struct {
	Title      string `json:"title"`
	MediaType  string `json:"media_type,omitempty"`
	ExternalID *int64 `json:"external_id,omitempty"`
}

func (e *MediaEntry) UnmarshalJSON(data []byte) error {
	var legacy string
	if err := json.Unmarshal(data, &legacy); err == nil {
		*e = MediaEntry{Title: legacy}
		return nil
	}

	type alias MediaEntry
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = MediaEntry(a)
	return nil
}

// Structured reports whether the entry carries more than a bare title.
func (e MediaEntry) Structured() bool {
	return e.MediaType != "" || e.ExternalID != nil
}

// AvailableEntry is a media entry noted as downloadable but not yet watched.
type AvailableEntry struct {
	MediaEntry
	NotedAt time.Time `json:"noted_at"`
}

func (e *AvailableEntry) UnmarshalJSON(data []byte) error {
	var legacy string
	if err := json.Unmarshal(data, &legacy); err == nil {
		*e = AvailableEntry{MediaEntry: MediaEntry{Title: legacy}}
		return nil
	}

	type alias AvailableEntry
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = AvailableEntry(a)
	return nil
}

// WatchedItem is a single title from the Jellyfin watch history, already
// mapped onto the local media type vocabulary.
type WatchedItem struct {
	Title     string `json:"title"`
	MediaType string `json:"mediaType"`
}
