package library

import (
	"strings"
	"time"

	"cinesage/models"
)

// MarkWatched appends the entry to the watched movies or series list.
// Returns false when the title is already tracked as watched.
func (s *Store) MarkWatched(username string, entry models.MediaEntry) (bool, error) {
	if strings.TrimSpace(entry.Title) == "" {
		return false, ErrTitleRequired
	}

	return s.mutate(username, func(record *models.UserRecord) bool {
		bucket := watchedBucket(record, entry.MediaType)
		updated, added := appendUnique(*bucket, entry)
		*bucket = updated
		return added
	})
}

// AddToWatchlist appends the entry to the watchlist bucket for its type.
func (s *Store) AddToWatchlist(username string, entry models.MediaEntry) (bool, error) {
	if strings.TrimSpace(entry.Title) == "" {
		return false, ErrTitleRequired
	}

	return s.mutate(username, func(record *models.UserRecord) bool {
		bucket := watchlistBucket(&record.Watchlist, entry.MediaType)
		updated, added := appendUnique(*bucket, entry)
		*bucket = updated
		return added
	})
}

// RemoveFromWatchlist deletes the title from whichever watchlist bucket
// holds it. Absent titles are a no-op.
func (s *Store) RemoveFromWatchlist(username, title string) (bool, error) {
	if strings.TrimSpace(title) == "" {
		return false, ErrTitleRequired
	}

	return s.mutate(username, func(record *models.UserRecord) bool {
		var removed *models.MediaEntry
		record.Watchlist.Movies, removed = removeByTitle(record.Watchlist.Movies, title)
		if removed != nil {
			return true
		}
		record.Watchlist.Series, removed = removeByTitle(record.Watchlist.Series, title)
		return removed != nil
	})
}

// PromoteWatchlist moves a title from the watchlist into the watched lists,
// keeping the media type and external id the entry already carries. Entries
// from the series bucket that never got a type land in watched series.
func (s *Store) PromoteWatchlist(username, title string) (bool, error) {
	if strings.TrimSpace(title) == "" {
		return false, ErrTitleRequired
	}

	return s.mutate(username, func(record *models.UserRecord) bool {
		entry, fromSeries := takeFromWatchlist(&record.Watchlist, title)
		if entry == nil {
			return false
		}

		if entry.MediaType == "" && fromSeries {
			entry.MediaType = models.MediaTypeTV
		}

		bucket := watchedBucket(record, entry.MediaType)
		updated, _ := appendUnique(*bucket, *entry)
		*bucket = updated
		return true
	})
}

func takeFromWatchlist(buckets *models.WatchlistBuckets, title string) (*models.MediaEntry, bool) {
	var removed *models.MediaEntry
	buckets.Movies, removed = removeByTitle(buckets.Movies, title)
	if removed != nil {
		return removed, false
	}
	buckets.Series, removed = removeByTitle(buckets.Series, title)
	return removed, true
}

// Blacklist adds the entry to the do-not-recommend list and drops the same
// title from both watchlist buckets. A blacklisted title never sits in the
// watchlist at the same time.
func (s *Store) Blacklist(username string, entry models.MediaEntry) (bool, error) {
	if strings.TrimSpace(entry.Title) == "" {
		return false, ErrTitleRequired
	}

	return s.mutate(username, func(record *models.UserRecord) bool {
		updated, added := appendUnique(record.DoNotRecommend, entry)
		record.DoNotRecommend = updated

		var removedMovie, removedSeries *models.MediaEntry
		record.Watchlist.Movies, removedMovie = removeByTitle(record.Watchlist.Movies, entry.Title)
		record.Watchlist.Series, removedSeries = removeByTitle(record.Watchlist.Series, entry.Title)

		return added || removedMovie != nil || removedSeries != nil
	})
}

// NoteAvailable records a title as downloadable but unwatched, stamped with
// notedAt, and mirrors it into the Jellyseerr availability cache. Idempotent
// by title.
func (s *Store) NoteAvailable(username string, entry models.MediaEntry, notedAt time.Time) (bool, error) {
	if strings.TrimSpace(entry.Title) == "" {
		return false, ErrTitleRequired
	}

	return s.mutate(username, func(record *models.UserRecord) bool {
		if i, _ := findAvailable(record.AvailableButUnwatched, entry.Title); i >= 0 {
			return false
		}

		record.AvailableButUnwatched = append(record.AvailableButUnwatched, models.AvailableEntry{
			MediaEntry: entry,
			NotedAt:    notedAt.UTC(),
		})

		mirror := watchlistBucket(&record.JellyseerrAvailable, entry.MediaType)
		updated, _ := appendUnique(*mirror, entry)
		*mirror = updated
		return true
	})
}

// SetSyncMetadata overwrites the Jellyfin sync fields. Called after every
// successful remote history fetch, independent of what the recommendation
// flow does afterwards.
func (s *Store) SetSyncMetadata(username string, totalWatched int, syncedAt time.Time) error {
	at := syncedAt.UTC()
	_, err := s.mutate(username, func(record *models.UserRecord) bool {
		record.JellyfinSyncedAt = &at
		record.JellyfinTotalWatched = totalWatched
		return true
	})
	return err
}
