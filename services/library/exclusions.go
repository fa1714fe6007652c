package library

import (
	"sort"
	"strings"

	"cinesage/models"
)

// ExclusionSets holds the deduplicated title sets that must never come back
// as suggestions: everything watched, everything on the watchlist, the
// blacklist, and titles already available but unwatched.
type ExclusionSets struct {
	Watched            map[string]struct{}
	Watchlist          map[string]struct{}
	Blacklist          map[string]struct{}
	AvailableUnwatched map[string]struct{}
}

// Union returns every excluded title once, sorted, ready for the AI prompt.
func (e ExclusionSets) Union() []string {
	merged := make(map[string]struct{})
	for _, set := range []map[string]struct{}{e.Watched, e.Watchlist, e.Blacklist, e.AvailableUnwatched} {
		for title := range set {
			merged[title] = struct{}{}
		}
	}

	titles := make([]string, 0, len(merged))
	for title := range merged {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	return titles
}

// ExclusionSets merges the freshly fetched remote watch history with the
// user's local record. A failed remote fetch shows up here as an empty
// remote slice; the sets are still built from local data so the
// recommendation flow keeps working.
func (s *Store) ExclusionSets(username string, remote []models.WatchedItem) (ExclusionSets, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return ExclusionSets{}, ErrUsernameRequired
	}

	sets := ExclusionSets{
		Watched:            make(map[string]struct{}),
		Watchlist:          make(map[string]struct{}),
		Blacklist:          make(map[string]struct{}),
		AvailableUnwatched: make(map[string]struct{}),
	}

	for _, item := range remote {
		if item.Title != "" {
			sets.Watched[item.Title] = struct{}{}
		}
	}

	record, ok := s.User(username)
	if !ok {
		return sets, nil
	}

	addTitles(sets.Watched, record.Movies)
	addTitles(sets.Watched, record.Series)
	addTitles(sets.Watchlist, record.Watchlist.Movies)
	addTitles(sets.Watchlist, record.Watchlist.Series)
	addTitles(sets.Blacklist, record.DoNotRecommend)
	for _, entry := range record.AvailableButUnwatched {
		if entry.Title != "" {
			sets.AvailableUnwatched[entry.Title] = struct{}{}
		}
	}

	return sets, nil
}

func addTitles(set map[string]struct{}, list []models.MediaEntry) {
	for _, entry := range list {
		if entry.Title != "" {
			set[entry.Title] = struct{}{}
		}
	}
}
