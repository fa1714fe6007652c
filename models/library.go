package models

import (
	"encoding/json"
	"time"
)

// WatchlistBuckets splits a watchlist by media type. Older files stored the
// watchlist as a flat list of titles; those migrate into the movie bucket
// unless the entry already carries a series type.
type WatchlistBuckets struct {
	Movies []MediaEntry `json:"movies"`
	Series []MediaEntry `json:"series"`
}

func (b *WatchlistBuckets) UnmarshalJSON(data []byte) error {
	var legacy []MediaEntry
	if err := json.Unmarshal(data, &legacy); err == nil {
		buckets := WatchlistBuckets{}
		for _, entry := range legacy {
			if entry.MediaType == MediaTypeTV {
				buckets.Series = append(buckets.Series, entry)
			} else {
				buckets.Movies = append(buckets.Movies, entry)
			}
		}
		*b = buckets
		return nil
	}

	type alias WatchlistBuckets
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*b = WatchlistBuckets(a)
	return nil
}

// UserRecord holds everything tracked for a single library user.
type UserRecord struct {
	Movies                []MediaEntry     `json:"movies"`
	Series                []MediaEntry     `json:"series"`
	DoNotRecommend        []MediaEntry     `json:"do_not_recommend,omitempty"`
	Watchlist             WatchlistBuckets `json:"watchlist"`
	AvailableButUnwatched []AvailableEntry `json:"available_but_unwatched,omitempty"`
	JellyseerrAvailable   WatchlistBuckets `json:"jellyseerr_available,omitempty"`
	JellyfinSyncedAt      *time.Time       `json:"jellyfin_synced_at,omitempty"`
	JellyfinTotalWatched  int              `json:"jellyfin_total_watched,omitempty"`
}

// NewUserRecord returns an empty record with non-nil list fields so encoded
// output always carries the full structure.
func NewUserRecord() *UserRecord {
	return &UserRecord{
		Movies: []MediaEntry{},
		Series: []MediaEntry{},
		Watchlist: WatchlistBuckets{
			Movies: []MediaEntry{},
			Series: []MediaEntry{},
		},
	}
}

// Document maps usernames to their library records. The whole document is
// read and rewritten on every save.
type Document map[string]*UserRecord
