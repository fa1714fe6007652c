package library

import "cinesage/models"

// FindByTitle scans a list for an entry with the exact title. First match
// wins. Legacy bare-string entries decode into title-only MediaEntry values,
// so a legacy "Dune" and a structured {title: "Dune"} are the same entry.
func FindByTitle(list []models.MediaEntry, title string) (int, *models.MediaEntry) {
	for i := range list {
		if list[i].Title == title {
			return i, &list[i]
		}
	}
	return -1, nil
}

// findAvailable is FindByTitle over the available-but-unwatched list.
func findAvailable(list []models.AvailableEntry, title string) (int, *models.AvailableEntry) {
	for i := range list {
		if list[i].Title == title {
			return i, &list[i]
		}
	}
	return -1, nil
}

// appendUnique adds entry unless an entry with the same title already
// exists. Uniqueness is by exact title, so all writers going through here
// keep the one-title-per-list invariant.
func appendUnique(list []models.MediaEntry, entry models.MediaEntry) ([]models.MediaEntry, bool) {
	if i, _ := FindByTitle(list, entry.Title); i >= 0 {
		return list, false
	}
	return append(list, entry), true
}

// removeByTitle deletes the first entry with the given title, preserving
// order, and returns the removed entry when one was found.
func removeByTitle(list []models.MediaEntry, title string) ([]models.MediaEntry, *models.MediaEntry) {
	i, _ := FindByTitle(list, title)
	if i < 0 {
		return list, nil
	}
	removed := list[i]
	return append(list[:i], list[i+1:]...), &removed
}

// watchedBucket selects the watched list matching the entry's media type.
// Untyped legacy entries count as movies, mirroring the original file format.
func watchedBucket(record *models.UserRecord, mediaType string) *[]models.MediaEntry {
	if mediaType == models.MediaTypeTV {
		return &record.Series
	}
	return &record.Movies
}

func watchlistBucket(buckets *models.WatchlistBuckets, mediaType string) *[]models.MediaEntry {
	if mediaType == models.MediaTypeTV {
		return &buckets.Series
	}
	return &buckets.Movies
}
