package library

import (
	"strings"

	"cinesage/models"
)

// ImportDocument is the portable export/import shape: the declared owner and
// that user's full record.
type ImportDocument struct {
	Username string             `json:"username"`
	Record   *models.UserRecord `json:"record"`
}

// ExportUser packages a user's record for download.
func (s *Store) ExportUser(username string) (ImportDocument, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return ImportDocument{}, ErrUsernameRequired
	}

	record, ok := s.User(username)
	if !ok {
		record = *models.NewUserRecord()
	}
	return ImportDocument{Username: username, Record: &record}, nil
}

// ImportReplace overwrites the user's record verbatim with the uploaded one.
// The upload is rejected when its declared owner is not the importing user.
func (s *Store) ImportReplace(username string, doc ImportDocument) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrUsernameRequired
	}
	if doc.Username != username {
		return ErrOwnershipMismatch
	}
	if doc.Record == nil {
		doc.Record = models.NewUserRecord()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, _ := s.loadLocked()
	record := *doc.Record
	loaded[username] = &record
	return s.saveLocked(loaded)
}

// ImportMerge unions the uploaded record into the local one list by list,
// deduplicating by title. When the same title exists locally as a legacy
// bare string and structured in the upload, the structured shape wins.
func (s *Store) ImportMerge(username string, doc ImportDocument) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrUsernameRequired
	}
	if doc.Username != username {
		return ErrOwnershipMismatch
	}
	if doc.Record == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, _ := s.loadLocked()
	record := ensureUser(loaded, username)

	record.Movies = mergeEntries(record.Movies, doc.Record.Movies)
	record.Series = mergeEntries(record.Series, doc.Record.Series)
	record.DoNotRecommend = mergeEntries(record.DoNotRecommend, doc.Record.DoNotRecommend)
	record.Watchlist.Movies = mergeEntries(record.Watchlist.Movies, doc.Record.Watchlist.Movies)
	record.Watchlist.Series = mergeEntries(record.Watchlist.Series, doc.Record.Watchlist.Series)

	return s.saveLocked(loaded)
}

func mergeEntries(local, incoming []models.MediaEntry) []models.MediaEntry {
	merged := make([]models.MediaEntry, len(local))
	copy(merged, local)

	for _, entry := range incoming {
		if entry.Title == "" {
			continue
		}

		i, existing := FindByTitle(merged, entry.Title)
		if i < 0 {
			merged = append(merged, entry)
			continue
		}

		// Same title on both sides: keep whichever carries structure.
		if !existing.Structured() && entry.Structured() {
			merged[i] = entry
		}
	}

	return merged
}
