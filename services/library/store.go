package library

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"cinesage/models"
)

var (
	ErrStorageDirRequired = errors.New("storage directory not provided")
	ErrUsernameRequired   = errors.New("username is required")
	ErrTitleRequired      = errors.New("title is required")
	ErrOwnershipMismatch  = errors.New("import document belongs to a different user")
)

// Store persists the per-user library document as a single JSON file.
//
// Every operation is read-modify-write over the whole document. Writes from
// one process are serialised by the store mutex; concurrent processes are
// last-write-wins, an accepted limitation of the single-file layout.
type Store struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string

	// set when the last load found unreadable JSON and reset the document
	corrupt bool
}

// NewStore creates a library store inside the provided directory. The
// filesystem is injectable so tests can run against an in-memory fs.
func NewStore(fs afero.Fs, storageDir string) (*Store, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}

	if err := fs.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}

	return &Store{
		fs:   fs,
		path: filepath.Join(storageDir, "library.json"),
	}, nil
}

// Load reads the document from disk. It never fails hard: a missing file
// yields an empty document, and unreadable JSON resets to empty with the
// corrupt flag set so callers can warn the user about possible data loss.
func (s *Store) Load() (models.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// CorruptionDetected reports whether the last load had to reset the document.
func (s *Store) CorruptionDetected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corrupt
}

func (s *Store) loadLocked() (models.Document, bool) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.corrupt = false
		return models.Document{}, false
	}
	if err != nil {
		slog.Warn("library file unreadable, starting from empty document",
			"path", s.path,
			"error", err,
		)
		s.corrupt = true
		return models.Document{}, true
	}

	if len(bytes.TrimSpace(data)) == 0 {
		s.corrupt = false
		return models.Document{}, false
	}

	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("library file corrupt, starting from empty document; the .backup sibling may hold the previous version",
			"path", s.path,
			"error", err,
		)
		s.corrupt = true
		return models.Document{}, true
	}

	s.corrupt = false
	return doc, false
}

// Save writes the whole document back to disk, copying the current file to a
// .backup sibling first. The backup copy is best effort.
func (s *Store) Save(doc models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(doc)
}

func (s *Store) saveLocked(doc models.Document) error {
	if doc == nil {
		return errors.New("refusing to save nil document")
	}

	if existing, err := afero.ReadFile(s.fs, s.path); err == nil {
		if err := afero.WriteFile(s.fs, s.path+".backup", existing, 0o644); err != nil {
			slog.Warn("library backup failed", "path", s.path+".backup", "error", err)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode library: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write library temp file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace library file: %w", err)
	}

	s.corrupt = false
	return nil
}

// User returns a copy of the record for username, if one exists.
func (s *Store) User(username string) (models.UserRecord, bool) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.UserRecord{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _ := s.loadLocked()
	record, ok := doc[username]
	if !ok || record == nil {
		return models.UserRecord{}, false
	}
	return *record, true
}

func ensureUser(doc models.Document, username string) *models.UserRecord {
	record, ok := doc[username]
	if !ok || record == nil {
		record = models.NewUserRecord()
		doc[username] = record
	}
	return record
}

// mutate runs fn against the user's record under the store lock and saves
// only when fn reports a change. All mutation handlers share this path so
// no-ops never rewrite the file.
func (s *Store) mutate(username string, fn func(record *models.UserRecord) bool) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, ErrUsernameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _ := s.loadLocked()
	record := ensureUser(doc, username)

	if !fn(record) {
		return false, nil
	}

	if err := s.saveLocked(doc); err != nil {
		return false, err
	}
	return true, nil
}
