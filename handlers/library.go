package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"cinesage/models"
	"cinesage/services/library"
)

type libraryService interface {
	User(username string) (models.UserRecord, bool)
	CorruptionDetected() bool
	MarkWatched(username string, entry models.MediaEntry) (bool, error)
	AddToWatchlist(username string, entry models.MediaEntry) (bool, error)
	RemoveFromWatchlist(username, title string) (bool, error)
	PromoteWatchlist(username, title string) (bool, error)
	Blacklist(username string, entry models.MediaEntry) (bool, error)
	ExportUser(username string) (library.ImportDocument, error)
	ImportReplace(username string, doc library.ImportDocument) error
	ImportMerge(username string, doc library.ImportDocument) error
}

var _ libraryService = (*library.Store)(nil)

type LibraryHandler struct {
	Store libraryService
}

func NewLibraryHandler(store libraryService) *LibraryHandler {
	return &LibraryHandler{Store: store}
}

type libraryResponse struct {
	Record models.UserRecord `json:"record"`
	// StorageWarning is set when the library file was unreadable and the
	// store fell back to an empty document.
	StorageWarning bool `json:"storageWarning"`
}

type mutationResponse struct {
	Changed bool `json:"changed"`
}

// Get returns the caller's full library record.
func (h *LibraryHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	record, found := h.Store.User(session.Username)
	if !found {
		record = *models.NewUserRecord()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(libraryResponse{
		Record:         record,
		StorageWarning: h.Store.CorruptionDetected(),
	})
}

func (h *LibraryHandler) MarkWatched(w http.ResponseWriter, r *http.Request) {
	h.mutateWithEntry(w, r, h.Store.MarkWatched)
}

func (h *LibraryHandler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	h.mutateWithEntry(w, r, h.Store.AddToWatchlist)
}

func (h *LibraryHandler) Blacklist(w http.ResponseWriter, r *http.Request) {
	h.mutateWithEntry(w, r, h.Store.Blacklist)
}

func (h *LibraryHandler) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	h.mutateWithTitle(w, r, h.Store.RemoveFromWatchlist)
}

func (h *LibraryHandler) PromoteWatchlist(w http.ResponseWriter, r *http.Request) {
	h.mutateWithTitle(w, r, h.Store.PromoteWatchlist)
}

// Export packages the caller's record for download.
func (h *LibraryHandler) Export(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	doc, err := h.Store.ExportUser(session.Username)
	if err != nil {
		http.Error(w, err.Error(), libraryErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="library-export.json"`)
	json.NewEncoder(w).Encode(doc)
}

// Import applies an uploaded export document. mode=replace overwrites the
// record, anything else merges list by list.
func (h *LibraryHandler) Import(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var doc library.ImportDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "invalid import document", http.StatusBadRequest)
		return
	}

	var err error
	if r.URL.Query().Get("mode") == "replace" {
		err = h.Store.ImportReplace(session.Username, doc)
	} else {
		err = h.Store.ImportMerge(session.Username, doc)
	}
	if err != nil {
		http.Error(w, err.Error(), libraryErrorStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *LibraryHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *LibraryHandler) mutateWithEntry(w http.ResponseWriter, r *http.Request, op func(string, models.MediaEntry) (bool, error)) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var entry models.MediaEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "invalid media entry payload", http.StatusBadRequest)
		return
	}

	changed, err := op(session.Username, entry)
	if err != nil {
		http.Error(w, err.Error(), libraryErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(mutationResponse{Changed: changed})
}

func (h *LibraryHandler) mutateWithTitle(w http.ResponseWriter, r *http.Request, op func(string, string) (bool, error)) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	title := strings.TrimSpace(mux.Vars(r)["title"])
	if title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	changed, err := op(session.Username, title)
	if err != nil {
		http.Error(w, err.Error(), libraryErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(mutationResponse{Changed: changed})
}

func libraryErrorStatus(err error) int {
	switch {
	case errors.Is(err, library.ErrTitleRequired), errors.Is(err, library.ErrUsernameRequired):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrOwnershipMismatch):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
