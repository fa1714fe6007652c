package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"cinesage/models"
	"cinesage/services/gemini"
	"cinesage/services/jellyseerr"
	"cinesage/services/recommend"
	"cinesage/services/sessions"
)

type recommendService interface {
	Fetch(ctx context.Context, session sessions.Session, mediaType, genre string) ([]models.Recommendation, error)
	Request(ctx context.Context, rec models.Recommendation) error
}

var _ recommendService = (*recommend.Service)(nil)

type RecommendationsHandler struct {
	Service recommendService
}

func NewRecommendationsHandler(service recommendService) *RecommendationsHandler {
	return &RecommendationsHandler{Service: service}
}

type fetchRequest struct {
	MediaType string `json:"mediaType"`
	Genre     string `json:"genre"`
}

// Fetch runs one recommendation round for the caller's session.
func (h *RecommendationsHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req fetchRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid fetch payload", http.StatusBadRequest)
			return
		}
	}
	if req.MediaType == "" {
		req.MediaType = models.MediaTypeMovie
	}
	if req.MediaType != models.MediaTypeMovie && req.MediaType != models.MediaTypeTV {
		http.Error(w, "mediaType must be movie or tv", http.StatusBadRequest)
		return
	}

	recs, err := h.Service.Fetch(r.Context(), session, req.MediaType, req.Genre)
	if err != nil {
		http.Error(w, err.Error(), fetchErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}

// Request submits an enriched recommendation to the download queue.
func (h *RecommendationsHandler) Request(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSession(w, r); !ok {
		return
	}

	var rec models.Recommendation
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "invalid recommendation payload", http.StatusBadRequest)
		return
	}
	if rec.ExternalID == nil {
		http.Error(w, "recommendation has no catalog id", http.StatusBadRequest)
		return
	}

	if err := h.Service.Request(r.Context(), rec); err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, jellyseerr.ErrAlreadyRequested):
			status = http.StatusConflict
		case errors.Is(err, jellyseerr.ErrNotConfigured):
			status = http.StatusServiceUnavailable
		case errors.Is(err, jellyseerr.ErrAuthFailed):
			status = http.StatusBadGateway
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RecommendationsHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func fetchErrorStatus(err error) int {
	switch {
	case errors.Is(err, recommend.ErrCooldownActive):
		return http.StatusTooManyRequests
	case errors.Is(err, recommend.ErrFetchInFlight):
		return http.StatusConflict
	case errors.Is(err, gemini.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, gemini.ErrInvalidResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
