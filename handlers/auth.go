package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"cinesage/services/jellyfin"
	"cinesage/services/sessions"
)

type authService interface {
	Configured() bool
	Login(ctx context.Context, username, password string) (jellyfin.Session, error)
}

var _ authService = (*jellyfin.Client)(nil)

type AuthHandler struct {
	jellyfin authService
	sessions *sessions.Service
}

func NewAuthHandler(jf authService, sessionsSvc *sessions.Service) *AuthHandler {
	return &AuthHandler{jellyfin: jf, sessions: sessionsSvc}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresAt string `json:"expiresAt"`
}

// Login authenticates against Jellyfin and hands out a session token. The
// Jellyfin access token stays server side on the session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid login payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}

	if !h.jellyfin.Configured() {
		http.Error(w, jellyfin.ErrNotConfigured.Error(), http.StatusServiceUnavailable)
		return
	}

	jf, err := h.jellyfin.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, jellyfin.ErrAuthFailed) {
			status = http.StatusUnauthorized
		}
		http.Error(w, err.Error(), status)
		return
	}

	session, err := h.sessions.Create(jf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		Token:     session.Token,
		Username:  session.Username,
		ExpiresAt: session.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// Logout drops the session; an unknown token still answers 204.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(Token(r))
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated identity for the current token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

func (h *AuthHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
