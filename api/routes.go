package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"cinesage/handlers"
	"cinesage/services/sessions"
)

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	authHandler *handlers.AuthHandler,
	libraryHandler *handlers.LibraryHandler,
	recommendationsHandler *handlers.RecommendationsHandler,
	sessionsSvc *sessions.Service,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	// Health endpoint (public)
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet, http.MethodOptions)

	// Auth routes (no authentication required for login)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", authHandler.Options).Methods(http.MethodOptions)

	// Protected routes - require a session token
	protected := api.PathPrefix("").Subrouter()
	protected.Use(SessionAuthMiddleware(sessionsSvc))

	protected.HandleFunc("/auth/me", authHandler.Me).Methods(http.MethodGet)
	protected.HandleFunc("/auth/me", authHandler.Options).Methods(http.MethodOptions)

	// Library routes
	protected.HandleFunc("/library", libraryHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/library", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/library/watched", libraryHandler.MarkWatched).Methods(http.MethodPost)
	protected.HandleFunc("/library/watched", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/library/watchlist", libraryHandler.AddToWatchlist).Methods(http.MethodPost)
	protected.HandleFunc("/library/watchlist", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/library/watchlist/{title}", libraryHandler.RemoveFromWatchlist).Methods(http.MethodDelete)
	protected.HandleFunc("/library/watchlist/{title}", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/library/watchlist/{title}/promote", libraryHandler.PromoteWatchlist).Methods(http.MethodPost)
	protected.HandleFunc("/library/watchlist/{title}/promote", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/library/blacklist", libraryHandler.Blacklist).Methods(http.MethodPost)
	protected.HandleFunc("/library/blacklist", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/library/export", libraryHandler.Export).Methods(http.MethodGet)
	protected.HandleFunc("/library/export", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/library/import", libraryHandler.Import).Methods(http.MethodPost)
	protected.HandleFunc("/library/import", handleOptions).Methods(http.MethodOptions)

	// Recommendation routes
	protected.HandleFunc("/recommendations/fetch", recommendationsHandler.Fetch).Methods(http.MethodPost)
	protected.HandleFunc("/recommendations/fetch", recommendationsHandler.Options).Methods(http.MethodOptions)
	protected.HandleFunc("/recommendations/request", recommendationsHandler.Request).Methods(http.MethodPost)
	protected.HandleFunc("/recommendations/request", recommendationsHandler.Options).Methods(http.MethodOptions)
}
