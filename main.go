package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"cinesage/api"
	"cinesage/config"
	"cinesage/handlers"
	"cinesage/services/gemini"
	"cinesage/services/jellyfin"
	"cinesage/services/jellyseerr"
	"cinesage/services/library"
	"cinesage/services/recommend"
	"cinesage/services/sessions"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("🎬 cinesage backend starting...")

	// Determine config path (env or default)
	configPath := os.Getenv("CINESAGE_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("data", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			slog.SetDefault(slog.New(slog.NewTextHandler(multiWriter, nil)))
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	// Storage and services
	store, err := library.NewStore(afero.NewOsFs(), settings.Storage.Directory)
	if err != nil {
		log.Fatalf("failed to initialise library store: %v", err)
	}

	jellyfinClient := jellyfin.NewClient(settings.Jellyfin.URL)
	jellyseerrClient := jellyseerr.NewClient(settings.Jellyseerr.URL, settings.Jellyseerr.APIKey)
	geminiClient := gemini.NewClient(settings.Gemini.APIKey, settings.Gemini.Model)
	sessionsSvc := sessions.NewService(24 * time.Hour)

	recommendSvc := recommend.NewService(store, jellyfinClient, geminiClient, jellyseerrClient, recommend.Options{
		Count:           settings.Recommend.Count,
		Cooldown:        time.Duration(settings.Recommend.CooldownSeconds) * time.Second,
		Workers:         settings.Recommend.EnrichmentWorkers,
		Language:        settings.Gemini.Language,
		MaxReasonLength: settings.Recommend.MaxReasonLength,
	})

	if !jellyfinClient.Configured() {
		log.Printf("warning: jellyfin URL not configured; logins will fail until JELLYFIN_URL is set")
	}
	if !jellyseerrClient.Configured() {
		log.Printf("warning: jellyseerr not configured; enrichment and requests are disabled")
	}
	if !geminiClient.Configured() {
		log.Printf("warning: gemini API key not configured; recommendation fetches are disabled")
	}

	// Construct router and register API routes
	r := mux.NewRouter()
	authHandler := handlers.NewAuthHandler(jellyfinClient, sessionsSvc)
	libraryHandler := handlers.NewLibraryHandler(store)
	recommendationsHandler := handlers.NewRecommendationsHandler(recommendSvc)
	api.Register(r, authHandler, libraryHandler, recommendationsHandler, sessionsSvc)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Setup graceful shutdown
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("🛑 Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
