package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotConfigured signals that a feature's required credential or URL is
// absent. The feature is disabled, not the whole application.
var ErrNotConfigured = errors.New("feature not configured")

// Settings represents the application configuration persisted to disk.
// Credentials may also arrive through environment variables, which win over
// the file so container deployments never write secrets to disk.
type Settings struct {
	Server     ServerSettings     `json:"server"`
	Jellyfin   JellyfinSettings   `json:"jellyfin"`
	Jellyseerr JellyseerrSettings `json:"jellyseerr"`
	Gemini     GeminiSettings     `json:"gemini"`
	Recommend  RecommendSettings  `json:"recommend"`
	Storage    StorageSettings    `json:"storage"`
	Log        LogSettings        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type JellyfinSettings struct {
	URL string `json:"url"`
}

type JellyseerrSettings struct {
	URL    string `json:"url"`
	APIKey string `json:"apiKey"`
}

type GeminiSettings struct {
	APIKey string `json:"apiKey"`
	Model  string `json:"model"`
	// Language the AI must answer in; Jellyseerr's search index is keyed by
	// it, so enrichment only matches when titles come back in this language.
	Language string `json:"language"`
}

type RecommendSettings struct {
	Count             int `json:"count"`
	CooldownSeconds   int `json:"cooldownSeconds"`
	EnrichmentWorkers int `json:"enrichmentWorkers"`
	MaxReasonLength   int `json:"maxReasonLength"`
}

type StorageSettings struct {
	Directory string `json:"directory"`
}

type LogSettings struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns the configuration written on first start.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 8484},
		Gemini: GeminiSettings{
			Model:    "gemini-2.5-flash",
			Language: "English",
		},
		Recommend: RecommendSettings{
			Count:             5,
			CooldownSeconds:   30,
			EnrichmentWorkers: 5,
			MaxReasonLength:   300,
		},
		Storage: StorageSettings{Directory: "data"},
		Log: LogSettings{
			File:       filepath.Join("data", "logs", "cinesage.log"),
			MaxSize:    10,
			MaxAge:     14,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// Manager loads and saves the settings file.
type Manager struct {
	mu   sync.Mutex
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// Load reads settings from disk, creating the file with defaults when it does
// not exist yet, then applies environment overrides.
func (m *Manager) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}

	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.saveLocked(defaults); err != nil {
			return Settings{}, err
		}
		return applyEnvOverrides(defaults), nil
	}

	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	settings := DefaultSettings()
	if err := json.NewDecoder(f).Decode(&settings); err != nil {
		return Settings{}, err
	}

	if settings.Recommend.Count <= 0 {
		settings.Recommend.Count = 5
	}
	if settings.Recommend.EnrichmentWorkers <= 0 {
		settings.Recommend.EnrichmentWorkers = 5
	}
	if settings.Recommend.CooldownSeconds < 0 {
		settings.Recommend.CooldownSeconds = 0
	}

	return applyEnvOverrides(settings), nil
}

// Save writes settings to disk, creating parent directories as needed.
func (m *Manager) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(s)
}

func (m *Manager) saveLocked(s Settings) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}

	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, m.path)
}

func applyEnvOverrides(s Settings) Settings {
	if v := strings.TrimSpace(os.Getenv("JELLYFIN_URL")); v != "" {
		s.Jellyfin.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("JELLYSEERR_URL")); v != "" {
		s.Jellyseerr.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("JELLYSEERR_API_KEY")); v != "" {
		s.Jellyseerr.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); v != "" {
		s.Gemini.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GEMINI_MODEL")); v != "" {
		s.Gemini.Model = v
	}
	return s
}
