package sessions

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cinesage/services/jellyfin"
)

var ErrUsernameRequired = errors.New("username is required")

// Session is one authenticated browser session.
type Session struct {
	Token     string           `json:"token"`
	Username  string           `json:"username"`
	Jellyfin  jellyfin.Session `json:"-"`
	CreatedAt time.Time        `json:"createdAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// Service keeps login sessions in memory. Sessions are deliberately not
// persisted: a backend restart logs everyone out, and Jellyfin tokens never
// touch disk.
type Service struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]Session
}

func NewService(ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		ttl:      ttl,
		sessions: make(map[string]Session),
	}
}

// Create registers a new session for an authenticated Jellyfin identity.
func (s *Service) Create(jf jellyfin.Session) (Session, error) {
	if strings.TrimSpace(jf.Username) == "" {
		return Session{}, ErrUsernameRequired
	}

	now := time.Now().UTC()
	session := Session{
		Token:     uuid.NewString(),
		Username:  jf.Username,
		Jellyfin:  jf,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)
	s.sessions[session.Token] = session
	return session, nil
}

// Get resolves a token, dropping it when expired.
func (s *Service) Get(token string) (Session, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return Session{}, false
	}
	if time.Now().After(session.ExpiresAt) {
		delete(s.sessions, token)
		return Session{}, false
	}
	return session, true
}

// Delete removes a session; absent tokens are a no-op.
func (s *Service) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

func (s *Service) sweepLocked(now time.Time) {
	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
}
