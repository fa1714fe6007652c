package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"cinesage/internal/retry"
	"cinesage/models"
)

var (
	ErrNotConfigured = errors.New("jellyfin URL not configured")
	ErrAuthFailed    = errors.New("jellyfin login rejected")
)

// Client talks to a Jellyfin server for authentication and watch history.
type Client struct {
	baseURL  string
	deviceID string
	httpc    *http.Client
	policy   retry.Policy
}

// Session holds the authenticated Jellyfin identity for one user.
type Session struct {
	Username    string `json:"username"`
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken"`
}

// NewClient creates a Jellyfin client. History fetches can be slow on large
// libraries, so this uses the longer timeout class.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		deviceID: uuid.NewString(),
		httpc:    &http.Client{Timeout: 30 * time.Second},
		policy:   retry.DefaultPolicy(),
	}
}

// Configured reports whether a server URL is set.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

func (c *Client) authHeader() string {
	return fmt.Sprintf(`MediaBrowser Client="cinesage", Device="backend", DeviceId=%q, Version="1.0"`, c.deviceID)
}

type loginResponse struct {
	User struct {
		ID   string `json:"Id"`
		Name string `json:"Name"`
	} `json:"User"`
	AccessToken string `json:"AccessToken"`
}

// Login exchanges username and password for an access token. A rejected
// credential surfaces as ErrAuthFailed and is never retried.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	if !c.Configured() {
		return Session{}, ErrNotConfigured
	}

	body, err := json.Marshal(map[string]string{"Username": username, "Pw": password})
	if err != nil {
		return Session{}, fmt.Errorf("marshal login request: %w", err)
	}

	var session Session
	err = c.policy.Do(ctx, "jellyfin login", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Users/AuthenticateByName", bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Emby-Authorization", c.authHeader())

		resp, err := c.httpc.Do(req)
		if err != nil {
			return fmt.Errorf("jellyfin request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return retry.Permanent(ErrAuthFailed)
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("jellyfin login failed: %s", resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return retry.Permanent(fmt.Errorf("jellyfin login failed: %s - %s", resp.Status, string(respBody)))
		}

		var parsed loginResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return retry.Permanent(fmt.Errorf("decode login response: %w", err))
		}

		session = Session{
			Username:    parsed.User.Name,
			UserID:      parsed.User.ID,
			AccessToken: parsed.AccessToken,
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}

	return session, nil
}

type itemsResponse struct {
	Items []struct {
		Name string `json:"Name"`
		Type string `json:"Type"` // Movie | Series
	} `json:"Items"`
}

// WatchedItems fetches every played movie and series for the session's user
// and maps Jellyfin's item types onto the local vocabulary.
func (c *Client) WatchedItems(ctx context.Context, session Session) ([]models.WatchedItem, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint, err := url.Parse(c.baseURL + "/Users/" + url.PathEscape(session.UserID) + "/Items")
	if err != nil {
		return nil, fmt.Errorf("build items url: %w", err)
	}
	q := endpoint.Query()
	q.Set("IncludeItemTypes", "Movie,Series")
	q.Set("Recursive", "true")
	q.Set("Filters", "IsPlayed")
	endpoint.RawQuery = q.Encode()

	var items []models.WatchedItem
	err = c.policy.Do(ctx, "jellyfin watched items", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("X-Emby-Token", session.AccessToken)

		resp, err := c.httpc.Do(req)
		if err != nil {
			return fmt.Errorf("jellyfin request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			return retry.Permanent(ErrAuthFailed)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("jellyfin items failed: %s", resp.Status)
		}

		var parsed itemsResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return retry.Permanent(fmt.Errorf("decode items response: %w", err))
		}

		items = items[:0]
		for _, item := range parsed.Items {
			if item.Name == "" {
				continue
			}
			mediaType := models.MediaTypeMovie
			if item.Type == "Series" {
				mediaType = models.MediaTypeTV
			}
			items = append(items, models.WatchedItem{Title: item.Name, MediaType: mediaType})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}
