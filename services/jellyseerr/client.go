package jellyseerr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cinesage/internal/retry"
)

var (
	ErrNotConfigured    = errors.New("jellyseerr URL or API key not configured")
	ErrAuthFailed       = errors.New("jellyseerr rejected the API key")
	ErrAlreadyRequested = errors.New("media already requested or available")
)

// MediaStatus mirrors Jellyseerr's numeric availability states.
type MediaStatus int

const (
	StatusUnknown            MediaStatus = 1
	StatusPending            MediaStatus = 2
	StatusProcessing         MediaStatus = 3
	StatusPartiallyAvailable MediaStatus = 4
	StatusAvailable          MediaStatus = 5
)

// Watchable reports whether the status means the item is playable now,
// fully or in part.
func (s MediaStatus) Watchable() bool {
	return s == StatusAvailable || s == StatusPartiallyAvailable
}

// SearchResult is one entry from the Jellyseerr search endpoint. Movies
// carry Title/ReleaseDate, series carry Name/FirstAirDate.
type SearchResult struct {
	ID           int64   `json:"id"`
	MediaType    string  `json:"mediaType"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"releaseDate"`
	FirstAirDate string  `json:"firstAirDate"`
	PosterPath   string  `json:"posterPath"`
	VoteAverage  float64 `json:"voteAverage"`
	Overview     string  `json:"overview"`
}

// DisplayTitle returns whichever of Title or Name is populated.
func (r SearchResult) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

// Year extracts the release year from whichever date field is populated.
// Returns 0 when neither parses.
func (r SearchResult) Year() int {
	for _, date := range []string{r.ReleaseDate, r.FirstAirDate} {
		if len(date) >= 4 {
			if year, err := strconv.Atoi(date[:4]); err == nil {
				return year
			}
		}
	}
	return 0
}

// Client talks to a Jellyseerr instance. Search lookups ride the short
// timeout class since they run fan-out inside the enrichment pool.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	policy  retry.Policy
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpc:   &http.Client{Timeout: 15 * time.Second},
		policy:  retry.DefaultPolicy(),
	}
}

// Configured reports whether both the URL and the API key are present.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte, out any) error {
	return c.policy.Do(ctx, op, func() error {
		var reader *bytes.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		} else {
			reader = bytes.NewReader(nil)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return fmt.Errorf("jellyseerr request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return retry.Permanent(ErrAuthFailed)
		case resp.StatusCode == http.StatusBadRequest:
			// The request endpoint answers 400 for duplicates; surface it as
			// a distinct condition rather than a generic failure.
			return retry.Permanent(ErrAlreadyRequested)
		case resp.StatusCode >= 500:
			return fmt.Errorf("jellyseerr request failed: %s", resp.Status)
		case resp.StatusCode >= 400:
			return retry.Permanent(fmt.Errorf("jellyseerr request failed: %s", resp.Status))
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Permanent(fmt.Errorf("decode jellyseerr response: %w", err))
		}
		return nil
	})
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// Search queries Jellyseerr by title and returns the raw result list.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint := c.baseURL + "/api/v1/search?query=" + url.QueryEscape(query) + "&page=1"
	var parsed searchResponse
	if err := c.do(ctx, "jellyseerr search", http.MethodGet, endpoint, nil, &parsed); err != nil {
		return nil, err
	}
	return parsed.Results, nil
}

type detailsResponse struct {
	MediaInfo struct {
		Status MediaStatus `json:"status"`
	} `json:"mediaInfo"`
}

// MediaDetails returns the availability status for one catalog item.
// Items Jellyseerr has never tracked come back as StatusUnknown.
func (c *Client) MediaDetails(ctx context.Context, mediaType string, id int64) (MediaStatus, error) {
	if !c.Configured() {
		return StatusUnknown, ErrNotConfigured
	}

	kind := "movie"
	if mediaType == "tv" {
		kind = "tv"
	}
	endpoint := fmt.Sprintf("%s/api/v1/%s/%d", c.baseURL, kind, id)

	var parsed detailsResponse
	if err := c.do(ctx, "jellyseerr details", http.MethodGet, endpoint, nil, &parsed); err != nil {
		return StatusUnknown, err
	}
	if parsed.MediaInfo.Status == 0 {
		return StatusUnknown, nil
	}
	return parsed.MediaInfo.Status, nil
}

// RequestMedia submits a download request. Duplicates surface as
// ErrAlreadyRequested, a bad API key as ErrAuthFailed.
func (c *Client) RequestMedia(ctx context.Context, mediaType string, id int64) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(map[string]any{"mediaId": id, "mediaType": mediaType})
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	return c.do(ctx, "jellyseerr request", http.MethodPost, c.baseURL+"/api/v1/request", body, nil)
}
