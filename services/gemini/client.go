package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cinesage/internal/retry"
	"cinesage/models"
)

var (
	ErrNotConfigured = errors.New("gemini API key not configured")
	// ErrInvalidResponse means the model answered but not in the requested
	// structure. This is a data problem and is never retried, so callers
	// can tell it apart from "no results".
	ErrInvalidResponse = errors.New("gemini response is not the requested JSON structure")
)

// Request describes one recommendation ask.
type Request struct {
	MediaType       string   // movie | tv
	Genre           string   // empty means any genre
	Count           int      // number of suggestions, normally 5
	Language        string   // canonical output language for title matching
	MaxReasonLength int      // reason field length bound
	Exclude         []string // union of all exclusion sets
}

// Client calls the Gemini generateContent API asking for strict JSON output.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
	policy  retry.Policy
}

func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
		httpc:   &http.Client{Timeout: 45 * time.Second},
		policy:  retry.DefaultPolicy(),
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// SetBaseURL overrides the API endpoint, used by tests.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType"`
	ResponseSchema   *schema `json:"responseSchema,omitempty"`
}

type schema struct {
	Type       string             `json:"type"`
	Items      *schema            `json:"items,omitempty"`
	Properties map[string]*schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func recommendationSchema() *schema {
	return &schema{
		Type: "ARRAY",
		Items: &schema{
			Type: "OBJECT",
			Properties: map[string]*schema{
				"title":  {Type: "STRING"},
				"year":   {Type: "INTEGER"},
				"reason": {Type: "STRING"},
			},
			Required: []string{"title", "year", "reason"},
		},
	}
}

// Recommend asks the model for req.Count suggestions outside the exclusion
// list. Transient HTTP failures retry with backoff; an unparsable answer
// surfaces immediately as ErrInvalidResponse.
func (c *Client) Recommend(ctx context.Context, req Request) ([]models.Recommendation, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if req.Count <= 0 {
		req.Count = 5
	}

	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: buildPrompt(req)}}}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   recommendationSchema(),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	var text string
	err = c.policy.Do(ctx, "gemini recommend", func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpc.Do(httpReq)
		if err != nil {
			return fmt.Errorf("gemini request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("gemini request failed: %s", resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			return retry.Permanent(fmt.Errorf("gemini request failed: %s", resp.Status))
		}

		var parsed generateResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return retry.Permanent(fmt.Errorf("%w: %v", ErrInvalidResponse, err))
		}
		if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
			return retry.Permanent(fmt.Errorf("%w: empty candidate list", ErrInvalidResponse))
		}

		text = parsed.Candidates[0].Content.Parts[0].Text
		return nil
	})
	if err != nil {
		return nil, err
	}

	recs, err := parseRecommendations(text, req.MaxReasonLength)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func buildPrompt(req Request) string {
	kind := "movies"
	if req.MediaType == models.MediaTypeTV {
		kind = "TV series"
	}

	language := req.Language
	if language == "" {
		language = "English"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert in recommending movies and TV series. Recommend exactly %d %s.\n", req.Count, kind)
	fmt.Fprintf(&b, "Only recommend %s, never the other media type.\n", kind)
	if req.Genre != "" {
		fmt.Fprintf(&b, "Every recommendation must belong to the genre: %s.\n", req.Genre)
	} else {
		b.WriteString("Pick titles across a diverse range of genres.\n")
	}
	if len(req.Exclude) > 0 {
		fmt.Fprintf(&b, "The user already knows these titles, NEVER recommend any of them: %s\n", strings.Join(req.Exclude, ", "))
	}
	fmt.Fprintf(&b, "Write every title in %s, matching its official release name so it can be found in a catalog search.\n", language)
	fmt.Fprintf(&b, "Answer only with a JSON array of exactly %d objects, each with the keys \"title\" (string), \"year\" (integer) and \"reason\" (string", req.Count)
	if req.MaxReasonLength > 0 {
		fmt.Fprintf(&b, ", at most %d characters", req.MaxReasonLength)
	}
	b.WriteString("). No other text.\n")
	return b.String()
}

// parseRecommendations decodes the model's text. Older integration modes
// wrap the JSON in markdown code fences, so those are stripped first.
func parseRecommendations(text string, maxReasonLength int) ([]models.Recommendation, error) {
	cleaned := stripCodeFences(text)

	var raw []struct {
		Title  string `json:"title"`
		Year   int    `json:"year"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	recs := make([]models.Recommendation, 0, len(raw))
	for _, item := range raw {
		if strings.TrimSpace(item.Title) == "" {
			return nil, fmt.Errorf("%w: recommendation without a title", ErrInvalidResponse)
		}
		reason := item.Reason
		if maxReasonLength > 0 && len(reason) > maxReasonLength {
			reason = reason[:maxReasonLength]
		}
		recs = append(recs, models.Recommendation{
			Title:  item.Title,
			Year:   item.Year,
			Reason: reason,
		})
	}
	return recs, nil
}

func stripCodeFences(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
