package models

// Recommendation is a single AI suggestion. ExternalID and MediaType start
// empty and are filled in by the enrichment step when the title resolves
// against Jellyseerr; they stay nil when the lookup fails.
type Recommendation struct {
	Title      string `json:"title"`
	Year       int    `json:"year"`
	Reason     string `json:"reason"`
	ExternalID *int64 `json:"external_id,omitempty"`
	MediaType  string `json:"media_type,omitempty"`
}
