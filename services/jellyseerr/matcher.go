package jellyseerr

import "cinesage/utils/similarity"

// Matcher picks the search result that most plausibly corresponds to an
// AI-suggested title. The default heuristic occasionally mismatches remakes
// and same-name re-releases; keeping it behind an interface lets a stricter
// matcher replace it without touching enrichment callers.
type Matcher interface {
	Match(results []SearchResult, title string, year int, mediaType string) *SearchResult
}

// HeuristicMatcher applies normalized title containment, a year tolerance
// of one and a media-type check, then an exact year match on title
// similarity alone, then the first result.
type HeuristicMatcher struct{}

func (HeuristicMatcher) Match(results []SearchResult, title string, year int, mediaType string) *SearchResult {
	if len(results) == 0 {
		return nil
	}

	for i := range results {
		r := &results[i]
		if mediaType != "" && r.MediaType != "" && r.MediaType != mediaType {
			continue
		}
		if !similarity.Contains(r.DisplayTitle(), title) {
			continue
		}
		if year != 0 && r.Year() != 0 && absDiff(r.Year(), year) > 1 {
			continue
		}
		return r
	}

	// Second pass: exact year and a reasonable similarity score, ignoring
	// the media-type hint (the AI sometimes labels miniseries as movies).
	if year != 0 {
		for i := range results {
			r := &results[i]
			if r.Year() == year && similarity.Score(r.DisplayTitle(), title) >= 0.6 {
				return r
			}
		}
	}

	return &results[0]
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
