package snippets

import "strings"

// Scorer rates snippet content on a 0..10 scale. Implementations must be
// pure: the same content always yields the same score.
type Scorer interface {
	Score(content string) float64
}

const (
	qualityBase         = 5.0
	qualityShortPenalty = 2.0
	qualityLongBonus    = 1.0
	qualityCommentBonus = 1.0
	qualityDocBonus     = 1.0
	qualityErrBonus     = 0.5

	qualityShortThreshold = 20
	qualityLongThreshold  = 200
)

var (
	commentMarkers = []string{"//", "/*", "# "}
	docMarkers     = []string{"@param", "@return", "/**"}
	errorMarkers   = []string{"try", "catch"}
)

// HeuristicScorer derives a quality score from surface features of the
// content: length, comments, documentation markers, and error handling.
type HeuristicScorer struct{}

// Score implements Scorer.
func (HeuristicScorer) Score(content string) float64 {
	score := qualityBase

	if len(content) < qualityShortThreshold {
		score -= qualityShortPenalty
	} else if len(content) > qualityLongThreshold {
		score += qualityLongBonus
	}

	if containsAny(content, commentMarkers) {
		score += qualityCommentBonus
	}
	if containsAny(content, docMarkers) {
		score += qualityDocBonus
	}
	if containsAny(content, errorMarkers) {
		score += qualityErrBonus
	}

	return clampScore(score)
}

// clampScore bounds a score to the closed interval [0, 10]. The additive
// rules only ever exceed the upper bound, but both ends are enforced.
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

func containsAny(content string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}
