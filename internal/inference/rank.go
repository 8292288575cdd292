package inference

import (
	"sort"

	"ethos/internal/evidence"
)

// Prediction is one ranked candidate in the response contract. Score is
// normalized to [0,1]; Evidence keeps the trail in scoring order.
type Prediction struct {
	User     evidence.User `json:"user"`
	Score    float64       `json:"score"`
	Evidence []string      `json:"evidence"`
}

// Rank sorts candidates by descending composite score, ties broken by
// ascending user id, truncates to topN (0 means unlimited) and normalizes
// scores against the maximum observed composite, floored at zero. The same
// candidate set always yields byte-identical output.
func Rank(candidates []Candidate, topN int) []Prediction {
	if len(candidates) == 0 {
		return nil
	}
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Composite != sorted[j].Composite {
			return sorted[i].Composite > sorted[j].Composite
		}
		return sorted[i].User.ID < sorted[j].User.ID
	})
	if topN > 0 && len(sorted) > topN {
		sorted = sorted[:topN]
	}

	max := sorted[0].Composite
	out := make([]Prediction, 0, len(sorted))
	for _, c := range sorted {
		score := 0.0
		if max > 0 && c.Composite > 0 {
			score = c.Composite / max
		}
		out = append(out, Prediction{User: c.User, Score: score, Evidence: c.Trail})
	}
	return out
}
