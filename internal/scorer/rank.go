package scorer

import (
	"sort"

	"github.com/sells-group/fscore-cli/internal/model"
)

// Rank orders results by score descending, then trailing P/E ascending
// with missing P/E last. No Data results follow every scored result.
func Rank(results []model.ScoreResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return ranksBefore(results[i], results[j])
	})
}

func ranksBefore(a, b model.ScoreResult) bool {
	if a.Score.Valid != b.Score.Valid {
		return a.Score.Valid
	}
	if a.Score.Valid && a.Score.Value != b.Score.Value {
		return a.Score.Value > b.Score.Value
	}
	if a.Score.Valid {
		switch {
		case a.TrailingPE != nil && b.TrailingPE == nil:
			return true
		case a.TrailingPE == nil && b.TrailingPE != nil:
			return false
		case a.TrailingPE != nil && *a.TrailingPE != *b.TrailingPE:
			return *a.TrailingPE < *b.TrailingPE
		}
	}
	if a.Country != b.Country {
		return a.Country < b.Country
	}
	return a.Ticker < b.Ticker
}

// Select returns the results with a score of at least minScore, keeping
// order. A minScore of zero or less keeps everything, No Data included.
func Select(results []model.ScoreResult, minScore int) []model.ScoreResult {
	if minScore <= 0 {
		return results
	}
	out := make([]model.ScoreResult, 0, len(results))
	for _, r := range results {
		if r.Score.Valid && r.Score.Value >= minScore {
			out = append(out, r)
		}
	}
	return out
}
