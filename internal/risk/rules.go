package risk

import (
	"math"
	"sort"
)

// Aggregate is the weighted sum of collector scores clamped to [0, 1].
// Collectors without a score contribute zero.
// This is pure domain logic with no I/O.
func Aggregate(weights Weights, scores map[CollectorName]float64) float64 {
	total := 0.0
	for name, w := range weights {
		total += w * clamp01(scores[name])
	}
	return clamp01(total)
}

// Recommend maps an aggregate to a recommendation. Any single score at or
// above the forced-block level blocks regardless of the aggregate.
func Recommend(t Thresholds, aggregate float64, scores map[CollectorName]float64) (Recommendation, bool) {
	for _, s := range scores {
		if s >= t.ForcedBlock {
			return RecommendBlock, true
		}
	}
	switch {
	case aggregate > t.Block:
		return RecommendBlock, false
	case aggregate >= t.Challenge:
		return RecommendChallenge, false
	default:
		return RecommendAllow, false
	}
}

// Dominant returns the collector with the largest weighted contribution, or
// "" when every contribution is zero. Ties go to the collector name that
// sorts first.
func Dominant(weights Weights, scores map[CollectorName]float64) CollectorName {
	names := make([]CollectorName, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	var (
		best     CollectorName
		bestCont float64
	)
	for _, name := range names {
		c := contribution(weights, scores, name)
		if c > bestCont {
			best, bestCont = name, c
		}
	}
	return best
}

// MaxScore returns the largest single collector score.
func MaxScore(scores map[CollectorName]float64) float64 {
	m := 0.0
	for _, s := range scores {
		m = math.Max(m, s)
	}
	return m
}

func contribution(weights Weights, scores map[CollectorName]float64, name CollectorName) float64 {
	w, ok := weights[name]
	if !ok {
		// Unweighted collectors still matter for forced blocks.
		return 0
	}
	return w * clamp01(scores[name])
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
