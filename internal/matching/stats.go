package matching

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Statistics summarizes a formation run
type Statistics struct {
	TotalParticipants int     `json:"totalParticipants"`
	TotalGroups       int     `json:"totalGroups"`
	MatchedCount      int     `json:"matchedCount"`
	UnmatchedCount    int     `json:"unmatchedCount"`
	AverageGroupSize  float64 `json:"averageGroupSize"`
	AverageMatchScore float64 `json:"averageMatchScore"`
	HighestThreshold  float64 `json:"highestThreshold"`
	LowestThreshold   float64 `json:"lowestThreshold"`
	ExecutionTimeMs   int64   `json:"executionTimeMs"`
}

func computeStatistics(r *Result, total int, elapsed time.Duration) Statistics {
	stats := Statistics{
		TotalParticipants: total,
		TotalGroups:       len(r.Groups),
		UnmatchedCount:    len(r.UnmatchedUsers),
		ExecutionTimeMs:   elapsed.Milliseconds(),
	}
	if len(r.Groups) == 0 {
		return stats
	}

	scoreSum := 0.0
	stats.HighestThreshold = r.Groups[0].ThresholdUsed
	stats.LowestThreshold = r.Groups[0].ThresholdUsed
	for _, g := range r.Groups {
		stats.MatchedCount += len(g.Members)
		scoreSum += g.AverageMatchScore
		stats.HighestThreshold = math.Max(stats.HighestThreshold, g.ThresholdUsed)
		stats.LowestThreshold = math.Min(stats.LowestThreshold, g.ThresholdUsed)
	}
	stats.AverageGroupSize = round2(float64(stats.MatchedCount) / float64(len(r.Groups)))
	stats.AverageMatchScore = round2(scoreSum / float64(len(r.Groups)))
	return stats
}

func buildWarnings(r *Result, cfg FormationConfig) []string {
	warnings := []string{}
	stats := r.Statistics

	if cfg.ExpectedTableCount > 0 {
		switch {
		case stats.TotalGroups < cfg.ExpectedTableCount:
			warnings = append(warnings, fmt.Sprintf(
				"formed %d groups, fewer than the %d expected tables", stats.TotalGroups, cfg.ExpectedTableCount))
		case stats.TotalGroups > cfg.ExpectedTableCount:
			warnings = append(warnings, fmt.Sprintf(
				"formed %d groups, more than the %d available tables", stats.TotalGroups, cfg.ExpectedTableCount))
		}
	}

	if stats.TotalGroups > 0 && stats.LowestThreshold < cfg.AcceptableThreshold-thresholdEpsilon {
		warnings = append(warnings, fmt.Sprintf(
			"threshold relaxed to %.2f, below the acceptable floor of %.2f", stats.LowestThreshold, cfg.AcceptableThreshold))
	}

	if stats.TotalParticipants > 0 {
		pct := 100 * float64(stats.UnmatchedCount) / float64(stats.TotalParticipants)
		if pct > cfg.MaxUnmatchedPercent+thresholdEpsilon {
			warnings = append(warnings, fmt.Sprintf(
				"%d of %d participants (%.1f%%) could not be matched", stats.UnmatchedCount, stats.TotalParticipants, pct))
		}
	}
	return warnings
}

// Aggregate returns the mean and minimum of every distinct pair in a member score map.
// Groups with fewer than two members report zero for both.
func Aggregate(scores map[uuid.UUID]map[uuid.UUID]float64) (avg, lowest float64) {
	ids := make([]uuid.UUID, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	if len(ids) < 2 {
		return 0, 0
	}

	sum, pairs := 0.0, 0
	lowest = scoreMax
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			s := scores[ids[i]][ids[j]]
			sum += s
			pairs++
			if s < lowest {
				lowest = s
			}
		}
	}
	return round2(sum / float64(pairs)), lowest
}

// StatusFor derives the run status from a formation result
func StatusFor(r *Result) string {
	switch {
	case len(r.Groups) == 0:
		return StatusNoMatch
	case len(r.UnmatchedUsers) > 0:
		return StatusPartiallyMatched
	default:
		return StatusMatched
	}
}

// Run outcome statuses, mirrored by domain.MatchingStatus
const (
	StatusMatched          = "MATCHED"
	StatusPartiallyMatched = "PARTIALLY_MATCHED"
	StatusNoMatch          = "NO_MATCH"
)
