package matching

import (
	"bytes"
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Candidate is one eligible participant handed to the engine
type Candidate struct {
	UserID        uuid.UUID
	TransactionID string
	DisplayName   string
	Email         string
	Traits        Traits
}

// FormedGroup is a group produced by a formation run
type FormedGroup struct {
	GroupNumber       int
	Members           []Candidate
	MatchScores       map[uuid.UUID]map[uuid.UUID]float64
	AverageMatchScore float64
	MinMatchScore     float64
	ThresholdUsed     float64
}

// ThresholdBreakdown reports what one relaxation level achieved
type ThresholdBreakdown struct {
	Threshold           float64 `json:"threshold"`
	GroupsFormed        int     `json:"groupsFormed"`
	ParticipantsMatched int     `json:"participantsMatched"`
}

// Result is the outcome of a formation run. Unmatched participants are a normal outcome.
type Result struct {
	Groups             []FormedGroup
	UnmatchedUsers     []Candidate
	ThresholdBreakdown []ThresholdBreakdown
	Statistics         Statistics
	Warnings           []string
}

// Engine partitions participants into groups using threshold relaxation
type Engine struct {
	now func() time.Time
}

// NewEngine creates a new Engine
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Form runs the full formation algorithm. It never fails for "could not match everyone";
// errors are limited to invalid configuration and context cancellation.
func (e *Engine) Form(ctx context.Context, participants []Candidate, cfg FormationConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := e.now()

	result := &Result{
		Groups:             []FormedGroup{},
		UnmatchedUsers:     []Candidate{},
		ThresholdBreakdown: []ThresholdBreakdown{},
		Warnings:           []string{},
	}
	if len(participants) == 0 {
		result.Statistics = computeStatistics(result, 0, e.now().Sub(start))
		return result, nil
	}

	scorer, err := NewScorer(cfg.Scoring)
	if err != nil {
		return nil, err
	}

	candidates := sortedCandidates(participants)
	traits := make([]Traits, len(candidates))
	for i, c := range candidates {
		traits[i] = c.Traits
	}

	matrix, err := BuildMatrix(ctx, scorer, traits, cfg.MatrixWorkers)
	if err != nil {
		return nil, err
	}

	f := &former{
		matrix:  matrix,
		placed:  make([]bool, len(candidates)),
		pending: make([]bool, len(candidates)),
		rng:     rand.New(rand.NewSource(cfg.seed())),
		target:  cfg.TargetGroupSize,
		minSize: cfg.MinGroupSize,
	}

	remaining := len(candidates)
	for _, t := range cfg.Thresholds() {
		if remaining == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		level := ThresholdBreakdown{Threshold: t}
		for pass := 0; pass < cfg.MaxAttemptsPerThreshold && remaining > 0; pass++ {
			formed := 0
			for _, seed := range f.rng.Perm(len(candidates)) {
				if f.placed[seed] {
					continue
				}
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				members := f.grow(seed, t)
				if len(members) < f.minSize {
					continue
				}
				for _, idx := range members {
					f.placed[idx] = true
				}
				f.groups = append(f.groups, formedIndices{members: members, threshold: t})
				remaining -= len(members)
				level.GroupsFormed++
				level.ParticipantsMatched += len(members)
				formed++
			}
			if formed == 0 {
				break
			}
		}
		result.ThresholdBreakdown = append(result.ThresholdBreakdown, level)
	}

	for n, g := range f.groups {
		result.Groups = append(result.Groups, buildGroup(n+1, g, candidates, matrix))
	}
	for idx, placed := range f.placed {
		if !placed {
			result.UnmatchedUsers = append(result.UnmatchedUsers, candidates[idx])
		}
	}

	result.Statistics = computeStatistics(result, len(candidates), e.now().Sub(start))
	result.Warnings = buildWarnings(result, cfg)
	return result, nil
}

type formedIndices struct {
	members   []int
	threshold float64
}

// former holds the mutable placement state of one run
type former struct {
	matrix  *Matrix
	placed  []bool
	pending []bool
	rng     *rand.Rand
	target  int
	minSize int
	groups  []formedIndices
}

// grow seeds a group and greedily adds the best compatible unplaced participant whose
// addition keeps every pair at or above t.
func (f *former) grow(seed int, t float64) []int {
	members := []int{seed}
	f.pending[seed] = true
	defer func() {
		for _, idx := range members {
			f.pending[idx] = false
		}
	}()

	for len(members) < f.target {
		best, bestMean, bestMin := -1, -1.0, -1.0
		for c := 0; c < f.matrix.Size(); c++ {
			if f.placed[c] || f.pending[c] {
				continue
			}
			mean, lowest, ok := f.fit(c, members, t)
			if !ok {
				continue
			}
			if mean > bestMean+thresholdEpsilon ||
				(mean > bestMean-thresholdEpsilon && lowest > bestMin+thresholdEpsilon) {
				best, bestMean, bestMin = c, mean, lowest
			}
		}
		if best < 0 {
			break
		}
		members = append(members, best)
		f.pending[best] = true
	}
	return members
}

func (f *former) fit(c int, members []int, t float64) (mean, lowest float64, ok bool) {
	lowest = scoreMax
	sum := 0.0
	for _, m := range members {
		s := f.matrix.At(c, m)
		if s < t-thresholdEpsilon {
			return 0, 0, false
		}
		sum += s
		if s < lowest {
			lowest = s
		}
	}
	return sum / float64(len(members)), lowest, true
}

func buildGroup(number int, g formedIndices, candidates []Candidate, matrix *Matrix) FormedGroup {
	members := make([]Candidate, len(g.members))
	scores := make(map[uuid.UUID]map[uuid.UUID]float64, len(g.members))
	for i, idx := range g.members {
		members[i] = candidates[idx]
		peers := make(map[uuid.UUID]float64, len(g.members)-1)
		for _, other := range g.members {
			if other != idx {
				peers[candidates[other].UserID] = matrix.At(idx, other)
			}
		}
		scores[candidates[idx].UserID] = peers
	}
	avg, lowest := Aggregate(scores)
	return FormedGroup{
		GroupNumber:       number,
		Members:           members,
		MatchScores:       scores,
		AverageMatchScore: avg,
		MinMatchScore:     lowest,
		ThresholdUsed:     g.threshold,
	}
}

// sortedCandidates returns a copy ordered by user id so that index order never depends
// on roster query order.
func sortedCandidates(in []Candidate) []Candidate {
	out := make([]Candidate, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return bytes.Compare(out[i].UserID[:], out[j].UserID[:]) < 0
	})
	return out
}
