package matching

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(traits Traits) Candidate {
	id := uuid.New()
	return Candidate{UserID: id, TransactionID: "tx-" + id.String()[:8], Traits: traits}
}

func randomCandidates(seed int64, n int) []Candidate {
	r := rand.New(rand.NewSource(seed))
	out := make([]Candidate, n)
	for i := range out {
		id := uuid.UUID{}
		_, _ = r.Read(id[:])
		out[i] = Candidate{
			UserID: id,
			Traits: Traits{
				Energy:    float64(r.Intn(101)),
				Openness:  float64(r.Intn(101)),
				Structure: float64(r.Intn(101)),
				Affect:    float64(r.Intn(101)),
				Comfort:   float64(r.Intn(101)),
				Lifestyle: float64(r.Intn(101)),
			},
		}
	}
	return out
}

func seeded(cfg FormationConfig, seed int64) FormationConfig {
	cfg.RNGSeed = &seed
	return cfg
}

func TestEngine_Form_TwoFullTables(t *testing.T) {
	participants := make([]Candidate, 0, 12)
	for i := 0; i < 6; i++ {
		participants = append(participants, candidate(uniform(20)))
		participants = append(participants, candidate(uniform(80)))
	}

	result, err := NewEngine().Form(context.Background(), participants, seeded(DefaultFormationConfig(), 7))
	require.NoError(t, err)

	require.Len(t, result.Groups, 2)
	for _, g := range result.Groups {
		assert.Len(t, g.Members, 6)
		assert.Equal(t, 70.0, g.ThresholdUsed)
		assert.Equal(t, 100.0, g.AverageMatchScore)
		assert.Equal(t, 100.0, g.MinMatchScore)
	}
	assert.Empty(t, result.UnmatchedUsers)
	assert.Equal(t, StatusMatched, StatusFor(result))
	assert.Equal(t, 12, result.Statistics.MatchedCount)
	assert.Equal(t, 6.0, result.Statistics.AverageGroupSize)
	require.Len(t, result.ThresholdBreakdown, 1)
	assert.Equal(t, ThresholdBreakdown{Threshold: 70, GroupsFormed: 2, ParticipantsMatched: 12}, result.ThresholdBreakdown[0])
	assert.Empty(t, result.Warnings)
}

func TestEngine_Form_RelaxesThroughEveryLevel(t *testing.T) {
	// a 3x3 grid 21 apart never reaches 90, and the far corner never reaches 50
	participants := make([]Candidate, 0, 10)
	for _, x := range []float64{0, 21, 42} {
		for _, y := range []float64{0, 21, 42} {
			participants = append(participants, candidate(Traits{
				Energy: x, Openness: x, Structure: x, Affect: y, Comfort: y, Lifestyle: y,
			}))
		}
	}
	outlier := candidate(uniform(100))
	participants = append(participants, outlier)

	cfg := seeded(DefaultFormationConfig(), 42)
	cfg.MinGroupScore = 90

	result, err := NewEngine().Form(context.Background(), participants, cfg)
	require.NoError(t, err)

	require.Len(t, result.ThresholdBreakdown, 5)
	for i, want := range []float64{90, 80, 70, 60, 50} {
		assert.Equal(t, want, result.ThresholdBreakdown[i].Threshold)
	}
	assert.Zero(t, result.ThresholdBreakdown[0].GroupsFormed)
	assert.NotZero(t, result.Statistics.UnmatchedCount)
	assert.Contains(t, userIDs(result.UnmatchedUsers), outlier.UserID)
	assert.Equal(t, StatusPartiallyMatched, StatusFor(result))
	assert.Equal(t, 80.0, result.Statistics.HighestThreshold)
}

func TestEngine_Form_Empty(t *testing.T) {
	result, err := NewEngine().Form(context.Background(), nil, DefaultFormationConfig())
	require.NoError(t, err)

	assert.Empty(t, result.Groups)
	assert.Empty(t, result.UnmatchedUsers)
	assert.NotNil(t, result.Groups)
	assert.NotNil(t, result.UnmatchedUsers)
	assert.Equal(t, 0, result.Statistics.TotalGroups)
	assert.Equal(t, StatusNoMatch, StatusFor(result))
}

func TestEngine_Form_SingleParticipantIsUnmatched(t *testing.T) {
	only := candidate(uniform(50))
	result, err := NewEngine().Form(context.Background(), []Candidate{only}, DefaultFormationConfig())
	require.NoError(t, err)

	assert.Empty(t, result.Groups)
	require.Len(t, result.UnmatchedUsers, 1)
	assert.Equal(t, only.UserID, result.UnmatchedUsers[0].UserID)
	assert.Len(t, result.ThresholdBreakdown, 3)
	assert.Contains(t, result.Warnings[0], "could not be matched")
}

func TestEngine_Form_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *FormationConfig)
	}{
		{name: "실패: 목표 인원 2 미만", mutate: func(c *FormationConfig) { c.TargetGroupSize = 1 }},
		{name: "실패: 최소 인원이 목표 인원 초과", mutate: func(c *FormationConfig) { c.MinGroupSize = 7 }},
		{name: "실패: 최소 임계값이 시작 임계값 초과", mutate: func(c *FormationConfig) { c.MinThreshold = 80 }},
		{name: "실패: 임계값 범위 초과", mutate: func(c *FormationConfig) { c.MinGroupScore = 120 }},
		{name: "실패: 감소 폭 0", mutate: func(c *FormationConfig) { c.ThresholdStepDown = 0 }},
		{name: "실패: 감소 폭 0.01 미만", mutate: func(c *FormationConfig) { c.ThresholdStepDown = 0.001 }},
		{name: "실패: 단계 수 초과", mutate: func(c *FormationConfig) {
			c.MinGroupScore, c.MinThreshold, c.ThresholdStepDown = 100, 0, 0.05
		}},
		{name: "실패: 시도 횟수 0", mutate: func(c *FormationConfig) { c.MaxAttemptsPerThreshold = 0 }},
		{name: "실패: 잘못된 가중치", mutate: func(c *FormationConfig) { c.Scoring.Energy.Weight = -3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultFormationConfig()
			tt.mutate(&cfg)
			_, err := NewEngine().Form(context.Background(), randomCandidates(1, 8), cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestEngine_Form_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine().Form(ctx, randomCandidates(3, 30), DefaultFormationConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_Form_Warnings(t *testing.T) {
	participants := randomCandidates(11, 20)
	cfg := seeded(DefaultFormationConfig(), 5)
	cfg.ExpectedTableCount = 50
	cfg.AcceptableThreshold = 100
	cfg.MinThreshold = 0
	cfg.MaxUnmatchedPercent = 100

	result, err := NewEngine().Form(context.Background(), participants, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, result.Groups)

	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "fewer than the 50 expected tables")
	assert.Contains(t, result.Warnings[1], "below the acceptable floor")
}

func TestThresholds(t *testing.T) {
	cfg := DefaultFormationConfig()
	cfg.MinGroupScore = 90
	assert.Equal(t, []float64{90, 80, 70, 60, 50}, cfg.Thresholds())

	cfg.MinGroupScore, cfg.ThresholdStepDown, cfg.MinThreshold = 75, 7.5, 60
	assert.Equal(t, []float64{75, 67.5, 60}, cfg.Thresholds())

	// steps below the rounding precision collapse into distinct levels
	cfg.MinGroupScore, cfg.ThresholdStepDown, cfg.MinThreshold = 70, 0.001, 69.9
	levels := cfg.Thresholds()
	require.Len(t, levels, 11)
	assert.Equal(t, 70.0, levels[0])
	assert.Equal(t, 69.9, levels[10])
	for i := 1; i < len(levels); i++ {
		assert.Less(t, levels[i], levels[i-1])
	}

	cfg.MinGroupScore, cfg.ThresholdStepDown, cfg.MinThreshold = 100, 1e-9, 0
	assert.Equal(t, []float64{100}, cfg.Thresholds())
}

func TestEngine_Form_TinyStepRejectedBeforeWork(t *testing.T) {
	cfg := DefaultFormationConfig()
	cfg.MinGroupScore, cfg.MinThreshold, cfg.ThresholdStepDown = 100, 0, 1e-9

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := NewEngine().Form(ctx, randomCandidates(4, 4), cfg)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrInvalidConfig)
	case <-time.After(2 * time.Second):
		t.Fatal("Form did not return for a sub-precision threshold step")
	}
}

func TestAggregate(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	scores := map[uuid.UUID]map[uuid.UUID]float64{
		a: {b: 80, c: 60},
		b: {a: 80, c: 70},
		c: {a: 60, b: 70},
	}
	avg, lowest := Aggregate(scores)
	assert.Equal(t, 70.0, avg)
	assert.Equal(t, 60.0, lowest)

	avg, lowest = Aggregate(map[uuid.UUID]map[uuid.UUID]float64{a: {}})
	assert.Zero(t, avg)
	assert.Zero(t, lowest)
}

func TestSeedFor(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, SeedFor(id), SeedFor(id))
	assert.GreaterOrEqual(t, SeedFor(id), int64(0))
}

func userIDs(cs []Candidate) []uuid.UUID {
	out := make([]uuid.UUID, len(cs))
	for i, c := range cs {
		out[i] = c.UserID
	}
	return out
}

func groupIDs(r *Result) [][]uuid.UUID {
	out := make([][]uuid.UUID, len(r.Groups))
	for i, g := range r.Groups {
		out[i] = userIDs(g.Members)
	}
	return out
}

// **Property: formation invariants**
// For any roster and seed, a formation run conserves participants, never reuses a participant,
// uses non-increasing thresholds and reports group aggregates matching the pairwise scores
func TestProperty_FormationInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	engine := NewEngine()
	scorer, err := NewScorer(DefaultScoringConfig())
	require.NoError(t, err)

	properties.Property("conservation and exclusivity", prop.ForAll(
		func(n int, seed int64) bool {
			participants := randomCandidates(seed, n)
			result, err := engine.Form(context.Background(), participants, seeded(DefaultFormationConfig(), seed))
			if err != nil {
				return false
			}
			seen := map[uuid.UUID]int{}
			for _, g := range result.Groups {
				for _, m := range g.Members {
					seen[m.UserID]++
				}
			}
			for _, u := range result.UnmatchedUsers {
				seen[u.UserID]++
			}
			for _, count := range seen {
				if count != 1 {
					return false
				}
			}
			s := result.Statistics
			return len(seen) == n && s.MatchedCount+s.UnmatchedCount == s.TotalParticipants && s.TotalParticipants == n
		},
		gen.IntRange(0, 40),
		gen.Int64Range(1, 1<<40),
	))

	properties.Property("thresholds are non-increasing and respected", prop.ForAll(
		func(n int, seed int64) bool {
			cfg := seeded(DefaultFormationConfig(), seed)
			result, err := engine.Form(context.Background(), randomCandidates(seed, n), cfg)
			if err != nil {
				return false
			}
			tried := map[float64]bool{}
			for _, th := range cfg.Thresholds() {
				tried[th] = true
			}
			prev := math.Inf(1)
			for _, g := range result.Groups {
				if !tried[g.ThresholdUsed] || g.ThresholdUsed > prev {
					return false
				}
				if g.MinMatchScore < g.ThresholdUsed-thresholdEpsilon {
					return false
				}
				if len(g.Members) < cfg.MinGroupSize || len(g.Members) > cfg.TargetGroupSize {
					return false
				}
				prev = g.ThresholdUsed
			}
			return true
		},
		gen.IntRange(0, 40),
		gen.Int64Range(1, 1<<40),
	))

	properties.Property("group aggregates match pairwise scores", prop.ForAll(
		func(n int, seed int64) bool {
			result, err := engine.Form(context.Background(), randomCandidates(seed, n), seeded(DefaultFormationConfig(), seed))
			if err != nil {
				return false
			}
			for _, g := range result.Groups {
				sum, pairs, lowest := 0.0, 0, math.Inf(1)
				for i := 0; i < len(g.Members); i++ {
					for j := i + 1; j < len(g.Members); j++ {
						s := scorer.Score(g.Members[i].Traits, g.Members[j].Traits)
						if g.MatchScores[g.Members[i].UserID][g.Members[j].UserID] != s {
							return false
						}
						sum += s
						pairs++
						lowest = math.Min(lowest, s)
					}
				}
				if math.Abs(sum/float64(pairs)-g.AverageMatchScore) > 0.01 || lowest != g.MinMatchScore {
					return false
				}
				for _, m := range g.Members {
					if len(g.MatchScores[m.UserID]) != len(g.Members)-1 {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(2, 30),
		gen.Int64Range(1, 1<<40),
	))

	properties.Property("same seed gives same grouping", prop.ForAll(
		func(n int, seed int64) bool {
			participants := randomCandidates(seed, n)
			cfg := seeded(DefaultFormationConfig(), seed)
			first, err1 := engine.Form(context.Background(), participants, cfg)

			reversed := make([]Candidate, len(participants))
			for i, p := range participants {
				reversed[len(participants)-1-i] = p
			}
			second, err2 := engine.Form(context.Background(), reversed, cfg)
			if err1 != nil || err2 != nil {
				return false
			}
			first.Statistics.ExecutionTimeMs, second.Statistics.ExecutionTimeMs = 0, 0
			return assert.ObjectsAreEqual(groupIDs(first), groupIDs(second)) &&
				assert.ObjectsAreEqual(first.Statistics, second.Statistics) &&
				assert.ObjectsAreEqual(first.ThresholdBreakdown, second.ThresholdBreakdown)
		},
		gen.IntRange(0, 30),
		gen.Int64Range(1, 1<<40),
	))

	properties.TestingRun(t)
}
