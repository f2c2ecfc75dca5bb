package matching

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/google/uuid"
)

// ErrInvalidConfig is returned (wrapped) for any rejected formation or scoring parameter
var ErrInvalidConfig = errors.New("invalid matching configuration")

// Thresholds are rounded to two decimals, so smaller steps cannot produce distinct levels.
const (
	minThresholdStep   = 0.01
	maxThresholdLevels = 1000
)

// FormationConfig controls one formation run
type FormationConfig struct {
	TargetGroupSize         int           `json:"targetGroupSize"`
	MinGroupSize            int           `json:"minGroupSize"`
	MinGroupScore           float64       `json:"minGroupScore"`
	ThresholdStepDown       float64       `json:"thresholdStepDown"`
	MinThreshold            float64       `json:"minThreshold"`
	MaxAttemptsPerThreshold int           `json:"maxAttemptsPerThreshold"`
	RNGSeed                 *int64        `json:"rngSeed,omitempty"`
	AcceptableThreshold     float64       `json:"acceptableThreshold"`
	MaxUnmatchedPercent     float64       `json:"maxUnmatchedPercent"`
	ExpectedTableCount      int           `json:"expectedTableCount,omitempty"`
	MatrixWorkers           int           `json:"-"`
	Scoring                 ScoringConfig `json:"scoring"`
}

// DefaultFormationConfig returns the built-in defaults
func DefaultFormationConfig() FormationConfig {
	return FormationConfig{
		TargetGroupSize:         6,
		MinGroupSize:            2,
		MinGroupScore:           70,
		ThresholdStepDown:       10,
		MinThreshold:            50,
		MaxAttemptsPerThreshold: 3,
		AcceptableThreshold:     60,
		MaxUnmatchedPercent:     10,
		MatrixWorkers:           defaultMatrixConcurrency,
		Scoring:                 DefaultScoringConfig(),
	}
}

// Validate rejects parameter combinations the engine cannot run with
func (c FormationConfig) Validate() error {
	if c.TargetGroupSize < 2 {
		return fmt.Errorf("%w: targetGroupSize must be at least 2", ErrInvalidConfig)
	}
	if c.MinGroupSize < 2 || c.MinGroupSize > c.TargetGroupSize {
		return fmt.Errorf("%w: minGroupSize must be between 2 and targetGroupSize", ErrInvalidConfig)
	}
	if !inScoreRange(c.MinGroupScore) || !inScoreRange(c.MinThreshold) {
		return fmt.Errorf("%w: thresholds must be within [0,100]", ErrInvalidConfig)
	}
	if c.MinThreshold > c.MinGroupScore {
		return fmt.Errorf("%w: minThreshold must not exceed minGroupScore", ErrInvalidConfig)
	}
	if !(c.ThresholdStepDown >= minThresholdStep) || math.IsInf(c.ThresholdStepDown, 1) {
		return fmt.Errorf("%w: thresholdStepDown must be at least %.2f", ErrInvalidConfig, minThresholdStep)
	}
	if levels := math.Floor((c.MinGroupScore-c.MinThreshold)/c.ThresholdStepDown) + 1; levels > maxThresholdLevels {
		return fmt.Errorf("%w: thresholdStepDown yields %.0f levels, at most %d allowed",
			ErrInvalidConfig, levels, maxThresholdLevels)
	}
	if c.MaxAttemptsPerThreshold < 1 {
		return fmt.Errorf("%w: maxAttemptsPerThreshold must be at least 1", ErrInvalidConfig)
	}
	if c.MaxUnmatchedPercent < 0 || c.MaxUnmatchedPercent > 100 {
		return fmt.Errorf("%w: maxUnmatchedPercent must be within [0,100]", ErrInvalidConfig)
	}
	if c.ExpectedTableCount < 0 {
		return fmt.Errorf("%w: expectedTableCount must not be negative", ErrInvalidConfig)
	}
	return c.Scoring.Validate()
}

// Thresholds lists the distinct relaxation levels from MinGroupScore down to MinThreshold.
// It is bounded even for configs that never went through Validate.
func (c FormationConfig) Thresholds() []float64 {
	levels := make([]float64, 0, 8)
	for k := 0; k < 2*maxThresholdLevels && len(levels) < maxThresholdLevels; k++ {
		t := round2(c.MinGroupScore - float64(k)*c.ThresholdStepDown)
		if math.IsNaN(t) || t < c.MinThreshold-thresholdEpsilon {
			break
		}
		if n := len(levels); n > 0 && levels[n-1] == t {
			continue
		}
		levels = append(levels, t)
	}
	return levels
}

func (c FormationConfig) seed() int64 {
	if c.RNGSeed == nil {
		return 0
	}
	return *c.RNGSeed
}

func inScoreRange(v float64) bool {
	return !math.IsNaN(v) && v >= scoreMin && v <= scoreMax
}

// SeedFor derives a stable rng seed from an event id so that repeated previews of the same
// event without an explicit seed produce the same grouping.
func SeedFor(eventID uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write(eventID[:])
	return int64(h.Sum64() & math.MaxInt64)
}
