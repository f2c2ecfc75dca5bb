package matching

import (
	"fmt"
	"math"
)

// Traits is the six-axis personality vector used as matching input.
// Values are expected on the 0..Scale range (0..100 by default).
type Traits struct {
	Energy    float64 `json:"energy"`
	Openness  float64 `json:"openness"`
	Structure float64 `json:"structure"`
	Affect    float64 `json:"affect"`
	Comfort   float64 `json:"comfort"`
	Lifestyle float64 `json:"lifestyle"`
}

func (t Traits) values() [axisCount]float64 {
	return [axisCount]float64{t.Energy, t.Openness, t.Structure, t.Affect, t.Comfort, t.Lifestyle}
}

// AxisMode selects whether an axis rewards similar or complementary values
type AxisMode string

const (
	AxisModeSimilar    AxisMode = "SIMILAR"
	AxisModeComplement AxisMode = "COMPLEMENT"
)

const (
	axisCount = 6

	defaultScale             = 100.0
	defaultComplementGap     = 0.5
	scoreMin, scoreMax       = 0.0, 100.0
	thresholdEpsilon         = 1e-9
	defaultMatrixConcurrency = 4
)

var axisNames = [axisCount]string{"energy", "openness", "structure", "affect", "comfort", "lifestyle"}

// AxisRule configures the contribution of one trait axis.
// TargetGap is the ideal normalized distance for COMPLEMENT axes (0..1).
type AxisRule struct {
	Weight    float64  `yaml:"weight" json:"weight"`
	Mode      AxisMode `yaml:"mode" json:"mode"`
	TargetGap float64  `yaml:"target_gap" json:"targetGap,omitempty"`
}

// ScoringConfig holds the operator-editable weighting scheme for the compatibility score
type ScoringConfig struct {
	Scale     float64  `yaml:"scale" json:"scale,omitempty"`
	Energy    AxisRule `yaml:"energy" json:"energy"`
	Openness  AxisRule `yaml:"openness" json:"openness"`
	Structure AxisRule `yaml:"structure" json:"structure"`
	Affect    AxisRule `yaml:"affect" json:"affect"`
	Comfort   AxisRule `yaml:"comfort" json:"comfort"`
	Lifestyle AxisRule `yaml:"lifestyle" json:"lifestyle"`
}

// DefaultScoringConfig returns an equal-weight, all-similarity configuration.
// Production weights come from configs/config.yaml.
func DefaultScoringConfig() ScoringConfig {
	similar := AxisRule{Weight: 1, Mode: AxisModeSimilar}
	return ScoringConfig{
		Scale:     defaultScale,
		Energy:    similar,
		Openness:  similar,
		Structure: similar,
		Affect:    similar,
		Comfort:   similar,
		Lifestyle: similar,
	}
}

func (c ScoringConfig) rules() [axisCount]AxisRule {
	return [axisCount]AxisRule{c.Energy, c.Openness, c.Structure, c.Affect, c.Comfort, c.Lifestyle}
}

// IsZero reports whether no axis has been configured
func (c ScoringConfig) IsZero() bool {
	for _, r := range c.rules() {
		if r != (AxisRule{}) {
			return false
		}
	}
	return true
}

// Validate checks weights, modes and gaps
func (c ScoringConfig) Validate() error {
	if c.Scale < 0 || math.IsNaN(c.Scale) {
		return fmt.Errorf("%w: scoring scale must be positive", ErrInvalidConfig)
	}
	total := 0.0
	for i, r := range c.rules() {
		if r.Weight < 0 || math.IsNaN(r.Weight) || math.IsInf(r.Weight, 0) {
			return fmt.Errorf("%w: %s weight must be >= 0", ErrInvalidConfig, axisNames[i])
		}
		switch r.Mode {
		case AxisModeSimilar, AxisModeComplement:
		case "":
			if r.Weight > 0 {
				return fmt.Errorf("%w: %s mode is required", ErrInvalidConfig, axisNames[i])
			}
		default:
			return fmt.Errorf("%w: %s has unknown mode %q", ErrInvalidConfig, axisNames[i], r.Mode)
		}
		if r.TargetGap < 0 || r.TargetGap > 1 {
			return fmt.Errorf("%w: %s target gap must be within [0,1]", ErrInvalidConfig, axisNames[i])
		}
		total += r.Weight
	}
	if total <= 0 {
		return fmt.Errorf("%w: at least one axis weight must be positive", ErrInvalidConfig)
	}
	return nil
}

// Scorer computes pairwise compatibility scores. It is stateless and safe for concurrent use.
type Scorer struct {
	scale   float64
	weights [axisCount]float64
	targets [axisCount]float64
	total   float64
}

// NewScorer validates cfg and builds a Scorer
func NewScorer(cfg ScoringConfig) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scorer{scale: cfg.Scale}
	if s.scale == 0 {
		s.scale = defaultScale
	}
	for i, r := range cfg.rules() {
		s.weights[i] = r.Weight
		if r.Mode == AxisModeComplement {
			s.targets[i] = r.TargetGap
			if s.targets[i] == 0 {
				s.targets[i] = defaultComplementGap
			}
		}
		s.total += r.Weight
	}
	return s, nil
}

// Score returns the compatibility of a and b in [0,100], rounded to two decimals.
// Score(a, b) == Score(b, a) for all inputs.
func (s *Scorer) Score(a, b Traits) float64 {
	av, bv := a.values(), b.values()
	sum := 0.0
	for i := 0; i < axisCount; i++ {
		w := s.weights[i]
		if w == 0 {
			continue
		}
		d := clamp(math.Abs(av[i]-bv[i])/s.scale, 0, 1)
		t := s.targets[i]
		span := math.Max(t, 1-t)
		sum += w * (1 - math.Abs(d-t)/span)
	}
	return round2(clamp(100*sum/s.total, scoreMin, scoreMax))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
