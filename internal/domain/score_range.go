// Package domain contains pure, dependency-free domain models and types
// for the judge alignment engine.
package domain

import (
	"fmt"
	"math"
)

// ScoreRangeKind identifies one of the closed set of supported scoring
// scales. The set is deliberately small; new scales should be expressed
// through RangeCustom rather than new kinds.
type ScoreRangeKind string

// Supported scoring scale kinds.
const (
	// RangeBinary is a pass/fail scale: 0 or 1.
	RangeBinary ScoreRangeKind = "binary"

	// RangeFivePoint is a 1-5 Likert scale.
	RangeFivePoint ScoreRangeKind = "five_point"

	// RangeTenPoint is a 1-10 rating scale.
	RangeTenPoint ScoreRangeKind = "ten_point"

	// RangePercentage is a continuous 0-100 scale. Percentage scores are
	// bucketed into a fixed number of bins for kappa and confusion-matrix
	// purposes rather than snapped to a step.
	RangePercentage ScoreRangeKind = "percentage"

	// RangeCustom carries caller-supplied bounds and step.
	RangeCustom ScoreRangeKind = "custom"
)

// ScoreRange defines the valid numeric domain and discretization rules for
// a scoring scale. Use the constructor functions; the zero value is not a
// valid range.
type ScoreRange struct {
	// Kind tags which scale variant this range represents.
	Kind ScoreRangeKind `json:"kind"`

	// Min is the inclusive lower bound of valid scores.
	Min float64 `json:"min"`

	// Max is the inclusive upper bound of valid scores.
	Max float64 `json:"max"`

	// Step is the distance between adjacent valid scores for discrete
	// ranges. Zero means the range is continuous.
	Step float64 `json:"step,omitempty"`
}

// BinaryRange returns the pass/fail scale (0, 1).
func BinaryRange() ScoreRange {
	return ScoreRange{Kind: RangeBinary, Min: 0, Max: 1, Step: 1}
}

// FivePointRange returns the 1-5 Likert scale.
func FivePointRange() ScoreRange {
	return ScoreRange{Kind: RangeFivePoint, Min: 1, Max: 5, Step: 1}
}

// TenPointRange returns the 1-10 rating scale.
func TenPointRange() ScoreRange {
	return ScoreRange{Kind: RangeTenPoint, Min: 1, Max: 10, Step: 1}
}

// PercentageRange returns the continuous 0-100 scale.
func PercentageRange() ScoreRange {
	return ScoreRange{Kind: RangePercentage, Min: 0, Max: 100}
}

// CustomRange builds a discrete range with explicit bounds and step.
// It returns an error unless min < max, step > 0, and (max-min) is evenly
// divisible by step.
func CustomRange(min, max, step float64) (ScoreRange, error) {
	r := ScoreRange{Kind: RangeCustom, Min: min, Max: max, Step: step}
	if err := r.Validate(); err != nil {
		return ScoreRange{}, err
	}
	return r, nil
}

// Validate checks the range invariants: min < max, and for discrete ranges
// step > 0 with (max-min) evenly divisible by step.
func (r ScoreRange) Validate() error {
	if r.Kind == "" {
		return fmt.Errorf("%w: score range kind is empty", ErrScoreRange)
	}
	if !(r.Min < r.Max) {
		return fmt.Errorf("%w: min %.3f must be less than max %.3f", ErrScoreRange, r.Min, r.Max)
	}
	if r.Continuous() {
		return nil
	}
	if r.Step <= 0 {
		return fmt.Errorf("%w: step must be positive, got %.3f", ErrScoreRange, r.Step)
	}
	span := r.Max - r.Min
	steps := span / r.Step
	if math.Abs(steps-math.Round(steps)) > 1e-9 {
		return fmt.Errorf("%w: span %.3f is not evenly divisible by step %.3f", ErrScoreRange, span, r.Step)
	}
	return nil
}

// Continuous reports whether the range has no step discretization.
// Only the percentage scale is continuous.
func (r ScoreRange) Continuous() bool { return r.Kind == RangePercentage }

// Contains reports whether score lies within the range bounds.
func (r ScoreRange) Contains(score float64) bool {
	return score >= r.Min && score <= r.Max
}

// Levels returns the number of discrete score values for a stepped range.
// It is not meaningful for continuous ranges; callers bucket those with an
// explicit bin count instead.
func (r ScoreRange) Levels() int {
	if r.Continuous() || r.Step <= 0 {
		return 0
	}
	return int(math.Round((r.Max-r.Min)/r.Step)) + 1
}

// BucketCount returns the number of buckets scores discretize into.
// Discrete ranges have one bucket per level; continuous ranges use the
// supplied bin count (each bin spanning (max-min)/bins of the range).
func (r ScoreRange) BucketCount(bins int) int {
	if r.Continuous() {
		return bins
	}
	return r.Levels()
}

// Bucket maps a score to its bucket index in [0, BucketCount(bins)).
// Discrete scores snap to the nearest step; continuous scores fall into the
// bin covering them, with the upper bound folded into the last bin.
func (r ScoreRange) Bucket(score float64, bins int) int {
	if r.Continuous() {
		if bins <= 0 {
			return 0
		}
		width := (r.Max - r.Min) / float64(bins)
		idx := int(math.Floor((score - r.Min) / width))
		if idx < 0 {
			idx = 0
		}
		if idx >= bins {
			idx = bins - 1
		}
		return idx
	}
	idx := int(math.Round((score - r.Min) / r.Step))
	if idx < 0 {
		idx = 0
	}
	if max := r.Levels() - 1; idx > max {
		idx = max
	}
	return idx
}

// BucketValue returns the representative score for a bucket index: the exact
// step value for discrete ranges, the bin lower bound for continuous ones.
// It is the inverse of Bucket for display and confusion-matrix labeling.
func (r ScoreRange) BucketValue(idx, bins int) float64 {
	if r.Continuous() {
		if bins <= 0 {
			return r.Min
		}
		width := (r.Max - r.Min) / float64(bins)
		return r.Min + float64(idx)*width
	}
	return r.Min + float64(idx)*r.Step
}

// String returns a short human-readable description of the range.
func (r ScoreRange) String() string {
	if r.Continuous() {
		return fmt.Sprintf("%s[%.0f-%.0f]", r.Kind, r.Min, r.Max)
	}
	return fmt.Sprintf("%s[%g-%g/%g]", r.Kind, r.Min, r.Max, r.Step)
}
