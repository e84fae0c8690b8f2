// Package metrics implements the alignment statistics between human and
// judge score sequences: Cohen's kappa (plain and weighted), tolerance-based
// agreement, Pearson/Spearman correlation, and confusion matrices. All
// operations are pure; identical input always produces identical output,
// which comparison ranking depends on.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jasher4994/judgesync/internal/domain"
)

// DefaultPercentageBins is the bucket count used to discretize continuous
// (percentage) scores. Twenty bins means each bin spans 5% of the range.
const DefaultPercentageBins = 20

// Calculator computes alignment metrics over evaluation items against a
// fixed score range. It is stateless apart from its configuration and safe
// for concurrent use.
type Calculator struct {
	rng  domain.ScoreRange
	bins int
}

// NewCalculator creates a Calculator for the given score range using
// DefaultPercentageBins for continuous discretization.
func NewCalculator(r domain.ScoreRange) (*Calculator, error) {
	return NewCalculatorWithBins(r, DefaultPercentageBins)
}

// NewCalculatorWithBins creates a Calculator with an explicit bin count for
// continuous ranges. The bin count has no effect on discrete ranges.
func NewCalculatorWithBins(r domain.ScoreRange, bins int) (*Calculator, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if bins < 2 {
		return nil, fmt.Errorf("bin count must be at least 2, got %d", bins)
	}
	return &Calculator{rng: r, bins: bins}, nil
}

// Range returns the score range the calculator operates on.
func (c *Calculator) Range() domain.ScoreRange { return c.rng }

// scorePair holds one item's (human, judge) scores.
type scorePair struct {
	human float64
	judge float64
}

// scorablePairs extracts the scores of items carrying both sides.
// Items missing either score are skipped; the caller decides whether that
// warrants surfacing a warning.
func scorablePairs(items []domain.EvaluationItem) []scorePair {
	pairs := make([]scorePair, 0, len(items))
	for _, it := range items {
		if it.Scorable() {
			pairs = append(pairs, scorePair{human: *it.HumanScore, judge: *it.JudgeScore})
		}
	}
	return pairs
}

// Kappa computes Cohen's kappa over the scorable items, optionally weighted
// by linear or quadratic bucket distance. Scores are discretized to the
// range's buckets first. The result lies in [-1, 1].
//
// When the chance-expected disagreement is zero (every item identical in the
// same bucket on both sides) the statistic is degenerate; perfect
// deterministic agreement with no variance is still perfect agreement, so
// 1.0 is returned instead of dividing by zero.
func (c *Calculator) Kappa(items []domain.EvaluationItem, weighting domain.KappaWeighting) (float64, error) {
	pairs := scorablePairs(items)
	if len(pairs) < 2 {
		return 0, fmt.Errorf("%w: kappa needs at least 2 scorable items, got %d",
			domain.ErrInsufficientData, len(pairs))
	}

	weight, err := weightFunc(weighting)
	if err != nil {
		return 0, err
	}

	k := c.rng.BucketCount(c.bins)
	counts := make([][]float64, k)
	for i := range counts {
		counts[i] = make([]float64, k)
	}
	rows := make([]float64, k)
	cols := make([]float64, k)
	for _, p := range pairs {
		h := c.rng.Bucket(p.human, c.bins)
		j := c.rng.Bucket(p.judge, c.bins)
		counts[h][j]++
		rows[h]++
		cols[j]++
	}

	// kappa = 1 - sum(w*observed) / sum(w*expected). With the 0/1 weight
	// this reduces to the classic (po - pe) / (1 - pe).
	n := float64(len(pairs))
	var observed, expected float64
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			w := weight(i, j, k)
			observed += w * counts[i][j]
			expected += w * rows[i] * cols[j] / n
		}
	}

	if expected == 0 {
		return 1.0, nil
	}
	return 1.0 - observed/expected, nil
}

// weightFunc returns the disagreement cost for a pair of bucket indexes.
func weightFunc(weighting domain.KappaWeighting) (func(i, j, k int) float64, error) {
	switch weighting {
	case domain.WeightNone, "":
		return func(i, j, _ int) float64 {
			if i == j {
				return 0
			}
			return 1
		}, nil
	case domain.WeightLinear:
		return func(i, j, k int) float64 {
			if k <= 1 {
				return 0
			}
			return math.Abs(float64(i-j)) / float64(k-1)
		}, nil
	case domain.WeightQuadratic:
		return func(i, j, k int) float64 {
			if k <= 1 {
				return 0
			}
			d := float64(i-j) / float64(k-1)
			return d * d
		}, nil
	default:
		return nil, fmt.Errorf("unknown kappa weighting %q", weighting)
	}
}

// AgreementRate returns the fraction of scorable items whose human and judge
// scores differ by at most tolerance, expressed in score-range units.
// Tolerance zero means exact match.
func (c *Calculator) AgreementRate(items []domain.EvaluationItem, tolerance float64) (float64, error) {
	if tolerance < 0 {
		return 0, fmt.Errorf("tolerance must be >= 0, got %g", tolerance)
	}
	pairs := scorablePairs(items)
	if len(pairs) == 0 {
		return 0, fmt.Errorf("%w: agreement rate needs at least 1 scorable item",
			domain.ErrInsufficientData)
	}

	agreed := 0
	for _, p := range pairs {
		if math.Abs(p.human-p.judge) <= tolerance {
			agreed++
		}
	}
	return float64(agreed) / float64(len(pairs)), nil
}

// Correlation computes the correlation between the human and judge score
// sequences using the given method. It returns ErrInsufficientData for
// fewer than 2 scorable items and ErrZeroVariance when either sequence is
// constant, in which case the statistic is undefined.
func (c *Calculator) Correlation(items []domain.EvaluationItem, method domain.CorrelationMethod) (float64, error) {
	pairs := scorablePairs(items)
	if len(pairs) < 2 {
		return 0, fmt.Errorf("%w: correlation needs at least 2 scorable items, got %d",
			domain.ErrInsufficientData, len(pairs))
	}

	humans := make([]float64, len(pairs))
	judges := make([]float64, len(pairs))
	for i, p := range pairs {
		humans[i] = p.human
		judges[i] = p.judge
	}

	switch method {
	case domain.Pearson, "":
		return pearson(humans, judges)
	case domain.Spearman:
		return pearson(ranks(humans), ranks(judges))
	default:
		return 0, fmt.Errorf("unknown correlation method %q", method)
	}
}

// pearson computes the product-moment correlation of two equal-length
// sequences.
func pearson(x, y []float64) (float64, error) {
	n := float64(len(x))
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= n
	my /= n

	var num, dx2, dy2 float64
	for i := range x {
		dx := x[i] - mx
		dy := y[i] - my
		num += dx * dy
		dx2 += dx * dx
		dy2 += dy * dy
	}

	denom := math.Sqrt(dx2 * dy2)
	if denom == 0 {
		return 0, domain.ErrZeroVariance
	}
	return num / denom, nil
}

// ranks converts values to fractional ranks, averaging ties. This is the
// standard preprocessing for Spearman's rank correlation.
func ranks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	out := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		// Average rank for the tie group spanning positions i..j.
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}

// ConfusionMatrix builds the (human bucket, judge bucket) count matrix over
// the scorable items. Rows and columns are ordered by ascending bucket
// value; the sum of all cells equals the scorable sample size.
func (c *Calculator) ConfusionMatrix(items []domain.EvaluationItem) *domain.ConfusionMatrix {
	k := c.rng.BucketCount(c.bins)
	labels := make([]float64, k)
	counts := make([][]int, k)
	for i := 0; i < k; i++ {
		labels[i] = c.rng.BucketValue(i, c.bins)
		counts[i] = make([]int, k)
	}
	for _, p := range scorablePairs(items) {
		counts[c.rng.Bucket(p.human, c.bins)][c.rng.Bucket(p.judge, c.bins)]++
	}
	return &domain.ConfusionMatrix{Labels: labels, Counts: counts}
}

// SnapshotOptions selects the metric variants captured in an
// AlignmentResult.
type SnapshotOptions struct {
	// Weighting selects the kappa variant; empty means unweighted.
	Weighting domain.KappaWeighting

	// Tolerance is the agreement tolerance in score-range units.
	Tolerance float64

	// Method selects the correlation statistic; empty means Pearson.
	Method domain.CorrelationMethod
}

// Snapshot computes all alignment metrics over the items and assembles an
// immutable AlignmentResult. An undefined correlation (zero variance) does
// not fail the snapshot; the result records it as undefined instead of
// defaulting to zero. Kappa and agreement errors propagate.
func (c *Calculator) Snapshot(items []domain.EvaluationItem, opts SnapshotOptions) (domain.AlignmentResult, error) {
	kappa, err := c.Kappa(items, opts.Weighting)
	if err != nil {
		return domain.AlignmentResult{}, err
	}
	agreement, err := c.AgreementRate(items, opts.Tolerance)
	if err != nil {
		return domain.AlignmentResult{}, err
	}

	method := opts.Method
	if method == "" {
		method = domain.Pearson
	}
	correlation, corrErr := c.Correlation(items, method)
	defined := corrErr == nil
	if corrErr != nil && !errors.Is(corrErr, domain.ErrZeroVariance) {
		return domain.AlignmentResult{}, corrErr
	}

	weighting := opts.Weighting
	if weighting == "" {
		weighting = domain.WeightNone
	}

	sample := len(scorablePairs(items))
	return domain.AlignmentResult{
		Kappa:              kappa,
		KappaWeighting:     weighting,
		AgreementRate:      agreement,
		Tolerance:          opts.Tolerance,
		Correlation:        correlation,
		CorrelationMethod:  method,
		CorrelationDefined: defined,
		Confusion:          c.ConfusionMatrix(items),
		SampleSize:         sample,
		Range:              c.rng,
		Timestamp:          time.Now().UTC(),
	}, nil
}
