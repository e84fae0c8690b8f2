package domain

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"
)

// KappaWeighting selects the disagreement cost used by weighted Cohen's
// kappa.
type KappaWeighting string

// Supported kappa weightings.
const (
	// WeightNone is classic unweighted Cohen's kappa.
	WeightNone KappaWeighting = "none"

	// WeightLinear costs disagreements by absolute bucket distance.
	WeightLinear KappaWeighting = "linear"

	// WeightQuadratic costs disagreements by squared bucket distance.
	WeightQuadratic KappaWeighting = "quadratic"
)

// CorrelationMethod selects the correlation statistic.
type CorrelationMethod string

// Supported correlation methods.
const (
	// Pearson is the product-moment correlation over raw scores.
	Pearson CorrelationMethod = "pearson"

	// Spearman is the rank correlation (Pearson over average ranks).
	Spearman CorrelationMethod = "spearman"
)

// ConfusionMatrix counts (human bucket, judge bucket) pairs over the
// discretized score range. Rows are human buckets, columns judge buckets,
// both ordered by ascending bucket value for deterministic iteration.
type ConfusionMatrix struct {
	// Labels holds the representative score of each bucket, ascending.
	Labels []float64 `json:"labels"`

	// Counts is indexed [human][judge].
	Counts [][]int `json:"counts"`
}

// At returns the count for the (human, judge) bucket pair.
func (m *ConfusionMatrix) At(human, judge int) int { return m.Counts[human][judge] }

// Total returns the sum of all cells, which equals the sample size.
func (m *ConfusionMatrix) Total() int {
	total := 0
	for _, row := range m.Counts {
		for _, c := range row {
			total += c
		}
	}
	return total
}

// RowTotals returns per-bucket counts on the human side.
func (m *ConfusionMatrix) RowTotals() []int {
	totals := make([]int, len(m.Counts))
	for i, row := range m.Counts {
		for _, c := range row {
			totals[i] += c
		}
	}
	return totals
}

// ColTotals returns per-bucket counts on the judge side.
func (m *ConfusionMatrix) ColTotals() []int {
	totals := make([]int, len(m.Labels))
	for _, row := range m.Counts {
		for j, c := range row {
			totals[j] += c
		}
	}
	return totals
}

// JudgeConfig identifies a comparable judge configuration. Two configs with
// identical fields are the same configuration for ranking and deduplication.
type JudgeConfig struct {
	// Name labels the configuration in results and summaries.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Prompt is the system prompt that defines how the judge evaluates.
	Prompt string `yaml:"prompt" json:"prompt" validate:"required"`

	// Model is the provider model or deployment identifier. Empty means the
	// executor's default model.
	Model string `yaml:"model" json:"model"`

	// Temperature controls randomness in judge scoring.
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"min=0,max=2"`

	// Params carries any additional parameters that affect judge output.
	Params map[string]string `yaml:"params" json:"params,omitempty"`
}

// Validate checks that the configuration is usable.
func (c JudgeConfig) Validate() error {
	if c.Prompt == "" {
		return fmt.Errorf("%w: judge prompt is empty", ErrJudgeNotConfigured)
	}
	if c.Temperature < 0 {
		return fmt.Errorf("temperature %.2f must not be negative", c.Temperature)
	}
	return nil
}

// Equal reports value equality across all fields, including extra params.
func (c JudgeConfig) Equal(o JudgeConfig) bool {
	return c.Name == o.Name &&
		c.Prompt == o.Prompt &&
		c.Model == o.Model &&
		c.Temperature == o.Temperature &&
		maps.Equal(c.Params, o.Params)
}

// Fingerprint returns a canonical string representation of the
// configuration, stable across param insertion order. It backs duplicate
// detection in comparisons.
func (c JudgeConfig) Fingerprint() string {
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "name=%q;prompt=%q;model=%q;temp=%g", c.Name, c.Prompt, c.Model, c.Temperature)
	for _, k := range keys {
		fmt.Fprintf(&b, ";%s=%q", k, c.Params[k])
	}
	return b.String()
}

// AlignmentResult is an immutable snapshot of alignment metrics for one
// judge configuration at one point in time. A new run produces a new result;
// results are never mutated.
type AlignmentResult struct {
	// Kappa is the chance-corrected agreement in [-1, 1].
	Kappa float64 `json:"kappa_score"`

	// KappaWeighting records which weighting produced Kappa.
	KappaWeighting KappaWeighting `json:"kappa_weighting"`

	// AgreementRate is the tolerance-based agreement fraction in [0, 1].
	AgreementRate float64 `json:"agreement_rate"`

	// Tolerance is the score-range tolerance AgreementRate was computed with.
	Tolerance float64 `json:"tolerance"`

	// Correlation is the correlation coefficient in [-1, 1]. Only meaningful
	// when CorrelationDefined is true.
	Correlation float64 `json:"correlation"`

	// CorrelationMethod records which statistic produced Correlation.
	CorrelationMethod CorrelationMethod `json:"correlation_method"`

	// CorrelationDefined is false when either score sequence had zero
	// variance and the correlation is undefined.
	CorrelationDefined bool `json:"correlation_defined"`

	// Confusion is the bucket-level confusion matrix.
	Confusion *ConfusionMatrix `json:"confusion_matrix,omitempty"`

	// SampleSize is the number of scorable items the metrics covered.
	SampleSize int `json:"sample_size"`

	// Excluded counts items dropped from the scorable set because their
	// judge call failed.
	Excluded int `json:"excluded_items"`

	// Range is the score range the metrics were computed against.
	Range ScoreRange `json:"score_range"`

	// Config is the judge configuration that produced the scores.
	Config JudgeConfig `json:"config"`

	// Timestamp records when the result was created.
	Timestamp time.Time `json:"timestamp"`
}

// ComparisonEntry pairs a judge configuration with its outcome: either an
// alignment result or the error that failed the whole configuration.
type ComparisonEntry struct {
	// Config is the configuration this entry describes.
	Config JudgeConfig `json:"config"`

	// Result holds the alignment metrics for a successful run, nil on
	// failure.
	Result *AlignmentResult `json:"result,omitempty"`

	// Items is the configuration's private scored copy of the item set.
	Items []EvaluationItem `json:"-"`

	// Err captures the failure for an unsuccessful run, nil on success.
	Err error `json:"-"`
}

// Failed reports whether this configuration's run failed.
func (e ComparisonEntry) Failed() bool { return e.Err != nil }

// ComparisonResults is the ordered outcome of a comparison run, one entry
// per registered configuration in registration order. It is read-only to
// callers.
type ComparisonResults struct {
	entries []ComparisonEntry
}

// NewComparisonResults builds a result set from entries in registration
// order. The slice is copied.
func NewComparisonResults(entries []ComparisonEntry) *ComparisonResults {
	out := make([]ComparisonEntry, len(entries))
	copy(out, entries)
	return &ComparisonResults{entries: out}
}

// Entries returns a copy of the entries in registration order.
func (r *ComparisonResults) Entries() []ComparisonEntry {
	out := make([]ComparisonEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of entries.
func (r *ComparisonResults) Len() int { return len(r.entries) }

// Best returns the most aligned successful entry: highest kappa, ties broken
// by higher agreement rate, then earlier registration order. It returns
// ErrNoSuccessfulRuns when every configuration failed.
func (r *ComparisonResults) Best() (ComparisonEntry, error) {
	bestIdx := -1
	for i, e := range r.entries {
		if e.Failed() || e.Result == nil {
			continue
		}
		if bestIdx < 0 {
			bestIdx = i
			continue
		}
		best := r.entries[bestIdx].Result
		if e.Result.Kappa > best.Kappa ||
			(e.Result.Kappa == best.Kappa && e.Result.AgreementRate > best.AgreementRate) {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return ComparisonEntry{}, ErrNoSuccessfulRuns
	}
	return r.entries[bestIdx], nil
}

// Disagreement describes one item on which successful configurations
// diverged beyond a threshold.
type Disagreement struct {
	// Item is the evaluated unit, without judge scores.
	Item EvaluationItem `json:"item"`

	// Scores maps configuration name to its judge score for the item.
	Scores map[string]float64 `json:"scores"`

	// Spread is the difference between the highest and lowest judge scores.
	Spread float64 `json:"spread"`
}

// Disagreements returns items where successful configurations' judge scores
// span more than threshold score-range units. Entries are ordered by the
// items' position in the comparison snapshot.
func (r *ComparisonResults) Disagreements(threshold float64) []Disagreement {
	var succeeded []ComparisonEntry
	for _, e := range r.entries {
		if !e.Failed() && len(e.Items) > 0 {
			succeeded = append(succeeded, e)
		}
	}
	if len(succeeded) < 2 {
		return nil
	}

	n := len(succeeded[0].Items)
	var out []Disagreement
	for i := 0; i < n; i++ {
		scores := make(map[string]float64, len(succeeded))
		var lo, hi float64
		first := true
		for _, e := range succeeded {
			if i >= len(e.Items) || e.Items[i].JudgeScore == nil {
				continue
			}
			s := *e.Items[i].JudgeScore
			scores[e.Config.Name] = s
			if first {
				lo, hi = s, s
				first = false
				continue
			}
			if s < lo {
				lo = s
			}
			if s > hi {
				hi = s
			}
		}
		if len(scores) < 2 || hi-lo <= threshold {
			continue
		}
		item := succeeded[0].Items[i].Clone()
		item.JudgeScore = nil
		out = append(out, Disagreement{Item: item, Scores: scores, Spread: hi - lo})
	}
	return out
}
