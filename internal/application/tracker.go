package application

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jasher4994/judgesync/internal/domain"
	"github.com/jasher4994/judgesync/internal/metrics"
	"github.com/jasher4994/judgesync/internal/ports"
)

// AlignmentTracker owns the working evaluation item set, the active judge
// configuration, and the running history of alignment results. It exposes
// the single-configuration evaluation workflow that JudgeComparison reuses
// per configuration.
//
// Only one run may mutate the item set at a time; a second concurrent
// RunAlignmentTest is rejected with ErrConcurrentRun rather than serialized.
type AlignmentTracker struct {
	mu      sync.Mutex
	running atomic.Bool

	calc        *metrics.Calculator
	exec        ports.JudgeExecutor
	loader      ports.DataLoader
	concurrency int
	snapshot    metrics.SnapshotOptions

	items  []domain.EvaluationItem
	index  map[domain.ItemKey]int
	config *domain.JudgeConfig

	history []domain.AlignmentResult
}

// TrackerOption configures an AlignmentTracker at construction.
type TrackerOption func(*AlignmentTracker)

// WithDataLoader supplies the loader used by LoadHumanScores.
func WithDataLoader(l ports.DataLoader) TrackerOption {
	return func(t *AlignmentTracker) { t.loader = l }
}

// WithConcurrency bounds simultaneous judge calls within one run.
func WithConcurrency(limit int) TrackerOption {
	return func(t *AlignmentTracker) { t.concurrency = limit }
}

// WithSnapshotOptions selects the metric variants recorded per run.
func WithSnapshotOptions(opts metrics.SnapshotOptions) TrackerOption {
	return func(t *AlignmentTracker) { t.snapshot = opts }
}

// NewAlignmentTracker creates a tracker for the given score range and judge
// executor. The executor performs the actual LLM calls; the tracker never
// touches the network itself.
func NewAlignmentTracker(rng domain.ScoreRange, exec ports.JudgeExecutor, opts ...TrackerOption) (*AlignmentTracker, error) {
	if exec == nil {
		return nil, fmt.Errorf("judge executor cannot be nil")
	}
	calc, err := metrics.NewCalculator(rng)
	if err != nil {
		return nil, err
	}

	t := &AlignmentTracker{
		calc:        calc,
		exec:        exec,
		concurrency: DefaultMaxConcurrency,
		index:       make(map[domain.ItemKey]int),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// AddEvaluationItem adds one item to the working set. A nil humanScore adds
// the item without ground truth; a non-nil score must lie within the active
// score range. Adding an existing (question, response) pair overwrites its
// human score and metadata instead of creating a duplicate.
func (t *AlignmentTracker) AddEvaluationItem(question, response string, humanScore *float64, metadata map[string]any) error {
	item, err := domain.NewEvaluationItem(question, response)
	if err != nil {
		return err
	}
	if humanScore != nil && !t.calc.Range().Contains(*humanScore) {
		return fmt.Errorf("%w: human score %.3f outside %s",
			domain.ErrScoreRange, *humanScore, t.calc.Range())
	}
	item.HumanScore = humanScore
	item.Metadata = metadata

	t.mu.Lock()
	defer t.mu.Unlock()
	t.merge(item)
	return nil
}

// merge inserts an item or updates the existing one with the same identity.
// Callers must hold t.mu.
func (t *AlignmentTracker) merge(item domain.EvaluationItem) {
	if i, ok := t.index[item.Key()]; ok {
		t.items[i].HumanScore = item.HumanScore
		if item.Metadata != nil {
			t.items[i].Metadata = item.Metadata
		}
		return
	}
	t.index[item.Key()] = len(t.items)
	t.items = append(t.items, item)
}

// LoadHumanScores reads human-scored items from the configured data loader
// and merges them into the working set, deduplicating by (question,
// response) identity. A later load overwrites an earlier item's human score.
func (t *AlignmentTracker) LoadHumanScores(ctx context.Context, source string) error {
	if t.loader == nil {
		return fmt.Errorf("no data loader configured")
	}
	loaded, err := t.loader.Load(ctx, source)
	if err != nil {
		return fmt.Errorf("loading human scores from %s: %w", source, err)
	}
	for _, item := range loaded {
		if item.HumanScore != nil && !t.calc.Range().Contains(*item.HumanScore) {
			return fmt.Errorf("%w: loaded score %.3f outside %s",
				domain.ErrScoreRange, *item.HumanScore, t.calc.Range())
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, item := range loaded {
		t.merge(item)
	}
	return nil
}

// SetJudge records the active judge configuration. It performs no network
// calls.
func (t *AlignmentTracker) SetJudge(config domain.JudgeConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.config = &config
	return nil
}

// Config returns the active judge configuration, if one has been set.
func (t *AlignmentTracker) Config() (domain.JudgeConfig, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.config == nil {
		return domain.JudgeConfig{}, false
	}
	return *t.config, true
}

// Items returns a deep copy of the working item set in insertion order.
func (t *AlignmentTracker) Items() []domain.EvaluationItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.EvaluationItem, len(t.items))
	for i, it := range t.items {
		out[i] = it.Clone()
	}
	return out
}

// Len returns the number of items in the working set.
func (t *AlignmentTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// RunAlignmentTest executes the judge once per item carrying a human score,
// writes the returned scores back, and computes an AlignmentResult over the
// scorable subset. Items whose judge call failed are excluded from the
// metrics and counted on the result.
//
// The run operates on a private copy of the item set; judge scores are
// committed back to the tracker only after the whole batch completes, so an
// aborted run never leaves partial state visible.
func (t *AlignmentTracker) RunAlignmentTest(ctx context.Context) (domain.AlignmentResult, error) {
	if !t.running.CompareAndSwap(false, true) {
		return domain.AlignmentResult{}, domain.ErrConcurrentRun
	}
	defer t.running.Store(false)

	t.mu.Lock()
	if len(t.items) == 0 {
		t.mu.Unlock()
		return domain.AlignmentResult{}, domain.ErrNoData
	}
	if t.config == nil {
		t.mu.Unlock()
		return domain.AlignmentResult{}, domain.ErrJudgeNotConfigured
	}
	cfg := *t.config
	arena := domain.CloneItems(t.items)
	t.mu.Unlock()

	itemErrs, err := runJudgeBatch(ctx, t.exec, cfg, arena, t.concurrency)
	if err != nil {
		return domain.AlignmentResult{}, fmt.Errorf("alignment run aborted: %w", err)
	}
	excluded := len(collectErrs(itemErrs))

	result, err := t.calc.Snapshot(arena, t.snapshot)
	if err != nil {
		return domain.AlignmentResult{}, err
	}
	result.Config = cfg
	result.Excluded = excluded

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, it := range arena {
		if i, ok := t.index[it.Key()]; ok {
			t.items[i].JudgeScore = it.JudgeScore
		}
	}
	t.history = append(t.history, result)
	return result, nil
}

// ExportPrompt writes the active configuration's prompt text verbatim to
// path.
func (t *AlignmentTracker) ExportPrompt(path string) error {
	cfg, ok := t.Config()
	if !ok {
		return domain.ErrJudgeNotConfigured
	}
	if err := os.WriteFile(path, []byte(cfg.Prompt), 0o644); err != nil {
		return fmt.Errorf("exporting prompt to %s: %w", path, err)
	}
	return nil
}

// History returns a copy of the alignment results recorded so far, oldest
// first.
func (t *AlignmentTracker) History() []domain.AlignmentResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.AlignmentResult, len(t.history))
	copy(out, t.history)
	return out
}

// BestResult returns the historical result with the highest kappa score.
// Earlier runs win ties so the selection is deterministic.
func (t *AlignmentTracker) BestResult() (domain.AlignmentResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.history) == 0 {
		return domain.AlignmentResult{}, domain.ErrNoSuccessfulRuns
	}
	best := t.history[0]
	for _, r := range t.history[1:] {
		if r.Kappa > best.Kappa {
			best = r
		}
	}
	return best, nil
}

// ClearData removes all items from the working set. History is retained.
func (t *AlignmentTracker) ClearData() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = nil
	t.index = make(map[domain.ItemKey]int)
}

// Summary returns a human-readable description of the tracker state,
// including how many items are missing a score side and therefore cannot
// contribute to alignment metrics.
func (t *AlignmentTracker) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	withHuman := 0
	scorable := 0
	for _, it := range t.items {
		if it.HasHumanScore() {
			withHuman++
		}
		if it.Scorable() {
			scorable++
		}
	}

	var b strings.Builder
	b.WriteString("AlignmentTracker summary:\n")
	fmt.Fprintf(&b, "  score range: %s\n", t.calc.Range())
	fmt.Fprintf(&b, "  items loaded: %d\n", len(t.items))
	fmt.Fprintf(&b, "  items with human scores: %d\n", withHuman)
	fmt.Fprintf(&b, "  scorable items: %d\n", scorable)
	if missing := len(t.items) - withHuman; missing > 0 {
		fmt.Fprintf(&b, "  warning: %d items lack a human score and are excluded from metrics\n", missing)
	}
	fmt.Fprintf(&b, "  judge configured: %t\n", t.config != nil)
	fmt.Fprintf(&b, "  tests run: %d\n", len(t.history))

	if len(t.history) > 0 {
		latest := t.history[len(t.history)-1]
		fmt.Fprintf(&b, "  latest kappa: %.3f\n", latest.Kappa)
		fmt.Fprintf(&b, "  latest agreement rate: %.1f%%\n", latest.AgreementRate*100)
	}
	return b.String()
}
