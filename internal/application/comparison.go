package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jasher4994/judgesync/internal/domain"
	"github.com/jasher4994/judgesync/internal/metrics"
	"github.com/jasher4994/judgesync/internal/ports"
)

// JudgeComparison runs several judge configurations against the same item
// set and ranks their alignment results. Every configuration operates on a
// fresh copy of the items with judge scores cleared, so one configuration's
// scores never leak into another's; configurations execute sequentially to
// bound peak concurrency.
type JudgeComparison struct {
	mu      sync.Mutex
	running atomic.Bool

	calc        *metrics.Calculator
	exec        ports.JudgeExecutor
	concurrency int
	snapshot    metrics.SnapshotOptions

	configs []domain.JudgeConfig
}

// ComparisonOption configures a JudgeComparison at construction.
type ComparisonOption func(*JudgeComparison)

// WithComparisonConcurrency bounds simultaneous judge calls within one
// configuration's batch.
func WithComparisonConcurrency(limit int) ComparisonOption {
	return func(c *JudgeComparison) { c.concurrency = limit }
}

// WithComparisonSnapshotOptions selects the metric variants recorded per
// configuration.
func WithComparisonSnapshotOptions(opts metrics.SnapshotOptions) ComparisonOption {
	return func(c *JudgeComparison) { c.snapshot = opts }
}

// NewJudgeComparison creates a comparison for the given score range and
// judge executor.
func NewJudgeComparison(rng domain.ScoreRange, exec ports.JudgeExecutor, opts ...ComparisonOption) (*JudgeComparison, error) {
	if exec == nil {
		return nil, fmt.Errorf("judge executor cannot be nil")
	}
	calc, err := metrics.NewCalculator(rng)
	if err != nil {
		return nil, err
	}

	c := &JudgeComparison{
		calc:        calc,
		exec:        exec,
		concurrency: DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AddConfigs registers configurations for comparison in order. A
// configuration equal by value to one already registered is rejected with
// ErrDuplicateConfig; re-running an identical judge would waste calls and
// make the ranking ambiguous.
func (c *JudgeComparison) AddConfigs(configs ...domain.JudgeConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]struct{}, len(c.configs)+len(configs))
	for _, existing := range c.configs {
		seen[existing.Fingerprint()] = struct{}{}
	}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config %q: %w", cfg.Name, err)
		}
		fp := cfg.Fingerprint()
		if _, dup := seen[fp]; dup {
			return fmt.Errorf("%w: %q", domain.ErrDuplicateConfig, cfg.Name)
		}
		seen[fp] = struct{}{}
		c.configs = append(c.configs, cfg)
	}
	return nil
}

// Configs returns the registered configurations in registration order.
func (c *JudgeComparison) Configs() []domain.JudgeConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.JudgeConfig, len(c.configs))
	copy(out, c.configs)
	return out
}

// RunComparison executes every registered configuration against the same
// item snapshot, in registration order, and collects one entry per
// configuration. A configuration whose judge execution fails (any item) is
// recorded as a failed entry and the comparison proceeds; an error is
// returned only when every configuration fails, or when the context is
// canceled, in which case entries completed so far are still returned.
func (c *JudgeComparison) RunComparison(ctx context.Context, items []domain.EvaluationItem) (*domain.ComparisonResults, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, domain.ErrConcurrentRun
	}
	defer c.running.Store(false)

	c.mu.Lock()
	configs := make([]domain.JudgeConfig, len(c.configs))
	copy(configs, c.configs)
	c.mu.Unlock()

	if len(configs) == 0 {
		return nil, fmt.Errorf("no judge configurations registered")
	}
	if len(items) == 0 {
		return nil, domain.ErrNoData
	}

	base := domain.CloneItems(items)
	entries := make([]domain.ComparisonEntry, 0, len(configs))

	for _, cfg := range configs {
		if ctx.Err() != nil {
			// Aborted mid-comparison: completed entries remain valid.
			return domain.NewComparisonResults(entries), ctx.Err()
		}
		entries = append(entries, c.runOne(ctx, cfg, base))
	}

	results := domain.NewComparisonResults(entries)
	if _, err := results.Best(); err != nil {
		failures := make([]error, 0, len(entries))
		for _, e := range entries {
			failures = append(failures, e.Err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrNoSuccessfulRuns, errors.Join(failures...))
	}
	return results, ctx.Err()
}

// runOne executes a single configuration over a fresh arena. Unlike tracker
// runs, any per-item failure marks the whole configuration failed; mixing
// partially-scored configurations into a ranking would not be
// apples-to-apples.
func (c *JudgeComparison) runOne(ctx context.Context, cfg domain.JudgeConfig, base []domain.EvaluationItem) domain.ComparisonEntry {
	arena := domain.CloneItems(base)

	itemErrs, err := runJudgeBatch(ctx, c.exec, cfg, arena, c.concurrency)
	if err != nil {
		return domain.ComparisonEntry{Config: cfg, Err: domain.NewJudgeExecutionError(cfg, err)}
	}
	if failed := collectErrs(itemErrs); len(failed) > 0 {
		return domain.ComparisonEntry{Config: cfg, Err: domain.NewJudgeExecutionError(cfg, errors.Join(failed...))}
	}

	result, err := c.calc.Snapshot(arena, c.snapshot)
	if err != nil {
		return domain.ComparisonEntry{Config: cfg, Err: domain.NewJudgeExecutionError(cfg, err)}
	}
	result.Config = cfg

	return domain.ComparisonEntry{Config: cfg, Result: &result, Items: arena}
}
