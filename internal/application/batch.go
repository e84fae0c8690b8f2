// Package application orchestrates alignment runs: the AlignmentTracker
// single-configuration workflow and the JudgeComparison multi-configuration
// workflow, both built on the same bounded-concurrency judge batch.
package application

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jasher4994/judgesync/internal/domain"
	"github.com/jasher4994/judgesync/internal/ports"
)

// DefaultMaxConcurrency bounds simultaneous judge calls within one run
// when no explicit limit is configured.
const DefaultMaxConcurrency = 5

// runJudgeBatch dispatches one judge call per item carrying a human score,
// bounded by limit concurrent calls, and writes each returned score back to
// the originating item by index. Completion order never affects which item
// a score lands on.
//
// Per-item failures are captured in the returned slice (indexed like items)
// rather than aborting the batch; only context cancellation stops dispatch
// early. The items slice is the caller's private arena for this run.
func runJudgeBatch(
	ctx context.Context,
	exec ports.JudgeExecutor,
	cfg domain.JudgeConfig,
	items []domain.EvaluationItem,
	limit int,
) ([]error, error) {
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}

	itemErrs := make([]error, len(items))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := range items {
		if items[i].HumanScore == nil {
			continue
		}
		item := items[i]

		g.Go(func() error {
			score, err := exec.Evaluate(gctx, item.Question, item.Response, cfg)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Keep the batch going; the caller decides whether a
				// per-item failure excludes the item or fails the run.
				itemErrs[i] = fmt.Errorf("item %d: %w", i, err)
				return nil
			}
			items[i].JudgeScore = domain.Float(score)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return itemErrs, err
	}
	return itemErrs, ctx.Err()
}

// collectErrs returns the non-nil entries of an indexed error slice.
func collectErrs(itemErrs []error) []error {
	var out []error
	for _, err := range itemErrs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
