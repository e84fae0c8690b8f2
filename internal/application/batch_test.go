package application

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasher4994/judgesync/internal/domain"
	"github.com/jasher4994/judgesync/internal/testutils"
)

// TestRunJudgeBatchConcurrencyBound verifies that no more than the
// configured number of judge calls run simultaneously.
func TestRunJudgeBatchConcurrencyBound(t *testing.T) {
	const limit = 3

	var inFlight, peak atomic.Int64
	var mu sync.Mutex
	judge := &testutils.StubJudge{ScoreFn: func(_, _ string, _ domain.JudgeConfig) (float64, error) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		mu.Lock()
		if current > peak.Load() {
			peak.Store(current)
		}
		mu.Unlock()
		return 3, nil
	}}

	items := make([]domain.EvaluationItem, 20)
	for i := range items {
		items[i] = domain.EvaluationItem{
			Question:   "q",
			Response:   "r",
			HumanScore: domain.Float(3),
		}
	}

	itemErrs, err := runJudgeBatch(context.Background(), judge, domain.JudgeConfig{Name: "j", Prompt: "p"}, items, limit)
	require.NoError(t, err)
	assert.Empty(t, collectErrs(itemErrs))
	assert.LessOrEqual(t, peak.Load(), int64(limit))
	assert.Equal(t, 20, judge.Calls())
}

// TestRunJudgeBatchIndexStability verifies that scores land on their
// originating items regardless of completion order.
func TestRunJudgeBatchIndexStability(t *testing.T) {
	judge := &testutils.StubJudge{ScoreFn: func(question, _ string, _ domain.JudgeConfig) (float64, error) {
		return float64(question[1] - '0'), nil
	}}

	items := []domain.EvaluationItem{
		{Question: "q1", Response: "r", HumanScore: domain.Float(1)},
		{Question: "q2", Response: "r", HumanScore: domain.Float(2)},
		{Question: "q3", Response: "r", HumanScore: domain.Float(3)},
		{Question: "q4", Response: "r", HumanScore: domain.Float(4)},
		{Question: "q5", Response: "r", HumanScore: domain.Float(5)},
	}

	_, err := runJudgeBatch(context.Background(), judge, domain.JudgeConfig{Name: "j", Prompt: "p"}, items, 2)
	require.NoError(t, err)

	for i, it := range items {
		require.NotNil(t, it.JudgeScore, "item %d unscored", i)
		assert.Equal(t, float64(i+1), *it.JudgeScore)
	}
}
