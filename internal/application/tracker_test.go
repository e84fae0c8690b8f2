package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasher4994/judgesync/internal/domain"
	"github.com/jasher4994/judgesync/internal/testutils"
)

func newTracker(t *testing.T, judge *testutils.StubJudge, opts ...TrackerOption) *AlignmentTracker {
	t.Helper()
	tracker, err := NewAlignmentTracker(domain.FivePointRange(), judge, opts...)
	require.NoError(t, err)
	return tracker
}

func addItems(t *testing.T, tracker *AlignmentTracker, scores map[string]float64) {
	t.Helper()
	for question, score := range scores {
		require.NoError(t, tracker.AddEvaluationItem(question, "response to "+question, domain.Float(score), nil))
	}
}

// TestNewAlignmentTracker verifies construction validation.
func TestNewAlignmentTracker(t *testing.T) {
	t.Run("nil executor", func(t *testing.T) {
		_, err := NewAlignmentTracker(domain.FivePointRange(), nil)
		assert.Error(t, err)
	})

	t.Run("invalid range", func(t *testing.T) {
		_, err := NewAlignmentTracker(domain.ScoreRange{}, &testutils.StubJudge{})
		assert.ErrorIs(t, err, domain.ErrScoreRange)
	})
}

// TestAddEvaluationItem verifies range checking and duplicate merging.
func TestAddEvaluationItem(t *testing.T) {
	tracker := newTracker(t, &testutils.StubJudge{})

	t.Run("rejects out-of-range human score", func(t *testing.T) {
		err := tracker.AddEvaluationItem("q", "r", domain.Float(6), nil)
		assert.ErrorIs(t, err, domain.ErrScoreRange)
		assert.Equal(t, 0, tracker.Len())
	})

	t.Run("accepts item without human score", func(t *testing.T) {
		require.NoError(t, tracker.AddEvaluationItem("unscored", "r", nil, nil))
		assert.Equal(t, 1, tracker.Len())
	})

	t.Run("same pair updates instead of duplicating", func(t *testing.T) {
		require.NoError(t, tracker.AddEvaluationItem("q1", "r1", domain.Float(2), nil))
		require.NoError(t, tracker.AddEvaluationItem("q1", "r1", domain.Float(4), map[string]any{"pass": 2}))

		assert.Equal(t, 2, tracker.Len())
		for _, it := range tracker.Items() {
			if it.Question == "q1" {
				assert.Equal(t, 4.0, *it.HumanScore)
				assert.Equal(t, 2, it.Metadata["pass"])
			}
		}
	})
}

// stubLoader returns canned items for any source.
type stubLoader struct {
	items []domain.EvaluationItem
	err   error
}

func (s *stubLoader) Load(_ context.Context, _ string) ([]domain.EvaluationItem, error) {
	return s.items, s.err
}

// TestLoadHumanScores verifies loader wiring, merging, and range validation.
func TestLoadHumanScores(t *testing.T) {
	t.Run("no loader configured", func(t *testing.T) {
		tracker := newTracker(t, &testutils.StubJudge{})
		assert.Error(t, tracker.LoadHumanScores(context.Background(), "scores.csv"))
	})

	t.Run("merges loaded items", func(t *testing.T) {
		loader := &stubLoader{items: []domain.EvaluationItem{
			{Question: "q1", Response: "r1", HumanScore: domain.Float(3)},
			{Question: "q2", Response: "r2", HumanScore: domain.Float(5)},
			{Question: "q1", Response: "r1", HumanScore: domain.Float(4)},
		}}
		tracker := newTracker(t, &testutils.StubJudge{}, WithDataLoader(loader))

		require.NoError(t, tracker.LoadHumanScores(context.Background(), "scores.csv"))
		assert.Equal(t, 2, tracker.Len())
	})

	t.Run("rejects out-of-range loaded scores before merging", func(t *testing.T) {
		loader := &stubLoader{items: []domain.EvaluationItem{
			{Question: "q1", Response: "r1", HumanScore: domain.Float(3)},
			{Question: "q2", Response: "r2", HumanScore: domain.Float(42)},
		}}
		tracker := newTracker(t, &testutils.StubJudge{}, WithDataLoader(loader))

		err := tracker.LoadHumanScores(context.Background(), "scores.csv")
		assert.ErrorIs(t, err, domain.ErrScoreRange)
		assert.Equal(t, 0, tracker.Len())
	})
}

// TestRunAlignmentTest verifies the full single-configuration workflow.
func TestRunAlignmentTest(t *testing.T) {
	config := domain.JudgeConfig{Name: "strict", Prompt: "Score strictly."}

	t.Run("no data", func(t *testing.T) {
		tracker := newTracker(t, &testutils.StubJudge{})
		require.NoError(t, tracker.SetJudge(config))
		_, err := tracker.RunAlignmentTest(context.Background())
		assert.ErrorIs(t, err, domain.ErrNoData)
	})

	t.Run("no judge", func(t *testing.T) {
		tracker := newTracker(t, &testutils.StubJudge{})
		addItems(t, tracker, map[string]float64{"q1": 3, "q2": 4})
		_, err := tracker.RunAlignmentTest(context.Background())
		assert.ErrorIs(t, err, domain.ErrJudgeNotConfigured)
	})

	t.Run("perfect judge", func(t *testing.T) {
		judge := &testutils.StubJudge{Scores: map[string]float64{"q1": 1, "q2": 3, "q3": 5}}
		tracker := newTracker(t, judge)
		addItems(t, tracker, map[string]float64{"q1": 1, "q2": 3, "q3": 5})
		require.NoError(t, tracker.SetJudge(config))

		result, err := tracker.RunAlignmentTest(context.Background())
		require.NoError(t, err)

		assert.InDelta(t, 1.0, result.Kappa, 1e-12)
		assert.Equal(t, 1.0, result.AgreementRate)
		assert.Equal(t, 3, result.SampleSize)
		assert.Zero(t, result.Excluded)
		assert.Equal(t, config.Name, result.Config.Name)
		assert.Equal(t, 3, judge.Calls())

		// Judge scores are committed back to the working set.
		for _, it := range tracker.Items() {
			assert.True(t, it.Scorable())
		}
	})

	t.Run("items without human scores are not sent to the judge", func(t *testing.T) {
		judge := &testutils.StubJudge{Scores: map[string]float64{"q1": 3, "q2": 4}}
		tracker := newTracker(t, judge)
		addItems(t, tracker, map[string]float64{"q1": 3, "q2": 4})
		require.NoError(t, tracker.AddEvaluationItem("unscored", "r", nil, nil))
		require.NoError(t, tracker.SetJudge(config))

		_, err := tracker.RunAlignmentTest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, judge.Calls())
	})

	t.Run("per-item failures are excluded and counted", func(t *testing.T) {
		judgeErr := errors.New("rate limited")
		judge := &testutils.StubJudge{ScoreFn: func(question, _ string, _ domain.JudgeConfig) (float64, error) {
			if question == "q2" {
				return 0, judgeErr
			}
			return 3, nil
		}}
		tracker := newTracker(t, judge)
		addItems(t, tracker, map[string]float64{"q1": 3, "q2": 4, "q3": 3})
		require.NoError(t, tracker.SetJudge(config))

		result, err := tracker.RunAlignmentTest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, result.SampleSize)
		assert.Equal(t, 1, result.Excluded)
	})

	t.Run("canceled context aborts the run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		tracker := newTracker(t, &testutils.StubJudge{Scores: map[string]float64{"q1": 3, "q2": 4}})
		addItems(t, tracker, map[string]float64{"q1": 3, "q2": 4})
		require.NoError(t, tracker.SetJudge(config))

		_, err := tracker.RunAlignmentTest(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("concurrent runs are rejected", func(t *testing.T) {
		release := make(chan struct{})
		started := make(chan struct{})
		var once sync.Once
		judge := &testutils.StubJudge{ScoreFn: func(_, _ string, _ domain.JudgeConfig) (float64, error) {
			once.Do(func() { close(started) })
			<-release
			return 3, nil
		}}

		tracker := newTracker(t, judge)
		addItems(t, tracker, map[string]float64{"q1": 3, "q2": 4})
		require.NoError(t, tracker.SetJudge(config))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tracker.RunAlignmentTest(context.Background())
			assert.NoError(t, err)
		}()

		<-started
		_, err := tracker.RunAlignmentTest(context.Background())
		assert.ErrorIs(t, err, domain.ErrConcurrentRun)

		close(release)
		wg.Wait()
	})
}

// TestHistoryAndBestResult verifies run history accumulation and best-run
// selection with deterministic tie-breaking.
func TestHistoryAndBestResult(t *testing.T) {
	judge := &testutils.StubJudge{Scores: map[string]float64{"q1": 1, "q2": 3, "q3": 5}}
	tracker := newTracker(t, judge)
	addItems(t, tracker, map[string]float64{"q1": 1, "q2": 3, "q3": 5})

	t.Run("empty history", func(t *testing.T) {
		assert.Empty(t, tracker.History())
		_, err := tracker.BestResult()
		assert.ErrorIs(t, err, domain.ErrNoSuccessfulRuns)
	})

	require.NoError(t, tracker.SetJudge(domain.JudgeConfig{Name: "first", Prompt: "p"}))
	_, err := tracker.RunAlignmentTest(context.Background())
	require.NoError(t, err)

	// Second run with a worse judge.
	judge.ScoreFn = func(_, _ string, _ domain.JudgeConfig) (float64, error) { return 3, nil }
	require.NoError(t, tracker.SetJudge(domain.JudgeConfig{Name: "second", Prompt: "p2"}))
	_, err = tracker.RunAlignmentTest(context.Background())
	require.NoError(t, err)

	t.Run("history preserves run order", func(t *testing.T) {
		history := tracker.History()
		require.Len(t, history, 2)
		assert.Equal(t, "first", history[0].Config.Name)
		assert.Equal(t, "second", history[1].Config.Name)
	})

	t.Run("best result has the highest kappa", func(t *testing.T) {
		best, err := tracker.BestResult()
		require.NoError(t, err)
		assert.Equal(t, "first", best.Config.Name)
		assert.InDelta(t, 1.0, best.Kappa, 1e-12)
	})

	t.Run("clear data retains history", func(t *testing.T) {
		tracker.ClearData()
		assert.Equal(t, 0, tracker.Len())
		assert.Len(t, tracker.History(), 2)
	})
}

// TestExportPrompt verifies prompt export to disk.
func TestExportPrompt(t *testing.T) {
	tracker := newTracker(t, &testutils.StubJudge{})

	t.Run("no judge configured", func(t *testing.T) {
		err := tracker.ExportPrompt(filepath.Join(t.TempDir(), "prompt.txt"))
		assert.ErrorIs(t, err, domain.ErrJudgeNotConfigured)
	})

	t.Run("writes prompt verbatim", func(t *testing.T) {
		prompt := "Score the response.\nBe fair."
		require.NoError(t, tracker.SetJudge(domain.JudgeConfig{Name: "j", Prompt: prompt}))

		path := filepath.Join(t.TempDir(), "prompt.txt")
		require.NoError(t, tracker.ExportPrompt(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, prompt, string(data))
	})
}

// TestSummary verifies the state description, including the missing-score
// warning.
func TestSummary(t *testing.T) {
	tracker := newTracker(t, &testutils.StubJudge{})
	addItems(t, tracker, map[string]float64{"q1": 3})
	require.NoError(t, tracker.AddEvaluationItem("unscored", "r", nil, nil))

	summary := tracker.Summary()
	assert.Contains(t, summary, "items loaded: 2")
	assert.Contains(t, summary, "items with human scores: 1")
	assert.Contains(t, summary, "warning: 1 items lack a human score")
}
