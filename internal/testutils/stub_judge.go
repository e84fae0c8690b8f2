// Package testutils provides deterministic test doubles for the alignment
// engine, chiefly a scriptable judge executor that scores items without any
// network access.
package testutils

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jasher4994/judgesync/internal/domain"
)

// StubJudge is a deterministic ports.JudgeExecutor for tests. Scores come
// from a per-question table or a custom function, and failures can be
// injected globally or per configuration name.
type StubJudge struct {
	mu sync.Mutex

	// Scores maps question text to the score returned for it.
	Scores map[string]float64

	// ScoreFn, when set, overrides Scores entirely.
	ScoreFn func(question, response string, config domain.JudgeConfig) (float64, error)

	// Err, when set, fails every call.
	Err error

	// FailConfigs fails any call whose configuration name appears here.
	FailConfigs map[string]error

	calls atomic.Int64
}

// Evaluate implements ports.JudgeExecutor.
func (s *StubJudge) Evaluate(ctx context.Context, question, response string, config domain.JudgeConfig) (float64, error) {
	s.calls.Add(1)

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return 0, s.Err
	}
	if err, ok := s.FailConfigs[config.Name]; ok {
		return 0, err
	}
	if s.ScoreFn != nil {
		return s.ScoreFn(question, response, config)
	}
	return s.Scores[question], nil
}

// Calls returns how many times Evaluate has been invoked.
func (s *StubJudge) Calls() int { return int(s.calls.Load()) }
