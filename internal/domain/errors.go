package domain

import (
	"errors"
	"fmt"
)

// Common domain errors returned by the alignment engine.
var (
	// ErrScoreRange indicates a score or range definition outside the
	// configured bounds.
	ErrScoreRange = errors.New("score out of range")

	// ErrInsufficientData indicates too few scorable items for a statistic.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrZeroVariance indicates a correlation is undefined because one or
	// both score sequences have no variance.
	ErrZeroVariance = errors.New("correlation undefined: zero variance")

	// ErrNoData indicates the tracker's working set is empty.
	ErrNoData = errors.New("no evaluation items loaded")

	// ErrJudgeNotConfigured indicates no judge configuration has been set.
	ErrJudgeNotConfigured = errors.New("no judge configured")

	// ErrDuplicateConfig indicates a judge configuration equal by value to
	// one already registered.
	ErrDuplicateConfig = errors.New("duplicate judge configuration")

	// ErrNoSuccessfulRuns indicates every configuration in a comparison
	// failed.
	ErrNoSuccessfulRuns = errors.New("no successful judge runs")

	// ErrConcurrentRun indicates a run was started while another run against
	// the same item set was still in progress.
	ErrConcurrentRun = errors.New("run already in progress")

	// ErrInvalidItem indicates an evaluation item is missing required fields.
	ErrInvalidItem = errors.New("invalid evaluation item")
)

// JudgeExecutionError wraps a judge executor failure together with the
// configuration that was running when it occurred.
type JudgeExecutionError struct {
	// Config is the judge configuration whose execution failed.
	Config JudgeConfig

	// Err is the underlying executor error.
	Err error
}

// Error implements the error interface.
func (e *JudgeExecutionError) Error() string {
	return fmt.Sprintf("judge execution failed for config %q: %v", e.Config.Name, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *JudgeExecutionError) Unwrap() error { return e.Err }

// NewJudgeExecutionError wraps err with the failing configuration.
func NewJudgeExecutionError(config JudgeConfig, err error) *JudgeExecutionError {
	return &JudgeExecutionError{Config: config, Err: err}
}
