package domain

import (
	"fmt"
	"maps"
)

// Float returns a pointer to v. It is a convenience for populating the
// optional score fields of an EvaluationItem.
func Float(v float64) *float64 { return &v }

// ItemKey identifies an evaluation item by its (question, response) pair.
// Loading the same pair twice updates the existing item instead of creating
// a duplicate.
type ItemKey struct {
	Question string
	Response string
}

// EvaluationItem is a single evaluated unit: one question/response pair with
// an optional human ground-truth score and an optional judge score. The
// judge score is ephemeral per configuration; each run overwrites it.
type EvaluationItem struct {
	// Question is the prompt under evaluation. Required, non-empty.
	Question string `json:"question"`

	// Response is the content being scored. Required, non-empty.
	Response string `json:"response"`

	// HumanScore is the ground-truth score, nil until loaded.
	HumanScore *float64 `json:"human_score,omitempty"`

	// JudgeScore is the score assigned by the most recent judge run,
	// nil until a run completes.
	JudgeScore *float64 `json:"judge_score,omitempty"`

	// Metadata carries optional caller-supplied annotations.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewEvaluationItem creates an item and validates its required fields.
func NewEvaluationItem(question, response string) (EvaluationItem, error) {
	if question == "" {
		return EvaluationItem{}, fmt.Errorf("%w: question is empty", ErrInvalidItem)
	}
	if response == "" {
		return EvaluationItem{}, fmt.Errorf("%w: response is empty", ErrInvalidItem)
	}
	return EvaluationItem{Question: question, Response: response}, nil
}

// Key returns the identity of this item for deduplication.
func (it EvaluationItem) Key() ItemKey {
	return ItemKey{Question: it.Question, Response: it.Response}
}

// Scorable reports whether both the human and judge scores are present,
// making the item eligible for alignment metrics.
func (it EvaluationItem) Scorable() bool {
	return it.HumanScore != nil && it.JudgeScore != nil
}

// HasHumanScore reports whether a ground-truth score is present.
func (it EvaluationItem) HasHumanScore() bool { return it.HumanScore != nil }

// Clone returns a deep copy of the item. Score pointers and the metadata
// map are copied so mutation of the clone never reaches the original.
func (it EvaluationItem) Clone() EvaluationItem {
	out := EvaluationItem{Question: it.Question, Response: it.Response}
	if it.HumanScore != nil {
		out.HumanScore = Float(*it.HumanScore)
	}
	if it.JudgeScore != nil {
		out.JudgeScore = Float(*it.JudgeScore)
	}
	if it.Metadata != nil {
		out.Metadata = maps.Clone(it.Metadata)
	}
	return out
}

// CloneItems deep-copies a slice of items with judge scores cleared.
// Comparison runs use this to give each configuration a fresh arena so one
// configuration's scores never leak into another's.
func CloneItems(items []EvaluationItem) []EvaluationItem {
	out := make([]EvaluationItem, len(items))
	for i, it := range items {
		out[i] = it.Clone()
		out[i].JudgeScore = nil
	}
	return out
}
