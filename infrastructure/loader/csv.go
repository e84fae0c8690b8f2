// Package loader reads human-scored evaluation items from external sources.
package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/jasher4994/judgesync/internal/domain"
	"github.com/jasher4994/judgesync/internal/ports"
)

// Default column names matched against the CSV header.
const (
	DefaultQuestionColumn = "question"
	DefaultResponseColumn = "response"
	DefaultScoreColumn    = "human_score"
)

// CSVOptions configures how a CSV source maps onto evaluation items.
type CSVOptions struct {
	// QuestionColumn names the column holding the question text.
	// Defaults to "question".
	QuestionColumn string

	// ResponseColumn names the column holding the response text.
	// Defaults to "response".
	ResponseColumn string

	// ScoreColumn names the column holding the numeric human score.
	// Defaults to "human_score".
	ScoreColumn string

	// MetadataColumns lists extra columns copied into item metadata as
	// strings. Unknown names are a load-time error.
	MetadataColumns []string
}

// CSVLoader reads evaluation items from CSV files. Header matching is
// case-insensitive and whitespace-trimmed; score parsing failures are
// load-time errors carrying the offending row number.
type CSVLoader struct {
	rng  domain.ScoreRange
	opts CSVOptions
}

var _ ports.DataLoader = (*CSVLoader)(nil)

// NewCSVLoader creates a loader validating human scores against rng.
func NewCSVLoader(rng domain.ScoreRange, opts CSVOptions) (*CSVLoader, error) {
	if err := rng.Validate(); err != nil {
		return nil, fmt.Errorf("csv loader score range: %w", err)
	}
	if opts.QuestionColumn == "" {
		opts.QuestionColumn = DefaultQuestionColumn
	}
	if opts.ResponseColumn == "" {
		opts.ResponseColumn = DefaultResponseColumn
	}
	if opts.ScoreColumn == "" {
		opts.ScoreColumn = DefaultScoreColumn
	}
	return &CSVLoader{rng: rng, opts: opts}, nil
}

// Load reads items from the CSV file at source.
func (l *CSVLoader) Load(ctx context.Context, source string) ([]domain.EvaluationItem, error) {
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", source, err)
	}
	defer f.Close()
	return l.Read(ctx, f)
}

// Read parses CSV data from r. The first record must be a header naming at
// least the question, response, and score columns.
func (l *CSVLoader) Read(ctx context.Context, r io.Reader) ([]domain.EvaluationItem, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols, err := l.resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var items []domain.EvaluationItem
	for row := 2; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}

		item, err := l.parseRecord(record, cols, row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: csv source has no data rows", domain.ErrNoData)
	}
	return items, nil
}

// columnIndexes maps the configured column names onto header positions.
type columnIndexes struct {
	question int
	response int
	score    int
	metadata map[string]int
}

func (l *CSVLoader) resolveColumns(header []string) (columnIndexes, error) {
	fold := cases.Fold()
	byName := make(map[string]int, len(header))
	for i, name := range header {
		byName[fold.String(strings.TrimSpace(name))] = i
	}

	find := func(name string) (int, error) {
		idx, ok := byName[fold.String(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("csv header is missing column %q (have: %s)",
				name, strings.Join(header, ", "))
		}
		return idx, nil
	}

	var cols columnIndexes
	var err error
	if cols.question, err = find(l.opts.QuestionColumn); err != nil {
		return columnIndexes{}, err
	}
	if cols.response, err = find(l.opts.ResponseColumn); err != nil {
		return columnIndexes{}, err
	}
	if cols.score, err = find(l.opts.ScoreColumn); err != nil {
		return columnIndexes{}, err
	}

	if len(l.opts.MetadataColumns) > 0 {
		cols.metadata = make(map[string]int, len(l.opts.MetadataColumns))
		for _, name := range l.opts.MetadataColumns {
			idx, err := find(name)
			if err != nil {
				return columnIndexes{}, err
			}
			cols.metadata[name] = idx
		}
	}
	return cols, nil
}

func (l *CSVLoader) parseRecord(record []string, cols columnIndexes, row int) (domain.EvaluationItem, error) {
	item, err := domain.NewEvaluationItem(
		strings.TrimSpace(record[cols.question]),
		strings.TrimSpace(record[cols.response]),
	)
	if err != nil {
		return domain.EvaluationItem{}, fmt.Errorf("csv row %d: %w", row, err)
	}

	raw := strings.TrimSpace(record[cols.score])
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return domain.EvaluationItem{}, fmt.Errorf("csv row %d: human score %q is not numeric", row, raw)
	}
	if !l.rng.Contains(score) {
		return domain.EvaluationItem{}, fmt.Errorf("csv row %d: %w: human score %g outside %s",
			row, domain.ErrScoreRange, score, l.rng)
	}
	item.HumanScore = domain.Float(score)

	for name, idx := range cols.metadata {
		if item.Metadata == nil {
			item.Metadata = make(map[string]any, len(cols.metadata))
		}
		item.Metadata[name] = record[idx]
	}
	return item, nil
}
