package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cardlens/cardlens/internal/chart"
	"github.com/cardlens/cardlens/internal/narrative"
	"github.com/cardlens/cardlens/internal/nl2sql"
	"github.com/cardlens/cardlens/internal/observability"
	"github.com/cardlens/cardlens/internal/query"
)

// ErrEmptyQuestion rejects blank input before any work happens.
var ErrEmptyQuestion = errors.New("question is required")

// Synthesizer plans SQL for a question.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string) nl2sql.Plan
}

// Executor runs planned SQL against the warehouse.
type Executor interface {
	Execute(ctx context.Context, sql string) (query.Table, error)
}

// Answer is everything one question produces.
type Answer struct {
	Question  string       `json:"question"`
	Narrative string       `json:"narrative"`
	SQL       string       `json:"sql"`
	Path      nl2sql.Path  `json:"path"`
	Result    *query.Table `json:"result,omitempty"`
	Chart     *chart.Chart `json:"chart,omitempty"`
	Failed    bool         `json:"failed"`
}

// Service answers marketing questions end to end: plan SQL, run it,
// pick a chart and phrase the narrative. The error return is reserved
// for invalid input; a failed query becomes an apology answer.
type Service struct {
	Synthesizer Synthesizer
	Executor    Executor
	Narrator    narrative.Narrator
	Logger      *slog.Logger
	Clock       func() time.Time
}

func (s *Service) Answer(ctx context.Context, question string) (Answer, error) {
	s.ensureDefaults()
	if strings.TrimSpace(question) == "" {
		return Answer{}, ErrEmptyQuestion
	}
	started := s.Clock()

	plan := s.Synthesizer.Synthesize(ctx, question)

	table, err := s.Executor.Execute(ctx, plan.SQL)
	if err != nil {
		observability.ObserveAnswer(string(plan.Path), "none", true, s.Clock().Sub(started))
		s.Logger.WarnContext(ctx, "query execution failed",
			slog.String("path", string(plan.Path)),
			slog.String("error", err.Error()),
		)
		return Answer{
			Question:  question,
			Narrative: narrative.Apology(err),
			SQL:       plan.SQL,
			Path:      plan.Path,
			Failed:    true,
		}, nil
	}

	rendered := chart.Select(question, table)

	answer := Answer{
		Question:  question,
		Narrative: s.narrate(ctx, question, plan.SQL, table),
		SQL:       plan.SQL,
		Path:      plan.Path,
		Result:    &table,
		Chart:     rendered,
	}

	chartKind := "none"
	if rendered != nil {
		chartKind = string(rendered.Kind)
	}
	elapsed := s.Clock().Sub(started)
	observability.ObserveAnswer(string(plan.Path), chartKind, false, elapsed)
	s.Logger.InfoContext(ctx, "question answered",
		slog.String("path", string(plan.Path)),
		slog.String("chart", chartKind),
		slog.Int("rows", table.RowCount()),
		slog.Duration("elapsed", elapsed),
	)
	return answer, nil
}

// narrate prefers the configured narrator model and falls back to the
// built-in summary, so an AI outage degrades answers instead of
// breaking them.
func (s *Service) narrate(ctx context.Context, question, sql string, table query.Table) string {
	req := narrative.Request{
		Question: question,
		SQL:      sql,
		Result:   table,
	}
	if s.Narrator == nil {
		return narrative.Summary(req)
	}

	text, err := s.Narrator.Narrate(ctx, req)
	if err != nil {
		observability.IncrementNarrativeFallback()
		s.Logger.WarnContext(ctx, "narrator failed, serving summary",
			slog.String("error", err.Error()),
		)
		return narrative.Summary(req)
	}
	return text
}

func (s *Service) ensureDefaults() {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
}
