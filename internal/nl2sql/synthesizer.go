package nl2sql

import (
	"context"
	"log/slog"
	"strings"
)

// Synthesizer turns questions into executable SQL plans. Questions the
// rule templates recognize never reach the translator; everything else
// goes to the translator first and falls back to a template when the
// translator is missing, disabled, or fails. Synthesize always returns
// a runnable plan.
type Synthesizer struct {
	rules      *Rules
	translator Translator
	schemaCtx  string
	logger     *slog.Logger
}

func NewSynthesizer(rules *Rules, translator Translator, schemaContext string, logger *slog.Logger) *Synthesizer {
	if rules == nil {
		rules = NewRules(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		rules:      rules,
		translator: translator,
		schemaCtx:  schemaContext,
		logger:     logger,
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, question string) Plan {
	q := Classify(question)

	if sql, ok := s.rules.Build(q); ok {
		return Plan{SQL: sql, Path: PathRule}
	}

	if s.translator != nil {
		result, err := s.translator.Translate(ctx, Request{
			Question:      question,
			SchemaContext: s.schemaCtx,
		})
		if err == nil && strings.TrimSpace(result.SQL) != "" {
			return Plan{SQL: result.SQL, Path: PathGeneric}
		}
		if err != nil {
			s.logger.WarnContext(ctx, "generic translation failed",
				slog.String("error", err.Error()),
			)
		}
	}

	return Plan{SQL: s.rules.Fallback(q), Path: PathFallback}
}
