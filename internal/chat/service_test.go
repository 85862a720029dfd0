package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/cardlens/cardlens/internal/narrative"
	"github.com/cardlens/cardlens/internal/nl2sql"
	"github.com/cardlens/cardlens/internal/query"
)

type fakeSynthesizer struct {
	plan nl2sql.Plan
}

func (f fakeSynthesizer) Synthesize(context.Context, string) nl2sql.Plan {
	return f.plan
}

type fakeExecutor struct {
	table  query.Table
	err    error
	gotSQL string
}

func (f *fakeExecutor) Execute(_ context.Context, sql string) (query.Table, error) {
	f.gotSQL = sql
	return f.table, f.err
}

type fakeNarrator struct {
	text  string
	err   error
	calls int
}

func (f *fakeNarrator) Narrate(context.Context, narrative.Request) (string, error) {
	f.calls++
	return f.text, f.err
}

func trendResult() query.Table {
	return query.Table{
		Columns: []string{"month", "active_users"},
		Kinds:   []query.Kind{query.KindDate, query.KindNumber},
		Rows: [][]any{
			{"2026-06", int64(4100)},
			{"2026-07", int64(4180)},
			{"2026-08", int64(4030)},
		},
	}
}

func newTestService(executor *fakeExecutor, narrator narrative.Narrator) *Service {
	return &Service{
		Synthesizer: fakeSynthesizer{plan: nl2sql.Plan{SQL: "SELECT 1", Path: nl2sql.PathRule}},
		Executor:    executor,
		Narrator:    narrator,
		Logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Clock:       func() time.Time { return time.Date(2026, time.August, 21, 10, 0, 0, 0, time.UTC) },
	}
}

func TestAskAnswersWithChartAndNarrative(t *testing.T) {
	executor := &fakeExecutor{table: trendResult()}
	narrator := &fakeNarrator{text: "アクティブ者数は安定しています。"}
	svc := newTestService(executor, narrator)

	answer, err := svc.Answer(context.Background(), "ここ半年間のアクティブ者数の推移を数値で教えて")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if answer.Failed {
		t.Fatal("answer marked failed")
	}
	if answer.Narrative != "アクティブ者数は安定しています。" {
		t.Fatalf("narrative = %q", answer.Narrative)
	}
	if answer.SQL != "SELECT 1" {
		t.Fatalf("sql = %q", answer.SQL)
	}
	if answer.Path != nl2sql.PathRule {
		t.Fatalf("path = %q", answer.Path)
	}
	if executor.gotSQL != "SELECT 1" {
		t.Fatalf("executed sql = %q", executor.gotSQL)
	}
	if answer.Chart == nil || answer.Chart.Kind != "line" {
		t.Fatalf("chart = %+v, want line chart", answer.Chart)
	}
	if answer.Result == nil || answer.Result.RowCount() != 3 {
		t.Fatalf("result = %+v, want 3 rows", answer.Result)
	}
	if narrator.calls != 1 {
		t.Fatalf("narrator calls = %d, want 1", narrator.calls)
	}
}

func TestAskTurnsExecutionErrorIntoApology(t *testing.T) {
	executor := &fakeExecutor{err: &query.ExecutionError{SQL: "SELECT 1", Message: "no such table: userz"}}
	narrator := &fakeNarrator{text: "unused"}
	svc := newTestService(executor, narrator)

	answer, err := svc.Answer(context.Background(), "存在しないテーブルの件数を教えて")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if !answer.Failed {
		t.Fatal("answer not marked failed")
	}
	if !strings.HasPrefix(answer.Narrative, "申し訳ありません。クエリの実行中にエラーが発生しました: ") {
		t.Fatalf("narrative = %q", answer.Narrative)
	}
	if !strings.Contains(answer.Narrative, "no such table: userz") {
		t.Fatalf("narrative lost the cause: %q", answer.Narrative)
	}
	if answer.SQL != "SELECT 1" {
		t.Fatalf("sql = %q, want the failing query preserved", answer.SQL)
	}
	if answer.Chart != nil {
		t.Fatal("failed answer should carry no chart")
	}
	if answer.Result != nil {
		t.Fatal("failed answer should carry no result")
	}
	if narrator.calls != 0 {
		t.Fatalf("narrator calls = %d, want 0 on failure", narrator.calls)
	}
}

func TestAskServesSummaryWhenNarratorFails(t *testing.T) {
	executor := &fakeExecutor{table: trendResult()}
	narrator := &fakeNarrator{err: errors.New("rate limited")}
	svc := newTestService(executor, narrator)

	answer, err := svc.Answer(context.Background(), "ここ半年間のアクティブ者数の推移を数値で教えて")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if answer.Failed {
		t.Fatal("answer marked failed")
	}
	if !strings.Contains(answer.Narrative, "以下の 3 件です。") {
		t.Fatalf("narrative = %q, want built-in summary", answer.Narrative)
	}
	if narrator.calls != 1 {
		t.Fatalf("narrator calls = %d, want 1", narrator.calls)
	}
}

func TestAskWithoutNarratorUsesSummary(t *testing.T) {
	executor := &fakeExecutor{table: query.Table{
		Columns: []string{"user_count"},
		Kinds:   []query.Kind{query.KindNumber},
		Rows:    [][]any{{int64(321)}},
	}}
	svc := newTestService(executor, nil)

	answer, err := svc.Answer(context.Background(), "美容カテゴリの購入者数を教えて")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if answer.Narrative != "ご質問の結果は 321 です。" {
		t.Fatalf("narrative = %q", answer.Narrative)
	}
	if answer.Chart != nil {
		t.Fatal("scalar result should carry no chart")
	}
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	svc := newTestService(&fakeExecutor{}, nil)

	if _, err := svc.Answer(context.Background(), "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("Answer() error = %v, want ErrEmptyQuestion", err)
	}
}
