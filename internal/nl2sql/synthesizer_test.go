package nl2sql

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type fakeTranslator struct {
	result  Result
	err     error
	calls   int
	lastReq Request
}

func (f *fakeTranslator) Translate(_ context.Context, req Request) (Result, error) {
	f.calls++
	f.lastReq = req
	return f.result, f.err
}

func newTestSynthesizer(translator Translator) *Synthesizer {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewSynthesizer(NewRules(fixedClock), translator, "schema context", logger)
}

func TestSynthesizeTemplateQuestionsSkipTranslator(t *testing.T) {
	questions := []string{
		"ここ半年間の購入額の合計を参考にしてユーザを高額利用者、中額利用者、少額利用者の３カテゴリにわけてそれぞれのカテゴリの人数を出してほしい。退会済みユーザは除外すること。",
		"ここ3ヶ月間で美容カテゴリで1000円以上の購入履歴が一度でもある人数を出してほしい。退会済みユーザは除外すること。",
		"ペットカテゴリユーザを、アクティブと休眠とでそれぞれ人数出して欲しい。退会済みユーザは当然除外すること。",
		"ここ半年間の解約者数の推移を数値で教えて",
		"ここ半年間のアクティブ者数の推移を数値で教えて",
		"ここ半年間のアクティブ者の月別平均購入額の推移を数値で教えて",
	}
	for _, text := range questions {
		translator := &fakeTranslator{result: Result{SQL: "SELECT 1"}}
		svc := newTestSynthesizer(translator)

		plan := svc.Synthesize(context.Background(), text)
		if plan.Path != PathRule {
			t.Fatalf("path for %q = %q, want %q", text, plan.Path, PathRule)
		}
		if translator.calls != 0 {
			t.Fatalf("translator was called for template question %q", text)
		}
	}
}

func TestSynthesizeActiveQuestionsNeverGoGeneric(t *testing.T) {
	questions := []string{
		"アクティブユーザーについて何か面白いことを教えて",
		"How many active users bought something expensive recently?",
	}
	for _, text := range questions {
		translator := &fakeTranslator{result: Result{SQL: "SELECT 1"}}
		svc := newTestSynthesizer(translator)

		plan := svc.Synthesize(context.Background(), text)
		if plan.Path == PathGeneric {
			t.Fatalf("active question %q took the generic path", text)
		}
		if translator.calls != 0 {
			t.Fatalf("translator was called for active question %q", text)
		}
	}
}

func TestSynthesizeGenericPath(t *testing.T) {
	translator := &fakeTranslator{result: Result{SQL: "SELECT COUNT(*) AS user_count FROM users"}}
	svc := newTestSynthesizer(translator)

	plan := svc.Synthesize(context.Background(), "ユーザの平均年齢を教えて")
	if plan.Path != PathGeneric {
		t.Fatalf("path = %q, want %q", plan.Path, PathGeneric)
	}
	if plan.SQL != translator.result.SQL {
		t.Fatalf("sql = %q, want translator output", plan.SQL)
	}
	if translator.calls != 1 {
		t.Fatalf("translator calls = %d, want 1", translator.calls)
	}
	if translator.lastReq.SchemaContext != "schema context" {
		t.Fatalf("schema context not forwarded: %q", translator.lastReq.SchemaContext)
	}
	if translator.lastReq.Question != "ユーザの平均年齢を教えて" {
		t.Fatalf("question not forwarded: %q", translator.lastReq.Question)
	}
}

func TestSynthesizeFallsBackOnTranslatorError(t *testing.T) {
	translator := &fakeTranslator{err: errors.New("upstream unavailable")}
	svc := newTestSynthesizer(translator)

	plan := svc.Synthesize(context.Background(), "ユーザの平均年齢を教えて")
	if plan.Path != PathFallback {
		t.Fatalf("path = %q, want %q", plan.Path, PathFallback)
	}
	if strings.TrimSpace(plan.SQL) == "" {
		t.Fatal("fallback plan has no SQL")
	}
}

func TestSynthesizeFallsBackOnEmptyTranslation(t *testing.T) {
	translator := &fakeTranslator{result: Result{SQL: "   "}}
	svc := newTestSynthesizer(translator)

	plan := svc.Synthesize(context.Background(), "ユーザの平均年齢を教えて")
	if plan.Path != PathFallback {
		t.Fatalf("path = %q, want %q", plan.Path, PathFallback)
	}
	if strings.TrimSpace(plan.SQL) == "" {
		t.Fatal("fallback plan has no SQL")
	}
}

func TestSynthesizeWithoutTranslatorFallsBack(t *testing.T) {
	svc := newTestSynthesizer(nil)

	plan := svc.Synthesize(context.Background(), "ユーザの平均年齢を教えて")
	if plan.Path != PathFallback {
		t.Fatalf("path = %q, want %q", plan.Path, PathFallback)
	}
	if strings.TrimSpace(plan.SQL) == "" {
		t.Fatal("fallback plan has no SQL")
	}
}
