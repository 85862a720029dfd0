package narrative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cardlens/cardlens/internal/query"
)

func narrateRequest() Request {
	return Request{
		Question: "ここ半年間のアクティブ者数の推移を数値で教えて",
		SQL:      "SELECT 1",
		Result: query.Table{
			Columns: []string{"month", "active_users"},
			Kinds:   []query.Kind{query.KindDate, query.KindNumber},
			Rows:    [][]any{{"2026-08", int64(4100)}},
		},
	}
}

func TestNarrateParsesChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer k1" {
			t.Fatalf("Authorization = %q, want Bearer k1", auth)
		}
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode chat payload: %v", err)
		}
		if payload.Model != "gpt-3.5-turbo" {
			t.Fatalf("model = %q, want default narrator model", payload.Model)
		}
		user := payload.Messages[1].Content
		for _, want := range []string{
			"ここ半年間のアクティブ者数の推移を数値で教えて",
			"実行したSQLクエリ: SELECT 1",
			"2026-08 | 4100",
			"マーケティングの観点から",
		} {
			if !strings.Contains(user, want) {
				t.Fatalf("user prompt missing %q:\n%s", want, user)
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"直近6ヶ月のアクティブ者数は堅調です。"}}]}`))
	}))
	defer server.Close()

	narrator, err := NewOpenAINarrator(OpenAIConfig{BaseURL: server.URL, APIKey: "k1"})
	if err != nil {
		t.Fatalf("NewOpenAINarrator() error = %v", err)
	}

	answer, err := narrator.Narrate(context.Background(), narrateRequest())
	if err != nil {
		t.Fatalf("Narrate() error = %v", err)
	}
	if answer != "直近6ヶ月のアクティブ者数は堅調です。" {
		t.Fatalf("answer = %q", answer)
	}
}

func TestNarrateSurfacesUpstreamErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down"}}`))
	}))
	defer server.Close()

	narrator, err := NewOpenAINarrator(OpenAIConfig{BaseURL: server.URL, APIKey: "k1"})
	if err != nil {
		t.Fatalf("NewOpenAINarrator() error = %v", err)
	}

	if _, err := narrator.Narrate(context.Background(), narrateRequest()); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestNarrateRejectsEmptyAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  "}}]}`))
	}))
	defer server.Close()

	narrator, err := NewOpenAINarrator(OpenAIConfig{BaseURL: server.URL, APIKey: "k1"})
	if err != nil {
		t.Fatalf("NewOpenAINarrator() error = %v", err)
	}

	if _, err := narrator.Narrate(context.Background(), narrateRequest()); err == nil {
		t.Fatal("expected error for empty answer")
	}
}

func TestNewOpenAINarratorValidation(t *testing.T) {
	if _, err := NewOpenAINarrator(OpenAIConfig{APIKey: "k1"}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := NewOpenAINarrator(OpenAIConfig{BaseURL: "https://api.openai.com"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
