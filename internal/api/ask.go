package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cardlens/cardlens/internal/chat"
	"github.com/cardlens/cardlens/internal/observability"
	"github.com/cardlens/cardlens/internal/query"
)

// welcomeQuestions are the sample questions surfaced to new users.
// Every one of them is covered by a rule template.
var welcomeQuestions = []string{
	"ここ半年間の購入額の合計を参考にしてユーザを高額利用者、中額利用者、少額利用者の３カテゴリにわけてそれぞれのカテゴリの人数を出してほしい。退会済みユーザは除外すること。",
	"ここ3ヶ月間で美容カテゴリで1000円以上の購入履歴が一度でもある人数を出してほしい。退会済みユーザは除外すること。",
	"ペットカテゴリユーザを、アクティブと休眠とでそれぞれ人数出して欲しい。退会済みユーザは当然除外すること。",
	"ここ半年間の解約者数の推移を数値で教えて",
	"ここ半年間のアクティブ者数の推移を数値で教えて",
	"ここ半年間のアクティブ者の月別平均購入額の推移を数値で教えて",
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Question  string       `json:"question"`
	Narrative string       `json:"narrative"`
	SQL       string       `json:"sql"`
	Path      string       `json:"path"`
	Result    *query.Table `json:"result,omitempty"`
	ChartKind string       `json:"chart_kind,omitempty"`
	ChartSVG  []byte       `json:"chart_svg,omitempty"`
	Failed    bool         `json:"failed"`
	TraceID   string       `json:"trace_id"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "ask dependencies are not configured", false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}

	answer, err := deps.Chat.Answer(r.Context(), request.Question)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyQuestion) {
			writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", err.Error(), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "ASK_FAILED", err.Error(), true, nil)
		return
	}

	response := askResponse{
		Question:  answer.Question,
		Narrative: answer.Narrative,
		SQL:       answer.SQL,
		Path:      string(answer.Path),
		Result:    answer.Result,
		Failed:    answer.Failed,
		TraceID:   observability.TraceIDFromContext(r.Context()),
	}
	if answer.Chart != nil {
		response.ChartKind = string(answer.Chart.Kind)
		response.ChartSVG = []byte(answer.Chart.SVG)
	}
	writeJSON(w, http.StatusOK, response)
}

func handleExamples(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"questions": welcomeQuestions})
}

func handleSchema(deps Dependencies, w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tables":         deps.Schema.Tables,
		"notes":          deps.Schema.Notes,
		"prompt_context": deps.Schema.PromptContext(),
	})
}
