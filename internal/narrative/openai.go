package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OpenAINarrator asks an OpenAI-compatible chat endpoint to write the
// marketing-facing answer text.
type OpenAINarrator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

func NewOpenAINarrator(cfg OpenAIConfig) (*OpenAINarrator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &OpenAINarrator{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (n *OpenAINarrator) Narrate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(buildNarrationPayload(n.model, n.temperature, req))
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+n.apiKey)

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, string(rawRespBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion choices")
	}

	answer := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("model returned empty answer")
	}
	return answer, nil
}

func buildNarrationPayload(model string, temperature float64, req Request) map[string]any {
	systemPrompt := "あなたはクレジットカード会社のマーケティング部門向けのアシスタントです。" +
		"ユーザーの質問に対して、SQLクエリを実行した結果を元に、日本語で丁寧に回答してください。"
	userPrompt := fmt.Sprintf(
		"ユーザーの質問: %s\n\n"+
			"実行したSQLクエリ: %s\n\n"+
			"クエリの結果:\n%s\n\n"+
			"以下のガイドラインに従って回答を作成してください：\n"+
			"1. 結果を明確に説明し、重要な数値や傾向を強調してください。\n"+
			"2. マーケティングの観点から、結果の意味や示唆を提供してください。\n"+
			"3. 必要に応じて、追加の分析や次のステップを提案してください。\n"+
			"4. 専門用語は避け、わかりやすい言葉で説明してください。\n"+
			"5. 回答は日本語で提供してください。",
		strings.TrimSpace(req.Question),
		req.SQL,
		req.Result.Render(),
	)

	return map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature": temperature,
	}
}
