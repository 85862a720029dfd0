package cardlensctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cardlens/cardlens/internal/query"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("cardlensctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "CardLens API base URL")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 30s)")
	chartPath := fs.String("chart", "", "file to save the answer chart SVG to (ask only)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	base := strings.TrimRight(*baseURL, "/")
	command := strings.TrimSpace(fs.Arg(0))
	method := ""
	path := ""
	var payload any
	switch command {
	case "health":
		method, path = http.MethodGet, "/v1/health"
	case "ready":
		method, path = http.MethodGet, "/v1/ready"
	case "examples":
		method, path = http.MethodGet, "/v1/examples"
	case "schema":
		method, path = http.MethodGet, "/v1/schema"
	case "ask":
		question := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "ask needs a question argument")
			return 2
		}
		return runAsk(ctx, client, base, question, *chartPath, stdout, stderr)
	case "query":
		sqlText := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if sqlText == "" {
			_, _ = fmt.Fprintln(stderr, "query needs a SQL argument")
			return 2
		}
		method, path = http.MethodPost, "/v1/query"
		payload = map[string]string{"sql": sqlText}
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	code, responseBody, err := doRequest(ctx, client, method, base+path, payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

type askAnswer struct {
	Narrative string       `json:"narrative"`
	SQL       string       `json:"sql"`
	Path      string       `json:"path"`
	Result    *query.Table `json:"result"`
	ChartKind string       `json:"chart_kind"`
	ChartSVG  []byte       `json:"chart_svg"`
	Failed    bool         `json:"failed"`
	TraceID   string       `json:"trace_id"`
}

// runAsk renders the answer for a terminal instead of dumping JSON: the
// narrative first, the SQL and result table after it, and the chart
// written to a file on request since SVG is useless on stdout.
func runAsk(ctx context.Context, client *http.Client, base, question, chartPath string, stdout, stderr io.Writer) int {
	code, responseBody, err := doRequest(ctx, client, http.MethodPost, base+"/v1/ask", map[string]string{"question": question})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	var answer askAnswer
	if err := json.Unmarshal(responseBody, &answer); err != nil {
		_, _ = fmt.Fprintf(stderr, "unexpected response: %v\n", err)
		return 1
	}

	_, _ = fmt.Fprintln(stdout, strings.TrimSpace(answer.Narrative))
	_, _ = fmt.Fprintf(stdout, "\npath: %s\nsql:\n%s\n", answer.Path, strings.TrimSpace(answer.SQL))

	if answer.Result != nil && len(answer.Result.Columns) > 0 {
		_, _ = fmt.Fprintln(stdout)
		_, _ = fmt.Fprintln(stdout, strings.Join(answer.Result.Columns, "\t"))
		for _, row := range answer.Result.Rows {
			cells := make([]string, len(row))
			for i, cell := range row {
				cells[i] = query.FormatCell(cell)
			}
			_, _ = fmt.Fprintln(stdout, strings.Join(cells, "\t"))
		}
	}

	switch {
	case len(answer.ChartSVG) > 0 && chartPath != "":
		if err := os.WriteFile(chartPath, answer.ChartSVG, 0o644); err != nil {
			_, _ = fmt.Fprintf(stderr, "failed to save chart: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "\nchart: %s (saved to %s)\n", answer.ChartKind, chartPath)
	case len(answer.ChartSVG) > 0:
		_, _ = fmt.Fprintf(stdout, "\nchart: %s (pass -chart FILE to save it)\n", answer.ChartKind)
	}

	if answer.Failed {
		return 1
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, url string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: cardlensctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health           GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready            GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  examples         GET /v1/examples")
	_, _ = fmt.Fprintln(w, "  schema           GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  ask QUESTION     POST /v1/ask and render the answer")
	_, _ = fmt.Fprintln(w, "  query SQL        POST /v1/query")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
