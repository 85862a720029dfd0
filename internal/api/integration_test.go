//go:build integration

package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cardlens/cardlens/internal/chat"
	"github.com/cardlens/cardlens/internal/config"
	"github.com/cardlens/cardlens/internal/migrations"
	"github.com/cardlens/cardlens/internal/nl2sql"
	"github.com/cardlens/cardlens/internal/query"
	"github.com/cardlens/cardlens/internal/schema"
)

func TestAskEndpointAnswersTrendQuestionOnPostgres(t *testing.T) {
	adminDSN := strings.TrimSpace(os.Getenv("CARDLENS_TEST_STORE_DSN"))
	if adminDSN == "" {
		t.Skip("CARDLENS_TEST_STORE_DSN is not set")
	}

	testDSN, cleanup := createTemporaryDatabase(t, adminDSN)
	defer cleanup()

	db, err := sql.Open("pgx", testDSN)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if _, err := migrations.NewRunner().Up(ctx, db, 0); err != nil {
		t.Fatalf("runner.Up() error = %v", err)
	}
	seedWarehouse(t, db)

	h := newIntegrationHandler(t, db)

	rr := httptest.NewRecorder()
	body := strings.NewReader(`{"question":"ここ半年間のアクティブ者数の推移を数値で教えて"}`)
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", body))
	if rr.Code != http.StatusOK {
		t.Fatalf("ask status = %d, body=%s", rr.Code, rr.Body.String())
	}

	var response askResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode ask response error = %v", err)
	}
	if response.Failed {
		t.Fatalf("answer failed: %s", response.Narrative)
	}
	if response.Path != "rule" {
		t.Fatalf("path = %q", response.Path)
	}
	if response.Result == nil || response.Result.RowCount() != 6 {
		t.Fatalf("result = %#v", response.Result)
	}
	if response.ChartKind != "line" {
		t.Fatalf("chart_kind = %q", response.ChartKind)
	}
	if !strings.HasPrefix(string(response.ChartSVG), "<svg") {
		t.Fatalf("chart_svg = %q", string(response.ChartSVG))
	}
	if strings.TrimSpace(response.Narrative) == "" {
		t.Fatal("narrative is empty")
	}

	// user 1 bought in July and August, user 3 in August, user 2 is
	// cancelled and never counts.
	julyRow := response.Result.Rows[4]
	augustRow := response.Result.Rows[5]
	if fmt.Sprint(julyRow[0]) != "2026-07" || fmt.Sprint(julyRow[1]) != "1" {
		t.Fatalf("july row = %#v", julyRow)
	}
	if fmt.Sprint(augustRow[0]) != "2026-08" || fmt.Sprint(augustRow[1]) != "2" {
		t.Fatalf("august row = %#v", augustRow)
	}
}

func TestQueryEndpointCountsSeededUsersOnPostgres(t *testing.T) {
	adminDSN := strings.TrimSpace(os.Getenv("CARDLENS_TEST_STORE_DSN"))
	if adminDSN == "" {
		t.Skip("CARDLENS_TEST_STORE_DSN is not set")
	}

	testDSN, cleanup := createTemporaryDatabase(t, adminDSN)
	defer cleanup()

	db, err := sql.Open("pgx", testDSN)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if _, err := migrations.NewRunner().Up(ctx, db, 0); err != nil {
		t.Fatalf("runner.Up() error = %v", err)
	}
	seedWarehouse(t, db)

	h := newIntegrationHandler(t, db)

	readyResp := httptest.NewRecorder()
	h.ServeHTTP(readyResp, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))
	if readyResp.Code != http.StatusOK {
		t.Fatalf("ready status = %d", readyResp.Code)
	}

	rr := httptest.NewRecorder()
	body := strings.NewReader(`{"sql":"SELECT COUNT(*) AS user_count FROM users WHERE is_cancelled = 0"}`)
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/query", body))
	if rr.Code != http.StatusOK {
		t.Fatalf("query status = %d, body=%s", rr.Code, rr.Body.String())
	}

	var response queryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode query response error = %v", err)
	}
	if len(response.Rows) != 1 || fmt.Sprint(response.Rows[0][0]) != "2" {
		t.Fatalf("rows = %#v", response.Rows)
	}
}

func newIntegrationHandler(t *testing.T, db *sql.DB) http.Handler {
	t.Helper()

	cfg, err := config.Load("cardlens-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	clock := func() time.Time {
		return time.Date(2026, time.August, 21, 10, 30, 0, 0, time.UTC)
	}
	descriptor := schema.Default()
	executor := query.NewExecutor(db, cfg.Answer.RowLimit)
	synthesizer := nl2sql.NewSynthesizer(nl2sql.NewRules(clock), nil, descriptor.PromptContext(), logger)
	service := &chat.Service{
		Synthesizer: synthesizer,
		Executor:    executor,
		Logger:      logger,
	}
	return NewHandler(cfg, Dependencies{
		Logger:    logger,
		Readiness: CheckStore(db),
		Chat:      service,
		Executor:  executor,
		Schema:    descriptor,
	})
}

// seedWarehouse inserts two active users and one cancelled user with
// purchases placed relative to the fixed 2026-08-21 clock.
func seedWarehouse(t *testing.T, db *sql.DB) {
	t.Helper()

	statements := []string{
		`INSERT INTO users (user_id, name, email, registration_date, is_cancelled, last_activity_date)
VALUES (1, '山田太郎', 'taro@example.com', '2025-01-15', 0, '2026-08-01')`,
		`INSERT INTO users (user_id, name, email, registration_date, is_cancelled, last_activity_date)
VALUES (2, '佐藤花子', 'hanako@example.com', '2025-03-02', 1, '2026-04-05')`,
		`INSERT INTO users (user_id, name, email, registration_date, is_cancelled, last_activity_date)
VALUES (3, '鈴木一郎', 'ichiro@example.com', '2025-06-20', 0, '2026-08-05')`,
		`INSERT INTO purchases (purchase_id, user_id, amount, purchase_date, category_id)
VALUES (1, 1, 4200, '2026-08-01', 3)`,
		`INSERT INTO purchases (purchase_id, user_id, amount, purchase_date, category_id)
VALUES (2, 1, 1500, '2026-07-15', 10)`,
		`INSERT INTO purchases (purchase_id, user_id, amount, purchase_date, category_id)
VALUES (3, 3, 900, '2026-08-05', 3)`,
		`INSERT INTO purchases (purchase_id, user_id, amount, purchase_date, category_id)
VALUES (4, 2, 2000, '2026-04-01', 1)`,
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			t.Fatalf("seed statement failed: %v\n%s", err, statement)
		}
	}
}

func createTemporaryDatabase(t *testing.T, adminDSN string) (string, func()) {
	t.Helper()

	parsed, err := url.Parse(adminDSN)
	if err != nil {
		t.Fatalf("url.Parse(adminDSN) error = %v", err)
	}
	adminDBName := strings.TrimPrefix(parsed.Path, "/")
	if adminDBName == "" {
		t.Fatal("admin DSN must include a database name")
	}

	adminDB, err := sql.Open("pgx", adminDSN)
	if err != nil {
		t.Fatalf("sql.Open(adminDSN) error = %v", err)
	}

	name := fmt.Sprintf("cardlens_it_api_%d", time.Now().UnixNano())
	if _, err := adminDB.Exec(`CREATE DATABASE ` + name); err != nil {
		t.Fatalf("CREATE DATABASE failed: %v", err)
	}

	testURL := *parsed
	testURL.Path = "/" + name
	testDSN := testURL.String()

	cleanup := func() {
		defer func() { _ = adminDB.Close() }()
		if _, err := adminDB.Exec(`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1`, name); err != nil {
			t.Fatalf("terminate test db sessions: %v", err)
		}
		if _, err := adminDB.Exec(`DROP DATABASE ` + name); err != nil {
			t.Fatalf("DROP DATABASE failed: %v", err)
		}
	}
	return testDSN, cleanup
}
