package query

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestExecutorRejectsWriteStatements(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := NewExecutor(db, 0)

	statements := []string{
		"DELETE FROM users",
		"DROP TABLE purchases",
		"UPDATE users SET is_cancelled = 1",
		"INSERT INTO purchases (amount) VALUES (1)",
		"PRAGMA journal_mode = DELETE",
		"SELECT 1; DROP TABLE users",
		"",
		";;",
	}
	for _, stmt := range statements {
		_, err := executor.Execute(context.Background(), stmt)
		var execErr *ExecutionError
		if !errors.As(err, &execErr) {
			t.Fatalf("Execute(%q) error = %v, want *ExecutionError", stmt, err)
		}
	}
	assertSQLMock(t, mock)
}

func TestExecutorAllowsSemicolonInsideStringLiteral(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := NewExecutor(db, 0)

	stmt := "SELECT name FROM users WHERE name = 'a;b'"
	mock.ExpectQuery(regexp.QuoteMeta(stmt)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a;b"))

	table, err := executor.Execute(context.Background(), stmt)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if table.RowCount() != 1 {
		t.Fatalf("RowCount() = %d", table.RowCount())
	}
	assertSQLMock(t, mock)
}

func TestExecutorReturnsTypedTable(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := NewExecutor(db, 0)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT month, active_users FROM activity")).
		WillReturnRows(sqlmock.NewRows([]string{"month", "active_users"}).
			AddRow("2026-03", int64(120)).
			AddRow("2026-04", []byte("135")))

	table, err := executor.Execute(context.Background(), "SELECT month, active_users FROM activity;;")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := table.Columns; len(got) != 2 || got[0] != "month" || got[1] != "active_users" {
		t.Fatalf("Columns = %v", got)
	}
	if table.Kinds[0] != KindDate {
		t.Fatalf("Kinds[0] = %q, want date", table.Kinds[0])
	}
	if table.Kinds[1] != KindText {
		t.Fatalf("Kinds[1] = %q, want text for mixed values", table.Kinds[1])
	}
	if got, ok := table.Rows[1][1].(string); !ok || got != "135" {
		t.Fatalf("Rows[1][1] = %#v, want normalized string", table.Rows[1][1])
	}
	assertSQLMock(t, mock)
}

func TestExecutorAppliesRowLimit(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := NewExecutor(db, 5)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM (SELECT name FROM users) AS q LIMIT 5")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("佐藤"))

	table, err := executor.Execute(context.Background(), "SELECT name FROM users")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if table.RowCount() != 1 {
		t.Fatalf("RowCount() = %d", table.RowCount())
	}
	assertSQLMock(t, mock)
}

func TestExecutorWrapsStoreError(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := NewExecutor(db, 0)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT x FROM missing")).
		WillReturnError(errors.New("no such table: missing"))

	_, err := executor.Execute(context.Background(), "SELECT x FROM missing")
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("Execute() error = %v, want *ExecutionError", err)
	}
	if !strings.Contains(execErr.Message, "no such table") {
		t.Fatalf("Message = %q", execErr.Message)
	}
	if !strings.Contains(execErr.Error(), "error executing query") {
		t.Fatalf("Error() = %q", execErr.Error())
	}
	assertSQLMock(t, mock)
}

func TestIsReadOnly(t *testing.T) {
	tests := []struct {
		sql  string
		want bool
	}{
		{"SELECT 1", true},
		{"  select count(*) from users  ", true},
		{"WITH m AS (SELECT 1) SELECT * FROM m;", true},
		{"DELETE FROM users", false},
		{"select 1; delete from users", false},
		{"SELECT 'a;b'", true},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsReadOnly(tt.sql); got != tt.want {
			t.Fatalf("IsReadOnly(%q) = %v, want %v", tt.sql, got, tt.want)
		}
	}
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
