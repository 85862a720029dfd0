package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ExecutionError reports a generated query the store rejected or failed
// to run. Its text feeds the user-facing apology.
type ExecutionError struct {
	SQL     string
	Message string
}

func (e *ExecutionError) Error() string {
	return "error executing query: " + e.Message
}

// Executor runs read-only SQL against the warehouse. Anything that is
// not a single SELECT or WITH statement is rejected before it reaches
// the database.
type Executor struct {
	db       *sql.DB
	rowLimit int
}

// NewExecutor wraps db. A rowLimit above zero caps every result by
// wrapping the statement in an outer LIMIT.
func NewExecutor(db *sql.DB, rowLimit int) *Executor {
	return &Executor{db: db, rowLimit: rowLimit}
}

func (e *Executor) Execute(ctx context.Context, sqlText string) (Table, error) {
	trimmed := stripTrailingSemicolons(sqlText)
	if trimmed == "" {
		return Table{}, &ExecutionError{SQL: sqlText, Message: "sql is required"}
	}
	if !IsReadOnly(trimmed) {
		return Table{}, &ExecutionError{SQL: trimmed, Message: "only read-only SELECT/WITH queries are allowed"}
	}

	if e.rowLimit > 0 {
		trimmed = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", trimmed, e.rowLimit)
	}

	rows, err := e.db.QueryContext(ctx, trimmed)
	if err != nil {
		return Table{}, &ExecutionError{SQL: trimmed, Message: err.Error()}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Table{}, &ExecutionError{SQL: trimmed, Message: err.Error()}
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Table{}, &ExecutionError{SQL: trimmed, Message: err.Error()}
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Table{}, &ExecutionError{SQL: trimmed, Message: err.Error()}
	}

	return Table{
		Columns: columns,
		Kinds:   inferKinds(columns, resultRows),
		Rows:    resultRows,
	}, nil
}

// IsReadOnly reports whether sqlText is a single SELECT or WITH
// statement. Semicolons inside string literals are allowed; a second
// statement is not.
func IsReadOnly(sqlText string) bool {
	normalized := strings.ToLower(stripTrailingSemicolons(sqlText))
	if normalized == "" {
		return false
	}
	if !strings.HasPrefix(normalized, "select") && !strings.HasPrefix(normalized, "with") {
		return false
	}
	return !containsBareSemicolon(normalized)
}

func containsBareSemicolon(sqlText string) bool {
	inString := false
	for i := 0; i < len(sqlText); i++ {
		switch sqlText[i] {
		case '\'':
			inString = !inString
		case ';':
			if !inString {
				return true
			}
		}
	}
	return false
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case time.Time:
			if typed.Hour() == 0 && typed.Minute() == 0 && typed.Second() == 0 {
				normalized[i] = typed.Format("2006-01-02")
			} else {
				normalized[i] = typed.Format("2006-01-02 15:04:05")
			}
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
