package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Kind string

const (
	KindText   Kind = "text"
	KindNumber Kind = "number"
	KindDate   Kind = "date"
)

// Table is the typed result of a read-only query.
type Table struct {
	Columns []string `json:"columns"`
	Kinds   []Kind   `json:"kinds"`
	Rows    [][]any  `json:"rows"`
}

func (t Table) RowCount() int { return len(t.Rows) }

func (t Table) ColCount() int { return len(t.Columns) }

// IsScalar reports whether the table holds at most a single value.
func (t Table) IsScalar() bool {
	return t.RowCount() <= 1 && t.ColCount() <= 1
}

// Render flattens the table into the compact text block handed to the
// narrator model.
func (t Table) Render() string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Columns, " | "))
	for _, row := range t.Rows {
		b.WriteByte('\n')
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = FormatCell(cell)
		}
		b.WriteString(strings.Join(cells, " | "))
	}
	return b.String()
}

// FormatCell renders a single cell the way Render does. Charts and
// narratives share it so labels match the rendered table.
func FormatCell(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	default:
		return fmt.Sprint(typed)
	}
}

var dateValuePattern = regexp.MustCompile(`^\d{4}-\d{2}(-\d{2})?$`)

func inferKinds(columns []string, rows [][]any) []Kind {
	kinds := make([]Kind, len(columns))
	for i := range columns {
		kinds[i] = kindOfColumn(i, rows)
	}
	return kinds
}

func kindOfColumn(idx int, rows [][]any) Kind {
	sawValue := false
	numeric := true
	date := true
	for _, row := range rows {
		if idx >= len(row) || row[idx] == nil {
			continue
		}
		sawValue = true
		switch typed := row[idx].(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			date = false
		case string:
			numeric = false
			if !dateValuePattern.MatchString(typed) {
				date = false
			}
		default:
			numeric = false
			date = false
		}
	}
	switch {
	case !sawValue:
		return KindText
	case numeric:
		return KindNumber
	case date:
		return KindDate
	default:
		return KindText
	}
}
