package chart

import (
	"strconv"
	"strings"

	"github.com/cardlens/cardlens/internal/query"
)

var (
	trendKeywords      = []string{"推移", "トレンド", "変化"}
	comparisonKeywords = []string{"比較", "割合", "分布"}

	// dateColumnHints matches the column names trend SQL actually
	// produces when the result carries no date-typed column.
	dateColumnHints = []string{"date", "time", "month", "月", "日", "年"}
)

// Select renders the chart that fits the question and the shape of the
// result. It returns nil when the result does not support one: single
// values, empty tables and tables without a numeric value column stay
// text-only.
func Select(question string, table query.Table) *Chart {
	if table.RowCount() <= 1 && table.ColCount() <= 1 {
		return nil
	}

	switch {
	case containsAny(question, trendKeywords):
		return lineChart(table)
	case containsAny(question, comparisonKeywords):
		if table.ColCount() == 2 {
			if chart := pieChart(table); chart != nil {
				return chart
			}
		}
		return barChart(table)
	case table.RowCount() > 1 && table.ColCount() >= 2:
		return barChart(table)
	default:
		return nil
	}
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func lineChart(table query.Table) *Chart {
	dateIdx := dateColumnIndex(table)
	labels := make([]string, table.RowCount())
	for i, row := range table.Rows {
		if dateIdx >= 0 && dateIdx < len(row) {
			labels[i] = query.FormatCell(row[dateIdx])
		} else {
			labels[i] = strconv.Itoa(i + 1)
		}
	}

	series := numericSeries(table, dateIdx)
	if len(series) == 0 {
		return nil
	}

	svg, err := Line(0, 0, series, labels, LineOpts{
		Title:       "時系列データ",
		Description: seriesNames(series),
		ShowDots:    true,
	})
	if err != nil {
		return nil
	}
	return &Chart{Kind: KindLine, SVG: svg}
}

func pieChart(table query.Table) *Chart {
	labels := make([]string, 0, table.RowCount())
	values := make([]float64, 0, table.RowCount())
	for _, row := range table.Rows {
		if len(row) < 2 {
			return nil
		}
		value, ok := toFloat(row[1])
		if !ok {
			return nil
		}
		labels = append(labels, query.FormatCell(row[0]))
		values = append(values, value)
	}

	svg, err := Pie(0, 0, values, labels, PieOpts{
		Title:       "割合の比較",
		Description: strings.Join(table.Columns, " / "),
	})
	if err != nil {
		return nil
	}
	return &Chart{Kind: KindPie, SVG: svg}
}

func barChart(table query.Table) *Chart {
	var (
		series []Series
		labels []string
	)

	if table.ColCount() == 2 {
		values := make([]float64, 0, table.RowCount())
		labels = make([]string, 0, table.RowCount())
		for _, row := range table.Rows {
			if len(row) < 2 {
				return nil
			}
			value, ok := toFloat(row[1])
			if !ok {
				return nil
			}
			labels = append(labels, query.FormatCell(row[0]))
			values = append(values, value)
		}
		if len(values) == 0 {
			return nil
		}
		series = []Series{{Name: table.Columns[1], Values: values}}
	} else {
		labels = make([]string, table.RowCount())
		for i := range table.Rows {
			labels[i] = strconv.Itoa(i + 1)
		}
		series = numericSeries(table, -1)
		if len(series) == 0 {
			return nil
		}
	}

	svg, err := Bars(0, 0, series, labels, BarOpts{
		Title:       "データ比較",
		Description: seriesNames(series),
	})
	if err != nil {
		return nil
	}
	return &Chart{Kind: KindBar, SVG: svg}
}

// dateColumnIndex prefers a date-typed column and falls back to name
// hints so 'month' buckets from the trend templates line up on the
// x-axis.
func dateColumnIndex(table query.Table) int {
	for i, kind := range table.Kinds {
		if kind == query.KindDate {
			return i
		}
	}
	for i, name := range table.Columns {
		lower := strings.ToLower(name)
		for _, hint := range dateColumnHints {
			if strings.Contains(lower, hint) {
				return i
			}
		}
	}
	return -1
}

// numericSeries extracts every column, except the skipped one, whose
// values all convert to numbers.
func numericSeries(table query.Table, skip int) []Series {
	series := make([]Series, 0, table.ColCount())
	for c, name := range table.Columns {
		if c == skip {
			continue
		}
		values := make([]float64, 0, table.RowCount())
		ok := true
		for _, row := range table.Rows {
			if c >= len(row) {
				ok = false
				break
			}
			value, convOK := toFloat(row[c])
			if !convOK {
				ok = false
				break
			}
			values = append(values, value)
		}
		if ok && len(values) > 0 {
			series = append(series, Series{Name: name, Values: values})
		}
	}
	return series
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case nil:
		return 0, true
	case int64:
		return float64(typed), true
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case bool:
		if typed {
			return 1, true
		}
		return 0, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func seriesNames(series []Series) string {
	names := make([]string, len(series))
	for i, s := range series {
		names[i] = s.Name
	}
	return strings.Join(names, " / ")
}
