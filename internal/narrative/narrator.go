package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/cardlens/cardlens/internal/query"
)

// Request carries everything a narrator needs to phrase an answer.
type Request struct {
	Question string
	SQL      string
	Result   query.Table
}

// Narrator phrases a query result as a polite Japanese answer for the
// marketing team.
type Narrator interface {
	Narrate(ctx context.Context, req Request) (string, error)
}

// Apology is the fixed answer for a failed query. No narrator model is
// consulted when execution fails.
func Apology(err error) string {
	return fmt.Sprintf("申し訳ありません。クエリの実行中にエラーが発生しました: %s", err)
}

// Summary renders an answer straight from the result table. It is the
// narrator fallback when no model is configured or a call fails, so it
// must always produce something presentable.
func Summary(req Request) string {
	table := req.Result
	switch {
	case table.RowCount() == 0:
		return "ご質問に該当するデータは見つかりませんでした。条件を変えてもう一度お試しください。"
	case table.IsScalar() && table.ColCount() == 1:
		return fmt.Sprintf("ご質問の結果は %s です。", query.FormatCell(table.Rows[0][0]))
	case table.RowCount() == 1:
		pairs := make([]string, table.ColCount())
		for i, column := range table.Columns {
			pairs[i] = fmt.Sprintf("%s: %s", column, query.FormatCell(table.Rows[0][i]))
		}
		return fmt.Sprintf("ご質問の結果は次の通りです。%s。", strings.Join(pairs, "、"))
	default:
		return fmt.Sprintf("ご質問の結果は以下の %d 件です。\n%s", table.RowCount(), table.Render())
	}
}
