package nl2sql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cardlens/cardlens/internal/schema"
)

// Clock supplies the current time so generated SQL carries literal
// dates and stays reproducible.
type Clock func() time.Time

// Rules builds deterministic SQL for the recurring marketing questions.
// Every template excludes cancelled users unless the question asks to
// include them and never touches the legacy is_active / is_dormant
// flags: activity is always derived from purchases.
type Rules struct {
	now Clock
}

func NewRules(now Clock) *Rules {
	if now == nil {
		now = time.Now
	}
	return &Rules{now: now}
}

// Build returns SQL for questions the templates cover.
func (r *Rules) Build(q Question) (string, bool) {
	switch {
	case q.Tiers:
		return r.spenderTiers(q), true
	case q.Trend && q.Subject == SubjectDormant && !q.SplitActivity:
		// dormancy per month is not expressible as a single template
		return "", false
	case q.Trend:
		return r.timeSeries(q), true
	case q.SplitActivity:
		return r.activitySplit(q), true
	case q.Subject == SubjectCancelled:
		return r.cancelledCount(q), true
	case q.Subject == SubjectActive, q.Subject == SubjectDormant, q.MinAmount > 0, q.Category != "":
		return r.purchaserCount(q), true
	default:
		return "", false
	}
}

// Fallback returns the safest broadly useful answer for a question no
// template or translator could serve.
func (r *Rules) Fallback(q Question) string {
	if q.Trend {
		return r.timeSeries(Question{
			Trend:        true,
			Subject:      SubjectActive,
			Metric:       q.Metric,
			WindowMonths: q.WindowMonths,
		})
	}
	fq := q
	fq.Subject = SubjectActive
	fq.SplitActivity = false
	fq.Tiers = false
	return r.purchaserCount(fq)
}

func (r *Rules) today() time.Time {
	return r.now().UTC()
}

// windowStart resolves the question's look-back window to a literal
// date, defaulting to the dormancy window.
func (r *Rules) windowStart(q Question) string {
	today := r.today()
	switch {
	case q.WindowDays > 0:
		return today.AddDate(0, 0, -q.WindowDays).Format(schema.DateLayout)
	case q.WindowMonths > 0:
		return today.AddDate(0, -q.WindowMonths, 0).Format(schema.DateLayout)
	default:
		return today.AddDate(0, 0, -schema.DefaultDormancyDays).Format(schema.DateLayout)
	}
}

// monthSpine emits the calendar month ranges for the last n months,
// current month included, as literal dates. The spine keeps months with
// no matching rows in the result and works unchanged on every supported
// store.
func (r *Rules) monthSpine(n int) string {
	today := r.today()
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(n - 1), 0)

	var b strings.Builder
	b.WriteString("WITH months(month, month_start, month_end) AS (\n")
	for i := 0; i < n; i++ {
		start := first.AddDate(0, i, 0)
		end := start.AddDate(0, 1, -1)
		if i > 0 {
			b.WriteString("  UNION ALL SELECT ")
		} else {
			b.WriteString("  SELECT ")
		}
		fmt.Fprintf(&b, "'%s', '%s', '%s'\n", start.Format("2006-01"), start.Format(schema.DateLayout), end.Format(schema.DateLayout))
	}
	b.WriteString(")")
	return b.String()
}

func (r *Rules) timeSeries(q Question) string {
	months := q.WindowMonths
	if months <= 0 {
		months = schema.DefaultTrendMonths
	}

	var b strings.Builder
	b.WriteString(r.monthSpine(months))
	b.WriteString("\nSELECT\n  months.month AS month,\n")

	if q.Subject == SubjectCancelled {
		b.WriteString("  COUNT(DISTINCT CASE WHEN users.is_cancelled = 1 THEN users.user_id END) AS cancelled_users\n")
		b.WriteString("FROM months\n")
		b.WriteString("LEFT JOIN users ON users.last_activity_date >= months.month_start AND users.last_activity_date <= months.month_end\n")
		b.WriteString("GROUP BY months.month\nORDER BY months.month")
		return b.String()
	}

	qualifier := "users.is_cancelled = 0"
	if q.IncludeCancelled {
		qualifier = "users.user_id IS NOT NULL"
	}
	if q.Category != "" {
		qualifier += " AND categories.category_id IS NOT NULL"
	}

	switch q.Metric {
	case MetricAvg:
		fmt.Fprintf(&b,
			"  CASE\n"+
				"    WHEN COUNT(DISTINCT CASE WHEN %[1]s THEN purchases.user_id END) = 0 THEN 0\n"+
				"    ELSE ROUND(CAST(SUM(CASE WHEN %[1]s THEN purchases.amount END) AS NUMERIC) / COUNT(DISTINCT CASE WHEN %[1]s THEN purchases.user_id END), 2)\n"+
				"  END AS avg_purchase_amount\n",
			qualifier)
	case MetricSum:
		fmt.Fprintf(&b, "  COALESCE(SUM(CASE WHEN %s THEN purchases.amount END), 0) AS total_purchase_amount\n", qualifier)
	default:
		fmt.Fprintf(&b, "  COUNT(DISTINCT CASE WHEN %s THEN purchases.user_id END) AS active_users\n", qualifier)
	}

	b.WriteString("FROM months\n")
	b.WriteString("LEFT JOIN purchases ON purchases.purchase_date >= months.month_start AND purchases.purchase_date <= months.month_end\n")
	if q.Category != "" {
		fmt.Fprintf(&b, "LEFT JOIN categories ON categories.category_id = purchases.category_id AND categories.category_name = '%s'\n", q.Category)
	}
	b.WriteString("LEFT JOIN users ON users.user_id = purchases.user_id\n")
	b.WriteString("GROUP BY months.month\nORDER BY months.month")
	return b.String()
}

func (r *Rules) activitySplit(q Question) string {
	recent := r.qualifyingPurchase(q, r.windowStart(q))

	var b strings.Builder
	b.WriteString("SELECT\n")
	fmt.Fprintf(&b, "  COUNT(DISTINCT CASE WHEN EXISTS (%s) THEN users.user_id END) AS active_users,\n", recent)
	fmt.Fprintf(&b, "  COUNT(DISTINCT CASE WHEN NOT EXISTS (%s) THEN users.user_id END) AS dormant_users\n", recent)
	b.WriteString("FROM users\n")

	conds := make([]string, 0, 2)
	if !q.IncludeCancelled {
		conds = append(conds, "users.is_cancelled = 0")
	}
	if q.Category != "" {
		// restrict the split to users of the named category
		conds = append(conds, fmt.Sprintf("EXISTS (%s)", r.qualifyingPurchase(q, "")))
	}
	if len(conds) > 0 {
		b.WriteString("WHERE " + strings.Join(conds, "\n  AND "))
	}
	return b.String()
}

func (r *Rules) purchaserCount(q Question) string {
	windowStart := ""
	if q.Subject == SubjectActive || q.Subject == SubjectDormant || q.WindowDays > 0 || q.WindowMonths > 0 {
		windowStart = r.windowStart(q)
	}

	column := "user_count"
	exists := "EXISTS"
	switch q.Subject {
	case SubjectActive:
		column = "active_users"
	case SubjectDormant:
		column = "dormant_users"
		exists = "NOT EXISTS"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT COUNT(DISTINCT users.user_id) AS %s\nFROM users\n", column)

	conds := make([]string, 0, 3)
	if !q.IncludeCancelled {
		conds = append(conds, "users.is_cancelled = 0")
	}
	conds = append(conds, fmt.Sprintf("%s (%s)", exists, r.qualifyingPurchase(q, windowStart)))
	if q.Subject == SubjectDormant && q.Category != "" {
		conds = append(conds, fmt.Sprintf("EXISTS (%s)", r.qualifyingPurchase(q, "")))
	}
	b.WriteString("WHERE " + strings.Join(conds, "\n  AND "))
	return b.String()
}

func (r *Rules) cancelledCount(q Question) string {
	var b strings.Builder
	b.WriteString("SELECT COUNT(DISTINCT users.user_id) AS cancelled_users\nFROM users\nWHERE users.is_cancelled = 1")
	if q.WindowDays > 0 || q.WindowMonths > 0 {
		fmt.Fprintf(&b, "\n  AND users.last_activity_date >= '%s'", r.windowStart(q))
	}
	return b.String()
}

func (r *Rules) spenderTiers(q Question) string {
	tq := q
	if tq.WindowDays <= 0 && tq.WindowMonths <= 0 {
		tq.WindowMonths = schema.DefaultTrendMonths
	}
	start := r.windowStart(tq)

	var b strings.Builder
	b.WriteString("WITH user_spend AS (\n")
	b.WriteString("  SELECT users.user_id AS user_id, SUM(purchases.amount) AS total_amount\n")
	b.WriteString("  FROM users\n")
	b.WriteString("  JOIN purchases ON purchases.user_id = users.user_id\n")
	if q.Category != "" {
		b.WriteString("  JOIN categories ON categories.category_id = purchases.category_id\n")
	}

	conds := make([]string, 0, 3)
	if !q.IncludeCancelled {
		conds = append(conds, "users.is_cancelled = 0")
	}
	conds = append(conds, fmt.Sprintf("purchases.purchase_date >= '%s'", start))
	if q.Category != "" {
		conds = append(conds, fmt.Sprintf("categories.category_name = '%s'", q.Category))
	}
	b.WriteString("  WHERE " + strings.Join(conds, "\n    AND ") + "\n")

	b.WriteString("  GROUP BY users.user_id\n")
	b.WriteString("), ranked AS (\n")
	b.WriteString("  SELECT user_spend.user_id AS user_id, NTILE(3) OVER (ORDER BY user_spend.total_amount DESC) AS bucket\n")
	b.WriteString("  FROM user_spend\n")
	b.WriteString(")\n")
	b.WriteString("SELECT\n")
	b.WriteString("  CASE ranked.bucket WHEN 1 THEN '高額利用者' WHEN 2 THEN '中額利用者' ELSE '少額利用者' END AS spender_tier,\n")
	b.WriteString("  COUNT(ranked.user_id) AS user_count\n")
	b.WriteString("FROM ranked\n")
	b.WriteString("GROUP BY spender_tier\n")
	b.WriteString("ORDER BY MIN(ranked.bucket)")
	return b.String()
}

// qualifyingPurchase emits the correlated subquery that decides whether
// one of a user's purchases satisfies the question's category, amount
// and window constraints. An empty sinceDate drops the window.
func (r *Rules) qualifyingPurchase(q Question, sinceDate string) string {
	var b strings.Builder
	b.WriteString("\n    SELECT 1 FROM purchases")
	if q.Category != "" {
		b.WriteString("\n    JOIN categories ON categories.category_id = purchases.category_id")
	}
	b.WriteString("\n    WHERE purchases.user_id = users.user_id")
	if q.Category != "" {
		fmt.Fprintf(&b, "\n      AND categories.category_name = '%s'", q.Category)
	}
	if q.MinAmount > 0 {
		op := ">="
		if q.AmountExclusive {
			op = ">"
		}
		fmt.Fprintf(&b, "\n      AND purchases.amount %s %s", op, strconv.FormatFloat(q.MinAmount, 'f', -1, 64))
	}
	if sinceDate != "" {
		fmt.Fprintf(&b, "\n      AND purchases.purchase_date >= '%s'", sinceDate)
	}
	b.WriteString("\n  ")
	return b.String()
}
