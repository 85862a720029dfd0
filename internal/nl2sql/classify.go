package nl2sql

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cardlens/cardlens/internal/schema"
)

type Metric string

const (
	MetricCount Metric = "count"
	MetricAvg   Metric = "avg"
	MetricSum   Metric = "sum"
)

type Subject string

const (
	SubjectNone      Subject = ""
	SubjectActive    Subject = "active"
	SubjectDormant   Subject = "dormant"
	SubjectCancelled Subject = "cancelled"
)

// Question is the structured reading of a natural language question.
// Questions arrive in Japanese or English; the keyword sets carry both.
type Question struct {
	Text             string
	Trend            bool
	Subject          Subject
	SplitActivity    bool
	Metric           Metric
	Category         string
	MinAmount        float64
	AmountExclusive  bool
	WindowMonths     int
	WindowDays       int
	IncludeCancelled bool
	Tiers            bool
}

var (
	trendWords     = []string{"推移", "トレンド", "変化", "trend", "transition", "over time", "month by month", "monthly", "per month", "月別", "月ごと", "毎月"}
	activeWords    = []string{"アクティブ", "active"}
	dormantWords   = []string{"休眠", "dormant", "inactive"}
	cancelledWords = []string{"解約", "退会", "cancel", "churn"}
	includeWords   = []string{"含め", "含む", "including", "include"}
	excludeWords   = []string{"除外", "除く", "exclud"}
	avgWords       = []string{"平均", "average", "avg"}
	sumWords       = []string{"合計", "総額", "total", "sum"}
	tierWords      = []string{"高額利用者", "spender", "tier"}
)

var (
	monthWindowPattern = regexp.MustCompile(`([0-9]+)\s*(?:ヶ月|か月|カ月|ヵ月|ケ月|months?)`)
	dayWindowPattern   = regexp.MustCompile(`([0-9]+)\s*(?:日間|日|days?)`)
	yearWindowPattern  = regexp.MustCompile(`([0-9]+)\s*(?:年間|years?)`)

	yenAtLeastPattern = regexp.MustCompile(`([0-9][0-9,]*)\s*円以上`)
	yenOverPattern    = regexp.MustCompile(`([0-9][0-9,]*)\s*円(?:より多|を超え|超)`)
	atLeastPattern    = regexp.MustCompile(`at least\s+[¥$]?([0-9][0-9,]*)`)
	orMorePattern     = regexp.MustCompile(`([0-9][0-9,]*)\s*(?:yen\s*)?or more`)
	overPattern       = regexp.MustCompile(`(?:over|more than|above)\s+[¥$]?([0-9][0-9,]*)`)
)

// Classify reads the question into the structured form the rule
// templates consume.
func Classify(text string) Question {
	lowered := strings.ToLower(text)

	q := Question{Text: text, Metric: MetricCount}
	q.Trend = containsAny(lowered, trendWords)

	dormant := containsAny(lowered, dormantWords)
	// "inactive" must not count as an active mention.
	active := containsAny(strings.ReplaceAll(lowered, "inactive", ""), activeWords)
	cancelMention := containsAny(lowered, cancelledWords)
	includeMention := containsAny(lowered, includeWords)
	excludeMention := containsAny(lowered, excludeWords)

	q.IncludeCancelled = cancelMention && includeMention && !excludeMention
	q.SplitActivity = active && dormant

	switch {
	case active:
		q.Subject = SubjectActive
	case dormant:
		q.Subject = SubjectDormant
	case cancelMention && !includeMention && !excludeMention:
		q.Subject = SubjectCancelled
	}

	switch {
	case containsAny(lowered, avgWords):
		q.Metric = MetricAvg
	case containsAny(lowered, sumWords):
		q.Metric = MetricSum
	}

	q.Tiers = containsAny(lowered, tierWords)
	if cat, ok := schema.FindCategory(text); ok {
		q.Category = cat
	}
	q.WindowMonths, q.WindowDays = parseWindows(lowered)
	q.MinAmount, q.AmountExclusive = parseAmount(lowered)

	return q
}

func parseWindows(lowered string) (months, days int) {
	if strings.Contains(lowered, "半年") {
		months = 6
	}
	if m := monthWindowPattern.FindStringSubmatch(lowered); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
			months = v
		}
	}
	if m := yearWindowPattern.FindStringSubmatch(lowered); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
			months = v * 12
		}
	}
	if m := dayWindowPattern.FindStringSubmatch(lowered); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
			days = v
		}
	}
	return months, days
}

func parseAmount(lowered string) (float64, bool) {
	patterns := []struct {
		re        *regexp.Regexp
		exclusive bool
	}{
		{yenAtLeastPattern, false},
		{yenOverPattern, true},
		{atLeastPattern, false},
		{orMorePattern, false},
		{overPattern, true},
	}
	for _, p := range patterns {
		if m := p.re.FindStringSubmatch(lowered); m != nil {
			raw := strings.ReplaceAll(m[1], ",", "")
			if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
				return v, p.exclusive
			}
		}
	}
	return 0, false
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
