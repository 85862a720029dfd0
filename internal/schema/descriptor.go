package schema

import (
	"fmt"
	"strings"
)

// DateLayout is the format of every date column in the warehouse.
const DateLayout = "2006-01-02"

const (
	// DefaultTrendMonths is the window for month-by-month trend questions
	// that do not name one.
	DefaultTrendMonths = 6
	// DefaultDormancyDays is the purchase-free window that makes a user
	// dormant when the question does not name one.
	DefaultDormancyDays = 90
)

type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Constraint string `json:"constraint,omitempty"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Descriptor describes the credit card warehouse: table shapes plus the
// business rules that the status flags on users do not capture.
type Descriptor struct {
	Tables []Table  `json:"tables"`
	Notes  []string `json:"notes"`
}

// Default returns the descriptor for the credit card user warehouse.
func Default() Descriptor {
	return Descriptor{
		Tables: []Table{
			{
				Name: "users",
				Columns: []Column{
					{Name: "user_id", Type: "INTEGER", Constraint: "pk"},
					{Name: "name", Type: "TEXT", Constraint: "not null"},
					{Name: "email", Type: "TEXT", Constraint: "unique"},
					{Name: "registration_date", Type: "TEXT", Constraint: "not null"},
					{Name: "is_active", Type: "INTEGER", Constraint: "default: 1"},
					{Name: "is_dormant", Type: "INTEGER", Constraint: "default: 0"},
					{Name: "is_cancelled", Type: "INTEGER", Constraint: "default: 0"},
					{Name: "last_activity_date", Type: "TEXT"},
				},
			},
			{
				Name: "categories",
				Columns: []Column{
					{Name: "category_id", Type: "INTEGER", Constraint: "pk"},
					{Name: "category_name", Type: "TEXT", Constraint: "not null, unique"},
				},
			},
			{
				Name: "purchases",
				Columns: []Column{
					{Name: "purchase_id", Type: "INTEGER", Constraint: "pk"},
					{Name: "user_id", Type: "INTEGER", Constraint: "ref: > users.user_id, not null"},
					{Name: "amount", Type: "REAL", Constraint: "not null"},
					{Name: "purchase_date", Type: "TEXT", Constraint: "not null"},
					{Name: "category_id", Type: "INTEGER", Constraint: "ref: > categories.category_id, not null"},
				},
			},
		},
		Notes: []string{
			"is_active and is_dormant are legacy flags; never use them to decide whether a user is active or dormant",
			"is_cancelled: 1 for cancelled, 0 for not cancelled",
			"active users: made at least one purchase in the asked time window and are not cancelled",
			"dormant users: made no purchases in the asked time window (default 90 days) and are not cancelled",
			"exclude cancelled users (is_cancelled = 1) unless the question explicitly asks to include them",
			"purchase_date and registration_date format: 'YYYY-MM-DD'",
			"category_name values are Japanese and must be matched verbatim (e.g. '美容', 'ペット')",
		},
	}
}

// PromptContext renders the descriptor as the schema block given to the
// SQL translator model.
func (d Descriptor) PromptContext() string {
	var b strings.Builder
	for _, table := range d.Tables {
		fmt.Fprintf(&b, "Table %s {\n", table.Name)
		for _, col := range table.Columns {
			if col.Constraint != "" {
				fmt.Fprintf(&b, "  %s %s [%s]\n", col.Name, col.Type, col.Constraint)
			} else {
				fmt.Fprintf(&b, "  %s %s\n", col.Name, col.Type)
			}
		}
		b.WriteString("}\n\n")
	}
	b.WriteString("Note:\n")
	for _, note := range d.Notes {
		b.WriteString("- " + note + "\n")
	}
	return b.String()
}

type categoryEntry struct {
	name    string
	aliases []string
}

// Alias terms are matched lowercase. Japanese names pass through ToLower
// unchanged, so they double as their own aliases.
var categoryCanon = []categoryEntry{
	{name: "食品", aliases: []string{"食品", "food", "groceries"}},
	{name: "衣料品", aliases: []string{"衣料品", "衣類", "clothing", "apparel"}},
	{name: "美容", aliases: []string{"美容", "化粧品", "beauty", "cosmetics"}},
	{name: "旅行", aliases: []string{"旅行", "トラベル", "travel"}},
	{name: "エンターテイメント", aliases: []string{"エンターテイメント", "エンタメ", "entertainment"}},
	{name: "交通", aliases: []string{"交通", "transport", "transportation"}},
	{name: "住居", aliases: []string{"住居", "housing"}},
	{name: "医療", aliases: []string{"医療", "medical", "healthcare"}},
	{name: "教育", aliases: []string{"教育", "education"}},
	{name: "ペット", aliases: []string{"ペット", "pet", "pets"}},
	{name: "その他", aliases: []string{"その他", "other", "others"}},
}

// Categories returns the canonical category names in category_id order.
func Categories() []string {
	names := make([]string, len(categoryCanon))
	for i, entry := range categoryCanon {
		names[i] = entry.name
	}
	return names
}

// FindCategory scans a question for a category mention and returns the
// canonical Japanese name the database stores.
func FindCategory(question string) (string, bool) {
	lowered := strings.ToLower(question)
	for _, entry := range categoryCanon {
		for _, alias := range entry.aliases {
			if strings.Contains(lowered, alias) {
				return entry.name, true
			}
		}
	}
	return "", false
}
