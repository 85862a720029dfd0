package nl2sql

import "context"

// Request asks for SQL answering a natural language question over the
// described warehouse schema.
type Request struct {
	Question      string
	SchemaContext string
}

// Result is the SQL a translator produced.
type Result struct {
	SQL      string
	Provider string
	Model    string
}

// Translator turns a natural language question into SQL.
type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

// Path records which synthesis strategy produced a plan.
type Path string

const (
	PathRule     Path = "rule"
	PathGeneric  Path = "generic"
	PathFallback Path = "fallback"
)

// Plan is a SQL statement ready for execution plus the path that
// produced it.
type Plan struct {
	SQL  string
	Path Path
}
