// Package query defines how validated statements are run against the
// analytical store.
package query

import (
	"context"
	"errors"
	"time"
)

var (
	ErrStoreNotFound = errors.New("analytical store not found")
	ErrTimeout       = errors.New("query timed out")
)

type Result struct {
	Columns  []string      `json:"columns"`
	Rows     [][]any       `json:"rows"`
	Duration time.Duration `json:"-"`
}

func (r Result) RowCount() int {
	return len(r.Rows)
}

// Head returns at most n rows.
func (r Result) Head(n int) [][]any {
	if n < 0 || n >= len(r.Rows) {
		return r.Rows
	}
	return r.Rows[:n]
}

// Executor runs exactly one read-only statement and materializes every row.
type Executor interface {
	Execute(ctx context.Context, sql string) (Result, error)
}

type ExecutorFunc func(ctx context.Context, sql string) (Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, sql string) (Result, error) {
	return f(ctx, sql)
}
