package store

import (
	"context"
	"errors"

	"custodian/internal/platform/store/ch"
)

// newCHAdapter wraps an existing *ch.CH and returns the store.Clickhouse seam
func newCHAdapter(c *ch.CH) Clickhouse {
	return &clickhouseAdapter{inner: c}
}

// clickhouseAdapter adapts *ch.CH to the store.Clickhouse interface
type clickhouseAdapter struct {
	inner *ch.CH
}

var _ Clickhouse = (*clickhouseAdapter)(nil)

func (a *clickhouseAdapter) Insert(ctx context.Context, table string, cols []string, rows [][]any) error {
	return a.inner.Insert(ctx, table, cols, rows)
}

func (a *clickhouseAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	r, err := a.inner.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &chRowsAdapter{r: r}, nil
}

func (a *clickhouseAdapter) Close() error { return a.inner.Close() }

// Ping verifies connectivity with ClickHouse
func (a *clickhouseAdapter) Ping(ctx context.Context) error {
	if a == nil || a.inner == nil {
		return errors.New("store: nil clickhouse adapter")
	}
	return a.inner.Ping(ctx)
}

// chRowsAdapter wraps ch.Rows as store.Rows
type chRowsAdapter struct {
	r ch.Rows
}

func (r *chRowsAdapter) Next() bool             { return r.r.Next() }
func (r *chRowsAdapter) Scan(dest ...any) error { return r.r.Scan(dest...) }
func (r *chRowsAdapter) Err() error             { return r.r.Err() }
func (r *chRowsAdapter) Close()                 { _ = r.r.Close() }
func (r *chRowsAdapter) Columns() []string      { return r.r.Columns() }
