package schema

import (
	"context"
	"database/sql"
	"fmt"
)

const introspectSQL = `SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = 'main'
ORDER BY table_name, ordinal_position`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Introspect reads every table in the main schema of an open DuckDB database.
func Introspect(ctx context.Context, db queryer, hints map[string]string) (Descriptor, error) {
	rows, err := db.QueryContext(ctx, introspectSQL)
	if err != nil {
		return Descriptor{}, fmt.Errorf("query information_schema: %w", err)
	}
	defer rows.Close()

	desc := Descriptor{Tables: make([]Table, 0)}
	for rows.Next() {
		var table string
		var column Column
		if err := rows.Scan(&table, &column.Name, &column.Type); err != nil {
			return Descriptor{}, fmt.Errorf("scan column: %w", err)
		}
		last := len(desc.Tables) - 1
		if last < 0 || desc.Tables[last].Name != table {
			desc.Tables = append(desc.Tables, Table{Name: table})
			last++
		}
		desc.Tables[last].Columns = append(desc.Tables[last].Columns, column)
	}
	if err := rows.Err(); err != nil {
		return Descriptor{}, fmt.Errorf("iterate columns: %w", err)
	}
	if desc.Empty() {
		return Descriptor{}, fmt.Errorf("%w: database has no tables", ErrDescriptorNotFound)
	}
	return desc.ApplyHints(hints), nil
}
