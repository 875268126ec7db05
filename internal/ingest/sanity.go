package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/query/duckdb"
)

type foreignKey struct {
	Label       string
	ChildTable  string
	ChildKey    string
	ParentTable string
	ParentKey   string
}

var foreignKeys = []foreignKey{
	{"items→orders", "items", "order_id", "orders", "order_id"},
	{"items→products", "items", "product_id", "products", "product_id"},
	{"orders→customers", "orders", "customer_id", "customers", "customer_id"},
	{"payments→orders", "payments", "order_id", "orders", "order_id"},
	{"reviews→orders", "reviews", "order_id", "orders", "order_id"},
}

var keyColumns = []struct {
	Table   string
	Columns []string
}{
	{"orders", []string{"order_id", "customer_id"}},
	{"items", []string{"order_id", "product_id"}},
	{"payments", []string{"order_id"}},
	{"reviews", []string{"order_id", "review_score"}},
	{"customers", []string{"customer_id"}},
	{"products", []string{"product_id"}},
	{"sellers", []string{"seller_id"}},
}

type RowCount struct {
	Table string
	Rows  int64
}

type NullRate struct {
	Table     string
	Column    string
	TotalRows int64
	NullRows  int64
	NullPct   float64
}

type Violation struct {
	Check       string
	ChildTable  string
	ChildKey    string
	ParentTable string
	ParentKey   string
	Count       int64
}

type SanityReport struct {
	RowCounts  []RowCount
	NullRates  []NullRate
	Violations []Violation
}

// Check gathers row counts, key null rates and orphaned foreign keys from a
// loaded store.
func Check(ctx context.Context, db *sql.DB) (SanityReport, error) {
	var report SanityReport

	rows, err := db.QueryContext(ctx, `SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' ORDER BY 1`)
	if err != nil {
		return SanityReport{}, fmt.Errorf("list tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return SanityReport{}, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return SanityReport{}, fmt.Errorf("iterate tables: %w", err)
	}
	_ = rows.Close()

	present := make(map[string]bool, len(tables))
	for _, table := range tables {
		count, err := countRows(ctx, db, "SELECT COUNT(*) FROM "+duckdb.QuoteIdent(table))
		if err != nil {
			return SanityReport{}, fmt.Errorf("count %s: %w", table, err)
		}
		report.RowCounts = append(report.RowCounts, RowCount{Table: table, Rows: count})
		present[table] = true
	}

	for _, key := range keyColumns {
		if !present[key.Table] {
			continue
		}
		table := duckdb.QuoteIdent(key.Table)
		total, err := countRows(ctx, db, "SELECT COUNT(*) FROM "+table)
		if err != nil {
			return SanityReport{}, fmt.Errorf("count %s: %w", key.Table, err)
		}
		for _, column := range key.Columns {
			nulls, err := countRows(ctx, db, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", table, duckdb.QuoteIdent(column)))
			if err != nil {
				return SanityReport{}, fmt.Errorf("count nulls %s.%s: %w", key.Table, column, err)
			}
			pct := 0.0
			if total > 0 {
				pct = math.Round(float64(nulls)/float64(total)*100*10000) / 10000
			}
			report.NullRates = append(report.NullRates, NullRate{
				Table: key.Table, Column: column, TotalRows: total, NullRows: nulls, NullPct: pct,
			})
		}
	}

	for _, fk := range foreignKeys {
		if !present[fk.ChildTable] || !present[fk.ParentTable] {
			continue
		}
		stmt := fmt.Sprintf(
			"SELECT COUNT(*) FROM %s ch LEFT JOIN %s p ON ch.%s = p.%s WHERE p.%s IS NULL",
			duckdb.QuoteIdent(fk.ChildTable), duckdb.QuoteIdent(fk.ParentTable),
			duckdb.QuoteIdent(fk.ChildKey), duckdb.QuoteIdent(fk.ParentKey), duckdb.QuoteIdent(fk.ParentKey),
		)
		count, err := countRows(ctx, db, stmt)
		if err != nil {
			return SanityReport{}, fmt.Errorf("check %s: %w", fk.Label, err)
		}
		report.Violations = append(report.Violations, Violation{
			Check: fk.Label, ChildTable: fk.ChildTable, ChildKey: fk.ChildKey,
			ParentTable: fk.ParentTable, ParentKey: fk.ParentKey, Count: count,
		})
	}
	return report, nil
}

func countRows(ctx context.Context, db *sql.DB, stmt string) (int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, stmt).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Markdown renders the report as github flavoured tables.
func (r SanityReport) Markdown() string {
	var b strings.Builder
	b.WriteString("# Ingestion & Sanity Report\n\n")

	b.WriteString("## Row counts\n\n")
	counts := make([][]string, 0, len(r.RowCounts))
	for _, rc := range r.RowCounts {
		counts = append(counts, []string{rc.Table, fmt.Sprint(rc.Rows)})
	}
	writeTable(&b, []string{"table", "rows"}, counts)

	b.WriteString("\n\n## Key column null rates\n\n")
	nulls := make([][]string, 0, len(r.NullRates))
	for _, nr := range r.NullRates {
		nulls = append(nulls, []string{nr.Table, nr.Column, fmt.Sprint(nr.TotalRows), fmt.Sprint(nr.NullRows), fmt.Sprint(nr.NullPct)})
	}
	writeTable(&b, []string{"table", "column", "total_rows", "null_rows", "null_pct"}, nulls)

	b.WriteString("\n\n## Referential integrity (violations)\n\n")
	violations := make([][]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		violations = append(violations, []string{v.Check, v.ChildTable, v.ChildKey, v.ParentTable, v.ParentKey, fmt.Sprint(v.Count)})
	}
	writeTable(&b, []string{"check", "child_table", "child_key", "parent_table", "parent_key", "violations"}, violations)
	b.WriteString("\n")
	return b.String()
}

func writeTable(b *strings.Builder, header []string, rows [][]string) {
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("|" + strings.Join(sep, "|") + "|")
	for _, row := range rows {
		b.WriteString("\n| " + strings.Join(row, " | ") + " |")
	}
}
