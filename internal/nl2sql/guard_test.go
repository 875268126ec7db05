package nl2sql

import (
	"errors"
	"testing"
)

func TestIsSafeSelect(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want bool
	}{
		{name: "select", sql: "SELECT 1", want: true},
		{name: "lowercase select", sql: "select count(*) from orders", want: true},
		{name: "trailing semicolon", sql: "SELECT 1;", want: true},
		{name: "trailing line comment", sql: "SELECT 1; -- top rows\n", want: true},
		{name: "cte", sql: "WITH a AS (SELECT 1 AS x) SELECT x FROM a;", want: true},
		{name: "leading whitespace", sql: "\n\t SELECT 1", want: true},
		{name: "semicolon inside string", sql: "SELECT 'a;b' AS s", want: true},
		{name: "semicolon inside quoted identifier", sql: `SELECT 1 AS "x;y"`, want: true},
		{name: "semicolon inside block comment", sql: "SELECT /* ; */ 1", want: true},
		{name: "semicolon inside parens", sql: "SELECT (1;2)", want: true},
		{name: "escaped quote", sql: "SELECT 'it''s; fine'", want: true},
		{name: "backslash escaped quote", sql: `SELECT 'x\'; SELECT 2 --'`, want: true},
		{name: "drop", sql: "DROP TABLE orders", want: false},
		{name: "multi statement", sql: "SELECT 1; SELECT 2", want: false},
		{name: "select then delete", sql: "SELECT 1; DELETE FROM orders", want: false},
		{name: "double semicolon", sql: "SELECT 1;;", want: false},
		{name: "block comment after semicolon", sql: "SELECT 1; /* note */", want: false},
		{name: "created_at identifier", sql: "SELECT created_at FROM orders", want: false},
		{name: "banned word in literal", sql: "SELECT 'please update me'", want: false},
		{name: "banned word in comment", sql: "SELECT 1 -- drop later", want: false},
		{name: "replace function", sql: "SELECT replace(customer_city, 'a', 'b') FROM customers", want: false},
		{name: "describe", sql: "DESCRIBE orders", want: false},
		{name: "leading comment", sql: "-- answer\nSELECT 1", want: false},
		{name: "parenthesized select", sql: "(SELECT 1)", want: false},
		{name: "values", sql: "VALUES (1)", want: false},
		{name: "empty", sql: "", want: false},
		{name: "only semicolons", sql: " ; ", want: false},
		{name: "select prefix word", sql: "selectx FROM t", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSafeSelect(tt.sql); got != tt.want {
				t.Fatalf("IsSafeSelect(%q) = %v, want %v (reason: %v)", tt.sql, got, tt.want, ValidateStatement(tt.sql))
			}
		})
	}
}

func TestValidateStatementWrapsSentinel(t *testing.T) {
	err := ValidateStatement("DROP TABLE orders")
	if !errors.Is(err, ErrUnsafeStatement) {
		t.Fatalf("ValidateStatement() error = %v", err)
	}
}

func TestSplitStatements(t *testing.T) {
	got := SplitStatements("SELECT 1; -- one\nSELECT ';' ;\n\n  ")
	if len(got) != 2 {
		t.Fatalf("SplitStatements() = %#v", got)
	}
	if got[0] != "SELECT 1; -- one" || got[1] != "SELECT ';' ;" {
		t.Fatalf("SplitStatements() = %#v", got)
	}
}

// A backslash escapes the next character inside quotes, so the text below is
// one statement holding one string literal.
func TestSplitStatementsTreatsBackslashAsEscape(t *testing.T) {
	sql := `SELECT 'x\'; SELECT 2 --'`
	got := SplitStatements(sql)
	if len(got) != 1 || got[0] != sql {
		t.Fatalf("SplitStatements(%q) = %#v", sql, got)
	}
}
