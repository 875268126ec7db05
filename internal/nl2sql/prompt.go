// Package nl2sql turns analytics questions into a single validated DuckDB
// SELECT and runs it, with one repair attempt on failure.
package nl2sql

import (
	"strings"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/schema"
)

const systemRules = `You convert a user's analytics question into a SINGLE DuckDB SQL SELECT (or CTE+SELECT).
Rules:
- Output only SQL (no prose).
- Use ONLY the provided schema (tables/columns).
- No DDL/DML and no modifications (no CREATE/INSERT/UPDATE/DELETE/DROP/ALTER/TRUNCATE).
- Prefer ANSI SQL.
- Add clear aliases for aggregates (e.g., AS revenue).
`

// BuildPrompt renders the generation prompt. It is a pure function of its
// inputs. A non-empty priorError turns it into a repair prompt.
func BuildPrompt(desc schema.Descriptor, question, priorError string) string {
	var b strings.Builder
	b.WriteString(systemRules)
	b.WriteString("\n\nSCHEMA:\n")
	b.WriteString(schemaText(desc))
	b.WriteString("\n\nEXAMPLES:\n")
	b.WriteString(examplesText())
	b.WriteString("\n\nNow write only SQL for:\nQ: ")
	b.WriteString(question)
	b.WriteString("\nSQL:")

	prompt := strings.TrimSpace(b.String())
	if priorError != "" {
		prompt += "\n\nError:\n" + priorError + "\nFix SQL only:"
	}
	return prompt
}

func schemaText(desc schema.Descriptor) string {
	lines := make([]string, 0, len(desc.Tables))
	for _, table := range desc.Tables {
		cols := make([]string, 0, len(table.Columns))
		for _, col := range table.Columns {
			cols = append(cols, col.Name+":"+col.Type)
		}
		lines = append(lines, table.Name+"("+strings.Join(cols, ", ")+")")
	}
	return strings.Join(lines, "\n")
}

func examplesText() string {
	parts := make([]string, 0, len(Examples))
	for _, ex := range Examples {
		parts = append(parts, "-- Q: "+ex.Question+"\n"+ex.SQL)
	}
	return strings.Join(parts, "\n\n")
}
