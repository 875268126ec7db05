package report

import (
	"fmt"
	"strings"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/insights"
)

const (
	DefaultTitle  = "Olist InsightGPT Analysis Report"
	DefaultAuthor = "Auto-Analyst"

	emptyPlaceholder = "*(No insights saved yet. Use **Save insight** after a query.)*"
)

// InsightsToMarkdown compiles saved insights into one markdown document.
func InsightsToMarkdown(records []insights.Record, title, author string) string {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	if strings.TrimSpace(author) == "" {
		author = DefaultAuthor
	}

	lines := []string{"# " + title, "", "_Author: " + author + "_", ""}
	if len(records) == 0 {
		lines = append(lines, emptyPlaceholder)
		return strings.Join(lines, "\n")
	}
	for i, record := range records {
		lines = append(lines,
			fmt.Sprintf("## Insight %d", i+1),
			"**Time:** "+record.Timestamp,
			"**Question:** "+record.Question,
			"",
			record.Summary,
		)
		if record.SQL != "" {
			lines = append(lines, "", "```sql", record.SQL, "```")
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
