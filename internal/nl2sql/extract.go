package nl2sql

import (
	"regexp"
	"strings"
)

var sqlFence = regexp.MustCompile("(?is)```sql\\s*(.*?)```")

// Extract pulls the statement out of a model reply. A ```sql fenced block
// wins; otherwise the whole reply is used with stray backticks removed.
func Extract(raw string) string {
	if m := sqlFence.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), "`"))
}
