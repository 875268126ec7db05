// Package report turns query results and saved insights into markdown.
package report

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/query"
)

const (
	summaryHeadRows   = 10
	summarySampleRows = 3
	summarySampleCols = 3
)

var numberPrinter = message.NewPrinter(language.English)

// Summarize renders a short narrative for a result. A nil or empty result
// produces the no-rows message.
func Summarize(result *query.Result, question string) string {
	if result == nil || result.RowCount() == 0 {
		return fmt.Sprintf("Query: **%s**\n\nNo rows returned.", question)
	}

	head := result.Head(summaryHeadRows)
	cols := result.Columns
	lines := []string{fmt.Sprintf("**Question:** %s", question)}

	numeric := make([]bool, len(cols))
	var best string
	bestSum := math.Inf(-1)
	for i, col := range cols {
		sum, ok := columnSum(head, i)
		if !ok {
			continue
		}
		numeric[i] = true
		if sum > bestSum {
			best, bestSum = col, sum
		}
	}
	if best != "" {
		lines = append(lines, fmt.Sprintf("- Top numeric column (by head sum): **%s** = %s", best, formatAmount(bestSum)))
	}

	if len(cols) == 2 && !numeric[0] && numeric[1] {
		if top, ok := topRow(head, 1); ok {
			value, _ := toFloat(top[1])
			lines = append(lines, fmt.Sprintf("- Top **%s**: **%s** with %s = %s", cols[0], formatValue(top[0]), cols[1], formatAmount(value)))
		}
	}

	for i, col := range cols {
		if !looksTemporal(col) || !isTimeColumn(head, i) {
			continue
		}
		lines = append(lines, fmt.Sprintf("- Time column detected: **%s** (showing %d recent/first rows).", col, len(head)))
		break
	}

	samples := head
	if len(samples) > summarySampleRows {
		samples = samples[:summarySampleRows]
	}
	bullets := make([]string, 0, len(samples))
	for _, row := range samples {
		parts := make([]string, 0, summarySampleCols)
		for i := 0; i < len(cols) && i < summarySampleCols; i++ {
			parts = append(parts, cols[i]+"="+formatValue(cell(row, i)))
		}
		bullets = append(bullets, "  - "+strings.Join(parts, ", "))
	}
	if len(bullets) > 0 {
		lines = append(lines, "- Sample rows:\n"+strings.Join(bullets, "\n"))
	}
	return strings.Join(lines, "\n")
}

func looksTemporal(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "date") || strings.Contains(lower, "month") || strings.Contains(lower, "timestamp")
}

// columnSum reports the sum of column i when every non-null cell is numeric
// and at least one is present.
func columnSum(rows [][]any, i int) (float64, bool) {
	var sum float64
	seen := false
	for _, row := range rows {
		value := cell(row, i)
		if value == nil {
			continue
		}
		f, ok := toFloat(value)
		if !ok {
			return 0, false
		}
		if !math.IsNaN(f) {
			sum += f
		}
		seen = true
	}
	return sum, seen
}

func isTimeColumn(rows [][]any, i int) bool {
	seen := false
	for _, row := range rows {
		value := cell(row, i)
		if value == nil {
			continue
		}
		if _, ok := value.(time.Time); !ok {
			return false
		}
		seen = true
	}
	return seen
}

func topRow(rows [][]any, i int) ([]any, bool) {
	if len(rows) == 0 {
		return nil, false
	}
	sorted := make([][]any, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(a, b int) bool {
		left, lok := toFloat(cell(sorted[a], i))
		right, rok := toFloat(cell(sorted[b], i))
		if !lok {
			return false
		}
		if !rok {
			return true
		}
		return left > right
	})
	return sorted[0], true
}

func cell(row []any, i int) any {
	if i < len(row) {
		return row[i]
	}
	return nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case *big.Int:
		if v == nil {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(v).Float64()
		return f, true
	case interface{ Float64() float64 }:
		return v.Float64(), true
	default:
		return 0, false
	}
}

func formatAmount(value float64) string {
	return numberPrinter.Sprintf("%.2f", value)
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "None"
	case string:
		return v
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		if v {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(v)
	}
}
