package nl2sql

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrUnsafeStatement = errors.New("unsafe statement")

// bannedKeywords are matched as plain substrings of the uppercased statement,
// so identifiers such as created_at are rejected too.
var bannedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE",
	"REPLACE", "TRUNCATE", "ATTACH", "DETACH", "PRAGMA", "COPY",
}

// IsSafeSelect reports whether candidate is exactly one read-only SELECT or
// WITH statement.
func IsSafeSelect(candidate string) bool {
	return ValidateStatement(candidate) == nil
}

// ValidateStatement is IsSafeSelect with the rejection reason.
func ValidateStatement(candidate string) error {
	statements := SplitStatements(candidate)
	if len(statements) != 1 {
		return fmt.Errorf("%w: expected exactly one statement, got %d", ErrUnsafeStatement, len(statements))
	}
	stmt := statements[0]

	upper := strings.ToUpper(stmt)
	for _, keyword := range bannedKeywords {
		if strings.Contains(upper, keyword) {
			return fmt.Errorf("%w: contains %s", ErrUnsafeStatement, keyword)
		}
	}

	head := strings.ToUpper(firstToken(stmt))
	if !strings.HasPrefix(head, "SELECT") && !strings.HasPrefix(head, "WITH") {
		return fmt.Errorf("%w: statement starts with %q", ErrUnsafeStatement, head)
	}
	return nil
}

// SplitStatements splits on top-level semicolons. Quoted text, comments and
// parenthesized groups never split. Whitespace and line comments that follow a
// semicolon belong to the statement before it. Blank statements are dropped.
func SplitStatements(text string) []string {
	var (
		out      []string
		start    int
		depth    int
		trailing bool
	)
	flush := func(end int) {
		if stmt := strings.TrimSpace(text[start:end]); stmt != "" {
			out = append(out, stmt)
		}
		start = end
	}

	for i := 0; i < len(text); {
		c := text[i]
		if trailing && !isSpace(c) && !strings.HasPrefix(text[i:], "--") {
			flush(i)
			trailing = false
		}
		switch {
		case isSpace(c):
			i++
		case strings.HasPrefix(text[i:], "--"):
			i = skipLineComment(text, i)
		case strings.HasPrefix(text[i:], "/*"):
			i = skipBlockComment(text, i)
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(text, i, c)
		case c == '(':
			depth++
			i++
		case c == ')':
			if depth > 0 {
				depth--
			}
			i++
		case c == ';' && depth == 0:
			i++
			trailing = true
		default:
			i++
		}
	}
	flush(len(text))
	return out
}

// firstToken returns the leading word run, comment or punctuation character.
func firstToken(stmt string) string {
	stmt = strings.TrimLeftFunc(stmt, unicode.IsSpace)
	if stmt == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(stmt, "--"):
		return stmt[:skipLineComment(stmt, 0)]
	case strings.HasPrefix(stmt, "/*"):
		return stmt[:skipBlockComment(stmt, 0)]
	}
	end := strings.IndexFunc(stmt, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$')
	})
	switch end {
	case -1:
		return stmt
	case 0:
		return stmt[:1]
	default:
		return stmt[:end]
	}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// skipLineComment returns the index after the comment's newline.
func skipLineComment(text string, i int) int {
	if nl := strings.IndexByte(text[i:], '\n'); nl >= 0 {
		return i + nl + 1
	}
	return len(text)
}

func skipBlockComment(text string, i int) int {
	if end := strings.Index(text[i+2:], "*/"); end >= 0 {
		return i + 2 + end + 2
	}
	return len(text)
}

// skipQuoted handles doubled-quote and backslash escapes. An unterminated
// quote runs to the end of the text.
func skipQuoted(text string, i int, quote byte) int {
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case quote:
			if j+1 < len(text) && text[j+1] == quote {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(text)
}
