// Package duckdb runs analytics statements against a DuckDB database file.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb/v2"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/observability"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/query"
)

const DriverName = "duckdb"

type Options struct {
	Path         string
	MaxOpenConns int
	QueryTimeout time.Duration
	RowLimit     int
}

type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
	rowLimit     int
	logger       *slog.Logger
}

// OpenDatabase opens a DuckDB file. Read-only handles cannot mutate the file
// even if a statement slips past validation.
func OpenDatabase(path string, readOnly bool) (*sql.DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("duckdb path is required")
	}
	dsn := path
	if readOnly {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", query.ErrStoreNotFound, path)
			}
			return nil, fmt.Errorf("stat duckdb file: %w", err)
		}
		dsn += "?access_mode=READ_ONLY"
	}
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", path, err)
	}
	return db, nil
}

func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	db, err := OpenDatabase(opts.Path, true)
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return NewWithDB(db, opts, logger), nil
}

func NewWithDB(db *sql.DB, opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, queryTimeout: opts.QueryTimeout, rowLimit: opts.RowLimit, logger: logger}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Execute runs one statement on a connection scoped to the call. The
// connection goes back to the pool on every exit path.
func (s *Store) Execute(ctx context.Context, sqlText string) (result query.Result, err error) {
	sqlText = trimStatement(sqlText)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if s.rowLimit > 0 {
		sqlText = fmt.Sprintf("SELECT * FROM (\n%s\n) AS q LIMIT %d", sqlText, s.rowLimit)
	}

	parent := ctx
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			result = query.Result{}
			err = fmt.Errorf("duckdb execution panicked: %v", recovered)
		}
		if err != nil && parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %v", query.ErrTimeout, s.queryTimeout, err)
		}
		observability.ObserveStoreQuery(err, time.Since(start))
	}()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return query.Result{}, fmt.Errorf("acquire duckdb connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, err
	}

	s.logger.DebugContext(ctx, "store query executed",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.Int("rows", len(resultRows)),
		slog.Duration("duration", time.Since(start)),
	)
	return query.Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

// normalizeValues maps driver types onto plain Go values so results encode
// as JSON numbers and strings.
func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case goduckdb.Decimal:
			normalized[i] = typed.Float64()
		case *goduckdb.Decimal:
			if typed == nil {
				normalized[i] = nil
				continue
			}
			normalized[i] = typed.Float64()
		case *big.Int:
			normalized[i] = bigIntValue(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

// bigIntValue keeps HUGEINT results that fit as int64 and falls back to
// float64 otherwise.
func bigIntValue(v *big.Int) any {
	if v == nil {
		return nil
	}
	if v.IsInt64() {
		return v.Int64()
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func QuoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func QuoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

// trimStatement drops trailing whitespace, semicolons and comments so the
// statement can be nested inside another query.
func trimStatement(sqlText string) string {
	end := 0
	for i := 0; i < len(sqlText); {
		c := sqlText[i]
		switch {
		case c == '\'' || c == '"':
			i = skipQuotedLiteral(sqlText, i, c)
			end = i
		case c == '-' && i+1 < len(sqlText) && sqlText[i+1] == '-':
			if nl := strings.IndexByte(sqlText[i:], '\n'); nl >= 0 {
				i += nl + 1
			} else {
				i = len(sqlText)
			}
		case c == '/' && i+1 < len(sqlText) && sqlText[i+1] == '*':
			if stop := strings.Index(sqlText[i+2:], "*/"); stop >= 0 {
				i += stop + 4
			} else {
				i = len(sqlText)
			}
		case c == ';' || c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			i++
		default:
			i++
			end = i
		}
	}
	return strings.TrimSpace(sqlText[:end])
}

// skipQuotedLiteral follows DuckDB quoting, where only a doubled quote
// escapes.
func skipQuotedLiteral(text string, i int, quote byte) int {
	for j := i + 1; j < len(text); j++ {
		if text[j] != quote {
			continue
		}
		if j+1 < len(text) && text[j+1] == quote {
			j++
			continue
		}
		return j + 1
	}
	return len(text)
}
