// Package migrations applies the embedded postgres schema for the insight
// journal.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const migrationTable = "insightgpt_schema_migrations"

var migrationNamePattern = regexp.MustCompile(`^([0-9]+)_.+\.(up|down)\.sql$`)

type Runner struct {
	fsys fs.FS
}

func NewRunner() *Runner {
	return &Runner{fsys: embeddedFS}
}

func NewRunnerFS(fsys fs.FS) *Runner {
	return &Runner{fsys: fsys}
}

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// Status lists known migrations and whether each is applied.
type Status struct {
	Version int64
	Name    string
	Applied bool
}

// Up applies pending migrations in version order. steps <= 0 applies all.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	migrations, applied, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}

	runCount := 0
	for _, item := range migrations {
		if _, ok := applied[item.Version]; ok {
			continue
		}
		if steps > 0 && runCount >= steps {
			break
		}
		if err := runInTx(ctx, db, item.UpSQL, `INSERT INTO `+migrationTable+` (version) VALUES ($1)`, item.Version); err != nil {
			return runCount, fmt.Errorf("apply migration %d: %w", item.Version, err)
		}
		runCount++
	}
	return runCount, nil
}

// Down rolls back the newest applied migrations. steps <= 0 means one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	migrations, err := loadMigrations(r.fsys)
	if err != nil {
		return 0, err
	}
	if err := ensureMigrationTable(ctx, db); err != nil {
		return 0, err
	}
	versions, err := appliedVersions(ctx, db, "DESC")
	if err != nil {
		return 0, err
	}

	lookup := make(map[int64]migration, len(migrations))
	for _, item := range migrations {
		lookup[item.Version] = item
	}

	runCount := 0
	for _, version := range versions {
		if runCount >= steps {
			break
		}
		item, ok := lookup[version]
		if !ok {
			return runCount, fmt.Errorf("applied migration %d is missing from source", version)
		}
		if err := runInTx(ctx, db, item.DownSQL, `DELETE FROM `+migrationTable+` WHERE version = $1`, item.Version); err != nil {
			return runCount, fmt.Errorf("rollback migration %d: %w", item.Version, err)
		}
		runCount++
	}
	return runCount, nil
}

func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]Status, error) {
	migrations, applied, err := r.prepare(ctx, db)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(migrations))
	for _, item := range migrations {
		_, ok := applied[item.Version]
		out = append(out, Status{Version: item.Version, Name: item.Name, Applied: ok})
	}
	return out, nil
}

func (r *Runner) prepare(ctx context.Context, db *sql.DB) ([]migration, map[int64]struct{}, error) {
	migrations, err := loadMigrations(r.fsys)
	if err != nil {
		return nil, nil, err
	}
	if err := ensureMigrationTable(ctx, db); err != nil {
		return nil, nil, err
	}
	versions, err := appliedVersions(ctx, db, "ASC")
	if err != nil {
		return nil, nil, err
	}
	applied := make(map[int64]struct{}, len(versions))
	for _, version := range versions {
		applied[version] = struct{}{}
	}
	return migrations, applied, nil
}

func ensureMigrationTable(ctx context.Context, db *sql.DB) error {
	query := `
CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
	version BIGINT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return nil
}

// runInTx executes a migration script and its bookkeeping statement atomically.
func runInTx(ctx context.Context, db *sql.DB, script, bookkeeping string, version int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit()
}

func appliedVersions(ctx context.Context, db *sql.DB, order string) ([]int64, error) {
	if order != "ASC" && order != "DESC" {
		return nil, fmt.Errorf("invalid order %q", order)
	}
	rows, err := db.QueryContext(ctx, `SELECT version FROM `+migrationTable+` ORDER BY version `+order)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []int64
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return versions, nil
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	items := map[int64]migration{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := path.Base(entry.Name())
		matches := migrationNamePattern.FindStringSubmatch(base)
		if len(matches) != 3 {
			continue
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version for %q: %w", base, err)
		}

		script, err := fs.ReadFile(fsys, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		item := items[version]
		item.Version = version
		item.Name = strings.TrimSuffix(strings.TrimSuffix(base, ".up.sql"), ".down.sql")
		if matches[2] == "up" {
			item.UpSQL = string(script)
		} else {
			item.DownSQL = string(script)
		}
		items[version] = item
	}

	migrations := make([]migration, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.UpSQL) == "" {
			return nil, fmt.Errorf("migration %d missing up SQL", item.Version)
		}
		if strings.TrimSpace(item.DownSQL) == "" {
			return nil, fmt.Errorf("migration %d missing down SQL", item.Version)
		}
		migrations = append(migrations, item)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}
