package sqltool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"hybrid_copilot/internal/logger"
	"hybrid_copilot/pkg"

	_ "modernc.org/sqlite"
)

// Executor runs generated queries against a SQLite dataset.
//
// The executor holds a single long-lived connection shared by every run in
// the process. Calls are serialized with a mutex so the executor stays safe
// if runs are ever processed in parallel.
type Executor struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open connects to the SQLite database at path
func Open(ctx context.Context, path string) (*Executor, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}

	logger.Info().Str("path", path).Msg("Connected to dataset")

	return &Executor{db: db, path: path}, nil
}

// SchemaSummary lists every user table with its columns:
//
//	Table: Orders
//	  - OrderID (INTEGER)
//	  - OrderDate (DATETIME)
//
// Tables are sorted by name and separated by a blank line.
func (e *Executor) SchemaSummary(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows, err := e.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return "", fmt.Errorf("failed to list tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return "", fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to list tables: %w", err)
	}

	var parts []string
	for _, table := range tables {
		columns, err := e.tableColumns(ctx, table)
		if err != nil {
			return "", err
		}
		parts = append(parts, "Table: "+table)
		for _, col := range columns {
			parts = append(parts, fmt.Sprintf("  - %s (%s)", col[0], col[1]))
		}
		parts = append(parts, "")
	}

	return strings.Join(parts, "\n"), nil
}

func (e *Executor) tableColumns(ctx context.Context, table string) ([][2]string, error) {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info("%s")`, strings.ReplaceAll(table, `"`, `""`)))
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns [][2]string
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan columns of %s: %w", table, err)
		}
		columns = append(columns, [2]string{name, colType})
	}
	return columns, rows.Err()
}

// Execute runs a query. Read queries return their columns and rows, write
// queries are committed and return an empty result. Any fault is reported in
// the result's Error field rather than as a Go error.
func (e *Executor) Execute(ctx context.Context, query string) pkg.QueryResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	query = strings.TrimSpace(query)
	if query == "" {
		return failure(errors.New("empty query"))
	}

	if !isReadQuery(query) {
		if _, err := e.db.ExecContext(ctx, query); err != nil {
			return failure(err)
		}
		return pkg.QueryResult{Columns: []string{}, Rows: []map[string]any{}}
	}

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return failure(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return failure(err)
	}

	result := pkg.QueryResult{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return failure(err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return failure(err)
	}

	return result
}

// Close closes the database connection
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.Close()
}

func failure(err error) pkg.QueryResult {
	return pkg.QueryResult{
		Columns: []string{},
		Rows:    []map[string]any{},
		Error:   err.Error(),
	}
}

var readKeyword = regexp.MustCompile(`(?i)^(SELECT|WITH|VALUES|PRAGMA|EXPLAIN)\b`)

// isReadQuery reports whether the statement returns rows. Leading comments
// are skipped before the keyword is matched.
func isReadQuery(query string) bool {
	return readKeyword.MatchString(skipLeadingComments(query))
}

func skipLeadingComments(query string) string {
	for {
		query = strings.TrimSpace(query)
		switch {
		case strings.HasPrefix(query, "--"):
			end := strings.IndexByte(query, '\n')
			if end < 0 {
				return ""
			}
			query = query[end+1:]
		case strings.HasPrefix(query, "/*"):
			end := strings.Index(query[2:], "*/")
			if end < 0 {
				return ""
			}
			query = query[end+4:]
		default:
			return query
		}
	}
}
