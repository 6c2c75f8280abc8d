package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"hybrid_copilot/pkg"

	_ "modernc.org/sqlite"
)

// Index ranks passages with SQLite FTS5 and bm25.
//
// The index lives in an in-memory database. Every connection to ":memory:"
// is a separate database, so the pool is pinned to one connection.
type Index struct {
	mu       sync.Mutex
	db       *sql.DB
	passages []pkg.Passage
}

// New creates an empty index
func New(ctx context.Context) (*Index, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	_, err = db.ExecContext(ctx, `CREATE VIRTUAL TABLE passages USING fts5(
		id UNINDEXED,
		source UNINDEXED,
		content,
		tokenize = 'porter unicode61'
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create passage index: %w", err)
	}

	return &Index{db: db}, nil
}

// NewFromDir builds an index over the markdown documents in dir
func NewFromDir(ctx context.Context, dir string, names []string, minChars int) (*Index, error) {
	passages, err := LoadDocuments(dir, names, minChars)
	if err != nil {
		return nil, err
	}
	idx, err := New(ctx)
	if err != nil {
		return nil, err
	}
	if err := idx.Add(ctx, passages...); err != nil {
		idx.Close()
		return nil, err
	}
	return idx, nil
}

// Add indexes passages in order. Indexing order breaks score ties.
func (i *Index) Add(ctx context.Context, passages ...pkg.Passage) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin indexing: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO passages (rowid, id, source, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for n, p := range passages {
		rowid := len(i.passages) + n + 1
		if _, err := stmt.ExecContext(ctx, rowid, p.ID, p.Source, p.Content); err != nil {
			return fmt.Errorf("failed to index passage %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}

	i.passages = append(i.passages, passages...)
	return nil
}

// Len returns the number of indexed passages
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.passages)
}

// Retrieve returns up to k passages ordered by descending score. An empty
// corpus or a query without searchable terms yields an empty slice.
func (i *Index) Retrieve(ctx context.Context, query string, k int) ([]pkg.Passage, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	results := []pkg.Passage{}
	if k <= 0 || len(i.passages) == 0 {
		return results, nil
	}
	match := matchExpression(query)
	if match == "" {
		return results, nil
	}

	rows, err := i.db.QueryContext(ctx, `
		SELECT id, source, content, bm25(passages)
		FROM passages
		WHERE passages MATCH ?
		ORDER BY bm25(passages), rowid
		LIMIT ?`, match, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search passages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p    pkg.Passage
			rank float64
		)
		if err := rows.Scan(&p.ID, &p.Source, &p.Content, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		// bm25 is lower-is-better
		p.Score = -rank
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search passages: %w", err)
	}
	return results, nil
}

// Close releases the index database
func (i *Index) Close() error {
	return i.db.Close()
}

// matchExpression turns free text into an FTS5 query of OR-ed terms
func matchExpression(query string) string {
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range tokenize(query) {
		if stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, `"`+tok+`"`)
	}
	return strings.Join(terms, " OR ")
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var stopWords = func() map[string]bool {
	words := strings.Fields(`a about above after again against all am an and any are as at
		be because been before being below between both but by can did do does doing down
		during each few for from further had has have having he her here hers herself him
		himself his how i if in into is it its itself just me more most my myself no nor not
		now of off on once only or other our ours ourselves out over own same she should so
		some such than that the their theirs them themselves then there these they this those
		through to too under until up very was we were what when where which while who whom
		why will with you your yours yourself yourselves`)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}()
