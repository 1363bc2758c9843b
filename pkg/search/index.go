package search

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-coursebook/pkg/content"
	"github.com/mattsolo1/grove-coursebook/pkg/notebook"
)

const defaultLimit = 50

// Index is a full-text index over the text content of course files.
// Asset files carry no text and are indexed by name only.
type Index struct {
	db     *sql.DB
	useFTS bool
	logger *logrus.Entry
}

// Hit is one file matching a content query.
type Hit struct {
	Path    string `json:"path"`
	Chapter string `json:"chapter"`
	Name    string `json:"name"`
	Ext     string `json:"ext"`
	Snippet string `json:"snippet,omitempty"`
}

// Options narrows a content search.
type Options struct {
	Chapter string // chapter ID, e.g. "Data/1.LCG"
	Ext     string
	Limit   int
}

// NewIndex opens (or creates) the index database at dbPath.
func NewIndex(dbPath string, logger *logrus.Entry) (*Index, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}
	idx := &Index{db: db, logger: logger.WithField("component", "search-index")}
	if err := idx.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) init() error {
	idx.useFTS = idx.checkFTS5Support()

	schema := `
	CREATE TABLE IF NOT EXISTS files_meta (
		path TEXT PRIMARY KEY,
		chapter TEXT,
		name TEXT,
		ext TEXT,
		content TEXT,
		indexed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_files_meta_chapter ON files_meta(chapter);
	CREATE INDEX IF NOT EXISTS idx_files_meta_ext ON files_meta(ext);
	`
	if _, err := idx.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if idx.useFTS {
		ftsSchema := `
		CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
			path UNINDEXED,
			name,
			content,
			tokenize = 'porter unicode61'
		);
		`
		if _, err := idx.db.Exec(ftsSchema); err != nil {
			idx.logger.WithError(err).Debug("FTS5 unavailable, falling back to LIKE search")
			idx.useFTS = false
		}
	}
	return nil
}

func (idx *Index) checkFTS5Support() bool {
	if _, err := idx.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS fts5_probe USING fts5(content)"); err != nil {
		return false
	}
	_, _ = idx.db.Exec("DROP TABLE IF EXISTS fts5_probe")
	return true
}

// FullText reports whether the sqlite build supports FTS5.
func (idx *Index) FullText() bool {
	return idx.useFTS
}

// IndexChapters replaces the index contents with every file in chapters.
// It returns the number of files indexed.
func (idx *Index) IndexChapters(ctx context.Context, chapters []content.Chapter) (int, error) {
	start := time.Now()
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if idx.useFTS {
		if _, err := tx.ExecContext(ctx, "DELETE FROM files_fts"); err != nil {
			return 0, err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM files_meta"); err != nil {
		return 0, err
	}

	now := time.Now()
	count := 0
	for _, ch := range chapters {
		var walkErr error
		ch.Root.Walk(func(f *content.File) {
			if walkErr != nil {
				return
			}
			text := fileText(f)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO files_meta (path, chapter, name, ext, content, indexed_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, f.Path, ch.ID, f.Name, f.Ext, text, now); err != nil {
				walkErr = fmt.Errorf("index %s: %w", f.Path, err)
				return
			}
			if idx.useFTS {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO files_fts (path, name, content) VALUES (?, ?, ?)
				`, f.Path, f.Name, text); err != nil {
					walkErr = fmt.Errorf("index %s: %w", f.Path, err)
					return
				}
			}
			count++
		})
		if walkErr != nil {
			return 0, walkErr
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	idx.logger.WithFields(logrus.Fields{
		"files":    count,
		"fts":      idx.useFTS,
		"duration": time.Since(start),
	}).Debug("Indexed course files")
	return count, nil
}

// fileText is the searchable text of f. Notebooks contribute their cell
// sources rather than the JSON envelope.
func fileText(f *content.File) string {
	if f.Kind != content.PayloadRaw {
		return ""
	}
	if !f.IsNotebook() {
		return f.Raw
	}
	doc, err := notebook.Parse([]byte(f.Raw))
	if err != nil {
		return f.Raw
	}
	parts := make([]string, 0, len(doc.Cells))
	for _, c := range doc.Cells {
		parts = append(parts, c.Source)
	}
	return strings.Join(parts, "\n")
}

// Search finds files whose name or content matches query.
func (idx *Index) Search(ctx context.Context, query string, opts *Options) ([]Hit, error) {
	if opts == nil {
		opts = &Options{}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return []Hit{}, nil
	}

	if idx.useFTS {
		return idx.searchWithFTS(ctx, terms, opts, limit)
	}
	return idx.searchWithoutFTS(ctx, terms, opts, limit)
}

func filterClause(prefix string, opts *Options) ([]string, []any) {
	var conditions []string
	var args []any
	if opts.Chapter != "" {
		conditions = append(conditions, prefix+"chapter = ?")
		args = append(args, opts.Chapter)
	}
	if opts.Ext != "" {
		conditions = append(conditions, prefix+"ext = ?")
		args = append(args, strings.ToLower(strings.TrimPrefix(opts.Ext, ".")))
	}
	return conditions, args
}

// ftsQuery quotes every term so user input is never parsed as FTS5
// query syntax.
func ftsQuery(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

func (idx *Index) searchWithFTS(ctx context.Context, terms []string, opts *Options, limit int) ([]Hit, error) {
	conditions, args := filterClause("m.", opts)
	conditions = append(conditions, "files_fts MATCH ?")
	args = append(args, ftsQuery(terms), limit)

	q := fmt.Sprintf(`
		SELECT
			m.path, m.chapter, m.name, m.ext,
			snippet(files_fts, 2, '[', ']', '...', 16) AS snippet
		FROM files_fts f
		JOIN files_meta m ON f.path = m.path
		WHERE %s
		ORDER BY rank
		LIMIT ?
	`, strings.Join(conditions, " AND "))

	rows, err := idx.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Path, &h.Chapter, &h.Name, &h.Ext, &h.Snippet); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (idx *Index) searchWithoutFTS(ctx context.Context, terms []string, opts *Options, limit int) ([]Hit, error) {
	conditions, args := filterClause("", opts)
	for _, t := range terms {
		pattern := "%" + t + "%"
		conditions = append(conditions, "(name LIKE ? OR content LIKE ?)")
		args = append(args, pattern, pattern)
	}
	args = append(args, limit)

	q := fmt.Sprintf(`
		SELECT path, chapter, name, ext, content
		FROM files_meta
		WHERE %s
		ORDER BY path
		LIMIT ?
	`, strings.Join(conditions, " AND "))

	rows, err := idx.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var h Hit
		var text string
		if err := rows.Scan(&h.Path, &h.Chapter, &h.Name, &h.Ext, &text); err != nil {
			return nil, err
		}
		h.Snippet = snippet(text, terms[0], 40)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// snippet returns the text around the first case-insensitive occurrence
// of term, with the occurrence bracketed.
func snippet(text, term string, radius int) string {
	i := strings.Index(strings.ToLower(text), strings.ToLower(term))
	if i < 0 || i+len(term) > len(text) {
		return ""
	}
	start, end := i-radius, i+len(term)+radius
	prefix, suffix := "...", "..."
	if start <= 0 {
		start, prefix = 0, ""
	}
	if end >= len(text) {
		end, suffix = len(text), ""
	}
	s := text[start:i] + "[" + text[i:i+len(term)] + "]" + text[i+len(term):end]
	return prefix + strings.Join(strings.Fields(s), " ") + suffix
}

// Close closes the index.
func (idx *Index) Close() error {
	return idx.db.Close()
}
