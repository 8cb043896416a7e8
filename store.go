package spacetraveling

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested page has not been generated.
var ErrNotFound = sql.ErrNoRows

// Page is one generated route: its body and when it was built.
type Page struct {
	Route       string
	ContentType string
	Body        []byte
	GeneratedAt time.Time
}

// Stale reports whether p is older than maxAge at now. A non-positive
// maxAge means pages never go stale.
func (p Page) Stale(maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(p.GeneratedAt) > maxAge
}

// Store wraps a SQLite database holding generated pages.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets handlers read while generation writes; busy_timeout makes
	// writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS pages (
    route TEXT PRIMARY KEY,
    content_type TEXT NOT NULL,
    body BLOB NOT NULL,
    generated_at TEXT NOT NULL
);
`)
	return err
}

// GetPage returns the generated page for route, or ErrNotFound.
func (s *Store) GetPage(route string) (Page, error) {
	var contentType, generatedAt string
	var body []byte
	err := s.db.QueryRow(`SELECT content_type, body, generated_at FROM pages WHERE route = ?`, route).
		Scan(&contentType, &body, &generatedAt)
	if err != nil {
		return Page{}, err
	}
	at, err := time.Parse(time.RFC3339Nano, generatedAt)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Route:       route,
		ContentType: contentType,
		Body:        body,
		GeneratedAt: at,
	}, nil
}

// SavePage upserts a generated page.
func (s *Store) SavePage(p Page) error {
	if p.GeneratedAt.IsZero() {
		p.GeneratedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO pages (route, content_type, body, generated_at) VALUES (?, ?, ?, ?)`,
		p.Route, p.ContentType, p.Body, p.GeneratedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// DeletePage removes a generated page. Deleting a missing route is not an error.
func (s *Store) DeletePage(route string) error {
	_, err := s.db.Exec(`DELETE FROM pages WHERE route = ?`, route)
	return err
}

// ListRoutes returns every stored route starting with prefix, sorted.
func (s *Store) ListRoutes(prefix string) ([]string, error) {
	rows, err := s.db.Query(`SELECT route FROM pages WHERE substr(route, 1, ?) = ? ORDER BY route`, len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}
