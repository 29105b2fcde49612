// Package sqlite stores records in an embedded SQLite database
// (modernc.org/sqlite, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/introspection"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/aretw0/casebook/pkg/core"
)

// DefaultFileName is the database file created inside the vault.
const DefaultFileName = "casebook.db"

const schema = `CREATE TABLE IF NOT EXISTS records (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL DEFAULT '',
	occurred_at TEXT NOT NULL,
	solved      INTEGER NOT NULL DEFAULT 0,
	suspect     TEXT NOT NULL DEFAULT ''
)`

// Repository implements core.Repository on a SQLite table. The seq column
// keeps insertion order; updates rewrite the row in place.
type Repository struct {
	path   string
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path.
func Open(path string, logger *slog.Logger) (*Repository, error) {
	if path == "" {
		return nil, fmt.Errorf("open: empty db path")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("open: create db dir: %w", err)
	}

	dsn := "file:" + path + "?mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: sql open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open: ping: %w", err)
	}
	return &Repository{path: path, db: db, logger: logger}, nil
}

// Initialize creates the schema.
func (r *Repository) Initialize(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create records table: %w", err)
	}
	return nil
}

// Load returns every record ordered by insertion.
func (r *Repository) Load(ctx context.Context) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, occurred_at, solved, suspect FROM records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: select records: %w", core.ErrIO, err)
	}
	defer func() { _ = rows.Close() }()

	var records []core.Record
	for rows.Next() {
		var (
			rec       core.Record
			id, occAt string
			solved    int
		)
		if err := rows.Scan(&id, &rec.Title, &occAt, &solved, &rec.Suspect); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if rec.ID, err = core.ParseID(id); err != nil {
			return nil, err
		}
		if rec.OccurredAt, err = time.Parse(time.RFC3339Nano, occAt); err != nil {
			return nil, fmt.Errorf("record %s: bad occurred_at %q: %w", id, occAt, err)
		}
		rec.Solved = solved != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate records: %w", core.ErrIO, err)
	}
	return records, nil
}

// Save upserts a record. An existing row keeps its seq.
func (r *Repository) Save(ctx context.Context, rec core.Record) error {
	if rec.ID.IsZero() {
		return fmt.Errorf("record has no ID")
	}
	solved := 0
	if rec.Solved {
		solved = 1
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO records(id, title, occurred_at, solved, suspect)
		VALUES(?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			occurred_at=excluded.occurred_at,
			solved=excluded.solved,
			suspect=excluded.suspect`,
		rec.ID.String(), rec.Title, rec.OccurredAt.Format(time.RFC3339Nano), solved, rec.Suspect)
	if err != nil {
		return fmt.Errorf("%w: upsert record %s: %w", core.ErrIO, rec.ID, err)
	}
	r.logger.Debug("record row written", "id", rec.ID)
	return nil
}

// Replace updates an existing row in place. It fails with core.ErrNotFound
// when the row is gone.
func (r *Repository) Replace(ctx context.Context, rec core.Record) error {
	solved := 0
	if rec.Solved {
		solved = 1
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE records SET title = ?, occurred_at = ?, solved = ?, suspect = ? WHERE id = ?`,
		rec.Title, rec.OccurredAt.Format(time.RFC3339Nano), solved, rec.Suspect, rec.ID.String())
	if err != nil {
		return fmt.Errorf("%w: update record %s: %w", core.ErrIO, rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update record %s: %w", core.ErrIO, rec.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("replace %s: %w", rec.ID, core.ErrNotFound)
	}
	r.logger.Debug("record row written", "id", rec.ID)
	return nil
}

// Delete removes a record row. Absent rows are ignored.
func (r *Repository) Delete(ctx context.Context, id core.ID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("%w: delete record %s: %w", core.ErrIO, id, err)
	}
	return nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Path    string `json:"path"`
	Records int    `json:"records"`
	Open    int    `json:"open_connections"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	var n int
	_ = r.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n)
	return RepositoryState{
		Path:    r.path,
		Records: n,
		Open:    r.db.Stats().OpenConnections,
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "sqlite-repository"
}

var (
	_ core.Repository              = (*Repository)(nil)
	_ core.Closer                  = (*Repository)(nil)
	_ introspection.Introspectable = (*Repository)(nil)
	_ introspection.Component      = (*Repository)(nil)
)
var _ core.Replacer = (*Repository)(nil)
