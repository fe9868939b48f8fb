package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	apperrors "proxyup/internal/errors"
)

const moduleName = "history"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id  TEXT    NOT NULL,
	action  TEXT    NOT NULL,
	status  TEXT    NOT NULL,
	detail  TEXT    NOT NULL DEFAULT '',
	version TEXT    NOT NULL DEFAULT '',
	sha256  TEXT    NOT NULL DEFAULT '',
	at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_at ON runs (at);
`

// SQLiteRepository persists run history using a SQLite database file.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository wires a SQLite-backed Repository around db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Open opens (creating if needed) the database at path and bootstraps it.
func Open(ctx context.Context, path string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, dbError("Open", "failed to create history directory", err).WithField("path", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, dbError("Open", "failed to open history database", err).WithField("path", path)
	}
	db.SetMaxOpenConns(1)

	repo := NewSQLiteRepository(db)
	if err := repo.Bootstrap(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Bootstrap creates the schema.
func (r *SQLiteRepository) Bootstrap(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return dbError("Bootstrap", "failed to create history schema", err)
	}
	return nil
}

// Record appends rec. A zero At is stamped with the current time.
func (r *SQLiteRepository) Record(ctx context.Context, rec Record) error {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, action, status, detail, version, sha256, at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, string(rec.Action), string(rec.Status), rec.Detail, rec.Version, rec.SHA256, rec.At.UnixMilli(),
	)
	if err != nil {
		return dbError("Record", "failed to insert history record", err).
			WithFields(apperrors.Metadata{"run_id": rec.RunID, "action": string(rec.Action)})
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, run_id, action, status, detail, version, sha256, at FROM runs ORDER BY at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, dbError("Recent", "failed to query history", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec    Record
			action string
			status string
			at     int64
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &action, &status, &rec.Detail, &rec.Version, &rec.SHA256, &at); err != nil {
			return nil, dbError("Recent", "failed to scan history row", err)
		}
		rec.Action = Action(action)
		rec.Status = Status(status)
		rec.At = time.UnixMilli(at)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("Recent", "failed to read history", err)
	}
	return out, nil
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func dbError(op, msg string, err error) *apperrors.AppError {
	return apperrors.DatabaseError(apperrors.CodeDatabaseGeneric, msg, err).
		WithModule(moduleName).
		WithOperation(op)
}

var _ Repository = (*SQLiteRepository)(nil)
