// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no recording matches a lookup.
var ErrNotFound = errors.New("recording not found")

// Migration is one schema step, applied once in Version order.
type Migration struct {
	Version int
	Name    string
	Up      string
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_recordings",
		Up: `
			CREATE TABLE recordings (
				id TEXT PRIMARY KEY,
				session TEXT NOT NULL UNIQUE,
				file_url TEXT NOT NULL,
				format TEXT NOT NULL,
				sample_rate INTEGER NOT NULL,
				channels INTEGER NOT NULL,
				samples INTEGER NOT NULL DEFAULT 0,
				started_at INTEGER NOT NULL,
				stopped_at INTEGER,
				error TEXT,
				deleted INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX idx_recordings_file_url ON recordings(file_url);`,
	},
}

// Recording is one file capture session.
type Recording struct {
	ID         string
	Session    string
	FileURL    string
	Format     string
	SampleRate int
	Channels   int
	Samples    int64
	StartedAt  time.Time
	StoppedAt  *time.Time
	Error      string
	Deleted    bool
}

// Duration returns the captured length, or zero for an unknown rate.
func (r Recording) Duration() time.Duration {
	if r.SampleRate <= 0 || r.Channels <= 0 {
		return 0
	}
	frames := r.Samples / int64(r.Channels)
	return time.Duration(frames) * time.Second / time.Duration(r.SampleRate)
}

// DB is the recordings catalog.
type DB struct {
	*sql.DB
	now func() time.Time
}

// NewDB opens (creating if needed) the catalog at dbPath and migrates it.
func NewDB(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db := &DB{DB: sqlDB, now: time.Now}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func (db *DB) migrate() error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		var applied int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&applied); err != nil {
			return err
		}
		if applied > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, db.now().UnixMilli()); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// RecordingStarted inserts a row for a capture session writing fileURL.
func (db *DB) RecordingStarted(session, fileURL, format string, sampleRate, channels int) error {
	_, err := db.Exec(`
		INSERT INTO recordings (id, session, file_url, format, sample_rate, channels, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), session, fileURL, format, sampleRate, channels, db.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	return nil
}

// RecordingFinished stores the outcome of a session.
func (db *DB) RecordingFinished(session string, samples int64, errMsg string) error {
	res, err := db.Exec(`
		UPDATE recordings SET samples = ?, stopped_at = ?, error = ?
		WHERE session = ?`,
		samples, db.now().UnixMilli(), nullString(errMsg), session)
	if err != nil {
		return fmt.Errorf("failed to finish recording: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", session, ErrNotFound)
	}
	return nil
}

// RecordingDeleted flags every recording written to fileURL as deleted.
func (db *DB) RecordingDeleted(fileURL string) error {
	if _, err := db.Exec("UPDATE recordings SET deleted = 1 WHERE file_url = ?", fileURL); err != nil {
		return fmt.Errorf("failed to mark recording deleted: %w", err)
	}
	return nil
}

const recordingColumns = `id, session, file_url, format, sample_rate, channels, samples,
	started_at, stopped_at, error, deleted`

// GetRecording looks up the recording of a session.
func (db *DB) GetRecording(ctx context.Context, session string) (*Recording, error) {
	row := db.QueryRowContext(ctx, "SELECT "+recordingColumns+" FROM recordings WHERE session = ?", session)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListRecordings returns recordings, newest first. Deleted rows are skipped
// unless includeDeleted is set.
func (db *DB) ListRecordings(ctx context.Context, includeDeleted bool) ([]Recording, error) {
	query := "SELECT " + recordingColumns + " FROM recordings"
	if !includeDeleted {
		query += " WHERE deleted = 0"
	}
	query += " ORDER BY started_at DESC, rowid DESC"

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(s scanner) (*Recording, error) {
	var (
		rec       Recording
		startedAt int64
		stoppedAt sql.NullInt64
		errMsg    sql.NullString
		deleted   int
	)
	if err := s.Scan(&rec.ID, &rec.Session, &rec.FileURL, &rec.Format, &rec.SampleRate, &rec.Channels,
		&rec.Samples, &startedAt, &stoppedAt, &errMsg, &deleted); err != nil {
		return nil, err
	}
	rec.StartedAt = time.UnixMilli(startedAt)
	if stoppedAt.Valid {
		t := time.UnixMilli(stoppedAt.Int64)
		rec.StoppedAt = &t
	}
	rec.Error = errMsg.String
	rec.Deleted = deleted != 0
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
