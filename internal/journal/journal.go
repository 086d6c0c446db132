// Package journal keeps an append-only sqlite record of every successful
// upload: which note referenced the image, its content hash, the CID the
// service returned, and the batch run it belonged to.
package journal

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS uploads (
	id INTEGER PRIMARY KEY,
	run_id TEXT NOT NULL,
	note_path TEXT NOT NULL,
	ref TEXT NOT NULL,
	hash TEXT NOT NULL,
	cid TEXT NOT NULL,
	mode TEXT NOT NULL,
	filename TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS uploads_by_hash ON uploads(hash, mode);
CREATE INDEX IF NOT EXISTS uploads_by_run ON uploads(run_id);
`

type Journal struct {
	db *sql.DB
}

type Entry struct {
	ID        int64
	RunID     string
	NotePath  string
	Ref       string
	Hash      string
	CID       string
	Mode      string
	Filename  string
	CreatedAt time.Time
}

func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: init schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) Record(ctx context.Context, e Entry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO uploads (run_id, note_path, ref, hash, cid, mode, filename, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.NotePath, e.Ref, e.Hash, e.CID, e.Mode, e.Filename, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("journal: record upload: %w", err)
	}
	return nil
}

// LookupCID returns the most recent CID recorded for byte-identical
// content in the same visibility mode, or empty when none exists.
func (j *Journal) LookupCID(ctx context.Context, hash, mode string) (string, error) {
	var cid string
	err := j.db.QueryRowContext(ctx, `
		SELECT cid FROM uploads WHERE hash = ? AND mode = ?
		ORDER BY id DESC LIMIT 1`, hash, mode).Scan(&cid)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("journal: lookup: %w", err)
	}
	return cid, nil
}

func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, run_id, note_path, ref, hash, cid, mode, filename, created_at
		FROM uploads ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.RunID, &e.NotePath, &e.Ref, &e.Hash, &e.CID, &e.Mode, &e.Filename, &createdAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
