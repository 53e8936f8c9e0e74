package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/jb/internal/errors"
	"github.com/hpungsan/jb/internal/journal"
)

// DefaultRecentMax is the default length cap of the recent documents list.
const DefaultRecentMax = 10

// RecentFiles is the process-wide list of recently opened documents, most
// recent first. It outlives any single open document.
type RecentFiles struct {
	db  *sql.DB
	max int
	now func() time.Time
}

// NewRecentFiles creates a RecentFiles capped at max entries.
func NewRecentFiles(db *sql.DB, max int) *RecentFiles {
	if max <= 0 {
		max = DefaultRecentMax
	}
	return &RecentFiles{db: db, max: max, now: time.Now}
}

// List returns the recent documents, most recent first.
func (r *RecentFiles) List(ctx context.Context) ([]journal.RecentFile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT path, title, last_modified
		FROM recent_files
		ORDER BY seq DESC
		LIMIT ?
	`, r.max)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	files := []journal.RecentFile{}
	for rows.Next() {
		var f journal.RecentFile
		var lastModified int64
		if err := rows.Scan(&f.Path, &f.Title, &lastModified); err != nil {
			return nil, errors.NewInternal(err)
		}
		f.LastModified = time.UnixMilli(lastModified).UTC()
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return files, nil
}

// Upsert moves path to the front of the list with the given title, trims the
// list to its cap and returns it.
func (r *RecentFiles) Upsert(ctx context.Context, path, title string) ([]journal.RecentFile, error) {
	if path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recent_files (path, title, last_modified, seq)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM recent_files))
		ON CONFLICT(path) DO UPDATE SET
		  title = excluded.title,
		  last_modified = excluded.last_modified,
		  seq = excluded.seq
	`, path, title, r.now().UnixMilli())
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM recent_files
		WHERE path NOT IN (
		  SELECT path FROM recent_files ORDER BY seq DESC LIMIT ?
		)
	`, r.max)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return r.List(ctx)
}

// Remove drops path from the list and returns the remainder. Removing an
// unknown path is not an error.
func (r *RecentFiles) Remove(ctx context.Context, path string) ([]journal.RecentFile, error) {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM recent_files WHERE path = ?`, path); err != nil {
		return nil, errors.NewInternal(err)
	}
	return r.List(ctx)
}

// Clear empties the list.
func (r *RecentFiles) Clear(ctx context.Context) ([]journal.RecentFile, error) {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM recent_files`); err != nil {
		return nil, errors.NewInternal(err)
	}
	return []journal.RecentFile{}, nil
}
