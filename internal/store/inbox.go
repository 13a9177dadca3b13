package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// InboxChanged reports whether the file at path differs from the version
// last imported, judged by mtime and size.
func (s *Store) InboxChanged(ctx context.Context, path string, mtime time.Time, size int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var seenMtime, seenSize int64
	err := s.db.QueryRowContext(ctx,
		"SELECT mtime, size FROM inbox_files WHERE path = ?", path,
	).Scan(&seenMtime, &seenSize)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return seenMtime != mtime.UnixMilli() || seenSize != size, nil
}

// MarkInbox records that path was imported in its current state.
func (s *Store) MarkInbox(ctx context.Context, path string, mtime time.Time, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO inbox_files (path, mtime, size, imported_at) VALUES (?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
    mtime = excluded.mtime,
    size = excluded.size,
    imported_at = excluded.imported_at`,
		path, mtime.UnixMilli(), size, time.Now().UTC().Format(time.RFC3339))
	return err
}
