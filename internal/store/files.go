package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
	"github.com/Chris-1010/claude-branch-visualiser/internal/tree"
)

// ChatFile is an uploaded conversation. Tree is the cached forest and may be
// nil when it was never built or could not be decoded.
type ChatFile struct {
	ID          string
	Name        string
	DisplayName string
	LastUpdated string
	Messages    []chat.Message
	Tree        []*tree.Node
}

// Title is the name shown to the user.
func (f *ChatFile) Title() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return f.Name
}

type Usage struct {
	Count     int
	SizeBytes int64
}

// SaveFile inserts or replaces a file by id.
func (s *Store) SaveFile(ctx context.Context, f *ChatFile) error {
	msgs, err := json.Marshal(f.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	var treeData []byte
	if f.Tree != nil {
		if treeData, err = json.Marshal(f.Tree); err != nil {
			return fmt.Errorf("encode tree: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO chat_files (id, name, display_name, last_updated, messages, tree_data)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    display_name = excluded.display_name,
    last_updated = excluded.last_updated,
    messages = excluded.messages,
    tree_data = excluded.tree_data`,
		f.ID, f.Name, f.DisplayName, f.LastUpdated, string(msgs), string(treeData),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", f.Name, err)
	}
	return tx.Commit()
}

// File returns the file with the given id, or nil if there is none.
func (s *Store) File(ctx context.Context, id string) (*ChatFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, display_name, last_updated, messages, tree_data FROM chat_files WHERE id = ?", id)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

// Files returns every stored file, most recently updated first.
func (s *Store) Files(ctx context.Context) ([]*ChatFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, display_name, last_updated, messages, tree_data FROM chat_files ORDER BY last_updated DESC, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*ChatFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*ChatFile, error) {
	var f ChatFile
	var msgs, treeData string
	if err := row.Scan(&f.ID, &f.Name, &f.DisplayName, &f.LastUpdated, &msgs, &treeData); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(msgs), &f.Messages); err != nil {
		return nil, fmt.Errorf("decode messages of %s: %w", f.Name, err)
	}
	if f.Messages == nil {
		f.Messages = []chat.Message{}
	}
	if treeData != "" {
		// A damaged cache is dropped and rebuilt by the caller.
		if err := json.Unmarshal([]byte(treeData), &f.Tree); err != nil {
			f.Tree = nil
		}
	}
	return &f, nil
}

func (s *Store) DeleteFile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM chat_files WHERE id = ?", id)
	return err
}

func (s *Store) ClearFiles(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM chat_files")
	return err
}

// Usage estimates how much space stored files take.
func (s *Store) Usage(ctx context.Context) (Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u Usage
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*),
       COALESCE(SUM(LENGTH(id) + LENGTH(name) + LENGTH(display_name) + LENGTH(last_updated)
                    + LENGTH(messages) + LENGTH(tree_data)), 0)
FROM chat_files`).Scan(&u.Count, &u.SizeBytes)
	return u, err
}
