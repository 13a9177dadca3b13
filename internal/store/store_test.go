package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
	"github.com/Chris-1010/claude-branch-visualiser/internal/tree"
)

// openTestStore creates a real SQLite store in a temp directory.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleFile(id, name, updated string) *ChatFile {
	msgs := []chat.Message{
		{UUID: "m1", Sender: chat.SenderHuman, Text: "fix the deploy bug", CreatedAt: "2025-01-01T00:00:00Z"},
		{UUID: "m2", ParentUUID: "m1", Sender: chat.SenderAssistant, Text: "Looking at it.", CreatedAt: "2025-01-01T00:00:01Z",
			Attachments: []byte(`[{"file_name":"deploy.yaml"}]`)},
	}
	return &ChatFile{ID: id, Name: name, LastUpdated: updated, Messages: msgs, Tree: tree.Build(msgs)}
}

func TestOpen_CreatesSchema(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{"chat_files", "settings", "inbox_files"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestOpen_WALMode(t *testing.T) {
	s := openTestStore(t)
	var mode string
	s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveFile(context.Background(), sampleFile("f1", "a.json", "2025-01-01T00:00:00Z")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	f, err := s.File(context.Background(), "f1")
	if err != nil || f == nil {
		t.Fatalf("file lost across reopen: %v", err)
	}
}

func TestSaveFile_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	in := sampleFile("f1", "deploy.json", "2025-01-02T00:00:00Z")
	in.DisplayName = "Deploy"
	if err := s.SaveFile(ctx, in); err != nil {
		t.Fatal(err)
	}

	out, err := s.File(ctx, "f1")
	if err != nil {
		t.Fatal(err)
	}
	if out.Name != "deploy.json" || out.DisplayName != "Deploy" || out.Title() != "Deploy" {
		t.Errorf("names = %q/%q", out.Name, out.DisplayName)
	}
	if len(out.Messages) != 2 || out.Messages[1].ParentUUID != "m1" {
		t.Fatalf("messages = %+v", out.Messages)
	}
	if string(out.Messages[1].Attachments) != `[{"file_name":"deploy.yaml"}]` {
		t.Errorf("attachments = %s", out.Messages[1].Attachments)
	}
	if len(out.Tree) != 1 || len(out.Tree[0].Children) != 1 {
		t.Fatalf("tree not restored: %+v", out.Tree)
	}
	if got := out.Tree[0].Children[0].Own(); got != (tree.Branch{Position: 1}) {
		t.Errorf("branch = %+v", got)
	}
}

func TestSaveFile_UpdatesInPlace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.SaveFile(ctx, sampleFile("f1", "a.json", "2025-01-01T00:00:00Z"))

	updated := sampleFile("f1", "a.json", "2025-02-01T00:00:00Z")
	updated.Messages = updated.Messages[:1]
	updated.Tree = nil
	if err := s.SaveFile(ctx, updated); err != nil {
		t.Fatal(err)
	}

	files, err := s.Files(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	if len(files[0].Messages) != 1 || files[0].Tree != nil {
		t.Errorf("update not applied: %d messages, tree %v", len(files[0].Messages), files[0].Tree)
	}
}

func TestFile_Missing(t *testing.T) {
	s := openTestStore(t)
	f, err := s.File(context.Background(), "nope")
	if err != nil || f != nil {
		t.Errorf("got %v, %v; want nil, nil", f, err)
	}
}

func TestFiles_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.SaveFile(ctx, sampleFile("old", "old.json", "2025-01-01T00:00:00Z"))
	s.SaveFile(ctx, sampleFile("new", "new.json", "2025-03-01T00:00:00Z"))

	files, err := s.Files(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].ID != "new" {
		t.Errorf("order wrong: %v", files)
	}
}

func TestCorruptTreeIsDropped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.SaveFile(ctx, sampleFile("f1", "a.json", "2025-01-01T00:00:00Z"))
	if _, err := s.db.Exec("UPDATE chat_files SET tree_data = '{broken' WHERE id = 'f1'"); err != nil {
		t.Fatal(err)
	}
	f, err := s.File(ctx, "f1")
	if err != nil {
		t.Fatal(err)
	}
	if f.Tree != nil {
		t.Error("corrupt tree cache should be dropped")
	}
}

func TestDeleteAndClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.SaveFile(ctx, sampleFile("a", "a.json", "2025-01-01T00:00:00Z"))
	s.SaveFile(ctx, sampleFile("b", "b.json", "2025-01-01T00:00:00Z"))

	if err := s.DeleteFile(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if f, _ := s.File(ctx, "a"); f != nil {
		t.Error("file a still present")
	}
	u, err := s.Usage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if u.Count != 1 || u.SizeBytes == 0 {
		t.Errorf("usage = %+v", u)
	}

	if err := s.ClearFiles(ctx); err != nil {
		t.Fatal(err)
	}
	u, _ = s.Usage(ctx)
	if u.Count != 0 || u.SizeBytes != 0 {
		t.Errorf("usage after clear = %+v", u)
	}
}

func TestSettings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.Setting(ctx, KeyPassword); ok || err != nil {
		t.Fatalf("missing setting: ok=%v err=%v", ok, err)
	}
	s.SetSetting(ctx, KeyPassword, "one")
	s.SetSetting(ctx, KeyPassword, "two")
	v, ok, err := s.Setting(ctx, KeyPassword)
	if err != nil || !ok || v != "two" {
		t.Errorf("setting = %q ok=%v err=%v", v, ok, err)
	}
	s.DeleteSetting(ctx, KeyPassword)
	if _, ok, _ := s.Setting(ctx, KeyPassword); ok {
		t.Error("setting still present after delete")
	}
}

func TestInboxTracking(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mtime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	changed, err := s.InboxChanged(ctx, "/in/a.json", mtime, 10)
	if err != nil || !changed {
		t.Fatalf("new file should count as changed: %v %v", changed, err)
	}
	if err := s.MarkInbox(ctx, "/in/a.json", mtime, 10); err != nil {
		t.Fatal(err)
	}
	if changed, _ := s.InboxChanged(ctx, "/in/a.json", mtime, 10); changed {
		t.Error("unchanged file reported as changed")
	}
	if changed, _ := s.InboxChanged(ctx, "/in/a.json", mtime, 11); !changed {
		t.Error("size change not detected")
	}
	if changed, _ := s.InboxChanged(ctx, "/in/a.json", mtime.Add(time.Second), 10); !changed {
		t.Error("mtime change not detected")
	}
}

func TestReset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.SaveFile(ctx, sampleFile("a", "a.json", "2025-01-01T00:00:00Z"))
	s.SetSetting(ctx, KeyCurrentFile, "a")
	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	files, _ := s.Files(ctx)
	if len(files) != 0 {
		t.Errorf("files after reset = %d", len(files))
	}
	if _, ok, _ := s.Setting(ctx, KeyCurrentFile); ok {
		t.Error("setting survived reset")
	}
}
