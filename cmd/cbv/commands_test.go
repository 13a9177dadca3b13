package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/fatih/color"

	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
	"github.com/Chris-1010/claude-branch-visualiser/internal/config"
	"github.com/Chris-1010/claude-branch-visualiser/internal/session"
	"github.com/Chris-1010/claude-branch-visualiser/internal/tree"
)

func TestOpenApp_DefaultInbox(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	a, err := openApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if want := filepath.Join(cfg.DataDir, "inbox"); a.inboxDir != want {
		t.Errorf("inboxDir = %q, want %q", a.inboxDir, want)
	}
	if host, err := a.remote(); err != nil || host != nil {
		t.Errorf("remote() = %v, %v; want nil without sync.url", host, err)
	}
}

func TestFindFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	a, err := openApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	ctx := context.Background()
	msgs := []chat.Message{{UUID: "a", Sender: chat.SenderHuman, Text: "hi"}}
	f, err := a.sessions.AddOrUpdate(ctx, "chat.json", msgs)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.sessions.Rename(ctx, f.ID, "Holiday plans"); err != nil {
		t.Fatal(err)
	}

	for _, arg := range []string{f.ID, "chat.json", "Holiday plans"} {
		got, err := findFile(a.sessions, arg)
		if err != nil || got.ID != f.ID {
			t.Errorf("findFile(%q) = %v, %v", arg, got, err)
		}
	}
	if _, err := findFile(a.sessions, "nope"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHighlight(t *testing.T) {
	color.NoColor = true
	c := color.New(color.Bold)

	if got := highlight("the Branch point", "Branch", c); got != "the Branch point" {
		t.Errorf("highlight = %q", got)
	}
	if got := highlight("nothing here", "zzz", c); got != "nothing here" {
		t.Errorf("missing match changed text: %q", got)
	}
}

func TestBranchPoints(t *testing.T) {
	forest := tree.Build([]chat.Message{
		{UUID: "a"},
		{UUID: "b", ParentUUID: "a"},
		{UUID: "c", ParentUUID: "a"},
		{UUID: "d", ParentUUID: "c"},
	})
	if got := branchPoints(forest); got != 1 {
		t.Errorf("branchPoints = %d, want 1", got)
	}
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
}
