package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

const settle = 500 * time.Millisecond

// InboxMsg tells the TUI that export files in the inbox changed.
type InboxMsg struct {
	Dir string
}

// Inbox watches a drop directory for exported conversation files.
type Inbox struct {
	dir string
	w   *fsnotify.Watcher
}

func New(dir string) (*Inbox, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Inbox{dir: dir, w: w}, nil
}

func (in *Inbox) Dir() string { return in.dir }

func (in *Inbox) Close() error {
	return in.w.Close()
}

// Wait returns a command that resolves once changes have settled. The TUI
// calls it again after handling each InboxMsg.
func (in *Inbox) Wait() tea.Cmd {
	return func() tea.Msg {
		if !in.next(context.Background()) {
			return nil
		}
		return InboxMsg{Dir: in.dir}
	}
}

// Run calls fn after every settled burst of changes until ctx is done.
func (in *Inbox) Run(ctx context.Context, fn func()) {
	for in.next(ctx) {
		fn()
	}
}

// next blocks until a burst of relevant events has been quiet for a moment.
// It returns false when the watcher closes or ctx ends.
func (in *Inbox) next(ctx context.Context) bool {
	// Debounce: wait for changes to settle
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case ev, ok := <-in.w.Events:
			if !ok {
				return false
			}
			if relevant(ev) {
				debounce.Reset(settle)
			}
		case <-debounce.C:
			return true
		case _, ok := <-in.w.Errors:
			if !ok {
				return false
			}
		case <-ctx.Done():
			return false
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if !strings.EqualFold(filepath.Ext(ev.Name), ".json") {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename)
}
