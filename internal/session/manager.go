package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
	"github.com/Chris-1010/claude-branch-visualiser/internal/search"
	"github.com/Chris-1010/claude-branch-visualiser/internal/store"
	"github.com/Chris-1010/claude-branch-visualiser/internal/tree"
)

var (
	ErrNotFound     = errors.New("chat file not found")
	ErrNoCredential = errors.New("no file host password set")
)

// Store is the persistence the manager needs. *store.Store satisfies it.
type Store interface {
	SaveFile(ctx context.Context, f *store.ChatFile) error
	Files(ctx context.Context) ([]*store.ChatFile, error)
	DeleteFile(ctx context.Context, id string) error
	ClearFiles(ctx context.Context) error
	SetSetting(ctx context.Context, key, value string) error
	Setting(ctx context.Context, key string) (string, bool, error)
	DeleteSetting(ctx context.Context, key string) error
	Usage(ctx context.Context) (store.Usage, error)
	InboxChanged(ctx context.Context, path string, mtime time.Time, size int64) (bool, error)
	MarkInbox(ctx context.Context, path string, mtime time.Time, size int64) error
}

// Manager owns the list of chat files, which one is open, and which message
// is selected. It is safe for concurrent use; sync and inbox imports run off
// the UI goroutine.
type Manager struct {
	mu       sync.RWMutex
	store    Store
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
	files    []*store.ChatFile
	current  string
	selected string
	password string
}

func New(st Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store: st,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Load reads every stored file, rebuilds missing tree caches, and reopens the
// file that was current last time.
func (m *Manager) Load(ctx context.Context) error {
	files, err := m.store.Files(ctx)
	if err != nil {
		return fmt.Errorf("load files: %w", err)
	}
	for _, f := range files {
		if f.Tree != nil {
			continue
		}
		f.Tree = tree.Build(f.Messages)
		if err := m.store.SaveFile(ctx, f); err != nil {
			m.log.Warn("cache rebuilt tree", slog.String("file", f.Name), slog.String("error", err.Error()))
		}
	}

	current, _, err := m.store.Setting(ctx, store.KeyCurrentFile)
	if err != nil {
		return fmt.Errorf("load current file: %w", err)
	}
	password, _, err := m.store.Setting(ctx, store.KeyPassword)
	if err != nil {
		return fmt.Errorf("load password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = files
	m.current = ""
	if m.indexLocked(current) >= 0 {
		m.current = current
	}
	m.selected = ""
	m.password = password
	return nil
}

func (m *Manager) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, f := range m.files {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) byNameLocked(name string) *store.ChatFile {
	for _, f := range m.files {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Files returns the loaded files. The files themselves are shared and must
// not be modified.
func (m *Manager) Files() []*store.ChatFile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*store.ChatFile, len(m.files))
	copy(out, m.files)
	return out
}

// File looks a file up by id; nil when absent.
func (m *Manager) File(id string) *store.ChatFile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexLocked(id); i >= 0 {
		return m.files[i]
	}
	return nil
}

// FileByName looks a file up by its original name; nil when absent.
func (m *Manager) FileByName(name string) *store.ChatFile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byNameLocked(name)
}

func (m *Manager) Current() *store.ChatFile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexLocked(m.current); i >= 0 {
		return m.files[i]
	}
	return nil
}

func (m *Manager) Selected() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selected
}

// SetSelected records the selected message id ("" clears it).
func (m *Manager) SetSelected(id string) {
	m.mu.Lock()
	m.selected = id
	m.mu.Unlock()
}

// AddOrUpdate stores an uploaded conversation. A file with the same name
// keeps its id and display name; its messages, tree and timestamp are
// replaced. The file becomes current and the selection is cleared.
func (m *Manager) AddOrUpdate(ctx context.Context, name string, messages []chat.Message) (*store.ChatFile, error) {
	m.mu.Lock()
	f := m.applyLocked(name, messages, m.now().UTC().Format(time.RFC3339))
	m.current = f.ID
	m.selected = ""
	m.mu.Unlock()

	if err := m.store.SaveFile(ctx, f); err != nil {
		return f, fmt.Errorf("save %s: %w", name, err)
	}
	if err := m.store.SetSetting(ctx, store.KeyCurrentFile, f.ID); err != nil {
		return f, fmt.Errorf("remember current file: %w", err)
	}
	return f, nil
}

// applyLocked builds a fresh file record and swaps it into the list.
func (m *Manager) applyLocked(name string, messages []chat.Message, updated string) *store.ChatFile {
	if orphans := tree.Orphans(messages); len(orphans) > 0 {
		m.log.Debug("parent ids not found, shown as roots", slog.String("file", name), slog.Int("count", len(orphans)))
	}
	f := &store.ChatFile{
		Name:        name,
		LastUpdated: updated,
		Messages:    messages,
		Tree:        tree.Build(messages),
	}
	if existing := m.byNameLocked(name); existing != nil {
		f.ID = existing.ID
		f.DisplayName = existing.DisplayName
		m.files[m.indexLocked(existing.ID)] = f
		return f
	}
	f.ID = m.newID()
	m.files = append([]*store.ChatFile{f}, m.files...)
	return f
}

// SetCurrent opens a file, or closes the current one when id is "".
func (m *Manager) SetCurrent(ctx context.Context, id string) error {
	m.mu.Lock()
	if id != "" && m.indexLocked(id) < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	m.current = id
	m.selected = ""
	m.mu.Unlock()

	if id == "" {
		return m.store.DeleteSetting(ctx, store.KeyCurrentFile)
	}
	return m.store.SetSetting(ctx, store.KeyCurrentFile, id)
}

// Delete removes a file. Deleting the current file closes it.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	i := m.indexLocked(id)
	if i < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	m.files = append(m.files[:i:i], m.files[i+1:]...)
	wasCurrent := m.current == id
	if wasCurrent {
		m.current = ""
		m.selected = ""
	}
	m.mu.Unlock()

	if err := m.store.DeleteFile(ctx, id); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if wasCurrent {
		return m.store.DeleteSetting(ctx, store.KeyCurrentFile)
	}
	return nil
}

// ClearAll removes every file.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	m.files = nil
	m.current = ""
	m.selected = ""
	m.mu.Unlock()

	if err := m.store.ClearFiles(ctx); err != nil {
		return fmt.Errorf("clear files: %w", err)
	}
	return m.store.DeleteSetting(ctx, store.KeyCurrentFile)
}

// Rename sets a display name. An empty name reverts to the original.
func (m *Manager) Rename(ctx context.Context, id, displayName string) error {
	displayName = strings.TrimSpace(displayName)

	m.mu.Lock()
	i := m.indexLocked(id)
	if i < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	renamed := *m.files[i]
	if displayName == renamed.Name {
		displayName = ""
	}
	renamed.DisplayName = displayName
	m.files[i] = &renamed
	m.mu.Unlock()

	return m.store.SaveFile(ctx, &renamed)
}

func (m *Manager) Password() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.password
}

func (m *Manager) SetPassword(ctx context.Context, password string) error {
	m.mu.Lock()
	m.password = password
	m.mu.Unlock()
	return m.store.SetSetting(ctx, store.KeyPassword, password)
}

func (m *Manager) ClearPassword(ctx context.Context) error {
	m.mu.Lock()
	m.password = ""
	m.mu.Unlock()
	return m.store.DeleteSetting(ctx, store.KeyPassword)
}

func (m *Manager) StorageUsage(ctx context.Context) (store.Usage, error) {
	return m.store.Usage(ctx)
}

// Corpus returns the search corpus: the current file only, or every file.
func (m *Manager) Corpus(all bool) []search.Corpus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []search.Corpus
	for _, f := range m.files {
		if !all && f.ID != m.current {
			continue
		}
		out = append(out, search.Corpus{FileID: f.ID, Label: f.Title(), Messages: f.Messages})
	}
	return out
}
