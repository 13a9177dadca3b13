package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
	"github.com/Chris-1010/claude-branch-visualiser/internal/remote"
	"github.com/Chris-1010/claude-branch-visualiser/internal/store"
)

// Remote is a file host. *remote.Client satisfies it.
type Remote interface {
	List(ctx context.Context, password string) ([]remote.FileInfo, error)
	Download(ctx context.Context, f remote.FileInfo, password string) ([]byte, error)
}

// Report counts what a sync or inbox import did. Skipped covers files that
// were already up to date and files without a message array.
type Report struct {
	Downloaded int
	Updated    int
	Skipped    int
	Failed     int
}

func (r Report) String() string {
	return fmt.Sprintf("%d new, %d updated, %d skipped, %d failed", r.Downloaded, r.Updated, r.Skipped, r.Failed)
}

// Changed reports whether anything was written.
func (r Report) Changed() bool {
	return r.Downloaded+r.Updated > 0
}

// Sync pulls new and strictly newer files from the host. The current file
// and selection are left alone. A rejected password is forgotten and
// remote.ErrUnauthorized returned; any other per-file problem is logged and
// counted without stopping the batch.
func (m *Manager) Sync(ctx context.Context, r Remote) (Report, error) {
	var report Report
	password := m.Password()
	if password == "" {
		return report, ErrNoCredential
	}

	listing, err := r.List(ctx, password)
	if err != nil {
		return report, m.syncFailed(ctx, "list", err)
	}

	for _, info := range listing {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		name := info.FileName()
		local := m.FileByName(name)
		if local != nil && chat.Millis(info.Updated) <= chat.Millis(local.LastUpdated) {
			report.Skipped++
			continue
		}

		body, err := r.Download(ctx, info, password)
		if errors.Is(err, remote.ErrUnauthorized) {
			return report, m.syncFailed(ctx, "download", err)
		}
		if err != nil {
			m.log.Error("sync download", slog.String("file", name), slog.String("error", err.Error()))
			report.Failed++
			continue
		}

		exp, err := chat.ParseExport(body)
		if err != nil {
			if errors.Is(err, chat.ErrInvalidExport) {
				m.log.Warn("sync skipped file", slog.String("file", name), slog.String("error", err.Error()))
				report.Skipped++
			} else {
				report.Failed++
			}
			continue
		}

		updated := info.Updated
		if _, ok := chat.ParseTime(updated); !ok {
			updated = m.now().UTC().Format(time.RFC3339)
		}
		if err := m.apply(ctx, name, exp.Messages, updated); err != nil {
			m.log.Error("sync save", slog.String("file", name), slog.String("error", err.Error()))
			report.Failed++
			continue
		}
		if local == nil {
			report.Downloaded++
		} else {
			report.Updated++
		}
	}

	m.log.Info("sync finished",
		slog.Int("downloaded", report.Downloaded),
		slog.Int("updated", report.Updated),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

func (m *Manager) syncFailed(ctx context.Context, step string, err error) error {
	if errors.Is(err, remote.ErrUnauthorized) {
		m.log.Warn("file host rejected password, clearing it")
		if clearErr := m.ClearPassword(ctx); clearErr != nil {
			m.log.Error("clear password", slog.String("error", clearErr.Error()))
		}
		return err
	}
	return fmt.Errorf("sync %s: %w", step, err)
}

// apply stores a file without touching the current file or selection.
func (m *Manager) apply(ctx context.Context, name string, messages []chat.Message, updated string) error {
	m.mu.Lock()
	f := m.applyLocked(name, messages, updated)
	m.mu.Unlock()
	return m.store.SaveFile(ctx, f)
}

// ImportDir imports every *.json export in dir whose mtime or size changed
// since it was last imported. Like Sync it leaves the current file alone.
func (m *Manager) ImportDir(ctx context.Context, dir string) (Report, error) {
	var report Report
	entries, err := os.ReadDir(dir)
	if err != nil {
		return report, fmt.Errorf("read inbox: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}

		changed, err := m.store.InboxChanged(ctx, path, info.ModTime(), info.Size())
		if err != nil {
			return report, err
		}
		if !changed {
			continue
		}

		exp, err := chat.ReadExport(path)
		if err != nil {
			m.log.Warn("inbox skipped file", slog.String("file", e.Name()), slog.String("error", err.Error()))
			report.Skipped++
		} else {
			existed := m.FileByName(e.Name()) != nil
			if err := m.apply(ctx, e.Name(), exp.Messages, m.now().UTC().Format(time.RFC3339)); err != nil {
				m.log.Error("inbox save", slog.String("file", e.Name()), slog.String("error", err.Error()))
				report.Failed++
				continue
			}
			if existed {
				report.Updated++
			} else {
				report.Downloaded++
			}
		}
		// Invalid files are marked too so they aren't retried until edited.
		if err := m.store.MarkInbox(ctx, path, info.ModTime(), info.Size()); err != nil {
			return report, err
		}
	}
	return report, nil
}

// ImportFile reads one export from disk and adds it as the current file.
func (m *Manager) ImportFile(ctx context.Context, path string) (*store.ChatFile, error) {
	exp, err := chat.ReadExport(path)
	if err != nil {
		return nil, err
	}
	return m.AddOrUpdate(ctx, filepath.Base(path), exp.Messages)
}
