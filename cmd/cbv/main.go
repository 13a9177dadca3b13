package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/Chris-1010/claude-branch-visualiser/internal/config"
	"github.com/Chris-1010/claude-branch-visualiser/internal/logging"
	"github.com/Chris-1010/claude-branch-visualiser/internal/remote"
	"github.com/Chris-1010/claude-branch-visualiser/internal/session"
	"github.com/Chris-1010/claude-branch-visualiser/internal/store"
	"github.com/Chris-1010/claude-branch-visualiser/internal/ui"
	"github.com/Chris-1010/claude-branch-visualiser/internal/watcher"
)

var version = "dev"

// app holds what every command needs: the configuration, the open store
// and the session manager loaded from it.
type app struct {
	cfg      config.Config
	dataDir  string
	inboxDir string
	store    *store.Store
	sessions *session.Manager
	log      *slog.Logger
}

func loadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v (using defaults)\n", err)
	}
	return cfg
}

func openApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = store.DataDir()
	}
	inboxDir := cfg.InboxDir
	if inboxDir == "" {
		inboxDir = filepath.Join(dataDir, "inbox")
	}

	st, err := store.Open(store.DBPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	sessions := session.New(st, log)
	if err := sessions.Load(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return &app{
		cfg:      cfg,
		dataDir:  dataDir,
		inboxDir: inboxDir,
		store:    st,
		sessions: sessions,
		log:      log,
	}, nil
}

// cliApp opens the store for a one-shot command, logging to stderr.
func cliApp(ctx context.Context) (*app, error) {
	cfg := loadConfig()
	return openApp(ctx, cfg, logging.New(os.Stderr, cfg.LogLevel))
}

func (a *app) Close() error {
	return a.store.Close()
}

// remote returns the configured file host, or nil when sync.url is unset.
func (a *app) remote() (*remote.Client, error) {
	if a.cfg.Sync.URL == "" {
		return nil, nil
	}
	return remote.New(a.cfg.Sync.URL, remote.Options{
		RequestsPerSecond: a.cfg.Sync.RequestsPerSecond,
		Timeout:           a.cfg.Sync.Timeout,
	})
}

func runTUI(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig()
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = store.DataDir()
	}

	log, logFile, err := logging.Open(dataDir, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logFile.Close()

	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if cmd.Bool("reset") {
		if err := a.store.Reset(ctx); err != nil {
			return fmt.Errorf("reset store: %w", err)
		}
		if err := a.sessions.Load(ctx); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := ui.Options{
		Context:  ctx,
		Sessions: a.sessions,
		Config:   cfg,
		Log:      log,
	}
	host, err := a.remote()
	if err != nil {
		log.Warn("file host disabled", slog.String("error", err.Error()))
	} else if host != nil {
		opts.Remote = host
	}

	inbox, err := watcher.New(a.inboxDir)
	if err != nil {
		log.Warn("inbox disabled", slog.String("dir", a.inboxDir), slog.String("error", err.Error()))
	} else {
		defer inbox.Close()
		opts.Inbox = inbox
	}

	// Ensure terminal is large enough for the three-pane layout
	const minCols, minRows = 120, 36
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		if w < minCols || h < minRows {
			fmt.Fprintf(os.Stdout, "\x1b[8;%d;%dt", max(h, minRows), max(w, minCols))
		}
	}

	log.Info("starting", slog.String("version", version), slog.Int("files", len(a.sessions.Files())))
	p := tea.NewProgram(
		ui.NewModel(opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err = p.Run()
	return err
}

func main() {
	cmd := &cli.Command{
		Name:    "cbv",
		Usage:   "Browse the branches of exported Claude conversations",
		Version: version,
		Action:  runTUI,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "Delete every stored file and setting before starting",
			},
		},
		Commands: []*cli.Command{
			importCommand(),
			listCommand(),
			searchCommand(),
			renameCommand(),
			deleteCommand(),
			clearCommand(),
			passwordCommand(),
			syncCommand(),
			serveCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// closeQuietly is for deferred closes whose error has nowhere to go.
func closeQuietly(c io.Closer) {
	_ = c.Close()
}
