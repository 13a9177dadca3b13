package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
	"github.com/Chris-1010/claude-branch-visualiser/internal/filehost"
	"github.com/Chris-1010/claude-branch-visualiser/internal/logging"
	"github.com/Chris-1010/claude-branch-visualiser/internal/remote"
	"github.com/Chris-1010/claude-branch-visualiser/internal/search"
	"github.com/Chris-1010/claude-branch-visualiser/internal/session"
	"github.com/Chris-1010/claude-branch-visualiser/internal/store"
	"github.com/Chris-1010/claude-branch-visualiser/internal/tree"
	"github.com/Chris-1010/claude-branch-visualiser/internal/watcher"
)

var errUsage = errors.New("missing argument")

// findFile resolves a command argument to a stored file: by id, then by
// original name, then by display name.
func findFile(sessions *session.Manager, arg string) (*store.ChatFile, error) {
	if f := sessions.File(arg); f != nil {
		return f, nil
	}
	if f := sessions.FileByName(arg); f != nil {
		return f, nil
	}
	for _, f := range sessions.Files() {
		if f.DisplayName != "" && f.DisplayName == arg {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", arg, session.ErrNotFound)
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm falls back to huh's accessible mode when stdin is not a terminal.
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

func confirm(title string) (bool, error) {
	var ok bool
	form := newForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Value(&ok).
			Affirmative("Yes").
			Negative("No"),
	))
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}

func askPassword() (string, error) {
	var pw string
	form := newForm(huh.NewGroup(
		huh.NewInput().
			Title("File host password").
			EchoMode(huh.EchoModePassword).
			Value(&pw),
	))
	if err := form.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(pw), nil
}

var yesFlag = &cli.BoolFlag{
	Name:    "yes",
	Aliases: []string{"y"},
	Usage:   "Do not ask for confirmation",
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import exported conversation files",
		ArgsUsage: "<file.json>...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return fmt.Errorf("%w: import needs at least one file", errUsage)
			}
			a, err := cliApp(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(a)

			ok := color.New(color.FgGreen)
			for _, path := range cmd.Args().Slice() {
				f, err := a.sessions.ImportFile(ctx, path)
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				fmt.Printf("%s %s (%d messages, %d roots)\n",
					ok.Sprint("imported"), f.Title(), len(f.Messages), len(f.Tree))
			}
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored files",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := cliApp(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(a)

			files := a.sessions.Files()
			if len(files) == 0 {
				fmt.Println("no files yet; try cbv import <export.json>")
				return nil
			}

			bold := color.New(color.Bold)
			current := ""
			if cur := a.sessions.Current(); cur != nil {
				current = cur.ID
			}

			now := time.Now()
			tbl := uitable.New()
			tbl.Separator = "  "
			tbl.MaxColWidth = 60
			tbl.AddRow("", bold.Sprint("ID"), bold.Sprint("TITLE"), bold.Sprint("MESSAGES"), bold.Sprint("BRANCHES"), bold.Sprint("UPDATED"))
			for _, f := range files {
				mark := ""
				if f.ID == current {
					mark = "●"
				}
				tbl.AddRow(mark, shortID(f.ID), f.Title(), humanize.Comma(int64(len(f.Messages))), branchPoints(f.Tree), chat.Ago(f.LastUpdated, now))
			}
			tbl.RightAlign(3)
			tbl.RightAlign(4)
			fmt.Fprintln(color.Output, tbl)

			usage, err := a.sessions.StorageUsage(ctx)
			if err != nil {
				return err
			}
			fmt.Println(color.New(color.Faint).Sprintf("%d files, %s in %s", usage.Count, humanize.Bytes(uint64(usage.SizeBytes)), a.dataDir))
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// branchPoints counts messages with more than one reply.
func branchPoints(forest []*tree.Node) int {
	n := 0
	tree.Walk(forest, func(node *tree.Node) bool {
		if len(node.Children) > 1 {
			n++
		}
		return true
	})
	return n
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search message text in the open file, or all files",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "Search every stored file",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query := strings.Join(cmd.Args().Slice(), " ")
			if len([]rune(query)) < search.MinQueryLen {
				return fmt.Errorf("%w: query must be at least %d characters", errUsage, search.MinQueryLen)
			}
			a, err := cliApp(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(a)

			all := cmd.Bool("all")
			if !all && a.sessions.Current() == nil {
				return errors.New("no file is open; use --all or open one in the viewer")
			}

			results, err := search.Search(ctx, a.sessions.Corpus(all), query)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("no matches")
				return nil
			}

			label := color.New(color.FgCyan)
			faint := color.New(color.Faint)
			hit := color.New(color.FgHiYellow, color.Bold)
			for _, r := range results {
				fmt.Fprintf(color.Output, "%s  %s  %s\n",
					label.Sprint(r.Label), faint.Sprint(chat.FormatCreated(r.Message.CreatedAt)), faint.Sprint(r.Message.UUID))
				fmt.Fprintf(color.Output, "    %s\n\n", highlight(chat.SingleLine(r.Context), r.MatchText, hit))
			}
			if len(results) == search.MaxResults {
				faint.Printf("showing the first %d matches\n", search.MaxResults)
			}
			return nil
		},
	}
}

// highlight colours the first occurrence of match in s.
func highlight(s, match string, c *color.Color) string {
	i := strings.Index(s, match)
	if match == "" || i < 0 {
		return s
	}
	return s[:i] + c.Sprint(match) + s[i+len(match):]
}

func renameCommand() *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Set a file's display name; omit the name to revert",
		ArgsUsage: "<file> [display name]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return fmt.Errorf("%w: rename needs a file", errUsage)
			}
			a, err := cliApp(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(a)

			f, err := findFile(a.sessions, cmd.Args().First())
			if err != nil {
				return err
			}
			name := strings.Join(cmd.Args().Tail(), " ")
			if err := a.sessions.Rename(ctx, f.ID, name); err != nil {
				return err
			}
			fmt.Printf("%s is now %q\n", f.Name, a.sessions.File(f.ID).Title())
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a stored file",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{yesFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return fmt.Errorf("%w: delete needs a file", errUsage)
			}
			a, err := cliApp(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(a)

			f, err := findFile(a.sessions, cmd.Args().First())
			if err != nil {
				return err
			}
			if !cmd.Bool("yes") {
				ok, err := confirm(fmt.Sprintf("Delete %s (%d messages)?", f.Title(), len(f.Messages)))
				if err != nil || !ok {
					return err
				}
			}
			if err := a.sessions.Delete(ctx, f.ID); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", f.Title())
			return nil
		},
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete every stored file",
		Flags: []cli.Flag{yesFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := cliApp(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(a)

			n := len(a.sessions.Files())
			if n == 0 {
				fmt.Println("nothing to delete")
				return nil
			}
			if !cmd.Bool("yes") {
				ok, err := confirm(fmt.Sprintf("Delete all %d files?", n))
				if err != nil || !ok {
					return err
				}
			}
			if err := a.sessions.ClearAll(ctx); err != nil {
				return err
			}
			fmt.Printf("deleted %d files\n", n)
			return nil
		},
	}
}

func passwordCommand() *cli.Command {
	return &cli.Command{
		Name:  "password",
		Usage: "Store the file host password used by sync",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "clear",
				Usage: "Forget the stored password",
			},
			&cli.StringFlag{
				Name:    "value",
				Usage:   "Password to store instead of prompting",
				Sources: cli.EnvVars("CBV_SYNC_PASSWORD"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := cliApp(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(a)

			if cmd.Bool("clear") {
				if err := a.sessions.ClearPassword(ctx); err != nil {
					return err
				}
				fmt.Println("password cleared")
				return nil
			}

			pw := cmd.String("value")
			if pw == "" {
				if pw, err = askPassword(); err != nil {
					return err
				}
			}
			if pw == "" {
				return errors.New("password is empty")
			}
			if err := a.sessions.SetPassword(ctx, pw); err != nil {
				return err
			}
			fmt.Println("password saved")
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Download new and updated files from the file host",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := cliApp(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(a)

			host, err := a.remote()
			if err != nil {
				return err
			}
			if host == nil {
				return errors.New("sync.url is not set in the config file")
			}

			report, err := a.sessions.Sync(ctx, host)
			if errors.Is(err, session.ErrNoCredential) && isTerminal() {
				pw, perr := askPassword()
				if perr != nil {
					return perr
				}
				if err := a.sessions.SetPassword(ctx, pw); err != nil {
					return err
				}
				report, err = a.sessions.Sync(ctx, host)
			}
			if errors.Is(err, remote.ErrUnauthorized) {
				return errors.New("the file host rejected the password; run cbv password to set it again")
			}
			if err != nil {
				return err
			}
			fmt.Println(report)
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Publish stored files over HTTP and import the inbox as it changes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "password",
				Usage:   "Password clients must send (defaults to serve.password)",
				Sources: cli.EnvVars("CBV_SERVE_PASSWORD"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := loadConfig()
			log := logging.New(os.Stderr, cfg.LogLevel)
			a, err := openApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeQuietly(a)

			password := cmd.String("password")
			if password == "" {
				password = cfg.Serve.Password
			}
			if password == "" {
				log.Warn("no serve password configured; every request will be rejected")
			}

			inbox, err := watcher.New(a.inboxDir)
			if err != nil {
				return err
			}
			defer closeQuietly(inbox)

			importInbox := func() {
				report, err := a.sessions.ImportDir(ctx, a.inboxDir)
				if err != nil {
					log.Error("inbox import failed", slog.String("error", err.Error()))
					return
				}
				if report.Changed() {
					log.Info("inbox imported", slog.String("report", report.String()))
				}
			}

			reg := prometheus.NewRegistry()
			router := filehost.NewRouter(a.store, password, reg, log)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return filehost.Serve(ctx, cfg.Serve.Address(), router, log)
			})
			g.Go(func() error {
				importInbox()
				inbox.Run(ctx, importInbox)
				return nil
			})
			return g.Wait()
		},
	}
}
