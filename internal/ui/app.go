package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/Chris-1010/claude-branch-visualiser/internal/config"
	"github.com/Chris-1010/claude-branch-visualiser/internal/remote"
	"github.com/Chris-1010/claude-branch-visualiser/internal/search"
	"github.com/Chris-1010/claude-branch-visualiser/internal/session"
	"github.com/Chris-1010/claude-branch-visualiser/internal/store"
	"github.com/Chris-1010/claude-branch-visualiser/internal/tree"
	"github.com/Chris-1010/claude-branch-visualiser/internal/view"
	"github.com/Chris-1010/claude-branch-visualiser/internal/watcher"
)

type pane int

const (
	paneFiles pane = iota
	paneTree
	paneDetail
)

const frameInterval = 16 * time.Millisecond

type frameMsg time.Time

type searchDebounceMsg struct{ seq int }

type searchDoneMsg search.Response

type syncDoneMsg struct {
	report session.Report
	err    error
}

type autoSyncMsg time.Time

type importDoneMsg struct {
	report session.Report
	err    error
}

func frameCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// picker receives the synchronizer's selection callbacks so Update can act
// on them after the click has been routed.
type picker struct {
	id string
	ok bool
}

func (p *picker) pick(id string) { p.id, p.ok = id, true }

func (p *picker) take() (string, bool) {
	id, ok := p.id, p.ok
	p.id, p.ok = "", false
	return id, ok
}

// Options wires the model to the rest of the application. Remote and Inbox
// may be nil.
type Options struct {
	// Context bounds background work such as sync and inbox imports; it
	// should end when the program does.
	Context  context.Context
	Sessions *session.Manager
	Remote   session.Remote
	Inbox    *watcher.Inbox
	Config   config.Config
	Log      *slog.Logger
}

type Model struct {
	ctx      context.Context
	sessions *session.Manager
	remote   session.Remote
	inbox    *watcher.Inbox
	cfg      config.Config
	log      *slog.Logger

	files  FileList
	canvas *TreeCanvas
	detail DetailPane
	search SearchOverlay
	engine *search.Engine
	frames *view.FrameQueue
	sync   *view.Synchronizer
	picks  *picker

	focus       pane
	width       int
	height      int
	ready       bool
	ticking     bool
	syncing     bool
	confirmQuit bool
	askPassword bool
	password    textinput.Model
	status      string
	statusErr   bool
	usage       store.Usage
}

func NewModel(opts Options) Model {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	pw := textinput.New()
	pw.Prompt = "password: "
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'
	pw.CharLimit = 256
	pw.PromptStyle = lipgloss.NewStyle().Foreground(ColorYellow)
	pw.TextStyle = lipgloss.NewStyle().Foreground(ColorWhite)

	m := Model{
		ctx:      opts.Context,
		sessions: opts.Sessions,
		remote:   opts.Remote,
		inbox:    opts.Inbox,
		cfg:      opts.Config,
		log:      opts.Log,
		files:    NewFileList(),
		canvas:   NewTreeCanvas(),
		detail:   NewDetailPane(),
		search:   NewSearchOverlay(),
		engine:   search.NewEngine(),
		frames:   &view.FrameQueue{},
		picks:    &picker{},
		focus:    paneTree,
		password: pw,
	}
	m.sync = view.NewSynchronizer(m.canvas, view.Options{
		Scheduler: m.frames,
		Heatmap:   opts.Config.Heatmap,
		OnSelect:  m.picks.pick,
	})
	m.showCurrent()
	m.refreshUsage()
	if m.sessions.Current() == nil {
		m.focus = paneFiles
	}
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.scheduleSync()}
	if m.inbox != nil {
		cmds = append(cmds, m.inbox.Wait(), m.importInboxCmd())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	// Keep the frame clock running only while callbacks are waiting.
	if next.frames.Pending() && !next.ticking {
		next.ticking = true
		cmd = tea.Batch(cmd, frameCmd())
	}
	next.layoutPanes()
	return next, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case frameMsg:
		m.ticking = false
		m.frames.Flush(time.Time(msg))
		return m, nil

	case searchDebounceMsg:
		if !m.search.Current(msg.seq) {
			return m, nil
		}
		return m, m.runSearch()

	case searchDoneMsg:
		resp := search.Response(msg)
		if !m.search.IsActive() || !m.engine.Accept(resp) || resp.ID != m.search.pending {
			return m, nil
		}
		m.search.SetResults(resp.Results, resp.Err)
		return m, nil

	case syncDoneMsg:
		return m.handleSyncDone(msg)

	case autoSyncMsg:
		cmds := []tea.Cmd{m.scheduleSync()}
		if !m.syncing && m.sessions.Password() != "" {
			m.syncing = true
			cmds = append(cmds, m.syncCmd())
		}
		return m, tea.Batch(cmds...)

	case watcher.InboxMsg:
		return m, tea.Batch(m.inbox.Wait(), m.importInboxCmd())

	case importDoneMsg:
		if msg.err != nil {
			m.setError("inbox: %v", msg.err)
			return m, nil
		}
		if msg.report.Changed() || msg.report.Skipped > 0 {
			m.setStatus("inbox: %s", msg.report)
		}
		if msg.report.Changed() {
			m.showCurrent()
			m.refreshUsage()
		}
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		if m.confirmQuit {
			return m.handleConfirmQuit(msg)
		}
		if m.askPassword {
			return m.handlePasswordKey(msg)
		}
		if m.search.IsActive() {
			return m.handleSearchKey(msg)
		}
		if m.files.IsRenaming() {
			return m.handleRenameKey(msg)
		}
		if m.files.Confirming() != confirmNone {
			return m.handleConfirmKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleConfirmQuit(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "q", "enter":
		m.sync.Detach()
		return m, tea.Quit
	default:
		m.confirmQuit = false
	}
	return m, nil
}

func (m Model) handlePasswordKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.askPassword = false
		m.password.Blur()
		return m, nil
	case "enter":
		pw := m.password.Value()
		m.askPassword = false
		m.password.Blur()
		m.password.SetValue("")
		if pw == "" {
			return m, nil
		}
		if err := m.sessions.SetPassword(context.Background(), pw); err != nil {
			m.setError("save password: %v", err)
			return m, nil
		}
		return m.startSync()
	}
	var cmd tea.Cmd
	m.password, cmd = m.password.Update(msg)
	return m, cmd
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.sync.Detach()
		return m, tea.Quit
	case "esc":
		m.search.Close()
		m.detail.SetQuery("")
		m.selectMessage("")
		return m, nil
	case "tab":
		m.search.ToggleScope()
		return m, m.runSearch()
	case "enter":
		if r := m.search.SelectedResult(); r != nil {
			m.activateResult(*r)
		}
		return m, nil
	case "up":
		m.search.ResultUp()
		return m, nil
	case "down":
		m.search.ResultDown()
		return m, nil
	}

	prev := m.search.Value()
	cmd := m.search.UpdateInput(msg)
	if m.search.Value() == prev {
		return m, cmd
	}
	seq := m.search.Bump()
	debounce := tea.Tick(m.cfg.Search.Debounce, func(time.Time) tea.Msg {
		return searchDebounceMsg{seq: seq}
	})
	return m, tea.Batch(cmd, debounce)
}

func (m Model) handleRenameKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.files.CancelRename()
		return m, nil
	case "enter":
		name := m.files.FinishRename()
		if sel := m.files.Selected(); sel != nil {
			if err := m.sessions.Rename(context.Background(), sel.ID, name); err != nil {
				m.setError("rename: %v", err)
			}
			m.refreshFiles()
		}
		return m, nil
	}
	return m, m.files.UpdateInput(msg)
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	kind := m.files.Confirming()
	m.files.EndConfirm()
	if msg.String() != "y" && msg.String() != "Y" {
		return m, nil
	}

	ctx := context.Background()
	switch kind {
	case confirmDelete:
		sel := m.files.Selected()
		if sel == nil {
			return m, nil
		}
		if err := m.sessions.Delete(ctx, sel.ID); err != nil {
			m.setError("delete: %v", err)
		} else {
			m.setStatus("deleted %s", sel.Title())
		}
	case confirmClear:
		if err := m.sessions.ClearAll(ctx); err != nil {
			m.setError("clear: %v", err)
		} else {
			m.setStatus("all files deleted")
		}
	}
	m.showCurrent()
	m.refreshUsage()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.sync.Detach()
		return m, tea.Quit
	case "q":
		m.confirmQuit = true
		return m, nil

	case "s", "/":
		return m, m.search.Open()

	case "h":
		on := !m.sync.Heatmap()
		m.sync.SetHeatmap(on)
		m.cfg.Heatmap = on
		if err := config.Save(m.cfg); err != nil {
			m.log.Warn("save config", slog.String("error", err.Error()))
		}

	case "S":
		return m.startSync()

	case "y":
		if n := m.detail.Node(); n != nil {
			if err := clipboard.WriteAll(n.PrimaryText()); err != nil {
				m.setError("copy: %v", err)
			} else {
				m.setStatus("copied message text")
			}
		}

	case "esc":
		m.selectMessage("")

	case "tab":
		m.focus = (m.focus + 1) % 3
	case "shift+tab":
		m.focus = (m.focus + 2) % 3

	case "up", "k":
		switch m.focus {
		case paneFiles:
			m.files.Up()
		case paneTree:
			m.stepSelection(-1)
		case paneDetail:
			m.detail.ScrollUp(3)
		}
	case "down", "j":
		switch m.focus {
		case paneFiles:
			m.files.Down()
		case paneTree:
			m.stepSelection(1)
		case paneDetail:
			m.detail.ScrollDown(3)
		}

	case "[":
		m.hopSibling(-1)
	case "]":
		m.hopSibling(1)

	case ".":
		if id := m.sessions.Selected(); id != "" {
			m.sync.ScrollTo(id)
		}

	case "pgup":
		if m.focus == paneDetail {
			m.detail.ScrollUp(m.height / 2)
		} else {
			m.canvas.ScrollBy(-m.height/2, 0)
		}
	case "pgdown":
		if m.focus == paneDetail {
			m.detail.ScrollDown(m.height / 2)
		} else {
			m.canvas.ScrollBy(m.height/2, 0)
		}
	case "left":
		if m.focus == paneTree {
			m.canvas.ScrollBy(0, -4)
		}
	case "right":
		if m.focus == paneTree {
			m.canvas.ScrollBy(0, 4)
		}

	case "enter":
		if m.focus == paneFiles {
			if sel := m.files.Selected(); sel != nil {
				if err := m.sessions.SetCurrent(context.Background(), sel.ID); err != nil {
					m.setError("open: %v", err)
					return m, nil
				}
				m.showCurrent()
				m.focus = paneTree
			}
		}

	case "d":
		if m.focus == paneFiles {
			m.files.Ask(confirmDelete)
		}
	case "D":
		if m.focus == paneFiles && m.files.Len() > 0 {
			m.files.Ask(confirmClear)
		}
	case "r":
		if m.focus == paneFiles {
			return m, m.files.StartRename()
		}
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (Model, tea.Cmd) {
	if m.confirmQuit || m.askPassword {
		return m, nil
	}
	leftW, treeW, _ := m.columns()
	const top = 2 // header row plus panel border

	switch {
	case msg.X < leftW:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.files.Up()
		case tea.MouseButtonWheelDown:
			m.files.Down()
		}
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			m.focus = paneFiles
		}

	case msg.X < leftW+treeW:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.canvas.ScrollBy(-3, 0)
		case tea.MouseButtonWheelDown:
			m.canvas.ScrollBy(3, 0)
		case tea.MouseButtonWheelLeft:
			m.canvas.ScrollBy(0, -4)
		case tea.MouseButtonWheelRight:
			m.canvas.ScrollBy(0, 4)
		case tea.MouseButtonLeft:
			if msg.Action != tea.MouseActionPress {
				break
			}
			m.focus = paneTree
			if key, ok := m.canvas.KeyAt(msg.Y - top); ok {
				m.sync.NodeClicked(key)
			} else {
				m.sync.BackgroundClicked()
			}
			if id, ok := m.picks.take(); ok {
				m.selectMessage(id)
			}
		}

	default:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.detail.ScrollUp(3)
		case tea.MouseButtonWheelDown:
			m.detail.ScrollDown(3)
		}
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			m.focus = paneDetail
		}
	}
	return m, nil
}

// showCurrent hands the current file's forest to the diagram and refreshes
// the panes that depend on it.
func (m *Model) showCurrent() {
	var forest []*tree.Node
	if cur := m.sessions.Current(); cur != nil {
		forest = cur.Tree
	}
	if id := m.sessions.Selected(); id != "" && m.findNode(id) == nil {
		m.sessions.SetSelected("")
	}
	m.sync.ReplaceModel(forest, m.sessions.Selected())
	m.detail.SetNode(m.findNode(m.sessions.Selected()))
	m.refreshFiles()
}

func (m *Model) refreshFiles() {
	current := ""
	if cur := m.sessions.Current(); cur != nil {
		current = cur.ID
	}
	m.files.SetFiles(m.sessions.Files(), current)
}

func (m *Model) refreshUsage() {
	u, err := m.sessions.StorageUsage(context.Background())
	if err != nil {
		m.log.Warn("storage usage", slog.String("error", err.Error()))
		return
	}
	m.usage = u
}

func (m *Model) findNode(id string) *tree.Node {
	cur := m.sessions.Current()
	if cur == nil || id == "" {
		return nil
	}
	return tree.Find(cur.Tree, id)
}

// selectMessage updates the application's selection and mirrors it onto
// the diagram without moving the viewport.
func (m *Model) selectMessage(id string) {
	m.sessions.SetSelected(id)
	m.sync.SyncSelection(id)
	m.detail.SetNode(m.findNode(id))
}

// stepSelection moves through the outline. The viewport only moves when
// the new node is off screen.
func (m *Model) stepSelection(delta int) {
	key, _ := m.sync.KeyOf(m.sessions.Selected())
	next, ok := m.canvas.Step(key, delta)
	if !ok {
		return
	}
	m.moveTo(next)
}

func (m *Model) hopSibling(delta int) {
	key, ok := m.sync.KeyOf(m.sessions.Selected())
	if !ok {
		return
	}
	if next, ok := m.canvas.Sibling(key, delta); ok {
		m.moveTo(next)
	}
}

func (m *Model) moveTo(key string) {
	id, ok := m.sync.IDOf(key)
	if !ok {
		return
	}
	if m.canvas.Visible(key) {
		m.selectMessage(id)
		return
	}
	m.sessions.SetSelected(id)
	m.sync.ScrollTo(id)
	m.detail.SetNode(m.findNode(id))
}

// activateResult opens the result's file if needed and scrolls to the
// message once the new tree has been drawn.
func (m *Model) activateResult(r search.Result) {
	id := r.Message.UUID
	cur := m.sessions.Current()
	if cur == nil || cur.ID != r.FileID {
		if err := m.sessions.SetCurrent(context.Background(), r.FileID); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				m.setError("file no longer exists")
			} else {
				m.setError("open: %v", err)
			}
			return
		}
		m.showCurrent()
		m.sessions.SetSelected(id)
		m.sync.ScrollToAfterRender(id)
	} else {
		m.sessions.SetSelected(id)
		m.sync.ScrollTo(id)
	}
	m.detail.SetNode(m.findNode(id))
	m.detail.SetQuery(r.MatchText)
}

// runSearch scans the open file on the spot; an all-files search goes to
// the engine and answers later with a searchDoneMsg.
func (m *Model) runSearch() tea.Cmd {
	query := m.search.Value()
	m.search.pending = 0
	if len([]rune(query)) < search.MinQueryLen {
		m.search.SetResults(nil, nil)
		return nil
	}

	if m.search.Scope() == ScopeFile {
		results, err := search.Search(context.Background(), m.sessions.Corpus(false), query)
		m.search.SetResults(results, err)
		return nil
	}

	ch := make(chan search.Response, 1)
	m.search.pending = m.engine.Submit(context.Background(), m.sessions.Corpus(true), query, func(r search.Response) {
		ch <- r
	})
	m.search.SetSearching(true)
	return func() tea.Msg {
		return searchDoneMsg(<-ch)
	}
}

func (m Model) startSync() (Model, tea.Cmd) {
	if m.remote == nil {
		m.setError("no file host configured (sync.url in %s)", config.Path())
		return m, nil
	}
	if m.syncing {
		return m, nil
	}
	if m.sessions.Password() == "" {
		m.openPasswordPrompt("enter the file host password")
		return m, textinput.Blink
	}
	m.syncing = true
	m.setStatus("syncing...")
	return m, m.syncCmd()
}

// syncCmd runs a sync for as long as the program lives. Each request to
// the host carries its own timeout, so the batch itself has no deadline.
func (m Model) syncCmd() tea.Cmd {
	ctx, sessions, host := m.ctx, m.sessions, m.remote
	return func() tea.Msg {
		report, err := sessions.Sync(ctx, host)
		return syncDoneMsg{report: report, err: err}
	}
}

func (m Model) handleSyncDone(msg syncDoneMsg) (Model, tea.Cmd) {
	m.syncing = false
	switch {
	case errors.Is(msg.err, remote.ErrUnauthorized):
		m.openPasswordPrompt("password rejected, enter it again")
		return m, textinput.Blink
	case errors.Is(msg.err, session.ErrNoCredential):
		m.openPasswordPrompt("enter the file host password")
		return m, textinput.Blink
	case msg.err != nil:
		m.setError("sync: %v", msg.err)
	default:
		m.setStatus("sync: %s", msg.report)
	}
	if msg.report.Changed() {
		m.showCurrent()
		m.refreshUsage()
	}
	return m, nil
}

func (m *Model) openPasswordPrompt(reason string) {
	m.askPassword = true
	m.password.SetValue("")
	m.password.Focus()
	m.setError("%s", reason)
}

// scheduleSync waits for the next cron tick of sync.schedule.
func (m Model) scheduleSync() tea.Cmd {
	if m.remote == nil {
		return nil
	}
	next, ok := m.cfg.Sync.NextRun(time.Now())
	if !ok {
		return nil
	}
	return tea.Tick(time.Until(next), func(t time.Time) tea.Msg {
		return autoSyncMsg(t)
	})
}

func (m Model) importInboxCmd() tea.Cmd {
	ctx, sessions, dir := m.ctx, m.sessions, m.inbox.Dir()
	return func() tea.Msg {
		report, err := sessions.ImportDir(ctx, dir)
		return importDoneMsg{report: report, err: err}
	}
}

func (m *Model) setStatus(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = false
}

func (m *Model) setError(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = true
}

func (m Model) columns() (leftW, treeW, detailW int) {
	leftW = max(m.width*22/100, 26)
	detailW = max(m.width*34/100, 30)
	treeW = max(m.width-leftW-detailW, 20)
	return leftW, treeW, detailW
}

// bodyHeight is the content height inside each panel border.
func (m Model) bodyHeight() int {
	h := m.height - 2 - 2 - m.search.Height()
	if m.askPassword {
		h--
	}
	return max(h, 3)
}

func (m *Model) layoutPanes() {
	if !m.ready {
		return
	}
	leftW, treeW, detailW := m.columns()
	h := m.bodyHeight()
	m.files.SetSize(leftW, h)
	m.canvas.SetSize(treeW-2, h)
	m.detail.SetSize(detailW, h)
	m.search.SetWidth(m.width)
	m.password.Width = max(m.width-20, 10)
}

func (m Model) View() string {
	if !m.ready {
		return ""
	}

	leftW, treeW, detailW := m.columns()
	h := m.bodyHeight()

	treeTitle := "TREE"
	if cur := m.sessions.Current(); cur != nil {
		treeTitle = fmt.Sprintf("TREE  %s  %d msgs", fitWidth(cur.Title(), treeW-24), len(cur.Messages))
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		RenderPanel("FILES", m.files.View(), leftW, h, m.focus == paneFiles),
		RenderPanel(treeTitle, m.canvas.View(), treeW, h, m.focus == paneTree),
		RenderPanel(m.detail.Title(), m.detail.View(), detailW, h, m.focus == paneDetail),
	)

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n")
	if m.search.IsActive() {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	if m.askPassword {
		b.WriteString(" " + m.password.View())
		b.WriteString("\n")
	}
	b.WriteString(m.renderStatusBar())

	if m.confirmQuit {
		return overlayCenter(b.String(), m.renderConfirmQuit(), m.width, m.height)
	}
	return b.String()
}

func (m Model) renderHeader() string {
	bg := lipgloss.NewStyle().Background(ColorBarBg)

	left := bg.Foreground(ColorGreen).Bold(true).Render(" ✦ ") +
		bg.Foreground(ColorCyan).Bold(true).Render("CLAUDE BRANCHES")

	var parts []string
	if m.sync.Heatmap() {
		label := "HEATMAP"
		if m.sync.Animating() {
			label += " ~"
		}
		parts = append(parts, bg.Foreground(lipgloss.Color(view.HeatFallback)).Bold(true).Render(label))
	}
	parts = append(parts, bg.Foreground(ColorBarText).Render(
		fmt.Sprintf("%d files  %s", m.usage.Count, humanize.Bytes(uint64(m.usage.SizeBytes)))))
	parts = append(parts, bg.Foreground(ColorBarText).Render(time.Now().Format("15:04")))

	right := strings.Join(parts, bg.Foreground(ColorDim).Render(" │ ")) + bg.Render(" ")
	spacer := max(m.width-visibleLen(left)-visibleLen(right), 1)
	return left + bg.Render(strings.Repeat(" ", spacer)) + right
}

func (m Model) renderStatusBar() string {
	bg := lipgloss.NewStyle().Background(ColorBarBg)

	var leftText string
	switch {
	case m.search.IsActive():
		leftText = "  [Esc] Close  [Tab] Scope  [↑↓] Result  [Enter] Go"
	case m.focus == paneFiles:
		leftText = "  [Enter] Open  [r] Rename  [d] Delete  [D] Clear  [S] Sync  [s] Search  [Tab] Switch  [q] Quit"
	default:
		leftText = "  [j/k] Move  [ ] Branch  [.] Center  [h] Heatmap  [y] Copy  [s] Search  [S] Sync  [Tab] Switch  [q] Quit"
	}
	left := bg.Foreground(ColorBarText).Render(leftText)

	right := ""
	if m.syncing {
		right = bg.Foreground(ColorYellow).Render("SYNCING...") + bg.Render("  ")
	} else if m.status != "" {
		style := bg.Foreground(ColorBarText)
		if m.statusErr {
			style = bg.Foreground(ColorRed)
		}
		right = style.Render(m.status) + bg.Render("  ")
	}

	spacer := max(m.width-runewidth.StringWidth(leftText)-visibleLen(right), 1)
	return left + bg.Render(strings.Repeat(" ", spacer)) + right
}

func (m Model) renderConfirmQuit() string {
	bc := lipgloss.NewStyle().Foreground(ColorYellow)
	tc := lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	dim := lipgloss.NewStyle().Foreground(ColorDim)

	innerW := 30
	side := bc.Render("┃")

	title := " QUIT "
	fillLen := max(innerW-3-len(title), 0)

	var rows []string
	rows = append(rows, bc.Render("┏━╸")+tc.Render(title)+bc.Render("╺"+strings.Repeat("━", fillLen)+"┓"))
	rows = append(rows, side+strings.Repeat(" ", innerW)+side)

	q := lipgloss.NewStyle().Foreground(ColorWhite).Bold(true).Render("  Exit cbv?")
	rows = append(rows, side+q+strings.Repeat(" ", max(innerW-visibleLen(q), 0))+side)
	rows = append(rows, side+strings.Repeat(" ", innerW)+side)

	opts := fmt.Sprintf("  %s yes  %s no", SelectedStyle.Render("[y/q]"), dim.Render("[n]"))
	rows = append(rows, side+opts+strings.Repeat(" ", max(innerW-visibleLen(opts), 0))+side)
	rows = append(rows, side+strings.Repeat(" ", innerW)+side)
	rows = append(rows, bc.Render("┗"+strings.Repeat("━", innerW)+"┛"))

	return strings.Join(rows, "\n")
}

// overlayCenter composites a small modal on top of a rendered background,
// replacing lines in the center while keeping the dashboard visible around it.
func overlayCenter(bg, modal string, width, height int) string {
	bgLines := strings.Split(bg, "\n")
	modalLines := strings.Split(modal, "\n")

	for len(bgLines) < height {
		bgLines = append(bgLines, "")
	}

	modalW := 0
	for _, ml := range modalLines {
		modalW = max(modalW, visibleLen(ml))
	}
	topOff := max((height-len(modalLines))/2, 0)
	leftOff := max((width-modalW)/2, 0)

	for i, ml := range modalLines {
		row := topOff + i
		if row < len(bgLines) {
			bgLines[row] = spliceLine(bgLines[row], ml, leftOff)
		}
	}
	return strings.Join(bgLines, "\n")
}

// spliceLine puts modalLine over bgLine starting at visible column leftOff,
// keeping the background to its left.
func spliceLine(bgLine, modalLine string, leftOff int) string {
	left := truncateToWidth(bgLine, leftOff)
	if pad := leftOff - visibleLen(left); pad > 0 {
		left += strings.Repeat(" ", pad)
	}
	return left + modalLine
}
