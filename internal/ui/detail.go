package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
	"github.com/Chris-1010/claude-branch-visualiser/internal/tree"
)

// DetailPane shows the selected message: who sent it, when, which branch it
// sits on, its reasoning and its markdown body.
type DetailPane struct {
	vp       viewport.Model
	node     *tree.Node
	query    string
	width    int
	height   int
	renderer *glamour.TermRenderer
	wrapAt   int
	now      func() time.Time
}

func NewDetailPane() DetailPane {
	return DetailPane{vp: viewport.New(40, 10), now: time.Now}
}

func (d *DetailPane) SetSize(w, h int) {
	if w == d.width && h == d.height {
		return
	}
	d.width = w
	d.height = h
	d.vp.Width = max(w-3, 1)
	d.vp.Height = max(h, 1)
	d.refresh(false)
}

// SetNode shows n, or the empty state when n is nil.
func (d *DetailPane) SetNode(n *tree.Node) {
	d.node = n
	d.refresh(true)
}

func (d *DetailPane) Node() *tree.Node { return d.node }

// SetQuery highlights query in the rendered body.
func (d *DetailPane) SetQuery(q string) {
	if q == d.query {
		return
	}
	d.query = q
	d.refresh(false)
}

func (d *DetailPane) ScrollUp(n int) {
	d.vp.SetYOffset(d.vp.YOffset - n)
}

func (d *DetailPane) ScrollDown(n int) {
	d.vp.SetYOffset(d.vp.YOffset + n)
}

func (d *DetailPane) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	d.vp, cmd = d.vp.Update(msg)
	return cmd
}

func (d *DetailPane) refresh(top bool) {
	if d.node == nil {
		d.vp.SetContent("")
		return
	}
	d.vp.SetContent(d.render())
	if top {
		d.vp.GotoTop()
	}
}

func (d *DetailPane) markdown(text string, width int) string {
	if d.renderer == nil || d.wrapAt != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return strings.Join(wrapText(text, width), "\n")
		}
		d.renderer, d.wrapAt = r, width
	}
	out, err := d.renderer.Render(text)
	if err != nil {
		return strings.Join(wrapText(text, width), "\n")
	}
	return strings.Trim(out, "\n")
}

func (d *DetailPane) render() string {
	n := d.node
	contentWidth := max(d.vp.Width-4, 20)

	var lines []string
	if n.Sender.IsHuman() {
		lines = append(lines, HumanMsgStyle.Render("  ┃ ▶ HUMAN"))
	} else {
		lines = append(lines, AssistantMsgStyle.Render("  ┃ ● "+strings.ToUpper(string(n.Sender))))
	}

	created := chat.FormatCreated(n.CreatedAt)
	if _, ok := chat.ParseTime(n.CreatedAt); ok {
		created += DimStyle.Render("  (" + chat.Relative(n.CreatedAt, d.now()) + ")")
	}
	lines = append(lines, DimStyle.Render("  ┃ ")+NormalStyle.Render(created))
	lines = append(lines, DimStyle.Render("  ┃ ")+BadgeStyle.Render(branchLabel(n)))
	if k := len(n.Children); k > 1 {
		lines = append(lines, DimStyle.Render("  ┃ ")+BadgeStyle.Render(fmt.Sprintf("%d replies branch from here", k)))
	}
	lines = append(lines, "")

	if reasoning := n.ReasoningText(); reasoning != "" && reasoning != n.PrimaryText() {
		lines = append(lines, ThinkingStyle.Render("  ┃ THINKING"))
		for _, line := range wrapText(reasoning, contentWidth) {
			lines = append(lines, ThinkingStyle.Render("  ┃ ")+DimStyle.Render(line))
		}
		lines = append(lines, "")
	}

	body := n.PrimaryText()
	if strings.TrimSpace(body) == "" {
		lines = append(lines, DimStyle.Render("  Empty message"))
	} else {
		lines = append(lines, d.markdown(body, contentWidth))
	}

	out := strings.Join(lines, "\n")
	if d.query != "" {
		out = highlightMatches(out, d.query)
	}
	return out
}

// branchLabel describes the forks taken on the way to n, e.g.
// "Branch 2 › 1/3". Linear conversations read "Main line".
func branchLabel(n *tree.Node) string {
	var parts []string
	for _, b := range n.BranchPath {
		if b.HasSiblings {
			parts = append(parts, fmt.Sprintf("%d", b.Position))
		}
	}
	if len(parts) == 0 {
		return "Main line"
	}
	return "Branch " + strings.Join(parts, " › ")
}

func (d *DetailPane) Title() string {
	if d.node == nil {
		return "MESSAGE"
	}
	return fmt.Sprintf("MESSAGE  depth %d", d.node.Depth())
}

func (d *DetailPane) View() string {
	if d.node == nil {
		return "\n" + DimStyle.Render("  Select a message in the tree")
	}
	body := strings.Split(d.vp.View(), "\n")
	scrollbar := RenderScrollbar(d.vp.Height, d.vp.TotalLineCount(), d.vp.YOffset)
	innerW := d.width - 3
	for i := range body {
		pad := max(innerW-visibleLen(body[i]), 0)
		sb := " "
		if i < len(scrollbar) {
			sb = scrollbar[i]
		}
		body[i] = body[i] + strings.Repeat(" ", pad) + sb
	}
	return strings.Join(body, "\n")
}

// wrapText word-wraps plain text, breaking words longer than width.
func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	return strings.Split(wrap.String(wordwrap.String(text, width), width), "\n")
}

// highlightMatches applies search highlighting to a styled line.
// It works on the plain-text segments between ANSI escape sequences,
// replacing case-insensitive matches with the highlighted version.
func highlightMatches(line, query string) string {
	if query == "" {
		return line
	}
	lowerQuery := strings.ToLower(query)
	qLen := len(lowerQuery)

	var out strings.Builder
	i := 0
	for i < len(line) {
		if line[i] == '\x1b' && i+1 < len(line) && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++
			}
			out.WriteString(line[i:j])
			i = j
			continue
		}

		if i+qLen <= len(line) && strings.ToLower(line[i:i+qLen]) == lowerQuery {
			out.WriteString(SearchHighlightStyle.Render(line[i : i+qLen]))
			i += qLen
			continue
		}

		out.WriteByte(line[i])
		i++
	}
	return out.String()
}
