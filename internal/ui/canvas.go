package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Chris-1010/claude-branch-visualiser/internal/view"
)

// TreeCanvas draws a conversation forest as an outline, one row per message.
// A linear run of replies stays in one column; only branch points indent.
// It is the view.Diagram the synchronizer drives.
type TreeCanvas struct {
	rows     []canvasRow
	roots    []int
	index    map[string]int
	selected int

	top, left     int
	width, height int
}

type canvasRow struct {
	node     view.NodeData
	fill     string
	prefix   string
	parent   int
	children []int
}

var _ view.Diagram = (*TreeCanvas)(nil)

func NewTreeCanvas() *TreeCanvas {
	return &TreeCanvas{index: map[string]int{}, selected: -1}
}

func (c *TreeCanvas) SetSize(w, h int) {
	c.width = w
	c.height = h
	c.clamp()
}

// SetModel lays the nodes out in pre-order. Edges pointing at unknown keys,
// or giving a node a second parent, are ignored.
func (c *TreeCanvas) SetModel(nodes []view.NodeData, edges []view.Edge) {
	byKey := make(map[string]int, len(nodes))
	for i, n := range nodes {
		byKey[n.Key] = i
	}
	kids := make([][]int, len(nodes))
	hasParent := make([]bool, len(nodes))
	for _, e := range edges {
		from, ok := byKey[e.From]
		to, ok2 := byKey[e.To]
		if !ok || !ok2 || hasParent[to] || from == to {
			continue
		}
		kids[from] = append(kids[from], to)
		hasParent[to] = true
	}

	type frame struct {
		node          int
		parent        int
		prefix, guide string
	}
	var stack []frame
	for i := len(nodes) - 1; i >= 0; i-- {
		if !hasParent[i] {
			stack = append(stack, frame{node: i, parent: -1})
		}
	}

	c.rows = make([]canvasRow, 0, len(nodes))
	c.roots = c.roots[:0]
	c.index = make(map[string]int, len(nodes))
	c.selected = -1

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		row := len(c.rows)
		n := nodes[f.node]
		c.rows = append(c.rows, canvasRow{node: n, fill: n.Color, prefix: f.prefix, parent: f.parent})
		c.index[n.Key] = row
		if f.parent < 0 {
			c.roots = append(c.roots, row)
		} else {
			c.rows[f.parent].children = append(c.rows[f.parent].children, row)
		}

		ch := kids[f.node]
		if len(ch) == 1 {
			stack = append(stack, frame{node: ch[0], parent: row, prefix: f.guide, guide: f.guide})
			continue
		}
		for i := len(ch) - 1; i >= 0; i-- {
			next := frame{node: ch[i], parent: row}
			if i == len(ch)-1 {
				next.prefix, next.guide = f.guide+"└─ ", f.guide+"   "
			} else {
				next.prefix, next.guide = f.guide+"├─ ", f.guide+"│  "
			}
			stack = append(stack, next)
		}
	}
	c.clamp()
}

// Select highlights a node and scrolls just enough to show it.
func (c *TreeCanvas) Select(key string) bool {
	i, ok := c.index[key]
	if !ok {
		return false
	}
	c.selected = i
	c.rows[i].node.Selected = true
	c.reveal(i)
	return true
}

func (c *TreeCanvas) ClearSelection() {
	if c.selected >= 0 && c.selected < len(c.rows) {
		c.rows[c.selected].node.Selected = false
	}
	c.selected = -1
}

func (c *TreeCanvas) Position() view.Point {
	return view.Point{X: c.left, Y: c.top}
}

func (c *TreeCanvas) SetPosition(p view.Point) {
	c.left = p.X
	c.top = p.Y
	c.clamp()
}

func (c *TreeCanvas) CenterOn(key string) bool {
	i, ok := c.index[key]
	if !ok {
		return false
	}
	c.top = i - c.height/2
	c.left = 0
	if pw := runewidth.StringWidth(c.rows[i].prefix); pw > c.width/2 {
		c.left = pw - c.width/4
	}
	c.clamp()
	return true
}

func (c *TreeCanvas) Fill(key string) (string, bool) {
	i, ok := c.index[key]
	if !ok {
		return "", false
	}
	return c.rows[i].fill, true
}

func (c *TreeCanvas) SetFill(key, color string) bool {
	i, ok := c.index[key]
	if !ok {
		return false
	}
	c.rows[i].fill = color
	return true
}

func (c *TreeCanvas) CommitFill(key, color string) bool {
	i, ok := c.index[key]
	if !ok {
		return false
	}
	c.rows[i].fill = color
	c.rows[i].node.Color = color
	return true
}

func (c *TreeCanvas) Len() int { return len(c.rows) }

// SelectedKey returns the highlighted node's key.
func (c *TreeCanvas) SelectedKey() (string, bool) {
	if c.selected < 0 {
		return "", false
	}
	return c.rows[c.selected].node.Key, true
}

// KeyAt maps a row inside the viewport to the node drawn there.
func (c *TreeCanvas) KeyAt(y int) (string, bool) {
	i := c.top + y
	if y < 0 || y >= c.height || i >= len(c.rows) {
		return "", false
	}
	return c.rows[i].node.Key, true
}

// Visible reports whether the node's row is inside the viewport.
func (c *TreeCanvas) Visible(key string) bool {
	i, ok := c.index[key]
	return ok && i >= c.top && i < c.top+c.height
}

// Step moves delta rows through the outline from key. With no key it starts
// at the first row.
func (c *TreeCanvas) Step(key string, delta int) (string, bool) {
	if len(c.rows) == 0 {
		return "", false
	}
	i, ok := c.index[key]
	if !ok {
		return c.rows[0].node.Key, true
	}
	i += delta
	if i < 0 || i >= len(c.rows) {
		return "", false
	}
	return c.rows[i].node.Key, true
}

// Sibling returns the neighbouring branch of the nearest ancestor-or-self
// that has siblings, so [ and ] hop between alternatives at the closest
// fork above the cursor.
func (c *TreeCanvas) Sibling(key string, delta int) (string, bool) {
	i, ok := c.index[key]
	if !ok {
		return "", false
	}
	for ; i >= 0; i = c.rows[i].parent {
		peers := c.roots
		if p := c.rows[i].parent; p >= 0 {
			peers = c.rows[p].children
		}
		if len(peers) < 2 {
			continue
		}
		for pos, r := range peers {
			if r != i {
				continue
			}
			next := pos + delta
			if next < 0 || next >= len(peers) {
				return "", false
			}
			return c.rows[peers[next]].node.Key, true
		}
	}
	return "", false
}

// ScrollBy moves the viewport without touching the selection.
func (c *TreeCanvas) ScrollBy(dy, dx int) {
	c.top += dy
	c.left += dx
	c.clamp()
}

func (c *TreeCanvas) reveal(i int) {
	if i < c.top {
		c.top = i
	} else if c.height > 0 && i >= c.top+c.height {
		c.top = i - c.height + 1
	}
	c.clamp()
}

func (c *TreeCanvas) clamp() {
	c.top = min(c.top, len(c.rows)-c.height)
	c.top = max(c.top, 0)
	c.left = max(c.left, 0)
}

func (c *TreeCanvas) View() string {
	if len(c.rows) == 0 {
		return "\n" + DimStyle.Render("  Open a file to see its tree")
	}

	innerW := max(c.width-1, 1)
	scrollbar := RenderScrollbar(c.height, len(c.rows), c.top)
	treeStyle := lipgloss.NewStyle().Foreground(ColorCyanDim)

	lines := make([]string, 0, c.height)
	for y := 0; y < c.height; y++ {
		i := c.top + y
		sb := " "
		if y < len(scrollbar) {
			sb = scrollbar[y]
		}
		if i >= len(c.rows) {
			lines = append(lines, strings.Repeat(" ", innerW)+sb)
			continue
		}
		r := &c.rows[i]

		labelStyle := AssistantMsgStyle
		if r.node.Human {
			labelStyle = HumanMsgStyle
		}
		if i == c.selected {
			labelStyle = SelectedRowStyle
		}
		marker := "●"
		if r.node.Human {
			marker = "■"
		}

		segs := clipColumns([]string{r.prefix, marker + " ", r.node.Label}, c.left, innerW)
		line := treeStyle.Render(segs[0]) +
			lipgloss.NewStyle().Foreground(lipgloss.Color(r.fill)).Render(segs[1]) +
			labelStyle.Render(segs[2])

		pad := max(innerW-visibleLen(line), 0)
		lines = append(lines, line+strings.Repeat(" ", pad)+sb)
	}
	return strings.Join(lines, "\n")
}

// clipColumns drops the first skip columns across the plain segments and
// keeps at most w columns after that.
func clipColumns(segs []string, skip, w int) []string {
	out := make([]string, len(segs))
	col := 0
	for i, s := range segs {
		var b strings.Builder
		for _, r := range s {
			rw := runewidth.RuneWidth(r)
			if col < skip {
				col += rw
				continue
			}
			if col+rw > skip+w {
				break
			}
			b.WriteRune(r)
			col += rw
		}
		out[i] = b.String()
	}
	return out
}
