package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
	"github.com/Chris-1010/claude-branch-visualiser/internal/store"
)

type confirmKind int

const (
	confirmNone confirmKind = iota
	confirmDelete
	confirmClear
)

// FileList is the left-hand list of imported chat files.
type FileList struct {
	files   []*store.ChatFile
	current string
	cursor  int
	width   int
	height  int

	renaming bool
	input    textinput.Model
	confirm  confirmKind
}

func NewFileList() FileList {
	ti := textinput.New()
	ti.Placeholder = "display name (empty reverts)"
	ti.CharLimit = 200
	ti.Prompt = "name: "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(ColorCyan)
	ti.TextStyle = lipgloss.NewStyle().Foreground(ColorWhite)
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(ColorDim)
	return FileList{input: ti}
}

// SetFiles replaces the list, keeping the cursor on the same file if it is
// still there.
func (f *FileList) SetFiles(files []*store.ChatFile, current string) {
	var keep string
	if sel := f.Selected(); sel != nil {
		keep = sel.ID
	}
	f.files = files
	f.current = current
	f.cursor = 0
	for i, file := range files {
		if file.ID == keep {
			f.cursor = i
			break
		}
	}
}

func (f *FileList) SetSize(w, h int) {
	f.width = w
	f.height = h
	f.input.Width = max(w-12, 10)
}

func (f *FileList) Up() {
	if f.cursor > 0 {
		f.cursor--
	}
}

func (f *FileList) Down() {
	if f.cursor < len(f.files)-1 {
		f.cursor++
	}
}

func (f *FileList) Selected() *store.ChatFile {
	if f.cursor < 0 || f.cursor >= len(f.files) {
		return nil
	}
	return f.files[f.cursor]
}

func (f *FileList) Len() int { return len(f.files) }

func (f *FileList) IsRenaming() bool { return f.renaming }

func (f *FileList) StartRename() tea.Cmd {
	sel := f.Selected()
	if sel == nil {
		return nil
	}
	f.renaming = true
	f.input.SetValue(sel.DisplayName)
	f.input.CursorEnd()
	return f.input.Focus()
}

// FinishRename ends editing and returns the entered name.
func (f *FileList) FinishRename() string {
	f.renaming = false
	f.input.Blur()
	return f.input.Value()
}

func (f *FileList) CancelRename() {
	f.renaming = false
	f.input.Blur()
}

func (f *FileList) UpdateInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return cmd
}

func (f *FileList) Confirming() confirmKind { return f.confirm }

func (f *FileList) Ask(kind confirmKind) {
	if kind == confirmDelete && f.Selected() == nil {
		return
	}
	f.confirm = kind
}

func (f *FileList) EndConfirm() { f.confirm = confirmNone }

// sizeGlyph returns a bar character indicating relative conversation size.
func sizeGlyph(count int) string {
	bars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇'}
	idx := 0
	switch {
	case count > 400:
		idx = 6
	case count > 200:
		idx = 5
	case count > 100:
		idx = 4
	case count > 40:
		idx = 3
	case count > 20:
		idx = 2
	case count > 6:
		idx = 1
	}
	color := ColorDim
	if idx >= 4 {
		color = ColorCyan
	} else if idx >= 2 {
		color = ColorCyanDim
	}
	return lipgloss.NewStyle().Foreground(color).Render(string(bars[idx]))
}

func (f *FileList) View() string {
	if len(f.files) == 0 {
		return "\n" + DimStyle.Render("  No files yet") + "\n" +
			DimStyle.Render("  cbv import <export.json>")
	}

	footer := f.footer()
	available := max(f.height-len(footer), 1)

	start := 0
	if f.cursor >= available {
		start = f.cursor - available + 1
	}
	end := min(start+available, len(f.files))

	innerW := f.width - 3
	scrollbar := RenderScrollbar(available, len(f.files), start)

	now := time.Now()
	var lines []string
	for idx := 0; idx < available; idx++ {
		i := start + idx
		sb := " "
		if idx < len(scrollbar) {
			sb = scrollbar[idx]
		}
		if i >= end {
			lines = append(lines, strings.Repeat(" ", max(innerW, 0))+sb)
			continue
		}

		file := f.files[i]
		age := chat.Ago(file.LastUpdated, now)
		open := " "
		if file.ID == f.current {
			open = "●"
		}
		title := fitWidth(chat.SingleLine(file.Title()), innerW-visibleLen(age)-9)

		var line string
		if i == f.cursor {
			sel := lipgloss.NewStyle().Background(ColorSelectBg)
			line = fmt.Sprintf(" %s%s %s %s  %s",
				sel.Foreground(ColorSelect).Render("▸"),
				sel.Foreground(ColorGreen).Render(open),
				sel.Render(sizeGlyph(len(file.Messages))),
				sel.Foreground(ColorSelect).Bold(true).Render(title),
				sel.Foreground(ColorSelect).Render(age))
			pad := max(innerW-visibleLen(line), 0)
			lines = append(lines, line+sel.Render(strings.Repeat(" ", pad))+sb)
		} else {
			line = fmt.Sprintf("  %s %s %s  %s",
				lipgloss.NewStyle().Foreground(ColorGreen).Render(open),
				sizeGlyph(len(file.Messages)),
				NormalStyle.Render(title),
				DimStyle.Render(age))
			pad := max(innerW-visibleLen(line), 0)
			lines = append(lines, line+strings.Repeat(" ", pad)+sb)
		}
	}
	return strings.Join(append(lines, footer...), "\n")
}

func (f *FileList) footer() []string {
	switch {
	case f.renaming:
		return []string{"  " + f.input.View(), DimStyle.Render("  Enter: save  Esc: cancel")}
	case f.confirm == confirmDelete:
		name := ""
		if sel := f.Selected(); sel != nil {
			name = fitWidth(sel.Title(), f.width-20)
		}
		return []string{ErrorStyle.Render(fmt.Sprintf("  Delete %q?  y/n", name))}
	case f.confirm == confirmClear:
		return []string{ErrorStyle.Render(fmt.Sprintf("  Delete all %d files?  y/n", len(f.files)))}
	}
	return nil
}
