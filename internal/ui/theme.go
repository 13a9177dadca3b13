package ui

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	ColorCyan      = lipgloss.Color("#5a9ab5")
	ColorCyanDim   = lipgloss.Color("#3a6678")
	ColorAccent    = lipgloss.Color("#7fcfdf")
	ColorGreen     = lipgloss.Color("#5aaa7a")
	ColorRed       = lipgloss.Color("#b56a6a")
	ColorYellow    = lipgloss.Color("#b5a05a")
	ColorYellowDim = lipgloss.Color("#5a5030")
	ColorDim       = lipgloss.Color("#3a5565")
	ColorMuted     = lipgloss.Color("#1a2a35")
	ColorBg        = lipgloss.Color("#000000")
	ColorBarBg     = lipgloss.Color("#0f1e28") // status/header bar background
	ColorBarText   = lipgloss.Color("#d0dde5")
	ColorWhite     = lipgloss.Color("#8899a5")
	ColorSelect    = lipgloss.Color("#c8d84a")
	ColorSelectBg  = lipgloss.Color("#1a2a1a")

	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Bold(true)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorSelect).
			Bold(true)

	SelectedRowStyle = lipgloss.NewStyle().
				Foreground(ColorSelect).
				Background(ColorSelectBg).
				Bold(true)

	NormalStyle = lipgloss.NewStyle().
			Foreground(ColorWhite)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorDim)

	HumanMsgStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	AssistantMsgStyle = lipgloss.NewStyle().
				Foreground(ColorGreen)

	ThinkingStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	BadgeStyle = lipgloss.NewStyle().
			Foreground(ColorYellowDim)

	SearchHighlightStyle = lipgloss.NewStyle().
				Foreground(ColorBg).
				Background(ColorYellow).
				Bold(true)
)

// ─── Custom Border Rendering ──────────────────────────────────────────
// Renders panels with inline title in the top border:
//   ┏━━╸ FILES ╺━━━━━━━━━━━━━━━━┓
//   ┃                             ┃
//   ┗━━━━━━━━━━━━━━━━━━━━━━━━━━━━┛

// RenderPanel draws a panel with an inline title in the top border. Focused
// panels get a double-line border.
func RenderPanel(title string, content string, w, h int, focused bool) string {
	borderColor := ColorCyanDim
	titleColor := ColorCyan
	if focused {
		borderColor = lipgloss.Color("#70cc90")
		titleColor = lipgloss.Color("#a0ffbb")
	}

	bc := lipgloss.NewStyle().Foreground(borderColor)
	tc := lipgloss.NewStyle().Foreground(titleColor).Bold(true)

	innerW := w - 2
	titleText := " " + title + " "
	fillLen := max(w-5-utf8.RuneCountInString(titleText), 0)

	horiz, side := "━", "┃"
	corners := [4]string{"┏", "┓", "┗", "┛"}
	lead := "━╸"
	if focused {
		horiz, side = "═", "║"
		corners = [4]string{"╔", "╗", "╚", "╝"}
		lead = "═╸"
	}

	topBorder := bc.Render(corners[0]+lead) + tc.Render(titleText) + bc.Render("╺"+strings.Repeat(horiz, fillLen)+corners[1])
	bottomBorder := bc.Render(corners[2] + strings.Repeat(horiz, max(innerW, 0)) + corners[3])
	sideStyled := bc.Render(side)

	lines := strings.Split(content, "\n")
	for len(lines) < h {
		lines = append(lines, "")
	}
	if len(lines) > h {
		lines = lines[:h]
	}

	rows := make([]string, 0, h+2)
	rows = append(rows, topBorder)
	for _, line := range lines {
		visible := visibleLen(line)
		if visible > innerW {
			line = truncateToWidth(line, innerW)
			visible = visibleLen(line)
		}
		pad := ""
		if visible < innerW {
			pad = strings.Repeat(" ", innerW-visible)
		}
		rows = append(rows, sideStyled+line+pad+sideStyled)
	}
	rows = append(rows, bottomBorder)

	return strings.Join(rows, "\n")
}

// RenderScrollbar returns one scrollbar cell per visible row.
func RenderScrollbar(height, totalLines, offset int) []string {
	track := make([]string, max(height, 0))

	if totalLines <= height || height < 1 {
		for i := range track {
			track[i] = " "
		}
		return track
	}

	thumbSize := max((height*height)/totalLines, 1)
	maxOffset := max(totalLines-height, 1)
	thumbPos := (offset * (height - thumbSize)) / maxOffset

	thumbChar := lipgloss.NewStyle().Foreground(ColorAccent).Render("┃")
	trackChar := lipgloss.NewStyle().Foreground(ColorMuted).Render("╎")

	for i := range track {
		if i >= thumbPos && i < thumbPos+thumbSize {
			track[i] = thumbChar
		} else {
			track[i] = trackChar
		}
	}
	return track
}

func visibleLen(s string) int {
	return runewidth.StringWidth(stripAnsi(s))
}

func stripAnsi(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		if r == '\x1b' {
			inEsc = true
			continue
		}
		if inEsc {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEsc = false
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// truncateToWidth cuts a styled line to w visible columns, keeping escape
// sequences intact and resetting styles at the cut.
func truncateToWidth(s string, w int) string {
	var b strings.Builder
	col := 0
	inEsc := false
	for _, r := range s {
		if r == '\x1b' {
			inEsc = true
			b.WriteRune(r)
			continue
		}
		if inEsc {
			b.WriteRune(r)
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEsc = false
			}
			continue
		}
		rw := runewidth.RuneWidth(r)
		if col+rw > w {
			break
		}
		b.WriteRune(r)
		col += rw
	}
	b.WriteString("\x1b[0m")
	return b.String()
}

// fitWidth truncates plain text to w columns with a trailing ellipsis.
func fitWidth(s string, w int) string {
	if w <= 0 {
		return ""
	}
	return runewidth.Truncate(s, w, "…")
}
