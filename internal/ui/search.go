package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
	"github.com/Chris-1010/claude-branch-visualiser/internal/search"
)

type SearchScope int

const (
	ScopeFile SearchScope = iota
	ScopeAll
)

func (s SearchScope) String() string {
	switch s {
	case ScopeFile:
		return "FILE"
	case ScopeAll:
		return "ALL FILES"
	}
	return ""
}

const maxShownResults = 8

type SearchOverlay struct {
	input     textinput.Model
	active    bool
	scope     SearchScope
	width     int
	results   []search.Result
	resultIdx int
	searching bool
	seq       int
	err       error

	// pending is the engine request whose response the overlay is waiting
	// for; zero when nothing is in flight.
	pending uint64
}

func NewSearchOverlay() SearchOverlay {
	ti := textinput.New()
	ti.Placeholder = fmt.Sprintf("search... (min %d chars, Tab: scope, Enter: go)", search.MinQueryLen)
	ti.CharLimit = 256
	ti.Prompt = "/ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(ColorCyan)
	ti.TextStyle = lipgloss.NewStyle().Foreground(ColorWhite)
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(ColorDim)
	return SearchOverlay{input: ti}
}

func (s *SearchOverlay) SetWidth(w int) {
	s.width = w
	s.input.Width = max(w-30, 10)
}

func (s *SearchOverlay) Open() tea.Cmd {
	s.active = true
	s.input.SetValue("")
	s.results = nil
	s.resultIdx = 0
	s.err = nil
	return s.input.Focus()
}

func (s *SearchOverlay) Close() {
	s.active = false
	s.searching = false
	s.input.Blur()
	s.input.SetValue("")
	s.results = nil
	s.err = nil
	s.seq++
	s.pending = 0
}

func (s *SearchOverlay) IsActive() bool { return s.active }

func (s *SearchOverlay) Value() string { return s.input.Value() }

func (s *SearchOverlay) Scope() SearchScope { return s.scope }

func (s *SearchOverlay) ToggleScope() {
	if s.scope == ScopeFile {
		s.scope = ScopeAll
	} else {
		s.scope = ScopeFile
	}
}

// Bump invalidates pending debounce timers and returns the new sequence.
func (s *SearchOverlay) Bump() int {
	s.seq++
	return s.seq
}

// Current reports whether a debounce timer with seq is still the latest.
func (s *SearchOverlay) Current(seq int) bool {
	return s.active && seq == s.seq
}

func (s *SearchOverlay) SetSearching(on bool) { s.searching = on }

func (s *SearchOverlay) SetResults(results []search.Result, err error) {
	s.results = results
	s.err = err
	s.resultIdx = 0
	s.searching = false
}

func (s *SearchOverlay) SelectedResult() *search.Result {
	if s.resultIdx >= 0 && s.resultIdx < len(s.results) {
		return &s.results[s.resultIdx]
	}
	return nil
}

func (s *SearchOverlay) ResultUp() {
	if s.resultIdx > 0 {
		s.resultIdx--
	}
}

func (s *SearchOverlay) ResultDown() {
	if s.resultIdx < len(s.results)-1 {
		s.resultIdx++
	}
}

// UpdateInput forwards a key message to the underlying textinput.
func (s *SearchOverlay) UpdateInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return cmd
}

// Height is the number of terminal rows View will take.
func (s *SearchOverlay) Height() int {
	if !s.active {
		return 0
	}
	if len(s.results) == 0 {
		return 3
	}
	start, end := s.window()
	rows := end - start + 2
	if end < len(s.results) {
		rows++
	}
	return rows + 2
}

// window keeps the cursor inside the visible slice of results.
func (s *SearchOverlay) window() (start, end int) {
	if s.resultIdx >= maxShownResults {
		start = s.resultIdx - maxShownResults + 1
	}
	return start, min(start+maxShownResults, len(s.results))
}

func (s *SearchOverlay) View() string {
	if !s.active {
		return ""
	}

	scopeBadge := TitleStyle.Render(fmt.Sprintf("[%s]", s.scope))

	var status string
	switch {
	case s.err != nil:
		status = ErrorStyle.Render("  " + s.err.Error())
	case s.searching:
		status = DimStyle.Render("  searching...")
	case len([]rune(s.input.Value())) >= search.MinQueryLen:
		status = DimStyle.Render(fmt.Sprintf("  %d results", len(s.results)))
		if len(s.results) == search.MaxResults {
			status = DimStyle.Render(fmt.Sprintf("  %d+ results", search.MaxResults))
		}
	}

	searchLine := fmt.Sprintf("%s %s%s", scopeBadge, s.input.View(), status)

	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(ColorCyan).
		Padding(0, 1).
		Width(max(s.width-4, 10))

	if len(s.results) == 0 {
		return box.Render(searchLine)
	}

	lines := []string{searchLine, DimStyle.Render(strings.Repeat("─", max(s.width-8, 1)))}

	start, end := s.window()

	for i := start; i < end; i++ {
		r := s.results[i]
		prefix := lipgloss.NewStyle().Foreground(ColorCyan).Render(fitWidth(r.Label, 24))
		when := DimStyle.Render(chat.FormatCreated(r.Message.CreatedAt))
		text := fitWidth(chat.SingleLine(r.Context), s.width-visibleLen(prefix)-visibleLen(when)-14)

		if i == s.resultIdx {
			lines = append(lines, fmt.Sprintf("  %s%s %s %s",
				SelectedStyle.Render("▸ "), prefix, when, highlightMatches(SelectedStyle.Render(text), r.MatchText)))
		} else {
			lines = append(lines, fmt.Sprintf("    %s %s %s",
				prefix, when, highlightMatches(NormalStyle.Render(text), r.MatchText)))
		}
	}

	if rest := len(s.results) - end; rest > 0 {
		lines = append(lines, DimStyle.Render(fmt.Sprintf("    ... and %d more", rest)))
	}

	return box.Render(strings.Join(lines, "\n"))
}
