package chat

import (
	"strings"
	"unicode/utf8"

	json "github.com/goccy/go-json"
)

type Sender string

const (
	SenderHuman     Sender = "human"
	SenderAssistant Sender = "assistant"
)

// IsHuman reports whether the message was written by the user. Every other
// sender value is treated as the model side of the conversation.
func (s Sender) IsHuman() bool {
	return s == SenderHuman
}

// Block types found in exported message content.
const (
	BlockText     = "text"
	BlockThinking = "thinking"
)

type ContentBlock struct {
	Type           string          `json:"type"`
	Text           string          `json:"text,omitempty"`
	Thinking       string          `json:"thinking,omitempty"`
	StartTimestamp string          `json:"start_timestamp,omitempty"`
	StopTimestamp  string          `json:"stop_timestamp,omitempty"`
	Citations      json.RawMessage `json:"citations,omitempty"`
}

// Message is one turn of an exported conversation. Fields the viewer does
// not interpret (attachments, files, sync sources) are carried as raw JSON so
// a stored file round-trips unchanged.
type Message struct {
	UUID        string          `json:"uuid"`
	ParentUUID  string          `json:"parent_message_uuid,omitempty"`
	Sender      Sender          `json:"sender"`
	Index       int             `json:"index"`
	Text        string          `json:"text"`
	Content     []ContentBlock  `json:"content,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at,omitempty"`
	Truncated   bool            `json:"truncated,omitempty"`
	StopReason  string          `json:"stop_reason,omitempty"`
	Attachments json.RawMessage `json:"attachments,omitempty"`
	Files       json.RawMessage `json:"files,omitempty"`
	FilesV2     json.RawMessage `json:"files_v2,omitempty"`
	SyncSources json.RawMessage `json:"sync_sources,omitempty"`
}

// PrimaryText returns the first non-empty text block, falling back to the
// message's flat text field.
func (m *Message) PrimaryText() string {
	for _, b := range m.Content {
		if b.Type == BlockText && b.Text != "" {
			return b.Text
		}
	}
	return m.Text
}

// ReasoningText returns the first thinking block's content, or "".
func (m *Message) ReasoningText() string {
	for _, b := range m.Content {
		if b.Type != BlockThinking {
			continue
		}
		if b.Thinking != "" {
			return b.Thinking
		}
		if b.Text != "" {
			return b.Text
		}
	}
	return ""
}

// Label returns a single-line preview of at most n runes.
func (m *Message) Label(n int) string {
	text := m.PrimaryText()
	if text == "" {
		return "Empty message"
	}
	return Truncate(SingleLine(text), n)
}

// Truncate shortens s to n runes and appends "..." when anything was cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	// Slice by rune count, not byte count
	i := 0
	for j := 0; j < n; j++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i] + "..."
}

// SingleLine collapses newlines and runs of whitespace into single spaces.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
