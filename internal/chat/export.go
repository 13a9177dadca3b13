package chat

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// ErrInvalidExport is returned when an uploaded document is not valid JSON
// or lacks the chat_messages array.
var ErrInvalidExport = errors.New("invalid chat export")

// rawExport is used for the first pass so a missing array can be told apart
// from an empty one.
type rawExport struct {
	UUID     string          `json:"uuid"`
	Name     string          `json:"name"`
	Messages json.RawMessage `json:"chat_messages"`
}

// Export is a decoded conversation export.
type Export struct {
	UUID     string
	Name     string
	Messages []Message
}

// ParseExport decodes an exported conversation document.
func ParseExport(data []byte) (*Export, error) {
	var raw rawExport
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExport, err)
	}

	trimmed := bytes.TrimSpace(raw.Messages)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: missing chat_messages array", ErrInvalidExport)
	}

	var messages []Message
	if err := json.Unmarshal(trimmed, &messages); err != nil {
		return nil, fmt.Errorf("%w: chat_messages: %v", ErrInvalidExport, err)
	}
	if messages == nil {
		messages = []Message{}
	}

	return &Export{UUID: raw.UUID, Name: raw.Name, Messages: messages}, nil
}

// ReadExport reads and parses an export file from disk.
func ReadExport(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	exp, err := ParseExport(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return exp, nil
}

// MarshalExport encodes messages in the export layout accepted by
// ParseExport.
func MarshalExport(messages []Message) ([]byte, error) {
	if messages == nil {
		messages = []Message{}
	}
	return json.Marshal(struct {
		Messages []Message `json:"chat_messages"`
	}{messages})
}
