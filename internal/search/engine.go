package search

import (
	"context"
	"sync/atomic"

	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
)

// Response is delivered once per submission.
type Response struct {
	ID      uint64
	Query   string
	Results []Result
	Err     error
}

// Engine runs searches off the caller's goroutine. Every submission gets a
// larger id than the one before it, and only the newest response is
// accepted so late answers to superseded queries are dropped.
type Engine struct {
	latest atomic.Uint64
}

func NewEngine() *Engine {
	return &Engine{}
}

// Submit starts a search and returns its request id. done is called exactly
// once, from another goroutine.
func (e *Engine) Submit(ctx context.Context, corpus []Corpus, query string, done func(Response)) uint64 {
	id := e.latest.Add(1)
	snapshot := project(corpus)

	go func() {
		results, err := Search(ctx, snapshot, query)
		done(Response{ID: id, Query: query, Results: results, Err: err})
	}()
	return id
}

// Accept reports whether resp answers the most recent submission.
func (e *Engine) Accept(resp Response) bool {
	return resp.ID == e.latest.Load()
}

// Latest returns the id of the newest submission, 0 before the first.
func (e *Engine) Latest() uint64 {
	return e.latest.Load()
}

// project copies only what a scan reads, so the caller is free to mutate
// its own messages while the search runs.
func project(corpus []Corpus) []Corpus {
	out := make([]Corpus, len(corpus))
	for i, c := range corpus {
		msgs := make([]chat.Message, len(c.Messages))
		for j := range c.Messages {
			m := &c.Messages[j]
			msgs[j] = chat.Message{
				UUID:       m.UUID,
				ParentUUID: m.ParentUUID,
				Sender:     m.Sender,
				Text:       m.Text,
				Content:    minimalContent(m.Content),
				CreatedAt:  m.CreatedAt,
			}
		}
		out[i] = Corpus{FileID: c.FileID, Label: c.Label, Messages: msgs}
	}
	return out
}

func minimalContent(blocks []chat.ContentBlock) []chat.ContentBlock {
	var out []chat.ContentBlock
	text, thinking := false, false
	for _, b := range blocks {
		switch {
		case b.Type == chat.BlockText && !text && b.Text != "":
			text = true
			out = append(out, chat.ContentBlock{Type: b.Type, Text: b.Text})
		case b.Type == chat.BlockThinking && !thinking:
			thinking = b.Thinking != "" || b.Text != ""
			out = append(out, chat.ContentBlock{Type: b.Type, Text: b.Text, Thinking: b.Thinking})
		}
	}
	return out
}
