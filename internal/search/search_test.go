package search

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
)

func textMsg(id, text, created string) chat.Message {
	return chat.Message{UUID: id, Sender: chat.SenderHuman, Text: text, CreatedAt: created}
}

func TestSearch_ShortQuery(t *testing.T) {
	corpus := []Corpus{{Label: "a", Messages: []chat.Message{textMsg("m1", "ab", "")}}}
	for _, q := range []string{"", "a", "ab", "日本"} {
		results, err := Search(context.Background(), corpus, q)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 0 {
			t.Errorf("query %q: expected no results, got %d", q, len(results))
		}
	}
}

func TestSearch_CaseInsensitive(t *testing.T) {
	corpus := []Corpus{{FileID: "f1", Label: "notes.json", Messages: []chat.Message{
		textMsg("m1", "We should DEPLOY on Friday", "2025-01-01T00:00:00Z"),
		textMsg("m2", "nothing here", "2025-01-02T00:00:00Z"),
	}}}
	results, err := Search(context.Background(), corpus, "deploy")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.MatchText != "DEPLOY" {
		t.Errorf("match text = %q, want %q", r.MatchText, "DEPLOY")
	}
	if r.Label != "notes.json" || r.FileID != "f1" {
		t.Errorf("label/file = %q/%q", r.Label, r.FileID)
	}
	if r.Context != "We should DEPLOY on Friday" {
		t.Errorf("context = %q", r.Context)
	}
}

func TestSearch_ContextWindow(t *testing.T) {
	text := strings.Repeat("a", 60) + "needle" + strings.Repeat("b", 60)
	corpus := []Corpus{{Messages: []chat.Message{textMsg("m1", text, "")}}}
	results, err := Search(context.Background(), corpus, "needle")
	if err != nil {
		t.Fatal(err)
	}
	want := "..." + strings.Repeat("a", 50) + "needle" + strings.Repeat("b", 50) + "..."
	if results[0].Context != want {
		t.Errorf("context = %q, want %q", results[0].Context, want)
	}
}

func TestSearch_ReasoningFallback(t *testing.T) {
	m := chat.Message{UUID: "m1", Content: []chat.ContentBlock{
		{Type: chat.BlockThinking, Thinking: "considering the rollout plan"},
		{Type: chat.BlockText, Text: "Here is my answer."},
	}}
	corpus := []Corpus{{Messages: []chat.Message{m}}}
	results, err := Search(context.Background(), corpus, "rollout")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !results[0].Reasoning {
		t.Error("expected reasoning match")
	}
	if results[0].Context != "[Thinking] considering the rollout plan" {
		t.Errorf("context = %q", results[0].Context)
	}

	// Primary text wins when both match.
	results, _ = Search(context.Background(), corpus, "answer")
	if len(results) != 1 || results[0].Reasoning {
		t.Errorf("primary match should not be flagged as reasoning")
	}
}

func TestSearch_SortedNewestFirst(t *testing.T) {
	corpus := []Corpus{{Messages: []chat.Message{
		textMsg("t1", "match one", "2025-01-01T00:00:00Z"),
		textMsg("bad", "match bad", "not a date"),
		textMsg("t3", "match three", "2025-03-01T00:00:00Z"),
		textMsg("t2", "match two", "2025-02-01T00:00:00Z"),
	}}}
	results, err := Search(context.Background(), corpus, "match")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range results {
		got = append(got, r.Message.UUID)
	}
	if strings.Join(got, ",") != "t3,t2,t1,bad" {
		t.Errorf("order = %v, want [t3 t2 t1 bad]", got)
	}
}

func TestSearch_CapInScanOrder(t *testing.T) {
	var corpus []Corpus
	for f := 0; f < 3; f++ {
		c := Corpus{FileID: fmt.Sprintf("f%d", f)}
		for i := 0; i < 60; i++ {
			// Later files are newer so sorting would favour them if the cap
			// were applied after sorting.
			ts := time.Date(2025, 1, 1+f, 0, i, 0, 0, time.UTC).Format(time.RFC3339)
			c.Messages = append(c.Messages, textMsg(fmt.Sprintf("f%d-m%d", f, i), "common term", ts))
		}
		corpus = append(corpus, c)
	}
	results, err := Search(context.Background(), corpus, "common")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != MaxResults {
		t.Fatalf("expected %d results, got %d", MaxResults, len(results))
	}
	for _, r := range results {
		if r.FileID == "f2" {
			t.Fatalf("result from third file should have been cut: %s", r.Message.UUID)
		}
	}
}

func TestSearch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	corpus := []Corpus{{Messages: []chat.Message{textMsg("m1", "hello world", "")}}}
	if _, err := Search(ctx, corpus, "hello"); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestEngine_DropsStaleResponses(t *testing.T) {
	e := NewEngine()
	corpus := []Corpus{{Messages: []chat.Message{textMsg("m1", "alpha beta", "")}}}

	responses := make(chan Response, 2)
	first := e.Submit(context.Background(), corpus, "alpha", func(r Response) { responses <- r })
	second := e.Submit(context.Background(), corpus, "beta", func(r Response) { responses <- r })
	if second <= first {
		t.Fatalf("ids not increasing: %d then %d", first, second)
	}

	accepted := 0
	for i := 0; i < 2; i++ {
		select {
		case r := <-responses:
			if e.Accept(r) {
				accepted++
				if r.Query != "beta" {
					t.Errorf("accepted stale query %q", r.Query)
				}
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for search")
		}
	}
	if accepted != 1 {
		t.Errorf("accepted %d responses, want 1", accepted)
	}
}

func TestEngine_SnapshotIsolation(t *testing.T) {
	e := NewEngine()
	msgs := []chat.Message{textMsg("m1", "original text", "")}
	corpus := []Corpus{{Messages: msgs}}

	done := make(chan Response, 1)
	e.Submit(context.Background(), corpus, "original", func(r Response) { done <- r })
	msgs[0].Text = "changed"

	select {
	case r := <-done:
		if len(r.Results) != 1 {
			t.Errorf("expected search over the submitted snapshot, got %d results", len(r.Results))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for search")
	}
}
