package search

import (
	"context"
	"sort"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
)

const (
	// MinQueryLen is the shortest query, in runes, that triggers a scan.
	MinQueryLen = 3
	// MaxResults caps the result set, counted in scan order.
	MaxResults = 100
	// ContextRadius is how many runes of surrounding text each result shows
	// on either side of the match.
	ContextRadius = 50

	reasoningPrefix = "[Thinking] "
	ellipsis        = "..."
)

// Corpus is one message collection eligible for a search.
type Corpus struct {
	FileID   string
	Label    string
	Messages []chat.Message
}

type Result struct {
	Message   chat.Message
	FileID    string
	Label     string
	MatchText string
	Context   string
	Reasoning bool
}

// Search scans the corpus for a case-insensitive substring. Primary text is
// checked first; reasoning text only when the primary text has no match.
// Files are scanned concurrently but the outcome equals a sequential scan:
// at most MaxResults matches in file then message order, sorted newest first.
func Search(ctx context.Context, corpus []Corpus, query string) ([]Result, error) {
	needle := lowerRunes(query)
	if len(needle) < MinQueryLen {
		return []Result{}, nil
	}

	perFile := make([][]Result, len(corpus))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range corpus {
		i := i
		g.Go(func() error {
			hits, err := scanFile(ctx, &corpus[i], needle)
			perFile[i] = hits
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]Result, 0)
	for _, hits := range perFile {
		room := MaxResults - len(results)
		if room <= 0 {
			break
		}
		if len(hits) > room {
			hits = hits[:room]
		}
		results = append(results, hits...)
	}

	sortNewestFirst(results)
	return results, nil
}

func scanFile(ctx context.Context, c *Corpus, needle []rune) ([]Result, error) {
	var hits []Result
	for i := range c.Messages {
		if len(hits) >= MaxResults {
			break
		}
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		m := &c.Messages[i]
		r, ok := match(m, needle)
		if !ok {
			continue
		}
		r.Message = *m
		r.FileID = c.FileID
		r.Label = c.Label
		hits = append(hits, r)
	}
	return hits, nil
}

func match(m *chat.Message, needle []rune) (Result, bool) {
	source := []rune(m.PrimaryText())
	idx := indexFold(source, needle)
	reasoning := false
	if idx < 0 {
		source = []rune(m.ReasoningText())
		idx = indexFold(source, needle)
		reasoning = true
	}
	if idx < 0 {
		return Result{}, false
	}

	start := max(0, idx-ContextRadius)
	end := min(len(source), idx+len(needle)+ContextRadius)
	snippet := string(source[start:end])
	if start > 0 {
		snippet = ellipsis + snippet
	}
	if end < len(source) {
		snippet += ellipsis
	}
	if reasoning {
		snippet = reasoningPrefix + snippet
	}

	return Result{
		MatchText: string(source[idx : idx+len(needle)]),
		Context:   snippet,
		Reasoning: reasoning,
	}, true
}

// indexFold returns the rune offset of needle in haystack ignoring case, or
// -1. needle must already be lowered.
func indexFold(haystack, needle []rune) int {
	n := len(needle)
	for i := 0; i+n <= len(haystack); i++ {
		j := 0
		for j < n && unicode.ToLower(haystack[i+j]) == needle[j] {
			j++
		}
		if j == n {
			return i
		}
	}
	return -1
}

func lowerRunes(s string) []rune {
	rs := []rune(s)
	for i, r := range rs {
		rs[i] = unicode.ToLower(r)
	}
	return rs
}

// sortNewestFirst orders by created_at descending. Unparsable timestamps sort
// as the oldest; ties keep scan order.
func sortNewestFirst(results []Result) {
	keys := make([]int64, len(results))
	for i := range results {
		keys[i] = chat.Millis(results[i].Message.CreatedAt)
	}
	idx := make([]int, len(results))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]] > keys[idx[b]]
	})
	sorted := make([]Result, len(results))
	for i, j := range idx {
		sorted[i] = results[j]
	}
	copy(results, sorted)
}
