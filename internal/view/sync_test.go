package view

import (
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
	"github.com/Chris-1010/claude-branch-visualiser/internal/tree"
)

// fakeDiagram records what the synchronizer asks of it.
type fakeDiagram struct {
	nodes     map[string]NodeData
	fills     map[string]string
	edges     []Edge
	selected  string
	pos       Point
	centered  string
	commits   int
	selectPos Point // position jumped to when selecting, mimics auto-scroll
}

func newFakeDiagram() *fakeDiagram {
	return &fakeDiagram{nodes: map[string]NodeData{}, fills: map[string]string{}}
}

func (f *fakeDiagram) SetModel(nodes []NodeData, edges []Edge) {
	f.nodes = map[string]NodeData{}
	f.fills = map[string]string{}
	for _, n := range nodes {
		f.nodes[n.Key] = n
		f.fills[n.Key] = n.Color
	}
	f.edges = edges
	f.selected = ""
}

func (f *fakeDiagram) Select(key string) bool {
	if _, ok := f.nodes[key]; !ok {
		return false
	}
	f.selected = key
	if f.selectPos != (Point{}) {
		f.pos = f.selectPos
	}
	return true
}

func (f *fakeDiagram) ClearSelection() { f.selected = "" }
func (f *fakeDiagram) Position() Point { return f.pos }
func (f *fakeDiagram) SetPosition(p Point) { f.pos = p }
func (f *fakeDiagram) Fill(key string) (string, bool) {
	c, ok := f.fills[key]
	return c, ok
}

func (f *fakeDiagram) CenterOn(key string) bool {
	f.centered = key
	f.pos = Point{X: 0, Y: 999}
	return true
}

func (f *fakeDiagram) SetFill(key, color string) bool {
	if _, ok := f.nodes[key]; !ok {
		return false
	}
	f.fills[key] = color
	return true
}

func (f *fakeDiagram) CommitFill(key, color string) bool {
	n, ok := f.nodes[key]
	if !ok {
		return false
	}
	n.Color = color
	f.nodes[key] = n
	f.commits++
	return true
}

func sampleForest() []*tree.Node {
	return tree.Build([]chat.Message{
		{UUID: "a", Sender: chat.SenderHuman, Text: "question", CreatedAt: "2025-01-01T00:00:00Z"},
		{UUID: "b", ParentUUID: "a", Sender: chat.SenderAssistant, Text: "answer one", CreatedAt: "2025-01-01T01:00:00Z"},
		{UUID: "c", ParentUUID: "a", Sender: chat.SenderAssistant, Text: "answer two", CreatedAt: "2025-01-01T02:00:00Z"},
	})
}

// runFrames flushes the queue until it is empty, advancing the clock by step.
func runFrames(q *FrameQueue, start time.Time, step time.Duration) time.Time {
	now := start
	for i := 0; i < 1000 && q.Pending(); i++ {
		q.Flush(now)
		now = now.Add(step)
	}
	return now
}

func TestReplaceModel_BuildsNodesAndEdges(t *testing.T) {
	d := newFakeDiagram()
	s := NewSynchronizer(d, Options{Scheduler: &FrameQueue{}})
	s.ReplaceModel(sampleForest(), "c")

	if len(d.nodes) != 3 || len(d.edges) != 2 {
		t.Fatalf("nodes=%d edges=%d, want 3/2", len(d.nodes), len(d.edges))
	}
	if d.nodes["a"].Color != HumanColor || d.nodes["b"].Color != OtherColor {
		t.Errorf("sender colours wrong: %+v", d.nodes)
	}
	if d.selected != "c" {
		t.Errorf("selected = %q, want c", d.selected)
	}
	if d.centered != "" {
		t.Error("replacing the model must not scroll")
	}
}

func TestReplaceModel_KeepsPositionWhenReselecting(t *testing.T) {
	d := newFakeDiagram()
	s := NewSynchronizer(d, Options{Scheduler: &FrameQueue{}})
	d.pos = Point{X: 2, Y: 7}
	d.selectPos = Point{X: 0, Y: 40}

	s.ReplaceModel(sampleForest(), "c")
	if d.selected != "c" {
		t.Fatalf("selected = %q, want c", d.selected)
	}
	if d.pos != (Point{X: 2, Y: 7}) {
		t.Errorf("position = %+v, want {2 7}", d.pos)
	}
}

func TestReplaceModel_Labels(t *testing.T) {
	d := newFakeDiagram()
	s := NewSynchronizer(d, Options{Scheduler: &FrameQueue{}})
	s.ReplaceModel(tree.Build([]chat.Message{{UUID: "e"}}), "")
	if d.nodes["e"].Label != "Empty message" {
		t.Errorf("label = %q", d.nodes["e"].Label)
	}
}

func TestReplaceModel_DuplicateIDsGetDistinctKeys(t *testing.T) {
	d := newFakeDiagram()
	s := NewSynchronizer(d, Options{Scheduler: &FrameQueue{}})
	s.ReplaceModel(tree.Build([]chat.Message{{UUID: "x"}, {UUID: "x"}}), "")
	if len(d.nodes) != 2 {
		t.Fatalf("expected 2 boxes, got %d", len(d.nodes))
	}
	if key, _ := s.KeyOf("x"); key != "x" {
		t.Errorf("first occurrence key = %q", key)
	}
}

func TestSyncSelection_RestoresPosition(t *testing.T) {
	d := newFakeDiagram()
	q := &FrameQueue{}
	s := NewSynchronizer(d, Options{Scheduler: q})
	s.ReplaceModel(sampleForest(), "")

	d.pos = Point{X: 3, Y: 40}
	d.selectPos = Point{X: 0, Y: 7}
	s.SyncSelection("b")
	if d.selected != "b" {
		t.Fatalf("selected = %q, want b", d.selected)
	}
	q.Flush(time.Unix(1, 0))
	if d.pos != (Point{X: 3, Y: 40}) {
		t.Errorf("position = %+v, want restored {3 40}", d.pos)
	}

	s.SyncSelection("")
	if d.selected != "" || s.Selected() != "" {
		t.Error("empty id should clear the selection")
	}
}

func TestScrollTo(t *testing.T) {
	d := newFakeDiagram()
	q := &FrameQueue{}
	s := NewSynchronizer(d, Options{Scheduler: q})
	s.ReplaceModel(sampleForest(), "")

	if s.ScrollTo("missing") {
		t.Error("unknown id should be a no-op")
	}
	if d.centered != "" {
		t.Error("no-op scroll moved the viewport")
	}
	if !s.ScrollTo("c") {
		t.Fatal("ScrollTo(c) failed")
	}
	if d.centered != "c" || d.selected != "c" {
		t.Errorf("centered=%q selected=%q", d.centered, d.selected)
	}

	// The selection echo after a scroll keeps the centred position.
	s.SyncSelection("c")
	q.Flush(time.Unix(1, 0))
	if d.pos.Y != 999 {
		t.Errorf("position after echo = %+v", d.pos)
	}
}

func TestScrollToAfterRender(t *testing.T) {
	d := newFakeDiagram()
	q := &FrameQueue{}
	s := NewSynchronizer(d, Options{Scheduler: q})
	s.ScrollToAfterRender("b")
	s.ReplaceModel(sampleForest(), "")
	if d.centered != "" {
		t.Fatal("scroll ran before the frame")
	}
	q.Flush(time.Unix(1, 0))
	if d.centered != "b" {
		t.Errorf("centered = %q, want b", d.centered)
	}
}

func TestClicksReportSelection(t *testing.T) {
	var picked []string
	d := newFakeDiagram()
	s := NewSynchronizer(d, Options{
		Scheduler: &FrameQueue{},
		OnSelect:  func(id string) { picked = append(picked, id) },
	})
	s.ReplaceModel(sampleForest(), "")
	s.NodeClicked("b")
	s.NodeClicked("nope")
	s.BackgroundClicked()
	if len(picked) != 2 || picked[0] != "b" || picked[1] != "" {
		t.Errorf("picked = %q", picked)
	}
}

func TestSetHeatmap_BeforeFirstModelDoesNotAnimate(t *testing.T) {
	d := newFakeDiagram()
	q := &FrameQueue{}
	s := NewSynchronizer(d, Options{Scheduler: q})
	s.SetHeatmap(true)
	if q.Pending() {
		t.Fatal("animation scheduled before any model was shown")
	}
	s.ReplaceModel(sampleForest(), "")
	if want := colorful.Hsl(0, 0.80, 0.15).Hex(); d.nodes["a"].Color != want {
		t.Errorf("oldest node colour = %q, want %q", d.nodes["a"].Color, want)
	}
	if want := colorful.Hsl(45, 1.00, 0.65).Hex(); d.nodes["c"].Color != want {
		t.Errorf("newest node colour = %q, want %q", d.nodes["c"].Color, want)
	}
}

func TestSetHeatmap_AnimatesAndCommits(t *testing.T) {
	d := newFakeDiagram()
	q := &FrameQueue{}
	s := NewSynchronizer(d, Options{Scheduler: q})
	s.ReplaceModel(sampleForest(), "")

	s.SetHeatmap(true)
	if !s.Animating() {
		t.Fatal("expected an animation")
	}
	start := time.Unix(100, 0)
	q.Flush(start)
	if d.fills["a"] != HumanColor {
		t.Errorf("first frame should paint the start colour, got %q", d.fills["a"])
	}
	q.Flush(start.Add(250 * time.Millisecond))
	mid := d.fills["a"]
	if mid == HumanColor || mid == heatAt(0) {
		t.Errorf("mid-transition colour = %q", mid)
	}
	if d.commits != 0 {
		t.Error("committed before the transition finished")
	}

	runFrames(q, start.Add(500*time.Millisecond), 16*time.Millisecond)
	if s.Animating() {
		t.Error("animation still running")
	}
	if d.nodes["a"].Color != heatAt(0) || d.fills["a"] != heatAt(0) {
		t.Errorf("final colour = %q/%q", d.nodes["a"].Color, d.fills["a"])
	}
	if d.commits != 3 {
		t.Errorf("commits = %d, want 3", d.commits)
	}
}

func TestSetHeatmap_NewerToggleSupersedes(t *testing.T) {
	d := newFakeDiagram()
	q := &FrameQueue{}
	s := NewSynchronizer(d, Options{Scheduler: q})
	s.ReplaceModel(sampleForest(), "")

	s.SetHeatmap(true)
	q.Flush(time.Unix(0, 1))
	s.SetHeatmap(false)
	runFrames(q, time.Unix(1, 0), 100*time.Millisecond)

	if d.nodes["b"].Color != OtherColor {
		t.Errorf("b colour = %q, want sender colour", d.nodes["b"].Color)
	}
	if d.commits != 3 {
		t.Errorf("only the last transition should commit, got %d commits", d.commits)
	}
}

func TestSetHeatmap_DetachStopsSilently(t *testing.T) {
	d := newFakeDiagram()
	q := &FrameQueue{}
	s := NewSynchronizer(d, Options{Scheduler: q})
	s.ReplaceModel(sampleForest(), "")

	s.SetHeatmap(true)
	q.Flush(time.Unix(0, 1))
	s.Detach()
	runFrames(q, time.Unix(1, 0), 100*time.Millisecond)
	if d.commits != 0 {
		t.Errorf("detached diagram received %d commits", d.commits)
	}
	if q.Pending() {
		t.Error("animation kept requesting frames after detach")
	}
}

func TestHeatColor(t *testing.T) {
	r := HeatRange{Min: 0, Max: 0, Valid: true}
	ts := time.UnixMilli(0).UTC().Format(time.RFC3339)
	if got := HeatColor(ts, r); got != heatAt(0) {
		t.Errorf("degenerate range = %q, want low end %q", got, heatAt(0))
	}
	if got := HeatColor("garbage", r); got != HeatFallback {
		t.Errorf("invalid timestamp = %q, want %q", got, HeatFallback)
	}

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	span := HeatRange{Min: start.UnixMilli(), Max: start.Add(2 * time.Hour).UnixMilli(), Valid: true}
	for _, tc := range []struct {
		at   time.Time
		want string
	}{
		{start, colorful.Hsl(0, 0.80, 0.15).Hex()},
		{start.Add(time.Hour), colorful.Hsl(22.5, 0.90, 0.40).Hex()},
		{start.Add(2 * time.Hour), colorful.Hsl(45, 1.00, 0.65).Hex()},
	} {
		if got := HeatColor(tc.at.Format(time.RFC3339), span); got != tc.want {
			t.Errorf("HeatColor(%s) = %q, want %q", tc.at.Format(time.Kitchen), got, tc.want)
		}
	}
	if got := heatAt(0); got != "#450808" {
		t.Errorf("oldest end = %q, want #450808", got)
	}
}

func TestEase(t *testing.T) {
	if ease(0) != 0 || ease(1) != 1 || ease(0.5) != 0.5 {
		t.Errorf("ease endpoints wrong: %v %v %v", ease(0), ease(0.5), ease(1))
	}
	if ease(0.25) >= 0.25 {
		t.Error("ease should start slow")
	}
}

func TestFrameQueue_DefersNestedRequests(t *testing.T) {
	q := &FrameQueue{}
	ran := 0
	q.RequestFrame(func(time.Time) {
		ran++
		q.RequestFrame(func(time.Time) { ran++ })
	})
	if n := q.Flush(time.Now()); n != 1 || ran != 1 {
		t.Fatalf("first flush ran %d callbacks", n)
	}
	if !q.Pending() {
		t.Fatal("nested request lost")
	}
	q.Flush(time.Now())
	if ran != 2 {
		t.Errorf("ran = %d, want 2", ran)
	}
}
