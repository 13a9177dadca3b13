package view

import (
	"fmt"
	"time"

	"github.com/Chris-1010/claude-branch-visualiser/internal/tree"
)

const (
	DefaultTransition = 500 * time.Millisecond
	labelRunes        = 100
)

type Options struct {
	Scheduler  Scheduler
	Transition time.Duration
	Heatmap    bool
	// OnSelect is told which message the user picked on the diagram, or ""
	// when they cleared the selection.
	OnSelect func(id string)
}

type keyed struct {
	key  string
	node *tree.Node
}

// Synchronizer keeps a Diagram in step with the application's selection and
// heatmap state. All methods must be called from one goroutine, the same one
// that flushes the Scheduler.
type Synchronizer struct {
	d          Diagram
	sched      Scheduler
	transition time.Duration
	onSelect   func(id string)

	heatmap  bool
	settled  bool
	detached bool
	running  bool
	gen      uint64

	heat     HeatRange
	order    []keyed
	keyOf    map[string]string
	idOf     map[string]string
	selected string
}

func NewSynchronizer(d Diagram, opts Options) *Synchronizer {
	if opts.Transition <= 0 {
		opts.Transition = DefaultTransition
	}
	if opts.OnSelect == nil {
		opts.OnSelect = func(string) {}
	}
	return &Synchronizer{
		d:          d,
		sched:      opts.Scheduler,
		transition: opts.Transition,
		onSelect:   opts.OnSelect,
		heatmap:    opts.Heatmap,
		keyOf:      map[string]string{},
		idOf:       map[string]string{},
	}
}

// ReplaceModel hands the diagram a new forest. The selected message, if it
// exists in the new forest, is reselected without moving the viewport. Any
// colour transition in flight is abandoned.
func (s *Synchronizer) ReplaceModel(forest []*tree.Node, selectedID string) {
	if s.detached {
		return
	}
	s.gen++
	s.running = false
	s.heat = RangeOf(forest)
	s.keyOf = map[string]string{}
	s.idOf = map[string]string{}
	s.order = s.order[:0]

	keys := make(map[*tree.Node]string)
	tree.Walk(forest, func(n *tree.Node) bool {
		key := s.assignKey(n.UUID)
		keys[n] = key
		s.order = append(s.order, keyed{key: key, node: n})
		return true
	})

	nodes := make([]NodeData, 0, len(s.order))
	var edges []Edge
	for _, k := range s.order {
		n := k.node
		nodes = append(nodes, NodeData{
			Key:   k.key,
			ID:    n.UUID,
			Label: n.Label(labelRunes),
			Color: s.targetColor(n),
			Human: n.Sender.IsHuman(),
		})
		for _, c := range n.Children {
			edges = append(edges, Edge{From: k.key, To: keys[c]})
		}
	}

	s.d.SetModel(nodes, edges)
	s.selected = ""
	if key, ok := s.keyOf[selectedID]; ok {
		pos := s.d.Position()
		s.d.Select(key)
		s.d.SetPosition(pos)
		s.selected = selectedID
	}
	s.settled = true
}

// assignKey gives each node a unique diagram key. The first node with a
// given id is keyed by the id itself, so lookups by message id land there.
func (s *Synchronizer) assignKey(id string) string {
	key := id
	for n := 2; ; n++ {
		if _, taken := s.idOf[key]; !taken {
			break
		}
		key = fmt.Sprintf("%s#%d", id, n)
	}
	s.idOf[key] = id
	if _, ok := s.keyOf[id]; !ok {
		s.keyOf[id] = key
	}
	return key
}

func (s *Synchronizer) targetColor(n *tree.Node) string {
	if s.heatmap {
		return HeatColor(n.CreatedAt, s.heat)
	}
	return SenderColor(n.Sender)
}

// SyncSelection mirrors the application's selection onto the diagram.
// Selecting can make the diagram scroll; the position from before is put
// back on the next frame so only ScrollTo ever moves the viewport.
func (s *Synchronizer) SyncSelection(id string) {
	if s.detached {
		return
	}
	pos := s.d.Position()
	s.d.ClearSelection()
	s.selected = ""
	if key, ok := s.keyOf[id]; ok {
		s.d.Select(key)
		s.selected = id
	}
	s.sched.RequestFrame(func(time.Time) {
		if s.detached {
			return
		}
		s.d.SetPosition(pos)
	})
}

type fade struct {
	key, from, to string
}

// SetHeatmap switches colouring mode. Once a model has been shown the change
// is animated; before that the flag only decides the initial colours.
func (s *Synchronizer) SetHeatmap(on bool) {
	if on == s.heatmap {
		return
	}
	s.heatmap = on
	if !s.settled || s.detached {
		return
	}

	fades := make([]fade, len(s.order))
	for i, k := range s.order {
		to := s.targetColor(k.node)
		from, ok := s.d.Fill(k.key)
		if !ok {
			from = to
		}
		fades[i] = fade{key: k.key, from: from, to: to}
	}

	s.gen++
	s.running = true
	gen := s.gen
	var start time.Time
	var step func(now time.Time)
	step = func(now time.Time) {
		if s.detached || gen != s.gen {
			return
		}
		if start.IsZero() {
			start = now
		}
		p := float64(now.Sub(start)) / float64(s.transition)
		if p >= 1 {
			for _, f := range fades {
				s.d.SetFill(f.key, f.to)
				s.d.CommitFill(f.key, f.to)
			}
			s.running = false
			return
		}
		e := ease(p)
		for _, f := range fades {
			s.d.SetFill(f.key, lerpHex(f.from, f.to, e))
		}
		s.sched.RequestFrame(step)
	}
	s.sched.RequestFrame(step)
}

// Animating reports whether a colour transition is still running.
func (s *Synchronizer) Animating() bool {
	return s.running
}

// ScrollTo selects the message and centres the viewport on it. It is the
// only operation that moves the viewport. Unknown ids are ignored.
func (s *Synchronizer) ScrollTo(id string) bool {
	if s.detached {
		return false
	}
	key, ok := s.keyOf[id]
	if !ok {
		return false
	}
	s.d.ClearSelection()
	s.d.Select(key)
	s.d.CenterOn(key)
	s.selected = id
	return true
}

// ScrollToAfterRender defers ScrollTo by one frame, for when the model that
// holds id has only just been replaced.
func (s *Synchronizer) ScrollToAfterRender(id string) {
	s.sched.RequestFrame(func(time.Time) {
		s.ScrollTo(id)
	})
}

// NodeClicked reports a click on a box back to the application.
func (s *Synchronizer) NodeClicked(key string) {
	if s.detached {
		return
	}
	if id, ok := s.idOf[key]; ok {
		s.onSelect(id)
	}
}

// BackgroundClicked reports a click on empty canvas, which clears the
// selection.
func (s *Synchronizer) BackgroundClicked() {
	if s.detached {
		return
	}
	s.onSelect("")
}

// Detach stops every pending callback from touching the diagram.
func (s *Synchronizer) Detach() {
	s.detached = true
	s.running = false
	s.gen++
}

func (s *Synchronizer) Heatmap() bool    { return s.heatmap }
func (s *Synchronizer) Selected() string { return s.selected }

// KeyOf returns the diagram key of the first node carrying id.
func (s *Synchronizer) KeyOf(id string) (string, bool) {
	key, ok := s.keyOf[id]
	return key, ok
}

// IDOf returns the message id drawn as key.
func (s *Synchronizer) IDOf(key string) (string, bool) {
	id, ok := s.idOf[key]
	return id, ok
}
