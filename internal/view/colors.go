package view

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
	"github.com/Chris-1010/claude-branch-visualiser/internal/tree"
)

const (
	HumanColor    = "#444444"
	OtherColor    = "#ff6f00"
	SelectedColor = "#ff6f00"
	// HeatFallback is used for messages whose timestamp can't be read.
	HeatFallback = "#8b2500"
)

// SenderColor is the fill used when the heatmap is off.
func SenderColor(s chat.Sender) string {
	if s.IsHuman() {
		return HumanColor
	}
	return OtherColor
}

// HeatRange spans the parsable created_at values of a forest.
type HeatRange struct {
	Min, Max int64
	Valid    bool
}

func RangeOf(forest []*tree.Node) HeatRange {
	var r HeatRange
	tree.Walk(forest, func(n *tree.Node) bool {
		t, ok := chat.ParseTime(n.CreatedAt)
		if !ok {
			return true
		}
		ms := t.UnixMilli()
		if !r.Valid {
			r = HeatRange{Min: ms, Max: ms, Valid: true}
			return true
		}
		r.Min = min(r.Min, ms)
		r.Max = max(r.Max, ms)
		return true
	})
	return r
}

// Position maps a timestamp onto [0,1]. A degenerate range maps everything
// to 0.
func (r HeatRange) Position(ms int64) float64 {
	if !r.Valid || r.Max == r.Min {
		return 0
	}
	t := float64(ms-r.Min) / float64(r.Max-r.Min)
	return math.Max(0, math.Min(1, t))
}

// HeatColor ramps from dark red (oldest) to amber (newest): hue 0 to 45,
// saturation 80% to 100%, lightness 15% to 65%.
func HeatColor(createdAt string, r HeatRange) string {
	ts, ok := chat.ParseTime(createdAt)
	if !ok {
		return HeatFallback
	}
	return heatAt(r.Position(ts.UnixMilli()))
}

func heatAt(t float64) string {
	return colorful.Hsl(t*45, 0.80+t*0.20, 0.15+t*0.50).Clamped().Hex()
}

// ease is a quadratic ease-in-out over [0,1].
func ease(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - math.Pow(-2*t+2, 2)/2
}

// lerpHex blends two hex colours in RGB space. An unparsable endpoint snaps
// straight to the other one.
func lerpHex(from, to string, t float64) string {
	a, errA := colorful.Hex(from)
	b, errB := colorful.Hex(to)
	switch {
	case errB != nil:
		return from
	case errA != nil:
		return to
	}
	return a.BlendRgb(b, t).Clamped().Hex()
}
