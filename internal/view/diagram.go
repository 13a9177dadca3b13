package view

import "time"

// NodeData is one box handed to the diagram.
type NodeData struct {
	Key      string
	ID       string
	Label    string
	Color    string
	Human    bool
	Selected bool
}

// Edge connects a parent box to a child box.
type Edge struct {
	From, To string
}

type Point struct {
	X, Y int
}

// Diagram is the drawing surface the synchronizer drives. Implementations
// own layout and painting; they report clicks back through
// Synchronizer.NodeClicked and Synchronizer.BackgroundClicked.
type Diagram interface {
	// SetModel replaces every node and edge. Selection is cleared.
	SetModel(nodes []NodeData, edges []Edge)
	Select(key string) bool
	ClearSelection()
	Position() Point
	SetPosition(p Point)
	// CenterOn scrolls so the node is in the middle of the viewport.
	CenterOn(key string) bool
	// Fill reads the colour currently painted for a node.
	Fill(key string) (string, bool)
	// SetFill repaints a node without touching its model data.
	SetFill(key, color string) bool
	// CommitFill writes the colour into the node's model data.
	CommitFill(key, color string) bool
}

// Scheduler runs callbacks on the next frame.
type Scheduler interface {
	RequestFrame(fn func(now time.Time))
}
