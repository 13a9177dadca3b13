package tree

import (
	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
)

// Branch records which numbered sibling was taken at one depth.
type Branch struct {
	Position    int  `json:"position"`
	HasSiblings bool `json:"hasSiblings"`
}

// Node is a message placed in the conversation forest. BranchPath is indexed
// by depth: BranchPath[0] describes the root the node descends from and the
// last entry describes the node itself.
type Node struct {
	chat.Message
	Children   []*Node  `json:"children"`
	BranchPath []Branch `json:"branchPath"`
}

// Depth is the node's distance from its root.
func (n *Node) Depth() int {
	return len(n.BranchPath) - 1
}

// Own returns the branch entry for the node itself.
func (n *Node) Own() Branch {
	if len(n.BranchPath) == 0 {
		return Branch{}
	}
	return n.BranchPath[len(n.BranchPath)-1]
}

// Build turns a flat message list into a forest. Every input message becomes
// exactly one node. A message whose parent id is empty, unknown, or its own
// id is a root. When an id is repeated, the first occurrence is the one
// children attach to.
func Build(messages []chat.Message) []*Node {
	if len(messages) == 0 {
		return []*Node{}
	}

	nodes := make([]*Node, len(messages))
	byID := make(map[string]*Node, len(messages))
	for i := range messages {
		n := &Node{Message: messages[i], Children: []*Node{}}
		nodes[i] = n
		if _, seen := byID[n.UUID]; !seen {
			byID[n.UUID] = n
		}
	}

	roots := []*Node{}
	parents := make(map[*Node]*Node, len(messages))
	for _, n := range nodes {
		p := resolveParent(n, byID)
		if p == nil {
			roots = append(roots, n)
			continue
		}
		p.Children = append(p.Children, n)
		parents[n] = p
	}

	roots = breakCycles(nodes, roots, parents)
	assignBranchPaths(roots)
	return roots
}

func resolveParent(n *Node, byID map[string]*Node) *Node {
	if n.ParentUUID == "" || n.ParentUUID == n.UUID {
		return nil
	}
	p, ok := byID[n.ParentUUID]
	if !ok || p == n {
		return nil
	}
	return p
}

// breakCycles promotes one member of every parent cycle to root. Nodes on a
// cycle cannot be reached from any root, so without this they would vanish
// from the forest.
func breakCycles(nodes, roots []*Node, parents map[*Node]*Node) []*Node {
	reached := make(map[*Node]bool, len(nodes))
	mark := func(from *Node) {
		stack := []*Node{from}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if reached[n] {
				continue
			}
			reached[n] = true
			stack = append(stack, n.Children...)
		}
	}
	for _, r := range roots {
		mark(r)
	}
	if len(reached) == len(nodes) {
		return roots
	}

	for _, n := range nodes {
		if reached[n] {
			continue
		}
		// Climb until a node repeats; that node sits on the cycle.
		seen := map[*Node]bool{}
		cur := n
		for !seen[cur] {
			seen[cur] = true
			cur = parents[cur]
		}
		detach(parents[cur], cur)
		delete(parents, cur)
		roots = append(roots, cur)
		mark(cur)
	}
	return roots
}

func detach(parent, child *Node) {
	for i, c := range parent.Children {
		if c == child {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			return
		}
	}
}

type frame struct {
	node     *Node
	siblings int
	position int
	parent   []Branch
}

// assignBranchPaths walks depth-first with an explicit stack so very long
// linear conversations don't grow the goroutine stack.
func assignBranchPaths(roots []*Node) {
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: roots[i], siblings: len(roots), position: i + 1})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		path := make([]Branch, len(f.parent), len(f.parent)+1)
		copy(path, f.parent)
		path = append(path, Branch{Position: f.position, HasSiblings: f.siblings > 1})
		f.node.BranchPath = path

		kids := f.node.Children
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: kids[i], siblings: len(kids), position: i + 1, parent: path})
		}
	}
}
