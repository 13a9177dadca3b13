package tree

import "github.com/Chris-1010/claude-branch-visualiser/internal/chat"

// Walk visits every node in pre-order. Returning false from fn stops the walk.
func Walk(forest []*Node, fn func(n *Node) bool) {
	stack := make([]*Node, 0, len(forest))
	for i := len(forest) - 1; i >= 0; i-- {
		stack = append(stack, forest[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			return
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// Find returns the first node in pre-order with the given id, or nil.
func Find(forest []*Node, id string) *Node {
	if id == "" {
		return nil
	}
	var found *Node
	Walk(forest, func(n *Node) bool {
		if n.UUID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

func Count(forest []*Node) int {
	total := 0
	Walk(forest, func(*Node) bool {
		total++
		return true
	})
	return total
}

// Flatten lists the forest in pre-order, the order nodes are drawn in.
func Flatten(forest []*Node) []*Node {
	out := make([]*Node, 0, len(forest))
	Walk(forest, func(n *Node) bool {
		out = append(out, n)
		return true
	})
	return out
}

// Path returns the chain from a root down to the node with the given id, or
// nil when no such node exists.
func Path(forest []*Node, id string) []*Node {
	target := Find(forest, id)
	if target == nil {
		return nil
	}
	parents := Parents(forest)
	var chain []*Node
	for n := target; n != nil; n = parents[n] {
		chain = append(chain, n)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Parents maps every node to its parent; roots are absent.
func Parents(forest []*Node) map[*Node]*Node {
	out := make(map[*Node]*Node)
	Walk(forest, func(n *Node) bool {
		for _, c := range n.Children {
			out[c] = n
		}
		return true
	})
	return out
}

// Orphans lists the ids of messages that name a parent missing from the list.
// Build treats them as roots.
func Orphans(messages []chat.Message) []string {
	known := make(map[string]struct{}, len(messages))
	for i := range messages {
		known[messages[i].UUID] = struct{}{}
	}
	var out []string
	for i := range messages {
		p := messages[i].ParentUUID
		if p == "" {
			continue
		}
		if _, ok := known[p]; !ok {
			out = append(out, messages[i].UUID)
		}
	}
	return out
}
