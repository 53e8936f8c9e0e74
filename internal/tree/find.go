package tree

import "github.com/hpungsan/jb/internal/journal"

// Find returns the node with the given id in the subtree rooted at n, or nil.
func Find(n *journal.Node, id string) *journal.Node {
	if n == nil {
		return nil
	}
	if n.ID == id {
		return n
	}
	for _, c := range n.Children {
		if found := Find(c, id); found != nil {
			return found
		}
	}
	return nil
}

// FindParent returns the folder holding id and the child index, or nil, -1.
func FindParent(n *journal.Node, id string) (*journal.Node, int) {
	if n == nil {
		return nil, -1
	}
	for i, c := range n.Children {
		if c.ID == id {
			return n, i
		}
		if p, idx := FindParent(c, id); p != nil {
			return p, idx
		}
	}
	return nil, -1
}

// Path returns the chain of nodes from n down to id, inclusive at both ends.
// It returns nil when id is absent.
func Path(n *journal.Node, id string) []*journal.Node {
	if n == nil {
		return nil
	}
	if n.ID == id {
		return []*journal.Node{n}
	}
	for _, c := range n.Children {
		if p := Path(c, id); p != nil {
			return append([]*journal.Node{n}, p...)
		}
	}
	return nil
}

// Walk visits n and its descendants depth-first in stored order. Returning
// false from fn stops the walk.
func Walk(n *journal.Node, fn func(n *journal.Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n *journal.Node, depth int, fn func(*journal.Node, int) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n, depth) {
		return false
	}
	for _, c := range n.Children {
		if !walk(c, depth+1, fn) {
			return false
		}
	}
	return true
}

// CountNodes returns the number of nodes in the subtree, root included.
func CountNodes(n *journal.Node) int {
	count := 0
	Walk(n, func(*journal.Node, int) bool {
		count++
		return true
	})
	return count
}

// EntryIDs returns the set of entry ids in the subtree.
func EntryIDs(n *journal.Node) map[string]bool {
	ids := make(map[string]bool)
	Walk(n, func(n *journal.Node, _ int) bool {
		if n.IsEntry() {
			ids[n.ID] = true
		}
		return true
	})
	return ids
}
