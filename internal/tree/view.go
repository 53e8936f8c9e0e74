package tree

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/hpungsan/jb/internal/journal"
)

// SortedChildren returns a folder's children in display order: folders
// first, then entries, each group by locale-aware name. The stored order is
// not changed.
func SortedChildren(n *journal.Node, tag language.Tag) []*journal.Node {
	if n == nil || len(n.Children) == 0 {
		return nil
	}
	col := collate.New(tag)
	out := slices.Clone(n.Children)
	slices.SortStableFunc(out, func(a, b *journal.Node) int {
		if a.IsFolder() != b.IsFolder() {
			if a.IsFolder() {
				return -1
			}
			return 1
		}
		return col.CompareString(a.Name, b.Name)
	})
	return out
}

// Match is one search hit.
type Match struct {
	Node *journal.Node
	// Path holds the names of the folders above the node, root excluded.
	Path []string
}

// Search returns every node whose name contains query, ignoring case and
// runs of whitespace. Hits are in depth-first stored order; the root is never
// a hit. An empty query matches nothing.
func Search(root *journal.Node, query string) []Match {
	q := Normalize(query)
	if q == "" || root == nil {
		return nil
	}
	var out []Match
	var visit func(n *journal.Node, path []string)
	visit = func(n *journal.Node, path []string) {
		for _, c := range n.Children {
			if strings.Contains(Normalize(c.Name), q) {
				out = append(out, Match{Node: c, Path: slices.Clone(path)})
			}
			if c.IsFolder() {
				visit(c, append(path, c.Name))
			}
		}
	}
	visit(root, nil)
	return out
}

// Normalize lowercases s and collapses whitespace runs to a single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
