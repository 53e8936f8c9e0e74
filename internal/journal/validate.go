package journal

import "fmt"

// Validate checks the structural rules a loaded document must satisfy:
// a folder root with id "root", known node types, and globally unique ids.
func Validate(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("document is nil")
	}
	if doc.Root == nil {
		return fmt.Errorf("missing structure")
	}
	if doc.Root.ID != RootID {
		return fmt.Errorf("root id is %q, want %q", doc.Root.ID, RootID)
	}
	if !doc.Root.IsFolder() {
		return fmt.Errorf("root must be a folder")
	}

	seen := make(map[string]bool)
	var walk func(n *Node) error
	walk = func(n *Node) error {
		if n == nil {
			return fmt.Errorf("null node")
		}
		if n.ID == "" {
			return fmt.Errorf("node %q has empty id", n.Name)
		}
		if seen[n.ID] {
			return fmt.Errorf("duplicate id %q", n.ID)
		}
		seen[n.ID] = true

		switch n.Type {
		case TypeEntry:
			if len(n.Children) > 0 {
				return fmt.Errorf("entry %q has children", n.ID)
			}
		case TypeFolder:
			for _, c := range n.Children {
				if err := walk(c); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("node %q has unknown type %q", n.ID, n.Type)
		}
		return nil
	}
	return walk(doc.Root)
}
