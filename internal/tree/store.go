// Package tree implements copy-on-write operations over a journal document.
//
// Every operation takes a document snapshot and returns a new one. The input
// is never modified: nodes along the path from the root to the change are
// rebuilt and every other node is shared between the two snapshots.
package tree

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/jb/internal/errors"
	"github.com/hpungsan/jb/internal/journal"
)

// Append inserts a node after the parent's last child. Other positions are
// clamped to the parent's children.
const Append = -1

// Store applies structural operations to document snapshots.
type Store struct {
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for modification timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a Store.
func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now().UTC()
}

// Insert places node under parentID at position. A negative position appends;
// larger positions are clamped to the child count. The node is copied, so the
// caller's value is never shared with the returned snapshot.
func (s *Store) Insert(doc *journal.Document, parentID string, node *journal.Node, position int) (*journal.Document, error) {
	if node == nil || node.ID == "" {
		return nil, errors.NewInvalidRequest("node with an id is required")
	}
	if node.Type != journal.TypeEntry && node.Type != journal.TypeFolder {
		return nil, errors.NewInvalidRequest("node type must be entry or folder")
	}
	return s.insert(doc, parentID, node.Clone(), position)
}

func (s *Store) insert(doc *journal.Document, parentID string, node *journal.Node, position int) (*journal.Document, error) {
	parent := Find(doc.Root, parentID)
	if parent == nil || !parent.IsFolder() {
		return nil, errors.NewParentNotFound(parentID)
	}
	var dup string
	Walk(node, func(n *journal.Node, _ int) bool {
		if Find(doc.Root, n.ID) != nil {
			dup = n.ID
			return false
		}
		return true
	})
	if dup != "" {
		return nil, errors.NewDuplicateID(dup)
	}

	root, _ := rebuild(doc.Root, parentID, func(p *journal.Node) *journal.Node {
		c := *p
		c.Children = insertAt(p.Children, node, position)
		return &c
	})
	return doc.With(root, s.Now()), nil
}

// Extract detaches id and returns a deep copy of its subtree along with the
// snapshot that no longer contains it.
func (s *Store) Extract(doc *journal.Document, id string) (*journal.Node, *journal.Document, error) {
	if id == journal.RootID {
		return nil, nil, errors.NewRootImmutable("extract")
	}
	parent, idx := FindParent(doc.Root, id)
	if parent == nil {
		return nil, nil, errors.NewNotFound("node", id)
	}
	node := parent.Children[idx].Clone()

	root, _ := rebuild(doc.Root, parent.ID, func(p *journal.Node) *journal.Node {
		c := *p
		c.Children = removeAt(p.Children, idx)
		return &c
	})
	return node, doc.With(root, s.Now()), nil
}

// Move relocates id under newParentID. The position indexes the destination's
// children as they are once the node has been detached.
func (s *Store) Move(doc *journal.Document, id, newParentID string, position int) (*journal.Document, error) {
	if id == journal.RootID {
		return nil, errors.NewRootImmutable("move")
	}
	if id == newParentID {
		return nil, errors.NewSelfParent(id)
	}

	node, detached, err := s.Extract(doc, id)
	if err != nil {
		return nil, err
	}
	if Find(node, newParentID) != nil {
		return nil, errors.NewCyclicMove(id, newParentID)
	}
	return s.insert(detached, newParentID, node, position)
}

// Rename sets a node's name and bumps its modification time.
func (s *Store) Rename(doc *journal.Document, id, name string) (*journal.Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewInvalidRequest("name is required")
	}
	if id == journal.RootID {
		return nil, errors.NewRootImmutable("rename")
	}
	now := s.Now()
	root, ok := rebuild(doc.Root, id, func(n *journal.Node) *journal.Node {
		c := *n
		c.Name = name
		c.Modified = now
		return &c
	})
	if !ok {
		return nil, errors.NewNotFound("node", id)
	}
	return doc.With(root, now), nil
}

// Delete removes id and its descendants. Deleting an id that is not in the
// tree returns doc itself.
func (s *Store) Delete(doc *journal.Document, id string) (*journal.Document, error) {
	if id == journal.RootID {
		return nil, errors.NewRootImmutable("delete")
	}
	parent, idx := FindParent(doc.Root, id)
	if parent == nil {
		return doc, nil
	}
	root, _ := rebuild(doc.Root, parent.ID, func(p *journal.Node) *journal.Node {
		c := *p
		c.Children = removeAt(p.Children, idx)
		return &c
	})
	return doc.With(root, s.Now()), nil
}

// SetExpanded sets a folder's expanded flag. The folder's own modification
// time is left alone; the document's is bumped. Setting the current value
// returns doc itself.
func (s *Store) SetExpanded(doc *journal.Document, id string, expanded bool) (*journal.Document, error) {
	n := Find(doc.Root, id)
	if n == nil {
		return nil, errors.NewNotFound("folder", id)
	}
	if !n.IsFolder() {
		return nil, errors.NewInvalidRequest("node is not a folder: " + id)
	}
	if n.Expanded == expanded {
		return doc, nil
	}
	root, _ := rebuild(doc.Root, id, func(n *journal.Node) *journal.Node {
		c := *n
		c.Expanded = expanded
		return &c
	})
	return doc.With(root, s.Now()), nil
}

// ToggleExpanded flips a folder's expanded flag.
func (s *Store) ToggleExpanded(doc *journal.Document, id string) (*journal.Document, error) {
	n := Find(doc.Root, id)
	if n == nil {
		return nil, errors.NewNotFound("folder", id)
	}
	return s.SetExpanded(doc, id, !n.Expanded)
}

// UpdateContent replaces an entry's content blob. Identical content returns doc itself.
func (s *Store) UpdateContent(doc *journal.Document, id string, content json.RawMessage) (*journal.Document, error) {
	n := Find(doc.Root, id)
	if n == nil {
		return nil, errors.NewNotFound("entry", id)
	}
	if !n.IsEntry() {
		return nil, errors.NewInvalidRequest("node is not an entry: " + id)
	}
	if bytes.Equal(n.Content, content) {
		return doc, nil
	}
	now := s.Now()
	blob := bytes.Clone(content)
	root, _ := rebuild(doc.Root, id, func(n *journal.Node) *journal.Node {
		c := *n
		c.Content = blob
		c.Modified = now
		return &c
	})
	return doc.With(root, now), nil
}

// SetSettings replaces the document settings. Unchanged settings return doc itself.
func (s *Store) SetSettings(doc *journal.Document, settings journal.Settings) (*journal.Document, error) {
	if settings.SidebarWidth <= 0 {
		return nil, errors.NewInvalidRequest("sidebar width must be positive")
	}
	if !settings.Theme.Valid() {
		return nil, errors.NewInvalidRequest("theme must be light or dark")
	}
	if doc.Settings == settings {
		return doc, nil
	}
	c := *doc
	c.Settings = settings
	c.Modified = s.Now()
	return &c, nil
}

// rebuild applies fn to the node with the given id and returns a new root in
// which every ancestor of that node is a fresh copy. Untouched subtrees are
// shared. The second result is false when id is absent, in which case n is
// returned unchanged.
func rebuild(n *journal.Node, id string, fn func(*journal.Node) *journal.Node) (*journal.Node, bool) {
	if n.ID == id {
		return fn(n), true
	}
	if !n.IsFolder() {
		return n, false
	}
	for i, child := range n.Children {
		replaced, ok := rebuild(child, id, fn)
		if !ok {
			continue
		}
		c := *n
		c.Children = make([]*journal.Node, len(n.Children))
		copy(c.Children, n.Children)
		c.Children[i] = replaced
		return &c, true
	}
	return n, false
}

func insertAt(children []*journal.Node, node *journal.Node, position int) []*journal.Node {
	switch {
	case position == Append || position > len(children):
		position = len(children)
	case position < 0:
		position = 0
	}
	out := make([]*journal.Node, 0, len(children)+1)
	out = append(out, children[:position]...)
	out = append(out, node)
	out = append(out, children[position:]...)
	return out
}

func removeAt(children []*journal.Node, idx int) []*journal.Node {
	out := make([]*journal.Node, 0, len(children)-1)
	out = append(out, children[:idx]...)
	out = append(out, children[idx+1:]...)
	return out
}
