// Package journal defines the document model: a titled document holding a
// tree of folders and entries rooted at a reserved folder.
package journal

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// RootID is the reserved id of the root folder.
const RootID = "root"

// FormatVersion is written into newly created documents.
const FormatVersion = "1.0"

// NodeType tags a Node as an entry or a folder.
type NodeType string

const (
	TypeEntry  NodeType = "entry"
	TypeFolder NodeType = "folder"
)

// Theme is the document's colour theme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// Settings holds per-document view settings.
type Settings struct {
	SidebarWidth int   `json:"sidebarWidth"`
	Theme        Theme `json:"theme"`
}

// DefaultSettings returns the settings of a freshly created document.
func DefaultSettings() Settings {
	return Settings{SidebarWidth: 300, Theme: ThemeLight}
}

// Node is either an entry (leaf with opaque content) or a folder (ordered children).
//
// Nodes reachable from a published Document are never modified in place; the
// tree package builds new nodes along the changed path instead.
type Node struct {
	ID   string
	Type NodeType
	Name string

	// Content is the editor's opaque blob. Entries only.
	Content json.RawMessage

	// Children are in display order. Folders only.
	Children []*Node

	// Expanded is the folder's sidebar state. Folders only.
	Expanded bool

	Created  time.Time
	Modified time.Time
}

// IsFolder reports whether n is a folder.
func (n *Node) IsFolder() bool { return n.Type == TypeFolder }

// IsEntry reports whether n is an entry.
func (n *Node) IsEntry() bool { return n.Type == TypeEntry }

// Clone returns a deep copy of n, including content bytes and all descendants.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Content != nil {
		c.Content = bytes.Clone(n.Content)
	}
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}

// Document is one note collection. A Document value is a snapshot: once
// published it is treated as immutable and replaced wholesale on change.
type Document struct {
	ID       string
	Title    string
	Version  string
	Created  time.Time
	Modified time.Time
	Settings Settings
	Root     *Node
}

// With returns a shallow copy of d with a new root and modification time.
func (d *Document) With(root *Node, modified time.Time) *Document {
	c := *d
	c.Root = root
	c.Modified = modified
	return &c
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Root = d.Root.Clone()
	return &c
}

// RecentFile is one entry of the process-wide recent documents list.
type RecentFile struct {
	Path         string    `json:"path"`
	Title        string    `json:"title"`
	LastModified time.Time `json:"lastModified"`
}

// NewID generates a new node id.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewDocument returns the template document: an empty root folder and the given settings.
func NewDocument(title string, settings Settings, now time.Time) *Document {
	return &Document{
		ID:       NewID(),
		Title:    title,
		Version:  FormatVersion,
		Created:  now,
		Modified: now,
		Settings: settings,
		Root: &Node{
			ID:       RootID,
			Type:     TypeFolder,
			Name:     "Root",
			Children: []*Node{},
			Expanded: true,
		},
	}
}

// NewEntry returns a new entry with empty block content.
func NewEntry(name string, now time.Time) *Node {
	return &Node{
		ID:       NewID(),
		Type:     TypeEntry,
		Name:     name,
		Content:  json.RawMessage("[]"),
		Created:  now,
		Modified: now,
	}
}

// NewFolder returns a new, expanded, empty folder.
func NewFolder(name string, now time.Time) *Node {
	return &Node{
		ID:       NewID(),
		Type:     TypeFolder,
		Name:     name,
		Children: []*Node{},
		Expanded: true,
		Created:  now,
		Modified: now,
	}
}
