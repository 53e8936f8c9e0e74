package journal

import (
	"encoding/json"
	"fmt"
	"time"
)

// documentFile is the on-disk shape of a .jb file.
type documentFile struct {
	ID        string   `json:"id,omitempty"`
	Title     string   `json:"title"`
	Version   string   `json:"version"`
	Created   string   `json:"created"`
	Modified  string   `json:"modified"`
	Settings  Settings `json:"settings"`
	Structure *Node    `json:"structure"`
}

type nodeFile struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	Name     string          `json:"name"`
	Content  json.RawMessage `json:"content,omitempty"`
	Children *[]*Node        `json:"children,omitempty"`
	Created  string          `json:"created,omitempty"`
	Modified string          `json:"modified,omitempty"`
	Expanded *bool           `json:"expanded,omitempty"`
}

// MarshalJSON writes a node in the .jb structure format.
func (n *Node) MarshalJSON() ([]byte, error) {
	f := nodeFile{
		ID:       n.ID,
		Type:     n.Type,
		Name:     n.Name,
		Created:  formatTime(n.Created),
		Modified: formatTime(n.Modified),
	}
	switch n.Type {
	case TypeFolder:
		children := n.Children
		if children == nil {
			children = []*Node{}
		}
		expanded := n.Expanded
		f.Children = &children
		f.Expanded = &expanded
	default:
		f.Content = n.Content
		if len(f.Content) == 0 {
			f.Content = json.RawMessage("null")
		}
	}
	return json.Marshal(f)
}

// UnmarshalJSON reads a node in the .jb structure format.
func (n *Node) UnmarshalJSON(data []byte) error {
	var f nodeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	created, err := parseTime(f.Created)
	if err != nil {
		return fmt.Errorf("node %s: created: %w", f.ID, err)
	}
	modified, err := parseTime(f.Modified)
	if err != nil {
		return fmt.Errorf("node %s: modified: %w", f.ID, err)
	}

	*n = Node{
		ID:       f.ID,
		Type:     f.Type,
		Name:     f.Name,
		Created:  created,
		Modified: modified,
	}
	switch f.Type {
	case TypeFolder:
		n.Children = []*Node{}
		if f.Children != nil && *f.Children != nil {
			n.Children = *f.Children
		}
		if f.Expanded != nil {
			n.Expanded = *f.Expanded
		}
	case TypeEntry:
		if len(f.Content) > 0 {
			n.Content = append(json.RawMessage(nil), f.Content...)
		}
	}
	return nil
}

// Marshal encodes a document as an indented .jb file body.
func Marshal(doc *Document) ([]byte, error) {
	f := documentFile{
		ID:        doc.ID,
		Title:     doc.Title,
		Version:   doc.Version,
		Created:   formatTime(doc.Created),
		Modified:  formatTime(doc.Modified),
		Settings:  doc.Settings,
		Structure: doc.Root,
	}
	return json.MarshalIndent(f, "", "  ")
}

// Unmarshal decodes a .jb file body. Missing settings fall back to defaults;
// structural problems are reported by Validate.
func Unmarshal(data []byte) (*Document, error) {
	var f documentFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	created, err := parseTime(f.Created)
	if err != nil {
		return nil, fmt.Errorf("created: %w", err)
	}
	modified, err := parseTime(f.Modified)
	if err != nil {
		return nil, fmt.Errorf("modified: %w", err)
	}

	doc := &Document{
		ID:       f.ID,
		Title:    f.Title,
		Version:  f.Version,
		Created:  created,
		Modified: modified,
		Settings: f.Settings,
		Root:     f.Structure,
	}
	if doc.ID == "" {
		doc.ID = NewID()
	}
	if doc.Version == "" {
		doc.Version = FormatVersion
	}
	def := DefaultSettings()
	if doc.Settings.SidebarWidth <= 0 {
		doc.Settings.SidebarWidth = def.SidebarWidth
	}
	if !doc.Settings.Theme.Valid() {
		doc.Settings.Theme = def.Theme
	}
	return doc, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
