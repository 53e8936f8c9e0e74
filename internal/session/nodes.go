package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/jb/internal/errors"
	"github.com/hpungsan/jb/internal/journal"
	"github.com/hpungsan/jb/internal/tree"
)

// AddEntry appends a new empty entry to parentID. An empty parentID means the
// selected folder, or the root when nothing is selected. An empty name means
// DefaultEntryName.
func (s *Session) AddEntry(parentID, name string) (*journal.Node, error) {
	return s.add("add_entry", parentID, name, DefaultEntryName, journal.NewEntry)
}

// AddFolder appends a new expanded folder to parentID, resolved as for AddEntry.
func (s *Session) AddFolder(parentID, name string) (*journal.Node, error) {
	return s.add("add_folder", parentID, name, DefaultFolderName, journal.NewFolder)
}

func (s *Session) add(op, parentID, name, defaultName string, mk func(string, time.Time) *journal.Node) (*journal.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return nil, s.reject(op, errors.NewNoDocument())
	}
	if parentID == "" {
		parentID = s.selectedLocked()
	}
	if name = strings.TrimSpace(name); name == "" {
		name = defaultName
	}

	node := mk(name, s.store.Now())
	next, err := s.store.Insert(s.doc, parentID, node, tree.Append)
	if err != nil {
		return nil, s.reject(op, err)
	}
	s.commitLocked(op, node.ID, next)
	return tree.Find(next.Root, node.ID), nil
}

// selectedLocked returns the selected folder id if it still names a folder,
// else the root.
func (s *Session) selectedLocked() string {
	if s.selected != "" {
		if n := tree.Find(s.doc.Root, s.selected); n != nil && n.IsFolder() {
			return s.selected
		}
	}
	return journal.RootID
}

// Rename renames a node and re-titles any open tab for it.
func (s *Session) Rename(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const op = "rename"
	if s.doc == nil {
		return s.reject(op, errors.NewNoDocument())
	}
	next, err := s.store.Rename(s.doc, id, name)
	if err != nil {
		return s.reject(op, err)
	}
	s.commitLocked(op, id, next)
	if s.tabs.Retitle(id, tree.Find(next.Root, id).Name) {
		s.tabsChangedLocked()
	}
	return nil
}

// Delete removes a node and everything under it, closing the tabs of every
// removed entry. Deleting an absent id does nothing.
func (s *Session) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const op = "delete"
	if s.doc == nil {
		return s.reject(op, errors.NewNoDocument())
	}
	next, err := s.store.Delete(s.doc, id)
	if err != nil {
		return s.reject(op, err)
	}
	unchanged := next == s.doc
	s.commitLocked(op, id, next)
	if unchanged {
		return nil
	}

	live := tree.EntryIDs(next.Root)
	closed := s.tabs.Prune(func(entryID string) bool { return live[entryID] })
	for _, t := range closed {
		s.edits.Cancel(t.ID)
	}
	if s.selected != "" && tree.Find(next.Root, s.selected) == nil {
		s.selected = ""
	}
	if len(closed) > 0 {
		s.tabsChangedLocked()
	}
	return nil
}

// Move detaches a node and inserts it under newParentID at position, an
// index into the destination's children after the node is detached. A
// negative position appends.
func (s *Session) Move(id, newParentID string, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const op = "move"
	if s.doc == nil {
		return s.reject(op, errors.NewNoDocument())
	}
	next, err := s.store.Move(s.doc, id, newParentID, position)
	if err != nil {
		return s.reject(op, err)
	}
	s.commitLocked(op, id, next)
	return nil
}

// SetFolderExpanded sets a folder's expanded flag.
func (s *Session) SetFolderExpanded(id string, expanded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const op = "expand"
	if s.doc == nil {
		return s.reject(op, errors.NewNoDocument())
	}
	next, err := s.store.SetExpanded(s.doc, id, expanded)
	if err != nil {
		return s.reject(op, err)
	}
	s.commitLocked(op, id, next)
	return nil
}

// ToggleFolderExpanded flips a folder's expanded flag and returns the new value.
func (s *Session) ToggleFolderExpanded(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const op = "expand"
	if s.doc == nil {
		return false, s.reject(op, errors.NewNoDocument())
	}
	next, err := s.store.ToggleExpanded(s.doc, id)
	if err != nil {
		return false, s.reject(op, err)
	}
	s.commitLocked(op, id, next)
	return tree.Find(next.Root, id).Expanded, nil
}

// UpdateEntryContent replaces an entry's content at once, discarding any
// editor change still waiting for the entry's tab.
func (s *Session) UpdateEntryContent(entryID string, content json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const op = "update_content"
	if s.doc == nil {
		return s.reject(op, errors.NewNoDocument())
	}
	next, err := s.store.UpdateContent(s.doc, entryID, content)
	if err != nil {
		return s.reject(op, err)
	}
	if t, ok := s.tabs.FindByEntry(entryID); ok {
		// Also covers an edit whose timer fired but is still waiting for
		// the lock.
		s.superseded[t.ID] = s.editSeq
		if s.edits.Cancel(t.ID) || t.Dirty {
			_ = s.tabs.SetDirty(t.ID, false)
			s.tabsChangedLocked()
		}
	}
	s.commitLocked(op, entryID, next)
	return nil
}

// SetSelectedFolder selects the folder new nodes go into when no parent is
// given. An empty id clears the selection.
func (s *Session) SetSelectedFolder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return errors.NewNoDocument()
	}
	if id != "" {
		n := tree.Find(s.doc.Root, id)
		if n == nil {
			return errors.NewNotFound("folder", id)
		}
		if !n.IsFolder() {
			return errors.NewInvalidRequest("not a folder: " + id)
		}
	}
	s.selected = id
	return nil
}

// SetSidebarWidth stores the sidebar width in the document settings.
func (s *Session) SetSidebarWidth(width int) error {
	return s.updateSettings(func(st *journal.Settings) { st.SidebarWidth = width })
}

// SetTheme stores the theme in the document settings.
func (s *Session) SetTheme(theme journal.Theme) error {
	return s.updateSettings(func(st *journal.Settings) { st.Theme = theme })
}

func (s *Session) updateSettings(fn func(*journal.Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const op = "settings"
	if s.doc == nil {
		return s.reject(op, errors.NewNoDocument())
	}
	st := s.doc.Settings
	fn(&st)
	next, err := s.store.SetSettings(s.doc, st)
	if err != nil {
		return s.reject(op, err)
	}
	s.commitLocked(op, "", next)
	return nil
}
