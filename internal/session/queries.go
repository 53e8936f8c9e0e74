package session

import (
	"context"

	"golang.org/x/text/language"

	"github.com/hpungsan/jb/internal/errors"
	"github.com/hpungsan/jb/internal/journal"
	"github.com/hpungsan/jb/internal/persist"
	"github.com/hpungsan/jb/internal/tree"
)

// Document returns the current snapshot, or nil when none is open. The
// snapshot must not be modified.
func (s *Session) Document() *journal.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Path returns the open document's file path.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Language returns the tag names are ordered by for display.
func (s *Session) Language() language.Tag {
	return s.lang
}

// Node returns the node with the given id.
func (s *Session) Node(id string) (*journal.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return nil, errors.NewNoDocument()
	}
	n := tree.Find(s.doc.Root, id)
	if n == nil {
		return nil, errors.NewNotFound("node", id)
	}
	return n, nil
}

// DisplayChildren returns a folder's children in display order.
func (s *Session) DisplayChildren(folderID string) ([]*journal.Node, error) {
	n, err := s.Node(folderID)
	if err != nil {
		return nil, err
	}
	if !n.IsFolder() {
		return nil, errors.NewInvalidRequest("not a folder: " + folderID)
	}
	return tree.SortedChildren(n, s.lang), nil
}

// Search returns the nodes whose names match query.
func (s *Session) Search(query string) ([]tree.Match, error) {
	doc := s.Document()
	if doc == nil {
		return nil, errors.NewNoDocument()
	}
	return tree.Search(doc.Root, query), nil
}

// SaveStatus returns the save state of the open document.
func (s *Session) SaveStatus() persist.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveStatusLocked()
}

func (s *Session) saveStatusLocked() persist.Status {
	if s.saver == nil {
		return persist.Status{State: persist.StateIdle}
	}
	return s.saver.Status()
}

// State returns a view of the whole session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		Path:             s.path,
		Document:         s.doc,
		Tabs:             s.tabs.Tabs(),
		ActiveTabID:      s.tabs.ActiveID(),
		SelectedFolderID: s.selected,
		Save:             s.saveStatusLocked(),
	}
}

// RecentFiles returns the recently opened documents, most recent first.
func (s *Session) RecentFiles(ctx context.Context) ([]journal.RecentFile, error) {
	if s.recent == nil {
		return []journal.RecentFile{}, nil
	}
	return s.recent.List(ctx)
}

// RemoveRecentFile drops path from the recent list.
func (s *Session) RemoveRecentFile(ctx context.Context, path string) ([]journal.RecentFile, error) {
	if s.recent == nil {
		return []journal.RecentFile{}, nil
	}
	return s.recent.Remove(ctx, path)
}

// ClearRecentFiles empties the recent list.
func (s *Session) ClearRecentFiles(ctx context.Context) ([]journal.RecentFile, error) {
	if s.recent == nil {
		return []journal.RecentFile{}, nil
	}
	return s.recent.Clear(ctx)
}
