package session

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/hpungsan/jb/internal/errors"
	"github.com/hpungsan/jb/internal/tabs"
	"github.com/hpungsan/jb/internal/tree"
)

// OpenEntry opens a tab for an entry, or activates the one already open.
func (s *Session) OpenEntry(entryID string) (tabs.Tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return tabs.Tab{}, errors.NewNoDocument()
	}
	n := tree.Find(s.doc.Root, entryID)
	if n == nil {
		return tabs.Tab{}, errors.NewNotFound("entry", entryID)
	}
	if !n.IsEntry() {
		return tabs.Tab{}, errors.NewInvalidRequest("not an entry: " + entryID)
	}
	t, _ := s.tabs.Open(entryID, n.Name)
	s.tabsChangedLocked()
	return t, nil
}

// CloseTab folds the tab's pending edit into the document and closes it.
func (s *Session) CloseTab(tabID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return errors.NewNoDocument()
	}
	if _, ok := s.tabs.Get(tabID); !ok {
		return errors.NewNotFound("tab", tabID)
	}
	if e, ok := s.edits.Drain(tabID); ok {
		s.applyEditLocked(tabID, e)
	}
	if err := s.tabs.Close(tabID); err != nil {
		return err
	}
	s.tabsChangedLocked()
	return nil
}

// ActivateTab makes tabID the active tab.
func (s *Session) ActivateTab(tabID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tabs.Activate(tabID); err != nil {
		return err
	}
	s.tabsChangedLocked()
	return nil
}

// NextTab activates the tab after the active one, wrapping around.
func (s *Session) NextTab() (tabs.Tab, bool) {
	return s.cycle((*tabs.Manager).Next)
}

// PrevTab activates the tab before the active one, wrapping around.
func (s *Session) PrevTab() (tabs.Tab, bool) {
	return s.cycle((*tabs.Manager).Prev)
}

func (s *Session) cycle(step func(*tabs.Manager) (tabs.Tab, bool)) (tabs.Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := step(s.tabs)
	if ok {
		s.tabsChangedLocked()
	}
	return t, ok
}

// Tabs returns the open tabs in open order.
func (s *Session) Tabs() []tabs.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabs.Tabs()
}

// ActiveTab returns the active tab, if any.
func (s *Session) ActiveTab() (tabs.Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabs.Active()
}

// EditEntryContent records an editor change for the tab's entry. Changes are
// debounced per tab and folded into the document once the tab is quiet; the
// tab is dirty until then.
func (s *Session) EditEntryContent(tabID string, content json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return errors.NewNoDocument()
	}
	t, ok := s.tabs.Get(tabID)
	if !ok {
		return errors.NewNotFound("tab", tabID)
	}
	if !json.Valid(content) {
		return errors.NewInvalidRequest("content is not valid JSON")
	}

	s.editSeq++
	s.edits.Trigger(tabID, edit{entryID: t.EntryID, content: content, epoch: s.epoch, seq: s.editSeq})
	if !t.Dirty {
		_ = s.tabs.SetDirty(tabID, true)
		s.tabsChangedLocked()
	}
	return nil
}

// FlushEdits folds every pending editor change into the document.
func (s *Session) FlushEdits() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc != nil {
		s.foldEditsLocked()
	}
}

// applyEdit runs on the debouncer's timer.
func (s *Session) applyEdit(tabID string, e edit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil || e.epoch != s.epoch {
		return
	}
	s.applyEditLocked(tabID, e)
}

func (s *Session) applyEditLocked(tabID string, e edit) {
	const op = "update_content"
	if e.seq <= s.superseded[tabID] {
		s.log.Debug("stale edit dropped", zap.String("tab", tabID), zap.String("entry", e.entryID))
		return
	}
	next, err := s.store.UpdateContent(s.doc, e.entryID, e.content)
	if err != nil {
		// The entry was deleted while the edit waited.
		_ = s.reject(op, err)
		return
	}
	s.commitLocked(op, e.entryID, next)
	if s.tabs.SetDirty(tabID, false) == nil {
		s.tabsChangedLocked()
	}
}

func (s *Session) foldEditsLocked() {
	for tabID, e := range s.edits.DrainAll() {
		if e.epoch == s.epoch {
			s.applyEditLocked(tabID, e)
		}
	}
}

// ExportEntry hands an entry's content to the exporter. Pending edits for the
// entry are folded first. It reports false with no error when the exporter's
// save dialog is dismissed.
func (s *Session) ExportEntry(ctx context.Context, entryID string) (string, bool, error) {
	if s.exporter == nil {
		return "", false, errors.NewInvalidRequest("export is not configured")
	}

	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return "", false, errors.NewNoDocument()
	}
	if t, ok := s.tabs.FindByEntry(entryID); ok {
		if e, ok := s.edits.Drain(t.ID); ok {
			s.applyEditLocked(t.ID, e)
		}
	}
	n := tree.Find(s.doc.Root, entryID)
	s.mu.Unlock()

	if n == nil {
		return "", false, errors.NewNotFound("entry", entryID)
	}
	if !n.IsEntry() {
		return "", false, errors.NewInvalidRequest("not an entry: " + entryID)
	}

	path, err := s.exporter.Export(ctx, n.Content, n.Name)
	if errors.IsCancelled(err) {
		return "", false, nil
	}
	if err != nil {
		s.log.Warn("entry export failed", zap.String("entry", entryID), zap.Error(err))
		return "", false, err
	}
	s.log.Debug("entry exported", zap.String("entry", entryID), zap.String("path", path))
	return path, true, nil
}
