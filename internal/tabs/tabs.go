// Package tabs tracks the editor tabs open over a document's entries.
//
// A Tab references its entry by id only. Callers resolve the entry through
// the current document snapshot and prune tabs whose entries have gone.
package tabs

import (
	"slices"

	"github.com/google/uuid"

	"github.com/hpungsan/jb/internal/errors"
)

// Tab is one open entry.
type Tab struct {
	ID      string `json:"id"`
	EntryID string `json:"entryId"`
	Title   string `json:"title"`
	Dirty   bool   `json:"isDirty"`
}

// Manager holds tabs in open order and the active pointer. It is not safe
// for concurrent use; the owning session serialises access.
type Manager struct {
	tabs   []Tab
	active string
	newID  func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithIDFunc sets the tab id generator.
func WithIDFunc(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// New creates an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{newID: uuid.NewString}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open activates the tab for entryID, creating and appending it if none exists.
// The second result reports whether a tab was created.
func (m *Manager) Open(entryID, title string) (Tab, bool) {
	if i := m.indexOfEntry(entryID); i >= 0 {
		m.active = m.tabs[i].ID
		return m.tabs[i], false
	}
	t := Tab{ID: m.newID(), EntryID: entryID, Title: title}
	m.tabs = append(m.tabs, t)
	m.active = t.ID
	return t, true
}

// Close removes a tab. If it was active, the tab to its left becomes active;
// closing the first tab activates the new first tab.
func (m *Manager) Close(tabID string) error {
	i := m.indexOf(tabID)
	if i < 0 {
		return errors.NewNotFound("tab", tabID)
	}
	m.removeAt(i)
	return nil
}

// CloseEntry closes the tab for entryID, if one is open.
func (m *Manager) CloseEntry(entryID string) bool {
	i := m.indexOfEntry(entryID)
	if i < 0 {
		return false
	}
	m.removeAt(i)
	return true
}

func (m *Manager) removeAt(i int) {
	wasActive := m.tabs[i].ID == m.active
	m.tabs = slices.Delete(m.tabs, i, i+1)
	if !wasActive {
		return
	}
	switch {
	case len(m.tabs) == 0:
		m.active = ""
	case i > 0:
		m.active = m.tabs[i-1].ID
	default:
		m.active = m.tabs[0].ID
	}
}

// Activate makes tabID the active tab.
func (m *Manager) Activate(tabID string) error {
	if m.indexOf(tabID) < 0 {
		return errors.NewNotFound("tab", tabID)
	}
	m.active = tabID
	return nil
}

// Active returns the active tab.
func (m *Manager) Active() (Tab, bool) {
	if i := m.indexOf(m.active); i >= 0 {
		return m.tabs[i], true
	}
	return Tab{}, false
}

// ActiveID returns the active tab id, or "" when no tab is active.
func (m *Manager) ActiveID() string {
	return m.active
}

// Tabs returns the open tabs in open order.
func (m *Manager) Tabs() []Tab {
	return slices.Clone(m.tabs)
}

// Len returns the number of open tabs.
func (m *Manager) Len() int {
	return len(m.tabs)
}

// Get returns the tab with the given id.
func (m *Manager) Get(tabID string) (Tab, bool) {
	if i := m.indexOf(tabID); i >= 0 {
		return m.tabs[i], true
	}
	return Tab{}, false
}

// FindByEntry returns the tab open on entryID.
func (m *Manager) FindByEntry(entryID string) (Tab, bool) {
	if i := m.indexOfEntry(entryID); i >= 0 {
		return m.tabs[i], true
	}
	return Tab{}, false
}

// Retitle sets the title of the tab open on entryID. It reports whether a tab changed.
func (m *Manager) Retitle(entryID, title string) bool {
	i := m.indexOfEntry(entryID)
	if i < 0 || m.tabs[i].Title == title {
		return false
	}
	m.tabs[i].Title = title
	return true
}

// SetDirty marks whether a tab has unsaved edits.
func (m *Manager) SetDirty(tabID string, dirty bool) error {
	i := m.indexOf(tabID)
	if i < 0 {
		return errors.NewNotFound("tab", tabID)
	}
	m.tabs[i].Dirty = dirty
	return nil
}

// Next activates the tab after the active one, wrapping around.
func (m *Manager) Next() (Tab, bool) {
	return m.cycle(1)
}

// Prev activates the tab before the active one, wrapping around.
func (m *Manager) Prev() (Tab, bool) {
	return m.cycle(-1)
}

func (m *Manager) cycle(step int) (Tab, bool) {
	n := len(m.tabs)
	if n == 0 {
		return Tab{}, false
	}
	i := m.indexOf(m.active)
	if i < 0 {
		i = 0
	} else {
		i = ((i+step)%n + n) % n
	}
	m.active = m.tabs[i].ID
	return m.tabs[i], true
}

// Prune closes every tab whose entry no longer exists, applying the usual
// active-tab rule for each, and returns the closed tabs.
func (m *Manager) Prune(exists func(entryID string) bool) []Tab {
	var closed []Tab
	for i := 0; i < len(m.tabs); {
		if exists(m.tabs[i].EntryID) {
			i++
			continue
		}
		closed = append(closed, m.tabs[i])
		m.removeAt(i)
	}
	return closed
}

// Reset closes all tabs.
func (m *Manager) Reset() {
	m.tabs = nil
	m.active = ""
}

func (m *Manager) indexOf(tabID string) int {
	if tabID == "" {
		return -1
	}
	return slices.IndexFunc(m.tabs, func(t Tab) bool { return t.ID == tabID })
}

func (m *Manager) indexOfEntry(entryID string) int {
	return slices.IndexFunc(m.tabs, func(t Tab) bool { return t.EntryID == entryID })
}
