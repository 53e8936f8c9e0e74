// Package session owns the open document and routes every user intent
// through the tree store, the tab manager and the save coordinator.
//
// A Session holds at most one document. Each mutation replaces the current
// snapshot with a new one and schedules a save; readers get snapshots that
// are never edited afterwards.
package session

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/hpungsan/jb/internal/config"
	"github.com/hpungsan/jb/internal/errors"
	"github.com/hpungsan/jb/internal/events"
	"github.com/hpungsan/jb/internal/journal"
	"github.com/hpungsan/jb/internal/metrics"
	"github.com/hpungsan/jb/internal/persist"
	"github.com/hpungsan/jb/internal/tabs"
	"github.com/hpungsan/jb/internal/tree"
)

// Extension is the document file extension.
const Extension = ".jb"

const (
	DefaultEntryName    = "New Entry"
	DefaultFolderName   = "New Folder"
	DefaultDocumentName = "Untitled" + Extension
)

// DocumentStore reads and writes document files.
type DocumentStore interface {
	Read(ctx context.Context, path string) (*journal.Document, error)
	Write(ctx context.Context, path string, doc *journal.Document) error
}

// FilePicker chooses document paths. Dismissal is reported as a CANCELLED error.
type FilePicker interface {
	PickOpenPath(ctx context.Context) (string, error)
	PickSavePath(ctx context.Context, defaultName string) (string, error)
}

// RecentFiles is the process-wide recently opened list, most recent first.
type RecentFiles interface {
	List(ctx context.Context) ([]journal.RecentFile, error)
	Upsert(ctx context.Context, path, title string) ([]journal.RecentFile, error)
	Remove(ctx context.Context, path string) ([]journal.RecentFile, error)
	Clear(ctx context.Context) ([]journal.RecentFile, error)
}

// Exporter writes an entry's content elsewhere, returning where it went.
// Content is passed through untouched.
type Exporter interface {
	Export(ctx context.Context, content json.RawMessage, name string) (string, error)
}

// Options configures a Session. Store is required.
type Options struct {
	Store    DocumentStore
	Picker   FilePicker
	Recent   RecentFiles
	Exporter Exporter

	Config *config.Config
	Logger *zap.Logger
	Events *events.Broadcaster
	// Clock stamps created and modified times.
	Clock func() time.Time
	// Language orders names for display. Defaults to language.Und.
	Language language.Tag
	// TabID generates tab ids.
	TabID func() string
}

// State is a point-in-time view of the session.
type State struct {
	Path             string            `json:"path,omitempty"`
	Document         *journal.Document `json:"-"`
	Tabs             []tabs.Tab        `json:"tabs"`
	ActiveTabID      string            `json:"activeTabId,omitempty"`
	SelectedFolderID string            `json:"selectedFolderId,omitempty"`
	Save             persist.Status    `json:"save"`
}

// Session is the document session controller. It is safe for concurrent use.
type Session struct {
	docs     DocumentStore
	picker   FilePicker
	recent   RecentFiles
	exporter Exporter
	cfg      *config.Config
	log      *zap.Logger
	events   *events.Broadcaster
	lang     language.Tag
	store    *tree.Store

	mu       sync.Mutex
	doc      *journal.Document
	path     string
	saver    *persist.Coordinator
	tabs     *tabs.Manager
	edits    *persist.Debouncer[string, edit]
	selected string
	// epoch changes whenever the open document does; edits carry the epoch
	// they were made in and are dropped if it no longer matches.
	epoch uint64
	// editSeq numbers editor changes. A direct content write records the
	// last number issued for the tab in superseded; edits at or below it
	// are dropped even if their timer already fired.
	editSeq    uint64
	superseded map[string]uint64
}

type edit struct {
	entryID string
	content json.RawMessage
	epoch   uint64
	seq     uint64
}

// New creates a Session with no document open.
func New(opts Options) *Session {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Events == nil {
		opts.Events = events.NewBroadcaster()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	var tabOpts []tabs.Option
	if opts.TabID != nil {
		tabOpts = append(tabOpts, tabs.WithIDFunc(opts.TabID))
	}

	s := &Session{
		docs:     opts.Store,
		picker:   opts.Picker,
		recent:   opts.Recent,
		exporter: opts.Exporter,
		cfg:      opts.Config,
		log:      opts.Logger,
		events:   opts.Events,
		lang:     opts.Language,
		store:    tree.NewStore(tree.WithClock(opts.Clock)),
		tabs:     tabs.New(tabOpts...),

		superseded: make(map[string]uint64),
	}
	s.edits = persist.NewDebouncer(opts.Config.ContentDebounce(), s.applyEdit)
	return s
}

// Events returns the broadcaster the session publishes to.
func (s *Session) Events() *events.Broadcaster {
	return s.events
}

// OpenDocument loads the document at path, choosing one with the picker when
// path is empty. It reports false with no error when the picker is
// dismissed. Any open document is closed first, so a load failure leaves no
// document open; a failed final write of that document aborts the open.
func (s *Session) OpenDocument(ctx context.Context, path string) (bool, error) {
	if path == "" {
		if s.picker == nil {
			return false, errors.NewInvalidRequest("path is required")
		}
		picked, err := s.picker.PickOpenPath(ctx)
		if errors.IsCancelled(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		path = picked
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The current document is written out before the read so reopening its
	// own path loads the latest edits.
	if s.doc != nil {
		if err := s.closeLocked(ctx); err != nil {
			return false, err
		}
	}

	doc, err := s.docs.Read(ctx, path)
	if err != nil {
		s.log.Warn("document load failed", zap.String("path", path), zap.Error(err))
		return false, err
	}
	s.loadLocked(path, doc)
	s.touchRecent(ctx, path, doc.Title)
	s.log.Info("document opened",
		zap.String("path", path),
		zap.String("title", doc.Title),
		zap.Int("nodes", tree.CountNodes(doc.Root)),
	)
	return true, nil
}

// CreateDocument asks the picker where to save a new document and opens it.
// It reports false with no error when the picker is dismissed.
func (s *Session) CreateDocument(ctx context.Context) (bool, error) {
	if s.picker == nil {
		return false, errors.NewInvalidRequest("path is required")
	}
	path, err := s.picker.PickSavePath(ctx, DefaultDocumentName)
	if errors.IsCancelled(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := s.CreateDocumentAt(ctx, path); err != nil {
		return false, err
	}
	return true, nil
}

// CreateDocumentAt writes an empty document to path and opens it. The
// document title is the file name without its extension. An existing file
// is never overwritten.
func (s *Session) CreateDocumentAt(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if filepath.Ext(path) == "" {
		path += Extension
	}

	settings := journal.Settings{
		SidebarWidth: s.cfg.DefaultSidebarWidth,
		Theme:        journal.Theme(s.cfg.DefaultTheme),
	}
	if settings.SidebarWidth <= 0 || !settings.Theme.Valid() {
		settings = journal.DefaultSettings()
	}
	if _, err := s.docs.Read(ctx, path); !errors.Is(err, errors.ErrFileNotFound) {
		if err == nil {
			err = errors.NewInvalidRequest("document already exists: " + path)
		}
		return err
	}

	doc := journal.NewDocument(TitleFromPath(path), settings, s.store.Now())
	if err := s.docs.Write(ctx, path, doc); err != nil {
		return err
	}
	s.log.Info("document created", zap.String("path", path))

	_, err := s.OpenDocument(ctx, path)
	return err
}

// CloseDocument folds pending edits, writes any unsaved changes and clears
// the document, tabs and selection. The recent-files list is kept. If the
// final write fails the document stays open and the error is returned.
func (s *Session) CloseDocument(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return nil
	}
	return s.closeLocked(ctx)
}

// Save folds pending edits and writes the document now.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return errors.NewNoDocument()
	}
	return s.flushLocked(ctx)
}

// Shutdown closes the document and stops the content debouncer.
func (s *Session) Shutdown(ctx context.Context) error {
	err := s.CloseDocument(ctx)
	s.edits.Stop()
	return err
}

func (s *Session) loadLocked(path string, doc *journal.Document) {
	s.epoch++
	clear(s.superseded)
	s.doc = doc
	s.path = path
	s.selected = ""
	s.tabs.Reset()
	s.saver = persist.New(s.docs, path,
		persist.WithDelay(s.cfg.SaveDebounce()),
		persist.WithLogger(s.log),
		persist.WithStatusHook(s.publishStatus(path)),
	)

	metrics.SetTreeNodes(tree.CountNodes(doc.Root))
	metrics.SetOpenTabs(0)
	s.events.Publish(events.Event{Type: events.EventDocumentOpened, Path: path})
}

// flushLocked folds pending edits and writes the document now. After a
// failed write the current snapshot is written again.
func (s *Session) flushLocked(ctx context.Context) error {
	s.foldEditsLocked()
	if s.saver.Status().State == persist.StateError && !s.saver.Pending() {
		s.saver.Schedule(s.doc)
	}
	return s.saver.Flush(ctx)
}

func (s *Session) closeLocked(ctx context.Context) error {
	if err := s.flushLocked(ctx); err != nil {
		s.log.Warn("document close aborted", zap.String("path", s.path), zap.Error(err))
		return err
	}

	path := s.path
	s.epoch++
	clear(s.superseded)
	s.doc = nil
	s.path = ""
	s.saver = nil
	s.selected = ""
	s.tabs.Reset()

	metrics.SetTreeNodes(0)
	metrics.SetOpenTabs(0)
	s.events.Publish(events.Event{Type: events.EventDocumentClosed, Path: path})
	s.log.Info("document closed", zap.String("path", path))
	return nil
}

func (s *Session) publishStatus(path string) func(persist.Status) {
	return func(st persist.Status) {
		s.events.Publish(events.Event{
			Type:  events.EventSaveStatus,
			Path:  path,
			State: string(st.State),
			Error: st.Error,
		})
	}
}

// commitLocked installs next as the current snapshot and schedules a save.
// An unchanged snapshot schedules nothing.
func (s *Session) commitLocked(op, nodeID string, next *journal.Document) {
	metrics.RecordMutation(op, nil)
	if next == s.doc {
		return
	}
	s.doc = next
	s.saver.Schedule(next)
	metrics.SetTreeNodes(tree.CountNodes(next.Root))
	s.events.Publish(events.Event{Type: events.EventTreeChanged, Path: s.path, Op: op, NodeID: nodeID})
}

func (s *Session) reject(op string, err error) error {
	metrics.RecordMutation(op, err)
	s.log.Debug("operation rejected", zap.String("op", op), zap.Error(err))
	return err
}

func (s *Session) tabsChangedLocked() {
	metrics.SetOpenTabs(s.tabs.Len())
	s.events.Publish(events.Event{Type: events.EventTabsChanged, Path: s.path})
}

// touchRecent records path in the recent list. Failures are logged only.
func (s *Session) touchRecent(ctx context.Context, path, title string) {
	if s.recent == nil {
		return
	}
	if _, err := s.recent.Upsert(ctx, path, title); err != nil {
		s.log.Warn("recent files update failed", zap.String("path", path), zap.Error(err))
	}
}

// TitleFromPath returns the document title for a file path.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(base), Extension) {
		base = base[:len(base)-len(Extension)]
	}
	return base
}
