package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/hpungsan/jb/internal/errors"
	"github.com/hpungsan/jb/internal/events"
	"github.com/hpungsan/jb/internal/export"
	"github.com/hpungsan/jb/internal/journal"
	"github.com/hpungsan/jb/internal/logging"
	"github.com/hpungsan/jb/internal/session"
	"github.com/hpungsan/jb/internal/tree"
)

// Handlers serves the viewer pages. Each request reads one document
// snapshot, so a page never mixes two versions of the tree.
type Handlers struct {
	sess     *session.Session
	renderer *Renderer
}

// snapshot returns the open document or a NO_DOCUMENT error.
func (h *Handlers) snapshot() (*journal.Document, error) {
	doc := h.sess.Document()
	if doc == nil {
		return nil, errors.NewNoDocument()
	}
	return doc, nil
}

func (h *Handlers) pageData(doc *journal.Document, title, nav string) PageData {
	return PageData{
		Title:   title,
		Version: h.renderer.version,
		Nav:     nav,
		Journal: doc.Title,
		Path:    h.sess.Path(),
		Save:    h.sess.SaveStatus(),
	}
}

// HandleTree handles GET /tree: one folder's children in display order.
// The folder query parameter selects the folder (default: root).
func (h *Handlers) HandleTree(w http.ResponseWriter, r *http.Request) {
	doc, err := h.snapshot()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	folderID := r.URL.Query().Get("folder")
	if folderID == "" {
		folderID = journal.RootID
	}
	chain := tree.Path(doc.Root, folderID)
	if chain == nil {
		h.renderer.renderError(w, r, errors.NewNotFound("folder", folderID))
		return
	}
	folder := chain[len(chain)-1]
	if !folder.IsFolder() {
		http.Redirect(w, r, "/entries/"+folder.ID, http.StatusFound)
		return
	}

	title := folder.Name
	if folder.ID == journal.RootID {
		title = doc.Title
	}
	h.renderer.renderPage(w, r, "tree", TreePageData{
		PageData: h.pageData(doc, title, "tree"),
		Folder:   folder,
		Crumbs:   chain[:len(chain)-1],
		Children: tree.SortedChildren(folder, h.sess.Language()),
	})
}

// HandleEntry handles GET /entries/{id}: an entry rendered as markdown.
func (h *Handlers) HandleEntry(w http.ResponseWriter, r *http.Request) {
	doc, err := h.snapshot()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	id := r.PathValue("id")
	chain := tree.Path(doc.Root, id)
	if chain == nil {
		h.renderer.renderError(w, r, errors.NewNotFound("entry", id))
		return
	}
	entry := chain[len(chain)-1]
	if !entry.IsEntry() {
		http.Redirect(w, r, "/tree?folder="+entry.ID, http.StatusFound)
		return
	}

	md, err := export.Body(entry.Name, entry.Content)
	if err != nil {
		// Content the converter does not understand is shown as its raw JSON.
		md = []byte(fmt.Sprintf("# %s\n\n```json\n%s\n```\n", entry.Name, entry.Content))
	}

	h.renderer.renderPage(w, r, "entry", EntryPageData{
		PageData:     h.pageData(doc, entry.Name, "tree"),
		Entry:        entry,
		Crumbs:       chain[:len(chain)-1],
		RenderedHTML: h.renderer.renderMarkdown(md),
	})
}

// HandleSearch handles GET /search: name search over the whole tree.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	doc, err := h.snapshot()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	query := r.URL.Query().Get("q")
	data := SearchPageData{
		PageData: h.pageData(doc, "Search", "search"),
		Query:    query,
		Hits:     tree.Search(doc.Root, query),
	}
	data.HasQuery = tree.Normalize(query) != ""

	if r.Header.Get("HX-Target") == "results" {
		h.renderer.renderBlock(w, http.StatusOK, "search", "search-results", data)
		return
	}
	h.renderer.renderPage(w, r, "search", data)
}

// HandleDocument handles GET /api/document: the session state as JSON.
func (h *Handlers) HandleDocument(w http.ResponseWriter, r *http.Request) {
	state := h.sess.State()
	out := map[string]any{
		"open":             state.Document != nil,
		"path":             state.Path,
		"tabs":             state.Tabs,
		"activeTabId":      state.ActiveTabID,
		"selectedFolderId": state.SelectedFolderID,
		"save":             state.Save,
	}
	if state.Document != nil {
		data, err := journal.Marshal(state.Document)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInternal(err))
			return
		}
		out["document"] = json.RawMessage(data)
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleEvents handles GET /events: a server-sent event stream of session
// changes.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.renderer.renderError(w, r, errors.NewInternal(fmt.Errorf("streaming not supported")))
		return
	}

	// Subscribe before the headers go out: a client that has seen the
	// response sees every later change.
	broadcaster := h.sess.Events()
	ch := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				logging.Named("web").Warn("event encode failed", zap.String("type", event.Type), zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}
