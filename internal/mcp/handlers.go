package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/jb/internal/config"
	"github.com/hpungsan/jb/internal/errors"
	"github.com/hpungsan/jb/internal/export"
	"github.com/hpungsan/jb/internal/journal"
	"github.com/hpungsan/jb/internal/persist"
	"github.com/hpungsan/jb/internal/session"
	"github.com/hpungsan/jb/internal/tabs"
	"github.com/hpungsan/jb/internal/tree"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	sess *session.Session
	cfg  *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sess *session.Session, cfg *config.Config) *Handlers {
	return &Handlers{sess: sess, cfg: cfg}
}

// Request types for each tool

// PathRequest is the argument set of journal_open, journal_create and recent_remove.
type PathRequest struct {
	Path string `json:"path"`
}

// TreeRequest represents the arguments for journal_tree.
type TreeRequest struct {
	FolderID string `json:"folder_id,omitempty"`
	Depth    int    `json:"depth,omitempty"`
}

// SearchRequest represents the arguments for journal_search.
type SearchRequest struct {
	Query string `json:"query"`
}

// SettingsRequest represents the arguments for journal_settings.
type SettingsRequest struct {
	SidebarWidth *int    `json:"sidebar_width,omitempty"`
	Theme        *string `json:"theme,omitempty"`
}

// AddRequest represents the arguments for entry_add and folder_add.
type AddRequest struct {
	ParentID string `json:"parent_id,omitempty"`
	Name     string `json:"name,omitempty"`
}

// IDRequest is the argument set of tools addressing one node.
type IDRequest struct {
	ID string `json:"id"`
}

// WriteRequest represents the arguments for entry_write.
type WriteRequest struct {
	ID      string          `json:"id"`
	Content json.RawMessage `json:"content"`
}

// ExpandRequest represents the arguments for folder_expand.
type ExpandRequest struct {
	ID       string `json:"id"`
	Expanded *bool  `json:"expanded,omitempty"`
}

// RenameRequest represents the arguments for node_rename.
type RenameRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MoveRequest represents the arguments for node_move.
type MoveRequest struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id"`
	Position *int   `json:"position,omitempty"`
}

// TabRequest is the argument set of tab_close and tab_activate.
type TabRequest struct {
	TabID string `json:"tab_id"`
}

// TabOpenRequest represents the arguments for tab_open.
type TabOpenRequest struct {
	EntryID string `json:"entry_id"`
}

// Outputs

// DocumentOutput summarises an open journal.
type DocumentOutput struct {
	Path     string           `json:"path"`
	Title    string           `json:"title"`
	Version  string           `json:"version"`
	Created  time.Time        `json:"created"`
	Modified time.Time        `json:"modified"`
	Settings journal.Settings `json:"settings"`
	Nodes    int              `json:"nodes"`
}

// NodeOutput describes one node without its children.
type NodeOutput struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Name     string    `json:"name"`
	Expanded *bool     `json:"expanded,omitempty"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// TreeNode is one node of a journal_tree listing. Truncated marks folders
// whose children were cut off by the depth limit.
type TreeNode struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Name      string     `json:"name"`
	Expanded  bool       `json:"expanded,omitempty"`
	Children  []TreeNode `json:"children,omitempty"`
	Truncated bool       `json:"truncated,omitempty"`
}

// EntryOutput is an entry with its content.
type EntryOutput struct {
	NodeOutput
	Content  json.RawMessage `json:"content"`
	Markdown string          `json:"markdown"`
}

// SearchHit is one journal_search match.
type SearchHit struct {
	ID   string   `json:"id"`
	Type string   `json:"type"`
	Name string   `json:"name"`
	Path []string `json:"path"`
}

// StatusOutput is the journal_status result.
type StatusOutput struct {
	Open             bool            `json:"open"`
	Document         *DocumentOutput `json:"document,omitempty"`
	Save             persist.Status  `json:"save"`
	Tabs             []tabs.Tab      `json:"tabs"`
	ActiveTabID      string          `json:"active_tab_id,omitempty"`
	SelectedFolderID string          `json:"selected_folder_id,omitempty"`
}

// TabsOutput lists open tabs.
type TabsOutput struct {
	Tabs        []tabs.Tab `json:"tabs"`
	ActiveTabID string     `json:"active_tab_id,omitempty"`
}

// RecentOutput lists recent journals.
type RecentOutput struct {
	Files []journal.RecentFile `json:"files"`
}

// Handler implementations

// HandleJournalOpen handles the journal_open tool call.
func (h *Handlers) HandleJournalOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return errorResult(errors.NewInvalidRequest("path is required")), nil
	}

	if _, err := h.sess.OpenDocument(ctx, input.Path); err != nil {
		return errorResult(err), nil
	}
	return h.documentResult()
}

// HandleJournalCreate handles the journal_create tool call.
func (h *Handlers) HandleJournalCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.sess.CreateDocumentAt(ctx, input.Path); err != nil {
		return errorResult(err), nil
	}
	return h.documentResult()
}

// HandleJournalClose handles the journal_close tool call.
func (h *Handlers) HandleJournalClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := h.sess.Path()
	if err := h.sess.CloseDocument(ctx); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"closed": path != "", "path": path})
}

// HandleJournalSave handles the journal_save tool call.
func (h *Handlers) HandleJournalSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.sess.Save(ctx); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.sess.SaveStatus())
}

// HandleJournalStatus handles the journal_status tool call.
func (h *Handlers) HandleJournalStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := h.sess.State()
	out := StatusOutput{
		Open:             st.Document != nil,
		Save:             st.Save,
		Tabs:             st.Tabs,
		ActiveTabID:      st.ActiveTabID,
		SelectedFolderID: st.SelectedFolderID,
	}
	if out.Tabs == nil {
		out.Tabs = []tabs.Tab{}
	}
	if st.Document != nil {
		d := documentOutput(st.Path, st.Document)
		out.Document = &d
	}
	return successResult(out)
}

// HandleJournalTree handles the journal_tree tool call.
func (h *Handlers) HandleJournalTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TreeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Depth < 0 {
		return errorResult(errors.NewInvalidRequest("depth must not be negative")), nil
	}
	if input.FolderID == "" {
		input.FolderID = journal.RootID
	}

	n, err := h.sess.Node(input.FolderID)
	if err != nil {
		return errorResult(err), nil
	}
	if !n.IsFolder() {
		return errorResult(errors.NewInvalidRequest("not a folder: " + input.FolderID)), nil
	}
	depth := input.Depth
	if depth == 0 {
		depth = -1
	}
	return successResult(h.treeNode(n, depth))
}

// treeNode lists n with depth levels of descendants; a negative depth means all.
func (h *Handlers) treeNode(n *journal.Node, depth int) TreeNode {
	out := TreeNode{ID: n.ID, Type: string(n.Type), Name: n.Name}
	if !n.IsFolder() {
		return out
	}
	out.Expanded = n.Expanded
	if depth == 0 {
		out.Truncated = len(n.Children) > 0
		return out
	}
	for _, c := range tree.SortedChildren(n, h.sess.Language()) {
		out.Children = append(out.Children, h.treeNode(c, depth-1))
	}
	return out
}

// HandleJournalSearch handles the journal_search tool call.
func (h *Handlers) HandleJournalSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if tree.Normalize(input.Query) == "" {
		return errorResult(errors.NewInvalidRequest("query is required")), nil
	}

	matches, err := h.sess.Search(input.Query)
	if err != nil {
		return errorResult(err), nil
	}
	hits := make([]SearchHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, SearchHit{ID: m.Node.ID, Type: string(m.Node.Type), Name: m.Node.Name, Path: m.Path})
	}
	return successResult(map[string]any{"query": input.Query, "matches": hits})
}

// HandleJournalSettings handles the journal_settings tool call.
func (h *Handlers) HandleJournalSettings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SettingsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.SidebarWidth == nil && input.Theme == nil {
		return errorResult(errors.NewInvalidRequest("sidebar_width or theme is required")), nil
	}

	if input.SidebarWidth != nil {
		if err := h.sess.SetSidebarWidth(*input.SidebarWidth); err != nil {
			return errorResult(err), nil
		}
	}
	if input.Theme != nil {
		if err := h.sess.SetTheme(journal.Theme(*input.Theme)); err != nil {
			return errorResult(err), nil
		}
	}
	return successResult(h.sess.Document().Settings)
}

// HandleEntryAdd handles the entry_add tool call.
func (h *Handlers) HandleEntryAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	n, err := h.sess.AddEntry(input.ParentID, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(nodeOutput(n))
}

// HandleFolderAdd handles the folder_add tool call.
func (h *Handlers) HandleFolderAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	n, err := h.sess.AddFolder(input.ParentID, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(nodeOutput(n))
}

// HandleEntryRead handles the entry_read tool call.
func (h *Handlers) HandleEntryRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.sess.FlushEdits()
	n, err := h.sess.Node(input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	if !n.IsEntry() {
		return errorResult(errors.NewInvalidRequest("not an entry: " + input.ID)), nil
	}

	out := EntryOutput{NodeOutput: nodeOutput(n), Content: n.Content}
	if out.Content == nil {
		out.Content = json.RawMessage("null")
	}
	if md, err := export.Body(n.Name, n.Content); err == nil {
		out.Markdown = string(md)
	}
	return successResult(out)
}

// HandleEntryWrite handles the entry_write tool call.
func (h *Handlers) HandleEntryWrite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WriteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if len(input.Content) == 0 {
		return errorResult(errors.NewInvalidRequest("content is required")), nil
	}

	if err := h.sess.UpdateEntryContent(input.ID, input.Content); err != nil {
		return errorResult(err), nil
	}
	return h.nodeResult(input.ID)
}

// HandleEntryExport handles the entry_export tool call.
func (h *Handlers) HandleEntryExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	path, ok, err := h.sess.ExportEntry(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	if !ok {
		return errorResult(errors.NewCancelled("export")), nil
	}
	return successResult(map[string]any{"id": input.ID, "path": path})
}

// HandleFolderExpand handles the folder_expand tool call.
func (h *Handlers) HandleFolderExpand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExpandRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.Expanded == nil {
		_, err = h.sess.ToggleFolderExpanded(input.ID)
	} else {
		err = h.sess.SetFolderExpanded(input.ID, *input.Expanded)
	}
	if err != nil {
		return errorResult(err), nil
	}
	return h.nodeResult(input.ID)
}

// HandleFolderSelect handles the folder_select tool call.
func (h *Handlers) HandleFolderSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.sess.SetSelectedFolder(input.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"selected_folder_id": input.ID})
}

// HandleNodeRename handles the node_rename tool call.
func (h *Handlers) HandleNodeRename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RenameRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.sess.Rename(input.ID, input.Name); err != nil {
		return errorResult(err), nil
	}
	return h.nodeResult(input.ID)
}

// HandleNodeMove handles the node_move tool call.
func (h *Handlers) HandleNodeMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	position := tree.Append
	if input.Position != nil {
		position = max(*input.Position, 0)
	}
	if err := h.sess.Move(input.ID, input.ParentID, position); err != nil {
		return errorResult(err), nil
	}
	return h.nodeResult(input.ID)
}

// HandleNodeDelete handles the node_delete tool call.
func (h *Handlers) HandleNodeDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	existed := false
	if _, err := h.sess.Node(input.ID); err == nil {
		existed = true
	}
	if err := h.sess.Delete(input.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"id": input.ID, "deleted": existed})
}

// HandleTabOpen handles the tab_open tool call.
func (h *Handlers) HandleTabOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TabOpenRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	t, err := h.sess.OpenEntry(input.EntryID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(t)
}

// HandleTabClose handles the tab_close tool call.
func (h *Handlers) HandleTabClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TabRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.sess.CloseTab(input.TabID); err != nil {
		return errorResult(err), nil
	}
	return h.tabsResult()
}

// HandleTabActivate handles the tab_activate tool call.
func (h *Handlers) HandleTabActivate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TabRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.sess.ActivateTab(input.TabID); err != nil {
		return errorResult(err), nil
	}
	return h.tabsResult()
}

// HandleTabList handles the tab_list tool call.
func (h *Handlers) HandleTabList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.tabsResult()
}

// HandleRecentList handles the recent_list tool call.
func (h *Handlers) HandleRecentList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := h.sess.RecentFiles(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(RecentOutput{Files: files})
}

// HandleRecentRemove handles the recent_remove tool call.
func (h *Handlers) HandleRecentRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Path == "" {
		return errorResult(errors.NewInvalidRequest("path is required")), nil
	}

	files, err := h.sess.RemoveRecentFile(ctx, input.Path)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(RecentOutput{Files: files})
}

// HandleRecentClear handles the recent_clear tool call.
func (h *Handlers) HandleRecentClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := h.sess.ClearRecentFiles(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(RecentOutput{Files: files})
}

// Result helpers

func (h *Handlers) documentResult() (*mcp.CallToolResult, error) {
	st := h.sess.State()
	if st.Document == nil {
		return errorResult(errors.NewNoDocument()), nil
	}
	return successResult(documentOutput(st.Path, st.Document))
}

func (h *Handlers) nodeResult(id string) (*mcp.CallToolResult, error) {
	n, err := h.sess.Node(id)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(nodeOutput(n))
}

func (h *Handlers) tabsResult() (*mcp.CallToolResult, error) {
	st := h.sess.State()
	out := TabsOutput{Tabs: st.Tabs, ActiveTabID: st.ActiveTabID}
	if out.Tabs == nil {
		out.Tabs = []tabs.Tab{}
	}
	return successResult(out)
}

func documentOutput(path string, doc *journal.Document) DocumentOutput {
	return DocumentOutput{
		Path:     path,
		Title:    doc.Title,
		Version:  doc.Version,
		Created:  doc.Created,
		Modified: doc.Modified,
		Settings: doc.Settings,
		Nodes:    tree.CountNodes(doc.Root),
	}
}

func nodeOutput(n *journal.Node) NodeOutput {
	out := NodeOutput{
		ID:       n.ID,
		Type:     string(n.Type),
		Name:     n.Name,
		Created:  n.Created,
		Modified: n.Modified,
	}
	if n.IsFolder() {
		expanded := n.Expanded
		out.Expanded = &expanded
	}
	return out
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var jbErr *errors.JBError
	if stderrors.As(err, &jbErr) {
		msg := jbErr.Message
		// Keep context added by wrappers around the coded error.
		if prefix := strings.TrimSuffix(err.Error(), jbErr.Error()); prefix != err.Error() {
			msg = prefix + msg
		}
		errorObj := map[string]any{
			"code":    jbErr.Code,
			"message": msg,
			"status":  jbErr.Status,
		}
		if jbErr.Code != errors.ErrInternal && jbErr.Details != nil {
			errorObj["details"] = jbErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
