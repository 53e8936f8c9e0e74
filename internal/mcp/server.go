package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/jb/internal/config"
	"github.com/hpungsan/jb/internal/session"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"journal", "entry", "folder", "node", "tab", "recent"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"journal_open": {
		def:     journalOpenToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleJournalOpen },
	},
	"journal_create": {
		def:     journalCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleJournalCreate },
	},
	"journal_close": {
		def:     journalCloseToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleJournalClose },
	},
	"journal_save": {
		def:     journalSaveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleJournalSave },
	},
	"journal_status": {
		def:     journalStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleJournalStatus },
	},
	"journal_tree": {
		def:     journalTreeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleJournalTree },
	},
	"journal_search": {
		def:     journalSearchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleJournalSearch },
	},
	"journal_settings": {
		def:     journalSettingsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleJournalSettings },
	},
	"entry_add": {
		def:     entryAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEntryAdd },
	},
	"entry_read": {
		def:     entryReadToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEntryRead },
	},
	"entry_write": {
		def:     entryWriteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEntryWrite },
	},
	"entry_export": {
		def:     entryExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEntryExport },
	},
	"folder_add": {
		def:     folderAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFolderAdd },
	},
	"folder_expand": {
		def:     folderExpandToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFolderExpand },
	},
	"folder_select": {
		def:     folderSelectToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFolderSelect },
	},
	"node_rename": {
		def:     nodeRenameToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNodeRename },
	},
	"node_move": {
		def:     nodeMoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNodeMove },
	},
	"node_delete": {
		def:     nodeDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNodeDelete },
	},
	"tab_open": {
		def:     tabOpenToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTabOpen },
	},
	"tab_close": {
		def:     tabCloseToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTabClose },
	},
	"tab_activate": {
		def:     tabActivateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTabActivate },
	},
	"tab_list": {
		def:     tabListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTabList },
	},
	"recent_list": {
		def:     recentListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRecentList },
	},
	"recent_remove": {
		def:     recentRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRecentRemove },
	},
	"recent_clear": {
		def:     recentClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRecentClear },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "entry_add" → "entry").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with jb tools registered over sess.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(sess *session.Session, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"jb",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(sess, cfg)

	// Types first, then individual tools.
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run serves sess over stdio until the client disconnects, then closes the
// open document so pending changes are written.
func Run(ctx context.Context, sess *session.Session, cfg *config.Config, version string) error {
	s := NewServer(sess, cfg, version)
	err := server.ServeStdio(s)
	if closeErr := sess.Shutdown(ctx); err == nil {
		err = closeErr
	}
	return err
}
