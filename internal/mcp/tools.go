package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. Argument names match the json tags of the request types
// in handlers.go.

var journalOpenToolDef = mcp.NewTool("journal_open",
	mcp.WithDescription("Open a .jb journal file. Any journal already open is saved and closed first."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path of the .jb file")),
)

var journalCreateToolDef = mcp.NewTool("journal_create",
	mcp.WithDescription("Create an empty journal at path and open it. The title is the file name without .jb. Fails if the file exists."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path of the new .jb file")),
)

var journalCloseToolDef = mcp.NewTool("journal_close",
	mcp.WithDescription("Write pending changes and close the open journal. Recent files are kept."),
)

var journalSaveToolDef = mcp.NewTool("journal_save",
	mcp.WithDescription("Write the open journal now instead of waiting for the autosave delay."),
)

var journalStatusToolDef = mcp.NewTool("journal_status",
	mcp.WithDescription("Report the open journal, its save status, open tabs and selected folder."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var journalTreeToolDef = mcp.NewTool("journal_tree",
	mcp.WithDescription("List the journal tree in display order: folders first, then entries, by name."),
	mcp.WithString("folder_id", mcp.Description("Folder to list (default: root)")),
	mcp.WithNumber("depth", mcp.Description("Levels to descend; 0 means unlimited")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var journalSearchToolDef = mcp.NewTool("journal_search",
	mcp.WithDescription("Find entries and folders whose names contain the query, ignoring case and extra whitespace."),
	mcp.WithString("query", mcp.Required(), mcp.Description("Text to look for")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var journalSettingsToolDef = mcp.NewTool("journal_settings",
	mcp.WithDescription("Change the journal's display settings."),
	mcp.WithNumber("sidebar_width", mcp.Description("Sidebar width in pixels")),
	mcp.WithString("theme", mcp.Description("light or dark"), mcp.Enum("light", "dark")),
)

var entryAddToolDef = mcp.NewTool("entry_add",
	mcp.WithDescription("Add an empty entry. Without parent_id it goes into the selected folder, or the root."),
	mcp.WithString("parent_id", mcp.Description("Folder to add to")),
	mcp.WithString("name", mcp.Description("Entry name (default: New Entry)")),
)

var entryReadToolDef = mcp.NewTool("entry_read",
	mcp.WithDescription("Read an entry's content, with a markdown rendering."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var entryWriteToolDef = mcp.NewTool("entry_write",
	mcp.WithDescription("Replace an entry's content. Content is stored as given: a block array or a string."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
	mcp.WithAny("content", mcp.Required(), mcp.Description("New content (JSON value)")),
)

var entryExportToolDef = mcp.NewTool("entry_export",
	mcp.WithDescription("Export an entry as markdown into the exports directory."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
)

var folderAddToolDef = mcp.NewTool("folder_add",
	mcp.WithDescription("Add an empty, expanded folder. Without parent_id it goes into the selected folder, or the root."),
	mcp.WithString("parent_id", mcp.Description("Folder to add to")),
	mcp.WithString("name", mcp.Description("Folder name (default: New Folder)")),
)

var folderExpandToolDef = mcp.NewTool("folder_expand",
	mcp.WithDescription("Expand or collapse a folder. Without expanded the folder is toggled."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Folder id")),
	mcp.WithBoolean("expanded", mcp.Description("Desired state")),
)

var folderSelectToolDef = mcp.NewTool("folder_select",
	mcp.WithDescription("Select the folder new entries and folders are added to. An empty id clears the selection."),
	mcp.WithString("id", mcp.Description("Folder id")),
)

var nodeRenameToolDef = mcp.NewTool("node_rename",
	mcp.WithDescription("Rename an entry or folder. Open tabs follow the new name."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
	mcp.WithString("name", mcp.Required(), mcp.Description("New name")),
)

var nodeMoveToolDef = mcp.NewTool("node_move",
	mcp.WithDescription("Move an entry or folder under another folder. A folder cannot move into itself or its descendants."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
	mcp.WithString("parent_id", mcp.Required(), mcp.Description("Destination folder id")),
	mcp.WithNumber("position", mcp.Description("Index among the destination's children (default: append)")),
)

var nodeDeleteToolDef = mcp.NewTool("node_delete",
	mcp.WithDescription("Delete an entry or folder with everything in it. Tabs of deleted entries are closed."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
	mcp.WithDestructiveHintAnnotation(true),
)

var tabOpenToolDef = mcp.NewTool("tab_open",
	mcp.WithDescription("Open a tab for an entry, or activate its existing tab."),
	mcp.WithString("entry_id", mcp.Required(), mcp.Description("Entry id")),
)

var tabCloseToolDef = mcp.NewTool("tab_close",
	mcp.WithDescription("Close a tab. The tab to its left becomes active."),
	mcp.WithString("tab_id", mcp.Required(), mcp.Description("Tab id")),
)

var tabActivateToolDef = mcp.NewTool("tab_activate",
	mcp.WithDescription("Activate a tab."),
	mcp.WithString("tab_id", mcp.Required(), mcp.Description("Tab id")),
)

var tabListToolDef = mcp.NewTool("tab_list",
	mcp.WithDescription("List open tabs in order."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var recentListToolDef = mcp.NewTool("recent_list",
	mcp.WithDescription("List recently opened journals, most recent first."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var recentRemoveToolDef = mcp.NewTool("recent_remove",
	mcp.WithDescription("Remove a journal from the recent list. The file is not touched."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Journal path")),
)

var recentClearToolDef = mcp.NewTool("recent_clear",
	mcp.WithDescription("Clear the recent list."),
)
