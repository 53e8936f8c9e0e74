package main

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/jb/internal/config"
	"github.com/hpungsan/jb/internal/db"
	"github.com/hpungsan/jb/internal/errors"
	"github.com/hpungsan/jb/internal/export"
	"github.com/hpungsan/jb/internal/journal"
	"github.com/hpungsan/jb/internal/logging"
	"github.com/hpungsan/jb/internal/mcp"
	"github.com/hpungsan/jb/internal/picker"
	"github.com/hpungsan/jb/internal/session"
	"github.com/hpungsan/jb/internal/storage"
	"github.com/hpungsan/jb/internal/tree"
	"github.com/hpungsan/jb/internal/web"
)

// maxContentBytes caps entry content read from stdin.
const maxContentBytes = 8 << 20

// appEnv holds what the commands share. It is nil for --help and --version.
type appEnv struct {
	db         *sql.DB
	cfg        *config.Config
	exportsDir string
}

// session builds a session over the journal file store. A nil open picker
// leaves the session without dialogs; a nil save picker sends exports to
// the exports directory.
func (e *appEnv) session(open session.FilePicker, save export.SavePicker) *session.Session {
	if save == nil {
		save = picker.Static{SaveDir: e.exportsDir}
	}
	return session.New(session.Options{
		Store:    storage.NewFileStore(),
		Picker:   open,
		Recent:   db.NewRecentFiles(e.db, e.cfg.RecentFilesMax),
		Exporter: export.NewMarkdownExporter(save, e.cfg, e.exportsDir, logging.Named("export")),
		Config:   e.cfg,
		Logger:   logging.Named("session"),
	})
}

// withJournal opens the journal named by --journal, runs fn and closes the
// journal, writing any change fn made.
func (e *appEnv) withJournal(c *cli.Context, fn func(ctx context.Context, sess *session.Session) error) error {
	path := c.String("journal")
	if path == "" {
		return outputError(errors.NewInvalidRequest("--journal is required"))
	}

	ctx := c.Context
	sess := e.session(nil, nil)
	if _, err := sess.OpenDocument(ctx, path); err != nil {
		return outputError(err)
	}

	err := fn(ctx, sess)
	if closeErr := sess.Shutdown(ctx); err == nil && closeErr != nil {
		err = outputError(closeErr)
	}
	return err
}

// journalFlag names the journal a command works on.
func journalFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "journal",
		Aliases: []string{"j"},
		EnvVars: []string{"JB_JOURNAL"},
		Usage:   "Path of the .jb journal",
	}
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "jb",
		Usage:   "Journal of rich-text entries in nested folders",
		Version: Version,
		Commands: []*cli.Command{
			newCmd(env),
			treeCmd(env),
			addCmd(env),
			renameCmd(env),
			moveCmd(env),
			deleteCmd(env),
			expandCmd(env),
			showCmd(env),
			writeCmd(env),
			searchCmd(env),
			exportCmd(env),
			recentCmd(env),
			serveCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// nodeJSON is the CLI view of a node.
type nodeJSON struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Expanded *bool  `json:"expanded,omitempty"`
}

func toNodeJSON(n *journal.Node) nodeJSON {
	out := nodeJSON{ID: n.ID, Type: string(n.Type), Name: n.Name}
	if n.IsFolder() {
		expanded := n.Expanded
		out.Expanded = &expanded
	}
	return out
}

// newCmd creates the new command.
func newCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "Create an empty journal (asks for a path when none is given)",
		ArgsUsage: "[path]",
		Action: func(c *cli.Context) error {
			ctx := c.Context
			var sess *session.Session
			if c.NArg() > 0 {
				sess = env.session(nil, nil)
				if err := sess.CreateDocumentAt(ctx, c.Args().First()); err != nil {
					return outputError(err)
				}
			} else {
				sess = env.session(picker.NewPrompt(os.Stdin, c.App.ErrWriter), nil)
				ok, err := sess.CreateDocument(ctx)
				if err != nil {
					return outputError(err)
				}
				if !ok {
					return sess.Shutdown(ctx)
				}
			}

			doc := sess.Document()
			out := map[string]any{"path": sess.Path(), "title": doc.Title, "id": doc.ID}
			if err := sess.Shutdown(ctx); err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

// treeCmd creates the tree command.
func treeCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "tree",
		Usage: "Print the journal tree in display order",
		Flags: []cli.Flag{
			journalFlag(),
			&cli.StringFlag{Name: "folder", Aliases: []string{"f"}, Usage: "Folder to print (default: root)"},
			&cli.IntFlag{Name: "depth", Aliases: []string{"d"}, Usage: "Levels to print; 0 means all"},
			&cli.BoolFlag{Name: "ids", Usage: "Show node ids"},
		},
		Action: func(c *cli.Context) error {
			return env.withJournal(c, func(_ context.Context, sess *session.Session) error {
				folderID := c.String("folder")
				if folderID == "" {
					folderID = journal.RootID
				}
				folder, err := sess.Node(folderID)
				if err != nil {
					return outputError(err)
				}
				if !folder.IsFolder() {
					return outputError(errors.NewInvalidRequest("not a folder: " + folderID))
				}
				depth := c.Int("depth")
				if depth <= 0 {
					depth = -1
				}
				p := treePrinter{w: c.App.Writer, sess: sess, ids: c.Bool("ids")}
				title := folder.Name
				if folder.ID == journal.RootID {
					title = sess.Document().Title
				}
				fmt.Fprintln(c.App.Writer, title)
				p.print(folder, "", depth)
				return nil
			})
		},
	}
}

type treePrinter struct {
	w    io.Writer
	sess *session.Session
	ids  bool
}

func (p treePrinter) print(folder *journal.Node, indent string, depth int) {
	if depth == 0 {
		return
	}
	children := tree.SortedChildren(folder, p.sess.Language())
	for i, n := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		name := n.Name
		if n.IsFolder() {
			name += "/"
		}
		if p.ids {
			name += "  [" + n.ID + "]"
		}
		fmt.Fprintf(p.w, "%s%s%s\n", indent, branch, name)
		if n.IsFolder() {
			p.print(n, indent+next, depth-1)
		}
	}
}

// addCmd creates the add command.
func addCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Add an entry, or a folder with --folder",
		Flags: []cli.Flag{
			journalFlag(),
			&cli.BoolFlag{Name: "folder", Usage: "Add a folder instead of an entry"},
			&cli.StringFlag{Name: "parent", Aliases: []string{"p"}, Usage: "Parent folder id (default: root)"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Node name"},
		},
		Action: func(c *cli.Context) error {
			return env.withJournal(c, func(_ context.Context, sess *session.Session) error {
				add := sess.AddEntry
				if c.Bool("folder") {
					add = sess.AddFolder
				}
				n, err := add(c.String("parent"), c.String("name"))
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, toNodeJSON(n))
			})
		},
	}
}

// renameCmd creates the rename command.
func renameCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Rename an entry or folder",
		ArgsUsage: "<id> <name>",
		Flags:     []cli.Flag{journalFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return outputError(errors.NewInvalidRequest("usage: jb rename <id> <name>"))
			}
			id := c.Args().First()
			name := strings.Join(c.Args().Tail(), " ")
			return env.withJournal(c, func(_ context.Context, sess *session.Session) error {
				if err := sess.Rename(id, name); err != nil {
					return outputError(err)
				}
				n, err := sess.Node(id)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, toNodeJSON(n))
			})
		},
	}
}

// moveCmd creates the move command.
func moveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "move",
		Usage:     "Move an entry or folder under another folder",
		ArgsUsage: "<id> <parent-id>",
		Flags: []cli.Flag{
			journalFlag(),
			&cli.IntFlag{Name: "position", Value: tree.Append, Usage: "Index among the new parent's children (default: append)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return outputError(errors.NewInvalidRequest("usage: jb move <id> <parent-id>"))
			}
			id, parentID := c.Args().Get(0), c.Args().Get(1)
			position := tree.Append
			if c.IsSet("position") {
				position = max(c.Int("position"), 0)
			}
			return env.withJournal(c, func(_ context.Context, sess *session.Session) error {
				if err := sess.Move(id, parentID, position); err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, map[string]any{"id": id, "parent_id": parentID})
			})
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete an entry or a folder with everything in it",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{journalFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("usage: jb delete <id>"))
			}
			id := c.Args().First()
			return env.withJournal(c, func(_ context.Context, sess *session.Session) error {
				_, err := sess.Node(id)
				existed := err == nil
				if err := sess.Delete(id); err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, map[string]any{"id": id, "deleted": existed})
			})
		},
	}
}

// expandCmd creates the expand command.
func expandCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "expand",
		Usage:     "Toggle a folder's expanded state, or set it with --state",
		ArgsUsage: "<folder-id>",
		Flags: []cli.Flag{
			journalFlag(),
			&cli.StringFlag{Name: "state", Usage: "open or closed"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("usage: jb expand <folder-id>"))
			}
			id := c.Args().First()
			return env.withJournal(c, func(_ context.Context, sess *session.Session) error {
				var expanded bool
				var err error
				switch c.String("state") {
				case "":
					expanded, err = sess.ToggleFolderExpanded(id)
				case "open":
					expanded, err = true, sess.SetFolderExpanded(id, true)
				case "closed":
					expanded, err = false, sess.SetFolderExpanded(id, false)
				default:
					err = errors.NewInvalidRequest("state must be open or closed")
				}
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, map[string]any{"id": id, "expanded": expanded})
			})
		},
	}
}

// showCmd creates the show command.
func showCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print an entry as markdown, or its raw content with --raw",
		ArgsUsage: "<entry-id>",
		Flags: []cli.Flag{
			journalFlag(),
			&cli.BoolFlag{Name: "raw", Usage: "Print the stored content JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("usage: jb show <entry-id>"))
			}
			id := c.Args().First()
			return env.withJournal(c, func(_ context.Context, sess *session.Session) error {
				n, err := sess.Node(id)
				if err != nil {
					return outputError(err)
				}
				if !n.IsEntry() {
					return outputError(errors.NewInvalidRequest("not an entry: " + id))
				}
				if c.Bool("raw") {
					_, err = fmt.Fprintf(c.App.Writer, "%s\n", n.Content)
					return err
				}
				md, err := export.Body(n.Name, n.Content)
				if err != nil {
					return outputError(errors.NewInvalidRequest("cannot convert entry content: " + err.Error()))
				}
				_, err = c.App.Writer.Write(md)
				return err
			})
		},
	}
}

// writeCmd creates the write command.
func writeCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "write",
		Usage:     "Replace an entry's content (reads JSON content from stdin)",
		ArgsUsage: "<entry-id>",
		Flags: []cli.Flag{
			journalFlag(),
			&cli.BoolFlag{Name: "text", Aliases: []string{"t"}, Usage: "Store stdin as a plain string"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("usage: jb write <entry-id>"))
			}
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("content must be piped via stdin"))
			}
			text, err := readStdin(maxContentBytes)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			var content json.RawMessage
			if c.Bool("text") {
				content, err = json.Marshal(text)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
			} else {
				content = json.RawMessage(text)
				if !json.Valid(content) {
					return outputError(errors.NewInvalidRequest("content is not valid JSON (use --text for plain text)"))
				}
			}

			id := c.Args().First()
			return env.withJournal(c, func(_ context.Context, sess *session.Session) error {
				if err := sess.UpdateEntryContent(id, content); err != nil {
					return outputError(err)
				}
				n, err := sess.Node(id)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, toNodeJSON(n))
			})
		},
	}
}

// searchCmd creates the search command.
func searchCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find entries and folders by name",
		ArgsUsage: "<query>",
		Flags:     []cli.Flag{journalFlag()},
		Action: func(c *cli.Context) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return outputError(errors.NewInvalidRequest("query is required"))
			}
			return env.withJournal(c, func(_ context.Context, sess *session.Session) error {
				matches, err := sess.Search(query)
				if err != nil {
					return outputError(err)
				}
				type hit struct {
					nodeJSON
					Path []string `json:"path"`
				}
				hits := make([]hit, 0, len(matches))
				for _, m := range matches {
					path := m.Path
					if path == nil {
						path = []string{}
					}
					hits = append(hits, hit{nodeJSON: toNodeJSON(m.Node), Path: path})
				}
				return outputJSON(c.App.Writer, map[string]any{"query": query, "hits": hits})
			})
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export an entry as markdown (default: into ~/.jb/exports)",
		ArgsUsage: "<entry-id>",
		Flags: []cli.Flag{
			journalFlag(),
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file path"},
			&cli.BoolFlag{Name: "ask", Usage: "Ask for the output path"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("usage: jb export <entry-id>"))
			}
			path := c.String("journal")
			if path == "" {
				return outputError(errors.NewInvalidRequest("--journal is required"))
			}

			var save export.SavePicker
			switch {
			case c.String("out") != "":
				save = picker.Static{SavePath: c.String("out")}
			case c.Bool("ask"):
				save = picker.NewPrompt(os.Stdin, c.App.ErrWriter)
			}

			ctx := c.Context
			sess := env.session(nil, save)
			if _, err := sess.OpenDocument(ctx, path); err != nil {
				return outputError(err)
			}
			defer func() { _ = sess.Shutdown(ctx) }()

			written, ok, err := sess.ExportEntry(ctx, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			if !ok {
				return outputJSON(c.App.Writer, map[string]any{"exported": false})
			}
			return outputJSON(c.App.Writer, map[string]any{"exported": true, "path": written})
		},
	}
}

// recentCmd creates the recent command and its subcommands.
func recentCmd(env *appEnv) *cli.Command {
	list := func(c *cli.Context, fn func(ctx context.Context, sess *session.Session) ([]journal.RecentFile, error)) error {
		sess := env.session(nil, nil)
		files, err := fn(c.Context, sess)
		if err != nil {
			return outputError(err)
		}
		return outputJSON(c.App.Writer, map[string]any{"files": files})
	}

	return &cli.Command{
		Name:  "recent",
		Usage: "List or edit recently opened journals",
		Action: func(c *cli.Context) error {
			return list(c, func(ctx context.Context, sess *session.Session) ([]journal.RecentFile, error) {
				return sess.RecentFiles(ctx)
			})
		},
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent journals, most recent first",
				Action: func(c *cli.Context) error {
					return list(c, func(ctx context.Context, sess *session.Session) ([]journal.RecentFile, error) {
						return sess.RecentFiles(ctx)
					})
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove a journal from the list (the file is kept)",
				ArgsUsage: "<path>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return outputError(errors.NewInvalidRequest("usage: jb recent remove <path>"))
					}
					return list(c, func(ctx context.Context, sess *session.Session) ([]journal.RecentFile, error) {
						return sess.RemoveRecentFile(ctx, c.Args().First())
					})
				},
			},
			{
				Name:  "clear",
				Usage: "Clear the list",
				Action: func(c *cli.Context) error {
					return list(c, func(ctx context.Context, sess *session.Session) ([]journal.RecentFile, error) {
						return sess.ClearRecentFiles(ctx)
					})
				},
			},
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Open a journal in the web viewer",
		Flags: []cli.Flag{
			journalFlag(),
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8484, Usage: "Port to listen on"},
			&cli.BoolFlag{Name: "mcp", Usage: "Also serve MCP tools on stdio against the same journal"},
			&cli.StringFlag{Name: "log-level", EnvVars: []string{"JB_LOG_LEVEL"}, Usage: "Log level for this server (overrides log_level in config)"},
		},
		Action: func(c *cli.Context) error {
			if c.IsSet("log-level") {
				logging.SetLevel(c.String("log-level"))
			}
			ctx := c.Context
			sess := env.session(picker.NewPrompt(os.Stdin, c.App.ErrWriter), nil)
			ok, err := sess.OpenDocument(ctx, c.String("journal"))
			if err != nil {
				return outputError(err)
			}
			if !ok {
				return nil
			}

			srv := web.NewServer(sess, Version, c.String("bind"), c.Int("port"))
			if !c.Bool("mcp") {
				err := web.Run(ctx, srv)
				if closeErr := sess.Shutdown(context.Background()); err == nil {
					err = closeErr
				}
				if err != nil {
					return outputError(err)
				}
				return nil
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			webErr := make(chan error, 1)
			go func() { webErr <- web.Run(ctx, srv) }()

			err = mcp.Run(ctx, sess, env.cfg, Version)
			cancel()
			if werr := <-webErr; err == nil && werr != nil && !stderrors.Is(werr, http.ErrServerClosed) {
				err = werr
			}
			if err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var jbErr *errors.JBError
	if stderrors.As(err, &jbErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", jbErr.Code, jbErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin, failing when it exceeds limit bytes.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("input exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}
