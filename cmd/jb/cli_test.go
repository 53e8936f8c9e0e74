package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/jb/internal/config"
	"github.com/hpungsan/jb/internal/db"
)

// setupTestEnv creates a temporary database and exports directory for testing.
func setupTestEnv(t *testing.T) *appEnv {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return &appEnv{
		db:         database,
		cfg:        testConfig(),
		exportsDir: filepath.Join(tmpDir, "exports"),
	}
}

// testConfig returns a default config with short debounce delays.
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.SaveDebounceMs = 10
	cfg.ContentDebounceMs = 10
	return cfg
}

// run executes the CLI with args and returns what it wrote to stdout.
func run(t *testing.T, env *appEnv, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(env)
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"jb"}, args...))
	return out.String(), err
}

// mustRun is run for commands expected to succeed.
func mustRun(t *testing.T, env *appEnv, args ...string) string {
	t.Helper()
	out, err := run(t, env, args...)
	if err != nil {
		t.Fatalf("jb %s: %v", strings.Join(args, " "), err)
	}
	return out
}

// runJSON runs a command and decodes its JSON output.
func runJSON(t *testing.T, env *appEnv, args ...string) map[string]any {
	t.Helper()
	out := mustRun(t, env, args...)
	var m map[string]any
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	return m
}

// withStdin replaces stdin with a pipe carrying content for the duration of fn.
func withStdin(t *testing.T, content string, fn func()) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	go func() {
		_, _ = w.WriteString(content)
		w.Close()
	}()

	oldStdin := os.Stdin
	os.Stdin = r
	defer func() {
		os.Stdin = oldStdin
		r.Close()
	}()
	fn()
}

// newJournal creates a journal in a temp dir and returns its path.
func newJournal(t *testing.T, env *appEnv, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	out := runJSON(t, env, "new", path)
	if out["path"] != path {
		t.Fatalf("path = %v, want %s", out["path"], path)
	}
	return path
}

func TestCLINewAndTree(t *testing.T) {
	env := setupTestEnv(t)

	path := filepath.Join(t.TempDir(), "notes")
	out := runJSON(t, env, "new", path)
	if out["path"] != path+".jb" {
		t.Errorf("path = %v, want %s.jb", out["path"], path)
	}
	if out["title"] != "notes" {
		t.Errorf("title = %v, want notes", out["title"])
	}
	path += ".jb"

	work := runJSON(t, env, "add", "--journal", path, "--folder", "--name", "Work")
	if work["type"] != "folder" || work["expanded"] != true {
		t.Errorf("folder output = %v", work)
	}
	workID := work["id"].(string)
	runJSON(t, env, "add", "-j", path, "--parent", workID, "--name", "Monday")
	runJSON(t, env, "add", "-j", path, "--name", "zebra")
	runJSON(t, env, "add", "-j", path, "--name", "apple")

	got := mustRun(t, env, "tree", "-j", path)
	want := strings.Join([]string{
		"notes",
		"├── Work/",
		"│   └── Monday",
		"├── apple",
		"└── zebra",
		"",
	}, "\n")
	if got != want {
		t.Errorf("tree output:\n%s\nwant:\n%s", got, want)
	}

	got = mustRun(t, env, "tree", "-j", path, "--depth", "1")
	if strings.Contains(got, "Monday") {
		t.Errorf("depth 1 should hide Monday:\n%s", got)
	}

	got = mustRun(t, env, "tree", "-j", path, "--folder", workID, "--ids")
	if !strings.HasPrefix(got, "Work\n") || !strings.Contains(got, "Monday  [") {
		t.Errorf("folder tree output:\n%s", got)
	}
}

func TestCLINew_RefusesExisting(t *testing.T) {
	env := setupTestEnv(t)
	path := newJournal(t, env, "notes.jb")

	if _, err := run(t, env, "new", path); err == nil {
		t.Fatal("expected error creating over an existing journal")
	}
}

func TestCLIJournalFromEnv(t *testing.T) {
	env := setupTestEnv(t)
	path := newJournal(t, env, "diary.jb")
	t.Setenv("JB_JOURNAL", path)

	runJSON(t, env, "add", "--name", "Today")
	got := mustRun(t, env, "tree")
	if !strings.Contains(got, "Today") {
		t.Errorf("tree output missing Today:\n%s", got)
	}
}

func TestCLIRenameMoveDelete(t *testing.T) {
	env := setupTestEnv(t)
	path := newJournal(t, env, "notes.jb")

	outer := runJSON(t, env, "add", "-j", path, "--folder", "--name", "outer")["id"].(string)
	inner := runJSON(t, env, "add", "-j", path, "--folder", "--parent", outer, "--name", "inner")["id"].(string)
	entry := runJSON(t, env, "add", "-j", path, "--name", "draft")["id"].(string)

	renamed := runJSON(t, env, "rename", "-j", path, entry, "final", "draft")
	if renamed["name"] != "final draft" {
		t.Errorf("name = %v, want final draft", renamed["name"])
	}

	runJSON(t, env, "move", "-j", path, entry, inner)
	got := mustRun(t, env, "tree", "-j", path)
	if !strings.Contains(got, "│       └── final draft") {
		t.Errorf("entry not under inner:\n%s", got)
	}

	if _, err := run(t, env, "move", "-j", path, outer, inner); err == nil {
		t.Error("expected error moving a folder into its descendant")
	}
	if _, err := run(t, env, "move", "-j", path, outer, outer); err == nil {
		t.Error("expected error moving a folder into itself")
	}

	deleted := runJSON(t, env, "delete", "-j", path, outer)
	if deleted["deleted"] != true {
		t.Errorf("deleted = %v, want true", deleted["deleted"])
	}
	again := runJSON(t, env, "delete", "-j", path, outer)
	if again["deleted"] != false {
		t.Errorf("second delete = %v, want false", again["deleted"])
	}

	got = mustRun(t, env, "tree", "-j", path)
	if got != "notes\n" {
		t.Errorf("tree after delete:\n%q", got)
	}
}

func TestCLIMovePosition(t *testing.T) {
	env := setupTestEnv(t)
	path := newJournal(t, env, "notes.jb")

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		ids = append(ids, runJSON(t, env, "add", "-j", path, "--name", name)["id"].(string))
	}

	// Stored order, not display order.
	stored := func() string {
		t.Helper()
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		var doc struct {
			Structure struct {
				Children []struct {
					Name string `json:"name"`
				} `json:"children"`
			} `json:"structure"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatal(err)
		}
		var names []string
		for _, c := range doc.Structure.Children {
			names = append(names, c.Name)
		}
		return strings.Join(names, ",")
	}

	tests := []struct {
		flags []string
		id    string
		want  string
	}{
		{[]string{"--position=-1"}, ids[2], "c,a,b"},
		{nil, ids[2], "a,b,c"},
		{[]string{"--position", "1"}, ids[0], "b,a,c"},
	}
	for _, tt := range tests {
		args := append([]string{"move", "-j", path}, tt.flags...)
		runJSON(t, env, append(args, tt.id, "root")...)
		if got := stored(); got != tt.want {
			t.Errorf("move %v: order = %s, want %s", tt.flags, got, tt.want)
		}
	}
}

func TestCLIExpand(t *testing.T) {
	env := setupTestEnv(t)
	path := newJournal(t, env, "notes.jb")
	id := runJSON(t, env, "add", "-j", path, "--folder", "--name", "Work")["id"].(string)

	if out := runJSON(t, env, "expand", "-j", path, id); out["expanded"] != false {
		t.Errorf("toggle = %v, want false", out["expanded"])
	}
	if out := runJSON(t, env, "expand", "-j", path, "--state", "open", id); out["expanded"] != true {
		t.Errorf("open = %v, want true", out["expanded"])
	}
	if _, err := run(t, env, "expand", "-j", path, "--state", "sideways", id); err == nil {
		t.Error("expected error for an unknown state")
	}
}

func TestCLIWriteShow(t *testing.T) {
	env := setupTestEnv(t)
	path := newJournal(t, env, "notes.jb")
	id := runJSON(t, env, "add", "-j", path, "--name", "Monday")["id"].(string)

	withStdin(t, "went *hiking*\n", func() {
		mustRun(t, env, "write", "-j", path, "--text", id)
	})
	got := mustRun(t, env, "show", "-j", path, id)
	if got != "# Monday\n\nwent *hiking*\n" {
		t.Errorf("show output = %q", got)
	}

	blocks := `[{"type":"checkListItem","props":{"checked":true},"content":[{"type":"text","text":"pack","styles":{}}]}]`
	withStdin(t, blocks, func() {
		mustRun(t, env, "write", "-j", path, id)
	})
	got = mustRun(t, env, "show", "-j", path, id)
	if !strings.Contains(got, "- [x] pack") {
		t.Errorf("show output = %q", got)
	}
	// The journal file is indented, so compare compacted JSON.
	raw := mustRun(t, env, "show", "-j", path, "--raw", id)
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(raw)); err != nil {
		t.Fatalf("raw output is not JSON: %v\n%s", err, raw)
	}
	if compact.String() != blocks {
		t.Errorf("raw output = %s", compact.String())
	}

	withStdin(t, "not json", func() {
		if _, err := run(t, env, "write", "-j", path, id); err == nil {
			t.Error("expected error for invalid JSON content")
		}
	})
}

func TestCLISearch(t *testing.T) {
	env := setupTestEnv(t)
	path := newJournal(t, env, "notes.jb")
	work := runJSON(t, env, "add", "-j", path, "--folder", "--name", "Work")["id"].(string)
	runJSON(t, env, "add", "-j", path, "--parent", work, "--name", "Monday  Standup")
	runJSON(t, env, "add", "-j", path, "--name", "Groceries")

	out := runJSON(t, env, "search", "-j", path, "monday", "standup")
	hits := out["hits"].([]any)
	if len(hits) != 1 {
		t.Fatalf("hits = %v, want 1", hits)
	}
	hit := hits[0].(map[string]any)
	if hit["name"] != "Monday  Standup" {
		t.Errorf("hit name = %v", hit["name"])
	}
	if p := hit["path"].([]any); len(p) != 1 || p[0] != "Work" {
		t.Errorf("hit path = %v, want [Work]", p)
	}

	if _, err := run(t, env, "search", "-j", path); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestCLIExport(t *testing.T) {
	env := setupTestEnv(t)
	path := newJournal(t, env, "notes.jb")
	id := runJSON(t, env, "add", "-j", path, "--name", "Trip: Day 1")["id"].(string)
	withStdin(t, "sunny", func() {
		mustRun(t, env, "write", "-j", path, "--text", id)
	})

	out := runJSON(t, env, "export", "-j", path, id)
	if out["exported"] != true {
		t.Fatalf("exported = %v", out["exported"])
	}
	written := out["path"].(string)
	if filepath.Dir(written) != env.exportsDir {
		t.Errorf("exported to %s, want inside %s", written, env.exportsDir)
	}
	data, err := os.ReadFile(written)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "---\n") || !strings.Contains(string(data), "sunny") {
		t.Errorf("export content:\n%s", data)
	}

	outside := filepath.Join(t.TempDir(), "x.md")
	if _, err := run(t, env, "export", "-j", path, "--out", outside, id); err == nil {
		t.Error("expected error exporting outside the allowed directories")
	}
}

func TestCLIRecent(t *testing.T) {
	env := setupTestEnv(t)
	first := newJournal(t, env, "first.jb")
	second := newJournal(t, env, "second.jb")

	files := runJSON(t, env, "recent")["files"].([]any)
	if len(files) != 2 {
		t.Fatalf("files = %v, want 2", files)
	}
	if files[0].(map[string]any)["path"] != second {
		t.Errorf("most recent = %v, want %s", files[0], second)
	}

	files = runJSON(t, env, "recent", "remove", second)["files"].([]any)
	if len(files) != 1 || files[0].(map[string]any)["path"] != first {
		t.Errorf("after remove = %v", files)
	}
	if _, err := os.Stat(second); err != nil {
		t.Errorf("remove deleted the journal file: %v", err)
	}

	files = runJSON(t, env, "recent", "clear")["files"].([]any)
	if len(files) != 0 {
		t.Errorf("after clear = %v", files)
	}
}

func TestCLIErrorHandling(t *testing.T) {
	env := setupTestEnv(t)
	path := newJournal(t, env, "notes.jb")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing journal flag", []string{"tree"}, "[INVALID_REQUEST]"},
		{"missing journal file", []string{"tree", "-j", filepath.Join(t.TempDir(), "nope.jb")}, "[FILE_NOT_FOUND]"},
		{"unknown node", []string{"rename", "-j", path, "nope", "x"}, "[NOT_FOUND]"},
		{"rename root", []string{"rename", "-j", path, "root", "x"}, "[ROOT_IMMUTABLE]"},
		{"show folder", []string{"show", "-j", path, "root"}, "[INVALID_REQUEST]"},
		{"rename without name", []string{"rename", "-j", path, "root"}, "[INVALID_REQUEST]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, env, tt.args...)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.HasPrefix(err.Error(), tt.want) {
				t.Errorf("error = %q, want prefix %s", err.Error(), tt.want)
			}
		})
	}
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"jb"}, expected: false},
		{name: "tree command", args: []string{"jb", "tree"}, expected: true},
		{name: "serve command", args: []string{"jb", "serve"}, expected: true},
		{name: "recent command", args: []string{"jb", "recent"}, expected: true},
		{name: "help flag", args: []string{"jb", "--help"}, expected: true},
		{name: "short version flag", args: []string{"jb", "-v"}, expected: true},
		{name: "unknown arg defaults to MCP", args: []string{"jb", "--unknown"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"jb"}, expected: false},
		{name: "help flag", args: []string{"jb", "--help"}, expected: true},
		{name: "short help flag", args: []string{"jb", "-h"}, expected: true},
		{name: "version flag", args: []string{"jb", "--version"}, expected: true},
		{name: "help subcommand", args: []string{"jb", "help"}, expected: true},
		{name: "tree command is not help", args: []string{"jb", "tree"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isHelpOrVersion(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestHelpWithoutEnv(t *testing.T) {
	app := newCLIApp(nil)
	var out bytes.Buffer
	app.Writer = &out
	if err := app.Run([]string{"jb", "--help"}); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	if !strings.Contains(out.String(), "serve") {
		t.Errorf("help output missing commands:\n%s", out.String())
	}
}

// TestReadStdinWithLimit tests the readStdin function respects size limits.
func TestReadStdinWithLimit(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		withStdin(t, "small content", func() {
			result, err := readStdin(1000)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if result != "small content" {
				t.Errorf("expected %q, got %q", "small content", result)
			}
		})
	})

	t.Run("exceeds limit", func(t *testing.T) {
		withStdin(t, strings.Repeat("x", 100), func() {
			if _, err := readStdin(50); err == nil {
				t.Error("expected error for content exceeding limit, got nil")
			}
		})
	})
}
