package tree

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/jb/internal/errors"
	"github.com/hpungsan/jb/internal/journal"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// tickingClock advances one second per call.
func tickingClock() func() time.Time {
	now := t0
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newTestStore() *Store {
	return NewStore(WithClock(tickingClock()))
}

func entry(id, name string) *journal.Node {
	return &journal.Node{ID: id, Type: journal.TypeEntry, Name: name, Content: json.RawMessage(`[]`), Created: t0, Modified: t0}
}

func folder(id, name string, children ...*journal.Node) *journal.Node {
	if children == nil {
		children = []*journal.Node{}
	}
	return &journal.Node{ID: id, Type: journal.TypeFolder, Name: name, Children: children, Expanded: true, Created: t0, Modified: t0}
}

func docWith(children ...*journal.Node) *journal.Document {
	doc := journal.NewDocument("Test", journal.DefaultSettings(), t0)
	doc.Root.Children = children
	return doc
}

// sampleDoc builds:
//
//	root
//	├── a (folder)
//	│   ├── x (folder)
//	│   │   └── x1 (entry, content)
//	│   └── y (entry)
//	├── b (folder)
//	└── c (entry)
func sampleDoc() *journal.Document {
	x1 := entry("x1", "Deep")
	x1.Content = json.RawMessage(`[{"type":"paragraph","content":"hello"}]`)
	return docWith(
		folder("a", "A", folder("x", "X", x1), entry("y", "Y")),
		folder("b", "B"),
		entry("c", "C"),
	)
}

func childIDs(n *journal.Node) []string {
	ids := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestInsert(t *testing.T) {
	tests := []struct {
		name     string
		parent   string
		position int
		want     []string
	}{
		{"append", journal.RootID, Append, []string{"a", "b", "c", "n"}},
		{"front", journal.RootID, 0, []string{"n", "a", "b", "c"}},
		{"middle", journal.RootID, 1, []string{"a", "n", "b", "c"}},
		{"clamped past end", journal.RootID, 99, []string{"a", "b", "c", "n"}},
		{"negative clamps to front", journal.RootID, -5, []string{"n", "a", "b", "c"}},
		{"into nested folder", "a", 1, []string{"x", "n", "y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore()
			doc := sampleDoc()

			got, err := s.Insert(doc, tt.parent, entry("n", "New"), tt.position)
			require.NoError(t, err)
			assert.Equal(t, tt.want, childIDs(Find(got.Root, tt.parent)))
			assert.Equal(t, []string{"a", "b", "c"}, childIDs(doc.Root), "input must not change")
			assert.True(t, got.Modified.After(doc.Modified))
		})
	}
}

func TestInsert_Errors(t *testing.T) {
	s := newTestStore()
	doc := sampleDoc()

	_, err := s.Insert(doc, "missing", entry("n", "New"), Append)
	assert.True(t, errors.Is(err, errors.ErrParentNotFound))

	_, err = s.Insert(doc, "c", entry("n", "New"), Append)
	assert.True(t, errors.Is(err, errors.ErrParentNotFound), "entries cannot hold children")

	_, err = s.Insert(doc, journal.RootID, entry("y", "Dup"), Append)
	assert.True(t, errors.Is(err, errors.ErrDuplicateID))

	_, err = s.Insert(doc, "b", folder("f", "F", entry("x1", "Dup")), Append)
	assert.True(t, errors.Is(err, errors.ErrDuplicateID), "ids in the inserted subtree are checked")

	_, err = s.Insert(doc, "b", nil, Append)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = s.Insert(doc, "b", &journal.Node{ID: "z", Type: "page"}, Append)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestInsert_DoesNotAliasCallerNode(t *testing.T) {
	s := newTestStore()
	n := entry("n", "New")

	got, err := s.Insert(sampleDoc(), journal.RootID, n, Append)
	require.NoError(t, err)

	n.Name = "Mutated"
	n.Content[0] = '{'
	stored := Find(got.Root, "n")
	assert.Equal(t, "New", stored.Name)
	assert.Equal(t, "[]", string(stored.Content))
}

func TestExtract(t *testing.T) {
	s := newTestStore()
	doc := sampleDoc()

	node, got, err := s.Extract(doc, "x")
	require.NoError(t, err)

	assert.Equal(t, "x", node.ID)
	require.Len(t, node.Children, 1)
	assert.Nil(t, Find(got.Root, "x"))
	assert.Nil(t, Find(got.Root, "x1"))
	assert.NotNil(t, Find(doc.Root, "x1"), "input must not change")

	// The extracted subtree is a copy.
	node.Children[0].Content[2] = '!'
	assert.Equal(t, `[{"type":"paragraph","content":"hello"}]`, string(Find(doc.Root, "x1").Content))
}

func TestExtract_Errors(t *testing.T) {
	s := newTestStore()
	doc := sampleDoc()

	_, _, err := s.Extract(doc, journal.RootID)
	assert.True(t, errors.Is(err, errors.ErrRootImmutable))

	_, _, err = s.Extract(doc, "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestMove_RoundTripRestoresTree(t *testing.T) {
	s := newTestStore()
	doc := sampleDoc()
	original := doc.Root.Clone()

	moved, err := s.Move(doc, "x", "b", Append)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, childIDs(Find(moved.Root, "b")))
	assert.Equal(t, []string{"y"}, childIDs(Find(moved.Root, "a")))

	back, err := s.Move(moved, "x", "a", 0)
	require.NoError(t, err)

	assert.Equal(t, original, back.Root)
	assert.Equal(t, original, doc.Root, "input must not change")
}

func TestMove_IntoDescendantFails(t *testing.T) {
	s := newTestStore()
	doc := docWith(
		folder("p", "P", folder("q", "Q", folder("r", "R", entry("e", "E")))),
		folder("s", "S", folder("t", "T")),
	)
	snapshot := doc.Root.Clone()

	// Every folder with folder descendants, against each of those descendants.
	Walk(doc.Root, func(n *journal.Node, _ int) bool {
		if !n.IsFolder() || n.ID == journal.RootID {
			return true
		}
		Walk(n, func(d *journal.Node, _ int) bool {
			if d == n || !d.IsFolder() {
				return true
			}
			got, err := s.Move(doc, n.ID, d.ID, Append)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, errors.ErrCyclicMove), "move %s into %s: %v", n.ID, d.ID, err)
			return true
		})
		return true
	})

	assert.Equal(t, snapshot, doc.Root)
}

func TestMove_Errors(t *testing.T) {
	s := newTestStore()
	doc := sampleDoc()

	_, err := s.Move(doc, "a", "a", Append)
	assert.True(t, errors.Is(err, errors.ErrSelfParent))

	_, err = s.Move(doc, journal.RootID, "a", Append)
	assert.True(t, errors.Is(err, errors.ErrRootImmutable))

	_, err = s.Move(doc, "missing", "a", Append)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = s.Move(doc, "y", "c", Append)
	assert.True(t, errors.Is(err, errors.ErrParentNotFound))

	_, err = s.Move(doc, "y", "nowhere", Append)
	assert.True(t, errors.Is(err, errors.ErrParentNotFound))
}

func TestMove_PositionIndexesAfterDetach(t *testing.T) {
	s := newTestStore()
	doc := docWith(entry("e1", "1"), entry("e2", "2"), entry("e3", "3"))

	got, err := s.Move(doc, "e1", journal.RootID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e3", "e1"}, childIDs(got.Root))

	got, err = s.Move(doc, "e3", journal.RootID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"e3", "e1", "e2"}, childIDs(got.Root))

	got, err = s.Move(doc, "e3", journal.RootID, -7)
	require.NoError(t, err)
	assert.Equal(t, []string{"e3", "e1", "e2"}, childIDs(got.Root))

	got, err = s.Move(doc, "e1", journal.RootID, Append)
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e3", "e1"}, childIDs(got.Root))
}

func TestMove_PreservesNode(t *testing.T) {
	s := newTestStore()
	doc := sampleDoc()
	before := Find(doc.Root, "x").Clone()

	got, err := s.Move(doc, "x", journal.RootID, Append)
	require.NoError(t, err)
	assert.Equal(t, before, Find(got.Root, "x"))
}

func TestRename(t *testing.T) {
	s := newTestStore()
	doc := sampleDoc()

	got, err := s.Rename(doc, "y", "  Tuesday ")
	require.NoError(t, err)

	y := Find(got.Root, "y")
	assert.Equal(t, "Tuesday", y.Name)
	assert.True(t, y.Modified.After(t0))
	assert.Equal(t, "Y", Find(doc.Root, "y").Name)

	got, err = s.Rename(doc, "a", "Archive")
	require.NoError(t, err)
	assert.True(t, Find(got.Root, "a").Modified.After(t0), "folders are stamped as well")

	// Siblings off the changed path are shared.
	assert.Same(t, Find(doc.Root, "b"), Find(got.Root, "b"))
	assert.Same(t, Find(doc.Root, "x"), Find(got.Root, "x"))
}

func TestRename_Errors(t *testing.T) {
	s := newTestStore()
	doc := sampleDoc()

	_, err := s.Rename(doc, "y", "   ")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = s.Rename(doc, journal.RootID, "Top")
	assert.True(t, errors.Is(err, errors.ErrRootImmutable))

	_, err = s.Rename(doc, "missing", "Name")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestDelete(t *testing.T) {
	s := newTestStore()
	doc := sampleDoc()

	got, err := s.Delete(doc, "a")
	require.NoError(t, err)

	for _, id := range []string{"a", "x", "x1", "y"} {
		assert.Nil(t, Find(got.Root, id), "%s should be gone", id)
		assert.NotNil(t, Find(doc.Root, id), "%s should remain in the input", id)
	}
	assert.Equal(t, []string{"b", "c"}, childIDs(got.Root))
}

func TestDelete_AbsentIsNoop(t *testing.T) {
	s := newTestStore()
	doc := sampleDoc()

	got, err := s.Delete(doc, "missing")
	require.NoError(t, err)
	assert.Same(t, doc, got)
}

func TestDelete_Root(t *testing.T) {
	_, err := newTestStore().Delete(sampleDoc(), journal.RootID)
	assert.True(t, errors.Is(err, errors.ErrRootImmutable))
}

func TestSetExpanded(t *testing.T) {
	s := newTestStore()
	doc := sampleDoc()

	got, err := s.SetExpanded(doc, "a", false)
	require.NoError(t, err)
	assert.False(t, Find(got.Root, "a").Expanded)
	assert.True(t, Find(doc.Root, "a").Expanded)
	assert.Equal(t, t0, Find(got.Root, "a").Modified, "expanding does not stamp the folder")
	assert.True(t, got.Modified.After(doc.Modified))

	same, err := s.SetExpanded(got, "a", false)
	require.NoError(t, err)
	assert.Same(t, got, same)

	toggled, err := s.ToggleExpanded(got, "a")
	require.NoError(t, err)
	assert.True(t, Find(toggled.Root, "a").Expanded)

	_, err = s.SetExpanded(doc, "c", true)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = s.ToggleExpanded(doc, "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestUpdateContent(t *testing.T) {
	s := newTestStore()
	doc := sampleDoc()
	content := json.RawMessage(`[{"type":"paragraph","content":"updated"}]`)

	got, err := s.UpdateContent(doc, "c", content)
	require.NoError(t, err)

	c := Find(got.Root, "c")
	assert.JSONEq(t, string(content), string(c.Content))
	assert.True(t, c.Modified.After(t0))
	assert.Equal(t, "[]", string(Find(doc.Root, "c").Content))

	content[0] = '{'
	assert.Equal(t, byte('['), Find(got.Root, "c").Content[0], "content is copied")

	same, err := s.UpdateContent(got, "c", Find(got.Root, "c").Content)
	require.NoError(t, err)
	assert.Same(t, got, same)

	_, err = s.UpdateContent(doc, "a", content)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = s.UpdateContent(doc, "missing", content)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSetSettings(t *testing.T) {
	s := newTestStore()
	doc := sampleDoc()

	got, err := s.SetSettings(doc, journal.Settings{SidebarWidth: 420, Theme: journal.ThemeDark})
	require.NoError(t, err)
	assert.Equal(t, 420, got.Settings.SidebarWidth)
	assert.Equal(t, journal.ThemeLight, doc.Settings.Theme)
	assert.Same(t, doc.Root, got.Root)

	same, err := s.SetSettings(got, got.Settings)
	require.NoError(t, err)
	assert.Same(t, got, same)

	_, err = s.SetSettings(doc, journal.Settings{SidebarWidth: 0, Theme: journal.ThemeDark})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = s.SetSettings(doc, journal.Settings{SidebarWidth: 200, Theme: "sepia"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestScenario_WorkMonday(t *testing.T) {
	s := newTestStore()
	doc := docWith()

	work := journal.NewFolder("Work", s.Now())
	doc, err := s.Insert(doc, journal.RootID, work, Append)
	require.NoError(t, err)

	monday := journal.NewEntry("Monday", s.Now())
	doc, err = s.Insert(doc, work.ID, monday, Append)
	require.NoError(t, err)

	doc, err = s.Move(doc, monday.ID, journal.RootID, Append)
	require.NoError(t, err)

	require.Equal(t, []string{work.ID, monday.ID}, childIDs(doc.Root))
	assert.Empty(t, doc.Root.Children[0].Children)
	mondayModified := Find(doc.Root, monday.ID).Modified

	doc, err = s.Rename(doc, work.ID, "Office")
	require.NoError(t, err)
	assert.Equal(t, mondayModified, Find(doc.Root, monday.ID).Modified)
	assert.Equal(t, "Office", Find(doc.Root, work.ID).Name)
}
