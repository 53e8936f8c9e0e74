package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/jb/internal/config"
	"github.com/hpungsan/jb/internal/errors"
)

type stubPicker struct {
	path        string
	err         error
	defaultName string
}

func (p *stubPicker) PickSavePath(_ context.Context, defaultName string) (string, error) {
	p.defaultName = defaultName
	return p.path, p.err
}

func TestExport_WritesMarkdown(t *testing.T) {
	dir := t.TempDir()
	picker := &stubPicker{path: filepath.Join(dir, "monday.md")}
	e := NewMarkdownExporter(picker, config.DefaultConfig(), dir, nil)

	content := json.RawMessage(`[{"type":"paragraph","content":[{"type":"text","text":"hello"}]}]`)
	path, err := e.Export(context.Background(), content, "Monday")
	require.NoError(t, err)

	assert.Equal(t, "Monday.md", picker.defaultName)
	assert.Equal(t, picker.path, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "---\ntitle: Monday\n"))
	assert.True(t, strings.HasSuffix(string(data), "# Monday\n\nhello\n\n"))
}

func TestExport_BareNameGoesToExportsDir(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DisableFrontmatter = true
	e := NewMarkdownExporter(&stubPicker{path: "plain.md"}, cfg, dir, nil)

	path, err := e.Export(context.Background(), json.RawMessage(`"text"`), "Plain")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "plain.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Plain\n\ntext\n", string(data))
}

func TestExport_Cancelled(t *testing.T) {
	e := NewMarkdownExporter(&stubPicker{err: errors.NewCancelled("save dialog")}, nil, t.TempDir(), nil)

	_, err := e.Export(context.Background(), json.RawMessage(`[]`), "x")
	assert.True(t, errors.IsCancelled(err))
}

func TestExport_RejectsPathOutsideAllowedDirs(t *testing.T) {
	other := filepath.Join(t.TempDir(), "x.md")
	e := NewMarkdownExporter(&stubPicker{path: other}, nil, t.TempDir(), nil)

	_, err := e.Export(context.Background(), json.RawMessage(`[]`), "x")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, statErr := os.Stat(other)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExport_BadContent(t *testing.T) {
	dir := t.TempDir()
	e := NewMarkdownExporter(&stubPicker{path: filepath.Join(dir, "x.md")}, nil, dir, nil)

	_, err := e.Export(context.Background(), json.RawMessage(`42`), "x")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
