// Package export writes journal entries out as markdown files.
package export

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/jb/internal/config"
	"github.com/hpungsan/jb/internal/errors"
	"github.com/hpungsan/jb/internal/storage"
)

// SavePicker chooses where an export goes. Dismissal is reported as a
// CANCELLED error.
type SavePicker interface {
	PickSavePath(ctx context.Context, defaultName string) (string, error)
}

// MarkdownExporter converts entry content to markdown and writes it to a
// picked path inside the allowed export directories.
type MarkdownExporter struct {
	picker     SavePicker
	cfg        *config.Config
	exportsDir string
	now        func() time.Time
	log        *zap.Logger
}

// NewMarkdownExporter creates an exporter. Bare file names returned by the
// picker are placed in exportsDir.
func NewMarkdownExporter(picker SavePicker, cfg *config.Config, exportsDir string, log *zap.Logger) *MarkdownExporter {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MarkdownExporter{
		picker:     picker,
		cfg:        cfg,
		exportsDir: exportsDir,
		now:        time.Now,
		log:        log,
	}
}

// DefaultName is the suggested file name for an entry.
func DefaultName(entryName string) string {
	return SanitizeForFilename(entryName) + Extension
}

// Export writes content under the entry name and returns the written path.
func (e *MarkdownExporter) Export(ctx context.Context, content json.RawMessage, name string) (string, error) {
	path, err := e.picker.PickSavePath(ctx, DefaultName(name))
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) && filepath.Dir(path) == "." && e.exportsDir != "" {
		path = filepath.Join(e.exportsDir, path)
	}
	if err := ValidatePath(path, e.exportsDir, e.cfg); err != nil {
		return "", err
	}

	var fm *Frontmatter
	if !e.cfg.DisableFrontmatter {
		fm = NewFrontmatter(name, e.now())
	}
	data, err := Document(name, content, fm)
	if err != nil {
		return "", errors.NewInvalidRequest("cannot convert entry content: " + err.Error())
	}

	if err := storage.WriteFileAtomic(path, data); err != nil {
		return "", errors.NewPersistence("export", path, err)
	}
	e.log.Info("entry exported", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}
