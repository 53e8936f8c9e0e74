// Package picker supplies document and export paths to a session in place of
// GUI file dialogs. Every picker reports dismissal as a CANCELLED error.
package picker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hpungsan/jb/internal/errors"
)

// Static answers every dialog with preset values. An empty value means the
// dialog is dismissed.
type Static struct {
	OpenPath string
	// SavePath wins over SaveDir when both are set.
	SavePath string
	// SaveDir accepts the suggested file name inside this directory.
	SaveDir string
}

// PickOpenPath returns OpenPath.
func (s Static) PickOpenPath(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil || s.OpenPath == "" {
		return "", errors.NewCancelled("open dialog")
	}
	return s.OpenPath, nil
}

// PickSavePath returns SavePath, or defaultName inside SaveDir.
func (s Static) PickSavePath(ctx context.Context, defaultName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.NewCancelled("save dialog")
	}
	switch {
	case s.SavePath != "":
		return s.SavePath, nil
	case s.SaveDir != "":
		return filepath.Join(s.SaveDir, defaultName), nil
	default:
		return "", errors.NewCancelled("save dialog")
	}
}

// Prompt asks on a terminal. An empty answer to the open prompt, end of
// input, or "q" dismisses the dialog; an empty answer to the save prompt
// accepts the suggested name.
type Prompt struct {
	in  *bufio.Reader
	out io.Writer
	mu  sync.Mutex
}

// NewPrompt creates a Prompt reading answers from in and writing questions to out.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

// PickOpenPath asks for a document to open.
func (p *Prompt) PickOpenPath(ctx context.Context) (string, error) {
	answer, ok := p.ask(ctx, "Open journal: ")
	if !ok || answer == "" {
		return "", errors.NewCancelled("open dialog")
	}
	return answer, nil
}

// PickSavePath asks where to save, suggesting defaultName.
func (p *Prompt) PickSavePath(ctx context.Context, defaultName string) (string, error) {
	answer, ok := p.ask(ctx, fmt.Sprintf("Save as [%s]: ", defaultName))
	if !ok {
		return "", errors.NewCancelled("save dialog")
	}
	if answer == "" {
		return defaultName, nil
	}
	return answer, nil
}

func (p *Prompt) ask(ctx context.Context, question string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ctx.Err() != nil {
		return "", false
	}
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", false
	}
	line = strings.TrimSpace(line)
	if line == "q" {
		return "", false
	}
	return line, true
}
