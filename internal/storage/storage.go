// Package storage reads and writes .jb document files on the local filesystem.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hpungsan/jb/internal/errors"
	"github.com/hpungsan/jb/internal/journal"
)

// Extension is the document file extension.
const Extension = ".jb"

// maxDocumentSize bounds how much of a file Read will load.
const maxDocumentSize = 64 << 20

// FileStore is the filesystem document store.
type FileStore struct{}

// NewFileStore creates a FileStore.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Read loads and validates the document at path.
func (s *FileStore) Read(ctx context.Context, path string) (*journal.Document, error) {
	if path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("read")
	}

	f, err := openFileNoFollowRead(path)
	if err != nil {
		if _, ok := err.(*errors.JBError); ok {
			return nil, err
		}
		return nil, errors.NewPersistence("read", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxDocumentSize+1))
	if err != nil {
		return nil, errors.NewPersistence("read", path, err)
	}
	if len(data) > maxDocumentSize {
		return nil, errors.NewInvalidDocument(path, "file exceeds 64 MiB")
	}

	doc, err := journal.Unmarshal(data)
	if err != nil {
		return nil, errors.NewInvalidDocument(path, err.Error())
	}
	if err := journal.Validate(doc); err != nil {
		return nil, errors.NewInvalidDocument(path, err.Error())
	}
	return doc, nil
}

// Write replaces the file at path with doc. The previous file survives any failure.
func (s *FileStore) Write(ctx context.Context, path string, doc *journal.Document) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if err := ctx.Err(); err != nil {
		return errors.NewCancelled("write")
	}
	data, err := journal.Marshal(doc)
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := WriteFileAtomic(path, data); err != nil {
		return errors.NewPersistence("write", path, err)
	}
	return nil
}

// WriteFileAtomic writes data to a temp file beside path and renames it into
// place, creating the parent directory if needed.
func WriteFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return fmt.Errorf("generate temp file name: %w", err)
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return err
	}
	// Close before rename (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("destination is a symlink")
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}

	success = true
	return nil
}
