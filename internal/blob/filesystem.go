// Package blob implements core.BlobStorage on a local directory: one
// file per message, named by id text form plus the optional original
// file name. Large streamed payloads land here so the persistence
// backend only ever sees small metadata records.
package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vitaliisemenov/msg-store/internal/core"
)

// FileStore stores blobs as files under a root directory.
// File names are "<id>" or "<id>_<name>"; the id text form contains only
// digits and dashes, so the first underscore splits id from name.
type FileStore struct {
	root   string
	logger *slog.Logger
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string, logger *slog.Logger) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("file storage path is empty")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create file storage dir %s: %w", root, err)
	}
	logger.Info("file storage ready", "path", root)
	return &FileStore{root: root, logger: logger}, nil
}

// Add streams r into the blob file for id and returns the byte count
// written. An existing blob for the same id is replaced.
func (f *FileStore) Add(_ context.Context, id core.ID, name string, r io.Reader) (int64, error) {
	path := filepath.Join(f.root, fileName(id, name))
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	n, copyErr := io.Copy(dst, r)
	closeErr := dst.Close()
	if copyErr != nil {
		return n, copyErr
	}
	return n, closeErr
}

// Get opens the blob for id, or returns core.ErrMsgNotFound.
func (f *FileStore) Get(_ context.Context, id core.ID) (io.ReadCloser, error) {
	path, err := f.find(id)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Del removes the blob for id, or returns core.ErrMsgNotFound.
func (f *FileStore) Del(_ context.Context, id core.ID) error {
	path, err := f.find(id)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// List enumerates stored blobs for startup recovery.
func (f *FileStore) List(_ context.Context) ([]core.BlobEntry, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, err
	}
	var out []core.BlobEntry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		idPart, name, _ := strings.Cut(e.Name(), "_")
		id, err := core.ParseID(idPart)
		if err != nil {
			f.logger.Warn("skipping foreign file in blob dir", "file", e.Name())
			continue
		}
		out = append(out, core.BlobEntry{ID: id, Name: name})
	}
	return out, nil
}

// find locates the blob file for id regardless of its name suffix.
func (f *FileStore) find(id core.ID) (string, error) {
	prefix := id.String()
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if e.Name() == prefix || strings.HasPrefix(e.Name(), prefix+"_") {
			return filepath.Join(f.root, e.Name()), nil
		}
	}
	return "", core.ErrMsgNotFound
}

func fileName(id core.ID, name string) string {
	if name == "" {
		return id.String()
	}
	return id.String() + "_" + sanitize(name)
}

// sanitize keeps supplied file names from escaping the blob directory.
func sanitize(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "-")
	if name == "." || name == ".." {
		return "file"
	}
	return name
}
