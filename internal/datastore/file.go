package datastore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/tphakala/linewalk/internal/errors"
)

const (
	fileKVPermissions = 0o600
	fileKVDirMode     = 0o755
)

// FileKV stores every key in one JSON document. Writes go to a temp file
// that is renamed over the original, so readers never see a partial document.
type FileKV struct {
	path string
	mu   sync.Mutex
}

// NewFileKV creates a file-backed store, creating the parent directory if needed
func NewFileKV(path string) (*FileKV, error) {
	if path == "" {
		return nil, errors.Newf("file datastore path is empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), fileKVDirMode); err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return &FileKV{path: path}, nil
}

func (f *FileKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[key]
	return v, ok, nil
}

func (f *FileKV) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	doc[key] = value
	return f.write(doc)
}

func (f *FileKV) Close() error { return nil }

func (f *FileKV) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, f.ioError(err, "read")
	}
	doc := map[string]string{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("path", f.path).
			Context("operation", "decode").
			Build()
	}
	return doc, nil
}

func (f *FileKV) write(doc map[string]string) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return f.ioError(err, "encode")
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".linewalk-kv-*.tmp")
	if err != nil {
		return f.ioError(err, "create_temp")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return f.ioError(err, "write")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return f.ioError(err, "sync")
	}
	if err := tmp.Close(); err != nil {
		return f.ioError(err, "close")
	}
	if err := os.Chmod(tmpName, fileKVPermissions); err != nil {
		return f.ioError(err, "chmod")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return f.ioError(err, "rename")
	}
	return nil
}

func (f *FileKV) ioError(err error, op string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryFileIO).
		Context("path", f.path).
		Context("operation", op).
		Build()
}
