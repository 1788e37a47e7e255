package targets

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/logger"
)

// LocalTarget writes exports into a directory on the local filesystem
type LocalTarget struct {
	dir string
	log logger.Logger
}

// NewLocalTarget creates the directory if needed
func NewLocalTarget(dir string, log logger.Logger) (*LocalTarget, error) {
	if dir == "" {
		return nil, errors.Newf("local: path is required").
			Component("export").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if log == nil {
		log = GetLogger()
	}

	absPath, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return nil, storeError(TypeLocal, "resolve path", err)
	}
	if err := os.MkdirAll(absPath, PermDir); err != nil {
		return nil, storeError(TypeLocal, "create directory", err)
	}

	return &LocalTarget{dir: absPath, log: log.Module(TypeLocal)}, nil
}

// NewLocalTargetFromMap reads the "path" setting
func NewLocalTargetFromMap(settings map[string]any, log logger.Logger) (*LocalTarget, error) {
	p := NewSettingsParser(settings, TypeLocal)
	dir := p.RequireString("path")
	if err := p.Error(); err != nil {
		return nil, err
	}
	return NewLocalTarget(dir, log)
}

// Name returns the name of this target
func (t *LocalTarget) Name() string { return TypeLocal }

// Dir returns the absolute directory files are written to
func (t *LocalTarget) Dir() string { return t.dir }

// Store writes r to <dir>/<name>. The file appears atomically.
func (t *LocalTarget) Store(ctx context.Context, name string, r io.Reader) error {
	if err := ValidateFileName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(t.dir, name)
	err := atomicWriteFile(target, "export-*.tmp", PermFile, func(f *os.File) error {
		_, err := io.Copy(f, r)
		return err
	})
	if err != nil {
		return storeError(TypeLocal, "write file", err)
	}
	t.log.Debug("export stored", logger.String("path", target))
	return nil
}

// atomicWriteFile writes into a temporary file next to targetPath and renames it into place
func atomicWriteFile(targetPath, tempPattern string, perm os.FileMode, write func(*os.File) error) error {
	tempFile, err := os.CreateTemp(filepath.Dir(targetPath), tempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	if err := tempFile.Chmod(perm); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := write(tempFile); err != nil {
		return err
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	success = true
	return nil
}
