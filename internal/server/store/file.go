package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chinbo/chinbo-server/internal/common"
	"github.com/chinbo/chinbo-server/internal/filex"
)

// FileDriver keeps the document in a local JSON file.
type FileDriver struct {
	path string
}

// NewFileDriver creates the parent directory of path if needed.
func NewFileDriver(path string) (*FileDriver, error) {
	if err := filex.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &FileDriver{path: path}, nil
}

func (d *FileDriver) Path() string {
	return d.path
}

func (d *FileDriver) Read(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.path, err)
	}
	return data, nil
}

func (d *FileDriver) Write(ctx context.Context, data []byte) error {
	return filex.WriteFileAtomic(d.path, data, 0o600)
}

func (d *FileDriver) Close() error {
	return nil
}
