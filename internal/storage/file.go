package storage

import (
	"context"
	"fmt"
	"os"
)

// FileLocation stores the license blob as a private file in the application
// data directory, owner-readable only.
type FileLocation struct {
	path string
}

// NewFileLocation creates a file-system location at path.
func NewFileLocation(path string) *FileLocation {
	return &FileLocation{path: path}
}

func (f *FileLocation) Name() string { return "file" }

func (f *FileLocation) Prepare(ctx context.Context) error { return nil }

func (f *FileLocation) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read license file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func (f *FileLocation) Write(ctx context.Context, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFileAtomic(f.path, blob)
}
