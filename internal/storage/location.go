// Package storage provides the three independent blob stores the license
// system persists its signed record to: a JSON preference store, an embedded
// SQLite database, and a private file. Each location holds one opaque blob
// under a fixed key; none is authoritative. Consensus across them is the
// validation engine's job, not theirs.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Location is one independently readable/writable blob store.
// Read returns (nil, nil) when no record is present; callers treat read
// errors and absence the same way, but the distinction is logged.
type Location interface {
	Name() string
	Prepare(ctx context.Context) error
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, blob []byte) error
}

// writeFileAtomic writes data via a temp file and rename so a crash mid-write
// never leaves a torn record behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename %s: %w", tmpName, err)
	}
	return nil
}
