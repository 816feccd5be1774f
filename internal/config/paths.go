package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all file system locations the license core touches.
// This is the single source of truth for license storage paths: the
// preference store, the embedded database, the private license blob, and the
// install identifier all live under the data directory.
type Paths struct {
	ExecutableDir string
	DataDir       string

	// The three redundant storage locations
	PrefsFile    string
	DatabaseFile string
	LicenseFile  string

	// Secondary (install-specific) identifier
	InstallIDFile string
}

// GetPaths returns the application paths relative to the executable location.
// Paths are always resolved from the executable directory, never the current
// working directory, so the app behaves identically however it is launched.
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	return PathsAt(filepath.Dir(exe)), nil
}

// PathsAt builds the path set under the given base directory. Tests use this
// with t.TempDir; GetPaths uses it with the executable directory.
func PathsAt(baseDir string) *Paths {
	dataDir := filepath.Join(baseDir, DefaultDataDir)
	return &Paths{
		ExecutableDir: baseDir,
		DataDir:       dataDir,
		PrefsFile:     filepath.Join(dataDir, PrefsFileName),
		DatabaseFile:  filepath.Join(dataDir, DatabaseFileName),
		LicenseFile:   filepath.Join(dataDir, LicenseFileName),
		InstallIDFile: filepath.Join(dataDir, InstallIDFileName),
	}
}

// EnsureDirs creates the data directory with owner-only permissions.
func (p *Paths) EnsureDirs() error {
	if err := os.MkdirAll(p.DataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", p.DataDir, err)
	}
	return nil
}
