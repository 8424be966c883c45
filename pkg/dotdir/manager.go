// Package dotdir manages the .memorag/ and ~/.memorag directories.
//
// The dot directory holds config.toml and the persisted chat transcript that
// "memorag chat --resume" picks back up.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the memorag directory.
	DirName = ".memorag"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .memorag/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.memorag/ dir
//  3. Home ~/.memorag/ dir
//
// If none is found it returns an empty path; callers fall back to defaults.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating memorag directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if local := filepath.Join(cwd, DirName); isDir(local) {
		return local, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	if global := filepath.Join(home, DirName); isDir(global) {
		return global, nil
	}

	return "", nil
}

// Create makes a .memorag/ directory in the working directory when local is
// true, otherwise in the home directory, and returns its absolute path.
func (m *Manager) Create(local bool) (string, error) {
	var base string
	var err error
	if local {
		base, err = os.Getwd()
	} else {
		base, err = os.UserHomeDir()
	}
	if err != nil {
		return "", fmt.Errorf("resolving base directory: %w", err)
	}

	dir := filepath.Join(base, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating memorag directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
