package isoforge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// expandUser replaces a leading "~" with the current user's home
// directory, like a shell would.
func expandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// resolvePath expands a home-directory shorthand and turns the path
// into an absolute one. No filesystem requirement is checked.
func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(expandUser(path))
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve %q: %v", ErrInvalidArgument, path, err)
	}
	return abs, nil
}

// requireFile resolves path and fails unless it names an existing
// regular file.
func requireFile(path string) (string, error) {
	abs, err := resolvePath(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: no such file: %s", ErrNotFound, abs)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: no such file: %s", ErrNotFound, abs)
	}
	return abs, nil
}

// requireDir resolves path and fails unless it names an existing
// directory.
func requireDir(path string) (string, error) {
	abs, err := resolvePath(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: no such directory: %s", ErrNotADirectory, abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotADirectory, abs)
	}
	return abs, nil
}

// requireAbsent resolves path and fails if anything already exists
// there. Output files go through this so nothing ever gets overwritten.
func requireAbsent(path string) (string, error) {
	abs, err := resolvePath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Lstat(abs); err == nil {
		return "", fmt.Errorf("%w: %s would be overwritten", ErrAlreadyExists, abs)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("%w: cannot stat %s: %v", ErrNotFound, abs, err)
	}
	return abs, nil
}

// requireParentDir resolves path and fails unless its parent is an
// existing directory, so the path itself can be created.
func requireParentDir(path string) (string, error) {
	abs, err := resolvePath(path)
	if err != nil {
		return "", err
	}
	if _, err := requireDir(filepath.Dir(abs)); err != nil {
		return "", err
	}
	return abs, nil
}
