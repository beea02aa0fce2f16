package isoforge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "present.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	resolved, err := requireFile(file)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(resolved))

	_, err = requireFile(filepath.Join(dir, "absent.txt"))
	assert.ErrorIs(t, err, ErrNotFound)

	// A directory is no more a usable input file than a missing path.
	_, err = requireFile(dir)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequireDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := requireDir(dir)
	require.NoError(t, err)

	_, err = requireDir(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrNotADirectory)

	_, err = requireDir(file)
	assert.ErrorIs(t, err, ErrNotADirectory)
}

func TestRequireAbsent(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "taken")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := requireAbsent(file)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	resolved, err := requireAbsent(filepath.Join(dir, "free"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(resolved))
}

func TestRequireParentDir(t *testing.T) {
	dir := t.TempDir()

	_, err := requireParentDir(filepath.Join(dir, "new.iso"))
	require.NoError(t, err)

	_, err = requireParentDir(filepath.Join(dir, "missing", "new.iso"))
	assert.ErrorIs(t, err, ErrNotADirectory)
}

func TestExpandUser(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x.iso"), expandUser("~/x.iso"))
	assert.Equal(t, home, expandUser("~"))
	assert.Equal(t, "/tmp/~x", expandUser("/tmp/~x"))
}
