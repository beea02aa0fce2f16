package isoforge

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cavaliergopher/cpio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newInitrdArchive writes a gzip-compressed single-entry newc archive
// named initrd.gz into its own read-only directory, the way it sits
// inside an extracted installer tree.
func newInitrdArchive(t *testing.T) string {
	t.Helper()
	parent := filepath.Join(t.TempDir(), "gtk")
	require.NoError(t, os.Mkdir(parent, 0o755))
	t.Cleanup(func() { os.Chmod(parent, 0o755) })

	path := filepath.Join(parent, initrdName)
	f, err := os.Create(path)
	require.NoError(t, err)

	gz := gzip.NewWriter(f)
	w := cpio.NewWriter(gz)
	content := []byte("#!/bin/sh\nexit 0\n")
	require.NoError(t, w.WriteHeader(&cpio.Header{
		Name: "init",
		Mode: 0o755,
		Size: int64(len(content)),
	}))
	_, err = w.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	require.NoError(t, os.Chmod(path, 0o444))
	require.NoError(t, os.Chmod(parent, 0o555))
	return path
}

// readInitrdEntries decompresses the archive and returns entry contents
// by name.
func readInitrdEntries(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	entries := make(map[string]string)
	r := cpio.NewReader(gz)
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		entries[hdr.Name] = string(data)
	}
	return entries
}

func newInitrdPayload(t *testing.T) (baseDir, relPath string) {
	t.Helper()
	baseDir = t.TempDir()
	relPath = "usr/share/graphics/logo_debian.png"
	require.NoError(t, os.MkdirAll(filepath.Join(baseDir, filepath.Dir(relPath)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, relPath), []byte("png-bytes"), 0o644))
	return baseDir, relPath
}

func TestAppendFileToInitrdInProcess(t *testing.T) {
	archive := newInitrdArchive(t)
	baseDir, relPath := newInitrdPayload(t)

	require.NoError(t, AppendFileToInitrdInProcess(archive, baseDir, relPath))

	entries := readInitrdEntries(t, archive)
	assert.Equal(t, "#!/bin/sh\nexit 0\n", entries["init"])
	assert.Equal(t, "png-bytes", entries[relPath])
}

func TestAppendFileToInitrdRestoresPermissions(t *testing.T) {
	archive := newInitrdArchive(t)
	baseDir, relPath := newInitrdPayload(t)

	require.NoError(t, AppendFileToInitrdInProcess(archive, baseDir, relPath))

	info, err := os.Stat(archive)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o444), info.Mode().Perm())

	info, err = os.Stat(filepath.Dir(archive))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o555), info.Mode().Perm())
}

func TestAppendFileToInitrdWrongName(t *testing.T) {
	// The name check runs before any file I/O, so even a path in a
	// directory that does not exist reports the format error.
	err := AppendFileToInitrd("/does/not/exist/ramdisk.gz", t.TempDir(), "x")
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestAppendFileToInitrdMissingArchive(t *testing.T) {
	baseDir, relPath := newInitrdPayload(t)
	err := AppendFileToInitrd(filepath.Join(t.TempDir(), initrdName), baseDir, relPath)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendFileToInitrdMissingPayload(t *testing.T) {
	archive := newInitrdArchive(t)
	err := AppendFileToInitrdInProcess(archive, t.TempDir(), "missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGzipRoundtrip(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(plain, []byte("round and round"), 0o644))

	packed := filepath.Join(dir, "packed.gz")
	require.NoError(t, gzipFile(packed, plain))

	unpacked := filepath.Join(dir, "unpacked")
	require.NoError(t, gunzipFile(unpacked, packed))

	data, err := os.ReadFile(unpacked)
	require.NoError(t, err)
	assert.Equal(t, "round and round", string(data))
}

func TestGunzipRejectsPlainFile(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(plain, []byte("not gzip"), 0o644))

	err := gunzipFile(filepath.Join(dir, "out"), plain)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
