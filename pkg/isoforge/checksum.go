package isoforge

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// manifestName is the whole-tree integrity listing found at the root of
// an extracted installer image.
const manifestName = "md5sum.txt"

// RegenerateMD5Sums deletes the md5sum.txt at the root of treeRoot and
// rewrites it from scratch: one '<md5>  <relative path>' line for every
// regular file under the tree, in lexical walk order. Symlinks are
// skipped entirely, so a symlinked directory is never descended into.
//
// The manifest and the tree root are left read-only (0444/0555)
// afterwards, also when hashing fails. Not safe for concurrent calls on
// the same tree.
func RegenerateMD5Sums(treeRoot string) error {
	treeRoot, err := requireDir(treeRoot)
	if err != nil {
		return err
	}
	manifestPath := filepath.Join(treeRoot, manifestName)
	if _, err := os.Stat(manifestPath); err != nil {
		return fmt.Errorf("%w: no such file: %s", ErrNotFound, manifestPath)
	}

	if err := os.Chmod(manifestPath, 0o644); err != nil {
		return err
	}
	if err := os.Chmod(treeRoot, 0o755); err != nil {
		return err
	}
	defer func() {
		os.Chmod(manifestPath, 0o444)
		os.Chmod(treeRoot, 0o555)
	}()

	// The stale manifest goes away before the walk, so it never lists
	// itself.
	if err := os.Remove(manifestPath); err != nil {
		return err
	}

	files, err := regularFilesUnder(treeRoot)
	if err != nil {
		return err
	}

	// Hashing N independent files has no ordering constraint; only the
	// manifest lines must come out in walk order.
	sums := make([]string, len(files))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			sum, err := md5File(path)
			if err != nil {
				return err
			}
			sums[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out, err := os.OpenFile(manifestPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	buf := bufio.NewWriter(out)
	for i, path := range files {
		rel, err := filepath.Rel(treeRoot, path)
		if err != nil {
			out.Close()
			return err
		}
		// Exactly two spaces between digest and path.
		fmt.Fprintf(buf, "%s  %s\n", sums[i], filepath.ToSlash(rel))
	}
	if err := buf.Flush(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// regularFilesUnder lists every regular file below root in lexical
// order. Symlinks, including symlinks to directories, are not followed
// and not listed.
func regularFilesUnder(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func md5File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
