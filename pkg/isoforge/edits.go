package isoforge

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	cp "github.com/otiai10/copy"
)

// A TreeEdit is one declarative modification applied to an extracted
// image tree before its manifest is regenerated. Edits grab write
// permission only on the paths they touch and give it back when done.
type TreeEdit interface {
	Apply(root string) error
}

// Substitute replaces every occurrence of Placeholder with Value in the
// files matched by Glob, which is interpreted relative to the tree
// root. Matching directories are ignored; an empty match set is not an
// error.
type Substitute struct {
	Glob        string
	Placeholder string
	Value       string
}

func (s Substitute) Apply(root string) error {
	matches, err := filepath.Glob(filepath.Join(root, s.Glob))
	if err != nil {
		return fmt.Errorf("%w: bad glob %q: %v", ErrInvalidArgument, s.Glob, err)
	}
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		if info.IsDir() {
			continue
		}
		err = withWritable([]string{filepath.Dir(path), path}, func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			replaced := bytes.ReplaceAll(data, []byte(s.Placeholder), []byte(s.Value))
			return os.WriteFile(path, replaced, info.Mode().Perm())
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RemoveSubtree deletes the subtree at Path, relative to the tree root.
// A subtree that is already gone counts as success.
type RemoveSubtree struct {
	Path string
}

func (r RemoveSubtree) Apply(root string) error {
	target := filepath.Join(root, r.Path)
	if _, err := os.Lstat(target); os.IsNotExist(err) {
		return nil
	}
	return withWritable([]string{filepath.Dir(target)}, func() error {
		if err := makeTreeWritable(target); err != nil {
			return err
		}
		return os.RemoveAll(target)
	})
}

// CopyInto recursively copies the contents of the host directory Source
// into the tree at Dest (relative to the tree root, "." for the root
// itself). Destination paths the copy overwrites are read-only in an
// extracted tree, so each existing one gets a scoped write grant.
type CopyInto struct {
	Source string
	Dest   string
}

func (c CopyInto) Apply(root string) error {
	source, err := requireDir(c.Source)
	if err != nil {
		return err
	}
	target := filepath.Join(root, c.Dest)

	grant := []string{root}
	if target != root {
		if _, err := os.Lstat(target); err == nil {
			grant = append(grant, target)
		}
	}
	existing, err := overwrittenPaths(source, target)
	if err != nil {
		return err
	}
	grant = append(grant, existing...)

	return withWritable(grant, func() error {
		return cp.Copy(source, target)
	})
}

// overwrittenPaths lists the destination paths an incoming copy of
// source will land on that already exist under target, parents before
// children.
func overwrittenPaths(source, target string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		dest := filepath.Join(target, rel)
		if _, err := os.Lstat(dest); err == nil {
			paths = append(paths, dest)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// withWritable adds owner write permission to each path in order, runs
// fn, and restores the recorded modes in reverse order, also when fn
// fails.
func withWritable(paths []string, fn func() error) error {
	restore := make([]func(), 0, len(paths))
	defer func() {
		for i := len(restore) - 1; i >= 0; i-- {
			restore[i]()
		}
	}()
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		mode := info.Mode().Perm()
		if err := os.Chmod(path, mode|0o200); err != nil {
			return err
		}
		path, mode := path, mode
		restore = append(restore, func() { os.Chmod(path, mode) })
	}
	return fn()
}

// makeTreeWritable adds owner write permission to everything under
// root, so the subtree can be removed.
func makeTreeWritable(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return os.Chmod(path, info.Mode().Perm()|0o200)
	})
}
