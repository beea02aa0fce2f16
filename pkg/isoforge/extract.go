package isoforge

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/filesystem/iso9660"
)

// ExtractISO unpacks the full tree of sourceImage into outputDir using
// xorriso, keeping the directory structure and file permissions recorded
// in the image. outputDir must already exist. On failure the caller must
// discard outputDir; no partial-extraction recovery is attempted.
func ExtractISO(outputDir, sourceImage string) error {
	outputDir, err := requireDir(outputDir)
	if err != nil {
		return err
	}
	sourceImage, err = requireFile(sourceImage)
	if err != nil {
		return err
	}

	cmd := exec.Command("xorriso",
		"-osirrox", "on",
		"-indev", sourceImage,
		"-extract", "/", outputDir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: extracting %s: %v\n%s", ErrProcessFailure, sourceImage, err, out)
	}
	return nil
}

// ExtractISOInProcess unpacks sourceImage with the iso9660 filesystem
// driver instead of shelling out to xorriso. Unlike ExtractISO it does
// not reproduce the permissions recorded in the image; directories come
// out 0755 and files 0644.
func ExtractISOInProcess(outputDir, sourceImage string) error {
	outputDir, err := requireDir(outputDir)
	if err != nil {
		return err
	}
	sourceImage, err = requireFile(sourceImage)
	if err != nil {
		return err
	}

	disk, err := diskfs.Open(sourceImage, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", ErrInvalidFormat, sourceImage, err)
	}
	fs, err := disk.GetFilesystem(0)
	if err != nil {
		return fmt.Errorf("%w: no filesystem in %s: %v", ErrInvalidFormat, sourceImage, err)
	}
	return extractSubtree(outputDir, "/", fs)
}

// Recursively extracts one image directory into dstPath.
func extractSubtree(dstPath string, path string, fs filesystem.FileSystem) error {
	entries, err := fs.ReadDir(path)
	if err != nil {
		return fmt.Errorf("%w: reading image directory %s: %v", ErrInvalidFormat, path, err)
	}
	for _, entry := range entries {
		fullPath := filepath.Join(path, entry.Name())

		if entry.IsDir() {
			if err := os.Mkdir(filepath.Join(dstPath, fullPath), 0o755); err != nil {
				return err
			}
			if err := extractSubtree(dstPath, fullPath, fs); err != nil {
				return err
			}
			continue
		}

		src, err := fs.OpenFile(fullPath, os.O_RDONLY)
		if err != nil {
			return fmt.Errorf("%w: opening image file %s: %v", ErrInvalidFormat, fullPath, err)
		}
		isoFile := src.(*iso9660.File)

		dest, err := os.Create(filepath.Join(dstPath, fullPath))
		if err != nil {
			return err
		}
		if _, err := io.Copy(dest, isoFile); err != nil {
			dest.Close()
			return err
		}
		if err := dest.Close(); err != nil {
			return err
		}
	}
	return nil
}
