package isoforge

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// mbrSize is the boot sector plus partition-table prefix of a hybrid
// BIOS image, excluding the trailing signature bytes. Fixed by the
// boot-sector layout convention; never a parameter.
const mbrSize = 432

// ExtractMBR reads the first 432 bytes of sourceImage and writes them
// verbatim to a newly created outputFile. The source must be a
// .iso or .img file and the output must not exist yet.
func ExtractMBR(outputFile, sourceImage string) error {
	outputFile, err := requireAbsent(outputFile)
	if err != nil {
		return err
	}
	sourceImage, err = requireFile(sourceImage)
	if err != nil {
		return err
	}
	switch filepath.Ext(sourceImage) {
	case ".iso", ".img":
	default:
		return fmt.Errorf("%w: not an image file: %s", ErrInvalidFormat, sourceImage)
	}

	src, err := os.Open(sourceImage)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotFound, sourceImage, err)
	}
	defer src.Close()

	mbr := make([]byte, mbrSize)
	if _, err := io.ReadFull(src, mbr); err != nil {
		return fmt.Errorf("%w: %s is smaller than %d bytes: %v", ErrInvalidFormat, sourceImage, mbrSize, err)
	}

	dst, err := createExclusive(outputFile)
	if err != nil {
		return err
	}
	if _, err := dst.Write(mbr); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// createExclusive creates path for writing, reporting ErrAlreadyExists
// only when the path is actually occupied; any other creation failure
// passes through untouched.
func createExclusive(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, path)
		}
		return nil, err
	}
	return f, nil
}
