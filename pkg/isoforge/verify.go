package isoforge

import (
	"fmt"
	"os"

	"github.com/kdomanski/iso9660"
)

// VerifyImage opens a freshly repacked image read-only and confirms it
// is a non-empty ISO9660 filesystem carrying a checksum manifest at its
// root. It is a cheap read-back witness, not a boot test.
func VerifyImage(imagePath string) error {
	imagePath, err := requireFile(imagePath)
	if err != nil {
		return err
	}
	info, err := os.Stat(imagePath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, imagePath)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrInvalidFormat, imagePath)
	}

	f, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, imagePath)
	}
	defer f.Close()

	img, err := iso9660.OpenImage(f)
	if err != nil {
		return fmt.Errorf("%w: %s is not an ISO9660 image: %v", ErrInvalidFormat, imagePath, err)
	}
	root, err := img.RootDir()
	if err != nil {
		return fmt.Errorf("%w: %s has no root directory: %v", ErrInvalidFormat, imagePath, err)
	}
	children, err := root.GetChildren()
	if err != nil {
		return fmt.Errorf("%w: reading root directory of %s: %v", ErrInvalidFormat, imagePath, err)
	}
	for _, child := range children {
		if !child.IsDir() && child.Name() == manifestName {
			return nil
		}
	}
	return fmt.Errorf("%w: %s carries no %s", ErrInvalidFormat, imagePath, manifestName)
}
