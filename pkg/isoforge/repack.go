package isoforge

import (
	"fmt"
	"os"
	"os/exec"
)

// RepackISO rebuilds a hybrid bootable image from treeRoot, installing
// the preserved MBR blob from mbrFile, and writes it to outputImage.
// outputImage must not exist yet. The flag set handed to xorriso is a
// compatibility contract with the consumer images (BIOS boot via
// isolinux, EFI boot via boot/grub/efi.img, hybrid GPT/APM layout) and
// must not be altered.
//
// The image is produced under a staging name in the destination
// directory and renamed into place on success, so a failed run never
// leaves a partial file at outputImage.
func RepackISO(outputImage, mbrFile, treeRoot, volumeName string) error {
	outputImage, err := requireParentDir(outputImage)
	if err != nil {
		return err
	}
	if _, err := requireAbsent(outputImage); err != nil {
		return err
	}
	mbrFile, err = requireFile(mbrFile)
	if err != nil {
		return err
	}
	treeRoot, err = requireDir(treeRoot)
	if err != nil {
		return err
	}
	if c, ok := invalidVolumeNameChar(volumeName); ok {
		return fmt.Errorf("%w: invalid character %q in filesystem name", ErrInvalidArgument, c)
	}

	staged := outputImage + ".part"
	cmd := exec.Command("xorriso", "-as", "mkisofs",
		"-r", "-V", volumeName,
		"-o", staged,
		"-J", "-J", "-joliet-long", "-cache-inodes",
		"-isohybrid-mbr", mbrFile,
		"-b", "isolinux/isolinux.bin",
		"-c", "isolinux/boot.cat",
		"-boot-load-size", "4", "-boot-info-table", "-no-emul-boot",
		"-eltorito-alt-boot",
		"-e", "boot/grub/efi.img", "-no-emul-boot",
		"-isohybrid-gpt-basdat", "-isohybrid-apm-hfsplus",
		treeRoot)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(staged)
		return fmt.Errorf("%w: repacking %s: %v\n%s", ErrProcessFailure, treeRoot, err, out)
	}
	return os.Rename(staged, outputImage)
}

// invalidVolumeNameChar reports the first character of name outside the
// set allowed in an ISO filesystem name: letters, digits, space,
// period, underscore and hyphen.
func invalidVolumeNameChar(name string) (rune, bool) {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == ' ' || r == '.' || r == '_' || r == '-':
		default:
			return r, true
		}
	}
	return 0, false
}
