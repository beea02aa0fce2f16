package isoforge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cp "github.com/otiai10/copy"
	"github.com/z46-dev/go-logger"
)

// InitrdInjection names one host file to append to the tree's initrd
// and the path it should occupy inside the booted ramdisk.
type InitrdInjection struct {
	SourceFile string
	TargetPath string
}

// Options drive one injection run.
type Options struct {
	// VolumeName is the filesystem name written into the repacked image.
	VolumeName string

	// Arch is the caller-supplied token naming the install.<arch>
	// directory inside the tree. Required when Initrd is non-empty; the
	// pipeline never infers it.
	Arch string

	// Edits are applied to the extracted tree, in order, before the
	// initrd is patched.
	Edits []TreeEdit

	// Initrd lists files to append to install.<arch>/gtk/initrd.gz.
	Initrd []InitrdInjection

	// InProcess selects the library backends (go-diskfs unpack, cpio
	// library append) over the xorriso and cpio commands. Repacking
	// always goes through xorriso; its flag set is the boot
	// compatibility contract.
	InProcess bool

	// KeepWorkDir leaves the temp tree behind for inspection.
	KeepWorkDir bool

	Log *logger.Logger
}

// Inject runs the whole pipeline: extract sourceISO into a temp tree,
// save its MBR, apply the tree edits and initrd injections, regenerate
// the checksum manifest and repack a hybrid bootable image at
// outputISO. The source image is never touched; the output path must
// not exist yet.
//
// Temporary resources are released on every exit path. There is no
// rollback: a failure mid-pipeline leaves no usable output, and the
// caller retries from a fresh run if desired.
func Inject(outputISO, sourceISO string, opts Options) error {
	log := opts.Log
	if log == nil {
		log = logger.NewLogger().SetPrefix("[INJECT]", logger.BoldBlue)
	}

	// All path checks run before any stage does I/O.
	sourceISO, err := requireFile(sourceISO)
	if err != nil {
		return err
	}
	outputISO, err = requireParentDir(outputISO)
	if err != nil {
		return err
	}
	if _, err := requireAbsent(outputISO); err != nil {
		return err
	}
	if len(opts.Initrd) > 0 && opts.Arch == "" {
		return fmt.Errorf("%w: initrd injections need an architecture token", ErrInvalidArgument)
	}
	for _, inj := range opts.Initrd {
		if _, err := requireFile(inj.SourceFile); err != nil {
			return err
		}
	}

	workDir, err := os.MkdirTemp("", "isoforge")
	if err != nil {
		return err
	}
	if !opts.KeepWorkDir {
		defer func() {
			if err := removeWorkDir(workDir); err != nil {
				log.Warningf("Failed to clean up work dir %s: %v\n", workDir, err)
			}
		}()
	}

	treeDir := filepath.Join(workDir, "iso")
	if err := os.Mkdir(treeDir, 0o755); err != nil {
		return err
	}

	log.Statusf("Extracting contents of %s...\n", filepath.Base(sourceISO))
	extract := ExtractISO
	if opts.InProcess {
		extract = ExtractISOInProcess
	}
	if err := extract(treeDir, sourceISO); err != nil {
		return err
	}
	log.Success("ISO extraction complete")

	log.Statusf("Extracting MBR from %s...\n", filepath.Base(sourceISO))
	mbrFile := filepath.Join(workDir, "mbr.bin")
	if err := ExtractMBR(mbrFile, sourceISO); err != nil {
		return err
	}
	log.Success("MBR extraction complete")

	for _, edit := range opts.Edits {
		if err := edit.Apply(treeDir); err != nil {
			return err
		}
	}

	if len(opts.Initrd) > 0 {
		log.Status("Patching initrd...")
		initrdPath := filepath.Join(treeDir, "install."+opts.Arch, "gtk", initrdName)
		appendFile := AppendFileToInitrd
		if opts.InProcess {
			appendFile = AppendFileToInitrdInProcess
		}
		for _, inj := range opts.Initrd {
			baseDir, relPath, err := stageInitrdPayload(workDir, inj)
			if err != nil {
				return err
			}
			if err := appendFile(initrdPath, baseDir, relPath); err != nil {
				return err
			}
		}
		log.Success("Initrd patch complete")
	}

	log.Status("Regenerating MD5 checksums...")
	if err := RegenerateMD5Sums(treeDir); err != nil {
		return err
	}
	log.Success("MD5 calculations complete")

	log.Status("Repacking ISO...")
	if err := RepackISO(outputISO, mbrFile, treeDir, opts.VolumeName); err != nil {
		return err
	}
	if err := VerifyImage(outputISO); err != nil {
		return err
	}
	log.Statusf("ISO file was created successfully at %s\n", outputISO)

	return nil
}

// removeWorkDir deletes the working tree. Extraction and the manifest
// rebuild leave parts of it read-only, so write permission is
// re-granted first; a plain os.RemoveAll fails for non-root callers.
func removeWorkDir(workDir string) error {
	if err := makeTreeWritable(workDir); err != nil {
		return err
	}
	return os.RemoveAll(workDir)
}

// stageInitrdPayload lays the injection's source file out under a
// scratch directory at its in-initrd relative path, which is the shape
// the cpio append step wants: a base directory plus one relative path.
func stageInitrdPayload(workDir string, inj InitrdInjection) (baseDir, relPath string, err error) {
	relPath = filepath.ToSlash(filepath.Clean(inj.TargetPath))
	if relPath == "." || relPath == "" || relPath == ".." ||
		strings.HasPrefix(relPath, "../") || filepath.IsAbs(inj.TargetPath) {
		return "", "", fmt.Errorf("%w: initrd target path %q must be relative and non-empty",
			ErrInvalidArgument, inj.TargetPath)
	}

	baseDir, err = os.MkdirTemp(workDir, "payload-")
	if err != nil {
		return "", "", err
	}
	dest := filepath.Join(baseDir, relPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", "", err
	}
	if err := cp.Copy(inj.SourceFile, dest); err != nil {
		return "", "", err
	}
	return baseDir, relPath, nil
}
