package isoforge

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cavaliergopher/cpio"
)

// initrdName is the only accepted filename for a patchable initrd
// archive: a gzip-compressed cpio archive in newc format.
const initrdName = "initrd.gz"

// cpioAppender appends one entry, recorded under relPath, to the raw
// (already decompressed) cpio archive at rawArchive. The entry's
// contents come from baseDir/relPath.
type cpioAppender func(rawArchive, baseDir, relPath string) error

// AppendFileToInitrd appends baseDir/relPath to the initrd archive,
// recorded under relPath, using the cpio command in newc append mode.
//
// The operation is not transactional: intermediates are staged next to
// the archive and only the final rename touches the archive path, but a
// failed cpio run still aborts with the original archive untouched only
// because the decompressed copy lives in the staging directory. At most
// one caller per archive at a time.
func AppendFileToInitrd(initrdPath, baseDir, relPath string) error {
	return patchInitrd(initrdPath, baseDir, relPath, appendWithCpioCommand)
}

// AppendFileToInitrdInProcess behaves like AppendFileToInitrd but
// rewrites the archive with the cpio library instead of running the
// cpio command.
func AppendFileToInitrdInProcess(initrdPath, baseDir, relPath string) error {
	return patchInitrd(initrdPath, baseDir, relPath, appendWithCpioLibrary)
}

func patchInitrd(initrdPath, baseDir, relPath string, appendEntry cpioAppender) error {
	// Name check happens before touching the filesystem at all.
	if filepath.Base(initrdPath) != initrdName {
		return fmt.Errorf("%w: does not seem to be an %s archive: %s",
			ErrInvalidFormat, initrdName, filepath.Base(initrdPath))
	}
	initrdPath, err := requireFile(initrdPath)
	if err != nil {
		return err
	}
	baseDir, err = requireDir(baseDir)
	if err != nil {
		return err
	}
	if _, err := requireFile(filepath.Join(baseDir, relPath)); err != nil {
		return err
	}

	// The archive and its parent directory ship read-only inside the
	// extracted tree; widen both for the duration of the patch.
	parentDir := filepath.Dir(initrdPath)
	if err := os.Chmod(initrdPath, 0o644); err != nil {
		return err
	}
	if err := os.Chmod(parentDir, 0o755); err != nil {
		return err
	}
	defer func() {
		os.Chmod(initrdPath, 0o444)
		os.Chmod(parentDir, 0o555)
	}()

	// Stage everything in a sibling directory so the finished archive
	// can be renamed over the original without crossing filesystems.
	stageDir, err := os.MkdirTemp(parentDir, ".initrd-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(stageDir)

	rawArchive := filepath.Join(stageDir, strings.TrimSuffix(initrdName, ".gz"))
	if err := gunzipFile(rawArchive, initrdPath); err != nil {
		return err
	}

	if err := appendEntry(rawArchive, baseDir, relPath); err != nil {
		return err
	}

	packed := filepath.Join(stageDir, initrdName)
	if err := gzipFile(packed, rawArchive); err != nil {
		return err
	}
	if err := os.Remove(rawArchive); err != nil {
		return err
	}

	return os.Rename(packed, initrdPath)
}

// appendWithCpioCommand runs cpio in newc append mode from within
// baseDir, piping the single relative path on stdin.
func appendWithCpioCommand(rawArchive, baseDir, relPath string) error {
	cmd := exec.Command("cpio", "-H", "newc", "-o", "-A", "-F", rawArchive)
	cmd.Dir = baseDir
	cmd.Stdin = strings.NewReader(relPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: appending %s to %s: %v\n%s",
			ErrProcessFailure, relPath, rawArchive, err, out)
	}
	return nil
}

// appendWithCpioLibrary rewrites the raw archive in place: every
// existing entry is copied over and the new entry is written before the
// trailer.
func appendWithCpioLibrary(rawArchive, baseDir, relPath string) error {
	in, err := os.Open(rawArchive)
	if err != nil {
		return err
	}
	defer in.Close()

	rewritten := rawArchive + ".rewrite"
	out, err := os.Create(rewritten)
	if err != nil {
		return err
	}
	defer out.Close()

	w := cpio.NewWriter(out)
	r := cpio.NewReader(in)
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: reading cpio entry from %s: %v", ErrInvalidFormat, rawArchive, err)
		}
		if err := w.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := io.Copy(w, r); err != nil {
			return err
		}
	}

	src, err := os.Open(filepath.Join(baseDir, relPath))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, filepath.Join(baseDir, relPath))
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	hdr, err := cpio.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(relPath)
	if err := w.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}

	if err := w.Close(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(rewritten, rawArchive)
}

// gunzipFile decompresses the gzip file at src into dst.
func gunzipFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("%w: %s is not gzip data: %v", ErrInvalidFormat, src, err)
	}
	defer gz.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, gz); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// gzipFile compresses the file at src into a gzip file at dst.
func gzipFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		out.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
