package isoforge

import "errors"

// Sentinel errors for every way a pipeline stage can refuse or fail.
// Callers match them with errors.Is; every wrapped message carries the
// offending path or value.
var (
	// ErrNotFound indicates a required input file or directory is missing.
	ErrNotFound = errors.New("not found")

	// ErrNotADirectory indicates a path exists but is not a directory.
	ErrNotADirectory = errors.New("not a directory")

	// ErrAlreadyExists indicates an output path is already occupied and
	// would be overwritten.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidFormat indicates an input has the wrong name, extension
	// or content shape (e.g. an archive not named initrd.gz).
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidArgument indicates an illegal caller-supplied value,
	// such as a forbidden character in a volume name.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrProcessFailure indicates an external tool exited non-zero.
	ErrProcessFailure = errors.New("process failure")
)
