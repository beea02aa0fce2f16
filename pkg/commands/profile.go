package commands

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Profile describes one injection run, loaded from a TOML file. The
// pipeline itself never infers any of this; everything here is caller
// policy.
type Profile struct {
	VolumeName string `toml:"volume_name" default:"Debian custom" validate:"required"` // Filesystem name of the repacked image, shown when the ISO is mounted
	Arch       string `toml:"arch" default:"amd" validate:"required"`                  // Architecture token naming the install.<arch> directory inside the image
	Dist       string `toml:"dist" default:"bookworm" validate:"required"`             // Distribution codename substituted for __DIST__ in the preseed files
	Testing    string `toml:"testing" default:""`                                      // Value substituted for __TESTING__ in the preseed files ("testing" or empty)

	InjectDir string `toml:"inject_dir" default:""`     // Optional directory whose contents are copied over the extracted tree root
	RemoveXen bool   `toml:"remove_xen" default:"true"` // Drop the unused install.<arch>/xen kernel variant; it costs 50-70 MB and nothing boots it

	InProcess   bool `toml:"in_process" default:"false"`    // Use the library backends instead of the xorriso/cpio commands for unpack and append
	KeepWorkDir bool `toml:"keep_work_dir" default:"false"` // Leave the temp working tree behind for inspection

	Initrd []InitrdFile `toml:"initrd" validate:"dive"` // Files to append to the image's initrd
}

// InitrdFile names one host file and the path it should occupy inside
// the booted ramdisk.
type InitrdFile struct {
	Source string `toml:"source" validate:"required"` // Host path of the file to inject
	Target string `toml:"target" validate:"required"` // Relative path the file takes inside the initrd
}

// DefaultProfile returns a profile carrying only the defaults.
func DefaultProfile() (*Profile, error) {
	profile := new(Profile)
	if err := defaults.Set(profile); err != nil {
		return nil, fmt.Errorf("profile defaults: %w", err)
	}
	return profile, nil
}

// LoadProfile reads a TOML profile, fills in defaults and validates it.
func LoadProfile(path string) (*Profile, error) {
	profile := new(Profile)
	if err := defaults.Set(profile); err != nil {
		return nil, fmt.Errorf("profile defaults: %w", err)
	}
	if _, err := toml.DecodeFile(path, profile); err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}
	if err := validator.New().Struct(profile); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}
	return profile, nil
}
