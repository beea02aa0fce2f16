package commands

import (
	"github.com/isoforge/isoforge/pkg/isoforge"
)

// Inject runs the full injection pipeline on sourceIso according to the
// given profile, writing the repacked image to destIsoPath.
func Inject(sourceIso string, destIsoPath string, profile *Profile) error {
	edits := make([]isoforge.TreeEdit, 0, 4)

	if profile.InjectDir != "" {
		edits = append(edits, isoforge.CopyInto{Source: profile.InjectDir, Dest: "."})
	}
	if profile.RemoveXen {
		edits = append(edits, isoforge.RemoveSubtree{Path: "install." + profile.Arch + "/xen"})
	}
	edits = append(edits,
		isoforge.Substitute{Glob: "isolinux/menu.cfg", Placeholder: "__ARCH__", Value: profile.Arch},
		isoforge.Substitute{Glob: "preseeds/*", Placeholder: "__DIST__", Value: profile.Dist},
		isoforge.Substitute{Glob: "preseeds/*", Placeholder: "__TESTING__", Value: profile.Testing},
	)

	injections := make([]isoforge.InitrdInjection, 0, len(profile.Initrd))
	for _, f := range profile.Initrd {
		injections = append(injections, isoforge.InitrdInjection{
			SourceFile: f.Source,
			TargetPath: f.Target,
		})
	}

	return isoforge.Inject(destIsoPath, sourceIso, isoforge.Options{
		VolumeName:  profile.VolumeName,
		Arch:        profile.Arch,
		Edits:       edits,
		Initrd:      injections,
		InProcess:   profile.InProcess,
		KeepWorkDir: profile.KeepWorkDir,
	})
}
