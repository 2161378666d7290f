// Package buildtree describes the on-disk layout of a completed Buildroot
// build and locates the cross toolchain programs the inspection needs.
//
// A build tree is expected to look like this:
//
//	<build>/target         root filesystem installed on the device
//	<build>/build          one directory per package, named <pkg>-<version>
//	<build>/host/usr/bin   host toolchain, holding exactly one *-strip
package buildtree

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fossensics/fossensics/pkg/errors"
)

// stripSuffix is the name suffix of the toolchain's strip program.
const stripSuffix = "-strip"

// StripFlags are appended to the discovered strip program to form the
// strip command handed to the origin resolver.
var StripFlags = []string{
	"--remove-section=.comment",
	"--remove-section=.note",
	"-R", ".note.GNU-stack",
}

// BuildTree holds the paths derived from a build directory.
// It is an immutable value: all fields are computed by [New].
type BuildTree struct {
	Dir             string // build directory given by the user
	RootDir         string // <Dir>/target
	BuildSubdir     string // <Dir>/build
	ToolchainBinDir string // <Dir>/host/usr/bin
}

// New derives a BuildTree from a build directory. It does not touch the
// filesystem.
func New(dir string) BuildTree {
	return BuildTree{
		Dir:             dir,
		RootDir:         filepath.Join(dir, "target"),
		BuildSubdir:     filepath.Join(dir, "build"),
		ToolchainBinDir: filepath.Join(dir, "host", "usr", "bin"),
	}
}

// LibDirs returns the library search paths of the root filesystem, in the
// order the dependency lister expects them.
func (t BuildTree) LibDirs() []string {
	return []string{
		filepath.Join(t.RootDir, "lib"),
		filepath.Join(t.RootDir, "usr", "lib"),
	}
}

// FindStrip returns the path of the toolchain's strip program.
//
// Entries of the toolchain bin directory are sorted by name before the
// first regular, executable file ending in "-strip" is selected, so the
// result does not depend on the filesystem's listing order.
func FindStrip(t BuildTree) (string, error) {
	entries, err := os.ReadDir(t.ToolchainBinDir)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeToolNotFound, err, "can not find 'strip' program")
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), stripSuffix) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	for _, name := range names {
		path := filepath.Join(t.ToolchainBinDir, name)
		// Stat follows symlinks: Buildroot installs most toolchain
		// programs as links to the real binaries.
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0 {
			return path, nil
		}
	}
	return "", errors.New(errors.ErrCodeToolNotFound, "can not find 'strip' program in %s", t.ToolchainBinDir)
}

// StripCommand builds the strip command line passed to the origin
// resolver: the strip program followed by [StripFlags], space separated.
func StripCommand(strip string) string {
	return strip + " " + strings.Join(StripFlags, " ")
}
