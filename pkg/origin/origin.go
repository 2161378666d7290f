// Package origin turns origin resolver output into package records.
//
// The origin resolver reports, for every program it could trace, the build
// directory the program came from:
//
//	/usr/bin/dropbear: /home/user/output/build/dropbear-2019.78
//
// Buildroot builds every package in its own directory directly below the
// build subdirectory, named after the package and its version. [Refine]
// relies on that layout: the first path segment below the build
// subdirectory is taken as the package name, whatever lies deeper.
package origin

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fossensics/fossensics/pkg/errors"
)

// Separator splits a program path from its origin directory.
const Separator = ": "

// maxLine bounds the length of a single artifact line.
const maxLine = 1 << 20

// Record is a program traced back to the directory that built it.
type Record struct {
	Program   string
	Directory string
}

// Package is a program attributed to a package.
type Package struct {
	Name    string
	Program string
}

// String renders the record in packages.txt format, without the newline.
func (p Package) String() string {
	return p.Name + "\t" + p.Program
}

// ParseLine splits an origin resolver line at the first [Separator].
// Surrounding whitespace, including the line terminator, is ignored.
func ParseLine(line string) (Record, error) {
	prog, dir, ok := strings.Cut(strings.TrimSpace(line), Separator)
	if !ok {
		return Record{}, errors.New(errors.ErrCodeMalformedArtifact, "missing %q separator in %q", Separator, line)
	}
	return Record{Program: prog, Directory: dir}, nil
}

// PackageName extracts the package name from an origin directory by
// removing the buildSubdir prefix and taking the first remaining segment.
//
// "/b/build/pkgA-1.0/src" with buildSubdir "/b/build" yields "pkgA-1.0".
func PackageName(dir, buildSubdir string) (string, error) {
	rel := strings.TrimPrefix(dir, buildSubdir)
	segments := strings.Split(rel, string(filepath.Separator))
	if len(segments) < 2 {
		return "", errors.New(errors.ErrCodeMalformedArtifact, "no package segment in %q below %q", dir, buildSubdir)
	}
	return segments[1], nil
}

// Attribute converts an origin record into a package record.
func Attribute(r Record, buildSubdir string) (Package, error) {
	name, err := PackageName(r.Directory, buildSubdir)
	if err != nil {
		return Package{}, err
	}
	return Package{Name: name, Program: r.Program}, nil
}

// Refine reads origin resolver output from r and writes one
// "<package>\t<program>" line per record to w, preserving input order.
//
// A line without separator aborts the refinement with a
// MALFORMED_ARTIFACT error; lines already written are left in w.
func Refine(r io.Reader, w io.Writer, buildSubdir string) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	bw := bufio.NewWriter(w)

	n := 0
	for lineNo := 1; sc.Scan(); lineNo++ {
		rec, err := ParseLine(sc.Text())
		if err != nil {
			bw.Flush()
			return n, fmt.Errorf("line %d: %w", lineNo, err)
		}
		pkg, err := Attribute(rec, buildSubdir)
		if err != nil {
			bw.Flush()
			return n, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if _, err := fmt.Fprintln(bw, pkg); err != nil {
			return n, errors.Wrap(errors.ErrCodeIO, err, "write package record")
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, errors.Wrap(errors.ErrCodeIO, err, "read origin records")
	}
	if err := bw.Flush(); err != nil {
		return n, errors.Wrap(errors.ErrCodeIO, err, "write package records")
	}
	return n, nil
}

// ParsePackageLine parses one packages.txt line. The line must hold exactly
// two whitespace separated fields.
func ParsePackageLine(line string) (Package, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Package{}, errors.New(errors.ErrCodeMalformedArtifact, "want 2 fields, got %d in %q", len(fields), line)
	}
	return Package{Name: fields[0], Program: fields[1]}, nil
}

// ReadPackages reads every record of a packages.txt stream, in order.
func ReadPackages(r io.Reader) ([]Package, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var pkgs []Package
	for lineNo := 1; sc.Scan(); lineNo++ {
		p, err := ParsePackageLine(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		pkgs = append(pkgs, p)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "read package records")
	}
	return pkgs, nil
}
