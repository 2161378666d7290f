// Package stats aggregates the artifacts of an inspection into summary
// counts and a per-package program histogram.
package stats

import (
	"bufio"
	"io"
	"regexp"
	"slices"

	"github.com/fossensics/fossensics/pkg/artifact"
	"github.com/fossensics/fossensics/pkg/errors"
	"github.com/fossensics/fossensics/pkg/origin"
)

// undocumentedPattern matches the license tool's "not found" diagnostic,
// which quotes the queried pattern: 'busybox-1.36.1%'.
var undocumentedPattern = regexp.MustCompile(`'(.+)%'`)

// PackageCount is the number of programs attributed to one package.
type PackageCount struct {
	Package  string `json:"package"`
	Programs int    `json:"programs"`
}

// Statistics summarizes one inspection.
type Statistics struct {
	Programs     int            `json:"programs"`
	Packages     int            `json:"packages"`
	Orphans      int            `json:"orphans"`
	Undocumented int            `json:"undocumented"`
	Histogram    []PackageCount `json:"histogram"`
}

// IsUndocumented reports whether a line of undocumented.txt is a
// "not found" diagnostic.
func IsUndocumented(line string) bool {
	return undocumentedPattern.MatchString(line)
}

// Histogram counts programs per package. The result is sorted by count,
// highest first; packages with equal counts keep their first-seen order.
func Histogram(pkgs []origin.Package) []PackageCount {
	index := make(map[string]int)
	hist := []PackageCount{}
	for _, p := range pkgs {
		i, ok := index[p.Name]
		if !ok {
			i = len(hist)
			index[p.Name] = i
			hist = append(hist, PackageCount{Package: p.Name})
		}
		hist[i].Programs++
	}
	slices.SortStableFunc(hist, func(a, b PackageCount) int {
		return b.Programs - a.Programs
	})
	return hist
}

// Aggregate builds Statistics from the contents of packages.txt,
// orphans.txt and undocumented.txt.
func Aggregate(packages, orphans, undocumented io.Reader) (*Statistics, error) {
	nOrphans, err := artifact.CountLines(orphans)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "read %s", artifact.Orphans)
	}

	pkgs, err := origin.ReadPackages(packages)
	if err != nil {
		return nil, err
	}

	nUndocs, err := countUndocumented(undocumented)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "read %s", artifact.Undocumented)
	}

	hist := Histogram(pkgs)
	return &Statistics{
		Programs:     len(pkgs),
		Packages:     len(hist),
		Orphans:      nOrphans,
		Undocumented: nUndocs,
		Histogram:    hist,
	}, nil
}

// Compute reads the artifacts of a finished inspection from dir.
func Compute(dir string) (st *Statistics, err error) {
	orphans, err := artifact.Open(dir, artifact.Orphans)
	if err != nil {
		return nil, err
	}
	defer artifact.Close(orphans, &err)

	packages, err := artifact.Open(dir, artifact.Packages)
	if err != nil {
		return nil, err
	}
	defer artifact.Close(packages, &err)

	undocs, err := artifact.Open(dir, artifact.Undocumented)
	if err != nil {
		return nil, err
	}
	defer artifact.Close(undocs, &err)

	return Aggregate(packages, orphans, undocs)
}

func countUndocumented(r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	n := 0
	for sc.Scan() {
		if IsUndocumented(sc.Text()) {
			n++
		}
	}
	return n, sc.Err()
}
