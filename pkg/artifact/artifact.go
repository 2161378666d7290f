// Package artifact names the files an inspection leaves in its destination
// directory and provides the small I/O helpers shared by the stages that
// write and read them.
package artifact

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/fossensics/fossensics/pkg/errors"
)

// Artifact file names, in the order the pipeline writes them.
const (
	Programs     = "progs.txt"
	Deps         = "deps.txt"
	Origins      = "origins.txt"
	Orphans      = "orphans.txt"
	Packages     = "packages.txt"
	Licenses     = "licenses.txt"
	Undocumented = "undocumented.txt"
)

// All lists every artifact name in pipeline order.
var All = []string{Programs, Deps, Origins, Orphans, Packages, Licenses, Undocumented}

// Path joins an artifact name to a destination directory.
func Path(dir, name string) string {
	return filepath.Join(dir, name)
}

// Create truncates or creates the named artifact in dir.
func Create(dir, name string) (*os.File, error) {
	f, err := os.Create(Path(dir, name))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "create %s", name)
	}
	return f, nil
}

// Open opens the named artifact in dir for reading.
func Open(dir, name string) (*os.File, error) {
	f, err := os.Open(Path(dir, name))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "open %s", name)
	}
	return f, nil
}

// Close closes f, keeping the first error seen.
func Close(f *os.File, errp *error) {
	if err := f.Close(); err != nil && *errp == nil {
		*errp = errors.Wrap(errors.ErrCodeIO, err, "close %s", filepath.Base(f.Name()))
	}
}

// CountLines counts the lines of r. Blank lines count; a final line
// without terminating newline counts too.
func CountLines(r io.Reader) (int, error) {
	br := bufio.NewReader(r)
	buf := make([]byte, 32*1024)
	n := 0
	var last byte = '\n'
	for {
		m, err := br.Read(buf)
		if m > 0 {
			n += bytes.Count(buf[:m], []byte{'\n'})
			last = buf[m-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
	}
	if last != '\n' {
		n++
	}
	return n, nil
}
