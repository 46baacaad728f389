// Package filelookup resolves relative file names against an ordered list
// of directories.
package filelookup

import (
	"os"
	"path/filepath"
	"strings"

	"slidepress/internal/errs"
)

// Lookup searches its directories in order.
type Lookup struct {
	dirs []string
}

// New creates a lookup over dirs. Empty entries are skipped.
func New(dirs ...string) *Lookup {
	l := &Lookup{}
	for _, d := range dirs {
		if d != "" {
			l.dirs = append(l.dirs, d)
		}
	}
	return l
}

// Dirs returns the search directories in lookup order.
func (l *Lookup) Dirs() []string {
	return append([]string(nil), l.dirs...)
}

// Prepend returns a new lookup that searches dirs first.
func (l *Lookup) Prepend(dirs ...string) *Lookup {
	return New(append(append([]string(nil), dirs...), l.dirs...)...)
}

// Append returns a new lookup that searches dirs last.
func (l *Lookup) Append(dirs ...string) *Lookup {
	return New(append(l.Dirs(), dirs...)...)
}

// Find returns the path of the first regular file named name. Absolute
// names are returned as-is when they exist.
func (l *Lookup) Find(name string) (string, error) {
	if filepath.IsAbs(name) {
		if isFile(name) {
			return name, nil
		}
		return "", errs.Newf(errs.KindFileLookup, "no such file: %s", name)
	}
	for _, dir := range l.dirs {
		path := filepath.Join(dir, name)
		if isFile(path) {
			return path, nil
		}
	}
	if len(l.dirs) == 0 {
		return "", errs.Newf(errs.KindFileLookup, "no such file: %s (no directories given to look up)", name)
	}
	return "", errs.Newf(errs.KindFileLookup, "no such file: %s (looked in %s)", name, strings.Join(l.dirs, ", "))
}

// ReadFile finds name and returns its contents along with the resolved path.
func (l *Lookup) ReadFile(name string) ([]byte, string, error) {
	path, err := l.Find(name)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindFileLookup, err, "failed to read %s", path)
	}
	return data, path, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
