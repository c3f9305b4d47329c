// Package collision checks a batch of stack entries against a destination
// before any of them is touched.
package collision

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/arthur-debert/fls/pkg/errors"
)

// Picker reads stack entries by depth; 0 is the top.
type Picker interface {
	Pick(index int) (string, error)
}

// Report lists what a batch would overwrite.
type Report struct {
	// Dest is the resolved destination.
	Dest string
	// DestIsDir tells whether entries land inside Dest or replace it.
	DestIsDir bool
	// Collisions holds the base names already present in Dest when it is
	// a directory, or Dest itself when it is not.
	Collisions []string
}

// HasCollisions reports whether anything would be overwritten.
func (r *Report) HasCollisions() bool {
	return len(r.Collisions) > 0
}

// Detector inspects the filesystem through afero so tests can run against
// an in-memory tree.
type Detector struct {
	fs afero.Fs
}

// NewDetector creates a detector over fs. A nil fs means the OS filesystem.
func NewDetector(fs afero.Fs) *Detector {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Detector{fs: fs}
}

// IsDir reports whether path is an existing directory.
func (d *Detector) IsDir(path string) (bool, error) {
	info, err := d.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, errors.ErrFileAccess, "cannot stat `%s'", path)
	}
	return info.IsDir(), nil
}

// CheckTarget enforces that a batch of more than one entry goes into a
// directory. It returns whether dest is a directory.
func (d *Detector) CheckTarget(dest string, n int) (bool, error) {
	isDir, err := d.IsDir(dest)
	if err != nil {
		return false, err
	}
	if n > 1 && !isDir {
		return false, errors.Newf(errors.ErrMultiTargetNotDir, "multi-file target `%s' is not a directory", dest).
			WithDetail("dest", dest)
	}
	return isDir, nil
}

// Check reads the top n entries and reports which would overwrite
// something in dest. Two entries sharing a base name make the whole batch
// invalid, since the second would silently replace the first.
func (d *Detector) Check(p Picker, n int, dest string) (*Report, error) {
	isDir, err := d.CheckTarget(dest, n)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, n)
	seen := make(map[string]int, n)
	for i := 0; i < n; i++ {
		entry, err := p.Pick(i)
		if err != nil {
			return nil, err
		}
		name := filepath.Base(entry)
		if j, dup := seen[name]; dup {
			return nil, errors.Newf(errors.ErrBatchCollision, "Stack items %d and %d are both named `%s'", j, i, name).
				WithDetail("name", name).
				WithDetail("first", j).
				WithDetail("second", i)
		}
		seen[name] = i
		names = append(names, name)
	}

	report := &Report{Dest: dest, DestIsDir: isDir}
	if !isDir {
		exists, err := afero.Exists(d.fs, dest)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot stat `%s'", dest)
		}
		if exists {
			report.Collisions = append(report.Collisions, dest)
		}
		return report, nil
	}

	listing, err := afero.ReadDir(d.fs, dest)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot list `%s'", dest)
	}
	present := make(map[string]bool, len(listing))
	for _, info := range listing {
		present[info.Name()] = true
	}
	for _, name := range names {
		if present[name] {
			report.Collisions = append(report.Collisions, name)
		}
	}
	return report, nil
}
