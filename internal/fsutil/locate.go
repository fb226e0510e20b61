package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/banshee-data/vmtomo/internal/security"
)

// Locate returns name if it exists on fsys, otherwise the first match of
// name under each of roots in order. Names that would escape a root are
// skipped for that root. When nothing matches the returned error wraps
// fs.ErrNotExist.
func Locate(fsys FileSystem, name string, roots []string) (string, error) {
	if fsys.Exists(name) {
		return name, nil
	}
	for _, root := range roots {
		if err := security.ContainedIn(root, name); err != nil {
			continue
		}
		candidate := filepath.Join(root, name)
		if !fsys.Exists(candidate) {
			continue
		}
		if _, isOS := fsys.(OSFileSystem); isOS {
			if err := security.ValidatePathWithinDirectory(candidate, root); err != nil {
				continue
			}
		}
		return candidate, nil
	}
	return "", fmt.Errorf("could not find %s in %v: %w", name, roots, fs.ErrNotExist)
}

// IsNotExist reports whether err means a missing file.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
