// Package security guards file lookups against paths that escape a root.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is wrapped by validation failures.
var ErrPathEscape = errors.New("security: path escapes root")

// ContainedIn reports whether name, joined under root, stays inside root.
// The check is lexical and does not touch the filesystem.
func ContainedIn(root, name string) error {
	if filepath.IsAbs(name) {
		return fmt.Errorf("%w: %s is absolute", ErrPathEscape, name)
	}
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Join(root, name))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPathEscape, err)
	}
	if escapes(rel) {
		return fmt.Errorf("%w: %s leaves %s", ErrPathEscape, name, root)
	}
	return nil
}

// ValidatePathWithinDirectory checks that filePath resolves inside safeDir
// once symlinks are followed. Paths that do not exist yet are resolved
// through their nearest existing parent.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absSafe, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve root path: %w", err)
	}
	canonicalSafe, err := filepath.EvalSymlinks(absSafe)
	if err != nil {
		return fmt.Errorf("failed to resolve root symlinks: %w", err)
	}

	canonical := resolveExisting(absPath)
	rel, err := filepath.Rel(canonicalSafe, canonical)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPathEscape, err)
	}
	if escapes(rel) {
		return fmt.Errorf("%w: %s leaves %s", ErrPathEscape, filePath, safeDir)
	}
	return nil
}

// resolveExisting follows symlinks on the deepest existing prefix of p.
func resolveExisting(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	for dir := filepath.Dir(p); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, p)
			return filepath.Join(resolved, rest)
		}
		if filepath.Dir(dir) == dir {
			return p
		}
	}
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel)
}

// SanitizeFilename turns an arbitrary label, such as a model name, into a
// safe file name stem. Runs of disallowed characters collapse to one
// underscore and the result is capped at 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
