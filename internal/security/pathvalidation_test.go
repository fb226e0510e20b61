package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainedIn(t *testing.T) {
	tests := []struct {
		name    string
		root    string
		file    string
		wantErr bool
	}{
		{"plain file", "data", "model.vm", false},
		{"nested file", "data", "2d/model.vm", false},
		{"dot segments inside", "data", "2d/../model.vm", false},
		{"parent escape", "data", "../model.vm", true},
		{"deep escape", "data", "2d/../../etc/passwd", true},
		{"absolute", "data", "/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ContainedIn(tt.root, tt.file)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPathEscape)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	safeDir := filepath.Join(tmpDir, "safe")
	unsafeDir := filepath.Join(tmpDir, "unsafe")
	require.NoError(t, os.MkdirAll(safeDir, 0o755))
	require.NoError(t, os.MkdirAll(unsafeDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(unsafeDir, "secret.vm"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(unsafeDir, filepath.Join(safeDir, "link")))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing child", filepath.Join(safeDir, "."), false},
		{"missing child", filepath.Join(safeDir, "new.vm"), false},
		{"traversal", filepath.Join(safeDir, "..", "unsafe", "secret.vm"), true},
		{"symlink escape", filepath.Join(safeDir, "link", "secret.vm"), true},
		{"symlink escape missing file", filepath.Join(safeDir, "link", "new.vm"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, safeDir)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"":                  "unknown",
		"model.vm":          "model.vm",
		"line 12 / final":   "line_12_final",
		"__hidden__":        "hidden",
		"a***b":             "a_b",
		"...":               "unknown",
		"Moho-refl_v2.0.vm": "Moho-refl_v2.0.vm",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}
