package config

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEmptyConfig_Defaults(t *testing.T) {
	cfg := EmptyConfig()

	assert.Equal(t, binary.NativeEndian, cfg.GetByteOrder())
	assert.Empty(t, cfg.GetDataRoots())
	assert.Equal(t, "warn", cfg.GetValidation())
	assert.Equal(t, 3, cfg.GetSmoothWindow())
	assert.Equal(t, "picks.db", cfg.GetPickDBPath())
	assert.Equal(t, '\t', cfg.GetExportSeparator())
	assert.Equal(t, 2, cfg.GetVerbosity())

	rt := cfg.GetRaytracer()
	require.NotNil(t, rt)
	assert.Equal(t, "slim_rays", rt.GetProgram())
	assert.Equal(t, [3]int{12, 12, 24}, rt.GetForwardStar())
	assert.Equal(t, 0.5, rt.GetMinAngle())
	assert.Equal(t, 1.4, rt.GetMinVelocity())
	assert.Equal(t, 620, rt.GetMaxNodeSize())
	assert.Equal(t, 0, rt.GetTopLayer())
	assert.Equal(t, -1, rt.GetBottomLayer())
}

func TestDefaultConfig_MatchesGetters(t *testing.T) {
	full := DefaultConfig()
	empty := EmptyConfig()

	assert.Equal(t, empty.GetValidation(), full.GetValidation())
	assert.Equal(t, empty.GetSmoothWindow(), full.GetSmoothWindow())
	assert.Equal(t, empty.GetExportSeparator(), full.GetExportSeparator())
	assert.Equal(t, empty.GetRaytracer().GetForwardStar(), full.GetRaytracer().GetForwardStar())
	assert.Equal(t, empty.GetRaytracer().GetMaxNodeSize(), full.GetRaytracer().GetMaxNodeSize())
	require.NoError(t, full.Validate())
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	want := DefaultConfig()
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("defaults file drifted from DefaultConfig (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_JSONPartial(t *testing.T) {
	path := writeConfig(t, "cfg.json", `{
  "byte_order": "big",
  "data_roots": ["testdata", "/srv/models"],
  "raytracer": {"min_velocity": 1.5}
}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, binary.BigEndian, cfg.GetByteOrder())
	assert.Equal(t, []string{"testdata", "/srv/models"}, cfg.GetDataRoots())
	assert.Equal(t, 1.5, cfg.GetRaytracer().GetMinVelocity())
	assert.Equal(t, 620, cfg.GetRaytracer().GetMaxNodeSize())
	assert.Equal(t, 3, cfg.GetSmoothWindow())
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeConfig(t, "cfg.yaml", `
byte_order: little
validation: raise
export_separator: ","
verbosity: 4
raytracer:
  forward_star: [0, 8, 16]
  bottom_layer: 3
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, binary.LittleEndian, cfg.GetByteOrder())
	assert.Equal(t, "raise", cfg.GetValidation())
	assert.Equal(t, ',', cfg.GetExportSeparator())
	assert.Equal(t, 4, cfg.GetVerbosity())
	assert.Equal(t, [3]int{0, 8, 16}, cfg.GetRaytracer().GetForwardStar())
	assert.Equal(t, 3, cfg.GetRaytracer().GetBottomLayer())
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"bad extension", "cfg.toml", `byte_order = "big"`},
		{"bad json", "cfg.json", `{"byte_order": }`},
		{"unknown field", "cfg.json", `{"bytes_order": "big"}`},
		{"unknown yaml field", "cfg.yaml", "verbosty: 2\n"},
		{"bad byte order", "cfg.json", `{"byte_order": "middle"}`},
		{"bad validation", "cfg.json", `{"validation": "loud"}`},
		{"bad window", "cfg.json", `{"smooth_window": 0}`},
		{"bad verbosity", "cfg.json", `{"verbosity": 9}`},
		{"bad separator", "cfg.json", `{"export_separator": ";;"}`},
		{"short forward star", "cfg.json", `{"raytracer": {"forward_star": [1, 2]}}`},
		{"negative forward star", "cfg.json", `{"raytracer": {"forward_star": [1, -2, 3]}}`},
		{"zero min velocity", "cfg.json", `{"raytracer": {"min_velocity": 0}}`},
		{"zero node size", "cfg.json", `{"raytracer": {"max_node_size": 0}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingAndOversized(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	big := make([]byte, maxFileSize+1)
	for i := range big {
		big[i] = ' '
	}
	path := writeConfig(t, "big.json", string(big))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "too large")
}
