// Package config loads tool settings and model build recipes from JSON or
// YAML files. Settings use pointer fields so a partial file only overrides
// what it names; the Get* methods supply defaults for everything else.
package config

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// DefaultConfigPath is the canonical defaults file, relative to the repo root.
const DefaultConfigPath = "config/vmtomo.defaults.json"

// Config is the root configuration for the vmtomo tools.
type Config struct {
	// ByteOrder for model and rayfan files: "native", "little" or "big".
	ByteOrder *string `json:"byte_order,omitempty" yaml:"byte_order,omitempty"`

	// DataRoots are searched, in order, when a model file is not found.
	DataRoots []string `json:"data_roots,omitempty" yaml:"data_roots,omitempty"`

	// Validation selects how content defects surface: "raise", "warn" or "silent".
	Validation *string `json:"validation,omitempty" yaml:"validation,omitempty"`

	SmoothWindow *int `json:"smooth_window,omitempty" yaml:"smooth_window,omitempty"`

	PickDBPath      *string `json:"pickdb_path,omitempty" yaml:"pickdb_path,omitempty"`
	ExportSeparator *string `json:"export_separator,omitempty" yaml:"export_separator,omitempty"`

	Raytracer *RaytracerConfig `json:"raytracer,omitempty" yaml:"raytracer,omitempty"`

	// Verbosity 0-4, shared by the raytracer runner and CLI logging.
	Verbosity *int `json:"verbosity,omitempty" yaml:"verbosity,omitempty"`
}

// RaytracerConfig holds the external raytracer's tuning knobs.
type RaytracerConfig struct {
	Program     *string  `json:"program,omitempty" yaml:"program,omitempty"`
	ForwardStar []int    `json:"forward_star,omitempty" yaml:"forward_star,omitempty"`
	MinAngle    *float64 `json:"min_angle,omitempty" yaml:"min_angle,omitempty"`
	MinVelocity *float64 `json:"min_velocity,omitempty" yaml:"min_velocity,omitempty"`
	MaxNodeSize *int     `json:"max_node_size,omitempty" yaml:"max_node_size,omitempty"`
	TopLayer    *int     `json:"top_layer,omitempty" yaml:"top_layer,omitempty"`
	// BottomLayer < 0 or unset means the model's deepest layer.
	BottomLayer *int `json:"bottom_layer,omitempty" yaml:"bottom_layer,omitempty"`
}

func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }

// EmptyConfig returns a Config with every field unset.
func EmptyConfig() *Config {
	return &Config{}
}

// DefaultConfig returns a Config with every field populated from the
// built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		ByteOrder:       ptrString("native"),
		Validation:      ptrString("warn"),
		SmoothWindow:    ptrInt(3),
		PickDBPath:      ptrString("picks.db"),
		ExportSeparator: ptrString("\t"),
		Verbosity:       ptrInt(2),
		Raytracer: &RaytracerConfig{
			Program:     ptrString("slim_rays"),
			ForwardStar: []int{12, 12, 24},
			MinAngle:    ptrFloat64(0.5),
			MinVelocity: ptrFloat64(1.4),
			MaxNodeSize: ptrInt(620),
			TopLayer:    ptrInt(0),
			BottomLayer: ptrInt(-1),
		},
	}
}

// LoadConfig loads a Config from a .json, .yaml or .yml file and validates it.
func LoadConfig(path string) (*Config, error) {
	cfg := EmptyConfig()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the working directory
// or one of its parents. Intended for tests; panics when not found.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/vmtomo/
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks values that are set.
func (c *Config) Validate() error {
	if c.ByteOrder != nil {
		switch strings.ToLower(*c.ByteOrder) {
		case "", "native", "little", "big":
		default:
			return fmt.Errorf("byte_order must be native, little or big, got %q", *c.ByteOrder)
		}
	}
	if c.Validation != nil {
		switch strings.ToLower(*c.Validation) {
		case "", "raise", "warn", "silent":
		default:
			return fmt.Errorf("validation must be raise, warn or silent, got %q", *c.Validation)
		}
	}
	if c.SmoothWindow != nil && *c.SmoothWindow < 1 {
		return fmt.Errorf("smooth_window must be at least 1, got %d", *c.SmoothWindow)
	}
	if c.Verbosity != nil && (*c.Verbosity < 0 || *c.Verbosity > 4) {
		return fmt.Errorf("verbosity must be between 0 and 4, got %d", *c.Verbosity)
	}
	if c.ExportSeparator != nil && len([]rune(*c.ExportSeparator)) != 1 {
		return fmt.Errorf("export_separator must be a single character, got %q", *c.ExportSeparator)
	}
	if c.Raytracer != nil {
		if err := c.Raytracer.Validate(); err != nil {
			return fmt.Errorf("raytracer: %w", err)
		}
	}
	return nil
}

// Validate checks raytracer values that are set.
func (r *RaytracerConfig) Validate() error {
	if r.ForwardStar != nil {
		if len(r.ForwardStar) != 3 {
			return fmt.Errorf("forward_star must have 3 entries, got %d", len(r.ForwardStar))
		}
		for _, v := range r.ForwardStar {
			if v < 0 {
				return fmt.Errorf("forward_star entries must be non-negative, got %v", r.ForwardStar)
			}
		}
	}
	if r.MinVelocity != nil && *r.MinVelocity <= 0 {
		return fmt.Errorf("min_velocity must be positive, got %f", *r.MinVelocity)
	}
	if r.MinAngle != nil && *r.MinAngle <= 0 {
		return fmt.Errorf("min_angle must be positive, got %f", *r.MinAngle)
	}
	if r.MaxNodeSize != nil && *r.MaxNodeSize < 1 {
		return fmt.Errorf("max_node_size must be at least 1, got %d", *r.MaxNodeSize)
	}
	if r.TopLayer != nil && *r.TopLayer < 0 {
		return fmt.Errorf("top_layer must be non-negative, got %d", *r.TopLayer)
	}
	return nil
}

// GetByteOrder returns the configured byte order. Native is the default.
func (c *Config) GetByteOrder() binary.ByteOrder {
	if c.ByteOrder == nil {
		return binary.NativeEndian
	}
	switch strings.ToLower(*c.ByteOrder) {
	case "little":
		return binary.LittleEndian
	case "big":
		return binary.BigEndian
	default:
		return binary.NativeEndian
	}
}

// GetDataRoots returns the model search roots.
func (c *Config) GetDataRoots() []string {
	return c.DataRoots
}

// GetValidation returns the validation mode name, "warn" by default.
func (c *Config) GetValidation() string {
	if c.Validation == nil || *c.Validation == "" {
		return "warn"
	}
	return strings.ToLower(*c.Validation)
}

// GetSmoothWindow returns the Gaussian half-width used by smoothing.
func (c *Config) GetSmoothWindow() int {
	if c.SmoothWindow == nil {
		return 3
	}
	return *c.SmoothWindow
}

// GetPickDBPath returns the pick database path.
func (c *Config) GetPickDBPath() string {
	if c.PickDBPath == nil || *c.PickDBPath == "" {
		return "picks.db"
	}
	return *c.PickDBPath
}

// GetExportSeparator returns the pick export field separator, tab by default.
func (c *Config) GetExportSeparator() rune {
	if c.ExportSeparator == nil || *c.ExportSeparator == "" {
		return '\t'
	}
	return []rune(*c.ExportSeparator)[0]
}

// GetVerbosity returns the logging verbosity, 2 by default.
func (c *Config) GetVerbosity() int {
	if c.Verbosity == nil {
		return 2
	}
	return *c.Verbosity
}

// GetRaytracer returns the raytracer section, never nil.
func (c *Config) GetRaytracer() *RaytracerConfig {
	if c.Raytracer == nil {
		return &RaytracerConfig{}
	}
	return c.Raytracer
}

// GetProgram returns the raytracer executable name.
func (r *RaytracerConfig) GetProgram() string {
	if r.Program == nil || *r.Program == "" {
		return "slim_rays"
	}
	return *r.Program
}

// GetForwardStar returns a copy of the forward star size.
func (r *RaytracerConfig) GetForwardStar() [3]int {
	if len(r.ForwardStar) != 3 {
		return [3]int{12, 12, 24}
	}
	return [3]int{r.ForwardStar[0], r.ForwardStar[1], r.ForwardStar[2]}
}

// GetMinAngle returns the minimum forward-star angle in degrees.
func (r *RaytracerConfig) GetMinAngle() float64 {
	if r.MinAngle == nil {
		return 0.5
	}
	return *r.MinAngle
}

// GetMinVelocity returns the minimum velocity rays are traced through.
func (r *RaytracerConfig) GetMinVelocity() float64 {
	if r.MinVelocity == nil {
		return 1.4
	}
	return *r.MinVelocity
}

// GetMaxNodeSize returns the average node allocation per ray path.
func (r *RaytracerConfig) GetMaxNodeSize() int {
	if r.MaxNodeSize == nil {
		return 620
	}
	return *r.MaxNodeSize
}

// GetTopLayer returns the top-most layer to trace through.
func (r *RaytracerConfig) GetTopLayer() int {
	if r.TopLayer == nil {
		return 0
	}
	return *r.TopLayer
}

// GetBottomLayer returns the bottom-most layer, or -1 for the model's last.
func (r *RaytracerConfig) GetBottomLayer() int {
	if r.BottomLayer == nil {
		return -1
	}
	return *r.BottomLayer
}
