package config

import (
	"errors"
	"fmt"
)

// Recipe describes a layered model to build from scratch: the grid, the
// interfaces to insert, and the velocity definition of each layer. Layer
// steps run in file order after all interfaces are inserted.
type Recipe struct {
	Shape      []int           `json:"shape" yaml:"shape"`
	Origin     []float64       `json:"origin,omitempty" yaml:"origin,omitempty"`
	Spacing    []float64       `json:"spacing,omitempty" yaml:"spacing,omitempty"`
	Interfaces []InterfaceStep `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	Layers     []LayerStep     `json:"layers,omitempty" yaml:"layers,omitempty"`

	// FixPinchouts runs after interface insertion when set; 0 means dz.
	FixPinchouts *float64 `json:"fix_pinchouts,omitempty" yaml:"fix_pinchouts,omitempty"`
}

// InterfaceStep inserts one interface. Depth may be a single value or a
// full nx*ny surface.
type InterfaceStep struct {
	Depth  []float64   `json:"depth" yaml:"depth"`
	Jump   *float64    `json:"jump,omitempty" yaml:"jump,omitempty"`
	Smooth *SmoothStep `json:"smooth,omitempty" yaml:"smooth,omitempty"`
}

// SmoothStep configures Gaussian smoothing of an inserted interface.
type SmoothStep struct {
	Repetitions int  `json:"repetitions,omitempty" yaml:"repetitions,omitempty"`
	Window      int  `json:"window" yaml:"window"`
	WindowY     *int `json:"window_y,omitempty" yaml:"window_y,omitempty"`
}

// LayerStep defines velocities in one layer. Exactly one of Constant,
// Stretched or Gradient must be set. A null entry in Stretched means
// "take the velocity from the neighbouring layer".
type LayerStep struct {
	Layer     int        `json:"layer" yaml:"layer"`
	Constant  *float64   `json:"constant,omitempty" yaml:"constant,omitempty"`
	Stretched []*float64 `json:"stretched,omitempty" yaml:"stretched,omitempty"`
	Gradient  *float64   `json:"gradient,omitempty" yaml:"gradient,omitempty"`
	V0        *float64   `json:"v0,omitempty" yaml:"v0,omitempty"`
	Interp    string     `json:"interp,omitempty" yaml:"interp,omitempty"`
	XMin      *float64   `json:"xmin,omitempty" yaml:"xmin,omitempty"`
	XMax      *float64   `json:"xmax,omitempty" yaml:"xmax,omitempty"`
	YMin      *float64   `json:"ymin,omitempty" yaml:"ymin,omitempty"`
	YMax      *float64   `json:"ymax,omitempty" yaml:"ymax,omitempty"`
}

// LoadRecipe loads and validates a build recipe.
func LoadRecipe(path string) (*Recipe, error) {
	r := &Recipe{}
	if err := decodeFile(path, r); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recipe: %w", err)
	}
	return r, nil
}

// Validate checks the recipe's structure. Geometry against the grid is
// checked when the model is built.
func (r *Recipe) Validate() error {
	if len(r.Shape) < 1 || len(r.Shape) > 3 {
		return fmt.Errorf("shape must have 1 to 3 entries, got %d", len(r.Shape))
	}
	for _, n := range r.Shape {
		if n < 1 {
			return fmt.Errorf("shape entries must be at least 1, got %v", r.Shape)
		}
	}
	if r.Origin != nil && len(r.Origin) != 3 {
		return fmt.Errorf("origin must have 3 entries, got %d", len(r.Origin))
	}
	if r.Spacing != nil {
		if len(r.Spacing) != 3 {
			return fmt.Errorf("spacing must have 3 entries, got %d", len(r.Spacing))
		}
		for _, d := range r.Spacing {
			if d <= 0 {
				return fmt.Errorf("spacing entries must be positive, got %v", r.Spacing)
			}
		}
	}
	for i, step := range r.Interfaces {
		if len(step.Depth) == 0 {
			return fmt.Errorf("interface step %d: depth is required", i)
		}
		if step.Smooth != nil && step.Smooth.Window < 1 {
			return fmt.Errorf("interface step %d: smooth window must be at least 1", i)
		}
	}
	for i, step := range r.Layers {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("layer step %d: %w", i, err)
		}
	}
	return nil
}

// Validate checks that exactly one velocity definition is present.
func (s *LayerStep) Validate() error {
	n := 0
	if s.Constant != nil {
		n++
	}
	if len(s.Stretched) > 0 {
		n++
	}
	if s.Gradient != nil {
		n++
	}
	if n != 1 {
		return errors.New("exactly one of constant, stretched or gradient must be set")
	}
	if s.Layer < 0 {
		return fmt.Errorf("layer must be non-negative, got %d", s.Layer)
	}
	if s.V0 != nil && s.Gradient == nil {
		return errors.New("v0 only applies to gradient layers")
	}
	return nil
}
