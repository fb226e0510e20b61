package vm

import (
	"fmt"
	"math"

	"github.com/banshee-data/vmtomo/internal/config"
	"github.com/banshee-data/vmtomo/internal/grid"
	"github.com/banshee-data/vmtomo/internal/monitoring"
)

// Build constructs a model from a recipe: it inserts every interface in
// order, smoothing each one that asks for it, optionally fixes pinchouts,
// and then runs the layer steps in order.
func Build(r *config.Recipe) (*Model, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("vm: build: %w", err)
	}
	g, err := grid.New(r.Shape, nil, r.Origin, r.Spacing)
	if err != nil {
		return nil, fmt.Errorf("vm: build: %w", err)
	}
	m := NewFromGrid(g)

	for i, step := range r.Interfaces {
		depth := make([]float32, len(step.Depth))
		for k, z := range step.Depth {
			depth[k] = float32(z)
		}
		var opts []InsertOption
		if step.Jump != nil {
			opts = append(opts, WithJump(float32(*step.Jump)))
		}
		idx, err := m.InsertInterface(depth, opts...)
		if err != nil {
			return nil, fmt.Errorf("vm: build interface step %d: %w", i, err)
		}
		if s := step.Smooth; s != nil {
			wy := 0
			if s.WindowY != nil {
				wy = *s.WindowY
			}
			if err := m.SmoothInterface(idx, max(s.Repetitions, 1), s.Window, wy); err != nil {
				return nil, fmt.Errorf("vm: build interface step %d: %w", i, err)
			}
		}
		monitoring.Vlogf(monitoring.Detail, "build: inserted interface %d from step %d", idx, i)
	}
	if r.FixPinchouts != nil {
		m.FixPinchouts(*r.FixPinchouts)
	}

	for i, step := range r.Layers {
		if err := m.applyLayerStep(step); err != nil {
			return nil, fmt.Errorf("vm: build layer step %d: %w", i, err)
		}
	}
	monitoring.Vlogf(monitoring.Progress, "build: %d interfaces, %d layer steps", m.NR(), len(r.Layers))
	return m, nil
}

func (m *Model) applyLayerStep(step config.LayerStep) error {
	opts, err := layerStepOptions(step)
	if err != nil {
		return err
	}
	switch {
	case step.Constant != nil:
		return m.DefineConstantLayerVelocity(step.Layer, *step.Constant, opts...)
	case len(step.Stretched) > 0:
		vel := make([]float64, len(step.Stretched))
		for k, v := range step.Stretched {
			if v == nil {
				vel[k] = FromNeighbor
				continue
			}
			vel[k] = *v
		}
		return m.DefineStretchedLayerVelocities(step.Layer, vel, opts...)
	default:
		if step.V0 != nil {
			opts = append(opts, WithTopVelocity(*step.V0))
		}
		return m.DefineConstantLayerGradient(step.Layer, *step.Gradient, opts...)
	}
}

func layerStepOptions(step config.LayerStep) ([]LayerOption, error) {
	bound := func(p *float64, def float64) float64 {
		if p == nil {
			return def
		}
		return *p
	}
	opts := []LayerOption{
		WithXRange(bound(step.XMin, math.Inf(-1)), bound(step.XMax, math.Inf(1))),
		WithYRange(bound(step.YMin, math.Inf(-1)), bound(step.YMax, math.Inf(1))),
	}
	if step.Interp != "" {
		kind, err := ParseInterpolation(step.Interp)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithInterpolation(kind))
	}
	return opts, nil
}
