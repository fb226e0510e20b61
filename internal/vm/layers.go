package vm

import (
	"fmt"
	"math"

	"github.com/banshee-data/vmtomo/internal/grid"
)

// LayerBounds returns the top and bottom depth surfaces of layer l as
// nx*ny slices. Layer 0 starts at the model top and layer nr ends at the
// model bottom. The returned slices are copies.
func (m *Model) LayerBounds(l int) (top, bottom []float64, err error) {
	if err := m.checkLayer(l); err != nil {
		return nil, nil, err
	}
	n := m.surfaceLen()
	top = make([]float64, n)
	bottom = make([]float64, n)
	if l == 0 {
		fill(top, m.R1()[grid.AxisZ])
	} else {
		widen(top, m.interfaces[l-1].Depth)
	}
	if l == len(m.interfaces) {
		fill(bottom, m.R2()[grid.AxisZ])
	} else {
		widen(bottom, m.interfaces[l].Depth)
	}
	return top, bottom, nil
}

func fill(dst []float64, v float64) {
	for i := range dst {
		dst[i] = v
	}
}

func widen(dst []float64, src []float32) {
	for i, v := range src {
		dst[i] = float64(v)
	}
}

type insertOptions struct {
	jump      []float32
	depthMask []int32
	jumpMask  []int32
}

// InsertOption customizes InsertInterface.
type InsertOption func(*insertOptions)

// WithJump sets the slowness jump: one value for every node, or nx*ny values.
func WithJump(jump ...float32) InsertOption {
	return func(o *insertOptions) { o.jump = jump }
}

// WithDepthMask sets the depth inversion mask: one value or nx*ny values.
func WithDepthMask(mask ...int32) InsertOption {
	return func(o *insertOptions) { o.depthMask = mask }
}

// WithJumpMask sets the jump inversion mask: one value or nx*ny values.
func WithJumpMask(mask ...int32) InsertOption {
	return func(o *insertOptions) { o.jumpMask = mask }
}

func broadcast[T any](name string, v []T, def T, n int) ([]T, error) {
	out := make([]T, n)
	switch len(v) {
	case 0:
		for i := range out {
			out[i] = def
		}
	case 1:
		for i := range out {
			out[i] = v[0]
		}
	case n:
		copy(out, v)
	default:
		return nil, fmt.Errorf("%w: %s has %d values, want 1 or %d", ErrShape, name, len(v), n)
	}
	return out, nil
}

// InsertInterface adds a depth surface to the stack and returns its index.
// A single depth value is broadcast to every node. The new surface goes
// after every existing interface whose maximum depth is strictly smaller
// than its own; crossing surfaces are not detected. Masks of the interfaces
// that end up below it are renumbered so that they keep pointing at the
// same surfaces.
func (m *Model) InsertInterface(depth []float32, opts ...InsertOption) (int, error) {
	n := m.surfaceLen()
	if len(depth) == 0 {
		return 0, fmt.Errorf("%w: empty depth surface", ErrShape)
	}
	rf, err := broadcast("depth", depth, 0, n)
	if err != nil {
		return 0, err
	}

	maxDepth, _ := nanMax32(rf)
	pos := 0
	for _, f := range m.interfaces {
		if existing, _ := nanMax32(f.Depth); existing < maxDepth {
			pos++
		}
	}

	var o insertOptions
	for _, opt := range opts {
		opt(&o)
	}
	f := Interface{Depth: rf}
	if f.Jump, err = broadcast("jump", o.jump, 0, n); err != nil {
		return 0, err
	}
	if f.DepthMask, err = broadcast("depth mask", o.depthMask, int32(pos), n); err != nil {
		return 0, err
	}
	if f.JumpMask, err = broadcast("jump mask", o.jumpMask, int32(pos), n); err != nil {
		return 0, err
	}

	m.interfaces = append(m.interfaces, Interface{})
	copy(m.interfaces[pos+1:], m.interfaces[pos:])
	m.interfaces[pos] = f

	for i := pos + 1; i < len(m.interfaces); i++ {
		renumber(m.interfaces[i].DepthMask, int32(pos))
		renumber(m.interfaces[i].JumpMask, int32(pos))
	}
	return pos, nil
}

func renumber(mask []int32, from int32) {
	for k, v := range mask {
		if v >= from {
			mask[k] = v + 1
		}
	}
}

// nanMax32 returns the largest non-NaN value and false when there is none.
func nanMax32(v []float32) (float64, bool) {
	_, hi := minMax32(v)
	return hi, !math.IsNaN(hi)
}

// LayerIndex returns a grid, shaped like the model, holding the layer
// number of every node. A node that sits exactly on an interface belongs to
// the deeper layer.
func (m *Model) LayerIndex() *grid.Grid {
	ids := m.grid.Clone().Fill(0)
	nz := m.NZ()
	for l := 0; l <= len(m.interfaces); l++ {
		// l is always in range
		top, bottom, _ := m.LayerBounds(l)
		for ix := 0; ix < m.NX(); ix++ {
			for iy := 0; iy < m.NY(); iy++ {
				k := m.surfaceIndex(ix, iy)
				if math.IsNaN(top[k]) || math.IsNaN(bottom[k]) {
					continue
				}
				iz0, iz1 := m.grid.Z2I(top[k]), m.grid.Z2I(bottom[k])
				col := ids.Column(ix, iy)
				for iz := iz0; iz <= iz1 && iz < nz; iz++ {
					col[iz] = float32(l)
				}
			}
		}
	}
	return ids
}
