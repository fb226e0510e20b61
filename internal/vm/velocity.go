package vm

import (
	"fmt"
	"math"

	"github.com/banshee-data/vmtomo/internal/grid"
	"gonum.org/v1/gonum/interp"
)

// FromNeighbor, placed first or last in a velocity list, takes the
// velocity from the node just above or just below the layer.
var FromNeighbor = math.NaN()

// Interpolation selects how stretched velocities are sampled between the
// control points.
type Interpolation string

const (
	Linear         Interpolation = "linear"
	Step           Interpolation = "step"
	Akima          Interpolation = "akima"
	FritschButland Interpolation = "fritsch-butland"
	NaturalCubic   Interpolation = "natural-cubic"
	NotAKnot       Interpolation = "not-a-knot"
)

// ParseInterpolation maps a name to an Interpolation. The empty string
// means Linear.
func ParseInterpolation(name string) (Interpolation, error) {
	switch k := Interpolation(name); k {
	case "":
		return Linear, nil
	case Linear, Step, Akima, FritschButland, NaturalCubic, NotAKnot:
		return k, nil
	}
	return "", fmt.Errorf("vm: unknown interpolation %q", name)
}

// predictor returns a fitter for n control points. NotAKnot is singular
// with fewer than four knots and falls back to Linear below that.
func (k Interpolation) predictor(n int) interp.FittablePredictor {
	switch k {
	case Step:
		return &interp.PiecewiseConstant{}
	case Akima:
		return &interp.AkimaSpline{}
	case FritschButland:
		return &interp.FritschButland{}
	case NaturalCubic:
		return &interp.NaturalCubic{}
	case NotAKnot:
		if n >= 4 {
			return &interp.NotAKnotCubic{}
		}
	}
	return &interp.PiecewiseLinear{}
}

type layerOptions struct {
	xmin, xmax float64
	ymin, ymax float64
	kind       Interpolation
	v0         *float64
}

func defaultLayerOptions() layerOptions {
	return layerOptions{
		xmin: math.Inf(-1), xmax: math.Inf(1),
		ymin: math.Inf(-1), ymax: math.Inf(1),
		kind: Linear,
	}
}

// LayerOption customizes the layer velocity operators.
type LayerOption func(*layerOptions)

// WithXRange limits the operator to nodes with xmin <= x <= xmax.
func WithXRange(xmin, xmax float64) LayerOption {
	return func(o *layerOptions) { o.xmin, o.xmax = xmin, xmax }
}

// WithYRange limits the operator to nodes with ymin <= y <= ymax.
func WithYRange(ymin, ymax float64) LayerOption {
	return func(o *layerOptions) { o.ymin, o.ymax = ymin, ymax }
}

// WithInterpolation selects the stretched-velocity interpolation.
func WithInterpolation(kind Interpolation) LayerOption {
	return func(o *layerOptions) { o.kind = kind }
}

// WithTopVelocity fixes the velocity at the top of a gradient layer.
func WithTopVelocity(v0 float64) LayerOption {
	return func(o *layerOptions) { o.v0 = &v0 }
}

// DefineConstantLayerVelocity floods layer l with velocity v.
func (m *Model) DefineConstantLayerVelocity(l int, v float64, opts ...LayerOption) error {
	return m.DefineStretchedLayerVelocities(l, []float64{v}, opts...)
}

// DefineStretchedLayerVelocities spreads velocities evenly from the top to
// the bottom of layer l at every node and interpolates them onto the grid
// depths in between. FromNeighbor is accepted in the first and last slots.
// Nodes where the layer has no thickness are left as they are. Every node
// is fitted before any is written, so a failed fit leaves the model as it
// was.
func (m *Model) DefineStretchedLayerVelocities(l int, velocities []float64, opts ...LayerOption) error {
	if len(velocities) == 0 {
		return fmt.Errorf("%w: no velocities for layer %d", ErrVelocities, l)
	}
	for i := 1; i < len(velocities)-1; i++ {
		if math.IsNaN(velocities[i]) {
			return fmt.Errorf("%w: FromNeighbor at position %d; only the first and last may borrow", ErrVelocities, i)
		}
	}
	o := defaultLayerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	top, bottom, err := m.LayerBounds(l)
	if err != nil {
		return err
	}

	g := m.grid
	nz, nvel := m.NZ(), len(velocities)
	zs := g.Z()
	vel := make([]float64, nvel)
	ix0, ix1 := m.XRange2I(o.xmin, o.xmax)
	iy0, iy1 := m.YRange2I(o.ymin, o.ymax)

	type fill struct {
		col []float32
		iz0 int
		s   []float32
	}
	var fills []fill
	for ix := ix0; ix <= ix1; ix++ {
		for iy := iy0; iy <= iy1; iy++ {
			k := m.surfaceIndex(ix, iy)
			z0, z1 := top[k], bottom[k]
			if !(z1 > z0) {
				continue
			}
			iz0, iz1 := g.Z2I(z0), g.Z2I(z1)
			col := g.Column(ix, iy)

			copy(vel, velocities)
			if math.IsNaN(vel[0]) {
				vel[0] = 1 / float64(col[max(iz0-1, 0)])
			}
			if nvel > 1 && math.IsNaN(vel[nvel-1]) {
				vel[nvel-1] = 1 / float64(col[min(iz1+1, nz-1)])
			}

			f := fill{col: col, iz0: iz0, s: make([]float32, iz1-iz0+1)}
			if nvel == 1 {
				s := float32(1 / vel[0])
				for i := range f.s {
					f.s[i] = s
				}
				fills = append(fills, f)
				continue
			}

			zi := make([]float64, 0, nvel+2)
			vi := make([]float64, 0, nvel+2)
			if zs[iz0] < z0 {
				zi = append(zi, zs[iz0])
				vi = append(vi, vel[0])
			}
			for j, v := range vel {
				zi = append(zi, z0+(z1-z0)*float64(j)/float64(nvel-1))
				vi = append(vi, v)
			}
			if zs[iz1] > z1 {
				zi = append(zi, zs[iz1])
				vi = append(vi, vel[nvel-1])
			}
			p := o.kind.predictor(len(zi))
			if err := p.Fit(zi, vi); err != nil {
				return fmt.Errorf("vm: layer %d node (%d, %d): %w", l, ix, iy, err)
			}
			for i := range f.s {
				f.s[i] = float32(1 / p.Predict(zs[iz0+i]))
			}
			fills = append(fills, f)
		}
	}
	for _, f := range fills {
		copy(f.col[f.iz0:], f.s)
	}
	return nil
}

// DefineConstantLayerGradient sets v(z) = v0 + dvdz*(z - ztop) through
// layer l, where ztop is the first grid depth of the layer at each node.
// Without WithTopVelocity, v0 is the velocity just above the layer, or 0
// for a layer that starts at the model top.
func (m *Model) DefineConstantLayerGradient(l int, dvdz float64, opts ...LayerOption) error {
	o := defaultLayerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	top, bottom, err := m.LayerBounds(l)
	if err != nil {
		return err
	}
	ix0, ix1 := m.XRange2I(o.xmin, o.xmax)
	iy0, iy1 := m.YRange2I(o.ymin, o.ymax)
	for ix := ix0; ix <= ix1; ix++ {
		for iy := iy0; iy <= iy1; iy++ {
			k := m.surfaceIndex(ix, iy)
			m.paintGradient(ix, iy, top[k], bottom[k], dvdz, o.v0)
		}
	}
	return nil
}

// DefineVariableLayerGradient is DefineConstantLayerGradient with a
// gradient per node. dvdz must hold nx*ny values. v0 may be nil, a single
// value, or nx*ny values.
func (m *Model) DefineVariableLayerGradient(l int, dvdz []float64, v0 []float64) error {
	n := m.surfaceLen()
	if len(dvdz) != n {
		return fmt.Errorf("%w: gradient has %d values, want %d", ErrShape, len(dvdz), n)
	}
	var tops []float64
	if len(v0) > 0 {
		var err error
		if tops, err = broadcast("v0", v0, 0, n); err != nil {
			return err
		}
	}
	top, bottom, err := m.LayerBounds(l)
	if err != nil {
		return err
	}
	for ix := 0; ix < m.NX(); ix++ {
		for iy := 0; iy < m.NY(); iy++ {
			k := m.surfaceIndex(ix, iy)
			var v *float64
			if tops != nil {
				v = &tops[k]
			}
			m.paintGradient(ix, iy, top[k], bottom[k], dvdz[k], v)
		}
	}
	return nil
}

// paintGradient skips nodes where the layer pinches out.
func (m *Model) paintGradient(ix, iy int, z0, z1, dvdz float64, v0 *float64) {
	if !(z1 > z0) {
		return
	}
	g := m.grid
	iz0, iz1 := g.Z2I(z0), g.Z2I(z1)
	col := g.Column(ix, iy)
	var v float64
	switch {
	case v0 != nil:
		v = *v0
	case iz0 > 0:
		v = 1 / float64(col[iz0-1])
	}
	ztop := g.Coord(grid.AxisZ, iz0)
	for iz := iz0; iz <= iz1; iz++ {
		col[iz] = float32(1 / (v + (g.Coord(grid.AxisZ, iz)-ztop)*dvdz))
	}
}
