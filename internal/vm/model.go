// Package vm implements layered slowness models: a dense 3D slowness grid
// subdivided by an ordered stack of depth interfaces, with operators that
// paint velocities into layers and a codec for the binary .vm format read by
// the external raytracer.
//
// A Model is not safe for concurrent mutation.
package vm

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/vmtomo/internal/grid"
)

// DefaultShape is the grid shape used when a caller does not choose one.
var DefaultShape = [3]int{128, 1, 128}

// Interface is one depth surface of the stack. All four arrays hold nx*ny
// values stored flat with index ix*ny+iy. A mask value of -1 excludes that
// node from the inversion.
type Interface struct {
	Depth     []float32
	Jump      []float32
	DepthMask []int32
	JumpMask  []int32
}

var interfaceArrayNames = [4]string{"depth", "jump", "depth mask", "jump mask"}

func (f Interface) clone() Interface {
	return Interface{
		Depth:     append([]float32(nil), f.Depth...),
		Jump:      append([]float32(nil), f.Jump...),
		DepthMask: append([]int32(nil), f.DepthMask...),
		JumpMask:  append([]int32(nil), f.JumpMask...),
	}
}

// Serializable is what the Serializer needs to encode a model.
type Serializable interface {
	Grid() *grid.Grid
	Interfaces() []Interface
}

// Editable covers the in-place structural edits.
type Editable interface {
	InsertInterface(depth []float32, opts ...InsertOption) (int, error)
	SmoothInterface(i, repetitions, window, windowY int) error
	FixPinchouts(minThickness float64)
	ApplyJumps(interfaces ...int) error
	RemoveJumps(interfaces ...int) error
}

// Validatable reports whether a model passes its consistency checks.
type Validatable interface {
	Verify() (bool, error)
}

// Model is a slowness grid plus its interface stack.
type Model struct {
	grid       *grid.Grid
	interfaces []Interface

	// Validation selects how Verify reports problems.
	Validation Mode
}

var (
	_ Serializable = (*Model)(nil)
	_ Editable     = (*Model)(nil)
	_ Validatable  = (*Model)(nil)
)

// New returns a model with a zero slowness grid and no interfaces.
func New(shape [3]int, origin, spacing [3]float64) (*Model, error) {
	g, err := grid.Zeros(shape[0], shape[1], shape[2], origin, spacing)
	if err != nil {
		return nil, fmt.Errorf("vm: new model: %w", err)
	}
	return &Model{grid: g}, nil
}

// NewFromGrid wraps an existing grid in a model with no interfaces. The
// grid is adopted, not copied.
func NewFromGrid(g *grid.Grid) *Model {
	return &Model{grid: g}
}

// Grid returns the slowness grid. Mutations through it affect the model.
func (m *Model) Grid() *grid.Grid { return m.grid }

func (m *Model) NX() int { return m.grid.NX() }
func (m *Model) NY() int { return m.grid.NY() }
func (m *Model) NZ() int { return m.grid.NZ() }

// NR returns the number of interfaces.
func (m *Model) NR() int { return len(m.interfaces) }

func (m *Model) DX() float64 { return m.grid.Spacing[grid.AxisX] }
func (m *Model) DY() float64 { return m.grid.Spacing[grid.AxisY] }
func (m *Model) DZ() float64 { return m.grid.Spacing[grid.AxisZ] }

// Slowness returns the flat slowness values as a view into the grid.
func (m *Model) Slowness() []float32 { return m.grid.Values() }

// SetValues replaces the slowness values; len(values) must be nx*ny*nz.
func (m *Model) SetValues(values []float32) error {
	if err := m.grid.SetValues(values); err != nil {
		return fmt.Errorf("%w: %v", ErrShape, err)
	}
	return nil
}

func (m *Model) surfaceLen() int { return m.NX() * m.NY() }

// surfaceIndex returns the flat offset of (ix, iy) in an interface array.
func (m *Model) surfaceIndex(ix, iy int) int { return ix*m.NY() + iy }

// Interfaces returns a deep copy of the interface stack.
func (m *Model) Interfaces() []Interface {
	out := make([]Interface, len(m.interfaces))
	for i, f := range m.interfaces {
		out[i] = f.clone()
	}
	return out
}

// Interface returns a copy of interface i.
func (m *Model) Interface(i int) (Interface, error) {
	if err := m.checkInterface(i); err != nil {
		return Interface{}, err
	}
	return m.interfaces[i].clone(), nil
}

// SetInterfaces replaces the whole stack after checking that every array
// has nx*ny elements. The slices are copied.
func (m *Model) SetInterfaces(stack []Interface) error {
	n := m.surfaceLen()
	out := make([]Interface, len(stack))
	for i, f := range stack {
		lens := [4]int{len(f.Depth), len(f.Jump), len(f.DepthMask), len(f.JumpMask)}
		for k, l := range lens {
			if l != n {
				return fmt.Errorf("%w: interface %d %s has %d values, want %d",
					ErrShape, i, interfaceArrayNames[k], l, n)
			}
		}
		out[i] = f.clone()
	}
	m.interfaces = out
	return nil
}

// SetInterfaceDepth overwrites the depth surface of interface i.
func (m *Model) SetInterfaceDepth(i int, depth []float32) error {
	if err := m.checkInterface(i); err != nil {
		return err
	}
	if len(depth) != m.surfaceLen() {
		return fmt.Errorf("%w: depth has %d values, want %d", ErrShape, len(depth), m.surfaceLen())
	}
	copy(m.interfaces[i].Depth, depth)
	return nil
}

func (m *Model) checkInterface(i int) error {
	if i < 0 || i >= len(m.interfaces) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInterfaceIndex, i, len(m.interfaces))
	}
	return nil
}

func (m *Model) checkLayer(l int) error {
	if l < 0 || l > len(m.interfaces) {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrLayerIndex, l, len(m.interfaces))
	}
	return nil
}

// R1 returns the model origin (x, y, z minimum).
func (m *Model) R1() [3]float64 { return m.grid.Origin }

// R2 returns the far corner (x, y, z maximum).
func (m *Model) R2() [3]float64 {
	var r2 [3]float64
	shape := m.grid.Shape()
	for a := range r2 {
		r2[a] = m.grid.Coord(a, shape[a]-1)
	}
	return r2
}

// SetR2 moves the far corner by rescaling the spacing; the origin and node
// counts are unchanged. Axes with a single node keep their spacing.
func (m *Model) SetR2(r2 [3]float64) error {
	shape := m.grid.Shape()
	spacing := m.grid.Spacing
	for a := range r2 {
		if shape[a] == 1 {
			continue
		}
		d := (r2[a] - m.grid.Origin[a]) / float64(shape[a]-1)
		if !(d > 0) {
			return fmt.Errorf("vm: r2[%d]=%g does not lie beyond the origin %g", a, r2[a], m.grid.Origin[a])
		}
		spacing[a] = d
	}
	m.grid.Spacing = spacing
	return nil
}

// rangeToIndices clips [lo, hi] to the model extent along axis and returns
// the inclusive index span. Infinite bounds select the full axis.
func (m *Model) rangeToIndices(axis int, lo, hi float64) (int, int) {
	lo = math.Max(m.R1()[axis], lo)
	hi = math.Min(m.R2()[axis], hi)
	return m.grid.CoordToIndex(axis, lo), m.grid.CoordToIndex(axis, hi)
}

// XRange2I returns the inclusive x index span of [xmin, xmax].
func (m *Model) XRange2I(xmin, xmax float64) (int, int) {
	return m.rangeToIndices(grid.AxisX, xmin, xmax)
}

// YRange2I returns the inclusive y index span of [ymin, ymax].
func (m *Model) YRange2I(ymin, ymax float64) (int, int) {
	return m.rangeToIndices(grid.AxisY, ymin, ymax)
}

// ZRange2I returns the inclusive z index span of [zmin, zmax].
func (m *Model) ZRange2I(zmin, zmax float64) (int, int) {
	return m.rangeToIndices(grid.AxisZ, zmin, zmax)
}

// Copy returns a deep copy of the model.
func (m *Model) Copy() *Model {
	return &Model{
		grid:       m.grid.Clone(),
		interfaces: m.Interfaces(),
		Validation: m.Validation,
	}
}

func banner(title string, width int) string {
	title = " " + title + " "
	if len(title) >= width {
		return title
	}
	left := (width - len(title)) / 2
	return strings.Repeat("=", left) + title + strings.Repeat("=", width-left-len(title))
}

// Summary describes the grid. The extended form adds the depth range of
// every interface and the slowness range of every layer, measured with
// jumps applied to a copy of the model.
func (m *Model) Summary(extended bool) string {
	bar := banner("Slowness Model", 70)
	var b strings.Builder
	b.WriteString(bar + "\n")
	b.WriteString(m.grid.String())
	b.WriteString("\n" + bar)
	if !extended {
		b.WriteString("\n[use the extended summary for per-layer detail]")
		return b.String()
	}

	c := m.Copy()
	// every index is valid, so this cannot fail
	_ = c.ApplyJumps()
	layers := c.LayerIndex()

	fmt.Fprintf(&b, "\nModel top: z = %g\n", m.R1()[grid.AxisZ])
	b.WriteString(" " + c.formatLayer(layers, 0) + "\n")
	for i, f := range c.interfaces {
		lo, hi := minMax32(f.Depth)
		fmt.Fprintf(&b, "Interface %d: z = [%g, %g]\n", i, lo, hi)
		b.WriteString(" " + c.formatLayer(layers, i+1) + "\n")
	}
	fmt.Fprintf(&b, "Model bottom: z = %g", m.R2()[grid.AxisZ])
	return b.String()
}

func (m *Model) formatLayer(layers *grid.Grid, l int) string {
	smin, smax := math.Inf(1), math.Inf(-1)
	ids := layers.Values()
	for i, s := range m.grid.Values() {
		if int(ids[i]) != l {
			continue
		}
		smin = math.Min(smin, float64(s))
		smax = math.Max(smax, float64(s))
	}
	if math.IsInf(smin, 1) {
		return fmt.Sprintf("Layer %d: no nodes", l)
	}
	return fmt.Sprintf("Layer %d: u = [%7.3f, %7.3f] (v = [%7.3f, %7.3f])",
		l, smin, smax, 1/smax, 1/smin)
}

// minMax32 ignores NaNs; an all-NaN slice yields (NaN, NaN).
func minMax32(v []float32) (float64, float64) {
	lo, hi := math.NaN(), math.NaN()
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) {
			continue
		}
		if math.IsNaN(lo) || f < lo {
			lo = f
		}
		if math.IsNaN(hi) || f > hi {
			hi = f
		}
	}
	return lo, hi
}
