// Package grid implements a dense 3D cartesian grid of float32 values with
// an origin and a per-axis spacing. Values are stored flat with x as the
// outer axis, y in the middle and z innermost.
package grid

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrShape reports a malformed shape, origin, spacing or value buffer,
	// or a shape mismatch between two grids.
	ErrShape = errors.New("grid: invalid shape")
	// ErrAxis reports an axis outside 0..2.
	ErrAxis = errors.New("grid: invalid axis")
)

// Axis indices.
const (
	AxisX = 0
	AxisY = 1
	AxisZ = 2
)

// Grid is a dense 3D scalar field. Arithmetic methods mutate the receiver in
// place and return it; use Clone first when the original must be kept.
type Grid struct {
	shape  [3]int
	values []float32

	// Origin is (x0, y0, z0).
	Origin [3]float64
	// Spacing is (dx, dy, dz).
	Spacing [3]float64
}

// New builds a grid from a shape of one to three dimensions. Missing
// trailing dimensions become 1. A nil values slice allocates zeros,
// otherwise len(values) must equal the product of shape and the slice is
// adopted without copying. A nil origin means (0,0,0) and a nil spacing
// means (1,1,1); any other length than 3 is rejected.
func New(shape []int, values []float32, origin, spacing []float64) (*Grid, error) {
	if len(shape) < 1 || len(shape) > 3 {
		return nil, fmt.Errorf("%w: shape must have 1 to 3 dimensions, got %d", ErrShape, len(shape))
	}
	g := &Grid{shape: [3]int{1, 1, 1}, Spacing: [3]float64{1, 1, 1}}
	for i, n := range shape {
		if n < 1 {
			return nil, fmt.Errorf("%w: dimension %d is %d", ErrShape, i, n)
		}
		g.shape[i] = n
	}
	if origin != nil {
		if len(origin) != 3 {
			return nil, fmt.Errorf("%w: origin must have 3 elements, got %d", ErrShape, len(origin))
		}
		copy(g.Origin[:], origin)
	}
	if spacing != nil {
		if len(spacing) != 3 {
			return nil, fmt.Errorf("%w: spacing must have 3 elements, got %d", ErrShape, len(spacing))
		}
		copy(g.Spacing[:], spacing)
	}

	n := g.shape[0] * g.shape[1] * g.shape[2]
	switch {
	case values == nil:
		g.values = make([]float32, n)
	case len(values) != n:
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShape, len(values), g.shape)
	default:
		g.values = values
	}
	return g, nil
}

// Zeros returns a zero-filled grid with the given 3D shape.
func Zeros(nx, ny, nz int, origin, spacing [3]float64) (*Grid, error) {
	g, err := New([]int{nx, ny, nz}, nil, origin[:], spacing[:])
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Shape returns (nx, ny, nz).
func (g *Grid) Shape() [3]int { return g.shape }

func (g *Grid) NX() int { return g.shape[0] }
func (g *Grid) NY() int { return g.shape[1] }
func (g *Grid) NZ() int { return g.shape[2] }

// Len returns the number of nodes.
func (g *Grid) Len() int { return len(g.values) }

// Values returns the backing slice. Writes through it mutate the grid.
func (g *Grid) Values() []float32 { return g.values }

// SetValues replaces the backing slice; its length must match the shape.
func (g *Grid) SetValues(values []float32) error {
	if len(values) != g.shape[0]*g.shape[1]*g.shape[2] {
		return fmt.Errorf("%w: %d values for shape %v", ErrShape, len(values), g.shape)
	}
	g.values = values
	return nil
}

// Index returns the flat offset of node (ix, iy, iz).
func (g *Grid) Index(ix, iy, iz int) int {
	return (ix*g.shape[1]+iy)*g.shape[2] + iz
}

func (g *Grid) At(ix, iy, iz int) float32     { return g.values[g.Index(ix, iy, iz)] }
func (g *Grid) Set(ix, iy, iz int, v float32) { g.values[g.Index(ix, iy, iz)] = v }

// Column returns the z column at (ix, iy) as a view into the grid.
func (g *Grid) Column(ix, iy int) []float32 {
	start := g.Index(ix, iy, 0)
	return g.values[start : start+g.shape[2] : start+g.shape[2]]
}

// Fill sets every node to v.
func (g *Grid) Fill(v float32) *Grid {
	for i := range g.values {
		g.values[i] = v
	}
	return g
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	c := *g
	c.values = make([]float32, len(g.values))
	copy(c.values, g.values)
	return &c
}

// SameShape reports whether g and o have identical dimensions.
func (g *Grid) SameShape(o *Grid) bool {
	return g.shape == o.shape
}

// Coord returns the coordinate of index i along axis.
func (g *Grid) Coord(axis, i int) float64 {
	return g.Origin[axis] + g.Spacing[axis]*float64(i)
}

func (g *Grid) axisCoords(axis int) []float64 {
	c := make([]float64, g.shape[axis])
	for i := range c {
		c[i] = g.Coord(axis, i)
	}
	return c
}

// X returns the x coordinates of the nodes.
func (g *Grid) X() []float64 { return g.axisCoords(AxisX) }

// Y returns the y coordinates of the nodes.
func (g *Grid) Y() []float64 { return g.axisCoords(AxisY) }

// Z returns the z coordinates of the nodes.
func (g *Grid) Z() []float64 { return g.axisCoords(AxisZ) }

// coordToIndex rounds half to even and clamps into [0, n-1]. Coordinates
// outside the grid map to the nearest edge node.
func coordToIndex(c, origin, spacing float64, n int) int {
	r := math.RoundToEven((c - origin) / spacing)
	if !(r > 0) {
		return 0
	}
	if r > float64(n-1) {
		return n - 1
	}
	return int(r)
}

// CoordToIndex maps a coordinate along axis to the nearest node index.
func (g *Grid) CoordToIndex(axis int, c float64) int {
	return coordToIndex(c, g.Origin[axis], g.Spacing[axis], g.shape[axis])
}

func (g *Grid) X2I(x float64) int { return g.CoordToIndex(AxisX, x) }
func (g *Grid) Y2I(y float64) int { return g.CoordToIndex(AxisY, y) }
func (g *Grid) Z2I(z float64) int { return g.CoordToIndex(AxisZ, z) }

// CoordsToIndices maps each (x, y, z) point to its (ix, iy, iz) node.
func (g *Grid) CoordsToIndices(points [][3]float64) [][3]int {
	out := make([][3]int, len(points))
	for i, p := range points {
		out[i] = [3]int{g.X2I(p[0]), g.Y2I(p[1]), g.Z2I(p[2])}
	}
	return out
}

// float64s converts the values for gonum reductions.
func (g *Grid) float64s() []float64 {
	out := make([]float64, len(g.values))
	for i, v := range g.values {
		out[i] = float64(v)
	}
	return out
}

// Min returns the smallest value.
func (g *Grid) Min() float64 { return floats.Min(g.float64s()) }

// Max returns the largest value.
func (g *Grid) Max() float64 { return floats.Max(g.float64s()) }

// Mean returns the arithmetic mean.
func (g *Grid) Mean() float64 { return stat.Mean(g.float64s(), nil) }

// MinAxis reduces along axis with Min. The result keeps the other two
// dimensions and has length 1 on the reduced axis.
func (g *Grid) MinAxis(axis int) (*Grid, error) { return g.reduce(axis, floats.Min) }

// MaxAxis reduces along axis with Max.
func (g *Grid) MaxAxis(axis int) (*Grid, error) { return g.reduce(axis, floats.Max) }

// MeanAxis reduces along axis with the arithmetic mean.
func (g *Grid) MeanAxis(axis int) (*Grid, error) {
	return g.reduce(axis, func(x []float64) float64 { return stat.Mean(x, nil) })
}

func (g *Grid) reduce(axis int, fn func([]float64) float64) (*Grid, error) {
	if axis < 0 || axis > 2 {
		return nil, fmt.Errorf("%w: %d", ErrAxis, axis)
	}
	shape := g.shape
	shape[axis] = 1
	out := &Grid{
		shape:   shape,
		values:  make([]float32, shape[0]*shape[1]*shape[2]),
		Origin:  g.Origin,
		Spacing: g.Spacing,
	}
	line := make([]float64, g.shape[axis])
	for ix := 0; ix < shape[0]; ix++ {
		for iy := 0; iy < shape[1]; iy++ {
			for iz := 0; iz < shape[2]; iz++ {
				idx := [3]int{ix, iy, iz}
				for k := range line {
					idx[axis] = k
					line[k] = float64(g.At(idx[0], idx[1], idx[2]))
				}
				out.Set(ix, iy, iz, float32(fn(line)))
			}
		}
	}
	return out, nil
}

// String summarizes the grid extent and value statistics.
func (g *Grid) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d-node cartesian grid:\n", g.Len())
	for axis, name := range []string{"x", "y", "z"} {
		n := g.shape[axis]
		fmt.Fprintf(&b, "%s-range: [%g, %g] (n%s = %d, d%s = %g)\n",
			name, g.Coord(axis, 0), g.Coord(axis, n-1), name, n, name, g.Spacing[axis])
	}
	fmt.Fprintf(&b, " values: min = %g, mean = %g, max = %g", g.Min(), g.Mean(), g.Max())
	return b.String()
}
