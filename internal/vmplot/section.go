// Package vmplot renders velocity models: vertical sections as static
// images through gonum/plot, and velocity-depth profiles as interactive
// HTML through go-echarts.
package vmplot

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/banshee-data/vmtomo/internal/grid"
	"github.com/banshee-data/vmtomo/internal/vm"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	ErrAxis  = errors.New("vmplot: section axis must be x or y")
	ErrEmpty = errors.New("vmplot: nothing to plot")
)

// SectionOptions select and style a vertical section.
type SectionOptions struct {
	// Axis is the horizontal axis the section runs along, grid.AxisX or
	// grid.AxisY. A model that is one node wide in x is always cut along y.
	Axis int
	// At is the coordinate on the other horizontal axis where the section
	// is cut. It is clamped to the model.
	At float64
	Title string
	// Width and Height default to 8x4 inches.
	Width, Height vg.Length
	// Colors is the number of palette steps. Zero means 255.
	Colors int
	// HideInterfaces turns off the interface overlay.
	HideInterfaces bool
}

func (o SectionOptions) size() (vg.Length, vg.Length) {
	w, h := o.Width, o.Height
	if w == 0 {
		w = 8 * vg.Inch
	}
	if h == 0 {
		h = 4 * vg.Inch
	}
	return w, h
}

// section is a velocity slice adapted to plotter.GridXYZ. Columns run
// along the section, rows down in depth.
type section struct {
	h, z     []float64
	vel      []float64 // column-major: vel[c*len(z)+r]
	min, max float64
}

func (s *section) Dims() (c, r int)  { return len(s.h), len(s.z) }
func (s *section) Z(c, r int) float64 { return s.vel[c*len(s.z)+r] }
func (s *section) X(c int) float64    { return s.h[c] }
func (s *section) Y(r int) float64    { return s.z[r] }
func (s *section) Min() float64       { return s.min }
func (s *section) Max() float64       { return s.max }

// cut returns the node coordinates along the section and, for each, the
// (ix, iy) column it samples.
func cut(m *vm.Model, opts SectionOptions) ([]float64, [][2]int, error) {
	g := m.Grid()
	axis := opts.Axis
	if m.NX() == 1 {
		axis = grid.AxisY
	}
	switch axis {
	case grid.AxisX:
		iy := g.Y2I(opts.At)
		cols := make([][2]int, m.NX())
		for ix := range cols {
			cols[ix] = [2]int{ix, iy}
		}
		return g.X(), cols, nil
	case grid.AxisY:
		ix := g.X2I(opts.At)
		cols := make([][2]int, m.NY())
		for iy := range cols {
			cols[iy] = [2]int{ix, iy}
		}
		return g.Y(), cols, nil
	default:
		return nil, nil, fmt.Errorf("%w: got %d", ErrAxis, opts.Axis)
	}
}

func newSection(m *vm.Model, opts SectionOptions) (*section, [][2]int, error) {
	h, cols, err := cut(m, opts)
	if err != nil {
		return nil, nil, err
	}
	s := &section{h: h, z: m.Grid().Z(), min: math.Inf(1), max: math.Inf(-1)}
	s.vel = make([]float64, 0, len(h)*len(s.z))
	for _, col := range cols {
		for _, slow := range m.Grid().Column(col[0], col[1]) {
			v := math.NaN()
			if slow > 0 {
				v = 1 / float64(slow)
			}
			s.vel = append(s.vel, v)
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				s.min = math.Min(s.min, v)
				s.max = math.Max(s.max, v)
			}
		}
	}
	if math.IsInf(s.min, 1) {
		return nil, nil, fmt.Errorf("%w: section has no positive slowness", ErrEmpty)
	}
	if s.min == s.max {
		s.min -= 0.5
		s.max += 0.5
	}
	return s, cols, nil
}

// interfaceLines splits an interface into line segments along the section,
// breaking at NaN depths.
func interfaceLines(depth []float32, ny int, h []float64, cols [][2]int) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for i, col := range cols {
		z := float64(depth[col[0]*ny+col[1]])
		if math.IsNaN(z) {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: h[i], Y: z})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// Section builds a heat map of velocity on a vertical slice through m,
// with depth increasing downward and the interface stack drawn over it.
func Section(m *vm.Model, opts SectionOptions) (*plot.Plot, error) {
	s, cols, err := newSection(m, opts)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = opts.Title
	if m.NX() == 1 || opts.Axis == grid.AxisY {
		p.X.Label.Text = "Y (km)"
	} else {
		p.X.Label.Text = "X (km)"
	}
	p.Y.Label.Text = "Depth (km)"
	p.Y.Scale = plot.InvertedScale{Normalizer: p.Y.Scale}

	n := opts.Colors
	if n <= 0 {
		n = 255
	}
	cmap := moreland.SmoothBlueRed()
	heat := plotter.NewHeatMap(s, cmap.Palette(n))
	heat.NaN = color.Transparent
	p.Add(heat)

	if opts.HideInterfaces {
		return p, nil
	}
	for i, iface := range m.Interfaces() {
		for k, pts := range interfaceLines(iface.Depth, m.NY(), s.h, cols) {
			line, err := plotter.NewLine(pts)
			if err != nil {
				return nil, fmt.Errorf("interface %d: %w", i, err)
			}
			line.Width = vg.Points(1)
			line.Color = color.Black
			p.Add(line)
			if k == 0 {
				p.Legend.Add(fmt.Sprintf("interface %d", i), line)
			}
		}
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WriteSection renders the section to w in the given image format, e.g.
// "png" or "svg".
func WriteSection(w io.Writer, m *vm.Model, format string, opts SectionOptions) error {
	p, err := Section(m, opts)
	if err != nil {
		return err
	}
	width, height := opts.size()
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return fmt.Errorf("vmplot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("vmplot: write section: %w", err)
	}
	return nil
}

// SaveSection renders the section to file, choosing the format from its
// extension.
func SaveSection(file string, m *vm.Model, opts SectionOptions) error {
	p, err := Section(m, opts)
	if err != nil {
		return err
	}
	width, height := opts.size()
	if err := p.Save(width, height, file); err != nil {
		return fmt.Errorf("vmplot: save %s: %w", file, err)
	}
	return nil
}
