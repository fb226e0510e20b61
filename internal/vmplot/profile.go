package vmplot

import (
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/vmtomo/internal/vm"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Location is a horizontal (x, y) position in model coordinates.
type Location struct {
	X, Y float64
}

func (l Location) String() string {
	return fmt.Sprintf("x=%g y=%g", l.X, l.Y)
}

// VelocityProfile returns the node depths and velocities of the column
// nearest to loc. Non-positive slowness gives a NaN velocity.
func VelocityProfile(m *vm.Model, loc Location) (depth, velocity []float64) {
	g := m.Grid()
	col := g.Column(g.X2I(loc.X), g.Y2I(loc.Y))
	depth = g.Z()
	velocity = make([]float64, len(col))
	for i, s := range col {
		if s > 0 {
			velocity[i] = 1 / float64(s)
		} else {
			velocity[i] = math.NaN()
		}
	}
	return depth, velocity
}

// ProfileOptions configure Profile.
type ProfileOptions struct {
	Title string
	// Width and Height are CSS sizes. They default to 900px by 700px.
	Width, Height string
	// AssetsHost overrides where the page loads the echarts script from.
	AssetsHost string
}

// Profile writes an HTML page plotting velocity against depth, one line
// per location, with depth increasing downward.
func Profile(w io.Writer, m *vm.Model, locs []Location, o ProfileOptions) error {
	if len(locs) == 0 {
		return fmt.Errorf("%w: no profile locations", ErrEmpty)
	}
	width, height := o.Width, o.Height
	if width == "" {
		width = "900px"
	}
	if height == "" {
		height = "700px"
	}
	title := o.Title
	if title == "" {
		title = "Velocity profile"
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: width, Height: height, AssetsHost: o.AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("nx=%d ny=%d nz=%d nr=%d", m.NX(), m.NY(), m.NZ(), m.NR())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Velocity (km/s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Depth (km)", NameLocation: "middle", NameGap: 30, Inverse: opts.Bool(true)}),
	)

	for _, loc := range locs {
		depth, vel := VelocityProfile(m, loc)
		data := make([]opts.LineData, 0, len(depth))
		for i := range depth {
			if math.IsNaN(vel[i]) {
				continue
			}
			data = append(data, opts.LineData{Value: []interface{}{vel[i], depth[i]}})
		}
		line.AddSeries(loc.String(), data)
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("vmplot: render profile: %w", err)
	}
	return nil
}
