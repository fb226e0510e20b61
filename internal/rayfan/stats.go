package rayfan

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var nanPoint = [3]float32{float32(math.NaN()), float32(math.NaN()), float32(math.NaN())}

// horizontal returns the x/y separation between the first and last node of
// a path.
func horizontal(p [][3]float32) (dx, dy float64, ok bool) {
	if len(p) == 0 {
		return 0, 0, false
	}
	first, last := p[0], p[len(p)-1]
	return float64(last[0] - first[0]), float64(last[1] - first[1]), true
}

// Offsets returns the horizontal distance between the ends of each path.
// Empty paths give NaN.
func (f *Fan) Offsets() []float64 {
	out := make([]float64, len(f.Paths))
	for i, p := range f.Paths {
		dx, dy, ok := horizontal(p)
		if !ok {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Hypot(dx, dy)
	}
	return out
}

// Azimuths returns the clockwise-from-north direction of each path, in
// degrees in [0, 360).
func (f *Fan) Azimuths() []float64 {
	out := make([]float64, len(f.Paths))
	for i, p := range f.Paths {
		dx, dy, ok := horizontal(p)
		if !ok {
			out[i] = math.NaN()
			continue
		}
		az := 90 - math.Atan2(dy, dx)*180/math.Pi
		if az < 0 {
			az += 360
		}
		out[i] = az
	}
	return out
}

// Residuals returns travel time minus pick time plus the fan static.
func (f *Fan) Residuals() []float64 {
	out := make([]float64, f.NRays())
	for i := range out {
		out[i] = float64(f.TravelTimes[i]) - float64(f.PickTimes[i]) + float64(f.Static)
	}
	return out
}

// RMS is the root mean square residual.
func (f *Fan) RMS() float64 {
	r := f.Residuals()
	return math.Sqrt(floats.Dot(r, r) / float64(len(r)))
}

// Chi2 returns the squared residual of each ray normalized by its pick
// error.
func (f *Fan) Chi2() []float64 {
	r := f.Residuals()
	for i := range r {
		r[i] /= float64(f.PickErrors[i])
		r[i] *= r[i]
	}
	return r
}

// Chi2Mean is the mean of Chi2.
func (f *Fan) Chi2Mean() float64 {
	c := f.Chi2()
	return floats.Sum(c) / float64(len(c))
}

// BottomPoints returns the deepest node of each path.
func (f *Fan) BottomPoints() [][3]float32 {
	out := make([][3]float32, len(f.Paths))
	for i, p := range f.Paths {
		out[i] = nanPoint
		for j, node := range p {
			if j == 0 || node[2] > out[i][2] {
				out[i] = node
			}
		}
	}
	return out
}

// EndPoints returns the first node of each path.
func (f *Fan) EndPoints() [][3]float32 {
	out := make([][3]float32, len(f.Paths))
	for i, p := range f.Paths {
		if len(p) == 0 {
			out[i] = nanPoint
			continue
		}
		out[i] = p[0]
	}
	return out
}

func (g *Group) concat(per func(f *Fan) []float64) []float64 {
	var out []float64
	for i := range g.Fans {
		out = append(out, per(&g.Fans[i])...)
	}
	return out
}

// Offsets concatenates the offsets of every fan.
func (g *Group) Offsets() []float64 { return g.concat((*Fan).Offsets) }

// Azimuths concatenates the azimuths of every fan.
func (g *Group) Azimuths() []float64 { return g.concat((*Fan).Azimuths) }

// Residuals concatenates the residuals of every fan.
func (g *Group) Residuals() []float64 { return g.concat((*Fan).Residuals) }

// BottomPoints concatenates the bottom points of every fan.
func (g *Group) BottomPoints() [][3]float32 {
	var out [][3]float32
	for i := range g.Fans {
		out = append(out, g.Fans[i].BottomPoints()...)
	}
	return out
}

// NRays is the total number of rays in the group.
func (g *Group) NRays() int {
	var n int
	for i := range g.Fans {
		n += g.Fans[i].NRays()
	}
	return n
}

// RMS is the mean of the per-fan RMS values.
func (g *Group) RMS() float64 {
	return g.meanOf((*Fan).RMS)
}

// Chi2 is the mean of the per-fan Chi2Mean values.
func (g *Group) Chi2() float64 {
	return g.meanOf((*Fan).Chi2Mean)
}

func (g *Group) meanOf(per func(f *Fan) float64) float64 {
	if len(g.Fans) == 0 {
		return math.NaN()
	}
	v := make([]float64, len(g.Fans))
	for i := range g.Fans {
		v[i] = per(&g.Fans[i])
	}
	return stat.Mean(v, nil)
}

func (g *Group) String() string {
	return fmt.Sprintf("%s: nrayfans = %d, Chi^2 = %g, rms = %g", g.Name, len(g.Fans), g.Chi2(), g.RMS())
}
