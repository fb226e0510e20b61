package vm

import (
	"fmt"
	"math"
)

// SmoothInterface convolves the depth surface of interface i with a
// normalized Gaussian, repetitions times. window is the half-width along x
// and windowY along y; windowY <= 0 reuses window. Each half-width is
// clamped to the axis length minus one, so a degenerate axis is left alone
// and a model with ny == 1 is smoothed along x only. Edges are padded by
// odd reflection, which keeps planar surfaces unchanged, and the surface
// keeps its shape.
func (m *Model) SmoothInterface(i, repetitions, window, windowY int) error {
	if err := m.checkInterface(i); err != nil {
		return err
	}
	if repetitions < 0 || window < 0 {
		return fmt.Errorf("vm: smoothing needs non-negative repetitions and window, got %d and %d", repetitions, window)
	}
	if windowY <= 0 {
		windowY = window
	}
	nx, ny := m.NX(), m.NY()
	sx := min(window, nx-1)
	sy := min(windowY, ny-1)

	depth := m.interfaces[i].Depth
	surf := make([]float64, len(depth))
	widen(surf, depth)
	kx, ky := gaussKernel(sx), gaussKernel(sy)
	line := make([]float64, max(nx, ny))
	for r := 0; r < repetitions; r++ {
		if sx > 0 {
			for iy := 0; iy < ny; iy++ {
				for ix := 0; ix < nx; ix++ {
					line[ix] = surf[ix*ny+iy]
				}
				out := convolveReflect(line[:nx], kx)
				for ix := 0; ix < nx; ix++ {
					surf[ix*ny+iy] = out[ix]
				}
			}
		}
		if sy > 0 {
			for ix := 0; ix < nx; ix++ {
				row := surf[ix*ny : (ix+1)*ny]
				copy(row, convolveReflect(row, ky))
			}
		}
	}
	for k, v := range surf {
		depth[k] = float32(v)
	}
	return nil
}

// gaussKernel returns exp(-k^2/size) for k in [-size, size], normalized to
// unit sum. size 0 gives the identity kernel.
func gaussKernel(size int) []float64 {
	if size <= 0 {
		return []float64{1}
	}
	w := make([]float64, 2*size+1)
	var sum float64
	for k := -size; k <= size; k++ {
		v := math.Exp(-float64(k*k) / float64(size))
		w[k+size] = v
		sum += v
	}
	for k := range w {
		w[k] /= sum
	}
	return w
}

// convolveReflect returns x convolved with the symmetric kernel w, reading
// samples past either end as their odd reflection about the end point.
// len(w)/2 must not exceed len(x)-1.
func convolveReflect(x, w []float64) []float64 {
	n, h := len(x), len(w)/2
	at := func(j int) float64 {
		switch {
		case j < 0:
			return 2*x[0] - x[-j]
		case j >= n:
			return 2*x[n-1] - x[2*(n-1)-j]
		}
		return x[j]
	}
	out := make([]float64, n)
	for i := range out {
		var s float64
		for k := -h; k <= h; k++ {
			s += w[k+h] * at(i+k)
		}
		out[i] = s
	}
	return out
}

// FixPinchouts untangles crossing interfaces and enforces a minimum layer
// thickness. One pass swaps each adjacent pair pointwise so the shallower
// depth comes first, then every interface is pushed down wherever it lies
// less than minThickness below the one above. minThickness <= 0 means dz.
func (m *Model) FixPinchouts(minThickness float64) {
	if minThickness <= 0 {
		minThickness = m.DZ()
	}
	for i := 1; i < len(m.interfaces); i++ {
		upper, lower := m.interfaces[i-1].Depth, m.interfaces[i].Depth
		for k := range upper {
			if lower[k] < upper[k] {
				upper[k], lower[k] = lower[k], upper[k]
			}
		}
	}
	for i := 1; i < len(m.interfaces); i++ {
		upper, lower := m.interfaces[i-1].Depth, m.interfaces[i].Depth
		for k := range upper {
			if float64(lower[k])-float64(upper[k]) < minThickness {
				lower[k] = float32(float64(upper[k]) + minThickness)
			}
		}
	}
}
