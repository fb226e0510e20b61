package vm

import "math"

// ApplyJumps adds each selected interface's slowness jump to every node at
// or below the interface. With no arguments every interface is applied.
func (m *Model) ApplyJumps(interfaces ...int) error {
	return m.shiftJumps(1, interfaces)
}

// RemoveJumps undoes ApplyJumps for the same selection.
func (m *Model) RemoveJumps(interfaces ...int) error {
	return m.shiftJumps(-1, interfaces)
}

func (m *Model) shiftJumps(sign float32, selected []int) error {
	if len(selected) == 0 {
		selected = make([]int, len(m.interfaces))
		for i := range selected {
			selected[i] = i
		}
	}
	for _, i := range selected {
		if err := m.checkInterface(i); err != nil {
			return err
		}
	}
	g := m.grid
	for _, i := range selected {
		f := m.interfaces[i]
		for ix := 0; ix < m.NX(); ix++ {
			for iy := 0; iy < m.NY(); iy++ {
				k := m.surfaceIndex(ix, iy)
				jp := f.Jump[k]
				z := float64(f.Depth[k])
				if jp == 0 || math.IsNaN(z) {
					continue
				}
				col := g.Column(ix, iy)
				for iz := g.Z2I(z); iz < len(col); iz++ {
					col[iz] += sign * jp
				}
			}
		}
	}
	return nil
}
