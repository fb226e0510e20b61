package vm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyRemoveJumps_RoundTrip(t *testing.T) {
	m, err := New([3]int{4, 2, 20}, [3]float64{}, [3]float64{1, 1, 1})
	require.NoError(t, err)
	m.Grid().Fill(0.5)
	_, err = m.InsertInterface(flat(5), WithJump(0.125))
	require.NoError(t, err)
	_, err = m.InsertInterface(flat(12), WithJump(-0.0625))
	require.NoError(t, err)

	before := append([]float32(nil), m.Slowness()...)
	require.NoError(t, m.ApplyJumps())

	col := m.Grid().Column(0, 1)
	assert.Equal(t, float32(0.5), col[4])
	assert.Equal(t, float32(0.625), col[5])
	assert.Equal(t, float32(0.625), col[11])
	assert.Equal(t, float32(0.5625), col[12])
	assert.Equal(t, float32(0.5625), col[19])

	require.NoError(t, m.RemoveJumps())
	assert.Empty(t, cmp.Diff(before, m.Slowness(), cmpopts.EquateApprox(0, 1e-6)))
}

func TestApplyJumps_Selection(t *testing.T) {
	m, err := New([3]int{1, 1, 10}, [3]float64{}, [3]float64{1, 1, 1})
	require.NoError(t, err)
	_, err = m.InsertInterface(flat(2), WithJump(1))
	require.NoError(t, err)
	_, err = m.InsertInterface(flat(6), WithJump(10))
	require.NoError(t, err)

	require.NoError(t, m.ApplyJumps(1))
	assert.Equal(t, []float32{0, 0, 0, 0, 0, 0, 10, 10, 10, 10}, m.Slowness())

	assert.ErrorIs(t, m.ApplyJumps(0, 2), ErrInterfaceIndex)
	assert.Equal(t, float32(0), m.Slowness()[2], "a bad selection applies nothing")

	require.NoError(t, m.RemoveJumps(1))
	assert.Equal(t, make([]float32, 10), m.Slowness())
}

func TestSmoothInterface_PreservesPlanes(t *testing.T) {
	m, err := New([3]int{20, 15, 10}, [3]float64{}, [3]float64{1, 1, 1})
	require.NoError(t, err)

	depth := make([]float32, 20*15)
	for ix := 0; ix < 20; ix++ {
		for iy := 0; iy < 15; iy++ {
			depth[ix*15+iy] = float32(2 + 0.1*float64(ix) - 0.05*float64(iy))
		}
	}
	_, err = m.InsertInterface(depth)
	require.NoError(t, err)

	require.NoError(t, m.SmoothInterface(0, 3, 4, 2))
	f, err := m.Interface(0)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(depth, f.Depth, cmpopts.EquateApprox(0, 1e-5)))
}

func TestSmoothInterface_DampsSpike1D(t *testing.T) {
	m, err := New([3]int{21, 1, 10}, [3]float64{}, [3]float64{1, 1, 1})
	require.NoError(t, err)
	depth := make([]float32, 21)
	for i := range depth {
		depth[i] = 5
	}
	depth[10] = 8
	_, err = m.InsertInterface(depth)
	require.NoError(t, err)

	require.NoError(t, m.SmoothInterface(0, 1, 3, 0))
	f, err := m.Interface(0)
	require.NoError(t, err)

	require.Len(t, f.Depth, 21)
	assert.Less(t, f.Depth[10], float32(8))
	assert.Greater(t, f.Depth[10], float32(5))
	assert.Greater(t, f.Depth[9], float32(5))
	assert.InDelta(t, f.Depth[9], f.Depth[11], 1e-6, "kernel is symmetric")
	assert.InDelta(t, 5, f.Depth[0], 1e-6)

	var sum float64
	for _, z := range f.Depth {
		sum += float64(z)
	}
	assert.InDelta(t, 21*5+3, sum, 1e-4, "interior smoothing conserves the spike")
}

func TestSmoothInterface_ClampsWindow(t *testing.T) {
	m, err := New([3]int{3, 2, 10}, [3]float64{}, [3]float64{1, 1, 1})
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(3))
	depth := make([]float32, 6)
	for i := range depth {
		depth[i] = float32(rng.Float64() * 5)
	}
	_, err = m.InsertInterface(depth)
	require.NoError(t, err)

	require.NoError(t, m.SmoothInterface(0, 2, 50, 50))
	f, err := m.Interface(0)
	require.NoError(t, err)
	require.Len(t, f.Depth, 6)
	for _, z := range f.Depth {
		assert.False(t, math.IsNaN(float64(z)))
	}

	assert.ErrorIs(t, m.SmoothInterface(1, 1, 3, 0), ErrInterfaceIndex)
	assert.Error(t, m.SmoothInterface(0, -1, 3, 0))
}

func TestSmoothInterface_ZeroRepetitionsIsNoop(t *testing.T) {
	m, err := New([3]int{5, 1, 10}, [3]float64{}, [3]float64{1, 1, 1})
	require.NoError(t, err)
	depth := []float32{1, 4, 2, 8, 3}
	_, err = m.InsertInterface(depth)
	require.NoError(t, err)

	require.NoError(t, m.SmoothInterface(0, 0, 3, 0))
	f, err := m.Interface(0)
	require.NoError(t, err)
	assert.Equal(t, depth, f.Depth)
}

func TestGaussKernel(t *testing.T) {
	assert.Equal(t, []float64{1}, gaussKernel(0))

	w := gaussKernel(3)
	require.Len(t, w, 7)
	var sum float64
	for _, v := range w {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-12)
	assert.Equal(t, w[0], w[6])
	assert.Greater(t, w[3], w[2])
}

func TestFixPinchouts(t *testing.T) {
	m, err := New([3]int{3, 1, 20}, [3]float64{}, [3]float64{1, 1, 0.5})
	require.NoError(t, err)
	require.NoError(t, m.SetInterfaces([]Interface{
		{Depth: []float32{2, 5, 4}, Jump: make([]float32, 3), DepthMask: make([]int32, 3), JumpMask: make([]int32, 3)},
		{Depth: []float32{3, 4, 4}, Jump: make([]float32, 3), DepthMask: make([]int32, 3), JumpMask: make([]int32, 3)},
		{Depth: []float32{8, 4.2, 4}, Jump: make([]float32, 3), DepthMask: make([]int32, 3), JumpMask: make([]int32, 3)},
	}))

	m.FixPinchouts(0)

	stack := m.Interfaces()
	assert.Equal(t, []float32{2, 4, 4}, stack[0].Depth)
	assert.Equal(t, []float32{3, 4.5, 4.5}, stack[1].Depth)
	assert.Equal(t, []float32{8, 5, 5}, stack[2].Depth)

	for i := 1; i < len(stack); i++ {
		for k := range stack[i].Depth {
			assert.GreaterOrEqual(t, stack[i].Depth[k]-stack[i-1].Depth[k], float32(0.5))
		}
	}
}

func TestFixPinchouts_ExplicitThickness(t *testing.T) {
	m, err := New([3]int{1, 1, 20}, [3]float64{}, [3]float64{1, 1, 1})
	require.NoError(t, err)
	_, err = m.InsertInterface(flat(4))
	require.NoError(t, err)
	_, err = m.InsertInterface(flat(5))
	require.NoError(t, err)

	m.FixPinchouts(2.5)
	f, err := m.Interface(1)
	require.NoError(t, err)
	assert.Equal(t, float32(6.5), f.Depth[0])
}
