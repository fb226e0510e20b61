package vm

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultModel(t *testing.T) *Model {
	t.Helper()
	m, err := New(DefaultShape, [3]float64{}, [3]float64{1, 1, 1})
	require.NoError(t, err)
	return m
}

func flat(v float32) []float32 { return []float32{v} }

func TestNew(t *testing.T) {
	m, err := New([3]int{10, 2, 20}, [3]float64{1, 2, 3}, [3]float64{0.5, 1, 0.25})
	require.NoError(t, err)

	assert.Equal(t, 10, m.NX())
	assert.Equal(t, 2, m.NY())
	assert.Equal(t, 20, m.NZ())
	assert.Zero(t, m.NR())
	assert.Equal(t, [3]float64{1, 2, 3}, m.R1())
	assert.Equal(t, [3]float64{5.5, 3, 7.75}, m.R2())
	assert.Len(t, m.Slowness(), 400)

	_, err = New([3]int{0, 1, 1}, [3]float64{}, [3]float64{1, 1, 1})
	assert.Error(t, err)
}

func TestSetR2(t *testing.T) {
	m, err := New([3]int{11, 1, 21}, [3]float64{0, 0, -1}, [3]float64{1, 1, 1})
	require.NoError(t, err)

	require.NoError(t, m.SetR2([3]float64{5, 10, 9}))
	assert.Equal(t, [3]float64{0.5, 1, 0.5}, m.Grid().Spacing, "single-node y keeps its spacing")
	assert.Equal(t, [3]float64{5, 0, 9}, m.R2())

	assert.Error(t, m.SetR2([3]float64{-1, 0, 9}))
}

func TestSetValues(t *testing.T) {
	m := newDefaultModel(t)
	assert.ErrorIs(t, m.SetValues(make([]float32, 5)), ErrShape)

	v := make([]float32, 128*128)
	v[0] = 0.5
	require.NoError(t, m.SetValues(v))
	assert.Equal(t, float32(0.5), m.Grid().At(0, 0, 0))
}

func TestSetInterfaces(t *testing.T) {
	m, err := New([3]int{3, 2, 5}, [3]float64{}, [3]float64{1, 1, 1})
	require.NoError(t, err)

	good := Interface{
		Depth:     make([]float32, 6),
		Jump:      make([]float32, 6),
		DepthMask: make([]int32, 6),
		JumpMask:  make([]int32, 6),
	}
	require.NoError(t, m.SetInterfaces([]Interface{good, good}))
	assert.Equal(t, 2, m.NR())

	good.Depth[0] = 9
	f, err := m.Interface(0)
	require.NoError(t, err)
	assert.Zero(t, f.Depth[0], "SetInterfaces must copy its input")

	bad := good
	bad.JumpMask = make([]int32, 5)
	err = m.SetInterfaces([]Interface{good, bad})
	assert.ErrorIs(t, err, ErrShape)
	assert.Contains(t, err.Error(), "interface 1 jump mask")
	assert.Equal(t, 2, m.NR(), "a rejected stack leaves the model unchanged")

	require.NoError(t, m.SetInterfaces(nil))
	assert.Zero(t, m.NR())

	_, err = m.Interface(0)
	assert.ErrorIs(t, err, ErrInterfaceIndex)
}

func TestInterfacesReturnsCopies(t *testing.T) {
	m := newDefaultModel(t)
	_, err := m.InsertInterface(flat(5))
	require.NoError(t, err)

	stack := m.Interfaces()
	stack[0].Depth[0] = 100
	f, err := m.Interface(0)
	require.NoError(t, err)
	assert.Equal(t, float32(5), f.Depth[0])
}

func TestRangeToIndices(t *testing.T) {
	m, err := New([3]int{11, 5, 21}, [3]float64{0, 10, 0}, [3]float64{1, 1, 0.5})
	require.NoError(t, err)

	lo, hi := m.XRange2I(math.Inf(-1), math.Inf(1))
	assert.Equal(t, 0, lo)
	assert.Equal(t, 10, hi)

	lo, hi = m.XRange2I(2.2, 6.6)
	assert.Equal(t, 2, lo)
	assert.Equal(t, 7, hi)

	lo, hi = m.YRange2I(-5, 11)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 1, hi)

	lo, hi = m.ZRange2I(1, 100)
	assert.Equal(t, 2, lo)
	assert.Equal(t, 20, hi)
}

func TestCopyIsDeep(t *testing.T) {
	m := newDefaultModel(t)
	_, err := m.InsertInterface(flat(5))
	require.NoError(t, err)
	m.Validation = ModeRaise

	c := m.Copy()
	c.Grid().Set(0, 0, 0, 7)
	require.NoError(t, c.SetInterfaceDepth(0, make([]float32, 128)))

	assert.Zero(t, m.Grid().At(0, 0, 0))
	f, err := m.Interface(0)
	require.NoError(t, err)
	assert.Equal(t, float32(5), f.Depth[0])
	assert.Equal(t, ModeRaise, c.Validation)
}

func TestSetInterfaceDepth(t *testing.T) {
	m := newDefaultModel(t)
	assert.ErrorIs(t, m.SetInterfaceDepth(0, make([]float32, 128)), ErrInterfaceIndex)

	_, err := m.InsertInterface(flat(5))
	require.NoError(t, err)
	assert.ErrorIs(t, m.SetInterfaceDepth(0, make([]float32, 3)), ErrShape)
}

func TestSummary(t *testing.T) {
	m := newDefaultModel(t)
	_, err := m.InsertInterface(flat(5))
	require.NoError(t, err)
	require.NoError(t, m.DefineConstantLayerVelocity(0, 2))
	require.NoError(t, m.DefineConstantLayerVelocity(1, 4))

	short := m.Summary(false)
	lines := strings.Split(short, "\n")
	assert.Len(t, lines[0], 70)
	assert.Contains(t, lines[0], " Slowness Model ")
	assert.Contains(t, short, "16384-node cartesian grid")
	assert.NotContains(t, short, "Layer 0")

	long := m.Summary(true)
	assert.Contains(t, long, "Model top: z = 0")
	assert.Contains(t, long, "Interface 0: z = [5, 5]")
	assert.Contains(t, long, "Layer 0: u = [  0.500,   0.500] (v = [  2.000,   2.000])")
	assert.Contains(t, long, "Layer 1: u = [  0.250,   0.250] (v = [  4.000,   4.000])")
	assert.True(t, strings.HasSuffix(long, "Model bottom: z = 127"))
}
