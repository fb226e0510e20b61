package vmplot

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/vmtomo/internal/grid"
	"github.com/banshee-data/vmtomo/internal/vm"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// twoLayerModel is 5 km wide and 4 km deep with a 4 km/s upper layer over
// an 8 km/s lower layer, split by an interface at 2 km with one gap.
func twoLayerModel(t *testing.T) *vm.Model {
	t.Helper()
	m, err := vm.New([3]int{6, 1, 5}, [3]float64{}, [3]float64{1, 1, 1})
	require.NoError(t, err)
	m.Grid().Fill(0.25)
	for ix := 0; ix < m.NX(); ix++ {
		for iz := 3; iz < m.NZ(); iz++ {
			m.Grid().Set(ix, 0, iz, 0.125)
		}
	}
	_, err = m.InsertInterface([]float32{2, 2, float32(math.NaN()), 2, 2, 2})
	require.NoError(t, err)
	return m
}

func TestNewSection(t *testing.T) {
	m := twoLayerModel(t)
	s, cols, err := newSection(m, SectionOptions{})
	require.NoError(t, err)

	c, r := s.Dims()
	assert.Equal(t, 6, c)
	assert.Equal(t, 5, r)
	assert.Len(t, cols, 6)
	assert.Equal(t, 4.0, s.Z(0, 0))
	assert.Equal(t, 8.0, s.Z(5, 4))
	assert.Equal(t, 3.0, s.Y(3))
	assert.Equal(t, 4.0, s.Min())
	assert.Equal(t, 8.0, s.Max())
}

func TestNewSection_ConstantAndEmpty(t *testing.T) {
	m, err := vm.New([3]int{3, 1, 3}, [3]float64{}, [3]float64{1, 1, 1})
	require.NoError(t, err)
	m.Grid().Fill(0.5)
	s, _, err := newSection(m, SectionOptions{})
	require.NoError(t, err)
	assert.Less(t, s.Min(), s.Max(), "a constant model still gets a usable color range")

	m.Grid().Fill(0)
	_, _, err = newSection(m, SectionOptions{})
	assert.ErrorIs(t, err, ErrEmpty)

	_, _, err = newSection(m, SectionOptions{Axis: grid.AxisZ})
	assert.ErrorIs(t, err, ErrAxis)
}

func TestCut_CrossLineModel(t *testing.T) {
	m, err := vm.New([3]int{1, 4, 3}, [3]float64{}, [3]float64{1, 0.5, 1})
	require.NoError(t, err)
	h, cols, err := cut(m, SectionOptions{Axis: grid.AxisX})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1, 1.5}, h)
	assert.Equal(t, [][2]int{{0, 0}, {0, 1}, {0, 2}, {0, 3}}, cols)
}

func TestInterfaceLines_BreaksAtNaN(t *testing.T) {
	m := twoLayerModel(t)
	h, cols, err := cut(m, SectionOptions{})
	require.NoError(t, err)
	iface, err := m.Interface(0)
	require.NoError(t, err)

	segs := interfaceLines(iface.Depth, m.NY(), h, cols)
	require.Len(t, segs, 2)
	assert.Len(t, segs[0], 2)
	assert.Len(t, segs[1], 3)
	assert.Equal(t, 3.0, segs[1][0].X)
	assert.Equal(t, 2.0, segs[1][0].Y)
}

func TestWriteSection_PNG(t *testing.T) {
	m := twoLayerModel(t)
	var buf bytes.Buffer
	require.NoError(t, WriteSection(&buf, m, "png", SectionOptions{Title: "two layers"}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	p, err := Section(m, SectionOptions{HideInterfaces: true})
	require.NoError(t, err)
	assert.Equal(t, "Depth (km)", p.Y.Label.Text)
}

func TestSaveSection(t *testing.T) {
	m := twoLayerModel(t)
	file := filepath.Join(t.TempDir(), "section.png")
	require.NoError(t, SaveSection(file, m, SectionOptions{}))
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func TestVelocityProfile(t *testing.T) {
	m := twoLayerModel(t)
	m.Grid().Set(5, 0, 0, 0)

	depth, vel := VelocityProfile(m, Location{X: 99})
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, depth)
	assert.True(t, math.IsNaN(vel[0]))
	if diff := cmp.Diff([]float64{4, 4, 8, 8}, vel[1:], cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("velocity mismatch (-want +got):\n%s", diff)
	}
}

func TestProfile_HTML(t *testing.T) {
	m := twoLayerModel(t)
	var buf bytes.Buffer
	err := Profile(&buf, m, []Location{{X: 0}, {X: 4}}, ProfileOptions{Title: "Line 7 profile"})
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "Line 7 profile")
	assert.Contains(t, html, "x=0 y=0")
	assert.Contains(t, html, "x=4 y=0")
	assert.Contains(t, html, `"inverse":true`)

	assert.ErrorIs(t, Profile(&buf, m, nil, ProfileOptions{}), ErrEmpty)
}
