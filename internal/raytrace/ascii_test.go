package raytrace

import (
	"testing"

	"github.com/banshee-data/vmtomo/internal/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStations_RoundTrip(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	in := []Station{
		{ID: 101, X: 412.5, Y: 0, Z: -1.25},
		{ID: 7, X: 1e-3, Y: 2, Z: 3},
	}
	require.NoError(t, WriteStations(fsys, "inst.dat", in))

	got, err := ReadStations(fsys, "inst.dat")
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestReadStations_Format(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("shot.dat", []byte("# shots\n  5\t1 2 3 extra\n\n6 4 5 6\n5 9 9 9\n"), 0o644))

	got, err := ReadStations(fsys, "shot.dat")
	require.NoError(t, err)
	assert.Equal(t, []Station{{ID: 5, X: 9, Y: 9, Z: 9}, {ID: 6, X: 4, Y: 5, Z: 6}}, got,
		"a repeated id keeps its first position with the latest location")

	require.NoError(t, fsys.WriteFile("bad.dat", []byte("1 2 3\n"), 0o644))
	_, err = ReadStations(fsys, "bad.dat")
	assert.ErrorContains(t, err, "bad.dat:1")

	require.NoError(t, fsys.WriteFile("bad.dat", []byte("x 2 3 4\n"), 0o644))
	_, err = ReadStations(fsys, "bad.dat")
	assert.ErrorContains(t, err, "bad id")

	_, err = ReadStations(fsys, "missing.dat")
	assert.True(t, fsutil.IsNotExist(err))
}

func TestPicks_RoundTrip(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	in := []PickRecord{
		{InstID: 101, ShotID: 15001, Branch: 2, SubBranch: 0, Range: 12.5, Time: 5.34, Error: 0.01},
		{InstID: 102, ShotID: 15020, Branch: 3, SubBranch: 1, Range: -8, Time: 8.34, Error: 0.03},
	}
	require.NoError(t, WritePicks(fsys, "pick.dat", in))

	data, err := fsys.ReadFile("pick.dat")
	require.NoError(t, err)
	assert.Equal(t, "101 15001 2 0 12.5 5.34 0.01\n102 15020 3 1 -8 8.34 0.03\n", string(data))

	got, err := ReadPicks(fsys, "pick.dat")
	require.NoError(t, err)
	assert.Equal(t, in, got)

	require.NoError(t, fsys.WriteFile("short.dat", []byte("1 2 3 4 5 6\n"), 0o644))
	_, err = ReadPicks(fsys, "short.dat")
	assert.ErrorContains(t, err, "want 7 pick columns")
}

func TestPyFloat(t *testing.T) {
	assert.Equal(t, "0.0", pyFloat(0))
	assert.Equal(t, "2.0", pyFloat(2))
	assert.Equal(t, "0.5", pyFloat(0.5))
	assert.Equal(t, "1e+21", pyFloat(1e21))
}
