package raytrace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/vmtomo/internal/config"
	"github.com/banshee-data/vmtomo/internal/monitoring"
	"github.com/banshee-data/vmtomo/internal/testutil"
	"github.com/banshee-data/vmtomo/internal/timeutil"
	"github.com/banshee-data/vmtomo/internal/vm"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRaytracer logs every stdin script and appends to the ray file named
// on line 12, except for receiver 13 which exits non-zero without output.
const fakeRaytracer = `#!/bin/sh
input=$(cat)
dir=$(dirname "$0")
printf '%s\n--\n' "$input" >> "$dir/calls.log"
inst=$(printf '%s\n' "$input" | sed -n 2p)
rayfile=$(printf '%s\n' "$input" | sed -n 12p)
if [ "$inst" = "13" ]; then
  exit 3
fi
printf 'ray' >> "$rayfile"
`

func captureLogs(t *testing.T, level int) *[]string {
	t.Helper()
	var lines []string
	old := monitoring.Logf
	oldLevel := monitoring.Verbosity()
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	monitoring.SetVerbosity(level)
	t.Cleanup(func() {
		monitoring.SetLogger(old)
		monitoring.SetVerbosity(oldLevel)
	})
	return &lines
}

type fixture struct {
	dir     string
	vmFile  string
	rayFile string
	program string
	opts    Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake raytracer is a shell script")
	}
	dir := t.TempDir()

	m, err := vm.New([3]int{4, 1, 5}, [3]float64{}, [3]float64{1, 1, 1})
	require.NoError(t, err)
	m.Grid().Fill(0.5)
	_, err = m.InsertInterface([]float32{1, 1, 1, 1})
	require.NoError(t, err)
	_, err = m.InsertInterface([]float32{3, 3, 3, 3})
	require.NoError(t, err)
	vmFile := filepath.Join(dir, "model.vm")
	require.NoError(t, vm.WriteModel(vmFile, m))

	program := testutil.WriteFile(t, dir, "slim_rays", fakeRaytracer)
	require.NoError(t, os.Chmod(program, 0o755))

	inst := testutil.WriteFile(t, dir, "inst.dat", "# id x y z\n11 1.5 0 -0.25\n\n13 2 0 0\n12 3 0 0\n")
	opts := DefaultOptions()
	opts.Program = program
	opts.InstFile = inst
	opts.ShotFile = filepath.Join(dir, "shot.dat")
	opts.PickFile = filepath.Join(dir, "pick.dat")

	return &fixture{
		dir:     dir,
		vmFile:  vmFile,
		rayFile: filepath.Join(dir, "out.rays"),
		program: program,
		opts:    opts,
	}
}

func (f *fixture) calls(t *testing.T) [][]string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, "calls.log"))
	require.NoError(t, err)
	var out [][]string
	for _, block := range strings.Split(strings.TrimSuffix(string(data), "--\n"), "--\n") {
		out = append(out, strings.Split(strings.TrimSuffix(block, "\n"), "\n"))
	}
	return out
}

func TestRun_FakeRaytracer(t *testing.T) {
	f := newFixture(t)
	logs := captureLogs(t, monitoring.Detail)
	require.NoError(t, os.WriteFile(f.rayFile, []byte("stale"), 0o644))

	r := Runner{Clock: timeutil.NewStepClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), time.Second)}
	res, err := r.Run(context.Background(), f.vmFile, f.rayFile, f.opts)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, res.RunID)
	assert.True(t, res.Created)
	require.Len(t, res.Receivers, 3)
	assert.Equal(t, []int64{11, 13, 12}, []int64{res.Receivers[0].ID, res.Receivers[1].ID, res.Receivers[2].ID})
	assert.True(t, res.Receivers[0].Grew)
	assert.False(t, res.Receivers[1].Grew)
	assert.True(t, res.Receivers[2].Grew)
	assert.Equal(t, []int64{13}, res.Silent())
	assert.NoError(t, res.Receivers[0].Err)
	require.Error(t, res.Receivers[1].Err)
	assert.Contains(t, res.Receivers[1].Err.Error(), "exited with status 3")
	assert.Equal(t, time.Second, res.Receivers[0].Elapsed)

	data, err := os.ReadFile(f.rayFile)
	require.NoError(t, err)
	assert.Equal(t, "rayray", string(data), "the stale ray file is replaced")

	calls := f.calls(t)
	require.Len(t, calls, 3)
	assert.Equal(t, []string{
		f.vmFile,
		"11",
		"4,1,5",
		"0.7142857142857143",
		"620",
		"1.50000    0.00000    -0.25000  ",
		"0,2",
		"12,0,24",
		"0.5",
		f.opts.ShotFile,
		f.opts.PickFile,
		f.rayFile,
		"0",
		"0.0",
	}, calls[0])
	assert.Equal(t, "1", calls[1][12], "later receivers append")
	assert.Equal(t, "1", calls[2][12])

	joined := strings.Join(*logs, "\n")
	assert.Contains(t, joined, "Raytracing paths to 3 receiver(s)...")
	assert.Contains(t, joined, "did not appear to trace rays for receiver #13")
	assert.Contains(t, joined, "Tracing rays for receiver #12 (3 of 3)")
	assert.Contains(t, joined, "Output rayfile is: "+f.rayFile)
}

func TestRun_Options(t *testing.T) {
	f := newFixture(t)
	captureLogs(t, monitoring.Quiet)

	f.opts.GridSize = [3]int{8, 1, 10}
	f.opts.TopLayer = 1
	f.opts.BottomLayer = 1
	f.opts.Static = 0.25
	var r Runner
	_, err := r.Run(context.Background(), f.vmFile, f.rayFile, f.opts)
	require.NoError(t, err)

	first := f.calls(t)[0]
	assert.Equal(t, "8,1,10", first[2])
	assert.Equal(t, "1,1", first[6])
	assert.Equal(t, "0.25", first[13])
}

func TestRun_ForwardStarForCrossLine(t *testing.T) {
	f := newFixture(t)
	captureLogs(t, monitoring.Quiet)

	m, err := vm.New([3]int{1, 6, 5}, [3]float64{}, [3]float64{1, 1, 1})
	require.NoError(t, err)
	require.NoError(t, vm.WriteModel(f.vmFile, m))

	var r Runner
	_, err = r.Run(context.Background(), f.vmFile, f.rayFile, f.opts)
	require.NoError(t, err)
	first := f.calls(t)[0]
	assert.Equal(t, "0,12,24", first[7])
	assert.Equal(t, "0,0", first[6], "no interfaces means the bottom layer is 0")
}

func TestRun_SetupFailures(t *testing.T) {
	f := newFixture(t)
	captureLogs(t, monitoring.Quiet)
	var r Runner

	_, err := r.Run(context.Background(), filepath.Join(f.dir, "missing.vm"), f.rayFile, f.opts)
	assert.Error(t, err)

	opts := f.opts
	opts.InstFile = filepath.Join(f.dir, "none.dat")
	_, err = r.Run(context.Background(), f.vmFile, f.rayFile, opts)
	assert.Error(t, err)

	opts = f.opts
	opts.MinVelocity = 0
	_, err = r.Run(context.Background(), f.vmFile, f.rayFile, opts)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := r.Run(ctx, f.vmFile, f.rayFile, f.opts)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Receivers)
}

func TestRun_DataRoots(t *testing.T) {
	f := newFixture(t)
	captureLogs(t, monitoring.Quiet)

	r := Runner{DataRoots: []string{f.dir}}
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err := r.Run(context.Background(), "model.vm", f.rayFile, f.opts)
	require.NoError(t, err)
	assert.Equal(t, f.vmFile, f.calls(t)[0][0])
}

func TestOptionsFromConfig(t *testing.T) {
	star := []int{6, 6, 12}
	prog := "my_rays"
	opts := OptionsFromConfig(&config.RaytracerConfig{Program: &prog, ForwardStar: star})
	assert.Equal(t, "my_rays", opts.Program)
	assert.Equal(t, [3]int{6, 6, 12}, opts.ForwardStar)
	assert.Equal(t, 620, opts.MaxNodeSize)
	assert.Equal(t, -1, opts.BottomLayer)
	assert.Equal(t, "inst.dat", opts.InstFile)
}
