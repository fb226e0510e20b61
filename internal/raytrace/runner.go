// Package raytrace drives the external shortest-path raytracer over a
// model, one receiver at a time, and reads and writes its ASCII inputs.
package raytrace

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/vmtomo/internal/config"
	"github.com/banshee-data/vmtomo/internal/fsutil"
	"github.com/banshee-data/vmtomo/internal/monitoring"
	"github.com/banshee-data/vmtomo/internal/timeutil"
	"github.com/banshee-data/vmtomo/internal/vm"
	"github.com/google/uuid"
)

// DefaultProgram is the raytracer executable looked up on PATH.
const DefaultProgram = "slim_rays"

// Options are the raytracer inputs other than the model and output file.
type Options struct {
	Program string

	InstFile string
	ShotFile string
	PickFile string

	// GridSize is the shortest-path graph size. Zero means the model shape.
	GridSize    [3]int
	ForwardStar [3]int
	// MinAngle is the minimum angle between forward-star search
	// directions, in degrees.
	MinAngle    float64
	MinVelocity float64
	// MaxNodeSize is the average number of nodes allocated per ray path.
	MaxNodeSize int
	TopLayer    int
	// BottomLayer < 0 means the model's deepest layer.
	BottomLayer int
	// Static is the instrument static passed to the raytracer.
	Static float64

	// Stdout receives the raytracer's standard output. When nil it is
	// discarded unless verbosity is at Debug.
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultOptions returns the stock raytracer settings with the usual
// inst.dat, shot.dat and pick.dat inputs.
func DefaultOptions() Options {
	return OptionsFromConfig(&config.RaytracerConfig{})
}

// OptionsFromConfig maps the config section onto Options.
func OptionsFromConfig(rc *config.RaytracerConfig) Options {
	return Options{
		Program:     rc.GetProgram(),
		InstFile:    "inst.dat",
		ShotFile:    "shot.dat",
		PickFile:    "pick.dat",
		ForwardStar: rc.GetForwardStar(),
		MinAngle:    rc.GetMinAngle(),
		MinVelocity: rc.GetMinVelocity(),
		MaxNodeSize: rc.GetMaxNodeSize(),
		TopLayer:    rc.GetTopLayer(),
		BottomLayer: rc.GetBottomLayer(),
	}
}

// ReceiverResult reports one raytracer invocation.
type ReceiverResult struct {
	ID int64
	// Grew is false when the ray file did not get any bigger, which is how
	// a raytracer that silently traced nothing shows up.
	Grew    bool
	Elapsed time.Duration
	// Err is the command error, usually a non-zero exit.
	Err error
}

// Result reports a complete run.
type Result struct {
	RunID     uuid.UUID
	RayFile   string
	Created   bool
	Elapsed   time.Duration
	Receivers []ReceiverResult
}

// Silent lists receivers whose invocation did not grow the ray file.
func (r *Result) Silent() []int64 {
	var ids []int64
	for _, rr := range r.Receivers {
		if !rr.Grew {
			ids = append(ids, rr.ID)
		}
	}
	return ids
}

// Runner invokes the raytracer. The zero value uses the OS filesystem, the
// real clock and native byte order.
type Runner struct {
	FS        fsutil.FileSystem
	Clock     timeutil.Clock
	ByteOrder binary.ByteOrder
	DataRoots []string
}

func (r *Runner) fs() fsutil.FileSystem {
	if r.FS == nil {
		return fsutil.OSFileSystem{}
	}
	return r.FS
}

func (r *Runner) clock() timeutil.Clock {
	if r.Clock == nil {
		return timeutil.RealClock{}
	}
	return r.Clock
}

// job is the per-run state the stdin script is built from.
type job struct {
	vmFile      string
	rayFile     string
	grid        [3]int
	forwardStar [3]int
	bottom      int
	opts        *Options
}

// script renders the raytracer's stdin for one receiver. Every receiver
// after the first appends to the ray file.
func (j *job) script(inst Station, first bool) string {
	appendFlag := 1
	if first {
		appendFlag = 0
	}
	lines := []string{
		j.vmFile,
		strconv.FormatInt(inst.ID, 10),
		fmt.Sprintf("%d,%d,%d", j.grid[0], j.grid[1], j.grid[2]),
		pyFloat(1 / j.opts.MinVelocity),
		strconv.Itoa(j.opts.MaxNodeSize),
		fmt.Sprintf("%-10.5f %-10.5f %-10.5f", inst.X, inst.Y, inst.Z),
		fmt.Sprintf("%d,%d", j.opts.TopLayer, j.bottom),
		fmt.Sprintf("%d,%d,%d", j.forwardStar[0], j.forwardStar[1], j.forwardStar[2]),
		pyFloat(j.opts.MinAngle),
		j.opts.ShotFile,
		j.opts.PickFile,
		j.rayFile,
		strconv.Itoa(appendFlag),
		pyFloat(j.opts.Static),
	}
	return strings.Join(lines, "\n") + "\n"
}

// pyFloat formats v in shortest form, keeping a decimal point on whole
// numbers so the raytracer's list-directed reads see a real.
func pyFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// prepare reads the model header and resolves the grid size, forward star
// and bottom layer.
func (r *Runner) prepare(vmFile, rayFile string, opts *Options) (*job, error) {
	path, err := fsutil.Locate(r.fs(), vmFile, r.DataRoots)
	if err != nil {
		return nil, fmt.Errorf("raytrace: model: %w", err)
	}
	s := vm.Serializer{FS: r.fs(), ByteOrder: r.ByteOrder, HeadOnly: true}
	head, err := s.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("raytrace: %w", err)
	}
	nr, err := r.countInterfaces(path)
	if err != nil {
		return nil, err
	}

	j := &job{vmFile: path, rayFile: rayFile, grid: opts.GridSize, forwardStar: opts.ForwardStar, bottom: opts.BottomLayer, opts: opts}
	if j.grid == [3]int{} {
		j.grid = head.Grid().Shape()
	}
	switch {
	case head.NX() == 1:
		j.forwardStar[0] = 0
	case head.NY() == 1:
		j.forwardStar[1] = 0
	}
	if j.bottom < 0 {
		j.bottom = nr
	}
	return j, nil
}

// countInterfaces reads nr from the header without loading the body.
func (r *Runner) countInterfaces(path string) (int, error) {
	f, err := r.fs().Open(path)
	if err != nil {
		return 0, fmt.Errorf("raytrace: open %s: %w", path, err)
	}
	defer f.Close()

	bo := r.ByteOrder
	if bo == nil {
		bo = binary.NativeEndian
	}
	var dims [4]int32
	if err := binary.Read(f, bo, &dims); err != nil {
		return 0, fmt.Errorf("raytrace: read %s header: %w", path, err)
	}
	return int(dims[3]), nil
}

// Run traces rays from every instrument in opts.InstFile through the model
// in vmFile, writing all rayfans to rayFile. A failing or silent receiver
// is logged and recorded in the result; Run itself only fails when it
// cannot start, or when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, vmFile, rayFile string, opts Options) (*Result, error) {
	if opts.Program == "" {
		opts.Program = DefaultProgram
	}
	if opts.MinVelocity <= 0 {
		return nil, fmt.Errorf("raytrace: min velocity must be positive, got %g", opts.MinVelocity)
	}
	j, err := r.prepare(vmFile, rayFile, &opts)
	if err != nil {
		return nil, err
	}
	insts, err := ReadStations(r.fs(), opts.InstFile)
	if err != nil {
		return nil, fmt.Errorf("raytrace: instruments: %w", err)
	}

	res := &Result{RunID: uuid.New(), RayFile: rayFile}
	fsys := r.fs()
	clk := r.clock()

	monitoring.Vlogf(monitoring.Progress, "Raytracing paths to %d receiver(s)...", len(insts))
	if fsys.Exists(rayFile) {
		if err := fsys.Remove(rayFile); err != nil {
			return nil, fmt.Errorf("raytrace: remove old ray file: %w", err)
		}
	}

	startAll := clk.Now()
	for i, inst := range insts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		monitoring.Vlogf(monitoring.Detail, " Tracing rays for receiver #%d (%d of %d)", inst.ID, i+1, len(insts))

		script := j.script(inst, i == 0)
		monitoring.Vlogf(monitoring.Debug, "%s", script)

		size0 := fsutil.Size(fsys, rayFile)
		start := clk.Now()
		cmdErr := r.invoke(ctx, &opts, script)
		elapsed := clk.Since(start)
		size1 := fsutil.Size(fsys, rayFile)

		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		rr := ReceiverResult{ID: inst.ID, Grew: size1 > size0, Elapsed: elapsed, Err: cmdErr}
		res.Receivers = append(res.Receivers, rr)

		if cmdErr != nil {
			monitoring.Vlogf(monitoring.Warnings, "warning: raytracer failed for receiver #%d: %v", inst.ID, cmdErr)
		}
		if !rr.Grew {
			monitoring.Vlogf(monitoring.Warnings, "warning: did not appear to trace rays for receiver #%d", inst.ID)
		}
		monitoring.Vlogf(monitoring.Detail, "Completed raytracing for receiver #%d in %v.", inst.ID, elapsed)
	}
	res.Elapsed = clk.Since(startAll)
	res.Created = fsys.Exists(rayFile)

	monitoring.Vlogf(monitoring.Progress, "Completed raytracing for all receivers in %v (run %s).", res.Elapsed, res.RunID)
	if res.Created {
		monitoring.Vlogf(monitoring.Progress, "Output rayfile is: %s", rayFile)
	} else {
		monitoring.Vlogf(monitoring.Warnings, "warning: did not create a rayfile")
	}
	return res, nil
}

func (r *Runner) invoke(ctx context.Context, opts *Options, script string) error {
	cmd := exec.CommandContext(ctx, opts.Program)
	cmd.Stdin = strings.NewReader(script)
	switch {
	case opts.Stdout != nil:
		cmd.Stdout = opts.Stdout
	case monitoring.Enabled(monitoring.Debug):
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = opts.Stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%s exited with status %d", opts.Program, exitErr.ExitCode())
	}
	return err
}
