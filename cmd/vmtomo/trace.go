package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/vmtomo/internal/fsutil"
	"github.com/banshee-data/vmtomo/internal/rayfan"
	"github.com/banshee-data/vmtomo/internal/raytrace"
	"github.com/spf13/cobra"
)

func (a *app) traceCmd() *cobra.Command {
	var (
		program                  string
		inst, shots, picks       string
		gridSize, star           []int
		minAngle, minVel, static float64
		maxNode, top, bottom     int
	)
	cmd := &cobra.Command{
		Use:   "trace MODEL RAYFILE",
		Short: "run the raytracer for every instrument",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := raytrace.OptionsFromConfig(a.cfg.GetRaytracer())
			flags := cmd.Flags()
			if flags.Changed("program") {
				opts.Program = program
			}
			opts.InstFile, opts.ShotFile, opts.PickFile = inst, shots, picks
			if len(gridSize) > 0 {
				if len(gridSize) != 3 {
					return fmt.Errorf("--grid needs nx,ny,nz, got %v", gridSize)
				}
				opts.GridSize = [3]int{gridSize[0], gridSize[1], gridSize[2]}
			}
			if flags.Changed("forward-star") {
				if len(star) != 3 {
					return fmt.Errorf("--forward-star needs three values, got %v", star)
				}
				opts.ForwardStar = [3]int{star[0], star[1], star[2]}
			}
			if flags.Changed("min-angle") {
				opts.MinAngle = minAngle
			}
			if flags.Changed("min-velocity") {
				opts.MinVelocity = minVel
			}
			if flags.Changed("max-node-size") {
				opts.MaxNodeSize = maxNode
			}
			if flags.Changed("top-layer") {
				opts.TopLayer = top
			}
			if flags.Changed("bottom-layer") {
				opts.BottomLayer = bottom
			}
			opts.Static = static
			opts.Stderr = cmd.ErrOrStderr()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r := raytrace.Runner{ByteOrder: a.cfg.GetByteOrder(), DataRoots: a.cfg.GetDataRoots()}
			res, err := r.Run(ctx, args[0], args[1], opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: %d receiver(s) in %v\n", res.RunID, len(res.Receivers), res.Elapsed)
			if silent := res.Silent(); len(silent) > 0 {
				fmt.Fprintf(out, "no rays traced for receivers %v\n", silent)
			}
			if !res.Created {
				return fmt.Errorf("no ray file was created")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&program, "program", raytrace.DefaultProgram, "raytracer executable")
	f.StringVar(&inst, "inst", "inst.dat", "instrument locations")
	f.StringVar(&shots, "shots", "shot.dat", "shot locations")
	f.StringVar(&picks, "picks", "pick.dat", "traveltime picks")
	f.IntSliceVar(&gridSize, "grid", nil, "graph size nx,ny,nz (default: model shape)")
	f.IntSliceVar(&star, "forward-star", nil, "forward star half-widths")
	f.Float64Var(&minAngle, "min-angle", 0, "minimum forward-star angle in degrees")
	f.Float64Var(&minVel, "min-velocity", 0, "minimum velocity in km/s")
	f.IntVar(&maxNode, "max-node-size", 0, "average nodes allocated per ray")
	f.IntVar(&top, "top-layer", 0, "top layer")
	f.IntVar(&bottom, "bottom-layer", -1, "bottom layer; -1 is the deepest")
	f.Float64Var(&static, "static", 0, "instrument static in seconds")
	return cmd
}

func (a *app) rayfanCmd() *cobra.Command {
	var perFan bool
	cmd := &cobra.Command{
		Use:   "rayfan FILE...",
		Short: "print traveltime statistics for rayfan files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range args {
				g, err := rayfan.ReadFile(fsutil.OSFileSystem{}, name, a.cfg.GetByteOrder())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, g.String())
				if !perFan {
					continue
				}
				for i := range g.Fans {
					f := &g.Fans[i]
					fmt.Fprintf(out, "  fan %d: start=%d nrays=%d rms=%g chi2=%g\n",
						i, f.StartPointID, f.NRays(), f.RMS(), f.Chi2Mean())
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&perFan, "fans", false, "also print one line per fan")
	return cmd
}
