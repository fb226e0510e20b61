package main

import (
	"fmt"

	"github.com/banshee-data/vmtomo/internal/config"
	"github.com/banshee-data/vmtomo/internal/grid"
	"github.com/banshee-data/vmtomo/internal/monitoring"
	"github.com/banshee-data/vmtomo/internal/vm"
	"github.com/spf13/cobra"
)

func (a *app) buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build RECIPE OUT",
		Short: "build a model from a json or yaml layer recipe",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := config.LoadRecipe(args[0])
			if err != nil {
				return err
			}
			m, err := vm.Build(r)
			if err != nil {
				return err
			}
			if m.Validation, err = a.validation(); err != nil {
				return err
			}
			if err := a.writeModel(args[1], m); err != nil {
				return err
			}
			monitoring.Vlogf(monitoring.Detail, "%s", m.Summary(false))
			return nil
		},
	}
}

func (a *app) infoCmd() *cobra.Command {
	var extended bool
	cmd := &cobra.Command{
		Use:   "info MODEL",
		Short: "summarize and verify a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.readModel(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, m.Summary(extended))
			ok, err := m.Verify()
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintln(out, "verify: ok")
			} else {
				fmt.Fprintln(out, "verify: model has problems")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&extended, "extended", "e", false, "add per-interface and per-layer ranges")
	return cmd
}

func (a *app) insertCmd() *cobra.Command {
	var (
		depth []float64
		jump  []float64
		out   string
	)
	cmd := &cobra.Command{
		Use:   "insert MODEL",
		Short: "insert a depth interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.readModel(args[0])
			if err != nil {
				return err
			}
			var opts []vm.InsertOption
			if len(jump) > 0 {
				opts = append(opts, vm.WithJump(toFloat32s(jump)...))
			}
			i, err := m.InsertInterface(toFloat32s(depth), opts...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted interface %d of %d\n", i, m.NR())
			return a.writeModel(outputPath(out, args[0]), m)
		},
	}
	cmd.Flags().Float64SliceVar(&depth, "depth", nil, "depth, one value or nx*ny values")
	cmd.Flags().Float64SliceVar(&jump, "jump", nil, "slowness jump, one value or nx*ny values")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output model (default: edit in place)")
	cmd.MarkFlagRequired("depth")
	return cmd
}

func (a *app) smoothCmd() *cobra.Command {
	var (
		iface, reps, window, windowY int
		out                          string
	)
	cmd := &cobra.Command{
		Use:   "smooth MODEL",
		Short: "gaussian-smooth an interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.readModel(args[0])
			if err != nil {
				return err
			}
			w := window
			if w < 0 {
				w = a.cfg.GetSmoothWindow()
			}
			if err := m.SmoothInterface(iface, reps, w, windowY); err != nil {
				return err
			}
			return a.writeModel(outputPath(out, args[0]), m)
		},
	}
	cmd.Flags().IntVarP(&iface, "interface", "i", 0, "interface index")
	cmd.Flags().IntVarP(&reps, "repetitions", "n", 1, "number of passes")
	cmd.Flags().IntVarP(&window, "window", "w", -1, "half-width along x in nodes; -1 uses the config")
	cmd.Flags().IntVar(&windowY, "window-y", 0, "half-width along y in nodes; 0 reuses --window")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output model (default: edit in place)")
	return cmd
}

func (a *app) pinchoutsCmd() *cobra.Command {
	var (
		thickness float64
		out       string
	)
	cmd := &cobra.Command{
		Use:   "pinchouts MODEL",
		Short: "untangle crossing interfaces and enforce a minimum thickness",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.readModel(args[0])
			if err != nil {
				return err
			}
			m.FixPinchouts(thickness)
			return a.writeModel(outputPath(out, args[0]), m)
		},
	}
	cmd.Flags().Float64VarP(&thickness, "min-thickness", "t", 0, "minimum layer thickness; 0 means dz")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output model (default: edit in place)")
	return cmd
}

func (a *app) exportBinCmd() *cobra.Command {
	var (
		order []int
		dtype string
	)
	cmd := &cobra.Command{
		Use:   "export-bin MODEL OUT",
		Short: "dump the slowness grid as headerless binary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(order) != 3 {
				return fmt.Errorf("--order needs three axes, got %v", order)
			}
			dt, err := grid.ParseDType(dtype)
			if err != nil {
				return err
			}
			m, err := a.readModel(args[0])
			if err != nil {
				return err
			}
			s := a.serializer()
			s.BinOrder = [3]int{order[0], order[1], order[2]}
			s.BinDType = dt
			if vm.FormatFromPath(args[1]) != vm.FormatBin {
				return fmt.Errorf("output %s must have a .bin extension", args[1])
			}
			return s.WriteFile(args[1], m)
		},
	}
	cmd.Flags().IntSliceVar(&order, "order", []int{0, 1, 2}, "axis order, outermost first")
	cmd.Flags().StringVar(&dtype, "dtype", "float32", "element type: float32, float64, int32 or int16")
	return cmd
}

func toFloat32s(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
