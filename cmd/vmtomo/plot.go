package main

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/vmtomo/internal/grid"
	"github.com/banshee-data/vmtomo/internal/vm"
	"github.com/banshee-data/vmtomo/internal/vmplot"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
)

func (a *app) plotCmd() *cobra.Command {
	var (
		axis  string
		at    float64
		title string
		locs  []string
		plain bool
	)
	cmd := &cobra.Command{
		Use:   "plot MODEL OUT",
		Short: "plot a section (png, svg, pdf) or velocity profiles (html)",
		Long: "plot renders a vertical velocity section with the interfaces overlaid. " +
			"When OUT ends in .html it writes interactive velocity-depth profiles instead.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.readModel(args[0])
			if err != nil {
				return err
			}
			if title == "" {
				title = filepath.Base(args[0])
			}
			if strings.EqualFold(filepath.Ext(args[1]), ".html") {
				ls, err := profileLocations(m, locs)
				if err != nil {
					return err
				}
				f, err := createOutput(args[1])
				if err != nil {
					return err
				}
				if err := vmplot.Profile(f, m, ls, vmplot.ProfileOptions{Title: title}); err != nil {
					f.Close()
					return err
				}
				return f.Close()
			}

			opts := vmplot.SectionOptions{At: at, Title: title, HideInterfaces: plain}
			switch strings.ToLower(axis) {
			case "x":
				opts.Axis = grid.AxisX
			case "y":
				opts.Axis = grid.AxisY
			default:
				return fmt.Errorf("--axis must be x or y, got %q", axis)
			}
			return vmplot.SaveSection(args[1], m, opts)
		},
	}
	cmd.Flags().StringVar(&axis, "axis", "x", "horizontal axis of the section: x or y")
	cmd.Flags().Float64Var(&at, "at", 0, "coordinate on the other horizontal axis")
	cmd.Flags().StringVar(&title, "title", "", "plot title (default: model file name)")
	cmd.Flags().StringArrayVar(&locs, "loc", nil, "profile location x,y for html output; repeatable")
	cmd.Flags().BoolVar(&plain, "no-interfaces", false, "do not draw interfaces on the section")
	return cmd
}

// profileLocations parses "x,y" pairs. With none it picks the model centre.
func profileLocations(m *vm.Model, specs []string) ([]vmplot.Location, error) {
	if len(specs) == 0 {
		r1, r2 := m.R1(), m.R2()
		return []vmplot.Location{{X: (r1[0] + r2[0]) / 2, Y: (r1[1] + r2[1]) / 2}}, nil
	}
	out := make([]vmplot.Location, 0, len(specs))
	for _, s := range specs {
		parts := strings.Split(s, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("location %q: want x,y", s)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("location %q: %w", s, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("location %q: %w", s, err)
		}
		out = append(out, vmplot.Location{X: x, Y: y})
	}
	return out, nil
}

func (a *app) profileCmd() *cobra.Command {
	var (
		x, y   float64
		height int
		width  int
	)
	cmd := &cobra.Command{
		Use:   "profile MODEL",
		Short: "print a velocity-depth profile in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.readModel(args[0])
			if err != nil {
				return err
			}
			loc := vmplot.Location{X: x, Y: y}
			depth, vel := vmplot.VelocityProfile(m, loc)
			data := make([]float64, 0, len(vel))
			for _, v := range vel {
				if !math.IsNaN(v) {
					data = append(data, v)
				}
			}
			if len(data) == 0 {
				return fmt.Errorf("no positive slowness at %s", loc)
			}
			caption := fmt.Sprintf("velocity (km/s) at %s, depth %g to %g km left to right", loc, depth[0], depth[len(depth)-1])
			graph := asciigraph.Plot(data,
				asciigraph.Height(height),
				asciigraph.Width(width),
				asciigraph.Caption(caption),
			)
			fmt.Fprintln(cmd.OutOrStdout(), graph)
			return nil
		},
	}
	cmd.Flags().Float64VarP(&x, "x", "x", 0, "x coordinate")
	cmd.Flags().Float64VarP(&y, "y", "y", 0, "y coordinate")
	cmd.Flags().IntVar(&height, "height", 15, "graph height in rows")
	cmd.Flags().IntVar(&width, "width", 80, "graph width in columns")
	return cmd
}
