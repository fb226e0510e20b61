// Command vmtomo builds, edits, inspects and plots layered velocity
// models, drives the external raytracer, and manages the pick database.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/vmtomo/internal/config"
	"github.com/banshee-data/vmtomo/internal/monitoring"
	"github.com/banshee-data/vmtomo/internal/version"
	"github.com/banshee-data/vmtomo/internal/vm"
	"github.com/spf13/cobra"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	verbosity  int
	cfg        *config.Config
}

func main() {
	log.SetFlags(0)
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("vmtomo: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "vmtomo",
		Short:         "layered velocity models for traveltime tomography",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (json or yaml)")
	root.PersistentFlags().IntVarP(&a.verbosity, "verbosity", "v", -1, "verbosity 0-4; -1 uses the config")

	root.AddCommand(
		a.buildCmd(),
		a.infoCmd(),
		a.insertCmd(),
		a.smoothCmd(),
		a.pinchoutsCmd(),
		a.exportBinCmd(),
		a.plotCmd(),
		a.profileCmd(),
		a.traceCmd(),
		a.rayfanCmd(),
		a.picksCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "print build information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
			},
		},
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	if a.configPath == "" {
		a.cfg = config.DefaultConfig()
	} else {
		cfg, err := config.LoadConfig(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	level := a.verbosity
	if level < 0 {
		level = a.cfg.GetVerbosity()
	}
	monitoring.SetVerbosity(level)
	monitoring.SetLogger(func(format string, v ...interface{}) {
		fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", v...)
	})
	return nil
}

func (a *app) serializer() *vm.Serializer {
	return &vm.Serializer{
		DataRoots: a.cfg.GetDataRoots(),
		ByteOrder: a.cfg.GetByteOrder(),
	}
}

func (a *app) validation() (vm.Mode, error) {
	return vm.ParseMode(a.cfg.GetValidation())
}

func (a *app) readModel(name string) (*vm.Model, error) {
	mode, err := a.validation()
	if err != nil {
		return nil, err
	}
	m, err := a.serializer().ReadFile(name)
	if err != nil {
		return nil, err
	}
	m.Validation = mode
	return m, nil
}

// writeModel verifies m and writes it. In raise mode a defective model is
// not written.
func (a *app) writeModel(name string, m *vm.Model) error {
	if _, err := m.Verify(); err != nil {
		return err
	}
	if err := a.serializer().WriteFile(name, m); err != nil {
		return err
	}
	monitoring.Vlogf(monitoring.Progress, "Wrote %s", name)
	return nil
}

// outputPath is the --out flag, or the input when editing in place.
func outputPath(out, in string) string {
	if out == "" {
		return in
	}
	return out
}

func createOutput(name string) (io.WriteCloser, error) {
	if name == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(name)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
