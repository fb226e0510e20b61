package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/banshee-data/vmtomo/internal/pickdb"
	"github.com/spf13/cobra"
)

type picksFlags struct {
	path    string
	replace bool
}

func (a *app) picksCmd() *cobra.Command {
	pf := &picksFlags{}
	cmd := &cobra.Command{
		Use:   "picks",
		Short: "manage the traveltime pick database",
	}
	cmd.PersistentFlags().StringVar(&pf.path, "db", "", "pick database (default: the config's pickdb_path)")
	cmd.PersistentFlags().BoolVar(&pf.replace, "replace", false, "overwrite existing rows")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "create or upgrade the database",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withDB(pf, true, func(db *pickdb.DB) error {
					v, _, err := db.MigrateVersion()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d\n", a.dbPath(pf), v)
					return nil
				})
			},
		},
		a.addEventCmd(pf),
		a.addPointCmd(pf, "source"),
		a.addPointCmd(pf, "receiver"),
		a.addPickCmd(pf),
		a.picksInfoCmd(pf),
		a.picksExportCmd(pf),
		a.migrateCmd(pf),
	)
	return cmd
}

func (a *app) dbPath(pf *picksFlags) string {
	if pf.path != "" {
		return pf.path
	}
	return a.cfg.GetPickDBPath()
}

// withDB opens the database, migrating it to the latest schema when
// upgrade is set, and closes it after fn.
func (a *app) withDB(pf *picksFlags, upgrade bool, fn func(db *pickdb.DB) error) error {
	open := pickdb.OpenDB
	if upgrade {
		open = pickdb.NewDB
	}
	db, err := open(a.dbPath(pf))
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func (a *app) addEventCmd(pf *picksFlags) *cobra.Command {
	var e pickdb.Event
	cmd := &cobra.Command{
		Use:   "add-event NAME",
		Short: "add a phase event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e.Name = args[0]
			return a.withDB(pf, true, func(db *pickdb.DB) error {
				return db.AddEvent(e, pf.replace)
			})
		},
	}
	cmd.Flags().IntVar(&e.BranchID, "branch", 0, "branch id")
	cmd.Flags().IntVar(&e.SubID, "sub", 0, "sub-branch id")
	cmd.Flags().StringVar(&e.Description, "description", "", "free text")
	return cmd
}

func (a *app) addPointCmd(pf *picksFlags, kind string) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("add-%s ID X Y Z", kind),
		Short: "add a " + kind + " location",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad %s id: %w", kind, err)
			}
			xyz, err := parseFloatArgs(args[1:])
			if err != nil {
				return err
			}
			p := pickdb.Point{ID: id, X: xyz[0], Y: xyz[1], Z: xyz[2]}
			return a.withDB(pf, true, func(db *pickdb.DB) error {
				if kind == "source" {
					return db.AddSource(p, pf.replace)
				}
				return db.AddReceiver(p, pf.replace)
			})
		},
	}
}

func (a *app) addPickCmd(pf *picksFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add-pick EVENT SRCID RECID TIME ERROR",
		Short: "add a traveltime pick",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ids [2]int64
			for i, s := range args[1:3] {
				v, err := strconv.ParseInt(s, 10, 64)
				if err != nil {
					return fmt.Errorf("bad id %q: %w", s, err)
				}
				ids[i] = v
			}
			te, err := parseFloatArgs(args[3:])
			if err != nil {
				return err
			}
			p := pickdb.Pick{Event: args[0], SrcID: ids[0], RecID: ids[1], Time: te[0], Error: te[1]}
			return a.withDB(pf, true, func(db *pickdb.DB) error {
				return db.AddPick(p, pf.replace)
			})
		},
	}
}

func (a *app) picksInfoCmd(pf *picksFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "print row counts and events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(pf, false, func(db *pickdb.DB) error {
				counts, err := db.Counts()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				names := make([]string, 0, len(counts))
				for name := range counts {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "%-10s %d\n", name, counts[name])
				}
				events, err := db.Events()
				if err != nil {
					return err
				}
				for _, e := range events {
					fmt.Fprintf(out, "event %s: branch %d.%d %s\n", e.Name, e.BranchID, e.SubID, e.Description)
				}
				return nil
			})
		},
	}
}

func (a *app) picksExportCmd(pf *picksFlags) *cobra.Command {
	var (
		srcFile, recFile, pickFile string
		sep                        string
		header                     bool
		filter                     pickdb.Filter
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "write the tomography source, receiver and pick files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pickdb.ExportOptions{Sep: a.cfg.GetExportSeparator(), Header: header, Filter: filter}
			if sep != "" {
				opts.Sep = []rune(sep)[0]
			}
			var files []io.WriteCloser
			defer func() {
				for _, f := range files {
					f.Close()
				}
			}()
			open := func(name string) (io.Writer, error) {
				if name == "" {
					return nil, nil
				}
				f, err := createOutput(name)
				if err != nil {
					return nil, err
				}
				files = append(files, f)
				return f, nil
			}
			src, err := open(srcFile)
			if err != nil {
				return err
			}
			rec, err := open(recFile)
			if err != nil {
				return err
			}
			picks, err := open(pickFile)
			if err != nil {
				return err
			}
			return a.withDB(pf, false, func(db *pickdb.DB) error {
				if err := db.Export(src, rec, picks, opts); err != nil {
					return err
				}
				for _, f := range files {
					if err := f.Close(); err != nil {
						return err
					}
				}
				files = nil
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&srcFile, "sources", "shot.dat", "source output; empty skips it")
	f.StringVar(&recFile, "receivers", "inst.dat", "receiver output; empty skips it")
	f.StringVar(&pickFile, "picks", "pick.dat", "pick output; empty skips it")
	f.StringVar(&sep, "sep", "", "field separator (default: the config's export_separator)")
	f.BoolVar(&header, "header", false, "write a column-name row")
	f.StringSliceVar(&filter.Events, "event", nil, "only these events")
	f.IntSliceVar(&filter.Branches, "branch", nil, "only these branch ids")
	f.Int64SliceVar(&filter.Sources, "src", nil, "only these source ids")
	f.Int64SliceVar(&filter.Receivers, "rec", nil, "only these receiver ids")
	return cmd
}

func (a *app) migrateCmd(pf *picksFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "manage the database schema version",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withDB(pf, false, (*pickdb.DB).MigrateUp)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "roll back one migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withDB(pf, false, (*pickdb.DB).MigrateDown)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "print the schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withDB(pf, false, func(db *pickdb.DB) error {
					v, dirty, err := db.MigrateVersion()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%t\n", v, dirty)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("bad version: %w", err)
				}
				return a.withDB(pf, false, func(db *pickdb.DB) error {
					return db.MigrateForce(v)
				})
			},
		},
	)
	return cmd
}

func parseFloatArgs(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, s := range args {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}
