package pickdb

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// ExportOptions control Export.
type ExportOptions struct {
	// Sep is the field delimiter. Zero means tab.
	Sep rune
	// Header adds a column-name row. The tomography code cannot read files
	// that have one.
	Header bool
	Filter Filter
}

// Export writes the sources, receivers and picks selected by opts.Filter
// in the tomography input layout. A nil writer skips that output. With a
// filter, only points referenced by a selected pick are written.
func (db *DB) Export(sources, receivers, picks io.Writer, opts ExportOptions) error {
	sep := opts.Sep
	if sep == 0 {
		sep = '\t'
	}
	where, args := opts.Filter.where()

	for _, part := range []struct {
		w      io.Writer
		prefix string
		table  string
	}{
		{sources, "src", "vmtomo_sources"},
		{receivers, "rec", "vmtomo_receivers"},
	} {
		if part.w == nil {
			continue
		}
		q := fmt.Sprintf("SELECT DISTINCT %[1]sid, %[1]sx, %[1]sy, %[1]sz FROM ", part.prefix)
		if where == "" {
			q += part.table
		} else {
			q += "master_picks" + where
		}
		q += fmt.Sprintf(" ORDER BY %sid", part.prefix)

		points, err := db.points(q, args...)
		if err != nil {
			return fmt.Errorf("failed to query %s: %w", part.table, err)
		}
		var header []string
		if opts.Header {
			header = []string{part.prefix + "id", part.prefix + "x", part.prefix + "y", part.prefix + "z"}
		}
		rows := make([][]string, len(points))
		for i, p := range points {
			rows[i] = []string{strconv.FormatInt(p.ID, 10), formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z)}
		}
		if err := writeDelimited(part.w, sep, header, rows); err != nil {
			return err
		}
	}

	if picks == nil {
		return nil
	}
	selected, err := db.Picks(opts.Filter)
	if err != nil {
		return fmt.Errorf("failed to query picks: %w", err)
	}
	var header []string
	if opts.Header {
		header = []string{"recid", "srcid", "branchid", "subid", "offset", "time", "error"}
	}
	rows := make([][]string, len(selected))
	for i, p := range selected {
		rows[i] = []string{
			strconv.FormatInt(p.RecID, 10),
			strconv.FormatInt(p.SrcID, 10),
			strconv.Itoa(p.BranchID),
			strconv.Itoa(p.SubID),
			formatFloat(p.Offset()),
			formatFloat(p.Time),
			formatFloat(p.Error),
		}
	}
	return writeDelimited(picks, sep, header, rows)
}

func writeDelimited(w io.Writer, sep rune, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep
	if header != nil {
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
