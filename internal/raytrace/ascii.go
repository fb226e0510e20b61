package raytrace

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/vmtomo/internal/fsutil"
)

// Station is an instrument or shot location.
type Station struct {
	ID      int64
	X, Y, Z float64
}

// PickRecord is one row of a pick file.
type PickRecord struct {
	InstID    int64
	ShotID    int64
	Branch    int
	SubBranch int
	Range     float64
	Time      float64
	Error     float64
}

// scanRows calls fn with the whitespace-separated fields of every line,
// skipping blank lines and '#' comments.
func scanRows(data []byte, fn func(line int, fields []string) error) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; sc.Scan(); n++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := fn(n, strings.Fields(text)); err != nil {
			return err
		}
	}
	return sc.Err()
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ReadStations reads an "id x y z" file. Extra columns are ignored. The
// result keeps file order; a repeated id replaces the earlier location in
// place.
func ReadStations(fsys fsutil.FileSystem, name string) ([]Station, error) {
	data, err := fsys.ReadFile(name)
	if err != nil {
		return nil, err
	}
	var out []Station
	seen := make(map[int64]int)
	err = scanRows(data, func(line int, fields []string) error {
		if len(fields) < 4 {
			return fmt.Errorf("%s:%d: want id x y z, got %d fields", name, line, len(fields))
		}
		id, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%s:%d: bad id: %w", name, line, err)
		}
		xyz, err := parseFloats(fields[1:4])
		if err != nil {
			return fmt.Errorf("%s:%d: bad coordinate: %w", name, line, err)
		}
		s := Station{ID: id, X: xyz[0], Y: xyz[1], Z: xyz[2]}
		if i, ok := seen[id]; ok {
			out[i] = s
			return nil
		}
		seen[id] = len(out)
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteStations writes an "id x y z" file.
func WriteStations(fsys fsutil.FileSystem, name string, stations []Station) error {
	var buf bytes.Buffer
	for _, s := range stations {
		fmt.Fprintf(&buf, "%d %s %s %s\n", s.ID, ff(s.X), ff(s.Y), ff(s.Z))
	}
	return fsys.WriteFile(name, buf.Bytes(), 0o644)
}

// ReadPicks reads an "inst shot branch subbranch range time error" file.
func ReadPicks(fsys fsutil.FileSystem, name string) ([]PickRecord, error) {
	data, err := fsys.ReadFile(name)
	if err != nil {
		return nil, err
	}
	var out []PickRecord
	err = scanRows(data, func(line int, fields []string) error {
		if len(fields) < 7 {
			return fmt.Errorf("%s:%d: want 7 pick columns, got %d", name, line, len(fields))
		}
		var ids [4]int64
		for k := range ids {
			v, err := strconv.ParseInt(fields[k], 10, 64)
			if err != nil {
				return fmt.Errorf("%s:%d: bad id in column %d: %w", name, line, k+1, err)
			}
			ids[k] = v
		}
		vals, err := parseFloats(fields[4:7])
		if err != nil {
			return fmt.Errorf("%s:%d: %w", name, line, err)
		}
		out = append(out, PickRecord{
			InstID:    ids[0],
			ShotID:    ids[1],
			Branch:    int(ids[2]),
			SubBranch: int(ids[3]),
			Range:     vals[0],
			Time:      vals[1],
			Error:     vals[2],
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WritePicks writes a pick file.
func WritePicks(fsys fsutil.FileSystem, name string, picks []PickRecord) error {
	var buf bytes.Buffer
	for _, p := range picks {
		fmt.Fprintf(&buf, "%d %d %d %d %s %s %s\n",
			p.InstID, p.ShotID, p.Branch, p.SubBranch, ff(p.Range), ff(p.Time), ff(p.Error))
	}
	return fsys.WriteFile(name, buf.Bytes(), 0o644)
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
