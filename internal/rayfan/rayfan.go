// Package rayfan reads and writes the ray-path files produced by the
// raytracer and computes per-fan and per-group travel-time statistics.
package rayfan

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"

	"github.com/banshee-data/vmtomo/internal/fsutil"
)

// DefaultVersion is the format version written when none is given.
const DefaultVersion = 2

var (
	ErrTruncated = errors.New("rayfan: truncated file")
	ErrFormat    = errors.New("rayfan: invalid file")
)

// Fan holds every ray traced from one start point.
type Fan struct {
	StartPointID int32
	// Static is a travel-time correction added to every residual. Only
	// version 2 files carry it.
	Static float32

	EndPointIDs []int32
	EventIDs    []int32
	EventSubIDs []int32
	PickTimes   []float32
	TravelTimes []float32
	PickErrors  []float32
	// Paths holds one polyline per ray, as (x, y, z) nodes.
	Paths [][][3]float32
}

// NRays is the number of rays in the fan.
func (f *Fan) NRays() int { return len(f.EndPointIDs) }

// nsize is the total number of path nodes.
func (f *Fan) nsize() int {
	var n int
	for _, p := range f.Paths {
		n += len(p)
	}
	return n
}

func (f *Fan) check() error {
	n := f.NRays()
	for _, part := range []struct {
		name string
		l    int
	}{
		{"event ids", len(f.EventIDs)},
		{"event subids", len(f.EventSubIDs)},
		{"pick times", len(f.PickTimes)},
		{"travel times", len(f.TravelTimes)},
		{"pick errors", len(f.PickErrors)},
		{"paths", len(f.Paths)},
	} {
		if part.l != n {
			return fmt.Errorf("%w: fan %d has %d %s for %d rays", ErrFormat, f.StartPointID, part.l, part.name, n)
		}
	}
	return nil
}

// Group is the content of one ray-path file.
type Group struct {
	Name    string
	Version int
	Fans    []Fan
}

// cursor walks a fully buffered file.
type cursor struct {
	data []byte
	off  int
	bo   binary.ByteOrder
}

func (c *cursor) remaining() int { return len(c.data) - c.off }

func (c *cursor) readInt32() (int32, error) {
	if c.remaining() < 4 {
		return 0, ErrTruncated
	}
	v := int32(c.bo.Uint32(c.data[c.off:]))
	c.off += 4
	return v, nil
}

func (c *cursor) int32s(n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(c.bo.Uint32(c.data[c.off:]))
		c.off += 4
	}
	return out
}

func (c *cursor) float32s(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(c.bo.Uint32(c.data[c.off:]))
		c.off += 4
	}
	return out
}

// Decode reads a ray-path file. A nil byte order means native.
func Decode(r io.Reader, bo binary.ByteOrder) (*Group, error) {
	if bo == nil {
		bo = binary.NativeEndian
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("rayfan: read: %w", err)
	}
	c := &cursor{data: data, bo: bo}

	n, err := c.readInt32()
	if err != nil {
		return nil, fmt.Errorf("%w: missing header", err)
	}
	g := &Group{Version: 1}
	if n < 0 {
		g.Version = int(-n)
		if n, err = c.readInt32(); err != nil {
			return nil, fmt.Errorf("%w: missing fan count", err)
		}
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative fan count %d", ErrFormat, n)
	}

	g.Fans = make([]Fan, 0, min(int(n), 1024))
	for i := 0; i < int(n); i++ {
		f, err := decodeFan(c, g.Version)
		if err != nil {
			return nil, fmt.Errorf("fan %d: %w", i, err)
		}
		g.Fans = append(g.Fans, f)
	}
	return g, nil
}

func decodeFan(c *cursor, version int) (Fan, error) {
	var dims [3]int32
	for k := range dims {
		v, err := c.readInt32()
		if err != nil {
			return Fan{}, err
		}
		dims[k] = v
	}
	f := Fan{StartPointID: dims[0]}
	nrays, nsize := int(dims[1]), int(dims[2])
	if nrays < 0 || nsize < 0 {
		return Fan{}, fmt.Errorf("%w: nrays = %d, nsize = %d", ErrFormat, nrays, nsize)
	}

	need := 4 * (7*int64(nrays) + 3*int64(nsize))
	if version > 1 {
		need += 4
	}
	if int64(c.remaining()) < need {
		return Fan{}, fmt.Errorf("%w: need %d bytes for %d rays, %d remain", ErrTruncated, need, nrays, c.remaining())
	}

	if version > 1 {
		f.Static = c.float32s(1)[0]
	}
	f.EndPointIDs = c.int32s(nrays)
	f.EventIDs = c.int32s(nrays)
	f.EventSubIDs = c.int32s(nrays)
	lens := c.int32s(nrays)
	f.PickTimes = c.float32s(nrays)
	f.TravelTimes = c.float32s(nrays)
	f.PickErrors = c.float32s(nrays)

	var total int
	for _, l := range lens {
		if l < 0 {
			return Fan{}, fmt.Errorf("%w: negative path length %d", ErrFormat, l)
		}
		total += int(l)
	}
	if total != nsize {
		return Fan{}, fmt.Errorf("%w: path lengths sum to %d, header says %d", ErrFormat, total, nsize)
	}

	f.Paths = make([][][3]float32, nrays)
	for i, l := range lens {
		xyz := c.float32s(3 * int(l))
		path := make([][3]float32, l)
		for j := range path {
			path[j] = [3]float32{xyz[3*j], xyz[3*j+1], xyz[3*j+2]}
		}
		f.Paths[i] = path
	}
	return f, nil
}

// Encode writes the group in the given format version. The version flag is
// only written for versions above 1.
func (g *Group) Encode(w io.Writer, version int, bo binary.ByteOrder) error {
	if bo == nil {
		bo = binary.NativeEndian
	}
	if version < 1 {
		return fmt.Errorf("%w: version %d", ErrFormat, version)
	}
	for i := range g.Fans {
		if err := g.Fans[i].check(); err != nil {
			return err
		}
	}

	e := &encoder{w: bufio.NewWriter(w), bo: bo}
	if version > 1 {
		e.put(int32(-version))
	}
	e.put(int32(len(g.Fans)))
	for i := range g.Fans {
		f := &g.Fans[i]
		e.put([3]int32{f.StartPointID, int32(f.NRays()), int32(f.nsize())})
		if version > 1 {
			e.put(f.Static)
		}
		lens := make([]int32, len(f.Paths))
		for k, p := range f.Paths {
			lens[k] = int32(len(p))
		}
		for _, data := range []any{f.EndPointIDs, f.EventIDs, f.EventSubIDs, lens, f.PickTimes, f.TravelTimes, f.PickErrors} {
			e.put(data)
		}
		for _, p := range f.Paths {
			e.put(p)
		}
	}
	if e.err != nil {
		return fmt.Errorf("rayfan: encode: %w", e.err)
	}
	return e.w.Flush()
}

// encoder keeps the first write error and drops everything after it.
type encoder struct {
	w   *bufio.Writer
	bo  binary.ByteOrder
	err error
}

func (e *encoder) put(data any) {
	if e.err == nil {
		e.err = binary.Write(e.w, e.bo, data)
	}
}

// ReadFile decodes a ray-path file. The group is named after the file.
func ReadFile(fsys fsutil.FileSystem, name string, bo binary.ByteOrder) (*Group, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("rayfan: open %s: %w", name, err)
	}
	defer f.Close()

	g, err := Decode(f, bo)
	if err != nil {
		return nil, fmt.Errorf("rayfan: %s: %w", name, err)
	}
	g.Name = filepath.Base(name)
	return g, nil
}

// WriteFile encodes the group to name, replacing any existing file.
func (g *Group) WriteFile(fsys fsutil.FileSystem, name string, version int, bo binary.ByteOrder) error {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	var buf bytes.Buffer
	if err := g.Encode(&buf, version, bo); err != nil {
		return err
	}
	if err := fsys.WriteFile(name, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("rayfan: write %s: %w", name, err)
	}
	return nil
}
