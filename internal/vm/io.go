package vm

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/banshee-data/vmtomo/internal/fsutil"
	"github.com/banshee-data/vmtomo/internal/grid"
)

// Format names a model file format.
type Format string

const (
	// FormatVM is the native binary model format.
	FormatVM Format = "vm"
	// FormatBin is a headerless dump of the slowness grid. Write-only.
	FormatBin Format = "bin"
)

// FormatFromPath picks a format from the file extension. Unknown
// extensions fall back to FormatVM.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".bin") {
		return FormatBin
	}
	return FormatVM
}

// maxNodes bounds header dimensions so a corrupt header cannot request an
// absurd allocation.
const maxNodes = 1 << 31

// Serializer reads and writes models. The zero value uses the OS
// filesystem and native byte order.
type Serializer struct {
	// FS defaults to fsutil.OSFileSystem.
	FS fsutil.FileSystem
	// DataRoots are searched in order when a file to read is not found.
	DataRoots []string
	// ByteOrder defaults to binary.NativeEndian.
	ByteOrder binary.ByteOrder
	// HeadOnly makes reads stop after the header: the model gets the
	// declared geometry, zero slowness and no interfaces.
	HeadOnly bool

	// BinOrder and BinDType control FormatBin output. The zero BinOrder is
	// the identity order.
	BinOrder [3]int
	BinDType grid.DType
}

func (s *Serializer) fs() fsutil.FileSystem {
	if s.FS == nil {
		return fsutil.OSFileSystem{}
	}
	return s.FS
}

func (s *Serializer) order() binary.ByteOrder {
	if s.ByteOrder == nil {
		return binary.NativeEndian
	}
	return s.ByteOrder
}

func (s *Serializer) binOrder() [3]int {
	if s.BinOrder == [3]int{} {
		return grid.IdentityOrder
	}
	return s.BinOrder
}

// ReadFile reads a model, looking in DataRoots when name does not exist.
func (s *Serializer) ReadFile(name string) (*Model, error) {
	if FormatFromPath(name) == FormatBin {
		return nil, fmt.Errorf("vm: read %s: the headerless .bin format is write-only", name)
	}
	fsys := s.fs()
	path, err := fsutil.Locate(fsys, name, s.DataRoots)
	if err != nil {
		return nil, fmt.Errorf("vm: read model: %w", err)
	}
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vm: open %s: %w", path, err)
	}
	defer f.Close()

	m, err := s.Read(f)
	if err != nil {
		return nil, fmt.Errorf("vm: read %s: %w", path, err)
	}
	return m, nil
}

// WriteFile writes a model in the format implied by the extension.
func (s *Serializer) WriteFile(name string, m Serializable) error {
	fsys := s.fs()
	if dir := filepath.Dir(name); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("vm: create %s: %w", dir, err)
		}
	}
	w, err := fsys.Create(name)
	if err != nil {
		return fmt.Errorf("vm: create %s: %w", name, err)
	}
	switch FormatFromPath(name) {
	case FormatBin:
		err = m.Grid().WriteBinary(w, s.binOrder(), s.BinDType, s.order())
	default:
		err = s.Write(w, m)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// Do not leave a partial model behind.
		_ = fsys.Remove(name)
		return fmt.Errorf("vm: write %s: %w", name, err)
	}
	return nil
}

// header is the fixed-size prefix of a .vm file.
type header struct {
	Dims    [4]int32
	Origin  [3]float32
	Far     [3]float32
	Spacing [3]float32
}

// Read decodes a .vm stream. A stream that ends early yields ErrTruncated
// and no model.
func (s *Serializer) Read(r io.Reader) (*Model, error) {
	bo := s.order()
	br := bufio.NewReader(r)

	var h header
	if err := binary.Read(br, bo, &h); err != nil {
		return nil, truncated("header", err)
	}
	nx, ny, nz, nr := int(h.Dims[0]), int(h.Dims[1]), int(h.Dims[2]), int(h.Dims[3])
	if nz == 0 {
		nz, ny = ny, 1
	}
	if nx < 1 || ny < 1 || nz < 1 || nr < 0 {
		return nil, fmt.Errorf("%w: dimensions (%d, %d, %d) with %d interfaces", ErrFormat, nx, ny, nz, nr)
	}
	if float64(nx)*float64(ny)*float64(max(nz, nr)) > maxNodes {
		return nil, fmt.Errorf("%w: dimensions (%d, %d, %d) with %d interfaces are too large", ErrFormat, nx, ny, nz, nr)
	}

	origin := [3]float64{float64(h.Origin[0]), float64(h.Origin[1]), float64(h.Origin[2])}
	spacing := [3]float64{float64(h.Spacing[0]), float64(h.Spacing[1]), float64(h.Spacing[2])}
	if s.HeadOnly {
		m, err := New([3]int{nx, ny, nz}, origin, spacing)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return m, nil
	}

	values, err := readChunked[float32](br, bo, nx*ny*nz)
	if err != nil {
		return nil, truncated("slowness grid", err)
	}
	g, err := grid.New([]int{nx, ny, nz}, values, origin[:], spacing[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	m := NewFromGrid(g)
	if nr == 0 {
		return m, nil
	}

	n := nx * ny
	rf, err := readChunked[float32](br, bo, nr*n)
	if err != nil {
		return nil, truncated("interface depths", err)
	}
	jp, err := readChunked[float32](br, bo, nr*n)
	if err != nil {
		return nil, truncated("slowness jumps", err)
	}
	ir, err := readChunked[int32](br, bo, nr*n)
	if err != nil {
		return nil, truncated("depth masks", err)
	}
	ij, err := readChunked[int32](br, bo, nr*n)
	if err != nil {
		return nil, truncated("jump masks", err)
	}

	m.interfaces = make([]Interface, nr)
	for i := range m.interfaces {
		f := Interface{
			Depth:     rf[i*n : (i+1)*n : (i+1)*n],
			Jump:      jp[i*n : (i+1)*n : (i+1)*n],
			DepthMask: ir[i*n : (i+1)*n : (i+1)*n],
			JumpMask:  ij[i*n : (i+1)*n : (i+1)*n],
		}
		for k := range f.DepthMask {
			f.DepthMask[k]--
			f.JumpMask[k]--
		}
		m.interfaces[i] = f
	}
	return m, nil
}

// readChunk is the number of values decoded per read in readChunked.
const readChunk = 1 << 20

// readChunked decodes n values, growing the result a chunk at a time so a
// short stream fails before the declared length is allocated.
func readChunked[T float32 | int32](r io.Reader, bo binary.ByteOrder, n int) ([]T, error) {
	out := make([]T, 0, min(n, readChunk))
	for len(out) < n {
		start := len(out)
		k := min(n-start, readChunk)
		out = slices.Grow(out, k)[:start+k]
		if err := binary.Read(r, bo, out[start:]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func truncated(part string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s", ErrTruncated, part)
	}
	return fmt.Errorf("vm: reading %s: %w", part, err)
}

// Write encodes a model in the .vm format. Masks are written 1-based.
func (s *Serializer) Write(w io.Writer, m Serializable) error {
	bo := s.order()
	g := m.Grid()
	stack := m.Interfaces()
	shape := g.Shape()

	h := header{Dims: [4]int32{int32(shape[0]), int32(shape[1]), int32(shape[2]), int32(len(stack))}}
	for a := 0; a < 3; a++ {
		h.Origin[a] = float32(g.Origin[a])
		h.Far[a] = float32(g.Coord(a, shape[a]-1))
		h.Spacing[a] = float32(g.Spacing[a])
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, bo, &h); err != nil {
		return err
	}
	if err := binary.Write(bw, bo, g.Values()); err != nil {
		return err
	}
	if len(stack) > 0 {
		n := shape[0] * shape[1]
		rf := make([]float32, 0, len(stack)*n)
		jp := make([]float32, 0, len(stack)*n)
		ir := make([]int32, 0, len(stack)*n)
		ij := make([]int32, 0, len(stack)*n)
		for i, f := range stack {
			if len(f.Depth) != n || len(f.Jump) != n || len(f.DepthMask) != n || len(f.JumpMask) != n {
				return fmt.Errorf("%w: interface %d does not match the %dx%d grid", ErrShape, i, shape[0], shape[1])
			}
			rf = append(rf, f.Depth...)
			jp = append(jp, f.Jump...)
			for k := range f.DepthMask {
				ir = append(ir, f.DepthMask[k]+1)
				ij = append(ij, f.JumpMask[k]+1)
			}
		}
		for _, data := range []any{rf, jp, ir, ij} {
			if err := binary.Write(bw, bo, data); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// ReadModel reads name with a default Serializer over the OS filesystem.
func ReadModel(name string) (*Model, error) {
	var s Serializer
	return s.ReadFile(name)
}

// WriteModel writes m to name with a default Serializer.
func WriteModel(name string, m Serializable) error {
	var s Serializer
	return s.WriteFile(name, m)
}
