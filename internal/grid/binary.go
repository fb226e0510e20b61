package grid

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrOrder reports an axis order that is not a permutation of 0, 1, 2.
var ErrOrder = errors.New("grid: invalid axis order")

// DType selects the element type of a flat binary export.
type DType int

const (
	Float32 DType = iota
	Float64
	Int32
	Int16
)

// Size returns the encoded element size in bytes.
func (d DType) Size() int {
	switch d {
	case Float64:
		return 8
	case Int16:
		return 2
	default:
		return 4
	}
}

func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int16:
		return "int16"
	}
	return fmt.Sprintf("DType(%d)", int(d))
}

// ParseDType maps a name such as "float32" to its DType.
func ParseDType(name string) (DType, error) {
	switch name {
	case "float32", "f4", "":
		return Float32, nil
	case "float64", "f8":
		return Float64, nil
	case "int32", "i4":
		return Int32, nil
	case "int16", "i2":
		return Int16, nil
	}
	return 0, fmt.Errorf("grid: unknown dtype %q", name)
}

// IdentityOrder flattens x outer, y middle, z inner.
var IdentityOrder = [3]int{0, 1, 2}

// Bytes flattens the grid after transposing its axes into order and encodes
// every value as dtype with byteOrder. order[0] becomes the outermost axis.
// Integer dtypes truncate toward zero.
func (g *Grid) Bytes(order [3]int, dtype DType, byteOrder binary.ByteOrder) ([]byte, error) {
	var seen [3]bool
	for _, a := range order {
		if a < 0 || a > 2 || seen[a] {
			return nil, fmt.Errorf("%w: %v", ErrOrder, order)
		}
		seen[a] = true
	}
	if byteOrder == nil {
		byteOrder = binary.NativeEndian
	}

	size := dtype.Size()
	buf := make([]byte, len(g.values)*size)
	n := [3]int{g.shape[order[0]], g.shape[order[1]], g.shape[order[2]]}
	off := 0
	var idx [3]int
	for i := 0; i < n[0]; i++ {
		idx[order[0]] = i
		for j := 0; j < n[1]; j++ {
			idx[order[1]] = j
			for k := 0; k < n[2]; k++ {
				idx[order[2]] = k
				v := g.At(idx[0], idx[1], idx[2])
				switch dtype {
				case Float32:
					byteOrder.PutUint32(buf[off:], math.Float32bits(v))
				case Float64:
					byteOrder.PutUint64(buf[off:], math.Float64bits(float64(v)))
				case Int32:
					byteOrder.PutUint32(buf[off:], uint32(int32(v)))
				case Int16:
					byteOrder.PutUint16(buf[off:], uint16(int16(v)))
				default:
					return nil, fmt.Errorf("grid: unsupported dtype %v", dtype)
				}
				off += size
			}
		}
	}
	return buf, nil
}

// WriteBinary writes the flattened grid to w as a single headerless buffer.
func (g *Grid) WriteBinary(w io.Writer, order [3]int, dtype DType, byteOrder binary.ByteOrder) error {
	buf, err := g.Bytes(order, dtype, byteOrder)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, bytes.NewReader(buf)); err != nil {
		return fmt.Errorf("grid: write binary: %w", err)
	}
	return nil
}
