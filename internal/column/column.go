package column

import (
	"fmt"

	"github.com/harshithgowdakt/widepart/internal/types"
)

// Column is an in-memory columnar array of a single type.
type Column interface {
	Type() types.ColumnType
	Len() int
	Value(i int) types.Value
	Append(v types.Value)
	Slice(from, to int) Column
	Clone() Column
}

// Native lists the Go types backing scalar columns.
type Native interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~float32 | ~float64 | ~string
}

// Vector is a scalar column backed by a typed slice.
type Vector[T Native] struct {
	dt   types.DataType
	Data []T
}

// NewVector wraps data as a column of type dt. The Go element type must
// match dt (uint32 for both UInt32 and DateTime).
func NewVector[T Native](dt types.DataType, data []T) *Vector[T] {
	return &Vector[T]{dt: dt, Data: data}
}

func (c *Vector[T]) Type() types.ColumnType  { return types.Scalar(c.dt) }
func (c *Vector[T]) Len() int                { return len(c.Data) }
func (c *Vector[T]) Value(i int) types.Value { return c.Data[i] }
func (c *Vector[T]) Append(v types.Value)    { c.Data = append(c.Data, v.(T)) }
func (c *Vector[T]) Slice(from, to int) Column {
	d := make([]T, to-from)
	copy(d, c.Data[from:to])
	return &Vector[T]{dt: c.dt, Data: d}
}
func (c *Vector[T]) Clone() Column { return c.Slice(0, len(c.Data)) }

func (c *Vector[T]) gather(indices []int) Column {
	out := make([]T, len(indices))
	for i, idx := range indices {
		out[i] = c.Data[idx]
	}
	return &Vector[T]{dt: c.dt, Data: out}
}

// NewColumn creates an empty column of the given type.
func NewColumn(ct types.ColumnType) Column {
	return NewColumnWithCapacity(ct, 0)
}

// NewColumnWithCapacity creates a column pre-allocated for n rows.
func NewColumnWithCapacity(ct types.ColumnType, n int) Column {
	switch ct.Kind {
	case types.KindArray:
		return NewArrayColumn(*ct.Nested)
	case types.KindNullable:
		return NewNullableColumn(ct.Nested.Scalar, n)
	case types.KindLowCardinality:
		return NewLowCardinalityColumn(ct.Nested.Scalar, n)
	}
	return newScalar(ct.Scalar, n)
}

func newScalar(dt types.DataType, n int) Column {
	switch dt {
	case types.TypeUInt8:
		return NewVector(dt, make([]uint8, 0, n))
	case types.TypeUInt16:
		return NewVector(dt, make([]uint16, 0, n))
	case types.TypeUInt32, types.TypeDateTime:
		return NewVector(dt, make([]uint32, 0, n))
	case types.TypeUInt64:
		return NewVector(dt, make([]uint64, 0, n))
	case types.TypeInt8:
		return NewVector(dt, make([]int8, 0, n))
	case types.TypeInt16:
		return NewVector(dt, make([]int16, 0, n))
	case types.TypeInt32:
		return NewVector(dt, make([]int32, 0, n))
	case types.TypeInt64:
		return NewVector(dt, make([]int64, 0, n))
	case types.TypeFloat32:
		return NewVector(dt, make([]float32, 0, n))
	case types.TypeFloat64:
		return NewVector(dt, make([]float64, 0, n))
	case types.TypeString:
		return NewVector(dt, make([]string, 0, n))
	default:
		panic(fmt.Sprintf("unsupported data type %d", dt))
	}
}

// Gather returns a new column reordering rows by the given index array.
func Gather(col Column, indices []int) Column {
	if g, ok := col.(interface{ gather([]int) Column }); ok {
		return g.gather(indices)
	}
	out := NewColumnWithCapacity(col.Type(), len(indices))
	for _, idx := range indices {
		out.Append(col.Value(idx))
	}
	return out
}

// AppendColumn appends all rows from src onto dst. Both must have the same type.
func AppendColumn(dst, src Column) {
	for i := 0; i < src.Len(); i++ {
		dst.Append(src.Value(i))
	}
}

// ByteSize estimates the uncompressed in-memory size of rows [from, to).
func ByteSize(col Column, from, to int) int {
	switch c := col.(type) {
	case *Vector[string]:
		n := 0
		for _, s := range c.Data[from:to] {
			n += len(s) + 1
		}
		return n
	case *ArrayColumn:
		if from >= to {
			return 0
		}
		start, _ := c.bounds(from)
		_, end := c.bounds(to - 1)
		return 8*(to-from) + ByteSize(c.Elements, int(start), int(end))
	case *NullableColumn:
		return (to - from) + ByteSize(c.Nested, from, to)
	case *LowCardinalityColumn:
		return 4 * (to - from)
	}
	return col.Type().SizeOfValueInMemory() * (to - from)
}
