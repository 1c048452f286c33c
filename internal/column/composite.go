package column

import (
	"github.com/harshithgowdakt/widepart/internal/types"
)

// ArrayColumn stores variable-length arrays as one flattened element column
// plus cumulative end offsets: row i spans Elements[Offsets[i-1]:Offsets[i]].
type ArrayColumn struct {
	elemType types.ColumnType
	Offsets  []uint64
	Elements Column
}

// NewArrayColumn creates an empty Array(elem) column.
func NewArrayColumn(elem types.ColumnType) *ArrayColumn {
	return &ArrayColumn{elemType: elem, Elements: NewColumn(elem)}
}

func (c *ArrayColumn) Type() types.ColumnType { return types.Array(c.elemType) }
func (c *ArrayColumn) Len() int               { return len(c.Offsets) }

func (c *ArrayColumn) bounds(i int) (uint64, uint64) {
	var start uint64
	if i > 0 {
		start = c.Offsets[i-1]
	}
	return start, c.Offsets[i]
}

// Size returns the number of elements in row i.
func (c *ArrayColumn) Size(i int) uint64 {
	start, end := c.bounds(i)
	return end - start
}

// Value returns row i as a []types.Value.
func (c *ArrayColumn) Value(i int) types.Value {
	start, end := c.bounds(i)
	out := make([]types.Value, 0, end-start)
	for j := start; j < end; j++ {
		out = append(out, c.Elements.Value(int(j)))
	}
	return out
}

// Append adds one row; v must be a []types.Value.
func (c *ArrayColumn) Append(v types.Value) {
	vals, _ := v.([]types.Value)
	for _, e := range vals {
		c.Elements.Append(e)
	}
	c.Offsets = append(c.Offsets, uint64(c.Elements.Len()))
}

func (c *ArrayColumn) Slice(from, to int) Column {
	out := NewArrayColumn(c.elemType)
	if from >= to {
		return out
	}
	start, _ := c.bounds(from)
	_, end := c.bounds(to - 1)
	out.Elements = c.Elements.Slice(int(start), int(end))
	out.Offsets = make([]uint64, 0, to-from)
	for i := from; i < to; i++ {
		out.Offsets = append(out.Offsets, c.Offsets[i]-start)
	}
	return out
}

func (c *ArrayColumn) Clone() Column { return c.Slice(0, c.Len()) }

// NullableColumn stores a null map next to a nested column holding default
// values under NULL rows.
type NullableColumn struct {
	NullMap []uint8
	Nested  Column
}

// NewNullableColumn creates an empty Nullable(dt) column.
func NewNullableColumn(dt types.DataType, capacity int) *NullableColumn {
	return &NullableColumn{
		NullMap: make([]uint8, 0, capacity),
		Nested:  newScalar(dt, capacity),
	}
}

func (c *NullableColumn) Type() types.ColumnType { return types.Nullable(c.Nested.Type().Scalar) }
func (c *NullableColumn) Len() int               { return len(c.NullMap) }

// IsNull reports whether row i is NULL.
func (c *NullableColumn) IsNull(i int) bool { return c.NullMap[i] != 0 }

func (c *NullableColumn) Value(i int) types.Value {
	if c.NullMap[i] != 0 {
		return nil
	}
	return c.Nested.Value(i)
}

// Append adds one row; nil appends NULL.
func (c *NullableColumn) Append(v types.Value) {
	if v == nil {
		c.NullMap = append(c.NullMap, 1)
		c.Nested.Append(types.DefaultValue(c.Nested.Type().Scalar))
		return
	}
	c.NullMap = append(c.NullMap, 0)
	c.Nested.Append(v)
}

func (c *NullableColumn) Slice(from, to int) Column {
	nm := make([]uint8, to-from)
	copy(nm, c.NullMap[from:to])
	return &NullableColumn{NullMap: nm, Nested: c.Nested.Slice(from, to)}
}

func (c *NullableColumn) Clone() Column { return c.Slice(0, c.Len()) }
