package column

import (
	"fmt"
	"maps"
	"slices"

	"github.com/harshithgowdakt/widepart/internal/types"
)

// LowCardinalityColumn stores every distinct value once in Dict and one
// dictionary position per row. It serializes as two substreams, the
// dictionary keys and the indexes.
type LowCardinalityColumn struct {
	Dict    Column
	Indices []uint32

	// positions maps a value to its Dict index. Built on first Append.
	positions map[types.Value]uint32
}

// NewLowCardinalityColumn returns an empty column over dictionary type dt.
func NewLowCardinalityColumn(dt types.DataType, capacity int) *LowCardinalityColumn {
	return &LowCardinalityColumn{
		Dict:    newScalar(dt, 0),
		Indices: make([]uint32, 0, capacity),
	}
}

// NewLowCardinalityFromDictionary assembles a decoded column, rejecting
// indexes outside the dictionary.
func NewLowCardinalityFromDictionary(dict Column, indices []uint32) (*LowCardinalityColumn, error) {
	for row, idx := range indices {
		if int(idx) >= dict.Len() {
			return nil, fmt.Errorf("row %d: dictionary index %d out of range %d", row, idx, dict.Len())
		}
	}
	return &LowCardinalityColumn{Dict: dict, Indices: indices}, nil
}

func (c *LowCardinalityColumn) Type() types.ColumnType {
	return types.LowCardinality(c.Dict.Type().Scalar)
}

func (c *LowCardinalityColumn) Len() int                { return len(c.Indices) }
func (c *LowCardinalityColumn) Value(i int) types.Value { return c.Dict.Value(int(c.Indices[i])) }
func (c *LowCardinalityColumn) DictLen() int            { return c.Dict.Len() }

func (c *LowCardinalityColumn) Append(v types.Value) {
	if c.positions == nil {
		c.positions = make(map[types.Value]uint32, c.Dict.Len())
		for i := range c.Dict.Len() {
			c.positions[c.Dict.Value(i)] = uint32(i)
		}
	}
	idx, ok := c.positions[v]
	if !ok {
		idx = uint32(c.Dict.Len())
		c.Dict.Append(v)
		c.positions[v] = idx
	}
	c.Indices = append(c.Indices, idx)
}

// Slice returns rows [from, to) with a dictionary holding only the values
// those rows reference, in first-use order.
func (c *LowCardinalityColumn) Slice(from, to int) Column {
	out := NewLowCardinalityColumn(c.Dict.Type().Scalar, to-from)
	for _, idx := range c.Indices[from:to] {
		out.Append(c.Dict.Value(int(idx)))
	}
	return out
}

// Clone keeps the dictionary as is, unused values included.
func (c *LowCardinalityColumn) Clone() Column {
	return &LowCardinalityColumn{
		Dict:      c.Dict.Clone(),
		Indices:   slices.Clone(c.Indices),
		positions: maps.Clone(c.positions),
	}
}
