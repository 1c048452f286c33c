package column

import (
	"fmt"
	"slices"

	"github.com/harshithgowdakt/widepart/internal/types"
)

// Block is a set of equally long named columns, the unit handed to part
// writers and returned by part readers.
type Block struct {
	ColumnNames []string
	Columns     []Column
}

// NewBlock pairs names with columns. Both slices are kept, not copied.
func NewBlock(names []string, cols []Column) *Block {
	return &Block{ColumnNames: names, Columns: cols}
}

func (b *Block) NumRows() int {
	if len(b.Columns) == 0 {
		return 0
	}
	return b.Columns[0].Len()
}

func (b *Block) NumColumns() int { return len(b.Columns) }

// GetColumn returns the column with the given name.
func (b *Block) GetColumn(name string) (Column, bool) {
	if i := slices.Index(b.ColumnNames, name); i >= 0 {
		return b.Columns[i], true
	}
	return nil, false
}

// CheckRows fails when the columns disagree on the row count.
func (b *Block) CheckRows() error {
	for i, c := range b.Columns {
		if c.Len() != b.NumRows() {
			return fmt.Errorf("column %s has %d rows, block has %d", b.ColumnNames[i], c.Len(), b.NumRows())
		}
	}
	return nil
}

// Project returns the named columns in the given order, checking their
// types. The columns are shared with b.
func (b *Block) Project(columns []types.NameAndType) (*Block, error) {
	names := make([]string, len(columns))
	cols := make([]Column, len(columns))
	for i, want := range columns {
		c, ok := b.GetColumn(want.Name)
		if !ok {
			return nil, fmt.Errorf("block has no column %s", want.Name)
		}
		if got := c.Type(); !got.Equal(want.Type) {
			return nil, fmt.Errorf("column %s has type %s, expected %s", want.Name, got, want.Type)
		}
		names[i], cols[i] = want.Name, c
	}
	return NewBlock(names, cols), nil
}

// Clone deep-copies the block.
func (b *Block) Clone() *Block {
	cols := make([]Column, len(b.Columns))
	for i, c := range b.Columns {
		cols[i] = c.Clone()
	}
	return NewBlock(slices.Clone(b.ColumnNames), cols)
}

// Append adds the rows of other, which must have the same column names.
func (b *Block) Append(other *Block) error {
	if !slices.Equal(b.ColumnNames, other.ColumnNames) {
		return fmt.Errorf("cannot append block %v to block %v", other.ColumnNames, b.ColumnNames)
	}
	for i := range b.Columns {
		AppendColumn(b.Columns[i], other.Columns[i])
	}
	return nil
}

// Gather returns a new block holding the rows at indices, in that order.
func (b *Block) Gather(indices []int) *Block {
	cols := make([]Column, len(b.Columns))
	for i, c := range b.Columns {
		cols[i] = Gather(c, indices)
	}
	return NewBlock(slices.Clone(b.ColumnNames), cols)
}

// SortBy stably sorts the rows ascending by the key columns. Only scalar
// and LowCardinality columns can be keys.
func (b *Block) SortBy(keys []string) error {
	type key struct {
		col Column
		dt  types.DataType
	}
	resolved := make([]key, len(keys))
	for i, name := range keys {
		c, ok := b.GetColumn(name)
		if !ok {
			return fmt.Errorf("sort column not found: %s", name)
		}
		ct := c.Type()
		if ct.Kind != types.KindScalar && ct.Kind != types.KindLowCardinality {
			return fmt.Errorf("cannot sort by column %s of type %s", name, ct)
		}
		resolved[i] = key{col: c, dt: ct.Innermost()}
	}
	if b.NumRows() <= 1 {
		return nil
	}

	perm := make([]int, b.NumRows())
	for i := range perm {
		perm[i] = i
	}
	slices.SortStableFunc(perm, func(x, y int) int {
		for _, k := range resolved {
			if c := types.CompareValues(k.dt, k.col.Value(x), k.col.Value(y)); c != 0 {
				return c
			}
		}
		return 0
	})
	b.Columns = b.Gather(perm).Columns
	return nil
}
