package storage

import (
	"fmt"
	"sort"
)

// IndexGranularity is the per-mark row count sequence of a part. It is
// immutable: build it with IndexGranularityBuilder or
// NewFixedIndexGranularity.
type IndexGranularity struct {
	// Constant representation: every mark holds fixedRows rows except that
	// the last one holds lastRows.
	constant  bool
	fixedRows uint64
	lastRows  uint64
	count     int

	// cumulative[i] is the number of rows in marks [0, i].
	cumulative []uint64

	finalMark bool
}

// NewFixedIndexGranularity returns marks marks of rowsPerMark rows each.
func NewFixedIndexGranularity(marks int, rowsPerMark uint64) *IndexGranularity {
	return &IndexGranularity{
		constant:  true,
		fixedRows: rowsPerMark,
		lastRows:  rowsPerMark,
		count:     marks,
	}
}

// MarksCount returns the number of marks, including a final mark.
func (g *IndexGranularity) MarksCount() int {
	if g.constant {
		return g.count
	}
	return len(g.cumulative)
}

// MarksCountWithoutFinal returns the number of marks that carry rows.
func (g *IndexGranularity) MarksCountWithoutFinal() int {
	n := g.MarksCount()
	if g.finalMark && n > 0 {
		return n - 1
	}
	return n
}

// HasFinalMark reports whether the last mark is a zero-row terminator.
func (g *IndexGranularity) HasFinalMark() bool { return g.finalMark }

// IsConstant reports whether every mark (but the last) has the same size.
func (g *IndexGranularity) IsConstant() bool { return g.constant }

// TotalRows is the sum of all mark sizes.
func (g *IndexGranularity) TotalRows() uint64 {
	if g.constant {
		if g.count == 0 {
			return 0
		}
		return uint64(g.count-1)*g.fixedRows + g.lastRows
	}
	if len(g.cumulative) == 0 {
		return 0
	}
	return g.cumulative[len(g.cumulative)-1]
}

// MarkRows returns the number of rows covered by mark i.
func (g *IndexGranularity) MarkRows(i int) uint64 {
	if g.constant {
		if i == g.count-1 {
			return g.lastRows
		}
		return g.fixedRows
	}
	if i == 0 {
		return g.cumulative[0]
	}
	return g.cumulative[i] - g.cumulative[i-1]
}

// MarkStartingRow returns the first row of mark i.
func (g *IndexGranularity) MarkStartingRow(i int) uint64 {
	if g.constant {
		return uint64(i) * g.fixedRows
	}
	if i == 0 {
		return 0
	}
	return g.cumulative[i-1]
}

// RowsInRange returns the rows covered by marks [begin, end).
func (g *IndexGranularity) RowsInRange(begin, end int) uint64 {
	if begin >= end {
		return 0
	}
	return g.MarkStartingRow(end-1) + g.MarkRows(end-1) - g.MarkStartingRow(begin)
}

// MarkContainingRow returns the index of the mark that holds row.
func (g *IndexGranularity) MarkContainingRow(row uint64) int {
	if g.constant {
		if g.fixedRows == 0 {
			return 0
		}
		return min(int(row/g.fixedRows), g.count-1)
	}
	return sort.Search(len(g.cumulative), func(i int) bool { return g.cumulative[i] > row })
}

// Sizes returns a copy of the per-mark row counts.
func (g *IndexGranularity) Sizes() []uint64 {
	out := make([]uint64, g.MarksCount())
	for i := range out {
		out[i] = g.MarkRows(i)
	}
	return out
}

// WithLastMarkRows returns a copy whose last data-carrying mark holds rows
// rows.
func (g *IndexGranularity) WithLastMarkRows(rows uint64) (*IndexGranularity, error) {
	n := g.MarksCountWithoutFinal()
	if n == 0 {
		return nil, fmt.Errorf("%w: cannot adjust the last mark of an empty granularity", ErrLogical)
	}
	if g.constant && !g.finalMark {
		out := *g
		out.lastRows = rows
		return &out, nil
	}
	var b IndexGranularityBuilder
	for i := range n {
		if i == n-1 {
			b.AppendMark(rows)
		} else {
			b.AppendMark(g.MarkRows(i))
		}
	}
	if g.finalMark {
		b.AppendFinalMark()
	}
	return b.Build(), nil
}

// IndexGranularityBuilder accumulates marks while they are read or written.
type IndexGranularityBuilder struct {
	rows      []uint64
	finalMark bool
}

// AppendMark adds a mark of rows rows.
func (b *IndexGranularityBuilder) AppendMark(rows uint64) {
	b.rows = append(b.rows, rows)
}

// AppendFinalMark adds the zero-row terminating mark.
func (b *IndexGranularityBuilder) AppendFinalMark() {
	b.rows = append(b.rows, 0)
	b.finalMark = true
}

// Len returns the number of marks appended so far.
func (b *IndexGranularityBuilder) Len() int { return len(b.rows) }

// Build freezes the accumulated marks. The builder must not be reused.
func (b *IndexGranularityBuilder) Build() *IndexGranularity {
	rows := b.rows
	b.rows = nil
	if !b.finalMark && isConstantExceptLast(rows) {
		g := &IndexGranularity{constant: true, count: len(rows)}
		if len(rows) > 0 {
			g.fixedRows = rows[0]
			g.lastRows = rows[len(rows)-1]
		}
		return g
	}
	cumulative := make([]uint64, len(rows))
	var sum uint64
	for i, r := range rows {
		sum += r
		cumulative[i] = sum
	}
	return &IndexGranularity{cumulative: cumulative, finalMark: b.finalMark}
}

func isConstantExceptLast(rows []uint64) bool {
	for i := 1; i < len(rows)-1; i++ {
		if rows[i] != rows[0] {
			return false
		}
	}
	return len(rows) < 2 || rows[len(rows)-1] <= rows[0]
}
