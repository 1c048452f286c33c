package storage

import (
	"fmt"

	"github.com/harshithgowdakt/widepart/internal/serialization"
	"github.com/harshithgowdakt/widepart/internal/types"
)

// ColumnSize is the on-disk footprint of one column or of a whole part.
type ColumnSize struct {
	DataCompressed   uint64 `json:"data_compressed"`
	DataUncompressed uint64 `json:"data_uncompressed"`
	Marks            uint64 `json:"marks"`
}

// Add accumulates o into s.
func (s *ColumnSize) Add(o ColumnSize) {
	s.DataCompressed += o.DataCompressed
	s.DataUncompressed += o.DataUncompressed
	s.Marks += o.Marks
}

// Total returns compressed data plus marks.
func (s ColumnSize) Total() uint64 {
	return s.DataCompressed + s.Marks
}

// CalculateEachColumnSizes returns the size of every column and their sum.
// A substream shared by several columns is attributed to the first of them
// only. Without a manifest all sizes are zero.
func (p *DataPart) CalculateEachColumnSizes() (map[string]ColumnSize, ColumnSize, error) {
	ops, err := layoutFor(p.Type)
	if err != nil {
		return nil, ColumnSize{}, err
	}
	if p.LoadState() == Unloaded {
		return nil, ColumnSize{}, fmt.Errorf("%w: cannot size part %s", ErrGranularityNotLoaded, p.Name)
	}

	processed := make(map[string]struct{})
	each := make(map[string]ColumnSize, len(p.Columns))
	var total ColumnSize
	for _, col := range p.Columns {
		size := ops.columnSize(p, col, processed)
		each[col.Name] = size
		total.Add(size)
	}
	return each, total, nil
}

// ColumnSize returns the size of one column, counting every substream it
// has, including ones shared with sibling columns.
func (p *DataPart) ColumnSize(name string) (ColumnSize, error) {
	ops, err := layoutFor(p.Type)
	if err != nil {
		return ColumnSize{}, err
	}
	if p.LoadState() == Unloaded {
		return ColumnSize{}, fmt.Errorf("%w: cannot size part %s", ErrGranularityNotLoaded, p.Name)
	}
	col, ok := p.Column(name)
	if !ok {
		return ColumnSize{}, fmt.Errorf("column %s not in part %s", name, p.Name)
	}
	return ops.columnSize(p, col, nil), nil
}

// sizeAcc threads the processed stream set through the substream fold.
type sizeAcc struct {
	processed map[string]struct{}
	size      ColumnSize
}

func wideColumnSize(p *DataPart, column types.NameAndType, processed map[string]struct{}) ColumnSize {
	if p.Checksums.Empty() {
		return ColumnSize{}
	}
	ext := p.GranularityInfo.MarksFileExtension()
	acc := serialization.Fold(column.Type, p.SerializationKind(column.Name), sizeAcc{processed: processed},
		func(acc sizeAcc, path serialization.Path) sizeAcc {
			stream := p.streamFileNameFromChecksums(serialization.FileNameForStream(column, path))
			if acc.processed != nil {
				if _, dup := acc.processed[stream]; dup {
					return acc
				}
				acc.processed[stream] = struct{}{}
			}
			if ck, ok := p.Checksums.Get(stream + DataFileExtension); ok {
				acc.size.DataCompressed += ck.FileSize
				acc.size.DataUncompressed += ck.UncompressedSize
			}
			if ck, ok := p.Checksums.Get(stream + ext); ok {
				acc.size.Marks += ck.FileSize
			}
			return acc
		})
	return acc.size
}

// VerifyColumnSizes cross-checks sizes against the row count: for plain
// numeric columns, uncompressed bytes divided by the value size must equal
// the number of rows. A mismatch means the marks and the manifest disagree
// and is reported as ErrLogical. Parts without a manifest are not checked.
func VerifyColumnSizes(part *DataPart, sizes map[string]ColumnSize) error {
	rows, err := part.RowsCount()
	if err != nil {
		return err
	}
	if rows == 0 || part.Checksums.Empty() {
		return nil
	}
	for _, col := range part.Columns {
		if !col.Type.IsValueRepresentedByNumber() || col.Type.HaveSubtypes() ||
			part.SerializationKind(col.Name) != serialization.KindDefault {
			continue
		}
		size := sizes[col.Name]
		inColumn := size.DataUncompressed / uint64(col.Type.SizeOfValueInMemory())
		if inColumn != rows {
			return fmt.Errorf("%w: column %s has rows count %d according to size in memory "+
				"and size of single value, but data part %s has %d rows",
				ErrLogical, col.Name, inColumn, part.Name, rows)
		}
	}
	return nil
}
