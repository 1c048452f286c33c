package storage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/harshithgowdakt/widepart/internal/column"
	"github.com/harshithgowdakt/widepart/internal/types"
)

// PrimaryIndex stores primary key values at each granule boundary.
// For each granule, we store the value of each ORDER BY column at the first row.
type PrimaryIndex struct {
	KeyColumns []string
	KeyTypes   []types.DataType
	// Values[granuleIndex][keyColumnIndex] = value
	Values [][]types.Value
}

// NumGranules returns the number of indexed granules.
func (idx *PrimaryIndex) NumGranules() int { return len(idx.Values) }

// buildPrimaryIndex takes the first row of every granule of block.
func buildPrimaryIndex(schema *TableSchema, block *column.Block, granules []GranuleRange) (*PrimaryIndex, error) {
	idx := &PrimaryIndex{
		KeyColumns: schema.OrderBy,
		KeyTypes:   make([]types.DataType, len(schema.OrderBy)),
		Values:     make([][]types.Value, len(granules)),
	}
	keyCols := make([]column.Column, len(schema.OrderBy))
	for k, keyName := range schema.OrderBy {
		colDef, ok := schema.GetColumnDef(keyName)
		if !ok {
			return nil, fmt.Errorf("ORDER BY column %s not in schema", keyName)
		}
		idx.KeyTypes[k] = colDef.Type.Innermost()
		col, ok := block.GetColumn(keyName)
		if !ok {
			return nil, fmt.Errorf("ORDER BY column %s not in block", keyName)
		}
		keyCols[k] = col
	}
	for g, gran := range granules {
		vals := make([]types.Value, len(keyCols))
		for k, col := range keyCols {
			vals[k] = col.Value(gran.Start)
		}
		idx.Values[g] = vals
	}
	return idx, nil
}

// WriteTo encodes every granule's key values back to back.
func (idx *PrimaryIndex) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, granuleValues := range idx.Values {
		for k, v := range granuleValues {
			if err := column.EncodeValue(&buf, idx.KeyTypes[k], v); err != nil {
				return 0, fmt.Errorf("encoding primary index value: %w", err)
			}
		}
	}
	return buf.WriteTo(w)
}

// ReadPrimaryIndex decodes numGranules rows of key values.
func ReadPrimaryIndex(r io.Reader, keyColumns []string, keyTypes []types.DataType, numGranules int) (*PrimaryIndex, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	br := bytes.NewReader(data)
	idx := &PrimaryIndex{
		KeyColumns: keyColumns,
		KeyTypes:   keyTypes,
		Values:     make([][]types.Value, numGranules),
	}
	for g := range numGranules {
		vals := make([]types.Value, len(keyColumns))
		for k, dt := range keyTypes {
			v, err := column.DecodeValue(br, dt)
			if err != nil {
				return nil, fmt.Errorf("reading primary index granule %d key %d: %w", g, k, err)
			}
			vals[k] = v
		}
		idx.Values[g] = vals
	}
	if br.Len() != 0 {
		return nil, fmt.Errorf("%w: %s has %d trailing bytes after %d granules",
			ErrBadSizeOfFileInDataPart, PrimaryIndexFileName, br.Len(), numGranules)
	}
	return idx, nil
}
