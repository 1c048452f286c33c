package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/harshithgowdakt/widepart/internal/column"
	"github.com/harshithgowdakt/widepart/internal/types"
)

// MinMaxIndex is the value range of the partition column within a part.
// On disk it is the min value followed by the max value, each in the
// column's native encoding.
type MinMaxIndex struct {
	ColumnName string
	DataType   types.DataType
	Min        types.Value
	Max        types.Value
}

// NewMinMaxIndex scans col for its range. col must be non-empty.
func NewMinMaxIndex(name string, col column.Column) (*MinMaxIndex, error) {
	if col.Len() == 0 {
		return nil, fmt.Errorf("minmax index of %s: empty column", name)
	}
	idx := &MinMaxIndex{
		ColumnName: name,
		DataType:   col.Type().Innermost(),
		Min:        col.Value(0),
		Max:        col.Value(0),
	}
	for i := range col.Len() {
		switch v := col.Value(i); {
		case types.CompareValues(idx.DataType, v, idx.Min) < 0:
			idx.Min = v
		case types.CompareValues(idx.DataType, v, idx.Max) > 0:
			idx.Max = v
		}
	}
	return idx, nil
}

func (idx *MinMaxIndex) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, v := range [2]types.Value{idx.Min, idx.Max} {
		if err := column.EncodeValue(&buf, idx.DataType, v); err != nil {
			return 0, err
		}
	}
	return buf.WriteTo(w)
}

// ReadMinMaxIndex decodes an index file. Trailing bytes are an error.
func ReadMinMaxIndex(r io.Reader, name string, dt types.DataType) (*MinMaxIndex, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	br := bytes.NewReader(data)
	idx := &MinMaxIndex{ColumnName: name, DataType: dt}
	if idx.Min, err = column.DecodeValue(br, dt); err != nil {
		return nil, err
	}
	if idx.Max, err = column.DecodeValue(br, dt); err != nil {
		return nil, err
	}
	if br.Len() != 0 {
		return nil, errors.New("unexpected data after max value")
	}
	return idx, nil
}
