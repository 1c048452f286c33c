package serialization

import (
	"bytes"
	"fmt"

	"github.com/harshithgowdakt/widepart/internal/column"
	"github.com/harshithgowdakt/widepart/internal/types"
)

// Streams holds the encoded bytes of every substream of one granule, keyed
// by Path.String().
type Streams map[string][]byte

// Get returns the bytes of the stream at p.
func (s Streams) Get(p Path) ([]byte, error) {
	data, ok := s[p.String()]
	if !ok {
		return nil, fmt.Errorf("no data for substream %s", p)
	}
	return data, nil
}

// ChooseKind picks sparse serialization for a scalar column whose share of
// default values is at least ratio. A ratio of 1 or more disables it.
func ChooseKind(col column.Column, ratio float64) Kind {
	ct := col.Type()
	if ratio >= 1 || ct.Kind != types.KindScalar || col.Len() == 0 {
		return KindDefault
	}
	def := types.DefaultValue(ct.Scalar)
	defaults := 0
	for i := 0; i < col.Len(); i++ {
		if col.Value(i) == def {
			defaults++
		}
	}
	if float64(defaults)/float64(col.Len()) >= ratio {
		return KindSparse
	}
	return KindDefault
}

// EncodeStreams serializes col into one byte slice per substream. The keys
// are exactly the paths Enumerate yields for the column's type and kind.
func EncodeStreams(col column.Column, kind Kind) (Streams, error) {
	out := make(Streams)
	if kind == KindSparse {
		if col.Type().Kind != types.KindScalar {
			return nil, fmt.Errorf("sparse serialization of %s is not supported", col.Type())
		}
		def := types.DefaultValue(col.Type().Scalar)
		var positions []int
		for i := 0; i < col.Len(); i++ {
			if col.Value(i) != def {
				positions = append(positions, i)
			}
		}
		var offsets bytes.Buffer
		column.WriteVarUInt(&offsets, uint64(len(positions)))
		for _, pos := range positions {
			column.WriteVarUInt(&offsets, uint64(pos))
		}
		out[Path{SparseOffsets}.String()] = offsets.Bytes()
		return out, encodeStreams(column.Gather(col, positions), Path{SparseElements}, out)
	}
	return out, encodeStreams(col, nil, out)
}

func encodeStreams(col column.Column, prefix Path, out Streams) error {
	switch c := col.(type) {
	case *column.ArrayColumn:
		sizes := make([]uint64, c.Len())
		for i := range sizes {
			sizes[i] = c.Size(i)
		}
		out[prefix.Append(ArraySizes).String()] = column.EncodeUInt64s(sizes)
		return encodeStreams(c.Elements, prefix.Append(ArrayElements), out)
	case *column.NullableColumn:
		out[prefix.Append(NullMap).String()] = append([]byte(nil), c.NullMap...)
		return encodeStreams(c.Nested, prefix.Append(NullableElements), out)
	case *column.LowCardinalityColumn:
		var keys bytes.Buffer
		column.WriteVarUInt(&keys, uint64(c.Dict.Len()))
		dict, err := column.EncodeColumn(c.Dict)
		if err != nil {
			return err
		}
		keys.Write(dict)
		out[prefix.Append(DictionaryKeys).String()] = keys.Bytes()
		out[prefix.Append(DictionaryIndexes).String()] = column.EncodeUInt32s(c.Indices)
		return nil
	default:
		data, err := column.EncodeColumn(col)
		if err != nil {
			return err
		}
		out[leafPath(prefix).String()] = data
		return nil
	}
}

func leafPath(prefix Path) Path {
	if len(prefix) == 0 {
		return Path{Regular}
	}
	return prefix.Append(Regular)
}

// DecodeStreams rebuilds n rows of a column of type t from its substreams.
func DecodeStreams(t types.ColumnType, kind Kind, n int, get func(Path) ([]byte, error)) (column.Column, error) {
	if kind != KindSparse {
		return decodeStreams(t, nil, n, get)
	}
	if t.Kind != types.KindScalar {
		return nil, fmt.Errorf("sparse serialization of %s is not supported", t)
	}

	data, err := get(Path{SparseOffsets})
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	count, err := column.ReadVarUInt(r)
	if err != nil {
		return nil, fmt.Errorf("reading sparse offsets count: %w", err)
	}
	if count > uint64(n) {
		return nil, fmt.Errorf("sparse column has %d values for %d rows", count, n)
	}
	positions := make([]uint64, count)
	for i := range positions {
		if positions[i], err = column.ReadVarUInt(r); err != nil {
			return nil, fmt.Errorf("reading sparse offset %d: %w", i, err)
		}
		if positions[i] >= uint64(n) || (i > 0 && positions[i] <= positions[i-1]) {
			return nil, fmt.Errorf("invalid sparse offset %d at index %d", positions[i], i)
		}
	}
	values, err := decodeStreams(t, Path{SparseElements}, int(count), get)
	if err != nil {
		return nil, err
	}

	out := column.NewColumnWithCapacity(t, n)
	def := types.DefaultValue(t.Scalar)
	next := 0
	for i := 0; i < n; i++ {
		if next < len(positions) && positions[next] == uint64(i) {
			out.Append(values.Value(next))
			next++
			continue
		}
		out.Append(def)
	}
	return out, nil
}

func decodeStreams(t types.ColumnType, prefix Path, n int, get func(Path) ([]byte, error)) (column.Column, error) {
	switch t.Kind {
	case types.KindArray:
		data, err := get(prefix.Append(ArraySizes))
		if err != nil {
			return nil, err
		}
		sizes, err := column.DecodeUInt64s(data, n)
		if err != nil {
			return nil, fmt.Errorf("decoding array sizes: %w", err)
		}
		arr := column.NewArrayColumn(*t.Nested)
		arr.Offsets = make([]uint64, n)
		var total uint64
		for i, s := range sizes {
			total += s
			arr.Offsets[i] = total
		}
		elems, err := decodeStreams(*t.Nested, prefix.Append(ArrayElements), int(total), get)
		if err != nil {
			return nil, err
		}
		arr.Elements = elems
		return arr, nil

	case types.KindNullable:
		data, err := get(prefix.Append(NullMap))
		if err != nil {
			return nil, err
		}
		if len(data) < n {
			return nil, fmt.Errorf("null map has %d bytes for %d rows", len(data), n)
		}
		nested, err := decodeStreams(*t.Nested, prefix.Append(NullableElements), n, get)
		if err != nil {
			return nil, err
		}
		return &column.NullableColumn{NullMap: append([]uint8(nil), data[:n]...), Nested: nested}, nil

	case types.KindLowCardinality:
		data, err := get(prefix.Append(DictionaryKeys))
		if err != nil {
			return nil, err
		}
		r := bytes.NewReader(data)
		dictLen, err := column.ReadVarUInt(r)
		if err != nil {
			return nil, fmt.Errorf("reading dictionary size: %w", err)
		}
		dict, err := column.DecodeColumn(t.Nested.Scalar, data[len(data)-r.Len():], int(dictLen))
		if err != nil {
			return nil, fmt.Errorf("decoding dictionary: %w", err)
		}
		data, err = get(prefix.Append(DictionaryIndexes))
		if err != nil {
			return nil, err
		}
		indices, err := column.DecodeUInt32s(data, n)
		if err != nil {
			return nil, fmt.Errorf("decoding dictionary indexes: %w", err)
		}
		return column.NewLowCardinalityFromDictionary(dict, indices)

	default:
		data, err := get(leafPath(prefix))
		if err != nil {
			return nil, err
		}
		return column.DecodeColumn(t.Scalar, data, n)
	}
}
