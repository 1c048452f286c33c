package column

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/harshithgowdakt/widepart/internal/types"
)

// WriteVarUInt writes a variable-length unsigned integer (same encoding as protobuf varint).
func WriteVarUInt(w io.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

// ReadVarUInt reads a variable-length unsigned integer.
func ReadVarUInt(r io.ByteReader) (uint64, error) {
	return binary.ReadUvarint(r)
}

// EncodeColumn encodes a scalar column to binary format.
// Fixed-size types: raw little-endian contiguous bytes.
// String: VarInt(length) + raw bytes per string.
func EncodeColumn(col Column) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeColumnTo(&buf, col); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeColumnTo(w io.Writer, col Column) error {
	switch c := col.(type) {
	case *Vector[string]:
		for _, s := range c.Data {
			if err := WriteVarUInt(w, uint64(len(s))); err != nil {
				return err
			}
			if _, err := io.WriteString(w, s); err != nil {
				return err
			}
		}
		return nil
	case *Vector[uint8]:
		return binary.Write(w, binary.LittleEndian, c.Data)
	case *Vector[uint16]:
		return binary.Write(w, binary.LittleEndian, c.Data)
	case *Vector[uint32]:
		return binary.Write(w, binary.LittleEndian, c.Data)
	case *Vector[uint64]:
		return binary.Write(w, binary.LittleEndian, c.Data)
	case *Vector[int8]:
		return binary.Write(w, binary.LittleEndian, c.Data)
	case *Vector[int16]:
		return binary.Write(w, binary.LittleEndian, c.Data)
	case *Vector[int32]:
		return binary.Write(w, binary.LittleEndian, c.Data)
	case *Vector[int64]:
		return binary.Write(w, binary.LittleEndian, c.Data)
	case *Vector[float32]:
		return binary.Write(w, binary.LittleEndian, c.Data)
	case *Vector[float64]:
		return binary.Write(w, binary.LittleEndian, c.Data)
	default:
		return fmt.Errorf("unsupported column type for encoding: %T", col)
	}
}

// DecodeColumn decodes numRows values of scalar type dt from data.
func DecodeColumn(dt types.DataType, data []byte, numRows int) (Column, error) {
	return decodeColumnFrom(dt, bytes.NewReader(data), numRows)
}

func decodeColumnFrom(dt types.DataType, r io.Reader, numRows int) (Column, error) {
	switch dt {
	case types.TypeString:
		br, ok := r.(interface {
			io.Reader
			io.ByteReader
		})
		if !ok {
			br = bufio.NewReader(r)
		}
		data := make([]string, 0, numRows)
		for i := 0; i < numRows; i++ {
			length, err := ReadVarUInt(br)
			if err != nil {
				return nil, fmt.Errorf("reading string length at row %d: %w", i, err)
			}
			buf := make([]byte, length)
			if _, err := io.ReadFull(br, buf); err != nil {
				return nil, fmt.Errorf("reading string data at row %d: %w", i, err)
			}
			data = append(data, string(buf))
		}
		return NewVector(dt, data), nil
	case types.TypeUInt8:
		return decodeFixed[uint8](dt, r, numRows)
	case types.TypeUInt16:
		return decodeFixed[uint16](dt, r, numRows)
	case types.TypeUInt32, types.TypeDateTime:
		return decodeFixed[uint32](dt, r, numRows)
	case types.TypeUInt64:
		return decodeFixed[uint64](dt, r, numRows)
	case types.TypeInt8:
		return decodeFixed[int8](dt, r, numRows)
	case types.TypeInt16:
		return decodeFixed[int16](dt, r, numRows)
	case types.TypeInt32:
		return decodeFixed[int32](dt, r, numRows)
	case types.TypeInt64:
		return decodeFixed[int64](dt, r, numRows)
	case types.TypeFloat32:
		return decodeFixed[float32](dt, r, numRows)
	case types.TypeFloat64:
		return decodeFixed[float64](dt, r, numRows)
	default:
		return nil, fmt.Errorf("unsupported data type for decoding: %d", dt)
	}
}

func decodeFixed[T Native](dt types.DataType, r io.Reader, numRows int) (Column, error) {
	data := make([]T, numRows)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("reading %d %s values: %w", numRows, dt.Name(), err)
	}
	return NewVector(dt, data), nil
}

// EncodeValue encodes a single scalar value to binary format.
func EncodeValue(w io.Writer, dt types.DataType, v types.Value) error {
	col := newScalar(dt, 1)
	col.Append(v)
	return encodeColumnTo(w, col)
}

// DecodeValue decodes a single scalar value from binary format.
func DecodeValue(r io.Reader, dt types.DataType) (types.Value, error) {
	col, err := decodeColumnFrom(dt, r, 1)
	if err != nil {
		return nil, err
	}
	return col.Value(0), nil
}

// EncodeUInt64s encodes values as contiguous little-endian uint64s.
func EncodeUInt64s(values []uint64) []byte {
	out := make([]byte, 0, 8*len(values))
	for _, v := range values {
		out = binary.LittleEndian.AppendUint64(out, v)
	}
	return out
}

// DecodeUInt64s decodes n little-endian uint64s.
func DecodeUInt64s(data []byte, n int) ([]uint64, error) {
	if len(data) < 8*n {
		return nil, fmt.Errorf("need %d bytes for %d uint64 values, have %d", 8*n, n, len(data))
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(data[8*i:])
	}
	return out, nil
}

// EncodeUInt32s encodes values as contiguous little-endian uint32s.
func EncodeUInt32s(values []uint32) []byte {
	out := make([]byte, 0, 4*len(values))
	for _, v := range values {
		out = binary.LittleEndian.AppendUint32(out, v)
	}
	return out
}

// DecodeUInt32s decodes n little-endian uint32s.
func DecodeUInt32s(data []byte, n int) ([]uint32, error) {
	if len(data) < 4*n {
		return nil, fmt.Errorf("need %d bytes for %d uint32 values, have %d", 4*n, n, len(data))
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[4*i:])
	}
	return out, nil
}
