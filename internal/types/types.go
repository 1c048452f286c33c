// Package types describes the logical types of columns stored in parts.
package types

import (
	"fmt"
	"strings"
)

// DataType is a scalar type. Arrays, Nullable and LowCardinality wrap one
// in a ColumnType.
type DataType uint8

const (
	TypeUInt8 DataType = iota
	TypeUInt16
	TypeUInt32
	TypeUInt64
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeString
	TypeDateTime // seconds since the epoch as UInt32
)

var scalars = [...]struct {
	name string
	size int // 0 for variable-length values
}{
	TypeUInt8:    {"UInt8", 1},
	TypeUInt16:   {"UInt16", 2},
	TypeUInt32:   {"UInt32", 4},
	TypeUInt64:   {"UInt64", 8},
	TypeInt8:     {"Int8", 1},
	TypeInt16:    {"Int16", 2},
	TypeInt32:    {"Int32", 4},
	TypeInt64:    {"Int64", 8},
	TypeFloat32:  {"Float32", 4},
	TypeFloat64:  {"Float64", 8},
	TypeString:   {"String", 0},
	TypeDateTime: {"DateTime", 4},
}

// ParseDataType resolves a scalar type name, ignoring case.
func ParseDataType(name string) (DataType, error) {
	name = strings.TrimSpace(name)
	for dt, s := range scalars {
		if strings.EqualFold(s.name, name) {
			return DataType(dt), nil
		}
	}
	return 0, fmt.Errorf("unknown data type: %s", name)
}

func (dt DataType) valid() bool { return int(dt) < len(scalars) }

func (dt DataType) Name() string {
	if !dt.valid() {
		return fmt.Sprintf("DataType(%d)", uint8(dt))
	}
	return scalars[dt].name
}

// FixedSize is the width of one serialized value, 0 for String.
func (dt DataType) FixedSize() int {
	if !dt.valid() {
		return 0
	}
	return scalars[dt].size
}

// IsNumeric reports whether values are stored as fixed-width numbers.
func (dt DataType) IsNumeric() bool {
	return dt.valid() && dt != TypeString
}
