package types

import (
	"cmp"
	"fmt"
)

// Value holds one row of a column: the native Go type of the scalar
// (uint8 for UInt8, string for String, uint32 for DateTime), []Value for
// arrays and nil for NULL.
type Value = any

// CompareValues orders two non-NULL values of dt the way cmp.Compare does.
func CompareValues(dt DataType, a, b Value) int {
	switch dt {
	case TypeUInt8:
		return cmp.Compare(a.(uint8), b.(uint8))
	case TypeUInt16:
		return cmp.Compare(a.(uint16), b.(uint16))
	case TypeUInt32:
		return cmp.Compare(a.(uint32), b.(uint32))
	case TypeUInt64:
		return cmp.Compare(a.(uint64), b.(uint64))
	case TypeInt8:
		return cmp.Compare(a.(int8), b.(int8))
	case TypeInt16:
		return cmp.Compare(a.(int16), b.(int16))
	case TypeInt32:
		return cmp.Compare(a.(int32), b.(int32))
	case TypeInt64:
		return cmp.Compare(a.(int64), b.(int64))
	case TypeFloat32:
		return cmp.Compare(a.(float32), b.(float32))
	case TypeFloat64:
		return cmp.Compare(a.(float64), b.(float64))
	case TypeString:
		return cmp.Compare(a.(string), b.(string))
	case TypeDateTime:
		return cmp.Compare(a.(uint32), b.(uint32))
	default:
		return 0
	}
}

// DefaultValue returns the zero value stored for dt, used under NULLs.
func DefaultValue(dt DataType) Value {
	switch dt {
	case TypeUInt8:
		return uint8(0)
	case TypeUInt16:
		return uint16(0)
	case TypeUInt32, TypeDateTime:
		return uint32(0)
	case TypeUInt64:
		return uint64(0)
	case TypeInt8:
		return int8(0)
	case TypeInt16:
		return int16(0)
	case TypeInt32:
		return int32(0)
	case TypeInt64:
		return int64(0)
	case TypeFloat32:
		return float32(0)
	case TypeFloat64:
		return float64(0)
	default:
		return ""
	}
}

// ValueToString converts a value to its string representation.
func ValueToString(v Value) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
