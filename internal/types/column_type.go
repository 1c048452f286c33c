package types

import (
	"fmt"
	"strings"
)

// TypeKind distinguishes the shapes a column type can take.
type TypeKind uint8

const (
	KindScalar TypeKind = iota
	KindArray
	KindNullable
	KindLowCardinality
)

// ColumnType is the logical type of a column: a scalar, or a wrapper around
// a nested type. Nullable and LowCardinality wrap scalars only; Array may
// wrap any ColumnType.
type ColumnType struct {
	Kind   TypeKind
	Scalar DataType    // KindScalar only
	Nested *ColumnType // wrapped type for every other kind
}

// Scalar returns a scalar column type.
func Scalar(dt DataType) ColumnType {
	return ColumnType{Kind: KindScalar, Scalar: dt}
}

// Array returns Array(elem).
func Array(elem ColumnType) ColumnType {
	return ColumnType{Kind: KindArray, Nested: &elem}
}

// Nullable returns Nullable(dt).
func Nullable(dt DataType) ColumnType {
	inner := Scalar(dt)
	return ColumnType{Kind: KindNullable, Nested: &inner}
}

// LowCardinality returns LowCardinality(dt).
func LowCardinality(dt DataType) ColumnType {
	inner := Scalar(dt)
	return ColumnType{Kind: KindLowCardinality, Nested: &inner}
}

// String renders the type the way it appears in columns.txt.
func (t ColumnType) String() string {
	switch t.Kind {
	case KindArray:
		return "Array(" + t.Nested.String() + ")"
	case KindNullable:
		return "Nullable(" + t.Nested.String() + ")"
	case KindLowCardinality:
		return "LowCardinality(" + t.Nested.String() + ")"
	default:
		return t.Scalar.Name()
	}
}

// Equal reports whether two column types are structurally identical.
func (t ColumnType) Equal(o ColumnType) bool {
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind == KindScalar {
		return t.Scalar == o.Scalar
	}
	return t.Nested.Equal(*o.Nested)
}

// IsValueRepresentedByNumber is true for numeric scalars.
func (t ColumnType) IsValueRepresentedByNumber() bool {
	return t.Kind == KindScalar && t.Scalar.IsNumeric()
}

// HaveSubtypes is true for every wrapper type.
func (t ColumnType) HaveSubtypes() bool {
	return t.Kind != KindScalar
}

// SizeOfValueInMemory returns the fixed in-memory size of one value, or 0
// when values are variable-length or composite.
func (t ColumnType) SizeOfValueInMemory() int {
	if t.Kind != KindScalar {
		return 0
	}
	return t.Scalar.FixedSize()
}

// Innermost returns the scalar at the bottom of the type tree.
func (t ColumnType) Innermost() DataType {
	for t.Kind != KindScalar {
		t = *t.Nested
	}
	return t.Scalar
}

// ParseColumnType parses a type name such as "Array(Nullable(String))".
func ParseColumnType(name string) (ColumnType, error) {
	s := strings.TrimSpace(name)
	open := strings.IndexByte(s, '(')
	if open < 0 {
		dt, err := ParseDataType(s)
		if err != nil {
			return ColumnType{}, err
		}
		return Scalar(dt), nil
	}
	if !strings.HasSuffix(s, ")") {
		return ColumnType{}, fmt.Errorf("unbalanced parentheses in type: %s", name)
	}
	wrapper := strings.ToLower(strings.TrimSpace(s[:open]))
	inner, err := ParseColumnType(s[open+1 : len(s)-1])
	if err != nil {
		return ColumnType{}, fmt.Errorf("%s inner type: %w", s[:open], err)
	}

	switch wrapper {
	case "array":
		return Array(inner), nil
	case "nullable":
		if inner.Kind != KindScalar {
			return ColumnType{}, fmt.Errorf("nested type %s cannot be inside Nullable type", inner)
		}
		return Nullable(inner.Scalar), nil
	case "lowcardinality":
		if inner.Kind != KindScalar {
			return ColumnType{}, fmt.Errorf("LowCardinality supports only scalar types, got %s", inner)
		}
		return LowCardinality(inner.Scalar), nil
	default:
		return ColumnType{}, fmt.Errorf("unknown data type: %s", name)
	}
}

// NameAndType is one declared column of a part.
type NameAndType struct {
	Name string
	Type ColumnType
}

// NestedTableName returns the part of a column name before the first dot,
// the way Nested columns share a common prefix. Columns without a dot return
// their own name.
func NestedTableName(name string) string {
	if i := strings.IndexByte(name, '.'); i > 0 && i < len(name)-1 {
		return name[:i]
	}
	return name
}
