package storage

import (
	"fmt"

	"github.com/harshithgowdakt/widepart/internal/types"
)

// ColumnDef defines a column in a table schema.
type ColumnDef struct {
	Name string
	Type types.ColumnType
}

// TableSchema defines the columns and keys of a MergeTree table.
type TableSchema struct {
	Columns     []ColumnDef
	OrderBy     []string // primary key column names (ORDER BY clause)
	PartitionBy string   // single column name or empty
	// Settings overrides the database-wide settings for this table.
	Settings *Settings
}

// GetColumnDef returns the ColumnDef for a column name.
func (s *TableSchema) GetColumnDef(name string) (ColumnDef, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// ColumnNames returns all column names in order.
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// NamesAndTypes returns the columns in declaration order.
func (s *TableSchema) NamesAndTypes() []types.NameAndType {
	out := make([]types.NameAndType, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = types.NameAndType{Name: c.Name, Type: c.Type}
	}
	return out
}

// Validate checks column names and key columns.
func (s *TableSchema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("table has no columns")
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("empty column name")
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate column %s", c.Name)
		}
		seen[c.Name] = true
	}
	for _, k := range s.OrderBy {
		c, ok := s.GetColumnDef(k)
		if !ok {
			return fmt.Errorf("ORDER BY column %s not in schema", k)
		}
		if c.Type.Kind != types.KindScalar && c.Type.Kind != types.KindLowCardinality {
			return fmt.Errorf("ORDER BY column %s has type %s", k, c.Type)
		}
	}
	if s.PartitionBy != "" {
		c, ok := s.GetColumnDef(s.PartitionBy)
		if !ok {
			return fmt.Errorf("partition column %s not in schema", s.PartitionBy)
		}
		if c.Type.Kind != types.KindScalar {
			return fmt.Errorf("partition column %s has type %s", s.PartitionBy, c.Type)
		}
	}
	return nil
}

// EffectiveSettings returns the table's own settings or def.
func (s *TableSchema) EffectiveSettings(def Settings) Settings {
	if s.Settings != nil {
		return *s.Settings
	}
	return def
}
