package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/harshithgowdakt/widepart/internal/disk"
	"github.com/harshithgowdakt/widepart/internal/logging"
	"github.com/harshithgowdakt/widepart/internal/types"
)

// SchemaFileName holds a table's schema inside its directory.
const SchemaFileName = "schema.json"

// Database manages all tables stored on one disk.
type Database struct {
	disk     disk.Disk
	settings Settings

	mu     sync.RWMutex
	tables map[string]*MergeTreeTable
}

// NewDatabase opens the tables on d and attaches their parts, at most
// attachConcurrency parts at a time per table.
func NewDatabase(ctx context.Context, d disk.Disk, settings Settings, attachConcurrency int) (*Database, error) {
	db := &Database{
		disk:     d,
		settings: settings,
		tables:   make(map[string]*MergeTreeTable),
	}
	if err := db.LoadMetadata(ctx, attachConcurrency); err != nil {
		return nil, fmt.Errorf("loading metadata: %w", err)
	}
	return db, nil
}

// Disk returns the disk the database is stored on.
func (db *Database) Disk() disk.Disk { return db.disk }

// CreateTable creates a new table.
func (db *Database) CreateTable(ctx context.Context, name string, schema TableSchema) (*MergeTreeTable, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.tables[name]; exists {
		return nil, fmt.Errorf("table %s already exists", name)
	}

	data, err := marshalTableSchema(name, &schema)
	if err != nil {
		return nil, err
	}
	if err := db.disk.WriteFile(ctx, name+"/"+SchemaFileName, data); err != nil {
		return nil, fmt.Errorf("saving schema of %s: %w", name, err)
	}

	t := NewMergeTreeTable(name, schema, db.disk, db.settings)
	db.tables[name] = t
	return t, nil
}

// GetTable returns a table by name.
func (db *Database) GetTable(name string) (*MergeTreeTable, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, ok := db.tables[name]
	return t, ok
}

// DropTable removes a table and its data.
func (db *Database) DropTable(ctx context.Context, name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.tables[name]; !ok {
		return fmt.Errorf("table %s does not exist", name)
	}
	if err := db.disk.RemoveAll(ctx, name); err != nil {
		return err
	}
	delete(db.tables, name)
	activeParts.DeleteLabelValues(name)
	return nil
}

// TableNames returns the table names in sorted order.
func (db *Database) TableNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return slices.Sorted(maps.Keys(db.tables))
}

// LoadMetadata scans the disk for tables and attaches their parts.
// Directories without a schema are not tables and are ignored.
func (db *Database) LoadMetadata(ctx context.Context, attachConcurrency int) error {
	dirs, err := db.disk.ListDirs(ctx, "")
	if err != nil {
		if errors.Is(err, disk.ErrNotExist) {
			return nil
		}
		return err
	}
	log := logging.With("storage")

	for _, name := range dirs {
		data, err := db.disk.ReadFile(ctx, name+"/"+SchemaFileName)
		if err != nil {
			if !errors.Is(err, disk.ErrNotExist) {
				log.Warn().Err(err).Str("table", name).Msg("cannot read table schema")
			}
			continue
		}
		schema, err := unmarshalTableSchema(data)
		if err != nil {
			log.Warn().Err(err).Str("table", name).Msg("skipping table with invalid schema")
			continue
		}

		t := NewMergeTreeTable(name, *schema, db.disk, db.settings)
		if err := t.loadParts(ctx, attachConcurrency); err != nil {
			return err
		}
		db.mu.Lock()
		db.tables[name] = t
		db.mu.Unlock()
		log.Info().Str("table", name).Int("parts", len(t.GetActiveParts())).Msg("loaded table")
	}
	return nil
}

type columnJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// tableSchemaJSON is the layout of schema.json.
type tableSchemaJSON struct {
	Name        string       `json:"name"`
	Columns     []columnJSON `json:"columns"`
	OrderBy     []string     `json:"order_by"`
	PartitionBy string       `json:"partition_by,omitempty"`
	Settings    *Settings    `json:"settings,omitempty"`
}

func marshalTableSchema(name string, schema *TableSchema) ([]byte, error) {
	j := tableSchemaJSON{
		Name:        name,
		Columns:     make([]columnJSON, len(schema.Columns)),
		OrderBy:     schema.OrderBy,
		PartitionBy: schema.PartitionBy,
		Settings:    schema.Settings,
	}
	for i, c := range schema.Columns {
		j.Columns[i] = columnJSON{Name: c.Name, Type: c.Type.String()}
	}
	return json.MarshalIndent(j, "", "  ")
}

func unmarshalTableSchema(data []byte) (*TableSchema, error) {
	var j tableSchemaJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	schema := &TableSchema{
		Columns:     make([]ColumnDef, len(j.Columns)),
		OrderBy:     j.OrderBy,
		PartitionBy: j.PartitionBy,
		Settings:    j.Settings,
	}
	for i, c := range j.Columns {
		ct, err := types.ParseColumnType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		schema.Columns[i] = ColumnDef{Name: c.Name, Type: ct}
	}
	return schema, schema.Validate()
}
