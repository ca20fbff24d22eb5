package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	qerrors "github.com/dshills/QuantaOpt/internal/errors"
	"github.com/dshills/QuantaOpt/internal/sql/types"
)

const defaultSchemaName = "public"

var _ Catalog = (*MemoryCatalog)(nil)

// MemoryCatalog is an in-memory implementation of the Catalog interface.
// Reads vastly outnumber writes: the optimizer queries it for every scan.
type MemoryCatalog struct {
	mu      sync.RWMutex
	schemas map[string]*schema
	tables  map[string]*Table // "schema.table" -> Table
	nextID  int64
}

// schema represents a database schema.
type schema struct {
	name   string
	tables map[string]*Table
}

// NewMemoryCatalog creates a new in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	c := &MemoryCatalog{
		schemas: make(map[string]*schema),
		tables:  make(map[string]*Table),
		nextID:  1,
	}

	// Create default public schema
	c.schemas[defaultSchemaName] = &schema{
		name:   defaultSchemaName,
		tables: make(map[string]*Table),
	}

	return c
}

// CreateSchema creates a new schema.
func (c *MemoryCatalog) CreateSchema(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.schemas[name]; exists {
		return qerrors.DuplicateSchemaError(name)
	}

	c.schemas[name] = &schema{
		name:   name,
		tables: make(map[string]*Table),
	}

	return nil
}

// DropSchema drops a schema and all its tables.
func (c *MemoryCatalog) DropSchema(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == defaultSchemaName {
		return qerrors.Newf(qerrors.InvalidSchemaName, "cannot drop schema \"%s\"", defaultSchemaName)
	}

	schema, exists := c.schemas[name]
	if !exists {
		return qerrors.UndefinedSchemaError(name)
	}

	for tableName := range schema.tables {
		delete(c.tables, name+"."+tableName)
	}

	delete(c.schemas, name)
	return nil
}

// ListSchemas returns the names of all schemas in sorted order.
func (c *MemoryCatalog) ListSchemas() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	schemas := make([]string, 0, len(c.schemas))
	for name := range c.schemas {
		schemas = append(schemas, name)
	}
	sort.Strings(schemas)

	return schemas, nil
}

// CreateTable validates and registers a new table.
func (c *MemoryCatalog) CreateTable(tableSchema *TableSchema) (*Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	schemaName := tableSchema.SchemaName
	if schemaName == "" {
		schemaName = defaultSchemaName
	}

	schema, exists := c.schemas[schemaName]
	if !exists {
		return nil, qerrors.UndefinedSchemaError(schemaName)
	}

	if tableSchema.TableName == "" {
		return nil, qerrors.InvalidParameterValueError("table_name", "", "table name must not be empty")
	}

	key := schemaName + "." + tableSchema.TableName
	if _, exists := c.tables[key]; exists {
		return nil, qerrors.DuplicateTableError(tableSchema.TableName)
	}

	if tableSchema.MaxRows != nil && *tableSchema.MaxRows < 0 {
		return nil, qerrors.InvalidParameterValueError("max_rows", fmt.Sprint(*tableSchema.MaxRows),
			"row count bound must not be negative")
	}

	now := time.Now()
	table := &Table{
		ID:         c.nextID,
		SchemaName: schemaName,
		TableName:  tableSchema.TableName,
		Columns:    make([]*Column, 0, len(tableSchema.Columns)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if tableSchema.MaxRows != nil {
		bound := *tableSchema.MaxRows
		table.MaxRows = &bound
	}

	// Column-level key constraints become table constraints.
	var constraints []Constraint
	for i, colDef := range tableSchema.Columns {
		if table.Column(colDef.Name) != nil {
			return nil, qerrors.DuplicateColumnError(colDef.Name, tableSchema.TableName)
		}
		if colDef.DataType == nil {
			colDef.DataType = types.Unknown
		}

		column := &Column{
			ID:              int64(i + 1),
			Name:            colDef.Name,
			DataType:        colDef.DataType,
			OrdinalPosition: i + 1,
			IsNullable:      colDef.IsNullable,
		}
		table.Columns = append(table.Columns, column)

		for _, constraint := range colDef.Constraints {
			switch constraint.(type) {
			case NotNullConstraint:
				column.IsNullable = false
			case ColumnPrimaryKey:
				constraints = append(constraints, PrimaryKeyConstraint{Columns: []string{colDef.Name}})
			case ColumnUnique:
				constraints = append(constraints, UniqueConstraint{Columns: []string{colDef.Name}})
			}
		}
	}
	constraints = append(constraints, tableSchema.Constraints...)

	if err := c.validateConstraints(table, constraints); err != nil {
		return nil, err
	}
	table.Constraints = constraints

	c.nextID++
	c.tables[key] = table
	schema.tables[tableSchema.TableName] = table

	return table, nil
}

// validateConstraints checks key constraints against the table's columns.
// Primary key columns are marked NOT NULL.
func (c *MemoryCatalog) validateConstraints(table *Table, constraints []Constraint) error {
	hasPrimaryKey := false
	seen := make(map[string]bool)

	for _, constraint := range constraints {
		var columns []string
		switch con := constraint.(type) {
		case PrimaryKeyConstraint:
			if hasPrimaryKey {
				return qerrors.MultiplePrimaryKeysError(table.TableName)
			}
			hasPrimaryKey = true
			columns = con.Columns
		case UniqueConstraint:
			columns = con.Columns
		default:
			continue
		}

		if len(columns) == 0 {
			return qerrors.EmptyConstraintError(constraint.String(), table.TableName)
		}

		signature := constraintSignature(constraint, columns)
		if seen[signature] {
			return qerrors.DuplicateConstraintError(constraint.String(), table.TableName)
		}
		seen[signature] = true

		for _, name := range columns {
			col := table.Column(name)
			if col == nil {
				return qerrors.ColumnNotFoundError(name, table.TableName)
			}
			if _, ok := constraint.(PrimaryKeyConstraint); ok {
				col.IsNullable = false
			}
		}
	}
	return nil
}

func constraintSignature(constraint Constraint, columns []string) string {
	sorted := append([]string(nil), columns...)
	sort.Strings(sorted)
	return constraint.constraintType() + ":" + strings.Join(sorted, ",")
}

// GetTable retrieves a table by name.
func (c *MemoryCatalog) GetTable(schemaName, tableName string) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	table, ok := c.lookup(schemaName, tableName)
	if !ok {
		return nil, qerrors.UndefinedTableError(tableName)
	}
	return table, nil
}

// DropTable drops a table.
func (c *MemoryCatalog) DropTable(schemaName, tableName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if schemaName == "" {
		schemaName = defaultSchemaName
	}

	schema, exists := c.schemas[schemaName]
	if !exists {
		return qerrors.UndefinedSchemaError(schemaName)
	}

	key := schemaName + "." + tableName
	if _, exists := c.tables[key]; !exists {
		return qerrors.UndefinedTableError(tableName)
	}

	delete(schema.tables, tableName)
	delete(c.tables, key)

	return nil
}

// ListTables returns all tables in a schema ordered by name.
func (c *MemoryCatalog) ListTables(schemaName string) ([]*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if schemaName == "" {
		schemaName = defaultSchemaName
	}

	schema, exists := c.schemas[schemaName]
	if !exists {
		return nil, qerrors.UndefinedSchemaError(schemaName)
	}

	tables := make([]*Table, 0, len(schema.tables))
	for _, table := range schema.tables {
		tables = append(tables, table)
	}
	sort.Slice(tables, func(i, j int) bool {
		return tables[i].TableName < tables[j].TableName
	})

	return tables, nil
}

// SetRowCountBound declares that the table never holds more than maxRows rows.
func (c *MemoryCatalog) SetRowCountBound(schemaName, tableName string, maxRows int64) error {
	if maxRows < 0 {
		return qerrors.InvalidParameterValueError("max_rows", fmt.Sprint(maxRows),
			"row count bound must not be negative")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	table, ok := c.lookup(schemaName, tableName)
	if !ok {
		return qerrors.UndefinedTableError(tableName)
	}
	table.MaxRows = &maxRows
	table.UpdatedAt = time.Now()
	return nil
}

// ClearRowCountBound removes a declared row-count bound.
func (c *MemoryCatalog) ClearRowCountBound(schemaName, tableName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	table, ok := c.lookup(schemaName, tableName)
	if !ok {
		return qerrors.UndefinedTableError(tableName)
	}
	table.MaxRows = nil
	table.UpdatedAt = time.Now()
	return nil
}

// UniqueConstraints returns the declared keys of table, which may be
// qualified as schema.table. Unknown tables have no keys.
func (c *MemoryCatalog) UniqueConstraints(table string) [][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.lookup(splitTableName(table))
	if !ok {
		return nil
	}
	return t.UniqueKeys()
}

// RowCountBound returns the declared row-count bound of table, if any.
func (c *MemoryCatalog) RowCountBound(table string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.lookup(splitTableName(table))
	if !ok || t.MaxRows == nil {
		return 0, false
	}
	return *t.MaxRows, true
}

// lookup finds a table. The caller must hold the lock.
func (c *MemoryCatalog) lookup(schemaName, tableName string) (*Table, bool) {
	if schemaName == "" {
		schemaName = defaultSchemaName
	}
	table, ok := c.tables[schemaName+"."+tableName]
	return table, ok
}
