package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/QuantaOpt/internal/sql/types"
)

// Catalog manages table metadata and the declared facts the optimizer
// relies on.
type Catalog interface {
	// Table operations
	CreateTable(schema *TableSchema) (*Table, error)
	GetTable(schemaName, tableName string) (*Table, error)
	DropTable(schemaName, tableName string) error
	ListTables(schemaName string) ([]*Table, error)

	// Declared row-count bounds
	SetRowCountBound(schemaName, tableName string, maxRows int64) error
	ClearRowCountBound(schemaName, tableName string) error

	// Constraint source for the optimizer
	UniqueConstraints(table string) [][]string
	RowCountBound(table string) (int64, bool)
}

// TableSchema defines the structure for creating a new table.
type TableSchema struct {
	SchemaName  string
	TableName   string
	Columns     []ColumnDef
	Constraints []Constraint
	// MaxRows declares an upper bound on the table's row count. Nil means
	// no bound is known.
	MaxRows *int64
}

// ColumnDef defines a column in a table.
type ColumnDef struct {
	Name        string
	DataType    types.DataType
	IsNullable  bool
	Constraints []ColumnConstraint
}

// Table represents a table with its metadata.
type Table struct {
	ID          int64
	SchemaName  string
	TableName   string
	Columns     []*Column
	Constraints []Constraint
	MaxRows     *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// QualifiedName returns schema.table.
func (t *Table) QualifiedName() string {
	return t.SchemaName + "." + t.TableName
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for _, col := range t.Columns {
		if col.Name == name {
			return col
		}
	}
	return nil
}

// UniqueKeys returns the column lists of every primary key and unique
// constraint, primary key first.
func (t *Table) UniqueKeys() [][]string {
	var keys [][]string
	for _, c := range t.Constraints {
		if pk, ok := c.(PrimaryKeyConstraint); ok {
			keys = append(keys, append([]string(nil), pk.Columns...))
		}
	}
	for _, c := range t.Constraints {
		if uq, ok := c.(UniqueConstraint); ok {
			keys = append(keys, append([]string(nil), uq.Columns...))
		}
	}
	return keys
}

// Column represents a column with its metadata.
type Column struct {
	ID              int64
	Name            string
	DataType        types.DataType
	OrdinalPosition int
	IsNullable      bool
}

// Constraint represents a table constraint.
type Constraint interface {
	constraintType() string
	String() string
}

// ColumnConstraint represents a column-level constraint.
type ColumnConstraint interface {
	columnConstraintType() string
	String() string
}

// PrimaryKeyConstraint represents a primary key constraint.
type PrimaryKeyConstraint struct {
	Name    string
	Columns []string
}

func (c PrimaryKeyConstraint) constraintType() string { return "PRIMARY KEY" }
func (c PrimaryKeyConstraint) String() string {
	return fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(c.Columns, ", "))
}

// UniqueConstraint represents a unique constraint.
type UniqueConstraint struct {
	Name    string
	Columns []string
}

func (c UniqueConstraint) constraintType() string { return "UNIQUE" }
func (c UniqueConstraint) String() string {
	return fmt.Sprintf("UNIQUE (%s)", strings.Join(c.Columns, ", "))
}

// NotNullConstraint represents a NOT NULL constraint.
type NotNullConstraint struct{}

func (c NotNullConstraint) columnConstraintType() string { return "NOT NULL" }
func (c NotNullConstraint) String() string               { return "NOT NULL" }

// ColumnPrimaryKey marks a single column as the primary key.
type ColumnPrimaryKey struct{}

func (c ColumnPrimaryKey) columnConstraintType() string { return "PRIMARY KEY" }
func (c ColumnPrimaryKey) String() string               { return "PRIMARY KEY" }

// ColumnUnique marks a single column as unique.
type ColumnUnique struct{}

func (c ColumnUnique) columnConstraintType() string { return "UNIQUE" }
func (c ColumnUnique) String() string               { return "UNIQUE" }

// splitTableName splits "schema.table" into its parts. A bare name belongs
// to the default schema.
func splitTableName(name string) (schemaName, tableName string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return defaultSchemaName, name
}
