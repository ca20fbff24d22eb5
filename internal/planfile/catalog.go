package planfile

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dshills/QuantaOpt/internal/catalog"
	qerrors "github.com/dshills/QuantaOpt/internal/errors"
	"github.com/dshills/QuantaOpt/internal/sql/types"
)

// CatalogFile is the YAML form of a set of table definitions.
//
//	tables:
//	  - name: orders
//	    columns:
//	      - {name: orderkey, type: bigint}
//	      - {name: totalprice, type: double}
//	    primary_key: [orderkey]
//	    unique: [[custkey, clerk]]
//	    max_rows: 1000
type CatalogFile struct {
	Tables []TableDef `yaml:"tables"`
}

// TableDef defines one table.
type TableDef struct {
	Schema     string      `yaml:"schema"`
	Name       string      `yaml:"name"`
	Columns    []ColumnDef `yaml:"columns"`
	PrimaryKey []string    `yaml:"primary_key"`
	Unique     [][]string  `yaml:"unique"`
	MaxRows    *int64      `yaml:"max_rows"`
}

// ColumnDef defines one table column.
type ColumnDef struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
}

// DecodeCatalog parses table definitions and registers them in a new catalog.
func DecodeCatalog(data []byte) (*catalog.MemoryCatalog, error) {
	var file CatalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !isEOF(err) {
		return nil, qerrors.Wrap(err, qerrors.SyntaxError, "invalid catalog file")
	}

	cat := catalog.NewMemoryCatalog()
	if err := AddTables(cat, file.Tables); err != nil {
		return nil, err
	}
	return cat, nil
}

// LoadCatalog reads and decodes a catalog file.
func LoadCatalog(path string) (*catalog.MemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, qerrors.Wrap(err, qerrors.UndefinedObject, "cannot read catalog file").
			WithWhere(path)
	}
	return DecodeCatalog(data)
}

// AddTables registers table definitions in cat, creating schemas as needed.
func AddTables(cat *catalog.MemoryCatalog, tables []TableDef) error {
	for _, def := range tables {
		schema, err := def.tableSchema()
		if err != nil {
			return err
		}
		if schema.SchemaName != "" {
			if _, err := cat.ListTables(schema.SchemaName); err != nil {
				if err := cat.CreateSchema(schema.SchemaName); err != nil {
					return err
				}
			}
		}
		if _, err := cat.CreateTable(schema); err != nil {
			return err
		}
	}
	return nil
}

func (def TableDef) tableSchema() (*catalog.TableSchema, error) {
	schema := &catalog.TableSchema{
		SchemaName: def.Schema,
		TableName:  def.Name,
		MaxRows:    def.MaxRows,
	}
	for _, col := range def.Columns {
		dataType, err := types.ParseDataType(col.Type)
		if err != nil {
			return nil, qerrors.InvalidTypeError(col.Type).
				WithTable(def.Schema, def.Name).
				WithColumn(col.Name)
		}
		schema.Columns = append(schema.Columns, catalog.ColumnDef{
			Name:       col.Name,
			DataType:   dataType,
			IsNullable: col.Nullable,
		})
	}
	if len(def.PrimaryKey) > 0 {
		schema.Constraints = append(schema.Constraints, catalog.PrimaryKeyConstraint{Columns: def.PrimaryKey})
	}
	for _, cols := range def.Unique {
		schema.Constraints = append(schema.Constraints, catalog.UniqueConstraint{Columns: cols})
	}
	return schema, nil
}
