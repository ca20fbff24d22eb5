package catalog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/dshills/QuantaOpt/internal/errors"
	"github.com/dshills/QuantaOpt/internal/sql/types"
)

func ordersSchema() *TableSchema {
	return &TableSchema{
		TableName: "orders",
		Columns: []ColumnDef{
			{Name: "orderkey", DataType: types.BigInt, Constraints: []ColumnConstraint{ColumnPrimaryKey{}}},
			{Name: "custkey", DataType: types.BigInt, IsNullable: true},
			{Name: "clerk", DataType: types.Text, IsNullable: true},
			{Name: "totalprice", DataType: types.Double, IsNullable: true},
		},
		Constraints: []Constraint{
			UniqueConstraint{Columns: []string{"custkey", "clerk"}},
		},
	}
}

func TestMemoryCatalogSchema(t *testing.T) {
	cat := NewMemoryCatalog()

	schemas, err := cat.ListSchemas()
	require.NoError(t, err)
	assert.Equal(t, []string{"public"}, schemas)

	require.NoError(t, cat.CreateSchema("tpch"))
	err = cat.CreateSchema("tpch")
	assert.True(t, qerrors.IsError(err, qerrors.DuplicateSchema))

	schemas, err = cat.ListSchemas()
	require.NoError(t, err)
	assert.Equal(t, []string{"public", "tpch"}, schemas)

	_, err = cat.CreateTable(&TableSchema{SchemaName: "tpch", TableName: "region",
		Columns: []ColumnDef{{Name: "regionkey", DataType: types.Integer}}})
	require.NoError(t, err)
	require.NoError(t, cat.DropSchema("tpch"))
	_, err = cat.GetTable("tpch", "region")
	assert.True(t, qerrors.IsError(err, qerrors.UndefinedTable))

	assert.True(t, qerrors.IsError(cat.DropSchema("public"), qerrors.InvalidSchemaName))
	assert.True(t, qerrors.IsError(cat.DropSchema("missing"), qerrors.InvalidSchemaName))
}

func TestMemoryCatalogCreateTable(t *testing.T) {
	cat := NewMemoryCatalog()

	table, err := cat.CreateTable(ordersSchema())
	require.NoError(t, err)
	assert.Equal(t, "public.orders", table.QualifiedName())
	require.Len(t, table.Columns, 4)
	assert.Equal(t, 3, table.Columns[2].OrdinalPosition)
	assert.False(t, table.Column("orderkey").IsNullable, "primary key columns are not nullable")
	assert.Nil(t, table.Column("missing"))
	assert.Equal(t, [][]string{{"orderkey"}, {"custkey", "clerk"}}, table.UniqueKeys())

	got, err := cat.GetTable("", "orders")
	require.NoError(t, err)
	assert.Same(t, table, got)

	_, err = cat.CreateTable(ordersSchema())
	assert.True(t, qerrors.IsError(err, qerrors.DuplicateTable))
}

func TestMemoryCatalogCreateTableValidation(t *testing.T) {
	negative := int64(-1)

	tests := []struct {
		name   string
		schema *TableSchema
		code   string
	}{
		{
			name:   "empty name",
			schema: &TableSchema{Columns: []ColumnDef{{Name: "a"}}},
			code:   qerrors.InvalidParameterValue,
		},
		{
			name:   "unknown schema",
			schema: &TableSchema{SchemaName: "nope", TableName: "t"},
			code:   qerrors.InvalidSchemaName,
		},
		{
			name: "duplicate column",
			schema: &TableSchema{TableName: "t", Columns: []ColumnDef{
				{Name: "a", DataType: types.Integer},
				{Name: "a", DataType: types.Text},
			}},
			code: qerrors.DuplicateColumn,
		},
		{
			name: "key on unknown column",
			schema: &TableSchema{TableName: "t",
				Columns:     []ColumnDef{{Name: "a"}},
				Constraints: []Constraint{UniqueConstraint{Columns: []string{"b"}}},
			},
			code: qerrors.UndefinedColumn,
		},
		{
			name: "two primary keys",
			schema: &TableSchema{TableName: "t",
				Columns:     []ColumnDef{{Name: "a", Constraints: []ColumnConstraint{ColumnPrimaryKey{}}}, {Name: "b"}},
				Constraints: []Constraint{PrimaryKeyConstraint{Columns: []string{"b"}}},
			},
			code: qerrors.InvalidTableDefinition,
		},
		{
			name: "empty unique constraint",
			schema: &TableSchema{TableName: "t",
				Columns:     []ColumnDef{{Name: "a"}},
				Constraints: []Constraint{UniqueConstraint{}},
			},
			code: qerrors.InvalidTableDefinition,
		},
		{
			name: "same unique constraint twice",
			schema: &TableSchema{TableName: "t",
				Columns: []ColumnDef{{Name: "a"}, {Name: "b"}},
				Constraints: []Constraint{
					UniqueConstraint{Columns: []string{"a", "b"}},
					UniqueConstraint{Columns: []string{"b", "a"}},
				},
			},
			code: qerrors.DuplicateObject,
		},
		{
			name:   "negative bound",
			schema: &TableSchema{TableName: "t", Columns: []ColumnDef{{Name: "a"}}, MaxRows: &negative},
			code:   qerrors.InvalidParameterValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := NewMemoryCatalog()
			_, err := cat.CreateTable(tt.schema)
			require.Error(t, err)
			assert.Equal(t, tt.code, qerrors.GetError(err).Code, err.Error())

			tables, err := cat.ListTables("")
			require.NoError(t, err)
			assert.Empty(t, tables, "failed definitions are not registered")
		})
	}
}

func TestMemoryCatalogDropAndList(t *testing.T) {
	cat := NewMemoryCatalog()
	for _, name := range []string{"orders", "customer", "lineitem"} {
		_, err := cat.CreateTable(&TableSchema{TableName: name, Columns: []ColumnDef{{Name: "id"}}})
		require.NoError(t, err)
	}

	tables, err := cat.ListTables("public")
	require.NoError(t, err)
	var names []string
	for _, table := range tables {
		names = append(names, table.TableName)
	}
	assert.Equal(t, []string{"customer", "lineitem", "orders"}, names)

	require.NoError(t, cat.DropTable("", "lineitem"))
	assert.True(t, qerrors.IsError(cat.DropTable("", "lineitem"), qerrors.UndefinedTable))
	assert.True(t, qerrors.IsError(cat.DropTable("nope", "orders"), qerrors.InvalidSchemaName))

	_, err = cat.ListTables("nope")
	assert.True(t, qerrors.IsError(err, qerrors.InvalidSchemaName))
}

func TestMemoryCatalogConstraintSource(t *testing.T) {
	cat := NewMemoryCatalog()
	_, err := cat.CreateTable(ordersSchema())
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"orderkey"}, {"custkey", "clerk"}}, cat.UniqueConstraints("orders"))
	assert.Equal(t, cat.UniqueConstraints("orders"), cat.UniqueConstraints("public.orders"))
	assert.Nil(t, cat.UniqueConstraints("missing"))

	_, ok := cat.RowCountBound("orders")
	assert.False(t, ok)

	require.NoError(t, cat.SetRowCountBound("", "orders", 1))
	n, ok := cat.RowCountBound("public.orders")
	assert.True(t, ok)
	assert.Equal(t, int64(1), n)

	require.NoError(t, cat.ClearRowCountBound("public", "orders"))
	_, ok = cat.RowCountBound("orders")
	assert.False(t, ok)

	err = cat.SetRowCountBound("", "orders", -5)
	assert.True(t, qerrors.IsError(err, qerrors.InvalidParameterValue))
	err = cat.SetRowCountBound("", "missing", 5)
	assert.True(t, qerrors.IsError(err, qerrors.UndefinedTable))
	err = cat.ClearRowCountBound("", "missing")
	assert.True(t, qerrors.IsError(err, qerrors.UndefinedTable))
}

func TestMemoryCatalogDeclaredBound(t *testing.T) {
	cat := NewMemoryCatalog()
	bound := int64(5)
	_, err := cat.CreateTable(&TableSchema{
		TableName: "region",
		Columns:   []ColumnDef{{Name: "regionkey", DataType: types.Integer}},
		MaxRows:   &bound,
	})
	require.NoError(t, err)

	bound = 100
	n, ok := cat.RowCountBound("region")
	require.True(t, ok)
	assert.Equal(t, int64(5), n, "the definition is copied")
}

func TestMemoryCatalogConcurrentReads(t *testing.T) {
	cat := NewMemoryCatalog()
	_, err := cat.CreateTable(ordersSchema())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cat.UniqueConstraints("orders")
				cat.RowCountBound("orders")
				if j%10 == 0 {
					_ = cat.SetRowCountBound("", "orders", int64(i*100+j))
				}
			}
		}(i)
	}
	wg.Wait()

	_, ok := cat.RowCountBound("orders")
	assert.True(t, ok)
}
