package planner

import (
	"testing"

	"github.com/dshills/QuantaOpt/internal/sql/types"
)

// testConstraints is a map-backed ConstraintSource.
type testConstraints struct {
	keys   map[string][][]string
	bounds map[string]int64
}

func (c testConstraints) UniqueConstraints(table string) [][]string {
	return c.keys[table]
}

func (c testConstraints) RowCountBound(table string) (int64, bool) {
	n, ok := c.bounds[table]
	return n, ok
}

// tpch declares the keys of the orders and customer tables.
var tpch = testConstraints{
	keys: map[string][][]string{
		"orders":   {{"orderkey"}},
		"customer": {{"custkey"}},
		"lineitem": {{"orderkey", "linenumber"}},
	},
	bounds: map[string]int64{
		"region": 5,
		"config": 1,
	},
}

func scanOf(a *Arena, table string, cols ...string) *LogicalScan {
	columns := make([]Column, len(cols))
	for i, name := range cols {
		columns[i] = a.NewTableColumn(table, name, types.BigInt)
	}
	return a.NewScan(table, "", columns)
}

func valuesOf(a *Arena, rows int64, cols ...string) *LogicalValues {
	columns := make([]Column, len(cols))
	for i, name := range cols {
		columns[i] = a.NewColumn(name, types.BigInt)
	}
	return a.NewValues(rows, columns)
}

func colOf(t *testing.T, p LogicalPlan, name string) Column {
	t.Helper()
	for _, c := range p.Schema().Columns {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("column %q not found in %s", name, p.String())
	return Column{}
}

func refOf(t *testing.T, p LogicalPlan, name string) *ColumnRef {
	t.Helper()
	return NewColumnRef(colOf(t, p, name))
}

func intLit(n int64) *Literal {
	return NewLiteral(types.NewBigIntValue(n))
}

func boolLit(b bool) *Literal {
	return NewLiteral(types.NewBooleanValue(b))
}

func nullLit() *Literal {
	return NewLiteral(types.NewNullValue())
}

func cmpOp(op BinaryOperator, left, right Expression) *BinaryOp {
	return &BinaryOp{Left: left, Right: right, Operator: op, Type: types.Boolean}
}

func ascending(cols ...Column) []OrderByColumn {
	order := make([]OrderByColumn, len(cols))
	for i, c := range cols {
		order[i] = OrderByColumn{Column: c, Order: Ascending}
	}
	return order
}

func countOf(a *Arena, name string, args ...Expression) AggregateItem {
	return AggregateItem{
		Column: a.NewColumn(name, types.BigInt),
		Expr:   &AggregateExpr{Function: AggCount, Args: args, Type: types.BigInt},
	}
}
