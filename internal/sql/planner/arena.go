package planner

import (
	"fmt"

	"github.com/dshills/QuantaOpt/internal/sql/types"
)

// Arena owns the nodes and columns of one plan. Nodes are registered once and
// never mutated; rewrites build new nodes through the same arena. An Arena is
// not safe for concurrent use.
type Arena struct {
	nodes   []LogicalPlan
	columns []Column
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// NewColumn allocates a fresh column ID.
func (a *Arena) NewColumn(name string, dataType types.DataType) Column {
	return a.NewTableColumn("", name, dataType)
}

// NewTableColumn allocates a fresh column ID for a column read from table.
func (a *Arena) NewTableColumn(table, name string, dataType types.DataType) Column {
	if dataType == nil {
		dataType = types.Unknown
	}
	col := Column{
		ID:       ColumnID(len(a.columns) + 1),
		Name:     name,
		DataType: dataType,
		Table:    table,
	}
	a.columns = append(a.columns, col)
	return col
}

// Column returns the column with the given ID.
func (a *Arena) Column(id ColumnID) (Column, bool) {
	if id < 1 || int(id) > len(a.columns) {
		return Column{}, false
	}
	return a.columns[id-1], true
}

// Node returns the node with the given ID, or nil.
func (a *Arena) Node(id NodeID) LogicalPlan {
	if id < 1 || int(id) > len(a.nodes) {
		return nil
	}
	return a.nodes[id-1]
}

// Len returns the number of nodes ever registered.
func (a *Arena) Len() int {
	return len(a.nodes)
}

func (a *Arena) register(children []LogicalPlan, schema *Schema) basePlan {
	return basePlan{
		id:       NodeID(len(a.nodes) + 1),
		children: children,
		schema:   schema,
	}
}

func (a *Arena) add(n LogicalPlan) {
	a.nodes = append(a.nodes, n)
}

// NewValues creates a node producing rowCount literal rows.
func (a *Arena) NewValues(rowCount int64, columns []Column) *LogicalValues {
	v := &LogicalValues{
		basePlan: a.register(nil, &Schema{Columns: columns}),
		RowCount: rowCount,
	}
	a.add(v)
	return v
}

// NewScan creates a scan of table producing columns. Each column's Name is the
// table column it reads.
func (a *Arena) NewScan(tableName, alias string, columns []Column) *LogicalScan {
	tableColumns := make([]string, len(columns))
	for i, c := range columns {
		tableColumns[i] = c.Name
	}
	s := &LogicalScan{
		basePlan:     a.register(nil, &Schema{Columns: columns}),
		TableName:    tableName,
		Alias:        alias,
		TableColumns: tableColumns,
	}
	a.add(s)
	return s
}

// NewFilter creates a filter node.
func (a *Arena) NewFilter(child LogicalPlan, predicate Expression) *LogicalFilter {
	f := &LogicalFilter{
		basePlan:  a.register([]LogicalPlan{child}, child.Schema()),
		Predicate: predicate,
	}
	a.add(f)
	return f
}

// NewProject creates a projection node.
func (a *Arena) NewProject(child LogicalPlan, items []ProjectItem) *LogicalProject {
	schema := &Schema{Columns: make([]Column, len(items))}
	for i, item := range items {
		schema.Columns[i] = item.Column
	}
	p := &LogicalProject{
		basePlan: a.register([]LogicalPlan{child}, schema),
		Items:    items,
	}
	a.add(p)
	return p
}

// NewAggregate creates an aggregation node. The output schema is the grouping
// columns followed by the aggregate columns.
func (a *Arena) NewAggregate(child LogicalPlan, groupBy []Column, aggregates []AggregateItem) *LogicalAggregate {
	schema := &Schema{Columns: make([]Column, 0, len(groupBy)+len(aggregates))}
	schema.Columns = append(schema.Columns, groupBy...)
	for _, agg := range aggregates {
		schema.Columns = append(schema.Columns, agg.Column)
	}
	agg := &LogicalAggregate{
		basePlan:   a.register([]LogicalPlan{child}, schema),
		GroupBy:    groupBy,
		Aggregates: aggregates,
	}
	a.add(agg)
	return agg
}

// NewJoin creates a join node. Semi and anti joins only output left columns.
func (a *Arena) NewJoin(left, right LogicalPlan, joinType JoinType, conditions []JoinEquality, filter Expression) *LogicalJoin {
	schema := &Schema{}
	schema.Columns = append(schema.Columns, left.Schema().Columns...)
	if joinType != SemiJoin && joinType != AntiJoin {
		schema.Columns = append(schema.Columns, right.Schema().Columns...)
	}
	j := &LogicalJoin{
		basePlan:   a.register([]LogicalPlan{left, right}, schema),
		JoinType:   joinType,
		Conditions: conditions,
		Filter:     filter,
	}
	a.add(j)
	return j
}

// NewSort creates a sort node.
func (a *Arena) NewSort(child LogicalPlan, orderBy []OrderByColumn) *LogicalSort {
	s := &LogicalSort{
		basePlan: a.register([]LogicalPlan{child}, child.Schema()),
		OrderBy:  orderBy,
	}
	a.add(s)
	return s
}

// NewBoundedSort creates a top-N node.
func (a *Arena) NewBoundedSort(child LogicalPlan, orderBy []OrderByColumn, limit int64) *LogicalBoundedSort {
	s := &LogicalBoundedSort{
		basePlan: a.register([]LogicalPlan{child}, child.Schema()),
		OrderBy:  orderBy,
		Limit:    limit,
	}
	a.add(s)
	return s
}

// NewLimit creates a limit node.
func (a *Arena) NewLimit(child LogicalPlan, limit int64) *LogicalLimit {
	l := &LogicalLimit{
		basePlan: a.register([]LogicalPlan{child}, child.Schema()),
		Limit:    limit,
	}
	a.add(l)
	return l
}

// WithChildren returns a copy of n, under a new ID, whose children are
// replaced. The node's own parameters are kept.
func (a *Arena) WithChildren(n LogicalPlan, children ...LogicalPlan) LogicalPlan {
	if len(children) != len(n.Children()) {
		panic(fmt.Sprintf("%s: expected %d children, got %d", n.String(), len(n.Children()), len(children)))
	}

	switch node := n.(type) {
	case *LogicalValues, *LogicalScan:
		return n
	case *LogicalFilter:
		return a.NewFilter(children[0], node.Predicate)
	case *LogicalProject:
		return a.NewProject(children[0], node.Items)
	case *LogicalAggregate:
		return a.NewAggregate(children[0], node.GroupBy, node.Aggregates)
	case *LogicalJoin:
		return a.NewJoin(children[0], children[1], node.JoinType, node.Conditions, node.Filter)
	case *LogicalSort:
		return a.NewSort(children[0], node.OrderBy)
	case *LogicalBoundedSort:
		return a.NewBoundedSort(children[0], node.OrderBy, node.Limit)
	case *LogicalLimit:
		return a.NewLimit(children[0], node.Limit)
	default:
		panic(fmt.Sprintf("unhandled plan node %T", n))
	}
}
