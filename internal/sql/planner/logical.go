package planner

import (
	"fmt"
	"strings"
)

// LogicalValues produces a fixed number of literal rows.
type LogicalValues struct {
	basePlan
	RowCount int64
}

func (v *LogicalValues) logicalNode() {}

func (v *LogicalValues) String() string {
	if len(v.schema.Columns) == 0 {
		return fmt.Sprintf("Values(%d rows)", v.RowCount)
	}
	return fmt.Sprintf("Values(%d rows: %s)", v.RowCount, columnNames(v.schema.Columns))
}

// LogicalScan represents a table scan operation. Output column i reads the
// table column TableColumns[i].
type LogicalScan struct {
	basePlan
	TableName    string
	Alias        string
	TableColumns []string
}

func (s *LogicalScan) logicalNode() {}

func (s *LogicalScan) String() string {
	if s.Alias != "" && s.Alias != s.TableName {
		return fmt.Sprintf("Scan(%s AS %s)", s.TableName, s.Alias)
	}
	return fmt.Sprintf("Scan(%s)", s.TableName)
}

// LogicalFilter represents a filter operation.
type LogicalFilter struct {
	basePlan
	Predicate Expression
}

func (f *LogicalFilter) logicalNode() {}

// Input returns the filtered plan.
func (f *LogicalFilter) Input() LogicalPlan { return f.children[0] }

func (f *LogicalFilter) String() string {
	return fmt.Sprintf("Filter(%s)", f.Predicate.String())
}

// ProjectItem defines one output column of a projection.
type ProjectItem struct {
	Column Column
	Expr   Expression
}

// passthrough returns the source column when the item forwards it unchanged.
func (p ProjectItem) passthrough() (ColumnID, bool) {
	ref, ok := p.Expr.(*ColumnRef)
	if !ok {
		return 0, false
	}
	return ref.ID, true
}

// LogicalProject represents a projection operation.
type LogicalProject struct {
	basePlan
	Items []ProjectItem
}

func (p *LogicalProject) logicalNode() {}

// Input returns the projected plan.
func (p *LogicalProject) Input() LogicalPlan { return p.children[0] }

func (p *LogicalProject) String() string {
	var projStrs []string
	for _, item := range p.Items {
		str := item.Expr.String()
		if str != item.Column.Name {
			str += " AS " + item.Column.Name
		}
		projStrs = append(projStrs, str)
	}
	return fmt.Sprintf("Project(%s)", strings.Join(projStrs, ", "))
}

// AggregateItem defines one aggregate output column.
type AggregateItem struct {
	Column Column
	Expr   *AggregateExpr
}

// LogicalAggregate represents an aggregation operation. An empty GroupBy is a
// global aggregation that always yields exactly one row.
type LogicalAggregate struct {
	basePlan
	GroupBy    []Column
	Aggregates []AggregateItem
}

func (a *LogicalAggregate) logicalNode() {}

// Input returns the aggregated plan.
func (a *LogicalAggregate) Input() LogicalPlan { return a.children[0] }

// GroupingSet returns the grouping columns as a set.
func (a *LogicalAggregate) GroupingSet() ColumnSet {
	var set ColumnSet
	for _, c := range a.GroupBy {
		set = set.Add(c.ID)
	}
	return set
}

func (a *LogicalAggregate) String() string {
	var parts []string

	if len(a.GroupBy) > 0 {
		parts = append(parts, "GROUP BY "+columnNames(a.GroupBy))
	}

	if len(a.Aggregates) > 0 {
		var aggStrs []string
		for _, agg := range a.Aggregates {
			aggStrs = append(aggStrs, agg.Expr.String()+" AS "+agg.Column.Name)
		}
		parts = append(parts, strings.Join(aggStrs, ", "))
	}

	return fmt.Sprintf("Aggregate(%s)", strings.Join(parts, " "))
}

// JoinEquality is an equi-join condition between a left and a right column.
type JoinEquality struct {
	Left  Column
	Right Column
}

func (e JoinEquality) String() string {
	return fmt.Sprintf("%s = %s", e.Left.QualifiedName(), e.Right.QualifiedName())
}

// LogicalJoin represents a join operation. Conditions are the equi-join
// columns; Filter is an optional residual ON predicate.
type LogicalJoin struct {
	basePlan
	JoinType   JoinType
	Conditions []JoinEquality
	Filter     Expression
}

func (j *LogicalJoin) logicalNode() {}

// Left returns the left input.
func (j *LogicalJoin) Left() LogicalPlan { return j.children[0] }

// Right returns the right input.
func (j *LogicalJoin) Right() LogicalPlan { return j.children[1] }

func (j *LogicalJoin) equalityColumns() (left, right ColumnSet) {
	for _, c := range j.Conditions {
		left = left.Add(c.Left.ID)
		right = right.Add(c.Right.ID)
	}
	return left, right
}

func (j *LogicalJoin) String() string {
	var conds []string
	for _, c := range j.Conditions {
		conds = append(conds, c.String())
	}
	if j.Filter != nil {
		conds = append(conds, j.Filter.String())
	}
	return fmt.Sprintf("%sJoin(%s)", j.JoinType.String(), strings.Join(conds, " AND "))
}

// LogicalSort represents a full sort operation.
type LogicalSort struct {
	basePlan
	OrderBy []OrderByColumn
}

func (s *LogicalSort) logicalNode() {}

// Input returns the sorted plan.
func (s *LogicalSort) Input() LogicalPlan { return s.children[0] }

func (s *LogicalSort) String() string {
	return fmt.Sprintf("Sort(%s)", orderingString(s.OrderBy))
}

// LogicalBoundedSort returns the first Limit rows of a sort order (top-N)
// without materializing the full sorted input.
type LogicalBoundedSort struct {
	basePlan
	OrderBy []OrderByColumn
	Limit   int64
}

func (s *LogicalBoundedSort) logicalNode() {}

// Input returns the sorted plan.
func (s *LogicalBoundedSort) Input() LogicalPlan { return s.children[0] }

func (s *LogicalBoundedSort) String() string {
	return fmt.Sprintf("BoundedSort(%d; %s)", s.Limit, orderingString(s.OrderBy))
}

// LogicalLimit represents a limit operation.
type LogicalLimit struct {
	basePlan
	Limit int64
}

func (l *LogicalLimit) logicalNode() {}

// Input returns the limited plan.
func (l *LogicalLimit) Input() LogicalPlan { return l.children[0] }

func (l *LogicalLimit) String() string {
	return fmt.Sprintf("Limit(%d)", l.Limit)
}

func orderingString(order []OrderByColumn) string {
	var orderStrs []string
	for _, o := range order {
		orderStrs = append(orderStrs, o.String())
	}
	return strings.Join(orderStrs, ", ")
}

func columnNames(cols []Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}
