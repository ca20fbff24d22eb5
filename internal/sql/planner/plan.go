package planner

import (
	"fmt"

	"github.com/dshills/QuantaOpt/internal/sql/types"
)

// NodeID identifies a plan node inside its Arena. IDs are never reused, so a
// rewritten subtree always gets fresh IDs.
type NodeID int32

// ColumnID identifies a column within the scope of one Arena.
type ColumnID int32

// LogicalPlan represents a node in a logical query plan. Implementations are
// immutable once constructed by an Arena.
type LogicalPlan interface {
	// ID returns the arena identity of this node.
	ID() NodeID
	// Children returns the child plans.
	Children() []LogicalPlan
	// Schema returns the output schema of this plan node.
	Schema() *Schema
	// String returns a string representation of this node alone.
	String() string
	logicalNode()
}

// Schema represents the output schema of a plan node.
type Schema struct {
	Columns []Column
}

// Column represents a column in a schema.
type Column struct {
	ID       ColumnID
	Name     string
	DataType types.DataType
	Table    string // Table name or alias the column was read from, if any
}

func (c Column) String() string {
	return c.Name
}

// QualifiedName returns table.name when the column came from a table.
func (c Column) QualifiedName() string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "." + c.Name
}

// Find returns the column with the given ID.
func (s *Schema) Find(id ColumnID) (Column, bool) {
	if s == nil {
		return Column{}, false
	}
	for _, c := range s.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnSet returns the IDs of all columns in the schema.
func (s *Schema) ColumnSet() ColumnSet {
	var set ColumnSet
	if s == nil {
		return set
	}
	for _, c := range s.Columns {
		set = set.Add(c.ID)
	}
	return set
}

// JoinType represents the type of join.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	FullJoin
	CrossJoin
	SemiJoin
	AntiJoin
)

func (j JoinType) String() string {
	switch j {
	case InnerJoin:
		return "INNER"
	case LeftJoin:
		return "LEFT"
	case RightJoin:
		return "RIGHT"
	case FullJoin:
		return "FULL"
	case CrossJoin:
		return "CROSS"
	case SemiJoin:
		return "SEMI"
	case AntiJoin:
		return "ANTI"
	default:
		return fmt.Sprintf("Unknown(%d)", j)
	}
}

// SortOrder represents the sort order.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

func (s SortOrder) String() string {
	if s == Descending {
		return "DESC"
	}
	return "ASC"
}

// OrderByColumn is one key of a sort ordering.
type OrderByColumn struct {
	Column Column
	Order  SortOrder
}

func (o OrderByColumn) String() string {
	return fmt.Sprintf("%s %s", o.Column.Name, o.Order.String())
}

// basePlan provides common functionality for plan nodes.
type basePlan struct {
	id       NodeID
	children []LogicalPlan
	schema   *Schema
}

func (p *basePlan) ID() NodeID {
	return p.id
}

func (p *basePlan) Children() []LogicalPlan {
	return p.children
}

func (p *basePlan) Schema() *Schema {
	return p.schema
}
