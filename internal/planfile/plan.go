// Package planfile decodes logical plans and table definitions from YAML.
//
// A plan is a tree of nodes, each naming its operator in "op":
//
//	op: limit
//	limit: 10
//	input:
//	  op: sort
//	  order_by: [totalprice desc]
//	  input:
//	    op: filter
//	    where:
//	      - {column: orderkey, value: 10}
//	    input:
//	      op: scan
//	      table: orders
//
// Columns are referenced by name, or by alias.name when a name is ambiguous.
package planfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/QuantaOpt/internal/catalog"
	qerrors "github.com/dshills/QuantaOpt/internal/errors"
	"github.com/dshills/QuantaOpt/internal/sql/planner"
	"github.com/dshills/QuantaOpt/internal/sql/types"
)

// Node is the YAML form of one plan operator. Which fields apply depends on Op.
type Node struct {
	Op string `yaml:"op"`

	// scan
	Table string `yaml:"table"`
	Alias string `yaml:"alias"`

	// scan, values
	Columns []string `yaml:"columns"`
	Rows    int64    `yaml:"rows"`

	// filter, join
	Where []Predicate `yaml:"where"`

	// project
	Items []Item `yaml:"items"`

	// aggregate
	GroupBy    []string `yaml:"group_by"`
	Aggregates []Item   `yaml:"aggregates"`

	// join
	Type  string   `yaml:"type"`
	On    []JoinOn `yaml:"on"`
	Left  *Node    `yaml:"left"`
	Right *Node    `yaml:"right"`

	// sort, topn
	OrderBy []string `yaml:"order_by"`

	// topn, limit
	Limit *int64 `yaml:"limit"`

	Input *Node `yaml:"input"`
}

// Predicate is one conjunct of a filter. With a Column it compares the
// column to exactly one of Value, Param, Other or NULL. Without a Column it
// is the constant Value.
type Predicate struct {
	Column string `yaml:"column"`
	Op     string `yaml:"op"`
	Value  any    `yaml:"value"`
	Param  int    `yaml:"param"`
	Other  string `yaml:"other"`
	Null   bool   `yaml:"null"`
}

// Item is one output of a projection or aggregation.
type Item struct {
	Column   string   `yaml:"column"`
	As       string   `yaml:"as"`
	Func     string   `yaml:"func"`
	Args     []string `yaml:"args"`
	Distinct bool     `yaml:"distinct"`
}

// JoinOn is one equi-join condition.
type JoinOn struct {
	Left  string `yaml:"left"`
	Right string `yaml:"right"`
}

// Decoder builds plans from YAML into an arena. Scan columns and types are
// taken from the catalog when the table is defined there.
type Decoder struct {
	arena   *planner.Arena
	catalog catalog.Catalog
}

// NewDecoder creates a decoder. cat may be nil, in which case every scan must
// list its columns.
func NewDecoder(arena *planner.Arena, cat catalog.Catalog) *Decoder {
	return &Decoder{arena: arena, catalog: cat}
}

// Decode parses one plan document.
func (d *Decoder) Decode(data []byte) (planner.LogicalPlan, error) {
	var root Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&root); err != nil {
		if isEOF(err) {
			return nil, qerrors.MalformedPlanError("plan", "empty plan")
		}
		return nil, qerrors.Wrap(err, qerrors.SyntaxError, "invalid plan file")
	}
	return d.Build(&root)
}

// DecodePlan parses a plan document into a fresh arena.
func DecodePlan(data []byte, cat catalog.Catalog) (*planner.Arena, planner.LogicalPlan, error) {
	arena := planner.NewArena()
	plan, err := NewDecoder(arena, cat).Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return arena, plan, nil
}

// LoadPlan reads and decodes a plan file into a fresh arena.
func LoadPlan(path string, cat catalog.Catalog) (*planner.Arena, planner.LogicalPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, qerrors.Wrap(err, qerrors.UndefinedObject, "cannot read plan file").
			WithWhere(path)
	}
	return DecodePlan(data, cat)
}

// Build converts a decoded node tree into plan nodes, children first.
func (d *Decoder) Build(n *Node) (planner.LogicalPlan, error) {
	return d.build(n, "plan")
}

func (d *Decoder) build(n *Node, where string) (planner.LogicalPlan, error) {
	if n == nil {
		return nil, qerrors.MalformedPlanError(where, "missing node")
	}
	op := strings.ToLower(n.Op)
	where = where + "/" + op

	switch op {
	case "values":
		return d.buildValues(n, where)
	case "scan":
		return d.buildScan(n, where)
	case "join":
		return d.buildJoin(n, where)
	case "filter", "project", "aggregate", "sort", "topn", "limit":
	default:
		return nil, qerrors.UnknownOperatorError(n.Op).WithWhere(where)
	}

	input, err := d.build(n.Input, where)
	if err != nil {
		return nil, err
	}

	switch op {
	case "filter":
		pred, err := d.predicate(n.Where, input.Schema().Columns, where)
		if err != nil {
			return nil, err
		}
		if pred == nil {
			return nil, qerrors.MalformedPlanError(where, "filter needs at least one predicate")
		}
		return d.arena.NewFilter(input, pred), nil
	case "project":
		return d.buildProject(n, input, where)
	case "aggregate":
		return d.buildAggregate(n, input, where)
	case "sort":
		order, err := d.ordering(n.OrderBy, input.Schema().Columns, where)
		if err != nil {
			return nil, err
		}
		return d.arena.NewSort(input, order), nil
	case "topn":
		order, err := d.ordering(n.OrderBy, input.Schema().Columns, where)
		if err != nil {
			return nil, err
		}
		limit, err := limitOf(n, where)
		if err != nil {
			return nil, err
		}
		return d.arena.NewBoundedSort(input, order, limit), nil
	default:
		limit, err := limitOf(n, where)
		if err != nil {
			return nil, err
		}
		return d.arena.NewLimit(input, limit), nil
	}
}

func limitOf(n *Node, where string) (int64, error) {
	if n.Limit == nil {
		return 0, qerrors.MalformedPlanError(where, "limit is required")
	}
	if *n.Limit < 0 {
		return 0, qerrors.InvalidParameterValueError("limit", fmt.Sprint(*n.Limit), "limit must not be negative").
			WithWhere(where)
	}
	return *n.Limit, nil
}

func (d *Decoder) buildValues(n *Node, where string) (planner.LogicalPlan, error) {
	if n.Rows < 0 {
		return nil, qerrors.InvalidParameterValueError("rows", fmt.Sprint(n.Rows), "row count must not be negative").
			WithWhere(where)
	}
	cols := make([]planner.Column, len(n.Columns))
	for i, name := range n.Columns {
		cols[i] = d.arena.NewColumn(name, types.Unknown)
	}
	return d.arena.NewValues(n.Rows, cols), nil
}

func (d *Decoder) buildScan(n *Node, where string) (planner.LogicalPlan, error) {
	if n.Table == "" {
		return nil, qerrors.MalformedPlanError(where, "scan needs a table")
	}
	qualifier := n.Alias
	if qualifier == "" {
		qualifier = n.Table
	}

	var table *catalog.Table
	if d.catalog != nil {
		if i := strings.LastIndexByte(n.Table, '.'); i >= 0 {
			table, _ = d.catalog.GetTable(n.Table[:i], n.Table[i+1:])
		} else {
			table, _ = d.catalog.GetTable("", n.Table)
		}
	}

	names := n.Columns
	if len(names) == 0 {
		if table == nil {
			return nil, qerrors.UndefinedTableError(n.Table).
				WithHint("Define the table in the catalog or list the scanned columns.").
				WithWhere(where)
		}
		for _, col := range table.Columns {
			names = append(names, col.Name)
		}
	}

	cols := make([]planner.Column, len(names))
	for i, name := range names {
		dataType := types.Unknown
		if table != nil {
			col := table.Column(name)
			if col == nil {
				return nil, qerrors.ColumnNotFoundError(name, n.Table).WithWhere(where)
			}
			dataType = col.DataType
		}
		cols[i] = d.arena.NewTableColumn(qualifier, name, dataType)
	}
	return d.arena.NewScan(n.Table, n.Alias, cols), nil
}

func (d *Decoder) buildProject(n *Node, input planner.LogicalPlan, where string) (planner.LogicalPlan, error) {
	if len(n.Items) == 0 {
		return nil, qerrors.MalformedPlanError(where, "project needs at least one item")
	}
	scope := input.Schema().Columns
	items := make([]planner.ProjectItem, 0, len(n.Items))
	for _, item := range n.Items {
		if item.Func == "" {
			src, err := resolve(item.Column, scope, where)
			if err != nil {
				return nil, err
			}
			name := item.As
			if name == "" {
				name = src.Name
			}
			items = append(items, planner.ProjectItem{
				Column: d.arena.NewColumn(name, src.DataType),
				Expr:   planner.NewColumnRef(src),
			})
			continue
		}

		args, err := columnRefs(item.Args, scope, where)
		if err != nil {
			return nil, err
		}
		name := item.As
		if name == "" {
			name = strings.ToLower(item.Func)
		}
		items = append(items, planner.ProjectItem{
			Column: d.arena.NewColumn(name, types.Unknown),
			Expr:   &planner.FunctionCall{Name: strings.ToUpper(item.Func), Args: args, Type: types.Unknown},
		})
	}
	return d.arena.NewProject(input, items), nil
}

func (d *Decoder) buildAggregate(n *Node, input planner.LogicalPlan, where string) (planner.LogicalPlan, error) {
	scope := input.Schema().Columns
	groupBy := make([]planner.Column, 0, len(n.GroupBy))
	for _, name := range n.GroupBy {
		col, err := resolve(name, scope, where)
		if err != nil {
			return nil, err
		}
		groupBy = append(groupBy, col)
	}

	aggs := make([]planner.AggregateItem, 0, len(n.Aggregates))
	for _, item := range n.Aggregates {
		fn, ok := planner.ParseAggregateFunc(item.Func)
		if !ok {
			return nil, qerrors.MalformedPlanError(where, fmt.Sprintf("unknown aggregate function %q", item.Func))
		}
		args, err := columnRefs(item.Args, scope, where)
		if err != nil {
			return nil, err
		}
		dataType := types.Unknown
		switch fn {
		case planner.AggCount:
			dataType = types.BigInt
		case planner.AggMin, planner.AggMax:
			if len(args) == 1 {
				dataType = args[0].DataType()
			}
		}
		name := item.As
		if name == "" {
			name = strings.ToLower(fn.String())
		}
		aggs = append(aggs, planner.AggregateItem{
			Column: d.arena.NewColumn(name, dataType),
			Expr:   &planner.AggregateExpr{Function: fn, Args: args, Distinct: item.Distinct, Type: dataType},
		})
	}
	return d.arena.NewAggregate(input, groupBy, aggs), nil
}

var joinTypes = map[string]planner.JoinType{
	"":      planner.InnerJoin,
	"inner": planner.InnerJoin,
	"left":  planner.LeftJoin,
	"right": planner.RightJoin,
	"full":  planner.FullJoin,
	"cross": planner.CrossJoin,
	"semi":  planner.SemiJoin,
	"anti":  planner.AntiJoin,
}

func (d *Decoder) buildJoin(n *Node, where string) (planner.LogicalPlan, error) {
	joinType, ok := joinTypes[strings.ToLower(n.Type)]
	if !ok {
		return nil, qerrors.MalformedPlanError(where, fmt.Sprintf("unknown join type %q", n.Type))
	}
	left, err := d.build(n.Left, where+"/left")
	if err != nil {
		return nil, err
	}
	right, err := d.build(n.Right, where+"/right")
	if err != nil {
		return nil, err
	}

	conds := make([]planner.JoinEquality, 0, len(n.On))
	for _, on := range n.On {
		l, err := resolve(on.Left, left.Schema().Columns, where)
		if err != nil {
			return nil, err
		}
		r, err := resolve(on.Right, right.Schema().Columns, where)
		if err != nil {
			return nil, err
		}
		conds = append(conds, planner.JoinEquality{Left: l, Right: r})
	}

	scope := append(append([]planner.Column(nil), left.Schema().Columns...), right.Schema().Columns...)
	filter, err := d.predicate(n.Where, scope, where)
	if err != nil {
		return nil, err
	}
	return d.arena.NewJoin(left, right, joinType, conds, filter), nil
}

// predicate combines the conjuncts of where. It returns nil for none.
func (d *Decoder) predicate(preds []Predicate, scope []planner.Column, where string) (planner.Expression, error) {
	conjuncts := make([]planner.Expression, 0, len(preds))
	for _, p := range preds {
		expr, err := d.conjunct(p, scope, where)
		if err != nil {
			return nil, err
		}
		conjuncts = append(conjuncts, expr)
	}
	return planner.And(conjuncts...), nil
}

func (d *Decoder) conjunct(p Predicate, scope []planner.Column, where string) (planner.Expression, error) {
	if p.Column == "" {
		switch {
		case p.Null:
			return planner.NewLiteral(types.NewNullValue()), nil
		case p.Value != nil:
			return literal(p.Value, where)
		default:
			return nil, qerrors.MalformedPlanError(where, "predicate needs a column or a value")
		}
	}

	col, err := resolve(p.Column, scope, where)
	if err != nil {
		return nil, err
	}

	op := planner.OpEqual
	if p.Op != "" {
		parsed, ok := planner.ParseBinaryOperator(p.Op)
		if !ok {
			return nil, qerrors.MalformedPlanError(where, fmt.Sprintf("unknown operator %q", p.Op))
		}
		op = parsed
	}

	var rhs planner.Expression
	set := 0
	if p.Param > 0 {
		rhs = &planner.ParameterRef{Index: p.Param, Type: col.DataType}
		set++
	}
	if p.Other != "" {
		other, err := resolve(p.Other, scope, where)
		if err != nil {
			return nil, err
		}
		rhs = planner.NewColumnRef(other)
		set++
	}
	if p.Null {
		rhs = planner.NewLiteral(types.NewNullValue())
		set++
	}
	if p.Value != nil {
		lit, err := literal(p.Value, where)
		if err != nil {
			return nil, err
		}
		rhs = lit
		set++
	}
	if set != 1 {
		return nil, qerrors.MalformedPlanError(where,
			fmt.Sprintf("predicate on %q needs exactly one of value, param, other or null", p.Column))
	}
	return &planner.BinaryOp{Left: planner.NewColumnRef(col), Right: rhs, Operator: op, Type: types.Boolean}, nil
}

func literal(v any, where string) (*planner.Literal, error) {
	switch v := v.(type) {
	case int:
		return planner.NewLiteral(types.NewBigIntValue(int64(v))), nil
	case int64:
		return planner.NewLiteral(types.NewBigIntValue(v)), nil
	case float64:
		return planner.NewLiteral(types.NewDoubleValue(v)), nil
	case string:
		return planner.NewLiteral(types.NewTextValue(v)), nil
	case bool:
		return planner.NewLiteral(types.NewBooleanValue(v)), nil
	default:
		return nil, qerrors.MalformedPlanError(where, fmt.Sprintf("unsupported literal %v", v))
	}
}

func (d *Decoder) ordering(keys []string, scope []planner.Column, where string) ([]planner.OrderByColumn, error) {
	if len(keys) == 0 {
		return nil, qerrors.MalformedPlanError(where, "order_by needs at least one column")
	}
	order := make([]planner.OrderByColumn, 0, len(keys))
	for _, key := range keys {
		fields := strings.Fields(key)
		if len(fields) == 0 || len(fields) > 2 {
			return nil, qerrors.MalformedPlanError(where, fmt.Sprintf("invalid sort key %q", key))
		}
		col, err := resolve(fields[0], scope, where)
		if err != nil {
			return nil, err
		}
		dir := planner.Ascending
		if len(fields) == 2 {
			switch strings.ToUpper(fields[1]) {
			case "ASC":
			case "DESC":
				dir = planner.Descending
			default:
				return nil, qerrors.MalformedPlanError(where, fmt.Sprintf("invalid sort direction %q", fields[1]))
			}
		}
		order = append(order, planner.OrderByColumn{Column: col, Order: dir})
	}
	return order, nil
}

func columnRefs(names []string, scope []planner.Column, where string) ([]planner.Expression, error) {
	refs := make([]planner.Expression, 0, len(names))
	for _, name := range names {
		if name == "*" {
			continue
		}
		col, err := resolve(name, scope, where)
		if err != nil {
			return nil, err
		}
		refs = append(refs, planner.NewColumnRef(col))
	}
	return refs, nil
}

// resolve finds the column called name, or qualifier.name, in scope.
func resolve(name string, scope []planner.Column, where string) (planner.Column, error) {
	var found []planner.Column
	for _, col := range scope {
		if col.Name == name || (col.Table != "" && col.QualifiedName() == name) {
			found = append(found, col)
		}
	}
	switch len(found) {
	case 0:
		return planner.Column{}, qerrors.ColumnNotFoundError(name, "").WithWhere(where)
	case 1:
		return found[0], nil
	default:
		return planner.Column{}, qerrors.AmbiguousColumnError(name).WithWhere(where)
	}
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
