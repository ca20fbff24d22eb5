package planner

import (
	"fmt"
	"math"
	"strconv"
)

// ConstraintSource supplies declared per-table facts. Implementations must be
// safe to query repeatedly and should answer from memory.
type ConstraintSource interface {
	// UniqueConstraints returns the declared unique and primary-key column
	// combinations of table, by table column name.
	UniqueConstraints(table string) [][]string
	// RowCountBound returns a declared upper bound on the table's row count.
	RowCountBound(table string) (int64, bool)
}

type noConstraints struct{}

func (noConstraints) UniqueConstraints(string) [][]string { return nil }
func (noConstraints) RowCountBound(string) (int64, bool)  { return 0, false }

// NoConstraints is a ConstraintSource that knows nothing about any table.
var NoConstraints ConstraintSource = noConstraints{}

// Bound is an optional non-negative upper bound on a row count. The zero value
// is unbounded (unknown).
type Bound struct {
	max   int64
	known bool
}

// Unbounded returns the unknown bound.
func Unbounded() Bound {
	return Bound{}
}

// BoundedBy returns a bound of n rows. Negative values are clamped to zero.
func BoundedBy(n int64) Bound {
	if n < 0 {
		n = 0
	}
	return Bound{max: n, known: true}
}

// Value returns the bound and whether it is known.
func (b Bound) Value() (int64, bool) {
	return b.max, b.known
}

// Known reports whether the bound is finite.
func (b Bound) Known() bool {
	return b.known
}

// AtMost reports whether the bound is known and no greater than n.
func (b Bound) AtMost(n int64) bool {
	return b.known && b.max <= n
}

// Min returns the tighter of two bounds. An unknown bound never tightens.
func (b Bound) Min(other Bound) Bound {
	switch {
	case !b.known:
		return other
	case !other.known:
		return b
	case other.max < b.max:
		return other
	default:
		return b
	}
}

// Times returns the bound on a product of row counts. Overflow yields unknown.
func (b Bound) Times(other Bound) Bound {
	if !b.known || !other.known {
		return Unbounded()
	}
	if b.max != 0 && other.max > math.MaxInt64/b.max {
		return Unbounded()
	}
	return BoundedBy(b.max * other.max)
}

// Plus returns the bound on a sum of row counts. Overflow yields unknown.
func (b Bound) Plus(other Bound) Bound {
	if !b.known || !other.known {
		return Unbounded()
	}
	if b.max > math.MaxInt64-other.max {
		return Unbounded()
	}
	return BoundedBy(b.max + other.max)
}

// AtLeastOne raises a known bound of zero to one.
func (b Bound) AtLeastOne() Bound {
	if b.known && b.max < 1 {
		return BoundedBy(1)
	}
	return b
}

func (b Bound) String() string {
	if !b.known {
		return "unknown"
	}
	return strconv.FormatInt(b.max, 10)
}

// LogicalProperties are facts about a subtree's output that hold for any data.
// Instances are shared through the cache and must not be modified.
type LogicalProperties struct {
	// MaxRows is an upper bound on the number of output rows.
	MaxRows Bound
	// UniqueKeys are column combinations that take distinct values on every
	// output row.
	UniqueKeys KeySet
}

// AtMostOneRow reports whether the subtree provably produces zero or one row.
func (p *LogicalProperties) AtMostOneRow() bool {
	return p.MaxRows.AtMost(1)
}

func (p *LogicalProperties) String() string {
	return fmt.Sprintf("maxrows=%s keys=%s", p.MaxRows, p.UniqueKeys)
}

// newProperties keeps MaxRows <= 1 and the empty key in step with each other.
func newProperties(maxRows Bound, keys KeySet) *LogicalProperties {
	if maxRows.AtMost(1) {
		keys = keys.Add(ColumnSet{})
	} else if keys.HasEmptyKey() {
		maxRows = maxRows.Min(BoundedBy(1))
	}
	return &LogicalProperties{MaxRows: maxRows, UniqueKeys: keys}
}

// PropertyDeriver derives and caches logical properties for the nodes of one
// arena. It is scoped to a single optimization pass and is not safe for
// concurrent use.
type PropertyDeriver struct {
	constraints ConstraintSource
	cache       map[NodeID]*LogicalProperties
}

// NewPropertyDeriver creates a deriver consulting constraints for scans.
func NewPropertyDeriver(constraints ConstraintSource) *PropertyDeriver {
	if constraints == nil {
		constraints = NoConstraints
	}
	return &PropertyDeriver{
		constraints: constraints,
		cache:       make(map[NodeID]*LogicalProperties),
	}
}

// Derive returns the properties of n, computing those of its subtree first.
// It never fails; missing knowledge is reported as an unknown bound or an
// absent key.
func (d *PropertyDeriver) Derive(n LogicalPlan) *LogicalProperties {
	if props, ok := d.cache[n.ID()]; ok {
		return props
	}

	var props *LogicalProperties
	switch node := n.(type) {
	case *LogicalValues:
		props = newProperties(BoundedBy(node.RowCount), KeySet{})
	case *LogicalScan:
		props = d.deriveScan(node)
	case *LogicalFilter:
		props = d.deriveFilter(node)
	case *LogicalProject:
		props = d.deriveProject(node)
	case *LogicalAggregate:
		props = d.deriveAggregate(node)
	case *LogicalJoin:
		props = d.deriveJoin(node)
	case *LogicalSort:
		props = d.Derive(node.Input())
	case *LogicalBoundedSort:
		input := d.Derive(node.Input())
		props = newProperties(input.MaxRows.Min(BoundedBy(node.Limit)), input.UniqueKeys)
	case *LogicalLimit:
		input := d.Derive(node.Input())
		props = newProperties(input.MaxRows.Min(BoundedBy(node.Limit)), input.UniqueKeys)
	default:
		props = newProperties(Unbounded(), KeySet{})
	}

	d.cache[n.ID()] = props
	return props
}

// Cached reports whether properties for id are in the cache.
func (d *PropertyDeriver) Cached(id NodeID) bool {
	_, ok := d.cache[id]
	return ok
}

// Forget drops cached properties for nodes that were replaced by a rewrite.
func (d *PropertyDeriver) Forget(ids ...NodeID) {
	for _, id := range ids {
		delete(d.cache, id)
	}
}

func (d *PropertyDeriver) deriveScan(scan *LogicalScan) *LogicalProperties {
	maxRows := Unbounded()
	if n, ok := d.constraints.RowCountBound(scan.TableName); ok {
		maxRows = BoundedBy(n)
	}

	byName := make(map[string]ColumnID, len(scan.TableColumns))
	for i, name := range scan.TableColumns {
		if _, seen := byName[name]; !seen {
			byName[name] = scan.schema.Columns[i].ID
		}
	}

	var keys KeySet
constraints:
	for _, constraint := range d.constraints.UniqueConstraints(scan.TableName) {
		var key ColumnSet
		for _, name := range constraint {
			id, ok := byName[name]
			if !ok {
				// The scan does not read every key column.
				continue constraints
			}
			key = key.Add(id)
		}
		keys = keys.Add(key)
	}
	return newProperties(maxRows, keys)
}

func (d *PropertyDeriver) deriveFilter(filter *LogicalFilter) *LogicalProperties {
	input := d.Derive(filter.Input())
	for _, conjunct := range Conjuncts(filter.Predicate) {
		if isFalse(conjunct) {
			return newProperties(BoundedBy(0), input.UniqueKeys)
		}
	}
	return newProperties(narrowByPinnedKey(input, constantColumns(filter.Predicate)), input.UniqueKeys)
}

// narrowByPinnedKey tightens the bound of a relation to one row when some key
// has all of its columns fixed to constants.
func narrowByPinnedKey(props *LogicalProperties, pinned ColumnSet) Bound {
	if props.UniqueKeys.ContainsKeyWithin(pinned) {
		return props.MaxRows.Min(BoundedBy(1))
	}
	return props.MaxRows
}

// constantColumns returns the columns that pred equates to a literal or a
// parameter in one of its top-level conjuncts.
func constantColumns(pred Expression) ColumnSet {
	var pinned ColumnSet
	for _, conjunct := range Conjuncts(pred) {
		eq, ok := conjunct.(*BinaryOp)
		if !ok || eq.Operator != OpEqual {
			continue
		}
		if ref, ok := eq.Left.(*ColumnRef); ok && isConstant(eq.Right) {
			pinned = pinned.Add(ref.ID)
		}
		if ref, ok := eq.Right.(*ColumnRef); ok && isConstant(eq.Left) {
			pinned = pinned.Add(ref.ID)
		}
	}
	return pinned
}

func (d *PropertyDeriver) deriveProject(project *LogicalProject) *LogicalProperties {
	input := d.Derive(project.Input())

	// First output column forwarding each input column unchanged.
	renamed := make(map[ColumnID]ColumnID, len(project.Items))
	for _, item := range project.Items {
		if src, ok := item.passthrough(); ok {
			if _, seen := renamed[src]; !seen {
				renamed[src] = item.Column.ID
			}
		}
	}

	var keys KeySet
	for _, key := range input.UniqueKeys.Keys() {
		var out ColumnSet
		survives := true
		key.ForEach(func(col ColumnID) {
			id, ok := renamed[col]
			if !ok {
				survives = false
				return
			}
			out = out.Add(id)
		})
		if survives {
			keys = keys.Add(out)
		}
	}
	return newProperties(input.MaxRows, keys)
}

func (d *PropertyDeriver) deriveAggregate(agg *LogicalAggregate) *LogicalProperties {
	if len(agg.GroupBy) == 0 {
		return newProperties(BoundedBy(1), KeySet{})
	}

	input := d.Derive(agg.Input())
	grouping := agg.GroupingSet()
	keys := MakeKeySet(grouping)
	for _, key := range input.UniqueKeys.Keys() {
		if key.SubsetOf(grouping) {
			keys = keys.Add(key)
		}
	}
	// There are never more groups than input rows.
	return newProperties(input.MaxRows, keys)
}

func (d *PropertyDeriver) deriveJoin(join *LogicalJoin) *LogicalProperties {
	left := d.Derive(join.Left())
	right := d.Derive(join.Right())
	leftRows, rightRows := left.MaxRows, right.MaxRows

	// Residual predicates narrow a side only where they remove that side's
	// rows; rows of a preserved side survive regardless.
	pinned := constantColumns(join.Filter)
	switch join.JoinType {
	case InnerJoin, CrossJoin, SemiJoin:
		leftRows = narrowByPinnedKey(left, pinned)
		rightRows = narrowByPinnedKey(right, pinned)
	case LeftJoin:
		rightRows = narrowByPinnedKey(right, pinned)
	case RightJoin:
		leftRows = narrowByPinnedKey(left, pinned)
	}

	leftEq, rightEq := join.equalityColumns()
	// Matches per left row and per right row.
	perLeft, perRight := rightRows, leftRows
	if right.UniqueKeys.ContainsKeyWithin(rightEq) {
		perLeft = perLeft.Min(BoundedBy(1))
	}
	if left.UniqueKeys.ContainsKeyWithin(leftEq) {
		perRight = perRight.Min(BoundedBy(1))
	}

	var maxRows Bound
	switch join.JoinType {
	case InnerJoin, CrossJoin:
		maxRows = leftRows.Times(perLeft).Min(rightRows.Times(perRight))
	case LeftJoin:
		maxRows = leftRows.Times(perLeft.AtLeastOne())
	case RightJoin:
		maxRows = rightRows.Times(perRight.AtLeastOne())
	case FullJoin:
		maxRows = leftRows.Times(perLeft.AtLeastOne()).Plus(rightRows)
	case SemiJoin, AntiJoin:
		maxRows = leftRows
	default:
		maxRows = Unbounded()
	}
	return newProperties(maxRows, KeySet{})
}
