package planner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBound(t *testing.T) {
	assert.Equal(t, "unknown", Unbounded().String())
	assert.Equal(t, "7", BoundedBy(7).String())
	assert.Equal(t, "0", BoundedBy(-3).String())

	assert.True(t, BoundedBy(1).AtMost(1))
	assert.False(t, BoundedBy(2).AtMost(1))
	assert.False(t, Unbounded().AtMost(math.MaxInt64))

	assert.Equal(t, BoundedBy(3), BoundedBy(3).Min(Unbounded()))
	assert.Equal(t, BoundedBy(3), Unbounded().Min(BoundedBy(3)))
	assert.Equal(t, BoundedBy(2), BoundedBy(3).Min(BoundedBy(2)))

	assert.Equal(t, BoundedBy(6), BoundedBy(2).Times(BoundedBy(3)))
	assert.Equal(t, BoundedBy(0), BoundedBy(0).Times(BoundedBy(math.MaxInt64)))
	assert.False(t, BoundedBy(math.MaxInt64).Times(BoundedBy(2)).Known())
	assert.False(t, BoundedBy(2).Times(Unbounded()).Known())

	assert.Equal(t, BoundedBy(5), BoundedBy(2).Plus(BoundedBy(3)))
	assert.False(t, BoundedBy(math.MaxInt64).Plus(BoundedBy(1)).Known())

	assert.Equal(t, BoundedBy(1), BoundedBy(0).AtLeastOne())
	assert.Equal(t, BoundedBy(4), BoundedBy(4).AtLeastOne())
	assert.False(t, Unbounded().AtLeastOne().Known())
}

func TestPropertiesAtMostOneRowMatchesEmptyKey(t *testing.T) {
	p := newProperties(BoundedBy(1), MakeKeySet(MakeColumnSet(1)))
	assert.True(t, p.UniqueKeys.HasEmptyKey())
	assert.Equal(t, "maxrows=1 keys={()}", p.String())

	p = newProperties(Unbounded(), MakeKeySet(ColumnSet{}))
	assert.True(t, p.AtMostOneRow())

	p = newProperties(BoundedBy(2), MakeKeySet(MakeColumnSet(1)))
	assert.False(t, p.UniqueKeys.HasEmptyKey())
	assert.Equal(t, "maxrows=2 keys={(1)}", p.String())
}

func TestDeriveValues(t *testing.T) {
	tests := []struct {
		rows int64
		want string
	}{
		{rows: 0, want: "maxrows=0 keys={()}"},
		{rows: 1, want: "maxrows=1 keys={()}"},
		{rows: 20, want: "maxrows=20 keys={}"},
	}
	for _, tt := range tests {
		a := NewArena()
		v := valuesOf(a, tt.rows, "foo")
		assert.Equal(t, tt.want, NewPropertyDeriver(nil).Derive(v).String())
	}
}

func TestDeriveScan(t *testing.T) {
	t.Run("declared key", func(t *testing.T) {
		a := NewArena()
		orders := scanOf(a, "orders", "orderkey", "custkey", "totalprice")
		props := NewPropertyDeriver(tpch).Derive(orders)
		assert.False(t, props.MaxRows.Known())
		assert.Equal(t, "{(1)}", props.UniqueKeys.String())
	})

	t.Run("key column not scanned", func(t *testing.T) {
		a := NewArena()
		orders := scanOf(a, "orders", "custkey", "totalprice")
		props := NewPropertyDeriver(tpch).Derive(orders)
		assert.Equal(t, "maxrows=unknown keys={}", props.String())
	})

	t.Run("composite key in scan order", func(t *testing.T) {
		a := NewArena()
		li := scanOf(a, "lineitem", "linenumber", "quantity", "orderkey")
		props := NewPropertyDeriver(tpch).Derive(li)
		assert.Equal(t, "{(1,3)}", props.UniqueKeys.String())
	})

	t.Run("row count bound", func(t *testing.T) {
		a := NewArena()
		region := scanOf(a, "region", "regionkey", "name")
		assert.Equal(t, "maxrows=5 keys={}", NewPropertyDeriver(tpch).Derive(region).String())

		config := scanOf(a, "config", "name", "value")
		assert.Equal(t, "maxrows=1 keys={()}", NewPropertyDeriver(tpch).Derive(config).String())
	})

	t.Run("no constraint source", func(t *testing.T) {
		a := NewArena()
		orders := scanOf(a, "orders", "orderkey")
		assert.Equal(t, "maxrows=unknown keys={}", NewPropertyDeriver(NoConstraints).Derive(orders).String())
	})
}

func TestDeriveFilter(t *testing.T) {
	a := NewArena()
	orders := scanOf(a, "orders", "orderkey", "custkey", "totalprice")
	lineitem := scanOf(a, "lineitem", "orderkey", "linenumber", "quantity")
	orderkey := refOf(t, orders, "orderkey")

	tests := []struct {
		name  string
		input LogicalPlan
		pred  Expression
		want  string
	}{
		{
			name:  "key equals literal",
			input: orders,
			pred:  Eq(orderkey, intLit(10)),
			want:  "maxrows=1 keys={()}",
		},
		{
			name:  "literal equals key",
			input: orders,
			pred:  Eq(intLit(10), orderkey),
			want:  "maxrows=1 keys={()}",
		},
		{
			name:  "key equals parameter",
			input: orders,
			pred:  Eq(orderkey, &ParameterRef{Index: 1}),
			want:  "maxrows=1 keys={()}",
		},
		{
			name:  "key pinned inside a conjunction",
			input: orders,
			pred:  And(cmpOp(OpGreater, refOf(t, orders, "totalprice"), intLit(5)), Eq(orderkey, intLit(10))),
			want:  "maxrows=1 keys={()}",
		},
		{
			name:  "range on key",
			input: orders,
			pred:  cmpOp(OpGreater, orderkey, intLit(10)),
			want:  "maxrows=unknown keys={(1)}",
		},
		{
			name:  "non-key column pinned",
			input: orders,
			pred:  Eq(refOf(t, orders, "custkey"), intLit(10)),
			want:  "maxrows=unknown keys={(1)}",
		},
		{
			name:  "key compared to null",
			input: orders,
			pred:  Eq(orderkey, nullLit()),
			want:  "maxrows=unknown keys={(1)}",
		},
		{
			name:  "disjunction does not pin",
			input: orders,
			pred:  cmpOp(OpOr, Eq(orderkey, intLit(1)), Eq(orderkey, intLit(2))),
			want:  "maxrows=unknown keys={(1)}",
		},
		{
			name:  "key equals another column",
			input: orders,
			pred:  Eq(orderkey, refOf(t, orders, "custkey")),
			want:  "maxrows=unknown keys={(1)}",
		},
		{
			name:  "partial composite key",
			input: lineitem,
			pred:  Eq(refOf(t, lineitem, "orderkey"), intLit(1)),
			want:  "maxrows=unknown keys={(4,5)}",
		},
		{
			name:  "full composite key",
			input: lineitem,
			pred:  And(Eq(refOf(t, lineitem, "orderkey"), intLit(1)), Eq(intLit(3), refOf(t, lineitem, "linenumber"))),
			want:  "maxrows=1 keys={()}",
		},
		{
			name:  "false predicate",
			input: orders,
			pred:  boolLit(false),
			want:  "maxrows=0 keys={()}",
		},
		{
			name:  "null predicate",
			input: orders,
			pred:  And(Eq(orderkey, orderkey), nullLit()),
			want:  "maxrows=0 keys={()}",
		},
		{
			name:  "true predicate",
			input: orders,
			pred:  boolLit(true),
			want:  "maxrows=unknown keys={(1)}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := a.NewFilter(tt.input, tt.pred)
			assert.Equal(t, tt.want, NewPropertyDeriver(tpch).Derive(f).String())
		})
	}
}

func TestDeriveFilterKeepsSmallerSourceBound(t *testing.T) {
	a := NewArena()
	v := valuesOf(a, 0, "x")
	f := a.NewFilter(v, Eq(refOf(t, v, "x"), intLit(1)))
	assert.Equal(t, "maxrows=0 keys={()}", NewPropertyDeriver(nil).Derive(f).String())
}

func TestDeriveProject(t *testing.T) {
	a := NewArena()
	orders := scanOf(a, "orders", "orderkey", "custkey", "totalprice")
	orderkey := colOf(t, orders, "orderkey")

	t.Run("passthrough renames key", func(t *testing.T) {
		renamed := a.NewColumn("ok", orderkey.DataType)
		p := a.NewProject(orders, []ProjectItem{
			{Column: renamed, Expr: NewColumnRef(orderkey)},
			{Column: a.NewColumn("price", orderkey.DataType), Expr: refOf(t, orders, "totalprice")},
		})
		props := NewPropertyDeriver(tpch).Derive(p)
		assert.Equal(t, MakeKeySet(MakeColumnSet(renamed.ID)).String(), props.UniqueKeys.String())
	})

	t.Run("first passthrough wins", func(t *testing.T) {
		first := a.NewColumn("a", orderkey.DataType)
		second := a.NewColumn("b", orderkey.DataType)
		p := a.NewProject(orders, []ProjectItem{
			{Column: first, Expr: NewColumnRef(orderkey)},
			{Column: second, Expr: NewColumnRef(orderkey)},
		})
		props := NewPropertyDeriver(tpch).Derive(p)
		assert.Equal(t, MakeKeySet(MakeColumnSet(first.ID)).String(), props.UniqueKeys.String())
	})

	t.Run("computed key is dropped", func(t *testing.T) {
		p := a.NewProject(orders, []ProjectItem{
			{
				Column: a.NewColumn("next", orderkey.DataType),
				Expr:   &BinaryOp{Left: NewColumnRef(orderkey), Right: intLit(1), Operator: OpAdd},
			},
		})
		props := NewPropertyDeriver(tpch).Derive(p)
		assert.Equal(t, "maxrows=unknown keys={}", props.String())
	})

	t.Run("bound is inherited", func(t *testing.T) {
		f := a.NewFilter(orders, Eq(NewColumnRef(orderkey), intLit(10)))
		p := a.NewProject(f, []ProjectItem{
			{Column: a.NewColumn("price", orderkey.DataType), Expr: refOf(t, orders, "totalprice")},
		})
		assert.Equal(t, "maxrows=1 keys={()}", NewPropertyDeriver(tpch).Derive(p).String())
	})
}

func TestDeriveAggregate(t *testing.T) {
	t.Run("global aggregation yields one row", func(t *testing.T) {
		a := NewArena()
		orders := scanOf(a, "orders", "orderkey")
		agg := a.NewAggregate(orders, nil, []AggregateItem{countOf(a, "c")})
		assert.Equal(t, "maxrows=1 keys={()}", NewPropertyDeriver(tpch).Derive(agg).String())
	})

	t.Run("global aggregation over empty input", func(t *testing.T) {
		a := NewArena()
		v := valuesOf(a, 0, "foo")
		agg := a.NewAggregate(v, nil, []AggregateItem{countOf(a, "c", refOf(t, v, "foo"))})
		assert.Equal(t, "maxrows=1 keys={()}", NewPropertyDeriver(nil).Derive(agg).String())
	})

	t.Run("grouping set is a key", func(t *testing.T) {
		a := NewArena()
		v := valuesOf(a, 20, "foo")
		foo := colOf(t, v, "foo")
		agg := a.NewAggregate(v, []Column{foo}, []AggregateItem{countOf(a, "c", NewColumnRef(foo))})
		props := NewPropertyDeriver(nil).Derive(agg)
		assert.Equal(t, BoundedBy(20), props.MaxRows)
		assert.Equal(t, MakeKeySet(MakeColumnSet(foo.ID)).String(), props.UniqueKeys.String())
	})

	t.Run("source key within grouping is kept minimal", func(t *testing.T) {
		a := NewArena()
		orders := scanOf(a, "orders", "orderkey", "custkey")
		orderkey := colOf(t, orders, "orderkey")
		custkey := colOf(t, orders, "custkey")
		agg := a.NewAggregate(orders, []Column{orderkey, custkey}, []AggregateItem{countOf(a, "c")})
		props := NewPropertyDeriver(tpch).Derive(agg)
		assert.False(t, props.MaxRows.Known())
		assert.Equal(t, MakeKeySet(MakeColumnSet(orderkey.ID)).String(), props.UniqueKeys.String())
	})

	t.Run("unbounded grouped input", func(t *testing.T) {
		a := NewArena()
		orders := scanOf(a, "orders", "orderkey", "custkey")
		custkey := colOf(t, orders, "custkey")
		agg := a.NewAggregate(orders, []Column{custkey}, []AggregateItem{countOf(a, "c")})
		props := NewPropertyDeriver(tpch).Derive(agg)
		assert.False(t, props.AtMostOneRow())
	})
}

func TestDeriveSortAndLimit(t *testing.T) {
	a := NewArena()
	orders := scanOf(a, "orders", "orderkey", "totalprice")
	order := ascending(colOf(t, orders, "totalprice"))
	d := NewPropertyDeriver(tpch)

	sorted := a.NewSort(orders, order)
	assert.Equal(t, "maxrows=unknown keys={(1)}", d.Derive(sorted).String())

	assert.Equal(t, "maxrows=10 keys={(1)}", d.Derive(a.NewLimit(orders, 10)).String())
	assert.Equal(t, "maxrows=1 keys={()}", d.Derive(a.NewLimit(orders, 1)).String())
	assert.Equal(t, "maxrows=0 keys={()}", d.Derive(a.NewLimit(orders, 0)).String())

	assert.Equal(t, "maxrows=3 keys={(1)}", d.Derive(a.NewBoundedSort(orders, order, 3)).String())

	small := valuesOf(a, 2, "x")
	assert.Equal(t, "maxrows=2 keys={}", d.Derive(a.NewBoundedSort(small, ascending(colOf(t, small, "x")), 10)).String())
}

// customerOrders builds orders(orderkey, custkey, totalprice) filtered by
// orderkey = 10 and customer(custkey, name).
func customerOrders(t *testing.T, a *Arena) (orders, customer LogicalPlan) {
	t.Helper()
	scan := scanOf(a, "orders", "orderkey", "custkey", "totalprice")
	orders = a.NewFilter(scan, Eq(refOf(t, scan, "orderkey"), intLit(10)))
	customer = scanOf(a, "customer", "custkey", "name")
	return orders, customer
}

func TestDeriveJoin(t *testing.T) {
	t.Run("inner join on the right key", func(t *testing.T) {
		a := NewArena()
		orders, customer := customerOrders(t, a)
		j := a.NewJoin(orders, customer, InnerJoin, []JoinEquality{
			{Left: colOf(t, orders, "custkey"), Right: colOf(t, customer, "custkey")},
		}, nil)
		props := NewPropertyDeriver(tpch).Derive(j)
		assert.True(t, props.AtMostOneRow())
		assert.Equal(t, "maxrows=1 keys={()}", props.String())
	})

	t.Run("inner join on a non-key column", func(t *testing.T) {
		a := NewArena()
		orders, customer := customerOrders(t, a)
		j := a.NewJoin(orders, customer, InnerJoin, []JoinEquality{
			{Left: colOf(t, orders, "custkey"), Right: colOf(t, customer, "name")},
		}, nil)
		assert.False(t, NewPropertyDeriver(tpch).Derive(j).AtMostOneRow())
	})

	t.Run("left join keeps the preserved side bound", func(t *testing.T) {
		a := NewArena()
		orders, customer := customerOrders(t, a)
		j := a.NewJoin(orders, customer, LeftJoin, []JoinEquality{
			{Left: colOf(t, orders, "custkey"), Right: colOf(t, customer, "custkey")},
		}, nil)
		assert.Equal(t, "maxrows=1 keys={()}", NewPropertyDeriver(tpch).Derive(j).String())
	})

	t.Run("right join of a bounded right side", func(t *testing.T) {
		a := NewArena()
		orders, customer := customerOrders(t, a)
		j := a.NewJoin(customer, orders, RightJoin, []JoinEquality{
			{Left: colOf(t, customer, "custkey"), Right: colOf(t, orders, "custkey")},
		}, nil)
		assert.Equal(t, "maxrows=1 keys={()}", NewPropertyDeriver(tpch).Derive(j).String())
	})

	t.Run("cross join of bounded inputs", func(t *testing.T) {
		a := NewArena()
		left := valuesOf(a, 3, "a")
		right := valuesOf(a, 4, "b")
		j := a.NewJoin(left, right, CrossJoin, nil, nil)
		assert.Equal(t, BoundedBy(12), NewPropertyDeriver(nil).Derive(j).MaxRows)
	})

	t.Run("full join adds both sides", func(t *testing.T) {
		a := NewArena()
		left := valuesOf(a, 3, "a")
		right := valuesOf(a, 4, "b")
		j := a.NewJoin(left, right, FullJoin, nil, nil)
		assert.Equal(t, BoundedBy(16), NewPropertyDeriver(nil).Derive(j).MaxRows)
	})

	t.Run("semi and anti joins are bounded by the left side", func(t *testing.T) {
		a := NewArena()
		left := valuesOf(a, 3, "a")
		orders := scanOf(a, "orders", "orderkey")
		for _, jt := range []JoinType{SemiJoin, AntiJoin} {
			j := a.NewJoin(left, orders, jt, []JoinEquality{
				{Left: colOf(t, left, "a"), Right: colOf(t, orders, "orderkey")},
			}, nil)
			assert.Equal(t, BoundedBy(3), NewPropertyDeriver(tpch).Derive(j).MaxRows, jt.String())
			assert.Len(t, j.Schema().Columns, 1)
		}
	})
}

func TestDeriveJoinResidualFilter(t *testing.T) {
	build := func(t *testing.T, jt JoinType) (*Arena, *LogicalJoin) {
		a := NewArena()
		orders := scanOf(a, "orders", "orderkey", "totalprice")
		values := valuesOf(a, 1, "a")
		j := a.NewJoin(orders, values, jt, nil, Eq(refOf(t, orders, "orderkey"), intLit(1)))
		return a, j
	}

	t.Run("inner join narrows the pinned side", func(t *testing.T) {
		_, j := build(t, InnerJoin)
		props := NewPropertyDeriver(tpch).Derive(j)
		assert.Equal(t, "maxrows=1 keys={()}", props.String())
	})

	t.Run("left join cannot narrow the preserved side", func(t *testing.T) {
		_, j := build(t, LeftJoin)
		props := NewPropertyDeriver(tpch).Derive(j)
		assert.False(t, props.MaxRows.Known())
		assert.False(t, props.AtMostOneRow())
	})

	t.Run("right join narrows the left side", func(t *testing.T) {
		_, j := build(t, RightJoin)
		assert.Equal(t, BoundedBy(1), NewPropertyDeriver(tpch).Derive(j).MaxRows)
	})
}

func TestDeriverCache(t *testing.T) {
	a := NewArena()
	orders := scanOf(a, "orders", "orderkey")
	f := a.NewFilter(orders, Eq(refOf(t, orders, "orderkey"), intLit(1)))

	d := NewPropertyDeriver(tpch)
	first := d.Derive(f)
	require.True(t, d.Cached(f.ID()))
	require.True(t, d.Cached(orders.ID()), "children are derived first")
	assert.Same(t, first, d.Derive(f))

	d.Forget(f.ID())
	assert.False(t, d.Cached(f.ID()))
	assert.True(t, d.Cached(orders.ID()))
	assert.NotSame(t, first, d.Derive(f))
	assert.Equal(t, first.String(), d.Derive(f).String())
}
