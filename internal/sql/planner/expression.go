package planner

import (
	"fmt"
	"strings"

	"github.com/dshills/QuantaOpt/internal/sql/types"
)

// Expression represents a scalar expression in a plan.
type Expression interface {
	String() string
	DataType() types.DataType
}

// ColumnRef references a column produced by a child plan.
type ColumnRef struct {
	ID         ColumnID
	ColumnName string
	TableAlias string
	ColumnType types.DataType
}

// NewColumnRef creates a reference to col.
func NewColumnRef(col Column) *ColumnRef {
	return &ColumnRef{
		ID:         col.ID,
		ColumnName: col.Name,
		TableAlias: col.Table,
		ColumnType: col.DataType,
	}
}

func (c *ColumnRef) String() string {
	return c.ColumnName
}

func (c *ColumnRef) DataType() types.DataType {
	return c.ColumnType
}

// Literal represents a constant value.
type Literal struct {
	Value types.Value
	Type  types.DataType
}

// NewLiteral creates a literal typed after its value.
func NewLiteral(v types.Value) *Literal {
	return &Literal{Value: v, Type: v.Type()}
}

func (l *Literal) String() string {
	return l.Value.String()
}

func (l *Literal) DataType() types.DataType {
	return l.Type
}

// ParameterRef represents a bind parameter ($1, $2, ...). It is constant for
// the duration of one execution.
type ParameterRef struct {
	Index int
	Type  types.DataType
}

func (p *ParameterRef) String() string {
	return fmt.Sprintf("$%d", p.Index)
}

func (p *ParameterRef) DataType() types.DataType {
	if p.Type == nil {
		return types.Unknown
	}
	return p.Type
}

// BinaryOp represents a binary operation.
type BinaryOp struct {
	Left     Expression
	Right    Expression
	Operator BinaryOperator
	Type     types.DataType
}

// BinaryOperator represents a binary operator.
type BinaryOperator int

const (
	// Arithmetic operators
	OpAdd BinaryOperator = iota
	OpSubtract
	OpMultiply
	OpDivide

	// Comparison operators
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual

	// Logical operators
	OpAnd
	OpOr
)

func (op BinaryOperator) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	default:
		return fmt.Sprintf("Unknown(%d)", op)
	}
}

// ParseBinaryOperator resolves a comparison or logical operator token.
func ParseBinaryOperator(s string) (BinaryOperator, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "+":
		return OpAdd, true
	case "-":
		return OpSubtract, true
	case "*":
		return OpMultiply, true
	case "/":
		return OpDivide, true
	case "=", "==":
		return OpEqual, true
	case "!=", "<>":
		return OpNotEqual, true
	case "<":
		return OpLess, true
	case "<=":
		return OpLessEqual, true
	case ">":
		return OpGreater, true
	case ">=":
		return OpGreaterEqual, true
	case "AND":
		return OpAnd, true
	case "OR":
		return OpOr, true
	}
	return 0, false
}

func (b *BinaryOp) String() string {
	prec := b.Operator.precedence()
	return fmt.Sprintf("%s %s %s", operandString(b.Left, prec), b.Operator.String(), operandString(b.Right, prec+1))
}

func (b *BinaryOp) DataType() types.DataType {
	return b.Type
}

// precedence orders operators by binding strength, loosest first.
func (op BinaryOperator) precedence() int {
	switch op {
	case OpOr:
		return 1
	case OpAnd:
		return 2
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return 4
	case OpAdd, OpSubtract:
		return 5
	default:
		return 6
	}
}

// operandString parenthesizes e when it binds looser than its context.
func operandString(e Expression, context int) string {
	if b, ok := e.(*BinaryOp); ok && b.Operator.precedence() < context {
		return "(" + b.String() + ")"
	}
	return e.String()
}

// UnaryOp represents a unary operation.
type UnaryOp struct {
	Operator UnaryOperator
	Expr     Expression
	Type     types.DataType
}

// UnaryOperator represents a unary operator.
type UnaryOperator int

const (
	OpNot UnaryOperator = iota
	OpNegate
)

func (op UnaryOperator) String() string {
	switch op {
	case OpNot:
		return "NOT"
	case OpNegate:
		return "-"
	default:
		return fmt.Sprintf("Unknown(%d)", op)
	}
}

func (u *UnaryOp) String() string {
	if u.Operator == OpNot {
		return "NOT " + operandString(u.Expr, 3)
	}
	return u.Operator.String() + operandString(u.Expr, 7)
}

func (u *UnaryOp) DataType() types.DataType {
	return u.Type
}

// FunctionCall represents a scalar function call.
type FunctionCall struct {
	Name string
	Args []Expression
	Type types.DataType
}

func (f *FunctionCall) String() string {
	return fmt.Sprintf("%s(%s)", f.Name, joinExprs(f.Args))
}

func (f *FunctionCall) DataType() types.DataType {
	return f.Type
}

// AggregateExpr represents an aggregate function call.
type AggregateExpr struct {
	Function AggregateFunc
	Args     []Expression
	Distinct bool
	Type     types.DataType
}

// AggregateFunc represents an aggregate function.
type AggregateFunc int

const (
	AggCount AggregateFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

func (f AggregateFunc) String() string {
	switch f {
	case AggCount:
		return "COUNT"
	case AggSum:
		return "SUM"
	case AggAvg:
		return "AVG"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// ParseAggregateFunc resolves an aggregate function name.
func ParseAggregateFunc(name string) (AggregateFunc, bool) {
	switch strings.ToUpper(name) {
	case "COUNT":
		return AggCount, true
	case "SUM":
		return AggSum, true
	case "AVG":
		return AggAvg, true
	case "MIN":
		return AggMin, true
	case "MAX":
		return AggMax, true
	}
	return 0, false
}

func (a *AggregateExpr) String() string {
	distinct := ""
	if a.Distinct {
		distinct = "DISTINCT "
	}
	args := joinExprs(a.Args)
	if len(a.Args) == 0 {
		args = "*"
	}
	return fmt.Sprintf("%s(%s%s)", a.Function.String(), distinct, args)
}

func (a *AggregateExpr) DataType() types.DataType {
	return a.Type
}

func joinExprs(exprs []Expression) string {
	strs := make([]string, len(exprs))
	for i, e := range exprs {
		strs[i] = e.String()
	}
	return strings.Join(strs, ", ")
}

// Eq builds left = right.
func Eq(left, right Expression) *BinaryOp {
	return &BinaryOp{Left: left, Right: right, Operator: OpEqual, Type: types.Boolean}
}

// And combines predicates with AND. It returns nil for no predicates and the
// predicate itself for one.
func And(preds ...Expression) Expression {
	var result Expression
	for _, p := range preds {
		if p == nil {
			continue
		}
		if result == nil {
			result = p
			continue
		}
		result = &BinaryOp{Left: result, Right: p, Operator: OpAnd, Type: types.Boolean}
	}
	return result
}

// Conjuncts splits a predicate into its top-level AND terms.
func Conjuncts(pred Expression) []Expression {
	if pred == nil {
		return nil
	}
	if b, ok := pred.(*BinaryOp); ok && b.Operator == OpAnd {
		return append(Conjuncts(b.Left), Conjuncts(b.Right)...)
	}
	return []Expression{pred}
}

// isConstant reports whether e has the same value for every row of one execution.
func isConstant(e Expression) bool {
	switch v := e.(type) {
	case *Literal:
		return !v.Value.IsNull()
	case *ParameterRef:
		return true
	default:
		return false
	}
}

// isFalse reports whether e is the literal FALSE or NULL, which filter out every row.
func isFalse(e Expression) bool {
	lit, ok := e.(*Literal)
	if !ok {
		return false
	}
	if lit.Value.IsNull() {
		return true
	}
	b, err := lit.Value.AsBool()
	return err == nil && !b
}
