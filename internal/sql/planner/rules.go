package planner

import (
	"sort"
	"strings"

	qerrors "github.com/dshills/QuantaOpt/internal/errors"
)

// RuleContext is what a rule may consult while deciding and rewriting.
type RuleContext struct {
	Arena  *Arena
	Props  *PropertyDeriver
	Config Config
}

// OptimizationRule is a rewrite of logical plans, split into a structural
// pattern, a precondition and the transform itself.
type OptimizationRule interface {
	// Name identifies the rule in configuration and logs.
	Name() string
	// Match reports whether the node has the rule's shape.
	Match(plan LogicalPlan) bool
	// Check reports whether a matched node satisfies the rule's preconditions.
	Check(ctx *RuleContext, plan LogicalPlan) bool
	// Transform builds the replacement for a matched, checked node.
	Transform(ctx *RuleContext, plan LogicalPlan) LogicalPlan
}

// RuleOutcome records how far a rule got on one node.
type RuleOutcome int

const (
	RuleNoMatch RuleOutcome = iota
	RulePreconditionFailed
	RuleApplied
)

func (o RuleOutcome) String() string {
	switch o {
	case RuleNoMatch:
		return "no-match"
	case RulePreconditionFailed:
		return "precondition-failed"
	case RuleApplied:
		return "applied"
	default:
		return "unknown"
	}
}

// ApplyRule runs rule against one node. The returned plan is the replacement
// when the outcome is RuleApplied and plan itself otherwise.
func ApplyRule(ctx *RuleContext, rule OptimizationRule, plan LogicalPlan) (LogicalPlan, RuleOutcome) {
	if !rule.Match(plan) {
		return plan, RuleNoMatch
	}
	if !rule.Check(ctx, plan) {
		return plan, RulePreconditionFailed
	}
	return rule.Transform(ctx, plan), RuleApplied
}

// MergeLimitWithSort fuses Limit(Sort(x)) into BoundedSort(x). A sort whose
// output is immediately capped is a top-N selection.
type MergeLimitWithSort struct{}

func (MergeLimitWithSort) Name() string { return "MergeLimitWithSort" }

func (MergeLimitWithSort) Match(plan LogicalPlan) bool {
	limit, ok := plan.(*LogicalLimit)
	if !ok {
		return false
	}
	_, ok = limit.Input().(*LogicalSort)
	return ok
}

func (MergeLimitWithSort) Check(*RuleContext, LogicalPlan) bool {
	return true
}

func (MergeLimitWithSort) Transform(ctx *RuleContext, plan LogicalPlan) LogicalPlan {
	limit := plan.(*LogicalLimit)
	sortNode := limit.Input().(*LogicalSort)
	return ctx.Arena.NewBoundedSort(sortNode.Input(), sortNode.OrderBy, limit.Limit)
}

// RemoveRedundantBoundedSort drops a bounded sort whose input yields at most
// one row. With fewer than two rows no ordering is observable, and any limit
// of one or more keeps the row. It only fires when constraint exploitation is
// enabled.
type RemoveRedundantBoundedSort struct{}

func (RemoveRedundantBoundedSort) Name() string { return "RemoveRedundantBoundedSort" }

func (RemoveRedundantBoundedSort) Match(plan LogicalPlan) bool {
	_, ok := plan.(*LogicalBoundedSort)
	return ok
}

func (RemoveRedundantBoundedSort) Check(ctx *RuleContext, plan LogicalPlan) bool {
	if !ctx.Config.ExploitConstraints {
		return false
	}
	topN := plan.(*LogicalBoundedSort)
	input := ctx.Props.Derive(topN.Input())
	if !input.AtMostOneRow() {
		return false
	}
	// A zero limit still discards a row the input may produce.
	return topN.Limit >= 1 || input.MaxRows.AtMost(0)
}

func (RemoveRedundantBoundedSort) Transform(_ *RuleContext, plan LogicalPlan) LogicalPlan {
	return plan.(*LogicalBoundedSort).Input()
}

// DefaultRules returns every rule in application order.
func DefaultRules() []OptimizationRule {
	return []OptimizationRule{
		MergeLimitWithSort{},
		RemoveRedundantBoundedSort{},
	}
}

// RuleNames lists the names accepted by RulesByName.
func RuleNames() []string {
	var names []string
	for _, r := range DefaultRules() {
		names = append(names, r.Name())
	}
	sort.Strings(names)
	return names
}

// RulesByName resolves rule names case-insensitively, keeping the order given.
func RulesByName(names ...string) ([]OptimizationRule, error) {
	byName := make(map[string]OptimizationRule)
	for _, r := range DefaultRules() {
		byName[strings.ToLower(r.Name())] = r
	}

	rules := make([]OptimizationRule, 0, len(names))
	for _, name := range names {
		r, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, qerrors.UnknownRuleError(name).
				WithHint("Known rules: " + strings.Join(RuleNames(), ", "))
		}
		rules = append(rules, r)
	}
	return rules, nil
}
