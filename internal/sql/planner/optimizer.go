package planner

import (
	"log/slog"
	"time"

	"github.com/dshills/QuantaOpt/internal/feature"
	"github.com/dshills/QuantaOpt/internal/log"
)

// DefaultMaxIterations caps the number of rewrites in one Optimize call.
const DefaultMaxIterations = 1000

// Config is the per-pass optimizer configuration. It is passed explicitly and
// read once per pass.
type Config struct {
	// ExploitConstraints gates rules that rely on declared keys and bounds.
	ExploitConstraints bool
	// MaxIterations bounds the number of rewrites. Zero means DefaultMaxIterations.
	MaxIterations int
	// Trace logs every rule attempt at debug level.
	Trace bool
}

// DefaultConfig returns the configuration with constraint exploitation off.
func DefaultConfig() Config {
	return Config{MaxIterations: DefaultMaxIterations}
}

// ConfigFromFlags snapshots the optimizer switches of a session's feature flags.
func ConfigFromFlags(flags *feature.Manager) Config {
	cfg := DefaultConfig()
	cfg.ExploitConstraints = flags.IsEnabled(feature.ExploitConstraints)
	cfg.Trace = flags.IsEnabled(feature.OptimizerTracing)
	return cfg
}

// RulesFromFlags returns the default rules minus the ones disabled by flags.
func RulesFromFlags(flags *feature.Manager) []OptimizationRule {
	var rules []OptimizationRule
	for _, r := range DefaultRules() {
		if _, ok := r.(MergeLimitWithSort); ok && !flags.IsEnabled(feature.LimitSortFusion) {
			continue
		}
		rules = append(rules, r)
	}
	return rules
}

// Optimizer applies optimization rules to logical plans.
type Optimizer struct {
	arena       *Arena
	constraints ConstraintSource
	rules       []OptimizationRule
	config      Config
	logger      log.Logger
}

// NewOptimizer creates an optimizer over the plans of arena. A nil rules slice
// selects DefaultRules; an empty one disables every rule.
func NewOptimizer(arena *Arena, constraints ConstraintSource, config Config, rules []OptimizationRule) *Optimizer {
	if rules == nil {
		rules = DefaultRules()
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultMaxIterations
	}
	return &Optimizer{
		arena:       arena,
		constraints: constraints,
		rules:       rules,
		config:      config,
		logger:      log.Default(),
	}
}

// WithLogger sets the logger used to report rewrites.
func (o *Optimizer) WithLogger(l log.Logger) *Optimizer {
	o.logger = l
	return o
}

// Optimize is a convenience wrapper around NewOptimizer(...).Optimize(root).
func Optimize(arena *Arena, root LogicalPlan, constraints ConstraintSource, rules []OptimizationRule, config Config) (LogicalPlan, bool) {
	if rules == nil {
		rules = []OptimizationRule{}
	}
	return NewOptimizer(arena, constraints, config, rules).Optimize(root)
}

// Optimize rewrites root until no rule fires anywhere in the tree. It returns
// the final plan and whether any rule fired. The input tree is never modified.
func (o *Optimizer) Optimize(root LogicalPlan) (LogicalPlan, bool) {
	start := time.Now()
	ctx := &RuleContext{
		Arena:  o.arena,
		Props:  NewPropertyDeriver(o.constraints),
		Config: o.config,
	}

	plan := root
	changed := false
	iterations := 0
	for ; iterations < o.config.MaxIterations; iterations++ {
		next, fired := o.rewriteOnce(ctx, plan)
		if !fired {
			break
		}
		plan = next
		changed = true
	}

	if iterations == o.config.MaxIterations {
		o.logger.Warn("optimizer stopped at iteration limit",
			log.Int("max_iterations", o.config.MaxIterations))
	}
	if o.logger.Enabled(slog.LevelDebug) {
		o.logger.Debug("optimization finished",
			log.Int("rewrites", iterations),
			log.Bool("changed", changed),
			log.Duration("elapsed", time.Since(start)))
	}
	return plan, changed
}

// rewriteOnce walks the tree top-down and applies the first rule that fires.
// Ancestors of the rewritten node are rebuilt with fresh IDs.
func (o *Optimizer) rewriteOnce(ctx *RuleContext, node LogicalPlan) (LogicalPlan, bool) {
	for _, rule := range o.rules {
		replacement, outcome := ApplyRule(ctx, rule, node)
		if o.config.Trace && outcome != RuleNoMatch {
			o.logger.Debug("rule attempted",
				log.String("rule", rule.Name()),
				log.String("node", node.String()),
				log.String("outcome", outcome.String()))
		}
		if outcome == RuleApplied {
			o.logger.Debug("rule fired",
				log.String("rule", rule.Name()),
				log.String("node", node.String()),
				log.String("replacement", replacement.String()))
			ctx.Props.Forget(node.ID())
			return replacement, true
		}
	}

	children := node.Children()
	for i, child := range children {
		newChild, fired := o.rewriteOnce(ctx, child)
		if !fired {
			continue
		}
		newChildren := make([]LogicalPlan, len(children))
		copy(newChildren, children)
		newChildren[i] = newChild
		ctx.Props.Forget(node.ID())
		return o.arena.WithChildren(node, newChildren...), true
	}
	return node, false
}
