package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/QuantaOpt/internal/feature"
	"github.com/dshills/QuantaOpt/internal/log"
	"github.com/dshills/QuantaOpt/internal/planfile"
	"github.com/dshills/QuantaOpt/internal/sql/planner"
)

func newOptimizeCmd(opts *options) *cobra.Command {
	var showProps bool
	cmd := &cobra.Command{
		Use:   "optimize <plan.yaml>",
		Short: "Optimize a plan and print it before and after",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(cmd.Context(), cmd.Flags())
			if err != nil {
				return err
			}
			return s.optimize(cmd.OutOrStdout(), args[0], showProps)
		},
	}
	cmd.Flags().BoolVar(&showProps, "props", false, "Annotate every operator with its derived properties")
	return cmd
}

func (s *session) optimize(w io.Writer, path string, showProps bool) error {
	arena, root, err := planfile.LoadPlan(path, s.catalog)
	if err != nil {
		return err
	}
	cfg, rules, err := s.cfg.Planner(s.flags)
	if err != nil {
		return err
	}

	var props *planner.PropertyDeriver
	if showProps {
		props = planner.NewPropertyDeriver(s.constraints)
	}

	start := time.Now()
	result, changed := planner.NewOptimizer(arena, s.constraints, cfg, rules).
		WithLogger(s.logger).
		Optimize(root)
	s.logger.Info("optimized plan",
		log.String("plan", path),
		log.Bool("changed", changed),
		log.Bool("exploit_constraints", cfg.ExploitConstraints),
		log.Duration("elapsed", time.Since(start)))

	fmt.Fprintln(w, "Before:")
	fmt.Fprint(w, planner.Format(root, props))
	fmt.Fprintln(w, "After:")
	if !changed {
		fmt.Fprintln(w, "(unchanged)")
		return nil
	}
	fmt.Fprint(w, planner.Format(result, props))
	return nil
}

func newPropsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "props <plan.yaml>",
		Short: "Print a plan annotated with derived row bounds and unique keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(cmd.Context(), cmd.Flags())
			if err != nil {
				return err
			}
			_, root, err := planfile.LoadPlan(args[0], s.catalog)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), planner.Format(root, planner.NewPropertyDeriver(s.constraints)))
			return nil
		},
	}
}

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the rewrite rules and the feature flags that affect them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Rules:")
			for _, name := range planner.RuleNames() {
				fmt.Fprintf(w, "  %s\n", name)
			}
			fmt.Fprintln(w, "Features:")
			flags := feature.NewManager()
			for _, flag := range flags.GetByCategory("optimizer") {
				meta, _ := flags.GetMetadata(flag)
				fmt.Fprintf(w, "  %s=%t  %s\n", flag, flags.IsEnabled(flag), meta.Description)
			}
			return nil
		},
	}
}
