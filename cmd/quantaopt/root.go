package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dshills/QuantaOpt/internal/catalog"
	"github.com/dshills/QuantaOpt/internal/catalog/pgcatalog"
	"github.com/dshills/QuantaOpt/internal/config"
	qerrors "github.com/dshills/QuantaOpt/internal/errors"
	"github.com/dshills/QuantaOpt/internal/feature"
	"github.com/dshills/QuantaOpt/internal/log"
	"github.com/dshills/QuantaOpt/internal/planfile"
	"github.com/dshills/QuantaOpt/internal/sql/planner"
)

// options holds the command line flags shared by every command.
type options struct {
	configFile         string
	catalogFile        string
	dsn                string
	schemas            []string
	logLevel           string
	logFormat          string
	exploitConstraints bool
	rules              []string
	maxIterations      int
	features           map[string]string
}

func (o *options) register(fs *pflag.FlagSet) {
	fs.StringVar(&o.configFile, "config", "", "Path to configuration file")
	fs.StringVar(&o.catalogFile, "catalog", "", "Path to a YAML catalog file")
	fs.StringVar(&o.dsn, "dsn", "", "PostgreSQL connection string to read the catalog from")
	fs.StringSliceVar(&o.schemas, "schema", nil, "Schemas to read when using --dsn")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&o.logFormat, "log-format", "", "Log format (text, json)")
	fs.BoolVar(&o.exploitConstraints, "exploit-constraints", false, "Let rules rely on declared keys and row bounds")
	fs.StringSliceVar(&o.rules, "rules", nil, "Rules to apply, in order (default all)")
	fs.IntVar(&o.maxIterations, "max-iterations", 0, "Maximum number of rewrites per plan")
	fs.StringToStringVar(&o.features, "feature", nil, "Feature flag overrides, e.g. limit_sort_fusion=false")
}

// session is everything a command needs to work on one plan file.
type session struct {
	cfg         *config.Config
	logger      log.Logger
	flags       *feature.Manager
	catalog     catalog.Catalog
	constraints planner.ConstraintSource
}

// load resolves the configuration: defaults, then the config file, then
// explicitly set flags.
func (o *options) load(fs *pflag.FlagSet) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if o.configFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(o.configFile); err != nil {
			return nil, err
		}
	}

	if fs.Changed("catalog") {
		cfg.Catalog.File = o.catalogFile
		cfg.Catalog.DSN = ""
	}
	if fs.Changed("dsn") {
		cfg.Catalog.DSN = o.dsn
		cfg.Catalog.File = ""
	}
	if fs.Changed("schema") {
		cfg.Catalog.Schemas = o.schemas
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if fs.Changed("exploit-constraints") {
		cfg.Optimizer.ExploitConstraints = o.exploitConstraints
	}
	if fs.Changed("rules") {
		cfg.Optimizer.Rules = o.rules
	}
	if fs.Changed("max-iterations") {
		cfg.Optimizer.MaxIterations = o.maxIterations
	}
	if cfg.Features == nil {
		cfg.Features = map[string]bool{}
	}
	for name, value := range o.features {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return nil, qerrors.InvalidConfigurationError(name, value)
		}
		cfg.Features[name] = enabled
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *options) session(ctx context.Context, fs *pflag.FlagSet) (*session, error) {
	cfg, err := o.load(fs)
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg:    cfg,
		logger: log.Build(cfg.Log),
		flags:  feature.NewManager(),
	}

	switch {
	case cfg.Catalog.File != "":
		cat, err := planfile.LoadCatalog(cfg.Catalog.File)
		if err != nil {
			return nil, err
		}
		s.catalog, s.constraints = cat, cat
	case cfg.Catalog.DSN != "":
		db, err := pgcatalog.Open(ctx, cfg.Catalog.DSN)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		cat, err := pgcatalog.NewLoader(db).WithLogger(s.logger).Load(ctx, cfg.Catalog.Schemas...)
		if err != nil {
			return nil, err
		}
		s.catalog, s.constraints = cat, cat
	}
	return s, nil
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "quantaopt",
		Short: "Rewrite logical query plans using declared keys and row bounds",
		Long: "quantaopt reads a logical plan from YAML, derives row-count bounds and unique keys\n" +
			"for every operator, and applies the rewrite rules until none fires.",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.register(root.PersistentFlags())

	root.AddCommand(
		newOptimizeCmd(opts),
		newPropsCmd(opts),
		newRulesCmd(),
	)
	return root
}
