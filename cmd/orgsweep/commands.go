package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/config"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/engine"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/operations"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/version"
)

var (
	// errUsage marks command-line mistakes.
	errUsage = errors.New("usage")

	// errCellsFailed is returned by run --fail-on-error when any cell failed.
	errCellsFailed = errors.New("one or more cells failed")
)

// deps are the collaborators commands need. Tests replace them.
type deps struct {
	provider common.AWSClientProvider
	registry *operations.Registry
}

// app carries per-invocation state from the root pre-run hook to commands.
type app struct {
	deps
	cfgFile string
	manager *config.Manager
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(deps{
		provider: common.NewDefaultAWSClientProvider(),
		registry: operations.NewDefaultRegistry(),
	})
}

func newRootCmdWith(d deps) *cobra.Command {
	a := &app{deps: d}

	root := &cobra.Command{
		Use:   "orgsweep",
		Short: "Run read-only checks across every account and region of an AWS Organization",
		Long: `orgsweep assumes a role into each selected member account and runs one
operation in every (account, region) cell. Every cell appears in the report,
whether it produced records, produced nothing, or failed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.config/orgsweep/config.yaml)")
	pf.String("profile", "", "AWS profile for the management-account credentials (default: credential chain)")
	pf.String("org-region", "", "region for Organizations, STS and the region catalog (default us-east-1)")
	pf.String("format", "", "output format: csv, table, json or yaml (default csv)")
	pf.StringP("output", "o", "", "write the report to this file instead of stdout")
	pf.Bool("no-color", false, "disable colored table output")
	pf.String("log-format", "text", `log format on stderr: "text" or "json"`)
	pf.BoolP("verbose", "v", false, "debug logging")

	root.AddCommand(a.newRunCmd())
	root.AddCommand(a.newScopeCmd())
	root.AddCommand(a.newOperationsCmd())
	root.AddCommand(a.newDoctorCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// init loads configuration and logging for the executing command.
func (a *app) init(cmd *cobra.Command) error {
	logFormat, _ := cmd.Flags().GetString("log-format")
	verbose, _ := cmd.Flags().GetBool("verbose")
	a.logger = setupLogging(cmd.ErrOrStderr(), logFormat, verbose)

	a.manager = config.NewManager(a.cfgFile)
	if err := a.manager.BindFlags(cmd.Flags()); err != nil {
		return err
	}
	cfg, err := a.manager.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	if path := a.manager.ConfigPath(); path != "" {
		a.logger.Debug("loaded configuration", "file", path)
	}
	return nil
}

// validConfig returns the loaded config or every validation error joined.
func (a *app) validConfig() (*config.Config, error) {
	if errs := a.cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: invalid configuration: %w", errUsage, errors.Join(errs...))
	}
	return a.cfg, nil
}

// setupLogging installs and returns the process logger.
func setupLogging(w io.Writer, format string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

func (a *app) newRunCmd() *cobra.Command {
	var (
		sf          scopeFlags
		payload     []string
		failOnError bool
	)

	cmd := &cobra.Command{
		Use:   "run <operation>",
		Short: "Run one operation in every account × region cell",
		Example: `  orgsweep run guardduty-coverage --role-name GuardDutyCoverageRole --all-accounts --all-regions
  orgsweep run cost-by-service --role-name Audit --ous ou-ab12-34567890 --regions us-east-1,eu-west-1 --payload days=14`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, ok := a.registry.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: unknown operation %q; valid operations: %s",
					errUsage, args[0], strings.Join(a.registry.Names(), ", "))
			}
			cfg, err := a.validConfig()
			if err != nil {
				return err
			}
			if cfg.RoleName == "" {
				return fmt.Errorf("%w: --role-name is required", errUsage)
			}
			p, err := engine.ParsePayload(payload)
			if err != nil {
				return fmt.Errorf("%w: %w", errUsage, err)
			}

			report, err := runSweep(cmd.Context(), a.provider, cfg, op, sf, p, a.logger)
			if err != nil {
				return err
			}
			if err := writeReport(cmd.OutOrStdout(), report, cfg.Output); err != nil {
				return err
			}

			if cause := context.Cause(cmd.Context()); cause != nil {
				return fmt.Errorf("run interrupted; report is partial: %w", cause)
			}
			if failOnError && report.Summary.Failed > 0 {
				return fmt.Errorf("%w: %d of %d", errCellsFailed, report.Summary.Failed, report.Summary.TotalCells)
			}
			return nil
		},
	}

	sf.register(cmd)
	f := cmd.Flags()
	f.String("role-name", "", "IAM role to assume in each member account (required)")
	f.String("session-name", "", "role session name (default CrossAccountRole)")
	f.Int("concurrency", config.DefaultConcurrency, "maximum cells in flight")
	f.Duration("timeout", config.DefaultTaskTimeout, "per-cell timeout covering role assumption and the operation (0 disables)")
	f.Int("max-ou-depth", config.DefaultMaxOUDepth, "maximum OU nesting expanded below each start node")
	f.StringArrayVar(&payload, "payload", nil, "operation parameter as key=value (repeatable)")
	f.BoolVar(&failOnError, "fail-on-error", false, "exit with status 3 when any cell failed")
	return cmd
}

// ---------------------------------------------------------------------------
// scope
// ---------------------------------------------------------------------------

// scopeView is the printed form of a resolved scope.
type scopeView struct {
	Accounts []string `json:"accounts" yaml:"accounts"`
	Regions  []string `json:"regions"  yaml:"regions"`
	Cells    int      `json:"cells"    yaml:"cells"`
}

func (a *app) newScopeCmd() *cobra.Command {
	var sf scopeFlags

	cmd := &cobra.Command{
		Use:   "scope",
		Short: "Resolve and print the accounts and regions a run would cover",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.validConfig()
			if err != nil {
				return err
			}
			accounts, regions, err := sf.specs()
			if err != nil {
				return err
			}
			base, err := a.provider.LoadProfile(cmd.Context(), cfg.Profile, cfg.OrgRegion)
			if err != nil {
				return err
			}
			sc, err := resolveScope(cmd.Context(), base, accounts, regions, cfg, sf.activeOnly, a.logger)
			if err != nil {
				return err
			}

			view := scopeView{Accounts: sc.Accounts.Sorted(), Regions: sc.Regions.Sorted(), Cells: sc.Size()}
			return printScope(cmd.OutOrStdout(), view, cfg.Output.Format)
		},
	}
	sf.register(cmd)
	cmd.Flags().Int("max-ou-depth", config.DefaultMaxOUDepth, "maximum OU nesting expanded below each start node")
	return cmd
}

func printScope(w io.Writer, v scopeView, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		return yaml.NewEncoder(w).Encode(v)
	}
	fmt.Fprintf(w, "Accounts (%d):\n", len(v.Accounts))
	for _, acct := range v.Accounts {
		fmt.Fprintf(w, "  %s\n", acct)
	}
	fmt.Fprintf(w, "Regions (%d):\n", len(v.Regions))
	for _, r := range v.Regions {
		fmt.Fprintf(w, "  %s\n", r)
	}
	fmt.Fprintf(w, "Cells: %d\n", v.Cells)
	return nil
}

// ---------------------------------------------------------------------------
// operations / version
// ---------------------------------------------------------------------------

func (a *app) newOperationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List the operations run can execute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, op := range a.registry.All() {
				scopeNote := ""
				if op.Global {
					scopeNote = " (global)"
				}
				fmt.Fprintf(w, "%-24s %s%s\n", op.Name, op.Description, scopeNote)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}
