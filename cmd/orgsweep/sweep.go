package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/config"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/engine"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/models"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/operations"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/output"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/common"
	awsorg "github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/organizations"
	awssession "github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/session"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/scope"
)

// scopeFlags are the account and region selectors shared by run and scope.
type scopeFlags struct {
	accountIDs  string
	ous         string
	allAccounts bool
	regions     string
	allRegions  bool
	optInStatus []string
	scopeFile   string
	activeOnly  bool
}

func (sf *scopeFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&sf.allAccounts, "all-accounts", false, "every account in the organization (requires Organizations access)")
	f.StringVar(&sf.accountIDs, "account-ids", "", "comma-separated account ids")
	f.StringVar(&sf.ous, "ous", "", "comma-separated OU ids; a root id selects the whole organization")
	f.BoolVar(&sf.allRegions, "all-regions", false, "every region enabled for the management account")
	f.StringVar(&sf.regions, "regions", "", "comma-separated region names")
	f.StringSliceVar(&sf.optInStatus, "opt-in-status", nil, "with --all-regions, include regions with these opt-in statuses (opt-in-not-required, opted-in, not-opted-in)")
	f.StringVar(&sf.scopeFile, "scope-file", "", "YAML scope file; flags add to it")
	f.BoolVar(&sf.activeOnly, "active-only", false, "skip suspended and pending-closure accounts found in OUs")
}

// file combines the scope file, when given, with the flag selectors.
func (sf *scopeFlags) file() (*scope.File, error) {
	flags := scope.FromFlags(sf.accountIDs, sf.ous, sf.allAccounts, sf.regions, sf.allRegions, sf.optInStatus)
	if sf.scopeFile == "" {
		return flags, nil
	}
	loaded, err := scope.Load(sf.scopeFile)
	if err != nil {
		return nil, err
	}
	return loaded.Merge(flags), nil
}

// specs validates the selectors and converts them to resolver specs. It
// makes no network call.
func (sf *scopeFlags) specs() ([]awsorg.AccountSpec, awsorg.RegionSpec, error) {
	f, err := sf.file()
	if err != nil {
		return nil, nil, err
	}
	accounts, regions, err := f.Specs()
	if err != nil {
		return nil, nil, err
	}
	if errs := scope.Validate(f); len(errs) > 0 {
		return nil, nil, fmt.Errorf("%w: %w", scope.ErrScopeSpecification, errors.Join(errs...))
	}
	return accounts, regions, nil
}

// resolveScope expands the specs against the organization directory and the
// region catalog reached through the base credentials.
func resolveScope(ctx context.Context, base *common.ProfileConfig, accounts []awsorg.AccountSpec, regions awsorg.RegionSpec, cfg *config.Config, activeOnly bool, logger *slog.Logger) (models.Scope, error) {
	opts := []awsorg.Option{
		awsorg.WithLogger(logger),
		awsorg.WithMaxDepth(cfg.MaxOUDepth),
	}
	if activeOnly {
		opts = append(opts, awsorg.WithActiveOnly())
	}
	r := awsorg.NewResolver(base.Clients.Organizations, base.Clients.EC2, opts...)

	for _, spec := range accounts {
		if err := r.Apply(ctx, spec); err != nil {
			return models.Scope{}, err
		}
	}
	if err := r.ApplyRegions(ctx, regions); err != nil {
		return models.Scope{}, err
	}
	return r.Scope(), nil
}

// runSweep resolves the scope, fans op out over it and builds the report.
// Cell failures are in the report, not in the returned error.
func runSweep(ctx context.Context, provider common.AWSClientProvider, cfg *config.Config, op operations.Operation, sf scopeFlags, payload engine.Payload, logger *slog.Logger) (*models.RunReport, error) {
	accounts, regions, err := sf.specs()
	if err != nil {
		return nil, err
	}

	base, err := provider.LoadProfile(ctx, cfg.Profile, cfg.OrgRegion)
	if err != nil {
		return nil, err
	}
	logger.Info("base credentials loaded",
		"profile", base.ProfileName,
		"account", base.AccountID,
		"caller", base.CallerARN,
		"region", base.Region,
	)

	sc, err := resolveScope(ctx, base, accounts, regions, cfg, sf.activeOnly, logger)
	if err != nil {
		return nil, err
	}

	broker := awssession.NewBroker(base.Clients.STS, base.Config, cfg.RoleName,
		awssession.WithSessionName(cfg.SessionName))
	eng := engine.NewDefaultEngine(broker, engine.Options{
		Concurrency: cfg.Concurrency,
		TaskTimeout: cfg.TaskTimeout,
		Logger:      logger,
		Progress: func(done, total int) {
			logger.Debug("progress", "done", done, "total", total)
		},
	})

	start := time.Now()
	results, err := eng.Iterate(ctx, sc, op.Run, payload)
	if err != nil {
		return nil, err
	}
	return models.NewRunReport(op.Name, cfg.RoleName, sc, results, time.Since(start)), nil
}

// writeReport renders report to the configured file, or to stdout.
func writeReport(stdout io.Writer, report *models.RunReport, oc config.OutputConfig) error {
	w := stdout
	if oc.File != "" {
		f, err := os.Create(oc.File)
		if err != nil {
			return fmt.Errorf("create report file %q: %w", oc.File, err)
		}
		defer f.Close()
		w = f
	}
	return output.Write(w, report, output.Options{Format: oc.Format, NoColor: oc.NoColor})
}
