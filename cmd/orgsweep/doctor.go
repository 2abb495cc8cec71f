package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/config"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/scope"
)

// DoctorResult is the structured output of orgsweep doctor. It can be
// serialised to JSON via --format=json or rendered as text (default).
type DoctorResult struct {
	AWS struct {
		Profile     string `json:"profile,omitempty"`
		Credentials bool   `json:"credentials_ok"`
		AccountID   string `json:"account_id,omitempty"`
		CallerARN   string `json:"caller_arn,omitempty"`
		Error       string `json:"error,omitempty"`
	} `json:"aws"`

	Organization struct {
		Reachable bool   `json:"reachable"`
		RootID    string `json:"root_id,omitempty"`
		Error     string `json:"error,omitempty"`
	} `json:"organization"`

	Regions struct {
		OK      bool   `json:"ok"`
		Enabled int    `json:"enabled"`
		Error   string `json:"error,omitempty"`
	} `json:"regions"`

	Config struct {
		Path   string   `json:"path,omitempty"`
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors,omitempty"`
	} `json:"config"`

	Scope struct {
		Present bool     `json:"present"`
		Valid   bool     `json:"valid"`
		Errors  []string `json:"errors,omitempty"`
	} `json:"scope"`

	OverallHealthy bool `json:"overall_healthy"`
}

func (a *app) newDoctorCmd() *cobra.Command {
	var scopeFile string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check credentials, organization access, region catalog, config and scope file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := a.cfg.Output.Format
			result, err := runDoctor(cmd.Context(), a.provider, a.cfg, a.manager.ConfigPath(), scopeFile, cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			if !result.OverallHealthy {
				os.Exit(exitError)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scopeFile, "scope-file", "", "scope file to validate")
	return cmd
}

// runDoctor collects every diagnostic, renders it to w and returns it. The
// error covers rendering only; callers inspect OverallHealthy.
func runDoctor(ctx context.Context, provider common.AWSClientProvider, cfg *config.Config, cfgPath, scopeFile string, w io.Writer, format string) (DoctorResult, error) {
	result := collectDoctorResult(ctx, provider, cfg, cfgPath, scopeFile)

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return result, fmt.Errorf("encode doctor result: %w", err)
		}
	default:
		renderDoctor(result, w)
	}
	return result, nil
}

// collectDoctorResult runs every check. Network checks stop at the first
// failure in the chain credentials → organization → regions.
func collectDoctorResult(ctx context.Context, provider common.AWSClientProvider, cfg *config.Config, cfgPath, scopeFile string) DoctorResult {
	var result DoctorResult

	result.Config.Path = cfgPath
	if errs := cfg.Validate(); len(errs) == 0 {
		result.Config.Valid = true
	} else {
		for _, e := range errs {
			result.Config.Errors = append(result.Config.Errors, e.Error())
		}
	}

	if scopeFile != "" {
		result.Scope.Present = true
		f, err := scope.Load(scopeFile)
		if err != nil {
			result.Scope.Errors = []string{err.Error()}
		} else if errs := scope.Validate(f); len(errs) > 0 {
			for _, e := range errs {
				result.Scope.Errors = append(result.Scope.Errors, e.Error())
			}
		} else {
			result.Scope.Valid = true
		}
	}

	result.AWS.Profile = cfg.Profile
	base, err := provider.LoadProfile(ctx, cfg.Profile, cfg.OrgRegion)
	if err != nil {
		result.AWS.Error = err.Error()
	} else {
		result.AWS.Credentials = true
		result.AWS.AccountID = base.AccountID
		result.AWS.CallerARN = base.CallerARN

		roots, err := base.Clients.Organizations.ListRoots(ctx, &organizations.ListRootsInput{})
		switch {
		case err != nil:
			result.Organization.Error = err.Error()
		case len(roots.Roots) == 0:
			result.Organization.Error = "no organization root returned"
		default:
			result.Organization.Reachable = true
			result.Organization.RootID = aws.ToString(roots.Roots[0].Id)
		}

		regions, err := base.Clients.EC2.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
		if err != nil {
			result.Regions.Error = err.Error()
		} else {
			result.Regions.OK = true
			result.Regions.Enabled = len(regions.Regions)
		}
	}

	result.OverallHealthy = result.AWS.Credentials &&
		result.Organization.Reachable &&
		result.Regions.OK &&
		result.Config.Valid &&
		(!result.Scope.Present || result.Scope.Valid)

	return result
}

// renderDoctor writes the human-readable diagnostic output to w.
func renderDoctor(result DoctorResult, w io.Writer) {
	fmt.Fprintln(w, "Environment Diagnostics")

	if result.AWS.Profile != "" {
		fmt.Fprintf(w, "\nAWS (profile: %s):\n", result.AWS.Profile)
	} else {
		fmt.Fprintln(w, "\nAWS:")
	}
	if !result.AWS.Credentials {
		doctorPrint(w, "Credentials", "FAIL", result.AWS.Error)
		doctorPrint(w, "Organization", "FAIL", "skipped")
		doctorPrint(w, "Region catalog", "FAIL", "skipped")
	} else {
		doctorPrint(w, "Credentials", "OK", result.AWS.CallerARN)
		if result.Organization.Reachable {
			doctorPrint(w, "Organization", "OK", "Root: "+result.Organization.RootID)
		} else {
			doctorPrint(w, "Organization", "FAIL", result.Organization.Error)
		}
		if result.Regions.OK {
			doctorPrint(w, "Region catalog", "OK", fmt.Sprintf("%d enabled", result.Regions.Enabled))
		} else {
			doctorPrint(w, "Region catalog", "FAIL", result.Regions.Error)
		}
	}

	fmt.Fprintln(w, "\nConfig:")
	path := result.Config.Path
	if path == "" {
		path = "none (defaults)"
	}
	doctorPrint(w, "File", path, "")
	if result.Config.Valid {
		doctorPrint(w, "Config valid", "OK", "")
	} else {
		for _, e := range result.Config.Errors {
			doctorPrint(w, "Config valid", "FAIL", e)
		}
	}

	fmt.Fprintln(w, "\nScope file:")
	switch {
	case !result.Scope.Present:
		doctorPrint(w, "Scope file", "Not given (optional)", "")
	case result.Scope.Valid:
		doctorPrint(w, "Scope valid", "OK", "")
	default:
		for _, e := range result.Scope.Errors {
			doctorPrint(w, "Scope valid", "FAIL", e)
		}
	}
}

// doctorPrint writes one check line. A non-empty detail is appended in
// parentheses.
func doctorPrint(w io.Writer, label, status, detail string) {
	if detail != "" {
		fmt.Fprintf(w, "  %s: %s (%s)\n", label, status, detail)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", label, status)
	}
}
