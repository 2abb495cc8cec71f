// Package scope describes which accounts and regions a sweep covers, either
// from a YAML scope file or from command-line flags, and turns that
// description into resolver specs.
package scope

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	awsorg "github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/organizations"
)

// ErrScopeSpecification is returned when a sweep names no accounts or no
// regions. It is raised before any network call.
var ErrScopeSpecification = errors.New("scope specification")

// CurrentVersion is the only scope file version understood.
const CurrentVersion = 1

// File is the on-disk scope description.
//
//	version: 1
//	accounts: ["111111111111"]
//	ous: ["ou-abcd-11111111", "r-abcd"]
//	all_accounts: false
//	regions: ["us-east-1"]
//	all_regions: false
//	opt_in_status: ["opt-in-not-required", "opted-in"]
type File struct {
	Version     int      `yaml:"version"`
	Accounts    []string `yaml:"accounts,omitempty"`
	OUs         []string `yaml:"ous,omitempty"`
	AllAccounts bool     `yaml:"all_accounts,omitempty"`
	Regions     []string `yaml:"regions,omitempty"`
	AllRegions  bool     `yaml:"all_regions,omitempty"`
	OptInStatus []string `yaml:"opt_in_status,omitempty"`
}

// Load reads and parses a scope file. Structural checks beyond the version
// are left to Validate.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scope file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scope file %s: %w", path, err)
	}
	if f.Version != CurrentVersion {
		return nil, fmt.Errorf("scope file %s: unsupported version %d", path, f.Version)
	}
	return &f, nil
}

// FromFlags builds a File from comma-separated flag values. Blank entries
// are dropped.
func FromFlags(accountIDs, ous string, allAccounts bool, regions string, allRegions bool, optInStatus []string) *File {
	return &File{
		Version:     CurrentVersion,
		Accounts:    splitList(accountIDs),
		OUs:         splitList(ous),
		AllAccounts: allAccounts,
		Regions:     splitList(regions),
		AllRegions:  allRegions,
		OptInStatus: optInStatus,
	}
}

// Merge returns a copy of f with other's selections added. Flags given on
// the command line widen a scope file; they never narrow it.
func (f *File) Merge(other *File) *File {
	out := *f
	if other == nil {
		return &out
	}
	out.Accounts = append(append([]string(nil), f.Accounts...), other.Accounts...)
	out.OUs = append(append([]string(nil), f.OUs...), other.OUs...)
	out.Regions = append(append([]string(nil), f.Regions...), other.Regions...)
	out.OptInStatus = append(append([]string(nil), f.OptInStatus...), other.OptInStatus...)
	out.AllAccounts = f.AllAccounts || other.AllAccounts
	out.AllRegions = f.AllRegions || other.AllRegions
	return &out
}

// HasAccounts reports whether any account selector is set.
func (f *File) HasAccounts() bool {
	return f.AllAccounts || len(f.Accounts) > 0 || len(f.OUs) > 0
}

// HasRegions reports whether any region selector is set.
func (f *File) HasRegions() bool {
	return f.AllRegions || len(f.Regions) > 0
}

// Specs converts f into resolver specs. Explicit accounts and OUs are kept
// alongside AllAccounts; the resolver unions them. AllRegions wins over an
// explicit region list since it is a superset of every enabled region.
func (f *File) Specs() ([]awsorg.AccountSpec, awsorg.RegionSpec, error) {
	if !f.HasAccounts() {
		return nil, nil, fmt.Errorf("%w: you must specify either --all-accounts, --account-ids, or --ous", ErrScopeSpecification)
	}
	if !f.HasRegions() {
		return nil, nil, fmt.Errorf("%w: you must specify either --all-regions or --regions", ErrScopeSpecification)
	}

	var accounts []awsorg.AccountSpec
	if f.AllAccounts {
		accounts = append(accounts, awsorg.AllAccounts{})
	}
	if len(f.Accounts) > 0 {
		accounts = append(accounts, awsorg.ExplicitAccounts(f.Accounts))
	}
	if len(f.OUs) > 0 {
		accounts = append(accounts, awsorg.OrganizationalUnits(f.OUs))
	}

	var regions awsorg.RegionSpec = awsorg.ExplicitRegions(f.Regions)
	if f.AllRegions {
		regions = awsorg.AllRegions{OptInStatus: f.OptInStatus}
	}
	return accounts, regions, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
