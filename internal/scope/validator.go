package scope

import (
	"fmt"
	"regexp"
)

var (
	accountIDPattern = regexp.MustCompile(`^\d{12}$`)
	ouIDPattern      = regexp.MustCompile(`^(ou-[0-9a-z]{4,32}-[a-z0-9]{8,32}|r-[0-9a-z]{4,32})$`)
	regionPattern    = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d+$`)
)

// validOptInStatus is the set of values the region catalog accepts for the
// opt-in-status filter.
var validOptInStatus = map[string]struct{}{
	"opt-in-not-required": {},
	"opted-in":            {},
	"not-opted-in":        {},
}

// Validate checks f and returns every problem found. An empty slice means
// the scope is usable.
//
// Checks performed:
//   - version must be 1
//   - at least one account selector and one region selector
//   - account ids are 12 digits, OU ids look like ou-… or r-…
//   - region names look like us-east-1
//   - opt_in_status values are known and only set with all_regions
func Validate(f *File) []error {
	if f == nil {
		return []error{fmt.Errorf("%w: scope is nil", ErrScopeSpecification)}
	}

	var errs []error

	if f.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("version: unsupported value %d; must be %d", f.Version, CurrentVersion))
	}
	if !f.HasAccounts() {
		errs = append(errs, fmt.Errorf("%w: one of accounts, ous or all_accounts is required", ErrScopeSpecification))
	}
	if !f.HasRegions() {
		errs = append(errs, fmt.Errorf("%w: one of regions or all_regions is required", ErrScopeSpecification))
	}

	for i, id := range f.Accounts {
		if !accountIDPattern.MatchString(id) {
			errs = append(errs, fmt.Errorf("accounts[%d]: invalid account id %q", i, id))
		}
	}
	for i, id := range f.OUs {
		if !ouIDPattern.MatchString(id) {
			errs = append(errs, fmt.Errorf("ous[%d]: invalid OU or root id %q", i, id))
		}
	}
	for i, r := range f.Regions {
		if !regionPattern.MatchString(r) {
			errs = append(errs, fmt.Errorf("regions[%d]: invalid region name %q", i, r))
		}
	}
	for i, s := range f.OptInStatus {
		if _, ok := validOptInStatus[s]; !ok {
			errs = append(errs, fmt.Errorf("opt_in_status[%d]: invalid value %q; valid values: opt-in-not-required, opted-in, not-opted-in", i, s))
		}
	}
	if len(f.OptInStatus) > 0 && !f.AllRegions {
		errs = append(errs, fmt.Errorf("opt_in_status: only applies with all_regions"))
	}

	return errs
}
