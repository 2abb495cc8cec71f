package awsorg

import "errors"

var (
	// ErrDirectoryUnavailable is returned when a call to the organization
	// directory fails during resolution.
	ErrDirectoryUnavailable = errors.New("organization directory unavailable")

	// ErrRegionCatalogUnavailable is returned when the region catalog cannot
	// be listed.
	ErrRegionCatalogUnavailable = errors.New("region catalog unavailable")

	// ErrScopeTooDeep is returned when OU expansion exceeds the configured
	// depth or node limit.
	ErrScopeTooDeep = errors.New("organizational unit hierarchy too deep")
)
