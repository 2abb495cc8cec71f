package awsorg

// AccountSpec selects accounts for a sweep. It is one of ExplicitAccounts,
// OrganizationalUnits or AllAccounts.
type AccountSpec interface {
	accountSpec()
}

// ExplicitAccounts adds the listed account ids as given, without checking
// that they exist.
type ExplicitAccounts []string

// OrganizationalUnits expands each OU (or root) id into every account below it.
type OrganizationalUnits []string

// AllAccounts expands the organization root.
type AllAccounts struct{}

func (ExplicitAccounts) accountSpec()    {}
func (OrganizationalUnits) accountSpec() {}
func (AllAccounts) accountSpec()         {}

// RegionSpec selects regions for a sweep. It is one of ExplicitRegions or
// AllRegions.
type RegionSpec interface {
	regionSpec()
}

// ExplicitRegions adds the listed region names as given.
type ExplicitRegions []string

// AllRegions asks the region catalog. With no OptInStatus only regions
// enabled for the caller are returned.
type AllRegions struct {
	OptInStatus []string
}

func (ExplicitRegions) regionSpec() {}
func (AllRegions) regionSpec()      {}
