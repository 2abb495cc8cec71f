package models

import "sort"

// StringSet is an unordered set of strings with union semantics.
// The zero value is not usable; call NewStringSet.
type StringSet map[string]struct{}

// NewStringSet returns a set containing values. Empty strings are ignored.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	s.Add(values...)
	return s
}

// Add unions values into the set. Adding an existing member is a no-op and
// empty strings are skipped.
func (s StringSet) Add(values ...string) {
	for _, v := range values {
		if v == "" {
			continue
		}
		s[v] = struct{}{}
	}
}

// Has reports whether v is a member of the set.
func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Len returns the number of members.
func (s StringSet) Len() int {
	return len(s)
}

// Sorted returns the members in ascending order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the set.
func (s StringSet) Clone() StringSet {
	c := make(StringSet, len(s))
	for v := range s {
		c[v] = struct{}{}
	}
	return c
}

// Equal reports whether both sets hold exactly the same members.
func (s StringSet) Equal(other StringSet) bool {
	if len(s) != len(other) {
		return false
	}
	for v := range s {
		if !other.Has(v) {
			return false
		}
	}
	return true
}

// Cell is a single (account, region) pair: the unit of work and of reporting.
type Cell struct {
	AccountID string `json:"account_id" yaml:"account_id"`
	Region    string `json:"region"     yaml:"region"`
}

// Scope is the resolved cross-product domain an iteration runs over.
// It only ever grows during resolution and is treated as read-only once an
// iteration starts.
type Scope struct {
	Accounts StringSet
	Regions  StringSet
}

// NewScope returns a Scope holding the given accounts and regions.
func NewScope(accounts, regions []string) Scope {
	return Scope{
		Accounts: NewStringSet(accounts...),
		Regions:  NewStringSet(regions...),
	}
}

// Empty reports whether either side of the cross-product is empty, in which
// case there is nothing to iterate.
func (s Scope) Empty() bool {
	return s.Accounts.Len() == 0 || s.Regions.Len() == 0
}

// Size returns the number of cells in the cross-product.
func (s Scope) Size() int {
	return s.Accounts.Len() * s.Regions.Len()
}

// Cells returns every (account, region) pair, sorted by account then region.
func (s Scope) Cells() []Cell {
	accounts := s.Accounts.Sorted()
	regions := s.Regions.Sorted()
	cells := make([]Cell, 0, len(accounts)*len(regions))
	for _, a := range accounts {
		for _, r := range regions {
			cells = append(cells, Cell{AccountID: a, Region: r})
		}
	}
	return cells
}

// Clone returns a deep copy so later mutation of either side cannot leak into
// the other.
func (s Scope) Clone() Scope {
	c := Scope{Accounts: NewStringSet(), Regions: NewStringSet()}
	if s.Accounts != nil {
		c.Accounts = s.Accounts.Clone()
	}
	if s.Regions != nil {
		c.Regions = s.Regions.Clone()
	}
	return c
}
