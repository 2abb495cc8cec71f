// Package awsorg resolves account and region selections into the Scope an
// iteration runs over. It reads the AWS Organizations hierarchy and the EC2
// region catalog through narrow client interfaces.
package awsorg

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/models"
)

const (
	// DefaultMaxDepth bounds OU nesting below a starting id. AWS allows five
	// levels; the slack covers roots passed as OU ids.
	DefaultMaxDepth = 32

	// DefaultMaxNodes bounds the number of OUs visited in one expansion.
	DefaultMaxNodes = 10000
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for resolution progress.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMaxDepth overrides DefaultMaxDepth. Non-positive values are ignored.
func WithMaxDepth(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxDepth = n
		}
	}
}

// WithMaxNodes overrides DefaultMaxNodes. Non-positive values are ignored.
func WithMaxNodes(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxNodes = n
		}
	}
}

// WithActiveOnly skips accounts whose status is not ACTIVE.
func WithActiveOnly() Option {
	return func(r *Resolver) { r.activeOnly = true }
}

// Resolver accumulates a Scope by union. All methods are safe for concurrent
// use, though resolution normally runs sequentially before iteration.
type Resolver struct {
	org     OrganizationsClient
	regions RegionCatalog
	log     *slog.Logger

	maxDepth   int
	maxNodes   int
	activeOnly bool

	mu    sync.Mutex
	scope models.Scope
}

// NewResolver returns a Resolver with an empty scope. Either client may be
// nil when the caller only uses explicit selections.
func NewResolver(org OrganizationsClient, regions RegionCatalog, opts ...Option) *Resolver {
	r := &Resolver{
		org:      org,
		regions:  regions,
		log:      slog.Default(),
		maxDepth: DefaultMaxDepth,
		maxNodes: DefaultMaxNodes,
		scope:    models.NewScope(nil, nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scope returns a copy of the scope resolved so far.
func (r *Resolver) Scope() models.Scope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scope.Clone()
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

// AddAccounts unions ids into the account set.
func (r *Resolver) AddAccounts(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scope.Accounts.Add(ids...)
}

// ResolveAllAccounts expands the first organization root.
func (r *Resolver) ResolveAllAccounts(ctx context.Context) error {
	if r.org == nil {
		return fmt.Errorf("%w: no organizations client", ErrDirectoryUnavailable)
	}

	p := organizations.NewListRootsPaginator(r.org, &organizations.ListRootsInput{})
	page, err := p.NextPage(ctx)
	if err != nil {
		return fmt.Errorf("%w: list roots: %w", ErrDirectoryUnavailable, err)
	}
	if len(page.Roots) == 0 {
		return fmt.Errorf("%w: organization has no root", ErrDirectoryUnavailable)
	}

	rootID := aws.ToString(page.Roots[0].Id)
	r.log.Debug("expanding organization root", "root", rootID)
	return r.AddOUs(ctx, rootID)
}

// ouNode is one entry of the expansion queue.
type ouNode struct {
	id    string
	depth int
}

// AddOUs unions every account contained, at any depth, in the given OUs or
// roots. Expansion is breadth-first over an explicit queue; an OU reachable
// twice is listed once. Accounts are committed only if the whole expansion
// succeeds.
func (r *Resolver) AddOUs(ctx context.Context, ouIDs ...string) error {
	if len(ouIDs) == 0 {
		return nil
	}
	if r.org == nil {
		return fmt.Errorf("%w: no organizations client", ErrDirectoryUnavailable)
	}

	queue := make([]ouNode, 0, len(ouIDs))
	for _, id := range ouIDs {
		if id != "" {
			queue = append(queue, ouNode{id: id})
		}
	}

	found := models.NewStringSet()
	visited := make(map[string]struct{})

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if _, seen := visited[node.id]; seen {
			continue
		}
		if node.depth > r.maxDepth {
			return fmt.Errorf("%w: %s is nested more than %d levels deep", ErrScopeTooDeep, node.id, r.maxDepth)
		}
		visited[node.id] = struct{}{}
		if len(visited) > r.maxNodes {
			return fmt.Errorf("%w: more than %d organizational units", ErrScopeTooDeep, r.maxNodes)
		}

		accounts, err := r.accountsIn(ctx, node.id)
		if err != nil {
			return err
		}
		found.Add(accounts...)

		children, err := r.childOUs(ctx, node.id)
		if err != nil {
			return err
		}
		for _, child := range children {
			queue = append(queue, ouNode{id: child, depth: node.depth + 1})
		}
	}

	r.log.Debug("expanded organizational units",
		"starting_ids", len(ouIDs),
		"visited", len(visited),
		"accounts", found.Len(),
	)

	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range found {
		r.scope.Accounts.Add(id)
	}
	return nil
}

// accountsIn drains ListAccountsForParent for parentID.
func (r *Resolver) accountsIn(ctx context.Context, parentID string) ([]string, error) {
	p := organizations.NewListAccountsForParentPaginator(r.org, &organizations.ListAccountsForParentInput{
		ParentId: aws.String(parentID),
	})

	var ids []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list accounts for %s: %w", ErrDirectoryUnavailable, parentID, err)
		}
		for _, acct := range page.Accounts {
			if r.activeOnly && acct.Status != orgtypes.AccountStatusActive {
				continue
			}
			ids = append(ids, aws.ToString(acct.Id))
		}
	}
	return ids, nil
}

// childOUs drains ListOrganizationalUnitsForParent for parentID.
func (r *Resolver) childOUs(ctx context.Context, parentID string) ([]string, error) {
	p := organizations.NewListOrganizationalUnitsForParentPaginator(r.org, &organizations.ListOrganizationalUnitsForParentInput{
		ParentId: aws.String(parentID),
	})

	var ids []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list organizational units for %s: %w", ErrDirectoryUnavailable, parentID, err)
		}
		for _, ou := range page.OrganizationalUnits {
			ids = append(ids, aws.ToString(ou.Id))
		}
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// Regions
// ---------------------------------------------------------------------------

// AddRegions unions names into the region set.
func (r *Resolver) AddRegions(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scope.Regions.Add(names...)
}

// ResolveAllRegions unions regions from the catalog. With optInStatus the
// catalog is queried across all regions and filtered on opt-in-status;
// without it only regions enabled for the caller are returned.
func (r *Resolver) ResolveAllRegions(ctx context.Context, optInStatus ...string) error {
	if r.regions == nil {
		return fmt.Errorf("%w: no region catalog client", ErrRegionCatalogUnavailable)
	}

	input := &ec2.DescribeRegionsInput{}
	if len(optInStatus) > 0 {
		input.AllRegions = aws.Bool(true)
		input.Filters = []ec2types.Filter{{
			Name:   aws.String("opt-in-status"),
			Values: optInStatus,
		}}
	}

	out, err := r.regions.DescribeRegions(ctx, input)
	if err != nil {
		return fmt.Errorf("%w: describe regions: %w", ErrRegionCatalogUnavailable, err)
	}

	names := make([]string, 0, len(out.Regions))
	for _, reg := range out.Regions {
		names = append(names, aws.ToString(reg.RegionName))
	}
	r.log.Debug("resolved region catalog", "regions", len(names), "opt_in_status", optInStatus)
	r.AddRegions(names...)
	return nil
}

// ---------------------------------------------------------------------------
// Tagged selections
// ---------------------------------------------------------------------------

// Apply resolves one account selection into the scope.
func (r *Resolver) Apply(ctx context.Context, spec AccountSpec) error {
	switch s := spec.(type) {
	case ExplicitAccounts:
		r.AddAccounts(s...)
		return nil
	case OrganizationalUnits:
		return r.AddOUs(ctx, s...)
	case AllAccounts:
		return r.ResolveAllAccounts(ctx)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported account selection %T", spec)
	}
}

// ApplyRegions resolves one region selection into the scope.
func (r *Resolver) ApplyRegions(ctx context.Context, spec RegionSpec) error {
	switch s := spec.(type) {
	case ExplicitRegions:
		r.AddRegions(s...)
		return nil
	case AllRegions:
		return r.ResolveAllRegions(ctx, s.OptInStatus...)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported region selection %T", spec)
	}
}
