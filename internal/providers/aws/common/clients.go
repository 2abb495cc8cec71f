package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// ---------------------------------------------------------------------------
// Management-account client interfaces
//
// Each interface covers only the operations this project calls on the base
// credentials. The real SDK clients satisfy them; tests substitute stubs.
// ---------------------------------------------------------------------------

// STSClient is the subset of STS used to identify the caller and to assume
// roles into member accounts.
type STSClient interface {
	GetCallerIdentity(
		ctx context.Context,
		params *sts.GetCallerIdentityInput,
		optFns ...func(*sts.Options),
	) (*sts.GetCallerIdentityOutput, error)

	AssumeRole(
		ctx context.Context,
		params *sts.AssumeRoleInput,
		optFns ...func(*sts.Options),
	) (*sts.AssumeRoleOutput, error)
}

// EC2RegionClient is the region catalog: DescribeRegions only.
type EC2RegionClient interface {
	DescribeRegions(
		ctx context.Context,
		params *ec2.DescribeRegionsInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeRegionsOutput, error)
}

// OrganizationsClient is the organization directory. The embedded paginator
// interfaces let callers drain every listing with the SDK paginators.
type OrganizationsClient interface {
	organizations.ListRootsAPIClient
	organizations.ListAccountsForParentAPIClient
	organizations.ListOrganizationalUnitsForParentAPIClient
}

// ---------------------------------------------------------------------------
// ClientSet and ClientFactory
// ---------------------------------------------------------------------------

// ClientSet holds the management-account clients for one region.
type ClientSet struct {
	STS           STSClient
	EC2           EC2RegionClient
	Organizations OrganizationsClient
}

// ClientFactory creates a ClientSet from an aws.Config.
// Swap this in tests to inject mock clients.
type ClientFactory func(cfg aws.Config) *ClientSet

// NewClientSet is the production ClientFactory.
func NewClientSet(cfg aws.Config) *ClientSet {
	return &ClientSet{
		STS:           sts.NewFromConfig(cfg),
		EC2:           ec2.NewFromConfig(cfg),
		Organizations: organizations.NewFromConfig(cfg),
	}
}
