package awsorg

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
)

// OrganizationsClient is the narrow directory interface the resolver needs.
// Embedding the SDK paginator interfaces lets every listing be drained with
// organizations.New*Paginator. *organizations.Client satisfies it.
type OrganizationsClient interface {
	organizations.ListRootsAPIClient
	organizations.ListAccountsForParentAPIClient
	organizations.ListOrganizationalUnitsForParentAPIClient
}

// RegionCatalog lists the regions available to the caller. *ec2.Client
// satisfies it.
type RegionCatalog interface {
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}
