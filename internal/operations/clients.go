package operations

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	cloudtrailsvc "github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	configsvc "github.com/aws/aws-sdk-go-v2/service/configservice"
	ce "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"
	rdssvc "github.com/aws/aws-sdk-go-v2/service/rds"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
)

// ---------------------------------------------------------------------------
// Narrow client interfaces
//
// Each interface lists only the SDK operations an operation calls. The real
// clients satisfy them; tests replace any field of opClients with a stub.
// Embedded *APIClient interfaces enable the SDK v2 paginators.
// ---------------------------------------------------------------------------

type guardDutyAPIClient interface {
	ListDetectors(ctx context.Context, params *guardduty.ListDetectorsInput, optFns ...func(*guardduty.Options)) (*guardduty.ListDetectorsOutput, error)
	GetDetector(ctx context.Context, params *guardduty.GetDetectorInput, optFns ...func(*guardduty.Options)) (*guardduty.GetDetectorOutput, error)
	ListCoverage(ctx context.Context, params *guardduty.ListCoverageInput, optFns ...func(*guardduty.Options)) (*guardduty.ListCoverageOutput, error)
}

type configAPIClient interface {
	DescribeConfigurationRecorderStatus(ctx context.Context, params *configsvc.DescribeConfigurationRecorderStatusInput, optFns ...func(*configsvc.Options)) (*configsvc.DescribeConfigurationRecorderStatusOutput, error)
}

type cloudTrailAPIClient interface {
	DescribeTrails(ctx context.Context, params *cloudtrailsvc.DescribeTrailsInput, optFns ...func(*cloudtrailsvc.Options)) (*cloudtrailsvc.DescribeTrailsOutput, error)
}

// ec2APIClient covers security groups, volumes and instances.
type ec2APIClient interface {
	ec2svc.DescribeSecurityGroupsAPIClient
	ec2svc.DescribeVolumesAPIClient
	ec2svc.DescribeInstancesAPIClient
}

type rdsAPIClient interface {
	rdssvc.DescribeDBInstancesAPIClient
}

type elbAPIClient interface {
	elbv2.DescribeLoadBalancersAPIClient
}

type iamAPIClient interface {
	iamsvc.ListUsersAPIClient
	ListMFADevices(ctx context.Context, params *iamsvc.ListMFADevicesInput, optFns ...func(*iamsvc.Options)) (*iamsvc.ListMFADevicesOutput, error)
	GetLoginProfile(ctx context.Context, params *iamsvc.GetLoginProfileInput, optFns ...func(*iamsvc.Options)) (*iamsvc.GetLoginProfileOutput, error)
}

type s3APIClient interface {
	ListBuckets(ctx context.Context, params *s3svc.ListBucketsInput, optFns ...func(*s3svc.Options)) (*s3svc.ListBucketsOutput, error)
	GetBucketPolicyStatus(ctx context.Context, params *s3svc.GetBucketPolicyStatusInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketPolicyStatusOutput, error)
	GetBucketEncryption(ctx context.Context, params *s3svc.GetBucketEncryptionInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketEncryptionOutput, error)
}

// cloudWatchAPIClient is regional; metrics are read in the cell's region.
type cloudWatchAPIClient interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// costExplorerAPIClient is global; the factory pins it to us-east-1.
type costExplorerAPIClient interface {
	GetCostAndUsage(ctx context.Context, params *ce.GetCostAndUsageInput, optFns ...func(*ce.Options)) (*ce.GetCostAndUsageOutput, error)
}

// ---------------------------------------------------------------------------
// opClients and factory
// ---------------------------------------------------------------------------

// opClients bundles the service clients for one cell.
type opClients struct {
	GuardDuty  guardDutyAPIClient
	Config     configAPIClient
	CloudTrail cloudTrailAPIClient
	EC2        ec2APIClient
	RDS        rdsAPIClient
	ELB        elbAPIClient
	IAM        iamAPIClient
	S3         s3APIClient
	CW         cloudWatchAPIClient
	CE         costExplorerAPIClient
}

// clientFactory creates opClients from a cell session's aws.Config.
// Injection point: tests return fakes.
type clientFactory func(cfg aws.Config) *opClients

// costExplorerRegion is the only endpoint Cost Explorer serves.
const costExplorerRegion = "us-east-1"

// newDefaultClients is the production clientFactory.
func newDefaultClients(cfg aws.Config) *opClients {
	ceCfg := cfg.Copy()
	ceCfg.Region = costExplorerRegion
	return &opClients{
		GuardDuty:  guardduty.NewFromConfig(cfg),
		Config:     configsvc.NewFromConfig(cfg),
		CloudTrail: cloudtrailsvc.NewFromConfig(cfg),
		EC2:        ec2svc.NewFromConfig(cfg),
		RDS:        rdssvc.NewFromConfig(cfg),
		ELB:        elbv2.NewFromConfig(cfg),
		IAM:        iamsvc.NewFromConfig(cfg),
		S3:         s3svc.NewFromConfig(cfg),
		CW:         cloudwatch.NewFromConfig(cfg),
		CE:         ce.NewFromConfig(ceCfg),
	}
}
