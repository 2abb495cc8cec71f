package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// ProfileConfig is the management-account configuration every sweep starts
// from. Its credentials are the ones used to read the organization directory
// and to call STS AssumeRole into member accounts.
type ProfileConfig struct {
	// ProfileName is the name from ~/.aws/config or "default".
	ProfileName string

	// AccountID is the caller's account, resolved via STS.
	AccountID string

	// CallerARN is the identity the base credentials resolve to.
	CallerARN string

	// Region is the home region of the base configuration. Organizations and
	// STS calls go here.
	Region string

	// Config is the fully loaded AWS SDK v2 configuration.
	Config aws.Config

	// Clients holds management-account clients bound to Region.
	Clients *ClientSet
}

// AWSClientProvider loads the base AWS configuration for a sweep.
//
// Implementations must use the AWS SDK v2 only. Never call the aws CLI.
type AWSClientProvider interface {
	// LoadProfile returns a ProfileConfig for the named profile bound to
	// region. Empty profile means the default credential chain; empty region
	// falls back to the profile's region, then us-east-1.
	LoadProfile(ctx context.Context, profile, region string) (*ProfileConfig, error)

	// ListProfiles returns every profile name declared in the shared
	// credentials and config files.
	ListProfiles() ([]string, error)

	// ConfigForRegion clones cfg with the target region set.
	ConfigForRegion(cfg *ProfileConfig, region string) aws.Config
}
