package common

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// FallbackRegion is used when neither the caller nor the profile names one.
const FallbackRegion = "us-east-1"

// DefaultAWSClientProvider is the production AWSClientProvider. It reads the
// standard shared config and credentials files through the AWS SDK v2.
type DefaultAWSClientProvider struct {
	factory ClientFactory
}

// NewDefaultAWSClientProvider returns a provider backed by the real AWS SDK.
func NewDefaultAWSClientProvider() *DefaultAWSClientProvider {
	return &DefaultAWSClientProvider{factory: NewClientSet}
}

// NewDefaultAWSClientProviderWithFactory returns a provider that uses f to
// create its ClientSet. Pass a mock factory in tests.
func NewDefaultAWSClientProviderWithFactory(f ClientFactory) *DefaultAWSClientProvider {
	return &DefaultAWSClientProvider{factory: f}
}

// ---------------------------------------------------------------------------
// AWSClientProvider implementation
// ---------------------------------------------------------------------------

// LoadProfile loads the SDK config for profile, pins it to region and
// resolves the caller identity.
func (p *DefaultAWSClientProvider) LoadProfile(ctx context.Context, profile, region string) (*ProfileConfig, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS profile %q: %w", profileDisplayName(profile), err)
	}
	if cfg.Region == "" {
		cfg.Region = FallbackRegion
	}

	return p.bind(ctx, profile, cfg)
}

// bind attaches clients to cfg and resolves the caller. Split from
// LoadProfile so tests can exercise it without shared config files.
func (p *DefaultAWSClientProvider) bind(ctx context.Context, profile string, cfg aws.Config) (*ProfileConfig, error) {
	clients := p.factory(cfg)

	ident, err := callerIdentity(ctx, clients.STS)
	if err != nil {
		return nil, fmt.Errorf("resolve caller for profile %q: %w", profileDisplayName(profile), err)
	}

	return &ProfileConfig{
		ProfileName: profileDisplayName(profile),
		AccountID:   aws.ToString(ident.Account),
		CallerARN:   aws.ToString(ident.Arn),
		Region:      cfg.Region,
		Config:      cfg,
		Clients:     clients,
	}, nil
}

// ListProfiles returns the sorted, de-duplicated profile names found in
// ~/.aws/credentials and ~/.aws/config.
func (p *DefaultAWSClientProvider) ListProfiles() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	return profilesIn(
		filepath.Join(home, ".aws", "credentials"),
		filepath.Join(home, ".aws", "config"),
	)
}

// ConfigForRegion returns a copy of cfg.Config with Region set to region.
func (p *DefaultAWSClientProvider) ConfigForRegion(cfg *ProfileConfig, region string) aws.Config {
	regional := cfg.Config
	regional.Region = region
	return regional
}

// ---------------------------------------------------------------------------
// Package-private helpers
// ---------------------------------------------------------------------------

func profileDisplayName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}

// callerIdentity calls STS GetCallerIdentity and insists on an account id.
func callerIdentity(ctx context.Context, client STSClient) (*sts.GetCallerIdentityOutput, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("STS GetCallerIdentity: %w", err)
	}
	if out.Account == nil {
		return nil, errors.New("STS GetCallerIdentity returned nil account")
	}
	return out, nil
}

// profilesIn collects INI section names from the given shared files. The
// "profile " prefix used by ~/.aws/config is stripped. Missing files are
// skipped.
func profilesIn(paths ...string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, path := range paths {
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if len(line) < 3 || line[0] != '[' || line[len(line)-1] != ']' {
				continue
			}
			name := strings.TrimSpace(strings.TrimPrefix(line[1:len(line)-1], "profile "))
			if name != "" && !strings.HasPrefix(name, "sso-session ") {
				seen[name] = struct{}{}
			}
		}
		scanErr := scanner.Err()
		f.Close()
		if scanErr != nil {
			return nil, fmt.Errorf("scan %s: %w", path, scanErr)
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
