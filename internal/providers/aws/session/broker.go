// Package awssession turns an (account, region) pair into a region-bound
// aws.Config carrying temporary credentials for that account.
package awssession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const (
	// DefaultSessionName is the RoleSessionName recorded in CloudTrail for
	// every assumed session.
	DefaultSessionName = "CrossAccountRole"

	// DefaultDuration is the STS minimum. A session serves exactly one cell.
	DefaultDuration = 15 * time.Minute
)

// ErrAssumeRoleFailed is matched by every *AssumeRoleError.
var ErrAssumeRoleFailed = errors.New("assume role failed")

// AssumeRoleError reports a failed role assumption into one account.
type AssumeRoleError struct {
	AccountID string
	RoleARN   string
	Err       error
}

func (e *AssumeRoleError) Error() string {
	return fmt.Sprintf("assume role %s in account %s: %v", e.RoleARN, e.AccountID, e.Err)
}

func (e *AssumeRoleError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrAssumeRoleFailed) match any AssumeRoleError.
func (e *AssumeRoleError) Is(target error) bool { return target == ErrAssumeRoleFailed }

// STSClient is the single STS call the broker needs. *sts.Client satisfies it.
type STSClient interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Session is a region-bound configuration for one account. It belongs to the
// task that acquired it and is never shared.
type Session struct {
	AccountID string
	Region    string
	Config    aws.Config
	Expires   time.Time
}

// Broker assumes a fixed role name in member accounts using the base
// credentials. It holds no per-account state; every Acquire re-assumes.
type Broker struct {
	sts         STSClient
	base        aws.Config
	partition   string
	roleName    string
	sessionName string
	duration    time.Duration
}

// Option configures a Broker.
type Option func(*Broker)

// WithSessionName overrides DefaultSessionName.
func WithSessionName(name string) Option {
	return func(b *Broker) {
		if name != "" {
			b.sessionName = name
		}
	}
}

// WithDuration overrides DefaultDuration.
func WithDuration(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.duration = d
		}
	}
}

// WithPartition sets the ARN partition, e.g. "aws-us-gov".
func WithPartition(p string) Option {
	return func(b *Broker) {
		if p != "" {
			b.partition = p
		}
	}
}

// NewBroker returns a Broker that assumes roleName through client. base is
// copied into every Session with its credentials and region replaced.
func NewBroker(client STSClient, base aws.Config, roleName string, opts ...Option) *Broker {
	b := &Broker{
		sts:         client,
		base:        base,
		partition:   "aws",
		roleName:    roleName,
		sessionName: DefaultSessionName,
		duration:    DefaultDuration,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RoleARN returns the role ARN assumed in accountID.
func (b *Broker) RoleARN(accountID string) string {
	return fmt.Sprintf("arn:%s:iam::%s:role/%s", b.partition, accountID, b.roleName)
}

// Acquire assumes the broker's role in accountID and binds the temporary
// credentials to region.
func (b *Broker) Acquire(ctx context.Context, accountID, region string) (*Session, error) {
	roleARN := b.RoleARN(accountID)
	fail := func(err error) (*Session, error) {
		return nil, &AssumeRoleError{AccountID: accountID, RoleARN: roleARN, Err: err}
	}

	if accountID == "" {
		return fail(errors.New("empty account id"))
	}
	if b.roleName == "" {
		return fail(errors.New("empty role name"))
	}

	out, err := b.sts.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(b.sessionName),
		DurationSeconds: aws.Int32(int32(b.duration / time.Second)),
	})
	if err != nil {
		return fail(err)
	}
	c := out.Credentials
	if c == nil || c.AccessKeyId == nil || c.SecretAccessKey == nil {
		return fail(errors.New("STS returned no credentials"))
	}

	cfg := b.base.Copy()
	cfg.Region = region
	cfg.Credentials = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		aws.ToString(c.AccessKeyId),
		aws.ToString(c.SecretAccessKey),
		aws.ToString(c.SessionToken),
	))

	return &Session{
		AccountID: accountID,
		Region:    region,
		Config:    cfg,
		Expires:   aws.ToTime(c.Expiration),
	}, nil
}
