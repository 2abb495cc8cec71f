package awssession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
)

// ── fake STS ─────────────────────────────────────────────────────────────────

type fakeSTS struct {
	mu     sync.Mutex
	inputs []*sts.AssumeRoleInput
	deny   map[string]bool // role ARN → AccessDenied
	noCred bool
}

func (f *fakeSTS) AssumeRole(_ context.Context, in *sts.AssumeRoleInput, _ ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()

	if f.deny[aws.ToString(in.RoleArn)] {
		return nil, errors.New("AccessDenied: not authorized to perform sts:AssumeRole")
	}
	if f.noCred {
		return &sts.AssumeRoleOutput{}, nil
	}
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return &sts.AssumeRoleOutput{Credentials: &ststypes.Credentials{
		AccessKeyId:     aws.String("ASIAEXAMPLE"),
		SecretAccessKey: aws.String("secret"),
		SessionToken:    aws.String("token"),
		Expiration:      &exp,
	}}, nil
}

// ── Acquire ──────────────────────────────────────────────────────────────────

func TestAcquire_BuildsRegionBoundSession(t *testing.T) {
	fake := &fakeSTS{}
	b := NewBroker(fake, aws.Config{Region: "us-east-1"}, "OrgAuditor")

	s, err := b.Acquire(context.Background(), "111111111111", "eu-central-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Config.Region != "eu-central-1" {
		t.Errorf("Region = %q; want eu-central-1", s.Config.Region)
	}
	if s.AccountID != "111111111111" {
		t.Errorf("AccountID = %q", s.AccountID)
	}
	if want := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC); !s.Expires.Equal(want) {
		t.Errorf("Expires = %s; want %s", s.Expires, want)
	}

	creds, err := s.Config.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve credentials: %v", err)
	}
	if creds.AccessKeyID != "ASIAEXAMPLE" || creds.SessionToken != "token" {
		t.Errorf("credentials = %+v; want the assumed ones", creds)
	}

	in := fake.inputs[0]
	if got := aws.ToString(in.RoleArn); got != "arn:aws:iam::111111111111:role/OrgAuditor" {
		t.Errorf("RoleArn = %q", got)
	}
	if got := aws.ToString(in.RoleSessionName); got != DefaultSessionName {
		t.Errorf("RoleSessionName = %q; want %q", got, DefaultSessionName)
	}
	if got := aws.ToInt32(in.DurationSeconds); got != 900 {
		t.Errorf("DurationSeconds = %d; want 900", got)
	}
}

func TestAcquire_DoesNotMutateBase(t *testing.T) {
	base := aws.Config{Region: "us-east-1"}
	b := NewBroker(&fakeSTS{}, base, "OrgAuditor")
	if _, err := b.Acquire(context.Background(), "111111111111", "ap-south-1"); err != nil {
		t.Fatal(err)
	}
	if b.base.Region != "us-east-1" || b.base.Credentials != nil {
		t.Error("base config must not be modified by Acquire")
	}
}

func TestAcquire_NoCaching(t *testing.T) {
	fake := &fakeSTS{}
	b := NewBroker(fake, aws.Config{}, "OrgAuditor")
	for i := 0; i < 3; i++ {
		if _, err := b.Acquire(context.Background(), "111111111111", "us-east-1"); err != nil {
			t.Fatal(err)
		}
	}
	if len(fake.inputs) != 3 {
		t.Errorf("AssumeRole calls = %d; want 3", len(fake.inputs))
	}
}

func TestAcquire_DeniedIsAssumeRoleError(t *testing.T) {
	fake := &fakeSTS{deny: map[string]bool{"arn:aws:iam::222222222222:role/OrgAuditor": true}}
	b := NewBroker(fake, aws.Config{}, "OrgAuditor")

	_, err := b.Acquire(context.Background(), "222222222222", "us-east-1")
	if !errors.Is(err, ErrAssumeRoleFailed) {
		t.Fatalf("error = %v; want ErrAssumeRoleFailed", err)
	}
	var are *AssumeRoleError
	if !errors.As(err, &are) {
		t.Fatalf("error %T is not *AssumeRoleError", err)
	}
	if are.AccountID != "222222222222" {
		t.Errorf("AccountID = %q", are.AccountID)
	}
}

func TestAcquire_EmptyInputsFailWithoutCall(t *testing.T) {
	fake := &fakeSTS{}
	cases := []struct {
		name, role, account string
	}{
		{"empty account", "OrgAuditor", ""},
		{"empty role", "", "111111111111"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBroker(fake, aws.Config{}, tc.role)
			if _, err := b.Acquire(context.Background(), tc.account, "us-east-1"); !errors.Is(err, ErrAssumeRoleFailed) {
				t.Errorf("error = %v; want ErrAssumeRoleFailed", err)
			}
		})
	}
	if len(fake.inputs) != 0 {
		t.Errorf("AssumeRole calls = %d; want 0", len(fake.inputs))
	}
}

func TestAcquire_MissingCredentials(t *testing.T) {
	b := NewBroker(&fakeSTS{noCred: true}, aws.Config{}, "OrgAuditor")
	if _, err := b.Acquire(context.Background(), "111111111111", "us-east-1"); !errors.Is(err, ErrAssumeRoleFailed) {
		t.Errorf("error = %v; want ErrAssumeRoleFailed", err)
	}
}

func TestOptions(t *testing.T) {
	fake := &fakeSTS{}
	b := NewBroker(fake, aws.Config{}, "Auditor",
		WithSessionName("nightly-sweep"),
		WithDuration(time.Hour),
		WithPartition("aws-us-gov"),
	)
	if _, err := b.Acquire(context.Background(), "111111111111", "us-gov-west-1"); err != nil {
		t.Fatal(err)
	}
	in := fake.inputs[0]
	if got := aws.ToString(in.RoleArn); got != "arn:aws-us-gov:iam::111111111111:role/Auditor" {
		t.Errorf("RoleArn = %q", got)
	}
	if aws.ToString(in.RoleSessionName) != "nightly-sweep" {
		t.Errorf("RoleSessionName = %q", aws.ToString(in.RoleSessionName))
	}
	if aws.ToInt32(in.DurationSeconds) != 3600 {
		t.Errorf("DurationSeconds = %d", aws.ToInt32(in.DurationSeconds))
	}
}
