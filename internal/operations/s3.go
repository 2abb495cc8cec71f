package operations

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/engine"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/models"
	awssession "github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/session"
)

// s3Buckets returns the buckets located in the cell region with their
// public-policy and default-encryption state. Bucket listing is
// account-wide, so the region filter keeps each bucket in exactly one cell.
func s3Buckets(f clientFactory) engine.Callback {
	return func(ctx context.Context, sess *awssession.Session, _, region string, _ engine.Payload) ([]models.Record, error) {
		client := f(sess.Config).S3

		var records []models.Record
		var token *string
		for {
			out, err := client.ListBuckets(ctx, &s3svc.ListBucketsInput{
				BucketRegion:      aws.String(region),
				ContinuationToken: token,
			})
			if err != nil {
				return nil, fmt.Errorf("list S3 buckets: %w", err)
			}
			for _, b := range out.Buckets {
				if br := aws.ToString(b.BucketRegion); br != "" && br != region {
					continue
				}
				name := aws.ToString(b.Name)
				records = append(records, models.Record{
					"Bucket":            name,
					"CreationDate":      aws.ToTime(b.CreationDate),
					"Public":            bucketIsPublic(ctx, client, name),
					"DefaultEncryption": bucketHasEncryption(ctx, client, name),
				})
			}
			if aws.ToString(out.ContinuationToken) == "" {
				break
			}
			token = out.ContinuationToken
		}
		return records, nil
	}
}

// bucketIsPublic is true only when the policy status says so. A bucket
// without a policy, or any error, counts as not public.
func bucketIsPublic(ctx context.Context, client s3APIClient, name string) bool {
	out, err := client.GetBucketPolicyStatus(ctx, &s3svc.GetBucketPolicyStatusInput{Bucket: aws.String(name)})
	if err != nil || out.PolicyStatus == nil {
		return false
	}
	return aws.ToBool(out.PolicyStatus.IsPublic)
}

// bucketHasEncryption is true when a default encryption configuration exists.
func bucketHasEncryption(ctx context.Context, client s3APIClient, name string) bool {
	_, err := client.GetBucketEncryption(ctx, &s3svc.GetBucketEncryptionInput{Bucket: aws.String(name)})
	return err == nil
}
