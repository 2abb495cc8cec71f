package operations

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cloudtrailsvc "github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	configsvc "github.com/aws/aws-sdk-go-v2/service/configservice"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/engine"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/models"
	awssession "github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/session"
)

// configRecorders returns one record per AWS Config recorder in the region.
func configRecorders(f clientFactory) engine.Callback {
	return func(ctx context.Context, sess *awssession.Session, _, _ string, _ engine.Payload) ([]models.Record, error) {
		out, err := f(sess.Config).Config.DescribeConfigurationRecorderStatus(ctx, &configsvc.DescribeConfigurationRecorderStatusInput{})
		if err != nil {
			return nil, fmt.Errorf("describe configuration recorder status: %w", err)
		}

		records := make([]models.Record, 0, len(out.ConfigurationRecordersStatus))
		for _, st := range out.ConfigurationRecordersStatus {
			records = append(records, models.Record{
				"Name":       aws.ToString(st.Name),
				"Recording":  st.Recording,
				"LastStatus": string(st.LastStatus),
			})
		}
		return records, nil
	}
}

// cloudTrailTrails returns the trails whose home region is the cell region.
// Shadow copies of trails homed elsewhere are excluded.
func cloudTrailTrails(f clientFactory) engine.Callback {
	return func(ctx context.Context, sess *awssession.Session, _, region string, _ engine.Payload) ([]models.Record, error) {
		out, err := f(sess.Config).CloudTrail.DescribeTrails(ctx, &cloudtrailsvc.DescribeTrailsInput{
			IncludeShadowTrails: aws.Bool(false),
		})
		if err != nil {
			return nil, fmt.Errorf("describe trails: %w", err)
		}

		var records []models.Record
		for _, t := range out.TrailList {
			if home := aws.ToString(t.HomeRegion); home != "" && home != region {
				continue
			}
			records = append(records, models.Record{
				"Name":              aws.ToString(t.Name),
				"MultiRegion":       aws.ToBool(t.IsMultiRegionTrail),
				"OrganizationTrail": aws.ToBool(t.IsOrganizationTrail),
				"LogFileValidation": aws.ToBool(t.LogFileValidationEnabled),
				"S3Bucket":          aws.ToString(t.S3BucketName),
			})
		}
		return records, nil
	}
}
