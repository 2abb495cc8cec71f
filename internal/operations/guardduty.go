package operations

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/engine"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/models"
	awssession "github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/session"
)

// Record keys shared with the coverage CSV layout.
const (
	KeyResourceID     = "ResourceId"
	KeyResourceType   = "ResourceType"
	KeyCoverageStatus = "CoverageStatus"
	KeyIssue          = "Issue"
)

// firstDetector returns the region's detector id, or "" when GuardDuty is
// not enabled. A region has at most one detector.
func firstDetector(ctx context.Context, client guardDutyAPIClient) (string, error) {
	out, err := client.ListDetectors(ctx, &guardduty.ListDetectorsInput{})
	if err != nil {
		return "", fmt.Errorf("list GuardDuty detectors: %w", err)
	}
	if len(out.DetectorIds) == 0 {
		return "", nil
	}
	return out.DetectorIds[0], nil
}

// guardDutyCoverage lists runtime-monitoring coverage for every resource
// the region's detector tracks. No detector means no records.
func guardDutyCoverage(f clientFactory) engine.Callback {
	return func(ctx context.Context, sess *awssession.Session, _, _ string, _ engine.Payload) ([]models.Record, error) {
		client := f(sess.Config).GuardDuty

		detectorID, err := firstDetector(ctx, client)
		if err != nil || detectorID == "" {
			return nil, err
		}

		var records []models.Record
		pager := guardduty.NewListCoveragePaginator(client, &guardduty.ListCoverageInput{
			DetectorId: aws.String(detectorID),
		})
		for pager.HasMorePages() {
			out, err := pager.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("list GuardDuty coverage for detector %s: %w", detectorID, err)
			}
			for _, res := range out.Resources {
				var resourceType string
				if res.ResourceDetails != nil {
					resourceType = string(res.ResourceDetails.ResourceType)
				}
				records = append(records, models.Record{
					KeyResourceID:     aws.ToString(res.ResourceId),
					KeyResourceType:   resourceType,
					KeyCoverageStatus: string(res.CoverageStatus),
					KeyIssue:          aws.ToString(res.Issue),
				})
			}
		}
		return records, nil
	}
}

// guardDutyStatus reports the detector and its status, or nothing when
// GuardDuty is not enabled in the region.
func guardDutyStatus(f clientFactory) engine.Callback {
	return func(ctx context.Context, sess *awssession.Session, _, _ string, _ engine.Payload) ([]models.Record, error) {
		client := f(sess.Config).GuardDuty

		detectorID, err := firstDetector(ctx, client)
		if err != nil || detectorID == "" {
			return nil, err
		}

		out, err := client.GetDetector(ctx, &guardduty.GetDetectorInput{DetectorId: aws.String(detectorID)})
		if err != nil {
			return nil, fmt.Errorf("get GuardDuty detector %s: %w", detectorID, err)
		}
		return []models.Record{{
			"DetectorId":                 detectorID,
			"Status":                     string(out.Status),
			"FindingPublishingFrequency": string(out.FindingPublishingFrequency),
		}}, nil
	}
}
