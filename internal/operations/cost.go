package operations

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	ce "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/engine"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/models"
	awssession "github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/session"
)

// costByService returns unblended cost per service for the cell region over
// the payload's lookback window, most expensive first. Services with no
// spend are omitted.
func costByService(f clientFactory) engine.Callback {
	return func(ctx context.Context, sess *awssession.Session, _, region string, payload engine.Payload) ([]models.Record, error) {
		client := f(sess.Config).CE

		from, to := lookback(payload)
		start, end := from.Format("2006-01-02"), to.Format("2006-01-02")

		totals := make(map[string]float64)
		var token *string
		for {
			out, err := client.GetCostAndUsage(ctx, &ce.GetCostAndUsageInput{
				TimePeriod: &cetypes.DateInterval{
					Start: aws.String(start),
					End:   aws.String(end),
				},
				Granularity: cetypes.GranularityMonthly,
				Metrics:     []string{"UnblendedCost"},
				Filter: &cetypes.Expression{
					Dimensions: &cetypes.DimensionValues{
						Key:    cetypes.DimensionRegion,
						Values: []string{region},
					},
				},
				GroupBy: []cetypes.GroupDefinition{{
					Key:  aws.String("SERVICE"),
					Type: cetypes.GroupDefinitionTypeDimension,
				}},
				NextPageToken: token,
			})
			if err != nil {
				return nil, fmt.Errorf("GetCostAndUsage: %w", err)
			}

			for _, byTime := range out.ResultsByTime {
				for _, g := range byTime.Groups {
					if len(g.Keys) == 0 {
						continue
					}
					m, ok := g.Metrics["UnblendedCost"]
					if !ok {
						continue
					}
					amount, _ := strconv.ParseFloat(aws.ToString(m.Amount), 64)
					totals[g.Keys[0]] += amount
				}
			}

			if aws.ToString(out.NextPageToken) == "" {
				break
			}
			token = out.NextPageToken
		}

		services := make([]string, 0, len(totals))
		for svc, amount := range totals {
			if amount > 0 {
				services = append(services, svc)
			}
		}
		sort.Slice(services, func(i, j int) bool {
			if totals[services[i]] != totals[services[j]] {
				return totals[services[i]] > totals[services[j]]
			}
			return services[i] < services[j]
		})

		records := make([]models.Record, 0, len(services))
		for _, svc := range services {
			records = append(records, models.Record{
				"Service":     svc,
				"CostUSD":     totals[svc],
				"PeriodStart": start,
				"PeriodEnd":   end,
			})
		}
		return records, nil
	}
}
