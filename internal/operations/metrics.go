package operations

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/engine"
)

// PayloadDays is the payload key holding the lookback window in days for
// metric and cost queries.
const PayloadDays = "days"

const defaultDays = 30

// lookback returns [start, end) for the payload's lookback window.
func lookback(p engine.Payload) (time.Time, time.Time) {
	days := p.IntValue(PayloadDays, defaultDays)
	if days <= 0 {
		days = defaultDays
	}
	end := time.Now().UTC()
	return end.AddDate(0, 0, -days), end
}

// metricQuery names one CloudWatch series.
type metricQuery struct {
	namespace string
	metric    string
	dimension string
	value     string
	stat      cwtypes.Statistic
}

// aggregate reads the series at 1-day granularity and returns the mean of
// the daily averages, or the total of the daily sums for StatisticSum.
// A failed call or a series with no data yields 0; callers treat that as
// "no data", not as idle.
func aggregate(ctx context.Context, cw cloudWatchAPIClient, q metricQuery, start, end time.Time) float64 {
	out, err := cw.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(q.namespace),
		MetricName: aws.String(q.metric),
		Dimensions: []cwtypes.Dimension{{
			Name:  aws.String(q.dimension),
			Value: aws.String(q.value),
		}},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(86400),
		Statistics: []cwtypes.Statistic{q.stat},
	})
	if err != nil || len(out.Datapoints) == 0 {
		return 0
	}

	var total float64
	var n int
	for _, dp := range out.Datapoints {
		v := dp.Average
		if q.stat == cwtypes.StatisticSum {
			v = dp.Sum
		}
		if v != nil {
			total += *v
			n++
		}
	}
	if n == 0 || q.stat == cwtypes.StatisticSum {
		return total
	}
	return total / float64(n)
}
