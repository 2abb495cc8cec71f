package operations

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	rdssvc "github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/engine"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/models"
	awssession "github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/session"
)

// rdsInstances returns every DB instance. Available instances carry their
// average CPUUtilization over the payload's lookback window.
func rdsInstances(f clientFactory) engine.Callback {
	return func(ctx context.Context, sess *awssession.Session, _, _ string, payload engine.Payload) ([]models.Record, error) {
		clients := f(sess.Config)
		p := rdssvc.NewDescribeDBInstancesPaginator(clients.RDS, &rdssvc.DescribeDBInstancesInput{})

		start, end := lookback(payload)
		var records []models.Record
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("DescribeDBInstances page: %w", err)
			}
			for _, db := range page.DBInstances {
				id := aws.ToString(db.DBInstanceIdentifier)
				status := aws.ToString(db.DBInstanceStatus)
				var cpu float64
				if status == "available" {
					cpu = aggregate(ctx, clients.CW, metricQuery{
						namespace: "AWS/RDS",
						metric:    "CPUUtilization",
						dimension: "DBInstanceIdentifier",
						value:     id,
						stat:      cwtypes.StatisticAverage,
					}, start, end)
				}
				records = append(records, models.Record{
					"DBInstanceId":     id,
					"DBInstanceClass":  aws.ToString(db.DBInstanceClass),
					"Engine":           aws.ToString(db.Engine),
					"MultiAZ":          aws.ToBool(db.MultiAZ),
					"Status":           status,
					"StorageEncrypted": aws.ToBool(db.StorageEncrypted),
					"AvgCPUPercent":    cpu,
				})
			}
		}
		return records, nil
	}
}

// loadBalancers returns every ELBv2 load balancer. Application load
// balancers carry their total RequestCount over the lookback window; other
// types report different metrics and are left at 0.
func loadBalancers(f clientFactory) engine.Callback {
	return func(ctx context.Context, sess *awssession.Session, _, _ string, payload engine.Payload) ([]models.Record, error) {
		clients := f(sess.Config)
		p := elbv2.NewDescribeLoadBalancersPaginator(clients.ELB, &elbv2.DescribeLoadBalancersInput{})

		start, end := lookback(payload)
		var records []models.Record
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("DescribeLoadBalancers page: %w", err)
			}
			for _, lb := range page.LoadBalancers {
				arn := aws.ToString(lb.LoadBalancerArn)
				var state string
				if lb.State != nil {
					state = string(lb.State.Code)
				}
				var requests float64
				if dim := lbDimension(arn); string(lb.Type) == "application" && dim != "" {
					requests = aggregate(ctx, clients.CW, metricQuery{
						namespace: "AWS/ApplicationELB",
						metric:    "RequestCount",
						dimension: "LoadBalancer",
						value:     dim,
						stat:      cwtypes.StatisticSum,
					}, start, end)
				}
				records = append(records, models.Record{
					"LoadBalancerName": aws.ToString(lb.LoadBalancerName),
					"LoadBalancerArn":  arn,
					"Type":             string(lb.Type),
					"Scheme":           string(lb.Scheme),
					"State":            state,
					"RequestCount":     int64(requests),
				})
			}
		}
		return records, nil
	}
}

// lbDimension extracts the CloudWatch LoadBalancer dimension
// ("app/<name>/<id>") from a load balancer ARN.
func lbDimension(arn string) string {
	const marker = ":loadbalancer/"
	_, dim, ok := strings.Cut(arn, marker)
	if !ok {
		return ""
	}
	return dim
}
