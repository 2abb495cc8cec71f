package operations

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/engine"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/models"
	awssession "github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/session"
)

// openCIDRs are the ranges that expose a rule to the whole internet.
var openCIDRs = map[string]bool{"0.0.0.0/0": true, "::/0": true}

// openSecurityGroups returns one record per ingress permission open to the
// internet, per CIDR.
func openSecurityGroups(f clientFactory) engine.Callback {
	return func(ctx context.Context, sess *awssession.Session, _, _ string, _ engine.Payload) ([]models.Record, error) {
		p := ec2svc.NewDescribeSecurityGroupsPaginator(f(sess.Config).EC2, &ec2svc.DescribeSecurityGroupsInput{})

		var records []models.Record
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("DescribeSecurityGroups page: %w", err)
			}
			for _, sg := range page.SecurityGroups {
				for _, perm := range sg.IpPermissions {
					var cidrs []string
					for _, r := range perm.IpRanges {
						cidrs = append(cidrs, aws.ToString(r.CidrIp))
					}
					for _, r := range perm.Ipv6Ranges {
						cidrs = append(cidrs, aws.ToString(r.CidrIpv6))
					}
					for _, cidr := range cidrs {
						if !openCIDRs[cidr] {
							continue
						}
						records = append(records, models.Record{
							"GroupId":   aws.ToString(sg.GroupId),
							"GroupName": aws.ToString(sg.GroupName),
							"VpcId":     aws.ToString(sg.VpcId),
							"Protocol":  aws.ToString(perm.IpProtocol),
							"FromPort":  aws.ToInt32(perm.FromPort),
							"ToPort":    aws.ToInt32(perm.ToPort),
							"CIDR":      cidr,
						})
					}
				}
			}
		}
		return records, nil
	}
}

// unattachedVolumes returns every EBS volume in the available state.
func unattachedVolumes(f clientFactory) engine.Callback {
	return func(ctx context.Context, sess *awssession.Session, _, _ string, _ engine.Payload) ([]models.Record, error) {
		p := ec2svc.NewDescribeVolumesPaginator(f(sess.Config).EC2, &ec2svc.DescribeVolumesInput{
			Filters: []ec2types.Filter{{
				Name:   aws.String("status"),
				Values: []string{string(ec2types.VolumeStateAvailable)},
			}},
		})

		var records []models.Record
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("DescribeVolumes page: %w", err)
			}
			for _, v := range page.Volumes {
				records = append(records, models.Record{
					"VolumeId":   aws.ToString(v.VolumeId),
					"VolumeType": string(v.VolumeType),
					"SizeGB":     aws.ToInt32(v.Size),
					"Encrypted":  aws.ToBool(v.Encrypted),
					"CreateTime": aws.ToTime(v.CreateTime),
					"Name":       nameTag(v.Tags),
				})
			}
		}
		return records, nil
	}
}

// ec2Instances returns running and stopped instances. Running instances
// carry their average CPUUtilization over the payload's lookback window.
func ec2Instances(f clientFactory) engine.Callback {
	return func(ctx context.Context, sess *awssession.Session, _, _ string, payload engine.Payload) ([]models.Record, error) {
		clients := f(sess.Config)
		p := ec2svc.NewDescribeInstancesPaginator(clients.EC2, &ec2svc.DescribeInstancesInput{
			Filters: []ec2types.Filter{{
				Name:   aws.String("instance-state-name"),
				Values: []string{"running", "stopped"},
			}},
		})

		start, end := lookback(payload)
		var records []models.Record
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("DescribeInstances page: %w", err)
			}
			for _, res := range page.Reservations {
				for _, inst := range res.Instances {
					id := aws.ToString(inst.InstanceId)
					var state string
					if inst.State != nil {
						state = string(inst.State.Name)
					}
					var cpu float64
					if state == "running" {
						cpu = aggregate(ctx, clients.CW, metricQuery{
							namespace: "AWS/EC2",
							metric:    "CPUUtilization",
							dimension: "InstanceId",
							value:     id,
							stat:      cwtypes.StatisticAverage,
						}, start, end)
					}
					records = append(records, models.Record{
						"InstanceId":    id,
						"InstanceType":  string(inst.InstanceType),
						"State":         state,
						"LaunchTime":    aws.ToTime(inst.LaunchTime),
						"AvgCPUPercent": cpu,
						"Name":          nameTag(inst.Tags),
					})
				}
			}
		}
		return records, nil
	}
}

// nameTag returns the value of the Name tag, if any.
func nameTag(tags []ec2types.Tag) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == "Name" {
			return aws.ToString(t.Value)
		}
	}
	return ""
}
