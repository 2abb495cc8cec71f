// Package operations holds the per-cell callbacks orgsweep can fan out
// across an organization. Every operation reads one service in one
// (account, region) through the session the engine hands it and returns
// flat records for the report.
package operations

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/engine"
)

// Operation is a named Callback.
type Operation struct {
	Name        string
	Description string

	// Global marks operations that read an account-wide service (IAM). They
	// return the same records in every region of an account.
	Global bool

	Run engine.Callback
}

// Registry is an ordered, in-memory set of operations. Register panics on a
// duplicate name to catch wiring mistakes at startup.
type Registry struct {
	ops   []Operation
	index map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds op. Panics if the name is empty, taken, or op has no Run.
func (r *Registry) Register(op Operation) {
	if op.Name == "" || op.Run == nil {
		panic(fmt.Sprintf("invalid operation %q: name and Run are required", op.Name))
	}
	if _, exists := r.index[op.Name]; exists {
		panic(fmt.Sprintf("duplicate operation name: %q", op.Name))
	}
	r.index[op.Name] = len(r.ops)
	r.ops = append(r.ops, op)
}

// Get returns the operation registered under name.
func (r *Registry) Get(name string) (Operation, bool) {
	i, ok := r.index[name]
	if !ok {
		return Operation{}, false
	}
	return r.ops[i], true
}

// All returns every operation in registration order.
func (r *Registry) All() []Operation {
	return append([]Operation(nil), r.ops...)
}

// Names returns every operation name in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ops))
	for i, op := range r.ops {
		names[i] = op.Name
	}
	return names
}

// Operation names.
const (
	GuardDutyCoverage  = "guardduty-coverage"
	GuardDutyStatus    = "guardduty-status"
	ConfigRecorder     = "config-recorder"
	CloudTrailTrails   = "cloudtrail-trails"
	SecurityGroupsOpen = "security-groups-open"
	EBSUnattached      = "ebs-unattached"
	EC2Instances       = "ec2-instances"
	RDSInstances       = "rds-instances"
	LoadBalancers      = "load-balancers"
	IAMUsersWithoutMFA = "iam-users-without-mfa"
	S3Buckets          = "s3-buckets"
	CostByService      = "cost-by-service"
)

// NewDefaultRegistry returns every built-in operation wired to production
// AWS SDK clients.
func NewDefaultRegistry() *Registry {
	return newRegistryWithFactory(newDefaultClients)
}

func newRegistryWithFactory(f clientFactory) *Registry {
	r := NewRegistry()
	r.Register(Operation{GuardDutyCoverage, "GuardDuty runtime coverage per resource", false, guardDutyCoverage(f)})
	r.Register(Operation{GuardDutyStatus, "GuardDuty detector status", false, guardDutyStatus(f)})
	r.Register(Operation{ConfigRecorder, "AWS Config recorder status", false, configRecorders(f)})
	r.Register(Operation{CloudTrailTrails, "CloudTrail trails homed in the region", false, cloudTrailTrails(f)})
	r.Register(Operation{SecurityGroupsOpen, "Security group ingress open to the internet", false, openSecurityGroups(f)})
	r.Register(Operation{EBSUnattached, "EBS volumes not attached to any instance", false, unattachedVolumes(f)})
	r.Register(Operation{EC2Instances, "EC2 instances with average CPU", false, ec2Instances(f)})
	r.Register(Operation{RDSInstances, "RDS instances with encryption and average CPU", false, rdsInstances(f)})
	r.Register(Operation{LoadBalancers, "ELBv2 load balancers with request counts", false, loadBalancers(f)})
	r.Register(Operation{IAMUsersWithoutMFA, "Console IAM users without MFA", true, iamUsersWithoutMFA(f)})
	r.Register(Operation{S3Buckets, "S3 buckets located in the region", false, s3Buckets(f)})
	r.Register(Operation{CostByService, "Cost Explorer spend by service for the region", false, costByService(f)})
	return r
}
