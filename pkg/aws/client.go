package aws

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/redshift"
	log "github.com/sirupsen/logrus"

	"github.com/sparkify/dwh/pkg/config"
	"github.com/sparkify/dwh/pkg/util/wait"
)

//go:generate mockgen -destination=mock_aws/mock_api.go -package=mock_aws github.com/sparkify/dwh/pkg/aws RoleAPI,ClusterAPI

// RoleAPI is the subset of iamiface.IAMAPI used to manage the cluster's role.
type RoleAPI interface {
	GetRoleWithContext(ctx aws.Context, input *iam.GetRoleInput, opts ...request.Option) (*iam.GetRoleOutput, error)
	CreateRoleWithContext(ctx aws.Context, input *iam.CreateRoleInput, opts ...request.Option) (*iam.CreateRoleOutput, error)
	AttachRolePolicyWithContext(ctx aws.Context, input *iam.AttachRolePolicyInput, opts ...request.Option) (*iam.AttachRolePolicyOutput, error)
}

// ClusterAPI is the subset of redshiftiface.RedshiftAPI used to manage the cluster.
type ClusterAPI interface {
	DescribeClustersWithContext(ctx aws.Context, input *redshift.DescribeClustersInput, opts ...request.Option) (*redshift.DescribeClustersOutput, error)
	CreateClusterWithContext(ctx aws.Context, input *redshift.CreateClusterInput, opts ...request.Option) (*redshift.CreateClusterOutput, error)
	DeleteClusterWithContext(ctx aws.Context, input *redshift.DeleteClusterInput, opts ...request.Option) (*redshift.DeleteClusterOutput, error)
}

// NewSession creates an AWS session for the configured region. Static
// credentials are used when both key and secret are set, otherwise the SDK's
// default credential chain applies.
func NewSession(cfg config.AWS) (*session.Session, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Key != "" && cfg.Secret != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.Key, cfg.Secret, ""))
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create AWS session: %w", err)
	}
	return sess, nil
}

// Provisioner creates or reuses the IAM role and Redshift cluster the
// pipeline runs against. It holds no configuration of its own: every call
// takes the current config.Config and returns the discovered values, which
// the caller applies to the config it threads to later stages.
type Provisioner struct {
	logger   log.FieldLogger
	roles    RoleAPI
	clusters ClusterAPI
	backoff  wait.Backoff
}

func NewProvisioner(logger log.FieldLogger, roles RoleAPI, clusters ClusterAPI, backoff wait.Backoff) *Provisioner {
	return &Provisioner{
		logger:   logger.WithField("component", "provisioner"),
		roles:    roles,
		clusters: clusters,
		backoff:  backoff,
	}
}

// NewProvisionerFromSession builds a Provisioner backed by the real IAM and
// Redshift clients.
func NewProvisionerFromSession(logger log.FieldLogger, sess *session.Session, backoff wait.Backoff) *Provisioner {
	return NewProvisioner(logger, iam.New(sess), redshift.New(sess), backoff)
}
