package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/redshift"

	"github.com/sparkify/dwh/pkg/config"
	"github.com/sparkify/dwh/pkg/util/wait"
)

const (
	ClusterStatusAvailable = "available"
	ClusterStatusCreating  = "creating"
	ClusterStatusDeleting  = "deleting"

	clusterTypeMultiNode = "multi-node"
)

// Endpoint is where a cluster accepts SQL connections.
type Endpoint struct {
	Address string
	Port    int64
}

func (p *Provisioner) describeCluster(ctx context.Context, id string) (*redshift.Cluster, error) {
	out, err := p.clusters.DescribeClustersWithContext(ctx, &redshift.DescribeClustersInput{
		ClusterIdentifier: aws.String(id),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Clusters) == 0 || out.Clusters[0] == nil {
		return nil, awserr.New(redshift.ErrCodeClusterNotFoundFault, fmt.Sprintf("cluster %s not found", id), nil)
	}
	return out.Clusters[0], nil
}

func endpointOf(cluster *redshift.Cluster) (Endpoint, error) {
	if cluster.Endpoint == nil || aws.StringValue(cluster.Endpoint.Address) == "" {
		return Endpoint{}, fmt.Errorf("cluster %s is %s but has no endpoint", aws.StringValue(cluster.ClusterIdentifier), aws.StringValue(cluster.ClusterStatus))
	}
	return Endpoint{
		Address: aws.StringValue(cluster.Endpoint.Address),
		Port:    aws.Int64Value(cluster.Endpoint.Port),
	}, nil
}

// EnsureCluster returns the endpoint of the cluster identified in cfg. An
// available cluster is returned without any mutation and a cluster that is
// still being created is waited on. Otherwise a new cluster is created with
// the role ARN from cfg attached, and the call waits until it is available.
// The role ARN is only required when a cluster has to be created.
// The wait is bounded by the provisioner's backoff; exhausting it returns an
// error matching ErrStillPending.
func (p *Provisioner) EnsureCluster(ctx context.Context, cfg config.Config) (Endpoint, error) {
	c := cfg.Cluster
	id := c.Identifier
	if id == "" {
		return Endpoint{}, fmt.Errorf("cluster identifier must be set")
	}
	logger := p.logger.WithField("cluster", id)

	cluster, err := p.describeCluster(ctx, id)
	switch {
	case err == nil:
		status := aws.StringValue(cluster.ClusterStatus)
		switch status {
		case ClusterStatusAvailable:
			logger.Infof("cluster already available, using existing cluster")
			return endpointOf(cluster)
		case ClusterStatusCreating:
			logger.Infof("cluster is already being created, waiting for it")
			return p.waitForAvailable(ctx, id)
		default:
			logger.Warnf("cluster exists with status %q, attempting to create it", status)
		}
	case IsNotFound(err):
		logger.Infof("no cluster exists, making a new one")
	default:
		return Endpoint{}, fmt.Errorf("unable to describe cluster %s: %w", id, err)
	}

	if cfg.IAMRole.ARN == "" {
		return Endpoint{}, fmt.Errorf("IAM role ARN must be resolved before creating cluster %s", id)
	}
	input := &redshift.CreateClusterInput{
		ClusterType:        aws.String(c.Type),
		NodeType:           aws.String(c.NodeType),
		DBName:             aws.String(c.DBName),
		ClusterIdentifier:  aws.String(id),
		MasterUsername:     aws.String(c.User),
		MasterUserPassword: aws.String(c.Password),
		IamRoles:           aws.StringSlice([]string{cfg.IAMRole.ARN}),
	}
	if c.Port != 0 {
		input.Port = aws.Int64(int64(c.Port))
	}
	// NumberOfNodes is rejected for single-node clusters.
	if c.Type == clusterTypeMultiNode {
		input.NumberOfNodes = aws.Int64(int64(c.NumNodes))
	}

	if _, err := p.clusters.CreateClusterWithContext(ctx, input); err != nil {
		if isAlreadyExists(err) {
			return Endpoint{}, &ConflictError{Kind: "cluster", Name: id, Err: err}
		}
		return Endpoint{}, fmt.Errorf("unable to create cluster %s: %w", id, err)
	}
	logger.Infof("cluster creation requested")
	return p.waitForAvailable(ctx, id)
}

func (p *Provisioner) waitForAvailable(ctx context.Context, id string) (Endpoint, error) {
	logger := p.logger.WithField("cluster", id)
	var cluster *redshift.Cluster
	err := wait.Until(ctx, "cluster "+id, p.backoff, func(ctx context.Context) (bool, string, error) {
		var err error
		cluster, err = p.describeCluster(ctx, id)
		if IsNotFound(err) {
			// a just-created cluster can take a moment to become visible
			return false, "not found", nil
		}
		if err != nil {
			return false, "", err
		}
		status := aws.StringValue(cluster.ClusterStatus)
		return status == ClusterStatusAvailable, status, nil
	}, func(status string, next time.Duration) {
		logger.Infof("waiting for cluster to become available, status %q, checking again in %s", status, next.Round(time.Second))
	})
	if err != nil {
		return Endpoint{}, fmt.Errorf("error waiting for cluster %s: %w", id, err)
	}
	logger.Infof("cluster is available")
	return endpointOf(cluster)
}

// Teardown deletes the cluster without a final snapshot and waits until the
// control plane no longer reports it. A cluster that does not exist is not
// an error.
func (p *Provisioner) Teardown(ctx context.Context, cfg config.Config) error {
	id := cfg.Cluster.Identifier
	if id == "" {
		return fmt.Errorf("cluster identifier must be set")
	}
	logger := p.logger.WithField("cluster", id)

	_, err := p.clusters.DeleteClusterWithContext(ctx, &redshift.DeleteClusterInput{
		ClusterIdentifier:        aws.String(id),
		SkipFinalClusterSnapshot: aws.Bool(true),
	})
	if err != nil {
		if IsNotFound(err) {
			logger.Infof("cluster does not exist, nothing to delete")
			return nil
		}
		return fmt.Errorf("unable to delete cluster %s: %w", id, err)
	}
	logger.Infof("cluster deletion requested")

	err = wait.Until(ctx, "deletion of cluster "+id, p.backoff, func(ctx context.Context) (bool, string, error) {
		cluster, err := p.describeCluster(ctx, id)
		if IsNotFound(err) {
			return true, "deleted", nil
		}
		if err != nil {
			return false, "", err
		}
		return false, aws.StringValue(cluster.ClusterStatus), nil
	}, func(status string, next time.Duration) {
		logger.Infof("waiting for cluster deletion, status %q, checking again in %s", status, next.Round(time.Second))
	})
	if err != nil {
		return fmt.Errorf("error waiting for cluster %s to be deleted: %w", id, err)
	}
	logger.Infof("cluster deleted")
	return nil
}
