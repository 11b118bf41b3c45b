package aws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/redshift"
	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkify/dwh/pkg/aws/mock_aws"
	"github.com/sparkify/dwh/pkg/config"
	"github.com/sparkify/dwh/pkg/util/wait"
)

const testRoleARN = "arn:aws:iam::123456789012:role/dwhRole"

func testConfig() config.Config {
	return config.Config{
		AWS:     config.AWS{Region: "us-west-2"},
		IAMRole: config.IAMRole{Name: "dwhRole"},
		Cluster: config.Cluster{
			Type:       "multi-node",
			NumNodes:   4,
			NodeType:   "dc2.large",
			Identifier: "dwhCluster",
			DBName:     "dwh",
			User:       "dwhuser",
			Password:   "Passw0rd",
			Port:       5439,
		},
	}
}

func testBackoff(attempts int) wait.Backoff {
	return wait.Backoff{
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      1,
		MaxElapsed:      5 * time.Second,
		MaxAttempts:     attempts,
	}
}

func newTestProvisioner(t *testing.T, attempts int) (*Provisioner, *mock_aws.MockRoleAPI, *mock_aws.MockClusterAPI) {
	ctrl := gomock.NewController(t)
	roles := mock_aws.NewMockRoleAPI(ctrl)
	clusters := mock_aws.NewMockClusterAPI(ctrl)
	logger, _ := test.NewNullLogger()
	return NewProvisioner(logger, roles, clusters, testBackoff(attempts)), roles, clusters
}

func roleOutput(arn string) *iam.GetRoleOutput {
	return &iam.GetRoleOutput{Role: &iam.Role{Arn: aws.String(arn)}}
}

func clusterOutput(status string, withEndpoint bool) *redshift.DescribeClustersOutput {
	c := &redshift.Cluster{
		ClusterIdentifier: aws.String("dwhCluster"),
		ClusterStatus:     aws.String(status),
	}
	if withEndpoint {
		c.Endpoint = &redshift.Endpoint{
			Address: aws.String("dwhcluster.abc.us-west-2.redshift.amazonaws.com"),
			Port:    aws.Int64(5439),
		}
	}
	return &redshift.DescribeClustersOutput{Clusters: []*redshift.Cluster{c}}
}

var (
	errNoSuchRole      = awserr.New(iam.ErrCodeNoSuchEntityException, "role not found", nil)
	errClusterNotFound = awserr.New(redshift.ErrCodeClusterNotFoundFault, "cluster not found", nil)
)

func TestTrustPolicy(t *testing.T) {
	policy, err := TrustPolicy()
	require.NoError(t, err)

	var doc policyDocument
	require.NoError(t, json.Unmarshal([]byte(policy), &doc))
	assert.Equal(t, "2012-10-17", doc.Version)
	require.Len(t, doc.Statement, 1)
	assert.Equal(t, "sts:AssumeRole", doc.Statement[0].Action)
	assert.Equal(t, "Allow", doc.Statement[0].Effect)
	assert.Equal(t, map[string]string{"Service": "redshift.amazonaws.com"}, doc.Statement[0].Principal)
}

func TestEnsureRoleExisting(t *testing.T) {
	p, roles, _ := newTestProvisioner(t, 3)
	roles.EXPECT().GetRoleWithContext(gomock.Any(), gomock.Any()).Return(roleOutput(testRoleARN), nil).Times(2)
	roles.EXPECT().CreateRoleWithContext(gomock.Any(), gomock.Any()).Times(0)
	roles.EXPECT().AttachRolePolicyWithContext(gomock.Any(), gomock.Any()).Times(0)

	first, err := p.EnsureRole(context.Background(), testConfig())
	require.NoError(t, err)
	second, err := p.EnsureRole(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, testRoleARN, first)
	assert.Equal(t, first, second)
}

func TestEnsureRoleCreates(t *testing.T) {
	p, roles, _ := newTestProvisioner(t, 3)
	gomock.InOrder(
		roles.EXPECT().GetRoleWithContext(gomock.Any(), gomock.Any()).Return(nil, errNoSuchRole),
		roles.EXPECT().CreateRoleWithContext(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, in *iam.CreateRoleInput, _ ...request.Option) (*iam.CreateRoleOutput, error) {
				assert.Equal(t, "dwhRole", aws.StringValue(in.RoleName))
				assert.Contains(t, aws.StringValue(in.AssumeRolePolicyDocument), "redshift.amazonaws.com")
				return &iam.CreateRoleOutput{}, nil
			}),
		roles.EXPECT().AttachRolePolicyWithContext(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, in *iam.AttachRolePolicyInput, _ ...request.Option) (*iam.AttachRolePolicyOutput, error) {
				assert.Equal(t, S3ReadOnlyPolicyARN, aws.StringValue(in.PolicyArn))
				return &iam.AttachRolePolicyOutput{}, nil
			}),
		roles.EXPECT().GetRoleWithContext(gomock.Any(), gomock.Any()).Return(roleOutput(testRoleARN), nil),
	)

	arn, err := p.EnsureRole(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, testRoleARN, arn)
}

func TestEnsureRoleErrors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(roles *mock_aws.MockRoleAPI)
		expectIs error
	}{
		{
			name: "lookup failure other than not found",
			setup: func(roles *mock_aws.MockRoleAPI) {
				roles.EXPECT().GetRoleWithContext(gomock.Any(), gomock.Any()).
					Return(nil, awserr.New("AccessDenied", "denied", nil))
			},
		},
		{
			name: "created concurrently",
			setup: func(roles *mock_aws.MockRoleAPI) {
				roles.EXPECT().GetRoleWithContext(gomock.Any(), gomock.Any()).Return(nil, errNoSuchRole)
				roles.EXPECT().CreateRoleWithContext(gomock.Any(), gomock.Any()).
					Return(nil, awserr.New(iam.ErrCodeEntityAlreadyExistsException, "exists", nil))
			},
			expectIs: ErrConflict,
		},
		{
			name: "attach fails",
			setup: func(roles *mock_aws.MockRoleAPI) {
				roles.EXPECT().GetRoleWithContext(gomock.Any(), gomock.Any()).Return(nil, errNoSuchRole)
				roles.EXPECT().CreateRoleWithContext(gomock.Any(), gomock.Any()).Return(&iam.CreateRoleOutput{}, nil)
				roles.EXPECT().AttachRolePolicyWithContext(gomock.Any(), gomock.Any()).
					Return(nil, errors.New("throttled"))
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p, roles, _ := newTestProvisioner(t, 3)
			test.setup(roles)
			_, err := p.EnsureRole(context.Background(), testConfig())
			require.Error(t, err)
			if test.expectIs != nil {
				assert.True(t, errors.Is(err, test.expectIs), "expected %v, got %v", test.expectIs, err)
			}
		})
	}
}

func TestEnsureClusterRequiresRoleToCreate(t *testing.T) {
	p, _, clusters := newTestProvisioner(t, 3)
	clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Return(nil, errClusterNotFound)
	clusters.EXPECT().CreateClusterWithContext(gomock.Any(), gomock.Any()).Times(0)

	_, err := p.EnsureCluster(context.Background(), testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IAM role ARN")
}

func TestEnsureClusterReusesWithoutRole(t *testing.T) {
	tests := []struct {
		name    string
		outputs []*redshift.DescribeClustersOutput
	}{
		{
			name:    "available",
			outputs: []*redshift.DescribeClustersOutput{clusterOutput(ClusterStatusAvailable, true)},
		},
		{
			name: "creating",
			outputs: []*redshift.DescribeClustersOutput{
				clusterOutput(ClusterStatusCreating, false),
				clusterOutput(ClusterStatusAvailable, true),
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p, _, clusters := newTestProvisioner(t, 3)
			var calls []*gomock.Call
			for _, out := range test.outputs {
				calls = append(calls, clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Return(out, nil))
			}
			gomock.InOrder(calls...)
			clusters.EXPECT().CreateClusterWithContext(gomock.Any(), gomock.Any()).Times(0)

			endpoint, err := p.EnsureCluster(context.Background(), testConfig())
			require.NoError(t, err)
			assert.Equal(t, "dwhcluster.abc.us-west-2.redshift.amazonaws.com", endpoint.Address)
		})
	}
}

func TestEnsureClusterAvailable(t *testing.T) {
	p, _, clusters := newTestProvisioner(t, 3)
	clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Return(clusterOutput(ClusterStatusAvailable, true), nil)
	clusters.EXPECT().CreateClusterWithContext(gomock.Any(), gomock.Any()).Times(0)

	endpoint, err := p.EnsureCluster(context.Background(), testConfig().WithRoleARN(testRoleARN))
	require.NoError(t, err)
	assert.Equal(t, Endpoint{Address: "dwhcluster.abc.us-west-2.redshift.amazonaws.com", Port: 5439}, endpoint)
}

func TestEnsureClusterCreates(t *testing.T) {
	p, _, clusters := newTestProvisioner(t, 5)
	gomock.InOrder(
		clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Return(nil, errClusterNotFound),
		clusters.EXPECT().CreateClusterWithContext(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, in *redshift.CreateClusterInput, _ ...request.Option) (*redshift.CreateClusterOutput, error) {
				assert.Equal(t, "dwhCluster", aws.StringValue(in.ClusterIdentifier))
				assert.Equal(t, "multi-node", aws.StringValue(in.ClusterType))
				assert.Equal(t, int64(4), aws.Int64Value(in.NumberOfNodes))
				assert.Equal(t, int64(5439), aws.Int64Value(in.Port))
				assert.Equal(t, []string{testRoleARN}, aws.StringValueSlice(in.IamRoles))
				return &redshift.CreateClusterOutput{}, nil
			}),
		clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Return(nil, errClusterNotFound),
		clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Return(clusterOutput(ClusterStatusCreating, false), nil),
		clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Return(clusterOutput(ClusterStatusAvailable, true), nil),
	)

	endpoint, err := p.EnsureCluster(context.Background(), testConfig().WithRoleARN(testRoleARN))
	require.NoError(t, err)
	assert.Equal(t, "dwhcluster.abc.us-west-2.redshift.amazonaws.com", endpoint.Address)
}

func TestEnsureClusterSingleNodeOmitsNodeCount(t *testing.T) {
	p, _, clusters := newTestProvisioner(t, 3)
	cfg := testConfig().WithRoleARN(testRoleARN)
	cfg.Cluster.Type = "single-node"
	cfg.Cluster.NumNodes = 1

	clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Return(nil, errClusterNotFound)
	clusters.EXPECT().CreateClusterWithContext(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, in *redshift.CreateClusterInput, _ ...request.Option) (*redshift.CreateClusterOutput, error) {
			assert.Nil(t, in.NumberOfNodes)
			return &redshift.CreateClusterOutput{}, nil
		})
	clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Return(clusterOutput(ClusterStatusAvailable, true), nil)

	_, err := p.EnsureCluster(context.Background(), cfg)
	require.NoError(t, err)
}

func TestEnsureClusterWaitsForCreating(t *testing.T) {
	p, _, clusters := newTestProvisioner(t, 5)
	gomock.InOrder(
		clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Return(clusterOutput(ClusterStatusCreating, false), nil),
		clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Return(clusterOutput(ClusterStatusAvailable, true), nil),
	)
	clusters.EXPECT().CreateClusterWithContext(gomock.Any(), gomock.Any()).Times(0)

	_, err := p.EnsureCluster(context.Background(), testConfig().WithRoleARN(testRoleARN))
	require.NoError(t, err)
}

func TestEnsureClusterStillPending(t *testing.T) {
	p, _, clusters := newTestProvisioner(t, 3)
	clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Return(clusterOutput(ClusterStatusCreating, false), nil).Times(4)

	_, err := p.EnsureCluster(context.Background(), testConfig().WithRoleARN(testRoleARN))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStillPending))

	var pending *wait.PendingError
	require.True(t, errors.As(err, &pending))
	assert.Equal(t, ClusterStatusCreating, pending.LastStatus)
	assert.Equal(t, 3, pending.Attempts)
}

func TestEnsureClusterConflict(t *testing.T) {
	p, _, clusters := newTestProvisioner(t, 3)
	clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Return(nil, errClusterNotFound)
	clusters.EXPECT().CreateClusterWithContext(gomock.Any(), gomock.Any()).
		Return(nil, awserr.New(redshift.ErrCodeClusterAlreadyExistsFault, "exists", nil))

	_, err := p.EnsureCluster(context.Background(), testConfig().WithRoleARN(testRoleARN))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestTeardown(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(clusters *mock_aws.MockClusterAPI)
		expectErr bool
	}{
		{
			name: "deletes and waits",
			setup: func(clusters *mock_aws.MockClusterAPI) {
				clusters.EXPECT().DeleteClusterWithContext(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, in *redshift.DeleteClusterInput, _ ...request.Option) (*redshift.DeleteClusterOutput, error) {
						assert.True(t, aws.BoolValue(in.SkipFinalClusterSnapshot))
						return &redshift.DeleteClusterOutput{}, nil
					})
				gomock.InOrder(
					clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Return(clusterOutput(ClusterStatusDeleting, true), nil),
					clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Return(nil, errClusterNotFound),
				)
			},
		},
		{
			name: "absent cluster is a no-op",
			setup: func(clusters *mock_aws.MockClusterAPI) {
				clusters.EXPECT().DeleteClusterWithContext(gomock.Any(), gomock.Any()).Return(nil, errClusterNotFound)
				clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Times(0)
			},
		},
		{
			name: "delete rejected",
			setup: func(clusters *mock_aws.MockClusterAPI) {
				clusters.EXPECT().DeleteClusterWithContext(gomock.Any(), gomock.Any()).
					Return(nil, awserr.New(redshift.ErrCodeInvalidClusterStateFault, "busy", nil))
			},
			expectErr: true,
		},
		{
			name: "describe fails while waiting",
			setup: func(clusters *mock_aws.MockClusterAPI) {
				clusters.EXPECT().DeleteClusterWithContext(gomock.Any(), gomock.Any()).Return(&redshift.DeleteClusterOutput{}, nil)
				clusters.EXPECT().DescribeClustersWithContext(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))
			},
			expectErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p, _, clusters := newTestProvisioner(t, 5)
			test.setup(clusters)
			err := p.Teardown(context.Background(), testConfig())
			if test.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
