package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/iam"

	"github.com/sparkify/dwh/pkg/config"
)

const (
	// RedshiftServicePrincipal is allowed to assume the role.
	RedshiftServicePrincipal = "redshift.amazonaws.com"
	// S3ReadOnlyPolicyARN is attached to newly created roles so COPY can read the sources.
	S3ReadOnlyPolicyARN = "arn:aws:iam::aws:policy/AmazonS3ReadOnlyAccess"

	roleDescription = "Allows Redshift clusters to call AWS services on your behalf."
	policyVersion   = "2012-10-17"
)

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Action    string            `json:"Action"`
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal"`
}

// TrustPolicy returns the assume-role policy document restricting the role
// to the Redshift service principal.
func TrustPolicy() (string, error) {
	doc := policyDocument{
		Version: policyVersion,
		Statement: []policyStatement{
			{
				Action:    "sts:AssumeRole",
				Effect:    "Allow",
				Principal: map[string]string{"Service": RedshiftServicePrincipal},
			},
		},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EnsureRole returns the ARN of the role named in cfg, creating the role and
// attaching the S3 read-only policy when it does not exist yet. An existing
// role is returned as is.
func (p *Provisioner) EnsureRole(ctx context.Context, cfg config.Config) (string, error) {
	name := cfg.IAMRole.Name
	if name == "" {
		return "", fmt.Errorf("IAM role name must be set")
	}
	logger := p.logger.WithField("role", name)

	arn, err := p.getRoleARN(ctx, name)
	switch {
	case err == nil:
		logger.Infof("role already exists, using existing role %s", arn)
		return arn, nil
	case !IsNotFound(err):
		return "", fmt.Errorf("unable to look up IAM role %s: %w", name, err)
	}

	trustPolicy, err := TrustPolicy()
	if err != nil {
		return "", fmt.Errorf("unable to build trust policy: %w", err)
	}

	logger.Infof("creating a new IAM role")
	_, err = p.roles.CreateRoleWithContext(ctx, &iam.CreateRoleInput{
		Path:                     aws.String("/"),
		RoleName:                 aws.String(name),
		Description:              aws.String(roleDescription),
		AssumeRolePolicyDocument: aws.String(trustPolicy),
	})
	if err != nil {
		if isAlreadyExists(err) {
			return "", &ConflictError{Kind: "IAM role", Name: name, Err: err}
		}
		return "", fmt.Errorf("unable to create IAM role %s: %w", name, err)
	}

	logger.Infof("attaching policy %s", S3ReadOnlyPolicyARN)
	_, err = p.roles.AttachRolePolicyWithContext(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(name),
		PolicyArn: aws.String(S3ReadOnlyPolicyARN),
	})
	if err != nil {
		return "", fmt.Errorf("unable to attach policy %s to IAM role %s: %w", S3ReadOnlyPolicyARN, name, err)
	}

	arn, err = p.getRoleARN(ctx, name)
	if err != nil {
		return "", fmt.Errorf("unable to look up IAM role %s after creating it: %w", name, err)
	}
	logger.Infof("created role %s", arn)
	return arn, nil
}

func (p *Provisioner) getRoleARN(ctx context.Context, name string) (string, error) {
	out, err := p.roles.GetRoleWithContext(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if err != nil {
		return "", err
	}
	if out.Role == nil || aws.StringValue(out.Role.Arn) == "" {
		return "", fmt.Errorf("GetRole for %s returned no ARN", name)
	}
	return aws.StringValue(out.Role.Arn), nil
}
