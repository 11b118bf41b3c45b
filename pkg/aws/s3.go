package aws

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	log "github.com/sirupsen/logrus"

	"github.com/sparkify/dwh/pkg/config"
)

// ErrSourceMissing is matched by errors returned when a COPY source has no
// objects.
var ErrSourceMissing = errors.New("no objects at source")

// SourceAPI is the subset of s3iface.S3API used to check COPY sources.
type SourceAPI interface {
	ListObjectsV2WithContext(ctx aws.Context, input *s3.ListObjectsV2Input, opts ...request.Option) (*s3.ListObjectsV2Output, error)
}

// ParseS3URI splits an s3://bucket/key URI. key may be empty or a prefix.
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 URI %q: %v", uri, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid S3 URI %q: expected s3://bucket/key", uri)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// SourceChecker verifies the S3 locations named in the config exist before
// the warehouse is asked to COPY from them.
type SourceChecker struct {
	logger log.FieldLogger
	s3API  SourceAPI
}

func NewSourceChecker(logger log.FieldLogger, s3API SourceAPI) *SourceChecker {
	return &SourceChecker{
		logger: logger.WithField("component", "sourceChecker"),
		s3API:  s3API,
	}
}

func NewSourceCheckerFromSession(logger log.FieldLogger, sess *session.Session) *SourceChecker {
	return NewSourceChecker(logger, s3.New(sess))
}

// CheckSources requires at least one object under each of the log data,
// JSONPaths and song data locations.
func (c *SourceChecker) CheckSources(ctx context.Context, cfg config.S3) error {
	for _, uri := range []string{cfg.LogData, cfg.LogJSONPath, cfg.SongData} {
		if err := c.checkSource(ctx, uri); err != nil {
			return err
		}
	}
	return nil
}

func (c *SourceChecker) checkSource(ctx context.Context, uri string) error {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return err
	}
	out, err := c.s3API.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(key),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return fmt.Errorf("unable to list %s: %w", uri, err)
	}
	if len(out.Contents) == 0 {
		return fmt.Errorf("%w: %s", ErrSourceMissing, uri)
	}
	c.logger.Debugf("found %s at %s", aws.StringValue(out.Contents[0].Key), uri)
	return nil
}
