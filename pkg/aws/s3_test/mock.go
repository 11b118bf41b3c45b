package s3_test

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
)

func NewMockS3() *MockS3 {
	return &MockS3{
		buckets: map[string]map[string][]byte{},
	}
}

// MockS3 mimics the listing side of an S3 blob store for testing.
type MockS3 struct {
	sync.RWMutex
	buckets map[string]map[string][]byte

	// Calls counts ListObjectsV2WithContext invocations.
	Calls int
}

func (m *MockS3) NewBucket(name string) {
	m.Lock()
	defer m.Unlock()
	m.buckets[name] = map[string][]byte{}
}

// Put stores data under key, creating the bucket if needed.
func (m *MockS3) Put(bucket, key string, data []byte) {
	m.Lock()
	defer m.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		b = map[string][]byte{}
		m.buckets[bucket] = b
	}
	b[key] = data
}

func (m *MockS3) ListObjectsV2WithContext(_ aws.Context, in *s3.ListObjectsV2Input, _ ...request.Option) (*s3.ListObjectsV2Output, error) {
	m.Lock()
	m.Calls++
	m.Unlock()

	m.RLock()
	defer m.RUnlock()

	bucket, ok := m.buckets[aws.StringValue(in.Bucket)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchBucket, fmt.Sprintf("bucket '%s' does not exist", aws.StringValue(in.Bucket)), nil)
	}

	var keys []string
	for key := range bucket {
		if strings.HasPrefix(key, aws.StringValue(in.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if max := int(aws.Int64Value(in.MaxKeys)); max > 0 && len(keys) > max {
		keys = keys[:max]
	}

	objects := make([]*s3.Object, len(keys))
	for i, key := range keys {
		objects[i] = &s3.Object{Key: aws.String(key), Size: aws.Int64(int64(len(bucket[key])))}
	}
	out := new(s3.ListObjectsV2Output)
	out.SetContents(objects)
	out.SetKeyCount(int64(len(objects)))
	return out, nil
}
