package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/ticketdesk/internal/server/docstore"
	"github.com/dmitrijs2005/ticketdesk/internal/server/docstore/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type object struct {
	body []byte
	etag string
}

// fakeS3 is an in-memory bucket honouring If-Match and If-None-Match.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]object
	seq     int
	headErr error
	putErr  error
	puts    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]object)}
}

func preconditionFailed() error {
	return &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(obj.body)),
		ETag: aws.String(obj.etag),
	}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return nil, f.putErr
	}
	key := aws.ToString(in.Key)
	cur, exists := f.objects[key]
	if aws.ToString(in.IfNoneMatch) == "*" && exists {
		return nil, preconditionFailed()
	}
	if in.IfMatch != nil && (!exists || cur.etag != aws.ToString(in.IfMatch)) {
		return nil, preconditionFailed()
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.seq++
	etag := fmt.Sprintf(`"%d"`, f.seq)
	f.objects[key] = object{body: body, etag: etag}
	return &s3.PutObjectOutput{ETag: aws.String(etag)}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	var keys []string
	for k := range f.objects {
		rest, ok := strings.CutPrefix(k, prefix)
		if !ok || (delim != "" && strings.Contains(rest, delim)) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestS3Store(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		return NewWithAPI(newFakeS3(), "bucket", "docs")
	})
}

func TestS3Store_KeysUsePrefix(t *testing.T) {
	fake := newFakeS3()
	s := NewWithAPI(fake, "bucket", "docs/")

	require.NoError(t, s.Set(context.Background(), "tickets/cs-1", map[string]string{"id": "cs-1"}))
	_, ok := fake.objects["docs/tickets/cs-1.json"]
	assert.True(t, ok)
}

// racingS3 changes the object between the store's read and its put once.
type racingS3 struct {
	*fakeS3
	once sync.Once
}

func (r *racingS3) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if in.IfMatch != nil {
		r.once.Do(func() {
			_, _ = r.fakeS3.PutObject(ctx, &s3.PutObjectInput{
				Key:  in.Key,
				Body: strings.NewReader(`{"status":"Cancelled"}`),
			})
		})
	}
	return r.fakeS3.PutObject(ctx, in, opts...)
}

func TestS3Store_UpdateIfRereadsAfterConflict(t *testing.T) {
	ctx := context.Background()
	api := &racingS3{fakeS3: newFakeS3()}
	s := NewWithAPI(api, "bucket", "")
	require.NoError(t, s.Set(ctx, "tickets/cs-1", map[string]string{"status": "Pending"}))

	ok, err := s.UpdateIf(ctx, "tickets/cs-1", "status", "Pending", map[string]any{"status": "Verified"})
	require.NoError(t, err)
	assert.False(t, ok, "the concurrent writer won")

	var got map[string]string
	require.NoError(t, s.Get(ctx, "tickets/cs-1", &got))
	assert.Equal(t, "Cancelled", got["status"])
}

func TestS3Store_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := NewWithAPI(fake, "bucket", "")

	fake.headErr = errors.New("unreachable")
	assert.ErrorContains(t, s.Ping(ctx), "unreachable")

	fake.putErr = errors.New("disk full")
	err := s.Set(ctx, "a/b", map[string]int{"x": 1})
	assert.ErrorContains(t, err, "disk full")
	assert.NotErrorIs(t, err, docstore.ErrAlreadyExists)
}

func TestNew_ConfiguresClient(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() { loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		var lo config.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-west-1", lo.Region)
		creds, err := lo.Credentials.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "user", creds.AccessKeyID)
		assert.Equal(t, "pass", creds.SecretAccessKey)
		return aws.Config{}, nil
	}
	fake := newFakeS3()
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) API {
		var o s3.Options
		for _, fn := range optFns {
			fn(&o)
		}
		assert.Equal(t, "http://127.0.0.1:9000/", aws.ToString(o.BaseEndpoint))
		assert.True(t, o.UsePathStyle)
		return fake
	}

	s, err := New(context.Background(), Options{
		Bucket: "b", Prefix: "p", Region: "eu-west-1",
		User: "user", Password: "pass", BaseEndpoint: "http://127.0.0.1:9000/",
	})
	require.NoError(t, err)
	assert.Equal(t, "p/", s.prefix)
	assert.Same(t, fake, s.api.(*fakeS3))
}

func TestNew_ConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(context.Context, ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}
	_, err := New(context.Background(), Options{})
	assert.ErrorContains(t, err, "no config")
}
