// Package s3store is a docstore backend that keeps one JSON object per path
// in an S3-compatible bucket. Conditional writes (If-None-Match, If-Match)
// give Create and UpdateIf their atomicity.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/ticketdesk/internal/server/docstore"
)

const (
	suffix      = ".json"
	contentType = "application/json"

	// maxMergeAttempts bounds the read-merge-write loop when another writer
	// changes the object between read and conditional put.
	maxMergeAttempts = 5
)

// API is the subset of *s3.Client used by the store.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	s3.ListObjectsV2APIClient
}

// Options configure a connection to the bucket.
type Options struct {
	Bucket       string
	Prefix       string
	Region       string
	User         string
	Password     string
	BaseEndpoint string
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type Store struct {
	api    API
	bucket string
	prefix string
}

var _ docstore.Store = (*Store)(nil)

// New builds an S3 client from static credentials and returns a store on it.
// Path-style addressing is used so MinIO endpoints work unchanged.
func New(ctx context.Context, opts Options) (*Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.User,
			opts.Password,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("docstore: load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true
	})
	return NewWithAPI(client, opts.Bucket, opts.Prefix), nil
}

// NewWithAPI returns a store on an existing client.
func NewWithAPI(api API, bucket, prefix string) *Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{api: api, bucket: bucket, prefix: prefix}
}

func (s *Store) key(p string) string {
	return s.prefix + p + suffix
}

func (s *Store) Get(ctx context.Context, path string, dst any) error {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return err
	}
	raw, _, err := s.read(ctx, s.key(p))
	if err != nil {
		return err
	}
	return docstore.Decode(raw, dst)
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return err
	}
	raw, err := docstore.Encode(value)
	if err != nil {
		return err
	}
	return s.write(ctx, s.key(p), raw, nil, nil)
}

func (s *Store) Create(ctx context.Context, path string, value any) error {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return err
	}
	raw, err := docstore.Encode(value)
	if err != nil {
		return err
	}
	err = s.write(ctx, s.key(p), raw, nil, aws.String("*"))
	if isPreconditionFailed(err) {
		return docstore.ErrAlreadyExists
	}
	return err
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	_, err := s.merge(ctx, path, fields, func([]byte) bool { return true })
	return err
}

func (s *Store) UpdateIf(ctx context.Context, path, field, expected string, fields map[string]any) (bool, error) {
	return s.merge(ctx, path, fields, func(doc []byte) bool {
		return docstore.FieldEquals(doc, field, expected)
	})
}

// merge reads the object, checks cond, and writes the merged document with
// If-Match on the etag it read. A concurrent write makes the put fail with
// 412, in which case the object is re-read and cond evaluated again.
func (s *Store) merge(ctx context.Context, path string, fields map[string]any, cond func([]byte) bool) (bool, error) {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return false, err
	}
	patch, err := docstore.EncodeFields(fields)
	if err != nil {
		return false, err
	}
	key := s.key(p)

	for attempt := 0; attempt < maxMergeAttempts; attempt++ {
		doc, etag, err := s.read(ctx, key)
		if err != nil {
			return false, err
		}
		if !cond(doc) {
			return false, nil
		}
		merged, err := docstore.Merge(doc, patch)
		if err != nil {
			return false, err
		}

		err = s.write(ctx, key, merged, etag, nil)
		if err == nil {
			return true, nil
		}
		if !isPreconditionFailed(err) {
			return false, err
		}
	}
	return false, fmt.Errorf("docstore: %s: too many concurrent writers", p)
}

func (s *Store) Remove(ctx context.Context, path string) error {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return err
	}
	_, err = s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("docstore: delete %s: %w", p, err)
	}
	return nil
}

func (s *Store) Push(ctx context.Context, parent string, value any) (string, error) {
	p, err := docstore.CleanPath(parent)
	if err != nil {
		return "", err
	}
	key, err := docstore.NewPushKey()
	if err != nil {
		return "", err
	}
	if err := s.Create(ctx, docstore.Join(p, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) List(ctx context.Context, parent string) (map[string]json.RawMessage, error) {
	p, err := docstore.CleanPath(parent)
	if err != nil {
		return nil, err
	}
	prefix := s.prefix + p + "/"

	out := make(map[string]json.RawMessage)
	pager := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("docstore: list %s: %w", p, err)
		}
		for _, obj := range page.Contents {
			objKey := aws.ToString(obj.Key)
			name, ok := strings.CutSuffix(strings.TrimPrefix(objKey, prefix), suffix)
			if !ok || name == "" {
				continue
			}
			raw, _, err := s.read(ctx, objKey)
			if errors.Is(err, docstore.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out[name] = raw
		}
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("docstore: head bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) read(ctx context.Context, key string) ([]byte, *string, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil, docstore.ErrNotFound
		}
		return nil, nil, fmt.Errorf("docstore: get %s: %w", key, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("docstore: read %s: %w", key, err)
	}
	return raw, out.ETag, nil
}

func (s *Store) write(ctx context.Context, key string, raw []byte, ifMatch, ifNoneMatch *string) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String(contentType),
		IfMatch:     ifMatch,
		IfNoneMatch: ifNoneMatch,
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return err
		}
		return fmt.Errorf("docstore: put %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var ae smithy.APIError
	return errors.As(err, &ae) && (ae.ErrorCode() == "NoSuchKey" || ae.ErrorCode() == "NotFound")
}

func isPreconditionFailed(err error) bool {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}
