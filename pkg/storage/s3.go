package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of *s3.Client the S3 store uses.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 stores each entry as an object named prefix+key.
//
// S3 offers no change feed a browser-style store could subscribe to, so
// Subscribe never delivers events and bindings with sync enabled simply
// keep their own value.
type S3 struct {
	id      string
	client  S3API
	bucket  string
	prefix  string
	timeout time.Duration
}

// S3Option configures an S3 store.
type S3Option func(*S3)

// WithS3Prefix sets the object key prefix. Default: "localstate/".
func WithS3Prefix(prefix string) S3Option {
	return func(s *S3) {
		s.prefix = prefix
	}
}

// WithS3Timeout bounds each request. Default: 10s.
func WithS3Timeout(d time.Duration) S3Option {
	return func(s *S3) {
		s.timeout = d
	}
}

// NewS3 returns a store on bucket.
//
// Example:
//
//	client := s3.New(s3.Options{Region: "eu-west-1", Credentials: creds})
//	store := storage.NewS3(client, "my-bucket", storage.WithS3Prefix("prefs/"))
func NewS3(client S3API, bucket string, opts ...S3Option) *S3 {
	s := &S3{
		id:      newID(),
		client:  client,
		bucket:  bucket,
		prefix:  "localstate/",
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *S3) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *S3) objectKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	return s.prefix + key, nil
}

// ID returns the handle identifier.
func (s *S3) ID() string { return s.id }

// Available always reports true.
func (s *S3) Available() bool { return true }

// GetItem downloads the object for key.
func (s *S3) GetItem(key string) (string, bool, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return "", false, err
	}
	ctx, cancel := s.ctx()
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if isNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: s3 get %q: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, fmt.Errorf("storage: s3 get %q: %w", key, err)
	}
	return string(data), true, nil
}

// SetItem uploads value as the object for key.
func (s *S3) SetItem(key, value string) error {
	objKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objKey),
		Body:        strings.NewReader(value),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("storage: s3 put %q: %w", key, err)
	}
	return nil
}

// RemoveItem deletes the object for key.
func (s *S3) RemoveItem(key string) error {
	objKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("storage: s3 delete %q: %w", key, err)
	}
	return nil
}

// Clear deletes every object under the prefix.
func (s *S3) Clear() error {
	keys, err := s.Keys()
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.RemoveItem(key); err != nil {
			return err
		}
	}
	return nil
}

// Keys lists the keys under the prefix.
func (s *S3) Keys() ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		ctx, cancel := s.ctx()
		page, err := paginator.NextPage(ctx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("storage: s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if key != "" {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

// Subscribe is a no-op; S3 has no change notifications.
func (s *S3) Subscribe(func(Event)) func() {
	return func() {}
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
