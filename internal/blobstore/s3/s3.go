// Package s3 stores blobs as objects in an S3 or S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/S1riyS/drive-core/server/internal/blobstore"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// API is the subset of the S3 client the store uses.
type API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	KeyPrefix       string
	UsePathStyle    bool
}

type Store struct {
	client    API
	bucket    string
	keyPrefix string
}

// NewClient builds an S3 client from static settings, falling back to the
// default AWS credential chain when no keys are given.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// New verifies bucket access and returns the store. The bucket must exist.
func New(ctx context.Context, client API, bucket, keyPrefix string) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", bucket, err)
	}

	return &Store{client: client, bucket: bucket, keyPrefix: keyPrefix}, nil
}

func (s *Store) Put(ctx context.Context, area blobstore.Area, data []byte) (string, error) {
	handle := blobstore.NewHandle(area)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(handle)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("blob %s: %w", handle, err)
	}

	return handle, nil
}

func (s *Store) Get(ctx context.Context, handle string) ([]byte, error) {
	if _, _, err := blobstore.ParseHandle(handle); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(handle)),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("blob %s: %w", handle, blobstore.ErrNotFound)
		}
		return nil, fmt.Errorf("blob %s: %w", handle, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", handle, err)
	}

	return data, nil
}

func (s *Store) Delete(ctx context.Context, handle string) error {
	if _, _, err := blobstore.ParseHandle(handle); err != nil {
		return err
	}

	// S3 DeleteObject already succeeds for missing keys.
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(handle)),
	})
	if err != nil {
		return fmt.Errorf("blob %s: %w", handle, err)
	}

	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) key(handle string) string {
	return s.keyPrefix + handle
}
