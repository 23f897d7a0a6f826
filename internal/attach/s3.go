package attach

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds configuration for the S3 backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string

	// Region is the AWS region.
	Region string

	// Endpoint overrides the S3 endpoint, for S3-compatible services such
	// as MinIO.
	Endpoint string

	// AccessKeyID and SecretAccessKey are optional; the default credential
	// chain applies when they are empty.
	AccessKeyID     string
	SecretAccessKey string

	// UsePathStyle forces path-style addressing (required for MinIO).
	UsePathStyle bool

	// Prefix is prepended to every key.
	Prefix string
}

// S3Backend stores blobs in Amazon S3 or an S3-compatible service.
type S3Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 creates an S3 backend and verifies the bucket is reachable.
func NewS3(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, &Error{Op: "NewS3", Err: fmt.Errorf("bucket name is required")}
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &Error{Op: "NewS3", Err: fmt.Errorf("load AWS config: %w", err)}
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, &Error{Op: "NewS3", Err: fmt.Errorf("bucket not accessible: %w", err)}
	}

	return &S3Backend{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (b *S3Backend) fullKey(key string) string {
	return b.prefix + key
}

func isNotFoundError(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	return strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404")
}

// Exists checks if a blob exists at the given key.
func (b *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, &Error{Op: "Exists", Key: key, Err: err}
	}
	return true, nil
}

// Reader returns the blob content.
func (b *S3Backend) Reader(ctx context.Context, key string) (io.ReadCloser, *FileInfo, error) {
	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil, &Error{Op: "Reader", Key: key, Err: errNotFound{}}
		}
		return nil, nil, &Error{Op: "Reader", Key: key, Err: err}
	}

	info := &FileInfo{Key: key}
	if output.ContentType != nil {
		info.ContentType = *output.ContentType
	}
	if output.ETag != nil {
		info.ETag = strings.Trim(*output.ETag, "\"")
	}
	if output.LastModified != nil {
		info.ModTime = *output.LastModified
	}
	if output.ContentLength != nil {
		info.Size = *output.ContentLength
	}
	return output.Body, info, nil
}

// Write stores content at the given key. Content is buffered to compute
// the Content-MD5 header.
func (b *S3Backend) Write(ctx context.Context, key string, content io.Reader, size int64, contentType string) (*FileInfo, error) {
	var buf bytes.Buffer
	h := md5.New()
	writer := io.MultiWriter(&buf, h)

	var written int64
	var err error
	if size >= 0 {
		written, err = io.CopyN(writer, content, size)
	} else {
		written, err = io.Copy(writer, content)
	}
	if err != nil && err != io.EOF {
		return nil, &Error{Op: "Write", Key: key, Err: fmt.Errorf("buffer content: %w", err)}
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
		Body:   bytes.NewReader(buf.Bytes()),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		return nil, &Error{Op: "Write", Key: key, Err: err}
	}

	return &FileInfo{
		Key:         key,
		Size:        written,
		ContentType: contentType,
		ETag:        hex.EncodeToString(h.Sum(nil)),
		ModTime:     time.Now(),
	}, nil
}

// Delete removes a blob. S3 deletes are idempotent.
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	})
	if err != nil {
		return &Error{Op: "Delete", Key: key, Err: err}
	}
	return nil
}

// Close releases resources.
func (b *S3Backend) Close() error {
	return nil
}
