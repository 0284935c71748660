package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appcfg "log-archiver/internal/config"
	"log-archiver/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.StorageBackend = (*S3Backend)(nil)

// S3Backend ships artifacts to an S3 (or S3-compatible) bucket. S3 PUTs
// are atomic per object, so a failed upload leaves nothing visible, and
// a re-upload to the same key overwrites cleanly.
type S3Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Backend(ctx context.Context, cfg appcfg.S3Config, keyPrefix string) (*S3Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // MinIO and friends
		}
	})
	return &S3Backend{client: client, bucket: cfg.Bucket, prefix: keyPrefix}, nil
}

func (b *S3Backend) fullKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return path.Join(b.prefix, key)
}

func (b *S3Backend) Put(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	defer f.Close()

	full := b.fullKey(key)
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(full),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", b.bucket, full), nil
}

func (b *S3Backend) Delete(ctx context.Context, key string) error {
	// S3 DeleteObject succeeds for missing keys.
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

func (b *S3Backend) List(ctx context.Context, olderThan time.Time) ([]adapter.ObjectInfo, error) {
	var out []adapter.ObjectInfo
	in := &s3.ListObjectsV2Input{Bucket: aws.String(b.bucket)}
	if b.prefix != "" {
		in.Prefix = aws.String(b.prefix + "/")
	}
	p := s3.NewListObjectsV2Paginator(b.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || obj.LastModified == nil {
				continue
			}
			if !olderThan.IsZero() && !obj.LastModified.Before(olderThan) {
				continue
			}
			key := *obj.Key
			if b.prefix != "" {
				key = key[len(b.prefix)+1:]
			}
			var size int64
			if obj.Size != nil {
				size = *obj.Size
			}
			out = append(out, adapter.ObjectInfo{Key: key, Size: size, ModTime: *obj.LastModified})
		}
	}
	return out, nil
}
