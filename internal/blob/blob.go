// Package blob removes facility photos from S3-compatible object storage.
package blob

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Store deletes objects by key prefix.
type Store interface {
	// DeletePrefix removes every object under prefix and returns how many
	// were deleted.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Config holds S3 connection settings. An empty Endpoint uses AWS.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// S3Store implements Store on a single bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3 creates an S3Store using the default AWS credential chain.
func NewS3(ctx context.Context, cfg Config, optFns ...func(*s3.Options)) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, eris.New("blob: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, eris.Wrap(err, "blob: load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		for _, fn := range optFns {
			fn(o)
		}
	})
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// DeletePrefix lists and deletes all keys under prefix. An empty prefix is
// rejected so a missing slug can never clear the bucket.
func (s *S3Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return 0, eris.New("blob: empty prefix")
	}
	prefix += "/"

	var keys []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return 0, eris.Wrapf(err, "blob: list %s", prefix)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}

	deleted := 0
	for _, key := range keys {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}); err != nil {
			return deleted, eris.Wrapf(err, "blob: delete %s", key)
		}
		deleted++
	}
	zap.L().Debug("blob: deleted prefix", zap.String("prefix", prefix), zap.Int("objects", deleted))
	return deleted, nil
}
