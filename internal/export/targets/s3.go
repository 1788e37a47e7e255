package targets

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/logger"
)

const defaultS3Region = "us-east-1"

// S3TargetConfig holds construction parameters for an S3-compatible bucket (AWS S3 or MinIO)
type S3TargetConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // optional custom endpoint
	Prefix          string // key prefix, e.g. "linewalk/exports"
	AccessKeyID     string // optional, falls back to the default credentials chain
	SecretAccessKey string
	PathStyle       bool
}

// S3Target puts exports into a bucket
type S3Target struct {
	client *s3.Client
	bucket string
	prefix string
	log    logger.Logger
}

// NewS3Target loads AWS configuration and creates the client
func NewS3Target(ctx context.Context, cfg S3TargetConfig, log logger.Logger, optFns ...func(*s3.Options)) (*S3Target, error) {
	if cfg.Bucket == "" {
		return nil, errors.Newf("s3: bucket is required").
			Component("export").
			Category(errors.CategoryConfiguration).
			Build()
	}
	region := cfg.Region
	if region == "" {
		region = defaultS3Region
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.New(err).
			Component("export").
			Category(errors.CategoryConfiguration).
			Context("target", TypeS3).
			Build()
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

	if log == nil {
		log = GetLogger()
	}
	return &S3Target{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		log:    log.Module(TypeS3),
	}, nil
}

// NewS3TargetFromMap reads bucket, region, endpoint, prefix, access_key_id,
// secret_access_key and path_style
func NewS3TargetFromMap(ctx context.Context, settings map[string]any, log logger.Logger) (*S3Target, error) {
	p := NewSettingsParser(settings, TypeS3)
	cfg := S3TargetConfig{
		Bucket:          p.RequireString("bucket"),
		Region:          p.OptionalString("region", defaultS3Region),
		Endpoint:        p.OptionalString("endpoint", ""),
		Prefix:          p.OptionalString("prefix", ""),
		AccessKeyID:     p.OptionalString("access_key_id", ""),
		SecretAccessKey: p.OptionalString("secret_access_key", ""),
		PathStyle:       p.OptionalBool("path_style", false),
	}
	if err := p.Error(); err != nil {
		return nil, err
	}
	return NewS3Target(ctx, cfg, log)
}

// Name returns the name of this target
func (t *S3Target) Name() string { return TypeS3 }

// Key returns the object key a file name is stored under
func (t *S3Target) Key(name string) string {
	if t.prefix == "" {
		return name
	}
	return path.Join(t.prefix, name)
}

// Store puts the file as a single object, overwriting any previous one
func (t *S3Target) Store(ctx context.Context, name string, r io.Reader) error {
	if err := ValidateFileName(name); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return storeError(TypeS3, "read", err)
	}

	key := t.Key(name)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if ct := ContentTypeFor(name); ct != "" {
		input.ContentType = aws.String(ct)
	}
	if _, err := t.client.PutObject(ctx, input); err != nil {
		return storeError(TypeS3, "put object", err)
	}

	t.log.Info("export uploaded",
		logger.String("bucket", t.bucket),
		logger.String("key", key),
		logger.Int("bytes", len(data)))
	return nil
}
