package audit

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	xerrors "QVeritas/internal/errors"
)

// S3Config 描述 S3 导出目标。Endpoint 可指向 MinIO 或 LocalStack。
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// S3Sink 将报告上传到 S3。
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Sink 使用默认凭证链创建 S3 导出目标。
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "s3 audit sink requires a bucket")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "load AWS config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Sink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, now: time.Now}, nil
}

// Write 实现 Sink 接口。
func (s *S3Sink) Write(ctx context.Context, report []byte) (string, error) {
	key := objectKey(s.prefix, s.now())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(report),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeStorageFailure, err, "upload audit report to s3")
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
