//go:build gcp

package audit

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"

	xerrors "QVeritas/internal/errors"
)

// GCSSink 将报告上传到 Google Cloud Storage。
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
	now    func() time.Time
}

func newGCSSink(ctx context.Context, bucket, prefix string) (Sink, error) {
	if bucket == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "gcs audit sink requires a bucket")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "create GCS client")
	}
	return &GCSSink{client: client, bucket: bucket, prefix: prefix, now: time.Now}, nil
}

// Write 实现 Sink 接口。
func (s *GCSSink) Write(ctx context.Context, report []byte) (string, error) {
	key := objectKey(s.prefix, s.now())
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(report); err != nil {
		_ = w.Close()
		return "", xerrors.Wrap(xerrors.CodeStorageFailure, err, "write audit report to gcs")
	}
	if err := w.Close(); err != nil {
		return "", xerrors.Wrap(xerrors.CodeStorageFailure, err, "close gcs writer")
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}
