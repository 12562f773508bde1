package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"QVeritas/internal/config"
	xerrors "QVeritas/internal/errors"
)

// DefaultFileName 是本地导出的默认文件名。
const DefaultFileName = "qveritas_audit.json"

// Sink 是审计报告的写入目标，返回报告所在位置。
type Sink interface {
	Write(ctx context.Context, report []byte) (string, error)
}

// NewSink 根据配置构造导出目标。
func NewSink(ctx context.Context, cfg config.AuditConfig) (Sink, error) {
	switch cfg.Sink {
	case "", "file":
		path := cfg.Path
		if path == "" {
			path = DefaultFileName
		}
		return NewFileSink(path), nil
	case "s3":
		return NewS3Sink(ctx, S3Config{
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
			Prefix:   cfg.Prefix,
		})
	case "gcs":
		return newGCSSink(ctx, cfg.Bucket, cfg.Prefix)
	default:
		return nil, xerrors.New(xerrors.CodeConfiguration, fmt.Sprintf("unsupported audit sink %q", cfg.Sink))
	}
}

// FileSink 将报告写入本地文件，先写临时文件再原子替换。
type FileSink struct {
	path string
}

// NewFileSink 创建文件导出目标。
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Write 实现 Sink 接口。
func (s *FileSink) Write(_ context.Context, report []byte) (string, error) {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", xerrors.Wrap(xerrors.CodeStorageFailure, err, "create audit directory")
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, report, 0o644); err != nil {
		return "", xerrors.Wrap(xerrors.CodeStorageFailure, err, "write audit report")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return "", xerrors.Wrap(xerrors.CodeStorageFailure, err, "replace audit report")
	}
	return s.path, nil
}

// objectKey 为对象存储生成带时间戳的键，保留历史报告。
func objectKey(prefix string, at time.Time) string {
	return prefix + "qveritas_audit_" + at.UTC().Format("20060102T150405.000000000Z") + ".json"
}
