package redis

import (
	"context"
	"encoding/json"

	goredis "github.com/redis/go-redis/v9"

	"QVeritas/internal/compute"
	xerrors "QVeritas/internal/errors"
)

// ComputationLog 使用 Redis list 保存计算记录，实现 compute.Log。
type ComputationLog struct {
	client goredis.Cmdable
	key    string
}

// NewComputationLog 创建计算日志，client 由调用方管理。
func NewComputationLog(client goredis.Cmdable, prefix string) *ComputationLog {
	return &ComputationLog{client: client, key: key(prefix, "computations")}
}

// Append 通过 RPUSH 追加记录。
func (l *ComputationLog) Append(ctx context.Context, rec compute.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码计算记录失败")
	}
	if err := l.client.RPush(ctx, l.key, raw).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入计算记录失败")
	}
	return nil
}

// List 按追加顺序返回全部记录。
func (l *ComputationLog) List(ctx context.Context) ([]compute.Record, error) {
	values, err := l.client.LRange(ctx, l.key, 0, -1).Result()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询计算记录失败")
	}
	out := make([]compute.Record, 0, len(values))
	for _, v := range values {
		var rec compute.Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析计算记录失败")
		}
		out = append(out, rec)
	}
	return out, nil
}

// Len 返回记录数。
func (l *ComputationLog) Len(ctx context.Context) (int, error) {
	n, err := l.client.LLen(ctx, l.key).Result()
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeStorageFailure, err, "统计计算记录失败")
	}
	return int(n), nil
}

var _ compute.Log = (*ComputationLog)(nil)
