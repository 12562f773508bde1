package redis

import (
	"context"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	xerrors "QVeritas/internal/errors"
)

// Config 描述 Redis 连接参数。
type Config struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// NewClient 创建客户端并确认连通性。
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "Redis address 不能为空")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 Redis 失败")
	}
	return client, nil
}

func key(prefix string, parts ...string) string {
	if prefix == "" {
		prefix = "qveritas"
	}
	return strings.Join(append([]string{prefix}, parts...), ":")
}
