package redis

import (
	"context"
	"encoding/json"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	xerrors "QVeritas/internal/errors"
	"QVeritas/internal/proof"
)

// HSETNX 与顺序列表写入放在同一脚本里，保证两者同时生效。
var putIfAbsentScript = goredis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 1 then
  redis.call('RPUSH', KEYS[2], ARGV[1])
  return 1
end
return 0
`)

// ProofStore 将证明缓存保存在 Redis hash 中，实现 proof.Store。
type ProofStore struct {
	client   goredis.Cmdable
	hashKey  string
	orderKey string
}

// NewProofStore 创建证明缓存，client 由调用方管理。
func NewProofStore(client goredis.Cmdable, prefix string) *ProofStore {
	return &ProofStore{
		client:   client,
		hashKey:  key(prefix, "proofs"),
		orderKey: key(prefix, "proofs", "order"),
	}
}

// PutIfAbsent 实现 proof.Store。
func (s *ProofStore) PutIfAbsent(ctx context.Context, p proof.Proof) (proof.Proof, bool, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return proof.Proof{}, false, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码证明失败")
	}
	inserted, err := putIfAbsentScript.Run(ctx, s.client, []string{s.hashKey, s.orderKey}, p.ID, string(body)).Int()
	if err != nil {
		return proof.Proof{}, false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入证明失败")
	}
	if inserted == 1 {
		return p.Clone(), true, nil
	}
	existing, ok, err := s.Get(ctx, p.ID)
	if err != nil {
		return proof.Proof{}, false, err
	}
	if !ok {
		return proof.Proof{}, false, xerrors.New(xerrors.CodeStorageFailure, "证明写入被忽略但记录不存在",
			xerrors.WithMetadata("proof_id", p.ID))
	}
	return existing, false, nil
}

// Get 实现 proof.Store。
func (s *ProofStore) Get(ctx context.Context, id string) (proof.Proof, bool, error) {
	body, err := s.client.HGet(ctx, s.hashKey, id).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return proof.Proof{}, false, nil
		}
		return proof.Proof{}, false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询证明失败")
	}
	p, err := decodeProof(body)
	if err != nil {
		return proof.Proof{}, false, err
	}
	return p, true, nil
}

// List 按写入顺序返回全部证明。
func (s *ProofStore) List(ctx context.Context) ([]proof.Proof, error) {
	ids, err := s.client.LRange(ctx, s.orderKey, 0, -1).Result()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询证明顺序失败")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	values, err := s.client.HMGet(ctx, s.hashKey, ids...).Result()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "批量读取证明失败")
	}
	out := make([]proof.Proof, 0, len(values))
	for _, v := range values {
		body, ok := v.(string)
		if !ok {
			continue
		}
		p, err := decodeProof(body)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Count 实现 proof.Store。
func (s *ProofStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.HLen(ctx, s.hashKey).Result()
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeStorageFailure, err, "统计证明失败")
	}
	return int(n), nil
}

// Close 不关闭共享客户端。
func (s *ProofStore) Close() error { return nil }

func decodeProof(body string) (proof.Proof, error) {
	var p proof.Proof
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return proof.Proof{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析证明失败")
	}
	return p, nil
}

var _ proof.Store = (*ProofStore)(nil)
