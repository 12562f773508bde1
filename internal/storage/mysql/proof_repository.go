package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"

	xerrors "QVeritas/internal/errors"
	"QVeritas/internal/proof"
)

// ProofRepository 将证明缓存持久化到 proofs 表，实现 proof.Store。
type ProofRepository struct {
	db *sql.DB
}

// NewProofRepository 基于共享连接创建证明仓储。
func NewProofRepository(db *sql.DB) *ProofRepository {
	return &ProofRepository{db: db}
}

// PutIfAbsent 使用 INSERT IGNORE 保证首次写入的记录保持权威。
func (r *ProofRepository) PutIfAbsent(ctx context.Context, p proof.Proof) (proof.Proof, bool, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return proof.Proof{}, false, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码证明失败")
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO proofs (proof_id, computation, body, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Computation, string(body), p.Timestamp)
	if err != nil {
		return proof.Proof{}, false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入证明失败")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return proof.Proof{}, false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "获取影响行数失败")
	}
	if affected > 0 {
		return p.Clone(), true, nil
	}
	existing, ok, err := r.Get(ctx, p.ID)
	if err != nil {
		return proof.Proof{}, false, err
	}
	if !ok {
		return proof.Proof{}, false, xerrors.New(xerrors.CodeStorageFailure, "证明写入被忽略但记录不存在",
			xerrors.WithMetadata("proof_id", p.ID))
	}
	return existing, false, nil
}

// Get 按 proof_id 读取证明。
func (r *ProofRepository) Get(ctx context.Context, id string) (proof.Proof, bool, error) {
	var body string
	err := r.db.QueryRowContext(ctx, `SELECT body FROM proofs WHERE proof_id = ?`, id).Scan(&body)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
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
func (r *ProofRepository) List(ctx context.Context) ([]proof.Proof, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT body FROM proofs ORDER BY seq ASC`)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询证明列表失败")
	}
	defer rows.Close()

	var out []proof.Proof
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析证明记录失败")
		}
		p, err := decodeProof(body)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历证明失败")
	}
	return out, nil
}

// Count 返回证明数量。
func (r *ProofRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM proofs`).Scan(&n); err != nil {
		return 0, xerrors.Wrap(xerrors.CodeStorageFailure, err, "统计证明失败")
	}
	return n, nil
}

// Close 不关闭共享连接。
func (r *ProofRepository) Close() error { return nil }

func decodeProof(body string) (proof.Proof, error) {
	var p proof.Proof
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return proof.Proof{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析证明失败")
	}
	return p, nil
}

var _ proof.Store = (*ProofRepository)(nil)
