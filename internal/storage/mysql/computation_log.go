package mysql

import (
	"context"
	"database/sql"

	"QVeritas/internal/compute"
	xerrors "QVeritas/internal/errors"
)

// ComputationLog 将计算记录追加到 computations 表，实现 compute.Log。
type ComputationLog struct {
	db *sql.DB
}

// NewComputationLog 基于共享连接创建计算日志。
func NewComputationLog(db *sql.DB) *ComputationLog {
	return &ComputationLog{db: db}
}

// Append 追加一条记录。
func (l *ComputationLog) Append(ctx context.Context, rec compute.Record) error {
	const stmt = `INSERT INTO computations (operation, arguments, seed, timestamp, result_hash, execution_time)
        VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := l.db.ExecContext(ctx, stmt,
		rec.Operation,
		rec.Arguments,
		rec.Seed,
		rec.Timestamp,
		rec.ResultHash,
		rec.ExecutionTime,
	); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入计算记录失败")
	}
	return nil
}

// List 按追加顺序返回全部记录。
func (l *ComputationLog) List(ctx context.Context) ([]compute.Record, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT operation, arguments, seed, timestamp, result_hash, execution_time FROM computations ORDER BY seq ASC`)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询计算记录失败")
	}
	defer rows.Close()

	var out []compute.Record
	for rows.Next() {
		var rec compute.Record
		if err := rows.Scan(&rec.Operation, &rec.Arguments, &rec.Seed, &rec.Timestamp, &rec.ResultHash, &rec.ExecutionTime); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析计算记录失败")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历计算记录失败")
	}
	return out, nil
}

// Len 返回记录数。
func (l *ComputationLog) Len(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM computations`).Scan(&n); err != nil {
		return 0, xerrors.Wrap(xerrors.CodeStorageFailure, err, "统计计算记录失败")
	}
	return n, nil
}

var _ compute.Log = (*ComputationLog)(nil)
