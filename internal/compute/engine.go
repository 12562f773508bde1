// Package compute 实现确定性计算引擎：固定种子的内容哈希，以及一组封闭的
// 数值运算，每次成功的运算都会写入计算日志。
package compute

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	xerrors "QVeritas/internal/errors"
	"QVeritas/pkg/logger"
)

// Engine 是确定性计算引擎，种子在实例生命周期内固定。
type Engine struct {
	seed   int64
	prefix [8]byte
	log    Log
	now    func() time.Time
	logger *slog.Logger
}

// Option 配置 Engine。
type Option func(*Engine)

// WithLog 替换默认的内存计算日志。
func WithLog(l Log) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock 注入时钟，便于测试。
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine 使用给定种子创建引擎。种子以 8 字节大端无符号形式参与哈希，
// 因此不能为负数。
func NewEngine(seed int64, opts ...Option) (*Engine, error) {
	if seed < 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "deterministic seed must be non-negative",
			xerrors.WithMetadata("seed", fmt.Sprint(seed)))
	}
	e := &Engine{
		seed:   seed,
		log:    NewMemoryLog(),
		now:    time.Now,
		logger: logger.Named("compute"),
	}
	binary.BigEndian.PutUint64(e.prefix[:], uint64(seed))
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Seed 返回引擎种子。
func (e *Engine) Seed() int64 { return e.seed }

// DeterministicHash 返回 hex(sha256(seed_be64 || data))。
func (e *Engine) DeterministicHash(data []byte) string {
	h := sha256.New()
	h.Write(e.prefix[:])
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SecureComputation 执行受支持的数值运算：
//
//	matrix_multiply(a, b [][]float64) [][]float64
//	eigenvalue_decomposition(a [][]float64) EigenResult
//	polynomial_evaluation(coeffs []float64, x float64) float64
//
// 只有成功的运算才会写入计算日志。
func (e *Engine) SecureComputation(ctx context.Context, op string, args ...any) (any, error) {
	if !Supported(op) {
		return nil, invalidOperation(op)
	}
	start := e.now()

	result, err := e.dispatch(op, args)
	if err != nil {
		e.logger.Debug("计算失败", "operation", op, "error", err)
		return nil, err
	}

	rec := Record{
		Operation:     op,
		Arguments:     fmt.Sprint([]any(args)),
		Seed:          e.seed,
		Timestamp:     unixSeconds(start),
		ResultHash:    e.DeterministicHash([]byte(fmt.Sprint(result))),
		ExecutionTime: e.now().Sub(start).Seconds(),
	}
	if err := e.log.Append(ctx, rec); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "append computation record")
	}
	e.logger.Debug("计算完成", "operation", op, "result_hash", rec.ResultHash)
	return result, nil
}

func (e *Engine) dispatch(op string, args []any) (any, error) {
	switch op {
	case OpMatrixMultiply:
		if len(args) != 2 {
			return nil, invalidArgument(op, fmt.Sprintf("expected 2 arguments, got %d", len(args)))
		}
		a, err := matrixArg(op, args[0])
		if err != nil {
			return nil, err
		}
		b, err := matrixArg(op, args[1])
		if err != nil {
			return nil, err
		}
		return matrixMultiply(a, b)
	case OpEigenvalueDecomposition:
		if len(args) != 1 {
			return nil, invalidArgument(op, fmt.Sprintf("expected 1 argument, got %d", len(args)))
		}
		a, err := matrixArg(op, args[0])
		if err != nil {
			return nil, err
		}
		return eigenDecomposition(a)
	case OpPolynomialEvaluation:
		if len(args) != 2 {
			return nil, invalidArgument(op, fmt.Sprintf("expected 2 arguments, got %d", len(args)))
		}
		coeffs, ok := args[0].([]float64)
		if !ok {
			return nil, invalidArgument(op, fmt.Sprintf("coefficients must be []float64, got %T", args[0]))
		}
		x, ok := floatArg(args[1])
		if !ok {
			return nil, invalidArgument(op, fmt.Sprintf("x must be numeric, got %T", args[1]))
		}
		return polynomialEvaluation(coeffs, x), nil
	default:
		return nil, invalidOperation(op)
	}
}

func matrixArg(op string, v any) ([][]float64, error) {
	m, ok := v.([][]float64)
	if !ok {
		return nil, invalidArgument(op, fmt.Sprintf("matrix must be [][]float64, got %T", v))
	}
	return m, nil
}

func floatArg(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

// Records 返回计算日志。
func (e *Engine) Records(ctx context.Context) ([]Record, error) {
	records, err := e.log.List(ctx)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "list computation records")
	}
	return records, nil
}

// Count 返回计算日志长度。
func (e *Engine) Count(ctx context.Context) (int, error) {
	n, err := e.log.Len(ctx)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeStorageFailure, err, "count computation records")
	}
	return n, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
