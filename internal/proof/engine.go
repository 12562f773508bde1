package proof

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	xerrors "QVeritas/internal/errors"
	"QVeritas/pkg/logger"
)

// 验证结果使用的算法名称与置信度。
const (
	AlgorithmFormal       = "formal_proof_verification"
	AlgorithmVerification = "proof_verification"
	ConfidenceVerified    = 0.999

	// ErrProofNotFound 是未找到证明时写入元数据 error 字段的文本。
	ErrProofNotFound = "Proof not found"
)

// Engine 负责生成与验证证明。
type Engine struct {
	store     Store
	narrative string
	now       func() time.Time
	logger    *slog.Logger
}

// Option 配置 Engine。
type Option func(*Engine)

// WithClock 注入时钟。
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithNarrativeVersion 选择叙述版本。
func WithNarrativeVersion(version string) Option {
	return func(e *Engine) {
		if version != "" {
			e.narrative = version
		}
	}
}

// NewEngine 创建证明引擎，store 为空时使用内存实现。
func NewEngine(store Store, opts ...Option) (*Engine, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	e := &Engine{
		store:     store,
		narrative: NarrativeVersion,
		now:       time.Now,
		logger:    logger.Named("proof"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if _, ok := Narratives[e.narrative]; !ok {
		return nil, xerrors.New(xerrors.CodeConfiguration, fmt.Sprintf("unknown narrative version %q", e.narrative))
	}
	return e, nil
}

// GenerateProof 生成并缓存证明，返回其内容寻址 ID。相同参数总是得到相同 ID，
// 已存在的记录保持不变。仅在存储失败时返回错误。
func (e *Engine) GenerateProof(ctx context.Context, computation string, inputs, outputs map[string]string) (string, error) {
	id, err := ID(computation, inputs, outputs)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeInvalidArgument, err, "canonicalize proof content")
	}
	n := Narratives[e.narrative]
	p := Proof{
		ID:               id,
		Computation:      computation,
		Inputs:           cloneMap(nonNil(inputs)),
		Outputs:          cloneMap(nonNil(outputs)),
		Theorem:          n.Theorem,
		Steps:            append([]string(nil), n.Steps...),
		Axioms:           append([]string(nil), n.Axioms...),
		NarrativeVersion: e.narrative,
		Timestamp:        Seconds(e.now()),
	}
	_, inserted, err := e.store.PutIfAbsent(ctx, p)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeStorageFailure, err, "store proof",
			xerrors.WithMetadata("proof_id", id))
	}
	if inserted {
		logger.Audit().Info("proof generated", "proof_id", id, "computation", computation)
	} else {
		e.logger.Debug("证明已存在，沿用首次记录", "proof_id", id)
	}
	return id, nil
}

// VerifyProof 验证缓存中的证明，从不返回错误：未找到或存储失败时
// 返回 valid=false 的结果。
func (e *Engine) VerifyProof(ctx context.Context, id string) VerificationResult {
	p, ok, err := e.store.Get(ctx, id)
	if err != nil {
		e.logger.Warn("读取证明失败", "proof_id", id, "error", err)
		return e.failure(id, err.Error())
	}
	if !ok {
		return e.failure(id, ErrProofNotFound)
	}
	hash, err := p.Hash()
	if err != nil {
		return e.failure(id, err.Error())
	}
	return VerificationResult{
		Valid:      true,
		ProofHash:  hash,
		Timestamp:  Seconds(e.now()),
		Algorithm:  AlgorithmFormal,
		Confidence: ConfidenceVerified,
		Metadata: map[string]any{
			"proof_id":       id,
			"steps_verified": len(p.Steps),
			"axioms_count":   len(p.Axioms),
		},
	}
}

func (e *Engine) failure(id, reason string) VerificationResult {
	return VerificationResult{
		Valid:      false,
		ProofHash:  "",
		Timestamp:  Seconds(e.now()),
		Algorithm:  AlgorithmVerification,
		Confidence: 0,
		Metadata: map[string]any{
			"error":    reason,
			"proof_id": id,
		},
	}
}

// Lookup 返回缓存中的证明记录。
func (e *Engine) Lookup(ctx context.Context, id string) (Proof, bool, error) {
	p, ok, err := e.store.Get(ctx, id)
	if err != nil {
		return Proof{}, false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "load proof")
	}
	return p, ok, nil
}

// Proofs 返回全部缓存的证明。
func (e *Engine) Proofs(ctx context.Context) ([]Proof, error) {
	list, err := e.store.List(ctx)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "list proofs")
	}
	return list, nil
}

// Count 返回缓存中证明的数量。
func (e *Engine) Count(ctx context.Context) (int, error) {
	n, err := e.store.Count(ctx)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeStorageFailure, err, "count proofs")
	}
	return n, nil
}

// Close 释放底层存储。
func (e *Engine) Close() error {
	return e.store.Close()
}
