// Package veritas 将签名、确定性计算与证明生成串成 VerifyAndProve 流程。
package veritas

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"QVeritas/internal/compute"
	xerrors "QVeritas/internal/errors"
	"QVeritas/internal/proof"
	"QVeritas/internal/signing"
	"QVeritas/pkg/logger"
)

// ComputationHash 是默认的计算类型：对载荷做带种子的确定性哈希。
const ComputationHash = "hash"

// AlgorithmPrefix 是结果 algorithm 字段的前缀。
const AlgorithmPrefix = "qveritas_"

// Observer 接收每次验证的观测数据，用于指标。
type Observer interface {
	ObserveVerification(computationType string, valid bool, elapsed time.Duration)
}

// Orchestrator 协调签名服务、计算引擎与证明引擎。
type Orchestrator struct {
	signer        signing.Signer
	compute       *compute.Engine
	proofs        *proof.Engine
	securityLevel int
	observer      Observer
	now           func() time.Time
	random        io.Reader
	logger        *slog.Logger

	// gate 让 Snapshot 与进行中的 VerifyAndProve 互斥，导出时计数一致。
	gate sync.RWMutex

	mu         sync.RWMutex
	benchmarks map[string]BenchmarkResult
}

// Option 配置 Orchestrator。
type Option func(*Orchestrator)

// WithSecurityLevel 设置写入审计报告的安全级别。
func WithSecurityLevel(level int) Option {
	return func(o *Orchestrator) {
		if level > 0 {
			o.securityLevel = level
		}
	}
}

// WithObserver 注册观测回调。
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// WithClock 注入时钟。
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRandom 替换基准测试载荷的随机源。
func WithRandom(r io.Reader) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.random = r
		}
	}
}

// New 创建 Orchestrator。
func New(signer signing.Signer, computeEngine *compute.Engine, proofEngine *proof.Engine, opts ...Option) (*Orchestrator, error) {
	if signer == nil || computeEngine == nil || proofEngine == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "orchestrator requires signer, compute engine and proof engine")
	}
	o := &Orchestrator{
		signer:        signer,
		compute:       computeEngine,
		proofs:        proofEngine,
		securityLevel: 256,
		now:           time.Now,
		random:        rand.Reader,
		logger:        logger.Named("veritas"),
		benchmarks:    map[string]BenchmarkResult{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if !signer.Secure() {
		o.logger.Warn("签名方案不具备密码学安全性，仅用于演示与测试", "scheme", signer.Scheme())
	}
	return o, nil
}

// Signer 返回签名服务。
func (o *Orchestrator) Signer() signing.Signer { return o.signer }

// Compute 返回计算引擎。
func (o *Orchestrator) Compute() *compute.Engine { return o.compute }

// Proofs 返回证明引擎。
func (o *Orchestrator) Proofs() *proof.Engine { return o.proofs }

// SecurityLevel 返回安全级别。
func (o *Orchestrator) SecurityLevel() int { return o.securityLevel }

// VerifyAndProve 对 data 执行 computationType 计算、签名原始载荷、生成并验证证明。
// 每次调用使用新的密钥对：相同载荷得到相同 proof_id，但签名不同。
// 流程内部不重试，下层错误直接返回。
func (o *Orchestrator) VerifyAndProve(ctx context.Context, data []byte, computationType string) (*proof.VerificationResult, error) {
	o.gate.RLock()
	defer o.gate.RUnlock()

	if computationType == "" {
		computationType = ComputationHash
	}
	start := o.now()

	keys, err := o.signer.Keygen()
	if err != nil {
		o.observe(computationType, false, start)
		return nil, err
	}

	var result any
	if computationType == ComputationHash {
		result = o.compute.DeterministicHash(data)
	} else {
		result, err = o.compute.ComputePayload(ctx, computationType, data)
		if err != nil {
			o.observe(computationType, false, start)
			return nil, err
		}
	}

	signature, err := o.signer.Sign(data, keys.PrivateKey)
	if err != nil {
		o.observe(computationType, false, start)
		return nil, err
	}

	proofID, err := o.proofs.GenerateProof(ctx, computationType,
		map[string]string{"input_data": proof.Snapshot(hex.EncodeToString(data))},
		map[string]string{"result": proof.Snapshot(fmt.Sprint(result))},
	)
	if err != nil {
		o.observe(computationType, false, start)
		return nil, err
	}
	verified := o.proofs.VerifyProof(ctx, proofID)

	elapsed := o.now().Sub(start)
	res := &proof.VerificationResult{
		Valid:      verified.Valid,
		ProofHash:  verified.ProofHash,
		Timestamp:  proof.Seconds(o.now()),
		Algorithm:  AlgorithmPrefix + computationType,
		Confidence: proof.ConfidenceVerified,
		Metadata: map[string]any{
			"execution_time":     elapsed.Seconds(),
			"signature":          hex.EncodeToString(signature),
			"public_key":         hex.EncodeToString(keys.PublicKey),
			"proof_id":           proofID,
			"deterministic_seed": o.compute.Seed(),
			"signing_scheme":     o.signer.Scheme(),
			"signing_secure":     o.signer.Secure(),
		},
	}
	o.observe(computationType, verified.Valid, start)
	logger.Audit().Info("verification completed",
		"proof_id", proofID,
		"computation_type", computationType,
		"valid", verified.Valid,
		"signing_scheme", o.signer.Scheme(),
	)
	return res, nil
}

func (o *Orchestrator) observe(computationType string, valid bool, start time.Time) {
	if o.observer == nil {
		return
	}
	o.observer.ObserveVerification(computationType, valid, o.now().Sub(start))
}
