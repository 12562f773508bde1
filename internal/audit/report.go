// Package audit 生成并导出审计报告，报告覆盖证明缓存、计算日志与基准数据。
package audit

import (
	"time"

	"QVeritas/internal/compute"
	xerrors "QVeritas/internal/errors"
	"QVeritas/internal/proof"
	"QVeritas/internal/veritas"
	"QVeritas/pkg/canonical"
)

// Version 是写入报告的 qveritas_version。
const Version = "1.0.0"

// Report 是持久化的审计报告。
type Report struct {
	QVeritasVersion      string                             `json:"qveritas_version"`
	SecurityLevel        int                                `json:"security_level"`
	DeterministicSeed    int64                              `json:"deterministic_seed"`
	SigningScheme        string                             `json:"signing_scheme"`
	TotalProofsGenerated int                                `json:"total_proofs_generated"`
	TotalComputations    int                                `json:"total_computations"`
	Benchmarks           map[string]veritas.BenchmarkResult `json:"benchmarks"`
	ProofCache           map[string]proof.Proof             `json:"proof_cache"`
	ComputationLog       []compute.Record                   `json:"computation_log"`
	Timestamp            float64                            `json:"timestamp"`
	ReproducibilityHash  string                             `json:"reproducibility_hash"`
}

type reproducibilityInput struct {
	Seed             int64 `json:"seed"`
	SecurityLevel    int   `json:"security_level"`
	ProofCount       int   `json:"proof_count"`
	ComputationCount int   `json:"computation_count"`
}

// ReproducibilityHash 只覆盖配置与计数，不覆盖记录内容。
func ReproducibilityHash(seed int64, securityLevel, proofCount, computationCount int) (string, error) {
	return canonical.Hash(reproducibilityInput{
		Seed:             seed,
		SecurityLevel:    securityLevel,
		ProofCount:       proofCount,
		ComputationCount: computationCount,
	})
}

// Build 根据快照构造报告。
func Build(state *veritas.State, at time.Time) (*Report, error) {
	if state == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "audit state is nil")
	}
	cache := make(map[string]proof.Proof, len(state.Proofs))
	for _, p := range state.Proofs {
		cache[p.ID] = p
	}
	records := state.Computations
	if records == nil {
		records = []compute.Record{}
	}
	benchmarks := state.Benchmarks
	if benchmarks == nil {
		benchmarks = map[string]veritas.BenchmarkResult{}
	}

	hash, err := ReproducibilityHash(state.Seed, state.SecurityLevel, len(cache), len(records))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUnknown, err, "compute reproducibility hash")
	}
	return &Report{
		QVeritasVersion:      Version,
		SecurityLevel:        state.SecurityLevel,
		DeterministicSeed:    state.Seed,
		SigningScheme:        state.SigningScheme,
		TotalProofsGenerated: len(cache),
		TotalComputations:    len(records),
		Benchmarks:           benchmarks,
		ProofCache:           cache,
		ComputationLog:       records,
		Timestamp:            proof.Seconds(at),
		ReproducibilityHash:  hash,
	}, nil
}
