package veritas

import (
	"context"

	"QVeritas/internal/compute"
	"QVeritas/internal/proof"
)

// State 是某一时刻的完整视图，供审计导出使用。
type State struct {
	SecurityLevel int
	Seed          int64
	SigningScheme string
	Proofs        []proof.Proof
	Computations  []compute.Record
	Benchmarks    map[string]BenchmarkResult
}

// Snapshot 在没有进行中的 VerifyAndProve 时读取证明缓存、计算日志与基准数据，
// 保证报告中的计数与列表一致。
func (o *Orchestrator) Snapshot(ctx context.Context) (*State, error) {
	o.gate.Lock()
	defer o.gate.Unlock()

	proofs, err := o.proofs.Proofs(ctx)
	if err != nil {
		return nil, err
	}
	records, err := o.compute.Records(ctx)
	if err != nil {
		return nil, err
	}
	return &State{
		SecurityLevel: o.securityLevel,
		Seed:          o.compute.Seed(),
		SigningScheme: o.signer.Scheme(),
		Proofs:        proofs,
		Computations:  records,
		Benchmarks:    o.Benchmarks(),
	}, nil
}
