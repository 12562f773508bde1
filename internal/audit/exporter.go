package audit

import (
	"context"
	"encoding/json"
	"time"

	xerrors "QVeritas/internal/errors"
	"QVeritas/internal/veritas"
	"QVeritas/pkg/logger"
)

// Source 提供导出所需的一致视图，*veritas.Orchestrator 实现了该接口。
type Source interface {
	Snapshot(ctx context.Context) (*veritas.State, error)
}

// Exporter 将报告序列化后写入 Sink。
type Exporter struct {
	source Source
	sink   Sink
	now    func() time.Time
}

// NewExporter 创建导出器。
func NewExporter(source Source, sink Sink) *Exporter {
	return &Exporter{source: source, sink: sink, now: time.Now}
}

// Report 构造当前报告但不写出。
func (e *Exporter) Report(ctx context.Context) (*Report, error) {
	state, err := e.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Build(state, e.now())
}

// Export 写出带缩进的 JSON 报告，返回写入位置。
func (e *Exporter) Export(ctx context.Context) (string, *Report, error) {
	if e.sink == nil {
		return "", nil, xerrors.New(xerrors.CodeConfiguration, "audit sink is not configured")
	}
	report, err := e.Report(ctx)
	if err != nil {
		return "", nil, err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", nil, xerrors.Wrap(xerrors.CodeUnknown, err, "encode audit report")
	}
	location, err := e.sink.Write(ctx, data)
	if err != nil {
		return "", nil, err
	}
	logger.Audit().Info("audit report exported",
		"location", location,
		"total_proofs", report.TotalProofsGenerated,
		"total_computations", report.TotalComputations,
		"reproducibility_hash", report.ReproducibilityHash,
	)
	return location, report, nil
}
