package veritas

import (
	"context"
	"fmt"
	"io"

	xerrors "QVeritas/internal/errors"
)

// DefaultBenchmarkSizes 是未指定时使用的载荷大小（字节）。
var DefaultBenchmarkSizes = []int{1024, 4096, 16384, 65536}

// BenchmarkResult 记录单个载荷大小的基准数据，时间相关字段仅供观测。
type BenchmarkResult struct {
	DataSizeBytes        int     `json:"data_size_bytes"`
	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
	ThroughputMBps       float64 `json:"throughput_mbps"`
	VerificationSuccess  bool    `json:"verification_success"`
	Confidence           float64 `json:"confidence"`
}

// BenchmarkKey 返回结果映射使用的键，例如 size_1024。
func BenchmarkKey(size int) string {
	return fmt.Sprintf("size_%d", size)
}

// Benchmark 对每个大小生成随机载荷并执行一次哈希类型的 VerifyAndProve，
// 结果会替换上一次保存的基准数据。
func (o *Orchestrator) Benchmark(ctx context.Context, sizes []int) (map[string]BenchmarkResult, error) {
	if len(sizes) == 0 {
		sizes = DefaultBenchmarkSizes
	}
	for _, size := range sizes {
		if size <= 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("benchmark size must be positive, got %d", size))
		}
	}

	results := make(map[string]BenchmarkResult, len(sizes))
	for _, size := range sizes {
		payload := make([]byte, size)
		if _, err := io.ReadFull(o.random, payload); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeUnknown, err, "generate benchmark payload")
		}

		start := o.now()
		res, err := o.VerifyAndProve(ctx, payload, ComputationHash)
		if err != nil {
			return nil, err
		}
		elapsed := o.now().Sub(start).Seconds()

		var throughput float64
		if elapsed > 0 {
			throughput = (float64(size) / (1024 * 1024)) / elapsed
		}
		results[BenchmarkKey(size)] = BenchmarkResult{
			DataSizeBytes:        size,
			ExecutionTimeSeconds: elapsed,
			ThroughputMBps:       throughput,
			VerificationSuccess:  res.Valid,
			Confidence:           res.Confidence,
		}
		o.logger.Info("基准测试完成", "size", size, "seconds", elapsed)
	}

	o.mu.Lock()
	o.benchmarks = cloneBenchmarks(results)
	o.mu.Unlock()
	return results, nil
}

// Benchmarks 返回最近一次基准测试结果。
func (o *Orchestrator) Benchmarks() map[string]BenchmarkResult {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return cloneBenchmarks(o.benchmarks)
}

func cloneBenchmarks(in map[string]BenchmarkResult) map[string]BenchmarkResult {
	out := make(map[string]BenchmarkResult, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
