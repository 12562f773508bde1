package compute

import (
	"context"
	"sync"
)

// Record 记录一次成功的计算，追加后不再修改。
// ExecutionTime 仅供观测，不参与任何语义比较。
type Record struct {
	Operation     string  `json:"operation"`
	Arguments     string  `json:"arguments"`
	Seed          int64   `json:"seed"`
	Timestamp     float64 `json:"timestamp"`
	ResultHash    string  `json:"result_hash"`
	ExecutionTime float64 `json:"execution_time"`
}

// Log 是只追加的计算日志。
type Log interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context) ([]Record, error)
	Len(ctx context.Context) (int, error)
}

// MemoryLog 是基于切片的内存实现。
type MemoryLog struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryLog 创建空的内存计算日志。
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append 追加一条记录。
func (l *MemoryLog) Append(_ context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

// List 按追加顺序返回记录副本。
func (l *MemoryLog) List(_ context.Context) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out, nil
}

// Len 返回记录数。
func (l *MemoryLog) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records), nil
}
