package proof

import (
	"context"
	"sync"
)

// Store 定义证明缓存的持久化接口。键唯一，写入采用 insert-if-absent：
// 首次写入的记录始终有效。
type Store interface {
	// PutIfAbsent 在 ID 不存在时写入，返回最终存储的记录以及是否为本次写入。
	PutIfAbsent(ctx context.Context, p Proof) (Proof, bool, error)
	Get(ctx context.Context, id string) (Proof, bool, error)
	// List 按写入顺序返回全部记录。
	List(ctx context.Context) ([]Proof, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// MemoryStore 是线程安全的内存实现。
type MemoryStore struct {
	mu     sync.RWMutex
	proofs map[string]Proof
	order  []string
}

// NewMemoryStore 创建内存证明缓存。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{proofs: make(map[string]Proof)}
}

// PutIfAbsent 实现 Store 接口。
func (s *MemoryStore) PutIfAbsent(_ context.Context, p Proof) (Proof, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.proofs[p.ID]; ok {
		return existing.Clone(), false, nil
	}
	s.proofs[p.ID] = p.Clone()
	s.order = append(s.order, p.ID)
	return p.Clone(), true, nil
}

// Get 实现 Store 接口。
func (s *MemoryStore) Get(_ context.Context, id string) (Proof, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proofs[id]
	if !ok {
		return Proof{}, false, nil
	}
	return p.Clone(), true, nil
}

// List 实现 Store 接口。
func (s *MemoryStore) List(_ context.Context) ([]Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Proof, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.proofs[id].Clone())
	}
	return out, nil
}

// Count 实现 Store 接口。
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.proofs), nil
}

// Close 实现 Store 接口。
func (s *MemoryStore) Close() error { return nil }
