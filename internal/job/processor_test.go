package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"QVeritas/internal/compute"
	xerrors "QVeritas/internal/errors"
	"QVeritas/internal/proof"
	"QVeritas/internal/signing"
	"QVeritas/internal/veritas"
)

type fakeExecutor struct {
	processed atomic.Int32
	latency   time.Duration
	// failures 为前 N 次调用返回的错误。
	failures []error
	calls    atomic.Int32
}

func (f *fakeExecutor) VerifyAndProve(ctx context.Context, data []byte, ct string) (*proof.VerificationResult, error) {
	call := int(f.calls.Add(1))
	if call <= len(f.failures) {
		return nil, f.failures[call-1]
	}
	if f.latency > 0 {
		select {
		case <-time.After(f.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.processed.Add(1)
	return &proof.VerificationResult{
		Valid:      true,
		Algorithm:  "qveritas_" + ct,
		Confidence: 0.999,
		Metadata:   map[string]any{"proof_id": fmt.Sprintf("%x", data)},
	}, nil
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[Status]int
}

func (c *countingObserver) ObserveJob(_ string, status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[Status]int)
	}
	c.counts[status]++
}

func (c *countingObserver) get(status Status) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[status]
}

func startProcessor(t *testing.T, ctx context.Context, p *Processor) {
	t.Helper()
	go func() {
		if err := p.Start(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("processor exited: %v", err)
		}
	}()
}

func TestProcessorHandlesConcurrentJobs(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(1024)
	executor := &fakeExecutor{latency: 5 * time.Millisecond}

	service := NewService(store, queue, 3)
	startProcessor(t, ctx, NewProcessor(executor, store, queue, queue, WithWorkerCount(8)))

	total := 200
	for i := 0; i < total; i++ {
		if _, err := service.Submit(ctx, Request{Payload: []byte(fmt.Sprintf("payload-%d", i))}); err != nil {
			t.Fatalf("提交任务失败: %v", err)
		}
	}

	deadline := time.After(5 * time.Second)
	for int(executor.processed.Load()) < total {
		select {
		case <-deadline:
			t.Fatalf("任务未能及时处理，已完成 %d", executor.processed.Load())
		case <-time.After(20 * time.Millisecond):
		}
	}

	stats, err := service.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != total {
		t.Fatalf("expected %d jobs, got %+v", total, stats)
	}
}

func TestProcessorRunsOrchestrator(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	signer, err := signing.New(signing.SchemePlaceholder)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	ce, err := compute.NewEngine(42)
	if err != nil {
		t.Fatalf("compute engine: %v", err)
	}
	pe, err := proof.NewEngine(nil)
	if err != nil {
		t.Fatalf("proof engine: %v", err)
	}
	orchestrator, err := veritas.New(signer, ce, pe)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}

	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	service := NewService(store, queue, 3)
	startProcessor(t, ctx, NewProcessor(orchestrator, store, queue, queue))

	submitted, err := service.Submit(ctx, Request{
		ComputationType: compute.OpPolynomialEvaluation,
		Payload:         []byte(`{"coefficients":[1,-2,1],"x":3}`),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	done, err := service.WaitUntilCompleted(ctx, submitted.ID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != StatusSucceeded || done.Result == nil || !done.Result.Valid {
		t.Fatalf("unexpected job: %+v", done)
	}
	if done.Result.Algorithm != "qveritas_polynomial_evaluation" {
		t.Fatalf("unexpected algorithm: %s", done.Result.Algorithm)
	}
	proofID, _ := done.Result.Metadata["proof_id"].(string)
	if _, ok, err := pe.Lookup(ctx, proofID); err != nil || !ok {
		t.Fatalf("proof %q should be stored: ok=%v err=%v", proofID, ok, err)
	}
}

func TestProcessorFailsNonRetryableErrorsImmediately(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	observer := &countingObserver{}
	executor := &fakeExecutor{failures: []error{xerrors.New(compute.CodeDimensionMismatch, "matrix shapes differ")}}
	service := NewService(store, queue, 3)
	startProcessor(t, ctx, NewProcessor(executor, store, queue, queue, WithObserver(observer)))

	submitted, err := service.Submit(ctx, Request{ComputationType: compute.OpMatrixMultiply, Payload: []byte(`{}`)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	done, err := service.WaitUntilCompleted(ctx, submitted.ID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != StatusFailed || done.Attempts != 1 || done.ErrorCode != string(compute.CodeDimensionMismatch) {
		t.Fatalf("unexpected job: %+v", done)
	}
	if observer.get(StatusFailed) != 1 || observer.get(StatusRetrying) != 0 {
		t.Fatalf("unexpected observations: %+v", observer.counts)
	}
}

func TestProcessorRetriesStorageFailures(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	observer := &countingObserver{}
	storageErr := xerrors.New(xerrors.CodeStorageFailure, "proof store unavailable")
	executor := &fakeExecutor{failures: []error{storageErr, storageErr}}
	service := NewService(store, queue, 3)
	startProcessor(t, ctx, NewProcessor(executor, store, queue, queue, WithObserver(observer)))

	submitted, err := service.Submit(ctx, Request{Payload: []byte("data")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	done, err := service.WaitUntilCompleted(ctx, submitted.ID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != StatusSucceeded || done.Attempts != 3 {
		t.Fatalf("expected success on third attempt, got %+v", done)
	}
	if observer.get(StatusRetrying) != 2 || observer.get(StatusSucceeded) != 1 {
		t.Fatalf("unexpected observations: %+v", observer.counts)
	}
}

func TestProcessorStopsAfterMaxRetries(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	storageErr := xerrors.New(xerrors.CodeStorageFailure, "proof store unavailable")
	executor := &fakeExecutor{failures: []error{storageErr, storageErr, storageErr}}
	service := NewService(store, queue, 2)
	startProcessor(t, ctx, NewProcessor(executor, store, queue, queue))

	submitted, err := service.Submit(ctx, Request{Payload: []byte("data")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	done, err := service.WaitUntilCompleted(ctx, submitted.ID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != StatusFailed || done.Attempts != 2 || done.ErrorCode != string(xerrors.CodeStorageFailure) {
		t.Fatalf("unexpected job: %+v", done)
	}
	if executor.processed.Load() != 0 {
		t.Fatalf("executor should never succeed")
	}
}

func TestServiceSubmitValidation(t *testing.T) {
	service := NewService(NewMemoryStore(), NewMemoryQueue(4), 0)
	ctx := context.Background()

	if _, err := service.Submit(ctx, Request{ComputationType: "fourier_transform"}); xerrors.CodeOf(err) != CodeJobValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	first, err := service.Submit(ctx, Request{ID: "fixed", Payload: []byte("a")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if first.ComputationType != veritas.ComputationHash || first.MaxRetries != 3 {
		t.Fatalf("unexpected defaults: %+v", first)
	}
	second, err := service.Submit(ctx, Request{ID: "fixed", Payload: []byte("b")})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if string(second.Payload) != "a" {
		t.Fatalf("resubmitting an id must return the stored job, got %q", second.Payload)
	}
}

func TestServiceSubmitPublishFailure(t *testing.T) {
	store := NewMemoryStore()
	queue := NewMemoryQueue(4)
	_ = queue.Close()
	service := NewService(store, queue, 3)

	_, err := service.Submit(context.Background(), Request{ID: "lost"})
	if xerrors.CodeOf(err) != CodeJobPublish {
		t.Fatalf("expected publish failure, got %v", err)
	}
	job, err := store.Get(context.Background(), "lost")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != StatusFailed {
		t.Fatalf("job should be terminal after publish failure: %+v", job)
	}
}
