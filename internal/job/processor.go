package job

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"

	xerrors "QVeritas/internal/errors"
	"QVeritas/internal/proof"
	"QVeritas/pkg/logger"
)

// Executor 执行一次验证与证明流程，veritas.Orchestrator 即满足该接口。
type Executor interface {
	VerifyAndProve(ctx context.Context, data []byte, computationType string) (*proof.VerificationResult, error)
}

// Observer 接收任务结束或重试的通知。
type Observer interface {
	ObserveJob(computationType string, status Status)
}

// Processor 负责从队列消费任务并交给 Executor 执行。
type Processor struct {
	executor    Executor
	store       Store
	consumer    Consumer
	producer    Producer
	workerCount int
	logger      *slog.Logger
	observer    Observer
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithObserver 配置任务指标观察者。
func WithObserver(observer Observer) ProcessorOption {
	return func(p *Processor) {
		p.observer = observer
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(executor Executor, store Store, consumer Consumer, producer Producer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		executor:    executor,
		store:       store,
		consumer:    consumer,
		producer:    producer,
		workerCount: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.workerCount <= 0 {
		p.workerCount = 1
	}
	return p
}

// Start 启动任务处理循环，直到 ctx 结束。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置任务消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.Handle)
}

// Handle 领取并执行单个任务。
func (p *Processor) Handle(ctx context.Context, jobID string) error {
	if p.store == nil || p.executor == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	job, err := p.store.Claim(ctx, jobID)
	if err != nil {
		if stdErrors.Is(err, ErrJobNotFound) || stdErrors.Is(err, ErrJobCompleted) || stdErrors.Is(err, ErrJobExhausted) {
			p.logDebug("跳过任务", slog.String("job_id", jobID), slog.String("reason", err.Error()))
			return nil
		}
		if stdErrors.Is(err, ErrJobConflict) {
			p.logDebug("任务正在执行", slog.String("job_id", jobID))
			return nil
		}
		logger.L().Error("领取任务失败", slog.Any("error", err), slog.String("job_id", jobID))
		return err
	}

	result, execErr := p.executor.VerifyAndProve(ctx, job.Payload, job.ComputationType)
	if execErr == nil && result == nil {
		execErr = xerrors.New(CodeJobProcessing, "执行器未返回结果", xerrors.WithRetryable(false))
	}
	if execErr != nil {
		return p.handleExecutionFailure(ctx, job, execErr)
	}

	if err := p.store.MarkSucceeded(ctx, job.ID, *result); err != nil {
		logger.L().Error("标记任务成功状态失败", slog.Any("error", err), slog.String("job_id", job.ID))
		return p.handleExecutionFailure(ctx, job, err)
	}
	p.observe(job, StatusSucceeded)
	proofID, _ := result.Metadata["proof_id"].(string)
	logger.Audit().Info("任务执行成功",
		slog.String("job_id", job.ID),
		slog.String("computation_type", job.ComputationType),
		slog.String("proof_id", proofID),
		slog.Bool("valid", result.Valid),
		slog.Int("attempts", job.Attempts),
	)
	return nil
}

func (p *Processor) handleExecutionFailure(ctx context.Context, job *Job, execErr error) error {
	code := xerrors.CodeOf(execErr)
	if code == xerrors.CodeUnknown {
		code = CodeJobProcessing
	}
	retryable := xerrors.RetryableError(execErr)
	terminal := job.Attempts >= job.MaxRetries || !retryable

	if storeErr := p.store.MarkFailed(ctx, job.ID, code, execErr.Error(), terminal); storeErr != nil {
		logger.L().Error("标记任务失败状态出错", slog.Any("error", storeErr), slog.String("job_id", job.ID))
		return storeErr
	}
	logger.Audit().Warn("任务执行失败",
		slog.String("job_id", job.ID),
		slog.String("computation_type", job.ComputationType),
		slog.Bool("terminal", terminal),
		slog.String("error", execErr.Error()),
		slog.String("error_code", string(code)),
		slog.Int("attempts", job.Attempts),
		slog.Int("max_retries", job.MaxRetries),
	)

	if terminal {
		p.observe(job, StatusFailed)
		return nil
	}
	p.observe(job, StatusRetrying)
	if p.producer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置任务生产者")
	}
	if pubErr := p.producer.Publish(ctx, job.ID); pubErr != nil {
		return xerrors.Wrap(CodeJobPublish, pubErr, fmt.Sprintf("任务 %s 重投失败", job.ID))
	}
	p.logDebug("任务已重新排队", slog.String("job_id", job.ID), slog.Int("attempts", job.Attempts))
	return nil
}

func (p *Processor) observe(job *Job, status Status) {
	if p.observer != nil {
		p.observer.ObserveJob(job.ComputationType, status)
	}
}

func (p *Processor) logDebug(msg string, attrs ...slog.Attr) {
	if p.logger != nil {
		p.logger.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
	}
}
