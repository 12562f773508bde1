package job

import (
	stdErrors "errors"

	xerrors "QVeritas/internal/errors"
	"QVeritas/internal/proof"
)

// Status 表示验证任务在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusRetrying  Status = "retrying"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job 描述一次排队执行的 VerifyAndProve 调用。
type Job struct {
	ID              string                    `json:"id"`
	ComputationType string                    `json:"computation_type"`
	Payload         []byte                    `json:"payload"`
	Metadata        map[string]any            `json:"metadata,omitempty"`
	Status          Status                    `json:"status"`
	Attempts        int                       `json:"attempts"`
	MaxRetries      int                       `json:"max_retries"`
	LastError       string                    `json:"last_error,omitempty"`
	ErrorCode       string                    `json:"error_code,omitempty"`
	Result          *proof.VerificationResult `json:"result,omitempty"`
	CreatedAt       int64                     `json:"created_at"`
	UpdatedAt       int64                     `json:"updated_at"`
}

// Request 是提交任务时的输入。
type Request struct {
	ID              string
	ComputationType string
	Payload         []byte
	Metadata        map[string]any
}

var (
	// ErrJobNotFound 表示指定的任务不存在。
	ErrJobNotFound = xerrors.New(CodeJobNotFound, "job not found")
	// ErrJobConflict 表示任务在当前状态下无法进行所请求的操作。
	ErrJobConflict = xerrors.New(CodeJobConflict, "job conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrJobCompleted 表示任务已经结束。
	ErrJobCompleted = xerrors.New(CodeJobCompleted, "job already completed", xerrors.WithSeverity(xerrors.SeverityInfo))
	// ErrJobExhausted 表示任务的重试次数已经耗尽。
	ErrJobExhausted = xerrors.New(CodeJobExhausted, "job retries exhausted", xerrors.WithSeverity(xerrors.SeverityCritical))
)

const (
	CodeJobNotFound   xerrors.Code = "JOB_NOT_FOUND"
	CodeJobConflict   xerrors.Code = "JOB_CONFLICT"
	CodeJobCompleted  xerrors.Code = "JOB_COMPLETED"
	CodeJobExhausted  xerrors.Code = "JOB_RETRIES_EXHAUSTED"
	CodeJobValidation xerrors.Code = "JOB_VALIDATION_FAILED"
	CodeJobPublish    xerrors.Code = "JOB_PUBLISH_FAILED"
	CodeJobProcessing xerrors.Code = "JOB_PROCESSING_FAILED"
)

func init() {
	xerrors.Register(CodeJobNotFound, xerrors.Attributes{
		Message:    "job not found",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: 404,
	})
	xerrors.Register(CodeJobConflict, xerrors.Attributes{
		Message:    "job conflict",
		Severity:   xerrors.SeverityWarning,
		HTTPStatus: 409,
	})
	xerrors.Register(CodeJobCompleted, xerrors.Attributes{
		Message:    "job already completed",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: 409,
	})
	xerrors.Register(CodeJobExhausted, xerrors.Attributes{
		Message:    "job retries exhausted",
		Severity:   xerrors.SeverityCritical,
		HTTPStatus: 409,
	})
	xerrors.Register(CodeJobValidation, xerrors.Attributes{
		Message:    "job validation failed",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: 400,
	})
	xerrors.Register(CodeJobPublish, xerrors.Attributes{
		Message:    "failed to publish job",
		Severity:   xerrors.SeverityCritical,
		Retryable:  true,
		HTTPStatus: 503,
	})
	xerrors.Register(CodeJobProcessing, xerrors.Attributes{
		Message:    "job execution failed",
		Severity:   xerrors.SeverityWarning,
		Retryable:  true,
		HTTPStatus: 500,
	})
}

// IsJobError 判断错误是否为指定的任务错误。
func IsJobError(err error, target xerrors.Code) bool {
	if err == nil {
		return false
	}
	switch {
	case stdErrors.Is(err, ErrJobNotFound):
		return target == CodeJobNotFound
	case stdErrors.Is(err, ErrJobConflict):
		return target == CodeJobConflict
	case stdErrors.Is(err, ErrJobCompleted):
		return target == CodeJobCompleted
	case stdErrors.Is(err, ErrJobExhausted):
		return target == CodeJobExhausted
	}
	return false
}

// IsValidStatus 检查给定的任务状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusRetrying, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal 表示任务是否已经不会再被领取。
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

func cloneMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	cloned := make(map[string]any, len(metadata))
	for key, value := range metadata {
		cloned[key] = value
	}
	return cloned
}

func cloneResult(result *proof.VerificationResult) *proof.VerificationResult {
	if result == nil {
		return nil
	}
	copied := *result
	copied.Metadata = cloneMetadata(result.Metadata)
	return &copied
}

func cloneJob(job *Job) *Job {
	clone := *job
	clone.Payload = append([]byte(nil), job.Payload...)
	clone.Metadata = cloneMetadata(job.Metadata)
	clone.Result = cloneResult(job.Result)
	return &clone
}
