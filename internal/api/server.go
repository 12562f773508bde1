package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"QVeritas/internal/audit"
	"QVeritas/internal/job"
	"QVeritas/internal/observability/metrics"
	"QVeritas/internal/veritas"
	"QVeritas/pkg/logger"
)

const maxBodyBytes = 8 << 20

// Server 负责暴露 REST 接口。
type Server struct {
	addr            string
	orchestrator    *veritas.Orchestrator
	jobs            *job.Service
	exporter        *audit.Exporter
	metrics         *metrics.Registry
	limiter         *rate.Limiter
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// Option 定义可选配置。
type Option func(*Server)

// WithJobs 启用异步任务接口。
func WithJobs(svc *job.Service) Option {
	return func(s *Server) { s.jobs = svc }
}

// WithExporter 启用审计接口。
func WithExporter(exp *audit.Exporter) Option {
	return func(s *Server) { s.exporter = exp }
}

// WithMetrics 启用请求指标与 /metrics。
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Server) { s.metrics = reg }
}

// WithRateLimit 为 /api 路由配置令牌桶限流，rps <= 0 时不限流。
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithShutdownTimeout 设置优雅关闭的最长等待时间。
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, orchestrator *veritas.Orchestrator, opts ...Option) *Server {
	s := &Server{
		addr:            addr,
		orchestrator:    orchestrator,
		shutdownTimeout: 5 * time.Second,
		logger:          logger.Named("api"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回完整的路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "POST /api/v1/proofs", s.handleProve)
	s.route(mux, "GET /api/v1/proofs/{id}", s.handleVerifyProof)
	s.route(mux, "GET /api/v1/proofs/{id}/record", s.handleProofRecord)
	s.route(mux, "POST /api/v1/computations", s.handleCompute)
	s.route(mux, "POST /api/v1/jobs", s.handleSubmitJob)
	s.route(mux, "GET /api/v1/jobs", s.handleListJobs)
	s.route(mux, "GET /api/v1/jobs/{id}", s.handleGetJob)
	s.route(mux, "GET /api/v1/audit", s.handleAuditReport)
	s.route(mux, "POST /api/v1/audit/export", s.handleAuditExport)
	s.route(mux, "POST /api/v1/benchmarks", s.handleBenchmark)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("API 服务已启动", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
