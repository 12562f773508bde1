package api

import (
	"log/slog"
	"net/http"
	"time"

	xerrors "QVeritas/internal/errors"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// route 注册处理器，并依次套上限流与指标采集。
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(pattern, s.rateLimit(h)))
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, xerrors.New(xerrors.CodeRateLimited, ""))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) instrument(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		r.Body = http.MaxBytesReader(rec, r.Body, maxBodyBytes)
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveHTTPRequest(pattern, r.Method, rec.status, elapsed)
		}
		s.logger.Debug("请求完成",
			slog.String("route", pattern),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", elapsed),
		)
	})
}
