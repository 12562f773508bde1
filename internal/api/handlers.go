package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	xerrors "QVeritas/internal/errors"
	"QVeritas/internal/job"
	"QVeritas/internal/proof"
)

type proveRequest struct {
	ID              string          `json:"id,omitempty"`
	ComputationType string          `json:"computation_type"`
	Payload         json.RawMessage `json:"payload"`
	PayloadEncoding string          `json:"payload_encoding,omitempty"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

type computeRequest struct {
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload"`
}

type computeResponse struct {
	Operation string `json:"operation"`
	Result    any    `json:"result"`
}

type benchmarkRequest struct {
	Sizes []int `json:"sizes"`
}

type jobListResponse struct {
	Jobs  []*job.Job `json:"jobs"`
	Stats job.Stats  `json:"stats"`
}

type exportResponse struct {
	Location string `json:"location"`
	Report   any    `json:"report"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProve(w http.ResponseWriter, r *http.Request) {
	var req proveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	data, err := decodePayload(req.Payload, req.PayloadEncoding)
	if err != nil {
		writeError(w, err)
		return
	}
	ct, err := job.ValidateComputationType(req.ComputationType)
	if err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "不支持的计算类型: "+req.ComputationType))
		return
	}
	result, err := s.orchestrator.VerifyAndProve(r.Context(), data, ct)
	if err != nil {
		s.logger.Warn("证明生成失败", slog.String("computation_type", ct), slog.Any("error", err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleVerifyProof(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	result := s.orchestrator.Proofs().VerifyProof(r.Context(), id)
	status := http.StatusOK
	if !result.Valid {
		status = http.StatusServiceUnavailable
		if reason, _ := result.Metadata["error"].(string); reason == proof.ErrProofNotFound {
			status = http.StatusNotFound
		}
	}
	writeJSON(w, status, result)
}

func (s *Server) handleProofRecord(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	p, ok, err := s.orchestrator.Proofs().Lookup(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, xerrors.New(xerrors.CodeNotFound, proof.ErrProofNotFound,
			xerrors.WithMetadata("proof_id", id)))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := s.orchestrator.Compute().ComputePayload(r.Context(), req.Operation, req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, computeResponse{Operation: req.Operation, Result: result})
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "异步任务未启用"))
		return
	}
	var req proveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	data, err := decodePayload(req.Payload, req.PayloadEncoding)
	if err != nil {
		writeError(w, err)
		return
	}
	submitted, err := s.jobs.Submit(r.Context(), job.Request{
		ID:              req.ID,
		ComputationType: req.ComputationType,
		Payload:         data,
		Metadata:        req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, submitted)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "异步任务未启用"))
		return
	}
	found, err := s.jobs.Get(r.Context(), strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "异步任务未启用"))
		return
	}
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	jobs, err := s.jobs.List(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.jobs.Stats(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}
	writeJSON(w, http.StatusOK, jobListResponse{Jobs: jobs, Stats: stats})
}

// parseListOptions 将查询参数转换为任务过滤条件。
func parseListOptions(r *http.Request) ([]job.ListOption, error) {
	q := r.URL.Query()
	var opts []job.ListOption

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "limit 必须是非负整数")
		}
		opts = append(opts, job.WithLimit(n))
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "offset 必须是非负整数")
		}
		opts = append(opts, job.WithOffset(n))
	}
	if v := q.Get("status"); v != "" {
		var statuses []job.Status
		for _, part := range strings.Split(v, ",") {
			st := job.Status(strings.TrimSpace(part))
			if !job.IsValidStatus(st) {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, "未知的任务状态: "+part)
			}
			statuses = append(statuses, st)
		}
		opts = append(opts, job.WithStatuses(statuses...))
	}
	if v := q.Get("computation_type"); v != "" {
		opts = append(opts, job.WithComputationType(v))
	}
	for _, key := range []string{"since", "until"} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, key+" 必须是 RFC3339 时间")
		}
		if key == "since" {
			opts = append(opts, job.WithUpdatedSince(ts))
		} else {
			opts = append(opts, job.WithUpdatedUntil(ts))
		}
	}
	if v := q.Get("has_result"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "has_result 必须是布尔值")
		}
		opts = append(opts, job.WithResultPresence(b))
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
	case "asc":
		opts = append(opts, job.WithSortOrder(job.SortByUpdatedAsc))
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "order 仅支持 asc 或 desc")
	}
	if v := q.Get("q"); v != "" {
		opts = append(opts, job.WithQuery(v))
	}
	return opts, nil
}

func (s *Server) handleAuditReport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "审计导出未启用"))
		return
	}
	report, err := s.exporter.Report(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "审计导出未启用"))
		return
	}
	location, report, err := s.exporter.Export(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exportResponse{Location: location, Report: report})
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	var req benchmarkRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	for _, size := range req.Sizes {
		if size <= 0 {
			writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "sizes 必须为正整数"))
			return
		}
	}
	results, err := s.orchestrator.Benchmark(r.Context(), req.Sizes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
