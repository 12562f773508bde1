package qveritas

import "encoding/json"

// ProveRequest describes a synchronous VerifyAndProve call. Payload is sent
// as a string; set PayloadEncoding to "hex" or "base64" for binary data, or
// use JSONPayload for structured computation arguments.
type ProveRequest struct {
	ComputationType string          `json:"computation_type,omitempty"`
	Payload         json.RawMessage `json:"payload"`
	PayloadEncoding string          `json:"payload_encoding,omitempty"`
}

// JobRequest submits a VerifyAndProve call for asynchronous processing.
type JobRequest struct {
	ID              string          `json:"id,omitempty"`
	ComputationType string          `json:"computation_type,omitempty"`
	Payload         json.RawMessage `json:"payload"`
	PayloadEncoding string          `json:"payload_encoding,omitempty"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

// VerificationResult is returned by proof generation and verification.
type VerificationResult struct {
	Valid      bool           `json:"valid"`
	ProofHash  string         `json:"proof_hash"`
	Timestamp  float64        `json:"timestamp"`
	Algorithm  string         `json:"algorithm"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata"`
}

// ProofID returns the proof identifier carried in the metadata, if any.
func (r VerificationResult) ProofID() string {
	id, _ := r.Metadata["proof_id"].(string)
	return id
}

// Proof is a cached formal proof record.
type Proof struct {
	ID               string            `json:"proof_id"`
	Computation      string            `json:"computation"`
	Inputs           map[string]string `json:"inputs"`
	Outputs          map[string]string `json:"outputs"`
	Theorem          string            `json:"theorem"`
	Steps            []string          `json:"steps"`
	Axioms           []string          `json:"axioms"`
	NarrativeVersion string            `json:"narrative_version"`
	Timestamp        float64           `json:"timestamp"`
}

// ComputeResult wraps the output of a numeric operation.
type ComputeResult struct {
	Operation string          `json:"operation"`
	Result    json.RawMessage `json:"result"`
}

// Job mirrors the server side job record.
type Job struct {
	ID              string              `json:"id"`
	ComputationType string              `json:"computation_type"`
	Payload         []byte              `json:"payload"`
	Metadata        map[string]any      `json:"metadata,omitempty"`
	Status          string              `json:"status"`
	Attempts        int                 `json:"attempts"`
	MaxRetries      int                 `json:"max_retries"`
	LastError       string              `json:"last_error,omitempty"`
	ErrorCode       string              `json:"error_code,omitempty"`
	Result          *VerificationResult `json:"result,omitempty"`
	CreatedAt       int64               `json:"created_at"`
	UpdatedAt       int64               `json:"updated_at"`
}

// Terminal reports whether the job reached succeeded or failed.
func (j Job) Terminal() bool {
	return j.Status == "succeeded" || j.Status == "failed"
}

// JobStats aggregates job counts per status.
type JobStats struct {
	Total           int   `json:"total"`
	Pending         int   `json:"pending"`
	Running         int   `json:"running"`
	Retrying        int   `json:"retrying"`
	Succeeded       int   `json:"succeeded"`
	Failed          int   `json:"failed"`
	OldestUpdatedAt int64 `json:"oldest_updated_at"`
	NewestUpdatedAt int64 `json:"newest_updated_at"`
}

// JobList is returned by ListJobs.
type JobList struct {
	Jobs  []Job    `json:"jobs"`
	Stats JobStats `json:"stats"`
}

// ListJobsOptions filters ListJobs. Zero values are omitted.
type ListJobsOptions struct {
	Statuses        []string
	ComputationType string
	Limit           int
	Offset          int
	Query           string
	Ascending       bool
}

// BenchmarkResult is a single benchmark entry keyed by "size_<n>".
type BenchmarkResult struct {
	DataSizeBytes        int     `json:"data_size_bytes"`
	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
	ThroughputMBps       float64 `json:"throughput_mbps"`
	VerificationSuccess  bool    `json:"verification_success"`
	Confidence           float64 `json:"confidence"`
}

// AuditReport is the exported audit document.
type AuditReport struct {
	QVeritasVersion      string                     `json:"qveritas_version"`
	SecurityLevel        int                        `json:"security_level"`
	DeterministicSeed    int64                      `json:"deterministic_seed"`
	SigningScheme        string                     `json:"signing_scheme"`
	TotalProofsGenerated int                        `json:"total_proofs_generated"`
	TotalComputations    int                        `json:"total_computations"`
	Benchmarks           map[string]BenchmarkResult `json:"benchmarks"`
	ProofCache           map[string]Proof           `json:"proof_cache"`
	ComputationLog       []json.RawMessage          `json:"computation_log"`
	Timestamp            float64                    `json:"timestamp"`
	ReproducibilityHash  string                     `json:"reproducibility_hash"`
}

// AuditExport reports where an exported audit document was written.
type AuditExport struct {
	Location string      `json:"location"`
	Report   AuditReport `json:"report"`
}

// TextPayload encodes s as a UTF-8 string payload.
func TextPayload(s string) json.RawMessage {
	data, _ := json.Marshal(s)
	return data
}

// JSONPayload encodes v as structured computation arguments.
func JSONPayload(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}
