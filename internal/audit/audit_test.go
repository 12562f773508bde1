package audit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QVeritas/internal/compute"
	"QVeritas/internal/config"
	xerrors "QVeritas/internal/errors"
	"QVeritas/internal/proof"
	"QVeritas/internal/signing"
	"QVeritas/internal/veritas"
)

func newOrchestrator(t *testing.T, seed int64) *veritas.Orchestrator {
	t.Helper()
	ce, err := compute.NewEngine(seed)
	require.NoError(t, err)
	pe, err := proof.NewEngine(nil)
	require.NoError(t, err)
	o, err := veritas.New(signing.NewPlaceholder(), ce, pe, veritas.WithSecurityLevel(256))
	require.NoError(t, err)
	return o
}

func TestReproducibilityHashKnownValue(t *testing.T) {
	hash, err := ReproducibilityHash(42, 256, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "203acf6b502a05a76817d30b48263f39bbf7406915a352a01caf7f31ea405cf6", hash)
}

func TestBuildTotalsMatchStores(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(t, 42)

	for _, p := range []string{"alpha", "beta", "alpha"} {
		_, err := o.VerifyAndProve(ctx, []byte(p), veritas.ComputationHash)
		require.NoError(t, err)
	}
	_, err := o.VerifyAndProve(ctx, []byte(`{"coefficients":[1,-2,1],"x":3}`), compute.OpPolynomialEvaluation)
	require.NoError(t, err)

	state, err := o.Snapshot(ctx)
	require.NoError(t, err)
	report, err := Build(state, time.Unix(1700000000, 0))
	require.NoError(t, err)

	proofs, err := o.Proofs().Count(ctx)
	require.NoError(t, err)
	records, err := o.Compute().Count(ctx)
	require.NoError(t, err)

	assert.Equal(t, Version, report.QVeritasVersion)
	assert.Equal(t, proofs, report.TotalProofsGenerated)
	assert.Equal(t, 3, report.TotalProofsGenerated)
	assert.Equal(t, records, report.TotalComputations)
	assert.Len(t, report.ProofCache, 3)
	assert.Equal(t, 1700000000.0, report.Timestamp)

	want, err := ReproducibilityHash(42, 256, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, want, report.ReproducibilityHash)
}

func TestBuildNilState(t *testing.T) {
	_, err := Build(nil, time.Now())
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}

func TestExportToFile(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(t, 42)
	_, err := o.VerifyAndProve(ctx, []byte("Critical infrastructure security protocol validation"), veritas.ComputationHash)
	require.NoError(t, err)
	_, err = o.Benchmark(ctx, []int{32})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", DefaultFileName)
	location, report, err := NewExporter(o, NewFileSink(path)).Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, path, location)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "\n  \"qveritas_version\": \"1.0.0\""), "report is indented JSON")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, field := range []string{
		"qveritas_version", "security_level", "deterministic_seed", "total_proofs_generated",
		"total_computations", "benchmarks", "proof_cache", "computation_log", "timestamp",
		"reproducibility_hash",
	} {
		assert.Contains(t, decoded, field)
	}
	assert.Equal(t, float64(report.TotalProofsGenerated), decoded["total_proofs_generated"])
	assert.Contains(t, decoded["benchmarks"], "size_32")
}

func TestNewSinkSelection(t *testing.T) {
	ctx := context.Background()

	sink, err := NewSink(ctx, config.AuditConfig{Sink: "file", Path: filepath.Join(t.TempDir(), "a.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileSink{}, sink)

	_, err = NewSink(ctx, config.AuditConfig{Sink: "ftp"})
	assert.Equal(t, xerrors.CodeConfiguration, xerrors.CodeOf(err))

	_, err = NewSink(ctx, config.AuditConfig{Sink: "s3"})
	assert.Equal(t, xerrors.CodeConfiguration, xerrors.CodeOf(err))
}

func TestS3SinkUploadsReport(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "missing-config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "missing-credentials"))

	var (
		mu     sync.Mutex
		method string
		path   string
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, data
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	sink, err := NewS3Sink(ctx, S3Config{Bucket: "reports", Region: "us-east-1", Endpoint: srv.URL, Prefix: "audit/"})
	require.NoError(t, err)
	sink.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	location, err := sink.Write(ctx, []byte(`{"qveritas_version":"1.0.0"}`))
	require.NoError(t, err)
	assert.Equal(t, "s3://reports/audit/qveritas_audit_20250102T030405.000000000Z.json", location)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/reports/audit/qveritas_audit_20250102T030405.000000000Z.json", path)
	assert.Contains(t, string(body), `"qveritas_version":"1.0.0"`)
}
