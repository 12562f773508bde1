package qveritas

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QVeritas/internal/api"
	"QVeritas/internal/audit"
	"QVeritas/internal/compute"
	"QVeritas/internal/job"
	"QVeritas/internal/proof"
	"QVeritas/internal/signing"
	"QVeritas/internal/veritas"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ce, err := compute.NewEngine(42)
	require.NoError(t, err)
	pe, err := proof.NewEngine(nil)
	require.NoError(t, err)
	o, err := veritas.New(signing.NewEd25519(), ce, pe)
	require.NoError(t, err)

	store := job.NewMemoryStore()
	queue := job.NewMemoryQueue(16)
	svc := job.NewService(store, queue, 3)
	processor := job.NewProcessor(o, store, queue, queue, job.WithWorkerCount(2))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = processor.Start(ctx) }()

	exporter := audit.NewExporter(o, audit.NewFileSink(filepath.Join(t.TempDir(), "audit.json")))
	srv := httptest.NewServer(api.NewServer(":0", o, api.WithJobs(svc), api.WithExporter(exporter)).Handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, srv.Client())
	require.NoError(t, err)
	return client
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient("localhost", nil)
	assert.Error(t, err)
}

func TestProveVerifyAndFetch(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	res, err := c.Prove(ctx, ProveRequest{Payload: TextPayload("Critical infrastructure security protocol validation")})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "ed25519", res.Metadata["signing_scheme"])
	require.NotEmpty(t, res.ProofID())

	verified, err := c.VerifyProof(ctx, res.ProofID())
	require.NoError(t, err)
	assert.True(t, verified.Valid)
	assert.Equal(t, res.ProofHash, verified.ProofHash)

	record, err := c.GetProof(ctx, res.ProofID())
	require.NoError(t, err)
	assert.Equal(t, "hash", record.Computation)
	assert.NotEmpty(t, record.Steps)

	missing, err := c.VerifyProof(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.False(t, missing.Valid)
	assert.Equal(t, "Proof not found", missing.Metadata["error"])

	_, err = c.GetProof(ctx, "does-not-exist")
	assert.True(t, IsNotFound(err))
}

func TestComputeAndAPIErrors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	out, err := c.Compute(ctx, "matrix_multiply", map[string]any{
		"a": [][]float64{{1, 2}, {3, 4}},
		"b": [][]float64{{5, 6}, {7, 8}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[[19,22],[43,50]]`, string(out.Result))

	_, err = c.Compute(ctx, "matrix_multiply", map[string]any{
		"a": [][]float64{{1, 2}},
		"b": [][]float64{{1, 2}},
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "DIMENSION_MISMATCH", apiErr.Code)
}

func TestJobLifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload, err := JSONPayload(map[string]any{"coefficients": []float64{1, 2, 3}, "x": 2})
	require.NoError(t, err)
	submitted, err := c.SubmitJob(ctx, JobRequest{
		ID:              "poly-1",
		ComputationType: "polynomial_evaluation",
		Payload:         payload,
	})
	require.NoError(t, err)
	assert.Equal(t, "poly-1", submitted.ID)

	done, err := c.WaitForJob(ctx, submitted.ID, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "succeeded", done.Status)
	require.NotNil(t, done.Result)
	assert.True(t, done.Result.Valid)

	list, err := c.ListJobs(ctx, ListJobsOptions{Statuses: []string{"succeeded"}})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Stats.Succeeded)
	require.Len(t, list.Jobs, 1)

	_, err = c.GetJob(ctx, "unknown")
	assert.True(t, IsNotFound(err))
}

func TestBenchmarkAndAudit(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	bench, err := c.Benchmark(ctx, []int{256})
	require.NoError(t, err)
	require.Contains(t, bench, "size_256")
	assert.True(t, bench["size_256"].VerificationSuccess)

	report, err := c.AuditReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), report.DeterministicSeed)
	assert.Equal(t, 1, report.TotalProofsGenerated)
	assert.Len(t, report.ReproducibilityHash, 64)

	exported, err := c.ExportAudit(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, exported.Location)
	assert.Equal(t, report.ReproducibilityHash, exported.Report.ReproducibilityHash)
}
