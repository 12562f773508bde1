package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QVeritas/internal/job"
)

func TestObserveHTTPRequestCountsErrors(t *testing.T) {
	r := New()
	r.ObserveHTTPRequest("/api/v1/proofs", http.MethodPost, 200, 10*time.Millisecond)
	r.ObserveHTTPRequest("/api/v1/proofs", http.MethodPost, 503, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("/api/v1/proofs", "POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpErrors.WithLabelValues("/api/v1/proofs", "POST")))
}

func TestObserveVerificationAndJobs(t *testing.T) {
	r := New()
	r.ObserveVerification("hash", true, time.Millisecond)
	r.ObserveVerification("hash", false, time.Millisecond)
	r.ObserveVerification("hash", true, time.Millisecond)
	r.ObserveJob("hash", job.StatusSucceeded)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.verifications.WithLabelValues("hash", "valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.verifications.WithLabelValues("hash", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobs.WithLabelValues("hash", "succeeded")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	r := New()
	r.ObserveVerification("matrix_multiply", true, time.Millisecond)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `qveritas_veritas_verifications_total{computation_type="matrix_multiply",result="valid"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
