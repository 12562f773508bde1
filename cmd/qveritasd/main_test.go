package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := "runtime:\n  data_dir: data\n" +
		"log:\n  level: error\n  output_paths: [" + filepath.Join(dir, "app.log") + "]\n"
	path := filepath.Join(dir, "qveritas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDemoIsReproducible(t *testing.T) {
	var runs []demoSummary
	for i := 0; i < 2; i++ {
		out, err := execute(t, "--config", writeConfig(t), "demo")
		require.NoError(t, err)

		var summary demoSummary
		require.NoError(t, json.Unmarshal([]byte(out), &summary))
		assert.True(t, summary.Valid)
		assert.True(t, summary.Reverified)
		assert.Equal(t, len(demoBenchmarkSizes), summary.Benchmarks)
		assert.FileExists(t, summary.AuditLocation)
		runs = append(runs, summary)
	}
	assert.Equal(t, runs[0].ProofID, runs[1].ProofID)
	assert.Equal(t, runs[0].ReproducibilityHash, runs[1].ReproducibilityHash)
}

func TestComputeCommand(t *testing.T) {
	out, err := execute(t, "--config", writeConfig(t), "--seed", "7",
		"compute", "polynomial_evaluation", `{"coefficients":[1,2,3],"x":2}`)
	require.NoError(t, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, float64(17), resp["result"])

	_, err = execute(t, "--config", writeConfig(t), "compute", "fft", `{}`)
	assert.Error(t, err)
}

func TestProveCommandDecodesPayload(t *testing.T) {
	cfg := writeConfig(t)
	hexOut, err := execute(t, "--config", cfg, "--seed", "42", "prove", "--encoding", "hex", "48656c6c6f")
	require.NoError(t, err)
	textOut, err := execute(t, "--config", cfg, "--seed", "42", "prove", "Hello")
	require.NoError(t, err)

	var a, b map[string]any
	require.NoError(t, json.Unmarshal([]byte(hexOut), &a))
	require.NoError(t, json.Unmarshal([]byte(textOut), &b))
	assert.Equal(t, true, a["valid"])
	assert.Equal(t,
		a["metadata"].(map[string]any)["proof_id"],
		b["metadata"].(map[string]any)["proof_id"])

	_, err = execute(t, "--config", cfg, "prove", "--encoding", "hex", "zz")
	assert.Error(t, err)
}

func TestMissingExplicitConfigFails(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "bench", "--sizes", "64")
	assert.Error(t, err)
}

func TestBenchCommand(t *testing.T) {
	out, err := execute(t, "--config", writeConfig(t), "--seed", "1", "bench", "--sizes", "64,128")
	require.NoError(t, err)

	var results map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Len(t, results, 2)
	assert.Contains(t, results, "size_64")
}
