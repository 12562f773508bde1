package proof

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "QVeritas/internal/errors"
)

type brokenStore struct{ MemoryStore }

func (*brokenStore) PutIfAbsent(context.Context, Proof) (Proof, bool, error) {
	return Proof{}, false, errors.New("disk full")
}

func (*brokenStore) Get(context.Context, string) (Proof, bool, error) {
	return Proof{}, false, errors.New("connection reset")
}

func clockAt(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0) }
}

func TestGenerateProofIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(nil)
	require.NoError(t, err)

	in := map[string]string{"input_data": "deadbeef..."}
	out := map[string]string{"result": "42..."}

	id1, err := e.GenerateProof(ctx, "hash", in, out)
	require.NoError(t, err)
	id2, err := e.GenerateProof(ctx, "hash", in, out)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 16)
	n, err := e.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	other, err := e.GenerateProof(ctx, "hash", in, map[string]string{"result": "43..."})
	require.NoError(t, err)
	assert.NotEqual(t, id1, other)
}

func TestFirstRecordStaysAuthoritative(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := NewEngine(store, WithClock(clockAt(100)))
	require.NoError(t, err)
	second, err := NewEngine(store, WithClock(clockAt(200)))
	require.NoError(t, err)

	id, err := first.GenerateProof(ctx, "hash", nil, nil)
	require.NoError(t, err)
	before := first.VerifyProof(ctx, id)

	_, err = second.GenerateProof(ctx, "hash", nil, nil)
	require.NoError(t, err)

	p, ok, err := second.Lookup(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 100.0, p.Timestamp)
	assert.Equal(t, before.ProofHash, second.VerifyProof(ctx, id).ProofHash)
}

func TestVerifyProofFound(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(nil, WithClock(clockAt(1700000000)))
	require.NoError(t, err)

	id, err := e.GenerateProof(ctx, "matrix_multiply",
		map[string]string{"input_data": "7b2261223a5b5b312c325d2c5b332c34..."},
		map[string]string{"result": "[[19 22] [43 50]]..."})
	require.NoError(t, err)

	res := e.VerifyProof(ctx, id)
	assert.True(t, res.Valid)
	assert.Equal(t, AlgorithmFormal, res.Algorithm)
	assert.Equal(t, 0.999, res.Confidence)
	assert.Len(t, res.ProofHash, 64)
	assert.Equal(t, id, res.Metadata["proof_id"])
	assert.Equal(t, 5, res.Metadata["steps_verified"])
	assert.Equal(t, 3, res.Metadata["axioms_count"])

	p, _, err := e.Lookup(ctx, id)
	require.NoError(t, err)
	hash, err := p.Hash()
	require.NoError(t, err)
	assert.Equal(t, hash, res.ProofHash)
	assert.Equal(t, Narratives["v1"].Theorem, p.Theorem)
	assert.Equal(t, "v1", p.NarrativeVersion)
}

func TestVerifyProofNotFound(t *testing.T) {
	e, err := NewEngine(nil)
	require.NoError(t, err)

	res := e.VerifyProof(context.Background(), "0000000000000000")
	assert.False(t, res.Valid)
	assert.Zero(t, res.Confidence)
	assert.Empty(t, res.ProofHash)
	assert.Equal(t, AlgorithmVerification, res.Algorithm)
	assert.Equal(t, ErrProofNotFound, res.Metadata["error"])
	assert.Equal(t, "0000000000000000", res.Metadata["proof_id"])
}

func TestStoreFailures(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(&brokenStore{})
	require.NoError(t, err)

	_, err = e.GenerateProof(ctx, "hash", nil, nil)
	assert.Equal(t, xerrors.CodeStorageFailure, xerrors.CodeOf(err))

	res := e.VerifyProof(ctx, "abc")
	assert.False(t, res.Valid)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, "connection reset", res.Metadata["error"])
}

func TestUnknownNarrativeVersion(t *testing.T) {
	_, err := NewEngine(nil, WithNarrativeVersion("v99"))
	assert.Equal(t, xerrors.CodeConfiguration, xerrors.CodeOf(err))
}

func TestConcurrentGenerateObservesOneRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	ids := make([]string, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := NewEngine(store, WithClock(clockAt(int64(i))))
			if err != nil {
				return
			}
			ids[i], _ = e.GenerateProof(ctx, "hash", map[string]string{"k": "v"}, nil)
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestSnapshot(t *testing.T) {
	assert.Equal(t, "abc...", Snapshot("abc"))
	long := "0123456789abcdef0123456789abcdef0123"
	assert.Equal(t, long[:SnapshotWindow]+"...", Snapshot(long))
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := Proof{ID: "a", Inputs: map[string]string{"x": "1"}, Steps: []string{"s"}}
	_, inserted, err := s.PutIfAbsent(ctx, p)
	require.NoError(t, err)
	require.True(t, inserted)

	p.Inputs["x"] = "mutated"
	got, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", got.Inputs["x"])
}
