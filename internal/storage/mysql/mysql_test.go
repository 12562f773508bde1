package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QVeritas/internal/compute"
	xerrors "QVeritas/internal/errors"
	"QVeritas/internal/proof"
)

func sampleProof() proof.Proof {
	n := proof.Narratives[proof.NarrativeVersion]
	return proof.Proof{
		ID:               "0123456789abcdef",
		Computation:      "hash",
		Inputs:           map[string]string{"input_data": "4372697469..."},
		Outputs:          map[string]string{"result": "abcd..."},
		Theorem:          n.Theorem,
		Steps:            n.Steps,
		Axioms:           n.Axioms,
		NarrativeVersion: proof.NarrativeVersion,
		Timestamp:        1700000000.25,
	}
}

func TestProofRepositoryPutIfAbsentInserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := sampleProof()
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO proofs")).
		WithArgs(p.ID, p.Computation, sqlmock.AnyArg(), p.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))

	stored, inserted, err := NewProofRepository(db).PutIfAbsent(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, p, stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProofRepositoryPutIfAbsentKeepsFirstRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	first := sampleProof()
	body, err := json.Marshal(first)
	require.NoError(t, err)

	second := first
	second.Timestamp = first.Timestamp + 10

	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO proofs")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT body FROM proofs WHERE proof_id = ?")).
		WithArgs(first.ID).
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow(string(body)))

	stored, inserted, err := NewProofRepository(db).PutIfAbsent(context.Background(), second)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.Timestamp, stored.Timestamp)

	wantHash, err := first.Hash()
	require.NoError(t, err)
	gotHash, err := stored.Hash()
	require.NoError(t, err)
	assert.Equal(t, wantHash, gotHash, "decoded record must hash identically")
}

func TestProofRepositoryGetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT body FROM proofs WHERE proof_id = ?")).
		WithArgs("ffffffffffffffff").
		WillReturnRows(sqlmock.NewRows([]string{"body"}))

	_, ok, err := NewProofRepository(db).Get(context.Background(), "ffffffffffffffff")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProofRepositoryStorageFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM proofs")).
		WillReturnError(errors.New("connection reset"))

	_, err = NewProofRepository(db).Count(context.Background())
	assert.Equal(t, xerrors.CodeStorageFailure, xerrors.CodeOf(err))
	assert.True(t, xerrors.RetryableError(err))
}

func TestProofRepositoryListOrdersBySeq(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a := sampleProof()
	b := sampleProof()
	b.ID = "fedcba9876543210"
	rawA, _ := json.Marshal(a)
	rawB, _ := json.Marshal(b)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT body FROM proofs ORDER BY seq ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow(string(rawA)).AddRow(string(rawB)))

	list, err := NewProofRepository(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
}

func TestComputationLogAppendAndList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec := compute.Record{
		Operation:     compute.OpPolynomialEvaluation,
		Arguments:     "[[1 -2 1] 3]",
		Seed:          42,
		Timestamp:     1700000000.5,
		ResultHash:    "aa",
		ExecutionTime: 0.001,
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO computations")).
		WithArgs(rec.Operation, rec.Arguments, rec.Seed, rec.Timestamp, rec.ResultHash, rec.ExecutionTime).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM computations ORDER BY seq ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"operation", "arguments", "seed", "timestamp", "result_hash", "execution_time"}).
			AddRow(rec.Operation, rec.Arguments, rec.Seed, rec.Timestamp, rec.ResultHash, rec.ExecutionTime))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM computations")).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	log := NewComputationLog(db)
	ctx := context.Background()
	require.NoError(t, log.Append(ctx, rec))

	records, err := log.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []compute.Record{rec}, records)

	n, err := log.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateAppliesPendingFiles(t *testing.T) {
	original := embeddedMigrations
	embeddedMigrations = fstest.MapFS{
		"0001_first.sql":  {Data: []byte("CREATE TABLE a (id INT);")},
		"0002_second.sql": {Data: []byte("-- comment\nCREATE TABLE b (id INT);\nCREATE INDEX i ON b (id);")},
		"README.md":       {Data: []byte("ignored")},
	}
	t.Cleanup(func() { embeddedMigrations = original })

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("0001"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id INT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX i ON b (id)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).
		WithArgs("0002", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRollsBackOnFailure(t *testing.T) {
	original := embeddedMigrations
	embeddedMigrations = fstest.MapFS{"0001_bad.sql": {Data: []byte("CREATE TABLE broken")}}
	t.Cleanup(func() { embeddedMigrations = original })

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE broken")).WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err = Migrate(context.Background(), db)
	assert.Equal(t, xerrors.CodeStorageFailure, xerrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	files, err := loadMigrationFiles(embeddedMigrations)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "0001", files[0].version)
	assert.Equal(t, "0002", files[1].version)
	assert.Equal(t, "0003", files[2].version)
	for _, f := range files {
		for _, stmt := range f.statements {
			assert.NotContains(t, stmt, "--")
		}
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Equal(t, xerrors.CodeConfiguration, xerrors.CodeOf(err))
}
