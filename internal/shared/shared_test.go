package shared

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeExec struct {
	calls    []execCall
	affected int64
	err      error
}

func (f *fakeExec) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return f.affected, f.err
}

func TestAuditRecordWritesMeta(t *testing.T) {
	exec := &fakeExec{}
	logger := NewAuditLogger(exec)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("WIB", 7*3600))

	err := logger.Record(context.Background(), AuditLog{
		Actor:    "clerk",
		Action:   "inventory:TRANSFER",
		Entity:   AuditEntityShelfTransfer,
		EntityID: "t-1",
		Meta:     map[string]any{"moved": 4},
		At:       at,
	})
	require.NoError(t, err)
	require.Len(t, exec.calls, 1)

	args := exec.calls[0].args
	require.Equal(t, "clerk", args[0])
	var meta map[string]any
	require.NoError(t, json.Unmarshal(args[4].([]byte), &meta))
	require.EqualValues(t, 4, meta["moved"])
	stamped := args[5].(*time.Time)
	require.Equal(t, time.UTC, stamped.Location())
	require.True(t, stamped.Equal(at))
}

func TestAuditRecordRejectsIncompleteEntries(t *testing.T) {
	exec := &fakeExec{}
	logger := NewAuditLogger(exec)

	err := logger.Record(context.Background(), AuditLog{Action: "a", Entity: "e", EntityID: "1"})
	require.ErrorIs(t, err, ErrValidation)
	err = logger.Record(context.Background(), AuditLog{Actor: "clerk", Entity: "e"})
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, exec.calls)

	var nilLogger *AuditLogger
	require.Error(t, nilLogger.Record(context.Background(), AuditLog{}))
}

func TestAuditRecordDefaultsMetaAndTime(t *testing.T) {
	exec := &fakeExec{}
	require.NoError(t, NewAuditLogger(exec).Record(context.Background(), AuditLog{
		Actor: "clerk", Action: "inventory:MOVE", Entity: AuditEntityShelfTransfer, EntityID: "t-2",
	}))
	require.Equal(t, []byte("{}"), exec.calls[0].args[4])
	require.Nil(t, exec.calls[0].args[5])
}

type txExec struct {
	calls []execCall
	err   error
}

func (f *txExec) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *txExec) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (f *txExec) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func TestClaimInTxAndConflict(t *testing.T) {
	tx := &txExec{}
	at := time.Date(2026, 1, 2, 10, 4, 5, 0, time.FixedZone("WIB", 7*3600))

	require.NoError(t, ClaimInTx(context.Background(), tx, "transfer:abc", "inventory", at))
	require.Equal(t, []any{"transfer:abc", "inventory", at.UTC()}, tx.calls[0].args)

	tx.err = &pgconn.PgError{Code: "23505"}
	err := ClaimInTx(context.Background(), tx, "transfer:abc", "inventory", at)
	require.ErrorIs(t, err, ErrIdempotencyConflict)
	require.ErrorIs(t, err, ErrConflict)

	tx.err = errors.New("boom")
	err = ClaimInTx(context.Background(), tx, "transfer:def", "inventory", at)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrIdempotencyConflict)

	require.ErrorIs(t, ClaimInTx(context.Background(), tx, "", "inventory", at), ErrValidation)
	require.ErrorIs(t, ClaimInTx(context.Background(), tx, "k", "", at), ErrValidation)
}

func TestIdempotencyDeleteReleasesKey(t *testing.T) {
	exec := &fakeExec{affected: 1}
	store := NewIdempotencyStore(exec)

	require.NoError(t, store.Delete(context.Background(), "refill:r-1"))
	require.Equal(t, []any{"refill:r-1"}, exec.calls[0].args)
	require.ErrorIs(t, store.Delete(context.Background(), ""), ErrValidation)
}

func TestIdempotencyCleanupCutoff(t *testing.T) {
	exec := &fakeExec{affected: 3}
	store := NewIdempotencyStore(exec)
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	removed, err := store.Cleanup(context.Background(), 48*time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 3, removed)
	require.Equal(t, now.Add(-48*time.Hour), exec.calls[0].args[0])

	_, err = store.Cleanup(context.Background(), 0)
	require.ErrorIs(t, err, ErrValidation)
}

func TestNilIdempotencyStoreIsInert(t *testing.T) {
	var store *IdempotencyStore
	removed, err := store.Cleanup(context.Background(), time.Hour)
	require.NoError(t, err)
	require.Zero(t, removed)
	require.NoError(t, store.Delete(context.Background(), "k"))
}
