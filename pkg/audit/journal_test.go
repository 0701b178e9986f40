package audit_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/resortledger/pkg/audit"
)

func openJournal(t *testing.T, path string) (*sql.DB, *audit.Journal) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	j, err := audit.Open(context.Background(), db)
	require.NoError(t, err)
	return db, j
}

func TestRecordBuildsChain(t *testing.T) {
	_, j := openJournal(t, ":memory:")
	ctx := context.Background()

	first, err := j.Record(ctx, "treasury", "revenue.posted", "revenue_receipt/1", "")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("0", 64), first.PreviousHash)
	assert.Len(t, first.Hash, 64)

	second, err := j.Record(ctx, "treasury", "expense.posted", "expense_record/1", "cash")
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.PreviousHash)

	events, err := j.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "revenue.posted", events[0].Action)
	assert.Equal(t, "expense_record/1", events[1].Subject)
	assert.True(t, audit.VerifyChain(events))
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	db, j := openJournal(t, ":memory:")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := j.Record(ctx, "admin", "record.reversed", "purchase_bill/7", "")
		require.NoError(t, err)
	}

	_, err := db.ExecContext(ctx, `UPDATE audit_events SET actor = 'intruder' WHERE seq = 2`)
	require.NoError(t, err)

	events, err := j.List(ctx)
	require.NoError(t, err)
	assert.False(t, audit.VerifyChain(events))
}

func TestChainResumesAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	ctx := context.Background()

	db, j := openJournal(t, path)
	first, err := j.Record(ctx, "cli", "ledger.rebuilt", "all", "")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, j2 := openJournal(t, path)
	second, err := j2.Record(ctx, "cli", "ledger.reset", "all", "confirmed")
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.PreviousHash)

	events, err := j2.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, audit.VerifyChain(events))
}

func TestVerifyChainEmpty(t *testing.T) {
	assert.True(t, audit.VerifyChain(nil))
}
