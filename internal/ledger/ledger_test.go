package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/resortledger/internal/coa"
	"github.com/example/resortledger/internal/ledger"
	"github.com/example/resortledger/internal/store"
)

func seedAccounts(t *testing.T, mem *store.Memory) {
	t.Helper()
	accounts := []*coa.Account{
		{Code: "1010", Name: "Main cash", Type: coa.TypeAsset, Nature: coa.DebitNature, Currency: "USD", Active: true},
		{Code: "4010", Name: "Beach bar revenue", Type: coa.TypeRevenue, Nature: coa.CreditNature, Currency: "USD", Active: true},
		{Code: "5010", Name: "Beach bar expenses", Type: coa.TypeExpense, Nature: coa.DebitNature, Currency: "USD", Active: true},
	}
	err := mem.InTx(context.Background(), func(tx store.Tx) error {
		for _, a := range accounts {
			if err := tx.CreateAccount(context.Background(), a); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func postRevenue(t *testing.T, mem *store.Memory, amount int64) *ledger.JournalEntry {
	t.Helper()
	var entry *ledger.JournalEntry
	err := mem.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		entry, err = ledger.NewService(tx).CreateEntry(context.Background(), ledger.CreateEntryInput{
			Date:        time.Now(),
			Type:        ledger.EntryRevenue,
			Description: "bar takings",
			CreatedBy:   "test",
			Lines: []ledger.LineInput{
				{AccountCode: "1010", Debit: decimal.NewFromInt(amount), Currency: "USD"},
				{AccountCode: "4010", Credit: decimal.NewFromInt(amount), Currency: "USD"},
			},
		})
		return err
	})
	require.NoError(t, err)
	return entry
}

func TestCreateEntryUpdatesBalancesByNature(t *testing.T) {
	mem := store.NewMemory()
	seedAccounts(t, mem)

	entry := postRevenue(t, mem, 250)
	assert.Equal(t, "JE-000001", entry.Number)
	assert.True(t, entry.Posted)

	err := mem.InTx(context.Background(), func(tx store.Tx) error {
		cash, err := tx.GetAccount(context.Background(), "1010")
		require.NoError(t, err)
		assert.True(t, cash.CurrentBalance.Equal(decimal.NewFromInt(250)))

		revenue, err := tx.GetAccount(context.Background(), "4010")
		require.NoError(t, err)
		assert.True(t, revenue.CurrentBalance.Equal(decimal.NewFromInt(250)))
		return nil
	})
	require.NoError(t, err)
}

func TestCreateEntryRejectsUnbalanced(t *testing.T) {
	mem := store.NewMemory()
	seedAccounts(t, mem)

	err := mem.InTx(context.Background(), func(tx store.Tx) error {
		_, err := ledger.NewService(tx).CreateEntry(context.Background(), ledger.CreateEntryInput{
			Date: time.Now(),
			Type: ledger.EntryRevenue,
			Lines: []ledger.LineInput{
				{AccountCode: "1010", Debit: decimal.NewFromInt(100), Currency: "USD"},
				{AccountCode: "4010", Credit: decimal.RequireFromString("99.99"), Currency: "USD"},
			},
		})
		return err
	})

	var unbalanced *ledger.UnbalancedEntryError
	require.ErrorAs(t, err, &unbalanced)
	assert.True(t, unbalanced.Debit.Equal(decimal.NewFromInt(100)))

	// Nothing persisted and no balance drift.
	err = mem.InTx(context.Background(), func(tx store.Tx) error {
		entries, err := tx.ListEntries(context.Background(), ledger.EntryFilter{})
		require.NoError(t, err)
		assert.Empty(t, entries)

		cash, err := tx.GetAccount(context.Background(), "1010")
		require.NoError(t, err)
		assert.True(t, cash.CurrentBalance.IsZero())
		return nil
	})
	require.NoError(t, err)
}

func TestCreateEntryLineValidation(t *testing.T) {
	mem := store.NewMemory()
	seedAccounts(t, mem)
	svc := func(tx store.Tx) *ledger.Service { return ledger.NewService(tx) }

	cases := []struct {
		name  string
		lines []ledger.LineInput
	}{
		{"no lines", nil},
		{"both sides set", []ledger.LineInput{
			{AccountCode: "1010", Debit: decimal.NewFromInt(10), Credit: decimal.NewFromInt(10), Currency: "USD"},
		}},
		{"neither side set", []ledger.LineInput{
			{AccountCode: "1010", Currency: "USD"},
		}},
		{"negative amount", []ledger.LineInput{
			{AccountCode: "1010", Debit: decimal.NewFromInt(-10), Currency: "USD"},
			{AccountCode: "4010", Credit: decimal.NewFromInt(-10), Currency: "USD"},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := mem.InTx(context.Background(), func(tx store.Tx) error {
				_, err := svc(tx).CreateEntry(context.Background(), ledger.CreateEntryInput{
					Date:  time.Now(),
					Type:  ledger.EntryAdjustment,
					Lines: tc.lines,
				})
				return err
			})
			assert.Error(t, err)
		})
	}
}

func TestCreateEntryUnknownAccount(t *testing.T) {
	mem := store.NewMemory()
	seedAccounts(t, mem)

	err := mem.InTx(context.Background(), func(tx store.Tx) error {
		_, err := ledger.NewService(tx).CreateEntry(context.Background(), ledger.CreateEntryInput{
			Date: time.Now(),
			Type: ledger.EntryRevenue,
			Lines: []ledger.LineInput{
				{AccountCode: "9999", Debit: decimal.NewFromInt(10), Currency: "USD"},
				{AccountCode: "4010", Credit: decimal.NewFromInt(10), Currency: "USD"},
			},
		})
		return err
	})

	var missing *ledger.MissingAccountConfigurationError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "9999", missing.Code)
}

func TestSequenceIsGaplessUnderConcurrency(t *testing.T) {
	mem := store.NewMemory()
	seedAccounts(t, mem)

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			postRevenue(t, mem, 1)
		}()
	}
	wg.Wait()

	err := mem.InTx(context.Background(), func(tx store.Tx) error {
		entries, err := tx.ListEntries(context.Background(), ledger.EntryFilter{})
		require.NoError(t, err)
		require.Len(t, entries, n)

		seen := make(map[int64]bool, n)
		for _, e := range entries {
			assert.False(t, seen[e.Seq], "sequence %d assigned twice", e.Seq)
			seen[e.Seq] = true
		}
		for seq := int64(1); seq <= n; seq++ {
			assert.True(t, seen[seq], "sequence %d missing", seq)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteEntryBacksOutBalances(t *testing.T) {
	mem := store.NewMemory()
	seedAccounts(t, mem)

	entry := postRevenue(t, mem, 300)
	postRevenue(t, mem, 100)

	err := mem.InTx(context.Background(), func(tx store.Tx) error {
		return ledger.NewService(tx).DeleteEntry(context.Background(), entry.Seq)
	})
	require.NoError(t, err)

	err = mem.InTx(context.Background(), func(tx store.Tx) error {
		_, err := tx.GetEntry(context.Background(), entry.Seq)
		assert.ErrorIs(t, err, ledger.ErrEntryNotFound)

		cash, err := tx.GetAccount(context.Background(), "1010")
		require.NoError(t, err)
		assert.True(t, cash.CurrentBalance.Equal(decimal.NewFromInt(100)))
		return nil
	})
	require.NoError(t, err)
}

func TestRebuildAccountBalance(t *testing.T) {
	mem := store.NewMemory()
	seedAccounts(t, mem)

	postRevenue(t, mem, 120)
	postRevenue(t, mem, 80)

	// Corrupt the cache, then rebuild from the line log.
	err := mem.InTx(context.Background(), func(tx store.Tx) error {
		return tx.SetAccountBalance(context.Background(), "1010", decimal.NewFromInt(-1))
	})
	require.NoError(t, err)

	var rebuilt decimal.Decimal
	err = mem.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		rebuilt, err = ledger.NewService(tx).RebuildAccountBalance(context.Background(), "1010", time.Time{})
		return err
	})
	require.NoError(t, err)
	assert.True(t, rebuilt.Equal(decimal.NewFromInt(200)))
}
