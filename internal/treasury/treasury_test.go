package treasury_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/resortledger/internal/store"
	"github.com/example/resortledger/internal/treasury"
)

func TestSignTables(t *testing.T) {
	increases := []treasury.TxKind{
		treasury.TxRevenue,
		treasury.TxPartnerPayment,
		treasury.TxBankWithdrawal,
		treasury.TxExchangeIn,
		treasury.TxExpenseReversal,
	}
	for _, k := range increases {
		assert.True(t, treasury.Increases(k), "%s should increase", k)
	}

	decreases := []treasury.TxKind{
		treasury.TxExpense,
		treasury.TxRevenueReversal,
		treasury.TxBankDeposit,
		treasury.TxExchangeOut,
		treasury.TxPartnerPayout,
		treasury.TxSupplierPayment,
	}
	for _, k := range decreases {
		assert.False(t, treasury.Increases(k), "%s should decrease", k)
	}

	assert.True(t, treasury.IncreasesBank(treasury.BankDeposit))
	assert.True(t, treasury.IncreasesBank(treasury.BankTransferIn))
	assert.True(t, treasury.IncreasesBank(treasury.BankInterest))
	assert.False(t, treasury.IncreasesBank(treasury.BankWithdrawal))
	assert.False(t, treasury.IncreasesBank(treasury.BankFee))
}

func TestReversalKindFlipsSign(t *testing.T) {
	for _, k := range []treasury.TxKind{
		treasury.TxRevenue, treasury.TxExpense,
		treasury.TxSupplierPayment, treasury.TxExchangeIn,
	} {
		rev := treasury.ReversalKind(k)
		assert.NotEqual(t, treasury.Increases(k), treasury.Increases(rev), "reversal of %s must flip sign", k)
	}
	for _, k := range []treasury.TxKind{treasury.BankDeposit, treasury.BankFee} {
		rev := treasury.BankReversalKind(k)
		assert.NotEqual(t, treasury.IncreasesBank(k), treasury.IncreasesBank(rev), "bank reversal of %s must flip sign", k)
	}
}

func TestApplyTreasuryMovement(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	err := mem.InTx(ctx, func(tx store.Tx) error {
		svc := treasury.NewService(tx)

		_, err := svc.ApplyTreasuryMovement(ctx, "USD", treasury.Movement{
			Kind: treasury.TxRevenue, Amount: decimal.NewFromInt(500), CreatedBy: "test",
		})
		require.NoError(t, err)

		_, err = svc.ApplyTreasuryMovement(ctx, "USD", treasury.Movement{
			Kind: treasury.TxExpense, Amount: decimal.NewFromInt(120), CreatedBy: "test",
		})
		require.NoError(t, err)

		pool, err := tx.GetPool(ctx, "USD")
		require.NoError(t, err)
		assert.True(t, pool.Balance.Equal(decimal.NewFromInt(380)), "got %s", pool.Balance)

		// Pools are per currency.
		_, err = svc.ApplyTreasuryMovement(ctx, "EUR", treasury.Movement{
			Kind: treasury.TxRevenue, Amount: decimal.NewFromInt(40), CreatedBy: "test",
		})
		require.NoError(t, err)
		eur, err := tx.GetPool(ctx, "EUR")
		require.NoError(t, err)
		assert.True(t, eur.Balance.Equal(decimal.NewFromInt(40)))
		return nil
	})
	require.NoError(t, err)
}

func TestApplyMovementRejectsBadInput(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	err := mem.InTx(ctx, func(tx store.Tx) error {
		svc := treasury.NewService(tx)

		_, err := svc.ApplyTreasuryMovement(ctx, "USD", treasury.Movement{
			Kind: treasury.TxRevenue, Amount: decimal.NewFromInt(-5),
		})
		assert.Error(t, err)

		_, err = svc.ApplyTreasuryMovement(ctx, "USD", treasury.Movement{
			Kind: "teleport", Amount: decimal.NewFromInt(5),
		})
		assert.Error(t, err)

		_, err = svc.ApplyBankMovement(ctx, 1, treasury.Movement{
			Kind: "teleport", Amount: decimal.NewFromInt(5),
		})
		assert.Error(t, err)
		return nil
	})
	require.NoError(t, err)
}

func TestBankMovementAndRebuild(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	err := mem.InTx(ctx, func(tx store.Tx) error {
		account := &treasury.BankAccount{
			BankName:       "Coast National",
			Number:         "100200300",
			Name:           "Operating EUR",
			Currency:       "EUR",
			OpeningBalance: decimal.NewFromInt(1000),
			Balance:        decimal.NewFromInt(1000),
			Active:         true,
		}
		require.NoError(t, tx.CreateBankAccount(ctx, account))

		svc := treasury.NewService(tx)
		_, err := svc.ApplyBankMovement(ctx, account.ID, treasury.Movement{
			Kind: treasury.BankDeposit, Amount: decimal.NewFromInt(250), CreatedBy: "test",
		})
		require.NoError(t, err)
		_, err = svc.ApplyBankMovement(ctx, account.ID, treasury.Movement{
			Kind: treasury.BankFee, Amount: decimal.NewFromInt(10), CreatedBy: "test",
		})
		require.NoError(t, err)

		got, err := tx.GetBankAccount(ctx, account.ID)
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.NewFromInt(1240)))

		// A corrupted cache comes back from the log plus the opening balance.
		require.NoError(t, tx.SetBankBalance(ctx, account.ID, decimal.NewFromInt(9999)))
		rebuilt, err := svc.RebuildBankBalance(ctx, account.ID)
		require.NoError(t, err)
		assert.True(t, rebuilt.Equal(decimal.NewFromInt(1240)))
		return nil
	})
	require.NoError(t, err)
}

func TestReverseMovementNetsToZero(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	err := mem.InTx(ctx, func(tx store.Tx) error {
		svc := treasury.NewService(tx)

		orig, err := svc.ApplyTreasuryMovement(ctx, "USD", treasury.Movement{
			Kind: treasury.TxRevenue, Amount: decimal.NewFromInt(75), CreatedBy: "test",
		})
		require.NoError(t, err)

		rev, err := svc.ReverseMovement(ctx, orig, "test")
		require.NoError(t, err)
		assert.Equal(t, treasury.TxRevenueReversal, rev.Kind)

		pool, err := tx.GetPool(ctx, "USD")
		require.NoError(t, err)
		assert.True(t, pool.Balance.IsZero())

		// Both rows stay in the log and the replayed balance still nets out.
		txs, err := tx.ListCashTransactions(ctx, treasury.CashTxFilter{Pool: treasury.PoolTreasury, Currency: "USD"})
		require.NoError(t, err)
		assert.Len(t, txs, 2)

		rebuilt, err := svc.RebuildTreasuryBalance(ctx, "USD")
		require.NoError(t, err)
		assert.True(t, rebuilt.IsZero())
		return nil
	})
	require.NoError(t, err)
}
