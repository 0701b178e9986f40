package posting_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/resortledger/internal/coa"
	"github.com/example/resortledger/internal/config"
	"github.com/example/resortledger/internal/events"
	"github.com/example/resortledger/internal/ledger"
	"github.com/example/resortledger/internal/posting"
	"github.com/example/resortledger/internal/store"
	"github.com/example/resortledger/internal/subledger"
	"github.com/example/resortledger/internal/treasury"
)

func postingMap() *config.Accounts {
	return &config.Accounts{
		PresentationCurrency: "USD",
		Cash:                 "1010",
		CardClearing:         "1020",
		Bank:                 "1030",
		SuppliersControl:     "2010",
		PartnersControl:      "2020",
		Purchases:            "5010",
		Zones: map[string]config.ZoneAccounts{
			"beach-bar": {Revenue: "4010", Expense: "5110"},
		},
	}
}

type fixture struct {
	mem     *store.Memory
	svc     *posting.Service
	alice   *subledger.Partnership
	bob     *subledger.Partnership
	produce *subledger.Supplier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()

	f := &fixture{mem: mem, svc: posting.NewService(mem, postingMap(), nil, nil)}

	err := mem.InTx(ctx, func(tx store.Tx) error {
		accounts := []*coa.Account{
			{Code: "1010", Name: "Main cash", Type: coa.TypeAsset, Nature: coa.DebitNature, Currency: "USD", Active: true},
			{Code: "1020", Name: "Card clearing", Type: coa.TypeAsset, Nature: coa.DebitNature, Currency: "USD", Active: true},
			{Code: "1030", Name: "Operating bank", Type: coa.TypeAsset, Nature: coa.DebitNature, Currency: "USD", Active: true},
			{Code: "2010", Name: "Suppliers control", Type: coa.TypeLiability, Nature: coa.CreditNature, Currency: "USD", Active: true},
			{Code: "2020", Name: "Partners control", Type: coa.TypeLiability, Nature: coa.CreditNature, Currency: "USD", Active: true},
			{Code: "5010", Name: "Purchases", Type: coa.TypeCost, Nature: coa.DebitNature, Currency: "USD", Active: true},
			{Code: "5020", Name: "Kitchen supplies", Type: coa.TypeCost, Nature: coa.DebitNature, Currency: "USD", Active: true},
			{Code: "4010", Name: "Beach bar revenue", Type: coa.TypeRevenue, Nature: coa.CreditNature, Currency: "USD", Active: true},
			{Code: "5110", Name: "Beach bar expenses", Type: coa.TypeExpense, Nature: coa.DebitNature, Currency: "USD", Active: true},
		}
		for _, a := range accounts {
			if err := tx.CreateAccount(ctx, a); err != nil {
				return err
			}
		}

		f.alice = &subledger.Partnership{
			PartnerName: "Alice Holdings", ZoneCode: "beach-bar",
			Percentage:        decimal.NewFromInt(40),
			ExpensePercentage: decimal.NewFromInt(30),
			ShareExpenses:     true, Active: true,
		}
		f.bob = &subledger.Partnership{
			PartnerName: "Bob Ventures", ZoneCode: "beach-bar",
			Percentage: decimal.NewFromInt(35), Active: true,
		}
		if err := tx.CreatePartnership(ctx, f.alice); err != nil {
			return err
		}
		if err := tx.CreatePartnership(ctx, f.bob); err != nil {
			return err
		}

		f.produce = &subledger.Supplier{Name: "Fresh Produce Co", Active: true}
		return tx.CreateSupplier(ctx, f.produce)
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) accountBalance(t *testing.T, code string) decimal.Decimal {
	t.Helper()
	var out decimal.Decimal
	err := f.mem.InTx(context.Background(), func(tx store.Tx) error {
		a, err := tx.GetAccount(context.Background(), code)
		if err != nil {
			return err
		}
		out = a.CurrentBalance
		return nil
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) poolBalance(t *testing.T, currency string) decimal.Decimal {
	t.Helper()
	var out decimal.Decimal
	err := f.mem.InTx(context.Background(), func(tx store.Tx) error {
		p, err := tx.GetPool(context.Background(), currency)
		if err != nil {
			return err
		}
		out = p.Balance
		return nil
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) ownerBalance(t *testing.T, owner subledger.OwnerKind, id int64) decimal.Decimal {
	t.Helper()
	var out decimal.Decimal
	err := f.mem.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		out, err = tx.OwnerBalance(context.Background(), owner, id, "USD")
		return err
	})
	require.NoError(t, err)
	return out
}

func mustDay(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPostRevenueCash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	receipt, err := f.svc.PostRevenue(ctx, posting.RevenueInput{
		ZoneCode: "beach-bar", Date: mustDay("2026-02-10"),
		Amount: decimal.NewFromInt(1000), Currency: "USD",
		Method: events.MethodCash, Description: "bar night", CreatedBy: "front-desk",
	})
	require.NoError(t, err)
	assert.True(t, receipt.Posted)
	assert.True(t, receipt.SharesCalculated)

	assert.True(t, f.accountBalance(t, "1010").Equal(decimal.NewFromInt(1000)))
	assert.True(t, f.accountBalance(t, "4010").Equal(decimal.NewFromInt(1000)))
	assert.True(t, f.poolBalance(t, "USD").Equal(decimal.NewFromInt(1000)))

	// 40% and 35% partner shares.
	assert.True(t, f.ownerBalance(t, subledger.OwnerPartner, f.alice.ID).Equal(decimal.NewFromInt(400)))
	assert.True(t, f.ownerBalance(t, subledger.OwnerPartner, f.bob.ID).Equal(decimal.NewFromInt(350)))

	err = f.mem.InTx(ctx, func(tx store.Tx) error {
		entries, err := tx.ListEntries(ctx, ledger.EntryFilter{
			OriginKinds: []string{events.OriginRevenueReceipt}, OriginID: receipt.ID,
		})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, ledger.EntryRevenue, entries[0].Type)
		assert.True(t, entries[0].TotalDebit.Equal(entries[0].TotalCredit))
		return nil
	})
	require.NoError(t, err)
}

func TestPostRevenueCardSkipsTreasury(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostRevenue(ctx, posting.RevenueInput{
		ZoneCode: "beach-bar", Date: mustDay("2026-02-10"),
		Amount: decimal.NewFromInt(500), Currency: "USD",
		Method: events.MethodCard, CreatedBy: "front-desk",
	})
	require.NoError(t, err)

	assert.True(t, f.accountBalance(t, "1020").Equal(decimal.NewFromInt(500)))

	err = f.mem.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.GetPool(ctx, "USD")
		assert.ErrorIs(t, err, treasury.ErrPoolNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestPostRevenueUnmappedZoneLeavesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostRevenue(ctx, posting.RevenueInput{
		ZoneCode: "marina", Date: mustDay("2026-02-10"),
		Amount: decimal.NewFromInt(100), Currency: "USD",
		Method: events.MethodCash, CreatedBy: "front-desk",
	})
	var missing *ledger.MissingAccountConfigurationError
	require.ErrorAs(t, err, &missing)

	// The whole transaction rolled back, including the receipt itself.
	err = f.mem.InTx(ctx, func(tx store.Tx) error {
		receipts, err := tx.ListRevenueReceipts(ctx, events.RecordFilter{})
		require.NoError(t, err)
		assert.Empty(t, receipts)

		entries, err := tx.ListEntries(ctx, ledger.EntryFilter{})
		require.NoError(t, err)
		assert.Empty(t, entries)
		return nil
	})
	require.NoError(t, err)
}

func TestPostExpenseCash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.svc.PostExpense(ctx, posting.ExpenseInput{
		ZoneCode: "beach-bar", Date: mustDay("2026-02-11"),
		Amount: decimal.NewFromInt(200), Currency: "USD",
		Method: events.MethodCash, Category: "supplies",
		ChargePartners: true, CreatedBy: "manager",
	})
	require.NoError(t, err)
	assert.True(t, record.Posted)

	assert.True(t, f.accountBalance(t, "5110").Equal(decimal.NewFromInt(200)))
	assert.True(t, f.accountBalance(t, "1010").Equal(decimal.NewFromInt(-200)))
	assert.True(t, f.poolBalance(t, "USD").Equal(decimal.NewFromInt(-200)))

	// Only Alice shares expenses, at her 30% expense rate, as a credit.
	assert.True(t, f.ownerBalance(t, subledger.OwnerPartner, f.alice.ID).Equal(decimal.NewFromInt(-60)))
	assert.True(t, f.ownerBalance(t, subledger.OwnerPartner, f.bob.ID).IsZero())
}

func TestPostExpenseWithoutChargePartners(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostExpense(ctx, posting.ExpenseInput{
		ZoneCode: "beach-bar", Date: mustDay("2026-02-11"),
		Amount: decimal.NewFromInt(200), Currency: "USD",
		Method: events.MethodCash, CreatedBy: "manager",
	})
	require.NoError(t, err)

	// The GL and cash effects land, but no partner is charged.
	assert.True(t, f.accountBalance(t, "5110").Equal(decimal.NewFromInt(200)))
	assert.True(t, f.ownerBalance(t, subledger.OwnerPartner, f.alice.ID).IsZero())

	err = f.mem.InTx(ctx, func(tx store.Tx) error {
		entries, err := tx.ListSubEntries(ctx, subledger.EntryFilter{Owner: subledger.OwnerPartner})
		require.NoError(t, err)
		assert.Empty(t, entries)
		return nil
	})
	require.NoError(t, err)
}

func TestPostPurchaseBillOnCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bill, err := f.svc.PostPurchaseBill(ctx, posting.BillInput{
		SupplierID: f.produce.ID, Number: "INV-1001", Date: mustDay("2026-02-12"),
		Currency: "USD", CreatedBy: "purchasing",
		Lines: []events.PurchaseBillLine{
			{ItemName: "Limes", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(3)},
			{ItemName: "Rum", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(30)},
		},
	})
	require.NoError(t, err)
	assert.True(t, bill.Total.Equal(decimal.NewFromInt(150)))
	assert.True(t, bill.Posted)

	assert.True(t, f.accountBalance(t, "5010").Equal(decimal.NewFromInt(150)))
	assert.True(t, f.accountBalance(t, "2010").Equal(decimal.NewFromInt(150)))
	assert.True(t, f.ownerBalance(t, subledger.OwnerSupplier, f.produce.ID).Equal(decimal.NewFromInt(150)))

	// No cash moved.
	err = f.mem.InTx(ctx, func(tx store.Tx) error {
		txs, err := tx.ListCashTransactions(ctx, treasury.CashTxFilter{})
		require.NoError(t, err)
		assert.Empty(t, txs)
		return nil
	})
	require.NoError(t, err)
}

func TestPostPurchaseBillPerLineAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bill, err := f.svc.PostPurchaseBill(ctx, posting.BillInput{
		SupplierID: f.produce.ID, Number: "INV-1004", Date: mustDay("2026-02-12"),
		Currency: "USD", CreatedBy: "purchasing",
		Lines: []events.PurchaseBillLine{
			{ItemName: "Limes", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(3)},
			{ItemName: "Pans", AccountCode: "5020", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(30)},
		},
		Tax:        decimal.NewFromInt(10),
		OtherCosts: decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	assert.True(t, bill.Subtotal.Equal(decimal.NewFromInt(150)))
	assert.True(t, bill.Total.Equal(decimal.NewFromInt(165)))

	// Lines without an account land on purchases, along with tax and other
	// costs; the supplier is credited for the full total.
	assert.True(t, f.accountBalance(t, "5010").Equal(decimal.NewFromInt(45)))
	assert.True(t, f.accountBalance(t, "5020").Equal(decimal.NewFromInt(120)))
	assert.True(t, f.accountBalance(t, "2010").Equal(decimal.NewFromInt(165)))
	assert.True(t, f.ownerBalance(t, subledger.OwnerSupplier, f.produce.ID).Equal(decimal.NewFromInt(165)))
}

func TestPostPurchaseReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bill, err := f.svc.PostPurchaseBill(ctx, posting.BillInput{
		SupplierID: f.produce.ID, Number: "INV-1002", Date: mustDay("2026-02-12"),
		Currency: "USD", CreatedBy: "purchasing",
		Lines: []events.PurchaseBillLine{
			{ItemName: "Limes", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(3)},
		},
	})
	require.NoError(t, err)

	// A return above the bill total is rejected.
	_, err = f.svc.PostPurchaseReturn(ctx, posting.ReturnInput{
		BillID: bill.ID, Date: mustDay("2026-02-13"), CreatedBy: "purchasing",
		Lines: []events.PurchaseBillLine{
			{ItemName: "Limes", Quantity: decimal.NewFromInt(20), UnitPrice: decimal.NewFromInt(3)},
		},
	})
	require.Error(t, err)

	ret, err := f.svc.PostPurchaseReturn(ctx, posting.ReturnInput{
		BillID: bill.ID, Date: mustDay("2026-02-13"), CreatedBy: "purchasing",
		Lines: []events.PurchaseBillLine{
			{ItemName: "Limes", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(3)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, bill.SupplierID, ret.SupplierID)
	assert.Equal(t, "USD", ret.Currency)

	assert.True(t, f.accountBalance(t, "5010").Equal(decimal.NewFromInt(18)))
	assert.True(t, f.accountBalance(t, "2010").Equal(decimal.NewFromInt(18)))
	assert.True(t, f.ownerBalance(t, subledger.OwnerSupplier, f.produce.ID).Equal(decimal.NewFromInt(18)))
}

func TestPaySupplierCash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostPurchaseBill(ctx, posting.BillInput{
		SupplierID: f.produce.ID, Number: "INV-1003", Date: mustDay("2026-02-12"),
		Currency: "USD", CreatedBy: "purchasing",
		Lines: []events.PurchaseBillLine{
			{ItemName: "Fish", Quantity: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(40)},
		},
	})
	require.NoError(t, err)

	payment, err := f.svc.PaySupplier(ctx, posting.SupplierPaymentInput{
		SupplierID: f.produce.ID, Date: mustDay("2026-02-14"),
		Amount: decimal.NewFromInt(120), Currency: "USD",
		Method: events.MethodCash, CreatedBy: "treasury",
	})
	require.NoError(t, err)
	assert.True(t, payment.Posted)

	assert.True(t, f.accountBalance(t, "2010").Equal(decimal.NewFromInt(80)))
	assert.True(t, f.accountBalance(t, "1010").Equal(decimal.NewFromInt(-120)))
	assert.True(t, f.poolBalance(t, "USD").Equal(decimal.NewFromInt(-120)))
	assert.True(t, f.ownerBalance(t, subledger.OwnerSupplier, f.produce.ID).Equal(decimal.NewFromInt(80)))
}

func TestPayPartnerCash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostRevenue(ctx, posting.RevenueInput{
		ZoneCode: "beach-bar", Date: mustDay("2026-02-10"),
		Amount: decimal.NewFromInt(1000), Currency: "USD",
		Method: events.MethodCash, CreatedBy: "front-desk",
	})
	require.NoError(t, err)

	payment, err := f.svc.PayPartner(ctx, posting.PartnerPaymentInput{
		PartnershipID: f.alice.ID, Date: mustDay("2026-02-20"),
		Amount: decimal.NewFromInt(300), Currency: "USD",
		Method: events.MethodCash, CreatedBy: "treasury",
	})
	require.NoError(t, err)
	assert.True(t, payment.Posted)

	assert.True(t, f.accountBalance(t, "2020").Equal(decimal.NewFromInt(-300)))
	assert.True(t, f.poolBalance(t, "USD").Equal(decimal.NewFromInt(700)))
	assert.True(t, f.ownerBalance(t, subledger.OwnerPartner, f.alice.ID).Equal(decimal.NewFromInt(100)))
}

func TestInputValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostRevenue(ctx, posting.RevenueInput{
		ZoneCode: "beach-bar", Date: mustDay("2026-02-10"),
		Amount: decimal.Zero, Currency: "USD", Method: events.MethodCash,
	})
	assert.Error(t, err, "zero amount must be rejected")

	_, err = f.svc.PostRevenue(ctx, posting.RevenueInput{
		ZoneCode: "beach-bar", Date: mustDay("2026-02-10"),
		Amount: decimal.NewFromInt(10), Currency: "USD", Method: "barter",
	})
	assert.Error(t, err, "unknown payment method must be rejected")

	_, err = f.svc.PostExpense(ctx, posting.ExpenseInput{
		ZoneCode: "beach-bar", Date: mustDay("2026-02-10"),
		Amount: decimal.NewFromInt(10), Currency: "US", Method: events.MethodCash,
	})
	assert.Error(t, err, "bad currency code must be rejected")
}

func TestReverseAndDeleteRestoresEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	receipt, err := f.svc.PostRevenue(ctx, posting.RevenueInput{
		ZoneCode: "beach-bar", Date: mustDay("2026-02-10"),
		Amount: decimal.NewFromInt(1000), Currency: "USD",
		Method: events.MethodCash, CreatedBy: "front-desk",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.ReverseAndDelete(ctx, events.OriginRevenueReceipt, receipt.ID, "auditor"))

	assert.True(t, f.accountBalance(t, "1010").IsZero())
	assert.True(t, f.accountBalance(t, "4010").IsZero())
	assert.True(t, f.poolBalance(t, "USD").IsZero())
	assert.True(t, f.ownerBalance(t, subledger.OwnerPartner, f.alice.ID).IsZero())
	assert.True(t, f.ownerBalance(t, subledger.OwnerPartner, f.bob.ID).IsZero())

	err = f.mem.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.GetRevenueReceipt(ctx, receipt.ID)
		assert.ErrorIs(t, err, events.ErrNotFound)

		entries, err := tx.ListEntries(ctx, ledger.EntryFilter{})
		require.NoError(t, err)
		assert.Empty(t, entries)

		// The cash log keeps the original and its compensation.
		txs, err := tx.ListCashTransactions(ctx, treasury.CashTxFilter{
			OriginKind: events.OriginRevenueReceipt, OriginID: receipt.ID,
		})
		require.NoError(t, err)
		assert.Len(t, txs, 2)
		return nil
	})
	require.NoError(t, err)
}

func TestReverseAndDeleteUnknownRecord(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ReverseAndDelete(context.Background(), events.OriginRevenueReceipt, 42, "auditor")
	assert.ErrorIs(t, err, events.ErrNotFound)

	err = f.svc.ReverseAndDelete(context.Background(), "mystery", 1, "auditor")
	assert.Error(t, err)
}

func TestRebuildAllReproducesState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostRevenue(ctx, posting.RevenueInput{
		ZoneCode: "beach-bar", Date: mustDay("2026-02-10"),
		Amount: decimal.NewFromInt(1000), Currency: "USD",
		Method: events.MethodCash, CreatedBy: "front-desk",
	})
	require.NoError(t, err)
	_, err = f.svc.PostExpense(ctx, posting.ExpenseInput{
		ZoneCode: "beach-bar", Date: mustDay("2026-02-11"),
		Amount: decimal.NewFromInt(200), Currency: "USD",
		Method: events.MethodCash, ChargePartners: true, CreatedBy: "manager",
	})
	require.NoError(t, err)
	bill, err := f.svc.PostPurchaseBill(ctx, posting.BillInput{
		SupplierID: f.produce.ID, Number: "INV-1", Date: mustDay("2026-02-12"),
		Currency: "USD", CreatedBy: "purchasing",
		Lines: []events.PurchaseBillLine{
			{ItemName: "Fish", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(50)},
		},
	})
	require.NoError(t, err)

	cashBefore := f.accountBalance(t, "1010")
	poolBefore := f.poolBalance(t, "USD")
	aliceBefore := f.ownerBalance(t, subledger.OwnerPartner, f.alice.ID)
	supplierBefore := f.ownerBalance(t, subledger.OwnerSupplier, f.produce.ID)

	// Corrupt caches to prove the rebuild recomputes from the records.
	err = f.mem.InTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.SetAccountBalance(ctx, "1010", decimal.NewFromInt(-9999)))
		return tx.SetPoolBalance(ctx, "USD", decimal.NewFromInt(-9999))
	})
	require.NoError(t, err)

	report, err := f.svc.RebuildAll(ctx, "admin")
	require.NoError(t, err)

	// Everything was already posted; the rebuild only repairs the caches.
	assert.Equal(t, 0, report.Receipts)
	assert.Equal(t, 0, report.Expenses)
	assert.Equal(t, 0, report.Bills)
	assert.Equal(t, 0, report.OrphanedEntries)
	assert.Equal(t, 9, report.Accounts)
	assert.Equal(t, 1, report.Pools)

	assert.True(t, f.accountBalance(t, "1010").Equal(cashBefore))
	assert.True(t, f.poolBalance(t, "USD").Equal(poolBefore))
	assert.True(t, f.ownerBalance(t, subledger.OwnerPartner, f.alice.ID).Equal(aliceBefore))
	assert.True(t, f.ownerBalance(t, subledger.OwnerSupplier, f.produce.ID).Equal(supplierBefore))

	// The bill record still carries its computed total.
	err = f.mem.InTx(ctx, func(tx store.Tx) error {
		b, err := tx.GetPurchaseBill(ctx, bill.ID)
		require.NoError(t, err)
		assert.True(t, b.Posted)
		assert.True(t, b.Total.Equal(decimal.NewFromInt(150)))
		return nil
	})
	require.NoError(t, err)
}

func TestRebuildAllKeepsManualMovements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostRevenue(ctx, posting.RevenueInput{
		ZoneCode: "beach-bar", Date: mustDay("2026-02-10"),
		Amount: decimal.NewFromInt(1000), Currency: "USD",
		Method: events.MethodCash, CreatedBy: "front-desk",
	})
	require.NoError(t, err)

	// A manual exchange has no backing event record, only its cash row.
	err = f.mem.InTx(ctx, func(tx store.Tx) error {
		_, err := treasury.NewService(tx).ApplyTreasuryMovement(ctx, "USD", treasury.Movement{
			Kind: treasury.TxExchangeIn, Amount: decimal.NewFromInt(500),
			Description: "euro desk exchange", CreatedBy: "treasury",
		})
		return err
	})
	require.NoError(t, err)
	require.True(t, f.poolBalance(t, "USD").Equal(decimal.NewFromInt(1500)))

	_, err = f.svc.RebuildAll(ctx, "admin")
	require.NoError(t, err)

	assert.True(t, f.poolBalance(t, "USD").Equal(decimal.NewFromInt(1500)))

	err = f.mem.InTx(ctx, func(tx store.Tx) error {
		txs, err := tx.ListCashTransactions(ctx, treasury.CashTxFilter{})
		require.NoError(t, err)
		assert.Len(t, txs, 2)
		return nil
	})
	require.NoError(t, err)
}

func TestRebuildAllDropsOrphanedRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	receipt, err := f.svc.PostRevenue(ctx, posting.RevenueInput{
		ZoneCode: "beach-bar", Date: mustDay("2026-02-10"),
		Amount: decimal.NewFromInt(1000), Currency: "USD",
		Method: events.MethodCash, CreatedBy: "front-desk",
	})
	require.NoError(t, err)

	// Delete the record underneath its derived rows.
	err = f.mem.InTx(ctx, func(tx store.Tx) error {
		return tx.DeleteRevenueReceipt(ctx, receipt.ID)
	})
	require.NoError(t, err)

	report, err := f.svc.RebuildAll(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, report.OrphanedEntries)

	assert.True(t, f.accountBalance(t, "4010").IsZero())
	assert.True(t, f.ownerBalance(t, subledger.OwnerPartner, f.alice.ID).IsZero())

	err = f.mem.InTx(ctx, func(tx store.Tx) error {
		entries, err := tx.ListEntries(ctx, ledger.EntryFilter{})
		require.NoError(t, err)
		assert.Empty(t, entries)

		subs, err := tx.ListSubEntries(ctx, subledger.EntryFilter{})
		require.NoError(t, err)
		assert.Empty(t, subs)
		return nil
	})
	require.NoError(t, err)
}

func TestConcurrentRevenuePostings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 1000
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PostRevenue(ctx, posting.RevenueInput{
				ZoneCode: "beach-bar", Date: mustDay("2026-02-10"),
				Amount: decimal.NewFromInt(10), Currency: "USD",
				Method: events.MethodCash, CreatedBy: "front-desk",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.True(t, f.poolBalance(t, "USD").Equal(decimal.NewFromInt(10*n)))

	err := f.mem.InTx(ctx, func(tx store.Tx) error {
		entries, err := tx.ListEntries(ctx, ledger.EntryFilter{})
		require.NoError(t, err)
		require.Len(t, entries, n)

		seen := make(map[int64]bool, n)
		for _, e := range entries {
			seen[e.Seq] = true
		}
		for seq := int64(1); seq <= n; seq++ {
			require.True(t, seen[seq], "sequence %d missing", seq)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestResetAllRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostRevenue(ctx, posting.RevenueInput{
		ZoneCode: "beach-bar", Date: mustDay("2026-02-10"),
		Amount: decimal.NewFromInt(1000), Currency: "USD",
		Method: events.MethodCash, CreatedBy: "front-desk",
	})
	require.NoError(t, err)

	err = f.svc.ResetAll(ctx, false, "admin")
	assert.ErrorIs(t, err, posting.ErrResetNotConfirmed)
	assert.True(t, f.accountBalance(t, "1010").Equal(decimal.NewFromInt(1000)))

	require.NoError(t, f.svc.ResetAll(ctx, true, "admin"))
	assert.True(t, f.accountBalance(t, "1010").IsZero())

	// Event records survive a reset; a rebuild brings the ledger back.
	report, err := f.svc.RebuildAll(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Receipts)
	assert.True(t, f.accountBalance(t, "1010").Equal(decimal.NewFromInt(1000)))
}
