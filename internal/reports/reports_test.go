package reports_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/resortledger/internal/coa"
	"github.com/example/resortledger/internal/config"
	"github.com/example/resortledger/internal/events"
	"github.com/example/resortledger/internal/fx"
	"github.com/example/resortledger/internal/posting"
	"github.com/example/resortledger/internal/reports"
	"github.com/example/resortledger/internal/store"
)

func reportAccounts() *config.Accounts {
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
			"spa":       {Revenue: "4020", Expense: "5120"},
		},
	}
}

type reportFixture struct {
	mem      *store.Memory
	svc      *posting.Service
	reporter *reports.Reporter
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()

	err := mem.InTx(ctx, func(tx store.Tx) error {
		accounts := []*coa.Account{
			{Code: "1010", Name: "Main cash", Type: coa.TypeAsset, Nature: coa.DebitNature, Currency: "USD", Active: true},
			{Code: "1020", Name: "Card clearing", Type: coa.TypeAsset, Nature: coa.DebitNature, Currency: "USD", Active: true},
			{Code: "1030", Name: "Operating bank", Type: coa.TypeAsset, Nature: coa.DebitNature, Currency: "USD", Active: true},
			{Code: "2010", Name: "Suppliers control", Type: coa.TypeLiability, Nature: coa.CreditNature, Currency: "USD", Active: true},
			{Code: "2020", Name: "Partners control", Type: coa.TypeLiability, Nature: coa.CreditNature, Currency: "USD", Active: true},
			{Code: "5010", Name: "Purchases", Type: coa.TypeCost, Nature: coa.DebitNature, Currency: "USD", Active: true},
			{Code: "4010", Name: "Beach bar revenue", Type: coa.TypeRevenue, Nature: coa.CreditNature, Currency: "USD", Active: true},
			{Code: "5110", Name: "Beach bar expenses", Type: coa.TypeExpense, Nature: coa.DebitNature, Currency: "USD", Active: true},
			{Code: "4020", Name: "Spa revenue", Type: coa.TypeRevenue, Nature: coa.CreditNature, Currency: "USD", Active: true},
			{Code: "5120", Name: "Spa expenses", Type: coa.TypeExpense, Nature: coa.DebitNature, Currency: "USD", Active: true},
		}
		for _, a := range accounts {
			if err := tx.CreateAccount(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	return &reportFixture{
		mem:      mem,
		svc:      posting.NewService(mem, reportAccounts(), nil, nil),
		reporter: reports.NewReporter(mem, "USD"),
	}
}

func (f *reportFixture) putRate(t *testing.T, currency string, date time.Time, rateType fx.RateType, rate string) {
	t.Helper()
	err := f.mem.InTx(context.Background(), func(tx store.Tx) error {
		return tx.PutRate(context.Background(), &fx.Rate{
			Currency: currency, Date: date, Type: rateType,
			Rate: decimal.RequireFromString(rate),
		})
	})
	require.NoError(t, err)
}

func (f *reportFixture) revenue(t *testing.T, zone string, date time.Time, amount int64, currency string, method events.PaymentMethod) {
	t.Helper()
	_, err := f.svc.PostRevenue(context.Background(), posting.RevenueInput{
		ZoneCode: zone, Date: date, Amount: decimal.NewFromInt(amount),
		Currency: currency, Method: method, CreatedBy: "tester",
	})
	require.NoError(t, err)
}

func (f *reportFixture) expense(t *testing.T, zone string, date time.Time, amount int64, currency string, method events.PaymentMethod) {
	t.Helper()
	_, err := f.svc.PostExpense(context.Background(), posting.ExpenseInput{
		ZoneCode: zone, Date: date, Amount: decimal.NewFromInt(amount),
		Currency: currency, Method: method, CreatedBy: "tester",
	})
	require.NoError(t, err)
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func findRow(rows []reports.TrialBalanceRow, code string) *reports.TrialBalanceRow {
	for i := range rows {
		if rows[i].Code == code {
			return &rows[i]
		}
	}
	return nil
}

func TestAccountBalanceAsOf(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	f.revenue(t, "beach-bar", day("2026-02-10"), 1000, "USD", events.MethodCash)
	f.revenue(t, "beach-bar", day("2026-02-20"), 300, "USD", events.MethodCash)

	mid, err := f.reporter.AccountBalanceAsOf(ctx, "1010", day("2026-02-15"), "")
	require.NoError(t, err)
	assert.True(t, mid.Balance.Equal(decimal.NewFromInt(1000)), "cutoff excludes later entries")

	end, err := f.reporter.AccountBalanceAsOf(ctx, "1010", day("2026-02-28"), "")
	require.NoError(t, err)
	assert.True(t, end.Balance.Equal(decimal.NewFromInt(1300)))

	_, err = f.reporter.AccountBalanceAsOf(ctx, "9999", day("2026-02-28"), "")
	assert.Error(t, err)
}

func TestAccountBalanceCurrencyFilter(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	f.revenue(t, "beach-bar", day("2026-02-10"), 1000, "USD", events.MethodCard)
	f.revenue(t, "beach-bar", day("2026-02-11"), 200, "EUR", events.MethodCard)

	eur, err := f.reporter.AccountBalanceAsOf(ctx, "1020", day("2026-02-28"), "EUR")
	require.NoError(t, err)
	assert.True(t, eur.Balance.Equal(decimal.NewFromInt(200)))

	usd, err := f.reporter.AccountBalanceAsOf(ctx, "1020", day("2026-02-28"), "USD")
	require.NoError(t, err)
	assert.True(t, usd.Balance.Equal(decimal.NewFromInt(1000)))
}

func TestPresentationBalanceSkipsUncoveredCurrencies(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	f.putRate(t, "EUR", day("2026-02-01"), fx.RateClosing, "1.10")

	f.revenue(t, "beach-bar", day("2026-02-10"), 1000, "USD", events.MethodCard)
	f.revenue(t, "beach-bar", day("2026-02-11"), 200, "EUR", events.MethodCard)
	f.revenue(t, "beach-bar", day("2026-02-12"), 100, "GBP", events.MethodCard)

	total, cov, err := f.reporter.PresentationBalance(ctx, "1020", day("2026-02-28"))
	require.NoError(t, err)

	// 1000 USD + 200 EUR at 1.10; the GBP leg has no rate and is excluded.
	assert.True(t, total.Equal(decimal.RequireFromString("1220")))
	require.NotNil(t, cov)
	assert.Equal(t, []string{"GBP"}, cov.Missing)
	assert.Contains(t, cov.Available, "EUR")
}

func TestTrialBalancePerCurrency(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	f.revenue(t, "beach-bar", day("2026-02-10"), 1000, "USD", events.MethodCash)
	f.revenue(t, "beach-bar", day("2026-02-11"), 200, "EUR", events.MethodCard)

	tb, err := f.reporter.TrialBalance(ctx, day("2026-02-28"), reports.ModePerCurrency, "")
	require.NoError(t, err)
	require.Len(t, tb.Blocks, 2)

	// Blocks are sorted by currency.
	eur, usd := tb.Blocks[0], tb.Blocks[1]
	assert.Equal(t, "EUR", eur.Currency)
	assert.Equal(t, "USD", usd.Currency)

	// Each currency block balances on its own.
	assert.True(t, eur.TotalDebit.Equal(eur.TotalCredit))
	assert.True(t, usd.TotalDebit.Equal(usd.TotalCredit))

	cash := findRow(usd.Rows, "1010")
	require.NotNil(t, cash)
	assert.True(t, cash.Debit.Equal(decimal.NewFromInt(1000)))

	clearing := findRow(eur.Rows, "1020")
	require.NotNil(t, clearing)
	assert.True(t, clearing.Debit.Equal(decimal.NewFromInt(200)))

	revenue := findRow(eur.Rows, "4010")
	require.NotNil(t, revenue)
	assert.True(t, revenue.Credit.Equal(decimal.NewFromInt(200)))
}

func TestTrialBalanceOpeningBalanceInOwnCurrency(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	err := f.mem.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateAccount(ctx, &coa.Account{
			Code: "3010", Name: "Owner capital", Type: coa.TypeEquity,
			Nature: coa.CreditNature, Currency: "EUR", Active: true,
			OpeningBalance: decimal.NewFromInt(500),
			CurrentBalance: decimal.NewFromInt(500),
		})
	})
	require.NoError(t, err)

	f.revenue(t, "beach-bar", day("2026-02-10"), 1000, "USD", events.MethodCash)

	tb, err := f.reporter.TrialBalance(ctx, day("2026-02-28"), reports.ModePerCurrency, "")
	require.NoError(t, err)
	require.Len(t, tb.Blocks, 2)

	eur := tb.Blocks[0]
	require.Equal(t, "EUR", eur.Currency)
	capital := findRow(eur.Rows, "3010")
	require.NotNil(t, capital)
	assert.True(t, capital.Credit.Equal(decimal.NewFromInt(500)))

	// The opening balance must not bleed into the USD block.
	usd := tb.Blocks[1]
	assert.Nil(t, findRow(usd.Rows, "3010"))
}

func TestTrialBalanceSingleCurrency(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	f.revenue(t, "beach-bar", day("2026-02-10"), 1000, "USD", events.MethodCash)
	f.revenue(t, "beach-bar", day("2026-02-11"), 200, "EUR", events.MethodCard)

	_, err := f.reporter.TrialBalance(ctx, day("2026-02-28"), reports.ModeSingle, "")
	assert.Error(t, err, "single-currency mode requires a currency")

	tb, err := f.reporter.TrialBalance(ctx, day("2026-02-28"), reports.ModeSingle, "EUR")
	require.NoError(t, err)
	require.Len(t, tb.Blocks, 1)
	assert.Equal(t, "EUR", tb.Blocks[0].Currency)
	assert.Nil(t, findRow(tb.Blocks[0].Rows, "1010"))
	assert.NotNil(t, findRow(tb.Blocks[0].Rows, "1020"))
}

func TestTrialBalancePresentationMode(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	f.putRate(t, "EUR", day("2026-02-01"), fx.RateClosing, "1.10")

	f.revenue(t, "beach-bar", day("2026-02-10"), 1000, "USD", events.MethodCash)
	f.revenue(t, "beach-bar", day("2026-02-11"), 200, "EUR", events.MethodCard)
	f.revenue(t, "beach-bar", day("2026-02-12"), 100, "GBP", events.MethodCard)

	tb, err := f.reporter.TrialBalance(ctx, day("2026-02-28"), reports.ModePresentation, "")
	require.NoError(t, err)
	require.Len(t, tb.Blocks, 1)
	require.NotNil(t, tb.Coverage)
	assert.Equal(t, []string{"GBP"}, tb.Coverage.Missing)

	b := tb.Blocks[0]
	assert.Equal(t, "USD", b.Currency)

	// GBP drops out of both the debit and the credit side, so the converted
	// block still balances.
	assert.True(t, b.TotalDebit.Equal(b.TotalCredit))
	assert.True(t, b.TotalDebit.Equal(decimal.RequireFromString("1220")))

	revenue := findRow(b.Rows, "4010")
	require.NotNil(t, revenue)
	assert.True(t, revenue.Credit.Equal(decimal.RequireFromString("1220")))
}

func TestBalanceSheetBalancesWithNetIncome(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	f.putRate(t, "EUR", day("2026-02-01"), fx.RateClosing, "1.10")

	f.revenue(t, "beach-bar", day("2026-02-10"), 1000, "USD", events.MethodCash)
	f.revenue(t, "spa", day("2026-02-11"), 200, "EUR", events.MethodCard)
	f.expense(t, "beach-bar", day("2026-02-12"), 300, "USD", events.MethodCash)

	bs, err := f.reporter.BalanceSheet(ctx, day("2026-02-28"))
	require.NoError(t, err)
	assert.Equal(t, "USD", bs.Currency)

	// Revenue 1000 + 220 converted, expenses 300.
	assert.True(t, bs.NetIncome.Equal(decimal.RequireFromString("920")))

	// Assets: cash 700, card clearing 220.
	assert.True(t, bs.Assets.Total.Equal(decimal.RequireFromString("920")))

	assert.True(t, bs.Assets.Total.Equal(bs.Liabilities.Total.Add(bs.Equity.Total)))
}

func TestIncomeStatementPerZone(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	f.putRate(t, "EUR", day("2026-02-01"), fx.RateAverage, "1.20")

	f.revenue(t, "beach-bar", day("2026-02-10"), 1000, "USD", events.MethodCash)
	f.revenue(t, "spa", day("2026-02-11"), 200, "EUR", events.MethodCard)
	f.expense(t, "beach-bar", day("2026-02-12"), 200, "USD", events.MethodCash)
	// Outside the reporting period.
	f.revenue(t, "beach-bar", day("2026-03-05"), 9999, "USD", events.MethodCash)

	is, err := f.reporter.IncomeStatement(ctx, day("2026-02-01"), day("2026-02-28"))
	require.NoError(t, err)
	assert.Equal(t, "USD", is.Currency)

	require.Len(t, is.Zones, 2)
	bar, spa := is.Zones[0], is.Zones[1]
	assert.Equal(t, "beach-bar", bar.ZoneCode)
	assert.True(t, bar.Revenue.Equal(decimal.NewFromInt(1000)))
	assert.True(t, bar.Expenses.Equal(decimal.NewFromInt(200)))
	assert.True(t, bar.Net.Equal(decimal.NewFromInt(800)))

	assert.Equal(t, "spa", spa.ZoneCode)
	assert.True(t, spa.Revenue.Equal(decimal.RequireFromString("240")))
	assert.True(t, spa.Net.Equal(decimal.RequireFromString("240")))

	assert.True(t, is.TotalRevenue.Equal(decimal.RequireFromString("1240")))
	assert.True(t, is.TotalExpenses.Equal(decimal.NewFromInt(200)))
	assert.True(t, is.NetIncome.Equal(decimal.RequireFromString("1040")))
}

func TestIncomeStatementFlagsMissingRates(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	f.revenue(t, "beach-bar", day("2026-02-10"), 1000, "USD", events.MethodCash)
	f.revenue(t, "beach-bar", day("2026-02-11"), 100, "GBP", events.MethodCard)

	is, err := f.reporter.IncomeStatement(ctx, day("2026-02-01"), day("2026-02-28"))
	require.NoError(t, err)

	require.NotNil(t, is.Coverage)
	assert.Equal(t, []string{"GBP"}, is.Coverage.Missing)
	assert.True(t, is.TotalRevenue.Equal(decimal.NewFromInt(1000)), "uncovered revenue is excluded, not approximated")
}
