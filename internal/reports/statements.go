package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/resortledger/internal/coa"
	"github.com/example/resortledger/internal/events"
	"github.com/example/resortledger/internal/fx"
	"github.com/example/resortledger/internal/ledger"
	"github.com/example/resortledger/internal/store"
)

// BalanceSheetRow is one account's converted balance.
type BalanceSheetRow struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

// BalanceSheetSection groups one side of the statement.
type BalanceSheetSection struct {
	Rows  []BalanceSheetRow `json:"rows"`
	Total decimal.Decimal   `json:"total"`
}

// BalanceSheet is the financial position as of a date, in the presentation
// currency. NetIncome carries the life-to-date result into equity.
type BalanceSheet struct {
	AsOf        time.Time           `json:"as_of"`
	Currency    string              `json:"currency"`
	Assets      BalanceSheetSection `json:"assets"`
	Liabilities BalanceSheetSection `json:"liabilities"`
	Equity      BalanceSheetSection `json:"equity"`
	NetIncome   decimal.Decimal     `json:"net_income"`
	Coverage    *fx.Coverage        `json:"coverage,omitempty"`
}

// BalanceSheet builds the statement of position as of a date at closing
// rates. Equity's total includes accumulated net income so the statement
// balances without a formal closing entry.
func (r *Reporter) BalanceSheet(ctx context.Context, asOf time.Time) (*BalanceSheet, error) {
	bs := &BalanceSheet{AsOf: asOf, Currency: r.presentation}
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		accounts, err := tx.ListAccounts(ctx, coa.AccountFilter{})
		if err != nil {
			return err
		}
		rates := fx.NewService(tx, r.presentation)

		used, err := tx.LineCurrencies(ctx, asOf)
		if err != nil {
			return err
		}
		for _, account := range accounts {
			if !account.OpeningBalance.IsZero() {
				used = append(used, account.Currency)
			}
		}
		cov, err := rates.DiagnoseCoverage(ctx, used, asOf, fx.RateClosing)
		if err != nil {
			return err
		}
		bs.Coverage = cov
		missing := make(map[string]bool, len(cov.Missing))
		for _, cur := range cov.Missing {
			missing[cur] = true
		}

		income := decimal.Zero
		for _, account := range accounts {
			net, err := convertedNet(ctx, tx, rates, account, asOf, missing, r.presentation)
			if err != nil {
				return err
			}

			switch account.Type {
			case coa.TypeAsset:
				appendRow(&bs.Assets, account, net)
			case coa.TypeLiability:
				appendRow(&bs.Liabilities, account, net)
			case coa.TypeEquity:
				appendRow(&bs.Equity, account, net)
			case coa.TypeRevenue:
				income = income.Add(net)
			case coa.TypeExpense, coa.TypeCost:
				income = income.Sub(net)
			}
		}
		bs.NetIncome = income
		bs.Equity.Total = bs.Equity.Total.Add(income)

		sortSection(&bs.Assets)
		sortSection(&bs.Liabilities)
		sortSection(&bs.Equity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bs, nil
}

func appendRow(section *BalanceSheetSection, account *coa.Account, net decimal.Decimal) {
	if net.IsZero() {
		return
	}
	section.Rows = append(section.Rows, BalanceSheetRow{
		Code:    account.Code,
		Name:    account.Name,
		Balance: net,
	})
	section.Total = section.Total.Add(net)
}

func sortSection(section *BalanceSheetSection) {
	sort.Slice(section.Rows, func(i, j int) bool { return section.Rows[i].Code < section.Rows[j].Code })
}

// convertedNet is an account's nature-signed net position converted to the
// presentation currency, skipping currencies flagged missing.
func convertedNet(ctx context.Context, tx store.Tx, rates *fx.Service, account *coa.Account, asOf time.Time, missing map[string]bool, presentation string) (decimal.Decimal, error) {
	sums, err := tx.SumLinesByCurrency(ctx, ledger.LineQuery{AccountCode: account.Code, AsOf: asOf})
	if err != nil {
		return decimal.Zero, err
	}

	net := decimal.Zero
	if !account.OpeningBalance.IsZero() && !missing[account.Currency] {
		converted, err := rates.Convert(ctx, account.OpeningBalance,
			account.Currency, presentation, asOf, fx.RateClosing)
		if err != nil {
			return decimal.Zero, err
		}
		net = net.Add(converted)
	}
	for _, s := range sums {
		if missing[s.Currency] {
			continue
		}
		converted, err := rates.Convert(ctx, account.SignedDelta(s.Debit, s.Credit),
			s.Currency, presentation, asOf, fx.RateClosing)
		if err != nil {
			return decimal.Zero, err
		}
		net = net.Add(converted)
	}
	return net, nil
}

// ZoneIncome is one zone's converted result for a period.
type ZoneIncome struct {
	ZoneCode string          `json:"zone_code"`
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

// IncomeStatement is the period result in the presentation currency, built
// from the event records and converted at average rates.
type IncomeStatement struct {
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Currency      string          `json:"currency"`
	Zones         []ZoneIncome    `json:"zones"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetIncome     decimal.Decimal `json:"net_income"`
	Coverage      *fx.Coverage    `json:"coverage,omitempty"`
}

// IncomeStatement builds the period result per zone. Amounts come from the
// revenue and expense records themselves and convert at average rates as of
// the period end.
func (r *Reporter) IncomeStatement(ctx context.Context, from, to time.Time) (*IncomeStatement, error) {
	is := &IncomeStatement{From: from, To: to, Currency: r.presentation}
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		receipts, err := tx.ListRevenueReceipts(ctx, events.RecordFilter{From: from, To: to})
		if err != nil {
			return err
		}
		expenses, err := tx.ListExpenseRecords(ctx, events.RecordFilter{From: from, To: to})
		if err != nil {
			return err
		}
		rates := fx.NewService(tx, r.presentation)

		var used []string
		for _, rec := range receipts {
			used = append(used, rec.Currency)
		}
		for _, rec := range expenses {
			used = append(used, rec.Currency)
		}
		cov, err := rates.DiagnoseCoverage(ctx, used, to, fx.RateAverage)
		if err != nil {
			return err
		}
		is.Coverage = cov
		missing := make(map[string]bool, len(cov.Missing))
		for _, cur := range cov.Missing {
			missing[cur] = true
		}

		zones := make(map[string]*ZoneIncome)
		zone := func(code string) *ZoneIncome {
			z, ok := zones[code]
			if !ok {
				z = &ZoneIncome{ZoneCode: code}
				zones[code] = z
			}
			return z
		}

		for _, rec := range receipts {
			if missing[rec.Currency] {
				continue
			}
			converted, err := rates.Convert(ctx, rec.Amount, rec.Currency, r.presentation, to, fx.RateAverage)
			if err != nil {
				return err
			}
			z := zone(rec.ZoneCode)
			z.Revenue = z.Revenue.Add(converted)
			is.TotalRevenue = is.TotalRevenue.Add(converted)
		}
		for _, rec := range expenses {
			if missing[rec.Currency] {
				continue
			}
			converted, err := rates.Convert(ctx, rec.Amount, rec.Currency, r.presentation, to, fx.RateAverage)
			if err != nil {
				return err
			}
			z := zone(rec.ZoneCode)
			z.Expenses = z.Expenses.Add(converted)
			is.TotalExpenses = is.TotalExpenses.Add(converted)
		}

		codes := make([]string, 0, len(zones))
		for code := range zones {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			z := zones[code]
			z.Net = z.Revenue.Sub(z.Expenses)
			is.Zones = append(is.Zones, *z)
		}
		is.NetIncome = is.TotalRevenue.Sub(is.TotalExpenses)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return is, nil
}
