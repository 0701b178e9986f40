package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/resortledger/internal/coa"
	"github.com/example/resortledger/internal/fx"
	"github.com/example/resortledger/internal/ledger"
	"github.com/example/resortledger/internal/store"
)

// TrialBalanceMode selects how a multi-currency ledger is presented.
type TrialBalanceMode string

const (
	// ModePerCurrency emits one balanced block per transaction currency.
	ModePerCurrency TrialBalanceMode = "per_currency"
	// ModeSingle restricts the trial balance to one currency's lines.
	ModeSingle TrialBalanceMode = "single_currency"
	// ModePresentation converts everything into the presentation currency
	// at closing rates, with a coverage diagnosis.
	ModePresentation TrialBalanceMode = "presentation"
)

// TrialBalanceRow is one account's net position, placed in the debit or
// credit column by sign and nature.
type TrialBalanceRow struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

// TrialBalanceBlock is the trial balance of one currency.
type TrialBalanceBlock struct {
	Currency    string            `json:"currency"`
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
}

// TrialBalance lists every account's net position as of a date.
type TrialBalance struct {
	AsOf     time.Time           `json:"as_of"`
	Mode     TrialBalanceMode    `json:"mode"`
	Blocks   []TrialBalanceBlock `json:"blocks"`
	Coverage *fx.Coverage        `json:"coverage,omitempty"`
}

func natureRow(account *coa.Account, net decimal.Decimal) TrialBalanceRow {
	row := TrialBalanceRow{Code: account.Code, Name: account.Name}
	debitSide := net
	if account.Nature == coa.CreditNature {
		debitSide = net.Neg()
	}
	if debitSide.IsNegative() {
		row.Credit = debitSide.Neg()
	} else {
		row.Debit = debitSide
	}
	return row
}

// TrialBalance builds the trial balance as of a date. currency is only used
// in ModeSingle.
func (r *Reporter) TrialBalance(ctx context.Context, asOf time.Time, mode TrialBalanceMode, currency string) (*TrialBalance, error) {
	if mode == ModeSingle && currency == "" {
		return nil, fmt.Errorf("single-currency trial balance requires a currency")
	}

	tb := &TrialBalance{AsOf: asOf, Mode: mode}
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		accounts, err := tx.ListAccounts(ctx, coa.AccountFilter{})
		if err != nil {
			return err
		}

		switch mode {
		case ModePerCurrency, ModeSingle:
			return r.currencyBlocks(ctx, tx, tb, accounts, asOf, currency)
		case ModePresentation:
			return r.presentationBlock(ctx, tx, tb, accounts, asOf)
		default:
			return fmt.Errorf("unknown trial balance mode %q", mode)
		}
	})
	if err != nil {
		return nil, err
	}
	return tb, nil
}

func (r *Reporter) currencyBlocks(ctx context.Context, tx store.Tx, tb *TrialBalance, accounts []*coa.Account, asOf time.Time, only string) error {
	blocks := make(map[string]*TrialBalanceBlock)
	block := func(cur string) *TrialBalanceBlock {
		b, ok := blocks[cur]
		if !ok {
			b = &TrialBalanceBlock{Currency: cur}
			blocks[cur] = b
		}
		return b
	}

	for _, account := range accounts {
		sums, err := tx.SumLinesByCurrency(ctx, ledger.LineQuery{AccountCode: account.Code, AsOf: asOf})
		if err != nil {
			return err
		}
		perCurrency := make(map[string]decimal.Decimal, len(sums))
		for _, s := range sums {
			perCurrency[s.Currency] = account.SignedDelta(s.Debit, s.Credit)
		}
		// The opening balance lives in the account's own currency.
		if !account.OpeningBalance.IsZero() {
			perCurrency[account.Currency] = perCurrency[account.Currency].Add(account.OpeningBalance)
		}

		for cur, net := range perCurrency {
			if only != "" && cur != only {
				continue
			}
			if net.IsZero() {
				continue
			}
			b := block(cur)
			row := natureRow(account, net)
			b.Rows = append(b.Rows, row)
			b.TotalDebit = b.TotalDebit.Add(row.Debit)
			b.TotalCredit = b.TotalCredit.Add(row.Credit)
		}
	}

	currencies := make([]string, 0, len(blocks))
	for cur := range blocks {
		currencies = append(currencies, cur)
	}
	sort.Strings(currencies)
	for _, cur := range currencies {
		b := blocks[cur]
		sort.Slice(b.Rows, func(i, j int) bool { return b.Rows[i].Code < b.Rows[j].Code })
		tb.Blocks = append(tb.Blocks, *b)
	}
	return nil
}

func (r *Reporter) presentationBlock(ctx context.Context, tx store.Tx, tb *TrialBalance, accounts []*coa.Account, asOf time.Time) error {
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
	tb.Coverage = cov
	missing := make(map[string]bool, len(cov.Missing))
	for _, cur := range cov.Missing {
		missing[cur] = true
	}

	b := TrialBalanceBlock{Currency: r.presentation}
	for _, account := range accounts {
		sums, err := tx.SumLinesByCurrency(ctx, ledger.LineQuery{AccountCode: account.Code, AsOf: asOf})
		if err != nil {
			return err
		}

		net := decimal.Zero
		if !account.OpeningBalance.IsZero() && !missing[account.Currency] {
			converted, err := rates.Convert(ctx, account.OpeningBalance,
				account.Currency, r.presentation, asOf, fx.RateClosing)
			if err != nil {
				return err
			}
			net = net.Add(converted)
		}
		for _, s := range sums {
			if missing[s.Currency] {
				continue
			}
			converted, err := rates.Convert(ctx, account.SignedDelta(s.Debit, s.Credit),
				s.Currency, r.presentation, asOf, fx.RateClosing)
			if err != nil {
				return err
			}
			net = net.Add(converted)
		}

		if net.IsZero() {
			continue
		}
		row := natureRow(account, net)
		b.Rows = append(b.Rows, row)
		b.TotalDebit = b.TotalDebit.Add(row.Debit)
		b.TotalCredit = b.TotalCredit.Add(row.Credit)
	}
	sort.Slice(b.Rows, func(i, j int) bool { return b.Rows[i].Code < b.Rows[j].Code })
	tb.Blocks = append(tb.Blocks, b)
	return nil
}
