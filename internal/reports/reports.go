// Package reports builds read-only views over the ledger: as-of account
// balances, trial balances, balance sheet, and income statement. Reports that
// convert into the presentation currency carry a rate-coverage diagnosis;
// currencies with no usable rate are excluded from converted totals and
// listed as missing, never approximated.
package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/resortledger/internal/coa"
	"github.com/example/resortledger/internal/fx"
	"github.com/example/resortledger/internal/ledger"
	"github.com/example/resortledger/internal/store"
)

// Reporter answers balance queries against a store.
type Reporter struct {
	store        store.Store
	presentation string
}

// NewReporter creates a reporter. presentation is the currency converted
// totals are expressed in.
func NewReporter(st store.Store, presentation string) *Reporter {
	return &Reporter{store: st, presentation: presentation}
}

// AccountBalance is an as-of balance for one account, signed by the
// account's balance nature.
type AccountBalance struct {
	Code     string            `json:"code"`
	Name     string            `json:"name"`
	Type     coa.AccountType   `json:"type"`
	Nature   coa.BalanceNature `json:"nature"`
	Currency string            `json:"currency,omitempty"`
	AsOf     time.Time         `json:"as_of"`
	Balance  decimal.Decimal   `json:"balance"`
}

// AccountBalanceAsOf computes one account's balance from the posted line log
// up to a date. With a currency filter only lines in that currency count, and
// the opening balance is included only when it is the account's own currency.
func (r *Reporter) AccountBalanceAsOf(ctx context.Context, code string, asOf time.Time, currency string) (*AccountBalance, error) {
	var out *AccountBalance
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		account, err := tx.GetAccount(ctx, code)
		if err != nil {
			return err
		}

		debit, credit, err := tx.SumLines(ctx, ledger.LineQuery{
			AccountCode: code,
			AsOf:        asOf,
			Currency:    currency,
		})
		if err != nil {
			return err
		}

		balance := account.SignedDelta(debit, credit)
		if currency == "" || currency == account.Currency {
			balance = balance.Add(account.OpeningBalance)
		}
		out = &AccountBalance{
			Code:     account.Code,
			Name:     account.Name,
			Type:     account.Type,
			Nature:   account.Nature,
			Currency: currency,
			AsOf:     asOf,
			Balance:  balance,
		}
		return nil
	})
	return out, err
}

// PresentationBalance converts an account's per-currency balances into the
// presentation currency at closing rates. Each currency's converted debit and
// credit totals are folded into one signed figure through the account's
// nature, so the result reads the way the account does: positive is a normal
// balance, negative is contra. Callers that need the two sides separately use
// TrialBalance in presentation mode. Currencies without a rate are left out
// of the total and flagged in the coverage.
func (r *Reporter) PresentationBalance(ctx context.Context, code string, asOf time.Time) (decimal.Decimal, *fx.Coverage, error) {
	total := decimal.Zero
	var cov *fx.Coverage
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		account, err := tx.GetAccount(ctx, code)
		if err != nil {
			return err
		}
		rates := fx.NewService(tx, r.presentation)

		sums, err := tx.SumLinesByCurrency(ctx, ledger.LineQuery{AccountCode: code, AsOf: asOf})
		if err != nil {
			return err
		}

		used := make([]string, 0, len(sums)+1)
		for _, s := range sums {
			used = append(used, s.Currency)
		}
		if !account.OpeningBalance.IsZero() {
			used = append(used, account.Currency)
		}
		cov, err = rates.DiagnoseCoverage(ctx, used, asOf, fx.RateClosing)
		if err != nil {
			return err
		}
		missing := make(map[string]bool, len(cov.Missing))
		for _, cur := range cov.Missing {
			missing[cur] = true
		}

		total = decimal.Zero
		for _, s := range sums {
			if missing[s.Currency] {
				continue
			}
			converted, err := rates.Convert(ctx, account.SignedDelta(s.Debit, s.Credit),
				s.Currency, r.presentation, asOf, fx.RateClosing)
			if err != nil {
				return err
			}
			total = total.Add(converted)
		}
		if !account.OpeningBalance.IsZero() && !missing[account.Currency] {
			converted, err := rates.Convert(ctx, account.OpeningBalance,
				account.Currency, r.presentation, asOf, fx.RateClosing)
			if err != nil {
				return err
			}
			total = total.Add(converted)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, nil, err
	}
	return total, cov, nil
}
