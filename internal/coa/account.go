package coa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies an account within the chart of accounts.
type AccountType string

const (
	TypeAsset     AccountType = "asset"
	TypeLiability AccountType = "liability"
	TypeEquity    AccountType = "equity"
	TypeRevenue   AccountType = "revenue"
	TypeExpense   AccountType = "expense"
	TypeCost      AccountType = "cost"
)

// BalanceNature is the direction in which an account's normal balance grows.
type BalanceNature string

const (
	DebitNature  BalanceNature = "debit"
	CreditNature BalanceNature = "credit"
)

// ErrNotFound is returned when an account code does not exist in the chart.
var ErrNotFound = errors.New("account not found")

// ErrDuplicateCode is returned when creating an account whose code is taken.
var ErrDuplicateCode = errors.New("account code already exists")

// Account is a node in the chart of accounts. CurrentBalance is a cached
// value derived from posted journal lines; the line log is the source of
// truth and the cache can always be rebuilt from it.
type Account struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	ParentCode     string          `json:"parent_code,omitempty"`
	Level          int             `json:"level"`
	Nature         BalanceNature   `json:"nature"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SignedDelta orients a (debit, credit) pair by the account's balance nature:
// positive when the movement grows the account's normal balance.
func (a *Account) SignedDelta(debit, credit decimal.Decimal) decimal.Decimal {
	if a.Nature == DebitNature {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// AccountFilter narrows ListAccounts results.
type AccountFilter struct {
	Type       AccountType
	ActiveOnly bool
}

// AccountStore is the persistence contract for the chart of accounts.
type AccountStore interface {
	GetAccount(ctx context.Context, code string) (*Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error)
	CreateAccount(ctx context.Context, account *Account) error
	// AddToAccountBalance adjusts the cached current balance by delta.
	AddToAccountBalance(ctx context.Context, code string, delta decimal.Decimal) error
	// SetAccountBalance overwrites the cached current balance, used by rebuilds.
	SetAccountBalance(ctx context.Context, code string, balance decimal.Decimal) error
}

// ValidType reports whether t is one of the supported account types.
func ValidType(t AccountType) bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeRevenue, TypeExpense, TypeCost:
		return true
	}
	return false
}

// Validate checks the fields required before an account can be created.
func (a *Account) Validate() error {
	if a.Code == "" {
		return fmt.Errorf("account code is required")
	}
	if a.Name == "" {
		return fmt.Errorf("account name is required")
	}
	if !ValidType(a.Type) {
		return fmt.Errorf("invalid account type: %s", a.Type)
	}
	if a.Nature != DebitNature && a.Nature != CreditNature {
		return fmt.Errorf("invalid balance nature: %s", a.Nature)
	}
	if len(a.Currency) != 3 {
		return fmt.Errorf("currency code must be 3 characters")
	}
	return nil
}

// DefaultNature returns the conventional balance nature for an account type.
func DefaultNature(t AccountType) BalanceNature {
	switch t {
	case TypeAsset, TypeExpense, TypeCost:
		return DebitNature
	default:
		return CreditNature
	}
}
