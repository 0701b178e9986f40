package treasury

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TxKind is a cash-transaction type. The sign convention per kind is a
// closed table: see Increases.
type TxKind string

// Treasury pool kinds.
const (
	TxRevenue          TxKind = "revenue"
	TxExpense          TxKind = "expense"
	TxRevenueReversal  TxKind = "revenue_reversal"
	TxExpenseReversal  TxKind = "expense_reversal"
	TxBankDeposit      TxKind = "bank_deposit"
	TxBankWithdrawal   TxKind = "bank_withdrawal"
	TxExchangeIn       TxKind = "exchange_in"
	TxExchangeOut      TxKind = "exchange_out"
	TxPartnerPayment   TxKind = "partner_payment"
	TxPartnerPayout    TxKind = "partner_payout"
	TxSupplierPayment  TxKind = "supplier_payment"
	TxOpening          TxKind = "opening"
	TxAdjustment       TxKind = "adjustment"
)

// Bank pool kinds.
const (
	BankDeposit     TxKind = "deposit"
	BankWithdrawal  TxKind = "withdrawal"
	BankTransferIn  TxKind = "transfer_in"
	BankTransferOut TxKind = "transfer_out"
	BankFee         TxKind = "fee"
	BankInterest    TxKind = "interest"
)

// treasuryIncreases and bankIncreases pin the sign of every transaction
// kind. Anything not listed decreases its pool.
var treasuryIncreases = map[TxKind]bool{
	TxRevenue:         true,
	TxPartnerPayment:  true,
	TxBankWithdrawal:  true,
	TxExchangeIn:      true,
	TxExpenseReversal: true,
}

var bankIncreases = map[TxKind]bool{
	BankDeposit:    true,
	BankTransferIn: true,
	BankInterest:   true,
}

var treasuryKinds = map[TxKind]bool{
	TxRevenue: true, TxExpense: true, TxRevenueReversal: true,
	TxExpenseReversal: true, TxBankDeposit: true, TxBankWithdrawal: true,
	TxExchangeIn: true, TxExchangeOut: true, TxPartnerPayment: true,
	TxPartnerPayout: true, TxSupplierPayment: true, TxOpening: true,
	TxAdjustment: true,
}

var bankKinds = map[TxKind]bool{
	BankDeposit: true, BankWithdrawal: true, BankTransferIn: true,
	BankTransferOut: true, BankFee: true, BankInterest: true,
}

// ValidKind reports whether kind belongs to the treasury pool table.
func ValidKind(kind TxKind) bool { return treasuryKinds[kind] }

// ValidBankKind reports whether kind belongs to the bank pool table.
func ValidBankKind(kind TxKind) bool { return bankKinds[kind] }

// Increases reports whether kind grows a treasury pool.
func Increases(kind TxKind) bool { return treasuryIncreases[kind] }

// IncreasesBank reports whether kind grows a bank pool.
func IncreasesBank(kind TxKind) bool { return bankIncreases[kind] }

// ReversalKind returns the kind that undoes a treasury movement of the given
// kind: a decreasing kind for increases and vice versa, so a replayed log
// still nets to the right balance.
func ReversalKind(kind TxKind) TxKind {
	if Increases(kind) {
		return TxRevenueReversal
	}
	return TxExpenseReversal
}

// BankReversalKind is ReversalKind for bank pools.
func BankReversalKind(kind TxKind) TxKind {
	if IncreasesBank(kind) {
		return BankWithdrawal
	}
	return BankDeposit
}

// Pool is the running cash position of one currency. Balance is cached and
// reconstructable from the transaction log.
type Pool struct {
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BankAccount is one bank cash pool, seeded from an opening balance.
type BankAccount struct {
	ID             int64           `json:"id"`
	BankName       string          `json:"bank_name"`
	Number         string          `json:"number"`
	Name           string          `json:"name"`
	IBAN           string          `json:"iban,omitempty"`
	SwiftCode      string          `json:"swift_code,omitempty"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Balance        decimal.Decimal `json:"balance"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
}

// PoolKind discriminates the two pool families in the shared cash log.
type PoolKind string

const (
	PoolTreasury PoolKind = "treasury"
	PoolBank     PoolKind = "bank"
)

// CashTransaction is one append-only cash log row. The log is the source of
// truth for pool balances.
type CashTransaction struct {
	ID            int64           `json:"id"`
	Pool          PoolKind        `json:"pool"`
	Currency      string          `json:"currency,omitempty"`
	BankAccountID int64           `json:"bank_account_id,omitempty"`
	Kind          TxKind          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	OriginKind    string          `json:"origin_kind,omitempty"`
	OriginID      int64           `json:"origin_id,omitempty"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ErrPoolNotFound is returned for a currency or bank account with no pool.
var ErrPoolNotFound = errors.New("cash pool not found")

// CashTxFilter narrows ListCashTransactions. Zero-value fields are ignored.
type CashTxFilter struct {
	Pool          PoolKind
	Currency      string
	BankAccountID int64
	OriginKind    string
	OriginID      int64
}

// Store is the persistence contract for cash pools and their log.
type Store interface {
	GetPool(ctx context.Context, currency string) (*Pool, error)
	// EnsurePool returns the pool for a currency, creating it with a zero
	// balance on first use.
	EnsurePool(ctx context.Context, currency string) (*Pool, error)
	ListPools(ctx context.Context) ([]*Pool, error)
	SetPoolBalance(ctx context.Context, currency string, balance decimal.Decimal) error

	GetBankAccount(ctx context.Context, id int64) (*BankAccount, error)
	ListBankAccounts(ctx context.Context) ([]*BankAccount, error)
	CreateBankAccount(ctx context.Context, account *BankAccount) error
	SetBankBalance(ctx context.Context, id int64, balance decimal.Decimal) error

	AppendCashTransaction(ctx context.Context, tx *CashTransaction) error
	ListCashTransactions(ctx context.Context, filter CashTxFilter) ([]*CashTransaction, error)
}

// Service applies cash movements and rebuilds pool balances.
type Service struct {
	store Store
}

// NewService creates a treasury service bound to a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Movement describes one cash movement to apply.
type Movement struct {
	Kind        TxKind
	Amount      decimal.Decimal
	Description string
	OriginKind  string
	OriginID    int64
	CreatedBy   string
}

// ApplyTreasuryMovement appends a cash transaction to a currency's treasury
// pool and updates its running balance with the fixed sign table. The pool is
// created on first use.
func (s *Service) ApplyTreasuryMovement(ctx context.Context, currency string, m Movement) (*CashTransaction, error) {
	if m.Amount.IsNegative() {
		return nil, fmt.Errorf("movement amount must not be negative")
	}
	if !ValidKind(m.Kind) {
		return nil, fmt.Errorf("unknown treasury transaction kind %q", m.Kind)
	}

	pool, err := s.store.EnsurePool(ctx, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to load treasury pool %s: %w", currency, err)
	}

	balance := pool.Balance
	if Increases(m.Kind) {
		balance = balance.Add(m.Amount)
	} else {
		balance = balance.Sub(m.Amount)
	}
	if err := s.store.SetPoolBalance(ctx, currency, balance); err != nil {
		return nil, fmt.Errorf("failed to update treasury pool %s: %w", currency, err)
	}

	tx := &CashTransaction{
		Pool:        PoolTreasury,
		Currency:    currency,
		Kind:        m.Kind,
		Amount:      m.Amount,
		Description: m.Description,
		OriginKind:  m.OriginKind,
		OriginID:    m.OriginID,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.AppendCashTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to append cash transaction: %w", err)
	}
	return tx, nil
}

// ApplyBankMovement appends a cash transaction to a bank account's log and
// updates its running balance with the bank sign table.
func (s *Service) ApplyBankMovement(ctx context.Context, bankAccountID int64, m Movement) (*CashTransaction, error) {
	if m.Amount.IsNegative() {
		return nil, fmt.Errorf("movement amount must not be negative")
	}
	if !ValidBankKind(m.Kind) {
		return nil, fmt.Errorf("unknown bank transaction kind %q", m.Kind)
	}

	account, err := s.store.GetBankAccount(ctx, bankAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bank account %d: %w", bankAccountID, err)
	}

	balance := account.Balance
	if IncreasesBank(m.Kind) {
		balance = balance.Add(m.Amount)
	} else {
		balance = balance.Sub(m.Amount)
	}
	if err := s.store.SetBankBalance(ctx, bankAccountID, balance); err != nil {
		return nil, fmt.Errorf("failed to update bank account %d: %w", bankAccountID, err)
	}

	tx := &CashTransaction{
		Pool:          PoolBank,
		Currency:      account.Currency,
		BankAccountID: bankAccountID,
		Kind:          m.Kind,
		Amount:        m.Amount,
		Description:   m.Description,
		OriginKind:    m.OriginKind,
		OriginID:      m.OriginID,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.AppendCashTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to append cash transaction: %w", err)
	}
	return tx, nil
}

// ReverseMovement appends the compensating movement for an earlier cash
// transaction. The original row stays in the log; the pair nets to zero.
func (s *Service) ReverseMovement(ctx context.Context, orig *CashTransaction, createdBy string) (*CashTransaction, error) {
	m := Movement{
		Amount:      orig.Amount,
		Description: fmt.Sprintf("reversal of cash transaction %d", orig.ID),
		OriginKind:  orig.OriginKind,
		OriginID:    orig.OriginID,
		CreatedBy:   createdBy,
	}
	if orig.Pool == PoolBank {
		m.Kind = BankReversalKind(orig.Kind)
		return s.ApplyBankMovement(ctx, orig.BankAccountID, m)
	}
	m.Kind = ReversalKind(orig.Kind)
	return s.ApplyTreasuryMovement(ctx, orig.Currency, m)
}

// RebuildTreasuryBalance replays a treasury pool's transaction log and stores
// the recomputed balance, returning it.
func (s *Service) RebuildTreasuryBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	if _, err := s.store.GetPool(ctx, currency); err != nil {
		return decimal.Zero, err
	}

	txs, err := s.store.ListCashTransactions(ctx, CashTxFilter{Pool: PoolTreasury, Currency: currency})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list cash transactions: %w", err)
	}

	balance := decimal.Zero
	for _, tx := range txs {
		if Increases(tx.Kind) {
			balance = balance.Add(tx.Amount)
		} else {
			balance = balance.Sub(tx.Amount)
		}
	}
	if err := s.store.SetPoolBalance(ctx, currency, balance); err != nil {
		return decimal.Zero, fmt.Errorf("failed to store rebuilt balance: %w", err)
	}
	return balance, nil
}

// RebuildBankBalance replays a bank account's transaction log on top of its
// opening balance and stores the recomputed value, returning it.
func (s *Service) RebuildBankBalance(ctx context.Context, bankAccountID int64) (decimal.Decimal, error) {
	account, err := s.store.GetBankAccount(ctx, bankAccountID)
	if err != nil {
		return decimal.Zero, err
	}

	txs, err := s.store.ListCashTransactions(ctx, CashTxFilter{Pool: PoolBank, BankAccountID: bankAccountID})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list cash transactions: %w", err)
	}

	balance := account.OpeningBalance
	for _, tx := range txs {
		if IncreasesBank(tx.Kind) {
			balance = balance.Add(tx.Amount)
		} else {
			balance = balance.Sub(tx.Amount)
		}
	}
	if err := s.store.SetBankBalance(ctx, bankAccountID, balance); err != nil {
		return decimal.Zero, fmt.Errorf("failed to store rebuilt balance: %w", err)
	}
	return balance, nil
}
