package subledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OwnerKind identifies which sub-ledger an entry belongs to.
type OwnerKind string

const (
	OwnerPartner  OwnerKind = "partner"
	OwnerSupplier OwnerKind = "supplier"
)

// EntryKind is a sub-ledger entry type.
type EntryKind string

const (
	EntryRevenueShare EntryKind = "revenue_share"
	EntryExpenseShare EntryKind = "expense_share"
	EntryBill         EntryKind = "bill"
	EntryReturn       EntryKind = "return"
	EntryPayment      EntryKind = "payment"
	EntryReversal     EntryKind = "reversal"
)

// Partnership is a revenue-sharing agreement with one partner on one zone.
// ExpensePercentage, when set, overrides Percentage for expense shares.
type Partnership struct {
	ID                int64           `json:"id"`
	PartnerName       string          `json:"partner_name"`
	ZoneCode          string          `json:"zone_code"`
	Percentage        decimal.Decimal `json:"percentage"`
	ExpensePercentage decimal.Decimal `json:"expense_percentage"`
	ShareExpenses     bool            `json:"share_expenses"`
	Active            bool            `json:"active"`
	CreatedAt         time.Time       `json:"created_at"`
}

// expenseRate returns the percentage used for expense shares.
func (p *Partnership) expenseRate() decimal.Decimal {
	if !p.ExpensePercentage.IsZero() {
		return p.ExpensePercentage
	}
	return p.Percentage
}

// Supplier is one supplier with a payable sub-ledger. Code is a short
// reference used on bills; Currency is the supplier's billing currency.
type Supplier struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is one append-only sub-ledger row. Balance is the owner's running
// balance in the entry's currency after the entry is applied. Debits grow
// what we owe the owner, credits reduce it.
type Entry struct {
	ID          int64           `json:"id"`
	Owner       OwnerKind       `json:"owner"`
	OwnerID     int64           `json:"owner_id"`
	Kind        EntryKind       `json:"kind"`
	Currency    string          `json:"currency"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
	Description string          `json:"description"`
	OriginKind  string          `json:"origin_kind,omitempty"`
	OriginID    int64           `json:"origin_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ErrOwnerNotFound is returned for an unknown partnership or supplier.
var ErrOwnerNotFound = errors.New("sub-ledger owner not found")

// PartnershipFilter narrows ListPartnerships. Zero-value fields are ignored.
type PartnershipFilter struct {
	ZoneCode   string
	ActiveOnly bool
}

// EntryFilter narrows ListSubEntries. Zero-value fields are ignored.
type EntryFilter struct {
	Owner      OwnerKind
	OwnerID    int64
	Currency   string
	OriginKind string
	OriginID   int64
}

// Store is the persistence contract for partnerships, suppliers, and their
// sub-ledger entries with cached per-currency running balances.
type Store interface {
	GetPartnership(ctx context.Context, id int64) (*Partnership, error)
	ListPartnerships(ctx context.Context, filter PartnershipFilter) ([]*Partnership, error)
	CreatePartnership(ctx context.Context, p *Partnership) error

	GetSupplier(ctx context.Context, id int64) (*Supplier, error)
	ListSuppliers(ctx context.Context) ([]*Supplier, error)
	CreateSupplier(ctx context.Context, s *Supplier) error

	// OwnerBalance returns the cached running balance for an owner in one
	// currency. Unknown (owner, currency) pairs return zero, not an error.
	OwnerBalance(ctx context.Context, owner OwnerKind, ownerID int64, currency string) (decimal.Decimal, error)
	SetOwnerBalance(ctx context.Context, owner OwnerKind, ownerID int64, currency string, balance decimal.Decimal) error

	AppendSubEntry(ctx context.Context, e *Entry) error
	ListSubEntries(ctx context.Context, filter EntryFilter) ([]*Entry, error)
	DeleteSubEntries(ctx context.Context, originKind string, originID int64) ([]*Entry, error)
}

// Share is one computed partner share.
type Share struct {
	PartnershipID int64
	PartnerName   string
	Percentage    decimal.Decimal
	Amount        decimal.Decimal
}

// Distributor computes and records partner shares and supplier movements.
type Distributor struct {
	store Store
}

// NewDistributor creates a distributor bound to a store.
func NewDistributor(store Store) *Distributor {
	return &Distributor{store: store}
}

// AppendEntry records one sub-ledger entry and advances the owner's cached
// running balance in the entry's currency. The stored entry carries the
// balance after it is applied.
func (d *Distributor) AppendEntry(ctx context.Context, e *Entry) error {
	if e.Debit.IsNegative() || e.Credit.IsNegative() {
		return fmt.Errorf("sub-ledger amounts must not be negative")
	}

	balance, err := d.store.OwnerBalance(ctx, e.Owner, e.OwnerID, e.Currency)
	if err != nil {
		return fmt.Errorf("failed to load %s %d balance: %w", e.Owner, e.OwnerID, err)
	}
	balance = balance.Add(e.Debit).Sub(e.Credit)
	e.Balance = balance
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	if err := d.store.AppendSubEntry(ctx, e); err != nil {
		return fmt.Errorf("failed to append sub-ledger entry: %w", err)
	}
	if err := d.store.SetOwnerBalance(ctx, e.Owner, e.OwnerID, e.Currency, balance); err != nil {
		return fmt.Errorf("failed to update %s %d balance: %w", e.Owner, e.OwnerID, err)
	}
	return nil
}

// DistributeRevenueShares debits each active partnership on the zone with
// its percentage of a revenue amount, growing what the partner is owed.
// Returns the computed shares; an empty slice when the zone has no active
// partnerships.
func (d *Distributor) DistributeRevenueShares(ctx context.Context, zoneCode string, amount decimal.Decimal, currency, originKind string, originID int64, description string) ([]Share, error) {
	partnerships, err := d.store.ListPartnerships(ctx, PartnershipFilter{ZoneCode: zoneCode, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list partnerships for zone %s: %w", zoneCode, err)
	}

	shares := make([]Share, 0, len(partnerships))
	for _, p := range partnerships {
		share := amount.Mul(p.Percentage).Div(decimal.NewFromInt(100))
		entry := &Entry{
			Owner:       OwnerPartner,
			OwnerID:     p.ID,
			Kind:        EntryRevenueShare,
			Currency:    currency,
			Debit:       share,
			Description: description,
			OriginKind:  originKind,
			OriginID:    originID,
		}
		if err := d.AppendEntry(ctx, entry); err != nil {
			return nil, err
		}
		shares = append(shares, Share{
			PartnershipID: p.ID,
			PartnerName:   p.PartnerName,
			Percentage:    p.Percentage,
			Amount:        share,
		})
	}
	return shares, nil
}

// DistributeExpenseShares credits each active expense-sharing partnership on
// the zone with its percentage of an expense amount, reducing what the
// partner is owed. Partnerships with ShareExpenses unset are skipped.
func (d *Distributor) DistributeExpenseShares(ctx context.Context, zoneCode string, amount decimal.Decimal, currency, originKind string, originID int64, description string) ([]Share, error) {
	partnerships, err := d.store.ListPartnerships(ctx, PartnershipFilter{ZoneCode: zoneCode, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list partnerships for zone %s: %w", zoneCode, err)
	}

	shares := make([]Share, 0, len(partnerships))
	for _, p := range partnerships {
		if !p.ShareExpenses {
			continue
		}
		rate := p.expenseRate()
		share := amount.Mul(rate).Div(decimal.NewFromInt(100))
		entry := &Entry{
			Owner:       OwnerPartner,
			OwnerID:     p.ID,
			Kind:        EntryExpenseShare,
			Currency:    currency,
			Credit:      share,
			Description: description,
			OriginKind:  originKind,
			OriginID:    originID,
		}
		if err := d.AppendEntry(ctx, entry); err != nil {
			return nil, err
		}
		shares = append(shares, Share{
			PartnershipID: p.ID,
			PartnerName:   p.PartnerName,
			Percentage:    rate,
			Amount:        share,
		})
	}
	return shares, nil
}

// RemoveByOrigin deletes the sub-ledger entries written for one origin record
// and backs their amounts out of the cached balances. Used by reversal.
func (d *Distributor) RemoveByOrigin(ctx context.Context, originKind string, originID int64) error {
	removed, err := d.store.DeleteSubEntries(ctx, originKind, originID)
	if err != nil {
		return fmt.Errorf("failed to delete sub-ledger entries: %w", err)
	}
	for _, e := range removed {
		balance, err := d.store.OwnerBalance(ctx, e.Owner, e.OwnerID, e.Currency)
		if err != nil {
			return fmt.Errorf("failed to load %s %d balance: %w", e.Owner, e.OwnerID, err)
		}
		balance = balance.Sub(e.Debit).Add(e.Credit)
		if err := d.store.SetOwnerBalance(ctx, e.Owner, e.OwnerID, e.Currency, balance); err != nil {
			return fmt.Errorf("failed to update %s %d balance: %w", e.Owner, e.OwnerID, err)
		}
	}
	return nil
}

// RebuildBalances replays every sub-ledger entry in insertion order and
// rewrites the cached per-currency balances, including the balance column on
// each entry. Returns the number of entries replayed.
func (d *Distributor) RebuildBalances(ctx context.Context) (int, error) {
	entries, err := d.store.ListSubEntries(ctx, EntryFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list sub-ledger entries: %w", err)
	}

	type key struct {
		owner    OwnerKind
		ownerID  int64
		currency string
	}
	balances := make(map[key]decimal.Decimal)
	for _, e := range entries {
		k := key{e.Owner, e.OwnerID, e.Currency}
		balances[k] = balances[k].Add(e.Debit).Sub(e.Credit)
		e.Balance = balances[k]
	}
	for k, balance := range balances {
		if err := d.store.SetOwnerBalance(ctx, k.owner, k.ownerID, k.currency, balance); err != nil {
			return 0, fmt.Errorf("failed to store rebuilt balance: %w", err)
		}
	}
	return len(entries), nil
}
