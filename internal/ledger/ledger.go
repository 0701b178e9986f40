package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/resortledger/internal/coa"
)

// EntryType tags the business meaning of a journal entry.
type EntryType string

const (
	EntryRevenue    EntryType = "revenue"
	EntryExpense    EntryType = "expense"
	EntryTransfer   EntryType = "transfer"
	EntryAdjustment EntryType = "adjustment"
	EntryOpening    EntryType = "opening"
	EntryClosing    EntryType = "closing"
)

// JournalEntry is one posted double-entry record. Seq is allocated from a
// gapless atomic counter; Number is its human-readable form. An entry is
// persisted together with all of its lines or not at all.
type JournalEntry struct {
	Seq         int64           `json:"seq"`
	Number      string          `json:"number"`
	Date        time.Time       `json:"date"`
	Type        EntryType       `json:"type"`
	Description string          `json:"description"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	ZoneCode    string          `json:"zone_code,omitempty"`
	OriginKind  string          `json:"origin_kind,omitempty"`
	OriginID    int64           `json:"origin_id,omitempty"`
	Posted      bool            `json:"posted"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	Lines       []JournalLine   `json:"lines"`
}

// JournalLine is one side of an entry against a single account. Lines are
// immutable once their parent entry is posted; corrections delete the entry
// and re-post.
type JournalLine struct {
	EntrySeq     int64           `json:"entry_seq"`
	AccountCode  string          `json:"account_code"`
	Description  string          `json:"description"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	Currency     string          `json:"currency"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
}

// EntryNumber formats a sequence number in the ledger's numbering scheme.
func EntryNumber(seq int64) string {
	return fmt.Sprintf("JE-%06d", seq)
}

// ErrEntryNotFound is returned for a sequence number with no posted entry.
var ErrEntryNotFound = errors.New("journal entry not found")

// UnbalancedEntryError reports proposed lines whose debits and credits are
// not exactly equal. Nothing is persisted when it is returned.
type UnbalancedEntryError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("entry does not balance: debits %s != credits %s", e.Debit, e.Credit)
}

// MissingAccountConfigurationError reports a required account code that does
// not exist in the chart of accounts. It is fatal to the operation that
// needed the account; a leg is never silently omitted.
type MissingAccountConfigurationError struct {
	Code string
	Role string
}

func (e *MissingAccountConfigurationError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("account %q (%s) is not configured in the chart of accounts", e.Code, e.Role)
	}
	return fmt.Sprintf("account %q is not configured in the chart of accounts", e.Code)
}

// DuplicateSequenceError indicates two entries were assigned the same
// sequence number. It is unreachable while numbers come from the atomic
// counter; seeing it means a concurrency-control bug.
type DuplicateSequenceError struct {
	Seq int64
}

func (e *DuplicateSequenceError) Error() string {
	return fmt.Sprintf("journal entry sequence %d already assigned", e.Seq)
}

// LineQuery selects journal lines of posted entries for aggregation.
// Zero-value fields are ignored.
type LineQuery struct {
	AccountCode string
	AsOf        time.Time
	Currency    string
}

// CurrencySum is a per-currency debit/credit aggregate.
type CurrencySum struct {
	Currency string
	Debit    decimal.Decimal
	Credit   decimal.Decimal
}

// EntryFilter narrows ListEntries results. OriginID only applies when
// OriginKinds is set.
type EntryFilter struct {
	OriginKinds []string
	OriginID    int64
	Type        EntryType
}

// Store is the persistence contract the ledger core needs: journal entries
// plus the chart of accounts whose cached balances it maintains.
type Store interface {
	coa.AccountStore

	// NextEntrySequence atomically allocates the next gapless sequence
	// number. Implementations must never infer it by scanning existing rows.
	NextEntrySequence(ctx context.Context) (int64, error)
	InsertEntry(ctx context.Context, entry *JournalEntry) error
	GetEntry(ctx context.Context, seq int64) (*JournalEntry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]*JournalEntry, error)
	DeleteEntry(ctx context.Context, seq int64) error

	SumLines(ctx context.Context, q LineQuery) (debit, credit decimal.Decimal, err error)
	SumLinesByCurrency(ctx context.Context, q LineQuery) ([]CurrencySum, error)
	// LineCurrencies lists the distinct currencies appearing in posted lines
	// up to a date.
	LineCurrencies(ctx context.Context, asOf time.Time) ([]string, error)
	// SumTypeByCurrency aggregates posted lines for all accounts of a type
	// within a date range, grouped by currency.
	SumTypeByCurrency(ctx context.Context, accountType coa.AccountType, from, to time.Time) ([]CurrencySum, error)
}

// Service creates, deletes and rebuilds against its store. Construct it over
// a transaction-scoped store to compose with other writes atomically.
type Service struct {
	store Store
}

// NewService creates a ledger core bound to a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// LineInput is one proposed line of a new entry.
type LineInput struct {
	AccountCode  string
	Description  string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	Currency     string
	ExchangeRate decimal.Decimal
}

// CreateEntryInput carries everything needed to post an entry.
type CreateEntryInput struct {
	Date        time.Time
	Type        EntryType
	Description string
	ZoneCode    string
	OriginKind  string
	OriginID    int64
	CreatedBy   string
	Lines       []LineInput
}

// CreateEntry validates the proposed lines, allocates the next sequence
// number and persists the entry as posted, updating the cached balance of
// every account it touches. Exact decimal equality is required between total
// debits and credits; an unbalanced proposal creates nothing.
func (s *Service) CreateEntry(ctx context.Context, in CreateEntryInput) (*JournalEntry, error) {
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("entry requires at least one line")
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	accounts := make([]*coa.Account, len(in.Lines))
	for i, ln := range in.Lines {
		if ln.Debit.IsNegative() || ln.Credit.IsNegative() {
			return nil, fmt.Errorf("line %d: amounts must not be negative", i)
		}
		if !ln.Debit.IsZero() && !ln.Credit.IsZero() {
			return nil, fmt.Errorf("line %d: at most one of debit and credit may be set", i)
		}
		if ln.Debit.IsZero() && ln.Credit.IsZero() {
			return nil, fmt.Errorf("line %d: either debit or credit must be set", i)
		}
		account, err := s.store.GetAccount(ctx, ln.AccountCode)
		if err != nil {
			if errors.Is(err, coa.ErrNotFound) {
				return nil, &MissingAccountConfigurationError{Code: ln.AccountCode}
			}
			return nil, fmt.Errorf("failed to resolve account %s: %w", ln.AccountCode, err)
		}
		if !account.Active {
			return nil, fmt.Errorf("account %s is not active", ln.AccountCode)
		}
		accounts[i] = account
		totalDebit = totalDebit.Add(ln.Debit)
		totalCredit = totalCredit.Add(ln.Credit)
	}

	if !totalDebit.Equal(totalCredit) {
		return nil, &UnbalancedEntryError{Debit: totalDebit, Credit: totalCredit}
	}

	seq, err := s.store.NextEntrySequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate entry sequence: %w", err)
	}

	entry := &JournalEntry{
		Seq:         seq,
		Number:      EntryNumber(seq),
		Date:        in.Date,
		Type:        in.Type,
		Description: in.Description,
		TotalDebit:  totalDebit,
		TotalCredit: totalCredit,
		ZoneCode:    in.ZoneCode,
		OriginKind:  in.OriginKind,
		OriginID:    in.OriginID,
		Posted:      true,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   time.Now().UTC(),
	}
	for _, ln := range in.Lines {
		rate := ln.ExchangeRate
		if rate.IsZero() {
			rate = decimal.NewFromInt(1)
		}
		entry.Lines = append(entry.Lines, JournalLine{
			EntrySeq:     seq,
			AccountCode:  ln.AccountCode,
			Description:  ln.Description,
			Debit:        ln.Debit,
			Credit:       ln.Credit,
			Currency:     ln.Currency,
			ExchangeRate: rate,
		})
	}

	if err := s.store.InsertEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to persist entry: %w", err)
	}

	for i, ln := range in.Lines {
		delta := accounts[i].SignedDelta(ln.Debit, ln.Credit)
		if err := s.store.AddToAccountBalance(ctx, ln.AccountCode, delta); err != nil {
			return nil, fmt.Errorf("failed to update balance of %s: %w", ln.AccountCode, err)
		}
	}

	return entry, nil
}

// DeleteEntry removes an entry and its lines, backing the cached account
// balances out. It does not reverse cash or sub-ledger effects; callers
// issue those reversals themselves.
func (s *Service) DeleteEntry(ctx context.Context, seq int64) error {
	entry, err := s.store.GetEntry(ctx, seq)
	if err != nil {
		return err
	}

	for _, ln := range entry.Lines {
		account, err := s.store.GetAccount(ctx, ln.AccountCode)
		if err != nil {
			return fmt.Errorf("failed to resolve account %s: %w", ln.AccountCode, err)
		}
		delta := account.SignedDelta(ln.Debit, ln.Credit)
		if err := s.store.AddToAccountBalance(ctx, ln.AccountCode, delta.Neg()); err != nil {
			return fmt.Errorf("failed to back out balance of %s: %w", ln.AccountCode, err)
		}
	}

	if err := s.store.DeleteEntry(ctx, seq); err != nil {
		return fmt.Errorf("failed to delete entry %d: %w", seq, err)
	}
	return nil
}

// RebuildAccountBalance recomputes an account's cached balance from the
// posted line log and stores it, returning the computed value. An asOf of
// zero time replays the whole log.
func (s *Service) RebuildAccountBalance(ctx context.Context, code string, asOf time.Time) (decimal.Decimal, error) {
	account, err := s.store.GetAccount(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}

	debit, credit, err := s.store.SumLines(ctx, LineQuery{AccountCode: code, AsOf: asOf})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum lines for %s: %w", code, err)
	}

	balance := account.OpeningBalance.Add(account.SignedDelta(debit, credit))
	if err := s.store.SetAccountBalance(ctx, code, balance); err != nil {
		return decimal.Zero, fmt.Errorf("failed to store rebuilt balance for %s: %w", code, err)
	}
	return balance, nil
}
