// Package posting implements the posting rules: every business event becomes
// one balanced journal entry plus its cash and sub-ledger effects, committed
// in a single transaction.
package posting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/resortledger/internal/config"
	"github.com/example/resortledger/internal/events"
	"github.com/example/resortledger/internal/fx"
	"github.com/example/resortledger/internal/ledger"
	"github.com/example/resortledger/internal/store"
	"github.com/example/resortledger/internal/subledger"
	"github.com/example/resortledger/internal/treasury"
	"github.com/example/resortledger/pkg/audit"
)

// Service turns event records into journal entries, cash movements, and
// sub-ledger rows. Account codes are resolved from the posting map at posting
// time; a missing mapping fails the whole operation.
type Service struct {
	store    store.Store
	accounts *config.Accounts
	journal  *audit.Journal
	logger   *slog.Logger
}

// NewService creates a posting service. journal may be nil to disable the
// audit trail.
func NewService(st store.Store, accounts *config.Accounts, journal *audit.Journal, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, accounts: accounts, journal: journal, logger: logger}
}

// txServices binds the domain services to one open transaction.
type txServices struct {
	ledger   *ledger.Service
	treasury *treasury.Service
	dist     *subledger.Distributor
	rates    *fx.Service
}

func (s *Service) services(tx store.Tx) txServices {
	return txServices{
		ledger:   ledger.NewService(tx),
		treasury: treasury.NewService(tx),
		dist:     subledger.NewDistributor(tx),
		rates:    fx.NewService(tx, s.accounts.PresentationCurrency),
	}
}

// methodAccount resolves the cash-side account for a payment method.
func (s *Service) methodAccount(method events.PaymentMethod) (string, error) {
	switch method {
	case events.MethodCash:
		return s.accounts.Cash, nil
	case events.MethodCard:
		return s.accounts.CardClearing, nil
	case events.MethodBank:
		if s.accounts.Bank == "" {
			return "", &ledger.MissingAccountConfigurationError{Code: "bank", Role: "bank cash account"}
		}
		return s.accounts.Bank, nil
	default:
		return "", fmt.Errorf("unknown payment method %q", method)
	}
}

// lineRate is the informational rate stamped on journal lines. A missing rate
// does not block posting; reports convert from the rate tables instead.
func lineRate(ctx context.Context, rates *fx.Service, currency string, date time.Time) decimal.Decimal {
	rate, err := rates.GetRate(ctx, currency, date, fx.RateClosing, true)
	if err != nil {
		return decimal.NewFromInt(1)
	}
	return rate
}

func (s *Service) recordAudit(ctx context.Context, actor, action, subject, detail string) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.Record(ctx, actor, action, subject, detail); err != nil {
		s.logger.Error("failed to record audit event",
			slog.String("action", action), slog.String("error", err.Error()))
	}
}

// RevenueInput describes one revenue event to record and post.
type RevenueInput struct {
	ZoneCode    string
	Date        time.Time
	Amount      decimal.Decimal
	Currency    string
	Method      events.PaymentMethod
	Description string
	CreatedBy   string
}

// PostRevenue records a revenue receipt and posts it: debit the cash-side
// account, credit the zone's revenue account, grow the treasury pool for cash
// takings, and distribute partner shares. All of it commits atomically.
func (s *Service) PostRevenue(ctx context.Context, in RevenueInput) (*events.RevenueReceipt, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	receipt := &events.RevenueReceipt{
		ZoneCode:    in.ZoneCode,
		Date:        in.Date,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Method:      in.Method,
		Description: in.Description,
		CreatedBy:   in.CreatedBy,
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateRevenueReceipt(ctx, receipt); err != nil {
			return err
		}
		return s.postRevenue(ctx, tx, receipt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("revenue posted",
		slog.Int64("receipt_id", receipt.ID),
		slog.String("zone", receipt.ZoneCode),
		slog.String("amount", receipt.Amount.String()),
		slog.String("currency", receipt.Currency))
	s.recordAudit(ctx, in.CreatedBy, "revenue.posted",
		fmt.Sprintf("revenue_receipt/%d", receipt.ID),
		fmt.Sprintf("%s %s zone %s", receipt.Amount, receipt.Currency, receipt.ZoneCode))
	return receipt, nil
}

func (s *Service) postRevenue(ctx context.Context, tx store.Tx, r *events.RevenueReceipt) error {
	if r.Posted {
		return nil
	}
	svc := s.services(tx)

	revenueCode := s.accounts.ZoneRevenue(r.ZoneCode)
	if revenueCode == "" {
		return &ledger.MissingAccountConfigurationError{Code: r.ZoneCode, Role: "zone revenue account"}
	}
	debitCode, err := s.methodAccount(r.Method)
	if err != nil {
		return err
	}

	rate := lineRate(ctx, svc.rates, r.Currency, r.Date)
	_, err = svc.ledger.CreateEntry(ctx, ledger.CreateEntryInput{
		Date:        r.Date,
		Type:        ledger.EntryRevenue,
		Description: r.Description,
		ZoneCode:    r.ZoneCode,
		OriginKind:  events.OriginRevenueReceipt,
		OriginID:    r.ID,
		CreatedBy:   r.CreatedBy,
		Lines: []ledger.LineInput{
			{AccountCode: debitCode, Debit: r.Amount, Currency: r.Currency, ExchangeRate: rate},
			{AccountCode: revenueCode, Credit: r.Amount, Currency: r.Currency, ExchangeRate: rate},
		},
	})
	if err != nil {
		return err
	}

	if r.Method == events.MethodCash {
		_, err = svc.treasury.ApplyTreasuryMovement(ctx, r.Currency, treasury.Movement{
			Kind:        treasury.TxRevenue,
			Amount:      r.Amount,
			Description: r.Description,
			OriginKind:  events.OriginRevenueReceipt,
			OriginID:    r.ID,
			CreatedBy:   r.CreatedBy,
		})
		if err != nil {
			return err
		}
	}

	if !r.SharesCalculated {
		_, err = svc.dist.DistributeRevenueShares(ctx, r.ZoneCode, r.Amount, r.Currency,
			events.OriginRevenueReceipt, r.ID, r.Description)
		if err != nil {
			return err
		}
	}

	if err := tx.SetRevenueReceiptFlags(ctx, r.ID, true, true); err != nil {
		return err
	}
	r.Posted = true
	r.SharesCalculated = true
	return nil
}

// ExpenseInput describes one expense to record and post. ChargePartners
// shares the expense out to the zone's partnerships.
type ExpenseInput struct {
	ZoneCode       string
	Date           time.Time
	Amount         decimal.Decimal
	Currency       string
	Method         events.PaymentMethod
	Category       string
	ChargePartners bool
	Description    string
	CreatedBy      string
}

// PostExpense records an expense and posts it: debit the zone's expense
// account, credit the cash-side account, shrink the treasury pool for cash
// payments, and, when ChargePartners is set, distribute expense shares to
// partnerships that carry them.
func (s *Service) PostExpense(ctx context.Context, in ExpenseInput) (*events.ExpenseRecord, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	record := &events.ExpenseRecord{
		ZoneCode:       in.ZoneCode,
		Date:           in.Date,
		Amount:         in.Amount,
		Currency:       in.Currency,
		Method:         in.Method,
		Category:       in.Category,
		ChargePartners: in.ChargePartners,
		Description:    in.Description,
		CreatedBy:      in.CreatedBy,
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateExpenseRecord(ctx, record); err != nil {
			return err
		}
		return s.postExpense(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("expense posted",
		slog.Int64("expense_id", record.ID),
		slog.String("zone", record.ZoneCode),
		slog.String("amount", record.Amount.String()),
		slog.String("currency", record.Currency))
	s.recordAudit(ctx, in.CreatedBy, "expense.posted",
		fmt.Sprintf("expense_record/%d", record.ID),
		fmt.Sprintf("%s %s zone %s", record.Amount, record.Currency, record.ZoneCode))
	return record, nil
}

func (s *Service) postExpense(ctx context.Context, tx store.Tx, r *events.ExpenseRecord) error {
	if r.Posted {
		return nil
	}
	svc := s.services(tx)

	expenseCode := s.accounts.ZoneExpense(r.ZoneCode)
	if expenseCode == "" {
		return &ledger.MissingAccountConfigurationError{Code: r.ZoneCode, Role: "zone expense account"}
	}
	creditCode, err := s.methodAccount(r.Method)
	if err != nil {
		return err
	}

	rate := lineRate(ctx, svc.rates, r.Currency, r.Date)
	_, err = svc.ledger.CreateEntry(ctx, ledger.CreateEntryInput{
		Date:        r.Date,
		Type:        ledger.EntryExpense,
		Description: r.Description,
		ZoneCode:    r.ZoneCode,
		OriginKind:  events.OriginExpenseRecord,
		OriginID:    r.ID,
		CreatedBy:   r.CreatedBy,
		Lines: []ledger.LineInput{
			{AccountCode: expenseCode, Debit: r.Amount, Currency: r.Currency, ExchangeRate: rate},
			{AccountCode: creditCode, Credit: r.Amount, Currency: r.Currency, ExchangeRate: rate},
		},
	})
	if err != nil {
		return err
	}

	if r.Method == events.MethodCash {
		_, err = svc.treasury.ApplyTreasuryMovement(ctx, r.Currency, treasury.Movement{
			Kind:        treasury.TxExpense,
			Amount:      r.Amount,
			Description: r.Description,
			OriginKind:  events.OriginExpenseRecord,
			OriginID:    r.ID,
			CreatedBy:   r.CreatedBy,
		})
		if err != nil {
			return err
		}
	}

	if r.ChargePartners && !r.SharesCalculated {
		_, err = svc.dist.DistributeExpenseShares(ctx, r.ZoneCode, r.Amount, r.Currency,
			events.OriginExpenseRecord, r.ID, r.Description)
		if err != nil {
			return err
		}
	}

	if err := tx.SetExpenseRecordFlags(ctx, r.ID, true, true); err != nil {
		return err
	}
	r.Posted = true
	r.SharesCalculated = true
	return nil
}
