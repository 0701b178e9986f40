package posting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/resortledger/internal/events"
	"github.com/example/resortledger/internal/ledger"
	"github.com/example/resortledger/internal/store"
	"github.com/example/resortledger/internal/subledger"
	"github.com/example/resortledger/internal/treasury"
)

// BillInput describes one supplier bill to record and post. Tax and
// OtherCosts are charged on top of the line subtotal.
type BillInput struct {
	SupplierID int64
	Number     string
	Date       time.Time
	Currency   string
	Lines      []events.PurchaseBillLine
	Tax        decimal.Decimal
	OtherCosts decimal.Decimal
	CreatedBy  string
}

// PostPurchaseBill records a supplier bill on credit: debit each line's cost
// account, credit the suppliers control account for the full total, and grow
// the supplier's sub-ledger balance. No cash moves until the bill is paid.
func (s *Service) PostPurchaseBill(ctx context.Context, in BillInput) (*events.PurchaseBill, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, ln := range in.Lines {
		subtotal = subtotal.Add(ln.Total())
	}

	bill := &events.PurchaseBill{
		SupplierID: in.SupplierID,
		Number:     in.Number,
		Date:       in.Date,
		Currency:   in.Currency,
		Lines:      in.Lines,
		Subtotal:   subtotal,
		Tax:        in.Tax,
		OtherCosts: in.OtherCosts,
		Total:      subtotal.Add(in.Tax).Add(in.OtherCosts),
		CreatedBy:  in.CreatedBy,
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetSupplier(ctx, in.SupplierID); err != nil {
			return err
		}
		if err := tx.CreatePurchaseBill(ctx, bill); err != nil {
			return err
		}
		return s.postBill(ctx, tx, bill)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase bill posted",
		slog.Int64("bill_id", bill.ID),
		slog.Int64("supplier_id", bill.SupplierID),
		slog.String("total", bill.Total.String()),
		slog.String("currency", bill.Currency))
	s.recordAudit(ctx, in.CreatedBy, "purchase_bill.posted",
		fmt.Sprintf("purchase_bill/%d", bill.ID),
		fmt.Sprintf("%s %s supplier %d", bill.Total, bill.Currency, bill.SupplierID))
	return bill, nil
}

// costTotals sums bill lines per cost account, falling back to the purchases
// account for lines without one. Order follows first appearance.
func (s *Service) costTotals(lines []events.PurchaseBillLine) ([]string, map[string]decimal.Decimal) {
	order := make([]string, 0, len(lines))
	totals := make(map[string]decimal.Decimal, len(lines))
	for _, ln := range lines {
		code := ln.AccountCode
		if code == "" {
			code = s.accounts.Purchases
		}
		if _, ok := totals[code]; !ok {
			order = append(order, code)
		}
		totals[code] = totals[code].Add(ln.Total())
	}
	return order, totals
}

func (s *Service) postBill(ctx context.Context, tx store.Tx, b *events.PurchaseBill) error {
	if b.Posted {
		return nil
	}
	svc := s.services(tx)

	order, totals := s.costTotals(b.Lines)
	extras := b.Tax.Add(b.OtherCosts)
	if !extras.IsZero() {
		if _, ok := totals[s.accounts.Purchases]; !ok {
			order = append(order, s.accounts.Purchases)
		}
		totals[s.accounts.Purchases] = totals[s.accounts.Purchases].Add(extras)
	}

	rate := lineRate(ctx, svc.rates, b.Currency, b.Date)
	lines := make([]ledger.LineInput, 0, len(order)+1)
	for _, code := range order {
		if totals[code].IsZero() {
			continue
		}
		lines = append(lines, ledger.LineInput{AccountCode: code, Debit: totals[code], Currency: b.Currency, ExchangeRate: rate})
	}
	lines = append(lines, ledger.LineInput{AccountCode: s.accounts.SuppliersControl, Credit: b.Total, Currency: b.Currency, ExchangeRate: rate})

	_, err := svc.ledger.CreateEntry(ctx, ledger.CreateEntryInput{
		Date:        b.Date,
		Type:        ledger.EntryExpense,
		Description: fmt.Sprintf("purchase bill %s", b.Number),
		OriginKind:  events.OriginPurchaseBill,
		OriginID:    b.ID,
		CreatedBy:   b.CreatedBy,
		Lines:       lines,
	})
	if err != nil {
		return err
	}

	err = svc.dist.AppendEntry(ctx, &subledger.Entry{
		Owner:       subledger.OwnerSupplier,
		OwnerID:     b.SupplierID,
		Kind:        subledger.EntryBill,
		Currency:    b.Currency,
		Debit:       b.Total,
		Description: fmt.Sprintf("purchase bill %s", b.Number),
		OriginKind:  events.OriginPurchaseBill,
		OriginID:    b.ID,
	})
	if err != nil {
		return err
	}

	if err := tx.SetPurchaseBillPosted(ctx, b.ID, true); err != nil {
		return err
	}
	b.Posted = true
	return nil
}

// ReturnInput describes goods sent back against an existing bill.
type ReturnInput struct {
	BillID    int64
	Date      time.Time
	Lines     []events.PurchaseBillLine
	CreatedBy string
}

// PostPurchaseReturn records a purchase return: credit the lines' cost
// accounts, debit the suppliers control account, and shrink the supplier's
// sub-ledger balance.
// The return is valued in the bill's currency and may not exceed its total.
func (s *Service) PostPurchaseReturn(ctx context.Context, in ReturnInput) (*events.PurchaseReturn, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, ln := range in.Lines {
		total = total.Add(ln.Total())
	}

	ret := &events.PurchaseReturn{
		BillID:    in.BillID,
		Date:      in.Date,
		Lines:     in.Lines,
		Total:     total,
		CreatedBy: in.CreatedBy,
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		bill, err := tx.GetPurchaseBill(ctx, in.BillID)
		if err != nil {
			return err
		}
		if total.GreaterThan(bill.Total) {
			return fmt.Errorf("return total %s exceeds bill total %s", total, bill.Total)
		}
		ret.SupplierID = bill.SupplierID
		ret.Currency = bill.Currency
		if err := tx.CreatePurchaseReturn(ctx, ret); err != nil {
			return err
		}
		return s.postReturn(ctx, tx, ret)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase return posted",
		slog.Int64("return_id", ret.ID),
		slog.Int64("bill_id", ret.BillID),
		slog.String("total", ret.Total.String()))
	s.recordAudit(ctx, in.CreatedBy, "purchase_return.posted",
		fmt.Sprintf("purchase_return/%d", ret.ID),
		fmt.Sprintf("%s %s against bill %d", ret.Total, ret.Currency, ret.BillID))
	return ret, nil
}

func (s *Service) postReturn(ctx context.Context, tx store.Tx, r *events.PurchaseReturn) error {
	if r.Posted {
		return nil
	}
	svc := s.services(tx)

	order, totals := s.costTotals(r.Lines)

	rate := lineRate(ctx, svc.rates, r.Currency, r.Date)
	lines := make([]ledger.LineInput, 0, len(order)+1)
	lines = append(lines, ledger.LineInput{AccountCode: s.accounts.SuppliersControl, Debit: r.Total, Currency: r.Currency, ExchangeRate: rate})
	for _, code := range order {
		if totals[code].IsZero() {
			continue
		}
		lines = append(lines, ledger.LineInput{AccountCode: code, Credit: totals[code], Currency: r.Currency, ExchangeRate: rate})
	}

	_, err := svc.ledger.CreateEntry(ctx, ledger.CreateEntryInput{
		Date:        r.Date,
		Type:        ledger.EntryAdjustment,
		Description: fmt.Sprintf("purchase return against bill %d", r.BillID),
		OriginKind:  events.OriginPurchaseReturn,
		OriginID:    r.ID,
		CreatedBy:   r.CreatedBy,
		Lines:       lines,
	})
	if err != nil {
		return err
	}

	err = svc.dist.AppendEntry(ctx, &subledger.Entry{
		Owner:       subledger.OwnerSupplier,
		OwnerID:     r.SupplierID,
		Kind:        subledger.EntryReturn,
		Currency:    r.Currency,
		Credit:      r.Total,
		Description: fmt.Sprintf("purchase return against bill %d", r.BillID),
		OriginKind:  events.OriginPurchaseReturn,
		OriginID:    r.ID,
	})
	if err != nil {
		return err
	}

	if err := tx.SetPurchaseReturnPosted(ctx, r.ID, true); err != nil {
		return err
	}
	r.Posted = true
	return nil
}

// SupplierPaymentInput describes cash paid to a supplier.
type SupplierPaymentInput struct {
	SupplierID  int64
	Date        time.Time
	Amount      decimal.Decimal
	Currency    string
	Method      events.PaymentMethod
	Description string
	CreatedBy   string
}

// PaySupplier settles part of a supplier's balance: debit the suppliers
// control account, credit the cash-side account, shrink the treasury pool for
// cash payments, and reduce the supplier's sub-ledger balance.
func (s *Service) PaySupplier(ctx context.Context, in SupplierPaymentInput) (*events.SupplierPayment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	payment := &events.SupplierPayment{
		SupplierID:  in.SupplierID,
		Date:        in.Date,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Method:      in.Method,
		Description: in.Description,
		CreatedBy:   in.CreatedBy,
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetSupplier(ctx, in.SupplierID); err != nil {
			return err
		}
		if err := tx.CreateSupplierPayment(ctx, payment); err != nil {
			return err
		}
		return s.postSupplierPayment(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("supplier payment posted",
		slog.Int64("payment_id", payment.ID),
		slog.Int64("supplier_id", payment.SupplierID),
		slog.String("amount", payment.Amount.String()),
		slog.String("currency", payment.Currency))
	s.recordAudit(ctx, in.CreatedBy, "supplier_payment.posted",
		fmt.Sprintf("supplier_payment/%d", payment.ID),
		fmt.Sprintf("%s %s supplier %d", payment.Amount, payment.Currency, payment.SupplierID))
	return payment, nil
}

func (s *Service) postSupplierPayment(ctx context.Context, tx store.Tx, p *events.SupplierPayment) error {
	if p.Posted {
		return nil
	}
	svc := s.services(tx)

	creditCode, err := s.methodAccount(p.Method)
	if err != nil {
		return err
	}

	rate := lineRate(ctx, svc.rates, p.Currency, p.Date)
	_, err = svc.ledger.CreateEntry(ctx, ledger.CreateEntryInput{
		Date:        p.Date,
		Type:        ledger.EntryTransfer,
		Description: p.Description,
		OriginKind:  events.OriginSupplierPayment,
		OriginID:    p.ID,
		CreatedBy:   p.CreatedBy,
		Lines: []ledger.LineInput{
			{AccountCode: s.accounts.SuppliersControl, Debit: p.Amount, Currency: p.Currency, ExchangeRate: rate},
			{AccountCode: creditCode, Credit: p.Amount, Currency: p.Currency, ExchangeRate: rate},
		},
	})
	if err != nil {
		return err
	}

	if p.Method == events.MethodCash {
		_, err = svc.treasury.ApplyTreasuryMovement(ctx, p.Currency, treasury.Movement{
			Kind:        treasury.TxSupplierPayment,
			Amount:      p.Amount,
			Description: p.Description,
			OriginKind:  events.OriginSupplierPayment,
			OriginID:    p.ID,
			CreatedBy:   p.CreatedBy,
		})
		if err != nil {
			return err
		}
	}

	err = svc.dist.AppendEntry(ctx, &subledger.Entry{
		Owner:       subledger.OwnerSupplier,
		OwnerID:     p.SupplierID,
		Kind:        subledger.EntryPayment,
		Currency:    p.Currency,
		Credit:      p.Amount,
		Description: p.Description,
		OriginKind:  events.OriginSupplierPayment,
		OriginID:    p.ID,
	})
	if err != nil {
		return err
	}

	if err := tx.SetSupplierPaymentPosted(ctx, p.ID, true); err != nil {
		return err
	}
	p.Posted = true
	return nil
}

// PartnerPaymentInput describes cash paid to a partner against accumulated
// shares.
type PartnerPaymentInput struct {
	PartnershipID int64
	Date          time.Time
	Amount        decimal.Decimal
	Currency      string
	Method        events.PaymentMethod
	Description   string
	CreatedBy     string
}

// PayPartner pays out accumulated partner shares: debit the partners control
// account, credit the cash-side account, shrink the treasury pool for cash
// payouts, and reduce the partner's sub-ledger balance.
func (s *Service) PayPartner(ctx context.Context, in PartnerPaymentInput) (*events.PartnerPayment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	payment := &events.PartnerPayment{
		PartnershipID: in.PartnershipID,
		Date:          in.Date,
		Amount:        in.Amount,
		Currency:      in.Currency,
		Method:        in.Method,
		Description:   in.Description,
		CreatedBy:     in.CreatedBy,
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetPartnership(ctx, in.PartnershipID); err != nil {
			return err
		}
		if err := tx.CreatePartnerPayment(ctx, payment); err != nil {
			return err
		}
		return s.postPartnerPayment(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("partner payment posted",
		slog.Int64("payment_id", payment.ID),
		slog.Int64("partnership_id", payment.PartnershipID),
		slog.String("amount", payment.Amount.String()),
		slog.String("currency", payment.Currency))
	s.recordAudit(ctx, in.CreatedBy, "partner_payment.posted",
		fmt.Sprintf("partner_payment/%d", payment.ID),
		fmt.Sprintf("%s %s partnership %d", payment.Amount, payment.Currency, payment.PartnershipID))
	return payment, nil
}

func (s *Service) postPartnerPayment(ctx context.Context, tx store.Tx, p *events.PartnerPayment) error {
	if p.Posted {
		return nil
	}
	svc := s.services(tx)

	creditCode, err := s.methodAccount(p.Method)
	if err != nil {
		return err
	}

	rate := lineRate(ctx, svc.rates, p.Currency, p.Date)
	_, err = svc.ledger.CreateEntry(ctx, ledger.CreateEntryInput{
		Date:        p.Date,
		Type:        ledger.EntryTransfer,
		Description: p.Description,
		OriginKind:  events.OriginPartnerPayment,
		OriginID:    p.ID,
		CreatedBy:   p.CreatedBy,
		Lines: []ledger.LineInput{
			{AccountCode: s.accounts.PartnersControl, Debit: p.Amount, Currency: p.Currency, ExchangeRate: rate},
			{AccountCode: creditCode, Credit: p.Amount, Currency: p.Currency, ExchangeRate: rate},
		},
	})
	if err != nil {
		return err
	}

	if p.Method == events.MethodCash {
		_, err = svc.treasury.ApplyTreasuryMovement(ctx, p.Currency, treasury.Movement{
			Kind:        treasury.TxPartnerPayout,
			Amount:      p.Amount,
			Description: p.Description,
			OriginKind:  events.OriginPartnerPayment,
			OriginID:    p.ID,
			CreatedBy:   p.CreatedBy,
		})
		if err != nil {
			return err
		}
	}

	err = svc.dist.AppendEntry(ctx, &subledger.Entry{
		Owner:       subledger.OwnerPartner,
		OwnerID:     p.PartnershipID,
		Kind:        subledger.EntryPayment,
		Currency:    p.Currency,
		Credit:      p.Amount,
		Description: p.Description,
		OriginKind:  events.OriginPartnerPayment,
		OriginID:    p.ID,
	})
	if err != nil {
		return err
	}

	if err := tx.SetPartnerPaymentPosted(ctx, p.ID, true); err != nil {
		return err
	}
	p.Posted = true
	return nil
}
