package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/resortledger/internal/coa"
	"github.com/example/resortledger/internal/events"
	"github.com/example/resortledger/internal/ledger"
	"github.com/example/resortledger/internal/store"
	"github.com/example/resortledger/internal/subledger"
)

// ErrResetNotConfirmed guards ResetAll against accidental invocation.
var ErrResetNotConfirmed = errors.New("reset requires explicit confirmation")

// RebuildReport counts what a rebuild touched. The record counts are events
// that were posted during the rebuild; the rest are recomputed caches and
// dropped orphans.
type RebuildReport struct {
	Receipts         int `json:"receipts"`
	Expenses         int `json:"expenses"`
	Bills            int `json:"bills"`
	Returns          int `json:"returns"`
	SupplierPayments int `json:"supplier_payments"`
	PartnerPayments  int `json:"partner_payments"`
	OrphanedEntries  int `json:"orphaned_entries"`
	Accounts         int `json:"accounts"`
	Pools            int `json:"pools"`
	BankAccounts     int `json:"bank_accounts"`
	SubEntries       int `json:"sub_entries"`
}

// recordExists reports whether the origin event record behind a derived row
// still exists. Unknown origin kinds count as existing; manual movements
// carry no origin at all.
func recordExists(ctx context.Context, tx store.Tx, kind string, id int64) (bool, error) {
	var err error
	switch kind {
	case events.OriginRevenueReceipt:
		_, err = tx.GetRevenueReceipt(ctx, id)
	case events.OriginExpenseRecord:
		_, err = tx.GetExpenseRecord(ctx, id)
	case events.OriginPurchaseBill:
		_, err = tx.GetPurchaseBill(ctx, id)
	case events.OriginPurchaseReturn:
		_, err = tx.GetPurchaseReturn(ctx, id)
	case events.OriginSupplierPayment:
		_, err = tx.GetSupplierPayment(ctx, id)
	case events.OriginPartnerPayment:
		_, err = tx.GetPartnerPayment(ctx, id)
	default:
		return true, nil
	}
	if err == nil {
		return true, nil
	}
	if errors.Is(err, events.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// RebuildAll repairs derived accounting state without destroying history.
// Journal entries and sub-ledger rows whose origin event record is gone are
// dropped, unposted event records are posted, and every cached balance is
// recomputed from its log: account balances from journal lines, treasury and
// bank pools from the cash transaction log, sub-ledger balances from the
// sub-entry log. Manual treasury and bank movements survive because the cash
// log itself is never cleared. The whole rebuild is one transaction.
func (s *Service) RebuildAll(ctx context.Context, actor string) (*RebuildReport, error) {
	report := &RebuildReport{}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		svc := s.services(tx)

		if err := s.dropOrphans(ctx, tx, report); err != nil {
			return err
		}
		if err := s.postUnposted(ctx, tx, report); err != nil {
			return err
		}
		return s.recomputeBalances(ctx, tx, svc, report)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("accounting rebuilt",
		slog.Int("receipts", report.Receipts),
		slog.Int("expenses", report.Expenses),
		slog.Int("bills", report.Bills),
		slog.Int("returns", report.Returns),
		slog.Int("supplier_payments", report.SupplierPayments),
		slog.Int("partner_payments", report.PartnerPayments),
		slog.Int("orphaned_entries", report.OrphanedEntries),
		slog.Int("accounts", report.Accounts),
		slog.Int("pools", report.Pools),
		slog.Int("bank_accounts", report.BankAccounts))
	s.recordAudit(ctx, actor, "accounting.rebuilt", "ledger", fmt.Sprintf("%+v", *report))
	return report, nil
}

// dropOrphans deletes journal entries and sub-ledger rows whose origin event
// record no longer exists. Balances are not adjusted here; the recompute pass
// rebuilds them from what remains.
func (s *Service) dropOrphans(ctx context.Context, tx store.Tx, report *RebuildReport) error {
	entries, err := tx.ListEntries(ctx, ledger.EntryFilter{})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.OriginKind == "" {
			continue
		}
		exists, err := recordExists(ctx, tx, e.OriginKind, e.OriginID)
		if err != nil {
			return err
		}
		if !exists {
			if err := tx.DeleteEntry(ctx, e.Seq); err != nil {
				return fmt.Errorf("failed to drop orphaned entry %d: %w", e.Seq, err)
			}
			report.OrphanedEntries++
		}
	}

	subEntries, err := tx.ListSubEntries(ctx, subledger.EntryFilter{})
	if err != nil {
		return err
	}
	type origin struct {
		kind string
		id   int64
	}
	seen := make(map[origin]bool)
	for _, e := range subEntries {
		if e.OriginKind == "" {
			continue
		}
		o := origin{e.OriginKind, e.OriginID}
		if seen[o] {
			continue
		}
		seen[o] = true
		exists, err := recordExists(ctx, tx, e.OriginKind, e.OriginID)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := tx.DeleteSubEntries(ctx, e.OriginKind, e.OriginID); err != nil {
				return fmt.Errorf("failed to drop orphaned sub-ledger rows for %s/%d: %w", e.OriginKind, e.OriginID, err)
			}
		}
	}
	return nil
}

// postUnposted runs every event record through its posting rule. Records
// already flagged as posted are skipped by the rules themselves, so a rebuild
// after a reset brings the whole ledger back while a rebuild over a healthy
// store posts nothing.
func (s *Service) postUnposted(ctx context.Context, tx store.Tx, report *RebuildReport) error {
	receipts, err := tx.ListRevenueReceipts(ctx, events.RecordFilter{})
	if err != nil {
		return err
	}
	for _, r := range receipts {
		if r.Posted {
			continue
		}
		if err := s.postRevenue(ctx, tx, r); err != nil {
			return fmt.Errorf("failed to post revenue receipt %d: %w", r.ID, err)
		}
		report.Receipts++
	}

	expenses, err := tx.ListExpenseRecords(ctx, events.RecordFilter{})
	if err != nil {
		return err
	}
	for _, r := range expenses {
		if r.Posted {
			continue
		}
		if err := s.postExpense(ctx, tx, r); err != nil {
			return fmt.Errorf("failed to post expense record %d: %w", r.ID, err)
		}
		report.Expenses++
	}

	bills, err := tx.ListPurchaseBills(ctx)
	if err != nil {
		return err
	}
	for _, b := range bills {
		if b.Posted {
			continue
		}
		if err := s.postBill(ctx, tx, b); err != nil {
			return fmt.Errorf("failed to post purchase bill %d: %w", b.ID, err)
		}
		report.Bills++
	}

	returns, err := tx.ListPurchaseReturns(ctx)
	if err != nil {
		return err
	}
	for _, r := range returns {
		if r.Posted {
			continue
		}
		if err := s.postReturn(ctx, tx, r); err != nil {
			return fmt.Errorf("failed to post purchase return %d: %w", r.ID, err)
		}
		report.Returns++
	}

	supplierPayments, err := tx.ListSupplierPayments(ctx)
	if err != nil {
		return err
	}
	for _, p := range supplierPayments {
		if p.Posted {
			continue
		}
		if err := s.postSupplierPayment(ctx, tx, p); err != nil {
			return fmt.Errorf("failed to post supplier payment %d: %w", p.ID, err)
		}
		report.SupplierPayments++
	}

	partnerPayments, err := tx.ListPartnerPayments(ctx)
	if err != nil {
		return err
	}
	for _, p := range partnerPayments {
		if p.Posted {
			continue
		}
		if err := s.postPartnerPayment(ctx, tx, p); err != nil {
			return fmt.Errorf("failed to post partner payment %d: %w", p.ID, err)
		}
		report.PartnerPayments++
	}
	return nil
}

// recomputeBalances rewrites every cached balance from its underlying log.
func (s *Service) recomputeBalances(ctx context.Context, tx store.Tx, svc txServices, report *RebuildReport) error {
	accounts, err := tx.ListAccounts(ctx, coa.AccountFilter{})
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if _, err := svc.ledger.RebuildAccountBalance(ctx, a.Code, time.Time{}); err != nil {
			return fmt.Errorf("failed to rebuild balance of %s: %w", a.Code, err)
		}
		report.Accounts++
	}

	pools, err := tx.ListPools(ctx)
	if err != nil {
		return err
	}
	for _, p := range pools {
		if _, err := svc.treasury.RebuildTreasuryBalance(ctx, p.Currency); err != nil {
			return fmt.Errorf("failed to rebuild %s pool: %w", p.Currency, err)
		}
		report.Pools++
	}

	banks, err := tx.ListBankAccounts(ctx)
	if err != nil {
		return err
	}
	for _, b := range banks {
		if _, err := svc.treasury.RebuildBankBalance(ctx, b.ID); err != nil {
			return fmt.Errorf("failed to rebuild bank account %d: %w", b.ID, err)
		}
		report.BankAccounts++
	}

	n, err := svc.dist.RebuildBalances(ctx)
	if err != nil {
		return err
	}
	report.SubEntries = n
	return nil
}

// ResetAll wipes all derived accounting state without re-posting. Event
// records and master data survive with their posting flags cleared, so a
// later RebuildAll can bring the ledger back. confirm must be true.
func (s *Service) ResetAll(ctx context.Context, confirm bool, actor string) error {
	if !confirm {
		return ErrResetNotConfirmed
	}

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.Wipe(ctx)
	})
	if err != nil {
		return err
	}

	s.logger.Warn("accounting state reset")
	s.recordAudit(ctx, actor, "accounting.reset", "ledger", "")
	return nil
}
