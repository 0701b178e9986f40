package posting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/resortledger/internal/events"
	"github.com/example/resortledger/internal/ledger"
	"github.com/example/resortledger/internal/store"
	"github.com/example/resortledger/internal/treasury"
)

// ReverseAndDelete undoes one posted record end to end: its journal entries
// are deleted with cached balances backed out, each of its cash movements
// gets a compensating log row, its sub-ledger rows are removed, and finally
// the record itself is deleted. The cash log keeps both halves of every
// reversed pair.
func (s *Service) ReverseAndDelete(ctx context.Context, originKind string, originID int64, actor string) error {
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := checkRecordExists(ctx, tx, originKind, originID); err != nil {
			return err
		}
		svc := s.services(tx)

		entries, err := tx.ListEntries(ctx, ledger.EntryFilter{
			OriginKinds: []string{originKind},
			OriginID:    originID,
		})
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := svc.ledger.DeleteEntry(ctx, e.Seq); err != nil {
				return err
			}
		}

		cashTxs, err := tx.ListCashTransactions(ctx, treasury.CashTxFilter{
			OriginKind: originKind,
			OriginID:   originID,
		})
		if err != nil {
			return err
		}
		for _, c := range cashTxs {
			if _, err := svc.treasury.ReverseMovement(ctx, c, actor); err != nil {
				return err
			}
		}

		if err := svc.dist.RemoveByOrigin(ctx, originKind, originID); err != nil {
			return err
		}

		return deleteRecord(ctx, tx, originKind, originID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("record reversed and deleted",
		slog.String("origin_kind", originKind),
		slog.Int64("origin_id", originID))
	s.recordAudit(ctx, actor, "record.reversed",
		fmt.Sprintf("%s/%d", originKind, originID), "")
	return nil
}

func checkRecordExists(ctx context.Context, tx store.Tx, originKind string, originID int64) error {
	var err error
	switch originKind {
	case events.OriginRevenueReceipt:
		_, err = tx.GetRevenueReceipt(ctx, originID)
	case events.OriginExpenseRecord:
		_, err = tx.GetExpenseRecord(ctx, originID)
	case events.OriginPurchaseBill:
		_, err = tx.GetPurchaseBill(ctx, originID)
	case events.OriginPurchaseReturn:
		_, err = tx.GetPurchaseReturn(ctx, originID)
	case events.OriginSupplierPayment:
		_, err = tx.GetSupplierPayment(ctx, originID)
	case events.OriginPartnerPayment:
		_, err = tx.GetPartnerPayment(ctx, originID)
	default:
		return fmt.Errorf("unknown record kind %q", originKind)
	}
	return err
}

func deleteRecord(ctx context.Context, tx store.Tx, originKind string, originID int64) error {
	switch originKind {
	case events.OriginRevenueReceipt:
		return tx.DeleteRevenueReceipt(ctx, originID)
	case events.OriginExpenseRecord:
		return tx.DeleteExpenseRecord(ctx, originID)
	case events.OriginPurchaseBill:
		return tx.DeletePurchaseBill(ctx, originID)
	case events.OriginPurchaseReturn:
		return tx.DeletePurchaseReturn(ctx, originID)
	case events.OriginSupplierPayment:
		return tx.DeleteSupplierPayment(ctx, originID)
	case events.OriginPartnerPayment:
		return tx.DeletePartnerPayment(ctx, originID)
	default:
		return fmt.Errorf("unknown record kind %q", originKind)
	}
}
