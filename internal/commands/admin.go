package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			st, ok := a.store.(interface{ Migrate(context.Context) error })
			if !ok {
				return errors.New("store does not support migrations")
			}
			if err := st.Migrate(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info("schema migrated")
			return nil
		},
	}
}

func newRebuildCommand() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Drop orphaned rows, post unposted records, and recompute every cached balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.posting.RebuildAll(cmd.Context(), actor)
			if err != nil {
				return err
			}
			a.logger.Info("rebuild complete",
				"receipts", report.Receipts,
				"expenses", report.Expenses,
				"bills", report.Bills,
				"returns", report.Returns,
				"supplier_payments", report.SupplierPayments,
				"partner_payments", report.PartnerPayments,
				"orphaned_entries", report.OrphanedEntries,
				"accounts", report.Accounts,
				"pools", report.Pools,
				"bank_accounts", report.BankAccounts,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "cli", "who to record as the actor")

	return cmd
}

func newResetCommand() *cobra.Command {
	var confirm bool
	var actor string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe derived accounting state without replaying",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.posting.ResetAll(cmd.Context(), confirm, actor); err != nil {
				return err
			}
			a.logger.Info("reset complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "acknowledge that derived state will be deleted")
	cmd.Flags().StringVar(&actor, "actor", "cli", "who to record as the actor")

	return cmd
}
