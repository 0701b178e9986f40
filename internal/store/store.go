// Package store composes the per-domain persistence contracts into a single
// transactional store. Posting rules run entirely inside one transaction so
// that a journal entry, its cash movements, its sub-ledger rows, and the
// originating record's flags commit or roll back together.
package store

import (
	"context"

	"github.com/example/resortledger/internal/events"
	"github.com/example/resortledger/internal/fx"
	"github.com/example/resortledger/internal/ledger"
	"github.com/example/resortledger/internal/subledger"
	"github.com/example/resortledger/internal/treasury"
)

// Tx is the full persistence surface visible inside one transaction.
type Tx interface {
	ledger.Store
	fx.Store
	treasury.Store
	subledger.Store
	events.Store

	// Wipe deletes all derived accounting state: journal entries, cash
	// transactions, sub-ledger entries, and the sequence counter. Cached
	// balances return to their opening values and event records have their
	// posting flags cleared so RebuildAll can replay them. Master data
	// (accounts, partnerships, suppliers, bank accounts, rates, records)
	// survives.
	Wipe(ctx context.Context) error
}

// Store runs functions transactionally. All reads and writes go through InTx;
// there is no auto-commit surface.
type Store interface {
	// InTx runs fn inside one transaction. A non-nil error from fn rolls
	// every write back; implementations retry serialization conflicts before
	// surfacing them.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
