// Package postgres is the production Store. Every transaction runs at
// SERIALIZABLE and is retried on serialization failure; journal sequence
// numbers come from a row-locked counter so they stay gapless under
// concurrency.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/resortledger/internal/store"
)

const serializationFailure = "40001"

const maxTxRetries = 5

// PG is a Store over a pgx connection pool.
type PG struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a postgres store.
func New(pool *pgxpool.Pool, logger *slog.Logger) *PG {
	if logger == nil {
		logger = slog.Default()
	}
	return &PG{pool: pool, logger: logger}
}

var _ store.Store = (*PG)(nil)

// InTx runs fn in a SERIALIZABLE transaction, retrying on SQLSTATE 40001 up
// to maxTxRetries times.
func (p *PG) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := p.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		lastErr = err
		p.logger.Warn("serialization conflict, retrying transaction",
			slog.Int("attempt", attempt+1))
	}
	return fmt.Errorf("transaction failed after %d retries: %w", maxTxRetries, lastErr)
}

func (p *PG) runOnce(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailure
}

// Migrate creates the schema if it does not exist.
func (p *PG) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	code            TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	type            TEXT NOT NULL,
	parent_code     TEXT NOT NULL DEFAULT '',
	level           INT NOT NULL DEFAULT 0,
	nature          TEXT NOT NULL,
	currency        TEXT NOT NULL,
	opening_balance NUMERIC NOT NULL DEFAULT 0,
	current_balance NUMERIC NOT NULL DEFAULT 0,
	active          BOOLEAN NOT NULL DEFAULT TRUE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS fx_rates (
	currency TEXT NOT NULL,
	date     TIMESTAMPTZ NOT NULL,
	type     TEXT NOT NULL,
	rate     NUMERIC NOT NULL,
	source   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (currency, date, type)
);

CREATE TABLE IF NOT EXISTS seq_counters (
	name  TEXT PRIMARY KEY,
	value BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS journal_entries (
	seq          BIGINT PRIMARY KEY,
	number       TEXT NOT NULL UNIQUE,
	date         TIMESTAMPTZ NOT NULL,
	type         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	total_debit  NUMERIC NOT NULL,
	total_credit NUMERIC NOT NULL,
	zone_code    TEXT NOT NULL DEFAULT '',
	origin_kind  TEXT NOT NULL DEFAULT '',
	origin_id    BIGINT NOT NULL DEFAULT 0,
	posted       BOOLEAN NOT NULL DEFAULT TRUE,
	created_by   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS journal_lines (
	id            BIGSERIAL PRIMARY KEY,
	entry_seq     BIGINT NOT NULL REFERENCES journal_entries(seq) ON DELETE CASCADE,
	account_code  TEXT NOT NULL REFERENCES accounts(code),
	description   TEXT NOT NULL DEFAULT '',
	debit         NUMERIC NOT NULL DEFAULT 0,
	credit        NUMERIC NOT NULL DEFAULT 0,
	currency      TEXT NOT NULL,
	exchange_rate NUMERIC NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS journal_lines_account_idx ON journal_lines (account_code);

CREATE TABLE IF NOT EXISTS treasury_pools (
	currency   TEXT PRIMARY KEY,
	balance    NUMERIC NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bank_accounts (
	id              BIGSERIAL PRIMARY KEY,
	bank_name       TEXT NOT NULL,
	number          TEXT NOT NULL,
	name            TEXT NOT NULL DEFAULT '',
	iban            TEXT NOT NULL DEFAULT '',
	swift_code      TEXT NOT NULL DEFAULT '',
	currency        TEXT NOT NULL,
	opening_balance NUMERIC NOT NULL DEFAULT 0,
	balance         NUMERIC NOT NULL DEFAULT 0,
	active          BOOLEAN NOT NULL DEFAULT TRUE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cash_transactions (
	id              BIGSERIAL PRIMARY KEY,
	pool            TEXT NOT NULL,
	currency        TEXT NOT NULL DEFAULT '',
	bank_account_id BIGINT NOT NULL DEFAULT 0,
	kind            TEXT NOT NULL,
	amount          NUMERIC NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	origin_kind     TEXT NOT NULL DEFAULT '',
	origin_id       BIGINT NOT NULL DEFAULT 0,
	created_by      TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS cash_transactions_pool_idx ON cash_transactions (pool, currency, bank_account_id);

CREATE TABLE IF NOT EXISTS partnerships (
	id                 BIGSERIAL PRIMARY KEY,
	partner_name       TEXT NOT NULL,
	zone_code          TEXT NOT NULL,
	percentage         NUMERIC NOT NULL,
	expense_percentage NUMERIC NOT NULL DEFAULT 0,
	share_expenses     BOOLEAN NOT NULL DEFAULT FALSE,
	active             BOOLEAN NOT NULL DEFAULT TRUE,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS suppliers (
	id         BIGSERIAL PRIMARY KEY,
	code       TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL,
	currency   TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT '',
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sub_entries (
	id          BIGSERIAL PRIMARY KEY,
	owner       TEXT NOT NULL,
	owner_id    BIGINT NOT NULL,
	kind        TEXT NOT NULL,
	currency    TEXT NOT NULL,
	debit       NUMERIC NOT NULL DEFAULT 0,
	credit      NUMERIC NOT NULL DEFAULT 0,
	balance     NUMERIC NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	origin_kind TEXT NOT NULL DEFAULT '',
	origin_id   BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS sub_entries_owner_idx ON sub_entries (owner, owner_id, currency);

CREATE TABLE IF NOT EXISTS owner_balances (
	owner    TEXT NOT NULL,
	owner_id BIGINT NOT NULL,
	currency TEXT NOT NULL,
	balance  NUMERIC NOT NULL DEFAULT 0,
	PRIMARY KEY (owner, owner_id, currency)
);

CREATE TABLE IF NOT EXISTS revenue_receipts (
	id                BIGSERIAL PRIMARY KEY,
	zone_code         TEXT NOT NULL,
	date              TIMESTAMPTZ NOT NULL,
	amount            NUMERIC NOT NULL,
	currency          TEXT NOT NULL,
	method            TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	posted            BOOLEAN NOT NULL DEFAULT FALSE,
	shares_calculated BOOLEAN NOT NULL DEFAULT FALSE,
	created_by        TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS expense_records (
	id                BIGSERIAL PRIMARY KEY,
	zone_code         TEXT NOT NULL,
	date              TIMESTAMPTZ NOT NULL,
	amount            NUMERIC NOT NULL,
	currency          TEXT NOT NULL,
	method            TEXT NOT NULL,
	category          TEXT NOT NULL DEFAULT '',
	charge_partners   BOOLEAN NOT NULL DEFAULT FALSE,
	description       TEXT NOT NULL DEFAULT '',
	posted            BOOLEAN NOT NULL DEFAULT FALSE,
	shares_calculated BOOLEAN NOT NULL DEFAULT FALSE,
	created_by        TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS purchase_bills (
	id          BIGSERIAL PRIMARY KEY,
	supplier_id BIGINT NOT NULL REFERENCES suppliers(id),
	number      TEXT NOT NULL,
	date        TIMESTAMPTZ NOT NULL,
	currency    TEXT NOT NULL,
	lines       JSONB NOT NULL DEFAULT '[]',
	subtotal    NUMERIC NOT NULL DEFAULT 0,
	tax         NUMERIC NOT NULL DEFAULT 0,
	other_costs NUMERIC NOT NULL DEFAULT 0,
	total       NUMERIC NOT NULL,
	posted      BOOLEAN NOT NULL DEFAULT FALSE,
	created_by  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS purchase_returns (
	id          BIGSERIAL PRIMARY KEY,
	bill_id     BIGINT NOT NULL REFERENCES purchase_bills(id),
	supplier_id BIGINT NOT NULL REFERENCES suppliers(id),
	date        TIMESTAMPTZ NOT NULL,
	currency    TEXT NOT NULL,
	lines       JSONB NOT NULL DEFAULT '[]',
	total       NUMERIC NOT NULL,
	posted      BOOLEAN NOT NULL DEFAULT FALSE,
	created_by  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS supplier_payments (
	id          BIGSERIAL PRIMARY KEY,
	supplier_id BIGINT NOT NULL REFERENCES suppliers(id),
	date        TIMESTAMPTZ NOT NULL,
	amount      NUMERIC NOT NULL,
	currency    TEXT NOT NULL,
	method      TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	posted      BOOLEAN NOT NULL DEFAULT FALSE,
	created_by  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS partner_payments (
	id             BIGSERIAL PRIMARY KEY,
	partnership_id BIGINT NOT NULL REFERENCES partnerships(id),
	date           TIMESTAMPTZ NOT NULL,
	amount         NUMERIC NOT NULL,
	currency       TEXT NOT NULL,
	method         TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	posted         BOOLEAN NOT NULL DEFAULT FALSE,
	created_by     TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
