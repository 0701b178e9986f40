package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/example/resortledger/internal/coa"
	"github.com/example/resortledger/internal/fx"
	"github.com/example/resortledger/internal/ledger"
	"github.com/example/resortledger/internal/store"
	"github.com/example/resortledger/internal/subledger"
	"github.com/example/resortledger/internal/treasury"
)

// pgTx implements store.Tx over one open pgx transaction. Numerics travel as
// text on both sides so decimals stay exact.
type pgTx struct {
	tx pgx.Tx
}

var _ store.Tx = (*pgTx)(nil)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func parseDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ---- chart of accounts ----

const accountCols = `code, name, type, parent_code, level, nature, currency,
	opening_balance::text, current_balance::text, active, created_at`

func scanAccount(row pgx.Row) (*coa.Account, error) {
	var a coa.Account
	var opening, current string
	err := row.Scan(&a.Code, &a.Name, &a.Type, &a.ParentCode, &a.Level, &a.Nature,
		&a.Currency, &opening, &current, &a.Active, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.OpeningBalance = parseDec(opening)
	a.CurrentBalance = parseDec(current)
	return &a, nil
}

func (t *pgTx) GetAccount(ctx context.Context, code string) (*coa.Account, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE code = $1`, code)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, coa.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", code, err)
	}
	return a, nil
}

func (t *pgTx) ListAccounts(ctx context.Context, filter coa.AccountFilter) ([]*coa.Account, error) {
	q := `SELECT ` + accountCols + ` FROM accounts WHERE TRUE`
	var args []any
	if filter.Type != "" {
		args = append(args, filter.Type)
		q += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.ActiveOnly {
		q += " AND active"
	}
	q += " ORDER BY code"

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []*coa.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *pgTx) CreateAccount(ctx context.Context, a *coa.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO accounts (code, name, type, parent_code, level, nature, currency,
			opening_balance, current_balance, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10, $11)`,
		a.Code, a.Name, a.Type, a.ParentCode, a.Level, a.Nature, a.Currency,
		a.OpeningBalance.String(), a.CurrentBalance.String(), a.Active, a.CreatedAt)
	if isUniqueViolation(err) {
		return coa.ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", a.Code, err)
	}
	return nil
}

func (t *pgTx) AddToAccountBalance(ctx context.Context, code string, delta decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE accounts SET current_balance = current_balance + $2::numeric WHERE code = $1`,
		code, delta.String())
	if err != nil {
		return fmt.Errorf("failed to adjust balance of %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coa.ErrNotFound
	}
	return nil
}

func (t *pgTx) SetAccountBalance(ctx context.Context, code string, balance decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE accounts SET current_balance = $2::numeric WHERE code = $1`,
		code, balance.String())
	if err != nil {
		return fmt.Errorf("failed to set balance of %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coa.ErrNotFound
	}
	return nil
}

// ---- exchange rates ----

func (t *pgTx) PutRate(ctx context.Context, r *fx.Rate) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO fx_rates (currency, date, type, rate, source)
		VALUES ($1, $2, $3, $4::numeric, $5)
		ON CONFLICT (currency, date, type) DO UPDATE SET rate = EXCLUDED.rate, source = EXCLUDED.source`,
		r.Currency, r.Date, r.Type, r.Rate.String(), r.Source)
	if err != nil {
		return fmt.Errorf("failed to store rate: %w", err)
	}
	return nil
}

func (t *pgTx) LatestRate(ctx context.Context, currency string, onOrBefore time.Time, rateType fx.RateType) (*fx.Rate, error) {
	var r fx.Rate
	var rate string
	err := t.tx.QueryRow(ctx, `
		SELECT currency, date, type, rate::text, source FROM fx_rates
		WHERE currency = $1 AND type = $2 AND date <= $3
		ORDER BY date DESC LIMIT 1`,
		currency, rateType, onOrBefore).
		Scan(&r.Currency, &r.Date, &r.Type, &rate, &r.Source)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up rate: %w", err)
	}
	r.Rate = parseDec(rate)
	return &r, nil
}

// ---- journal ----

func (t *pgTx) NextEntrySequence(ctx context.Context) (int64, error) {
	var seq int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO seq_counters (name, value) VALUES ('journal_entry', 1)
		ON CONFLICT (name) DO UPDATE SET value = seq_counters.value + 1
		RETURNING value`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}
	return seq, nil
}

func (t *pgTx) InsertEntry(ctx context.Context, e *ledger.JournalEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO journal_entries (seq, number, date, type, description,
			total_debit, total_credit, zone_code, origin_kind, origin_id, posted, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $13)`,
		e.Seq, e.Number, e.Date, e.Type, e.Description,
		e.TotalDebit.String(), e.TotalCredit.String(),
		e.ZoneCode, e.OriginKind, e.OriginID, e.Posted, e.CreatedBy, e.CreatedAt)
	if isUniqueViolation(err) {
		return &ledger.DuplicateSequenceError{Seq: e.Seq}
	}
	if err != nil {
		return fmt.Errorf("failed to insert entry %d: %w", e.Seq, err)
	}

	for _, ln := range e.Lines {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO journal_lines (entry_seq, account_code, description, debit, credit, currency, exchange_rate)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7::numeric)`,
			ln.EntrySeq, ln.AccountCode, ln.Description,
			ln.Debit.String(), ln.Credit.String(), ln.Currency, ln.ExchangeRate.String())
		if err != nil {
			return fmt.Errorf("failed to insert line for entry %d: %w", e.Seq, err)
		}
	}
	return nil
}

const entryCols = `seq, number, date, type, description, total_debit::text,
	total_credit::text, zone_code, origin_kind, origin_id, posted, created_by, created_at`

func scanEntry(row pgx.Row) (*ledger.JournalEntry, error) {
	var e ledger.JournalEntry
	var debit, credit string
	err := row.Scan(&e.Seq, &e.Number, &e.Date, &e.Type, &e.Description, &debit, &credit,
		&e.ZoneCode, &e.OriginKind, &e.OriginID, &e.Posted, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.TotalDebit = parseDec(debit)
	e.TotalCredit = parseDec(credit)
	return &e, nil
}

func (t *pgTx) loadLines(ctx context.Context, seq int64) ([]ledger.JournalLine, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT entry_seq, account_code, description, debit::text, credit::text, currency, exchange_rate::text
		FROM journal_lines WHERE entry_seq = $1 ORDER BY id`, seq)
	if err != nil {
		return nil, fmt.Errorf("failed to load lines of entry %d: %w", seq, err)
	}
	defer rows.Close()

	var lines []ledger.JournalLine
	for rows.Next() {
		var ln ledger.JournalLine
		var debit, credit, rate string
		if err := rows.Scan(&ln.EntrySeq, &ln.AccountCode, &ln.Description, &debit, &credit, &ln.Currency, &rate); err != nil {
			return nil, err
		}
		ln.Debit = parseDec(debit)
		ln.Credit = parseDec(credit)
		ln.ExchangeRate = parseDec(rate)
		lines = append(lines, ln)
	}
	return lines, rows.Err()
}

func (t *pgTx) GetEntry(ctx context.Context, seq int64) (*ledger.JournalEntry, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+entryCols+` FROM journal_entries WHERE seq = $1`, seq)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entry %d: %w", seq, err)
	}
	e.Lines, err = t.loadLines(ctx, seq)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (t *pgTx) ListEntries(ctx context.Context, filter ledger.EntryFilter) ([]*ledger.JournalEntry, error) {
	q := `SELECT ` + entryCols + ` FROM journal_entries WHERE TRUE`
	var args []any
	if filter.Type != "" {
		args = append(args, filter.Type)
		q += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if len(filter.OriginKinds) > 0 {
		args = append(args, filter.OriginKinds)
		q += fmt.Sprintf(" AND origin_kind = ANY($%d)", len(args))
		if filter.OriginID != 0 {
			args = append(args, filter.OriginID)
			q += fmt.Sprintf(" AND origin_id = $%d", len(args))
		}
	}
	q += " ORDER BY seq"

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var out []*ledger.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, e := range out {
		if e.Lines, err = t.loadLines(ctx, e.Seq); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *pgTx) DeleteEntry(ctx context.Context, seq int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM journal_entries WHERE seq = $1`, seq)
	if err != nil {
		return fmt.Errorf("failed to delete entry %d: %w", seq, err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

func lineQueryWhere(q ledger.LineQuery, args *[]any) string {
	var sb strings.Builder
	sb.WriteString(" WHERE TRUE")
	if q.AccountCode != "" {
		*args = append(*args, q.AccountCode)
		fmt.Fprintf(&sb, " AND l.account_code = $%d", len(*args))
	}
	if !q.AsOf.IsZero() {
		*args = append(*args, q.AsOf)
		fmt.Fprintf(&sb, " AND e.date <= $%d", len(*args))
	}
	if q.Currency != "" {
		*args = append(*args, q.Currency)
		fmt.Fprintf(&sb, " AND l.currency = $%d", len(*args))
	}
	return sb.String()
}

func (t *pgTx) SumLines(ctx context.Context, q ledger.LineQuery) (decimal.Decimal, decimal.Decimal, error) {
	var args []any
	sql := `SELECT COALESCE(SUM(l.debit), 0)::text, COALESCE(SUM(l.credit), 0)::text
		FROM journal_lines l JOIN journal_entries e ON e.seq = l.entry_seq` + lineQueryWhere(q, &args)

	var debit, credit string
	if err := t.tx.QueryRow(ctx, sql, args...).Scan(&debit, &credit); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum lines: %w", err)
	}
	return parseDec(debit), parseDec(credit), nil
}

func (t *pgTx) SumLinesByCurrency(ctx context.Context, q ledger.LineQuery) ([]ledger.CurrencySum, error) {
	var args []any
	sql := `SELECT l.currency, COALESCE(SUM(l.debit), 0)::text, COALESCE(SUM(l.credit), 0)::text
		FROM journal_lines l JOIN journal_entries e ON e.seq = l.entry_seq` +
		lineQueryWhere(q, &args) + ` GROUP BY l.currency ORDER BY l.currency`

	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to sum lines by currency: %w", err)
	}
	defer rows.Close()

	var out []ledger.CurrencySum
	for rows.Next() {
		var s ledger.CurrencySum
		var debit, credit string
		if err := rows.Scan(&s.Currency, &debit, &credit); err != nil {
			return nil, err
		}
		s.Debit = parseDec(debit)
		s.Credit = parseDec(credit)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *pgTx) LineCurrencies(ctx context.Context, asOf time.Time) ([]string, error) {
	sql := `SELECT DISTINCT l.currency FROM journal_lines l
		JOIN journal_entries e ON e.seq = l.entry_seq WHERE l.currency <> ''`
	var args []any
	if !asOf.IsZero() {
		args = append(args, asOf)
		sql += " AND e.date <= $1"
	}
	sql += " ORDER BY l.currency"

	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list line currencies: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var cur string
		if err := rows.Scan(&cur); err != nil {
			return nil, err
		}
		out = append(out, cur)
	}
	return out, rows.Err()
}

func (t *pgTx) SumTypeByCurrency(ctx context.Context, accountType coa.AccountType, from, to time.Time) ([]ledger.CurrencySum, error) {
	sql := `SELECT l.currency, COALESCE(SUM(l.debit), 0)::text, COALESCE(SUM(l.credit), 0)::text
		FROM journal_lines l
		JOIN journal_entries e ON e.seq = l.entry_seq
		JOIN accounts a ON a.code = l.account_code
		WHERE a.type = $1`
	args := []any{accountType}
	if !from.IsZero() {
		args = append(args, from)
		sql += fmt.Sprintf(" AND e.date >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		sql += fmt.Sprintf(" AND e.date <= $%d", len(args))
	}
	sql += " GROUP BY l.currency ORDER BY l.currency"

	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to sum %s lines: %w", accountType, err)
	}
	defer rows.Close()

	var out []ledger.CurrencySum
	for rows.Next() {
		var s ledger.CurrencySum
		var debit, credit string
		if err := rows.Scan(&s.Currency, &debit, &credit); err != nil {
			return nil, err
		}
		s.Debit = parseDec(debit)
		s.Credit = parseDec(credit)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ---- treasury ----

func (t *pgTx) GetPool(ctx context.Context, currency string) (*treasury.Pool, error) {
	var p treasury.Pool
	var balance string
	err := t.tx.QueryRow(ctx,
		`SELECT currency, balance::text, updated_at FROM treasury_pools WHERE currency = $1 FOR UPDATE`,
		currency).Scan(&p.Currency, &balance, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, treasury.ErrPoolNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pool %s: %w", currency, err)
	}
	p.Balance = parseDec(balance)
	return &p, nil
}

func (t *pgTx) EnsurePool(ctx context.Context, currency string) (*treasury.Pool, error) {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO treasury_pools (currency, balance) VALUES ($1, 0)
		ON CONFLICT (currency) DO NOTHING`, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure pool %s: %w", currency, err)
	}
	return t.GetPool(ctx, currency)
}

func (t *pgTx) ListPools(ctx context.Context) ([]*treasury.Pool, error) {
	rows, err := t.tx.Query(ctx, `SELECT currency, balance::text, updated_at FROM treasury_pools ORDER BY currency`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	defer rows.Close()

	var out []*treasury.Pool
	for rows.Next() {
		var p treasury.Pool
		var balance string
		if err := rows.Scan(&p.Currency, &balance, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Balance = parseDec(balance)
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (t *pgTx) SetPoolBalance(ctx context.Context, currency string, balance decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE treasury_pools SET balance = $2::numeric, updated_at = now() WHERE currency = $1`,
		currency, balance.String())
	if err != nil {
		return fmt.Errorf("failed to set pool balance %s: %w", currency, err)
	}
	if tag.RowsAffected() == 0 {
		return treasury.ErrPoolNotFound
	}
	return nil
}

const bankCols = `id, bank_name, number, name, iban, swift_code, currency,
	opening_balance::text, balance::text, active, created_at`

func scanBank(row pgx.Row) (*treasury.BankAccount, error) {
	var b treasury.BankAccount
	var opening, balance string
	err := row.Scan(&b.ID, &b.BankName, &b.Number, &b.Name, &b.IBAN, &b.SwiftCode,
		&b.Currency, &opening, &balance, &b.Active, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.OpeningBalance = parseDec(opening)
	b.Balance = parseDec(balance)
	return &b, nil
}

func (t *pgTx) GetBankAccount(ctx context.Context, id int64) (*treasury.BankAccount, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+bankCols+` FROM bank_accounts WHERE id = $1 FOR UPDATE`, id)
	b, err := scanBank(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, treasury.ErrPoolNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bank account %d: %w", id, err)
	}
	return b, nil
}

func (t *pgTx) ListBankAccounts(ctx context.Context) ([]*treasury.BankAccount, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+bankCols+` FROM bank_accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank accounts: %w", err)
	}
	defer rows.Close()

	var out []*treasury.BankAccount
	for rows.Next() {
		b, err := scanBank(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (t *pgTx) CreateBankAccount(ctx context.Context, b *treasury.BankAccount) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO bank_accounts (bank_name, number, name, iban, swift_code, currency,
			opening_balance, balance, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10)
		RETURNING id`,
		b.BankName, b.Number, b.Name, b.IBAN, b.SwiftCode, b.Currency,
		b.OpeningBalance.String(), b.Balance.String(), b.Active, b.CreatedAt).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("failed to create bank account: %w", err)
	}
	return nil
}

func (t *pgTx) SetBankBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE bank_accounts SET balance = $2::numeric WHERE id = $1`, id, balance.String())
	if err != nil {
		return fmt.Errorf("failed to set bank balance %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return treasury.ErrPoolNotFound
	}
	return nil
}

func (t *pgTx) AppendCashTransaction(ctx context.Context, c *treasury.CashTransaction) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO cash_transactions (pool, currency, bank_account_id, kind, amount,
			description, origin_kind, origin_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10)
		RETURNING id`,
		c.Pool, c.Currency, c.BankAccountID, c.Kind, c.Amount.String(),
		c.Description, c.OriginKind, c.OriginID, c.CreatedBy, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to append cash transaction: %w", err)
	}
	return nil
}

func (t *pgTx) ListCashTransactions(ctx context.Context, filter treasury.CashTxFilter) ([]*treasury.CashTransaction, error) {
	q := `SELECT id, pool, currency, bank_account_id, kind, amount::text,
		description, origin_kind, origin_id, created_by, created_at
		FROM cash_transactions WHERE TRUE`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		q += fmt.Sprintf(" AND %s = $%d", cond, len(args))
	}
	if filter.Pool != "" {
		add("pool", filter.Pool)
	}
	if filter.Currency != "" {
		add("currency", filter.Currency)
	}
	if filter.BankAccountID != 0 {
		add("bank_account_id", filter.BankAccountID)
	}
	if filter.OriginKind != "" {
		add("origin_kind", filter.OriginKind)
	}
	if filter.OriginID != 0 {
		add("origin_id", filter.OriginID)
	}
	q += " ORDER BY id"

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cash transactions: %w", err)
	}
	defer rows.Close()

	var out []*treasury.CashTransaction
	for rows.Next() {
		var c treasury.CashTransaction
		var amount string
		if err := rows.Scan(&c.ID, &c.Pool, &c.Currency, &c.BankAccountID, &c.Kind,
			&amount, &c.Description, &c.OriginKind, &c.OriginID, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Amount = parseDec(amount)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// ---- sub-ledger ----

const partnershipCols = `id, partner_name, zone_code, percentage::text,
	expense_percentage::text, share_expenses, active, created_at`

func scanPartnership(row pgx.Row) (*subledger.Partnership, error) {
	var p subledger.Partnership
	var pct, expPct string
	err := row.Scan(&p.ID, &p.PartnerName, &p.ZoneCode, &pct, &expPct,
		&p.ShareExpenses, &p.Active, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Percentage = parseDec(pct)
	p.ExpensePercentage = parseDec(expPct)
	return &p, nil
}

func (t *pgTx) GetPartnership(ctx context.Context, id int64) (*subledger.Partnership, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+partnershipCols+` FROM partnerships WHERE id = $1`, id)
	p, err := scanPartnership(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subledger.ErrOwnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load partnership %d: %w", id, err)
	}
	return p, nil
}

func (t *pgTx) ListPartnerships(ctx context.Context, filter subledger.PartnershipFilter) ([]*subledger.Partnership, error) {
	q := `SELECT ` + partnershipCols + ` FROM partnerships WHERE TRUE`
	var args []any
	if filter.ZoneCode != "" {
		args = append(args, filter.ZoneCode)
		q += fmt.Sprintf(" AND zone_code = $%d", len(args))
	}
	if filter.ActiveOnly {
		q += " AND active"
	}
	q += " ORDER BY id"

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list partnerships: %w", err)
	}
	defer rows.Close()

	var out []*subledger.Partnership
	for rows.Next() {
		p, err := scanPartnership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) CreatePartnership(ctx context.Context, p *subledger.Partnership) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO partnerships (partner_name, zone_code, percentage, expense_percentage,
			share_expenses, active, created_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7)
		RETURNING id`,
		p.PartnerName, p.ZoneCode, p.Percentage.String(), p.ExpensePercentage.String(),
		p.ShareExpenses, p.Active, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create partnership: %w", err)
	}
	return nil
}

func (t *pgTx) GetSupplier(ctx context.Context, id int64) (*subledger.Supplier, error) {
	var s subledger.Supplier
	err := t.tx.QueryRow(ctx,
		`SELECT id, code, name, currency, phone, email, active, created_at FROM suppliers WHERE id = $1`, id).
		Scan(&s.ID, &s.Code, &s.Name, &s.Currency, &s.Phone, &s.Email, &s.Active, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subledger.ErrOwnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load supplier %d: %w", id, err)
	}
	return &s, nil
}

func (t *pgTx) ListSuppliers(ctx context.Context) ([]*subledger.Supplier, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, code, name, currency, phone, email, active, created_at FROM suppliers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	defer rows.Close()

	var out []*subledger.Supplier
	for rows.Next() {
		var s subledger.Supplier
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.Currency, &s.Phone, &s.Email, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (t *pgTx) CreateSupplier(ctx context.Context, s *subledger.Supplier) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO suppliers (code, name, currency, phone, email, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		s.Code, s.Name, s.Currency, s.Phone, s.Email, s.Active, s.CreatedAt).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to create supplier: %w", err)
	}
	return nil
}

func (t *pgTx) OwnerBalance(ctx context.Context, owner subledger.OwnerKind, ownerID int64, currency string) (decimal.Decimal, error) {
	var balance string
	err := t.tx.QueryRow(ctx, `
		SELECT balance::text FROM owner_balances
		WHERE owner = $1 AND owner_id = $2 AND currency = $3 FOR UPDATE`,
		owner, ownerID, currency).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load owner balance: %w", err)
	}
	return parseDec(balance), nil
}

func (t *pgTx) SetOwnerBalance(ctx context.Context, owner subledger.OwnerKind, ownerID int64, currency string, balance decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO owner_balances (owner, owner_id, currency, balance)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (owner, owner_id, currency) DO UPDATE SET balance = EXCLUDED.balance`,
		owner, ownerID, currency, balance.String())
	if err != nil {
		return fmt.Errorf("failed to set owner balance: %w", err)
	}
	return nil
}

func (t *pgTx) AppendSubEntry(ctx context.Context, e *subledger.Entry) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO sub_entries (owner, owner_id, kind, currency, debit, credit, balance,
			description, origin_kind, origin_id, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10, $11)
		RETURNING id`,
		e.Owner, e.OwnerID, e.Kind, e.Currency,
		e.Debit.String(), e.Credit.String(), e.Balance.String(),
		e.Description, e.OriginKind, e.OriginID, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to append sub-ledger entry: %w", err)
	}
	return nil
}

const subEntryCols = `id, owner, owner_id, kind, currency, debit::text, credit::text,
	balance::text, description, origin_kind, origin_id, created_at`

func scanSubEntry(row pgx.Row) (*subledger.Entry, error) {
	var e subledger.Entry
	var debit, credit, balance string
	err := row.Scan(&e.ID, &e.Owner, &e.OwnerID, &e.Kind, &e.Currency, &debit, &credit,
		&balance, &e.Description, &e.OriginKind, &e.OriginID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Debit = parseDec(debit)
	e.Credit = parseDec(credit)
	e.Balance = parseDec(balance)
	return &e, nil
}

func (t *pgTx) ListSubEntries(ctx context.Context, filter subledger.EntryFilter) ([]*subledger.Entry, error) {
	q := `SELECT ` + subEntryCols + ` FROM sub_entries WHERE TRUE`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		q += fmt.Sprintf(" AND %s = $%d", cond, len(args))
	}
	if filter.Owner != "" {
		add("owner", filter.Owner)
	}
	if filter.OwnerID != 0 {
		add("owner_id", filter.OwnerID)
	}
	if filter.Currency != "" {
		add("currency", filter.Currency)
	}
	if filter.OriginKind != "" {
		add("origin_kind", filter.OriginKind)
	}
	if filter.OriginID != 0 {
		add("origin_id", filter.OriginID)
	}
	q += " ORDER BY id"

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sub-ledger entries: %w", err)
	}
	defer rows.Close()

	var out []*subledger.Entry
	for rows.Next() {
		e, err := scanSubEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) DeleteSubEntries(ctx context.Context, originKind string, originID int64) ([]*subledger.Entry, error) {
	rows, err := t.tx.Query(ctx, `
		DELETE FROM sub_entries WHERE origin_kind = $1 AND origin_id = $2
		RETURNING `+subEntryCols, originKind, originID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete sub-ledger entries: %w", err)
	}
	defer rows.Close()

	var out []*subledger.Entry
	for rows.Next() {
		e, err := scanSubEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
