package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/resortledger/internal/events"
)

func marshalLines(lines []events.PurchaseBillLine) ([]byte, error) {
	if lines == nil {
		lines = []events.PurchaseBillLine{}
	}
	return json.Marshal(lines)
}

func recordFilterWhere(f events.RecordFilter, args *[]any) string {
	q := ""
	if f.ZoneCode != "" {
		*args = append(*args, f.ZoneCode)
		q += fmt.Sprintf(" AND zone_code = $%d", len(*args))
	}
	if !f.From.IsZero() {
		*args = append(*args, f.From)
		q += fmt.Sprintf(" AND date >= $%d", len(*args))
	}
	if !f.To.IsZero() {
		*args = append(*args, f.To)
		q += fmt.Sprintf(" AND date <= $%d", len(*args))
	}
	if f.Currency != "" {
		*args = append(*args, f.Currency)
		q += fmt.Sprintf(" AND currency = $%d", len(*args))
	}
	return q
}

// ---- revenue receipts ----

const receiptCols = `id, zone_code, date, amount::text, currency, method,
	description, posted, shares_calculated, created_by, created_at`

func scanReceipt(row pgx.Row) (*events.RevenueReceipt, error) {
	var r events.RevenueReceipt
	var amount string
	err := row.Scan(&r.ID, &r.ZoneCode, &r.Date, &amount, &r.Currency, &r.Method,
		&r.Description, &r.Posted, &r.SharesCalculated, &r.CreatedBy, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Amount = parseDec(amount)
	return &r, nil
}

func (t *pgTx) CreateRevenueReceipt(ctx context.Context, r *events.RevenueReceipt) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO revenue_receipts (zone_code, date, amount, currency, method,
			description, posted, shares_calculated, created_by, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		r.ZoneCode, r.Date, r.Amount.String(), r.Currency, r.Method,
		r.Description, r.Posted, r.SharesCalculated, r.CreatedBy, r.CreatedAt).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("failed to create revenue receipt: %w", err)
	}
	return nil
}

func (t *pgTx) GetRevenueReceipt(ctx context.Context, id int64) (*events.RevenueReceipt, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+receiptCols+` FROM revenue_receipts WHERE id = $1`, id)
	r, err := scanReceipt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load revenue receipt %d: %w", id, err)
	}
	return r, nil
}

func (t *pgTx) ListRevenueReceipts(ctx context.Context, filter events.RecordFilter) ([]*events.RevenueReceipt, error) {
	var args []any
	q := `SELECT ` + receiptCols + ` FROM revenue_receipts WHERE TRUE` +
		recordFilterWhere(filter, &args) + ` ORDER BY id`

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list revenue receipts: %w", err)
	}
	defer rows.Close()

	var out []*events.RevenueReceipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *pgTx) SetRevenueReceiptFlags(ctx context.Context, id int64, posted, sharesCalculated bool) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE revenue_receipts SET posted = $2, shares_calculated = $3 WHERE id = $1`,
		id, posted, sharesCalculated)
	if err != nil {
		return fmt.Errorf("failed to update revenue receipt %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteRevenueReceipt(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM revenue_receipts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete revenue receipt %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

// ---- expense records ----

const expenseCols = `id, zone_code, date, amount::text, currency, method, category,
	charge_partners, description, posted, shares_calculated, created_by, created_at`

func scanExpense(row pgx.Row) (*events.ExpenseRecord, error) {
	var r events.ExpenseRecord
	var amount string
	err := row.Scan(&r.ID, &r.ZoneCode, &r.Date, &amount, &r.Currency, &r.Method, &r.Category,
		&r.ChargePartners, &r.Description, &r.Posted, &r.SharesCalculated, &r.CreatedBy, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Amount = parseDec(amount)
	return &r, nil
}

func (t *pgTx) CreateExpenseRecord(ctx context.Context, r *events.ExpenseRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO expense_records (zone_code, date, amount, currency, method, category,
			charge_partners, description, posted, shares_calculated, created_by, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		r.ZoneCode, r.Date, r.Amount.String(), r.Currency, r.Method, r.Category,
		r.ChargePartners, r.Description, r.Posted, r.SharesCalculated, r.CreatedBy, r.CreatedAt).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("failed to create expense record: %w", err)
	}
	return nil
}

func (t *pgTx) GetExpenseRecord(ctx context.Context, id int64) (*events.ExpenseRecord, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+expenseCols+` FROM expense_records WHERE id = $1`, id)
	r, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load expense record %d: %w", id, err)
	}
	return r, nil
}

func (t *pgTx) ListExpenseRecords(ctx context.Context, filter events.RecordFilter) ([]*events.ExpenseRecord, error) {
	var args []any
	q := `SELECT ` + expenseCols + ` FROM expense_records WHERE TRUE` +
		recordFilterWhere(filter, &args) + ` ORDER BY id`

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expense records: %w", err)
	}
	defer rows.Close()

	var out []*events.ExpenseRecord
	for rows.Next() {
		r, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *pgTx) SetExpenseRecordFlags(ctx context.Context, id int64, posted, sharesCalculated bool) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE expense_records SET posted = $2, shares_calculated = $3 WHERE id = $1`,
		id, posted, sharesCalculated)
	if err != nil {
		return fmt.Errorf("failed to update expense record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteExpenseRecord(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM expense_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

// ---- purchase bills ----

const billCols = `id, supplier_id, number, date, currency, lines, subtotal::text,
	tax::text, other_costs::text, total::text, posted, created_by, created_at`

func scanBill(row pgx.Row) (*events.PurchaseBill, error) {
	var b events.PurchaseBill
	var subtotal, tax, other, total string
	var lines []byte
	err := row.Scan(&b.ID, &b.SupplierID, &b.Number, &b.Date, &b.Currency, &lines,
		&subtotal, &tax, &other, &total, &b.Posted, &b.CreatedBy, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.Subtotal = parseDec(subtotal)
	b.Tax = parseDec(tax)
	b.OtherCosts = parseDec(other)
	b.Total = parseDec(total)
	if err := json.Unmarshal(lines, &b.Lines); err != nil {
		return nil, fmt.Errorf("failed to decode bill lines: %w", err)
	}
	return &b, nil
}

func (t *pgTx) CreatePurchaseBill(ctx context.Context, b *events.PurchaseBill) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	lines, err := marshalLines(b.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode bill lines: %w", err)
	}
	err = t.tx.QueryRow(ctx, `
		INSERT INTO purchase_bills (supplier_id, number, date, currency, lines, subtotal,
			tax, other_costs, total, posted, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9::numeric,
			$10, $11, $12) RETURNING id`,
		b.SupplierID, b.Number, b.Date, b.Currency, lines, b.Subtotal.String(),
		b.Tax.String(), b.OtherCosts.String(), b.Total.String(),
		b.Posted, b.CreatedBy, b.CreatedAt).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("failed to create purchase bill: %w", err)
	}
	return nil
}

func (t *pgTx) GetPurchaseBill(ctx context.Context, id int64) (*events.PurchaseBill, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+billCols+` FROM purchase_bills WHERE id = $1`, id)
	b, err := scanBill(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase bill %d: %w", id, err)
	}
	return b, nil
}

func (t *pgTx) ListPurchaseBills(ctx context.Context) ([]*events.PurchaseBill, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+billCols+` FROM purchase_bills ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase bills: %w", err)
	}
	defer rows.Close()

	var out []*events.PurchaseBill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (t *pgTx) SetPurchaseBillPosted(ctx context.Context, id int64, posted bool) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_bills SET posted = $2 WHERE id = $1`, id, posted)
	if err != nil {
		return fmt.Errorf("failed to update purchase bill %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (t *pgTx) DeletePurchaseBill(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_bills WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete purchase bill %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

// ---- purchase returns ----

const returnCols = `id, bill_id, supplier_id, date, currency, lines, total::text,
	posted, created_by, created_at`

func scanReturn(row pgx.Row) (*events.PurchaseReturn, error) {
	var r events.PurchaseReturn
	var total string
	var lines []byte
	err := row.Scan(&r.ID, &r.BillID, &r.SupplierID, &r.Date, &r.Currency, &lines,
		&total, &r.Posted, &r.CreatedBy, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Total = parseDec(total)
	if err := json.Unmarshal(lines, &r.Lines); err != nil {
		return nil, fmt.Errorf("failed to decode return lines: %w", err)
	}
	return &r, nil
}

func (t *pgTx) CreatePurchaseReturn(ctx context.Context, r *events.PurchaseReturn) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	lines, err := marshalLines(r.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode return lines: %w", err)
	}
	err = t.tx.QueryRow(ctx, `
		INSERT INTO purchase_returns (bill_id, supplier_id, date, currency, lines, total,
			posted, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9) RETURNING id`,
		r.BillID, r.SupplierID, r.Date, r.Currency, lines, r.Total.String(),
		r.Posted, r.CreatedBy, r.CreatedAt).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("failed to create purchase return: %w", err)
	}
	return nil
}

func (t *pgTx) GetPurchaseReturn(ctx context.Context, id int64) (*events.PurchaseReturn, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+returnCols+` FROM purchase_returns WHERE id = $1`, id)
	r, err := scanReturn(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase return %d: %w", id, err)
	}
	return r, nil
}

func (t *pgTx) ListPurchaseReturns(ctx context.Context) ([]*events.PurchaseReturn, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+returnCols+` FROM purchase_returns ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase returns: %w", err)
	}
	defer rows.Close()

	var out []*events.PurchaseReturn
	for rows.Next() {
		r, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *pgTx) SetPurchaseReturnPosted(ctx context.Context, id int64, posted bool) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_returns SET posted = $2 WHERE id = $1`, id, posted)
	if err != nil {
		return fmt.Errorf("failed to update purchase return %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (t *pgTx) DeletePurchaseReturn(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_returns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete purchase return %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

// ---- supplier payments ----

const supplierPayCols = `id, supplier_id, date, amount::text, currency, method,
	description, posted, created_by, created_at`

func scanSupplierPayment(row pgx.Row) (*events.SupplierPayment, error) {
	var p events.SupplierPayment
	var amount string
	err := row.Scan(&p.ID, &p.SupplierID, &p.Date, &amount, &p.Currency, &p.Method,
		&p.Description, &p.Posted, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Amount = parseDec(amount)
	return &p, nil
}

func (t *pgTx) CreateSupplierPayment(ctx context.Context, p *events.SupplierPayment) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO supplier_payments (supplier_id, date, amount, currency, method,
			description, posted, created_by, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9) RETURNING id`,
		p.SupplierID, p.Date, p.Amount.String(), p.Currency, p.Method,
		p.Description, p.Posted, p.CreatedBy, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create supplier payment: %w", err)
	}
	return nil
}

func (t *pgTx) GetSupplierPayment(ctx context.Context, id int64) (*events.SupplierPayment, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+supplierPayCols+` FROM supplier_payments WHERE id = $1`, id)
	p, err := scanSupplierPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load supplier payment %d: %w", id, err)
	}
	return p, nil
}

func (t *pgTx) ListSupplierPayments(ctx context.Context) ([]*events.SupplierPayment, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+supplierPayCols+` FROM supplier_payments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list supplier payments: %w", err)
	}
	defer rows.Close()

	var out []*events.SupplierPayment
	for rows.Next() {
		p, err := scanSupplierPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) SetSupplierPaymentPosted(ctx context.Context, id int64, posted bool) error {
	tag, err := t.tx.Exec(ctx, `UPDATE supplier_payments SET posted = $2 WHERE id = $1`, id, posted)
	if err != nil {
		return fmt.Errorf("failed to update supplier payment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteSupplierPayment(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM supplier_payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete supplier payment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

// ---- partner payments ----

const partnerPayCols = `id, partnership_id, date, amount::text, currency, method,
	description, posted, created_by, created_at`

func scanPartnerPayment(row pgx.Row) (*events.PartnerPayment, error) {
	var p events.PartnerPayment
	var amount string
	err := row.Scan(&p.ID, &p.PartnershipID, &p.Date, &amount, &p.Currency, &p.Method,
		&p.Description, &p.Posted, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Amount = parseDec(amount)
	return &p, nil
}

func (t *pgTx) CreatePartnerPayment(ctx context.Context, p *events.PartnerPayment) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO partner_payments (partnership_id, date, amount, currency, method,
			description, posted, created_by, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9) RETURNING id`,
		p.PartnershipID, p.Date, p.Amount.String(), p.Currency, p.Method,
		p.Description, p.Posted, p.CreatedBy, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create partner payment: %w", err)
	}
	return nil
}

func (t *pgTx) GetPartnerPayment(ctx context.Context, id int64) (*events.PartnerPayment, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+partnerPayCols+` FROM partner_payments WHERE id = $1`, id)
	p, err := scanPartnerPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load partner payment %d: %w", id, err)
	}
	return p, nil
}

func (t *pgTx) ListPartnerPayments(ctx context.Context) ([]*events.PartnerPayment, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+partnerPayCols+` FROM partner_payments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list partner payments: %w", err)
	}
	defer rows.Close()

	var out []*events.PartnerPayment
	for rows.Next() {
		p, err := scanPartnerPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) SetPartnerPaymentPosted(ctx context.Context, id int64, posted bool) error {
	tag, err := t.tx.Exec(ctx, `UPDATE partner_payments SET posted = $2 WHERE id = $1`, id, posted)
	if err != nil {
		return fmt.Errorf("failed to update partner payment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (t *pgTx) DeletePartnerPayment(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM partner_payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete partner payment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

// ---- maintenance ----

// Wipe clears derived state so the journal can be rebuilt from the event
// records. Master data stays; cached balances fall back to opening values.
func (t *pgTx) Wipe(ctx context.Context) error {
	stmts := []string{
		`DELETE FROM journal_lines`,
		`DELETE FROM journal_entries`,
		`DELETE FROM cash_transactions`,
		`DELETE FROM sub_entries`,
		`DELETE FROM owner_balances`,
		`DELETE FROM seq_counters WHERE name = 'journal_entry'`,
		`UPDATE accounts SET current_balance = opening_balance`,
		`UPDATE treasury_pools SET balance = 0, updated_at = now()`,
		`UPDATE bank_accounts SET balance = opening_balance`,
		`UPDATE revenue_receipts SET posted = FALSE, shares_calculated = FALSE`,
		`UPDATE expense_records SET posted = FALSE, shares_calculated = FALSE`,
		`UPDATE purchase_bills SET posted = FALSE`,
		`UPDATE purchase_returns SET posted = FALSE`,
		`UPDATE supplier_payments SET posted = FALSE`,
		`UPDATE partner_payments SET posted = FALSE`,
	}
	for _, stmt := range stmts {
		if _, err := t.tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to wipe accounting state: %w", err)
		}
	}
	return nil
}
