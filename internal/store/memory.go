package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/resortledger/internal/coa"
	"github.com/example/resortledger/internal/events"
	"github.com/example/resortledger/internal/fx"
	"github.com/example/resortledger/internal/ledger"
	"github.com/example/resortledger/internal/subledger"
	"github.com/example/resortledger/internal/treasury"
)

type ownerKey struct {
	owner    subledger.OwnerKind
	ownerID  int64
	currency string
}

// memoryData holds everything the in-memory store knows. Slices keep
// insertion order so log replays are deterministic.
type memoryData struct {
	accounts []*coa.Account
	rates    []*fx.Rate

	entrySeq int64
	entries  []*ledger.JournalEntry

	pools   []*treasury.Pool
	banks   []*treasury.BankAccount
	bankSeq int64
	cashTxs []*treasury.CashTransaction
	cashSeq int64

	partnerships   []*subledger.Partnership
	partnershipSeq int64
	suppliers      []*subledger.Supplier
	supplierSeq    int64
	subEntries     []*subledger.Entry
	subSeq         int64
	ownerBalances  map[ownerKey]decimal.Decimal

	receipts         []*events.RevenueReceipt
	receiptSeq       int64
	expenses         []*events.ExpenseRecord
	expenseSeq       int64
	bills            []*events.PurchaseBill
	billSeq          int64
	returns          []*events.PurchaseReturn
	returnSeq        int64
	supplierPayments []*events.SupplierPayment
	supplierPaySeq   int64
	partnerPayments  []*events.PartnerPayment
	partnerPaySeq    int64
}

func newMemoryData() *memoryData {
	return &memoryData{ownerBalances: make(map[ownerKey]decimal.Decimal)}
}

// clone deep-copies the data set so a failed transaction can restore it.
func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		entrySeq:       d.entrySeq,
		bankSeq:        d.bankSeq,
		cashSeq:        d.cashSeq,
		partnershipSeq: d.partnershipSeq,
		supplierSeq:    d.supplierSeq,
		subSeq:         d.subSeq,
		receiptSeq:     d.receiptSeq,
		expenseSeq:     d.expenseSeq,
		billSeq:        d.billSeq,
		returnSeq:      d.returnSeq,
		supplierPaySeq: d.supplierPaySeq,
		partnerPaySeq:  d.partnerPaySeq,
		ownerBalances:  make(map[ownerKey]decimal.Decimal, len(d.ownerBalances)),
	}
	for k, v := range d.ownerBalances {
		c.ownerBalances[k] = v
	}
	for _, a := range d.accounts {
		cp := *a
		c.accounts = append(c.accounts, &cp)
	}
	for _, r := range d.rates {
		cp := *r
		c.rates = append(c.rates, &cp)
	}
	for _, e := range d.entries {
		c.entries = append(c.entries, copyEntry(e))
	}
	for _, p := range d.pools {
		cp := *p
		c.pools = append(c.pools, &cp)
	}
	for _, b := range d.banks {
		cp := *b
		c.banks = append(c.banks, &cp)
	}
	for _, t := range d.cashTxs {
		cp := *t
		c.cashTxs = append(c.cashTxs, &cp)
	}
	for _, p := range d.partnerships {
		cp := *p
		c.partnerships = append(c.partnerships, &cp)
	}
	for _, s := range d.suppliers {
		cp := *s
		c.suppliers = append(c.suppliers, &cp)
	}
	for _, e := range d.subEntries {
		cp := *e
		c.subEntries = append(c.subEntries, &cp)
	}
	for _, r := range d.receipts {
		cp := *r
		c.receipts = append(c.receipts, &cp)
	}
	for _, r := range d.expenses {
		cp := *r
		c.expenses = append(c.expenses, &cp)
	}
	for _, b := range d.bills {
		c.bills = append(c.bills, copyBill(b))
	}
	for _, r := range d.returns {
		c.returns = append(c.returns, copyReturn(r))
	}
	for _, p := range d.supplierPayments {
		cp := *p
		c.supplierPayments = append(c.supplierPayments, &cp)
	}
	for _, p := range d.partnerPayments {
		cp := *p
		c.partnerPayments = append(c.partnerPayments, &cp)
	}
	return c
}

func copyEntry(e *ledger.JournalEntry) *ledger.JournalEntry {
	cp := *e
	cp.Lines = append([]ledger.JournalLine(nil), e.Lines...)
	return &cp
}

func copyBill(b *events.PurchaseBill) *events.PurchaseBill {
	cp := *b
	cp.Lines = append([]events.PurchaseBillLine(nil), b.Lines...)
	return &cp
}

func copyReturn(r *events.PurchaseReturn) *events.PurchaseReturn {
	cp := *r
	cp.Lines = append([]events.PurchaseBillLine(nil), r.Lines...)
	return &cp
}

// Memory is an in-memory Store. Transactions serialize on one mutex and roll
// back by restoring a snapshot, so InTx gives the same all-or-nothing and
// gapless-sequence guarantees as the SQL store. Intended for tests.
type Memory struct {
	mu   sync.Mutex
	data *memoryData
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: newMemoryData()}
}

var _ Store = (*Memory)(nil)

// InTx runs fn against the store under the lock. On error the pre-transaction
// snapshot is restored and nothing fn wrote survives.
func (m *Memory) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	if err := fn(&memTx{data: m.data}); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

// memTx operates on the live data set without locking; the Memory methods
// and InTx hold the lock around it.
type memTx struct {
	data *memoryData
}

var _ Tx = (*memTx)(nil)

// ---- chart of accounts ----

func (t *memTx) findAccount(code string) *coa.Account {
	for _, a := range t.data.accounts {
		if a.Code == code {
			return a
		}
	}
	return nil
}

func (t *memTx) GetAccount(_ context.Context, code string) (*coa.Account, error) {
	a := t.findAccount(code)
	if a == nil {
		return nil, coa.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (t *memTx) ListAccounts(_ context.Context, filter coa.AccountFilter) ([]*coa.Account, error) {
	var out []*coa.Account
	for _, a := range t.data.accounts {
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.ActiveOnly && !a.Active {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (t *memTx) CreateAccount(_ context.Context, account *coa.Account) error {
	if t.findAccount(account.Code) != nil {
		return coa.ErrDuplicateCode
	}
	cp := *account
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	t.data.accounts = append(t.data.accounts, &cp)
	return nil
}

func (t *memTx) AddToAccountBalance(_ context.Context, code string, delta decimal.Decimal) error {
	a := t.findAccount(code)
	if a == nil {
		return coa.ErrNotFound
	}
	a.CurrentBalance = a.CurrentBalance.Add(delta)
	return nil
}

func (t *memTx) SetAccountBalance(_ context.Context, code string, balance decimal.Decimal) error {
	a := t.findAccount(code)
	if a == nil {
		return coa.ErrNotFound
	}
	a.CurrentBalance = balance
	return nil
}

// ---- exchange rates ----

func (t *memTx) PutRate(_ context.Context, rate *fx.Rate) error {
	for _, r := range t.data.rates {
		if r.Currency == rate.Currency && r.Type == rate.Type && r.Date.Equal(rate.Date) {
			r.Rate = rate.Rate
			r.Source = rate.Source
			return nil
		}
	}
	cp := *rate
	t.data.rates = append(t.data.rates, &cp)
	return nil
}

func (t *memTx) LatestRate(_ context.Context, currency string, onOrBefore time.Time, rateType fx.RateType) (*fx.Rate, error) {
	var best *fx.Rate
	for _, r := range t.data.rates {
		if r.Currency != currency || r.Type != rateType || r.Date.After(onOrBefore) {
			continue
		}
		if best == nil || r.Date.After(best.Date) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

// ---- journal ----

func (t *memTx) NextEntrySequence(_ context.Context) (int64, error) {
	t.data.entrySeq++
	return t.data.entrySeq, nil
}

func (t *memTx) InsertEntry(_ context.Context, entry *ledger.JournalEntry) error {
	for _, e := range t.data.entries {
		if e.Seq == entry.Seq {
			return &ledger.DuplicateSequenceError{Seq: entry.Seq}
		}
	}
	t.data.entries = append(t.data.entries, copyEntry(entry))
	return nil
}

func (t *memTx) GetEntry(_ context.Context, seq int64) (*ledger.JournalEntry, error) {
	for _, e := range t.data.entries {
		if e.Seq == seq {
			return copyEntry(e), nil
		}
	}
	return nil, ledger.ErrEntryNotFound
}

func (t *memTx) ListEntries(_ context.Context, filter ledger.EntryFilter) ([]*ledger.JournalEntry, error) {
	var out []*ledger.JournalEntry
	for _, e := range t.data.entries {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if len(filter.OriginKinds) > 0 {
			match := false
			for _, k := range filter.OriginKinds {
				if e.OriginKind == k {
					match = true
					break
				}
			}
			if !match {
				continue
			}
			if filter.OriginID != 0 && e.OriginID != filter.OriginID {
				continue
			}
		}
		out = append(out, copyEntry(e))
	}
	return out, nil
}

func (t *memTx) DeleteEntry(_ context.Context, seq int64) error {
	for i, e := range t.data.entries {
		if e.Seq == seq {
			t.data.entries = append(t.data.entries[:i], t.data.entries[i+1:]...)
			return nil
		}
	}
	return ledger.ErrEntryNotFound
}

func lineMatches(e *ledger.JournalEntry, ln ledger.JournalLine, q ledger.LineQuery) bool {
	if q.AccountCode != "" && ln.AccountCode != q.AccountCode {
		return false
	}
	if !q.AsOf.IsZero() && e.Date.After(q.AsOf) {
		return false
	}
	if q.Currency != "" && ln.Currency != q.Currency {
		return false
	}
	return true
}

func (t *memTx) SumLines(_ context.Context, q ledger.LineQuery) (decimal.Decimal, decimal.Decimal, error) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, e := range t.data.entries {
		for _, ln := range e.Lines {
			if !lineMatches(e, ln, q) {
				continue
			}
			debit = debit.Add(ln.Debit)
			credit = credit.Add(ln.Credit)
		}
	}
	return debit, credit, nil
}

func (t *memTx) SumLinesByCurrency(_ context.Context, q ledger.LineQuery) ([]ledger.CurrencySum, error) {
	sums := make(map[string]*ledger.CurrencySum)
	var order []string
	for _, e := range t.data.entries {
		for _, ln := range e.Lines {
			if !lineMatches(e, ln, q) {
				continue
			}
			s, ok := sums[ln.Currency]
			if !ok {
				s = &ledger.CurrencySum{Currency: ln.Currency}
				sums[ln.Currency] = s
				order = append(order, ln.Currency)
			}
			s.Debit = s.Debit.Add(ln.Debit)
			s.Credit = s.Credit.Add(ln.Credit)
		}
	}
	out := make([]ledger.CurrencySum, 0, len(order))
	for _, cur := range order {
		out = append(out, *sums[cur])
	}
	return out, nil
}

func (t *memTx) LineCurrencies(_ context.Context, asOf time.Time) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, e := range t.data.entries {
		if !asOf.IsZero() && e.Date.After(asOf) {
			continue
		}
		for _, ln := range e.Lines {
			if ln.Currency == "" || seen[ln.Currency] {
				continue
			}
			seen[ln.Currency] = true
			out = append(out, ln.Currency)
		}
	}
	return out, nil
}

func (t *memTx) SumTypeByCurrency(_ context.Context, accountType coa.AccountType, from, to time.Time) ([]ledger.CurrencySum, error) {
	types := make(map[string]coa.AccountType)
	for _, a := range t.data.accounts {
		types[a.Code] = a.Type
	}

	sums := make(map[string]*ledger.CurrencySum)
	var order []string
	for _, e := range t.data.entries {
		if !from.IsZero() && e.Date.Before(from) {
			continue
		}
		if !to.IsZero() && e.Date.After(to) {
			continue
		}
		for _, ln := range e.Lines {
			if types[ln.AccountCode] != accountType {
				continue
			}
			s, ok := sums[ln.Currency]
			if !ok {
				s = &ledger.CurrencySum{Currency: ln.Currency}
				sums[ln.Currency] = s
				order = append(order, ln.Currency)
			}
			s.Debit = s.Debit.Add(ln.Debit)
			s.Credit = s.Credit.Add(ln.Credit)
		}
	}
	out := make([]ledger.CurrencySum, 0, len(order))
	for _, cur := range order {
		out = append(out, *sums[cur])
	}
	return out, nil
}

// ---- treasury ----

func (t *memTx) findPool(currency string) *treasury.Pool {
	for _, p := range t.data.pools {
		if p.Currency == currency {
			return p
		}
	}
	return nil
}

func (t *memTx) GetPool(_ context.Context, currency string) (*treasury.Pool, error) {
	p := t.findPool(currency)
	if p == nil {
		return nil, treasury.ErrPoolNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) EnsurePool(_ context.Context, currency string) (*treasury.Pool, error) {
	p := t.findPool(currency)
	if p == nil {
		p = &treasury.Pool{Currency: currency, Balance: decimal.Zero, UpdatedAt: time.Now().UTC()}
		t.data.pools = append(t.data.pools, p)
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) ListPools(_ context.Context) ([]*treasury.Pool, error) {
	out := make([]*treasury.Pool, 0, len(t.data.pools))
	for _, p := range t.data.pools {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (t *memTx) SetPoolBalance(_ context.Context, currency string, balance decimal.Decimal) error {
	p := t.findPool(currency)
	if p == nil {
		return treasury.ErrPoolNotFound
	}
	p.Balance = balance
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *memTx) findBank(id int64) *treasury.BankAccount {
	for _, b := range t.data.banks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (t *memTx) GetBankAccount(_ context.Context, id int64) (*treasury.BankAccount, error) {
	b := t.findBank(id)
	if b == nil {
		return nil, treasury.ErrPoolNotFound
	}
	cp := *b
	return &cp, nil
}

func (t *memTx) ListBankAccounts(_ context.Context) ([]*treasury.BankAccount, error) {
	out := make([]*treasury.BankAccount, 0, len(t.data.banks))
	for _, b := range t.data.banks {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (t *memTx) CreateBankAccount(_ context.Context, account *treasury.BankAccount) error {
	t.data.bankSeq++
	account.ID = t.data.bankSeq
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	cp := *account
	t.data.banks = append(t.data.banks, &cp)
	return nil
}

func (t *memTx) SetBankBalance(_ context.Context, id int64, balance decimal.Decimal) error {
	b := t.findBank(id)
	if b == nil {
		return treasury.ErrPoolNotFound
	}
	b.Balance = balance
	return nil
}

func (t *memTx) AppendCashTransaction(_ context.Context, tx *treasury.CashTransaction) error {
	t.data.cashSeq++
	tx.ID = t.data.cashSeq
	cp := *tx
	t.data.cashTxs = append(t.data.cashTxs, &cp)
	return nil
}

func (t *memTx) ListCashTransactions(_ context.Context, filter treasury.CashTxFilter) ([]*treasury.CashTransaction, error) {
	var out []*treasury.CashTransaction
	for _, tx := range t.data.cashTxs {
		if filter.Pool != "" && tx.Pool != filter.Pool {
			continue
		}
		if filter.Currency != "" && tx.Currency != filter.Currency {
			continue
		}
		if filter.BankAccountID != 0 && tx.BankAccountID != filter.BankAccountID {
			continue
		}
		if filter.OriginKind != "" && tx.OriginKind != filter.OriginKind {
			continue
		}
		if filter.OriginID != 0 && tx.OriginID != filter.OriginID {
			continue
		}
		cp := *tx
		out = append(out, &cp)
	}
	return out, nil
}

// ---- sub-ledger ----

func (t *memTx) GetPartnership(_ context.Context, id int64) (*subledger.Partnership, error) {
	for _, p := range t.data.partnerships {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, subledger.ErrOwnerNotFound
}

func (t *memTx) ListPartnerships(_ context.Context, filter subledger.PartnershipFilter) ([]*subledger.Partnership, error) {
	var out []*subledger.Partnership
	for _, p := range t.data.partnerships {
		if filter.ZoneCode != "" && p.ZoneCode != filter.ZoneCode {
			continue
		}
		if filter.ActiveOnly && !p.Active {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (t *memTx) CreatePartnership(_ context.Context, p *subledger.Partnership) error {
	t.data.partnershipSeq++
	p.ID = t.data.partnershipSeq
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	t.data.partnerships = append(t.data.partnerships, &cp)
	return nil
}

func (t *memTx) GetSupplier(_ context.Context, id int64) (*subledger.Supplier, error) {
	for _, s := range t.data.suppliers {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, subledger.ErrOwnerNotFound
}

func (t *memTx) ListSuppliers(_ context.Context) ([]*subledger.Supplier, error) {
	out := make([]*subledger.Supplier, 0, len(t.data.suppliers))
	for _, s := range t.data.suppliers {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (t *memTx) CreateSupplier(_ context.Context, s *subledger.Supplier) error {
	t.data.supplierSeq++
	s.ID = t.data.supplierSeq
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	cp := *s
	t.data.suppliers = append(t.data.suppliers, &cp)
	return nil
}

func (t *memTx) OwnerBalance(_ context.Context, owner subledger.OwnerKind, ownerID int64, currency string) (decimal.Decimal, error) {
	return t.data.ownerBalances[ownerKey{owner, ownerID, currency}], nil
}

func (t *memTx) SetOwnerBalance(_ context.Context, owner subledger.OwnerKind, ownerID int64, currency string, balance decimal.Decimal) error {
	t.data.ownerBalances[ownerKey{owner, ownerID, currency}] = balance
	return nil
}

func (t *memTx) AppendSubEntry(_ context.Context, e *subledger.Entry) error {
	t.data.subSeq++
	e.ID = t.data.subSeq
	cp := *e
	t.data.subEntries = append(t.data.subEntries, &cp)
	return nil
}

func (t *memTx) ListSubEntries(_ context.Context, filter subledger.EntryFilter) ([]*subledger.Entry, error) {
	var out []*subledger.Entry
	for _, e := range t.data.subEntries {
		if filter.Owner != "" && e.Owner != filter.Owner {
			continue
		}
		if filter.OwnerID != 0 && e.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Currency != "" && e.Currency != filter.Currency {
			continue
		}
		if filter.OriginKind != "" && e.OriginKind != filter.OriginKind {
			continue
		}
		if filter.OriginID != 0 && e.OriginID != filter.OriginID {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (t *memTx) DeleteSubEntries(_ context.Context, originKind string, originID int64) ([]*subledger.Entry, error) {
	var removed []*subledger.Entry
	kept := t.data.subEntries[:0]
	for _, e := range t.data.subEntries {
		if e.OriginKind == originKind && e.OriginID == originID {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	t.data.subEntries = kept
	return removed, nil
}

// ---- event records ----

func (t *memTx) CreateRevenueReceipt(_ context.Context, r *events.RevenueReceipt) error {
	t.data.receiptSeq++
	r.ID = t.data.receiptSeq
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	cp := *r
	t.data.receipts = append(t.data.receipts, &cp)
	return nil
}

func (t *memTx) GetRevenueReceipt(_ context.Context, id int64) (*events.RevenueReceipt, error) {
	for _, r := range t.data.receipts {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, events.ErrNotFound
}

func recordMatches(zone string, date time.Time, currency string, f events.RecordFilter) bool {
	if f.ZoneCode != "" && zone != f.ZoneCode {
		return false
	}
	if !f.From.IsZero() && date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && date.After(f.To) {
		return false
	}
	if f.Currency != "" && currency != f.Currency {
		return false
	}
	return true
}

func (t *memTx) ListRevenueReceipts(_ context.Context, filter events.RecordFilter) ([]*events.RevenueReceipt, error) {
	var out []*events.RevenueReceipt
	for _, r := range t.data.receipts {
		if !recordMatches(r.ZoneCode, r.Date, r.Currency, filter) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (t *memTx) SetRevenueReceiptFlags(_ context.Context, id int64, posted, sharesCalculated bool) error {
	for _, r := range t.data.receipts {
		if r.ID == id {
			r.Posted = posted
			r.SharesCalculated = sharesCalculated
			return nil
		}
	}
	return events.ErrNotFound
}

func (t *memTx) DeleteRevenueReceipt(_ context.Context, id int64) error {
	for i, r := range t.data.receipts {
		if r.ID == id {
			t.data.receipts = append(t.data.receipts[:i], t.data.receipts[i+1:]...)
			return nil
		}
	}
	return events.ErrNotFound
}

func (t *memTx) CreateExpenseRecord(_ context.Context, r *events.ExpenseRecord) error {
	t.data.expenseSeq++
	r.ID = t.data.expenseSeq
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	cp := *r
	t.data.expenses = append(t.data.expenses, &cp)
	return nil
}

func (t *memTx) GetExpenseRecord(_ context.Context, id int64) (*events.ExpenseRecord, error) {
	for _, r := range t.data.expenses {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, events.ErrNotFound
}

func (t *memTx) ListExpenseRecords(_ context.Context, filter events.RecordFilter) ([]*events.ExpenseRecord, error) {
	var out []*events.ExpenseRecord
	for _, r := range t.data.expenses {
		if !recordMatches(r.ZoneCode, r.Date, r.Currency, filter) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (t *memTx) SetExpenseRecordFlags(_ context.Context, id int64, posted, sharesCalculated bool) error {
	for _, r := range t.data.expenses {
		if r.ID == id {
			r.Posted = posted
			r.SharesCalculated = sharesCalculated
			return nil
		}
	}
	return events.ErrNotFound
}

func (t *memTx) DeleteExpenseRecord(_ context.Context, id int64) error {
	for i, r := range t.data.expenses {
		if r.ID == id {
			t.data.expenses = append(t.data.expenses[:i], t.data.expenses[i+1:]...)
			return nil
		}
	}
	return events.ErrNotFound
}

func (t *memTx) CreatePurchaseBill(_ context.Context, b *events.PurchaseBill) error {
	t.data.billSeq++
	b.ID = t.data.billSeq
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	t.data.bills = append(t.data.bills, copyBill(b))
	return nil
}

func (t *memTx) GetPurchaseBill(_ context.Context, id int64) (*events.PurchaseBill, error) {
	for _, b := range t.data.bills {
		if b.ID == id {
			return copyBill(b), nil
		}
	}
	return nil, events.ErrNotFound
}

func (t *memTx) ListPurchaseBills(_ context.Context) ([]*events.PurchaseBill, error) {
	out := make([]*events.PurchaseBill, 0, len(t.data.bills))
	for _, b := range t.data.bills {
		out = append(out, copyBill(b))
	}
	return out, nil
}

func (t *memTx) SetPurchaseBillPosted(_ context.Context, id int64, posted bool) error {
	for _, b := range t.data.bills {
		if b.ID == id {
			b.Posted = posted
			return nil
		}
	}
	return events.ErrNotFound
}

func (t *memTx) DeletePurchaseBill(_ context.Context, id int64) error {
	for i, b := range t.data.bills {
		if b.ID == id {
			t.data.bills = append(t.data.bills[:i], t.data.bills[i+1:]...)
			return nil
		}
	}
	return events.ErrNotFound
}

func (t *memTx) CreatePurchaseReturn(_ context.Context, r *events.PurchaseReturn) error {
	t.data.returnSeq++
	r.ID = t.data.returnSeq
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	t.data.returns = append(t.data.returns, copyReturn(r))
	return nil
}

func (t *memTx) GetPurchaseReturn(_ context.Context, id int64) (*events.PurchaseReturn, error) {
	for _, r := range t.data.returns {
		if r.ID == id {
			return copyReturn(r), nil
		}
	}
	return nil, events.ErrNotFound
}

func (t *memTx) ListPurchaseReturns(_ context.Context) ([]*events.PurchaseReturn, error) {
	out := make([]*events.PurchaseReturn, 0, len(t.data.returns))
	for _, r := range t.data.returns {
		out = append(out, copyReturn(r))
	}
	return out, nil
}

func (t *memTx) SetPurchaseReturnPosted(_ context.Context, id int64, posted bool) error {
	for _, r := range t.data.returns {
		if r.ID == id {
			r.Posted = posted
			return nil
		}
	}
	return events.ErrNotFound
}

func (t *memTx) DeletePurchaseReturn(_ context.Context, id int64) error {
	for i, r := range t.data.returns {
		if r.ID == id {
			t.data.returns = append(t.data.returns[:i], t.data.returns[i+1:]...)
			return nil
		}
	}
	return events.ErrNotFound
}

func (t *memTx) CreateSupplierPayment(_ context.Context, p *events.SupplierPayment) error {
	t.data.supplierPaySeq++
	p.ID = t.data.supplierPaySeq
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	t.data.supplierPayments = append(t.data.supplierPayments, &cp)
	return nil
}

func (t *memTx) GetSupplierPayment(_ context.Context, id int64) (*events.SupplierPayment, error) {
	for _, p := range t.data.supplierPayments {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, events.ErrNotFound
}

func (t *memTx) ListSupplierPayments(_ context.Context) ([]*events.SupplierPayment, error) {
	out := make([]*events.SupplierPayment, 0, len(t.data.supplierPayments))
	for _, p := range t.data.supplierPayments {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (t *memTx) SetSupplierPaymentPosted(_ context.Context, id int64, posted bool) error {
	for _, p := range t.data.supplierPayments {
		if p.ID == id {
			p.Posted = posted
			return nil
		}
	}
	return events.ErrNotFound
}

func (t *memTx) DeleteSupplierPayment(_ context.Context, id int64) error {
	for i, p := range t.data.supplierPayments {
		if p.ID == id {
			t.data.supplierPayments = append(t.data.supplierPayments[:i], t.data.supplierPayments[i+1:]...)
			return nil
		}
	}
	return events.ErrNotFound
}

func (t *memTx) CreatePartnerPayment(_ context.Context, p *events.PartnerPayment) error {
	t.data.partnerPaySeq++
	p.ID = t.data.partnerPaySeq
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	t.data.partnerPayments = append(t.data.partnerPayments, &cp)
	return nil
}

func (t *memTx) GetPartnerPayment(_ context.Context, id int64) (*events.PartnerPayment, error) {
	for _, p := range t.data.partnerPayments {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, events.ErrNotFound
}

func (t *memTx) ListPartnerPayments(_ context.Context) ([]*events.PartnerPayment, error) {
	out := make([]*events.PartnerPayment, 0, len(t.data.partnerPayments))
	for _, p := range t.data.partnerPayments {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (t *memTx) SetPartnerPaymentPosted(_ context.Context, id int64, posted bool) error {
	for _, p := range t.data.partnerPayments {
		if p.ID == id {
			p.Posted = posted
			return nil
		}
	}
	return events.ErrNotFound
}

func (t *memTx) DeletePartnerPayment(_ context.Context, id int64) error {
	for i, p := range t.data.partnerPayments {
		if p.ID == id {
			t.data.partnerPayments = append(t.data.partnerPayments[:i], t.data.partnerPayments[i+1:]...)
			return nil
		}
	}
	return events.ErrNotFound
}

// ---- maintenance ----

func (t *memTx) Wipe(_ context.Context) error {
	d := t.data
	d.entries = nil
	d.entrySeq = 0
	d.cashTxs = nil
	d.cashSeq = 0
	d.subEntries = nil
	d.subSeq = 0
	d.ownerBalances = make(map[ownerKey]decimal.Decimal)
	for _, a := range d.accounts {
		a.CurrentBalance = a.OpeningBalance
	}
	for _, p := range d.pools {
		p.Balance = decimal.Zero
		p.UpdatedAt = time.Now().UTC()
	}
	for _, b := range d.banks {
		b.Balance = b.OpeningBalance
	}
	for _, r := range d.receipts {
		r.Posted = false
		r.SharesCalculated = false
	}
	for _, r := range d.expenses {
		r.Posted = false
		r.SharesCalculated = false
	}
	for _, b := range d.bills {
		b.Posted = false
	}
	for _, r := range d.returns {
		r.Posted = false
	}
	for _, p := range d.supplierPayments {
		p.Posted = false
	}
	for _, p := range d.partnerPayments {
		p.Posted = false
	}
	return nil
}
