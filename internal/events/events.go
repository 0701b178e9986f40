package events

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Origin kinds as recorded on journal entries, cash transactions, and
// sub-ledger rows. One value per record type.
const (
	OriginRevenueReceipt  = "revenue_receipt"
	OriginExpenseRecord   = "expense_record"
	OriginPurchaseBill    = "purchase_bill"
	OriginPurchaseReturn  = "purchase_return"
	OriginSupplierPayment = "supplier_payment"
	OriginPartnerPayment  = "partner_payment"
)

// ErrNotFound is returned for an unknown event record.
var ErrNotFound = errors.New("record not found")

// PaymentMethod is how cash moved for a record.
type PaymentMethod string

const (
	MethodCash PaymentMethod = "cash"
	MethodCard PaymentMethod = "card"
	MethodBank PaymentMethod = "bank"
)

// RevenueReceipt is one recorded revenue event for a zone.
type RevenueReceipt struct {
	ID               int64           `json:"id"`
	ZoneCode         string          `json:"zone_code"`
	Date             time.Time       `json:"date"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Method           PaymentMethod   `json:"method"`
	Description      string          `json:"description"`
	Posted           bool            `json:"posted"`
	SharesCalculated bool            `json:"shares_calculated"`
	CreatedBy        string          `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ExpenseRecord is one recorded expense for a zone. ChargePartners controls
// whether the expense is shared out to the zone's partnerships when posted.
type ExpenseRecord struct {
	ID               int64           `json:"id"`
	ZoneCode         string          `json:"zone_code"`
	Date             time.Time       `json:"date"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Method           PaymentMethod   `json:"method"`
	Category         string          `json:"category,omitempty"`
	ChargePartners   bool            `json:"charge_partners"`
	Description      string          `json:"description"`
	Posted           bool            `json:"posted"`
	SharesCalculated bool            `json:"shares_calculated"`
	CreatedBy        string          `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
}

// PurchaseBillLine is one line of a supplier bill. AccountCode names the cost
// or inventory account the line is charged to; empty means the configured
// purchases account.
type PurchaseBillLine struct {
	ItemName    string          `json:"item_name"`
	AccountCode string          `json:"account_code,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Total is quantity times unit price.
func (l PurchaseBillLine) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// PurchaseBill is one supplier bill, settled on credit into the supplier
// sub-ledger. Total is Subtotal plus Tax plus OtherCosts.
type PurchaseBill struct {
	ID         int64              `json:"id"`
	SupplierID int64              `json:"supplier_id"`
	Number     string             `json:"number"`
	Date       time.Time          `json:"date"`
	Currency   string             `json:"currency"`
	Lines      []PurchaseBillLine `json:"lines"`
	Subtotal   decimal.Decimal    `json:"subtotal"`
	Tax        decimal.Decimal    `json:"tax"`
	OtherCosts decimal.Decimal    `json:"other_costs"`
	Total      decimal.Decimal    `json:"total"`
	Posted     bool               `json:"posted"`
	CreatedBy  string             `json:"created_by"`
	CreatedAt  time.Time          `json:"created_at"`
}

// PurchaseReturn is goods sent back against a bill, reducing what the
// supplier is owed.
type PurchaseReturn struct {
	ID         int64              `json:"id"`
	BillID     int64              `json:"bill_id"`
	SupplierID int64              `json:"supplier_id"`
	Date       time.Time          `json:"date"`
	Currency   string             `json:"currency"`
	Lines      []PurchaseBillLine `json:"lines"`
	Total      decimal.Decimal    `json:"total"`
	Posted     bool               `json:"posted"`
	CreatedBy  string             `json:"created_by"`
	CreatedAt  time.Time          `json:"created_at"`
}

// SupplierPayment is cash paid out to a supplier against their balance.
type SupplierPayment struct {
	ID         int64           `json:"id"`
	SupplierID int64           `json:"supplier_id"`
	Date       time.Time       `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Method     PaymentMethod   `json:"method"`
	Description string         `json:"description"`
	Posted     bool            `json:"posted"`
	CreatedBy  string          `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

// PartnerPayment is cash paid out to a partner against accumulated shares.
type PartnerPayment struct {
	ID            int64           `json:"id"`
	PartnershipID int64           `json:"partnership_id"`
	Date          time.Time       `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Method        PaymentMethod   `json:"method"`
	Description   string          `json:"description"`
	Posted        bool            `json:"posted"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RecordFilter narrows list queries. Zero-value fields are ignored.
type RecordFilter struct {
	ZoneCode string
	From     time.Time
	To       time.Time
	Currency string
}

// Store is the persistence contract for event records. Create methods assign
// the record's ID; flag setters persist the posting flags in place.
type Store interface {
	CreateRevenueReceipt(ctx context.Context, r *RevenueReceipt) error
	GetRevenueReceipt(ctx context.Context, id int64) (*RevenueReceipt, error)
	ListRevenueReceipts(ctx context.Context, filter RecordFilter) ([]*RevenueReceipt, error)
	SetRevenueReceiptFlags(ctx context.Context, id int64, posted, sharesCalculated bool) error
	DeleteRevenueReceipt(ctx context.Context, id int64) error

	CreateExpenseRecord(ctx context.Context, r *ExpenseRecord) error
	GetExpenseRecord(ctx context.Context, id int64) (*ExpenseRecord, error)
	ListExpenseRecords(ctx context.Context, filter RecordFilter) ([]*ExpenseRecord, error)
	SetExpenseRecordFlags(ctx context.Context, id int64, posted, sharesCalculated bool) error
	DeleteExpenseRecord(ctx context.Context, id int64) error

	CreatePurchaseBill(ctx context.Context, b *PurchaseBill) error
	GetPurchaseBill(ctx context.Context, id int64) (*PurchaseBill, error)
	ListPurchaseBills(ctx context.Context) ([]*PurchaseBill, error)
	SetPurchaseBillPosted(ctx context.Context, id int64, posted bool) error
	DeletePurchaseBill(ctx context.Context, id int64) error

	CreatePurchaseReturn(ctx context.Context, r *PurchaseReturn) error
	GetPurchaseReturn(ctx context.Context, id int64) (*PurchaseReturn, error)
	ListPurchaseReturns(ctx context.Context) ([]*PurchaseReturn, error)
	SetPurchaseReturnPosted(ctx context.Context, id int64, posted bool) error
	DeletePurchaseReturn(ctx context.Context, id int64) error

	CreateSupplierPayment(ctx context.Context, p *SupplierPayment) error
	GetSupplierPayment(ctx context.Context, id int64) (*SupplierPayment, error)
	ListSupplierPayments(ctx context.Context) ([]*SupplierPayment, error)
	SetSupplierPaymentPosted(ctx context.Context, id int64, posted bool) error
	DeleteSupplierPayment(ctx context.Context, id int64) error

	CreatePartnerPayment(ctx context.Context, p *PartnerPayment) error
	GetPartnerPayment(ctx context.Context, id int64) (*PartnerPayment, error)
	ListPartnerPayments(ctx context.Context) ([]*PartnerPayment, error)
	SetPartnerPaymentPosted(ctx context.Context, id int64, posted bool) error
	DeletePartnerPayment(ctx context.Context, id int64) error
}
