package api

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/resortledger/internal/events"
)

// Dates travel as plain calendar days on the wire.
const dateLayout = "2006-01-02"

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("date is required")
	}
	return time.Parse(dateLayout, s)
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, errors.New("amount is required")
	}
	return decimal.NewFromString(s)
}

func parseOptionalAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

type createAccountRequest struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	ParentCode     string `json:"parent_code"`
	Nature         string `json:"nature"`
	Currency       string `json:"currency"`
	OpeningBalance string `json:"opening_balance"`
}

type putRateRequest struct {
	Currency string `json:"currency"`
	Date     string `json:"date"`
	Type     string `json:"type"`
	Rate     string `json:"rate"`
	Source   string `json:"source"`
}

type createPartnershipRequest struct {
	PartnerName       string `json:"partner_name"`
	ZoneCode          string `json:"zone_code"`
	Percentage        string `json:"percentage"`
	ExpensePercentage string `json:"expense_percentage"`
	ShareExpenses     bool   `json:"share_expenses"`
}

type createSupplierRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

type createBankAccountRequest struct {
	BankName       string `json:"bank_name"`
	Number         string `json:"number"`
	Name           string `json:"name"`
	IBAN           string `json:"iban"`
	SwiftCode      string `json:"swift_code"`
	Currency       string `json:"currency"`
	OpeningBalance string `json:"opening_balance"`
}

type movementRequest struct {
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

type revenueRequest struct {
	ZoneCode    string `json:"zone_code"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

type expenseRequest struct {
	ZoneCode       string `json:"zone_code"`
	Date           string `json:"date"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Method         string `json:"method"`
	Category       string `json:"category"`
	ChargePartners bool   `json:"charge_partners"`
	Description    string `json:"description"`
	CreatedBy      string `json:"created_by"`
}

type billLineRequest struct {
	ItemName    string `json:"item_name"`
	AccountCode string `json:"account_code"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

func (l billLineRequest) toLine() (events.PurchaseBillLine, error) {
	qty, err := decimal.NewFromString(l.Quantity)
	if err != nil {
		return events.PurchaseBillLine{}, errors.New("invalid quantity")
	}
	price, err := decimal.NewFromString(l.UnitPrice)
	if err != nil {
		return events.PurchaseBillLine{}, errors.New("invalid unit price")
	}
	return events.PurchaseBillLine{ItemName: l.ItemName, AccountCode: l.AccountCode, Quantity: qty, UnitPrice: price}, nil
}

type purchaseBillRequest struct {
	SupplierID int64             `json:"supplier_id"`
	Number     string            `json:"number"`
	Date       string            `json:"date"`
	Currency   string            `json:"currency"`
	Lines      []billLineRequest `json:"lines"`
	Tax        string            `json:"tax"`
	OtherCosts string            `json:"other_costs"`
	CreatedBy  string            `json:"created_by"`
}

type purchaseReturnRequest struct {
	BillID    int64             `json:"bill_id"`
	Date      string            `json:"date"`
	Lines     []billLineRequest `json:"lines"`
	CreatedBy string            `json:"created_by"`
}

type supplierPaymentRequest struct {
	SupplierID  int64  `json:"supplier_id"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

type partnerPaymentRequest struct {
	PartnershipID int64  `json:"partnership_id"`
	Date          string `json:"date"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Method        string `json:"method"`
	Description   string `json:"description"`
	CreatedBy     string `json:"created_by"`
}

type resetRequest struct {
	Confirm   bool   `json:"confirm"`
	CreatedBy string `json:"created_by"`
}
