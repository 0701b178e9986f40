package posting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/resortledger/internal/events"
)

func validMethod(m events.PaymentMethod) bool {
	switch m {
	case events.MethodCash, events.MethodCard, events.MethodBank:
		return true
	}
	return false
}

func checkMoney(amount decimal.Decimal, currency string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if len(currency) != 3 {
		return fmt.Errorf("currency code must be 3 characters")
	}
	return nil
}

func checkDate(date time.Time) error {
	if date.IsZero() {
		return fmt.Errorf("date is required")
	}
	return nil
}

// Validate checks a revenue input before anything is written.
func (in RevenueInput) Validate() error {
	if in.ZoneCode == "" {
		return fmt.Errorf("zone code is required")
	}
	if err := checkDate(in.Date); err != nil {
		return err
	}
	if err := checkMoney(in.Amount, in.Currency); err != nil {
		return err
	}
	if !validMethod(in.Method) {
		return fmt.Errorf("unknown payment method %q", in.Method)
	}
	return nil
}

// Validate checks an expense input before anything is written.
func (in ExpenseInput) Validate() error {
	if in.ZoneCode == "" {
		return fmt.Errorf("zone code is required")
	}
	if err := checkDate(in.Date); err != nil {
		return err
	}
	if err := checkMoney(in.Amount, in.Currency); err != nil {
		return err
	}
	if !validMethod(in.Method) {
		return fmt.Errorf("unknown payment method %q", in.Method)
	}
	return nil
}

// Validate checks a bill input. Every line needs a name, a positive quantity
// and a non-negative unit price.
func (in BillInput) Validate() error {
	if in.SupplierID == 0 {
		return fmt.Errorf("supplier id is required")
	}
	if in.Number == "" {
		return fmt.Errorf("bill number is required")
	}
	if err := checkDate(in.Date); err != nil {
		return err
	}
	if len(in.Currency) != 3 {
		return fmt.Errorf("currency code must be 3 characters")
	}
	if len(in.Lines) == 0 {
		return fmt.Errorf("bill requires at least one line")
	}
	for i, ln := range in.Lines {
		if ln.ItemName == "" {
			return fmt.Errorf("line %d: item name is required", i)
		}
		if !ln.Quantity.IsPositive() {
			return fmt.Errorf("line %d: quantity must be positive", i)
		}
		if ln.UnitPrice.IsNegative() {
			return fmt.Errorf("line %d: unit price must not be negative", i)
		}
	}
	if in.Tax.IsNegative() {
		return fmt.Errorf("tax must not be negative")
	}
	if in.OtherCosts.IsNegative() {
		return fmt.Errorf("other costs must not be negative")
	}
	return nil
}

// Validate checks a return input.
func (in ReturnInput) Validate() error {
	if in.BillID == 0 {
		return fmt.Errorf("bill id is required")
	}
	if err := checkDate(in.Date); err != nil {
		return err
	}
	if len(in.Lines) == 0 {
		return fmt.Errorf("return requires at least one line")
	}
	for i, ln := range in.Lines {
		if ln.ItemName == "" {
			return fmt.Errorf("line %d: item name is required", i)
		}
		if !ln.Quantity.IsPositive() {
			return fmt.Errorf("line %d: quantity must be positive", i)
		}
		if ln.UnitPrice.IsNegative() {
			return fmt.Errorf("line %d: unit price must not be negative", i)
		}
	}
	return nil
}

// Validate checks a supplier payment input.
func (in SupplierPaymentInput) Validate() error {
	if in.SupplierID == 0 {
		return fmt.Errorf("supplier id is required")
	}
	if err := checkDate(in.Date); err != nil {
		return err
	}
	if err := checkMoney(in.Amount, in.Currency); err != nil {
		return err
	}
	if !validMethod(in.Method) {
		return fmt.Errorf("unknown payment method %q", in.Method)
	}
	return nil
}

// Validate checks a partner payment input.
func (in PartnerPaymentInput) Validate() error {
	if in.PartnershipID == 0 {
		return fmt.Errorf("partnership id is required")
	}
	if err := checkDate(in.Date); err != nil {
		return err
	}
	if err := checkMoney(in.Amount, in.Currency); err != nil {
		return err
	}
	if !validMethod(in.Method) {
		return fmt.Errorf("unknown payment method %q", in.Method)
	}
	return nil
}
