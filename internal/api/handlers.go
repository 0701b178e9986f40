package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/example/resortledger/internal/coa"
	"github.com/example/resortledger/internal/events"
	"github.com/example/resortledger/internal/ledger"
	"github.com/example/resortledger/internal/posting"
	"github.com/example/resortledger/internal/subledger"
	"github.com/example/resortledger/internal/treasury"
)

// handleDomainError maps domain failures onto stable wire codes. Anything
// unrecognized is an internal error.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var unbalanced *ledger.UnbalancedEntryError
	var missing *ledger.MissingAccountConfigurationError

	switch {
	case errors.Is(err, events.ErrNotFound),
		errors.Is(err, ledger.ErrEntryNotFound),
		errors.Is(err, subledger.ErrOwnerNotFound),
		errors.Is(err, treasury.ErrPoolNotFound):
		writeJSONError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, coa.ErrDuplicateCode):
		writeJSONError(w, r, http.StatusConflict, "duplicate_account_code", err.Error())
	case errors.Is(err, posting.ErrResetNotConfirmed):
		writeJSONError(w, r, http.StatusBadRequest, "confirmation_required", err.Error())
	case errors.As(err, &unbalanced):
		writeJSONError(w, r, http.StatusUnprocessableEntity, "unbalanced_entry", err.Error())
	case errors.As(err, &missing):
		writeJSONError(w, r, http.StatusUnprocessableEntity, "missing_account_mapping", err.Error())
	default:
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func handlePostRevenue(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req revenueRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		date, err := parseDate(req.Date)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		amount, err := parseAmount(req.Amount)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		in := posting.RevenueInput{
			ZoneCode:    req.ZoneCode,
			Date:        date,
			Amount:      amount,
			Currency:    req.Currency,
			Method:      events.PaymentMethod(req.Method),
			Description: req.Description,
			CreatedBy:   req.CreatedBy,
		}
		if err := in.Validate(); err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		receipt, err := deps.Posting.PostRevenue(r.Context(), in)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, receipt)
	}
}

func handlePostExpense(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req expenseRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		date, err := parseDate(req.Date)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		amount, err := parseAmount(req.Amount)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		in := posting.ExpenseInput{
			ZoneCode:       req.ZoneCode,
			Date:           date,
			Amount:         amount,
			Currency:       req.Currency,
			Method:         events.PaymentMethod(req.Method),
			Category:       req.Category,
			ChargePartners: req.ChargePartners,
			Description:    req.Description,
			CreatedBy:      req.CreatedBy,
		}
		if err := in.Validate(); err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		record, err := deps.Posting.PostExpense(r.Context(), in)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, record)
	}
}

func handlePostPurchaseBill(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req purchaseBillRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		date, err := parseDate(req.Date)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		lines := make([]events.PurchaseBillLine, 0, len(req.Lines))
		for _, l := range req.Lines {
			ln, err := l.toLine()
			if err != nil {
				writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
				return
			}
			lines = append(lines, ln)
		}

		tax, err := parseOptionalAmount(req.Tax)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "invalid tax")
			return
		}
		other, err := parseOptionalAmount(req.OtherCosts)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "invalid other costs")
			return
		}

		in := posting.BillInput{
			SupplierID: req.SupplierID,
			Number:     req.Number,
			Date:       date,
			Currency:   req.Currency,
			Lines:      lines,
			Tax:        tax,
			OtherCosts: other,
			CreatedBy:  req.CreatedBy,
		}
		if err := in.Validate(); err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		bill, err := deps.Posting.PostPurchaseBill(r.Context(), in)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, bill)
	}
}

func handlePostPurchaseReturn(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req purchaseReturnRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		date, err := parseDate(req.Date)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		lines := make([]events.PurchaseBillLine, 0, len(req.Lines))
		for _, l := range req.Lines {
			ln, err := l.toLine()
			if err != nil {
				writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
				return
			}
			lines = append(lines, ln)
		}

		in := posting.ReturnInput{
			BillID:    req.BillID,
			Date:      date,
			Lines:     lines,
			CreatedBy: req.CreatedBy,
		}
		if err := in.Validate(); err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		ret, err := deps.Posting.PostPurchaseReturn(r.Context(), in)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, ret)
	}
}

func handlePaySupplier(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req supplierPaymentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		date, err := parseDate(req.Date)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		amount, err := parseAmount(req.Amount)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		in := posting.SupplierPaymentInput{
			SupplierID:  req.SupplierID,
			Date:        date,
			Amount:      amount,
			Currency:    req.Currency,
			Method:      events.PaymentMethod(req.Method),
			Description: req.Description,
			CreatedBy:   req.CreatedBy,
		}
		if err := in.Validate(); err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		payment, err := deps.Posting.PaySupplier(r.Context(), in)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, payment)
	}
}

func handlePayPartner(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req partnerPaymentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		date, err := parseDate(req.Date)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		amount, err := parseAmount(req.Amount)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		in := posting.PartnerPaymentInput{
			PartnershipID: req.PartnershipID,
			Date:          date,
			Amount:        amount,
			Currency:      req.Currency,
			Method:        events.PaymentMethod(req.Method),
			Description:   req.Description,
			CreatedBy:     req.CreatedBy,
		}
		if err := in.Validate(); err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		payment, err := deps.Posting.PayPartner(r.Context(), in)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, payment)
	}
}

var reversibleKinds = map[string]bool{
	events.OriginRevenueReceipt:  true,
	events.OriginExpenseRecord:   true,
	events.OriginPurchaseBill:    true,
	events.OriginPurchaseReturn:  true,
	events.OriginSupplierPayment: true,
	events.OriginPartnerPayment:  true,
}

func handleReverse(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := chi.URLParam(r, "kind")
		if !reversibleKinds[kind] {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "unknown record kind")
			return
		}
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "invalid record id")
			return
		}

		actor := r.URL.Query().Get("actor")
		if err := deps.Posting.ReverseAndDelete(r.Context(), kind, id, actor); err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]any{
			"reversed": true,
			"kind":     kind,
			"id":       id,
		})
	}
}

func handleRebuild(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := r.URL.Query().Get("actor")
		report, err := deps.Posting.RebuildAll(r.Context(), actor)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, report)
	}
}

func handleReset(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := deps.Posting.ResetAll(r.Context(), req.Confirm, req.CreatedBy); err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]bool{"reset": true})
	}
}
