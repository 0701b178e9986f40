package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/example/resortledger/internal/coa"
	"github.com/example/resortledger/internal/fx"
	"github.com/example/resortledger/internal/store"
	"github.com/example/resortledger/internal/subledger"
	"github.com/example/resortledger/internal/treasury"
)

func handleListAccounts(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := coa.AccountFilter{
			Type: coa.AccountType(r.URL.Query().Get("type")),
		}
		if v := r.URL.Query().Get("active_only"); v != "" {
			b, err := strconv.ParseBool(v)
			if err == nil {
				filter.ActiveOnly = b
			}
		}

		var accounts []*coa.Account
		err := deps.Store.InTx(r.Context(), func(tx store.Tx) error {
			var err error
			accounts, err = tx.ListAccounts(r.Context(), filter)
			return err
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]any{"accounts": accounts})
	}
}

func handleCreateAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAccountRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		opening := decimal.Zero
		if req.OpeningBalance != "" {
			var err error
			opening, err = decimal.NewFromString(req.OpeningBalance)
			if err != nil {
				writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "invalid opening balance")
				return
			}
		}

		account := &coa.Account{
			Code:           req.Code,
			Name:           req.Name,
			Type:           coa.AccountType(req.Type),
			ParentCode:     req.ParentCode,
			Nature:         coa.BalanceNature(req.Nature),
			Currency:       req.Currency,
			OpeningBalance: opening,
			CurrentBalance: opening,
			Active:         true,
		}
		if account.Nature == "" {
			account.Nature = coa.DefaultNature(account.Type)
		}
		if err := account.Validate(); err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		err := deps.Store.InTx(r.Context(), func(tx store.Tx) error {
			return tx.CreateAccount(r.Context(), account)
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, account)
	}
}

func handlePutRate(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req putRateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		date, err := parseDate(req.Date)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		value, err := decimal.NewFromString(req.Rate)
		if err != nil || !value.IsPositive() {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "rate must be a positive decimal")
			return
		}
		rateType := fx.RateType(req.Type)
		if rateType != fx.RateClosing && rateType != fx.RateAverage {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "rate type must be closing or average")
			return
		}
		if len(req.Currency) != 3 {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "currency must be a 3-letter code")
			return
		}

		rate := &fx.Rate{
			Currency: req.Currency,
			Date:     date,
			Type:     rateType,
			Rate:     value,
			Source:   req.Source,
		}
		err = deps.Store.InTx(r.Context(), func(tx store.Tx) error {
			return tx.PutRate(r.Context(), rate)
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, rate)
	}
}

func handleGetRate(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currency := chi.URLParam(r, "currency")
		rateType := fx.RateType(r.URL.Query().Get("type"))
		if rateType == "" {
			rateType = fx.RateClosing
		}
		asOf := time.Now()
		if v := r.URL.Query().Get("as_of"); v != "" {
			var err error
			asOf, err = parseDate(v)
			if err != nil {
				writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
				return
			}
		}

		var rate *fx.Rate
		err := deps.Store.InTx(r.Context(), func(tx store.Tx) error {
			var err error
			rate, err = tx.LatestRate(r.Context(), currency, asOf, rateType)
			return err
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		if rate == nil {
			writeJSONError(w, r, http.StatusNotFound, "rate_not_found", "no rate on or before the requested date")
			return
		}
		writeJSON(w, r, http.StatusOK, rate)
	}
}

func handleListPartnerships(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := subledger.PartnershipFilter{
			ZoneCode: r.URL.Query().Get("zone_code"),
		}
		if v := r.URL.Query().Get("active_only"); v != "" {
			b, err := strconv.ParseBool(v)
			if err == nil {
				filter.ActiveOnly = b
			}
		}

		var partnerships []*subledger.Partnership
		err := deps.Store.InTx(r.Context(), func(tx store.Tx) error {
			var err error
			partnerships, err = tx.ListPartnerships(r.Context(), filter)
			return err
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]any{"partnerships": partnerships})
	}
}

func handleCreatePartnership(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createPartnershipRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		pct, err := decimal.NewFromString(req.Percentage)
		if err != nil || pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "percentage must be between 0 and 100")
			return
		}
		expensePct := decimal.Zero
		if req.ExpensePercentage != "" {
			expensePct, err = decimal.NewFromString(req.ExpensePercentage)
			if err != nil || expensePct.IsNegative() || expensePct.GreaterThan(decimal.NewFromInt(100)) {
				writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "expense percentage must be between 0 and 100")
				return
			}
		}
		if req.PartnerName == "" || req.ZoneCode == "" {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "partner name and zone code are required")
			return
		}

		p := &subledger.Partnership{
			PartnerName:       req.PartnerName,
			ZoneCode:          req.ZoneCode,
			Percentage:        pct,
			ExpensePercentage: expensePct,
			ShareExpenses:     req.ShareExpenses,
			Active:            true,
		}
		err = deps.Store.InTx(r.Context(), func(tx store.Tx) error {
			return tx.CreatePartnership(r.Context(), p)
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, p)
	}
}

func handleListSuppliers(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var suppliers []*subledger.Supplier
		err := deps.Store.InTx(r.Context(), func(tx store.Tx) error {
			var err error
			suppliers, err = tx.ListSuppliers(r.Context())
			return err
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]any{"suppliers": suppliers})
	}
}

func handleCreateSupplier(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSupplierRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Name == "" {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "supplier name is required")
			return
		}

		s := &subledger.Supplier{
			Code:     req.Code,
			Name:     req.Name,
			Currency: req.Currency,
			Phone:    req.Phone,
			Email:    req.Email,
			Active:   true,
		}
		err := deps.Store.InTx(r.Context(), func(tx store.Tx) error {
			return tx.CreateSupplier(r.Context(), s)
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, s)
	}
}

func handleListBankAccounts(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var accounts []*treasury.BankAccount
		err := deps.Store.InTx(r.Context(), func(tx store.Tx) error {
			var err error
			accounts, err = tx.ListBankAccounts(r.Context())
			return err
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]any{"bank_accounts": accounts})
	}
}

func handleCreateBankAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createBankAccountRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		opening := decimal.Zero
		if req.OpeningBalance != "" {
			var err error
			opening, err = decimal.NewFromString(req.OpeningBalance)
			if err != nil {
				writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "invalid opening balance")
				return
			}
		}
		if req.BankName == "" || len(req.Currency) != 3 {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "bank name and a 3-letter currency are required")
			return
		}

		account := &treasury.BankAccount{
			BankName:       req.BankName,
			Number:         req.Number,
			Name:           req.Name,
			IBAN:           req.IBAN,
			SwiftCode:      req.SwiftCode,
			Currency:       req.Currency,
			OpeningBalance: opening,
			Balance:        opening,
			Active:         true,
		}
		err := deps.Store.InTx(r.Context(), func(tx store.Tx) error {
			return tx.CreateBankAccount(r.Context(), account)
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, account)
	}
}

func handleListPools(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var pools []*treasury.Pool
		err := deps.Store.InTx(r.Context(), func(tx store.Tx) error {
			var err error
			pools, err = tx.ListPools(r.Context())
			return err
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]any{"pools": pools})
	}
}

func parseMovement(w http.ResponseWriter, r *http.Request) (treasury.Movement, bool) {
	var req movementRequest
	if !decodeJSON(w, r, &req) {
		return treasury.Movement{}, false
	}

	amount, err := parseAmount(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "amount must be a positive decimal")
		return treasury.Movement{}, false
	}

	return treasury.Movement{
		Kind:        treasury.TxKind(req.Kind),
		Amount:      amount,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
	}, true
}

func handleTreasuryMovement(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currency := chi.URLParam(r, "currency")
		m, ok := parseMovement(w, r)
		if !ok {
			return
		}
		if !treasury.ValidKind(m.Kind) {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "unknown treasury transaction kind")
			return
		}

		var out *treasury.CashTransaction
		err := deps.Store.InTx(r.Context(), func(tx store.Tx) error {
			var err error
			out, err = treasury.NewService(tx).ApplyTreasuryMovement(r.Context(), currency, m)
			return err
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, out)
	}
}

func handleBankMovement(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "invalid bank account id")
			return
		}
		m, ok := parseMovement(w, r)
		if !ok {
			return
		}
		if !treasury.ValidBankKind(m.Kind) {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "unknown bank transaction kind")
			return
		}

		var out *treasury.CashTransaction
		err = deps.Store.InTx(r.Context(), func(tx store.Tx) error {
			var err error
			out, err = treasury.NewService(tx).ApplyBankMovement(r.Context(), id, m)
			return err
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, out)
	}
}
