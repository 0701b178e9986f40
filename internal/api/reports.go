package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/resortledger/internal/reports"
)

func asOfQuery(r *http.Request) (time.Time, error) {
	if v := r.URL.Query().Get("as_of"); v != "" {
		return parseDate(v)
	}
	return time.Now(), nil
}

func handleAccountBalance(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		asOf, err := asOfQuery(r)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		if r.URL.Query().Get("converted") == "true" {
			balance, coverage, err := deps.Reporter.PresentationBalance(r.Context(), code, asOf)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, r, http.StatusOK, map[string]any{
				"code":     code,
				"balance":  balance,
				"coverage": coverage,
			})
			return
		}

		balance, err := deps.Reporter.AccountBalanceAsOf(r.Context(), code, asOf, r.URL.Query().Get("currency"))
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, balance)
	}
}

func handleTrialBalance(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asOf, err := asOfQuery(r)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		mode := reports.TrialBalanceMode(r.URL.Query().Get("mode"))
		if mode == "" {
			mode = reports.ModePerCurrency
		}
		currency := r.URL.Query().Get("currency")
		if mode == reports.ModeSingle && currency == "" {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "single_currency mode requires a currency")
			return
		}

		tb, err := deps.Reporter.TrialBalance(r.Context(), asOf, mode, currency)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, tb)
	}
}

func handleBalanceSheet(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asOf, err := asOfQuery(r)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		bs, err := deps.Reporter.BalanceSheet(r.Context(), asOf)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, bs)
	}
}

func handleIncomeStatement(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := parseDate(r.URL.Query().Get("from"))
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "from: "+err.Error())
			return
		}
		to, err := parseDate(r.URL.Query().Get("to"))
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "to: "+err.Error())
			return
		}
		if to.Before(from) {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "to must not precede from")
			return
		}

		is, err := deps.Reporter.IncomeStatement(r.Context(), from, to)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, is)
	}
}
