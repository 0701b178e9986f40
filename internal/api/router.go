package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/resortledger/internal/posting"
	"github.com/example/resortledger/internal/reports"
	"github.com/example/resortledger/internal/store"
)

type Dependencies struct {
	Logger   *slog.Logger
	Store    store.Store
	Posting  *posting.Service
	Reporter *reports.Reporter

	Auditor      Auditor
	MaxBodyBytes int64
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(BodySizeLimit(deps.MaxBodyBytes))
	if deps.Auditor != nil {
		r.Use(AuditMiddleware(deps.Auditor))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", handleListAccounts(deps))
			r.Post("/", handleCreateAccount(deps))
			r.Get("/{code}/balance", handleAccountBalance(deps))
		})

		r.Route("/rates", func(r chi.Router) {
			r.Post("/", handlePutRate(deps))
			r.Get("/{currency}", handleGetRate(deps))
		})

		r.Route("/partnerships", func(r chi.Router) {
			r.Get("/", handleListPartnerships(deps))
			r.Post("/", handleCreatePartnership(deps))
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", handleListSuppliers(deps))
			r.Post("/", handleCreateSupplier(deps))
		})

		r.Route("/bank-accounts", func(r chi.Router) {
			r.Get("/", handleListBankAccounts(deps))
			r.Post("/", handleCreateBankAccount(deps))
			r.Post("/{id}/movements", handleBankMovement(deps))
		})

		r.Route("/treasury", func(r chi.Router) {
			r.Get("/pools", handleListPools(deps))
			r.Post("/pools/{currency}/movements", handleTreasuryMovement(deps))
		})

		r.Route("/postings", func(r chi.Router) {
			r.Post("/revenues", handlePostRevenue(deps))
			r.Post("/expenses", handlePostExpense(deps))
			r.Post("/purchase-bills", handlePostPurchaseBill(deps))
			r.Post("/purchase-returns", handlePostPurchaseReturn(deps))
			r.Post("/supplier-payments", handlePaySupplier(deps))
			r.Post("/partner-payments", handlePayPartner(deps))
			r.Delete("/{kind}/{id}", handleReverse(deps))
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/trial-balance", handleTrialBalance(deps))
			r.Get("/balance-sheet", handleBalanceSheet(deps))
			r.Get("/income-statement", handleIncomeStatement(deps))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/rebuild", handleRebuild(deps))
			r.Post("/reset", handleReset(deps))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusNotFound, "not_found", "")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})

	return r
}
