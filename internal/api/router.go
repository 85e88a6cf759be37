package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter constructs the wallet-core HTTP surface.
func NewRouter(ledger LedgerService, reporter Reporter) http.Handler {
	h := NewHandler(ledger, reporter)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/accounts", h.CreateAccountHandler)

	r.Route("/accounts/{accountId}", func(r chi.Router) {
		r.Get("/balance", h.GetBalanceHandler)
		r.Get("/records", h.ListRecordsHandler)
		r.Get("/stats", h.GetStatsHandler)

		r.Post("/credit", h.CreditHandler)
		r.Post("/debit", h.DebitHandler)
		r.Post("/topup", h.TopUpHandler)
		r.Post("/withdraw", h.WithdrawHandler)
		r.Post("/redeem", h.RedeemHandler)
		r.Post("/refund", h.RefundHandler)
		r.Post("/payout-address", h.LinkPayoutAddressHandler)
	})

	r.Post("/records/{recordId}/status", h.TransitionStatusHandler)

	return r
}
