/**
 * @description
 * HTTP router setup for the lease service using go-chi/chi.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Request deadlines. Sweeps walk whole batches against the gateway and get
// as long as the scheduler gives a job.
const (
	requestTimeout = 60 * time.Second
	sweepTimeout   = 10 * time.Minute
)

// NewRouter creates a new Chi router and registers lease routes.
func NewRouter(h *Handler, auth AuthConfig, internalKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Lease service is healthy"))
	})

	r.Route("/internal/leases", func(r chi.Router) {
		r.Use(middleware.Timeout(sweepTimeout))
		r.Use(InternalAuthMiddleware(internalKey))
		r.Post("/invoices/generate", h.runSweep("internal_invoice_generation", h.service.RunInvoiceGeneration))
		r.Post("/overdue/run", h.runSweep("internal_overdue", h.service.RunOverdueSweep))
		r.Post("/late-fees/run", h.runSweep("internal_late_fees", h.service.RunLateFees))
		r.Post("/payouts/run", h.runSweep("internal_payouts", h.service.RunPayoutSweep))
		r.Post("/renewals/run", h.runSweep("internal_renewals", h.service.RunRenewals))
		r.Post("/reconciliation/run", h.runSweep("internal_reconciliation", h.service.RunReconciliation))
		r.Post("/contracts/{contractID}/invoices/generate", h.handleInternalGenerateForContract)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/payments/callback", h.handlePaymentCallback)
		r.Post("/payments/callback", h.handlePaymentCallback)
		r.Post("/guest/contracts/{contractID}/invoices/{invoiceID}/checkout", h.handleGuestCheckout)

		r.Group(func(r chi.Router) {
			r.Use(ClerkAuthMiddleware(auth))

			r.Route("/owners/{ownerUID}/contracts/{contractID}", func(r chi.Router) {
				r.Post("/invoices/generate", h.handleGenerateInvoices)
				r.Get("/invoices", h.handleListInvoices)
				r.Post("/invoices/{invoiceID}/checkout", h.handleInvoiceCheckout)
				r.Post("/invoices/{invoiceID}/status", h.handleInvoiceStatus)
				r.Post("/offers", h.handleProposeOffer)
				r.Post("/offers/{offerID}/accept", h.handleAcceptOffer)
				r.Post("/offers/{offerID}/checkout", h.handleOfferCheckout)
				r.Post("/deposit/checkout", h.handleDepositCheckout)
				r.Post("/renewal/respond", h.handleRenewalResponse)
				r.Post("/guest-token", h.handleIssueGuestToken)
			})
			r.Post("/payments/{paymentID}/checkout", h.handleIndependentCheckout)

			r.Route("/admin/owners/{ownerUID}/contracts/{contractID}/invoices/{invoiceID}", func(r chi.Router) {
				r.Use(AdminOnlyMiddleware(h.service.IsAdmin))
				r.Post("/refund", h.handleRefundInvoice)
				r.Put("/status", h.handleSetInvoiceStatus)
			})
		})
	})

	return r
}
