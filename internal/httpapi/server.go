// Package httpapi exposes the checkout engine over REST.
package httpapi

import (
	"database/sql"
	"net/http"
	"time"

	"estore/api/internal/account"
	"estore/api/internal/admin"
	"estore/api/internal/checkout"
	"estore/api/internal/config"
	"estore/api/internal/invoice"
	"estore/api/internal/middleware"
	"estore/api/internal/payment"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Server holds the engine services behind the HTTP handlers.
type Server struct {
	db       *sql.DB
	cfg      *config.Config
	accounts *account.Service
	checkout *checkout.Service
	payments *payment.Processor
	invoices *invoice.Generator
	admin    *admin.Manager
	now      func() time.Time
}

// Deps groups what NewServer wires together.
type Deps struct {
	DB       *sql.DB
	Config   *config.Config
	Accounts *account.Service
	Checkout *checkout.Service
	Payments *payment.Processor
	Invoices *invoice.Generator
	Admin    *admin.Manager
	Now      func() time.Time
}

func NewServer(d Deps) *Server {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		db:       d.DB,
		cfg:      d.Config,
		accounts: d.Accounts,
		checkout: d.Checkout,
		payments: d.Payments,
		invoices: d.Invoices,
		admin:    d.Admin,
		now:      now,
	}
}

// Routes builds the router with identity and CORS middleware applied.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(s.cfg.CORSOrigins))
	r.Use(middleware.Auth(s.cfg.JWTSecret))

	r.Get("/healthz", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", s.register)
		r.Post("/auth/login", s.login)
		r.Get("/products", s.listProducts)
		r.Get("/products/{id}", s.getProduct)
		r.Post("/webhook", s.webhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(unauthenticated))

			r.Get("/me", s.me)
			r.Put("/me", s.updateMe)
			r.Post("/cart/validate", s.validateCart)
			r.Post("/orders", s.createOrder)
			r.Get("/orders/{id}", s.getOrder)
			r.Post("/orders/{id}/cancel", s.cancelOrder)
			r.Post("/orders/{id}/payments", s.processPayment)
			r.Post("/orders/{id}/invoice", s.issueInvoice)
			r.Get("/orders/{id}/invoices", s.orderInvoices)
			r.Get("/payments/{txid}", s.getPayment)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(unauthenticated, forbidden))

			r.Post("/products", s.adminCreateProduct)
			r.Patch("/products/{id}", s.adminUpdateProduct)
			r.Get("/transactions", s.adminListTransactions)
			r.Post("/transactions/{txid}/status", s.adminSetTransactionStatus)
			r.Post("/transactions/{txid}/reset", s.adminResetTransaction)
			r.Get("/orders", s.adminListOrders)
			r.Get("/orders/{id}", s.adminOrderDetails)
			r.Post("/orders/{id}/status", s.adminAdvanceOrder)
			r.Get("/invoices/{number}", s.adminGetInvoice)
			r.Post("/invoices/{number}/cancel", s.adminCancelInvoice)
			r.Get("/reports/sales", s.adminSalesReport)
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
