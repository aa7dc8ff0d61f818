/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/records/*      Record log (submit, versions, tombstones)
  /api/approvals/*    Approval workflow
  /api/catalog/*      Configuration graph
  /api/stock/*        Stock projections
  /api/bookings/*     Ledger, checkout, interruption
  /api/rooms/*        Room board
  /api/reports/*      Department income/expenditure
  /api/scenarios/*    Demo data loading
  /api/health         Liveness and aggregation source

SECURITY NOTE:
  Session tokens are validated at the write path only; reads are open. Put a
  real auth middleware in front for anything beyond a trusted network.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", sessionHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Record log
		r.Route("/records", func(r chi.Router) {
			r.Post("/", h.SubmitRecords)
			r.Get("/{id}", h.GetRecord)
			r.Get("/{id}/history", h.GetHistory)
			r.Post("/{id}/versions", h.SubmitVersion)
			r.Delete("/{id}", h.DeleteRecord)
		})

		// Approval workflow
		r.Route("/approvals", func(r chi.Router) {
			r.Get("/pending", h.ListPending)
			r.Post("/{id}/approve", h.ApproveRecord)
			r.Post("/{id}/reject", h.RejectRecord)
			r.Post("/{id}/archive", h.ArchiveRecord)
		})

		// Configuration graph
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/items", h.ListItems)
		})

		// Stock projections
		r.Route("/stock", func(r chi.Router) {
			r.Get("/sheet", h.StockSheet)
			r.Get("/monthly", h.StockMonthly)
		})

		// Bookings: ledger and lifecycle
		r.Route("/bookings", func(r chi.Router) {
			r.Get("/{bookingID}/ledger", h.BookingLedger)
			r.Post("/{bookingID}/checkout", h.CheckoutBooking)
			r.Post("/{bookingID}/interrupt", h.InterruptBooking)
		})

		// Room board and housekeeping
		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", h.RoomBoard)
			r.Get("/{roomID}", h.RoomStatus)
		})
		r.Post("/transfers", h.RecordTransfer)
		r.Post("/housekeeping", h.FileHousekeeping)

		// Reports
		r.Route("/reports", func(r chi.Router) {
			r.Get("/departments", h.DepartmentReport)
		})

		// Demo scenarios
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})

		r.Get("/health", h.Health)
	})

	return r
}
