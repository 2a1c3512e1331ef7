// Package router wires the HTTP surface: public webhooks and health checks,
// role-gated staff and patient endpoints.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dentistez/clinic-api/internal/appointment"
	"github.com/dentistez/clinic-api/internal/auth"
	"github.com/dentistez/clinic-api/internal/booking"
	httpmiddleware "github.com/dentistez/clinic-api/internal/http/middleware"
	"github.com/dentistez/clinic-api/internal/payment"
	"github.com/dentistez/clinic-api/internal/timeslot"
	"github.com/dentistez/clinic-api/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	TimeSlotHandler    *timeslot.Handler
	AppointmentHandler *appointment.Handler
	PaymentHandler     *payment.Handler
	PayOSWebhook       *booking.WebhookHandler
	MetricsHandler     http.Handler
	JWTSecret          string
	CORSAllowedOrigins []string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: gateway callbacks, health, metrics.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.PayOSWebhook != nil {
			public.Post("/webhooks/payos", cfg.PayOSWebhook.ServeHTTP)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.TimeSlotHandler != nil {
			public.Get("/api/timeslots", cfg.TimeSlotHandler.List)
		}
	})

	staffOnly := auth.RequireRole(cfg.JWTSecret, auth.RoleAdmin, auth.RoleStaff)
	staffOrDoctor := auth.RequireRole(cfg.JWTSecret, auth.RoleAdmin, auth.RoleStaff, auth.RoleDoctor)
	anyUser := auth.RequireRole(cfg.JWTSecret,
		auth.RoleAdmin, auth.RoleStaff, auth.RoleDoctor, auth.RolePatient)
	patientOnly := auth.RequireRole(cfg.JWTSecret, auth.RolePatient)

	if cfg.TimeSlotHandler != nil {
		r.Group(func(staff chi.Router) {
			staff.Use(staffOnly)
			staff.Post("/api/staff/timeslots", cfg.TimeSlotHandler.CreateBatch)
		})
	}

	if cfg.AppointmentHandler != nil {
		h := cfg.AppointmentHandler
		r.Route("/api/appointments", func(r chi.Router) {
			r.With(anyUser).Get("/{id}", h.Get)
			r.With(anyUser).Put("/{id}", h.Edit)
			r.With(anyUser).Get("/{id}/re-examinations", h.ListReExaminations)
			r.With(staffOrDoctor).Put("/{id}/complete", h.Complete)
			r.With(staffOrDoctor).Post("/{id}/re-examination", h.CreateReExamination)
			r.With(staffOnly).Put("/{id}/cancel", h.Cancel)
			r.With(patientOnly).Put("/{id}/cancel-refund", h.CancelWithRefund)
		})
		r.With(staffOnly).Get("/api/staff/appointments", h.ListStaff)
	}

	if cfg.PaymentHandler != nil {
		h := cfg.PaymentHandler
		r.Route("/api/payments", func(r chi.Router) {
			r.With(patientOnly).Post("/deposit", h.CreateDeposit)
			r.With(staffOnly).Post("/{id}/final/online", h.CreateFinalOnline)
			r.With(staffOnly).Post("/{id}/final/cash", h.CreateFinalCash)
			r.With(anyUser).Get("/deposit-total/{id}", h.DepositTotal)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
