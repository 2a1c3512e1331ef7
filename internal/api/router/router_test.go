package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dentistez/clinic-api/internal/appointment"
	"github.com/dentistez/clinic-api/internal/auth"
	"github.com/dentistez/clinic-api/internal/booking"
	"github.com/dentistez/clinic-api/internal/payment"
	"github.com/dentistez/clinic-api/internal/payos"
	"github.com/dentistez/clinic-api/internal/timeslot"
	"github.com/dentistez/clinic-api/pkg/logging"
)

const testSecret = "router-test-secret"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := logging.Default()

	slots := timeslot.NewInMemoryRepository()
	appts := appointment.NewInMemoryRepository(slots)
	payments := payment.NewInMemoryRepository()

	apptSvc := appointment.NewService(appts, slots, appointment.DefaultRules(), logger)
	paySvc := payment.NewService(payments, slots, appts,
		&payment.MemFinalizer{Appointments: appts, Payments: payments},
		&payos.StubLinkCreator{}, payment.DefaultRules(), logger)
	store := booking.NewMemStore(slots, appts, payments)
	bookingSvc := booking.NewService(payments, slots, store, nil, nil, nil, logger)

	return New(&Config{
		Logger:             logger,
		TimeSlotHandler:    timeslot.NewHandler(slots, logger),
		AppointmentHandler: appointment.NewHandler(apptSvc, logger),
		PaymentHandler:     payment.NewHandler(paySvc, logger),
		PayOSWebhook:       booking.NewWebhookHandler(bookingSvc, nil, logger),
		JWTSecret:          testSecret,
	})
}

func signToken(t *testing.T, role string) string {
	t.Helper()
	claims := auth.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestHealthIsPublic(t *testing.T) {
	r := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestTimeslotListingIsPublic(t *testing.T) {
	r := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/timeslots?doctorId="+uuid.NewString()+"&date=2025-08-01", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStaffEndpointsRequireAuth(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/staff/appointments", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/staff/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, auth.RolePatient))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for patient role, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/staff/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, auth.RoleStaff))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for staff role, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookIsPublic(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payos",
		nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	// Reachable without auth; empty body is a 400, not a 401.
	if rec.Code == http.StatusUnauthorized || rec.Code == http.StatusForbidden {
		t.Fatalf("webhook must be public, got %d", rec.Code)
	}
}

func TestPatientCancelRefundGate(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPut,
		"/api/appointments/"+uuid.NewString()+"/cancel-refund", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, auth.RoleStaff))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff on patient endpoint, got %d", rec.Code)
	}
}
