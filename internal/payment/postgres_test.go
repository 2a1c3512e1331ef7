package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
)

func TestMarkPaidConditionalUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE payments").
		WithArgs(id, StatusPaid, StatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewPostgresRepository(mock)
	if err := repo.MarkPaid(context.Background(), id); err != nil {
		t.Fatalf("MarkPaid returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMarkPaidAlreadyProcessed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE payments").
		WithArgs(id, StatusPaid, StatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewPostgresRepository(mock)
	if err := repo.MarkPaid(context.Background(), id); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
}

func TestGetByOrderCodeDecodesMeta(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	slotID := uuid.New()
	now := time.Now().UTC()
	meta := []byte(`{"time_slot_id":"` + slotID.String() + `","note":"first visit"}`)

	rows := pgxmock.NewRows([]string{
		"id", "amount", "type", "payment_method", "status", "order_code",
		"description", "pay_url", "qr_code", "appointment_id", "meta", "created_at", "updated_at",
	}).AddRow(id, int64(200000), TypeDeposit, MethodOnline, StatusPending, int64(987654),
		"deposit", "", "", nil, meta, now, now)

	mock.ExpectQuery("SELECT (.+) FROM payments").
		WithArgs(int64(987654)).
		WillReturnRows(rows)

	repo := NewPostgresRepository(mock)
	p, err := repo.GetByOrderCode(context.Background(), 987654)
	if err != nil {
		t.Fatalf("GetByOrderCode returned error: %v", err)
	}
	if p.Meta == nil || p.Meta.TimeSlotID != slotID || p.Meta.Note != "first visit" {
		t.Fatalf("meta not decoded: %+v", p.Meta)
	}
}

func TestDepositTotalQuery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	apptID := uuid.New()
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(apptID, TypeDeposit, StatusPaid).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(200000)))

	repo := NewPostgresRepository(mock)
	total, err := repo.DepositTotal(context.Background(), apptID)
	if err != nil {
		t.Fatalf("DepositTotal returned error: %v", err)
	}
	if total != 200000 {
		t.Fatalf("expected 200000, got %d", total)
	}
}
