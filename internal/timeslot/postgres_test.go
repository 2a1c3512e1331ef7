package timeslot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
)

func TestClaimSucceedsWhenAvailable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE time_slots").
		WithArgs(id, StatusActive).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewPostgresRepository(mock)
	if err := repo.Claim(context.Background(), id); err != nil {
		t.Fatalf("Claim returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestClaimReturnsTakenWhenSlotConsumed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE time_slots").
		WithArgs(id, StatusActive).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewPostgresRepository(mock)
	if err := repo.Claim(context.Background(), id); !errors.Is(err, ErrTaken) {
		t.Fatalf("expected ErrTaken, got %v", err)
	}
}

func TestClaimReturnsNotFoundForMissingSlot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE time_slots").
		WithArgs(id, StatusActive).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	repo := NewPostgresRepository(mock)
	if err := repo.Claim(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReleaseRestoresAvailability(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE time_slots").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewPostgresRepository(mock)
	if err := repo.Release(context.Background(), id); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
}

func TestGetByIDScansRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	doctorID := uuid.New()
	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "doctor_id", "date", "slot_index", "start_time", "end_time",
		"is_available", "status", "created_at", "updated_at",
	}).AddRow(id, doctorID, now.Truncate(24*time.Hour), 3, now, now.Add(30*time.Minute), true, StatusActive, now, now)

	mock.ExpectQuery("SELECT (.+) FROM time_slots").
		WithArgs(id).
		WillReturnRows(rows)

	repo := NewPostgresRepository(mock)
	slot, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if slot.DoctorID != doctorID || slot.SlotIndex != 3 || !slot.Bookable() {
		t.Fatalf("unexpected slot: %+v", slot)
	}
}

func TestInMemoryClaimSemantics(t *testing.T) {
	repo := NewInMemoryRepository()
	slot := repo.Put(TimeSlot{DoctorID: uuid.New(), Date: time.Now(), SlotIndex: 1, IsAvailable: true})

	ctx := context.Background()
	if err := repo.Claim(ctx, slot.ID); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if err := repo.Claim(ctx, slot.ID); !errors.Is(err, ErrTaken) {
		t.Fatalf("second claim should conflict, got %v", err)
	}
	if err := repo.Release(ctx, slot.ID); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := repo.Claim(ctx, slot.ID); err != nil {
		t.Fatalf("claim after release failed: %v", err)
	}
}
