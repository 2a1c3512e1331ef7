package timeslot

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository keeps slots in a map, with the same conditional claim
// semantics as the Postgres repository. Used by service and handler tests.
type InMemoryRepository struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*TimeSlot
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{slots: make(map[uuid.UUID]*TimeSlot)}
}

// Put stores a slot, generating an id when missing.
func (r *InMemoryRepository) Put(s TimeSlot) *TimeSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = StatusActive
	}
	cp := s
	r.slots[cp.ID] = &cp
	return &cp
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *InMemoryRepository) Claim(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return ErrNotFound
	}
	if !s.Bookable() {
		return ErrTaken
	}
	s.IsAvailable = false
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryRepository) Release(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return ErrNotFound
	}
	if s.IsAvailable {
		return ErrNotClaimed
	}
	s.IsAvailable = true
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryRepository) CreateBatch(ctx context.Context, slots []TimeSlot) error {
	for _, s := range slots {
		s.IsAvailable = true
		r.Put(s)
	}
	return nil
}

func (r *InMemoryRepository) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []TimeSlot
	for _, s := range r.slots {
		if s.DoctorID == doctorID && SameDay(s.Date, date) {
			result = append(result, *s)
		}
	}
	return result, nil
}
