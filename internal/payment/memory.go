package payment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository mirrors the conditional transition semantics of the
// Postgres repository for service and orchestrator tests.
type InMemoryRepository struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*Payment
}

// NewInMemoryRepository creates an empty in-memory payment store.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{payments: make(map[uuid.UUID]*Payment)}
}

// Put stores a payment directly.
func (r *InMemoryRepository) Put(p Payment) *Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := p
	r.payments[cp.ID] = &cp
	out := cp
	return &out
}

func (r *InMemoryRepository) Create(ctx context.Context, p *Payment) error {
	created := r.Put(*p)
	*p = *created
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *InMemoryRepository) GetByOrderCode(ctx context.Context, orderCode int64) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.OrderCode == orderCode {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryRepository) transition(id uuid.UUID, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return ErrNotFound
	}
	if p.Status != StatusPending {
		return ErrAlreadyProcessed
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryRepository) MarkPaid(ctx context.Context, id uuid.UUID) error {
	return r.transition(id, StatusPaid)
}

func (r *InMemoryRepository) MarkCanceled(ctx context.Context, id uuid.UUID) error {
	return r.transition(id, StatusCanceled)
}

func (r *InMemoryRepository) SetPayLink(ctx context.Context, id uuid.UUID, payURL, qrCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return ErrNotFound
	}
	p.PayURL = payURL
	p.QRCode = qrCode
	return nil
}

// SetAppointment links a payment to its appointment.
func (r *InMemoryRepository) SetAppointment(id, appointmentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return ErrNotFound
	}
	cp := appointmentID
	p.AppointmentID = &cp
	return nil
}

func (r *InMemoryRepository) DepositTotal(ctx context.Context, appointmentID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, p := range r.payments {
		if p.AppointmentID != nil && *p.AppointmentID == appointmentID &&
			p.Type == TypeDeposit && p.Status == StatusPaid {
			total += p.Amount
		}
	}
	return total, nil
}
