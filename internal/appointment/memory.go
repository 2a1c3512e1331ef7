package appointment

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dentistez/clinic-api/internal/timeslot"
)

// InMemoryRepository implements Repository over maps, mirroring the
// conditional semantics of the Postgres repository. Display names for
// Detail rows can be registered with SetNames. Used by service and handler
// tests.
type InMemoryRepository struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*Appointment
	files map[uuid.UUID][]File
	names map[uuid.UUID]string // id -> display name for any joined entity
	slots *timeslot.InMemoryRepository

	// ChangeSlotHook, when set, runs between the claim and the row update
	// inside ChangeSlot so tests can inject a mid-transaction failure.
	ChangeSlotHook func() error
}

// NewInMemoryRepository creates an in-memory repo sharing the given slot store.
func NewInMemoryRepository(slots *timeslot.InMemoryRepository) *InMemoryRepository {
	return &InMemoryRepository{
		appts: make(map[uuid.UUID]*Appointment),
		files: make(map[uuid.UUID][]File),
		names: make(map[uuid.UUID]string),
		slots: slots,
	}
}

// SetName registers a display name for a referenced entity id.
func (r *InMemoryRepository) SetName(id uuid.UUID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[id] = name
}

// Put stores an appointment directly, bypassing slot claiming.
func (r *InMemoryRepository) Put(a Appointment) *Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusConfirmed
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.UpdatedAt = time.Now().UTC()
	cp := a
	r.appts[cp.ID] = &cp
	out := cp
	return &out
}

// Files returns the files attached to an appointment.
func (r *InMemoryRepository) Files(id uuid.UUID) []File {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]File(nil), r.files[id]...)
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *InMemoryRepository) detailLocked(a *Appointment) (*Detail, error) {
	d := Detail{
		Appointment: *a,
		PatientName: r.names[a.PatientID],
		DoctorName:  r.names[a.DoctorID],
		ServiceName: r.names[a.ServiceID],
		OptionName:  r.names[a.ServiceOptionID],
		ClinicName:  r.names[a.ClinicID],
	}
	if r.slots != nil {
		if s, err := r.slots.GetByID(context.Background(), a.TimeSlotID); err == nil {
			d.SlotDate = s.Date
			d.SlotStartTime = s.StartTime
			d.SlotEndTime = s.EndTime
		}
	}
	return &d, nil
}

func (r *InMemoryRepository) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.detailLocked(a)
}

func (r *InMemoryRepository) CreateWithSlot(ctx context.Context, appt *Appointment) error {
	if err := r.slots.Claim(ctx, appt.TimeSlotID); err != nil {
		return err
	}
	created := r.Put(*appt)
	*appt = *created
	return nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to string, allowedFrom ...string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, from := range allowedFrom {
		if a.Status == from {
			a.Status = to
			a.UpdatedAt = time.Now().UTC()
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrInvalidTransition
}

func (r *InMemoryRepository) UpdateNote(ctx context.Context, id uuid.UUID, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return ErrNotFound
	}
	a.Note = note
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryRepository) ChangeSlot(ctx context.Context, id, oldSlot, newSlot uuid.UUID, note *string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}

	released := false
	if err := r.slots.Release(ctx, oldSlot); err != nil {
		if !errors.Is(err, timeslot.ErrNotClaimed) {
			return err
		}
	} else {
		released = true
	}

	rollback := func() {
		if released {
			_ = r.slots.Claim(ctx, oldSlot)
		}
	}

	if err := r.slots.Claim(ctx, newSlot); err != nil {
		rollback()
		return err
	}

	if r.ChangeSlotHook != nil {
		if err := r.ChangeSlotHook(); err != nil {
			_ = r.slots.Release(ctx, newSlot)
			rollback()
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.appts[id]
	a.TimeSlotID = newSlot
	if note != nil {
		a.Note = *note
	}
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryRepository) Cancel(ctx context.Context, id, slotID uuid.UUID, refundAccount *string, release bool, allowedFrom ...string) (*Appointment, error) {
	appt, err := r.UpdateStatus(ctx, id, StatusCancelled, allowedFrom...)
	if err != nil {
		return nil, err
	}
	if refundAccount != nil {
		r.mu.Lock()
		r.appts[id].RefundAccount = refundAccount
		appt.RefundAccount = refundAccount
		r.mu.Unlock()
	}
	if release {
		if err := r.slots.Release(ctx, slotID); err != nil && !errors.Is(err, timeslot.ErrNotClaimed) {
			return nil, err
		}
	}
	return appt, nil
}

func (r *InMemoryRepository) ListReExaminations(ctx context.Context, rootID uuid.UUID) ([]Detail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Detail
	for _, a := range r.appts {
		if a.ReExaminationOf != nil && *a.ReExaminationOf == rootID {
			d, _ := r.detailLocked(a)
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SlotDate.Before(result[j].SlotDate)
	})
	return result, nil
}

func (r *InMemoryRepository) HasReExamOnDay(ctx context.Context, rootID uuid.UUID, day time.Time) (bool, error) {
	r.mu.Lock()
	appts := make([]*Appointment, 0, len(r.appts))
	for _, a := range r.appts {
		appts = append(appts, a)
	}
	r.mu.Unlock()

	for _, a := range appts {
		if a.ReExaminationOf == nil || *a.ReExaminationOf != rootID || a.Status == StatusCancelled {
			continue
		}
		s, err := r.slots.GetByID(ctx, a.TimeSlotID)
		if err != nil {
			continue
		}
		if timeslot.SameDay(s.Date, day) {
			return true, nil
		}
	}
	return false, nil
}

func (r *InMemoryRepository) ListStaff(ctx context.Context, filter StaffListFilter) (*StaffPage, error) {
	filter.Normalize()

	r.mu.Lock()
	appts := make([]*Appointment, 0, len(r.appts))
	for _, a := range r.appts {
		appts = append(appts, a)
	}
	r.mu.Unlock()

	searchDay, searchIsDate := ParseSearchDate(filter.Search)
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	var matched []Detail
	for _, a := range appts {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		d, _ := r.GetDetail(ctx, a.ID)
		if search != "" {
			if searchIsDate {
				if !timeslot.SameDay(d.SlotDate, searchDay) {
					continue
				}
			} else {
				hay := strings.ToLower(strings.Join([]string{
					d.PatientName, d.DoctorName, d.ServiceName, d.OptionName,
				}, " "))
				if !strings.Contains(hay, search) {
					continue
				}
			}
		}
		matched = append(matched, *d)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SlotDate.After(matched[j].SlotDate)
	})

	page := &StaffPage{Data: []Detail{}, Total: len(matched), Page: filter.Page, Limit: filter.Limit}
	start := (filter.Page - 1) * filter.Limit
	if start < len(matched) {
		end := start + filter.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Data = matched[start:end]
	}
	return page, nil
}

func (r *InMemoryRepository) AddFile(ctx context.Context, f *File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	f.CreatedAt = time.Now().UTC()
	r.files[f.AppointmentID] = append(r.files[f.AppointmentID], *f)
	return nil
}
