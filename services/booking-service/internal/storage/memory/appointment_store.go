package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/storage"
)

type AppointmentStore struct {
	locks *keyedMutex

	mu           sync.RWMutex
	appointments map[string]model.Appointment
	byDay        map[string][]string
	reviews      map[string]model.Review
	outbox       []storage.OutboxEvent
}

func NewAppointmentStore() *AppointmentStore {
	return &AppointmentStore{
		locks:        newKeyedMutex(),
		appointments: map[string]model.Appointment{},
		byDay:        map[string][]string{},
		reviews:      map[string]model.Review{},
	}
}

func (s *AppointmentStore) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, model.ErrAppointmentNotFound
	}
	return a, nil
}

func (s *AppointmentStore) ListProviderDay(_ context.Context, providerID string, date model.Date) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listDayLocked(providerID, date, nil), nil
}

func (s *AppointmentStore) listDayLocked(providerID string, date model.Date, staged map[string]model.Appointment) []model.Appointment {
	seen := map[string]bool{}
	var out []model.Appointment
	for _, id := range s.byDay[storage.DayKey(providerID, date)] {
		a := s.appointments[id]
		if st, ok := staged[id]; ok {
			a = st
		}
		seen[id] = true
		out = append(out, a)
	}
	for id, a := range staged {
		if !seen[id] && a.ProviderID == providerID && a.Date.Equal(date) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

func (s *AppointmentStore) CountByStartTime(_ context.Context, providerID string, weekday time.Weekday, from, to model.Date) (map[model.Clock]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[model.Clock]int{}
	for _, a := range s.appointments {
		if a.ProviderID != providerID || !a.Blocks() || a.Date.Weekday() != weekday {
			continue
		}
		if a.Date.Before(from) || !a.Date.Before(to) {
			continue
		}
		counts[a.StartTime]++
	}
	return counts, nil
}

func (s *AppointmentStore) WithinLock(ctx context.Context, key string, fn func(ctx context.Context, tx storage.Tx) error) error {
	unlock := s.locks.Lock(key)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{store: s, appointments: map[string]model.Appointment{}, reviews: map[string]model.Review{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(tx)
}

// commit re-checks the overlap invariant against the committed state, the way the
// Postgres exclusion constraint would.
func (s *AppointmentStore) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range tx.appointments {
		if !a.Blocks() {
			continue
		}
		start, end := a.Occupied()
		for _, other := range s.listDayLocked(a.ProviderID, a.Date, tx.appointments) {
			if other.ID == id || !other.Blocks() {
				continue
			}
			oStart, oEnd := other.Occupied()
			if model.Overlaps(start, end, oStart, oEnd) {
				return storage.ErrOverlap
			}
		}
	}
	for _, r := range tx.reviews {
		if _, exists := s.reviews[r.AppointmentID]; exists {
			return model.ErrReviewAlreadyExists
		}
	}

	for id, a := range tx.appointments {
		if _, exists := s.appointments[id]; !exists {
			key := storage.DayKey(a.ProviderID, a.Date)
			s.byDay[key] = append(s.byDay[key], id)
		}
		s.appointments[id] = a
	}
	for id, r := range tx.reviews {
		s.reviews[id] = r
	}
	s.outbox = append(s.outbox, tx.events...)
	return nil
}

// Outbox returns the committed outbox rows in commit order.
func (s *AppointmentStore) Outbox() []storage.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]storage.OutboxEvent(nil), s.outbox...)
}

// memTx stages writes until fn returns nil.
type memTx struct {
	store        *AppointmentStore
	appointments map[string]model.Appointment
	reviews      map[string]model.Review
	events       []storage.OutboxEvent
}

func (t *memTx) ListProviderDay(_ context.Context, providerID string, date model.Date) ([]model.Appointment, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.listDayLocked(providerID, date, t.appointments), nil
}

func (t *memTx) InsertAppointment(_ context.Context, a model.Appointment) error {
	t.appointments[a.ID] = a
	return nil
}

func (t *memTx) GetAppointmentForUpdate(_ context.Context, id string) (model.Appointment, error) {
	if a, ok := t.appointments[id]; ok {
		return a, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	a, ok := t.store.appointments[id]
	if !ok {
		return model.Appointment{}, model.ErrAppointmentNotFound
	}
	return a, nil
}

func (t *memTx) UpdateAppointment(ctx context.Context, a model.Appointment) error {
	if _, err := t.GetAppointmentForUpdate(ctx, a.ID); err != nil {
		return err
	}
	t.appointments[a.ID] = a
	return nil
}

func (t *memTx) GetReview(_ context.Context, appointmentID string) (model.Review, bool, error) {
	if r, ok := t.reviews[appointmentID]; ok {
		return r, true, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	r, ok := t.store.reviews[appointmentID]
	return r, ok, nil
}

func (t *memTx) InsertReview(_ context.Context, r model.Review) error {
	if _, ok, _ := t.GetReview(context.Background(), r.AppointmentID); ok {
		return model.ErrReviewAlreadyExists
	}
	t.reviews[r.AppointmentID] = r
	return nil
}

func (t *memTx) InsertEvent(_ context.Context, e storage.OutboxEvent) error {
	t.events = append(t.events, e)
	return nil
}
