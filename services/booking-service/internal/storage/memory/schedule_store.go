// Package memory implements the stores in process. It backs tests and single-instance
// deployments without DATABASE_URL.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

type ScheduleStore struct {
	mu        sync.RWMutex
	schedules map[string]model.ProviderSchedule
	breaks    map[string][]model.Break
	blocked   map[string][]model.BlockedSlot
	services  map[string]model.Service
}

func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{
		schedules: map[string]model.ProviderSchedule{},
		breaks:    map[string][]model.Break{},
		blocked:   map[string][]model.BlockedSlot{},
		services:  map[string]model.Service{},
	}
}

func (s *ScheduleStore) GetSchedule(_ context.Context, providerID string) (model.ProviderSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sched, ok := s.schedules[providerID]
	if !ok {
		return model.ProviderSchedule{}, model.ErrScheduleNotFound
	}
	sched.WorkingDays = slices.Clone(sched.WorkingDays)
	return sched, nil
}

func (s *ScheduleStore) PutSchedule(_ context.Context, sched model.ProviderSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched.WorkingDays = slices.Clone(sched.WorkingDays)
	s.schedules[sched.ProviderID] = sched
	return nil
}

func (s *ScheduleStore) ListBreaks(_ context.Context, providerID string) ([]model.Break, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.breaks[providerID]), nil
}

func (s *ScheduleStore) AddBreak(_ context.Context, b model.Break) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breaks[b.ProviderID] = append(s.breaks[b.ProviderID], b)
	return nil
}

func (s *ScheduleStore) DeleteBreak(_ context.Context, providerID, breakID string) (model.Break, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.breaks[providerID]
	i := slices.IndexFunc(list, func(b model.Break) bool { return b.ID == breakID })
	if i < 0 {
		return model.Break{}, model.ErrBreakNotFound
	}
	removed := list[i]
	s.breaks[providerID] = slices.Delete(slices.Clone(list), i, i+1)
	return removed, nil
}

func (s *ScheduleStore) ListBlocked(_ context.Context, providerID string, date model.Date) ([]model.BlockedSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.BlockedSlot
	for _, b := range s.blocked[providerID] {
		if b.Date.Equal(date) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (s *ScheduleStore) AddBlocked(_ context.Context, b model.BlockedSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[b.ProviderID] = append(s.blocked[b.ProviderID], b)
	return nil
}

func (s *ScheduleStore) DeleteBlocked(_ context.Context, providerID, blockID string) (model.BlockedSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.blocked[providerID]
	i := slices.IndexFunc(list, func(b model.BlockedSlot) bool { return b.ID == blockID })
	if i < 0 {
		return model.BlockedSlot{}, model.ErrBlockNotFound
	}
	removed := list[i]
	s.blocked[providerID] = slices.Delete(slices.Clone(list), i, i+1)
	return removed, nil
}

func (s *ScheduleStore) GetService(_ context.Context, serviceID string) (model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[serviceID]
	if !ok {
		return model.Service{}, model.ErrServiceNotFound
	}
	return svc, nil
}

func (s *ScheduleStore) PutService(_ context.Context, svc model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
	return nil
}
