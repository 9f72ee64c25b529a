// Package repositorytest provides in-memory stores for tests.
package repositorytest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marminbh/parking-svc/internal/models"
	"github.com/marminbh/parking-svc/internal/repository"
)

// MemorySpotStore keeps spots in process memory.
type MemorySpotStore struct {
	mu    sync.RWMutex
	order []uuid.UUID
	spots map[uuid.UUID]models.Spot
}

func NewMemorySpotStore() *MemorySpotStore {
	return &MemorySpotStore{spots: make(map[uuid.UUID]models.Spot)}
}

func (s *MemorySpotStore) List(ctx context.Context) ([]models.Spot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Spot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.spots[id])
	}
	return out, nil
}

func (s *MemorySpotStore) Get(ctx context.Context, id uuid.UUID) (*models.Spot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	spot, ok := s.spots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &spot, nil
}

func (s *MemorySpotStore) Create(ctx context.Context, spot *models.Spot) error {
	if spot.ID == uuid.Nil {
		spot.ID = uuid.New()
	}
	if spot.Type == "" {
		spot.Type = models.SpotTypeStandard
	}
	now := time.Now().UTC()
	spot.CreatedAt, spot.UpdatedAt = now, now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spots[spot.ID]; !ok {
		s.order = append(s.order, spot.ID)
	}
	s.spots[spot.ID] = *spot
	return nil
}

func (s *MemorySpotStore) SetOccupied(ctx context.Context, id uuid.UUID, occupied bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	spot, ok := s.spots[id]
	if !ok {
		return repository.ErrNotFound
	}
	spot.IsOccupied = occupied
	spot.UpdatedAt = time.Now().UTC()
	s.spots[id] = spot
	return nil
}

// MemoryReservationStore keeps reservations in process memory.
type MemoryReservationStore struct {
	mu           sync.RWMutex
	reservations []models.Reservation
}

func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{}
}

func (s *MemoryReservationStore) List(ctx context.Context) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(make([]models.Reservation, 0, len(s.reservations)), s.reservations...), nil
}

func (s *MemoryReservationStore) Create(ctx context.Context, r *models.Reservation) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = models.ReservationActive
	}
	r.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations = append(s.reservations, *r)
	return nil
}

func (s *MemoryReservationStore) ListActiveBySpot(ctx context.Context, spotID string) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Reservation
	for _, r := range s.reservations {
		if r.SpotID == spotID && r.Status == models.ReservationActive {
			out = append(out, r)
		}
	}
	return out, nil
}

// MemoryBillStore keeps bills in process memory.
type MemoryBillStore struct {
	mu    sync.RWMutex
	bills []models.Bill
}

func NewMemoryBillStore() *MemoryBillStore {
	return &MemoryBillStore{}
}

func (s *MemoryBillStore) List(ctx context.Context) ([]models.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(make([]models.Bill, 0, len(s.bills)), s.bills...), nil
}

func (s *MemoryBillStore) Create(ctx context.Context, b *models.Bill) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = models.BillStatusPending
	}
	b.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bills = append(s.bills, *b)
	return nil
}

func (s *MemoryBillStore) ListByReservation(ctx context.Context, reservationID string) ([]models.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Bill
	for _, b := range s.bills {
		if b.ReservationID == reservationID {
			out = append(out, b)
		}
	}
	return out, nil
}

var (
	_ repository.SpotStore        = (*MemorySpotStore)(nil)
	_ repository.ReservationStore = (*MemoryReservationStore)(nil)
	_ repository.BillStore        = (*MemoryBillStore)(nil)
)
