package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/BearBump/RiskSync/internal/hosting"
)

// Store — in-memory реализация коллабораторов магазина для тестов и
// локального запуска без хост-платформы.
type Store struct {
	mu      sync.Mutex
	orders  map[string]*hosting.Order
	notes   map[string][]string
	coupons map[string]string            // couponID -> code
	applied map[string][]string          // orderID -> codes
	nextID  int
}

func New() *Store {
	return &Store{
		orders:  map[string]*hosting.Order{},
		notes:   map[string][]string{},
		coupons: map[string]string{},
		applied: map[string][]string{},
	}
}

func (s *Store) PutOrder(o *hosting.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orders[o.ID] = &cp
}

func (s *Store) GetOrder(ctx context.Context, id string) (*hosting.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (s *Store) SaveOrder(ctx context.Context, o *hosting.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, orderID, status, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	o.Status = status
	if note != "" {
		s.notes[orderID] = append(s.notes[orderID], note)
	}
	return nil
}

func (s *Store) AddOrderNote(ctx context.Context, orderID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[orderID] = append(s.notes[orderID], note)
	return nil
}

func (s *Store) Notes(orderID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.notes[orderID]...)
}

func (s *Store) CreateCoupon(ctx context.Context, code, amount string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("c%d", s.nextID)
	s.coupons[id] = code
	return id, nil
}

func (s *Store) ApplyCoupon(ctx context.Context, orderID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied[orderID] = append(s.applied[orderID], code)
	return nil
}

func (s *Store) DeleteCoupon(ctx context.Context, couponID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.coupons, couponID)
	return nil
}

// CouponCount — сколько купонов осталось в "каталоге" (для проверки
// create-then-delete как net no-op).
func (s *Store) CouponCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.coupons)
}

func (s *Store) AppliedCoupons(orderID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.applied[orderID]...)
}
