package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps orders in memory; handler tests in other packages install it under {"Orders", "Store"}.
type MemoryStore struct {
	mu            sync.Mutex
	Orders        map[string]*Order
	OrderItems    map[string][]Item
	Notifications []Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Orders:     map[string]*Order{},
		OrderItems: map[string][]Item{},
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, found := s.Orders[id]
	if !found {
		return nil, ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *MemoryStore) Items(ctx context.Context, orderID string) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.OrderItems[orderID]), nil
}

func (s *MemoryStore) Create(ctx context.Context, order *Order, items []Item) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := *order
	created.ID = uuid.NewString()
	s.Orders[created.ID] = &created
	for i := range items {
		items[i].OrderID = created.ID
	}
	s.OrderItems[created.ID] = slices.Clone(items)
	copied := created
	return &copied, nil
}

func (s *MemoryStore) apply(order *Order, values map[string]any) error {
	current, err := json.Marshal(order)
	if err != nil {
		return err
	}
	merged := map[string]any{}
	if err := json.Unmarshal(current, &merged); err != nil {
		return err
	}
	for key, val := range values {
		merged[key] = val
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	updated := Order{}
	if err := json.Unmarshal(data, &updated); err != nil {
		return fmt.Errorf("could not apply update %v:\n>>> %w", values, err)
	}
	*order = updated
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, expected Status, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, found := s.Orders[id]
	if !found || order.Status != expected {
		return ErrConflict
	}
	return s.apply(order, values)
}

func (s *MemoryStore) UpdatePayout(ctx context.Context, id string, expected PayoutStatus, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, found := s.Orders[id]
	if !found || order.PayoutStatus != expected {
		return ErrConflict
	}
	return s.apply(order, values)
}

func (s *MemoryStore) SetPodOrderID(ctx context.Context, id string, podOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, found := s.Orders[id]
	if !found || order.Status != StatusPaid || order.PodOrderID != nil {
		return ErrConflict
	}
	order.PodOrderID = &podOrderID
	return nil
}

func (s *MemoryStore) EtsyReceiptIDs(ctx context.Context, businessID string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []int64{}
	for _, order := range s.Orders {
		if order.BusinessID == businessID && order.Source == SourceEtsy && order.EtsyReceiptID != nil {
			ids = append(ids, *order.EtsyReceiptID)
		}
	}
	return ids, nil
}

func (s *MemoryStore) ReadyForPayout(ctx context.Context, limit int) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ready := []Order{}
	for _, order := range s.Orders {
		if order.PayoutStatus == PayoutReady && len(ready) < limit {
			ready = append(ready, *order)
		}
	}
	slices.SortFunc(ready, func(a, b Order) int { return strings.Compare(a.ID, b.ID) })
	return ready, nil
}

func (s *MemoryStore) Notify(ctx context.Context, notification Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Notifications = append(s.Notifications, notification)
	return nil
}
