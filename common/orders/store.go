package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"podmarket/common/app"
	"podmarket/common/supa"

	"github.com/supabase-community/postgrest-go"
)

// Store is the orders persistence used by the request handlers.
type Store interface {
	Get(ctx context.Context, id string) (*Order, error)
	Items(ctx context.Context, orderID string) ([]Item, error)
	Create(ctx context.Context, order *Order, items []Item) (*Order, error)
	// Update applies values only while the order still has the expected status.
	Update(ctx context.Context, id string, expected Status, values map[string]any) error
	// UpdatePayout applies values only while the order still has the expected payout status.
	UpdatePayout(ctx context.Context, id string, expected PayoutStatus, values map[string]any) error
	// SetPodOrderID records the provider order of a paid order that has none yet, ErrConflict otherwise.
	SetPodOrderID(ctx context.Context, id string, podOrderID string) error
	EtsyReceiptIDs(ctx context.Context, businessID string) ([]int64, error)
	ReadyForPayout(ctx context.Context, limit int) ([]Order, error)
	Notify(ctx context.Context, notification Notification) error
}

// StoreFromContext returns the Supabase backed store, or a replacement placed in the app cache under {"Orders", "Store"}.
func StoreFromContext(ctx context.Context) Store {
	store, _ := app.GetCacheValue[Store](ctx, []any{"Orders", "Store"}, &supabaseStore{})
	return store
}

type supabaseStore struct{}

const orderColumns = "*"

func (s *supabaseStore) Get(ctx context.Context, id string) (*Order, error) {
	var order Order
	err := supa.SelectOne(ctx, "orders", orderColumns, map[string]string{"id": id}, &order)
	if errors.Is(err, supa.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *supabaseStore) Items(ctx context.Context, orderID string) ([]Item, error) {
	items := []Item{}
	if err := supa.SelectMany(ctx, "order_items", "*", map[string]string{"order_id": orderID}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *supabaseStore) Create(ctx context.Context, order *Order, items []Item) (*Order, error) {
	values := map[string]any{
		"business_id":           order.BusinessID,
		"customer_id":           order.CustomerID,
		"source":                order.Source,
		"etsy_receipt_id":       order.EtsyReceiptID,
		"status":                order.Status,
		"payout_status":         order.PayoutStatus,
		"currency":              order.Currency,
		"subtotal_cents":        order.SubtotalCents,
		"shipping_cents":        order.ShippingCents,
		"total_cents":           order.TotalCents,
		"production_cost_cents": order.ProductionCostCents,
		"shipping_address":      order.ShippingAddress,
		"buyer_name":            order.BuyerName,
		"buyer_email":           order.BuyerEmail,
		"payment_due_at":        order.PaymentDueAt,
	}
	var created Order
	if err := supa.Insert(ctx, "orders", values, &created); err != nil {
		return nil, err
	}
	if len(items) > 0 {
		for i := range items {
			items[i].OrderID = created.ID
		}
		if err := supa.Insert(ctx, "order_items", items, nil); err != nil {
			return nil, fmt.Errorf("order %s created without its items:\n>>> %w", created.ID, err)
		}
	}
	return &created, nil
}

func (s *supabaseStore) Update(ctx context.Context, id string, expected Status, values map[string]any) error {
	values["updated_at"] = time.Now().UTC()
	n, err := supa.Update(ctx, "orders", values, map[string]string{"id": id, "status": string(expected)})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *supabaseStore) UpdatePayout(ctx context.Context, id string, expected PayoutStatus, values map[string]any) error {
	values["updated_at"] = time.Now().UTC()
	n, err := supa.Update(ctx, "orders", values, map[string]string{"id": id, "payout_status": string(expected)})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *supabaseStore) SetPodOrderID(ctx context.Context, id string, podOrderID string) error {
	client, err := supa.Client(ctx)
	if err != nil {
		return err
	}
	values := map[string]any{"pod_order_id": podOrderID, "updated_at": time.Now().UTC()}
	var rows []map[string]any
	_, err = client.From("orders").
		Update(values, "representation", "").
		Eq("id", id).
		Eq("status", string(StatusPaid)).
		Is("pod_order_id", "null").
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("error recording provider order %s on order %s:\n>>> %w", podOrderID, id, err)
	}
	if len(rows) == 0 {
		return ErrConflict
	}
	return nil
}

func (s *supabaseStore) EtsyReceiptIDs(ctx context.Context, businessID string) ([]int64, error) {
	var rows []struct {
		EtsyReceiptID *int64 `json:"etsy_receipt_id"`
	}
	filters := map[string]string{"business_id": businessID, "source": string(SourceEtsy)}
	if err := supa.SelectMany(ctx, "orders", "etsy_receipt_id", filters, &rows); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if row.EtsyReceiptID != nil {
			ids = append(ids, *row.EtsyReceiptID)
		}
	}
	return ids, nil
}

func (s *supabaseStore) ReadyForPayout(ctx context.Context, limit int) ([]Order, error) {
	client, err := supa.Client(ctx)
	if err != nil {
		return nil, err
	}
	ready := []Order{}
	_, err = client.From("orders").
		Select(orderColumns, "", false).
		Eq("payout_status", string(PayoutReady)).
		Order("payout_release_at", &postgrest.OrderOpts{Ascending: true}).
		Limit(limit, "").
		ExecuteTo(&ready)
	if err != nil {
		return nil, fmt.Errorf("error selecting orders ready for payout (limit %d):\n>>> %w", limit, err)
	}
	return ready, nil
}

func (s *supabaseStore) Notify(ctx context.Context, notification Notification) error {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	return supa.Insert(ctx, "notifications", notification, nil)
}
