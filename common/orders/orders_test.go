package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"podmarket/common/app"
	"podmarket/common/db"
	"podmarket/common/rabbitmq"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	amqp "github.com/rabbitmq/amqp091-go"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		Title    string
		From, To Status
		Expected bool
	}{
		{Title: "Pay pending", From: StatusPendingPayment, To: StatusPaid, Expected: true},
		{Title: "Escalate pending", From: StatusPendingPayment, To: StatusEscalated, Expected: true},
		{Title: "Late payment", From: StatusEscalated, To: StatusPaid, Expected: true},
		{Title: "Cancel escalated", From: StatusEscalated, To: StatusCancelled, Expected: true},
		{Title: "Skip production", From: StatusPaid, To: StatusShipped, Expected: true},
		{Title: "Deliver shipped", From: StatusShipped, To: StatusDelivered, Expected: true},
		{Title: "Ship unpaid", From: StatusPendingPayment, To: StatusShipped, Expected: false},
		{Title: "Backwards", From: StatusShipped, To: StatusInProduction, Expected: false},
		{Title: "Cancel shipped", From: StatusShipped, To: StatusCancelled, Expected: false},
		{Title: "Delivered is final", From: StatusDelivered, To: StatusFailed, Expected: false},
		{Title: "Cancelled is final", From: StatusCancelled, To: StatusPaid, Expected: false},
		{Title: "Same status", From: StatusPaid, To: StatusPaid, Expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			if res := CanTransition(tt.From, tt.To); res != tt.Expected {
				t.Fatalf("expected %v for %s -> %s", tt.Expected, tt.From, tt.To)
			}
		})
	}
}

func TestAmountDueAndPayable(t *testing.T) {
	etsy := &Order{Source: SourceEtsy, Status: StatusEscalated, TotalCents: 5000, ProductionCostCents: 1800}
	if etsy.AmountDue() != 1800 || !etsy.Payable() {
		t.Fatalf("etsy orders are paid by the business for production: %d %v", etsy.AmountDue(), etsy.Payable())
	}
	storefront := &Order{Source: SourceStorefront, Status: StatusPaid, TotalCents: 5000, ProductionCostCents: 1800}
	if storefront.AmountDue() != 5000 || storefront.Payable() {
		t.Fatalf("storefront orders are paid in full by the customer: %d %v", storefront.AmountDue(), storefront.Payable())
	}
}

func TestAuthorize(t *testing.T) {
	customerID := "cust-1"
	storefront := &Order{Source: SourceStorefront, BusinessID: "biz-1", CustomerID: &customerID}
	etsy := &Order{Source: SourceEtsy, BusinessID: "biz-1"}
	tests := []struct {
		Title      string
		Order      *Order
		User       app.User
		BusinessID string
		Allowed    bool
	}{
		{Title: "Customer pays own order", Order: storefront, User: app.User{ID: "cust-1", Role: app.RoleCustomer}, Allowed: true},
		{Title: "Other customer", Order: storefront, User: app.User{ID: "cust-2", Role: app.RoleCustomer}, Allowed: false},
		{Title: "Business cannot pay storefront order", Order: storefront, User: app.User{ID: "owner", Role: app.RoleBusiness}, BusinessID: "biz-1", Allowed: false},
		{Title: "Business pays own etsy order", Order: etsy, User: app.User{ID: "owner", Role: app.RoleBusiness}, BusinessID: "biz-1", Allowed: true},
		{Title: "Other business", Order: etsy, User: app.User{ID: "owner", Role: app.RoleBusiness}, BusinessID: "biz-2", Allowed: false},
		{Title: "Business without business", Order: etsy, User: app.User{ID: "owner", Role: app.RoleBusiness}, Allowed: false},
		{Title: "Admin", Order: etsy, User: app.User{ID: "admin", Role: app.RoleAdmin}, Allowed: true},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			err := Authorize(tt.Order, &tt.User, tt.BusinessID)
			if tt.Allowed && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
			if !tt.Allowed && !errors.Is(err, ErrForbidden) {
				t.Fatalf("expected ErrForbidden, got %v", err)
			}
		})
	}
}

func TestTransition(t *testing.T) {
	ctx := app.ContextWithCache(context.Background())
	store := NewMemoryStore()
	store.Orders["o1"] = &Order{ID: "o1", BusinessID: "b1", Status: StatusPaid, Source: SourceStorefront}
	defer app.SetCacheValue(ctx, []any{"Orders", "Store"}, Store(store))()

	var published []string
	defer app.SetCacheValue(ctx, []any{"RabbitMQ", "Publish"}, rabbitmq.PublishFunc(func(_ context.Context, exchange, key, _ string, body []byte, _ amqp.Table) error {
		published = append(published, exchange+"|"+key)
		return nil
	}))()

	order := &Order{ID: "o1", BusinessID: "b1", Status: StatusPaid, Source: SourceStorefront}
	if err := Transition(ctx, order, StatusInProduction, map[string]any{"pod_order_id": "g-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != StatusInProduction || store.Orders["o1"].Status != StatusInProduction {
		t.Fatalf("order status not updated: %s / %s", order.Status, store.Orders["o1"].Status)
	}
	if store.Orders["o1"].PodOrderID == nil || *store.Orders["o1"].PodOrderID != "g-1" {
		t.Fatalf("extra columns not written")
	}
	if len(published) != 1 || published[0] != "pod.orders|order.in_production" {
		t.Fatalf("unexpected events: %v", published)
	}

	err := Transition(ctx, order, StatusPendingPayment, nil)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	stale := &Order{ID: "o1", BusinessID: "b1", Status: StatusPaid}
	err = Transition(ctx, stale, StatusShipped, nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for a stale order, got %v", err)
	}
}

func TestPublishEventFailureIsNotFatal(t *testing.T) {
	ctx := app.ContextWithCache(context.Background())
	defer app.SetCacheValue(ctx, []any{"RabbitMQ", "Publish"}, rabbitmq.PublishFunc(func(context.Context, string, string, string, []byte, amqp.Table) error {
		return fmt.Errorf("broker down")
	}))()
	PublishEvent(ctx, Event{OrderID: "o1", Status: StatusShipped})
}

type fakeRows struct {
	refs   []db.Ref
	cursor int
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Next() bool {
	if r.cursor >= len(r.refs) {
		return false
	}
	r.cursor++
	return true
}
func (r *fakeRows) Scan(dest ...any) error {
	ref := r.refs[r.cursor-1]
	*(dest[0].(*string)) = ref.ID
	*(dest[1].(*string)) = ref.BusinessID
	return nil
}

type fakeQuerier struct {
	results map[string][]db.Ref
	args    map[string][]any
	fail    string
}

func (q *fakeQuerier) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (q *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	for key, refs := range q.results {
		if strings.Contains(sql, key) {
			if q.fail == key {
				return nil, fmt.Errorf("query failed")
			}
			q.args[key] = args
			return &fakeRows{refs: refs}, nil
		}
	}
	return &fakeRows{}, nil
}

func TestRunEscalation(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		Title         string
		Fail          string
		ExpectedError string
	}{
		{Title: "OK"},
		{Title: "Cancel query fails", Fail: "status = 'cancelled'", ExpectedError: "error cancelling escalated orders"},
		{Title: "Escalate query fails", Fail: "status = 'escalated', escalated_at", ExpectedError: "error escalating unpaid orders"},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			ctx := app.ContextWithCache(context.Background())
			q := &fakeQuerier{
				results: map[string][]db.Ref{
					"status = 'escalated', escalated_at": {{ID: "o1", BusinessID: "b1"}, {ID: "o2", BusinessID: "b2"}},
					"status = 'cancelled'":               {{ID: "o3", BusinessID: "b1"}},
				},
				args: map[string][]any{},
				fail: tt.Fail,
			}
			defer app.SetCacheValue(ctx, []any{"DB", "Querier"}, db.Querier(q))()
			var published []Status
			defer app.SetCacheValue(ctx, []any{"RabbitMQ", "Publish"}, rabbitmq.PublishFunc(func(_ context.Context, _, key, _ string, _ []byte, headers amqp.Table) error {
				published = append(published, Status(headers["X-Order-Status"].(string)))
				return nil
			}))()

			res, err := RunEscalation(ctx, now, 72*time.Hour)
			if tt.ExpectedError != "" {
				if err == nil || !strings.Contains(err.Error(), tt.ExpectedError) {
					t.Fatalf("expected '%s' in error, but got: %v", tt.ExpectedError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(res.Escalated) != 2 || len(res.Cancelled) != 1 || res.Cancelled[0] != "o3" {
				t.Fatalf("unexpected result: %+v", res)
			}
			cancelArgs := q.args["status = 'cancelled'"]
			if len(cancelArgs) != 2 || cancelArgs[0] != now || cancelArgs[1] != now.Add(-72*time.Hour) {
				t.Fatalf("unexpected cancel cutoff: %v", cancelArgs)
			}
			if len(published) != 3 || published[0] != StatusEscalated || published[2] != StatusCancelled {
				t.Fatalf("unexpected events: %v", published)
			}
		})
	}
}

func TestRunPayoutTimer(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	ctx := app.ContextWithCache(context.Background())
	q := &fakeQuerier{
		results: map[string][]db.Ref{
			"status = 'delivered'":    {{ID: "o1", BusinessID: "b1"}},
			"payout_status = 'ready'": {{ID: "o2", BusinessID: "b1"}, {ID: "o3", BusinessID: "b2"}},
		},
		args: map[string][]any{},
	}
	defer app.SetCacheValue(ctx, []any{"DB", "Querier"}, db.Querier(q))()
	defer app.SetCacheValue(ctx, []any{"RabbitMQ", "Publish"}, rabbitmq.PublishFunc(func(context.Context, string, string, string, []byte, amqp.Table) error {
		return nil
	}))()

	res, err := RunPayoutTimer(ctx, now, 21*24*time.Hour, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fmt.Sprint(res.Delivered) != "[o1]" || fmt.Sprint(res.Ready) != "[o2 o3]" {
		t.Fatalf("unexpected result: %+v", res)
	}
	deliverArgs := q.args["status = 'delivered'"]
	if deliverArgs[1] != now.Add(-21*24*time.Hour) || deliverArgs[2] != now.Add(7*24*time.Hour) {
		t.Fatalf("unexpected auto-deliver arguments: %v", deliverArgs)
	}
}

func TestRunPayoutTimerWithoutDatabase(t *testing.T) {
	ctx := app.ContextWithCache(context.Background())
	t.Setenv("DATABASE_URL", "")
	_, err := RunPayoutTimer(ctx, time.Now(), time.Hour, time.Hour)
	if err == nil || !strings.Contains(err.Error(), "invalid or incomplete database environment variables") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
