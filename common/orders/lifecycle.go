package orders

import (
	"context"
	"fmt"
	"time"

	"podmarket/common/app"
	"podmarket/common/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
)

const EventsExchange = "pod.orders"

// Event is the message published on every status change.
type Event struct {
	OrderID    string    `json:"order_id"`
	BusinessID string    `json:"business_id"`
	Status     Status    `json:"status"`
	Source     Source    `json:"source,omitempty"`
	At         time.Time `json:"at"`
}

// Transition moves the order to status, writing extra columns in the same update, and publishes the change.
// The in-memory order is updated on success.
func Transition(ctx context.Context, order *Order, status Status, extra map[string]any) error {
	if !CanTransition(order.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, order.Status, status)
	}
	values := map[string]any{"status": status}
	for key, val := range extra {
		values[key] = val
	}
	if err := StoreFromContext(ctx).Update(ctx, order.ID, order.Status, values); err != nil {
		return fmt.Errorf("could not move order %s to %s:\n>>> %w", order.ID, status, err)
	}
	order.Status = status
	PublishEvent(ctx, Event{OrderID: order.ID, BusinessID: order.BusinessID, Status: status, Source: order.Source})
	return nil
}

// PublishEvent notifies downstream consumers (emails, dashboards). Failures are only logged.
func PublishEvent(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	err := rabbitmq.PublishJSON(ctx, EventsExchange, "order."+string(event.Status), event, amqp.Table{
		"X-Order-Status": string(event.Status),
	})
	if err != nil {
		app.LoggerFromContext(ctx).Warnw("could not publish order event", "order_id", event.OrderID, "status", event.Status, "error", err)
	}
}

// Authorize checks that user may act on the order as its paying party.
func Authorize(order *Order, user *app.User, businessID string) error {
	if user.Role == app.RoleAdmin {
		return nil
	}
	switch order.Source {
	case SourceStorefront:
		if order.CustomerID != nil && *order.CustomerID == user.ID {
			return nil
		}
	case SourceEtsy:
		if businessID != "" && order.BusinessID == businessID {
			return nil
		}
	}
	return ErrForbidden
}
