package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"podmarket/common/app"
	"podmarket/common/orders"
	"podmarket/common/pod"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	ResultProcessed = "processed"
	ResultNotified  = "notified"
	ResultIgnored   = "ignored"
)

// ConstructEvent verifies the Stripe-Signature header against STRIPE_WEBHOOK_SECRET.
func ConstructEvent(request events.APIGatewayProxyRequest) (stripe.Event, error) {
	secret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if secret == "" {
		return stripe.Event{}, fmt.Errorf("invalid or incomplete Stripe environment variables")
	}
	signature := app.Header(request, "stripe-signature")
	if signature == "" {
		return stripe.Event{}, fmt.Errorf("missing Stripe-Signature header")
	}
	event, err := webhook.ConstructEventWithOptions([]byte(request.Body), signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("the Stripe webhook is not valid:\n>>> %w", err)
	}
	return event, nil
}

func intentFromEvent(event stripe.Event) (*stripe.PaymentIntent, error) {
	if event.Data == nil {
		return nil, fmt.Errorf("event %s has no data", event.ID)
	}
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("could not decode payment intent from event %s:\n>>> %w", event.ID, err)
	}
	return &intent, nil
}

// HandleEvent applies a verified Stripe event. Events for unknown orders are ignored so Stripe stops retrying.
func HandleEvent(ctx context.Context, event stripe.Event, now time.Time) (string, error) {
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		intent, err := intentFromEvent(event)
		if err != nil {
			return "", err
		}
		return paymentSucceeded(ctx, intent, now)
	case stripe.EventTypePaymentIntentPaymentFailed:
		intent, err := intentFromEvent(event)
		if err != nil {
			return "", err
		}
		return paymentFailed(ctx, intent, now)
	default:
		return ResultIgnored, nil
	}
}

func orderForIntent(ctx context.Context, intent *stripe.PaymentIntent) (*orders.Order, error) {
	orderID := intent.Metadata["order_id"]
	if orderID == "" {
		return nil, orders.ErrNotFound
	}
	return orders.StoreFromContext(ctx).Get(ctx, orderID)
}

func paymentSucceeded(ctx context.Context, intent *stripe.PaymentIntent, now time.Time) (string, error) {
	logger := app.LoggerFromContext(ctx)

	order, err := orderForIntent(ctx, intent)
	if errors.Is(err, orders.ErrNotFound) {
		logger.Warnw("payment for unknown order", "payment_intent", intent.ID, "metadata", intent.Metadata)
		return ResultIgnored, nil
	}
	if err != nil {
		return "", err
	}

	switch {
	case order.Payable():
		err := orders.Transition(ctx, order, orders.StatusPaid, map[string]any{
			"paid_at":           now,
			"payment_intent_id": intent.ID,
		})
		if err != nil {
			return "", err
		}
	case order.Status == orders.StatusPaid:
		// redelivery after a failed submission or transition
	default:
		logger.Infow("payment for order already past payment", "order_id", order.ID, "status", order.Status)
		return ResultIgnored, nil
	}

	if order.PodOrderID == nil {
		podOrderID, err := submitToProvider(ctx, order, now)
		if errors.Is(err, orders.ErrConflict) {
			return ResultIgnored, nil
		}
		if err != nil {
			return "", err
		}
		order.PodOrderID = &podOrderID
	}

	// pod_order_id is already stored; a failure here is retried without a new submission
	if err := orders.Transition(ctx, order, orders.StatusInProduction, nil); err != nil {
		return "", err
	}
	return ResultProcessed, nil
}

// submitToProvider sends a paid order to the provider and stores the provider order id before anything else.
func submitToProvider(ctx context.Context, order *orders.Order, now time.Time) (string, error) {
	logger := app.LoggerFromContext(ctx)
	store := orders.StoreFromContext(ctx)

	items, err := store.Items(ctx, order.ID)
	if err != nil {
		return "", fmt.Errorf("could not load items of order %s:\n>>> %w", order.ID, err)
	}
	podOrderID, err := pod.SubmitOrder(ctx, order, items)
	if err != nil {
		notify(ctx, order, "pod_submission_failed", "Order was paid but could not be sent to production", now)
		return "", fmt.Errorf("could not submit order %s to the provider:\n>>> %w", order.ID, err)
	}

	err = store.SetPodOrderID(ctx, order.ID, podOrderID)
	if errors.Is(err, orders.ErrConflict) {
		// a concurrent delivery got there first
		logger.Errorw("duplicate provider order", "order_id", order.ID, "pod_order_id", podOrderID)
		notify(ctx, order, "pod_duplicate_submission", "Order was sent to production twice, cancel provider order "+podOrderID, now)
		return "", orders.ErrConflict
	}
	if err != nil {
		return "", fmt.Errorf("order %s sent to the provider as %s but not recorded:\n>>> %w", order.ID, podOrderID, err)
	}
	return podOrderID, nil
}

func notify(ctx context.Context, order *orders.Order, kind string, message string, now time.Time) {
	err := orders.StoreFromContext(ctx).Notify(ctx, orders.Notification{
		BusinessID: order.BusinessID,
		OrderID:    order.ID,
		Kind:       kind,
		Message:    message,
		CreatedAt:  now,
	})
	if err != nil {
		app.LoggerFromContext(ctx).Errorw("could not store notification", "order_id", order.ID, "kind", kind, "error", err)
	}
}

func paymentFailed(ctx context.Context, intent *stripe.PaymentIntent, now time.Time) (string, error) {
	order, err := orderForIntent(ctx, intent)
	if errors.Is(err, orders.ErrNotFound) {
		return ResultIgnored, nil
	}
	if err != nil {
		return "", err
	}

	message := "Payment failed"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		message = "Payment failed: " + intent.LastPaymentError.Msg
	}
	err = orders.StoreFromContext(ctx).Notify(ctx, orders.Notification{
		BusinessID: order.BusinessID,
		OrderID:    order.ID,
		Kind:       "payment_failed",
		Message:    message,
		CreatedAt:  now,
	})
	if err != nil {
		return "", fmt.Errorf("could not store payment failure for order %s:\n>>> %w", order.ID, err)
	}
	return ResultNotified, nil
}
