package pod

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"podmarket/common/app"
	"podmarket/common/helpers"
	"podmarket/common/orders"

	"github.com/aws/aws-lambda-go/events"
	"github.com/tidwall/gjson"
)

const (
	EventStatusUpdated   = "order_status_updated"
	EventTrackingUpdated = "order_item_tracking_code_updated"
)

// Results returned to the provider; anything but an error is answered with 200.
const (
	ResultUpdated = "updated"
	ResultIgnored = "ignored"
)

type WebhookEvent struct {
	Event             string
	OrderReferenceID  string
	PodOrderID        string
	FulfillmentStatus string
	TrackingURL       string
}

// provider status -> order status, matched ignoring case and accents
var statusMap = []struct {
	provider string
	status   orders.Status
}{
	{"in_production", orders.StatusInProduction},
	{"printed", orders.StatusInProduction},
	{"shipped", orders.StatusShipped},
	{"in_transit", orders.StatusShipped},
	{"delivered", orders.StatusDelivered},
	{"canceled", orders.StatusCancelled},
	{"cancelled", orders.StatusCancelled},
	{"failed", orders.StatusFailed},
}

func ValidateWebhook(request events.APIGatewayProxyRequest) error {
	signature := app.Header(request, "x-pod-signature")
	if signature == "" {
		return fmt.Errorf("invalid or incomplete provider webhook headers")
	}
	secret := os.Getenv("POD_WEBHOOK_SECRET")
	if secret == "" {
		return fmt.Errorf("invalid or incomplete provider webhook environment variables")
	}
	if len(request.Body) == 0 {
		return fmt.Errorf("empty request")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(request.Body))
	calculatedHMAC := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(calculatedHMAC), []byte(signature)) {
		return fmt.Errorf("the provider webhook is not valid")
	}
	return nil
}

func ParseWebhook(body string) (*WebhookEvent, error) {
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("invalid JSON in webhook body")
	}
	result := gjson.GetMany(body, "event", "orderReferenceId", "orderId", "fulfillmentStatus")
	event := &WebhookEvent{
		Event:             result[0].String(),
		OrderReferenceID:  result[1].String(),
		PodOrderID:        result[2].String(),
		FulfillmentStatus: result[3].String(),
	}
	// tracking events carry the url at the top level, status events inside the fulfillments
	for _, path := range []string{"trackingUrl", "items.0.fulfillments.0.trackingUrl", "items.#.fulfillments.#.trackingUrl|@flatten|0"} {
		if url := gjson.Get(body, path).String(); url != "" {
			event.TrackingURL = url
			break
		}
	}
	if event.OrderReferenceID == "" {
		return nil, fmt.Errorf("webhook has no orderReferenceId")
	}
	return event, nil
}

// StatusFor maps a provider fulfillment status onto an order status.
func StatusFor(fulfillmentStatus string) (orders.Status, bool) {
	for _, entry := range statusMap {
		if same, err := helpers.CompareStrings(entry.provider, fulfillmentStatus); err == nil && same {
			return entry.status, true
		}
	}
	return "", false
}

// HandleWebhook applies a provider event to its order. Unknown orders, unmapped statuses and
// transitions that would move the order backwards are ignored.
func HandleWebhook(ctx context.Context, event *WebhookEvent, now time.Time) (string, error) {
	logger := app.LoggerFromContext(ctx)
	store := orders.StoreFromContext(ctx)

	order, err := store.Get(ctx, event.OrderReferenceID)
	if errors.Is(err, orders.ErrNotFound) {
		logger.Warnw("provider webhook for unknown order", "order_id", event.OrderReferenceID, "event", event.Event)
		return ResultIgnored, nil
	}
	if err != nil {
		return "", fmt.Errorf("could not load order %s:\n>>> %w", event.OrderReferenceID, err)
	}

	if event.Event == EventTrackingUpdated {
		if event.TrackingURL == "" {
			return ResultIgnored, nil
		}
		if err := store.Update(ctx, order.ID, order.Status, map[string]any{"tracking_url": event.TrackingURL}); err != nil {
			return "", fmt.Errorf("could not store tracking url for order %s:\n>>> %w", order.ID, err)
		}
		return ResultUpdated, nil
	}

	status, known := StatusFor(event.FulfillmentStatus)
	if !known {
		logger.Infow("provider status not mapped", "order_id", order.ID, "fulfillment_status", event.FulfillmentStatus)
		return ResultIgnored, nil
	}
	if !orders.CanTransition(order.Status, status) {
		logger.Infow("provider status ignored", "order_id", order.ID, "from", order.Status, "to", status)
		return ResultIgnored, nil
	}

	extra := map[string]any{}
	switch status {
	case orders.StatusShipped:
		extra["shipped_at"] = now
		if event.TrackingURL != "" {
			extra["tracking_url"] = event.TrackingURL
		}
	case orders.StatusDelivered:
		extra["delivered_at"] = now
		if order.Source == orders.SourceStorefront {
			extra["payout_status"] = orders.PayoutHeld
			extra["payout_release_at"] = now.Add(app.EnvDuration("PAYOUT_HOLD_DAYS", 24*time.Hour, 7*24*time.Hour))
		}
	}
	if order.PodOrderID == nil && event.PodOrderID != "" {
		extra["pod_order_id"] = event.PodOrderID
	}

	if err := orders.Transition(ctx, order, status, extra); err != nil {
		return "", err
	}
	return ResultUpdated, nil
}
