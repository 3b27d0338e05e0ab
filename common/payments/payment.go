package payments

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"podmarket/common/app"
	"podmarket/common/business"
	"podmarket/common/orders"

	"github.com/stripe/stripe-go/v82"
)

// PaymentResponse is what the frontend needs to confirm the payment with Stripe.js.
type PaymentResponse struct {
	OrderID      string `json:"order_id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Mock         bool   `json:"mock,omitempty"`
}

var reusableIntent = []stripe.PaymentIntentStatus{
	stripe.PaymentIntentStatusRequiresPaymentMethod,
	stripe.PaymentIntentStatusRequiresConfirmation,
	stripe.PaymentIntentStatusRequiresAction,
}

func paymentKind(order *orders.Order) string {
	if order.Source == orders.SourceEtsy {
		return "production_cost"
	}
	return "order_total"
}

// StartPayment opens (or reuses) the PaymentIntent for an order. Storefront orders are paid
// by their customer, Etsy orders by the business that sold them.
func StartPayment(ctx context.Context, orderID string) (*PaymentResponse, error) {
	user, ok := app.UserFromContext(ctx)
	if !ok {
		return nil, orders.ErrForbidden
	}
	store := orders.StoreFromContext(ctx)
	order, err := store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	businessID := ""
	if order.Source == orders.SourceEtsy && user.Role == app.RoleBusiness {
		b, err := business.ForUser(ctx)
		if err != nil && !errors.Is(err, business.ErrNoBusiness) {
			return nil, err
		}
		if b != nil {
			businessID = b.ID
		}
	}
	if err := orders.Authorize(order, user, businessID); err != nil {
		return nil, err
	}
	if !order.Payable() {
		return nil, fmt.Errorf("%w: order %s is %s", orders.ErrInvalidState, order.ID, order.Status)
	}
	amount := order.AmountDue()
	if amount <= 0 {
		return nil, fmt.Errorf("%w: order %s has nothing to pay", orders.ErrInvalidState, order.ID)
	}
	currency := strings.ToLower(order.Currency)

	if app.MockProvider() {
		return &PaymentResponse{
			OrderID:      order.ID,
			ClientSecret: fmt.Sprintf("pi_mock_%s_secret", order.ID),
			Amount:       amount,
			Currency:     currency,
			Mock:         true,
		}, nil
	}

	idempotencyKey := fmt.Sprintf("order-%s-payment", order.ID)
	if order.PaymentIntentID != nil {
		intent, err := GetPaymentIntent(ctx, *order.PaymentIntentID)
		if err != nil {
			return nil, fmt.Errorf("could not load payment intent %s:\n>>> %w", *order.PaymentIntentID, err)
		}
		if slices.Contains(reusableIntent, intent.Status) && intent.Amount == amount {
			return &PaymentResponse{OrderID: order.ID, ClientSecret: intent.ClientSecret, Amount: amount, Currency: currency}, nil
		}
		// a replacement needs its own key, Stripe would replay the stale intent otherwise
		idempotencyKey += "-" + intent.ID
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", order.ID)
	params.AddMetadata("kind", paymentKind(order))
	params.SetIdempotencyKey(idempotencyKey)
	intent, err := CreatePaymentIntent(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("could not create payment intent for order %s:\n>>> %w", order.ID, err)
	}

	if err := store.Update(ctx, order.ID, order.Status, map[string]any{"payment_intent_id": intent.ID}); err != nil {
		return nil, fmt.Errorf("could not store payment intent for order %s:\n>>> %w", order.ID, err)
	}
	app.LoggerFromContext(ctx).Infow("payment intent created", "order_id", order.ID, "payment_intent", intent.ID, "amount", amount)
	return &PaymentResponse{OrderID: order.ID, ClientSecret: intent.ClientSecret, Amount: amount, Currency: currency}, nil
}
