package payments

import (
	"context"
	"fmt"
	"os"

	"podmarket/common/app"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/transfer"
)

// Stripe calls go through these types so tests can swap them in the app cache.
type (
	CreatePaymentIntentFunc func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntentFunc    func(id string) (*stripe.PaymentIntent, error)
	CreateTransferFunc      func(params *stripe.TransferParams) (*stripe.Transfer, error)
)

func setKey() error {
	key := os.Getenv("STRIPE_SECRET_KEY")
	if key == "" {
		return fmt.Errorf("invalid or incomplete Stripe environment variables")
	}
	stripe.Key = key
	return nil
}

func createPaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if err := setKey(); err != nil {
		return nil, err
	}
	return paymentintent.New(params)
}

func getPaymentIntent(id string) (*stripe.PaymentIntent, error) {
	if err := setKey(); err != nil {
		return nil, err
	}
	return paymentintent.Get(id, nil)
}

func createTransfer(params *stripe.TransferParams) (*stripe.Transfer, error) {
	if err := setKey(); err != nil {
		return nil, err
	}
	return transfer.New(params)
}

func CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	create, _ := app.GetCacheValue[CreatePaymentIntentFunc](ctx, []any{"Stripe", "CreatePaymentIntent"}, createPaymentIntent)
	return create(params)
}

func GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	get, _ := app.GetCacheValue[GetPaymentIntentFunc](ctx, []any{"Stripe", "GetPaymentIntent"}, getPaymentIntent)
	return get(id)
}

func CreateTransfer(ctx context.Context, params *stripe.TransferParams) (*stripe.Transfer, error) {
	create, _ := app.GetCacheValue[CreateTransferFunc](ctx, []any{"Stripe", "CreateTransfer"}, createTransfer)
	return create(params)
}
