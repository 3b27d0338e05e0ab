package payments

import (
	"context"
	"fmt"
	"time"

	"podmarket/common/app"
	"podmarket/common/business"
	"podmarket/common/orders"
	"podmarket/common/supa"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

const distributeLimit = 50

// Payout is a row of the payouts table.
type Payout struct {
	OrderID          string    `json:"order_id"`
	BusinessID       string    `json:"business_id"`
	GrossCents       int64     `json:"gross_cents"`
	ProductionCents  int64     `json:"production_cents"`
	PlatformFeeCents int64     `json:"platform_fee_cents"`
	PayoutCents      int64     `json:"payout_cents"`
	StripeTransferID string    `json:"stripe_transfer_id"`
	CreatedAt        time.Time `json:"created_at"`
}

type Failure struct {
	OrderID string `json:"order_id"`
	Error   string `json:"error"`
}

type DistributeResult struct {
	Paid   []Payout  `json:"paid"`
	Failed []Failure `json:"failed"`
}

// RecordPayoutFunc stores a payout; tests swap it under {"Payments", "RecordPayout"}.
type RecordPayoutFunc func(ctx context.Context, payout Payout) error

func recordPayout(ctx context.Context, payout Payout) error {
	if err := supa.Insert(ctx, "payouts", payout, nil); err != nil {
		return fmt.Errorf("could not record payout for order %s:\n>>> %w", payout.OrderID, err)
	}
	return nil
}

// Distribute pays out one order, or every order whose payout is ready when orderID is empty.
// A failing order does not stop the others; it is reported in the result.
func Distribute(ctx context.Context, orderID string, now time.Time) (*DistributeResult, error) {
	pct, err := FeePercent()
	if err != nil {
		return nil, err
	}
	store := orders.StoreFromContext(ctx)

	var due []orders.Order
	if orderID != "" {
		order, err := store.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order.PayoutStatus != orders.PayoutReady {
			return nil, fmt.Errorf("%w: payout of order %s is %s", orders.ErrInvalidState, order.ID, order.PayoutStatus)
		}
		due = append(due, *order)
	} else {
		if due, err = store.ReadyForPayout(ctx, distributeLimit); err != nil {
			return nil, err
		}
	}

	result := &DistributeResult{Paid: []Payout{}, Failed: []Failure{}}
	logger := app.LoggerFromContext(ctx)
	for _, order := range due {
		payout, err := distributeOne(ctx, &order, pct, now)
		if err != nil {
			logger.Errorw("payout failed", "order_id", order.ID, "error", err)
			result.Failed = append(result.Failed, Failure{OrderID: order.ID, Error: err.Error()})
			continue
		}
		result.Paid = append(result.Paid, *payout)
	}
	logger.Infow("payout distribution finished", "paid", len(result.Paid), "failed", len(result.Failed))
	return result, nil
}

func distributeOne(ctx context.Context, order *orders.Order, pct decimal.Decimal, now time.Time) (*Payout, error) {
	if order.Source != orders.SourceStorefront {
		return nil, fmt.Errorf("%w: %s orders are not paid out by the platform", orders.ErrInvalidState, order.Source)
	}
	split, err := ComputeSplit(order.TotalCents, order.ProductionCostCents, pct)
	if err != nil {
		return nil, err
	}
	b, err := business.LookupFromContext(ctx).ByID(ctx, order.BusinessID)
	if err != nil {
		return nil, err
	}
	if b.StripeAccountID == nil || *b.StripeAccountID == "" {
		return nil, fmt.Errorf("business %s has no connected Stripe account", b.ID)
	}

	payout := Payout{
		OrderID:          order.ID,
		BusinessID:       order.BusinessID,
		GrossCents:       split.GrossCents,
		ProductionCents:  split.ProductionCents,
		PlatformFeeCents: split.PlatformFeeCents,
		PayoutCents:      split.PayoutCents,
		CreatedAt:        now,
	}
	switch {
	case split.PayoutCents == 0:
		// nothing to transfer
	case app.MockProvider():
		payout.StripeTransferID = "tr_mock_" + order.ID
	default:
		params := &stripe.TransferParams{
			Amount:        stripe.Int64(split.PayoutCents),
			Currency:      stripe.String(order.Currency),
			Destination:   stripe.String(*b.StripeAccountID),
			TransferGroup: stripe.String("order-" + order.ID),
		}
		params.AddMetadata("order_id", order.ID)
		params.SetIdempotencyKey(fmt.Sprintf("order-%s-payout", order.ID))
		tr, err := CreateTransfer(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("could not create transfer for order %s:\n>>> %w", order.ID, err)
		}
		payout.StripeTransferID = tr.ID
	}

	record, _ := app.GetCacheValue[RecordPayoutFunc](ctx, []any{"Payments", "RecordPayout"}, recordPayout)
	if err := record(ctx, payout); err != nil {
		return nil, err
	}
	if err := orders.StoreFromContext(ctx).UpdatePayout(ctx, order.ID, orders.PayoutReady, map[string]any{"payout_status": orders.PayoutPaid}); err != nil {
		return nil, fmt.Errorf("transfer %s done but order %s not marked paid:\n>>> %w", payout.StripeTransferID, order.ID, err)
	}
	return &payout, nil
}
