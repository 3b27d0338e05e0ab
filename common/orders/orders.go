package orders

import (
	"errors"
	"slices"
	"time"
)

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusEscalated      Status = "escalated"
	StatusPaid           Status = "paid"
	StatusInProduction   Status = "in_production"
	StatusShipped        Status = "shipped"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusFailed         Status = "failed"
)

type PayoutStatus string

const (
	PayoutNone  PayoutStatus = "none"
	PayoutHeld  PayoutStatus = "held"
	PayoutReady PayoutStatus = "ready"
	PayoutPaid  PayoutStatus = "paid"
)

type Source string

const (
	SourceEtsy       Source = "etsy"
	SourceStorefront Source = "storefront"
)

var (
	ErrNotFound     = errors.New("order not found")
	ErrForbidden    = errors.New("order belongs to someone else")
	ErrInvalidState = errors.New("order is not in a valid state for this operation")
	ErrConflict     = errors.New("order changed concurrently")
)

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type Order struct {
	ID                  string       `json:"id"`
	BusinessID          string       `json:"business_id"`
	CustomerID          *string      `json:"customer_id"`
	Source              Source       `json:"source"`
	EtsyReceiptID       *int64       `json:"etsy_receipt_id"`
	Status              Status       `json:"status"`
	PayoutStatus        PayoutStatus `json:"payout_status"`
	Currency            string       `json:"currency"`
	SubtotalCents       int64        `json:"subtotal_cents"`
	ShippingCents       int64        `json:"shipping_cents"`
	TotalCents          int64        `json:"total_cents"`
	ProductionCostCents int64        `json:"production_cost_cents"`
	ShippingAddress     Address      `json:"shipping_address"`
	BuyerName           string       `json:"buyer_name"`
	BuyerEmail          string       `json:"buyer_email"`
	PaymentIntentID     *string      `json:"payment_intent_id"`
	PaymentDueAt        *time.Time   `json:"payment_due_at"`
	PaidAt              *time.Time   `json:"paid_at"`
	EscalatedAt         *time.Time   `json:"escalated_at"`
	CancelledAt         *time.Time   `json:"cancelled_at"`
	PodOrderID          *string      `json:"pod_order_id"`
	TrackingURL         *string      `json:"tracking_url"`
	ShippedAt           *time.Time   `json:"shipped_at"`
	DeliveredAt         *time.Time   `json:"delivered_at"`
	PayoutReleaseAt     *time.Time   `json:"payout_release_at"`
	CreatedAt           time.Time    `json:"created_at"`
}

type Item struct {
	ID                string  `json:"id,omitempty"`
	OrderID           string  `json:"order_id"`
	ProductID         *string `json:"product_id"`
	EtsyTransactionID *int64  `json:"etsy_transaction_id,omitempty"`
	Title             string  `json:"title"`
	SKU               string  `json:"sku,omitempty"`
	Quantity          int     `json:"quantity"`
	UnitPriceCents    int64   `json:"unit_price_cents"`
}

// Notification is shown to the business in the dashboard.
type Notification struct {
	BusinessID string    `json:"business_id"`
	OrderID    string    `json:"order_id"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

var transitions = map[Status][]Status{
	StatusPendingPayment: {StatusPaid, StatusEscalated, StatusCancelled},
	StatusEscalated:      {StatusPaid, StatusCancelled},
	StatusPaid:           {StatusInProduction, StatusShipped, StatusDelivered, StatusCancelled, StatusFailed},
	StatusInProduction:   {StatusShipped, StatusDelivered, StatusCancelled, StatusFailed},
	StatusShipped:        {StatusDelivered, StatusFailed},
}

// CanTransition reports whether an order may move from one status to another.
// Delivered, cancelled and failed orders are final.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// Payable reports whether a payment can still be collected for the order.
func (o *Order) Payable() bool {
	return o.Status == StatusPendingPayment || o.Status == StatusEscalated
}

// AmountDue is what the payer owes: storefront customers pay the full total,
// businesses pay production for orders they sold on Etsy.
func (o *Order) AmountDue() int64 {
	if o.Source == SourceEtsy {
		return o.ProductionCostCents
	}
	return o.TotalCents
}
