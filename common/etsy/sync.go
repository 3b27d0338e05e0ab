package etsy

import (
	"context"
	"fmt"
	"time"

	"podmarket/common/app"
	"podmarket/common/catalog"
	"podmarket/common/orders"
)

const syncWindow = 30 * 24 * time.Hour

type SyncResult struct {
	Imported []string `json:"imported"`
	Skipped  int      `json:"skipped"`
}

// ReceiptToOrder maps an Etsy receipt onto a new order awaiting the business' production payment.
// Items are linked to products through their Etsy listing; production cost only counts linked items.
func ReceiptToOrder(receipt Receipt, businessID string, products map[int64]catalog.Product, paymentDueAt time.Time) (*orders.Order, []orders.Item) {
	receiptID := receipt.ReceiptID
	order := &orders.Order{
		BusinessID:    businessID,
		Source:        orders.SourceEtsy,
		EtsyReceiptID: &receiptID,
		Status:        orders.StatusPendingPayment,
		PayoutStatus:  orders.PayoutNone,
		Currency:      receipt.Grandtotal.CurrencyCode,
		SubtotalCents: receipt.Subtotal.Cents(),
		ShippingCents: receipt.TotalShippingCost.Cents(),
		TotalCents:    receipt.Grandtotal.Cents(),
		ShippingAddress: orders.Address{
			Name:       receipt.Name,
			Line1:      receipt.FirstLine,
			Line2:      receipt.SecondLine,
			City:       receipt.City,
			State:      receipt.State,
			PostalCode: receipt.Zip,
			Country:    receipt.CountryISO,
			Email:      receipt.BuyerEmail,
		},
		BuyerName:    receipt.Name,
		BuyerEmail:   receipt.BuyerEmail,
		PaymentDueAt: &paymentDueAt,
	}

	items := make([]orders.Item, 0, len(receipt.Transactions))
	for _, tr := range receipt.Transactions {
		transactionID := tr.TransactionID
		item := orders.Item{
			EtsyTransactionID: &transactionID,
			Title:             tr.Title,
			SKU:               tr.SKU,
			Quantity:          tr.Quantity,
			UnitPriceCents:    tr.Price.Cents(),
		}
		if product, found := products[tr.ListingID]; found {
			productID := product.ID
			item.ProductID = &productID
			order.ProductionCostCents += product.BaseCostCents * int64(tr.Quantity)
		}
		items = append(items, item)
	}
	return order, items
}

func fetchReceipts(ctx context.Context, businessID string, now time.Time) ([]Receipt, error) {
	if app.MockProvider() {
		return mockReceipts(now), nil
	}
	conn, err := StoreFromContext(ctx).Connection(ctx, businessID)
	if err != nil {
		return nil, err
	}
	client, err := ClientFor(ctx, conn, now)
	if err != nil {
		return nil, err
	}
	return client.Receipts(ctx, conn.ShopID, now.Add(-syncWindow))
}

// SyncOrders imports the shop's paid receipts of the last 30 days that are not orders yet.
func SyncOrders(ctx context.Context, businessID string, now time.Time) (*SyncResult, error) {
	receipts, err := fetchReceipts(ctx, businessID, now)
	if err != nil {
		return nil, err
	}

	store := orders.StoreFromContext(ctx)
	knownIDs, err := store.EtsyReceiptIDs(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("could not load imported receipts:\n>>> %w", err)
	}
	known := map[int64]bool{}
	for _, id := range knownIDs {
		known[id] = true
	}

	listingIDs := []int64{}
	for _, receipt := range receipts {
		for _, tr := range receipt.Transactions {
			listingIDs = append(listingIDs, tr.ListingID)
		}
	}
	products, err := catalog.StoreFromContext(ctx).ByEtsyListingIDs(ctx, businessID, listingIDs)
	if err != nil {
		return nil, fmt.Errorf("could not match Etsy listings to products:\n>>> %w", err)
	}
	byListing := map[int64]catalog.Product{}
	for _, p := range products {
		if p.EtsyListingID != nil {
			byListing[*p.EtsyListingID] = p
		}
	}

	result := &SyncResult{Imported: []string{}}
	due := now.Add(app.EnvDuration("PAYMENT_DUE_HOURS", time.Hour, 48*time.Hour))
	for _, receipt := range receipts {
		if known[receipt.ReceiptID] {
			result.Skipped++
			continue
		}
		order, items := ReceiptToOrder(receipt, businessID, byListing, due)
		created, err := store.Create(ctx, order, items)
		if err != nil {
			return result, fmt.Errorf("could not import Etsy receipt %d:\n>>> %w", receipt.ReceiptID, err)
		}
		known[receipt.ReceiptID] = true
		result.Imported = append(result.Imported, created.ID)
		orders.PublishEvent(ctx, orders.Event{OrderID: created.ID, BusinessID: businessID, Status: created.Status, Source: orders.SourceEtsy, At: now})
	}
	app.LoggerFromContext(ctx).Infow("Etsy orders synced", "business_id", businessID, "imported", len(result.Imported), "skipped", result.Skipped)
	return result, nil
}
