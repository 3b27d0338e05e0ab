// Package pod talks to the print-on-demand provider (Gelato) that prints and ships orders.
package pod

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"podmarket/common/app"
	"podmarket/common/catalog"
	"podmarket/common/helpers"
	"podmarket/common/orders"
)

const defaultOrdersURL = "https://order.gelatoapis.com/v4/orders"

var ErrUnprintable = errors.New("order item cannot be printed")

type File struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type OrderItem struct {
	ItemReferenceID string `json:"itemReferenceId"`
	ProductUID      string `json:"productUid"`
	Files           []File `json:"files"`
	Quantity        int    `json:"quantity"`
}

type ShippingAddress struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state,omitempty"`
	PostCode     string `json:"postCode"`
	Country      string `json:"country"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
}

type OrderRequest struct {
	OrderType           string          `json:"orderType"`
	OrderReferenceID    string          `json:"orderReferenceId"`
	CustomerReferenceID string          `json:"customerReferenceId"`
	Currency            string          `json:"currency"`
	Items               []OrderItem     `json:"items"`
	ShippingAddress     ShippingAddress `json:"shippingAddress"`
}

type orderResponse struct {
	ID string `json:"id"`
}

func splitName(name string) (string, string) {
	first, last, _ := strings.Cut(strings.TrimSpace(name), " ")
	if last == "" {
		last = first
	}
	return first, strings.TrimSpace(last)
}

// BuildOrderRequest maps an order onto the provider's order payload. Every item must resolve to a product with a printable design.
func BuildOrderRequest(order *orders.Order, items []orders.Item, products []catalog.Product) (*OrderRequest, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order %s has no items", ErrUnprintable, order.ID)
	}
	byID := map[string]catalog.Product{}
	for _, p := range products {
		byID[p.ID] = p
	}

	request := &OrderRequest{
		OrderType:           "order",
		OrderReferenceID:    order.ID,
		CustomerReferenceID: order.BusinessID,
		Currency:            strings.ToUpper(order.Currency),
	}
	for i, item := range items {
		if item.ProductID == nil {
			return nil, fmt.Errorf("%w: item %q is not linked to a product", ErrUnprintable, item.Title)
		}
		product, found := byID[*item.ProductID]
		if !found || product.PodProductUID == "" {
			return nil, fmt.Errorf("%w: product %s has no provider product", ErrUnprintable, *item.ProductID)
		}
		if product.Design == nil || product.Design.ImageURL == "" {
			return nil, fmt.Errorf("%w: product %s has no design image", ErrUnprintable, product.ID)
		}
		request.Items = append(request.Items, OrderItem{
			ItemReferenceID: fmt.Sprintf("%s-%d", order.ID, i+1),
			ProductUID:      product.PodProductUID,
			Files:           []File{{Type: "default", URL: product.Design.ImageURL}},
			Quantity:        item.Quantity,
		})
	}

	address := order.ShippingAddress
	name := address.Name
	if name == "" {
		name = order.BuyerName
	}
	first, last := splitName(name)
	email := address.Email
	if email == "" {
		email = order.BuyerEmail
	}
	request.ShippingAddress = ShippingAddress{
		FirstName:    first,
		LastName:     last,
		AddressLine1: address.Line1,
		AddressLine2: address.Line2,
		City:         address.City,
		State:        address.State,
		PostCode:     address.PostalCode,
		Country:      address.Country,
		Email:        email,
		Phone:        address.Phone,
	}
	return request, nil
}

// SubmitOrder sends a paid order to the provider and returns the provider's order id.
func SubmitOrder(ctx context.Context, order *orders.Order, items []orders.Item) (string, error) {
	productIDs := []string{}
	for _, item := range items {
		if item.ProductID != nil {
			productIDs = append(productIDs, *item.ProductID)
		}
	}
	products, err := catalog.StoreFromContext(ctx).ByIDs(ctx, productIDs)
	if err != nil {
		return "", fmt.Errorf("could not load products for order %s:\n>>> %w", order.ID, err)
	}
	request, err := BuildOrderRequest(order, items, products)
	if err != nil {
		return "", err
	}

	if app.MockProvider() {
		app.LoggerFromContext(ctx).Infow("mock provider: order not sent to Gelato", "order_id", order.ID, "items", len(request.Items))
		return "mock-" + order.ID, nil
	}

	apiKey := os.Getenv("GELATO_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("invalid or incomplete Gelato environment variables")
	}
	var response orderResponse
	err = helpers.RequestJSON(ctx, helpers.Request{
		Service: "Gelato",
		Method:  "POST",
		URL:     app.EnvString("GELATO_ORDERS_URL", defaultOrdersURL),
		Headers: map[string]string{"X-API-KEY": apiKey},
		Body:    request,
	}, &response)
	if err != nil {
		return "", fmt.Errorf("could not create Gelato order for %s:\n>>> %w", order.ID, err)
	}
	if response.ID == "" {
		return "", fmt.Errorf("Gelato returned no order id for %s", order.ID)
	}
	return response.ID, nil
}
