// Package etsy connects business shops on Etsy (Open API v3): OAuth, order import and listing publication.
package etsy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"podmarket/common/app"
	"podmarket/common/helpers"

	"github.com/shopspring/decimal"
)

var (
	ErrNotConnected = errors.New("business has not connected an Etsy shop")
	ErrUnknownState = errors.New("unknown OAuth state")
	ErrStateExpired = errors.New("OAuth state expired")
)

var hundred = decimal.NewFromInt(100)

func apiURL() string {
	return strings.TrimRight(app.EnvString("ETSY_API_URL", "https://api.etsy.com"), "/")
}

// Money is Etsy's amount representation: amount / divisor in currency_code.
type Money struct {
	Amount       int64  `json:"amount"`
	Divisor      int64  `json:"divisor"`
	CurrencyCode string `json:"currency_code"`
}

// Cents converts to integer minor units, rounding half up.
func (m Money) Cents() int64 {
	if m.Divisor <= 0 {
		return m.Amount
	}
	return decimal.NewFromInt(m.Amount).Mul(hundred).Div(decimal.NewFromInt(m.Divisor)).Round(0).IntPart()
}

type Transaction struct {
	TransactionID int64  `json:"transaction_id"`
	ListingID     int64  `json:"listing_id"`
	Title         string `json:"title"`
	SKU           string `json:"sku"`
	Quantity      int    `json:"quantity"`
	Price         Money  `json:"price"`
}

type Receipt struct {
	ReceiptID         int64         `json:"receipt_id"`
	Name              string        `json:"name"`
	BuyerEmail        string        `json:"buyer_email"`
	FirstLine         string        `json:"first_line"`
	SecondLine        string        `json:"second_line"`
	City              string        `json:"city"`
	State             string        `json:"state"`
	Zip               string        `json:"zip"`
	CountryISO        string        `json:"country_iso"`
	IsPaid            bool          `json:"is_paid"`
	CreatedTimestamp  int64         `json:"created_timestamp"`
	Subtotal          Money         `json:"subtotal"`
	TotalShippingCost Money         `json:"total_shipping_cost"`
	Grandtotal        Money         `json:"grandtotal"`
	Transactions      []Transaction `json:"transactions"`
}

type receiptsPage struct {
	Count   int       `json:"count"`
	Results []Receipt `json:"results"`
}

type Me struct {
	UserID int64 `json:"user_id"`
	ShopID int64 `json:"shop_id"`
}

type Listing struct {
	ListingID int64  `json:"listing_id"`
	State     string `json:"state"`
	URL       string `json:"url"`
}

type ListingImage struct {
	ListingImageID int64 `json:"listing_image_id"`
}

// Client calls the Etsy API on behalf of one connected shop.
type Client struct {
	accessToken string
}

func NewClient(accessToken string) *Client {
	return &Client{accessToken: accessToken}
}

func apiKey() (string, error) {
	key := os.Getenv("ETSY_API_KEY")
	if key == "" {
		return "", fmt.Errorf("invalid or incomplete Etsy environment variables")
	}
	if secret := os.Getenv("ETSY_SHARED_SECRET"); secret != "" {
		return key + ":" + secret, nil
	}
	return key, nil
}

func (c *Client) do(ctx context.Context, req helpers.Request, path string, out any) error {
	key, err := apiKey()
	if err != nil {
		return err
	}
	req.Service = "Etsy"
	req.URL = apiURL() + "/v3/application" + path
	req.Headers = map[string]string{
		"x-api-key":     key,
		"Authorization": "Bearer " + c.accessToken,
	}
	return helpers.RequestJSON(ctx, req, out)
}

func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.do(ctx, helpers.Request{}, "/users/me", &me); err != nil {
		return nil, fmt.Errorf("could not load Etsy user:\n>>> %w", err)
	}
	return &me, nil
}

const receiptsPageSize = 100

// Receipts pages through the shop's paid receipts created since minCreated.
func (c *Client) Receipts(ctx context.Context, shopID int64, minCreated time.Time) ([]Receipt, error) {
	receipts := []Receipt{}
	for offset := 0; ; offset += receiptsPageSize {
		path := fmt.Sprintf("/shops/%d/receipts?was_paid=true&limit=%d&offset=%d&min_created=%d", shopID, receiptsPageSize, offset, minCreated.Unix())
		var page receiptsPage
		if err := c.do(ctx, helpers.Request{}, path, &page); err != nil {
			return nil, fmt.Errorf("could not load Etsy receipts (offset %d):\n>>> %w", offset, err)
		}
		receipts = append(receipts, page.Results...)
		if len(page.Results) < receiptsPageSize || len(receipts) >= page.Count {
			return receipts, nil
		}
	}
}
