package etsy

import "time"

const (
	mockUserID = 10000001
	mockShopID = 20000001
)

// mockReceipts are returned instead of calling Etsy when MOCK_PROVIDER=true.
func mockReceipts(now time.Time) []Receipt {
	created := now.Add(-2 * time.Hour).Unix()
	return []Receipt{
		{
			ReceiptID:         3000000001,
			Name:              "Jane Doe",
			BuyerEmail:        "jane@example.com",
			FirstLine:         "1 Market Street",
			City:              "San Francisco",
			State:             "CA",
			Zip:               "94105",
			CountryISO:        "US",
			IsPaid:            true,
			CreatedTimestamp:  created,
			Subtotal:          Money{Amount: 2500, Divisor: 100, CurrencyCode: "USD"},
			TotalShippingCost: Money{Amount: 499, Divisor: 100, CurrencyCode: "USD"},
			Grandtotal:        Money{Amount: 2999, Divisor: 100, CurrencyCode: "USD"},
			Transactions: []Transaction{
				{TransactionID: 4000000001, ListingID: 5000000001, Title: "Mock T-shirt", Quantity: 1, Price: Money{Amount: 2500, Divisor: 100, CurrencyCode: "USD"}},
			},
		},
		{
			ReceiptID:         3000000002,
			Name:              "John Roe",
			BuyerEmail:        "john@example.com",
			FirstLine:         "10 Downing Street",
			City:              "London",
			Zip:               "SW1A 2AA",
			CountryISO:        "GB",
			IsPaid:            true,
			CreatedTimestamp:  created,
			Subtotal:          Money{Amount: 3600, Divisor: 100, CurrencyCode: "USD"},
			TotalShippingCost: Money{Amount: 0, Divisor: 100, CurrencyCode: "USD"},
			Grandtotal:        Money{Amount: 3600, Divisor: 100, CurrencyCode: "USD"},
			Transactions: []Transaction{
				{TransactionID: 4000000002, ListingID: 5000000002, Title: "Mock Mug", Quantity: 2, Price: Money{Amount: 1800, Divisor: 100, CurrencyCode: "USD"}},
			},
		},
	}
}
