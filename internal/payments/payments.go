// Package payments is the boundary to the external payment processor.
package payments

import (
	"context"
	"errors"
)

// Mode is the billing mode of a checkout session.
type Mode string

const (
	ModePayment      Mode = "payment"
	ModeSubscription Mode = "subscription"
)

var ErrPriceNotFound = errors.New("price not found")

// Price is a live processor price resolved from a lookup key.
type Price struct {
	ID         string
	LookupKey  string
	UnitAmount int64 // minor units
	Currency   string
	Recurring  bool
}

// CouponRequest describes a single-use, amount-off coupon.
type CouponRequest struct {
	Name           string
	AmountOffCents int64
	Currency       string
	Metadata       map[string]string
}

type LineItem struct {
	PriceID    string
	Quantity   int64
	TaxRateIDs []string
}

type SessionRequest struct {
	Mode       Mode
	CustomerID string
	SuccessURL string
	CancelURL  string
	LineItems  []LineItem
	CouponID   string
	Metadata   map[string]string
}

type Session struct {
	ID  string
	URL string
}

// Processor is what the checkout pipeline needs from the payment provider.
type Processor interface {
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error)
	// PricesByLookupKey returns active prices keyed by lookup key. Keys without
	// an active price are absent from the map.
	PricesByLookupKey(ctx context.Context, lookupKeys []string) (map[string]Price, error)
	CreateCoupon(ctx context.Context, req CouponRequest) (string, error)
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
}
