package payments

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// stripeProcessor implements Processor on top of the Stripe API.
type stripeProcessor struct {
	api    *client.API
	logger *slog.Logger
}

// NewStripeProcessor creates a Stripe-backed processor.
func NewStripeProcessor(secretKey string, logger *slog.Logger) (Processor, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	return &stripeProcessor{
		api:    client.New(secretKey, nil),
		logger: logger,
	}, nil
}

func (p *stripeProcessor) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	customer, err := p.api.Customers.New(params)
	if err != nil {
		p.logFailure("create_customer", err)
		return "", err
	}
	return customer.ID, nil
}

func (p *stripeProcessor) PricesByLookupKey(ctx context.Context, lookupKeys []string) (map[string]Price, error) {
	prices := make(map[string]Price, len(lookupKeys))
	if len(lookupKeys) == 0 {
		return prices, nil
	}

	params := &stripe.PriceListParams{
		LookupKeys: stripe.StringSlice(lookupKeys),
		Active:     stripe.Bool(true),
	}
	params.Context = ctx

	iter := p.api.Prices.List(params)
	for iter.Next() {
		pr := iter.Price()
		prices[pr.LookupKey] = Price{
			ID:         pr.ID,
			LookupKey:  pr.LookupKey,
			UnitAmount: pr.UnitAmount,
			Currency:   strings.ToLower(string(pr.Currency)),
			Recurring:  pr.Recurring != nil,
		}
	}
	if err := iter.Err(); err != nil {
		p.logFailure("list_prices", err)
		return nil, err
	}
	return prices, nil
}

func (p *stripeProcessor) CreateCoupon(ctx context.Context, req CouponRequest) (string, error) {
	params := &stripe.CouponParams{
		AmountOff:      stripe.Int64(req.AmountOffCents),
		Currency:       stripe.String(req.Currency),
		Duration:       stripe.String(string(stripe.CouponDurationOnce)),
		MaxRedemptions: stripe.Int64(1),
	}
	if req.Name != "" {
		params.Name = stripe.String(truncateRunes(req.Name, maxCouponNameLength))
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	coupon, err := p.api.Coupons.New(params)
	if err != nil {
		p.logFailure("create_coupon", err)
		return "", err
	}
	return coupon.ID, nil
}

func (p *stripeProcessor) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(req.Mode)),
		Customer:   stripe.String(req.CustomerID),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	for _, li := range req.LineItems {
		item := &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(li.PriceID),
			Quantity: stripe.Int64(li.Quantity),
		}
		if len(li.TaxRateIDs) > 0 {
			item.TaxRates = stripe.StringSlice(li.TaxRateIDs)
		}
		params.LineItems = append(params.LineItems, item)
	}
	if req.CouponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(req.CouponID)},
		}
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		p.logFailure("create_checkout_session", err)
		return nil, err
	}
	return &Session{ID: session.ID, URL: session.URL}, nil
}

func (p *stripeProcessor) logFailure(op string, err error) {
	attrs := []any{"module", "payments", "operation", op, "outcome", "failed", "error", err}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		attrs = append(attrs, "stripe_code", string(stripeErr.Code), "request_id", stripeErr.RequestID)
	}
	p.logger.Error("stripe call failed", attrs...)
}

// Stripe caps coupon names at 40 characters.
const maxCouponNameLength = 40

// truncateRunes shortens s to at most n characters without splitting a
// multi-byte character.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
