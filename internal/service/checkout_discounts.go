package service

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/payments"
	"context"
	"fmt"
	"strings"
)

// DiscountKind identifies the strategy that produced a discount.
type DiscountKind string

const (
	DiscountInPersonSession DiscountKind = "in_person_session"
	DiscountPersonal        DiscountKind = "personal"
)

// Discount is a computed reduction in minor units. It has no processor side effects.
type Discount struct {
	Kind           DiscountKind
	Description    string
	AmountOffCents int64
}

// DiscountInput is everything a strategy may look at.
type DiscountInput struct {
	Offer     *domain.Offer
	Items     PreparedItems
	LineItems []ResolvedLineItem
	Mode      payments.Mode
}

// DiscountStrategy returns zero or more discounts for a bundle.
type DiscountStrategy interface {
	Discounts(in DiscountInput) []Discount
}

// InPersonSessionDiscount takes Percent off in-person sessions bought together
// with premium coaching.
type InPersonSessionDiscount struct {
	Percent int
}

func (d InPersonSessionDiscount) Discounts(in DiscountInput) []Discount {
	if d.Percent <= 0 || !in.Items.HasPremiumCoaching {
		return nil
	}
	var sessionTotal int64
	for _, line := range in.LineItems {
		if line.Item.Profile.IsInPersonSession() {
			sessionTotal += line.Subtotal()
		}
	}
	amount := percentOf(sessionTotal, d.Percent)
	if amount <= 0 {
		return nil
	}
	return []Discount{{
		Kind:           DiscountInPersonSession,
		Description:    fmt.Sprintf("%d%% off in-person sessions with premium coaching", d.Percent),
		AmountOffCents: amount,
	}}
}

// OfferPersonalDiscount applies the trainer's per-offer percentage to the whole bundle.
type OfferPersonalDiscount struct{}

func (OfferPersonalDiscount) Discounts(in DiscountInput) []Discount {
	if in.Offer == nil || in.Offer.PersonalDiscountPercent <= 0 {
		return nil
	}
	pct := in.Offer.PersonalDiscountPercent
	if pct > 100 {
		pct = 100
	}
	amount := percentOf(bundleSubtotal(in.LineItems), pct)
	if amount <= 0 {
		return nil
	}
	return []Discount{{
		Kind:           DiscountPersonal,
		Description:    fmt.Sprintf("%d%% personal discount", pct),
		AmountOffCents: amount,
	}}
}

// BundleDiscount is the merged result attached to the session. A session
// accepts a single coupon, so all discounts collapse into one.
type BundleDiscount struct {
	Discounts      []Discount
	AmountOffCents int64
	CouponID       string
	Description    string
	InPerson       bool
}

// ComputeBundleDiscounts runs every strategy and, when anything applies,
// creates one processor coupon. Catalog data is never modified.
func (s *checkoutService) ComputeBundleDiscounts(ctx context.Context, in DiscountInput) (BundleDiscount, error) {
	merged := MergeDiscounts(in.LineItems, collectDiscounts(s.discounts, in))
	if merged.AmountOffCents == 0 {
		return merged, nil
	}

	couponID, err := s.processor.CreateCoupon(ctx, payments.CouponRequest{
		Name:           merged.Description,
		AmountOffCents: merged.AmountOffCents,
		Currency:       in.LineItems[0].Price.Currency,
		Metadata: map[string]string{
			"offer_token": in.Offer.Token,
		},
	})
	if err != nil {
		return BundleDiscount{}, fmt.Errorf("%w: %v", ErrPaymentProcessor, err)
	}
	merged.CouponID = couponID
	return merged, nil
}

func collectDiscounts(strategies []DiscountStrategy, in DiscountInput) []Discount {
	var all []Discount
	for _, strategy := range strategies {
		all = append(all, strategy.Discounts(in)...)
	}
	return all
}

// MergeDiscounts sums discounts, capping the total at the bundle subtotal.
func MergeDiscounts(lines []ResolvedLineItem, discounts []Discount) BundleDiscount {
	merged := BundleDiscount{Discounts: discounts}
	descriptions := make([]string, 0, len(discounts))
	for _, d := range discounts {
		merged.AmountOffCents += d.AmountOffCents
		descriptions = append(descriptions, d.Description)
		if d.Kind == DiscountInPersonSession {
			merged.InPerson = true
		}
	}
	if limit := bundleSubtotal(lines); merged.AmountOffCents > limit {
		merged.AmountOffCents = limit
	}
	merged.Description = strings.Join(descriptions, " + ")
	return merged
}

func bundleSubtotal(lines []ResolvedLineItem) int64 {
	var total int64
	for _, line := range lines {
		total += line.Subtotal()
	}
	return total
}

// percentOf rounds down to whole minor units.
func percentOf(amount int64, pct int) int64 {
	return amount * int64(pct) / 100
}
