package service

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/payments"
	"alcyxob/shaper/internal/repository"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// BundleItem pairs a current package template with the quantity frozen in the offer.
type BundleItem struct {
	Package  domain.PackageTemplate
	Profile  domain.PackageProfile
	Quantity int
}

// PreparedItems is the bundle after redundant items were filtered out.
type PreparedItems struct {
	Items              []BundleItem
	OriginalItemCount  int
	HasPremiumCoaching bool
	Suppressed         []string
}

// PremiumIncluded reports whether the buyer ends up with premium access,
// either through a combo or a standalone premium item.
func (p PreparedItems) PremiumIncluded() bool {
	if p.HasPremiumCoaching {
		return true
	}
	for _, item := range p.Items {
		if item.Profile.Category == domain.CategoryPremiumSubscription {
			return true
		}
	}
	return false
}

// ResolvedLineItem is a bundle item bound to a live processor price.
type ResolvedLineItem struct {
	Item       BundleItem
	Price      payments.Price
	Quantity   int64
	TaxRateIDs []string
}

// Subtotal is the undiscounted amount of the line in minor units.
func (l ResolvedLineItem) Subtotal() int64 {
	return l.Price.UnitAmount * l.Quantity
}

// --- Stage 1 ---

// FetchAndValidateOffer loads the offer and rejects it when it cannot be checked out.
// A PROCESSING offer is allowed through: another session may be in flight.
func (s *checkoutService) FetchAndValidateOffer(ctx context.Context, token, email string) (*domain.Offer, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrOfferNotFound
	}
	offer, err := s.offerRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}

	if offer.IsExpired(s.now()) {
		return nil, ErrOfferExpired
	}
	if offer.Status.IsTerminal() {
		return nil, ErrOfferClosed
	}
	if !offer.MatchesEmail(email) {
		return nil, ErrOfferEmailMismatch
	}
	if offer.Status == domain.OfferProcessing {
		s.logger.Warn("offer already has a checkout in flight",
			"module", "checkout",
			"operation", "fetch_offer",
			"offer_token", offer.Token,
			"session_id", offer.CheckoutSessionID,
		)
	}
	return offer, nil
}

// --- Stage 2 ---

// ResolvePackages maps the offer snapshot onto current package templates,
// preserving snapshot order and quantities.
func (s *checkoutService) ResolvePackages(ctx context.Context, offer *domain.Offer) ([]BundleItem, error) {
	if len(offer.Packages) == 0 {
		return nil, ErrNoChargeableItems
	}
	items := make([]BundleItem, 0, len(offer.Packages))
	for _, entry := range offer.Packages {
		if entry.Quantity < 1 || entry.PackageID.IsZero() {
			return nil, ErrOfferInvalidSnapshot
		}
		pkg, err := s.packageRepo.GetByID(ctx, entry.PackageID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, entry.PackageID.Hex())
			}
			return nil, err
		}
		if strings.TrimSpace(pkg.LookupKey) == "" {
			return nil, fmt.Errorf("%w: %s", ErrPackageMissingLookupKey, pkg.Name)
		}
		profile, err := pkg.Profile()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPackageInvalidMetadata, err)
		}
		items = append(items, BundleItem{Package: *pkg, Profile: profile, Quantity: entry.Quantity})
	}
	return items, nil
}

// --- Stage 3 ---

// FindOrCreateUser returns the buyer's account, creating a client account when
// none exists. New and still passwordless accounts get an activation mail. The
// admin notice and the activation mail go through the outbox and never fail checkout.
func (s *checkoutService) FindOrCreateUser(ctx context.Context, email string, trainer *domain.User) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		// Re-send only when no usable link is outstanding.
		if user.NeedsActivation() && !user.HasLiveActivation(s.now()) {
			s.sendActivation(ctx, user)
		}
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	user = &domain.User{
		Email:   email,
		Role:    domain.RoleClient,
		Profile: domain.Profile{},
	}
	if _, err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost a race with a parallel checkout for the same email.
			return s.userRepo.GetByEmail(ctx, email)
		}
		return nil, err
	}

	s.notifyNewClient(ctx, user, trainer)
	s.sendActivation(ctx, user)
	return user, nil
}

func (s *checkoutService) sendActivation(ctx context.Context, user *domain.User) {
	if s.activations == nil {
		return
	}
	if err := s.activations.Issue(ctx, user); err != nil {
		s.logger.Error("failed to issue account activation",
			"module", "checkout",
			"operation", "send_activation",
			"outcome", "dropped",
			"user_id", user.ID.Hex(),
			"error", err,
		)
	}
}

func (s *checkoutService) notifyNewClient(ctx context.Context, user *domain.User, trainer *domain.User) {
	n := &domain.Notification{
		Kind:       domain.NotificationNewClientSignup,
		Recipients: s.cfg.AdminEmails,
		Subject:    "New client signed up through an offer",
		Body: fmt.Sprintf("A client account was created for %s while checking out an offer from %s (%s).",
			user.Email, trainer.DisplayName(), trainer.Email),
	}
	if err := s.notificationRepo.Enqueue(ctx, n); err != nil {
		s.logger.Error("failed to enqueue admin notification",
			"module", "checkout",
			"operation", "notify_admins",
			"outcome", "dropped",
			"user_id", user.ID.Hex(),
			"error", err,
		)
	}
}

// --- Stage 4 ---

// EnsureCustomer reuses the stored processor customer or creates one.
// Concurrent first checkouts may each create a customer; only the last one is kept.
func (s *checkoutService) EnsureCustomer(ctx context.Context, user *domain.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}
	customerID, err := s.processor.CreateCustomer(ctx, user.Email, user.Name, map[string]string{
		"user_id": user.ID.Hex(),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPaymentProcessor, err)
	}
	if err := s.userRepo.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
		return "", err
	}
	user.StripeCustomerID = customerID
	return customerID, nil
}

// --- Stage 5 ---

// PrepareCheckoutItems drops standalone premium items when a combo already
// includes premium access.
func PrepareCheckoutItems(items []BundleItem) (PreparedItems, error) {
	prepared := PreparedItems{OriginalItemCount: len(items)}
	for _, item := range items {
		if item.Profile.IsCoachingCombo() {
			prepared.HasPremiumCoaching = true
			break
		}
	}

	for _, item := range items {
		if prepared.HasPremiumCoaching && item.Profile.IsStandalonePremium() {
			prepared.Suppressed = append(prepared.Suppressed, item.Package.Name)
			continue
		}
		prepared.Items = append(prepared.Items, item)
	}

	if len(prepared.Items) == 0 {
		return prepared, ErrNoChargeableItems
	}
	return prepared, nil
}

// --- Stage 6 ---

// DetermineBillingMode picks subscription as soon as one coaching item is present.
func DetermineBillingMode(items []BundleItem) payments.Mode {
	for _, item := range items {
		if item.Profile.IsSubscription() {
			return payments.ModeSubscription
		}
	}
	return payments.ModePayment
}

// --- Stage 7 ---

// ResolveLineItems binds every item to its live price and checks that the
// prices fit the billing mode.
func (s *checkoutService) ResolveLineItems(ctx context.Context, items []BundleItem, mode payments.Mode) ([]ResolvedLineItem, error) {
	keys := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if !seen[item.Package.LookupKey] {
			seen[item.Package.LookupKey] = true
			keys = append(keys, item.Package.LookupKey)
		}
	}

	prices, err := s.processor.PricesByLookupKey(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentProcessor, err)
	}

	var taxRates []string
	if s.cfg.TaxRateID != "" {
		taxRates = []string{s.cfg.TaxRateID}
	}

	lines := make([]ResolvedLineItem, 0, len(items))
	for _, item := range items {
		price, ok := prices[item.Package.LookupKey]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPriceNotFound, item.Package.Name)
		}
		lines = append(lines, ResolvedLineItem{
			Item:       item,
			Price:      price,
			Quantity:   int64(item.Quantity),
			TaxRateIDs: taxRates,
		})
	}

	if err := checkBillingCompatibility(lines, mode); err != nil {
		return nil, err
	}
	return lines, nil
}

func checkBillingCompatibility(lines []ResolvedLineItem, mode payments.Mode) error {
	var oneTime, recurring []string
	currency := ""
	for _, line := range lines {
		if currency == "" {
			currency = line.Price.Currency
		} else if line.Price.Currency != currency {
			return fmt.Errorf("%w: prices use different currencies", ErrInvalidPriceConfiguration)
		}
		if line.Price.Recurring {
			recurring = append(recurring, line.Item.Package.Name)
		} else {
			oneTime = append(oneTime, line.Item.Package.Name)
		}
	}

	switch mode {
	case payments.ModePayment:
		if len(recurring) > 0 && len(oneTime) > 0 {
			return &MixedBillingModeError{OneTimeItems: oneTime, SubscriptionItems: recurring}
		}
		if len(recurring) > 0 {
			return fmt.Errorf("%w: recurring price outside a coaching subscription", ErrInvalidPriceConfiguration)
		}
	case payments.ModeSubscription:
		for _, line := range lines {
			if line.Item.Profile.IsSubscription() && !line.Price.Recurring {
				return fmt.Errorf("%w: coaching package %s needs a recurring price", ErrInvalidPriceConfiguration, line.Item.Package.Name)
			}
		}
	}
	return nil
}

// --- Stage 9 ---

type SessionMetadataInput struct {
	Offer                *domain.Offer
	Trainer              *domain.User
	User                 *domain.User
	Items                PreparedItems
	Mode                 payments.Mode
	Discount             BundleDiscount
	TrainerPayoutPercent int
	PlatformName         string
}

// BuildSessionMetadata flattens everything webhook reconciliation needs into string pairs.
func BuildSessionMetadata(in SessionMetadataInput) map[string]string {
	packageIDs := make([]string, 0, len(in.Items.Items))
	quantities := make([]string, 0, len(in.Items.Items))
	for _, item := range in.Items.Items {
		packageIDs = append(packageIDs, item.Package.ID.Hex())
		quantities = append(quantities, strconv.Itoa(item.Quantity))
	}

	md := map[string]string{
		"offer_token":         in.Offer.Token,
		"offer_id":            in.Offer.ID.Hex(),
		"trainer_id":          in.Trainer.ID.Hex(),
		"user_id":             in.User.ID.Hex(),
		"billing_mode":        string(in.Mode),
		"package_ids":         strings.Join(packageIDs, ","),
		"package_quantities":  strings.Join(quantities, ","),
		"item_count":          strconv.Itoa(len(in.Items.Items)),
		"original_item_count": strconv.Itoa(in.Items.OriginalItemCount),
		"has_coaching_combo":  strconv.FormatBool(in.Items.HasPremiumCoaching),
		"premium_included":    strconv.FormatBool(in.Items.PremiumIncluded()),
		"in_person_discount":  strconv.FormatBool(in.Discount.InPerson),
		"has_discount_coupon": strconv.FormatBool(in.Discount.CouponID != ""),
		"trainer_payout_pct":  strconv.Itoa(in.TrainerPayoutPercent),
		"platform_fee_pct":    strconv.Itoa(100 - in.TrainerPayoutPercent),
		"source":              "offer",
	}
	if in.Discount.CouponID != "" {
		md["discount_amount_off"] = strconv.FormatInt(in.Discount.AmountOffCents, 10)
	}
	if in.Trainer.PayoutAccountID != "" {
		md["trainer_payout_account"] = in.Trainer.PayoutAccountID
	}
	if in.PlatformName != "" {
		md["platform"] = in.PlatformName
	}
	if len(in.Items.Suppressed) > 0 {
		md["suppressed_items"] = strings.Join(in.Items.Suppressed, ",")
	}
	return md
}

// --- Stage 10 ---

// CreateSession calls the processor. Processor failures are reported generically.
func (s *checkoutService) CreateSession(ctx context.Context, req payments.SessionRequest) (*payments.Session, error) {
	session, err := s.processor.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentProcessor, err)
	}
	if session == nil || session.URL == "" {
		return nil, fmt.Errorf("%w: session has no checkout url", ErrPaymentProcessor)
	}
	return session, nil
}

// FormatResponse builds the buyer-facing result.
func FormatResponse(session *payments.Session, mode payments.Mode, prepared PreparedItems, trainer *domain.User, discount BundleDiscount) *CheckoutResult {
	return &CheckoutResult{
		CheckoutURL:         session.URL,
		SessionID:           session.ID,
		Mode:                mode,
		BundleDescription:   BundleDescription(prepared.Items),
		ItemCount:           len(prepared.Items),
		OriginalItemCount:   prepared.OriginalItemCount,
		HasCoachingCombo:    prepared.HasPremiumCoaching,
		PremiumIncluded:     prepared.PremiumIncluded(),
		TrainerName:         trainer.DisplayName(),
		InPersonDiscount:    discount.InPerson,
		HasDiscountCoupon:   discount.CouponID != "",
		DiscountDescription: discount.Description,
	}
}

// BundleDescription: "<name>" for one item of quantity 1, "<qty>x <name>" for
// one item with more, and "Bundle (<n> packages)" otherwise.
func BundleDescription(items []BundleItem) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		if items[0].Quantity > 1 {
			return fmt.Sprintf("%dx %s", items[0].Quantity, items[0].Package.Name)
		}
		return items[0].Package.Name
	default:
		return fmt.Sprintf("Bundle (%d packages)", len(items))
	}
}

func toProcessorLineItems(lines []ResolvedLineItem) []payments.LineItem {
	out := make([]payments.LineItem, 0, len(lines))
	for _, line := range lines {
		out = append(out, payments.LineItem{
			PriceID:    line.Price.ID,
			Quantity:   line.Quantity,
			TaxRateIDs: line.TaxRateIDs,
		})
	}
	return out
}
