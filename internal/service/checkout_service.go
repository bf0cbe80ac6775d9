package service

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/payments"
	"alcyxob/shaper/internal/repository"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Checkout errors are shown to the buyer as-is, hence the sentence case.
var (
	ErrOfferNotFound             = errors.New("Offer not found")
	ErrOfferExpired              = errors.New("Offer has expired")
	ErrOfferClosed               = errors.New("Offer is no longer available")
	ErrOfferEmailMismatch        = errors.New("This offer was issued to a different email address")
	ErrOfferInvalidSnapshot      = errors.New("Offer contains an invalid package entry")
	ErrPackageNotFound           = errors.New("A package in this offer no longer exists")
	ErrPackageMissingLookupKey   = errors.New("A package in this offer has no price configured")
	ErrPackageInvalidMetadata    = errors.New("A package in this offer has invalid configuration")
	ErrNoChargeableItems         = errors.New("No chargeable items in bundle")
	ErrPriceNotFound             = errors.New("No active price found for package")
	ErrInvalidPriceConfiguration = errors.New("Invalid price configuration")
	ErrCheckoutEmailRequired     = errors.New("Email is required")
	ErrPaymentProcessor          = errors.New("Payment provider error, please try again")
)

// MixedBillingModeError reports a bundle that combines one-time and recurring
// prices in a session that cannot hold both.
type MixedBillingModeError struct {
	OneTimeItems      []string
	SubscriptionItems []string
}

func (e *MixedBillingModeError) Error() string {
	return "Cannot combine one-time and subscription items in a single checkout"
}

// CheckoutConfig holds the processor and revenue settings of the pipeline.
type CheckoutConfig struct {
	SuccessURL              string
	CancelURL               string
	TaxRateID               string
	InPersonDiscountPercent int
	TrainerPayoutPercent    int
	PlatformName            string
	AdminEmails             []string
}

// CheckoutRequest is the buyer's input for an offer checkout.
type CheckoutRequest struct {
	Token      string
	Email      string
	SuccessURL string
	CancelURL  string
}

// CheckoutResult is returned to the buyer after the session is created.
type CheckoutResult struct {
	CheckoutURL         string        `json:"checkoutUrl"`
	SessionID           string        `json:"sessionId"`
	Mode                payments.Mode `json:"mode"`
	BundleDescription   string        `json:"bundleDescription"`
	ItemCount           int           `json:"itemCount"`
	OriginalItemCount   int           `json:"originalItemCount"`
	HasCoachingCombo    bool          `json:"hasCoachingCombo"`
	PremiumIncluded     bool          `json:"premiumIncluded"`
	TrainerName         string        `json:"trainerName"`
	InPersonDiscount    bool          `json:"inPersonDiscount"`
	HasDiscountCoupon   bool          `json:"hasDiscountCoupon"`
	DiscountDescription string        `json:"discountDescription,omitempty"`
}

type CheckoutService interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
}

type checkoutService struct {
	offerRepo        repository.OfferRepository
	packageRepo      repository.PackageRepository
	userRepo         repository.UserRepository
	notificationRepo repository.NotificationRepository
	processor        payments.Processor
	activations      *Activations
	discounts        []DiscountStrategy
	cfg              CheckoutConfig
	logger           *slog.Logger
	now              func() time.Time
}

// NewCheckoutService wires the checkout pipeline with the default discount strategies.
func NewCheckoutService(
	offerRepo repository.OfferRepository,
	packageRepo repository.PackageRepository,
	userRepo repository.UserRepository,
	notificationRepo repository.NotificationRepository,
	processor payments.Processor,
	activations *Activations,
	cfg CheckoutConfig,
	logger *slog.Logger,
) CheckoutService {
	return newCheckoutService(offerRepo, packageRepo, userRepo, notificationRepo, processor, activations, cfg, logger)
}

func newCheckoutService(
	offerRepo repository.OfferRepository,
	packageRepo repository.PackageRepository,
	userRepo repository.UserRepository,
	notificationRepo repository.NotificationRepository,
	processor payments.Processor,
	activations *Activations,
	cfg CheckoutConfig,
	logger *slog.Logger,
) *checkoutService {
	return &checkoutService{
		offerRepo:        offerRepo,
		packageRepo:      packageRepo,
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		processor:        processor,
		activations:      activations,
		discounts: []DiscountStrategy{
			InPersonSessionDiscount{Percent: cfg.InPersonDiscountPercent},
			OfferPersonalDiscount{},
		},
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Checkout runs the preparation stages in order and stops at the first failure.
// Users and customers created before a failure are kept for the retry.
func (s *checkoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	req.Email = domain.NormalizeEmail(req.Email)
	if req.Email == "" {
		return nil, ErrCheckoutEmailRequired
	}
	log := s.logger.With("module", "checkout", "offer_token", req.Token)

	offer, err := s.FetchAndValidateOffer(ctx, req.Token, req.Email)
	if err != nil {
		return nil, s.fail(log, "fetch_offer", err)
	}
	items, err := s.ResolvePackages(ctx, offer)
	if err != nil {
		return nil, s.fail(log, "resolve_packages", err)
	}
	trainer, err := s.userRepo.GetByID(ctx, offer.TrainerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.fail(log, "load_trainer", ErrOfferNotFound)
		}
		return nil, s.fail(log, "load_trainer", err)
	}
	user, err := s.FindOrCreateUser(ctx, req.Email, trainer)
	if err != nil {
		return nil, s.fail(log, "find_or_create_user", err)
	}
	customerID, err := s.EnsureCustomer(ctx, user)
	if err != nil {
		return nil, s.fail(log, "ensure_customer", err)
	}
	prepared, err := PrepareCheckoutItems(items)
	if err != nil {
		return nil, s.fail(log, "prepare_items", err)
	}
	mode := DetermineBillingMode(prepared.Items)
	lineItems, err := s.ResolveLineItems(ctx, prepared.Items, mode)
	if err != nil {
		return nil, s.fail(log, "resolve_line_items", err)
	}
	discount, err := s.ComputeBundleDiscounts(ctx, DiscountInput{Offer: offer, Items: prepared, LineItems: lineItems, Mode: mode})
	if err != nil {
		return nil, s.fail(log, "compute_discounts", err)
	}
	metadata := BuildSessionMetadata(SessionMetadataInput{
		Offer:                offer,
		Trainer:              trainer,
		User:                 user,
		Items:                prepared,
		Mode:                 mode,
		Discount:             discount,
		TrainerPayoutPercent: s.cfg.TrainerPayoutPercent,
		PlatformName:         s.cfg.PlatformName,
	})

	session, err := s.CreateSession(ctx, payments.SessionRequest{
		Mode:       mode,
		CustomerID: customerID,
		SuccessURL: firstNonEmpty(req.SuccessURL, expandOfferURL(s.cfg.SuccessURL, offer.Token)),
		CancelURL:  firstNonEmpty(req.CancelURL, expandOfferURL(s.cfg.CancelURL, offer.Token)),
		LineItems:  toProcessorLineItems(lineItems),
		CouponID:   discount.CouponID,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, s.fail(log, "create_session", err)
	}

	s.markProcessing(ctx, log, offer, session.ID)

	result := FormatResponse(session, mode, prepared, trainer, discount)
	log.Info("checkout session created",
		"operation", "checkout",
		"outcome", "success",
		"session_id", session.ID,
		"mode", mode,
		"user_id", user.ID.Hex(),
		"items", result.ItemCount,
	)
	return result, nil
}

// markProcessing records the in-flight session. A PENDING offer moves to
// PROCESSING; an offer already PROCESSING keeps its status and takes the newer
// session id. A concurrent checkout may win the race; that is logged and left
// to webhook reconciliation.
func (s *checkoutService) markProcessing(ctx context.Context, log *slog.Logger, offer *domain.Offer, sessionID string) {
	var err error
	switch offer.Status {
	case domain.OfferPending:
		err = s.offerRepo.TransitionStatus(ctx, offer.Token, domain.OfferPending, domain.OfferProcessing, sessionID)
	case domain.OfferProcessing:
		err = s.offerRepo.RecordCheckoutSession(ctx, offer.Token, domain.OfferProcessing, sessionID)
	default:
		return
	}
	if err != nil {
		log.Warn("could not record checkout session on offer",
			"operation", "mark_processing",
			"outcome", "skipped",
			"offer_status", offer.Status,
			"session_id", sessionID,
			"error", err,
		)
	}
}

func (s *checkoutService) fail(log *slog.Logger, stage string, err error) error {
	if isCheckoutRejection(err) {
		log.Info("checkout rejected", "operation", stage, "outcome", "rejected", "error", err)
	} else {
		log.Error("checkout failed", "operation", stage, "outcome", "failed", "error", err)
	}
	return err
}

// isCheckoutRejection reports errors caused by the offer or the buyer rather than by infrastructure.
func isCheckoutRejection(err error) bool {
	var mixed *MixedBillingModeError
	if errors.As(err, &mixed) {
		return true
	}
	for _, target := range []error{
		ErrOfferNotFound, ErrOfferExpired, ErrOfferClosed, ErrOfferEmailMismatch,
		ErrOfferInvalidSnapshot, ErrPackageNotFound, ErrPackageMissingLookupKey,
		ErrPackageInvalidMetadata, ErrNoChargeableItems, ErrPriceNotFound,
		ErrInvalidPriceConfiguration, ErrCheckoutEmailRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// expandOfferURL substitutes {token} in configured redirect URLs.
func expandOfferURL(tmpl, token string) string {
	return strings.ReplaceAll(tmpl, "{token}", token)
}
