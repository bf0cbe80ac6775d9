package service

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/repository"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrOfferValidation      = errors.New("offer validation failed")
	ErrOfferNotOwned        = errors.New("offer belongs to another trainer")
	ErrOfferNotCancellable  = errors.New("offer can no longer be cancelled")
	ErrPackageValidation    = errors.New("package validation failed")
	ErrPackageAlreadyExists = errors.New("a package with this lookup key already exists")
)

// CreateOfferInput is what a trainer submits to build an offer.
type CreateOfferInput struct {
	ClientEmail             string
	Packages                []domain.OfferPackage
	PersonalDiscountPercent int
	Message                 string
	TTL                     time.Duration
}

// OfferPackagePreview is a snapshot entry joined with the current catalog.
type OfferPackagePreview struct {
	PackageID   primitive.ObjectID     `json:"packageId"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Quantity    int                    `json:"quantity"`
	PriceCents  int64                  `json:"priceCents"`
	Currency    string                 `json:"currency"`
	Category    domain.PackageCategory `json:"category"`
}

// OfferPreview is the public view of an offer, shown before checkout.
type OfferPreview struct {
	Token                   string                `json:"token"`
	Status                  domain.OfferStatus    `json:"status"`
	ExpiresAt               time.Time             `json:"expiresAt"`
	TrainerName             string                `json:"trainerName"`
	Message                 string                `json:"message,omitempty"`
	PersonalDiscountPercent int                   `json:"personalDiscountPercent,omitempty"`
	Packages                []OfferPackagePreview `json:"packages"`
}

type OfferService interface {
	CreateOffer(ctx context.Context, trainerID primitive.ObjectID, input CreateOfferInput) (*domain.Offer, error)
	GetOfferPreview(ctx context.Context, token string) (*OfferPreview, error)
	ListTrainerOffers(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Offer, error)
	CancelOffer(ctx context.Context, trainerID primitive.ObjectID, token string) error
	ExpireDueOffers(ctx context.Context) (int64, error)

	CreatePackage(ctx context.Context, pkg *domain.PackageTemplate) (*domain.PackageTemplate, error)
	ListPackages(ctx context.Context) ([]domain.PackageTemplate, error)
}

type offerService struct {
	offerRepo   repository.OfferRepository
	packageRepo repository.PackageRepository
	userRepo    repository.UserRepository
	defaultTTL  time.Duration
	currency    string
	logger      *slog.Logger
	now         func() time.Time
}

func NewOfferService(
	offerRepo repository.OfferRepository,
	packageRepo repository.PackageRepository,
	userRepo repository.UserRepository,
	defaultTTL time.Duration,
	currency string,
	logger *slog.Logger,
) OfferService {
	if defaultTTL <= 0 {
		defaultTTL = 7 * 24 * time.Hour
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = "usd"
	}
	return &offerService{
		offerRepo:   offerRepo,
		packageRepo: packageRepo,
		userRepo:    userRepo,
		defaultTTL:  defaultTTL,
		currency:    currency,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *offerService) CreateOffer(ctx context.Context, trainerID primitive.ObjectID, input CreateOfferInput) (*domain.Offer, error) {
	email := domain.NormalizeEmail(input.ClientEmail)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid client email is required", ErrOfferValidation)
	}
	if len(input.Packages) == 0 {
		return nil, fmt.Errorf("%w: at least one package is required", ErrOfferValidation)
	}
	if input.PersonalDiscountPercent < 0 || input.PersonalDiscountPercent > 100 {
		return nil, fmt.Errorf("%w: personal discount must be between 0 and 100", ErrOfferValidation)
	}

	// Copy the snapshot so later mutations of the caller's slice cannot leak in.
	snapshot := make([]domain.OfferPackage, 0, len(input.Packages))
	for _, entry := range input.Packages {
		if entry.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", ErrOfferValidation)
		}
		pkg, err := s.packageRepo.GetByID(ctx, entry.PackageID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: package %s does not exist", ErrOfferValidation, entry.PackageID.Hex())
			}
			return nil, err
		}
		if !pkg.Active {
			return nil, fmt.Errorf("%w: package %s is not active", ErrOfferValidation, pkg.Name)
		}
		snapshot = append(snapshot, domain.OfferPackage{PackageID: entry.PackageID, Quantity: entry.Quantity})
	}

	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	offer := &domain.Offer{
		Token:                   uuid.NewString(),
		TrainerID:               trainerID,
		ClientEmail:             email,
		Status:                  domain.OfferPending,
		ExpiresAt:               s.now().UTC().Add(ttl),
		Packages:                snapshot,
		PersonalDiscountPercent: input.PersonalDiscountPercent,
		Message:                 strings.TrimSpace(input.Message),
	}
	if _, err := s.offerRepo.Create(ctx, offer); err != nil {
		return nil, err
	}

	s.logger.Info("offer created",
		"module", "offers",
		"operation", "create",
		"offer_token", offer.Token,
		"trainer_id", trainerID.Hex(),
		"packages", len(snapshot),
	)
	return offer, nil
}

func (s *offerService) GetOfferPreview(ctx context.Context, token string) (*OfferPreview, error) {
	offer, err := s.offerRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}

	preview := &OfferPreview{
		Token:                   offer.Token,
		Status:                  offer.Status,
		ExpiresAt:               offer.ExpiresAt,
		Message:                 offer.Message,
		PersonalDiscountPercent: offer.PersonalDiscountPercent,
		Packages:                make([]OfferPackagePreview, 0, len(offer.Packages)),
	}
	if offer.Status == domain.OfferPending && offer.IsExpired(s.now()) {
		preview.Status = domain.OfferExpired
	}

	if trainer, err := s.userRepo.GetByID(ctx, offer.TrainerID); err == nil {
		preview.TrainerName = trainer.DisplayName()
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	for _, entry := range offer.Packages {
		item := OfferPackagePreview{PackageID: entry.PackageID, Quantity: entry.Quantity}
		pkg, err := s.packageRepo.GetByID(ctx, entry.PackageID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if pkg != nil {
			item.Name = pkg.Name
			item.Description = pkg.Description
			item.PriceCents = pkg.PriceCents
			item.Currency = pkg.Currency
			if profile, err := pkg.Profile(); err == nil {
				item.Category = profile.Category
			}
		}
		preview.Packages = append(preview.Packages, item)
	}
	return preview, nil
}

func (s *offerService) ListTrainerOffers(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Offer, error) {
	return s.offerRepo.ListByTrainer(ctx, trainerID)
}

func (s *offerService) CancelOffer(ctx context.Context, trainerID primitive.ObjectID, token string) error {
	offer, err := s.offerRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOfferNotFound
		}
		return err
	}
	if offer.TrainerID != trainerID {
		return ErrOfferNotOwned
	}
	if !offer.Status.CanTransitionTo(domain.OfferCancelled) {
		return ErrOfferNotCancellable
	}
	if err := s.offerRepo.TransitionStatus(ctx, token, offer.Status, domain.OfferCancelled, ""); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrOfferNotCancellable
		}
		return err
	}
	s.logger.Info("offer cancelled", "module", "offers", "operation", "cancel", "offer_token", token)
	return nil
}

func (s *offerService) ExpireDueOffers(ctx context.Context) (int64, error) {
	return s.offerRepo.ExpireDue(ctx, s.now())
}

// CreatePackage validates the metadata traits before the package enters the catalog.
func (s *offerService) CreatePackage(ctx context.Context, pkg *domain.PackageTemplate) (*domain.PackageTemplate, error) {
	pkg.Name = strings.TrimSpace(pkg.Name)
	pkg.LookupKey = strings.TrimSpace(pkg.LookupKey)
	if pkg.Name == "" || pkg.LookupKey == "" {
		return nil, fmt.Errorf("%w: name and lookupKey are required", ErrPackageValidation)
	}
	if pkg.PriceCents < 0 {
		return nil, fmt.Errorf("%w: price cannot be negative", ErrPackageValidation)
	}
	if _, err := domain.ParsePackageTraits(pkg.Metadata); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPackageValidation, err)
	}
	pkg.Currency = strings.ToLower(strings.TrimSpace(pkg.Currency))
	if pkg.Currency == "" {
		pkg.Currency = s.currency
	}

	if _, err := s.packageRepo.Create(ctx, pkg); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrPackageAlreadyExists
		}
		return nil, err
	}
	return pkg, nil
}

func (s *offerService) ListPackages(ctx context.Context) ([]domain.PackageTemplate, error) {
	return s.packageRepo.ListActive(ctx)
}
