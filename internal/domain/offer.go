package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OfferStatus tracks the lifecycle of a trainer's offer.
type OfferStatus string

const (
	OfferPending    OfferStatus = "PENDING"
	OfferProcessing OfferStatus = "PROCESSING"
	OfferCompleted  OfferStatus = "COMPLETED"
	OfferCancelled  OfferStatus = "CANCELLED"
	OfferExpired    OfferStatus = "EXPIRED"
)

// IsTerminal reports a final status. Terminal offers are never mutated again.
func (s OfferStatus) IsTerminal() bool {
	return s == OfferCompleted || s == OfferCancelled || s == OfferExpired
}

// CanTransitionTo reports whether the status change is allowed.
func (s OfferStatus) CanTransitionTo(next OfferStatus) bool {
	switch s {
	case OfferPending:
		return next == OfferProcessing || next == OfferCompleted || next == OfferCancelled || next == OfferExpired
	case OfferProcessing:
		// PENDING again when an abandoned checkout session is released.
		return next == OfferPending || next == OfferCompleted || next == OfferCancelled || next == OfferExpired
	default:
		return false
	}
}

// OfferPackage is one (package, quantity) entry of the frozen snapshot.
type OfferPackage struct {
	PackageID primitive.ObjectID `bson:"packageId" json:"packageId"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// Offer is a trainer-issued bundle proposal to a prospective client.
// Packages is written once at creation and never updated.
type Offer struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Token                   string             `bson:"token" json:"token"`
	TrainerID               primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	ClientEmail             string             `bson:"clientEmail" json:"clientEmail"`
	Status                  OfferStatus        `bson:"status" json:"status"`
	ExpiresAt               time.Time          `bson:"expiresAt" json:"expiresAt"`
	Packages                []OfferPackage     `bson:"packages" json:"packages"`
	PersonalDiscountPercent int                `bson:"personalDiscountPercent,omitempty" json:"personalDiscountPercent,omitempty"`
	Message                 string             `bson:"message,omitempty" json:"message,omitempty"`
	CheckoutSessionID       string             `bson:"checkoutSessionId,omitempty" json:"-"`
	CreatedAt               time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt               time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (o *Offer) IsExpired(now time.Time) bool {
	return o.ExpiresAt.Before(now)
}

// MatchesEmail compares addresses case-insensitively.
func (o *Offer) MatchesEmail(email string) bool {
	return NormalizeEmail(o.ClientEmail) == NormalizeEmail(email)
}

// NormalizeEmail trims and lower-cases an address for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
