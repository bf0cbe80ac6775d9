package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PackageCategory drives billing: trainer_coaching is billed as a subscription,
// everything else as a one-time payment.
type PackageCategory string

const (
	CategoryTrainerCoaching     PackageCategory = "trainer_coaching"
	CategoryPremiumSubscription PackageCategory = "premium_subscription"
	CategoryInPersonSession     PackageCategory = "in_person_session"
	CategoryPackage             PackageCategory = "package"
)

func (c PackageCategory) Valid() bool {
	switch c {
	case CategoryTrainerCoaching, CategoryPremiumSubscription, CategoryInPersonSession, CategoryPackage:
		return true
	}
	return false
}

// Raw catalog metadata keys.
const (
	MetaCategory        = "category"
	MetaIncludesPremium = "includes_premium"
	MetaLifetimeGrant   = "lifetime_grant"
	MetaSessions        = "sessions"
	MetaSessionFormat   = "session_format"
)

// PackageTemplate is a purchasable catalog item. Metadata is stored as the
// processor-style string map and parsed into PackageTraits when read.
type PackageTemplate struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	LookupKey   string             `bson:"lookupKey" json:"lookupKey"` // Resolves to a live processor price
	PriceCents  int64              `bson:"priceCents" json:"priceCents"`
	Currency    string             `bson:"currency" json:"currency"`
	Metadata    map[string]string  `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Active      bool               `bson:"active" json:"active"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PackageTrait is one known metadata shape. The set of implementations is closed.
type PackageTrait interface {
	packageTrait()
}

// CoachingCategory carries the billing category of the package.
type CoachingCategory struct {
	Category PackageCategory
}

// PremiumInclusion marks a coaching combo: premium access is already part of it.
type PremiumInclusion struct{}

// LifetimeGrant unlocks a feature permanently after purchase.
type LifetimeGrant struct {
	Feature string
}

// SessionAllowance is a number of coached sessions sold by the package.
type SessionAllowance struct {
	Sessions int
	InPerson bool
}

func (CoachingCategory) packageTrait() {}
func (PremiumInclusion) packageTrait() {}
func (LifetimeGrant) packageTrait()    {}
func (SessionAllowance) packageTrait() {}

// ParsePackageTraits validates raw metadata and converts it into traits.
// Unknown keys are ignored; known keys with bad values are an error.
func ParsePackageTraits(raw map[string]string) ([]PackageTrait, error) {
	category := CategoryPackage
	if v, ok := raw[MetaCategory]; ok && strings.TrimSpace(v) != "" {
		category = PackageCategory(strings.ToLower(strings.TrimSpace(v)))
		if !category.Valid() {
			return nil, fmt.Errorf("unknown package category %q", v)
		}
	}
	traits := []PackageTrait{CoachingCategory{Category: category}}

	if v, ok := raw[MetaIncludesPremium]; ok {
		include, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q", MetaIncludesPremium, v)
		}
		if include {
			traits = append(traits, PremiumInclusion{})
		}
	}

	if v := strings.TrimSpace(raw[MetaLifetimeGrant]); v != "" {
		traits = append(traits, LifetimeGrant{Feature: v})
	}

	if v, ok := raw[MetaSessions]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s value %q", MetaSessions, v)
		}
		format := strings.ToLower(strings.TrimSpace(raw[MetaSessionFormat]))
		if format != "" && format != "in_person" && format != "online" {
			return nil, fmt.Errorf("invalid %s value %q", MetaSessionFormat, raw[MetaSessionFormat])
		}
		traits = append(traits, SessionAllowance{
			Sessions: n,
			InPerson: format == "in_person" || (format == "" && category == CategoryInPersonSession),
		})
	}
	return traits, nil
}

// PackageProfile is the flattened view of a package's traits.
type PackageProfile struct {
	Category        PackageCategory
	IncludesPremium bool
	Lifetime        *LifetimeGrant
	Sessions        *SessionAllowance
}

// IsCoachingCombo reports a package that already bundles premium access.
func (p PackageProfile) IsCoachingCombo() bool {
	return p.IncludesPremium
}

func (p PackageProfile) IsStandalonePremium() bool {
	return p.Category == CategoryPremiumSubscription && !p.IncludesPremium
}

func (p PackageProfile) IsInPersonSession() bool {
	if p.Category == CategoryInPersonSession {
		return true
	}
	return p.Sessions != nil && p.Sessions.InPerson
}

func (p PackageProfile) IsSubscription() bool {
	return p.Category == CategoryTrainerCoaching
}

// Profile parses the package metadata into a PackageProfile.
func (t *PackageTemplate) Profile() (PackageProfile, error) {
	traits, err := ParsePackageTraits(t.Metadata)
	if err != nil {
		return PackageProfile{}, fmt.Errorf("package %s: %w", t.ID.Hex(), err)
	}
	var profile PackageProfile
	for _, trait := range traits {
		switch v := trait.(type) {
		case CoachingCategory:
			profile.Category = v.Category
		case PremiumInclusion:
			profile.IncludesPremium = true
		case LifetimeGrant:
			grant := v
			profile.Lifetime = &grant
		case SessionAllowance:
			allowance := v
			profile.Sessions = &allowance
		}
	}
	return profile, nil
}
