package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleTrainer Role = "trainer"
	RoleClient  Role = "client"
	RoleAdmin   Role = "admin"
)

// Profile holds optional personal details. Accounts created during checkout
// start with an empty profile that the client fills in after first login.
type Profile struct {
	FirstName string   `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName  string   `bson:"lastName,omitempty" json:"lastName,omitempty"`
	Phone     string   `bson:"phone,omitempty" json:"phone,omitempty"`
	Goals     []string `bson:"goals,omitempty" json:"goals,omitempty"`
}

// IsEmpty reports whether no profile field has been filled in yet.
func (p Profile) IsEmpty() bool {
	return p.FirstName == "" && p.LastName == "" && p.Phone == "" && len(p.Goals) == 0
}

// User represents a user in the system (Trainer, Client or Admin).
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // Unique, stored lower-cased
	PasswordHash string             `bson:"passwordHash" json:"-"` // Empty for accounts created by checkout until activation
	Role         Role               `bson:"role" json:"role"`
	Profile      Profile            `bson:"profile" json:"profile"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`

	// Payment processor customer reference, set the first time the user checks out.
	StripeCustomerID string `bson:"stripeCustomerId,omitempty" json:"-"`

	// Single-use activation token for accounts created without a password.
	// Only the SHA-256 hex digest is stored.
	ActivationTokenHash string     `bson:"activationTokenHash,omitempty" json:"-"`
	ActivationExpiresAt *time.Time `bson:"activationExpiresAt,omitempty" json:"-"`

	// --- Trainer-specific ---
	// Connected payout account used for revenue share metadata on checkout sessions.
	PayoutAccountID string `bson:"payoutAccountId,omitempty" json:"-"`
}

// Helper methods
func (u *User) IsTrainer() bool {
	return u.Role == RoleTrainer
}

func (u *User) IsClient() bool {
	return u.Role == RoleClient
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NeedsActivation reports whether the account still has to choose a password.
func (u *User) NeedsActivation() bool {
	return u.PasswordHash == ""
}

// HasLiveActivation reports whether an unexpired activation token is outstanding.
func (u *User) HasLiveActivation(now time.Time) bool {
	return u.ActivationTokenHash != "" && u.ActivationExpiresAt != nil && u.ActivationExpiresAt.After(now)
}

// DisplayName falls back to the email when no name was provided.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
