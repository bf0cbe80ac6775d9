package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationKind string

const (
	NotificationNewClientSignup   NotificationKind = "new_client_signup"
	NotificationAccountActivation NotificationKind = "account_activation"
)

type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationDelivered NotificationStatus = "delivered"
	NotificationDead      NotificationStatus = "dead"
)

// Notification is an outbox record. The worker claims pending records,
// delivers them and retries failures up to a configured attempt limit.
type Notification struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind        NotificationKind   `bson:"kind" json:"kind"`
	Recipients  []string           `bson:"recipients,omitempty" json:"recipients,omitempty"` // Empty means "all admins"
	Subject     string             `bson:"subject" json:"subject"`
	Body        string             `bson:"body" json:"body"`
	Status      NotificationStatus `bson:"status" json:"status"`
	Attempts    int                `bson:"attempts" json:"attempts"`
	LastError   string             `bson:"lastError,omitempty" json:"lastError,omitempty"`
	ClaimToken  string             `bson:"claimToken,omitempty" json:"-"`
	ClaimUntil  *time.Time         `bson:"claimUntil,omitempty" json:"-"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	DeliveredAt *time.Time         `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
}
