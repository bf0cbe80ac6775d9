package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ResourceType names the kinds of shareable resources.
type ResourceType string

const (
	ResourceTrainingPlan ResourceType = "training_plan"
	ResourceMealPlan     ResourceType = "meal_plan"
)

func (t ResourceType) Valid() bool {
	return t == ResourceTrainingPlan || t == ResourceMealPlan
}

// ResourceAccess is the slice of a shared resource that access decisions need.
type ResourceAccess struct {
	CreatorID primitive.ObjectID `bson:"creatorId"`
	IsPublic  bool               `bson:"isPublic"`
}

// PermissionLevel is a collaborator grant. Levels are ordered VIEW < EDIT < ADMIN.
type PermissionLevel string

const (
	PermissionView  PermissionLevel = "VIEW"
	PermissionEdit  PermissionLevel = "EDIT"
	PermissionAdmin PermissionLevel = "ADMIN"
)

// Rank returns the position of the level in the ordering, 0 for unknown levels.
func (l PermissionLevel) Rank() int {
	switch l {
	case PermissionView:
		return 1
	case PermissionEdit:
		return 2
	case PermissionAdmin:
		return 3
	default:
		return 0
	}
}

func (l PermissionLevel) Valid() bool {
	return l.Rank() > 0
}

// AtLeast reports whether l is the same as or above min. Unknown levels never qualify.
func (l PermissionLevel) AtLeast(min PermissionLevel) bool {
	return l.Valid() && min.Valid() && l.Rank() >= min.Rank()
}

// PermissionAction is something an actor wants to do with a resource.
type PermissionAction string

const (
	ActionView                PermissionAction = "VIEW"
	ActionEdit                PermissionAction = "EDIT"
	ActionShare               PermissionAction = "SHARE"
	ActionManageCollaborators PermissionAction = "MANAGE_COLLABORATORS"
	ActionDelete              PermissionAction = "DELETE"
)

// RequiredLevel returns the minimum collaborator level for the action.
// DELETE has none: only the creator may delete.
func (a PermissionAction) RequiredLevel() (PermissionLevel, bool) {
	switch a {
	case ActionView:
		return PermissionView, true
	case ActionEdit, ActionShare:
		return PermissionEdit, true
	case ActionManageCollaborators:
		return PermissionAdmin, true
	default:
		return "", false
	}
}

func (a PermissionAction) Valid() bool {
	switch a {
	case ActionView, ActionEdit, ActionShare, ActionManageCollaborators, ActionDelete:
		return true
	}
	return false
}

// Collaborator grants a non-owner user access to one resource.
// Unique per (resourceType, resourceId, userId). Creators are never stored here.
type Collaborator struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ResourceType ResourceType       `bson:"resourceType" json:"resourceType"`
	ResourceID   primitive.ObjectID `bson:"resourceId" json:"resourceId"`
	UserID       primitive.ObjectID `bson:"userId" json:"userId"`
	Permission   PermissionLevel    `bson:"permission" json:"permission"`
	GrantedBy    primitive.ObjectID `bson:"grantedBy" json:"grantedBy"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationDeclined InvitationStatus = "DECLINED"
)

// CollaborationInvitation connects two trainers, and optionally offers the
// recipient a grant on a specific resource once accepted.
type CollaborationInvitation struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	InviterID    primitive.ObjectID  `bson:"inviterId" json:"inviterId"`
	RecipientID  primitive.ObjectID  `bson:"recipientId" json:"recipientId"`
	ResourceType ResourceType        `bson:"resourceType,omitempty" json:"resourceType,omitempty"`
	ResourceID   *primitive.ObjectID `bson:"resourceId,omitempty" json:"resourceId,omitempty"`
	Permission   PermissionLevel     `bson:"permission,omitempty" json:"permission,omitempty"`
	Status       InvitationStatus    `bson:"status" json:"status"`
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
	RespondedAt  *time.Time          `bson:"respondedAt,omitempty" json:"respondedAt,omitempty"`
}

// IsResourceInvitation reports whether accepting creates a collaborator grant.
func (i *CollaborationInvitation) IsResourceInvitation() bool {
	return i.ResourceID != nil && *i.ResourceID != primitive.NilObjectID
}
