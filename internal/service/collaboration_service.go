package service

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/repository"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationInvalid  = errors.New("invalid invitation")
	ErrInvitationClosed   = errors.New("invitation has already been answered")
	ErrNotInvitationOwner = errors.New("only the invited trainer can answer this invitation")
	ErrCollaboratorAbsent = errors.New("collaborator not found")
)

// InvitationRequest describes a new invitation. Without a resource it only
// connects two trainers; with one it proposes a grant at Permission.
type InvitationRequest struct {
	RecipientID  primitive.ObjectID
	ResourceType domain.ResourceType
	ResourceID   *primitive.ObjectID
	Permission   domain.PermissionLevel
}

type CollaborationService interface {
	Invite(ctx context.Context, inviterID primitive.ObjectID, req InvitationRequest) (*domain.CollaborationInvitation, error)
	Accept(ctx context.Context, recipientID, invitationID primitive.ObjectID) (*domain.CollaborationInvitation, error)
	Decline(ctx context.Context, recipientID, invitationID primitive.ObjectID) (*domain.CollaborationInvitation, error)
	ListInvitations(ctx context.Context, recipientID primitive.ObjectID, status domain.InvitationStatus) ([]domain.CollaborationInvitation, error)
	ListCollaborators(ctx context.Context, actorID primitive.ObjectID, resourceType domain.ResourceType, resourceID primitive.ObjectID) ([]domain.Collaborator, error)
	RevokeCollaborator(ctx context.Context, actorID primitive.ObjectID, resourceType domain.ResourceType, resourceID, userID primitive.ObjectID) error
}

type collaborationService struct {
	invitationRepo   repository.InvitationRepository
	collaboratorRepo repository.CollaboratorRepository
	userRepo         repository.UserRepository
	permissions      PermissionService
	logger           *slog.Logger
	now              func() time.Time
}

func NewCollaborationService(
	invitationRepo repository.InvitationRepository,
	collaboratorRepo repository.CollaboratorRepository,
	userRepo repository.UserRepository,
	permissions PermissionService,
	logger *slog.Logger,
) CollaborationService {
	return &collaborationService{
		invitationRepo:   invitationRepo,
		collaboratorRepo: collaboratorRepo,
		userRepo:         userRepo,
		permissions:      permissions,
		logger:           logger,
		now:              time.Now,
	}
}

func (s *collaborationService) Invite(ctx context.Context, inviterID primitive.ObjectID, req InvitationRequest) (*domain.CollaborationInvitation, error) {
	inv := &domain.CollaborationInvitation{
		InviterID:   inviterID,
		RecipientID: req.RecipientID,
	}

	if req.ResourceID == nil {
		if err := s.checkConnectionInvite(ctx, inviterID, req.RecipientID); err != nil {
			return nil, err
		}
	} else {
		if err := s.checkResourceInvite(ctx, inviterID, req); err != nil {
			return nil, err
		}
		inv.ResourceType = req.ResourceType
		inv.ResourceID = req.ResourceID
		inv.Permission = req.Permission
	}

	if _, err := s.invitationRepo.Create(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info("collaboration invitation created",
		"module", "collaboration",
		"operation", "invite",
		"invitation_id", inv.ID.Hex(),
		"inviter_id", inviterID.Hex(),
		"recipient_id", req.RecipientID.Hex(),
		"resource", inv.IsResourceInvitation(),
	)
	return inv, nil
}

// checkConnectionInvite only requires both sides to be trainers.
func (s *collaborationService) checkConnectionInvite(ctx context.Context, inviterID, recipientID primitive.ObjectID) error {
	if inviterID == recipientID {
		return &PermissionDeniedError{Reason: ReasonSelfInvite}
	}
	for _, id := range []primitive.ObjectID{inviterID, recipientID} {
		user, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return &PermissionDeniedError{Reason: ReasonUserNotFound}
			}
			return err
		}
		if !user.IsTrainer() {
			return &PermissionDeniedError{Reason: ReasonNotTrainers}
		}
	}
	return nil
}

func (s *collaborationService) checkResourceInvite(ctx context.Context, inviterID primitive.ObjectID, req InvitationRequest) error {
	if !req.ResourceType.Valid() {
		return fmt.Errorf("%w: unknown resource type %q", ErrInvitationInvalid, req.ResourceType)
	}
	if !req.Permission.Valid() {
		return fmt.Errorf("%w: unknown permission level %q", ErrInvitationInvalid, req.Permission)
	}

	share := s.permissions.Evaluate(ctx, req.ResourceType, inviterID, *req.ResourceID, domain.ActionShare)
	if !share.Allowed {
		return &PermissionDeniedError{Reason: share.Reason}
	}
	if req.Permission.Rank() > share.EffectivePermission.Rank() {
		return fmt.Errorf("%w: cannot grant %s with %s access", ErrInvitationInvalid, req.Permission, share.EffectivePermission)
	}

	// The recipient may be the creator, who never gets a collaborator row.
	recipientView := s.permissions.Evaluate(ctx, req.ResourceType, req.RecipientID, *req.ResourceID, domain.ActionView)
	if recipientView.IsCreator {
		return fmt.Errorf("%w: recipient already owns this resource", ErrInvitationInvalid)
	}

	connect := s.permissions.CanInviteCollaborators(ctx, inviterID, req.RecipientID)
	if !connect.Allowed {
		return &PermissionDeniedError{Reason: connect.Reason}
	}
	return nil
}

func (s *collaborationService) loadOwnPending(ctx context.Context, recipientID, invitationID primitive.ObjectID) (*domain.CollaborationInvitation, error) {
	inv, err := s.invitationRepo.GetByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	if inv.RecipientID != recipientID {
		return nil, ErrNotInvitationOwner
	}
	if inv.Status != domain.InvitationPending {
		return nil, ErrInvitationClosed
	}
	return inv, nil
}

func (s *collaborationService) respond(ctx context.Context, inv *domain.CollaborationInvitation, status domain.InvitationStatus) error {
	at := s.now().UTC()
	if err := s.invitationRepo.Respond(ctx, inv.ID, status, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvitationClosed
		}
		return err
	}
	inv.Status = status
	inv.RespondedAt = &at
	return nil
}

// Accept writes the grant before closing the invitation. The upsert is keyed on
// (resourceType, resourceId, userId), so a failed status update can be retried.
func (s *collaborationService) Accept(ctx context.Context, recipientID, invitationID primitive.ObjectID) (*domain.CollaborationInvitation, error) {
	inv, err := s.loadOwnPending(ctx, recipientID, invitationID)
	if err != nil {
		return nil, err
	}
	if !inv.IsResourceInvitation() {
		if err := s.respond(ctx, inv, domain.InvitationAccepted); err != nil {
			return nil, err
		}
		return inv, nil
	}

	if err := s.checkStillGrantable(ctx, inv); err != nil {
		return nil, err
	}
	grant := &domain.Collaborator{
		ResourceType: inv.ResourceType,
		ResourceID:   *inv.ResourceID,
		UserID:       recipientID,
		Permission:   inv.Permission,
		GrantedBy:    inv.InviterID,
	}
	if err := s.collaboratorRepo.Upsert(ctx, grant); err != nil {
		return nil, err
	}

	if err := s.respond(ctx, inv, domain.InvitationAccepted); err != nil {
		if errors.Is(err, ErrInvitationClosed) {
			return s.settleLostAnswer(ctx, inv)
		}
		return nil, err
	}
	s.logger.Info("collaborator granted",
		"module", "collaboration",
		"operation", "accept",
		"resource_type", inv.ResourceType,
		"resource_id", inv.ResourceID.Hex(),
		"user_id", recipientID.Hex(),
		"permission", inv.Permission,
	)
	return inv, nil
}

// checkStillGrantable re-checks the resource and the inviter's access, either of
// which may have changed since the invitation was sent.
func (s *collaborationService) checkStillGrantable(ctx context.Context, inv *domain.CollaborationInvitation) error {
	share := s.permissions.Evaluate(ctx, inv.ResourceType, inv.InviterID, *inv.ResourceID, domain.ActionShare)
	switch {
	case share.Reason == ReasonCheckFailed:
		return errors.New("could not verify invitation resource")
	case share.Reason == ReasonNotFound:
		return fmt.Errorf("%w: the shared %s no longer exists", ErrInvitationInvalid, inv.ResourceType)
	case !share.Allowed:
		return fmt.Errorf("%w: the inviter can no longer share this %s", ErrInvitationInvalid, inv.ResourceType)
	case inv.Permission.Rank() > share.EffectivePermission.Rank():
		return fmt.Errorf("%w: the inviter no longer holds %s access", ErrInvitationInvalid, inv.Permission)
	}
	return nil
}

// settleLostAnswer handles a concurrent answer that closed the invitation
// between loading it and accepting it.
func (s *collaborationService) settleLostAnswer(ctx context.Context, inv *domain.CollaborationInvitation) (*domain.CollaborationInvitation, error) {
	current, err := s.invitationRepo.GetByID(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.InvitationAccepted {
		return current, nil
	}
	// Declined in the meantime: take back the grant written above.
	if err := s.collaboratorRepo.Delete(ctx, inv.ResourceType, *inv.ResourceID, inv.RecipientID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("could not remove grant of declined invitation",
			"module", "collaboration",
			"operation", "accept",
			"outcome", "failed",
			"invitation_id", inv.ID.Hex(),
			"error", err,
		)
	}
	return nil, ErrInvitationClosed
}

func (s *collaborationService) Decline(ctx context.Context, recipientID, invitationID primitive.ObjectID) (*domain.CollaborationInvitation, error) {
	inv, err := s.loadOwnPending(ctx, recipientID, invitationID)
	if err != nil {
		return nil, err
	}
	if err := s.respond(ctx, inv, domain.InvitationDeclined); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *collaborationService) ListInvitations(ctx context.Context, recipientID primitive.ObjectID, status domain.InvitationStatus) ([]domain.CollaborationInvitation, error) {
	return s.invitationRepo.ListForRecipient(ctx, recipientID, status)
}

func (s *collaborationService) ListCollaborators(ctx context.Context, actorID primitive.ObjectID, resourceType domain.ResourceType, resourceID primitive.ObjectID) ([]domain.Collaborator, error) {
	if err := s.permissions.RequirePermission(ctx, resourceType, actorID, resourceID, domain.ActionManageCollaborators); err != nil {
		return nil, err
	}
	return s.collaboratorRepo.ListByResource(ctx, resourceType, resourceID)
}

func (s *collaborationService) RevokeCollaborator(ctx context.Context, actorID primitive.ObjectID, resourceType domain.ResourceType, resourceID, userID primitive.ObjectID) error {
	if err := s.permissions.RequirePermission(ctx, resourceType, actorID, resourceID, domain.ActionManageCollaborators); err != nil {
		return err
	}
	if err := s.collaboratorRepo.Delete(ctx, resourceType, resourceID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCollaboratorAbsent
		}
		return err
	}
	s.logger.Info("collaborator revoked",
		"module", "collaboration",
		"operation", "revoke",
		"resource_type", resourceType,
		"resource_id", resourceID.Hex(),
		"user_id", userID.Hex(),
		"actor_id", actorID.Hex(),
	)
	return nil
}
