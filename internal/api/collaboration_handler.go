package api

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/service"
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxBatchCheckIDs = 100

// CollaborationHandler serves invitations, collaborator grants and
// batch permission checks.
type CollaborationHandler struct {
	collaboration service.CollaborationService
	permissions   service.PermissionService
	logger        *slog.Logger
}

func NewCollaborationHandler(collaboration service.CollaborationService, permissions service.PermissionService, logger *slog.Logger) *CollaborationHandler {
	return &CollaborationHandler{collaboration: collaboration, permissions: permissions, logger: logger}
}

type InvitationRequest struct {
	RecipientID  string                 `json:"recipientId" binding:"required"`
	ResourceType domain.ResourceType    `json:"resourceType"`
	ResourceID   string                 `json:"resourceId"`
	Permission   domain.PermissionLevel `json:"permission"`
}

type BatchCheckRequest struct {
	ResourceType domain.ResourceType     `json:"resourceType" binding:"required"`
	IDs          []string                `json:"ids" binding:"required"`
	Action       domain.PermissionAction `json:"action" binding:"required"`
}

type BatchCheckResponse struct {
	Results map[string]service.PermissionCheck `json:"results"`
}

// CreateInvitation godoc
// @Summary Invite another trainer to connect or to collaborate on a plan
// @Tags Collaboration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param invitation body InvitationRequest true "Invitation"
// @Success 201 {object} domain.CollaborationInvitation
// @Failure 403 {object} gin.H "Denied, with the reason"
// @Router /collaborations/invitations [post]
func (h *CollaborationHandler) CreateInvitation(c *gin.Context) {
	inviterID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req InvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	recipientID, err := primitive.ObjectIDFromHex(req.RecipientID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid recipientId format.")
		return
	}

	in := service.InvitationRequest{
		RecipientID:  recipientID,
		ResourceType: req.ResourceType,
		Permission:   req.Permission,
	}
	if req.ResourceID != "" {
		resourceID, err := primitive.ObjectIDFromHex(req.ResourceID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid resourceId format.")
			return
		}
		in.ResourceID = &resourceID
	}

	invitation, err := h.collaboration.Invite(c.Request.Context(), inviterID, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, invitation)
}

func (h *CollaborationHandler) ListInvitations(c *gin.Context) {
	recipientID, ok := mustUserID(c)
	if !ok {
		return
	}
	status := domain.InvitationStatus(c.DefaultQuery("status", string(domain.InvitationPending)))

	invitations, err := h.collaboration.ListInvitations(c.Request.Context(), recipientID, status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if invitations == nil {
		invitations = []domain.CollaborationInvitation{}
	}
	c.JSON(http.StatusOK, invitations)
}

func (h *CollaborationHandler) AcceptInvitation(c *gin.Context) {
	h.respond(c, h.collaboration.Accept)
}

func (h *CollaborationHandler) DeclineInvitation(c *gin.Context) {
	h.respond(c, h.collaboration.Decline)
}

type answerFunc func(ctx context.Context, recipientID, invitationID primitive.ObjectID) (*domain.CollaborationInvitation, error)

func (h *CollaborationHandler) respond(c *gin.Context, answer answerFunc) {
	recipientID, ok := mustUserID(c)
	if !ok {
		return
	}
	invitationID, ok := paramObjectID(c, "id")
	if !ok {
		return
	}
	invitation, err := answer(c.Request.Context(), recipientID, invitationID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, invitation)
}

// ListCollaborators returns the handler for one resource type's collaborator list.
func (h *CollaborationHandler) ListCollaborators(resourceType domain.ResourceType) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, ok := mustUserID(c)
		if !ok {
			return
		}
		resourceID, ok := paramObjectID(c, "id")
		if !ok {
			return
		}
		collaborators, err := h.collaboration.ListCollaborators(c.Request.Context(), actorID, resourceType, resourceID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		if collaborators == nil {
			collaborators = []domain.Collaborator{}
		}
		c.JSON(http.StatusOK, collaborators)
	}
}

func (h *CollaborationHandler) RevokeCollaborator(resourceType domain.ResourceType) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, ok := mustUserID(c)
		if !ok {
			return
		}
		resourceID, ok := paramObjectID(c, "id")
		if !ok {
			return
		}
		userID, ok := paramObjectID(c, "userId")
		if !ok {
			return
		}
		if err := h.collaboration.RevokeCollaborator(c.Request.Context(), actorID, resourceType, resourceID, userID); err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// CheckBatch godoc
// @Summary Evaluate one action against many resources
// @Description Results are keyed by resource id. Malformed ids are reported as denied.
// @Tags Permissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BatchCheckRequest true "Resources and action"
// @Success 200 {object} BatchCheckResponse
// @Router /permissions/check-batch [post]
func (h *CollaborationHandler) CheckBatch(c *gin.Context) {
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req BatchCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	if !req.ResourceType.Valid() {
		abortWithError(c, http.StatusBadRequest, service.ReasonUnknownResourceType)
		return
	}
	if !req.Action.Valid() {
		abortWithError(c, http.StatusBadRequest, service.ReasonUnknownAction)
		return
	}
	if len(req.IDs) > maxBatchCheckIDs {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("at most %d ids per request", maxBatchCheckIDs))
		return
	}

	results := make(map[string]service.PermissionCheck, len(req.IDs))
	ids := make([]primitive.ObjectID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			results[raw] = service.PermissionCheck{Allowed: false, Reason: service.ReasonNotFound}
			continue
		}
		ids = append(ids, id)
	}

	for id, check := range h.permissions.EvaluateBatch(c.Request.Context(), req.ResourceType, actorID, ids, req.Action) {
		results[id.Hex()] = check
	}
	c.JSON(http.StatusOK, BatchCheckResponse{Results: results})
}
