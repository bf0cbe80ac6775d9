package service

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/repository"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type collaborationFixture struct {
	*permissionFixture
	alice, bob, client *domain.User
	collab             CollaborationService
}

func newCollaborationFixture() *collaborationFixture {
	alice := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleTrainer}
	bob := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleTrainer}
	client := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleClient}
	pf := newPermissionFixture(alice, bob, client)
	return &collaborationFixture{
		permissionFixture: pf,
		alice:             alice,
		bob:               bob,
		client:            client,
		collab:            NewCollaborationService(pf.invitations, pf.collaborators, pf.users, pf.svc, discardLogger()),
	}
}

func deniedReason(t *testing.T, err error) string {
	t.Helper()
	var denied *PermissionDeniedError
	require.ErrorAs(t, err, &denied)
	return denied.Reason
}

func TestInvite_ConnectionThenResourceGrant(t *testing.T) {
	f := newCollaborationFixture()
	ctx := context.Background()
	plan := f.plans.add(&domain.TrainingPlan{CreatorID: f.alice.ID, Name: "Cut"})

	// No connection yet: a resource invitation is refused.
	_, err := f.collab.Invite(ctx, f.alice.ID, InvitationRequest{
		RecipientID: f.bob.ID, ResourceType: domain.ResourceTrainingPlan, ResourceID: &plan.ID, Permission: domain.PermissionEdit,
	})
	assert.Equal(t, ReasonNoAcceptedConnection, deniedReason(t, err))

	connect, err := f.collab.Invite(ctx, f.alice.ID, InvitationRequest{RecipientID: f.bob.ID})
	require.NoError(t, err)
	assert.False(t, connect.IsResourceInvitation())
	_, err = f.collab.Accept(ctx, f.bob.ID, connect.ID)
	require.NoError(t, err)

	grant, err := f.collab.Invite(ctx, f.alice.ID, InvitationRequest{
		RecipientID: f.bob.ID, ResourceType: domain.ResourceTrainingPlan, ResourceID: &plan.ID, Permission: domain.PermissionEdit,
	})
	require.NoError(t, err)

	pending, err := f.collab.ListInvitations(ctx, f.bob.ID, domain.InvitationPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	accepted, err := f.collab.Accept(ctx, f.bob.ID, grant.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationAccepted, accepted.Status)
	assert.NotNil(t, accepted.RespondedAt)

	check := f.svc.CheckTrainingPlanPermission(ctx, f.bob.ID, plan.ID, domain.ActionEdit)
	assert.True(t, check.Allowed)
	assert.Equal(t, domain.PermissionEdit, check.EffectivePermission)

	_, err = f.collab.Accept(ctx, f.bob.ID, grant.ID)
	assert.ErrorIs(t, err, ErrInvitationClosed)
}

func TestInvite_Rejections(t *testing.T) {
	f := newCollaborationFixture()
	ctx := context.Background()
	plan := f.plans.add(&domain.TrainingPlan{CreatorID: f.alice.ID})

	_, err := f.collab.Invite(ctx, f.alice.ID, InvitationRequest{RecipientID: f.alice.ID})
	assert.Equal(t, ReasonSelfInvite, deniedReason(t, err))

	_, err = f.collab.Invite(ctx, f.alice.ID, InvitationRequest{RecipientID: f.client.ID})
	assert.Equal(t, ReasonNotTrainers, deniedReason(t, err))

	// Bob cannot share a plan he has no access to.
	_, err = f.collab.Invite(ctx, f.bob.ID, InvitationRequest{
		RecipientID: f.alice.ID, ResourceType: domain.ResourceTrainingPlan, ResourceID: &plan.ID, Permission: domain.PermissionView,
	})
	assert.Equal(t, ReasonNotCollaborator, deniedReason(t, err))

	// An EDIT collaborator cannot hand out ADMIN.
	carol := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleTrainer}
	f.users.users[carol.ID] = carol
	f.collaborators.grant(domain.ResourceTrainingPlan, plan.ID, f.bob.ID, domain.PermissionEdit)
	f.invitations.connect(f.bob.ID, carol.ID)
	_, err = f.collab.Invite(ctx, f.bob.ID, InvitationRequest{
		RecipientID: carol.ID, ResourceType: domain.ResourceTrainingPlan, ResourceID: &plan.ID, Permission: domain.PermissionAdmin,
	})
	assert.ErrorIs(t, err, ErrInvitationInvalid)

	// Nor invite the creator onto their own plan.
	f.invitations.connect(f.bob.ID, f.alice.ID)
	_, err = f.collab.Invite(ctx, f.bob.ID, InvitationRequest{
		RecipientID: f.alice.ID, ResourceType: domain.ResourceTrainingPlan, ResourceID: &plan.ID, Permission: domain.PermissionView,
	})
	assert.ErrorIs(t, err, ErrInvitationInvalid)

	_, err = f.collab.Invite(ctx, f.alice.ID, InvitationRequest{
		RecipientID: f.bob.ID, ResourceType: "workout", ResourceID: &plan.ID, Permission: domain.PermissionView,
	})
	assert.ErrorIs(t, err, ErrInvitationInvalid)
}

func TestAnswerInvitation_OnlyRecipient(t *testing.T) {
	f := newCollaborationFixture()
	ctx := context.Background()
	inv, err := f.collab.Invite(ctx, f.alice.ID, InvitationRequest{RecipientID: f.bob.ID})
	require.NoError(t, err)

	_, err = f.collab.Decline(ctx, f.alice.ID, inv.ID)
	assert.ErrorIs(t, err, ErrNotInvitationOwner)

	declined, err := f.collab.Decline(ctx, f.bob.ID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationDeclined, declined.Status)

	_, err = f.collab.Accept(ctx, f.bob.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestCollaboratorManagement(t *testing.T) {
	f := newCollaborationFixture()
	ctx := context.Background()
	plan := f.meals.add(&domain.MealPlan{CreatorID: f.alice.ID})
	f.collaborators.grant(domain.ResourceMealPlan, plan.ID, f.bob.ID, domain.PermissionEdit)

	// EDIT is not enough to manage collaborators.
	_, err := f.collab.ListCollaborators(ctx, f.bob.ID, domain.ResourceMealPlan, plan.ID)
	assert.Equal(t, ReasonInsufficient, deniedReason(t, err))

	list, err := f.collab.ListCollaborators(ctx, f.alice.ID, domain.ResourceMealPlan, plan.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, f.bob.ID, list[0].UserID)

	require.NoError(t, f.collab.RevokeCollaborator(ctx, f.alice.ID, domain.ResourceMealPlan, plan.ID, f.bob.ID))
	err = f.collab.RevokeCollaborator(ctx, f.alice.ID, domain.ResourceMealPlan, plan.ID, f.bob.ID)
	assert.ErrorIs(t, err, ErrCollaboratorAbsent)

	check := f.svc.CheckMealPlanPermission(ctx, f.bob.ID, plan.ID, domain.ActionView)
	assert.False(t, check.Allowed)
}

// connectedResourceInvite connects alice and bob, then has alice offer bob EDIT on plan.
func (f *collaborationFixture) connectedResourceInvite(t *testing.T, plan *domain.TrainingPlan) *domain.CollaborationInvitation {
	t.Helper()
	f.invitations.connect(f.alice.ID, f.bob.ID)
	inv, err := f.collab.Invite(context.Background(), f.alice.ID, InvitationRequest{
		RecipientID: f.bob.ID, ResourceType: domain.ResourceTrainingPlan, ResourceID: &plan.ID, Permission: domain.PermissionEdit,
	})
	require.NoError(t, err)
	return inv
}

func TestAccept_FailedGrantLeavesInvitationPending(t *testing.T) {
	f := newCollaborationFixture()
	ctx := context.Background()
	plan := f.plans.add(&domain.TrainingPlan{CreatorID: f.alice.ID, Name: "Cut"})
	inv := f.connectedResourceInvite(t, plan)

	f.collaborators.upsertErr = errors.New("write timeout")
	_, err := f.collab.Accept(ctx, f.bob.ID, inv.ID)
	require.Error(t, err)

	stored, err := f.invitations.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationPending, stored.Status)

	// The retry goes through and the grant exists.
	f.collaborators.upsertErr = nil
	accepted, err := f.collab.Accept(ctx, f.bob.ID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationAccepted, accepted.Status)
	assert.True(t, f.svc.CheckTrainingPlanPermission(ctx, f.bob.ID, plan.ID, domain.ActionEdit).Allowed)
}

func TestAccept_DeletedResource(t *testing.T) {
	f := newCollaborationFixture()
	ctx := context.Background()
	plan := f.plans.add(&domain.TrainingPlan{CreatorID: f.alice.ID, Name: "Cut"})
	inv := f.connectedResourceInvite(t, plan)

	f.plans.mu.Lock()
	delete(f.plans.plans, plan.ID)
	f.plans.mu.Unlock()

	_, err := f.collab.Accept(ctx, f.bob.ID, inv.ID)
	assert.ErrorIs(t, err, ErrInvitationInvalid)
	_, err = f.collaborators.Find(ctx, domain.ResourceTrainingPlan, plan.ID, f.bob.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAccept_InviterLostAccess(t *testing.T) {
	f := newCollaborationFixture()
	ctx := context.Background()
	carol := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleTrainer}
	f.users.users[carol.ID] = carol
	plan := f.plans.add(&domain.TrainingPlan{CreatorID: carol.ID, Name: "Shared"})
	f.collaborators.grant(domain.ResourceTrainingPlan, plan.ID, f.alice.ID, domain.PermissionAdmin)
	inv := f.connectedResourceInvite(t, plan)

	// Carol downgrades alice before bob answers.
	f.collaborators.grant(domain.ResourceTrainingPlan, plan.ID, f.alice.ID, domain.PermissionView)

	_, err := f.collab.Accept(ctx, f.bob.ID, inv.ID)
	assert.ErrorIs(t, err, ErrInvitationInvalid)
}

func TestAccept_ConcurrentDeclineWins(t *testing.T) {
	f := newCollaborationFixture()
	ctx := context.Background()
	plan := f.plans.add(&domain.TrainingPlan{CreatorID: f.alice.ID, Name: "Cut"})
	inv := f.connectedResourceInvite(t, plan)

	f.invitations.beforeRespond = func(stored *domain.CollaborationInvitation) {
		stored.Status = domain.InvitationDeclined
	}
	_, err := f.collab.Accept(ctx, f.bob.ID, inv.ID)
	assert.ErrorIs(t, err, ErrInvitationClosed)
	assert.False(t, f.svc.CheckTrainingPlanPermission(ctx, f.bob.ID, plan.ID, domain.ActionView).Allowed)
}
