package service

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/payments"
	"alcyxob/shaper/internal/repository"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Users ---

type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[primitive.ObjectID]*domain.User
	getErr    error
	createErr error
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[primitive.ObjectID]*domain.User{}}
	for _, u := range users {
		if u.ID.IsZero() {
			u.ID = primitive.NewObjectID()
		}
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return primitive.NilObjectID, r.createErr
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return primitive.NilObjectID, repository.ErrConflict
		}
	}
	user.ID = primitive.NewObjectID()
	cp := *user
	r.users[user.ID] = &cp
	return user.ID, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) SetActivationToken(_ context.Context, userID primitive.ObjectID, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.PasswordHash != "" {
		return repository.ErrNotFound
	}
	u.ActivationTokenHash = tokenHash
	u.ActivationExpiresAt = &expiresAt
	return nil
}

func (r *fakeUserRepo) Activate(_ context.Context, tokenHash, passwordHash string, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ActivationTokenHash == tokenHash && u.PasswordHash == "" && u.HasLiveActivation(now) {
			u.PasswordHash = passwordHash
			u.ActivationTokenHash = ""
			u.ActivationExpiresAt = nil
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) SetStripeCustomerID(_ context.Context, userID primitive.ObjectID, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.StripeCustomerID = customerID
	return nil
}

// --- Plans ---

type fakeTrainingPlanRepo struct {
	mu        sync.Mutex
	plans     map[primitive.ObjectID]*domain.TrainingPlan
	accessErr error
}

func newFakeTrainingPlanRepo() *fakeTrainingPlanRepo {
	return &fakeTrainingPlanRepo{plans: map[primitive.ObjectID]*domain.TrainingPlan{}}
}

func (r *fakeTrainingPlanRepo) add(plan *domain.TrainingPlan) *domain.TrainingPlan {
	r.mu.Lock()
	defer r.mu.Unlock()
	if plan.ID.IsZero() {
		plan.ID = primitive.NewObjectID()
	}
	r.plans[plan.ID] = plan
	return plan
}

func (r *fakeTrainingPlanRepo) Create(_ context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error) {
	r.add(plan)
	return plan.ID, nil
}

func (r *fakeTrainingPlanRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeTrainingPlanRepo) GetAccess(_ context.Context, id primitive.ObjectID) (*domain.ResourceAccess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.accessErr != nil {
		return nil, r.accessErr
	}
	p, ok := r.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	access := p.Access()
	return &access, nil
}

func (r *fakeTrainingPlanRepo) GetByCreator(_ context.Context, creatorID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TrainingPlan
	for _, p := range r.plans {
		if p.CreatorID == creatorID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeTrainingPlanRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.TrainingPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TrainingPlan
	for _, id := range ids {
		if p, ok := r.plans[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeTrainingPlanRepo) Update(_ context.Context, plan *domain.TrainingPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[plan.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *plan
	r.plans[plan.ID] = &cp
	return nil
}

func (r *fakeTrainingPlanRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.plans, id)
	return nil
}

type fakeMealPlanRepo struct {
	mu    sync.Mutex
	plans map[primitive.ObjectID]*domain.MealPlan
}

func newFakeMealPlanRepo() *fakeMealPlanRepo {
	return &fakeMealPlanRepo{plans: map[primitive.ObjectID]*domain.MealPlan{}}
}

func (r *fakeMealPlanRepo) add(plan *domain.MealPlan) *domain.MealPlan {
	r.mu.Lock()
	defer r.mu.Unlock()
	if plan.ID.IsZero() {
		plan.ID = primitive.NewObjectID()
	}
	r.plans[plan.ID] = plan
	return plan
}

func (r *fakeMealPlanRepo) Create(_ context.Context, plan *domain.MealPlan) (primitive.ObjectID, error) {
	r.add(plan)
	return plan.ID, nil
}

func (r *fakeMealPlanRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.MealPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeMealPlanRepo) GetAccess(_ context.Context, id primitive.ObjectID) (*domain.ResourceAccess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	access := p.Access()
	return &access, nil
}

func (r *fakeMealPlanRepo) GetByCreator(_ context.Context, creatorID primitive.ObjectID) ([]domain.MealPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.MealPlan
	for _, p := range r.plans {
		if p.CreatorID == creatorID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeMealPlanRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.MealPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.MealPlan
	for _, id := range ids {
		if p, ok := r.plans[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeMealPlanRepo) Update(_ context.Context, plan *domain.MealPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[plan.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *plan
	r.plans[plan.ID] = &cp
	return nil
}

func (r *fakeMealPlanRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.plans, id)
	return nil
}

type fakeWorkoutRepo struct {
	mu       sync.Mutex
	workouts []domain.Workout
}

func (r *fakeWorkoutRepo) Create(_ context.Context, workout *domain.Workout) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	workout.ID = primitive.NewObjectID()
	r.workouts = append(r.workouts, *workout)
	return workout.ID, nil
}

func (r *fakeWorkoutRepo) GetByPlanID(_ context.Context, planID primitive.ObjectID) ([]domain.Workout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Workout
	for _, w := range r.workouts {
		if w.TrainingPlanID == planID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *fakeWorkoutRepo) DeleteByPlanID(_ context.Context, planID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.workouts[:0]
	for _, w := range r.workouts {
		if w.TrainingPlanID != planID {
			kept = append(kept, w)
		}
	}
	r.workouts = kept
	return nil
}

// --- Collaboration ---

type collaboratorKey struct {
	resourceType domain.ResourceType
	resourceID   primitive.ObjectID
	userID       primitive.ObjectID
}

type fakeCollaboratorRepo struct {
	mu        sync.Mutex
	grants    map[collaboratorKey]*domain.Collaborator
	findErr   error
	upsertErr error
}

func newFakeCollaboratorRepo() *fakeCollaboratorRepo {
	return &fakeCollaboratorRepo{grants: map[collaboratorKey]*domain.Collaborator{}}
}

func (r *fakeCollaboratorRepo) grant(resourceType domain.ResourceType, resourceID, userID primitive.ObjectID, level domain.PermissionLevel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[collaboratorKey{resourceType, resourceID, userID}] = &domain.Collaborator{
		ID:           primitive.NewObjectID(),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		UserID:       userID,
		Permission:   level,
	}
}

func (r *fakeCollaboratorRepo) Find(_ context.Context, resourceType domain.ResourceType, resourceID, userID primitive.ObjectID) (*domain.Collaborator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	c, ok := r.grants[collaboratorKey{resourceType, resourceID, userID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCollaboratorRepo) ListByResource(_ context.Context, resourceType domain.ResourceType, resourceID primitive.ObjectID) ([]domain.Collaborator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Collaborator
	for k, c := range r.grants {
		if k.resourceType == resourceType && k.resourceID == resourceID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCollaboratorRepo) ListResourceIDsForUser(_ context.Context, resourceType domain.ResourceType, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []primitive.ObjectID
	for k := range r.grants {
		if k.resourceType == resourceType && k.userID == userID {
			out = append(out, k.resourceID)
		}
	}
	return out, nil
}

func (r *fakeCollaboratorRepo) Upsert(_ context.Context, c *domain.Collaborator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	cp := *c
	r.grants[collaboratorKey{c.ResourceType, c.ResourceID, c.UserID}] = &cp
	return nil
}

func (r *fakeCollaboratorRepo) Delete(_ context.Context, resourceType domain.ResourceType, resourceID, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := collaboratorKey{resourceType, resourceID, userID}
	if _, ok := r.grants[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.grants, key)
	return nil
}

func (r *fakeCollaboratorRepo) DeleteByResource(_ context.Context, resourceType domain.ResourceType, resourceID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.grants {
		if k.resourceType == resourceType && k.resourceID == resourceID {
			delete(r.grants, k)
		}
	}
	return nil
}

type fakeInvitationRepo struct {
	mu          sync.Mutex
	invitations map[primitive.ObjectID]*domain.CollaborationInvitation
	acceptedErr error
	// beforeRespond runs ahead of Respond, e.g. to simulate a concurrent answer.
	beforeRespond func(inv *domain.CollaborationInvitation)
}

func newFakeInvitationRepo() *fakeInvitationRepo {
	return &fakeInvitationRepo{invitations: map[primitive.ObjectID]*domain.CollaborationInvitation{}}
}

// connect records an accepted connection between two trainers.
func (r *fakeInvitationRepo) connect(a, b primitive.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := primitive.NewObjectID()
	r.invitations[id] = &domain.CollaborationInvitation{ID: id, InviterID: a, RecipientID: b, Status: domain.InvitationAccepted}
}

func (r *fakeInvitationRepo) Create(_ context.Context, inv *domain.CollaborationInvitation) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv.ID = primitive.NewObjectID()
	inv.Status = domain.InvitationPending
	cp := *inv
	r.invitations[inv.ID] = &cp
	return inv.ID, nil
}

func (r *fakeInvitationRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.CollaborationInvitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invitations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *fakeInvitationRepo) ListForRecipient(_ context.Context, recipientID primitive.ObjectID, status domain.InvitationStatus) ([]domain.CollaborationInvitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CollaborationInvitation
	for _, inv := range r.invitations {
		if inv.RecipientID == recipientID && inv.Status == status {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *fakeInvitationRepo) Respond(_ context.Context, id primitive.ObjectID, status domain.InvitationStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invitations[id]
	if ok && r.beforeRespond != nil {
		r.beforeRespond(inv)
	}
	if !ok || inv.Status != domain.InvitationPending {
		return repository.ErrNotFound
	}
	inv.Status = status
	inv.RespondedAt = &at
	return nil
}

func (r *fakeInvitationRepo) HasAcceptedBetween(_ context.Context, a, b primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.acceptedErr != nil {
		return false, r.acceptedErr
	}
	for _, inv := range r.invitations {
		if inv.Status != domain.InvitationAccepted {
			continue
		}
		if (inv.InviterID == a && inv.RecipientID == b) || (inv.InviterID == b && inv.RecipientID == a) {
			return true, nil
		}
	}
	return false, nil
}

// --- Catalog and offers ---

type fakePackageRepo struct {
	mu       sync.Mutex
	packages map[primitive.ObjectID]*domain.PackageTemplate
}

func newFakePackageRepo() *fakePackageRepo {
	return &fakePackageRepo{packages: map[primitive.ObjectID]*domain.PackageTemplate{}}
}

func (r *fakePackageRepo) add(pkg *domain.PackageTemplate) *domain.PackageTemplate {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pkg.ID.IsZero() {
		pkg.ID = primitive.NewObjectID()
	}
	r.packages[pkg.ID] = pkg
	return pkg
}

func (r *fakePackageRepo) Create(_ context.Context, pkg *domain.PackageTemplate) (primitive.ObjectID, error) {
	r.mu.Lock()
	for _, p := range r.packages {
		if p.LookupKey == pkg.LookupKey {
			r.mu.Unlock()
			return primitive.NilObjectID, repository.ErrConflict
		}
	}
	r.mu.Unlock()
	r.add(pkg)
	return pkg.ID, nil
}

func (r *fakePackageRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.PackageTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePackageRepo) ListActive(_ context.Context) ([]domain.PackageTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PackageTemplate
	for _, p := range r.packages {
		if p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}

type fakeOfferRepo struct {
	mu          sync.Mutex
	offers      map[string]*domain.Offer
	transitions int
}

func newFakeOfferRepo() *fakeOfferRepo {
	return &fakeOfferRepo{offers: map[string]*domain.Offer{}}
}

func (r *fakeOfferRepo) add(offer *domain.Offer) *domain.Offer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offer.ID.IsZero() {
		offer.ID = primitive.NewObjectID()
	}
	r.offers[offer.Token] = offer
	return offer
}

func (r *fakeOfferRepo) status(token string) domain.OfferStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offers[token].Status
}

func (r *fakeOfferRepo) Create(_ context.Context, offer *domain.Offer) (primitive.ObjectID, error) {
	r.add(offer)
	return offer.ID, nil
}

func (r *fakeOfferRepo) GetByToken(_ context.Context, token string) (*domain.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	cp.Packages = append([]domain.OfferPackage(nil), o.Packages...)
	return &cp, nil
}

func (r *fakeOfferRepo) ListByTrainer(_ context.Context, trainerID primitive.ObjectID) ([]domain.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Offer
	for _, o := range r.offers {
		if o.TrainerID == trainerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *fakeOfferRepo) TransitionStatus(_ context.Context, token string, from, to domain.OfferStatus, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[token]
	if !ok {
		return repository.ErrNotFound
	}
	if o.Status != from {
		return repository.ErrConflict
	}
	o.Status = to
	if sessionID != "" {
		o.CheckoutSessionID = sessionID
	}
	r.transitions++
	return nil
}

func (r *fakeOfferRepo) RecordCheckoutSession(_ context.Context, token string, status domain.OfferStatus, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[token]
	if !ok || o.Status != status {
		return repository.ErrConflict
	}
	o.CheckoutSessionID = sessionID
	return nil
}

func (r *fakeOfferRepo) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, o := range r.offers {
		if !o.Status.IsTerminal() && o.ExpiresAt.Before(now) {
			o.Status = domain.OfferExpired
			n++
		}
	}
	return n, nil
}

type fakeNotificationRepo struct {
	mu         sync.Mutex
	queued     []domain.Notification
	enqueueErr error
}

func (r *fakeNotificationRepo) Enqueue(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enqueueErr != nil {
		return r.enqueueErr
	}
	r.queued = append(r.queued, *n)
	return nil
}

func (r *fakeNotificationRepo) ClaimNext(context.Context, string, time.Time, time.Time) (*domain.Notification, error) {
	return nil, repository.ErrNotFound
}

func (r *fakeNotificationRepo) MarkDelivered(context.Context, primitive.ObjectID, string, time.Time) error {
	return nil
}

func (r *fakeNotificationRepo) MarkFailed(context.Context, primitive.ObjectID, string, string, bool, time.Time) error {
	return nil
}

// --- Payment processor ---

type fakeProcessor struct {
	mu         sync.Mutex
	prices     map[string]payments.Price
	customers  int
	coupons    []payments.CouponRequest
	sessions   []payments.SessionRequest
	sessionErr error
	priceErr   error
}

func newFakeProcessor(prices ...payments.Price) *fakeProcessor {
	p := &fakeProcessor{prices: map[string]payments.Price{}}
	for _, price := range prices {
		p.prices[price.LookupKey] = price
	}
	return p
}

func (p *fakeProcessor) CreateCustomer(_ context.Context, _, _ string, _ map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customers++
	return fmt.Sprintf("cus_%d", p.customers), nil
}

func (p *fakeProcessor) PricesByLookupKey(_ context.Context, keys []string) (map[string]payments.Price, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.priceErr != nil {
		return nil, p.priceErr
	}
	out := make(map[string]payments.Price, len(keys))
	for _, k := range keys {
		if price, ok := p.prices[k]; ok {
			out[k] = price
		}
	}
	return out, nil
}

func (p *fakeProcessor) CreateCoupon(_ context.Context, req payments.CouponRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coupons = append(p.coupons, req)
	return fmt.Sprintf("coupon_%d", len(p.coupons)), nil
}

func (p *fakeProcessor) CreateCheckoutSession(_ context.Context, req payments.SessionRequest) (*payments.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessionErr != nil {
		return nil, p.sessionErr
	}
	p.sessions = append(p.sessions, req)
	id := fmt.Sprintf("cs_test_%d", len(p.sessions))
	return &payments.Session{ID: id, URL: "https://checkout.example.com/" + id}, nil
}
