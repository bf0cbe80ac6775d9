package api

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/payments"
	"alcyxob/shaper/internal/service"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCheckout struct {
	result *service.CheckoutResult
	err    error
	got    service.CheckoutRequest
}

func (s *stubCheckout) Checkout(_ context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error) {
	s.got = req
	return s.result, s.err
}

// stubPermissions answers every check from a fixed table keyed by resource id.
type stubPermissions struct {
	checks map[primitive.ObjectID]service.PermissionCheck
}

func (s *stubPermissions) Evaluate(_ context.Context, _ domain.ResourceType, _, id primitive.ObjectID, _ domain.PermissionAction) service.PermissionCheck {
	if check, ok := s.checks[id]; ok {
		return check
	}
	return service.PermissionCheck{Reason: service.ReasonNotFound}
}

func (s *stubPermissions) CheckTrainingPlanPermission(ctx context.Context, actorID, planID primitive.ObjectID, action domain.PermissionAction) service.PermissionCheck {
	return s.Evaluate(ctx, domain.ResourceTrainingPlan, actorID, planID, action)
}

func (s *stubPermissions) CheckMealPlanPermission(ctx context.Context, actorID, planID primitive.ObjectID, action domain.PermissionAction) service.PermissionCheck {
	return s.Evaluate(ctx, domain.ResourceMealPlan, actorID, planID, action)
}

func (s *stubPermissions) EvaluateBatch(ctx context.Context, resourceType domain.ResourceType, actorID primitive.ObjectID, ids []primitive.ObjectID, action domain.PermissionAction) map[primitive.ObjectID]service.PermissionCheck {
	out := make(map[primitive.ObjectID]service.PermissionCheck, len(ids))
	for _, id := range ids {
		out[id] = s.Evaluate(ctx, resourceType, actorID, id, action)
	}
	return out
}

func (s *stubPermissions) CanInviteCollaborators(context.Context, primitive.ObjectID, primitive.ObjectID) service.PermissionCheck {
	return service.PermissionCheck{Allowed: true}
}

func (s *stubPermissions) RequirePermission(ctx context.Context, resourceType domain.ResourceType, actorID, resourceID primitive.ObjectID, action domain.PermissionAction) error {
	if check := s.Evaluate(ctx, resourceType, actorID, resourceID, action); !check.Allowed {
		return &service.PermissionDeniedError{Reason: check.Reason}
	}
	return nil
}

func newTestRouter(svc Services) *gin.Engine {
	router := gin.New()
	SetupRoutes(router, testSecret, svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return router
}

func bearer(t *testing.T, userID primitive.ObjectID, role domain.Role, ttl time.Duration) string {
	t.Helper()
	claims := &service.JWTClaims{
		UserID: userID.Hex(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func doJSON(router http.Handler, method, path, auth string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCheckoutEndpoint_Success(t *testing.T) {
	checkout := &stubCheckout{result: &service.CheckoutResult{
		CheckoutURL:       "https://checkout.example.com/cs_1",
		SessionID:         "cs_1",
		Mode:              payments.ModeSubscription,
		BundleDescription: "3x PT session",
		ItemCount:         1,
	}}
	router := newTestRouter(Services{Checkout: checkout})

	w := doJSON(router, http.MethodPost, "/api/v1/offers/tok_1/checkout", "", gin.H{"email": "buyer@example.com"})

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "https://checkout.example.com/cs_1", body["checkoutUrl"])
	assert.Equal(t, "subscription", body["mode"])
	assert.Equal(t, "3x PT session", body["bundleDescription"])
	assert.Equal(t, "tok_1", checkout.got.Token)
	assert.Equal(t, "buyer@example.com", checkout.got.Email)
}

func TestCheckoutEndpoint_Errors(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{service.ErrOfferExpired, http.StatusGone, "Offer has expired"},
		{service.ErrOfferNotFound, http.StatusNotFound, "Offer not found"},
		{service.ErrOfferClosed, http.StatusConflict, "Offer is no longer available"},
		{service.ErrOfferEmailMismatch, http.StatusForbidden, "This offer was issued to a different email address"},
		{service.ErrNoChargeableItems, http.StatusUnprocessableEntity, "No chargeable items in bundle"},
		{fmt.Errorf("%w: Plan", service.ErrPriceNotFound), http.StatusUnprocessableEntity, "No active price found for package: Plan"},
		{fmt.Errorf("%w: stripe said no", service.ErrPaymentProcessor), http.StatusBadGateway, "Payment provider error, please try again"},
		{errors.New("mongo: no reachable servers"), http.StatusInternalServerError, "An unexpected error occurred."},
	}

	for _, tc := range cases {
		router := newTestRouter(Services{Checkout: &stubCheckout{err: tc.err}})
		w := doJSON(router, http.MethodPost, "/api/v1/offers/tok/checkout", "", gin.H{"email": "buyer@example.com"})

		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.Equal(t, tc.message, decode(t, w)["error"], tc.err.Error())
	}
}

func TestCheckoutEndpoint_MixedBillingMode(t *testing.T) {
	router := newTestRouter(Services{Checkout: &stubCheckout{err: &service.MixedBillingModeError{
		OneTimeItems:      []string{"Program"},
		SubscriptionItems: []string{"Premium monthly"},
	}}})

	w := doJSON(router, http.MethodPost, "/api/v1/offers/tok/checkout", "", gin.H{"email": "buyer@example.com"})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "mixed_billing_mode", body["error"])
	assert.NotEmpty(t, body["message"])
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"Program"}, details["oneTimeItems"])
	assert.Equal(t, []any{"Premium monthly"}, details["subscriptionItems"])
}

func TestCheckoutEndpoint_RejectsBadEmail(t *testing.T) {
	checkout := &stubCheckout{}
	router := newTestRouter(Services{Checkout: checkout})

	w := doJSON(router, http.MethodPost, "/api/v1/offers/tok/checkout", "", gin.H{"email": "not-an-email"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, checkout.got.Token)
}

func TestRespondError_PermissionDenied(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cases := map[string]int{
		service.ReasonNotFound:        http.StatusNotFound,
		service.ReasonNotCollaborator: http.StatusForbidden,
		service.ReasonCreatorOnly:     http.StatusForbidden,
		service.ReasonCheckFailed:     http.StatusForbidden,
	}
	for reason, status := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		respondError(c, logger, fmt.Errorf("wrapped: %w", &service.PermissionDeniedError{Reason: reason}))

		assert.Equal(t, status, w.Code, reason)
		assert.Equal(t, reason, decode(t, w)["error"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	router := newTestRouter(Services{Permissions: &stubPermissions{}})
	path := "/api/v1/permissions/check-batch"
	body := gin.H{"resourceType": "training_plan", "ids": []string{}, "action": "VIEW"}
	userID := primitive.NewObjectID()

	assert.Equal(t, http.StatusUnauthorized, doJSON(router, http.MethodPost, path, "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, doJSON(router, http.MethodPost, path, "Token abc", body).Code)
	assert.Equal(t, http.StatusUnauthorized, doJSON(router, http.MethodPost, path, bearer(t, userID, domain.RoleTrainer, -time.Minute), body).Code)
	assert.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, path, bearer(t, userID, domain.RoleTrainer, time.Hour), body).Code)
}

func TestRoleMiddleware(t *testing.T) {
	router := newTestRouter(Services{})
	client := bearer(t, primitive.NewObjectID(), domain.RoleClient, time.Hour)

	w := doJSON(router, http.MethodPost, "/api/v1/admin/packages", client, gin.H{"name": "x", "lookupKey": "y"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/trainer/offers", client, gin.H{})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCheckBatch(t *testing.T) {
	visible := primitive.NewObjectID()
	hidden := primitive.NewObjectID()
	perms := &stubPermissions{checks: map[primitive.ObjectID]service.PermissionCheck{
		visible: {Allowed: true, EffectivePermission: domain.PermissionEdit},
		hidden:  {Reason: service.ReasonNotCollaborator},
	}}
	router := newTestRouter(Services{Permissions: perms})
	auth := bearer(t, primitive.NewObjectID(), domain.RoleTrainer, time.Hour)

	w := doJSON(router, http.MethodPost, "/api/v1/permissions/check-batch", auth, gin.H{
		"resourceType": "meal_plan",
		"ids":          []string{visible.Hex(), hidden.Hex(), "garbage"},
		"action":       "EDIT",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp BatchCheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)
	assert.True(t, resp.Results[visible.Hex()].Allowed)
	assert.Equal(t, domain.PermissionEdit, resp.Results[visible.Hex()].EffectivePermission)
	assert.Equal(t, service.ReasonNotCollaborator, resp.Results[hidden.Hex()].Reason)
	assert.Equal(t, service.ReasonNotFound, resp.Results["garbage"].Reason)

	w = doJSON(router, http.MethodPost, "/api/v1/permissions/check-batch", auth, gin.H{
		"resourceType": "workout",
		"ids":          []string{visible.Hex()},
		"action":       "EDIT",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	tooMany := make([]string, maxBatchCheckIDs+1)
	for i := range tooMany {
		tooMany[i] = primitive.NewObjectID().Hex()
	}
	w = doJSON(router, http.MethodPost, "/api/v1/permissions/check-batch", auth, gin.H{
		"resourceType": "meal_plan",
		"ids":          tooMany,
		"action":       "VIEW",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// stubAuth implements only the activation calls; the rest are not routed in these tests.
type stubAuth struct {
	service.AuthService
	activateErr  error
	gotToken     string
	gotPassword  string
	resendEmails []string
}

func (s *stubAuth) Activate(_ context.Context, token, password string) (string, *domain.User, error) {
	s.gotToken, s.gotPassword = token, password
	if s.activateErr != nil {
		return "", nil, s.activateErr
	}
	return "jwt_1", &domain.User{ID: primitive.NewObjectID(), Email: "buyer@example.com", Role: domain.RoleClient}, nil
}

func (s *stubAuth) RequestActivation(_ context.Context, email string) error {
	s.resendEmails = append(s.resendEmails, email)
	return nil
}

func TestActivateEndpoint(t *testing.T) {
	auth := &stubAuth{}
	router := newTestRouter(Services{Auth: auth})

	w := doJSON(router, http.MethodPost, "/api/v1/auth/activate", "", gin.H{"token": "tok_1", "password": "long-enough"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "jwt_1", body["token"])
	assert.Equal(t, "buyer@example.com", body["user"].(map[string]any)["email"])
	assert.Equal(t, "tok_1", auth.gotToken)
	assert.Equal(t, "long-enough", auth.gotPassword)

	w = doJSON(router, http.MethodPost, "/api/v1/auth/activate", "", gin.H{"token": "tok_1", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	auth.activateErr = service.ErrActivationInvalid
	w = doJSON(router, http.MethodPost, "/api/v1/auth/activate", "", gin.H{"token": "used", "password": "long-enough"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.ErrActivationInvalid.Error(), decode(t, w)["error"])
}

func TestResendActivationEndpoint(t *testing.T) {
	auth := &stubAuth{}
	router := newTestRouter(Services{Auth: auth})

	w := doJSON(router, http.MethodPost, "/api/v1/auth/activation/resend", "", gin.H{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"nobody@example.com"}, auth.resendEmails)

	w = doJSON(router, http.MethodPost, "/api/v1/auth/activation/resend", "", gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
