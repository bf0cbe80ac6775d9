package api

import (
	"alcyxob/shaper/internal/importer"
	"alcyxob/shaper/internal/service"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// errorStatus pairs a service sentinel with the status it maps to.
type errorStatus struct {
	err    error
	status int
}

var statusByError = []errorStatus{
	// 400
	{service.ErrPlanValidation, http.StatusBadRequest},
	{service.ErrValidationFailed, http.StatusBadRequest},
	{service.ErrInvitationInvalid, http.StatusBadRequest},
	{service.ErrOfferValidation, http.StatusBadRequest},
	{service.ErrPackageValidation, http.StatusBadRequest},
	{service.ErrCheckoutEmailRequired, http.StatusBadRequest},
	{service.ErrInvalidRole, http.StatusBadRequest},
	{service.ErrActivationInvalid, http.StatusBadRequest},
	{service.ErrWeakPassword, http.StatusBadRequest},
	{importer.ErrInvalidRequest, http.StatusBadRequest},
	// 401
	{service.ErrAuthenticationFailed, http.StatusUnauthorized},
	// 403
	{service.ErrAccountNotActivated, http.StatusForbidden},
	{service.ErrNotInvitationOwner, http.StatusForbidden},
	{service.ErrOfferNotOwned, http.StatusForbidden},
	{service.ErrOfferEmailMismatch, http.StatusForbidden},
	// 404
	{service.ErrPlanNotFound, http.StatusNotFound},
	{service.ErrExerciseNotFound, http.StatusNotFound},
	{service.ErrInvitationNotFound, http.StatusNotFound},
	{service.ErrCollaboratorAbsent, http.StatusNotFound},
	{service.ErrOfferNotFound, http.StatusNotFound},
	{service.ErrUserNotFound, http.StatusNotFound},
	{importer.ErrJobNotFound, http.StatusNotFound},
	// 409
	{service.ErrUserAlreadyExists, http.StatusConflict},
	{service.ErrExerciseExists, http.StatusConflict},
	{service.ErrInvitationClosed, http.StatusConflict},
	{service.ErrOfferNotCancellable, http.StatusConflict},
	{service.ErrOfferClosed, http.StatusConflict},
	{service.ErrPackageAlreadyExists, http.StatusConflict},
	// 410
	{service.ErrOfferExpired, http.StatusGone},
	// 422: the offer is fine but its packages cannot be sold as configured
	{service.ErrOfferInvalidSnapshot, http.StatusUnprocessableEntity},
	{service.ErrPackageNotFound, http.StatusUnprocessableEntity},
	{service.ErrPackageMissingLookupKey, http.StatusUnprocessableEntity},
	{service.ErrPackageInvalidMetadata, http.StatusUnprocessableEntity},
	{service.ErrNoChargeableItems, http.StatusUnprocessableEntity},
	{service.ErrPriceNotFound, http.StatusUnprocessableEntity},
	{service.ErrInvalidPriceConfiguration, http.StatusUnprocessableEntity},
	// 502
	{service.ErrPaymentProcessor, http.StatusBadGateway},
}

// respondError maps a service error onto an HTTP response. Unknown errors are
// logged and reported as 500 without leaking their text.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var denied *service.PermissionDeniedError
	if errors.As(err, &denied) {
		status := http.StatusForbidden
		if denied.Reason == service.ReasonNotFound {
			status = http.StatusNotFound
		}
		abortWithError(c, status, denied.Reason)
		return
	}

	var mixed *service.MixedBillingModeError
	if errors.As(err, &mixed) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "mixed_billing_mode",
			"message": mixed.Error(),
			"details": gin.H{
				"oneTimeItems":      nonNil(mixed.OneTimeItems),
				"subscriptionItems": nonNil(mixed.SubscriptionItems),
			},
		})
		return
	}

	for _, m := range statusByError {
		if !errors.Is(err, m.err) {
			continue
		}
		if m.status >= http.StatusInternalServerError {
			// Upstream details stay in the logs.
			logger.WarnContext(c.Request.Context(), "upstream failure",
				"module", "api",
				"route", c.FullPath(),
				"error", err,
			)
			abortWithError(c, m.status, m.err.Error())
			return
		}
		abortWithError(c, m.status, err.Error())
		return
	}

	logger.ErrorContext(c.Request.Context(), "unhandled request error",
		"module", "api",
		"route", c.FullPath(),
		"error", err,
	)
	abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred.")
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
