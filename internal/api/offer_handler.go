package api

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/service"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OfferHandler serves the package catalog, trainer offers, and the public
// offer page with its checkout.
type OfferHandler struct {
	offers   service.OfferService
	checkout service.CheckoutService
	logger   *slog.Logger
}

func NewOfferHandler(offers service.OfferService, checkout service.CheckoutService, logger *slog.Logger) *OfferHandler {
	return &OfferHandler{offers: offers, checkout: checkout, logger: logger}
}

type CheckoutRequest struct {
	Email      string `json:"email" binding:"required,email"`
	SuccessURL string `json:"successUrl" binding:"omitempty,url"`
	CancelURL  string `json:"cancelUrl" binding:"omitempty,url"`
}

type OfferPackageRequest struct {
	PackageID string `json:"packageId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type CreateOfferRequest struct {
	ClientEmail             string                `json:"clientEmail" binding:"required,email"`
	Packages                []OfferPackageRequest `json:"packages" binding:"required,min=1,dive"`
	PersonalDiscountPercent int                   `json:"personalDiscountPercent" binding:"min=0,max=100"`
	Message                 string                `json:"message"`
	ExpiresInHours          int                   `json:"expiresInHours" binding:"min=0"`
}

type CreatePackageRequest struct {
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	LookupKey   string            `json:"lookupKey" binding:"required"`
	PriceCents  int64             `json:"priceCents" binding:"min=0"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
}

// --- Public ---

// GetOffer godoc
// @Summary Public offer preview
// @Tags Offers
// @Produce json
// @Param token path string true "Offer token"
// @Success 200 {object} service.OfferPreview
// @Failure 404 {object} gin.H "Offer not found"
// @Router /offers/{token} [get]
func (h *OfferHandler) GetOffer(c *gin.Context) {
	preview, err := h.offers.GetOfferPreview(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// Checkout godoc
// @Summary Start a hosted checkout for an offer
// @Description Validates the offer, resolves live prices and creates a processor session.
// @Tags Offers
// @Accept json
// @Produce json
// @Param token path string true "Offer token"
// @Param request body CheckoutRequest true "Buyer email and optional redirect URLs"
// @Success 200 {object} service.CheckoutResult
// @Failure 404 {object} gin.H "Offer not found"
// @Failure 409 {object} gin.H "Offer closed"
// @Failure 410 {object} gin.H "Offer expired"
// @Failure 422 {object} gin.H "Bundle cannot be sold as configured"
// @Router /offers/{token}/checkout [post]
func (h *OfferHandler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	result, err := h.checkout.Checkout(c.Request.Context(), service.CheckoutRequest{
		Token:      c.Param("token"),
		Email:      req.Email,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// --- Trainer ---

func (h *OfferHandler) CreateOffer(c *gin.Context) {
	trainerID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	packages := make([]domain.OfferPackage, 0, len(req.Packages))
	for _, p := range req.Packages {
		packageID, err := primitive.ObjectIDFromHex(p.PackageID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid packageId format.")
			return
		}
		packages = append(packages, domain.OfferPackage{PackageID: packageID, Quantity: p.Quantity})
	}

	offer, err := h.offers.CreateOffer(c.Request.Context(), trainerID, service.CreateOfferInput{
		ClientEmail:             req.ClientEmail,
		Packages:                packages,
		PersonalDiscountPercent: req.PersonalDiscountPercent,
		Message:                 req.Message,
		TTL:                     time.Duration(req.ExpiresInHours) * time.Hour,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, offer)
}

func (h *OfferHandler) ListTrainerOffers(c *gin.Context) {
	trainerID, ok := mustUserID(c)
	if !ok {
		return
	}
	offers, err := h.offers.ListTrainerOffers(c.Request.Context(), trainerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if offers == nil {
		offers = []domain.Offer{}
	}
	c.JSON(http.StatusOK, offers)
}

func (h *OfferHandler) CancelOffer(c *gin.Context) {
	trainerID, ok := mustUserID(c)
	if !ok {
		return
	}
	if err := h.offers.CancelOffer(c.Request.Context(), trainerID, c.Param("token")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Catalog ---

func (h *OfferHandler) ListPackages(c *gin.Context) {
	packages, err := h.offers.ListPackages(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if packages == nil {
		packages = []domain.PackageTemplate{}
	}
	c.JSON(http.StatusOK, packages)
}

// CreatePackage adds a catalog entry. Admin only.
func (h *OfferHandler) CreatePackage(c *gin.Context) {
	var req CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	pkg, err := h.offers.CreatePackage(c.Request.Context(), &domain.PackageTemplate{
		Name:        req.Name,
		Description: req.Description,
		LookupKey:   req.LookupKey,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		Metadata:    req.Metadata,
		Active:      true,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, pkg)
}
