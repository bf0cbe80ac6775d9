package api

import (
	"alcyxob/shaper/internal/importer"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ImportHandler lets admins upload a dataset and follow the import job.
type ImportHandler struct {
	runner *importer.Runner
	logger *slog.Logger
}

func NewImportHandler(runner *importer.Runner, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{runner: runner, logger: logger}
}

type UploadURLRequest struct {
	Kind importer.Kind `json:"kind"`
}

type StartImportRequest struct {
	Kind      importer.Kind `json:"kind"`
	ObjectKey string        `json:"objectKey" binding:"required"`
	Source    string        `json:"source"`
}

func (h *ImportHandler) RequestUploadURL(c *gin.Context) {
	var req UploadURLRequest
	// An empty body means the default kind.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}
	if req.Kind == "" {
		req.Kind = importer.KindExercises
	}

	ticket, err := h.runner.RequestUploadURL(c.Request.Context(), req.Kind)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// StartImport queues a job and answers 202 with its initial status.
func (h *ImportHandler) StartImport(c *gin.Context) {
	adminID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req StartImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	job, err := h.runner.Start(c.Request.Context(), importer.StartRequest{
		Kind:      req.Kind,
		ObjectKey: req.ObjectKey,
		Source:    req.Source,
		StartedBy: adminID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (h *ImportHandler) GetImport(c *gin.Context) {
	job, err := h.runner.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *ImportHandler) ListImports(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		abortWithError(c, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}
	jobs, err := h.runner.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}
