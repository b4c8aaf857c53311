package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-rewards-api/internal/models"
	"github.com/noah-isme/sma-rewards-api/internal/service"
	appErrors "github.com/noah-isme/sma-rewards-api/pkg/errors"
	"github.com/noah-isme/sma-rewards-api/pkg/response"
)

// FlagStore abstracts the persisted anomaly flag trail for review endpoints.
type FlagStore interface {
	List(ctx context.Context, filter models.AnomalyFlagFilter) ([]models.AnomalyFlag, int, error)
	Resolve(ctx context.Context, id string) error
}

// AnomalyHandler exposes ad hoc detection and the flag review trail.
type AnomalyHandler struct {
	service *service.AnomalyService
	flags   FlagStore
}

// NewAnomalyHandler creates a new handler.
func NewAnomalyHandler(svc *service.AnomalyService, flags FlagStore) *AnomalyHandler {
	return &AnomalyHandler{service: svc, flags: flags}
}

// Check godoc
// @Summary Run anomaly detection for one event
// @Description Analyses the event against the student's tracked history without recording it
// @Tags Anomalies
// @Accept json
// @Produce json
// @Param payload body models.PointEarningEvent true "Event"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /anomalies/check [post]
func (h *AnomalyHandler) Check(c *gin.Context) {
	var event models.PointEarningEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}
	if event.StudentID == "" || event.Source == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id and source required"))
		return
	}

	result := h.service.DetectAnomaly(c.Request.Context(), event, nil)
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List anomaly flags
// @Tags Anomalies
// @Produce json
// @Param student_id query string false "Student ID"
// @Param type query string false "Anomaly type"
// @Param resolved query bool false "Resolved state"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /anomalies [get]
func (h *AnomalyHandler) List(c *gin.Context) {
	if h.flags == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "flag store unavailable"))
		return
	}

	filter := models.AnomalyFlagFilter{
		StudentID: c.Query("student_id"),
		Type:      models.AnomalyType(c.Query("type")),
	}
	if raw := c.Query("resolved"); raw != "" {
		resolved := raw == "true"
		filter.Resolved = &resolved
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))

	flags, total, err := h.flags.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list anomaly flags"))
		return
	}
	response.JSON(c, http.StatusOK, flags, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Resolve godoc
// @Summary Mark an anomaly flag as handled
// @Tags Anomalies
// @Produce json
// @Param id path string true "Flag ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /anomalies/{id}/resolve [patch]
func (h *AnomalyHandler) Resolve(c *gin.Context) {
	if h.flags == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "flag store unavailable"))
		return
	}
	if err := h.flags.Resolve(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "anomaly flag not found"))
		return
	}
	response.NoContent(c)
}
