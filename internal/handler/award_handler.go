package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-rewards-api/internal/models"
	"github.com/noah-isme/sma-rewards-api/internal/service"
	appErrors "github.com/noah-isme/sma-rewards-api/pkg/errors"
	"github.com/noah-isme/sma-rewards-api/pkg/response"
)

// AwardHandler exposes the point awarding pipeline.
type AwardHandler struct {
	service *service.AwardService
}

// NewAwardHandler creates a new handler.
func NewAwardHandler(svc *service.AwardService) *AwardHandler {
	return &AwardHandler{service: svc}
}

// Award godoc
// @Summary Award points for an activity completion
// @Description Scores the completion, applies caps and rate limits, runs anomaly detection and persists the award
// @Tags Points
// @Accept json
// @Produce json
// @Param payload body service.AwardPointsRequest true "Completion payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /points/awards [post]
func (h *AwardHandler) Award(c *gin.Context) {
	var req service.AwardPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid award payload"))
		return
	}

	result, err := h.service.Award(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.RateLimit.Allowed {
		response.TooManyRequests(c, result, result.RateLimit.ResetTime)
		return
	}
	response.Created(c, result)
}

// Preview godoc
// @Summary Preview a point calculation
// @Description Runs the multiplier chain without charging caps or recording anything
// @Tags Points
// @Accept json
// @Produce json
// @Param payload body service.AwardPointsRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /points/preview [post]
func (h *AwardHandler) Preview(c *gin.Context) {
	var req service.AwardPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preview payload"))
		return
	}

	result, err := h.service.Preview(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List granted awards
// @Tags Points
// @Produce json
// @Param student_id query string false "Student ID"
// @Param activity_type query string false "Activity type"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /points/awards [get]
func (h *AwardHandler) List(c *gin.Context) {
	filter := models.AwardFilter{
		StudentID:    c.Query("student_id"),
		ActivityType: models.ActivityType(c.Query("activity_type")),
	}
	if from, ok := parseTimeQuery(c, "from"); ok {
		filter.From = from
	}
	if to, ok := parseTimeQuery(c, "to"); ok {
		filter.To = to
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))

	awards, total, err := h.service.ListAwards(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, awards, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Limits godoc
// @Summary Current rate limit window for a student
// @Tags Points
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /points/limits/{studentId} [get]
func (h *AwardHandler) Limits(c *gin.Context) {
	status := h.service.LimitStatus(c.Param("studentId"))
	response.JSON(c, http.StatusOK, status, nil)
}

func parseTimeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}
