package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-rewards-api/internal/models"
	"github.com/noah-isme/sma-rewards-api/internal/service"
	appErrors "github.com/noah-isme/sma-rewards-api/pkg/errors"
	"github.com/noah-isme/sma-rewards-api/pkg/response"
)

// NormalizationHandler manages comparison contexts and normalized scores.
type NormalizationHandler struct {
	service   *service.NormalizationService
	validator *validator.Validate
}

// NewNormalizationHandler creates a new handler.
func NewNormalizationHandler(svc *service.NormalizationService, validate *validator.Validate) *NormalizationHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &NormalizationHandler{service: svc, validator: validate}
}

// RegisterContext godoc
// @Summary Register a comparison context
// @Description Upserts a scope (class, subject, course or campus) with its population statistics
// @Tags Normalization
// @Accept json
// @Produce json
// @Param payload body models.NormalizationContext true "Context"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /normalization/contexts [post]
func (h *NormalizationHandler) RegisterContext(c *gin.Context) {
	var ctx models.NormalizationContext
	if err := c.ShouldBindJSON(&ctx); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid context payload"))
		return
	}
	if err := h.validator.Struct(ctx); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid context payload"))
		return
	}
	h.service.RegisterContext(ctx)
	response.Created(c, ctx)
}

// RegisterStudent godoc
// @Summary Register a student's raw data within a context
// @Tags Normalization
// @Accept json
// @Produce json
// @Param payload body models.StudentContext true "Student context"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /normalization/students [post]
func (h *NormalizationHandler) RegisterStudent(c *gin.Context) {
	var sc models.StudentContext
	if err := c.ShouldBindJSON(&sc); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student context payload"))
		return
	}
	if err := h.validator.Struct(sc); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student context payload"))
		return
	}
	h.service.RegisterStudentContext(sc)
	response.Created(c, sc)
}

// ContextScores godoc
// @Summary Normalized scores for every student in a context
// @Tags Normalization
// @Produce json
// @Param id path string true "Context ID"
// @Param method query string false "Normalization method"
// @Param student_id query string false "Limit to one student"
// @Success 200 {object} response.Envelope
// @Router /normalization/contexts/{id}/scores [get]
func (h *NormalizationHandler) ContextScores(c *gin.Context) {
	contextID := c.Param("id")
	opts := normalizationOptions(c)

	if studentID := c.Query("student_id"); studentID != "" {
		score := h.service.NormalizeScore(studentID, contextID, opts)
		response.JSON(c, http.StatusOK, score, nil)
		return
	}

	scores := h.service.NormalizeAll(contextID, opts)
	response.JSON(c, http.StatusOK, scores, nil)
}
