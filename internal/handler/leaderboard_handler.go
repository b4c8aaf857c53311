package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-rewards-api/internal/models"
	"github.com/noah-isme/sma-rewards-api/internal/service"
	appErrors "github.com/noah-isme/sma-rewards-api/pkg/errors"
	"github.com/noah-isme/sma-rewards-api/pkg/response"
)

// LeaderboardHandler exposes ranked boards, anomaly scans and exports.
type LeaderboardHandler struct {
	service *service.LeaderboardService
}

// NewLeaderboardHandler creates a new handler.
func NewLeaderboardHandler(svc *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{service: svc}
}

// Get godoc
// @Summary Leaderboard
// @Description Ranked totals aggregated from point awards, optionally overlaid with normalized scores
// @Tags Leaderboard
// @Produce json
// @Param activity_type query string false "Restrict to one activity type"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param limit query int false "Max rows"
// @Param normalize_context query string false "Normalization context ID"
// @Param method query string false "Normalization method"
// @Success 200 {object} response.Envelope
// @Router /leaderboard [get]
func (h *LeaderboardHandler) Get(c *gin.Context) {
	filter := leaderboardFilter(c)
	entries, err := h.service.Leaderboard(c.Request.Context(), filter, c.Query("normalize_context"), normalizationOptions(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Scan godoc
// @Summary Scan the board for population-level outliers
// @Tags Leaderboard
// @Produce json
// @Param activity_type query string false "Restrict to one activity type"
// @Param limit query int false "Max rows to scan"
// @Success 200 {object} response.Envelope
// @Router /leaderboard/scan [post]
func (h *LeaderboardHandler) Scan(c *gin.Context) {
	hits, err := h.service.ScanForAnomalies(c.Request.Context(), leaderboardFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hits, nil)
}

// StartExport godoc
// @Summary Start an asynchronous leaderboard export
// @Tags Leaderboard
// @Accept json
// @Produce json
// @Param format query string true "csv or pdf"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /leaderboard/exports [post]
func (h *LeaderboardHandler) StartExport(c *gin.Context) {
	format := models.ExportFormat(c.DefaultQuery("format", string(models.ExportCSV)))
	job, err := h.service.StartExport(format, leaderboardFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// ExportStatus godoc
// @Summary Export job status
// @Tags Leaderboard
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leaderboard/exports/{id} [get]
func (h *LeaderboardHandler) ExportStatus(c *gin.Context) {
	job, err := h.service.ExportStatus(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a finished export artifact
// @Tags Leaderboard
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /leaderboard/exports/download [get]
func (h *LeaderboardHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}
	file, job, err := h.service.OpenExport(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	filename := "leaderboard." + string(job.Format)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", contentTypeFor(job.Format))
	c.File(file.Name())
}

func leaderboardFilter(c *gin.Context) models.LeaderboardFilter {
	filter := models.LeaderboardFilter{
		ActivityType: models.ActivityType(c.Query("activity_type")),
	}
	if from, ok := parseTimeQuery(c, "from"); ok {
		filter.From = from
	}
	if to, ok := parseTimeQuery(c, "to"); ok {
		filter.To = to
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	return filter
}

func normalizationOptions(c *gin.Context) models.NormalizationOptions {
	return models.NormalizationOptions{
		Method:              models.NormalizationMethod(c.Query("method")),
		AdjustForDifficulty: c.Query("adjust_difficulty") == "true",
		AdjustForTimeSpent:  c.Query("adjust_time_spent") == "true",
		AdjustForLateJoin:   c.Query("adjust_late_join") == "true",
		AdjustForCompletion: c.Query("adjust_completion") == "true",
	}
}

func contentTypeFor(format models.ExportFormat) string {
	switch format {
	case models.ExportPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}
