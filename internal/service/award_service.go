package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-rewards-api/internal/models"
	appErrors "github.com/noah-isme/sma-rewards-api/pkg/errors"
)

type awardRepo interface {
	Insert(ctx context.Context, award *models.PointAward) error
	List(ctx context.Context, filter models.AwardFilter) ([]models.PointAward, int, error)
}

type eventWriter interface {
	Insert(ctx context.Context, event models.PointEarningEvent) error
}

type flagWriter interface {
	Insert(ctx context.Context, flag *models.AnomalyFlag) error
}

// AwardPointsRequest is one activity completion submitted for reward.
type AwardPointsRequest struct {
	StudentID        string                  `json:"student_id" validate:"required"`
	ActivityType     models.ActivityType     `json:"activity_type" validate:"required"`
	ActivityID       string                  `json:"activity_id" validate:"required"`
	Difficulty       *models.DifficultyLevel `json:"difficulty,omitempty"`
	Score            *float64                `json:"score,omitempty" validate:"omitempty,gte=0,lte=100"`
	TimeSpentMinutes *float64                `json:"time_spent_minutes,omitempty" validate:"omitempty,gte=0"`
	IsRepeat         bool                    `json:"is_repeat"`
	CustomMultiplier *float64                `json:"custom_multiplier,omitempty" validate:"omitempty,gt=0"`
}

// AwardPointsResult bundles the full decision trail for one submission.
type AwardPointsResult struct {
	Award       *models.PointAward             `json:"award,omitempty"`
	Calculation models.PointsCalculationResult `json:"calculation"`
	RateLimit   models.RateLimitResult         `json:"rate_limit"`
	Anomaly     models.AnomalyDetectionResult  `json:"anomaly"`
}

// AwardService orchestrates the reward pipeline: score the completion,
// gate it through the rate limiter, run anomaly detection against the
// student's history and persist the outcome.
type AwardService struct {
	scoring   *ScoringService
	limiter   *RateLimiterService
	anomalies *AnomalyService
	awards    awardRepo
	events    eventWriter
	flags     flagWriter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAwardService constructs the orchestrator.
func NewAwardService(scoring *ScoringService, limiter *RateLimiterService, anomalies *AnomalyService, awards awardRepo, events eventWriter, flags flagWriter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AwardService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AwardService{
		scoring:   scoring,
		limiter:   limiter,
		anomalies: anomalies,
		awards:    awards,
		events:    events,
		flags:     flags,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Award processes one completion end to end.
func (s *AwardService) Award(ctx context.Context, req AwardPointsRequest) (*AwardPointsResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid award payload")
	}

	now := s.now()
	calc := s.scoring.CalculatePoints(ctx, req.StudentID, req.calculation())

	rate := s.limiter.CheckLimit(models.PointsRequest{
		StudentID:    req.StudentID,
		ActivityType: req.ActivityType,
		ActivityID:   req.ActivityID,
		Amount:       calc.CalculatedPoints,
		Timestamp:    now,
	})

	result := &AwardPointsResult{Calculation: calc, RateLimit: rate}

	if !rate.Allowed {
		s.metrics.RecordRateLimitRejection(rate.Reason)
		s.logger.Info("award rejected by rate limiter",
			zap.String("student_id", req.StudentID),
			zap.String("activity_type", string(req.ActivityType)),
			zap.String("reason", string(rate.Reason)))
		return result, nil
	}

	granted := rate.AllowedAmount
	if rate.Reason == models.ReasonInstanceLimit {
		// Truncation paths bypass the limiter's own bookkeeping.
		s.limiter.RegisterPointsAwarded(models.PointsRequest{
			StudentID:    req.StudentID,
			ActivityType: req.ActivityType,
			ActivityID:   req.ActivityID,
			Timestamp:    now,
		}, granted)
	}

	event := models.PointEarningEvent{
		StudentID: req.StudentID,
		Amount:    granted,
		Source:    string(req.ActivityType),
		SourceID:  req.ActivityID,
		Timestamp: now,
	}

	// Detect against history that does not yet include this event.
	result.Anomaly = s.anomalies.DetectAnomaly(ctx, event, nil)
	s.anomalies.TrackEvent(ctx, event)

	award := &models.PointAward{
		ID:           uuid.NewString(),
		StudentID:    req.StudentID,
		ActivityType: req.ActivityType,
		ActivityID:   req.ActivityID,
		Points:       granted,
		WasCapped:    calc.WasCapped,
		AwardedAt:    now,
	}
	if err := s.awards.Insert(ctx, award); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist award")
	}
	result.Award = award

	if err := s.events.Insert(ctx, event); err != nil {
		s.logger.Warn("failed to persist point event", zap.String("student_id", req.StudentID), zap.Error(err))
	}

	if result.Anomaly.IsAnomaly {
		s.metrics.RecordAnomaly(result.Anomaly.AnomalyType)
		flag := &models.AnomalyFlag{
			ID:          uuid.NewString(),
			StudentID:   req.StudentID,
			AnomalyType: result.Anomaly.AnomalyType,
			Confidence:  result.Anomaly.Confidence,
			Details:     result.Anomaly.Details,
			Action:      result.Anomaly.SuggestedAction,
			CreatedAt:   now,
		}
		if err := s.flags.Insert(ctx, flag); err != nil {
			s.logger.Warn("failed to persist anomaly flag", zap.String("student_id", req.StudentID), zap.Error(err))
		}
	}

	s.metrics.RecordAward(req.ActivityType, granted, calc.WasCapped)
	return result, nil
}

// Preview scores a completion without charging caps, windows or history.
func (s *AwardService) Preview(req AwardPointsRequest) (*models.PointsCalculationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preview payload")
	}
	calc := s.scoring.PreviewPoints(req.calculation())
	return &calc, nil
}

// ListAwards returns persisted awards for audit views.
func (s *AwardService) ListAwards(ctx context.Context, filter models.AwardFilter) ([]models.PointAward, int, error) {
	awards, total, err := s.awards.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list awards")
	}
	return awards, total, nil
}

// LimitStatus exposes the student's current limiter window.
func (s *AwardService) LimitStatus(studentID string) models.StudentRateLimitStatus {
	return s.limiter.StudentStatus(studentID)
}

func (r AwardPointsRequest) calculation() models.PointsCalculationRequest {
	return models.PointsCalculationRequest{
		ActivityType:     r.ActivityType,
		Difficulty:       r.Difficulty,
		Score:            r.Score,
		TimeSpentMinutes: r.TimeSpentMinutes,
		IsRepeat:         r.IsRepeat,
		CustomMultiplier: r.CustomMultiplier,
	}
}
