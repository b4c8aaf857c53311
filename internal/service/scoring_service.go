package service

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-rewards-api/internal/models"
)

// UsageStore abstracts the per-student cap tracking state so deployments with
// multiple replicas can share it (e.g. via Redis) while tests and single
// instances use the in-memory default.
type UsageStore interface {
	Fetch(ctx context.Context, studentID string) (*models.StudentUsage, error)
	Save(ctx context.Context, studentID string, usage *models.StudentUsage) error
}

// ScoringConfig tunes the calculation engine.
type ScoringConfig struct {
	FallbackBasePoints int
	RepeatFactor       float64
}

// ScoringService converts activity completions into point awards, applying
// difficulty, performance, time-spent, repeat and custom multipliers before
// enforcing per-activity daily and weekly caps.
type ScoringService struct {
	activities  map[models.ActivityType]models.ActivityTypeConfig
	bands       []models.PerformanceBand
	usage       UsageStore
	fallback    int
	repeatMulti float64
	logger      *zap.Logger
	now         func() time.Time
}

// NewScoringService constructs the engine. Nil maps and stores fall back to
// the stock defaults so the service is always usable.
func NewScoringService(activities map[models.ActivityType]models.ActivityTypeConfig, bands []models.PerformanceBand, usage UsageStore, cfg ScoringConfig, logger *zap.Logger) *ScoringService {
	if activities == nil {
		activities = models.DefaultActivityConfigs()
	}
	if len(bands) == 0 {
		bands = models.DefaultPerformanceBands()
	}
	if usage == nil {
		usage = NewMemoryUsageStore()
	}
	if cfg.FallbackBasePoints <= 0 {
		cfg.FallbackBasePoints = 10
	}
	if cfg.RepeatFactor <= 0 {
		cfg.RepeatFactor = 0.5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoringService{
		activities:  activities,
		bands:       bands,
		usage:       usage,
		fallback:    cfg.FallbackBasePoints,
		repeatMulti: cfg.RepeatFactor,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CalculatePoints scores one completion for the given student and charges
// the award against their caps. It never fails: unknown activity types earn
// the fixed fallback award and storage problems degrade to uncapped
// behaviour rather than an error.
func (s *ScoringService) CalculatePoints(ctx context.Context, studentID string, req models.PointsCalculationRequest) models.PointsCalculationResult {
	cfg, ok := s.activities[req.ActivityType]
	if !ok {
		return s.fallbackResult()
	}

	uncapped, breakdown := s.compute(cfg, req)
	capped := s.applyCaps(ctx, studentID, cfg, uncapped)

	result := models.PointsCalculationResult{
		BasePoints:       cfg.BasePoints,
		CalculatedPoints: capped,
		Breakdown:        breakdown,
	}
	if capped < uncapped {
		result.WasCapped = true
		result.UncappedPoints = &uncapped
	}
	return result
}

// PreviewPoints runs the multiplier chain without charging any caps, for
// dry-run endpoints.
func (s *ScoringService) PreviewPoints(req models.PointsCalculationRequest) models.PointsCalculationResult {
	cfg, ok := s.activities[req.ActivityType]
	if !ok {
		return s.fallbackResult()
	}
	uncapped, breakdown := s.compute(cfg, req)
	return models.PointsCalculationResult{
		BasePoints:       cfg.BasePoints,
		CalculatedPoints: uncapped,
		Breakdown:        breakdown,
	}
}

func (s *ScoringService) fallbackResult() models.PointsCalculationResult {
	return models.PointsCalculationResult{
		BasePoints:       s.fallback,
		CalculatedPoints: s.fallback,
		Breakdown:        map[string]float64{},
	}
}

func (s *ScoringService) compute(cfg models.ActivityTypeConfig, req models.PointsCalculationRequest) (int, map[string]float64) {
	points := float64(cfg.BasePoints)
	breakdown := make(map[string]float64)

	if cfg.ScaleWithDifficulty && req.Difficulty != nil {
		if multiplier, known := models.DifficultyMultipliers[*req.Difficulty]; known {
			points *= multiplier
			breakdown["difficulty"] = multiplier
		}
	}

	if cfg.ScaleWithPerformance && req.Score != nil {
		if multiplier, found := s.performanceMultiplier(*req.Score); found {
			points *= multiplier
			breakdown["performance"] = multiplier
		}
	}

	if cfg.ScaleWithTimeSpent && req.TimeSpentMinutes != nil && cfg.MaxTimeMinutes > 0 {
		ratio := *req.TimeSpentMinutes / float64(cfg.MaxTimeMinutes)
		if ratio > 1 {
			ratio = 1
		}
		if ratio < 0 {
			ratio = 0
		}
		multiplier := 0.5 + 0.5*ratio
		points *= multiplier
		breakdown["time_spent"] = multiplier
	}

	if req.IsRepeat {
		points *= s.repeatMulti
		breakdown["repeat"] = s.repeatMulti
	}

	if req.CustomMultiplier != nil {
		points *= *req.CustomMultiplier
		breakdown["custom"] = *req.CustomMultiplier
	}

	points *= cfg.Weight
	breakdown["weight"] = cfg.Weight

	// Single round-half-up at the end of the multiplier chain.
	uncapped := int(math.Round(points))
	if uncapped < 0 {
		uncapped = 0
	}
	return uncapped, breakdown
}

func (s *ScoringService) performanceMultiplier(score float64) (float64, bool) {
	for _, band := range s.bands {
		if score >= band.MinScore && score < band.MaxScore {
			return band.Multiplier, true
		}
	}
	return 0, false
}

// applyCaps charges the award against the student's daily and weekly
// allowances and returns the possibly reduced amount.
func (s *ScoringService) applyCaps(ctx context.Context, studentID string, cfg models.ActivityTypeConfig, requested int) int {
	now := s.now()

	usage, err := s.usage.Fetch(ctx, studentID)
	if err != nil {
		s.logger.Warn("usage fetch failed, awarding uncapped", zap.String("student_id", studentID), zap.Error(err))
		return requested
	}
	if usage == nil {
		usage = models.NewStudentUsage(now)
	}

	// Rolling reset: the whole tracker clears 24h after its reset stamp.
	// This intentionally is not a calendar-day boundary.
	if now.Sub(usage.LastReset) > 24*time.Hour {
		usage = models.NewStudentUsage(now)
	}

	dayKey := string(cfg.Type) + ":" + now.Format("2006-01-02")
	weekKey := string(cfg.Type) + ":" + weekStart(now).Format("2006-01-02")

	award := requested
	if cfg.DailyMaxPoints > 0 {
		remaining := cfg.DailyMaxPoints - usage.Daily[dayKey]
		if remaining < 0 {
			remaining = 0
		}
		if award > remaining {
			award = remaining
		}
	}
	if cfg.WeeklyMaxPoints > 0 {
		remaining := cfg.WeeklyMaxPoints - usage.Weekly[weekKey]
		if remaining < 0 {
			remaining = 0
		}
		if award > remaining {
			award = remaining
		}
	}

	usage.Daily[dayKey] += award
	usage.Weekly[weekKey] += award

	if err := s.usage.Save(ctx, studentID, usage); err != nil {
		s.logger.Warn("usage save failed", zap.String("student_id", studentID), zap.Error(err))
	}

	return award
}

func weekStart(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, -(weekday - 1))
}

// MemoryUsageStore is the process-local UsageStore default. Access is
// serialized with a mutex so concurrent handlers cannot lose updates.
type MemoryUsageStore struct {
	mu       sync.Mutex
	trackers map[string]*models.StudentUsage
}

// NewMemoryUsageStore constructs an empty in-memory store.
func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{trackers: make(map[string]*models.StudentUsage)}
}

// Fetch returns a copy of the student's tracker.
func (m *MemoryUsageStore) Fetch(_ context.Context, studentID string) (*models.StudentUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	usage, ok := m.trackers[studentID]
	if !ok {
		return nil, nil
	}
	clone := models.NewStudentUsage(usage.LastReset)
	for k, v := range usage.Daily {
		clone.Daily[k] = v
	}
	for k, v := range usage.Weekly {
		clone.Weekly[k] = v
	}
	return clone, nil
}

// Save replaces the student's tracker.
func (m *MemoryUsageStore) Save(_ context.Context, studentID string, usage *models.StudentUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackers[studentID] = usage
	return nil
}
