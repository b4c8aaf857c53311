package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-rewards-api/internal/models"
)

// RateLimiterDefaults apply to activity types without an explicit override.
type RateLimiterDefaults struct {
	Window         time.Duration
	MaxPoints      int
	Cooldown       time.Duration
	MaxPerInstance int
}

// RateLimiterService gates point grants per student. It enforces a rolling
// points window, a cooldown per activity instance and a per-instance cap.
//
// Decisions are deliberately asymmetric: oversized single requests are
// truncated and allowed, while cooldown and window violations reject the
// grant outright.
type RateLimiterService struct {
	defaults  RateLimiterDefaults
	overrides map[models.ActivityType]models.ActivityLimitConfig

	mu      sync.Mutex
	windows map[string]*models.RateWindow

	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiterService constructs the limiter.
func NewRateLimiterService(defaults RateLimiterDefaults, overrides map[models.ActivityType]models.ActivityLimitConfig, logger *zap.Logger) *RateLimiterService {
	if defaults.Window <= 0 {
		defaults.Window = time.Hour
	}
	if defaults.MaxPoints <= 0 {
		defaults.MaxPoints = 500
	}
	if defaults.Cooldown <= 0 {
		defaults.Cooldown = 5 * time.Minute
	}
	if defaults.MaxPerInstance <= 0 {
		defaults.MaxPerInstance = 100
	}
	if overrides == nil {
		overrides = make(map[models.ActivityType]models.ActivityLimitConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiterService{
		defaults:  defaults,
		overrides: overrides,
		windows:   make(map[string]*models.RateWindow),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CheckLimit decides whether the requested amount may be granted and records
// the grant when fully allowed.
func (s *RateLimiterService) CheckLimit(req models.PointsRequest) models.RateLimitResult {
	cfg := s.activityConfig(req.ActivityType)
	now := req.Timestamp
	if now.IsZero() {
		now = s.now()
	}

	if cfg.Exempt {
		return models.RateLimitResult{Allowed: true, AllowedAmount: req.Amount, Remaining: cfg.MaxPoints}
	}

	// Oversized single grants are reduced, not rejected.
	if req.Amount > cfg.MaxPerInstance {
		return models.RateLimitResult{
			Allowed:       true,
			AllowedAmount: cfg.MaxPerInstance,
			Reason:        models.ReasonInstanceLimit,
			Remaining:     s.remaining(req.StudentID, cfg, now),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	window := s.windowLocked(req.StudentID, cfg, now)
	instanceKey := string(req.ActivityType) + ":" + req.ActivityID

	if last, seen := window.Activities[instanceKey]; seen {
		if now.Sub(last) < cfg.Cooldown {
			reset := last.Add(cfg.Cooldown)
			return models.RateLimitResult{
				Allowed:       false,
				AllowedAmount: 0,
				Reason:        models.ReasonCooldown,
				ResetTime:     &reset,
				Remaining:     maxInt(0, cfg.MaxPoints-window.PointsUsed),
			}
		}
	}

	if window.PointsUsed+req.Amount > cfg.MaxPoints {
		reset := window.WindowStart.Add(cfg.Window)
		return models.RateLimitResult{
			Allowed:       false,
			AllowedAmount: 0,
			Reason:        models.ReasonWindowLimit,
			ResetTime:     &reset,
			Remaining:     maxInt(0, cfg.MaxPoints-window.PointsUsed),
		}
	}

	window.PointsUsed += req.Amount
	window.Activities[instanceKey] = now

	return models.RateLimitResult{
		Allowed:       true,
		AllowedAmount: req.Amount,
		Remaining:     maxInt(0, cfg.MaxPoints-window.PointsUsed),
	}
}

// RegisterPointsAwarded records a grant that was decided elsewhere (for
// example after an instance-limit truncation) without re-running checks.
func (s *RateLimiterService) RegisterPointsAwarded(req models.PointsRequest, actualAmount int) {
	if actualAmount <= 0 {
		return
	}
	cfg := s.activityConfig(req.ActivityType)
	if cfg.Exempt {
		return
	}
	now := req.Timestamp
	if now.IsZero() {
		now = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	window := s.windowLocked(req.StudentID, cfg, now)
	window.PointsUsed += actualAmount
	window.Activities[string(req.ActivityType)+":"+req.ActivityID] = now
}

// StudentStatus exposes the current window for introspection endpoints.
func (s *RateLimiterService) StudentStatus(studentID string) models.StudentRateLimitStatus {
	cfg := s.defaults
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	window, ok := s.windows[studentID]
	if !ok || now.Sub(window.WindowStart) > cfg.Window {
		return models.StudentRateLimitStatus{
			StudentID:   studentID,
			WindowStart: now,
			WindowEnds:  now.Add(cfg.Window),
			Remaining:   cfg.MaxPoints,
		}
	}

	return models.StudentRateLimitStatus{
		StudentID:   studentID,
		WindowStart: window.WindowStart,
		WindowEnds:  window.WindowStart.Add(cfg.Window),
		PointsUsed:  window.PointsUsed,
		Remaining:   maxInt(0, cfg.MaxPoints-window.PointsUsed),
		Cooldowns:   len(window.Activities),
	}
}

// activityConfig merges the per-type override with the limiter defaults.
func (s *RateLimiterService) activityConfig(activityType models.ActivityType) models.ActivityLimitConfig {
	cfg := models.ActivityLimitConfig{
		Type:           activityType,
		Window:         s.defaults.Window,
		MaxPoints:      s.defaults.MaxPoints,
		Cooldown:       s.defaults.Cooldown,
		MaxPerInstance: s.defaults.MaxPerInstance,
	}
	override, ok := s.overrides[activityType]
	if !ok {
		return cfg
	}
	if override.Window > 0 {
		cfg.Window = override.Window
	}
	if override.MaxPoints > 0 {
		cfg.MaxPoints = override.MaxPoints
	}
	if override.Cooldown > 0 {
		cfg.Cooldown = override.Cooldown
	}
	if override.MaxPerInstance > 0 {
		cfg.MaxPerInstance = override.MaxPerInstance
	}
	cfg.Exempt = override.Exempt
	return cfg
}

// windowLocked returns the student's rolling window, resetting it when more
// than the configured window has elapsed since its start. Caller holds mu.
func (s *RateLimiterService) windowLocked(studentID string, cfg models.ActivityLimitConfig, now time.Time) *models.RateWindow {
	window, ok := s.windows[studentID]
	if !ok || now.Sub(window.WindowStart) > cfg.Window {
		window = &models.RateWindow{
			WindowStart: now,
			Activities:  make(map[string]time.Time),
		}
		s.windows[studentID] = window
	}
	return window
}

func (s *RateLimiterService) remaining(studentID string, cfg models.ActivityLimitConfig, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	window, ok := s.windows[studentID]
	if !ok || now.Sub(window.WindowStart) > cfg.Window {
		return cfg.MaxPoints
	}
	return maxInt(0, cfg.MaxPoints-window.PointsUsed)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
