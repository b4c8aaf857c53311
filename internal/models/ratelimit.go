package models

import "time"

// RateLimitReason explains a partial or full limiter denial.
type RateLimitReason string

const (
	ReasonWindowLimit   RateLimitReason = "window_limit"
	ReasonCooldown      RateLimitReason = "cooldown"
	ReasonInstanceLimit RateLimitReason = "instance_limit"
)

// ActivityLimitConfig holds limiter settings for one activity type.
// Zero values fall back to the limiter defaults.
type ActivityLimitConfig struct {
	Type           ActivityType  `json:"type"`
	Window         time.Duration `json:"window"`
	MaxPoints      int           `json:"max_points"`
	Cooldown       time.Duration `json:"cooldown"`
	MaxPerInstance int           `json:"max_per_instance"`
	Exempt         bool          `json:"exempt"`
}

// PointsRequest asks the limiter whether an amount may be granted.
type PointsRequest struct {
	StudentID    string       `json:"student_id" validate:"required"`
	ActivityType ActivityType `json:"activity_type" validate:"required"`
	ActivityID   string       `json:"activity_id" validate:"required"`
	Amount       int          `json:"amount" validate:"gte=0"`
	Timestamp    time.Time    `json:"timestamp"`
}

// RateLimitResult reports the limiter decision.
type RateLimitResult struct {
	Allowed       bool            `json:"allowed"`
	AllowedAmount int             `json:"allowed_amount"`
	Reason        RateLimitReason `json:"reason,omitempty"`
	ResetTime     *time.Time      `json:"reset_time,omitempty"`
	Remaining     int             `json:"remaining"`
}

// RateWindow is the per-student rolling window state.
type RateWindow struct {
	WindowStart time.Time            `json:"window_start"`
	PointsUsed  int                  `json:"points_used"`
	Activities  map[string]time.Time `json:"activities"`
}

// StudentRateLimitStatus is the introspection view for one student.
type StudentRateLimitStatus struct {
	StudentID   string    `json:"student_id"`
	WindowStart time.Time `json:"window_start"`
	WindowEnds  time.Time `json:"window_ends"`
	PointsUsed  int       `json:"points_used"`
	Remaining   int       `json:"remaining"`
	Cooldowns   int       `json:"cooldowns"`
}
