package models

import "time"

// PointsCalculationRequest carries one activity completion to score.
type PointsCalculationRequest struct {
	ActivityType     ActivityType     `json:"activity_type" validate:"required"`
	Difficulty       *DifficultyLevel `json:"difficulty,omitempty"`
	Score            *float64         `json:"score,omitempty" validate:"omitempty,gte=0,lte=100"`
	TimeSpentMinutes *float64         `json:"time_spent_minutes,omitempty" validate:"omitempty,gte=0"`
	IsRepeat         bool             `json:"is_repeat"`
	CustomMultiplier *float64         `json:"custom_multiplier,omitempty" validate:"omitempty,gt=0"`
}

// PointsCalculationResult is the outcome of a single calculation.
type PointsCalculationResult struct {
	BasePoints       int                `json:"base_points"`
	CalculatedPoints int                `json:"calculated_points"`
	Breakdown        map[string]float64 `json:"breakdown"`
	WasCapped        bool               `json:"was_capped"`
	UncappedPoints   *int               `json:"uncapped_points,omitempty"`
}

// StudentUsage tracks daily and weekly point consumption per student.
// Keys are "activityType:date" and "activityType:weekStart".
type StudentUsage struct {
	Daily     map[string]int `json:"daily"`
	Weekly    map[string]int `json:"weekly"`
	LastReset time.Time      `json:"last_reset"`
}

// NewStudentUsage builds an empty tracker anchored at now.
func NewStudentUsage(now time.Time) *StudentUsage {
	return &StudentUsage{
		Daily:     make(map[string]int),
		Weekly:    make(map[string]int),
		LastReset: now,
	}
}

// PointAward is the persisted record of a granted award.
type PointAward struct {
	ID           string       `db:"id" json:"id"`
	StudentID    string       `db:"student_id" json:"student_id"`
	ActivityType ActivityType `db:"activity_type" json:"activity_type"`
	ActivityID   string       `db:"activity_id" json:"activity_id"`
	Points       int          `db:"points" json:"points"`
	WasCapped    bool         `db:"was_capped" json:"was_capped"`
	AwardedAt    time.Time    `db:"awarded_at" json:"awarded_at"`
}

// AwardFilter captures filtering criteria for listing awards.
type AwardFilter struct {
	StudentID    string
	ActivityType ActivityType
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}
