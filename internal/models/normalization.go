package models

import "time"

// NormalizationMethod selects how raw scores are normalized.
type NormalizationMethod string

const (
	MethodZScore         NormalizationMethod = "z-score"
	MethodPercentile     NormalizationMethod = "percentile"
	MethodMinMax         NormalizationMethod = "min-max"
	MethodAdjustedZScore NormalizationMethod = "adjusted-z-score"
)

// NormalizationContext is a comparison scope (class, subject, course or
// campus) with precomputed population statistics.
type NormalizationContext struct {
	ID               string   `json:"id" validate:"required"`
	Kind             string   `json:"kind" validate:"omitempty,oneof=class subject course campus"`
	AverageScore     float64  `json:"average_score"`
	StandardDev      float64  `json:"standard_dev"`
	PopulationSize   int      `json:"population_size"`
	DifficultyRating *float64 `json:"difficulty_rating,omitempty" validate:"omitempty,gte=0,lte=10"`
}

// StudentContext is one student's raw data scoped to a context.
type StudentContext struct {
	StudentID           string     `json:"student_id" validate:"required"`
	ContextID           string     `json:"context_id" validate:"required"`
	RawScore            float64    `json:"raw_score"`
	TimeSpentHours      *float64   `json:"time_spent_hours,omitempty"`
	ActivitiesCompleted *int       `json:"activities_completed,omitempty"`
	ActivitiesTotal     *int       `json:"activities_total,omitempty"`
	JoinDate            *time.Time `json:"join_date,omitempty"`
}

// NormalizationOptions tune a normalization pass.
type NormalizationOptions struct {
	Method              NormalizationMethod `json:"method"`
	AdjustForDifficulty bool                `json:"adjust_for_difficulty"`
	AdjustForTimeSpent  bool                `json:"adjust_for_time_spent"`
	AdjustForLateJoin   bool                `json:"adjust_for_late_join"`
	AdjustForCompletion bool                `json:"adjust_for_completion"`
}

// ScoreAdjustments records the multipliers applied before normalization.
type ScoreAdjustments struct {
	Difficulty     *float64 `json:"difficulty,omitempty"`
	TimeSpent      *float64 `json:"time_spent,omitempty"`
	LateJoiner     *float64 `json:"late_joiner,omitempty"`
	CompletionRate *float64 `json:"completion_rate,omitempty"`
}

// NormalizedScore is the outcome for one student in one context.
type NormalizedScore struct {
	StudentID       string              `json:"student_id"`
	ContextID       string              `json:"context_id"`
	RawScore        float64             `json:"raw_score"`
	NormalizedScore float64             `json:"normalized_score"`
	PercentileRank  *float64            `json:"percentile_rank,omitempty"`
	ZScore          *float64            `json:"z_score,omitempty"`
	Adjustments     ScoreAdjustments    `json:"adjustments"`
	Method          NormalizationMethod `json:"method"`
}
