package models

// ActivityType identifies the kind of activity a student earns points for.
type ActivityType string

const (
	ActivityQuiz          ActivityType = "quiz"
	ActivityAssignment    ActivityType = "assignment"
	ActivityExam          ActivityType = "exam"
	ActivityDiscussion    ActivityType = "discussion"
	ActivityParticipation ActivityType = "participation"
	ActivityAttendance    ActivityType = "attendance"
	ActivityAchievement   ActivityType = "achievement"
)

// ActivityTypeConfig describes how points are earned for one activity type.
// The table is immutable after service construction.
type ActivityTypeConfig struct {
	Type                 ActivityType `json:"type"`
	BasePoints           int          `json:"base_points"`
	Weight               float64      `json:"weight"`
	DailyMaxPoints       int          `json:"daily_max_points"`
	WeeklyMaxPoints      int          `json:"weekly_max_points"`
	ScaleWithDifficulty  bool         `json:"scale_with_difficulty"`
	ScaleWithPerformance bool         `json:"scale_with_performance"`
	ScaleWithTimeSpent   bool         `json:"scale_with_time_spent"`
	MaxTimeMinutes       int          `json:"max_time_minutes"`
}

// DifficultyLevel grades how hard an activity was.
type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
	DifficultyExpert DifficultyLevel = "expert"
)

// DifficultyMultipliers maps each difficulty level to its fixed factor.
var DifficultyMultipliers = map[DifficultyLevel]float64{
	DifficultyEasy:   0.8,
	DifficultyMedium: 1.0,
	DifficultyHard:   1.3,
	DifficultyExpert: 1.6,
}

// PerformanceBand maps a half-open score range [MinScore, MaxScore) to a
// multiplier. Bands must partition [0,100] without gaps.
type PerformanceBand struct {
	MinScore   float64 `json:"min_score"`
	MaxScore   float64 `json:"max_score"`
	Multiplier float64 `json:"multiplier"`
}

// DefaultPerformanceBands covers the whole score range. The top band is
// closed at 100 so a perfect score still matches.
func DefaultPerformanceBands() []PerformanceBand {
	return []PerformanceBand{
		{MinScore: 0, MaxScore: 50, Multiplier: 0.6},
		{MinScore: 50, MaxScore: 65, Multiplier: 0.7},
		{MinScore: 65, MaxScore: 80, Multiplier: 0.8},
		{MinScore: 80, MaxScore: 90, Multiplier: 0.9},
		{MinScore: 90, MaxScore: 101, Multiplier: 1.0},
	}
}

// DefaultActivityConfigs returns the platform's stock activity table.
func DefaultActivityConfigs() map[ActivityType]ActivityTypeConfig {
	return map[ActivityType]ActivityTypeConfig{
		ActivityQuiz: {
			Type: ActivityQuiz, BasePoints: 50, Weight: 1.0,
			DailyMaxPoints: 200, WeeklyMaxPoints: 500,
			ScaleWithDifficulty: true, ScaleWithPerformance: true,
		},
		ActivityAssignment: {
			Type: ActivityAssignment, BasePoints: 80, Weight: 1.2,
			DailyMaxPoints: 240, WeeklyMaxPoints: 800,
			ScaleWithDifficulty: true, ScaleWithPerformance: true,
			ScaleWithTimeSpent: true, MaxTimeMinutes: 120,
		},
		ActivityExam: {
			Type: ActivityExam, BasePoints: 150, Weight: 1.5,
			DailyMaxPoints: 300, WeeklyMaxPoints: 600,
			ScaleWithDifficulty: true, ScaleWithPerformance: true,
		},
		ActivityDiscussion: {
			Type: ActivityDiscussion, BasePoints: 20, Weight: 0.8,
			DailyMaxPoints: 60, WeeklyMaxPoints: 200,
			ScaleWithTimeSpent: true, MaxTimeMinutes: 30,
		},
		ActivityParticipation: {
			Type: ActivityParticipation, BasePoints: 10, Weight: 0.5,
			DailyMaxPoints: 40, WeeklyMaxPoints: 150,
		},
		ActivityAttendance: {
			Type: ActivityAttendance, BasePoints: 5, Weight: 0.5,
			DailyMaxPoints: 10, WeeklyMaxPoints: 50,
		},
		ActivityAchievement: {
			Type: ActivityAchievement, BasePoints: 100, Weight: 1.0,
			DailyMaxPoints: 300, WeeklyMaxPoints: 1000,
			ScaleWithDifficulty: true,
		},
	}
}
