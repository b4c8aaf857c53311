package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-rewards-api/internal/models"
)

func newScoringService() *ScoringService {
	return NewScoringService(nil, nil, nil, ScoringConfig{}, zap.NewNop())
}

func floatPtr(v float64) *float64 { return &v }

func difficultyPtr(d models.DifficultyLevel) *models.DifficultyLevel { return &d }

func TestCalculatePointsBaseTimesWeight(t *testing.T) {
	svc := newScoringService()

	result := svc.CalculatePoints(context.Background(), "s1", models.PointsCalculationRequest{
		ActivityType: models.ActivityParticipation,
	})

	assert.Equal(t, 10, result.BasePoints)
	assert.Equal(t, 5, result.CalculatedPoints)
	assert.False(t, result.WasCapped)
}

func TestCalculatePointsQuizHardHighScore(t *testing.T) {
	svc := newScoringService()

	result := svc.CalculatePoints(context.Background(), "s1", models.PointsCalculationRequest{
		ActivityType: models.ActivityQuiz,
		Difficulty:   difficultyPtr(models.DifficultyHard),
		Score:        floatPtr(85),
	})

	// 50 * 1.3 * 0.9 * 1.0 = 58.5, rounded half up.
	assert.Equal(t, 59, result.CalculatedPoints)
	assert.Equal(t, 1.3, result.Breakdown["difficulty"])
	assert.Equal(t, 0.9, result.Breakdown["performance"])
	assert.Equal(t, 1.0, result.Breakdown["weight"])
}

func TestCalculatePointsTimeSpentScaling(t *testing.T) {
	svc := newScoringService()

	result := svc.CalculatePoints(context.Background(), "s1", models.PointsCalculationRequest{
		ActivityType:     models.ActivityDiscussion,
		TimeSpentMinutes: floatPtr(15),
	})

	// 20 * (0.5 + 0.5*15/30) * 0.8 = 12
	assert.Equal(t, 12, result.CalculatedPoints)
	assert.Equal(t, 0.75, result.Breakdown["time_spent"])
}

func TestCalculatePointsTimeSpentClampedAtMax(t *testing.T) {
	svc := newScoringService()

	result := svc.CalculatePoints(context.Background(), "s1", models.PointsCalculationRequest{
		ActivityType:     models.ActivityDiscussion,
		TimeSpentMinutes: floatPtr(300),
	})

	assert.Equal(t, 1.0, result.Breakdown["time_spent"])
	assert.Equal(t, 16, result.CalculatedPoints)
}

func TestCalculatePointsRepeatHalves(t *testing.T) {
	svc := newScoringService()

	result := svc.CalculatePoints(context.Background(), "s1", models.PointsCalculationRequest{
		ActivityType: models.ActivityQuiz,
		IsRepeat:     true,
	})

	assert.Equal(t, 25, result.CalculatedPoints)
	assert.Equal(t, 0.5, result.Breakdown["repeat"])
}

func TestCalculatePointsCustomMultiplier(t *testing.T) {
	svc := newScoringService()

	result := svc.CalculatePoints(context.Background(), "s1", models.PointsCalculationRequest{
		ActivityType:     models.ActivityQuiz,
		CustomMultiplier: floatPtr(2.0),
	})

	assert.Equal(t, 100, result.CalculatedPoints)
}

func TestCalculatePointsUnknownActivityFallback(t *testing.T) {
	svc := newScoringService()

	result := svc.CalculatePoints(context.Background(), "s1", models.PointsCalculationRequest{
		ActivityType: "karaoke",
	})

	assert.Equal(t, 10, result.BasePoints)
	assert.Equal(t, 10, result.CalculatedPoints)
	assert.Empty(t, result.Breakdown)
}

func TestCalculatePointsDailyCap(t *testing.T) {
	svc := newScoringService()
	req := models.PointsCalculationRequest{
		ActivityType: models.ActivityQuiz,
		Difficulty:   difficultyPtr(models.DifficultyHard),
		Score:        floatPtr(85),
	}

	// Three awards of 59 consume 177 of the 200 point daily quiz cap.
	for i := 0; i < 3; i++ {
		result := svc.CalculatePoints(context.Background(), "s1", req)
		require.Equal(t, 59, result.CalculatedPoints)
		require.False(t, result.WasCapped)
	}

	fourth := svc.CalculatePoints(context.Background(), "s1", req)
	assert.Equal(t, 23, fourth.CalculatedPoints)
	assert.True(t, fourth.WasCapped)
	require.NotNil(t, fourth.UncappedPoints)
	assert.Equal(t, 59, *fourth.UncappedPoints)

	fifth := svc.CalculatePoints(context.Background(), "s1", req)
	assert.Equal(t, 0, fifth.CalculatedPoints)
	assert.True(t, fifth.WasCapped)
}

func TestCalculatePointsCapsArePerStudent(t *testing.T) {
	svc := newScoringService()
	req := models.PointsCalculationRequest{ActivityType: models.ActivityAttendance}

	first := svc.CalculatePoints(context.Background(), "s1", req)
	other := svc.CalculatePoints(context.Background(), "s2", req)

	assert.Equal(t, first.CalculatedPoints, other.CalculatedPoints)
}

func TestCalculatePointsRollingReset(t *testing.T) {
	svc := newScoringService()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	req := models.PointsCalculationRequest{ActivityType: models.ActivityAttendance}

	// Attendance daily cap is 10; two awards of 3 then one of 3 capped to 4 left.
	for i := 0; i < 4; i++ {
		svc.CalculatePoints(context.Background(), "s1", req)
	}
	capped := svc.CalculatePoints(context.Background(), "s1", req)
	assert.True(t, capped.WasCapped)

	// More than 24h later the whole tracker resets.
	svc.now = func() time.Time { return base.Add(25 * time.Hour) }
	fresh := svc.CalculatePoints(context.Background(), "s1", req)
	assert.False(t, fresh.WasCapped)
	assert.Equal(t, 3, fresh.CalculatedPoints)
}

func TestPreviewPointsDoesNotChargeCaps(t *testing.T) {
	svc := newScoringService()
	req := models.PointsCalculationRequest{ActivityType: models.ActivityAttendance}

	for i := 0; i < 10; i++ {
		result := svc.PreviewPoints(req)
		require.Equal(t, 3, result.CalculatedPoints)
		require.False(t, result.WasCapped)
	}

	granted := svc.CalculatePoints(context.Background(), "s1", req)
	assert.False(t, granted.WasCapped)
}
