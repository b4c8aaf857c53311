package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-rewards-api/internal/models"
)

func newLimiter(overrides map[models.ActivityType]models.ActivityLimitConfig) *RateLimiterService {
	return NewRateLimiterService(RateLimiterDefaults{
		Window:         time.Hour,
		MaxPoints:      500,
		Cooldown:       5 * time.Minute,
		MaxPerInstance: 100,
	}, overrides, zap.NewNop())
}

func pointsReq(studentID, activityID string, amount int, at time.Time) models.PointsRequest {
	return models.PointsRequest{
		StudentID:    studentID,
		ActivityType: models.ActivityQuiz,
		ActivityID:   activityID,
		Amount:       amount,
		Timestamp:    at,
	}
}

func TestCheckLimitAllowsAndRecords(t *testing.T) {
	limiter := newLimiter(nil)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	result := limiter.CheckLimit(pointsReq("s1", "q1", 50, now))

	assert.True(t, result.Allowed)
	assert.Equal(t, 50, result.AllowedAmount)
	assert.Equal(t, 450, result.Remaining)
}

func TestCheckLimitExemptActivityBypassesEverything(t *testing.T) {
	limiter := newLimiter(map[models.ActivityType]models.ActivityLimitConfig{
		models.ActivityQuiz: {Type: models.ActivityQuiz, Exempt: true},
	})
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	result := limiter.CheckLimit(pointsReq("s1", "q1", 9999, now))

	assert.True(t, result.Allowed)
	assert.Equal(t, 9999, result.AllowedAmount)
}

func TestCheckLimitInstanceLimitTruncates(t *testing.T) {
	limiter := newLimiter(nil)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	result := limiter.CheckLimit(pointsReq("s1", "q1", 150, now))

	assert.True(t, result.Allowed)
	assert.Equal(t, 100, result.AllowedAmount)
	assert.Equal(t, models.ReasonInstanceLimit, result.Reason)

	// Truncation does not record usage; the caller does that explicitly.
	status := limiter.StudentStatus("s1")
	assert.Equal(t, 0, status.PointsUsed)
}

func TestCheckLimitCooldownRejects(t *testing.T) {
	limiter := newLimiter(nil)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	first := limiter.CheckLimit(pointsReq("s1", "q1", 50, now))
	require.True(t, first.Allowed)

	second := limiter.CheckLimit(pointsReq("s1", "q1", 50, now.Add(time.Minute)))
	assert.False(t, second.Allowed)
	assert.Equal(t, 0, second.AllowedAmount)
	assert.Equal(t, models.ReasonCooldown, second.Reason)
	require.NotNil(t, second.ResetTime)
	assert.Equal(t, now.Add(5*time.Minute), *second.ResetTime)
}

func TestCheckLimitDifferentInstanceNoCooldown(t *testing.T) {
	limiter := newLimiter(nil)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	require.True(t, limiter.CheckLimit(pointsReq("s1", "q1", 50, now)).Allowed)
	assert.True(t, limiter.CheckLimit(pointsReq("s1", "q2", 50, now.Add(time.Minute))).Allowed)
}

func TestCheckLimitWindowLimitRejectsFully(t *testing.T) {
	limiter := newLimiter(nil)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		result := limiter.CheckLimit(pointsReq("s1", string(rune('a'+i)), 100, now.Add(time.Duration(i)*6*time.Minute)))
		require.True(t, result.Allowed)
	}

	// Window holds 500; even a partial fit is rejected rather than truncated.
	overflow := limiter.CheckLimit(pointsReq("s1", "z", 50, now.Add(40*time.Minute)))
	assert.False(t, overflow.Allowed)
	assert.Equal(t, models.ReasonWindowLimit, overflow.Reason)
	require.NotNil(t, overflow.ResetTime)
	assert.Equal(t, now.Add(time.Hour), *overflow.ResetTime)
}

func TestCheckLimitWindowResets(t *testing.T) {
	limiter := newLimiter(nil)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		limiter.CheckLimit(pointsReq("s1", string(rune('a'+i)), 100, now))
	}
	require.False(t, limiter.CheckLimit(pointsReq("s1", "z", 10, now.Add(30*time.Minute))).Allowed)

	later := limiter.CheckLimit(pointsReq("s1", "z", 10, now.Add(2*time.Hour)))
	assert.True(t, later.Allowed)
}

func TestRegisterPointsAwardedChargesWindow(t *testing.T) {
	limiter := newLimiter(nil)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.RegisterPointsAwarded(pointsReq("s1", "q1", 0, now), 100)

	status := limiter.StudentStatus("s1")
	assert.Equal(t, 100, status.PointsUsed)

	// The instance is also on cooldown now.
	result := limiter.CheckLimit(pointsReq("s1", "q1", 10, now.Add(time.Minute)))
	assert.False(t, result.Allowed)
	assert.Equal(t, models.ReasonCooldown, result.Reason)
}

func TestStudentStatusFreshWindow(t *testing.T) {
	limiter := newLimiter(nil)

	status := limiter.StudentStatus("nobody")

	assert.Equal(t, "nobody", status.StudentID)
	assert.Equal(t, 0, status.PointsUsed)
	assert.Equal(t, 500, status.Remaining)
}
