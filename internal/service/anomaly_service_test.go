package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-rewards-api/internal/models"
)

func newDetector() *AnomalyService {
	return NewAnomalyService(AnomalyConfig{}, NewMemoryEventStore(), zap.NewNop())
}

func event(studentID string, amount int, at time.Time) models.PointEarningEvent {
	return models.PointEarningEvent{
		StudentID: studentID,
		Amount:    amount,
		Source:    "quiz",
		Timestamp: at,
	}
}

// schoolTime is safely inside the 7-18 school hours window.
var schoolTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestDetectAnomalyCleanEvent(t *testing.T) {
	svc := newDetector()

	result := svc.DetectAnomaly(context.Background(), event("s1", 50, schoolTime), nil)

	assert.False(t, result.IsAnomaly)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestDetectAnomalySingleEventOverLimit(t *testing.T) {
	svc := newDetector()

	result := svc.DetectAnomaly(context.Background(), event("s1", 501, schoolTime), nil)

	assert.True(t, result.IsAnomaly)
	assert.Equal(t, models.AnomalyRateLimit, result.AnomalyType)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Equal(t, models.ActionReview, result.SuggestedAction)
}

func TestDetectAnomalyWindowOverflow(t *testing.T) {
	svc := newDetector()
	history := []models.PointEarningEvent{
		event("s1", 400, schoolTime.Add(-20*time.Minute)),
		event("s1", 400, schoolTime.Add(-40*time.Minute)),
	}

	result := svc.DetectAnomaly(context.Background(), event("s1", 300, schoolTime), history)

	assert.True(t, result.IsAnomaly)
	assert.Equal(t, models.AnomalyRateLimit, result.AnomalyType)
	assert.Equal(t, 0.8, result.Confidence)
	assert.Equal(t, models.ActionFlag, result.SuggestedAction)
}

func TestDetectAnomalyStatisticalOutlier(t *testing.T) {
	svc := newDetector()

	// Varied history around 20 points so the spread is nonzero.
	history := make([]models.PointEarningEvent, 0, 12)
	amounts := []int{18, 22, 19, 21, 20, 20, 17, 23, 18, 22, 19, 21}
	for i, amount := range amounts {
		history = append(history, event("s1", amount, schoolTime.Add(-time.Duration(i+1)*26*time.Hour)))
	}

	result := svc.DetectAnomaly(context.Background(), event("s1", 120, schoolTime), history)

	assert.True(t, result.IsAnomaly)
	assert.Equal(t, models.AnomalyOutlier, result.AnomalyType)
	assert.GreaterOrEqual(t, result.Confidence, 0.5)
	assert.LessOrEqual(t, result.Confidence, 0.95)
	assert.Equal(t, models.ActionReview, result.SuggestedAction)
}

func TestDetectAnomalyOutlierNeedsHistory(t *testing.T) {
	svc := newDetector()
	history := []models.PointEarningEvent{
		event("s1", 20, schoolTime.Add(-26*time.Hour)),
	}

	result := svc.DetectAnomaly(context.Background(), event("s1", 120, schoolTime), history)

	assert.False(t, result.IsAnomaly)
}

func TestDetectAnomalyIdenticalGrantsPattern(t *testing.T) {
	svc := newDetector()

	// Four identical grants already tracked; the fifth triggers.
	for i := 1; i <= 4; i++ {
		svc.TrackEvent(context.Background(), event("s1", 50, schoolTime.Add(-time.Duration(i)*time.Hour)))
	}

	result := svc.DetectAnomaly(context.Background(), event("s1", 50, schoolTime), nil)

	assert.True(t, result.IsAnomaly)
	assert.Equal(t, models.AnomalyUnusualPattern, result.AnomalyType)
	assert.Equal(t, 0.7, result.Confidence)
}

func TestDetectAnomalyDailySpike(t *testing.T) {
	svc := newDetector()

	// Historical days with modest totals, then a huge day.
	history := []models.PointEarningEvent{
		event("s1", 30, schoolTime.AddDate(0, 0, -1)),
		event("s1", 35, schoolTime.AddDate(0, 0, -2)),
		event("s1", 25, schoolTime.AddDate(0, 0, -3)),
	}

	result := svc.DetectAnomaly(context.Background(), event("s1", 200, schoolTime), history)

	assert.True(t, result.IsAnomaly)
	assert.Equal(t, models.AnomalyUnusualPattern, result.AnomalyType)
	assert.Equal(t, 0.6, result.Confidence)
}

func TestDetectAnomalyOffHoursHighValue(t *testing.T) {
	svc := newDetector()
	midnight := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)

	result := svc.DetectAnomaly(context.Background(), event("s1", 300, midnight), []models.PointEarningEvent{})

	assert.True(t, result.IsAnomaly)
	assert.Equal(t, models.AnomalySuspiciousTiming, result.AnomalyType)
	assert.Equal(t, 0.5, result.Confidence)
}

func TestDetectAnomalyOffHoursLowValueIgnored(t *testing.T) {
	svc := newDetector()
	midnight := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)

	result := svc.DetectAnomaly(context.Background(), event("s1", 50, midnight), []models.PointEarningEvent{})

	assert.False(t, result.IsAnomaly)
}

func TestDetectAnomalyRapidBurst(t *testing.T) {
	svc := newDetector()
	history := []models.PointEarningEvent{
		event("s1", 40, schoolTime.Add(-2*time.Second)),
		event("s1", 45, schoolTime.Add(-90*time.Second)),
	}

	result := svc.DetectAnomaly(context.Background(), event("s1", 50, schoolTime), history)

	assert.True(t, result.IsAnomaly)
	assert.Equal(t, models.AnomalySuspiciousTiming, result.AnomalyType)
	assert.Equal(t, 0.6, result.Confidence)
}

func TestDetectAnomalyChecksRunInPriorityOrder(t *testing.T) {
	svc := newDetector()
	midnight := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)

	// Over the per-event limit and off-hours; the rate check wins.
	result := svc.DetectAnomaly(context.Background(), event("s1", 600, midnight), nil)

	assert.Equal(t, models.AnomalyRateLimit, result.AnomalyType)
	assert.Equal(t, 0.9, result.Confidence)
}

func TestTrackEventCapsHistory(t *testing.T) {
	store := NewMemoryEventStore()
	svc := NewAnomalyService(AnomalyConfig{}, store, zap.NewNop())

	for i := 0; i < maxTrackedEvents+20; i++ {
		svc.TrackEvent(context.Background(), event("s1", 10, schoolTime.Add(time.Duration(i)*time.Minute)))
	}

	history, err := store.Recent(context.Background(), "s1", 0)
	require.NoError(t, err)
	assert.Len(t, history, maxTrackedEvents)
	// Newest first.
	assert.True(t, history[0].Timestamp.After(history[1].Timestamp))
}

func TestAnalyzeLeaderboardNeedsFiveEntries(t *testing.T) {
	svc := newDetector()
	entries := []models.LeaderboardEntry{
		{StudentID: "s1", RewardPoints: 100},
		{StudentID: "s2", RewardPoints: 2000},
	}

	assert.Empty(t, svc.AnalyzeLeaderboard(entries))
}

func TestAnalyzeLeaderboardFlagsExtremeOutlier(t *testing.T) {
	svc := newDetector()

	// A single outlier only clears the stricter 4.5 sigma bar on a large
	// board, since it inflates the population spread itself.
	entries := make([]models.LeaderboardEntry, 0, 30)
	for i := 0; i < 29; i++ {
		entries = append(entries, models.LeaderboardEntry{StudentID: fmt.Sprintf("s%d", i), RewardPoints: 100})
	}
	entries = append(entries, models.LeaderboardEntry{StudentID: "cheater", RewardPoints: 10000})

	hits := svc.AnalyzeLeaderboard(entries)

	require.Contains(t, hits, "cheater")
	hit := hits["cheater"]
	assert.Equal(t, models.AnomalyOutlier, hit.AnomalyType)
	assert.Equal(t, 0.7, hit.Confidence)
	assert.Equal(t, models.ActionReview, hit.SuggestedAction)
	assert.Len(t, hits, 1)
}

func TestAnalyzeLeaderboardUniformBoardClean(t *testing.T) {
	svc := newDetector()
	entries := make([]models.LeaderboardEntry, 6)
	for i := range entries {
		entries[i] = models.LeaderboardEntry{StudentID: string(rune('a' + i)), RewardPoints: 100}
	}

	assert.Empty(t, svc.AnalyzeLeaderboard(entries))
}
