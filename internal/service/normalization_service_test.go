package service

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-rewards-api/internal/models"
)

func newNormalization() *NormalizationService {
	return NewNormalizationService(0, zap.NewNop())
}

func registerClass(svc *NormalizationService, contextID string, scores map[string]float64) {
	svc.RegisterContext(models.NormalizationContext{
		ID:             contextID,
		Kind:           "class",
		AverageScore:   70,
		StandardDev:    10,
		PopulationSize: len(scores),
	})
	for id, score := range scores {
		svc.RegisterStudentContext(models.StudentContext{
			StudentID: id,
			ContextID: contextID,
			RawScore:  score,
		})
	}
}

func TestNormalizeScoreZScore(t *testing.T) {
	svc := newNormalization()
	registerClass(svc, "c1", map[string]float64{"s1": 80})

	result := svc.NormalizeScore("s1", "c1", models.NormalizationOptions{Method: models.MethodZScore})

	// z = (80-70)/10 = 1 maps to (1+3)/6*100.
	require.NotNil(t, result.ZScore)
	assert.InDelta(t, 1.0, *result.ZScore, 1e-9)
	assert.InDelta(t, 66.666, result.NormalizedScore, 0.01)
}

func TestNormalizeScoreZScoreClipsExtremes(t *testing.T) {
	svc := newNormalization()
	registerClass(svc, "c1", map[string]float64{"s1": 200})

	result := svc.NormalizeScore("s1", "c1", models.NormalizationOptions{Method: models.MethodZScore})

	assert.Equal(t, 100.0, result.NormalizedScore)
}

func TestNormalizeScoreAdjustedZScoreSigmoid(t *testing.T) {
	svc := newNormalization()
	registerClass(svc, "c1", map[string]float64{"s1": 70})

	result := svc.NormalizeScore("s1", "c1", models.NormalizationOptions{Method: models.MethodAdjustedZScore})

	// z = 0 sits at the sigmoid midpoint.
	assert.InDelta(t, 50.0, result.NormalizedScore, 1e-9)
}

func TestNormalizeScorePercentile(t *testing.T) {
	svc := newNormalization()
	registerClass(svc, "c1", map[string]float64{"s1": 60, "s2": 70, "s3": 80, "s4": 90})

	result := svc.NormalizeScore("s3", "c1", models.NormalizationOptions{Method: models.MethodPercentile})

	require.NotNil(t, result.PercentileRank)
	assert.InDelta(t, 50.0, *result.PercentileRank, 1e-9)
	assert.InDelta(t, 50.0, result.NormalizedScore, 1e-9)
}

func TestNormalizeScoreMinMax(t *testing.T) {
	svc := newNormalization()
	registerClass(svc, "c1", map[string]float64{"s1": 60, "s2": 80, "s3": 100})

	result := svc.NormalizeScore("s2", "c1", models.NormalizationOptions{Method: models.MethodMinMax})

	assert.InDelta(t, 50.0, result.NormalizedScore, 1e-9)
}

func TestNormalizeScoreMinMaxDegenerateSpread(t *testing.T) {
	svc := newNormalization()
	registerClass(svc, "c1", map[string]float64{"s1": 75, "s2": 75})

	result := svc.NormalizeScore("s1", "c1", models.NormalizationOptions{Method: models.MethodMinMax})

	assert.Equal(t, 50.0, result.NormalizedScore)
}

func TestNormalizeScoreMissingStudentNeutral(t *testing.T) {
	svc := newNormalization()
	registerClass(svc, "c1", map[string]float64{"s1": 80})

	result := svc.NormalizeScore("ghost", "c1", models.NormalizationOptions{Method: models.MethodZScore})

	assert.Equal(t, 50.0, result.NormalizedScore)
	assert.Nil(t, result.ZScore)
}

func TestNormalizeScoreMissingContextNeutral(t *testing.T) {
	svc := newNormalization()
	svc.RegisterStudentContext(models.StudentContext{StudentID: "s1", ContextID: "c1", RawScore: 80})

	result := svc.NormalizeScore("s1", "c1", models.NormalizationOptions{Method: models.MethodZScore})

	assert.Equal(t, 50.0, result.NormalizedScore)
}

func TestNormalizeScoreDefaultsToZScore(t *testing.T) {
	svc := newNormalization()
	registerClass(svc, "c1", map[string]float64{"s1": 80})

	result := svc.NormalizeScore("s1", "c1", models.NormalizationOptions{})

	assert.Equal(t, models.MethodZScore, result.Method)
	require.NotNil(t, result.ZScore)
}

func TestNormalizeScoreDifficultyAdjustment(t *testing.T) {
	svc := newNormalization()
	rating := 8.0
	svc.RegisterContext(models.NormalizationContext{
		ID:               "c1",
		AverageScore:     70,
		StandardDev:      10,
		PopulationSize:   1,
		DifficultyRating: &rating,
	})
	svc.RegisterStudentContext(models.StudentContext{StudentID: "s1", ContextID: "c1", RawScore: 70})

	result := svc.NormalizeScore("s1", "c1", models.NormalizationOptions{
		Method:              models.MethodZScore,
		AdjustForDifficulty: true,
	})

	// Rating 8 gives factor 1.3, so the adjusted score beats the mean.
	require.NotNil(t, result.Adjustments.Difficulty)
	assert.InDelta(t, 1.3, *result.Adjustments.Difficulty, 1e-9)
	require.NotNil(t, result.ZScore)
	assert.Greater(t, *result.ZScore, 0.0)
}

func TestNormalizeScoreTimeSpentAdjustment(t *testing.T) {
	svc := newNormalization()
	registerClass(svc, "c1", nil)
	hours := 9.0
	svc.RegisterStudentContext(models.StudentContext{
		StudentID:      "s1",
		ContextID:      "c1",
		RawScore:       70,
		TimeSpentHours: &hours,
	})

	result := svc.NormalizeScore("s1", "c1", models.NormalizationOptions{
		Method:             models.MethodZScore,
		AdjustForTimeSpent: true,
	})

	require.NotNil(t, result.Adjustments.TimeSpent)
	assert.InDelta(t, 1+math.Log10(10)/10, *result.Adjustments.TimeSpent, 1e-9)
}

func TestNormalizeScoreLateJoinerAdjustmentCapped(t *testing.T) {
	svc := newNormalization()
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	registerClass(svc, "c1", nil)

	// Joined far into the term; the handicap caps at +20%.
	join := now.Add(-24 * time.Hour)
	svc.RegisterStudentContext(models.StudentContext{
		StudentID: "s1",
		ContextID: "c1",
		RawScore:  70,
		JoinDate:  &join,
	})

	result := svc.NormalizeScore("s1", "c1", models.NormalizationOptions{
		Method:            models.MethodZScore,
		AdjustForLateJoin: true,
	})

	require.NotNil(t, result.Adjustments.LateJoiner)
	assert.InDelta(t, 1.2, *result.Adjustments.LateJoiner, 1e-9)
}

func TestNormalizeScoreCompletionAdjustment(t *testing.T) {
	svc := newNormalization()
	registerClass(svc, "c1", nil)
	completed, total := 4, 10
	svc.RegisterStudentContext(models.StudentContext{
		StudentID:           "s1",
		ContextID:           "c1",
		RawScore:            70,
		ActivitiesCompleted: &completed,
		ActivitiesTotal:     &total,
	})

	result := svc.NormalizeScore("s1", "c1", models.NormalizationOptions{
		Method:              models.MethodZScore,
		AdjustForCompletion: true,
	})

	// 40% completion lands at 0.8 + 0.4*0.25 = 0.9.
	require.NotNil(t, result.Adjustments.CompletionRate)
	assert.InDelta(t, 0.9, *result.Adjustments.CompletionRate, 1e-9)
}

func TestNormalizeAllSortedAndComplete(t *testing.T) {
	svc := newNormalization()
	registerClass(svc, "c1", map[string]float64{"s3": 80, "s1": 60, "s2": 70})

	results := svc.NormalizeAll("c1", models.NormalizationOptions{Method: models.MethodMinMax})

	require.Len(t, results, 3)
	assert.Equal(t, "s1", results[0].StudentID)
	assert.Equal(t, "s2", results[1].StudentID)
	assert.Equal(t, "s3", results[2].StudentID)
}
