package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-rewards-api/internal/models"
)

// maxTrackedEvents caps the per-student history kept for analysis.
const maxTrackedEvents = 100

// EventHistoryStore abstracts the capped per-student event history.
type EventHistoryStore interface {
	Append(ctx context.Context, event models.PointEarningEvent) error
	Recent(ctx context.Context, studentID string, limit int) ([]models.PointEarningEvent, error)
}

// AnomalyConfig carries the detection thresholds.
type AnomalyConfig struct {
	MaxPointsPerEvent       int
	MaxPointsPerWindow      int
	RateWindow              time.Duration
	OutlierThreshold        float64
	MinEventsForAnalysis    int
	MaxDailyIncreasePercent float64
	SchoolHoursStart        int
	SchoolHoursEnd          int
}

// AnomalyService runs heuristic and statistical fraud checks over point
// earning events. Checks execute in a fixed priority order and the first
// hit wins.
type AnomalyService struct {
	cfg    AnomalyConfig
	events EventHistoryStore
	logger *zap.Logger
	now    func() time.Time
}

// NewAnomalyService constructs the detector with sane threshold defaults.
func NewAnomalyService(cfg AnomalyConfig, events EventHistoryStore, logger *zap.Logger) *AnomalyService {
	if cfg.MaxPointsPerEvent <= 0 {
		cfg.MaxPointsPerEvent = 500
	}
	if cfg.MaxPointsPerWindow <= 0 {
		cfg.MaxPointsPerWindow = 1000
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Hour
	}
	if cfg.OutlierThreshold <= 0 {
		cfg.OutlierThreshold = 3.0
	}
	if cfg.MinEventsForAnalysis <= 0 {
		cfg.MinEventsForAnalysis = 10
	}
	if cfg.MaxDailyIncreasePercent <= 0 {
		cfg.MaxDailyIncreasePercent = 200
	}
	if cfg.SchoolHoursEnd <= cfg.SchoolHoursStart {
		cfg.SchoolHoursStart = 7
		cfg.SchoolHoursEnd = 18
	}
	if events == nil {
		events = NewMemoryEventStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnomalyService{
		cfg:    cfg,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// TrackEvent appends the event to the student's capped history.
func (s *AnomalyService) TrackEvent(ctx context.Context, event models.PointEarningEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.Warn("event tracking failed", zap.String("student_id", event.StudentID), zap.Error(err))
	}
}

// DetectAnomaly runs the check pipeline for one event. When history is nil
// the student's tracked history is loaded from the store. Detection never
// errors; storage problems degrade to "not an anomaly".
func (s *AnomalyService) DetectAnomaly(ctx context.Context, event models.PointEarningEvent, history []models.PointEarningEvent) models.AnomalyDetectionResult {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if history == nil {
		loaded, err := s.events.Recent(ctx, event.StudentID, maxTrackedEvents)
		if err != nil {
			s.logger.Warn("history load failed", zap.String("student_id", event.StudentID), zap.Error(err))
		}
		history = loaded
	}

	checks := []func(models.PointEarningEvent, []models.PointEarningEvent) *models.AnomalyDetectionResult{
		s.checkRateLimit,
		s.checkOutlier,
		s.checkUnusualPattern,
		s.checkSuspiciousTiming,
	}
	for _, check := range checks {
		if hit := check(event, history); hit != nil {
			return *hit
		}
	}
	return models.AnomalyDetectionResult{IsAnomaly: false, Confidence: 0}
}

// AnalyzeLeaderboard flags population-level outliers across the whole board.
// At least five entries are required for a meaningful spread.
func (s *AnomalyService) AnalyzeLeaderboard(entries []models.LeaderboardEntry) map[string]models.AnomalyDetectionResult {
	results := make(map[string]models.AnomalyDetectionResult)
	if len(entries) < 5 {
		return results
	}

	amounts := make([]float64, len(entries))
	for i, entry := range entries {
		amounts[i] = float64(entry.RewardPoints)
	}
	mean, stddev := meanStddev(amounts)
	if stddev == 0 {
		return results
	}

	// Population scans use a stricter bar than per-event analysis.
	threshold := s.cfg.OutlierThreshold * 1.5
	for _, entry := range entries {
		z := math.Abs(float64(entry.RewardPoints)-mean) / stddev
		if z > threshold {
			results[entry.StudentID] = models.AnomalyDetectionResult{
				IsAnomaly:       true,
				AnomalyType:     models.AnomalyOutlier,
				Confidence:      0.7,
				Details:         fmt.Sprintf("total %d points is %.1f standard deviations from the board mean %.1f", entry.RewardPoints, z, mean),
				SuggestedAction: models.ActionReview,
			}
		}
	}
	return results
}

func (s *AnomalyService) checkRateLimit(event models.PointEarningEvent, history []models.PointEarningEvent) *models.AnomalyDetectionResult {
	if event.Amount > s.cfg.MaxPointsPerEvent {
		return &models.AnomalyDetectionResult{
			IsAnomaly:       true,
			AnomalyType:     models.AnomalyRateLimit,
			Confidence:      0.9,
			Details:         fmt.Sprintf("single event of %d points exceeds the %d point limit", event.Amount, s.cfg.MaxPointsPerEvent),
			SuggestedAction: models.ActionReview,
		}
	}

	windowStart := event.Timestamp.Add(-s.cfg.RateWindow)
	total := event.Amount
	for _, past := range history {
		if past.Timestamp.After(windowStart) {
			total += past.Amount
		}
	}
	if total > s.cfg.MaxPointsPerWindow {
		return &models.AnomalyDetectionResult{
			IsAnomaly:       true,
			AnomalyType:     models.AnomalyRateLimit,
			Confidence:      0.8,
			Details:         fmt.Sprintf("%d points inside %s exceeds the %d point window limit", total, s.cfg.RateWindow, s.cfg.MaxPointsPerWindow),
			SuggestedAction: models.ActionFlag,
		}
	}
	return nil
}

func (s *AnomalyService) checkOutlier(event models.PointEarningEvent, history []models.PointEarningEvent) *models.AnomalyDetectionResult {
	if len(history) < s.cfg.MinEventsForAnalysis {
		return nil
	}

	amounts := make([]float64, len(history))
	for i, past := range history {
		amounts[i] = float64(past.Amount)
	}
	mean, stddev := meanStddev(amounts)
	if stddev == 0 {
		return nil
	}

	z := math.Abs(float64(event.Amount)-mean) / stddev
	if z <= s.cfg.OutlierThreshold {
		return nil
	}

	confidence := math.Min(0.95, 0.5+(z-s.cfg.OutlierThreshold)*0.15)
	action := models.ActionFlag
	if confidence > 0.8 {
		action = models.ActionReview
	}
	return &models.AnomalyDetectionResult{
		IsAnomaly:       true,
		AnomalyType:     models.AnomalyOutlier,
		Confidence:      confidence,
		Details:         fmt.Sprintf("%d points is %.1f standard deviations from the student's mean %.1f", event.Amount, z, mean),
		SuggestedAction: action,
	}
}

func (s *AnomalyService) checkUnusualPattern(event models.PointEarningEvent, history []models.PointEarningEvent) *models.AnomalyDetectionResult {
	dayAgo := event.Timestamp.Add(-24 * time.Hour)

	// Repeated identical grants from the same source within a day.
	identical := 1
	for _, past := range history {
		if past.Timestamp.After(dayAgo) && past.Amount == event.Amount && past.Source == event.Source {
			identical++
		}
	}
	if identical >= 5 {
		return &models.AnomalyDetectionResult{
			IsAnomaly:       true,
			AnomalyType:     models.AnomalyUnusualPattern,
			Confidence:      0.7,
			Details:         fmt.Sprintf("%d identical %d point grants from %q within 24h", identical, event.Amount, event.Source),
			SuggestedAction: models.ActionFlag,
		}
	}

	// Today's haul versus the student's historical daily median.
	today := event.Timestamp.Format("2006-01-02")
	dailyTotals := make(map[string]int)
	for _, past := range history {
		dailyTotals[past.Timestamp.Format("2006-01-02")] += past.Amount
	}
	todayTotal := dailyTotals[today] + event.Amount
	delete(dailyTotals, today)
	if len(dailyTotals) == 0 {
		return nil
	}

	totals := make([]float64, 0, len(dailyTotals))
	for _, total := range dailyTotals {
		totals = append(totals, float64(total))
	}
	med := median(totals)
	if med > 0 && float64(todayTotal) > med*(1+s.cfg.MaxDailyIncreasePercent/100) {
		return &models.AnomalyDetectionResult{
			IsAnomaly:       true,
			AnomalyType:     models.AnomalyUnusualPattern,
			Confidence:      0.6,
			Details:         fmt.Sprintf("today's %d points far exceeds the usual daily total of %.0f", todayTotal, med),
			SuggestedAction: models.ActionFlag,
		}
	}
	return nil
}

func (s *AnomalyService) checkSuspiciousTiming(event models.PointEarningEvent, history []models.PointEarningEvent) *models.AnomalyDetectionResult {
	hour := event.Timestamp.Hour()
	if (hour < s.cfg.SchoolHoursStart || hour >= s.cfg.SchoolHoursEnd) && event.Amount > s.cfg.MaxPointsPerEvent/2 {
		return &models.AnomalyDetectionResult{
			IsAnomaly:       true,
			AnomalyType:     models.AnomalySuspiciousTiming,
			Confidence:      0.5,
			Details:         fmt.Sprintf("%d points earned at %02d:00, outside school hours", event.Amount, hour),
			SuggestedAction: models.ActionFlag,
		}
	}

	// Bursts: any sub-5s gap among the three most recent events.
	recent := append([]models.PointEarningEvent{event}, history...)
	sort.Slice(recent, func(i, j int) bool { return recent[i].Timestamp.After(recent[j].Timestamp) })
	if len(recent) > 3 {
		recent = recent[:3]
	}
	if len(recent) == 3 {
		minGap := time.Duration(math.MaxInt64)
		for i := 0; i < len(recent)-1; i++ {
			gap := recent[i].Timestamp.Sub(recent[i+1].Timestamp)
			if gap < minGap {
				minGap = gap
			}
		}
		if minGap < 5*time.Second {
			return &models.AnomalyDetectionResult{
				IsAnomaly:       true,
				AnomalyType:     models.AnomalySuspiciousTiming,
				Confidence:      0.6,
				Details:         fmt.Sprintf("events only %s apart", minGap),
				SuggestedAction: models.ActionFlag,
			}
		}
	}
	return nil
}

func meanStddev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// MemoryEventStore is the in-process EventHistoryStore default, keeping the
// most recent events newest-first per student.
type MemoryEventStore struct {
	mu     sync.Mutex
	events map[string][]models.PointEarningEvent
}

// NewMemoryEventStore constructs an empty store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[string][]models.PointEarningEvent)}
}

// Append records the event, trimming the history to the tracked cap.
func (m *MemoryEventStore) Append(_ context.Context, event models.PointEarningEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := append([]models.PointEarningEvent{event}, m.events[event.StudentID]...)
	sort.SliceStable(history, func(i, j int) bool { return history[i].Timestamp.After(history[j].Timestamp) })
	if len(history) > maxTrackedEvents {
		history = history[:maxTrackedEvents]
	}
	m.events[event.StudentID] = history
	return nil
}

// Recent returns up to limit events, newest first.
func (m *MemoryEventStore) Recent(_ context.Context, studentID string, limit int) ([]models.PointEarningEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := m.events[studentID]
	if limit <= 0 || limit > len(history) {
		limit = len(history)
	}
	return append([]models.PointEarningEvent(nil), history[:limit]...), nil
}
