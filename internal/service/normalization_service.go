package service

import (
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-rewards-api/internal/models"
)

// neutralScore is returned whenever there is not enough information to
// normalize (missing context, empty population, degenerate spread).
const neutralScore = 50.0

// NormalizationService makes scores from different contexts (classes,
// subjects, campuses) comparable on a common 0-100 scale. Contexts and
// student data are registered explicitly by the caller before use.
type NormalizationService struct {
	mu       sync.RWMutex
	contexts map[string]models.NormalizationContext
	students map[string]map[string]models.StudentContext

	termLookback time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewNormalizationService constructs the service. termLookback is how far
// before "now" the current term is assumed to have started; it drives the
// late-joiner handicap.
func NewNormalizationService(termLookback time.Duration, logger *zap.Logger) *NormalizationService {
	if termLookback <= 0 {
		termLookback = 4 * 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NormalizationService{
		contexts:     make(map[string]models.NormalizationContext),
		students:     make(map[string]map[string]models.StudentContext),
		termLookback: termLookback,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// RegisterContext upserts a comparison scope keyed by its ID.
func (s *NormalizationService) RegisterContext(ctx models.NormalizationContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[ctx.ID] = ctx
}

// RegisterStudentContext upserts one student's raw data in a scope.
func (s *NormalizationService) RegisterStudentContext(sc models.StudentContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byStudent, ok := s.students[sc.ContextID]
	if !ok {
		byStudent = make(map[string]models.StudentContext)
		s.students[sc.ContextID] = byStudent
	}
	byStudent[sc.StudentID] = sc
}

// NormalizeScore normalizes a single student's score within a context.
// Missing data never errors; the neutral midpoint is returned instead.
func (s *NormalizationService) NormalizeScore(studentID, contextID string, opts models.NormalizationOptions) models.NormalizedScore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.normalizeLocked(studentID, contextID, opts)
}

// NormalizeAll normalizes every registered student in the context.
func (s *NormalizationService) NormalizeAll(contextID string, opts models.NormalizationOptions) []models.NormalizedScore {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byStudent := s.students[contextID]
	ids := make([]string, 0, len(byStudent))
	for id := range byStudent {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]models.NormalizedScore, 0, len(ids))
	for _, id := range ids {
		results = append(results, s.normalizeLocked(id, contextID, opts))
	}
	return results
}

func (s *NormalizationService) normalizeLocked(studentID, contextID string, opts models.NormalizationOptions) models.NormalizedScore {
	method := opts.Method
	if method == "" {
		method = models.MethodZScore
	}

	result := models.NormalizedScore{
		StudentID:       studentID,
		ContextID:       contextID,
		NormalizedScore: neutralScore,
		Method:          method,
	}

	context, hasContext := s.contexts[contextID]
	student, hasStudent := s.students[contextID][studentID]
	if !hasStudent {
		return result
	}
	result.RawScore = student.RawScore

	adjusted := s.adjust(student, context, hasContext, opts, &result.Adjustments)

	switch method {
	case models.MethodZScore:
		if !hasContext || context.PopulationSize == 0 {
			return result
		}
		z := zScore(adjusted, context.AverageScore, context.StandardDev)
		result.ZScore = &z
		result.NormalizedScore = rescaleZ(z)
	case models.MethodAdjustedZScore:
		if !hasContext || context.PopulationSize == 0 {
			return result
		}
		z := zScore(adjusted, context.AverageScore, context.StandardDev)
		result.ZScore = &z
		result.NormalizedScore = sigmoid(z) * 100
	case models.MethodPercentile:
		scores := s.rawScoresLocked(contextID)
		if len(scores) == 0 {
			return result
		}
		below := 0
		for _, score := range scores {
			if score < adjusted {
				below++
			}
		}
		rank := float64(below) / float64(len(scores)) * 100
		result.PercentileRank = &rank
		result.NormalizedScore = rank
	case models.MethodMinMax:
		scores := s.rawScoresLocked(contextID)
		if len(scores) == 0 {
			return result
		}
		lo, hi := scores[0], scores[0]
		for _, score := range scores[1:] {
			if score < lo {
				lo = score
			}
			if score > hi {
				hi = score
			}
		}
		if hi == lo {
			return result
		}
		result.NormalizedScore = clamp((adjusted-lo)/(hi-lo)*100, 0, 100)
	default:
		return result
	}

	return result
}

// adjust applies the optional multiplicative adjustments to the raw score
// before normalization and records each applied factor.
func (s *NormalizationService) adjust(student models.StudentContext, context models.NormalizationContext, hasContext bool, opts models.NormalizationOptions, applied *models.ScoreAdjustments) float64 {
	score := student.RawScore

	if opts.AdjustForDifficulty && hasContext && context.DifficultyRating != nil {
		factor := 1 + (*context.DifficultyRating-5)/10
		score *= factor
		applied.Difficulty = &factor
	}

	if opts.AdjustForTimeSpent && student.TimeSpentHours != nil && *student.TimeSpentHours >= 0 {
		factor := 1 + math.Log10(1+*student.TimeSpentHours)/10
		score *= factor
		applied.TimeSpent = &factor
	}

	if opts.AdjustForLateJoin && student.JoinDate != nil {
		termStart := s.now().Add(-s.termLookback)
		daysLate := student.JoinDate.Sub(termStart).Hours() / 24
		if daysLate > 0 {
			factor := 1 + math.Min(0.2, daysLate/120)
			score *= factor
			applied.LateJoiner = &factor
		}
	}

	if opts.AdjustForCompletion && student.ActivitiesCompleted != nil && student.ActivitiesTotal != nil && *student.ActivitiesTotal > 0 {
		rate := float64(*student.ActivitiesCompleted) / float64(*student.ActivitiesTotal)
		var factor float64
		if rate <= 0.8 {
			factor = 0.8 + rate*0.25
		} else {
			factor = 1 + (rate-0.8)*0.1
		}
		score *= factor
		applied.CompletionRate = &factor
	}

	return score
}

func (s *NormalizationService) rawScoresLocked(contextID string) []float64 {
	byStudent := s.students[contextID]
	scores := make([]float64, 0, len(byStudent))
	for _, sc := range byStudent {
		scores = append(scores, sc.RawScore)
	}
	return scores
}

func zScore(value, mean, stddev float64) float64 {
	if stddev == 0 {
		return 0
	}
	return (value - mean) / stddev
}

// rescaleZ clips z to [-3,3] and maps it linearly onto [0,100].
func rescaleZ(z float64) float64 {
	return (clamp(z, -3, 3) + 3) / 6 * 100
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
