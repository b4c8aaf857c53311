package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-rewards-api/internal/models"
	appErrors "github.com/noah-isme/sma-rewards-api/pkg/errors"
	"github.com/noah-isme/sma-rewards-api/pkg/export"
	"github.com/noah-isme/sma-rewards-api/pkg/jobs"
	"github.com/noah-isme/sma-rewards-api/pkg/storage"
)

type leaderboardRepo interface {
	Entries(ctx context.Context, filter models.LeaderboardFilter) ([]models.LeaderboardEntry, error)
}

// Exporter renders a tabular dataset into a downloadable artifact.
type Exporter interface {
	Render(data export.Dataset) ([]byte, error)
}

// LeaderboardOptions tunes caching and exports.
type LeaderboardOptions struct {
	CacheTTL      time.Duration
	DefaultLimit  int
	ExportWorkers int
	ExportRetries int
}

// LeaderboardService serves ranked boards aggregated from point awards,
// overlays normalized scores, scans boards for population-level anomalies
// and runs exports asynchronously.
type LeaderboardService struct {
	repo          leaderboardRepo
	cache         *CacheService
	normalization *NormalizationService
	anomalies     *AnomalyService
	flags         flagWriter
	exporters     map[models.ExportFormat]Exporter
	storage       *storage.LocalStorage
	signer        *storage.SignedURLSigner
	queue         *jobs.Queue
	opts          LeaderboardOptions
	logger        *zap.Logger
	now           func() time.Time

	mu      sync.RWMutex
	exports map[string]*models.ExportJob
}

// NewLeaderboardService constructs the service. The export queue is created
// here so the handler closes over the service; callers start and stop it via
// StartExports/StopExports.
func NewLeaderboardService(repo leaderboardRepo, cache *CacheService, normalization *NormalizationService, anomalies *AnomalyService, flags flagWriter, store *storage.LocalStorage, signer *storage.SignedURLSigner, opts LeaderboardOptions, logger *zap.Logger) *LeaderboardService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 2 * time.Minute
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &LeaderboardService{
		repo:          repo,
		cache:         cache,
		normalization: normalization,
		anomalies:     anomalies,
		flags:         flags,
		exporters: map[models.ExportFormat]Exporter{
			models.ExportCSV: export.NewCSVExporter(),
			models.ExportPDF: export.NewPDFExporter(),
		},
		storage: store,
		signer:  signer,
		opts:    opts,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		exports: make(map[string]*models.ExportJob),
	}
	s.queue = jobs.NewQueue("leaderboard-exports", s.handleExportJob, jobs.Options{
		Workers:    opts.ExportWorkers,
		MaxRetries: opts.ExportRetries,
		Logger:     logger,
	})
	return s
}

// StartExports starts the export worker pool.
func (s *LeaderboardService) StartExports(ctx context.Context) {
	s.queue.Start(ctx)
}

// StopExports drains the export worker pool.
func (s *LeaderboardService) StopExports() {
	s.queue.Stop()
}

// Leaderboard returns ranked entries for the filter, cache-aside. When a
// normalization context is given each student's normalized score from that
// context is attached to their row.
func (s *LeaderboardService) Leaderboard(ctx context.Context, filter models.LeaderboardFilter, normalizeContext string, normOpts models.NormalizationOptions) ([]models.LeaderboardEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = s.opts.DefaultLimit
	}

	key := leaderboardCacheKey(filter)
	var entries []models.LeaderboardEntry
	hit, _ := s.cache.Get(ctx, key, &entries)
	if !hit {
		var err error
		entries, err = s.repo.Entries(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leaderboard")
		}
		for i := range entries {
			entries[i].Rank = i + 1
		}
		if err := s.cache.Set(ctx, key, entries, s.opts.CacheTTL); err != nil {
			s.logger.Warn("leaderboard cache write failed", zap.Error(err))
		}
	}

	if normalizeContext != "" && s.normalization != nil {
		for i := range entries {
			score := s.normalization.NormalizeScore(entries[i].StudentID, normalizeContext, normOpts)
			normalized := score.NormalizedScore
			entries[i].Normalized = &normalized
		}
	}
	return entries, nil
}

// Invalidate drops cached boards, e.g. after a batch of awards.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "leaderboard:*"); err != nil {
		s.logger.Warn("leaderboard cache invalidation failed", zap.Error(err))
	}
}

// ScanForAnomalies loads the board uncached, runs the population outlier
// scan and persists a flag for each hit.
func (s *LeaderboardService) ScanForAnomalies(ctx context.Context, filter models.LeaderboardFilter) (map[string]models.AnomalyDetectionResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = s.opts.DefaultLimit
	}
	entries, err := s.repo.Entries(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leaderboard")
	}

	hits := s.anomalies.AnalyzeLeaderboard(entries)
	now := s.now()
	for studentID, hit := range hits {
		flag := &models.AnomalyFlag{
			ID:          uuid.NewString(),
			StudentID:   studentID,
			AnomalyType: hit.AnomalyType,
			Confidence:  hit.Confidence,
			Details:     hit.Details,
			Action:      hit.SuggestedAction,
			CreatedAt:   now,
		}
		if s.flags != nil {
			if err := s.flags.Insert(ctx, flag); err != nil {
				s.logger.Warn("failed to persist scan flag", zap.String("student_id", studentID), zap.Error(err))
			}
		}
	}
	s.logger.Info("leaderboard scan finished", zap.Int("entries", len(entries)), zap.Int("hits", len(hits)))
	return hits, nil
}

type exportPayload struct {
	Filter models.LeaderboardFilter
}

// StartExport registers a pending export job and enqueues it.
func (s *LeaderboardService) StartExport(format models.ExportFormat, filter models.LeaderboardFilter) (*models.ExportJob, error) {
	if _, ok := s.exporters[format]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	job := &models.ExportJob{
		ID:        uuid.NewString(),
		Format:    format,
		Status:    models.ExportPending,
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	s.exports[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Kind: "leaderboard-export", Payload: exportPayload{Filter: filter}}); err != nil {
		s.setExportFailed(job.ID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}
	return snapshotJob(job), nil
}

// ExportStatus returns the job state, with a signed download URL once the
// artifact is ready.
func (s *LeaderboardService) ExportStatus(jobID string) (*models.ExportJob, error) {
	s.mu.RLock()
	job, ok := s.exports[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	out := snapshotJob(job)
	if out.Status == models.ExportCompleted && s.signer != nil {
		token, _, err := s.signer.Generate(out.ID, out.FilePath)
		if err != nil {
			s.logger.Warn("failed to sign download url", zap.String("job_id", out.ID), zap.Error(err))
		} else {
			out.DownloadURL = "/api/v1/leaderboard/exports/download?token=" + token
		}
	}
	return out, nil
}

// OpenExport validates the signed token and opens the artifact for download.
func (s *LeaderboardService) OpenExport(token string) (*os.File, *models.ExportJob, error) {
	jobID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}

	s.mu.RLock()
	job, ok := s.exports[jobID]
	s.mu.RUnlock()
	if !ok || job.Status != models.ExportCompleted || job.FilePath != relPath {
		return nil, nil, appErrors.ErrExportNotReady
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export artifact")
	}
	return file, snapshotJob(job), nil
}

func (s *LeaderboardService) handleExportJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportPayload)
	if !ok {
		s.setExportFailed(job.ID, fmt.Errorf("unexpected payload type %T", job.Payload))
		return nil
	}

	s.setExportStatus(job.ID, models.ExportRunning)

	s.mu.RLock()
	record := s.exports[job.ID]
	s.mu.RUnlock()
	if record == nil {
		return nil
	}

	entries, err := s.repo.Entries(ctx, payload.Filter)
	if err != nil {
		s.setExportFailed(job.ID, err)
		return err
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	exporter := s.exporters[record.Format]
	data, err := exporter.Render(leaderboardDataset(entries))
	if err != nil {
		s.setExportFailed(job.ID, err)
		return nil
	}

	filename := fmt.Sprintf("%s/leaderboard.%s", job.ID, record.Format)
	relPath, err := s.storage.Save(filename, data)
	if err != nil {
		s.setExportFailed(job.ID, err)
		return err
	}

	now := s.now()
	s.mu.Lock()
	record.Status = models.ExportCompleted
	record.FilePath = relPath
	record.CompletedAt = &now
	s.mu.Unlock()

	s.logger.Info("export completed", zap.String("job_id", job.ID), zap.String("format", string(record.Format)), zap.Int("rows", len(entries)))
	return nil
}

func (s *LeaderboardService) setExportStatus(jobID string, status models.ExportJobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.exports[jobID]; ok {
		job.Status = status
	}
}

func (s *LeaderboardService) setExportFailed(jobID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.exports[jobID]; ok {
		job.Status = models.ExportFailed
		job.Error = err.Error()
	}
}

func snapshotJob(job *models.ExportJob) *models.ExportJob {
	clone := *job
	return &clone
}

func leaderboardCacheKey(filter models.LeaderboardFilter) string {
	from, to := "", ""
	if filter.From != nil {
		from = filter.From.UTC().Format(time.RFC3339)
	}
	if filter.To != nil {
		to = filter.To.UTC().Format(time.RFC3339)
	}
	return "leaderboard:" + string(filter.ActivityType) + ":" + from + ":" + to + ":" + strconv.Itoa(filter.Limit)
}

func leaderboardDataset(entries []models.LeaderboardEntry) export.Dataset {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			strconv.Itoa(entry.Rank),
			entry.StudentID,
			strconv.Itoa(entry.RewardPoints),
			strconv.Itoa(entry.AwardCount),
			strconv.Itoa(entry.CappedCount),
		})
	}
	return export.Dataset{
		Title:   "Leaderboard",
		Headers: []string{"Rank", "Student", "Points", "Awards", "Capped"},
		Rows:    rows,
	}
}
