package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-rewards-api/internal/models"
	"github.com/noah-isme/sma-rewards-api/pkg/storage"
)

type mockBoardRepo struct {
	entries []models.LeaderboardEntry
	err     error
	calls   int
}

func (m *mockBoardRepo) Entries(_ context.Context, _ models.LeaderboardFilter) ([]models.LeaderboardEntry, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.LeaderboardEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func newBoardFixture(t *testing.T, repo *mockBoardRepo) (*LeaderboardService, *mockFlagWriter) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test_export_secret", time.Hour)
	flags := &mockFlagWriter{}
	cache := NewCacheService(nil, nil, time.Minute, zap.NewNop(), false)
	svc := NewLeaderboardService(repo, cache, newNormalization(), newDetector(), flags, store, signer, LeaderboardOptions{}, zap.NewNop())
	return svc, flags
}

func TestLeaderboardAssignsRanks(t *testing.T) {
	repo := &mockBoardRepo{entries: []models.LeaderboardEntry{
		{StudentID: "s1", RewardPoints: 300},
		{StudentID: "s2", RewardPoints: 200},
		{StudentID: "s3", RewardPoints: 100},
	}}
	svc, _ := newBoardFixture(t, repo)

	entries, err := svc.Leaderboard(context.Background(), models.LeaderboardFilter{}, "", models.NormalizationOptions{})
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 3, entries[2].Rank)
	assert.Nil(t, entries[0].Normalized)
}

func TestLeaderboardNormalizationOverlay(t *testing.T) {
	repo := &mockBoardRepo{entries: []models.LeaderboardEntry{
		{StudentID: "s1", RewardPoints: 300},
		{StudentID: "unknown", RewardPoints: 200},
	}}
	svc, _ := newBoardFixture(t, repo)
	registerClass(svc.normalization, "c1", map[string]float64{"s1": 80})

	entries, err := svc.Leaderboard(context.Background(), models.LeaderboardFilter{}, "c1", models.NormalizationOptions{Method: models.MethodZScore})
	require.NoError(t, err)

	require.NotNil(t, entries[0].Normalized)
	assert.InDelta(t, 66.666, *entries[0].Normalized, 0.01)
	// Students without registered data fall back to the neutral midpoint.
	require.NotNil(t, entries[1].Normalized)
	assert.Equal(t, 50.0, *entries[1].Normalized)
}

func TestScanForAnomaliesPersistsFlags(t *testing.T) {
	entries := make([]models.LeaderboardEntry, 0, 30)
	for i := 0; i < 29; i++ {
		entries = append(entries, models.LeaderboardEntry{StudentID: string(rune('a' + i%26)) + string(rune('a'+i/26)), RewardPoints: 100})
	}
	entries = append(entries, models.LeaderboardEntry{StudentID: "cheater", RewardPoints: 10000})
	repo := &mockBoardRepo{entries: entries}
	svc, flags := newBoardFixture(t, repo)

	hits, err := svc.ScanForAnomalies(context.Background(), models.LeaderboardFilter{})
	require.NoError(t, err)

	require.Contains(t, hits, "cheater")
	require.Len(t, flags.flags, 1)
	assert.Equal(t, "cheater", flags.flags[0].StudentID)
	assert.Equal(t, models.AnomalyOutlier, flags.flags[0].AnomalyType)
}

func TestStartExportUnsupportedFormat(t *testing.T) {
	svc, _ := newBoardFixture(t, &mockBoardRepo{})

	_, err := svc.StartExport("xlsx", models.LeaderboardFilter{})
	assert.Error(t, err)
}

func TestExportLifecycle(t *testing.T) {
	repo := &mockBoardRepo{entries: []models.LeaderboardEntry{
		{StudentID: "s1", RewardPoints: 300},
		{StudentID: "s2", RewardPoints: 200},
	}}
	svc, _ := newBoardFixture(t, repo)
	svc.StartExports(context.Background())
	defer svc.StopExports()

	job, err := svc.StartExport(models.ExportCSV, models.LeaderboardFilter{})
	require.NoError(t, err)
	assert.Equal(t, models.ExportPending, job.Status)

	require.Eventually(t, func() bool {
		status, err := svc.ExportStatus(job.ID)
		return err == nil && status.Status == models.ExportCompleted
	}, 2*time.Second, 10*time.Millisecond)

	status, err := svc.ExportStatus(job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, status.DownloadURL)

	// Round trip the signed token through the download path.
	token, _, err := svc.signer.Generate(job.ID, status.FilePath)
	require.NoError(t, err)
	file, downloaded, err := svc.OpenExport(token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, models.ExportCompleted, downloaded.Status)
}

func TestExportStatusUnknownJob(t *testing.T) {
	svc, _ := newBoardFixture(t, &mockBoardRepo{})

	_, err := svc.ExportStatus("missing")
	assert.Error(t, err)
}

func TestOpenExportBadToken(t *testing.T) {
	svc, _ := newBoardFixture(t, &mockBoardRepo{})

	_, _, err := svc.OpenExport("garbage")
	assert.Error(t, err)
}
