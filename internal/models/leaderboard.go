package models

import "time"

// LeaderboardEntry is one ranked row aggregated from point awards.
type LeaderboardEntry struct {
	Rank         int      `db:"rank" json:"rank"`
	StudentID    string   `db:"student_id" json:"student_id"`
	RewardPoints int      `db:"reward_points" json:"reward_points"`
	AwardCount   int      `db:"award_count" json:"award_count"`
	CappedCount  int      `db:"capped_count" json:"capped_count"`
	Normalized   *float64 `db:"-" json:"normalized,omitempty"`
}

// LeaderboardFilter scopes a leaderboard query.
type LeaderboardFilter struct {
	ActivityType ActivityType
	From         *time.Time
	To           *time.Time
	Limit        int
}

// ExportFormat selects the rendered artifact type.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportJobStatus tracks async export progress.
type ExportJobStatus string

const (
	ExportPending   ExportJobStatus = "pending"
	ExportRunning   ExportJobStatus = "running"
	ExportCompleted ExportJobStatus = "completed"
	ExportFailed    ExportJobStatus = "failed"
)

// ExportJob is the persisted state of one leaderboard export.
type ExportJob struct {
	ID          string          `db:"id" json:"id"`
	Format      ExportFormat    `db:"format" json:"format"`
	Status      ExportJobStatus `db:"status" json:"status"`
	FilePath    string          `db:"file_path" json:"-"`
	DownloadURL string          `db:"-" json:"download_url,omitempty"`
	Error       string          `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}
