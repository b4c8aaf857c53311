package models

import "time"

// AnomalyType classifies a detected anomaly.
type AnomalyType string

const (
	AnomalyRateLimit        AnomalyType = "rate_limit"
	AnomalyOutlier          AnomalyType = "outlier"
	AnomalyUnusualPattern   AnomalyType = "unusual_pattern"
	AnomalySuspiciousTiming AnomalyType = "suspicious_timing"
)

// SuggestedAction tells the caller how to handle a flagged event.
type SuggestedAction string

const (
	ActionFlag   SuggestedAction = "flag"
	ActionReview SuggestedAction = "review"
	ActionBlock  SuggestedAction = "block"
)

// PointEarningEvent is one point grant as seen by the detector.
type PointEarningEvent struct {
	StudentID string            `db:"student_id" json:"student_id" validate:"required"`
	Amount    int               `db:"amount" json:"amount" validate:"gte=0"`
	Source    string            `db:"source" json:"source" validate:"required"`
	SourceID  string            `db:"source_id" json:"source_id,omitempty"`
	Timestamp time.Time         `db:"occurred_at" json:"timestamp"`
	Metadata  map[string]string `db:"-" json:"metadata,omitempty"`
}

// AnomalyDetectionResult reports the outcome of a detection pass.
type AnomalyDetectionResult struct {
	IsAnomaly       bool            `json:"is_anomaly"`
	AnomalyType     AnomalyType     `json:"anomaly_type,omitempty"`
	Confidence      float64         `json:"confidence"`
	Details         string          `json:"details,omitempty"`
	SuggestedAction SuggestedAction `json:"suggested_action,omitempty"`
}

// AnomalyFlag is the persisted record of a detection hit.
type AnomalyFlag struct {
	ID          string          `db:"id" json:"id"`
	StudentID   string          `db:"student_id" json:"student_id"`
	AnomalyType AnomalyType     `db:"anomaly_type" json:"anomaly_type"`
	Confidence  float64         `db:"confidence" json:"confidence"`
	Details     string          `db:"details" json:"details"`
	Action      SuggestedAction `db:"action" json:"action"`
	Resolved    bool            `db:"resolved" json:"resolved"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// AnomalyFlagFilter captures filtering criteria for listing flags.
type AnomalyFlagFilter struct {
	StudentID string
	Type      AnomalyType
	Resolved  *bool
	Page      int
	PageSize  int
}
