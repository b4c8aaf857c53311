package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-rewards-api/internal/models"
)

// PointEventRepository persists the point earning event trail used for
// anomaly analysis and audits.
type PointEventRepository struct {
	db *sqlx.DB
}

// NewPointEventRepository constructs a new repository.
func NewPointEventRepository(db *sqlx.DB) *PointEventRepository {
	return &PointEventRepository{db: db}
}

// Insert stores one event.
func (r *PointEventRepository) Insert(ctx context.Context, event models.PointEarningEvent) error {
	query := `INSERT INTO point_events (student_id, amount, source, source_id, occurred_at)
VALUES (:student_id, :amount, :source, :source_id, :occurred_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("insert point event: %w", err)
	}
	return nil
}

// Append stores one event; it satisfies the detector's history store
// contract so deployments can analyse against the durable trail.
func (r *PointEventRepository) Append(ctx context.Context, event models.PointEarningEvent) error {
	return r.Insert(ctx, event)
}

// Recent returns up to limit events for the student, newest first.
func (r *PointEventRepository) Recent(ctx context.Context, studentID string, limit int) ([]models.PointEarningEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT student_id, amount, source, source_id, occurred_at
FROM point_events WHERE student_id = $1 ORDER BY occurred_at DESC LIMIT %d`, limit)
	var events []models.PointEarningEvent
	if err := r.db.SelectContext(ctx, &events, query, studentID); err != nil {
		return nil, fmt.Errorf("recent point events: %w", err)
	}
	return events, nil
}
