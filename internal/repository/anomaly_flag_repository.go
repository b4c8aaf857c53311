package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-rewards-api/internal/models"
)

// AnomalyFlagRepository manages persistence for anomaly detection hits.
type AnomalyFlagRepository struct {
	db *sqlx.DB
}

// NewAnomalyFlagRepository constructs a new repository.
func NewAnomalyFlagRepository(db *sqlx.DB) *AnomalyFlagRepository {
	return &AnomalyFlagRepository{db: db}
}

// Insert stores one flag.
func (r *AnomalyFlagRepository) Insert(ctx context.Context, flag *models.AnomalyFlag) error {
	if flag.ID == "" {
		flag.ID = uuid.NewString()
	}
	query := `INSERT INTO anomaly_flags (id, student_id, anomaly_type, confidence, details, action, resolved, created_at)
VALUES (:id, :student_id, :anomaly_type, :confidence, :details, :action, :resolved, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, flag); err != nil {
		return fmt.Errorf("insert anomaly flag: %w", err)
	}
	return nil
}

// List returns flags per provided filter, newest first.
func (r *AnomalyFlagRepository) List(ctx context.Context, filter models.AnomalyFlagFilter) ([]models.AnomalyFlag, int, error) {
	base := "FROM anomaly_flags"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Type != "" {
		where = append(where, fmt.Sprintf("anomaly_type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Resolved != nil {
		where = append(where, fmt.Sprintf("resolved = $%d", len(args)+1))
		args = append(args, *filter.Resolved)
	}
	whereClause := strings.Join(where, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size
	query := fmt.Sprintf(`SELECT id, student_id, anomaly_type, confidence, details, action, resolved, created_at
%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, whereClause, size, offset)
	var flags []models.AnomalyFlag
	if err := r.db.SelectContext(ctx, &flags, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list anomaly flags: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count anomaly flags: %w", err)
	}
	return flags, total, nil
}

// Resolve marks a flag as handled.
func (r *AnomalyFlagRepository) Resolve(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE anomaly_flags SET resolved = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("resolve anomaly flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve anomaly flag: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("anomaly flag %s not found", id)
	}
	return nil
}
