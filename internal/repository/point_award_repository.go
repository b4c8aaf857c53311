package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-rewards-api/internal/models"
)

// PointAwardRepository manages persistence for granted point awards.
type PointAwardRepository struct {
	db *sqlx.DB
}

// NewPointAwardRepository constructs a new repository.
func NewPointAwardRepository(db *sqlx.DB) *PointAwardRepository {
	return &PointAwardRepository{db: db}
}

// Insert stores a granted award.
func (r *PointAwardRepository) Insert(ctx context.Context, award *models.PointAward) error {
	if award.ID == "" {
		award.ID = uuid.NewString()
	}
	query := `INSERT INTO point_awards (id, student_id, activity_type, activity_id, points, was_capped, awarded_at)
VALUES (:id, :student_id, :activity_type, :activity_id, :points, :was_capped, :awarded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, award); err != nil {
		return fmt.Errorf("insert point award: %w", err)
	}
	return nil
}

// List returns awards per provided filter, newest first.
func (r *PointAwardRepository) List(ctx context.Context, filter models.AwardFilter) ([]models.PointAward, int, error) {
	base := "FROM point_awards"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ActivityType != "" {
		where = append(where, fmt.Sprintf("activity_type = $%d", len(args)+1))
		args = append(args, filter.ActivityType)
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("awarded_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("awarded_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
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
	query := fmt.Sprintf(`SELECT id, student_id, activity_type, activity_id, points, was_capped, awarded_at
%s WHERE %s ORDER BY awarded_at DESC LIMIT %d OFFSET %d`, base, whereClause, size, offset)
	var awards []models.PointAward
	if err := r.db.SelectContext(ctx, &awards, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list point awards: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count point awards: %w", err)
	}
	return awards, total, nil
}

// Entries aggregates awards into ranked leaderboard rows.
func (r *PointAwardRepository) Entries(ctx context.Context, filter models.LeaderboardFilter) ([]models.LeaderboardEntry, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ActivityType != "" {
		where = append(where, fmt.Sprintf("activity_type = $%d", len(args)+1))
		args = append(args, filter.ActivityType)
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("awarded_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("awarded_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT student_id,
        COALESCE(SUM(points),0) AS reward_points,
        COUNT(*) AS award_count,
        COALESCE(SUM(CASE WHEN was_capped THEN 1 ELSE 0 END),0) AS capped_count
FROM point_awards
WHERE %s
GROUP BY student_id
ORDER BY reward_points DESC, student_id ASC
LIMIT %d`, strings.Join(where, " AND "), limit)
	var entries []models.LeaderboardEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("leaderboard entries: %w", err)
	}
	return entries, nil
}
