package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-rewards-api/internal/models"
)

func newAwardRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPointAwardRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newAwardRepoMock(t)
	defer cleanup()

	repo := NewPointAwardRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO point_awards")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	award := &models.PointAward{
		StudentID:    "s1",
		ActivityType: models.ActivityQuiz,
		ActivityID:   "quiz-1",
		Points:       59,
		AwardedAt:    time.Now(),
	}
	require.NoError(t, repo.Insert(context.Background(), award))
	require.NotEmpty(t, award.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPointAwardRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newAwardRepoMock(t)
	defer cleanup()

	repo := NewPointAwardRepository(db)
	rows := sqlmock.NewRows([]string{"id", "student_id", "activity_type", "activity_id", "points", "was_capped", "awarded_at"}).
		AddRow("a1", "s1", "quiz", "quiz-1", 59, false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, activity_type")).
		WithArgs("s1", "quiz").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("s1", "quiz").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	awards, total, err := repo.List(context.Background(), models.AwardFilter{
		StudentID:    "s1",
		ActivityType: models.ActivityQuiz,
	})
	require.NoError(t, err)
	require.Len(t, awards, 1)
	require.Equal(t, 1, total)
	require.Equal(t, "a1", awards[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPointAwardRepositoryEntries(t *testing.T) {
	db, mock, cleanup := newAwardRepoMock(t)
	defer cleanup()

	repo := NewPointAwardRepository(db)
	rows := sqlmock.NewRows([]string{"student_id", "reward_points", "award_count", "capped_count"}).
		AddRow("s1", 300, 5, 1).
		AddRow("s2", 200, 4, 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id")).
		WillReturnRows(rows)

	entries, err := repo.Entries(context.Background(), models.LeaderboardFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "s1", entries[0].StudentID)
	require.Equal(t, 300, entries[0].RewardPoints)
	require.NoError(t, mock.ExpectationsWereMet())
}
