package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Adjaraux/academy-backend/internal/models"
)

type ProgressRepo struct {
	pool *pgxpool.Pool
}

func NewProgressRepo(pool *pgxpool.Pool) *ProgressRepo {
	return &ProgressRepo{pool: pool}
}

// Get returns the learner's progress row for a lesson; a zero-value row when
// none exists yet.
func (r *ProgressRepo) Get(ctx context.Context, userID, lessonID uuid.UUID) (*models.LessonProgress, error) {
	p := &models.LessonProgress{}
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, lesson_id, is_completed, last_played_second, completed_at, updated_at
		FROM lesson_progress WHERE user_id = $1 AND lesson_id = $2`,
		userID, lessonID).Scan(&p.UserID, &p.LessonID, &p.IsCompleted, &p.LastPlayedSecond, &p.CompletedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.LessonProgress{UserID: userID, LessonID: lessonID}, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Heartbeat persists the resume point. GREATEST keeps a stale or regressed
// tick from moving the persisted position backwards.
func (r *ProgressRepo) Heartbeat(ctx context.Context, userID, lessonID uuid.UUID, currentSeconds float64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lesson_progress (user_id, lesson_id, last_played_second)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, lesson_id) DO UPDATE
		SET last_played_second = GREATEST(lesson_progress.last_played_second, EXCLUDED.last_played_second),
			updated_at = NOW()`,
		userID, lessonID, currentSeconds)
	return err
}

func (r *ProgressRepo) SetCompletion(ctx context.Context, userID, lessonID uuid.UUID, completed bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lesson_progress (user_id, lesson_id, is_completed, completed_at)
		VALUES ($1, $2, $3, CASE WHEN $3 THEN NOW() ELSE NULL END)
		ON CONFLICT (user_id, lesson_id) DO UPDATE
		SET is_completed = EXCLUDED.is_completed,
			completed_at = CASE WHEN EXCLUDED.is_completed THEN NOW() ELSE NULL END,
			updated_at = NOW()`,
		userID, lessonID, completed)
	return err
}

// CompletedLessons returns the set of completed lesson ids for one learner
// in one course.
func (r *ProgressRepo) CompletedLessons(ctx context.Context, userID, courseID uuid.UUID) (map[uuid.UUID]bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.lesson_id FROM lesson_progress p
		JOIN lessons l ON l.id = p.lesson_id
		JOIN chapters ch ON ch.id = l.chapter_id
		WHERE p.user_id = $1 AND ch.course_id = $2 AND p.is_completed = TRUE`,
		userID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	completed := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		completed[id] = true
	}
	return completed, rows.Err()
}

// CourseProgress aggregates a learner's standing over one course, weighted
// by each lesson's score contribution.
func (r *ProgressRepo) CourseProgress(ctx context.Context, userID, courseID uuid.UUID) (*models.CourseProgress, error) {
	cp := &models.CourseProgress{CourseID: courseID}
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE p.is_completed),
			COUNT(*),
			COALESCE(SUM(l.weight) FILTER (WHERE p.is_completed), 0),
			COALESCE(SUM(l.weight), 0)
		FROM lessons l
		JOIN chapters ch ON ch.id = l.chapter_id
		LEFT JOIN lesson_progress p ON p.lesson_id = l.id AND p.user_id = $1
		WHERE ch.course_id = $2`,
		userID, courseID).Scan(&cp.CompletedLessons, &cp.TotalLessons, &cp.CompletedWeight, &cp.TotalWeight)
	if err != nil {
		return nil, err
	}
	if cp.TotalWeight > 0 {
		cp.PercentComplete = float64(cp.CompletedWeight) / float64(cp.TotalWeight) * 100
	}
	return cp, nil
}
