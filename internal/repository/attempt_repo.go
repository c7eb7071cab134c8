package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Adjaraux/academy-backend/internal/models"
)

type AttemptRepo struct {
	pool *pgxpool.Pool
}

func NewAttemptRepo(pool *pgxpool.Pool) *AttemptRepo {
	return &AttemptRepo{pool: pool}
}

func (r *AttemptRepo) Create(ctx context.Context, a *models.QuizAttempt) error {
	a.ID = uuid.New()
	a.StartedAt = time.Now()
	if len(a.AnswersJSON) == 0 {
		a.AnswersJSON = json.RawMessage("{}")
	}
	query := `INSERT INTO quiz_attempts (id, lesson_id, user_id, question_ids_json, answers_json, allotted_seconds, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.LessonID, a.UserID, a.QuestionIDsJSON, a.AnswersJSON, a.AllottedSeconds, a.StartedAt)
	return err
}

func (r *AttemptRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error) {
	a := &models.QuizAttempt{}
	query := `SELECT id, lesson_id, user_id, question_ids_json, answers_json, allotted_seconds,
		passed, score_percent, started_at, completed_at, time_taken_seconds
		FROM quiz_attempts WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.LessonID, &a.UserID, &a.QuestionIDsJSON, &a.AnswersJSON, &a.AllottedSeconds,
		&a.Passed, &a.ScorePercent, &a.StartedAt, &a.CompletedAt, &a.TimeTakenSeconds,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetActive returns the learner's open attempt on a lesson, or nil. There is
// at most one: Create callers close the previous attempt first.
func (r *AttemptRepo) GetActive(ctx context.Context, userID, lessonID uuid.UUID) (*models.QuizAttempt, error) {
	a := &models.QuizAttempt{}
	query := `SELECT id, lesson_id, user_id, question_ids_json, answers_json, allotted_seconds,
		passed, score_percent, started_at, completed_at, time_taken_seconds
		FROM quiz_attempts
		WHERE user_id = $1 AND lesson_id = $2 AND completed_at IS NULL
		ORDER BY started_at DESC LIMIT 1`

	err := r.pool.QueryRow(ctx, query, userID, lessonID).Scan(
		&a.ID, &a.LessonID, &a.UserID, &a.QuestionIDsJSON, &a.AnswersJSON, &a.AllottedSeconds,
		&a.Passed, &a.ScorePercent, &a.StartedAt, &a.CompletedAt, &a.TimeTakenSeconds,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Abandon closes any open attempt the learner has on the lesson without
// scoring it, so a fresh start issues a genuinely new attempt.
func (r *AttemptRepo) Abandon(ctx context.Context, userID, lessonID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE quiz_attempts
		SET completed_at = NOW(),
			time_taken_seconds = EXTRACT(EPOCH FROM (NOW() - started_at))::INTEGER
		WHERE user_id = $1 AND lesson_id = $2 AND completed_at IS NULL AND passed IS NULL`,
		userID, lessonID)
	return err
}

func (r *AttemptRepo) SaveAnswers(ctx context.Context, attemptID uuid.UUID, answers json.RawMessage) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempts SET answers_json = $1 WHERE id = $2 AND completed_at IS NULL`,
		answers, attemptID)
	return err
}

// Complete scores and closes an attempt. The WHERE completed_at IS NULL
// clause is what makes racing submissions (manual vs. timeout) collapse to a
// single honored scoring call.
func (r *AttemptRepo) Complete(ctx context.Context, attemptID uuid.UUID, passed bool, score float64, answers json.RawMessage) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE quiz_attempts
		SET answers_json = $1, passed = $2, score_percent = $3,
			completed_at = NOW(),
			time_taken_seconds = EXTRACT(EPOCH FROM (NOW() - started_at))::INTEGER
		WHERE id = $4 AND completed_at IS NULL`,
		answers, passed, score, attemptID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListOverdue finds open timed attempts whose deadline has passed; the
// worker sweep force-submits them.
func (r *AttemptRepo) ListOverdue(ctx context.Context, limit int) ([]*models.QuizAttempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lesson_id, user_id, question_ids_json, answers_json, allotted_seconds,
			passed, score_percent, started_at, completed_at, time_taken_seconds
		FROM quiz_attempts
		WHERE completed_at IS NULL
		  AND allotted_seconds IS NOT NULL
		  AND started_at + (allotted_seconds || ' seconds')::INTERVAL < NOW()
		ORDER BY started_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.QuizAttempt
	for rows.Next() {
		a := &models.QuizAttempt{}
		err := rows.Scan(&a.ID, &a.LessonID, &a.UserID, &a.QuestionIDsJSON, &a.AnswersJSON,
			&a.AllottedSeconds, &a.Passed, &a.ScorePercent, &a.StartedAt, &a.CompletedAt, &a.TimeTakenSeconds)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// PassedQuestionIDs returns the ids of in-video questions the learner has a
// passed single-question attempt for on this lesson. This is the persisted
// truth the completion gate validates against; the in-memory answered set is
// only the per-mount mirror of it.
func (r *AttemptRepo) PassedQuestionIDs(ctx context.Context, userID, lessonID uuid.UUID) (map[uuid.UUID]bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT question_ids_json FROM quiz_attempts
		WHERE user_id = $1 AND lesson_id = $2 AND passed = TRUE
		  AND jsonb_array_length(question_ids_json) = 1`,
		userID, lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	passed := make(map[uuid.UUID]bool)
	for rows.Next() {
		var raw json.RawMessage
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var ids []uuid.UUID
		if err := json.Unmarshal(raw, &ids); err != nil {
			continue
		}
		for _, id := range ids {
			passed[id] = true
		}
	}
	return passed, rows.Err()
}

// HasPassed reports whether the learner has any passed attempt on the lesson.
func (r *AttemptRepo) HasPassed(ctx context.Context, userID, lessonID uuid.UUID) (bool, error) {
	var passed bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM quiz_attempts
			WHERE user_id = $1 AND lesson_id = $2 AND passed = TRUE
		)`, userID, lessonID).Scan(&passed)
	return passed, err
}
