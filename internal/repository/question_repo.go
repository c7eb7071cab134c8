package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Adjaraux/academy-backend/internal/models"
)

type QuestionRepo struct {
	pool *pgxpool.Pool
}

func NewQuestionRepo(pool *pgxpool.Pool) *QuestionRepo {
	return &QuestionRepo{pool: pool}
}

// ListByLesson loads a lesson's question pool with answers, ordered. The
// is_correct flags stay server-side; handlers must go through the
// correctness-blind client views before anything reaches a learner.
func (r *QuestionRepo) ListByLesson(ctx context.Context, lessonID uuid.UUID) ([]*models.Question, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lesson_id, type, text, trigger_at, position
		FROM questions WHERE lesson_id = $1 ORDER BY position`, lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []*models.Question
	byID := make(map[uuid.UUID]*models.Question)
	for rows.Next() {
		q := &models.Question{}
		if err := rows.Scan(&q.ID, &q.LessonID, &q.Type, &q.Text, &q.TriggerAt, &q.Position); err != nil {
			return nil, err
		}
		questions = append(questions, q)
		byID[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return questions, nil
	}

	arows, err := r.pool.Query(ctx, `
		SELECT a.id, a.question_id, a.text, a.is_correct, a.position
		FROM answers a
		JOIN questions q ON q.id = a.question_id
		WHERE q.lesson_id = $1
		ORDER BY a.position`, lessonID)
	if err != nil {
		return nil, err
	}
	defer arows.Close()

	for arows.Next() {
		a := &models.Answer{}
		if err := arows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.IsCorrect, &a.Position); err != nil {
			return nil, err
		}
		if q, ok := byID[a.QuestionID]; ok {
			q.Answers = append(q.Answers, a)
		}
	}
	return questions, arows.Err()
}

func (r *QuestionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	q := &models.Question{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, lesson_id, type, text, trigger_at, position
		FROM questions WHERE id = $1`, id).Scan(&q.ID, &q.LessonID, &q.Type, &q.Text, &q.TriggerAt, &q.Position)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, question_id, text, is_correct, position
		FROM answers WHERE question_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		a := &models.Answer{}
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.IsCorrect, &a.Position); err != nil {
			return nil, err
		}
		q.Answers = append(q.Answers, a)
	}
	return q, rows.Err()
}
