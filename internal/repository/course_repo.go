package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Adjaraux/academy-backend/internal/models"
)

type CourseRepo struct {
	pool *pgxpool.Pool
}

func NewCourseRepo(pool *pgxpool.Pool) *CourseRepo {
	return &CourseRepo{pool: pool}
}

func (r *CourseRepo) List(ctx context.Context) ([]*models.Course, error) {
	query := `SELECT id, title, category, slug, position, created_at
		FROM courses ORDER BY position, created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []*models.Course
	for rows.Next() {
		c := &models.Course{}
		if err := rows.Scan(&c.ID, &c.Title, &c.Category, &c.Slug, &c.Position, &c.CreatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (r *CourseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	c := &models.Course{}
	query := `SELECT id, title, category, slug, position, created_at FROM courses WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Title, &c.Category, &c.Slug, &c.Position, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := r.loadChapters(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CourseRepo) loadChapters(ctx context.Context, c *models.Course) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, course_id, title, position FROM chapters WHERE course_id = $1 ORDER BY position`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*models.Chapter)
	for rows.Next() {
		ch := &models.Chapter{}
		if err := rows.Scan(&ch.ID, &ch.CourseID, &ch.Title, &ch.Position); err != nil {
			return err
		}
		c.Chapters = append(c.Chapters, ch)
		byID[ch.ID] = ch
	}
	if err := rows.Err(); err != nil {
		return err
	}

	lrows, err := r.pool.Query(ctx, `
		SELECT l.id, l.chapter_id, l.title, l.type, l.media_ref, l.body,
		       l.duration_seconds, l.quiz_minutes, l.pool_size, l.weight, l.position
		FROM lessons l
		JOIN chapters ch ON ch.id = l.chapter_id
		WHERE ch.course_id = $1
		ORDER BY ch.position, l.position`, c.ID)
	if err != nil {
		return err
	}
	defer lrows.Close()

	for lrows.Next() {
		l := &models.Lesson{}
		if err := scanLesson(lrows.Scan, l); err != nil {
			return err
		}
		if ch, ok := byID[l.ChapterID]; ok {
			ch.Lessons = append(ch.Lessons, l)
		}
	}
	return lrows.Err()
}

// FlattenedLessons returns the course's lessons in linear order: the order
// every prev/next transition and lock computation runs over.
func (r *CourseRepo) FlattenedLessons(ctx context.Context, courseID uuid.UUID) ([]*models.Lesson, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.chapter_id, l.title, l.type, l.media_ref, l.body,
		       l.duration_seconds, l.quiz_minutes, l.pool_size, l.weight, l.position
		FROM lessons l
		JOIN chapters ch ON ch.id = l.chapter_id
		WHERE ch.course_id = $1
		ORDER BY ch.position, l.position`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []*models.Lesson
	for rows.Next() {
		l := &models.Lesson{}
		if err := scanLesson(rows.Scan, l); err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

func (r *CourseRepo) GetLesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	l := &models.Lesson{}
	err := scanLesson(func(dest ...any) error {
		return r.pool.QueryRow(ctx, `
			SELECT id, chapter_id, title, type, media_ref, body,
			       duration_seconds, quiz_minutes, pool_size, weight, position
			FROM lessons WHERE id = $1`, id).Scan(dest...)
	}, l)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// CourseIDForLesson resolves which course a lesson belongs to.
func (r *CourseRepo) CourseIDForLesson(ctx context.Context, lessonID uuid.UUID) (uuid.UUID, error) {
	var courseID uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT ch.course_id FROM lessons l
		JOIN chapters ch ON ch.id = l.chapter_id
		WHERE l.id = $1`, lessonID).Scan(&courseID)
	return courseID, err
}

func scanLesson(scan func(dest ...any) error, l *models.Lesson) error {
	return scan(&l.ID, &l.ChapterID, &l.Title, &l.Type, &l.MediaRef, &l.Body,
		&l.DurationSeconds, &l.QuizMinutes, &l.PoolSize, &l.Weight, &l.Position)
}
