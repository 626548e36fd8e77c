package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursedesk/coursedesk-api/internal/models"
)

// CourseRepository handles persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseDetailColumns = `c.id, c.title, c.description, c.category, c.teacher_id, c.created_at, c.updated_at,
	u.full_name AS teacher_name,
	(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS enrolled_count`

// Create inserts a new course and returns the stored row.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) (*models.Course, error) {
	now := time.Now().UTC()
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	course.CreatedAt = now
	course.UpdatedAt = now
	query := `INSERT INTO courses (id, title, description, category, teacher_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, title, description, category, teacher_id, created_at, updated_at`
	var stored models.Course
	if err := r.db.GetContext(ctx, &stored, query, course.ID, course.Title, course.Description, course.Category, course.TeacherID, course.CreatedAt, course.UpdatedAt); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	return &stored, nil
}

// FindByID returns one course with teacher metadata.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses c JOIN users u ON u.id = c.teacher_id WHERE c.id = $1`, courseDetailColumns)
	var course models.CourseDetail
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// ListAll returns every course, newest first.
func (r *CourseRepository) ListAll(ctx context.Context) ([]models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses c JOIN users u ON u.id = c.teacher_id ORDER BY c.created_at DESC`, courseDetailColumns)
	courses := []models.CourseDetail{}
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// ListByTeacher returns courses owned by the given teacher.
func (r *CourseRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses c JOIN users u ON u.id = c.teacher_id
WHERE c.teacher_id = $1 ORDER BY c.created_at DESC`, courseDetailColumns)
	courses := []models.CourseDetail{}
	if err := r.db.SelectContext(ctx, &courses, query, teacherID); err != nil {
		return nil, fmt.Errorf("list courses by teacher: %w", err)
	}
	return courses, nil
}

// ListByStudent returns courses the given student is enrolled in.
func (r *CourseRepository) ListByStudent(ctx context.Context, studentID string) ([]models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses c
JOIN users u ON u.id = c.teacher_id
JOIN enrollments en ON en.course_id = c.id
WHERE en.student_id = $1
ORDER BY c.created_at DESC`, courseDetailColumns)
	courses := []models.CourseDetail{}
	if err := r.db.SelectContext(ctx, &courses, query, studentID); err != nil {
		return nil, fmt.Errorf("list courses by student: %w", err)
	}
	return courses, nil
}

// Update modifies the mutable course fields and returns rows affected.
func (r *CourseRepository) Update(ctx context.Context, id, title, description string, category models.CourseCategory) (int64, error) {
	query := `UPDATE courses SET title = $1, description = $2, category = $3, updated_at = $4 WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, title, description, category, time.Now().UTC(), id)
	if err != nil {
		return 0, fmt.Errorf("update course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update course rows: %w", err)
	}
	return affected, nil
}

// Delete removes a course and returns rows affected. Enrollments and
// attendance sessions cascade via foreign keys.
func (r *CourseRepository) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete course rows: %w", err)
	}
	return affected, nil
}

// Count returns the total number of courses.
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM courses`); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return total, nil
}

// IDsByTeacher returns the ids of every course owned by the teacher.
func (r *CourseRepository) IDsByTeacher(ctx context.Context, teacherID string) ([]string, error) {
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM courses WHERE teacher_id = $1`, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher course ids: %w", err)
	}
	return ids, nil
}
