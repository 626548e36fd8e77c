package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursedesk/coursedesk-api/internal/models"
)

// EnrollmentRepository handles persistence for course enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Exists reports whether the student is already enrolled in the course.
func (r *EnrollmentRepository) Exists(ctx context.Context, courseID, studentID string) (bool, error) {
	var id string
	err := r.db.GetContext(ctx, &id, `SELECT id FROM enrollments WHERE course_id = $1 AND student_id = $2`, courseID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// Create enrolls a student in a course.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	enrollment.CreatedAt = time.Now().UTC()
	query := `INSERT INTO enrollments (id, course_id, student_id, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, enrollment.ID, enrollment.CourseID, enrollment.StudentID, enrollment.CreatedAt); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Delete removes an enrollment by (course, student) and returns rows
// affected.
func (r *EnrollmentRepository) Delete(ctx context.Context, courseID, studentID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE course_id = $1 AND student_id = $2`, courseID, studentID)
	if err != nil {
		return 0, fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete enrollment rows: %w", err)
	}
	return affected, nil
}

// CountByCourse returns the enrollment count for a course.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`, courseID); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return total, nil
}

// CountByStudent returns how many courses the student is enrolled in.
func (r *EnrollmentRepository) CountByStudent(ctx context.Context, studentID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM enrollments WHERE student_id = $1`, studentID); err != nil {
		return 0, fmt.Errorf("count student enrollments: %w", err)
	}
	return total, nil
}
