package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/coursedesk/coursedesk-api/internal/models"
)

// AttendanceRepository handles persistence for attendance sessions and
// per-student status rows.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// IsUniqueViolation reports whether err is a Postgres unique constraint or
// serialization failure, i.e. a lost race with a concurrent writer.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" || pqErr.Code == "40001"
	}
	return false
}

// FindSession returns the session for (courseID, date), or nil when none
// exists. Sessions are never created on read.
func (r *AttendanceRepository) FindSession(ctx context.Context, courseID string, date time.Time) (*models.AttendanceSession, error) {
	query := `SELECT id, course_id, date, created_at FROM attendance_sessions
WHERE course_id = $1 AND date = $2`
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, query, courseID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find attendance session: %w", err)
	}
	return &session, nil
}

// ListEntries returns the status rows of a session joined with student
// names. A non-empty studentID narrows the result to that student's own row;
// the narrowing happens in the query so restricted rows never reach the
// caller.
func (r *AttendanceRepository) ListEntries(ctx context.Context, sessionID, studentID string) ([]models.AttendanceEntry, error) {
	query := `SELECT ss.id, ss.session_id, ss.student_id, u.full_name AS student_name, ss.status
FROM student_statuses ss
JOIN users u ON u.id = ss.student_id
WHERE ss.session_id = $1`
	args := []interface{}{sessionID}
	if studentID != "" {
		query += " AND ss.student_id = $2"
		args = append(args, studentID)
	}
	query += " ORDER BY u.full_name ASC"

	entries := []models.AttendanceEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance entries: %w", err)
	}
	return entries, nil
}

// ListRoster returns the enrolled students of a course. An empty roster is a
// valid result.
func (r *AttendanceRepository) ListRoster(ctx context.Context, courseID string) ([]models.RosterMember, error) {
	query := `SELECT e.student_id, u.full_name AS student_name
FROM enrollments e
JOIN users u ON u.id = e.student_id
WHERE e.course_id = $1
ORDER BY u.full_name ASC`
	roster := []models.RosterMember{}
	if err := r.db.SelectContext(ctx, &roster, query, courseID); err != nil {
		return nil, fmt.Errorf("list course roster: %w", err)
	}
	return roster, nil
}

// SaveSnapshot persists a full attendance snapshot for (courseID, date) in a
// single transaction: the session row is upserted against the unique
// (course_id, date) constraint, existing status rows are deleted, and the
// provided set is inserted whole. Callers must pass the complete roster;
// the stored entry set always equals the input after a successful save.
func (r *AttendanceRepository) SaveSnapshot(ctx context.Context, courseID string, date time.Time, entries []models.StatusWrite) (string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin save attendance: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	upsert := `INSERT INTO attendance_sessions (id, course_id, date, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (course_id, date) DO UPDATE SET course_id = EXCLUDED.course_id
RETURNING id`
	var sessionID string
	if err := tx.QueryRowxContext(ctx, upsert, uuid.NewString(), courseID, date, time.Now().UTC()).Scan(&sessionID); err != nil {
		return "", fmt.Errorf("upsert attendance session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM student_statuses WHERE session_id = $1`, sessionID); err != nil {
		return "", fmt.Errorf("clear attendance entries: %w", err)
	}

	insert := `INSERT INTO student_statuses (id, session_id, student_id, status)
VALUES ($1, $2, $3, $4)`
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), sessionID, entry.StudentID, entry.Status); err != nil {
			return "", fmt.Errorf("insert attendance entry for %s: %w", entry.StudentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit save attendance: %w", err)
	}
	committed = true
	return sessionID, nil
}

// UpdateEntryStatus updates one status row by its own id and returns the
// number of rows affected.
func (r *AttendanceRepository) UpdateEntryStatus(ctx context.Context, entryID string, status models.AttendanceStatus) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE student_statuses SET status = $1 WHERE id = $2`, status, entryID)
	if err != nil {
		return 0, fmt.Errorf("update attendance entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update attendance entry rows: %w", err)
	}
	return affected, nil
}

// DeleteSession removes a session and its status rows in one transaction.
// The child delete runs first so the result does not depend on the FK
// cascade being present. Returns the number of session rows removed.
func (r *AttendanceRepository) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete attendance session: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM student_statuses WHERE session_id = $1`, sessionID); err != nil {
		return 0, fmt.Errorf("delete attendance entries: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM attendance_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete attendance session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete attendance session rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete attendance session: %w", err)
	}
	committed = true
	return affected, nil
}

// ListSessionsForCourse returns all sessions of a course, newest first.
func (r *AttendanceRepository) ListSessionsForCourse(ctx context.Context, courseID string) ([]models.AttendanceSession, error) {
	query := `SELECT id, course_id, date, created_at FROM attendance_sessions
WHERE course_id = $1
ORDER BY date DESC`
	sessions := []models.AttendanceSession{}
	if err := r.db.SelectContext(ctx, &sessions, query, courseID); err != nil {
		return nil, fmt.Errorf("list attendance sessions: %w", err)
	}
	return sessions, nil
}

// AverageAttendance returns the share of present entries across every
// session, as a percentage. Zero entries yields zero.
func (r *AttendanceRepository) AverageAttendance(ctx context.Context) (float64, error) {
	query := `SELECT COALESCE(AVG(CASE WHEN status = $1 THEN 100.0 ELSE 0.0 END), 0) FROM student_statuses`
	var percent float64
	if err := r.db.GetContext(ctx, &percent, query, models.AttendanceStatusPresent); err != nil {
		return 0, fmt.Errorf("average attendance: %w", err)
	}
	return percent, nil
}

// AverageAttendanceByTeacher restricts the average to sessions belonging to
// the teacher's own courses.
func (r *AttendanceRepository) AverageAttendanceByTeacher(ctx context.Context, teacherID string) (float64, error) {
	query := `SELECT COALESCE(AVG(CASE WHEN ss.status = $1 THEN 100.0 ELSE 0.0 END), 0)
FROM student_statuses ss
JOIN attendance_sessions s ON s.id = ss.session_id
JOIN courses c ON c.id = s.course_id
WHERE c.teacher_id = $2`
	var percent float64
	if err := r.db.GetContext(ctx, &percent, query, models.AttendanceStatusPresent, teacherID); err != nil {
		return 0, fmt.Errorf("teacher average attendance: %w", err)
	}
	return percent, nil
}

// AverageAttendanceByStudent restricts the average to one student's own
// status rows.
func (r *AttendanceRepository) AverageAttendanceByStudent(ctx context.Context, studentID string) (float64, error) {
	query := `SELECT COALESCE(AVG(CASE WHEN status = $1 THEN 100.0 ELSE 0.0 END), 0) FROM student_statuses WHERE student_id = $2`
	var percent float64
	if err := r.db.GetContext(ctx, &percent, query, models.AttendanceStatusPresent, studentID); err != nil {
		return 0, fmt.Errorf("student average attendance: %w", err)
	}
	return percent, nil
}
