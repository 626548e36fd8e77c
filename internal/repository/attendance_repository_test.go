package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/coursedesk/coursedesk-api/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryFindSessionFound(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "course_id", "date", "created_at"}).
		AddRow("sess-1", "course-1", date, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_id, date, created_at FROM attendance_sessions")).
		WithArgs("course-1", date).
		WillReturnRows(rows)

	session, err := repo.FindSession(context.Background(), "course-1", date)
	require.NoError(t, err)
	require.NotNil(t, session)
	require.Equal(t, "sess-1", session.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFindSessionNone(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_id, date, created_at FROM attendance_sessions")).
		WithArgs("course-1", date).
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "date", "created_at"}))

	session, err := repo.FindSession(context.Background(), "course-1", date)
	require.NoError(t, err)
	require.Nil(t, session)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListEntries(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"id", "session_id", "student_id", "student_name", "status"}).
		AddRow("entry-1", "sess-1", "stu-1", "Alice Kim", models.AttendanceStatusPresent).
		AddRow("entry-2", "sess-1", "stu-2", "Bob Tan", models.AttendanceStatusLate)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE ss.session_id = $1")).
		WithArgs("sess-1").
		WillReturnRows(rows)

	entries, err := repo.ListEntries(context.Background(), "sess-1", "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "Alice Kim", entries[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListEntriesNarrowsToStudent(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"id", "session_id", "student_id", "student_name", "status"}).
		AddRow("entry-2", "sess-1", "stu-2", "Bob Tan", models.AttendanceStatusAbsent)
	mock.ExpectQuery(regexp.QuoteMeta("AND ss.student_id = $2")).
		WithArgs("sess-1", "stu-2").
		WillReturnRows(rows)

	entries, err := repo.ListEntries(context.Background(), "sess-1", "stu-2")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "stu-2", entries[0].StudentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListRoster(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "student_name"}).
		AddRow("stu-1", "Alice Kim").
		AddRow("stu-2", "Bob Tan")
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments e")).
		WithArgs("course-1").
		WillReturnRows(rows)

	roster, err := repo.ListRoster(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositorySaveSnapshot(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (course_id, date) DO UPDATE")).
		WithArgs(sqlmock.AnyArg(), "course-1", date, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sess-1"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_statuses WHERE session_id = $1")).
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_statuses")).
		WithArgs(sqlmock.AnyArg(), "sess-1", "stu-1", models.AttendanceStatusPresent).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_statuses")).
		WithArgs(sqlmock.AnyArg(), "sess-1", "stu-2", models.AttendanceStatusAbsent).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sessionID, err := repo.SaveSnapshot(context.Background(), "course-1", date, []models.StatusWrite{
		{StudentID: "stu-1", Status: models.AttendanceStatusPresent},
		{StudentID: "stu-2", Status: models.AttendanceStatusAbsent},
	})
	require.NoError(t, err)
	require.Equal(t, "sess-1", sessionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositorySaveSnapshotRollsBackOnInsertError(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	pqErr := &pq.Error{Code: "23505"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (course_id, date) DO UPDATE")).
		WithArgs(sqlmock.AnyArg(), "course-1", date, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sess-1"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_statuses WHERE session_id = $1")).
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_statuses")).
		WithArgs(sqlmock.AnyArg(), "sess-1", "stu-1", models.AttendanceStatusPresent).
		WillReturnError(pqErr)
	mock.ExpectRollback()

	_, err := repo.SaveSnapshot(context.Background(), "course-1", date, []models.StatusWrite{
		{StudentID: "stu-1", Status: models.AttendanceStatusPresent},
	})
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpdateEntryStatusNoRows(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_statuses SET status = $1 WHERE id = $2")).
		WithArgs(models.AttendanceStatusLate, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := repo.UpdateEntryStatus(context.Background(), "missing", models.AttendanceStatusLate)
	require.NoError(t, err)
	require.Zero(t, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryDeleteSession(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_statuses WHERE session_id = $1")).
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_sessions WHERE id = $1")).
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	affected, err := repo.DeleteSession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryAverageAttendanceByTeacher(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.teacher_id = $2")).
		WithArgs(models.AttendanceStatusPresent, "teacher-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(87.5))

	percent, err := repo.AverageAttendanceByTeacher(context.Background(), "teacher-1")
	require.NoError(t, err)
	require.InDelta(t, 87.5, percent, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryAverageAttendanceByStudent(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM student_statuses WHERE student_id = $2")).
		WithArgs(models.AttendanceStatusPresent, "stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(75.0))

	percent, err := repo.AverageAttendanceByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.InDelta(t, 75.0, percent, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	require.True(t, IsUniqueViolation(&pq.Error{Code: "40001"}))
	require.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	require.False(t, IsUniqueViolation(context.DeadlineExceeded))
}
