package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursedesk/coursedesk-api/internal/models"
	appErrors "github.com/coursedesk/coursedesk-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	existing map[string]bool
	created  *models.Enrollment
	deleted  int64
}

func enrollKey(courseID, studentID string) string {
	return courseID + "/" + studentID
}

func (m *mockEnrollmentRepo) Exists(ctx context.Context, courseID, studentID string) (bool, error) {
	return m.existing[enrollKey(courseID, studentID)], nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, courseID, studentID string) (int64, error) {
	return m.deleted, nil
}

type mockRosterReader struct {
	roster []models.RosterMember
}

func (m *mockRosterReader) ListRoster(ctx context.Context, courseID string) ([]models.RosterMember, error) {
	return m.roster, nil
}

func TestEnrollNewStudent(t *testing.T) {
	repo := &mockEnrollmentRepo{existing: map[string]bool{}}
	svc := NewEnrollmentService(repo, &mockRosterReader{}, nil, nil)

	result, err := svc.Enroll(context.Background(), "course-1", EnrollRequest{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.True(t, result.Enrolled)
	assert.False(t, result.AlreadyEnrolled)
	require.NotNil(t, repo.created)
	assert.Equal(t, "stu-1", repo.created.StudentID)
}

func TestEnrollAlreadyEnrolledIsNotAnError(t *testing.T) {
	repo := &mockEnrollmentRepo{existing: map[string]bool{enrollKey("course-1", "stu-1"): true}}
	svc := NewEnrollmentService(repo, &mockRosterReader{}, nil, nil)

	result, err := svc.Enroll(context.Background(), "course-1", EnrollRequest{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.True(t, result.AlreadyEnrolled)
	assert.Nil(t, repo.created)
}

func TestEnrollRequiresStudentID(t *testing.T) {
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, &mockRosterReader{}, nil, nil)

	_, err := svc.Enroll(context.Background(), "course-1", EnrollRequest{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestRosterEmptyCourse(t *testing.T) {
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, &mockRosterReader{roster: []models.RosterMember{}}, nil, nil)

	roster, err := svc.Roster(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Empty(t, roster)
}

func TestUnenrollNotFound(t *testing.T) {
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, &mockRosterReader{}, nil, nil)

	err := svc.Unenroll(context.Background(), "course-1", "stu-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestUnenrollSucceeds(t *testing.T) {
	svc := NewEnrollmentService(&mockEnrollmentRepo{deleted: 1}, &mockRosterReader{}, nil, nil)

	require.NoError(t, svc.Unenroll(context.Background(), "course-1", "stu-1"))
}
