package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursedesk/coursedesk-api/internal/models"
	appErrors "github.com/coursedesk/coursedesk-api/pkg/errors"
)

type mockCourseRepo struct {
	courses map[string]*models.CourseDetail
	created *models.Course

	listedAll     bool
	listedTeacher string
	listedStudent string
	updated       bool
	deleted       bool
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{courses: make(map[string]*models.CourseDetail)}
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) (*models.Course, error) {
	course.ID = "course-new"
	m.created = course
	return course, nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) ListAll(ctx context.Context) ([]models.CourseDetail, error) {
	m.listedAll = true
	return nil, nil
}

func (m *mockCourseRepo) ListByTeacher(ctx context.Context, teacherID string) ([]models.CourseDetail, error) {
	m.listedTeacher = teacherID
	return nil, nil
}

func (m *mockCourseRepo) ListByStudent(ctx context.Context, studentID string) ([]models.CourseDetail, error) {
	m.listedStudent = studentID
	return nil, nil
}

func (m *mockCourseRepo) Update(ctx context.Context, id, title, description string, category models.CourseCategory) (int64, error) {
	if _, ok := m.courses[id]; !ok {
		return 0, nil
	}
	m.updated = true
	return 1, nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, id string) (int64, error) {
	if _, ok := m.courses[id]; !ok {
		return 0, nil
	}
	m.deleted = true
	return 1, nil
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func teacherClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleTeacher}
}

func seedCourse(repo *mockCourseRepo, id, teacherID string) {
	repo.courses[id] = &models.CourseDetail{
		Course: models.Course{ID: id, Title: "Algebra", Category: models.CategoryMath, TeacherID: teacherID},
	}
}

func TestCreateCourseTeacherOwnsCourse(t *testing.T) {
	repo := newMockCourseRepo()
	svc := NewCourseService(repo, nil, nil)

	course, err := svc.Create(context.Background(), CreateCourseRequest{
		Title:     "Algebra",
		Category:  "math",
		TeacherID: "someone-else",
	}, teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", course.TeacherID)
}

func TestCreateCourseAdminAssignsTeacher(t *testing.T) {
	repo := newMockCourseRepo()
	svc := NewCourseService(repo, nil, nil)

	course, err := svc.Create(context.Background(), CreateCourseRequest{
		Title:     "Algebra",
		Category:  "math",
		TeacherID: "teacher-2",
	}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, "teacher-2", course.TeacherID)
}

func TestCreateCourseRejectsUnknownCategory(t *testing.T) {
	svc := NewCourseService(newMockCourseRepo(), nil, nil)

	_, err := svc.Create(context.Background(), CreateCourseRequest{
		Title:    "Algebra",
		Category: "astrology",
	}, adminClaims())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestGetCourseNotFound(t *testing.T) {
	svc := NewCourseService(newMockCourseRepo(), nil, nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestListCoursesScopedByRole(t *testing.T) {
	repo := newMockCourseRepo()
	svc := NewCourseService(repo, nil, nil)

	_, err := svc.List(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.True(t, repo.listedAll)

	_, err = svc.List(context.Background(), teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", repo.listedTeacher)

	_, err = svc.List(context.Background(), &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, "stu-1", repo.listedStudent)
}

func TestUpdateCourseNonOwnerForbidden(t *testing.T) {
	repo := newMockCourseRepo()
	seedCourse(repo, "course-1", "teacher-1")
	svc := NewCourseService(repo, nil, nil)

	err := svc.Update(context.Background(), "course-1", UpdateCourseRequest{
		Title:    "Algebra II",
		Category: "math",
	}, teacherClaims("teacher-2"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
	assert.False(t, repo.updated)
}

func TestUpdateCourseAdminBypassesOwnership(t *testing.T) {
	repo := newMockCourseRepo()
	seedCourse(repo, "course-1", "teacher-1")
	svc := NewCourseService(repo, nil, nil)

	err := svc.Update(context.Background(), "course-1", UpdateCourseRequest{
		Title:    "Algebra II",
		Category: "math",
	}, adminClaims())
	require.NoError(t, err)
	assert.True(t, repo.updated)
}

func TestDeleteCourseOwnerSucceeds(t *testing.T) {
	repo := newMockCourseRepo()
	seedCourse(repo, "course-1", "teacher-1")
	svc := NewCourseService(repo, nil, nil)

	err := svc.Delete(context.Background(), "course-1", teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.True(t, repo.deleted)
}
