package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursedesk/coursedesk-api/internal/models"
	appErrors "github.com/coursedesk/coursedesk-api/pkg/errors"
)

type mockCourseCounter struct {
	count     int
	calls     int
	byTeacher map[string][]string
}

func (m *mockCourseCounter) Count(ctx context.Context) (int, error) {
	m.calls++
	return m.count, nil
}

func (m *mockCourseCounter) IDsByTeacher(ctx context.Context, teacherID string) ([]string, error) {
	return m.byTeacher[teacherID], nil
}

type mockUserCounter struct {
	byRole map[models.UserRole]int
}

func (m *mockUserCounter) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	return m.byRole[role], nil
}

type mockEnrollmentCounter struct {
	byCourse  map[string]int
	byStudent map[string]int
}

func (m *mockEnrollmentCounter) CountByCourse(ctx context.Context, courseID string) (int, error) {
	return m.byCourse[courseID], nil
}

func (m *mockEnrollmentCounter) CountByStudent(ctx context.Context, studentID string) (int, error) {
	return m.byStudent[studentID], nil
}

type mockAttendanceAverager struct {
	avg       float64
	byTeacher map[string]float64
	byStudent map[string]float64
}

func (m *mockAttendanceAverager) AverageAttendance(ctx context.Context) (float64, error) {
	return m.avg, nil
}

func (m *mockAttendanceAverager) AverageAttendanceByTeacher(ctx context.Context, teacherID string) (float64, error) {
	return m.byTeacher[teacherID], nil
}

func (m *mockAttendanceAverager) AverageAttendanceByStudent(ctx context.Context, studentID string) (float64, error) {
	return m.byStudent[studentID], nil
}

type memoryCacheRepo struct {
	store map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{store: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = raw
	return nil
}

func (m *memoryCacheRepo) Delete(ctx context.Context, key string) error {
	delete(m.store, key)
	return nil
}

func TestDashboardAdminSummaryComputesStats(t *testing.T) {
	courses := &mockCourseCounter{count: 7}
	users := &mockUserCounter{byRole: map[models.UserRole]int{
		models.RoleStudent: 120,
		models.RoleTeacher: 9,
	}}
	enrollments := &mockEnrollmentCounter{}
	attendance := &mockAttendanceAverager{avg: 92.5}
	svc := NewDashboardService(courses, users, enrollments, attendance, nil, time.Minute, nil)

	summary, cacheHit, err := svc.Summary(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, "admin", summary.Scope)
	assert.Equal(t, 7, summary.TotalCourses)
	assert.Equal(t, 120, summary.TotalStudents)
	assert.Equal(t, 9, summary.TotalTeachers)
	assert.InDelta(t, 92.5, summary.AverageAttendance, 0.001)
}

func TestDashboardTeacherSummaryScopedToOwnCourses(t *testing.T) {
	courses := &mockCourseCounter{
		count:     50,
		byTeacher: map[string][]string{"teacher-1": {"course-1", "course-2"}},
	}
	enrollments := &mockEnrollmentCounter{byCourse: map[string]int{"course-1": 18, "course-2": 22}}
	attendance := &mockAttendanceAverager{avg: 50, byTeacher: map[string]float64{"teacher-1": 88.0}}
	svc := NewDashboardService(courses, &mockUserCounter{}, enrollments, attendance, nil, time.Minute, nil)

	summary, _, err := svc.Summary(context.Background(), teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.Equal(t, "teacher", summary.Scope)
	assert.Equal(t, 2, summary.TotalCourses)
	assert.Equal(t, 40, summary.TotalStudents)
	assert.InDelta(t, 88.0, summary.AverageAttendance, 0.001)
	assert.Zero(t, summary.TotalTeachers)
}

func TestDashboardStudentSummaryScopedToOwnRate(t *testing.T) {
	enrollments := &mockEnrollmentCounter{byStudent: map[string]int{"stu-1": 4}}
	attendance := &mockAttendanceAverager{avg: 50, byStudent: map[string]float64{"stu-1": 75.0}}
	svc := NewDashboardService(&mockCourseCounter{count: 50}, &mockUserCounter{}, enrollments, attendance, nil, time.Minute, nil)

	summary, _, err := svc.Summary(context.Background(), studentClaims("stu-1"))
	require.NoError(t, err)
	assert.Equal(t, "student", summary.Scope)
	assert.Equal(t, 4, summary.TotalCourses)
	assert.InDelta(t, 75.0, summary.AverageAttendance, 0.001)
	assert.Zero(t, summary.TotalStudents)
}

func TestDashboardSummaryRequiresViewer(t *testing.T) {
	svc := NewDashboardService(&mockCourseCounter{}, &mockUserCounter{}, &mockEnrollmentCounter{}, &mockAttendanceAverager{}, nil, time.Minute, nil)

	_, _, err := svc.Summary(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}

func TestDashboardSummaryServedFromCachePerViewer(t *testing.T) {
	courses := &mockCourseCounter{count: 7, byTeacher: map[string][]string{"teacher-1": {"course-1"}}}
	users := &mockUserCounter{byRole: map[models.UserRole]int{}}
	enrollments := &mockEnrollmentCounter{byCourse: map[string]int{"course-1": 12}}
	attendance := &mockAttendanceAverager{}
	cacheRepo := newMemoryCacheRepo()
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	svc := NewDashboardService(courses, users, enrollments, attendance, cacheSvc, time.Minute, nil)

	_, cacheHit, err := svc.Summary(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.False(t, cacheHit)
	require.Equal(t, 1, courses.calls)

	summary, cacheHit, err := svc.Summary(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.True(t, cacheHit)
	assert.Equal(t, 7, summary.TotalCourses)
	assert.Equal(t, 1, courses.calls)

	// a teacher's card is cached under its own key, not the admin one
	teacherSummary, cacheHit, err := svc.Summary(context.Background(), teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 12, teacherSummary.TotalStudents)
}

func TestDashboardInvalidateForDropsStaleCards(t *testing.T) {
	courses := &mockCourseCounter{count: 7, byTeacher: map[string][]string{"teacher-1": {"course-1"}}}
	users := &mockUserCounter{byRole: map[models.UserRole]int{}}
	enrollments := &mockEnrollmentCounter{}
	attendance := &mockAttendanceAverager{}
	cacheRepo := newMemoryCacheRepo()
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	svc := NewDashboardService(courses, users, enrollments, attendance, cacheSvc, time.Minute, nil)

	_, _, err := svc.Summary(context.Background(), adminClaims())
	require.NoError(t, err)
	_, _, err = svc.Summary(context.Background(), teacherClaims("teacher-1"))
	require.NoError(t, err)
	require.Equal(t, 1, courses.calls)

	svc.InvalidateFor(context.Background(), teacherClaims("teacher-1"))

	// both the shared admin card and the writer's card recompute
	_, cacheHit, err := svc.Summary(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 2, courses.calls)
	_, cacheHit, err = svc.Summary(context.Background(), teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.False(t, cacheHit)
}

func TestDashboardSummaryDisabledCacheRecomputes(t *testing.T) {
	courses := &mockCourseCounter{count: 3}
	users := &mockUserCounter{byRole: map[models.UserRole]int{}}
	attendance := &mockAttendanceAverager{}
	cacheSvc := NewCacheService(nil, nil, time.Minute, nil, false)
	svc := NewDashboardService(courses, users, &mockEnrollmentCounter{}, attendance, cacheSvc, time.Minute, nil)

	_, _, err := svc.Summary(context.Background(), adminClaims())
	require.NoError(t, err)
	_, cacheHit, err := svc.Summary(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 2, courses.calls)
}
