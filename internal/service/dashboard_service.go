package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/coursedesk/coursedesk-api/internal/models"
	appErrors "github.com/coursedesk/coursedesk-api/pkg/errors"
)

type dashboardCourseReader interface {
	Count(ctx context.Context) (int, error)
	IDsByTeacher(ctx context.Context, teacherID string) ([]string, error)
}

type dashboardUserReader interface {
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
}

type dashboardEnrollmentReader interface {
	CountByCourse(ctx context.Context, courseID string) (int, error)
	CountByStudent(ctx context.Context, studentID string) (int, error)
}

type dashboardAttendanceReader interface {
	AverageAttendance(ctx context.Context) (float64, error)
	AverageAttendanceByTeacher(ctx context.Context, teacherID string) (float64, error)
	AverageAttendanceByStudent(ctx context.Context, studentID string) (float64, error)
}

// DashboardSummary is one viewer's stat card payload. Which fields are
// populated depends on the scope: admins see school-wide totals, teachers
// see their own courses and rosters, students see their enrollment count
// and personal attendance rate.
type DashboardSummary struct {
	Scope             string  `json:"scope"`
	TotalCourses      int     `json:"total_courses"`
	TotalStudents     int     `json:"total_students,omitempty"`
	TotalTeachers     int     `json:"total_teachers,omitempty"`
	AverageAttendance float64 `json:"average_attendance"`
}

const adminSummaryCacheKey = "dash:summary:admin"

// DashboardService composes role-scoped stat summaries with a Redis-backed
// cache keyed per viewer scope.
type DashboardService struct {
	courses     dashboardCourseReader
	users       dashboardUserReader
	enrollments dashboardEnrollmentReader
	attendance  dashboardAttendanceReader
	cache       *CacheService
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(courses dashboardCourseReader, users dashboardUserReader, enrollments dashboardEnrollmentReader, attendance dashboardAttendanceReader, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		courses:     courses,
		users:       users,
		enrollments: enrollments,
		attendance:  attendance,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// Summary returns the stats scoped to the viewer's role and whether the
// cache served them. The admin card is shared; teacher and student cards
// are cached per user.
func (s *DashboardService) Summary(ctx context.Context, viewer *models.JWTClaims) (*DashboardSummary, bool, error) {
	if viewer == nil {
		return nil, false, appErrors.ErrUnauthorized
	}

	key := summaryCacheKey(viewer)
	if s.cache != nil {
		var cached DashboardSummary
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		} else if hit {
			return &cached, true, nil
		}
	}

	var summary *DashboardSummary
	var err error
	switch viewer.Role {
	case models.RoleAdmin:
		summary, err = s.composeAdmin(ctx)
	case models.RoleTeacher:
		summary, err = s.composeTeacher(ctx, viewer.UserID)
	case models.RoleStudent:
		summary, err = s.composeStudent(ctx, viewer.UserID)
	default:
		return nil, false, appErrors.ErrForbidden
	}
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, false, nil
}

// InvalidateFor drops the cached cards a write made stale: the shared
// admin card plus the writer's own. Other viewers' cards ride out the TTL.
func (s *DashboardService) InvalidateFor(ctx context.Context, viewer *models.JWTClaims) {
	if s.cache == nil || !s.cache.Enabled() {
		return
	}
	keys := []string{adminSummaryCacheKey}
	if viewer != nil && viewer.Role != models.RoleAdmin {
		keys = append(keys, summaryCacheKey(viewer))
	}
	for _, key := range keys {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn("dashboard cache invalidate failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *DashboardService) composeAdmin(ctx context.Context) (*DashboardSummary, error) {
	courseCount, err := s.courses.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to count courses")
	}
	studentCount, err := s.users.CountByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to count students")
	}
	teacherCount, err := s.users.CountByRole(ctx, models.RoleTeacher)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to count teachers")
	}
	avgAttendance, err := s.attendance.AverageAttendance(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to compute attendance average")
	}
	return &DashboardSummary{
		Scope:             string(models.RoleAdmin),
		TotalCourses:      courseCount,
		TotalStudents:     studentCount,
		TotalTeachers:     teacherCount,
		AverageAttendance: avgAttendance,
	}, nil
}

func (s *DashboardService) composeTeacher(ctx context.Context, teacherID string) (*DashboardSummary, error) {
	courseIDs, err := s.courses.IDsByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to list teacher courses")
	}
	rosterTotal := 0
	for _, courseID := range courseIDs {
		count, err := s.enrollments.CountByCourse(ctx, courseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to count course roster")
		}
		rosterTotal += count
	}
	avgAttendance, err := s.attendance.AverageAttendanceByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to compute attendance average")
	}
	return &DashboardSummary{
		Scope:             string(models.RoleTeacher),
		TotalCourses:      len(courseIDs),
		TotalStudents:     rosterTotal,
		AverageAttendance: avgAttendance,
	}, nil
}

func (s *DashboardService) composeStudent(ctx context.Context, studentID string) (*DashboardSummary, error) {
	enrolled, err := s.enrollments.CountByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to count enrollments")
	}
	avgAttendance, err := s.attendance.AverageAttendanceByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to compute attendance rate")
	}
	return &DashboardSummary{
		Scope:             string(models.RoleStudent),
		TotalCourses:      enrolled,
		AverageAttendance: avgAttendance,
	}, nil
}

func summaryCacheKey(viewer *models.JWTClaims) string {
	if viewer.Role == models.RoleAdmin {
		return adminSummaryCacheKey
	}
	return fmt.Sprintf("dash:summary:%s:%s", viewer.Role, viewer.UserID)
}
