package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursedesk/coursedesk-api/internal/models"
	appErrors "github.com/coursedesk/coursedesk-api/pkg/errors"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) (*models.Course, error)
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
	ListAll(ctx context.Context) ([]models.CourseDetail, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.CourseDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.CourseDetail, error)
	Update(ctx context.Context, id, title, description string, category models.CourseCategory) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// CourseService manages course CRUD with role-scoped listing.
type CourseService struct {
	repo      courseRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(repo courseRepository, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &CourseService{repo: repo, validator: validate, logger: logger}
	svc.validator.RegisterValidation("course_category", func(fl validator.FieldLevel) bool {
		return models.CourseCategory(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// CreateCourseRequest is the payload for creating a course.
type CreateCourseRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Category    string `json:"category" validate:"required,course_category"`
	TeacherID   string `json:"teacher_id"`
}

// UpdateCourseRequest is the payload for updating a course.
type UpdateCourseRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Category    string `json:"category" validate:"required,course_category"`
}

// Create stores a new course. Teachers always own the courses they create;
// admins may assign any teacher.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest, viewer *models.JWTClaims) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	teacherID := req.TeacherID
	if viewer.Role == models.RoleTeacher {
		teacherID = viewer.UserID
	}
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher id required")
	}

	course := &models.Course{
		Title:       req.Title,
		Description: req.Description,
		Category:    models.CourseCategory(strings.ToLower(req.Category)),
		TeacherID:   teacherID,
	}
	stored, err := s.repo.Create(ctx, course)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return stored, nil
}

// Get returns one course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to load course")
	}
	return course, nil
}

// List returns the courses visible to the viewer: admins see all, teachers
// their own, students the ones they are enrolled in.
func (s *CourseService) List(ctx context.Context, viewer *models.JWTClaims) ([]models.CourseDetail, error) {
	var (
		courses []models.CourseDetail
		err     error
	)
	switch viewer.Role {
	case models.RoleTeacher:
		courses, err = s.repo.ListByTeacher(ctx, viewer.UserID)
	case models.RoleStudent:
		courses, err = s.repo.ListByStudent(ctx, viewer.UserID)
	default:
		courses, err = s.repo.ListAll(ctx)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to list courses")
	}
	return courses, nil
}

// Update modifies a course. Only the owning teacher or an admin may update.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest, viewer *models.JWTClaims) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	if err := s.authorizeOwner(ctx, id, viewer); err != nil {
		return err
	}

	affected, err := s.repo.Update(ctx, id, req.Title, req.Description, models.CourseCategory(strings.ToLower(req.Category)))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return nil
}

// Delete removes a course. Only the owning teacher or an admin may delete.
func (s *CourseService) Delete(ctx context.Context, id string, viewer *models.JWTClaims) error {
	if err := s.authorizeOwner(ctx, id, viewer); err != nil {
		return err
	}

	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return nil
}

func (s *CourseService) authorizeOwner(ctx context.Context, courseID string, viewer *models.JWTClaims) error {
	if viewer.Role == models.RoleAdmin {
		return nil
	}
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return err
	}
	if course.TeacherID != viewer.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "not the course owner")
	}
	return nil
}
