package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursedesk/coursedesk-api/internal/models"
	appErrors "github.com/coursedesk/coursedesk-api/pkg/errors"
)

type enrollmentRepository interface {
	Exists(ctx context.Context, courseID, studentID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, courseID, studentID string) (int64, error)
}

type rosterReader interface {
	ListRoster(ctx context.Context, courseID string) ([]models.RosterMember, error)
}

// EnrollmentService manages course rosters.
type EnrollmentService struct {
	repo      enrollmentRepository
	roster    rosterReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(repo enrollmentRepository, roster rosterReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, roster: roster, validator: validate, logger: logger}
}

// EnrollRequest is the payload for enrolling a student.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// EnrollResult reports the outcome of an enroll call.
type EnrollResult struct {
	Enrolled        bool   `json:"enrolled"`
	AlreadyEnrolled bool   `json:"already_enrolled"`
	Message         string `json:"message"`
}

// Enroll adds a student to a course. Enrolling an already enrolled student
// is reported, not treated as an error.
func (s *EnrollmentService) Enroll(ctx context.Context, courseID string, req EnrollRequest) (*EnrollResult, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course id required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	exists, err := s.repo.Exists(ctx, courseID, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to check enrollment")
	}
	if exists {
		return &EnrollResult{Enrolled: true, AlreadyEnrolled: true, Message: "student is already enrolled"}, nil
	}

	enrollment := &models.Enrollment{CourseID: courseID, StudentID: req.StudentID}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}

	s.logger.Info("student enrolled", zap.String("course_id", courseID), zap.String("student_id", req.StudentID))
	return &EnrollResult{Enrolled: true, Message: "student enrolled successfully"}, nil
}

// Roster returns the enrolled students of a course.
func (s *EnrollmentService) Roster(ctx context.Context, courseID string) ([]models.RosterMember, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course id required")
	}
	roster, err := s.roster.ListRoster(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to load roster")
	}
	return roster, nil
}

// Unenroll removes a student from a course.
func (s *EnrollmentService) Unenroll(ctx context.Context, courseID, studentID string) error {
	if courseID == "" || studentID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "course id and student id required")
	}

	affected, err := s.repo.Delete(ctx, courseID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unenroll student")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return nil
}
