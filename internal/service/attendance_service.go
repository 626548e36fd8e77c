package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursedesk/coursedesk-api/internal/models"
	"github.com/coursedesk/coursedesk-api/internal/repository"
	appErrors "github.com/coursedesk/coursedesk-api/pkg/errors"
)

type attendanceGateway interface {
	FindSession(ctx context.Context, courseID string, date time.Time) (*models.AttendanceSession, error)
	ListEntries(ctx context.Context, sessionID, studentID string) ([]models.AttendanceEntry, error)
	ListRoster(ctx context.Context, courseID string) ([]models.RosterMember, error)
	SaveSnapshot(ctx context.Context, courseID string, date time.Time, entries []models.StatusWrite) (string, error)
}

// AttendanceService reconciles attendance snapshots for a (course, date)
// pair: it loads or seeds the editable state and persists full-replace
// saves.
type AttendanceService struct {
	repo      attendanceGateway
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceGateway, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{repo: repo, validator: validate, logger: logger}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// SaveAttendanceEntry is one student's status in a save payload.
type SaveAttendanceEntry struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,attendance_status"`
}

// SaveAttendanceRequest is the full-replace save payload. Entries must be
// the complete roster: stored rows not present in the payload are removed.
type SaveAttendanceRequest struct {
	CourseID string                `json:"course_id" validate:"required"`
	Date     string                `json:"date" validate:"required"`
	Entries  []SaveAttendanceEntry `json:"entries" validate:"dive"`
}

// LoadSnapshot returns the attendance state for (courseID, date). When a
// session exists its persisted entries are returned verbatim; otherwise the
// enrollment roster is seeded with a default status of present and no
// session id. A course with zero enrollment yields an empty snapshot.
func (s *AttendanceService) LoadSnapshot(ctx context.Context, courseID string, date time.Time) (*models.AttendanceSnapshot, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course id required")
	}

	session, err := s.repo.FindSession(ctx, courseID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to check existing attendance")
	}

	snapshot := &models.AttendanceSnapshot{CourseID: courseID, Date: date}

	if session != nil {
		entries, err := s.repo.ListEntries(ctx, session.ID, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to load existing attendance")
		}
		snapshot.SessionID = &session.ID
		snapshot.Entries = entries
		return snapshot, nil
	}

	roster, err := s.repo.ListRoster(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to load enrolled students")
	}
	entries := make([]models.AttendanceEntry, len(roster))
	for i, member := range roster {
		entries[i] = models.AttendanceEntry{
			StudentID:   member.StudentID,
			StudentName: member.StudentName,
			Status:      models.AttendanceStatusPresent,
		}
	}
	snapshot.Entries = entries
	return snapshot, nil
}

// ApplyBulkStatus sets the status on every entry whose student id is in
// targetStudentIDs; an empty target set means every entry. The transform is
// pure: the input slice is not modified and nothing is persisted.
func (s *AttendanceService) ApplyBulkStatus(entries []models.AttendanceEntry, targetStudentIDs []string, status models.AttendanceStatus) ([]models.AttendanceEntry, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unrecognized attendance status")
	}

	targets := make(map[string]struct{}, len(targetStudentIDs))
	for _, id := range targetStudentIDs {
		targets[id] = struct{}{}
	}

	out := make([]models.AttendanceEntry, len(entries))
	copy(out, entries)
	for i := range out {
		if len(targets) > 0 {
			if _, ok := targets[out[i].StudentID]; !ok {
				continue
			}
		}
		out[i].Status = status
	}
	return out, nil
}

// Save persists a full attendance snapshot and returns the session id. The
// session row is upserted against the unique (course, date) constraint and
// the entry set is replaced whole inside one transaction, so concurrent
// saves for the same pair serialize instead of producing duplicate
// sessions. An empty entry set is rejected and creates nothing.
func (s *AttendanceService) Save(ctx context.Context, req SaveAttendanceRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if len(req.Entries) == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "nothing to save")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}

	seen := make(map[string]struct{}, len(req.Entries))
	writes := make([]models.StatusWrite, len(req.Entries))
	for i, entry := range req.Entries {
		if _, ok := seen[entry.StudentID]; ok {
			return "", appErrors.Clone(appErrors.ErrConflict, "duplicate student in payload")
		}
		seen[entry.StudentID] = struct{}{}
		writes[i] = models.StatusWrite{
			StudentID: entry.StudentID,
			Status:    models.AttendanceStatus(strings.ToLower(entry.Status)),
		}
	}

	sessionID, err := s.repo.SaveSnapshot(ctx, req.CourseID, date, writes)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return "", appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "attendance was saved concurrently, refresh and retry")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}

	s.logger.Info("attendance saved",
		zap.String("course_id", req.CourseID),
		zap.String("date", req.Date),
		zap.String("session_id", sessionID),
		zap.Int("entries", len(writes)),
	)
	return sessionID, nil
}
