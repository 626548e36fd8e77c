package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coursedesk/coursedesk-api/internal/models"
	appErrors "github.com/coursedesk/coursedesk-api/pkg/errors"
	"github.com/coursedesk/coursedesk-api/pkg/export"
)

type attendanceHistoryGateway interface {
	ListSessionsForCourse(ctx context.Context, courseID string) ([]models.AttendanceSession, error)
	ListEntries(ctx context.Context, sessionID, studentID string) ([]models.AttendanceEntry, error)
	UpdateEntryStatus(ctx context.Context, entryID string, status models.AttendanceStatus) (int64, error)
	DeleteSession(ctx context.Context, sessionID string) (int64, error)
}

// AttendanceHistoryService lists historical sessions with filtering and
// owns row-level corrections and whole-session deletes.
type AttendanceHistoryService struct {
	repo   attendanceHistoryGateway
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewAttendanceHistoryService constructs the history service.
func NewAttendanceHistoryService(repo attendanceHistoryGateway, logger *zap.Logger) *AttendanceHistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceHistoryService{
		repo:   repo,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// ListSessions returns every session of the course, newest first, each with
// its entries. When the viewer is a student the entry fetch is narrowed to
// the viewer's own row at query level, so other students' statuses never
// appear in the result.
func (s *AttendanceHistoryService) ListSessions(ctx context.Context, courseID string, viewer *models.JWTClaims) ([]models.SessionDetail, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course id required")
	}

	studentFilter := ""
	if viewer != nil && !viewer.Role.Staff() {
		studentFilter = viewer.UserID
	}

	sessions, err := s.repo.ListSessionsForCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to list attendance sessions")
	}

	details := make([]models.SessionDetail, 0, len(sessions))
	for _, session := range sessions {
		entries, err := s.repo.ListEntries(ctx, session.ID, studentFilter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to load attendance entries")
		}
		details = append(details, models.SessionDetail{AttendanceSession: session, Entries: entries})
	}
	return details, nil
}

// FilterSessions applies the filter predicates to an already fetched
// session list. It is a pure function: the input is not modified and no
// refetch happens. Sessions whose entries are all filtered out are dropped.
func (s *AttendanceHistoryService) FilterSessions(sessions []models.SessionDetail, filter models.SessionFilter) []models.SessionDetail {
	name := strings.ToLower(strings.TrimSpace(filter.StudentName))

	out := make([]models.SessionDetail, 0, len(sessions))
	for _, session := range sessions {
		if filter.Date != nil && !sameDay(session.Date, *filter.Date) {
			continue
		}
		entries := make([]models.AttendanceEntry, 0, len(session.Entries))
		for _, entry := range session.Entries {
			if name != "" && !strings.Contains(strings.ToLower(entry.StudentName), name) {
				continue
			}
			if filter.Status != nil && entry.Status != *filter.Status {
				continue
			}
			entries = append(entries, entry)
		}
		if len(entries) == 0 {
			continue
		}
		filtered := session
		filtered.Entries = entries
		out = append(out, filtered)
	}
	return out
}

// UpdateEntryStatus corrects exactly one entry's status by its own id. The
// session and sibling entries are untouched.
func (s *AttendanceHistoryService) UpdateEntryStatus(ctx context.Context, entryID string, status string) error {
	if entryID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "entry id required")
	}
	parsed := models.AttendanceStatus(strings.ToLower(status))
	if !parsed.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unrecognized attendance status")
	}

	affected, err := s.repo.UpdateEntryStatus(ctx, entryID, parsed)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance entry")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "attendance entry not found")
	}
	return nil
}

// DeleteSession removes a session together with all of its entries.
func (s *AttendanceHistoryService) DeleteSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "session id required")
	}

	affected, err := s.repo.DeleteSession(ctx, sessionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance session")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "attendance session not found")
	}

	s.logger.Info("attendance session deleted", zap.String("session_id", sessionID))
	return nil
}

// ExportSessions renders the viewer-visible session list as csv or pdf and
// returns the payload with its content type.
func (s *AttendanceHistoryService) ExportSessions(ctx context.Context, courseID, format string, viewer *models.JWTClaims) ([]byte, string, error) {
	sessions, err := s.ListSessions(ctx, courseID, viewer)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{Headers: []string{"Date", "Student", "Status"}}
	for _, session := range sessions {
		day := session.Date.Format("2006-01-02")
		for _, entry := range session.Entries {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Date":    day,
				"Student": entry.StudentName,
				"Status":  string(entry.Status),
			})
		}
	}

	switch strings.ToLower(format) {
	case "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, "Attendance")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format, expected csv or pdf")
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
