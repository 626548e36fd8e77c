package models

import "time"

// AttendanceStatus represents the recorded status for one student in a session.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceSession is one attendance-taking event for a course on a date.
// At most one session exists per (course_id, date); the table carries a
// unique constraint on that pair.
type AttendanceSession struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Date      time.Time `db:"date" json:"date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AttendanceEntry is one student's status row, joined with the student name.
// ID and SessionID are empty for roster-seeded entries that have not been
// persisted yet.
type AttendanceEntry struct {
	ID          string           `db:"id" json:"id,omitempty"`
	SessionID   string           `db:"session_id" json:"session_id,omitempty"`
	StudentID   string           `db:"student_id" json:"student_id"`
	StudentName string           `db:"student_name" json:"student_name"`
	Status      AttendanceStatus `db:"status" json:"status"`
}

// AttendanceSnapshot is the editable state for a (course, date) pair. When
// SessionID is nil the snapshot was seeded from the enrollment roster and no
// session exists yet.
type AttendanceSnapshot struct {
	SessionID *string           `json:"session_id,omitempty"`
	CourseID  string            `json:"course_id"`
	Date      time.Time         `json:"date"`
	Entries   []AttendanceEntry `json:"entries"`
}

// SessionDetail pairs a session with its visible entries.
type SessionDetail struct {
	AttendanceSession
	Entries []AttendanceEntry `json:"entries"`
}

// SessionFilter narrows a fetched session list. All predicates are optional
// and combined with AND.
type SessionFilter struct {
	StudentName string
	Date        *time.Time
	Status      *AttendanceStatus
}

// RosterMember is one enrolled student of a course.
type RosterMember struct {
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
}

// StatusWrite is the persistence payload for one entry of a save.
type StatusWrite struct {
	StudentID string           `json:"student_id"`
	Status    AttendanceStatus `json:"status"`
}
