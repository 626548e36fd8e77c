package models

import "time"

// CourseCategory classifies a course.
type CourseCategory string

const (
	CategoryMath        CourseCategory = "math"
	CategoryScience     CourseCategory = "science"
	CategoryLiterature  CourseCategory = "literature"
	CategoryHistory     CourseCategory = "history"
	CategoryProgramming CourseCategory = "programming"
	CategoryOther       CourseCategory = "other"
)

// Valid returns true when the category is a supported value.
func (c CourseCategory) Valid() bool {
	switch c {
	case CategoryMath, CategoryScience, CategoryLiterature, CategoryHistory, CategoryProgramming, CategoryOther:
		return true
	default:
		return false
	}
}

// Course represents a course owned by a teacher.
type Course struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	Category    CourseCategory `db:"category" json:"category"`
	TeacherID   string         `db:"teacher_id" json:"teacher_id"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// CourseDetail extends a course with teacher metadata and enrollment count.
type CourseDetail struct {
	Course
	TeacherName   string `db:"teacher_name" json:"teacher_name"`
	EnrolledCount int    `db:"enrolled_count" json:"enrolled_count"`
}
