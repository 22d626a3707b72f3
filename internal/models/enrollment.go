package models

import "time"

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentDropped   EnrollmentStatus = "dropped"
	EnrollmentSuspended EnrollmentStatus = "suspended"
)

func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentActive, EnrollmentCompleted, EnrollmentDropped, EnrollmentSuspended:
		return true
	default:
		return false
	}
}

// Enrollment links a student to a course.
type Enrollment struct {
	ID             string           `json:"id"`
	StudentID      string           `json:"studentId"`
	CourseID       string           `json:"courseId"`
	CourseTitle    string           `json:"courseTitle"`
	EnrolledDate   time.Time        `json:"enrolledDate"`
	CompletionDate *time.Time       `json:"completionDate,omitempty"`
	Progress       float64          `json:"progress"`
	Status         EnrollmentStatus `json:"status"`
	CertificateURL string           `json:"certificateUrl,omitempty"`
}

type StudentProgress struct {
	EnrollmentID     string    `json:"enrollmentId"`
	StudentID        string    `json:"studentId"`
	CourseID         string    `json:"courseId"`
	CompletedLessons int       `json:"completedLessons"`
	TotalLessons     int       `json:"totalLessons"`
	Progress         float64   `json:"progress"`
	LastAccessedDate time.Time `json:"lastAccessedDate"`
}
