package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"coursehub/internal/models"
)

var (
	ErrNotFound        = errors.New("enrollment not found")
	ErrCourseNotFound  = errors.New("course not found")
	ErrLessonNotFound  = errors.New("lesson not in course syllabus")
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
	ErrNotActive       = errors.New("enrollment is not active")
	ErrNotCompleted    = errors.New("course not completed yet")
	ErrInvalidStatus   = errors.New("invalid enrollment status")
)

// Service manages enrollments and lesson progress.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

// NewService builds the enrollment service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// ProgressUpdate marks one syllabus lesson done or not done.
type ProgressUpdate struct {
	EnrollmentID string `json:"enrollmentId"`
	LessonID     string `json:"lessonId"`
	Completed    bool   `json:"completed"`
}

const selectEnrollment = `SELECT e.id, e.student_id, e.course_id, c.title, e.enrolled_at, e.completed_at,
	e.progress, e.status, e.certificate_url
	FROM enrollments e JOIN courses c ON c.id = e.course_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(row rowScanner) (*models.Enrollment, error) {
	var (
		e         models.Enrollment
		completed sql.NullTime
		status    string
	)
	if err := row.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.CourseTitle, &e.EnrolledDate, &completed,
		&e.Progress, &status, &e.CertificateURL); err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		e.CompletionDate = &t
	}
	e.Status = models.EnrollmentStatus(status)
	return &e, nil
}

// Enroll signs the student up for the course. A dropped enrollment is
// reactivated and counted again, since dropping uncounted it.
func (s *Service) Enroll(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	if studentID == "" || courseID == "" {
		return nil, errors.New("student and course are required")
	}
	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM courses WHERE id = ?)`, courseID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check course: %w", err)
	}
	if !exists {
		return nil, ErrCourseNotFound
	}

	var (
		id     string
		status string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, status FROM enrollments WHERE student_id = ? AND course_id = ?`, studentID, courseID,
	).Scan(&id, &status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO enrollments (id, student_id, course_id, enrolled_at, completed_at, progress, status, certificate_url, last_accessed_at)
			 VALUES (?, ?, ?, ?, NULL, 0, ?, '', ?)`,
			id, studentID, courseID, now, string(models.EnrollmentActive), now,
		); err != nil {
			return nil, fmt.Errorf("insert enrollment: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("lookup enrollment: %w", err)
	case models.EnrollmentStatus(status) == models.EnrollmentDropped:
		if _, err := tx.ExecContext(ctx,
			`UPDATE enrollments SET status = ?, enrolled_at = ?, last_accessed_at = ? WHERE id = ?`,
			string(models.EnrollmentActive), now, now, id,
		); err != nil {
			return nil, fmt.Errorf("reactivate enrollment: %w", err)
		}
	default:
		return nil, ErrAlreadyEnrolled
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE courses SET total_enrolled = total_enrolled + 1 WHERE id = ?`, courseID,
	); err != nil {
		return nil, fmt.Errorf("count enrollment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment: %w", err)
	}
	return s.Get(ctx, id)
}

// Get loads one enrollment.
func (s *Service) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	e, err := scanEnrollment(s.db.QueryRowContext(ctx, selectEnrollment+` WHERE e.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query enrollment: %w", err)
	}
	return e, nil
}

// ListByStudent returns the student's enrollments, oldest first.
func (s *Service) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	return s.list(ctx, ` WHERE e.student_id = ? ORDER BY e.enrolled_at, e.id`, studentID)
}

// ListByCourse returns the course's enrollments, oldest first.
func (s *Service) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	return s.list(ctx, ` WHERE e.course_id = ? ORDER BY e.enrolled_at, e.id`, courseID)
}

func (s *Service) list(ctx context.Context, where string, args ...any) ([]models.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, selectEnrollment+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()
	out := []models.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// SetStatus moves the enrollment to status. Completing stamps the completion
// date and fills progress; any other status clears the completion.
// total_enrolled counts enrollments that are not dropped.
func (s *Service) SetStatus(ctx context.Context, id string, status models.EnrollmentStatus) (*models.Enrollment, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var courseID, current string
	err = tx.QueryRowContext(ctx, `SELECT course_id, status FROM enrollments WHERE id = ?`, id).Scan(&courseID, &current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup enrollment: %w", err)
	}

	if status == models.EnrollmentCompleted {
		_, err = tx.ExecContext(ctx,
			`UPDATE enrollments SET status = ?, completed_at = ?, progress = 100, certificate_url = ?, last_accessed_at = ? WHERE id = ?`,
			string(status), now, certificatePath(id), now, id,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE enrollments SET status = ?, completed_at = NULL, certificate_url = '', last_accessed_at = ? WHERE id = ?`,
			string(status), now, id,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("update enrollment status: %w", err)
	}

	wasDropped := models.EnrollmentStatus(current) == models.EnrollmentDropped
	isDropped := status == models.EnrollmentDropped
	if wasDropped != isDropped {
		delta := 1
		if isDropped {
			delta = -1
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE courses SET total_enrolled = total_enrolled + ? WHERE id = ?`, delta, courseID,
		); err != nil {
			return nil, fmt.Errorf("count enrollment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment status: %w", err)
	}
	return s.Get(ctx, id)
}

func certificatePath(id string) string {
	return "/api/enrollments/" + id + "/certificate"
}

// UpdateProgress records a lesson as done or not done and recomputes the
// enrollment progress. Finishing every lesson completes the enrollment.
func (s *Service) UpdateProgress(ctx context.Context, in ProgressUpdate) (*models.StudentProgress, error) {
	if in.EnrollmentID == "" || in.LessonID == "" {
		return nil, errors.New("enrollment and lesson are required")
	}
	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var courseID, status string
	err = tx.QueryRowContext(ctx, `SELECT course_id, status FROM enrollments WHERE id = ?`, in.EnrollmentID).Scan(&courseID, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup enrollment: %w", err)
	}
	if models.EnrollmentStatus(status) != models.EnrollmentActive {
		return nil, ErrNotActive
	}
	var inCourse bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM lessons WHERE id = ? AND course_id = ?)`, in.LessonID, courseID,
	).Scan(&inCourse); err != nil {
		return nil, fmt.Errorf("check lesson: %w", err)
	}
	if !inCourse {
		return nil, ErrLessonNotFound
	}

	if in.Completed {
		var done bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM lesson_progress WHERE enrollment_id = ? AND lesson_id = ?)`, in.EnrollmentID, in.LessonID,
		).Scan(&done); err != nil {
			return nil, fmt.Errorf("check progress: %w", err)
		}
		if !done {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO lesson_progress (enrollment_id, lesson_id, completed_at) VALUES (?, ?, ?)`,
				in.EnrollmentID, in.LessonID, now,
			); err != nil {
				return nil, fmt.Errorf("record progress: %w", err)
			}
		}
	} else if _, err := tx.ExecContext(ctx,
		`DELETE FROM lesson_progress WHERE enrollment_id = ? AND lesson_id = ?`, in.EnrollmentID, in.LessonID,
	); err != nil {
		return nil, fmt.Errorf("clear progress: %w", err)
	}

	completed, total, err := countLessons(ctx, tx, in.EnrollmentID, courseID)
	if err != nil {
		return nil, err
	}
	progress := percent(completed, total)
	if completed == total && total > 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE enrollments SET progress = ?, status = ?, completed_at = ?, certificate_url = ?, last_accessed_at = ? WHERE id = ?`,
			progress, string(models.EnrollmentCompleted), now, certificatePath(in.EnrollmentID), now, in.EnrollmentID,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE enrollments SET progress = ?, last_accessed_at = ? WHERE id = ?`,
			progress, now, in.EnrollmentID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("update progress: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit progress: %w", err)
	}
	return s.Progress(ctx, in.EnrollmentID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func countLessons(ctx context.Context, q querier, enrollmentID, courseID string) (int, int, error) {
	var completed, total int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lesson_progress p JOIN lessons l ON l.id = p.lesson_id
		 WHERE p.enrollment_id = ? AND l.course_id = ?`, enrollmentID, courseID,
	).Scan(&completed); err != nil {
		return 0, 0, fmt.Errorf("count completed lessons: %w", err)
	}
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM lessons WHERE course_id = ?`, courseID).Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("count lessons: %w", err)
	}
	return completed, total, nil
}

func percent(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)*10000/float64(total)) / 100
}

// Progress summarises lesson completion for the enrollment.
func (s *Service) Progress(ctx context.Context, id string) (*models.StudentProgress, error) {
	p := models.StudentProgress{EnrollmentID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT student_id, course_id, progress, last_accessed_at FROM enrollments WHERE id = ?`, id,
	).Scan(&p.StudentID, &p.CourseID, &p.Progress, &p.LastAccessedDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query progress: %w", err)
	}
	if p.CompletedLessons, p.TotalLessons, err = countLessons(ctx, s.db, id, p.CourseID); err != nil {
		return nil, err
	}
	return &p, nil
}

// CompletedLessons lists the lesson ids finished under the enrollment.
func (s *Service) CompletedLessons(ctx context.Context, id string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT lesson_id FROM lesson_progress WHERE enrollment_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("list lesson progress: %w", err)
	}
	defer rows.Close()
	done := make(map[string]bool)
	for rows.Next() {
		var lessonID string
		if err := rows.Scan(&lessonID); err != nil {
			return nil, fmt.Errorf("scan lesson progress: %w", err)
		}
		done[lessonID] = true
	}
	return done, rows.Err()
}

// Certificate renders the plain-text certificate of a completed enrollment.
func (s *Service) Certificate(ctx context.Context, id string) (string, error) {
	var (
		title, first, last, status string
		completed                  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT c.title, u.first_name, u.last_name, e.status, e.completed_at
		 FROM enrollments e JOIN courses c ON c.id = e.course_id JOIN users u ON u.id = e.student_id
		 WHERE e.id = ?`, id,
	).Scan(&title, &first, &last, &status, &completed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("query certificate: %w", err)
	}
	if models.EnrollmentStatus(status) != models.EnrollmentCompleted || !completed.Valid {
		return "", ErrNotCompleted
	}
	var b strings.Builder
	b.WriteString("CERTIFICATE OF COMPLETION\n\n")
	fmt.Fprintf(&b, "This certifies that %s\n", strings.TrimSpace(first+" "+last))
	fmt.Fprintf(&b, "has successfully completed the course\n%s\n\n", title)
	fmt.Fprintf(&b, "Completed on %s\n", completed.Time.UTC().Format("January 2, 2006"))
	fmt.Fprintf(&b, "Certificate ID: %s\n", id)
	return b.String(), nil
}
