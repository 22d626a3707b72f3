package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"coursehub/internal/config"
	"coursehub/internal/models"
	"coursehub/internal/service/course"
	"coursehub/internal/storage"
)

type fixture struct {
	db      *sql.DB
	svc     *Service
	student *models.User
	course  *models.Course
}

func newFixture(t *testing.T, lessons int) *fixture {
	t.Helper()
	db := openTestDB(t)
	t.Cleanup(func() { db.Close() })
	instructor := insertUser(t, db, "i1", models.RoleInstructor)
	student := insertUser(t, db, "s1", models.RoleStudent)

	in := course.CourseInput{
		Title:      "Practical SQL",
		Category:   "Data",
		Difficulty: models.DifficultyBeginner,
	}
	for i := 0; i < lessons; i++ {
		in.Syllabus = append(in.Syllabus, course.LessonInput{Title: "Lesson", Duration: 10})
	}
	c, err := course.NewService(db, nil).CreateCourse(context.Background(), instructor, in)
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	return &fixture{db: db, svc: NewService(db), student: student, course: c}
}

func (f *fixture) totalEnrolled(t *testing.T) int {
	t.Helper()
	var n int
	if err := f.db.QueryRow(`SELECT total_enrolled FROM courses WHERE id = ?`, f.course.ID).Scan(&n); err != nil {
		t.Fatalf("query total_enrolled: %v", err)
	}
	return n
}

func TestEnrollOncePerCourse(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	e, err := f.svc.Enroll(ctx, f.student.ID, f.course.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if e.Status != models.EnrollmentActive || e.CourseTitle != "Practical SQL" || e.CompletionDate != nil {
		t.Fatalf("unexpected enrollment %+v", e)
	}
	if _, err := f.svc.Enroll(ctx, f.student.ID, f.course.ID); !errors.Is(err, ErrAlreadyEnrolled) {
		t.Fatalf("expected already enrolled, got %v", err)
	}
	if _, err := f.svc.Enroll(ctx, f.student.ID, "missing"); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("expected course not found, got %v", err)
	}
	if got := f.totalEnrolled(t); got != 1 {
		t.Fatalf("total_enrolled = %d, want 1", got)
	}

	for i := 0; i < 3; i++ {
		if _, err := f.svc.SetStatus(ctx, e.ID, models.EnrollmentDropped); err != nil {
			t.Fatalf("drop: %v", err)
		}
		if got := f.totalEnrolled(t); got != 0 {
			t.Fatalf("round %d: total_enrolled after drop = %d, want 0", i, got)
		}
		again, err := f.svc.Enroll(ctx, f.student.ID, f.course.ID)
		if err != nil {
			t.Fatalf("re-enroll after drop: %v", err)
		}
		if again.ID != e.ID || again.Status != models.EnrollmentActive {
			t.Fatalf("dropped enrollment not reactivated: %+v", again)
		}
		if got := f.totalEnrolled(t); got != 1 {
			t.Fatalf("round %d: total_enrolled after re-enroll = %d, want 1", i, got)
		}
	}
	// resuming through a status change counts the same way
	if _, err := f.svc.SetStatus(ctx, e.ID, models.EnrollmentDropped); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, e.ID, models.EnrollmentActive); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, e.ID, models.EnrollmentSuspended); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if got := f.totalEnrolled(t); got != 1 {
		t.Fatalf("total_enrolled after resume/suspend = %d, want 1", got)
	}

	mine, err := f.svc.ListByStudent(ctx, f.student.ID)
	if err != nil || len(mine) != 1 {
		t.Fatalf("ListByStudent: %v %+v", err, mine)
	}
	byCourse, err := f.svc.ListByCourse(ctx, f.course.ID)
	if err != nil || len(byCourse) != 1 {
		t.Fatalf("ListByCourse: %v %+v", err, byCourse)
	}
	none, err := f.svc.ListByStudent(ctx, "nobody")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v %v", none, err)
	}
}

func TestProgressCompletesEnrollment(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	e, err := f.svc.Enroll(ctx, f.student.ID, f.course.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	first, second := f.course.Syllabus[0].ID, f.course.Syllabus[1].ID

	p, err := f.svc.UpdateProgress(ctx, ProgressUpdate{EnrollmentID: e.ID, LessonID: first, Completed: true})
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if p.CompletedLessons != 1 || p.TotalLessons != 2 || p.Progress != 50 {
		t.Fatalf("unexpected progress %+v", p)
	}
	// marking twice is idempotent
	if p, err = f.svc.UpdateProgress(ctx, ProgressUpdate{EnrollmentID: e.ID, LessonID: first, Completed: true}); err != nil || p.CompletedLessons != 1 {
		t.Fatalf("repeat mark: %+v %v", p, err)
	}
	if p, err = f.svc.UpdateProgress(ctx, ProgressUpdate{EnrollmentID: e.ID, LessonID: first, Completed: false}); err != nil || p.Progress != 0 {
		t.Fatalf("unmark: %+v %v", p, err)
	}
	if _, err := f.svc.UpdateProgress(ctx, ProgressUpdate{EnrollmentID: e.ID, LessonID: "other", Completed: true}); !errors.Is(err, ErrLessonNotFound) {
		t.Fatalf("expected lesson not found, got %v", err)
	}

	if _, err := f.svc.Certificate(ctx, e.ID); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("expected not completed, got %v", err)
	}
	for _, id := range []string{first, second} {
		if _, err := f.svc.UpdateProgress(ctx, ProgressUpdate{EnrollmentID: e.ID, LessonID: id, Completed: true}); err != nil {
			t.Fatalf("UpdateProgress %s: %v", id, err)
		}
	}
	done, err := f.svc.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if done.Status != models.EnrollmentCompleted || done.Progress != 100 || done.CompletionDate == nil {
		t.Fatalf("enrollment not completed: %+v", done)
	}
	if _, err := f.svc.UpdateProgress(ctx, ProgressUpdate{EnrollmentID: e.ID, LessonID: first}); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected not active after completion, got %v", err)
	}
	lessons, err := f.svc.CompletedLessons(ctx, e.ID)
	if err != nil || !lessons[first] || !lessons[second] {
		t.Fatalf("CompletedLessons: %v %v", lessons, err)
	}

	cert, err := f.svc.Certificate(ctx, e.ID)
	if err != nil {
		t.Fatalf("Certificate: %v", err)
	}
	if !strings.Contains(cert, "Test User") || !strings.Contains(cert, "Practical SQL") || !strings.Contains(cert, e.ID) {
		t.Fatalf("certificate missing details:\n%s", cert)
	}
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	e, err := f.svc.Enroll(ctx, f.student.ID, f.course.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, e.ID, "paused"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, "missing", models.EnrollmentActive); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	completed, err := f.svc.SetStatus(ctx, e.ID, models.EnrollmentCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Progress != 100 || completed.CompletionDate == nil || completed.CertificateURL == "" {
		t.Fatalf("completion not stamped: %+v", completed)
	}
	active, err := f.svc.SetStatus(ctx, e.ID, models.EnrollmentActive)
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if active.CompletionDate != nil || active.CertificateURL != "" {
		t.Fatalf("completion not cleared: %+v", active)
	}
	p, err := f.svc.Progress(ctx, e.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.TotalLessons != 0 || p.StudentID != f.student.ID {
		t.Fatalf("unexpected progress %+v", p)
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func insertUser(t *testing.T, db *sql.DB, id string, role models.Role) *models.User {
	t.Helper()
	now := time.Now().UTC()
	u := &models.User{
		ID: id, Username: "user_" + id, Email: id + "@example.com",
		FirstName: "Test", LastName: "User", Role: role, CreatedAt: now, UpdatedAt: now,
	}
	_, err := db.Exec(`INSERT INTO users (id, username, email, password_hash, first_name, last_name, role, profile_image, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, ?, ?, '', ?, ?)`,
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, string(u.Role), now, now)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return u
}
