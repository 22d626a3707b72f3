package course

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"coursehub/internal/models"
)

var (
	ErrNotFound  = errors.New("course not found")
	ErrForbidden = errors.New("course belongs to another instructor")
)

// Notifier is told when the course collection changed.
type Notifier interface {
	Invalidate(ctx context.Context) error
}

// Service stores courses and their syllabus.
type Service struct {
	db       *sql.DB
	notifier Notifier
}

// NewService builds the course service. notifier may be nil.
func NewService(db *sql.DB, notifier Notifier) *Service {
	return &Service{db: db, notifier: notifier}
}

// SetNotifier swaps the change notifier; the catalog loader needs the service first.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// LessonInput describes one syllabus entry.
type LessonInput struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Duration    int               `json:"duration"`
	VideoURL    string            `json:"videoUrl"`
	Materials   []models.Material `json:"materials"`
}

// CourseInput is the create form.
type CourseInput struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Difficulty  models.Difficulty `json:"difficulty"`
	Price       float64           `json:"price"`
	Duration    float64           `json:"duration"`
	Image       string            `json:"image"`
	IsFeatured  bool              `json:"isFeatured"`
	Syllabus    []LessonInput     `json:"syllabus"`
}

// CoursePatch carries optional updates; nil fields are left untouched.
type CoursePatch struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Category    *string            `json:"category"`
	Difficulty  *models.Difficulty `json:"difficulty"`
	Price       *float64           `json:"price"`
	Duration    *float64           `json:"duration"`
	Image       *string            `json:"image"`
	IsFeatured  *bool              `json:"isFeatured"`
	Syllabus    *[]LessonInput     `json:"syllabus"`
}

func validate(c *models.Course) error {
	if c.Title == "" {
		return errors.New("title is required")
	}
	if c.Category == "" {
		return errors.New("category is required")
	}
	if !c.Difficulty.Valid() {
		return fmt.Errorf("unknown difficulty %q", c.Difficulty)
	}
	if c.Price < 0 || c.Duration < 0 {
		return errors.New("price and duration must not be negative")
	}
	for i, l := range c.Syllabus {
		if l.Title == "" {
			return fmt.Errorf("lesson %d: title is required", i+1)
		}
		if l.Duration < 0 {
			return fmt.Errorf("lesson %d: duration must not be negative", i+1)
		}
	}
	return nil
}

func buildSyllabus(in []LessonInput) []models.Lesson {
	lessons := make([]models.Lesson, 0, len(in))
	for i, l := range in {
		materials := make([]models.Material, 0, len(l.Materials))
		for _, m := range l.Materials {
			if m.ID == "" {
				m.ID = uuid.NewString()
			}
			materials = append(materials, m)
		}
		lessons = append(lessons, models.Lesson{
			ID:          uuid.NewString(),
			Title:       strings.TrimSpace(l.Title),
			Description: l.Description,
			Duration:    l.Duration,
			Order:       i + 1,
			VideoURL:    l.VideoURL,
			Materials:   materials,
		})
	}
	return lessons
}

func canManage(actor *models.User, c *models.Course) bool {
	if actor == nil {
		return false
	}
	if actor.Role == models.RoleAdmin {
		return true
	}
	return actor.Role == models.RoleInstructor && c.Instructor.ID == actor.ID
}

// CreateCourse stores a new course owned by instructor.
func (s *Service) CreateCourse(ctx context.Context, instructor *models.User, in CourseInput) (*models.Course, error) {
	if instructor == nil || (instructor.Role != models.RoleInstructor && instructor.Role != models.RoleAdmin) {
		return nil, ErrForbidden
	}
	now := time.Now().UTC()
	c := &models.Course{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Difficulty:  in.Difficulty,
		Instructor: models.InstructorInfo{
			ID:    instructor.ID,
			Name:  instructor.FullName(),
			Email: instructor.Email,
			Image: instructor.ProfileImage,
		},
		Price:      in.Price,
		Duration:   in.Duration,
		Image:      in.Image,
		IsFeatured: in.IsFeatured,
		CreatedAt:  now,
		UpdatedAt:  now,
		Syllabus:   buildSyllabus(in.Syllabus),
	}
	if err := validate(c); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO courses (id, title, description, category, difficulty, instructor_id, price, rating, total_enrolled, duration, image, is_featured, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Description, c.Category, string(c.Difficulty), c.Instructor.ID,
		c.Price, c.Duration, c.Image, c.IsFeatured, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert course: %w", err)
	}
	if err := insertLessons(ctx, tx, c.ID, c.Syllabus); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit course: %w", err)
	}
	c.TotalLessons = len(c.Syllabus)
	c.IsNew = true
	s.notify(ctx)
	return c, nil
}

func insertLessons(ctx context.Context, tx *sql.Tx, courseID string, lessons []models.Lesson) error {
	for _, l := range lessons {
		materials, err := json.Marshal(l.Materials)
		if err != nil {
			return fmt.Errorf("encode materials: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lessons (id, course_id, title, description, duration, position, video_url, materials)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, courseID, l.Title, l.Description, l.Duration, l.Order, l.VideoURL, string(materials),
		); err != nil {
			return fmt.Errorf("insert lesson: %w", err)
		}
	}
	return nil
}

// UpdateCourse applies patch to the course if actor may manage it.
func (s *Service) UpdateCourse(ctx context.Context, actor *models.User, id string, patch CoursePatch) (*models.Course, error) {
	c, err := s.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, c) {
		return nil, ErrForbidden
	}
	if patch.Title != nil {
		c.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		c.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		c.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Difficulty != nil {
		c.Difficulty = *patch.Difficulty
	}
	if patch.Price != nil {
		c.Price = *patch.Price
	}
	if patch.Duration != nil {
		c.Duration = *patch.Duration
	}
	if patch.Image != nil {
		c.Image = *patch.Image
	}
	if patch.IsFeatured != nil {
		c.IsFeatured = *patch.IsFeatured
	}
	if patch.Syllabus != nil {
		c.Syllabus = buildSyllabus(*patch.Syllabus)
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`UPDATE courses SET title = ?, description = ?, category = ?, difficulty = ?, price = ?, duration = ?, image = ?, is_featured = ?, updated_at = ?
		 WHERE id = ?`,
		c.Title, c.Description, c.Category, string(c.Difficulty), c.Price, c.Duration, c.Image, c.IsFeatured, c.UpdatedAt, c.ID,
	); err != nil {
		return nil, fmt.Errorf("update course: %w", err)
	}
	if patch.Syllabus != nil {
		// replacing the syllabus drops lesson progress through the cascade
		if _, err := tx.ExecContext(ctx, `DELETE FROM lessons WHERE course_id = ?`, c.ID); err != nil {
			return nil, fmt.Errorf("clear lessons: %w", err)
		}
		if err := insertLessons(ctx, tx, c.ID, c.Syllabus); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit course: %w", err)
	}
	c.TotalLessons = len(c.Syllabus)
	s.notify(ctx)
	return c, nil
}

// DeleteCourse removes the course with its lessons and enrollments.
func (s *Service) DeleteCourse(ctx context.Context, actor *models.User, id string) error {
	c, err := s.GetCourse(ctx, id)
	if err != nil {
		return err
	}
	if !canManage(actor, c) {
		return ErrForbidden
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	s.notify(ctx)
	return nil
}

func (s *Service) notify(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Invalidate(ctx); err != nil {
		log.Printf("catalog invalidate failed: %v", err)
	}
}

const selectCourse = `SELECT c.id, c.title, c.description, c.category, c.difficulty, c.price, c.rating, c.total_enrolled,
	c.duration, c.image, c.is_featured, c.created_at, c.updated_at,
	u.id, u.first_name, u.last_name, u.email, u.profile_image
	FROM courses c JOIN users u ON u.id = c.instructor_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner, now time.Time) (*models.Course, error) {
	var (
		c          models.Course
		difficulty string
		first      string
		last       string
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Category, &difficulty, &c.Price, &c.Rating, &c.TotalEnrolled,
		&c.Duration, &c.Image, &c.IsFeatured, &c.CreatedAt, &c.UpdatedAt,
		&c.Instructor.ID, &first, &last, &c.Instructor.Email, &c.Instructor.Image)
	if err != nil {
		return nil, err
	}
	c.Difficulty = models.Difficulty(difficulty)
	c.Instructor.Name = strings.TrimSpace(first + " " + last)
	c.IsNew = now.Sub(c.CreatedAt) < models.NewCourseWindow
	return &c, nil
}

// GetCourse loads one course with its syllabus.
func (s *Service) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	c, err := scanCourse(s.db.QueryRowContext(ctx, selectCourse+` WHERE c.id = ?`, id), time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query course: %w", err)
	}
	syllabus, err := s.lessons(ctx, []string{c.ID})
	if err != nil {
		return nil, err
	}
	c.Syllabus = nonNil(syllabus[c.ID])
	c.TotalLessons = len(c.Syllabus)
	return c, nil
}

// ListCourses returns every course in creation order.
func (s *Service) ListCourses(ctx context.Context) ([]models.Course, error) {
	rows, err := s.db.QueryContext(ctx, selectCourse+` ORDER BY c.created_at, c.id`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	now := time.Now().UTC()
	var courses []models.Course
	for rows.Next() {
		c, err := scanCourse(rows, now)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, *c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	syllabus, err := s.lessons(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		courses[i].Syllabus = nonNil(syllabus[courses[i].ID])
		courses[i].TotalLessons = len(courses[i].Syllabus)
	}
	if courses == nil {
		courses = []models.Course{}
	}
	return courses, nil
}

func (s *Service) lessons(ctx context.Context, courseIDs []string) (map[string][]models.Lesson, error) {
	out := make(map[string][]models.Lesson, len(courseIDs))
	if len(courseIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(courseIDs)), ",")
	args := make([]any, 0, len(courseIDs))
	for _, id := range courseIDs {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, title, description, duration, position, video_url, materials
		 FROM lessons WHERE course_id IN (`+placeholders+`) ORDER BY course_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			l         models.Lesson
			courseID  string
			materials string
		)
		if err := rows.Scan(&l.ID, &courseID, &l.Title, &l.Description, &l.Duration, &l.Order, &l.VideoURL, &materials); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		if materials != "" {
			if err := json.Unmarshal([]byte(materials), &l.Materials); err != nil {
				return nil, fmt.Errorf("decode materials: %w", err)
			}
		}
		out[courseID] = append(out[courseID], l)
	}
	return out, rows.Err()
}

func nonNil(lessons []models.Lesson) []models.Lesson {
	if lessons == nil {
		return []models.Lesson{}
	}
	return lessons
}
