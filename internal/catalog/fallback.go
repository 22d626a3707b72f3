package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"coursehub/internal/models"
)

// DefaultFallback is served when neither the database nor the cache can be read
// on first load.
func DefaultFallback() []models.Course {
	created := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	return []models.Course{
		{
			ID:          "fallback-angular-fundamentals",
			Title:       "Angular Fundamentals",
			Description: "Components, templates, routing and services for single-page apps.",
			Category:    "Web Development",
			Difficulty:  models.DifficultyBeginner,
			Instructor:  models.InstructorInfo{ID: "fallback-instructor", Name: "Catalog Team"},
			Price:       49.99,
			Rating:      4.6,
			Duration:    12,
			IsFeatured:  true,
			CreatedAt:   created,
			UpdatedAt:   created,
			Syllabus:    []models.Lesson{},
		},
		{
			ID:          "fallback-deep-learning-advanced",
			Title:       "Deep Learning Advanced",
			Description: "Convolutional and recurrent networks, attention and training at scale.",
			Category:    "Data Science",
			Difficulty:  models.DifficultyAdvanced,
			Instructor:  models.InstructorInfo{ID: "fallback-instructor", Name: "Catalog Team"},
			Price:       89.99,
			Rating:      4.8,
			Duration:    30,
			CreatedAt:   created,
			UpdatedAt:   created,
			Syllabus:    []models.Lesson{},
		},
		{
			ID:          "fallback-sql-intermediate",
			Title:       "Practical SQL",
			Description: "Joins, window functions and query plans for analysts.",
			Category:    "Data Science",
			Difficulty:  models.DifficultyIntermediate,
			Instructor:  models.InstructorInfo{ID: "fallback-instructor", Name: "Catalog Team"},
			Price:       29.99,
			Rating:      4.4,
			Duration:    8,
			CreatedAt:   created,
			UpdatedAt:   created,
			Syllabus:    []models.Lesson{},
		},
	}
}

// LoadFallbackFile reads a JSON array of courses.
func LoadFallbackFile(path string) ([]models.Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fallback %s: %w", path, err)
	}
	var courses []models.Course
	if err := json.Unmarshal(data, &courses); err != nil {
		return nil, fmt.Errorf("decode fallback: %w", err)
	}
	return courses, nil
}
