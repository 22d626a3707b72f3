// Package catalog computes the visible subset of the course catalog and
// holds the current catalog snapshot.
package catalog

import (
	"strings"

	"coursehub/internal/models"
)

// Criteria is the active set of filter values. Empty fields match everything.
type Criteria struct {
	Query      string `json:"query" form:"q"`
	Category   string `json:"category" form:"category"`
	Difficulty string `json:"difficulty" form:"difficulty"`
}

// Empty reports whether no criterion is set.
func (c Criteria) Empty() bool {
	return c.Query == "" && c.Category == "" && c.Difficulty == ""
}

// ApplyFilters returns the courses matching every criterion, in input order.
// The input slice is never modified and the result is never nil.
func ApplyFilters(courses []models.Course, criteria Criteria) []models.Course {
	query := strings.ToLower(criteria.Query)
	out := make([]models.Course, 0, len(courses))
	for _, course := range courses {
		if !matchesQuery(course, query) {
			continue
		}
		if criteria.Category != "" && !strings.EqualFold(course.Category, criteria.Category) {
			continue
		}
		// difficulty is an enumerated tag, compared exactly
		if criteria.Difficulty != "" && string(course.Difficulty) != criteria.Difficulty {
			continue
		}
		out = append(out, course)
	}
	return out
}

func matchesQuery(course models.Course, lowered string) bool {
	if lowered == "" {
		return true
	}
	return strings.Contains(strings.ToLower(course.Title), lowered) ||
		strings.Contains(strings.ToLower(course.Description), lowered)
}

// ExtractCategories returns the distinct non-empty categories in first-seen order.
func ExtractCategories(courses []models.Course) []string {
	seen := make(map[string]struct{}, len(courses))
	categories := make([]string, 0)
	for _, course := range courses {
		if course.Category == "" {
			continue
		}
		if _, ok := seen[course.Category]; ok {
			continue
		}
		seen[course.Category] = struct{}{}
		categories = append(categories, course.Category)
	}
	return categories
}

// FeaturedOnly keeps the featured courses, in input order.
func FeaturedOnly(courses []models.Course) []models.Course {
	out := make([]models.Course, 0, len(courses))
	for _, course := range courses {
		if course.IsFeatured {
			out = append(out, course)
		}
	}
	return out
}
