package models

import "time"

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Difficulties lists the known tags in display order.
var Difficulties = []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced}

func (d Difficulty) Valid() bool {
	for _, known := range Difficulties {
		if d == known {
			return true
		}
	}
	return false
}

// NewCourseWindow is how long after creation a course is flagged as new.
const NewCourseWindow = 30 * 24 * time.Hour

// Course is the canonical catalog record.
type Course struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	Difficulty    Difficulty     `json:"difficulty"`
	Instructor    InstructorInfo `json:"instructor"`
	Price         float64        `json:"price"`
	Rating        float64        `json:"rating"`
	TotalEnrolled int            `json:"totalEnrolled"`
	TotalLessons  int            `json:"totalLessons"`
	Duration      float64        `json:"duration"` // hours
	Image         string         `json:"image,omitempty"`
	IsFeatured    bool           `json:"isFeatured"`
	IsNew         bool           `json:"isNew"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Syllabus      []Lesson       `json:"syllabus"`
}

// InstructorInfo is the light instructor view embedded in a course.
type InstructorInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

type Lesson struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Duration    int        `json:"duration"` // minutes
	Order       int        `json:"order"`
	VideoURL    string     `json:"videoUrl,omitempty"`
	Materials   []Material `json:"materials,omitempty"`
	Completed   bool       `json:"completed,omitempty"`
}

type MaterialType string

const (
	MaterialPDF      MaterialType = "pdf"
	MaterialDocument MaterialType = "document"
	MaterialVideo    MaterialType = "video"
	MaterialLink     MaterialType = "link"
)

type Material struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	Type MaterialType `json:"type"`
	URL  string       `json:"url"`
	Size int64        `json:"size,omitempty"`
}
